// cmd/demo/main.go
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/Corphon/MVScenePlanner/internal/app"
	"github.com/Corphon/MVScenePlanner/internal/config"
	"github.com/Corphon/MVScenePlanner/internal/di"
	apperrors "github.com/Corphon/MVScenePlanner/internal/errors"
	"github.com/Corphon/MVScenePlanner/internal/models"
	"github.com/Corphon/MVScenePlanner/internal/services"
	"github.com/Corphon/MVScenePlanner/internal/storage"
	"github.com/Corphon/MVScenePlanner/internal/utils"
)

const cliBoxMaxWidth = 90

// console 交互式控制台状态
type console struct {
	in       *bufio.Reader
	out      io.Writer
	scenes   *services.SceneService
	projects *storage.ProjectStore
	project  string
}

func main() {
	dataDir := flag.String("data", "", "data directory (defaults to DATA_DIR)")
	project := flag.String("project", "", "project id to open")
	file := flag.String("file", "", "import this file into -project and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ 加载配置失败: %v", err)
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	if err := utils.InitLogger(filepath.Join(cfg.LogDir, "console.log"), utils.DefaultLogFileOptions()); err != nil {
		log.Printf("⚠️ 无法初始化日志文件: %v", err)
	}
	logger := utils.GetLogger()
	logger.SetOutput(nil) // 控制台输出留给交互界面
	defer logger.Close()

	container := di.NewContainer()
	if err := app.InitServices(cfg, container); err != nil {
		log.Fatalf("❌ 初始化服务失败: %v", err)
	}
	defer func() {
		if fs, err := di.Resolve[*storage.FileStorage](container, di.ServiceStorage); err == nil {
			fs.Close()
		}
		if locks, err := di.Resolve[*services.LockManager](container, di.ServiceLocks); err == nil {
			locks.Close()
		}
	}()

	c := &console{in: bufio.NewReader(os.Stdin), out: os.Stdout}
	if c.scenes, err = di.Resolve[*services.SceneService](container, di.ServiceScene); err != nil {
		log.Fatal(err)
	}
	if c.projects, err = di.Resolve[*storage.ProjectStore](container, di.ServiceProjects); err != nil {
		log.Fatal(err)
	}
	logger.Info("Console started", map[string]interface{}{"data_dir": cfg.DataDir})

	if *project != "" {
		if err := c.openProject(*project); err != nil {
			log.Fatalf("❌ %v", err)
		}
	}

	if *file != "" {
		if c.project == "" {
			log.Fatal("❌ -file requires -project")
		}
		if err := c.importFile(*file); err != nil {
			os.Exit(1)
		}
		return
	}

	c.run()
}

func (c *console) run() {
	fmt.Fprintln(c.out, "🎬 MV Scene Planner Console")
	for {
		c.showMenu()
		switch c.input("> ") {
		case "1", "projects":
			c.listProjects()
		case "2", "open":
			if err := c.openProject(c.input("project id: ")); err != nil {
				c.printErr(err)
			}
		case "3", "list":
			c.listScenes()
		case "4", "add":
			c.addScene()
		case "5", "import":
			c.importFile(c.input("file path: "))
		case "6", "move":
			c.moveScene()
		case "7", "delete":
			c.deleteScene()
		case "0", "quit", "exit":
			fmt.Fprintln(c.out, "👋 bye")
			return
		case "":
			return
		default:
			fmt.Fprintln(c.out, "unknown choice")
		}
	}
}

func (c *console) showMenu() {
	current := c.project
	if current == "" {
		current = "(none)"
	}
	printBox(c.out, "project: "+current, strings.Join([]string{
		"1) list projects",
		"2) open or create project",
		"3) list scenes",
		"4) add scene",
		"5) import file (.csv / .txt)",
		"6) move scene",
		"7) delete scene",
		"0) quit",
	}, "\n"))
}

// input 读取一行；EOF 时返回空字符串
func (c *console) input(prompt string) string {
	fmt.Fprint(c.out, prompt)
	line, _ := c.in.ReadString('\n')
	return strings.TrimSpace(line)
}

func (c *console) printErr(err error) {
	if appErr, ok := apperrors.As(err); ok {
		fmt.Fprintf(c.out, "❌ [%s] %s\n", appErr.Code, appErr.Message)
		for _, d := range appErr.Details {
			fmt.Fprintf(c.out, "   - %s\n", d)
		}
		return
	}
	fmt.Fprintf(c.out, "❌ %v\n", err)
}

func (c *console) requireProject() bool {
	if c.project == "" {
		fmt.Fprintln(c.out, "open a project first")
		return false
	}
	return true
}

func (c *console) listProjects() {
	ids, err := c.projects.ListProjects()
	if err != nil {
		c.printErr(err)
		return
	}
	if len(ids) == 0 {
		fmt.Fprintln(c.out, "no projects yet")
		return
	}
	for _, id := range ids {
		fmt.Fprintf(c.out, "  %s\n", id)
	}
}

// openProject 打开项目，不存在时创建
func (c *console) openProject(id string) error {
	if err := storage.ValidateProjectID(id); err != nil {
		return err
	}
	if !c.projects.ProjectExists(id) {
		if _, err := c.projects.CreateProject(id, id); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "✅ created project %s\n", id)
	}
	c.project = id
	return nil
}

func (c *console) listScenes() {
	if !c.requireProject() {
		return
	}
	scenes, err := c.scenes.ListScenes(c.project)
	if err != nil {
		c.printErr(err)
		return
	}
	printBox(c.out, fmt.Sprintf("%s · %d scenes", c.project, len(scenes)), formatScenes(scenes))
}

func formatScenes(scenes []models.Scene) string {
	if len(scenes) == 0 {
		return "(empty)"
	}
	lines := make([]string, 0, len(scenes))
	for _, s := range scenes {
		line := fmt.Sprintf("%3d  %6s  %s", s.Order, s.StartTime, s.Lyrics)
		if s.Description != "" {
			line += "  | " + s.Description
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (c *console) addScene() {
	if !c.requireProject() {
		return
	}
	fields := models.SceneFields{
		StartTime:   c.input("start time [0:00]: "),
		Lyrics:      c.input("lyrics: "),
		Description: c.input("description: "),
	}

	var placement *services.Placement
	if pos := c.input("insert at order (blank = end): "); pos != "" {
		order, err := strconv.Atoi(pos)
		if err != nil {
			fmt.Fprintln(c.out, "order must be a number")
			return
		}
		scenes, err := c.scenes.ListScenes(c.project)
		if err != nil {
			c.printErr(err)
			return
		}
		if order >= 1 && order <= len(scenes) {
			placement = &services.Placement{ReferenceSceneID: scenes[order-1].ID, Position: models.PositionBefore}
		}
	}

	scene, err := c.scenes.CreateScene(c.project, fields, placement)
	if err != nil {
		c.printErr(err)
		return
	}
	fmt.Fprintf(c.out, "✅ scene %d created (%s)\n", scene.Order, scene.ID)
}

func (c *console) importFile(path string) error {
	if !c.requireProject() {
		return fmt.Errorf("no project")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		err = apperrors.WrapError(err, "read "+path, apperrors.ErrorTypeIO)
		c.printErr(err)
		return err
	}

	result, err := c.scenes.ImportScenes(c.project, filepath.Base(path), content)
	if err != nil {
		c.printErr(err)
		return err
	}
	fmt.Fprintf(c.out, "✅ %d scenes imported, %d rows skipped\n", result.Imported, result.Skipped)
	for _, w := range result.Warnings {
		fmt.Fprintf(c.out, "   ⚠️ %s\n", w)
	}
	return nil
}

// sceneAt 按显示序号查找场景
func (c *console) sceneAt(prompt string) (*models.Scene, bool) {
	order, err := strconv.Atoi(c.input(prompt))
	if err != nil {
		fmt.Fprintln(c.out, "order must be a number")
		return nil, false
	}
	scenes, err := c.scenes.ListScenes(c.project)
	if err != nil {
		c.printErr(err)
		return nil, false
	}
	if order < 1 || order > len(scenes) {
		fmt.Fprintf(c.out, "order must be between 1 and %d\n", len(scenes))
		return nil, false
	}
	return &scenes[order-1], true
}

func (c *console) moveScene() {
	if !c.requireProject() {
		return
	}
	scene, ok := c.sceneAt("scene order: ")
	if !ok {
		return
	}
	target, err := strconv.Atoi(c.input("new order: "))
	if err != nil {
		fmt.Fprintln(c.out, "order must be a number")
		return
	}
	if _, err := c.scenes.UpdateScene(c.project, scene.ID, models.ScenePatch{Order: &target}); err != nil {
		c.printErr(err)
		return
	}
	fmt.Fprintf(c.out, "✅ moved %q to %d\n", scene.Lyrics, target)
}

func (c *console) deleteScene() {
	if !c.requireProject() {
		return
	}
	scene, ok := c.sceneAt("scene order: ")
	if !ok {
		return
	}
	if err := c.scenes.DeleteScene(c.project, scene.ID); err != nil {
		c.printErr(err)
		return
	}
	fmt.Fprintf(c.out, "✅ deleted %q\n", scene.Lyrics)
}

func printBox(w io.Writer, title, content string) {
	wrappedLines := wrapContentForBox(content, cliBoxMaxWidth)
	maxWidth := utf8.RuneCountInString(title)
	for _, line := range wrappedLines {
		if n := utf8.RuneCountInString(line); n > maxWidth {
			maxWidth = n
		}
	}
	border := strings.Repeat("─", maxWidth+2)
	fmt.Fprintln(w, "┌"+border+"┐")
	if title != "" {
		fmt.Fprintf(w, "│ %s │\n", padRight(title, maxWidth))
		fmt.Fprintln(w, "├"+border+"┤")
	}
	for _, line := range wrappedLines {
		fmt.Fprintf(w, "│ %s │\n", padRight(line, maxWidth))
	}
	fmt.Fprintln(w, "└"+border+"┘")
}

func wrapContentForBox(content string, maxWidth int) []string {
	var result []string
	for _, rawLine := range strings.Split(content, "\n") {
		runes := []rune(strings.TrimRight(rawLine, " "))
		for len(runes) > maxWidth {
			result = append(result, string(runes[:maxWidth]))
			runes = runes[maxWidth:]
		}
		result = append(result, string(runes))
	}
	return result
}

func padRight(text string, width int) string {
	current := utf8.RuneCountInString(text)
	if current >= width {
		return text
	}
	return text + strings.Repeat(" ", width-current)
}

// internal/storage/project_store.go
package storage

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"time"

	apperrors "github.com/Corphon/MVScenePlanner/internal/errors"
)

var projectIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ProjectChecker 判断项目是否存在
type ProjectChecker interface {
	ProjectExists(projectID string) bool
}

// ProjectConfig 项目配置文件 config.json 的最小内容
type ProjectConfig struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidateProjectID 拒绝可能越出数据目录的项目ID
func ValidateProjectID(projectID string) error {
	if !projectIDPattern.MatchString(projectID) {
		return apperrors.NewValidationError(
			fmt.Sprintf("invalid project id %q: only letters, digits, '-' and '_' are allowed", projectID), nil)
	}
	return nil
}

// ProjectStore 项目目录访问。项目存在当且仅当 projects/<id>/config.json 存在。
type ProjectStore struct {
	fs *FileStorage
}

// NewProjectStore 创建项目存储
func NewProjectStore(fs *FileStorage) *ProjectStore {
	return &ProjectStore{fs: fs}
}

// ProjectExists 检查项目是否存在；非法ID视为不存在
func (p *ProjectStore) ProjectExists(projectID string) bool {
	if ValidateProjectID(projectID) != nil {
		return false
	}
	return p.fs.FileExists(projectDir(projectID), projectCfgFile)
}

// CreateProject 写入项目配置文件
func (p *ProjectStore) CreateProject(projectID, name string) (*ProjectConfig, error) {
	if err := ValidateProjectID(projectID); err != nil {
		return nil, err
	}
	if p.ProjectExists(projectID) {
		return nil, apperrors.NewConflictError(fmt.Sprintf("project already exists: %s", projectID), nil)
	}

	cfg := &ProjectConfig{ID: projectID, Name: name, CreatedAt: time.Now().UTC()}
	if err := p.fs.SaveJSONFile(projectDir(projectID), projectCfgFile, cfg); err != nil {
		return nil, apperrors.NewIOError("failed to create project", err)
	}
	return cfg, nil
}

// ListProjects 返回所有有效项目的ID，按字母排序
func (p *ProjectStore) ListProjects() ([]string, error) {
	dirs, err := p.fs.ListDirs(projectsDir)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, apperrors.NewIOError("failed to list projects", err)
	}

	ids := make([]string, 0, len(dirs))
	for _, d := range dirs {
		if p.ProjectExists(d) {
			ids = append(ids, d)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

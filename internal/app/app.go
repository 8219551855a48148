// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/Corphon/MVScenePlanner/internal/api"
	"github.com/Corphon/MVScenePlanner/internal/config"
	"github.com/Corphon/MVScenePlanner/internal/di"
	"github.com/Corphon/MVScenePlanner/internal/importer"
	"github.com/Corphon/MVScenePlanner/internal/services"
	"github.com/Corphon/MVScenePlanner/internal/storage"
	"github.com/Corphon/MVScenePlanner/internal/utils"
	"github.com/gin-gonic/gin"
)

const (
	shutdownTimeout       = 30 * time.Second
	metricsReportInterval = 5 * time.Minute
)

// server 抽象 http.Server，便于测试替换
type server interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// App 应用程序实例
type App struct {
	config    *config.Config
	container *di.Container
	router    http.Handler
	server    server
	stopChan  chan os.Signal

	stopMetrics context.CancelFunc
}

var (
	instance   *App
	instanceMu sync.Mutex
)

// GetApp 获取应用实例（单例）
func GetApp() *App {
	instanceMu.Lock()
	defer instanceMu.Unlock()

	if instance == nil {
		instance = &App{
			container: di.GetContainer(),
			stopChan:  make(chan os.Signal, 1),
		}
	}
	return instance
}

// Initialize 加载配置、初始化日志与服务并构建路由
func Initialize() error {
	cfg, err := config.InitConfig()
	if err != nil {
		return fmt.Errorf("初始化配置失败: %w", err)
	}
	return GetApp().initialize(cfg)
}

func (a *App) initialize(cfg *config.Config) error {
	a.config = cfg
	if a.container == nil {
		a.container = di.GetContainer()
	}

	if err := initLogger(cfg.LogDir, cfg.DebugMode); err != nil {
		return fmt.Errorf("初始化日志系统失败: %w", err)
	}

	if err := InitServices(cfg, a.container); err != nil {
		return fmt.Errorf("初始化服务失败: %w", err)
	}

	if cfg.DebugMode {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router, err := api.SetupRouter(cfg, a.container)
	if err != nil {
		return fmt.Errorf("设置路由失败: %w", err)
	}
	a.router = router
	a.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if metrics, err := di.Resolve[*utils.AppMetrics](a.container, di.ServiceMetrics); err == nil {
		ctx, cancel := context.WithCancel(context.Background())
		a.stopMetrics = cancel
		metrics.StartMetricsCollection(ctx, metricsReportInterval)
	}

	utils.GetLogger().Info("Application initialized", map[string]interface{}{
		"port":     cfg.Port,
		"data_dir": cfg.DataDir,
		"debug":    cfg.DebugMode,
		"services": a.container.GetNames(),
	})
	return nil
}

// initLogger 初始化日志：控制台 + 轮转日志文件
func initLogger(logDir string, debug bool) error {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("创建日志目录失败: %w", err)
	}
	if err := utils.InitLogger(filepath.Join(logDir, "app.log"), utils.DefaultLogFileOptions()); err != nil {
		return err
	}

	logger := utils.GetLogger()
	if debug {
		logger.SetLogLevel(utils.DEBUG)
	} else {
		logger.SetLogLevel(utils.INFO)
	}
	return nil
}

// InitServices 按依赖顺序创建并注册服务
func InitServices(cfg *config.Config, container *di.Container) error {
	fileStorage, err := storage.NewFileStorage(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("创建文件存储失败: %w", err)
	}
	container.Register(di.ServiceStorage, fileStorage)

	projects := storage.NewProjectStore(fileStorage)
	container.Register(di.ServiceProjects, projects)

	locks := services.NewLockManager()
	container.Register(di.ServiceLocks, locks)

	aliases := importer.DefaultAliases()
	if cfg.ImportAliasesFile != "" {
		if aliases, err = importer.LoadAliasFile(cfg.ImportAliasesFile); err != nil {
			return err
		}
		utils.GetLogger().Info("Loaded import header aliases", map[string]interface{}{
			"file": cfg.ImportAliasesFile,
		})
	}

	metrics := utils.NewAppMetrics(nil)
	container.Register(di.ServiceMetrics, metrics)

	wsManager := api.NewWebSocketManager(metrics.Collector())
	container.Register(di.ServiceWebSocket, wsManager)

	sceneService := services.NewSceneService(
		storage.NewSceneStore(fileStorage),
		projects,
		locks,
		importer.NewParser(aliases),
	)
	sceneService.SetNotifier(wsManager)
	sceneService.SetMetrics(metrics)
	container.Register(di.ServiceScene, sceneService)

	return nil
}

// Run 启动服务器并等待停止信号后优雅关闭
func Run() error {
	a := GetApp()
	if a.server == nil {
		return fmt.Errorf("应用未初始化")
	}

	errChan := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()
	if a.config != nil {
		utils.GetLogger().Infof("Server listening on :%s", a.config.Port)
	}

	signal.Notify(a.stopChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(a.stopChan)

	select {
	case err := <-errChan:
		a.cleanup()
		return fmt.Errorf("启动服务器失败: %w", err)
	case sig := <-a.stopChan:
		utils.GetLogger().Infof("Received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := a.server.Shutdown(ctx)
	a.cleanup()
	if err != nil {
		return fmt.Errorf("服务器强制关闭: %w", err)
	}
	return nil
}

// cleanup 释放后台任务与文件句柄
func (a *App) cleanup() {
	if a.stopMetrics != nil {
		a.stopMetrics()
	}
	if a.container != nil {
		if ws, err := di.Resolve[*api.WebSocketManager](a.container, di.ServiceWebSocket); err == nil {
			ws.Shutdown()
		}
		if limiter, err := di.Resolve[*api.RateLimiter](a.container, api.ServiceRateLimiter); err == nil {
			limiter.Close()
		}
		if locks, err := di.Resolve[*services.LockManager](a.container, di.ServiceLocks); err == nil {
			locks.Close()
		}
		if fs, err := di.Resolve[*storage.FileStorage](a.container, di.ServiceStorage); err == nil {
			fs.Close()
		}
	}

	logger := utils.GetLogger()
	logger.Info("Application stopped", nil)
	logger.Close()
}

// GetConfig 获取应用配置
func (a *App) GetConfig() *config.Config {
	return a.config
}

// Handler 返回已构建的路由
func (a *App) Handler() http.Handler {
	return a.router
}

// GetDIContainer 获取依赖注入容器
func GetDIContainer() *di.Container {
	return GetApp().container
}

// IsDebugMode 是否调试模式
func IsDebugMode() bool {
	a := GetApp()
	return a.config != nil && a.config.DebugMode
}

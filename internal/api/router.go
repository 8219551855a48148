// internal/api/router.go
package api

import (
	"fmt"
	"slices"

	"github.com/Corphon/MVScenePlanner/internal/config"
	"github.com/Corphon/MVScenePlanner/internal/di"
	"github.com/Corphon/MVScenePlanner/internal/services"
	"github.com/Corphon/MVScenePlanner/internal/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// ServiceRateLimiter 导入限流器在容器中的注册名，由调用方负责关闭
const ServiceRateLimiter = "import_rate_limiter"

// SetupRouter 配置HTTP路由
func SetupRouter(cfg *config.Config, container *di.Container) (*gin.Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置未初始化")
	}

	// 只从容器获取服务，不创建新实例
	sceneService, err := di.Resolve[*services.SceneService](container, di.ServiceScene)
	if err != nil {
		return nil, fmt.Errorf("场景服务未正确初始化: %w", err)
	}
	wsManager, err := di.Resolve[*WebSocketManager](container, di.ServiceWebSocket)
	if err != nil {
		return nil, fmt.Errorf("WebSocket 管理器未正确初始化: %w", err)
	}
	metrics, err := di.Resolve[*utils.AppMetrics](container, di.ServiceMetrics)
	if err != nil {
		return nil, fmt.Errorf("指标服务未正确初始化: %w", err)
	}

	handler := NewHandler(sceneService, wsManager, metrics, cfg.MaxUploadBytes())

	limiter := NewRateLimiter(cfg.ImportRatePerMin)
	container.Register(ServiceRateLimiter, limiter)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(AccessLogMiddleware(metrics))
	if cfg.DebugMode {
		r.Use(gin.Logger())
	}
	r.Use(cors.New(corsConfig(cfg.CORSOrigins)))

	// WebSocket 支持
	r.GET("/ws/projects/:project_id", handler.ProjectWebSocket)

	// ===============================
	// API路由组
	// ===============================
	api := r.Group("/api")
	{
		api.GET("/health", handler.Health)
		api.GET("/metrics", handler.GetMetrics)

		// 场景相关路由
		scenesGroup := api.Group("/projects/:project_id/scenes")
		{
			scenesGroup.GET("", handler.ListScenes)
			scenesGroup.POST("", handler.CreateScene)
			scenesGroup.POST("/reorder", handler.ReorderScenes)
			scenesGroup.POST("/import", RateLimitByIP(limiter, handler.Response), handler.ImportScenes)
			scenesGroup.GET("/:scene_id", handler.GetScene)
			scenesGroup.PUT("/:scene_id", handler.UpdateScene)
			scenesGroup.DELETE("/:scene_id", handler.DeleteScene)
		}
	}

	return r, nil
}

// corsConfig 构造跨域配置；包含 "*" 时允许任意来源
func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Accept", requestIDHeader)
	cfg.ExposeHeaders = []string{requestIDHeader, "Retry-After"}

	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

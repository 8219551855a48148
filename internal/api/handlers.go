// internal/api/handlers.go
package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "github.com/Corphon/MVScenePlanner/internal/errors"
	"github.com/Corphon/MVScenePlanner/internal/models"
	"github.com/Corphon/MVScenePlanner/internal/services"
	"github.com/Corphon/MVScenePlanner/internal/utils"
	"github.com/gin-gonic/gin"
)

// 多段表单的额外开销上限
const multipartOverhead = 1 << 20

// Handler 处理API请求
type Handler struct {
	SceneService *services.SceneService // 场景服务
	WS           *WebSocketManager      // 场景变更推送
	Response     *ResponseHelper        // 响应助手
	Metrics      *utils.AppMetrics

	maxUpload int64
	startedAt time.Time
}

// CreateSceneRequest 创建场景请求。reference_scene_id 与 position 需同时提供。
type CreateSceneRequest struct {
	models.SceneFields
	ReferenceSceneID string `json:"reference_scene_id"`
	Position         string `json:"position"`
}

// ReorderRequest 批量排序请求
type ReorderRequest struct {
	SceneIDs []string `json:"scene_ids" binding:"required"`
}

// NewHandler 创建处理器
func NewHandler(sceneService *services.SceneService, ws *WebSocketManager, metrics *utils.AppMetrics, maxUpload int64) *Handler {
	if metrics == nil {
		metrics = utils.NewAppMetrics(nil)
	}
	return &Handler{
		SceneService: sceneService,
		WS:           ws,
		Response:     NewResponseHelper(),
		Metrics:      metrics,
		maxUpload:    maxUpload,
		startedAt:    time.Now(),
	}
}

// fail 记录错误指标并写出映射后的错误响应
func (h *Handler) fail(c *gin.Context, err error) {
	code := ErrorInternalError
	if appErr, ok := apperrors.As(err); ok {
		code = appErr.Code
	}
	h.Metrics.RecordError(code, "api")
	h.Response.AppError(c, err)
}

// ListScenes 获取项目的场景列表
func (h *Handler) ListScenes(c *gin.Context) {
	scenes, err := h.SceneService.ListScenes(c.Param("project_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.Response.Success(c, scenes)
}

// GetScene 获取单个场景
func (h *Handler) GetScene(c *gin.Context) {
	scene, err := h.SceneService.GetScene(c.Param("project_id"), c.Param("scene_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.Response.Success(c, scene)
}

// CreateScene 创建场景，可插入到参考场景前后
func (h *Handler) CreateScene(c *gin.Context) {
	var req CreateSceneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "invalid request body", err.Error())
		return
	}

	var placement *services.Placement
	switch {
	case req.ReferenceSceneID != "":
		position := models.Position(req.Position)
		if !position.Valid() {
			h.fail(c, apperrors.NewValidationError("position must be \"before\" or \"after\"", nil))
			return
		}
		placement = &services.Placement{ReferenceSceneID: req.ReferenceSceneID, Position: position}
	case req.Position != "":
		h.fail(c, apperrors.NewValidationError("position requires reference_scene_id", nil))
		return
	}

	scene, err := h.SceneService.CreateScene(c.Param("project_id"), req.SceneFields, placement)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.Response.Created(c, scene, "scene created")
}

// UpdateScene 部分更新场景
func (h *Handler) UpdateScene(c *gin.Context) {
	var patch models.ScenePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		h.Response.BadRequest(c, "invalid request body", err.Error())
		return
	}

	scene, err := h.SceneService.UpdateScene(c.Param("project_id"), c.Param("scene_id"), patch)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.Response.Success(c, scene, "scene updated")
}

// DeleteScene 删除场景
func (h *Handler) DeleteScene(c *gin.Context) {
	sceneID := c.Param("scene_id")
	if err := h.SceneService.DeleteScene(c.Param("project_id"), sceneID); err != nil {
		h.fail(c, err)
		return
	}
	h.Response.Success(c, gin.H{"id": sceneID}, "scene deleted")
}

// ReorderScenes 按ID列表重排
func (h *Handler) ReorderScenes(c *gin.Context) {
	var req ReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "scene_ids is required", err.Error())
		return
	}

	scenes, err := h.SceneService.ReorderScenes(c.Param("project_id"), req.SceneIDs)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.Response.Success(c, scenes, "scenes reordered")
}

// ImportScenes 上传 CSV/TSV/TXT 文件并导入场景
func (h *Handler) ImportScenes(c *gin.Context) {
	projectID := c.Param("project_id")
	if err := h.SceneService.CheckProject(projectID); err != nil {
		h.fail(c, err)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+multipartOverhead)
	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.tooLarge(c)
			return
		}
		h.Response.Error(c, http.StatusBadRequest, ErrorFileMissing, "no file uploaded")
		return
	}
	if file.Size > h.maxUpload {
		h.tooLarge(c)
		return
	}

	f, err := file.Open()
	if err != nil {
		h.fail(c, apperrors.NewIOError("failed to read upload", err))
		return
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, h.maxUpload+1))
	if err != nil {
		h.fail(c, apperrors.NewIOError("failed to read upload", err))
		return
	}
	if int64(len(content)) > h.maxUpload {
		h.tooLarge(c)
		return
	}

	result, err := h.SceneService.ImportScenes(projectID, file.Filename, content)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.Response.Success(c, result,
		fmt.Sprintf("%d scenes imported, %d rows skipped", result.Imported, result.Skipped))
}

func (h *Handler) tooLarge(c *gin.Context) {
	h.Metrics.RecordError(ErrorFileTooLarge, "api")
	h.Response.Error(c, http.StatusRequestEntityTooLarge, ErrorFileTooLarge,
		fmt.Sprintf("file exceeds the %d byte upload limit", h.maxUpload))
}

// ProjectWebSocket 订阅项目的场景变更
func (h *Handler) ProjectWebSocket(c *gin.Context) {
	projectID := c.Param("project_id")
	if err := h.SceneService.CheckProject(projectID); err != nil {
		h.fail(c, err)
		return
	}
	// 升级失败时 upgrader 已写出错误响应
	if err := h.WS.Serve(c.Writer, c.Request, projectID); err != nil {
		utils.GetLogger().Warn("WebSocket upgrade failed", map[string]interface{}{
			"project_id": projectID,
			"error":      err.Error(),
		})
	}
}

// Health 健康检查
func (h *Handler) Health(c *gin.Context) {
	h.Response.Success(c, gin.H{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	})
}

// GetMetrics 运行指标
func (h *Handler) GetMetrics(c *gin.Context) {
	h.Response.Success(c, gin.H{
		"metrics":   h.Metrics.Collector().GetMetrics(),
		"websocket": h.WS.GetStatus(),
	})
}

// internal/services/scene_service.go
package services

import (
	"fmt"
	"regexp"
	"time"

	apperrors "github.com/Corphon/MVScenePlanner/internal/errors"
	"github.com/Corphon/MVScenePlanner/internal/importer"
	"github.com/Corphon/MVScenePlanner/internal/models"
	"github.com/Corphon/MVScenePlanner/internal/ordering"
	"github.com/Corphon/MVScenePlanner/internal/storage"
	"github.com/Corphon/MVScenePlanner/internal/utils"
	"github.com/google/uuid"
)

// startTimePattern M:SS 或 MM:SS（分钟位数不限）
var startTimePattern = regexp.MustCompile(`^\d+:\d{2}$`)

// Placement 新场景相对参考场景的位置
type Placement struct {
	ReferenceSceneID string
	Position         models.Position
}

// ImportResult 导入结果
type ImportResult struct {
	Scenes   []models.Scene `json:"scenes"`
	Warnings []string       `json:"warnings"`
	Imported int            `json:"imported"`
	Skipped  int            `json:"skipped"`
}

// SceneService 场景的增删改查、排序与导入
type SceneService struct {
	scenes   storage.SceneRepository
	projects storage.ProjectChecker
	locks    *LockManager
	parser   *importer.Parser

	notifier ChangeNotifier
	metrics  *utils.AppMetrics
	logger   *utils.Logger

	now   func() time.Time
	newID func() string
}

// NewSceneService 创建场景服务
func NewSceneService(scenes storage.SceneRepository, projects storage.ProjectChecker, locks *LockManager, parser *importer.Parser) *SceneService {
	if locks == nil {
		locks = NewLockManager()
	}
	if parser == nil {
		parser = importer.NewParser(importer.DefaultAliases())
	}
	return &SceneService{
		scenes:   scenes,
		projects: projects,
		locks:    locks,
		parser:   parser,
		notifier: noopNotifier{},
		metrics:  utils.NewAppMetrics(nil),
		logger:   utils.GetLogger(),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return "scene_" + uuid.NewString() },
	}
}

// SetNotifier 设置变更通知接收方，需在开始处理请求前调用
func (s *SceneService) SetNotifier(n ChangeNotifier) {
	if n == nil {
		n = noopNotifier{}
	}
	s.notifier = n
}

// SetMetrics 替换指标记录器
func (s *SceneService) SetMetrics(m *utils.AppMetrics) {
	if m != nil {
		s.metrics = m
	}
}

// ValidateStartTime 检查开始时间格式
func ValidateStartTime(startTime string) error {
	if !startTimePattern.MatchString(startTime) {
		return apperrors.NewValidationError(
			fmt.Sprintf("start_time must be in format M:SS or MM:SS, got %q", startTime), nil)
	}
	return nil
}

// CheckProject 校验项目ID并确认项目存在
func (s *SceneService) CheckProject(projectID string) error {
	if err := storage.ValidateProjectID(projectID); err != nil {
		return err
	}
	if !s.projects.ProjectExists(projectID) {
		return apperrors.NewProjectNotFoundError(projectID)
	}
	return nil
}

// ListScenes 返回项目的全部场景，按 order 排序
func (s *SceneService) ListScenes(projectID string) ([]models.Scene, error) {
	if err := s.CheckProject(projectID); err != nil {
		return nil, err
	}

	var scenes []models.Scene
	err := s.locks.ExecuteWithProjectReadLock(projectID, func() error {
		var err error
		scenes, err = s.scenes.LoadAll(projectID)
		return err
	})
	return scenes, err
}

// GetScene 返回单个场景
func (s *SceneService) GetScene(projectID, sceneID string) (*models.Scene, error) {
	scenes, err := s.ListScenes(projectID)
	if err != nil {
		return nil, err
	}
	idx := ordering.IndexOf(scenes, sceneID)
	if idx < 0 {
		return nil, apperrors.NewSceneNotFoundError(sceneID)
	}
	scene := scenes[idx]
	return &scene, nil
}

// mutate 在项目写锁内读取、修改并保存场景集合。fn 返回新集合；出错时不写入。
func (s *SceneService) mutate(projectID string, fn func([]models.Scene) ([]models.Scene, error)) ([]models.Scene, error) {
	if err := s.CheckProject(projectID); err != nil {
		return nil, err
	}

	var result []models.Scene
	err := s.locks.ExecuteWithProjectLock(projectID, func() error {
		current, err := s.scenes.LoadAll(projectID)
		if err != nil {
			return err
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		if err := ordering.Validate(next); err != nil {
			return apperrors.NewProcessingError("scene order became inconsistent", err)
		}
		if err := s.scenes.SaveAll(projectID, next); err != nil {
			return err
		}
		result = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CreateScene 创建场景。placement 为空时追加到末尾，否则插入到参考场景之前或之后。
func (s *SceneService) CreateScene(projectID string, fields models.SceneFields, placement *Placement) (*models.Scene, error) {
	if fields.StartTime == "" {
		fields.StartTime = models.DefaultStartTime
	}
	if err := ValidateStartTime(fields.StartTime); err != nil {
		return nil, err
	}

	now := s.now()
	scene := models.Scene{ID: s.newID(), CreatedAt: now, UpdatedAt: now}
	fields.Apply(&scene)

	saved, err := s.mutate(projectID, func(current []models.Scene) ([]models.Scene, error) {
		if placement == nil {
			return ordering.Append(current, scene), nil
		}
		return ordering.InsertRelative(current, scene, placement.ReferenceSceneID, placement.Position)
	})
	if err != nil {
		return nil, err
	}

	created := saved[ordering.IndexOf(saved, scene.ID)]
	s.logger.Info("Scene created", map[string]interface{}{
		"project_id": projectID,
		"scene_id":   created.ID,
		"order":      created.Order,
	})
	s.publish(projectID, ActionCreated, []string{created.ID})
	s.metrics.RecordSceneMutation(string(ActionCreated))
	return &created, nil
}

// UpdateScene 部分更新场景。设置 Order 时调用 ordering.Move 调整其余场景。
func (s *SceneService) UpdateScene(projectID, sceneID string, patch models.ScenePatch) (*models.Scene, error) {
	if patch.StartTime != nil {
		if *patch.StartTime == "" {
			blank := models.DefaultStartTime
			patch.StartTime = &blank
		}
		if err := ValidateStartTime(*patch.StartTime); err != nil {
			return nil, err
		}
	}

	var changed []string
	saved, err := s.mutate(projectID, func(current []models.Scene) ([]models.Scene, error) {
		idx := ordering.IndexOf(current, sceneID)
		if idx < 0 {
			return nil, apperrors.NewSceneNotFoundError(sceneID)
		}

		next := append([]models.Scene(nil), current...)
		applyPatch(&next[idx], patch)
		next[idx].UpdatedAt = s.now()

		if patch.Order != nil && *patch.Order != next[idx].Order {
			moved, err := ordering.Move(next, sceneID, *patch.Order)
			if err != nil {
				return nil, err
			}
			for id := range ordering.Changed(current, moved) {
				if id != sceneID {
					changed = append(changed, id)
				}
			}
			next = moved
		}
		return next, nil
	})
	if err != nil {
		return nil, err
	}

	updated := saved[ordering.IndexOf(saved, sceneID)]
	s.publish(projectID, ActionUpdated, append([]string{sceneID}, changed...))
	s.metrics.RecordSceneMutation(string(ActionUpdated))
	return &updated, nil
}

func applyPatch(scene *models.Scene, patch models.ScenePatch) {
	setString := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	setString(&scene.StartTime, patch.StartTime)
	setString(&scene.Lyrics, patch.Lyrics)
	setString(&scene.Description, patch.Description)
	setString(&scene.CameraDirection, patch.CameraDirection)
	setString(&scene.ImagePrompt, patch.ImagePrompt)
	setString(&scene.VideoPrompt, patch.VideoPrompt)

	// 空字符串解除媒体关联
	setFile := func(v *string) *string {
		if *v == "" {
			return nil
		}
		id := *v
		return &id
	}
	if patch.ImageFileID != nil {
		scene.ImageFileID = setFile(patch.ImageFileID)
	}
	if patch.VideoFileID != nil {
		scene.VideoFileID = setFile(patch.VideoFileID)
	}
}

// ReorderScenes 按给定ID顺序重排，列表必须包含项目的全部场景
func (s *SceneService) ReorderScenes(projectID string, sceneIDs []string) ([]models.Scene, error) {
	saved, err := s.mutate(projectID, func(current []models.Scene) ([]models.Scene, error) {
		return ordering.BulkReorder(current, sceneIDs)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Scenes reordered", map[string]interface{}{
		"project_id": projectID,
		"count":      len(saved),
	})
	s.publish(projectID, ActionReordered, append([]string(nil), sceneIDs...))
	s.metrics.RecordSceneMutation(string(ActionReordered))
	return saved, nil
}

// DeleteScene 删除场景并重新编号
func (s *SceneService) DeleteScene(projectID, sceneID string) error {
	if _, err := s.mutate(projectID, func(current []models.Scene) ([]models.Scene, error) {
		return ordering.DeleteAndRenumber(current, sceneID)
	}); err != nil {
		return err
	}

	s.logger.Info("Scene deleted", map[string]interface{}{
		"project_id": projectID,
		"scene_id":   sceneID,
	})
	s.publish(projectID, ActionDeleted, []string{sceneID})
	s.metrics.RecordSceneMutation(string(ActionDeleted))
	return nil
}

// ImportScenes 解析上传文件并将结果追加到项目末尾。所有场景在一次写入中保存。
func (s *SceneService) ImportScenes(projectID, filename string, content []byte) (*ImportResult, error) {
	if err := s.CheckProject(projectID); err != nil {
		return nil, err
	}

	started := time.Now()
	parsed, err := s.parser.ParseFile(filename, content)
	if err != nil {
		if apperrors.IsEmptyImportError(err) {
			if appErr, ok := apperrors.As(err); ok {
				s.metrics.RecordImport(0, len(appErr.Details), time.Since(started))
			}
		}
		return nil, err
	}

	warnings := parsed.WarningStrings()
	now := s.now()
	var accepted []models.Scene
	for _, draft := range parsed.Drafts {
		if err := ValidateStartTime(draft.StartTime); err != nil {
			warnings = append(warnings, fmt.Sprintf("scene %d: invalid start time %q", draft.ProposedOrder, draft.StartTime))
			continue
		}
		scene := models.Scene{ID: s.newID(), CreatedAt: now, UpdatedAt: now}
		draft.Fields().Apply(&scene)
		accepted = append(accepted, scene)
	}
	if len(accepted) == 0 {
		s.metrics.RecordImport(0, len(warnings), time.Since(started))
		return nil, apperrors.NewEmptyImportError(warnings)
	}

	var appended []models.Scene
	if _, err := s.mutate(projectID, func(current []models.Scene) ([]models.Scene, error) {
		next := ordering.AppendAll(current, accepted)
		appended = next[len(current):]
		return next, nil
	}); err != nil {
		return nil, err
	}

	result := &ImportResult{
		Scenes:   append([]models.Scene(nil), appended...),
		Warnings: warnings,
		Imported: len(accepted),
		Skipped:  len(warnings),
	}
	ids := make([]string, 0, len(accepted))
	for _, scene := range accepted {
		ids = append(ids, scene.ID)
	}

	s.logger.Info("Scenes imported", map[string]interface{}{
		"project_id": projectID,
		"file":       filename,
		"imported":   result.Imported,
		"skipped":    result.Skipped,
		"header":     parsed.Header,
	})
	for _, w := range warnings {
		s.logger.Debugf("import %s: %s", filename, w)
	}
	s.publish(projectID, ActionImported, ids)
	s.metrics.RecordImport(result.Imported, result.Skipped, time.Since(started))
	return result, nil
}

func (s *SceneService) publish(projectID string, action ChangeAction, sceneIDs []string) {
	s.notifier.NotifySceneChange(ChangeEvent{
		Type:      EventScenesChanged,
		ProjectID: projectID,
		Action:    action,
		SceneIDs:  sceneIDs,
		Timestamp: s.now(),
	})
}

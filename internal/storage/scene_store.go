// internal/storage/scene_store.go
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	apperrors "github.com/Corphon/MVScenePlanner/internal/errors"
	"github.com/Corphon/MVScenePlanner/internal/models"
	"github.com/Corphon/MVScenePlanner/internal/ordering"
)

const (
	projectsDir    = "projects"
	scenesFile     = "scenes.json"
	projectCfgFile = "config.json"
)

// SceneRepository 场景集合的持久化接口
type SceneRepository interface {
	LoadAll(projectID string) ([]models.Scene, error)
	SaveAll(projectID string, scenes []models.Scene) error
}

// SceneStore 将每个项目的场景保存为 projects/<id>/scenes.json
type SceneStore struct {
	fs *FileStorage
}

// NewSceneStore 创建场景存储
func NewSceneStore(fs *FileStorage) *SceneStore {
	return &SceneStore{fs: fs}
}

func projectDir(projectID string) string {
	return filepath.Join(projectsDir, projectID)
}

// LoadAll 读取项目的全部场景并按 order 排序。文件不存在时返回空集合。
func (s *SceneStore) LoadAll(projectID string) ([]models.Scene, error) {
	var doc models.SceneCollection
	err := s.fs.LoadJSONFile(projectDir(projectID), scenesFile, &doc)
	if errors.Is(err, os.ErrNotExist) {
		return []models.Scene{}, nil
	}
	if err != nil {
		return nil, apperrors.NewIOError(fmt.Sprintf("failed to load scenes of project %s", projectID), err)
	}
	if doc.Scenes == nil {
		return []models.Scene{}, nil
	}
	return ordering.Normalize(doc.Scenes), nil
}

// SaveAll 覆盖写入项目的全部场景，按 order 排序保存
func (s *SceneStore) SaveAll(projectID string, scenes []models.Scene) error {
	doc := models.SceneCollection{Scenes: ordering.Normalize(scenes)}
	if err := s.fs.SaveJSONFile(projectDir(projectID), scenesFile, doc); err != nil {
		return apperrors.NewIOError(fmt.Sprintf("failed to save scenes of project %s", projectID), err)
	}
	return nil
}

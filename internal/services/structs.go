// internal/services/structs.go
package services

import "time"

// EventScenesChanged 场景集合变更事件类型
const EventScenesChanged = "scenes_changed"

// ChangeAction 触发变更的操作
type ChangeAction string

const (
	ActionCreated   ChangeAction = "created"
	ActionUpdated   ChangeAction = "updated"
	ActionDeleted   ChangeAction = "deleted"
	ActionReordered ChangeAction = "reordered"
	ActionImported  ChangeAction = "imported"
)

// ChangeEvent 推送给订阅者的场景变更
type ChangeEvent struct {
	Type      string       `json:"type"`
	ProjectID string       `json:"project_id"`
	Action    ChangeAction `json:"action"`
	SceneIDs  []string     `json:"scene_ids"`
	Timestamp time.Time    `json:"timestamp"`
}

// ChangeNotifier 接收成功写入后的变更事件，实现不得阻塞
type ChangeNotifier interface {
	NotifySceneChange(event ChangeEvent)
}

type noopNotifier struct{}

func (noopNotifier) NotifySceneChange(ChangeEvent) {}

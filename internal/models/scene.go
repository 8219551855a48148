// internal/models/scene.go
package models

import (
	"time"
)

// DefaultStartTime 未填写开始时间时使用的默认值
const DefaultStartTime = "0:00"

// Scene 表示项目中的一个镜头（一行歌词）
type Scene struct {
	ID              string    `json:"id"`
	Order           int       `json:"order"`
	StartTime       string    `json:"start_time"`
	Lyrics          string    `json:"lyrics"`
	Description     string    `json:"description"`
	CameraDirection string    `json:"camera_direction"`
	ImagePrompt     string    `json:"image_prompt"`
	VideoPrompt     string    `json:"video_prompt"`
	ImageFileID     *string   `json:"image_file_id"` // 媒体库弱引用
	VideoFileID     *string   `json:"video_file_id"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// SceneDraft 导入解析得到的临时场景，尚未分配ID
type SceneDraft struct {
	StartTime       string `json:"start_time"`
	Lyrics          string `json:"lyrics"`
	Description     string `json:"description"`
	CameraDirection string `json:"camera_direction"`
	ImagePrompt     string `json:"image_prompt"`
	VideoPrompt     string `json:"video_prompt"`
	ProposedOrder   int    `json:"proposed_order"`
}

// SceneCollection 是 scenes.json 的文件格式
type SceneCollection struct {
	Scenes []Scene `json:"scenes"`
}

// Position 相对参考场景的插入位置
type Position string

const (
	PositionBefore Position = "before"
	PositionAfter  Position = "after"
)

// Valid reports whether p is one of the two supported positions.
func (p Position) Valid() bool {
	return p == PositionBefore || p == PositionAfter
}

// SceneFields 可由用户编辑的文本字段
type SceneFields struct {
	StartTime       string `json:"start_time"`
	Lyrics          string `json:"lyrics"`
	Description     string `json:"description"`
	CameraDirection string `json:"camera_direction"`
	ImagePrompt     string `json:"image_prompt"`
	VideoPrompt     string `json:"video_prompt"`
}

// Fields returns the editable text of a draft.
func (d SceneDraft) Fields() SceneFields {
	return SceneFields{
		StartTime:       d.StartTime,
		Lyrics:          d.Lyrics,
		Description:     d.Description,
		CameraDirection: d.CameraDirection,
		ImagePrompt:     d.ImagePrompt,
		VideoPrompt:     d.VideoPrompt,
	}
}

// Apply copies the text fields onto the scene.
func (f SceneFields) Apply(s *Scene) {
	s.StartTime = f.StartTime
	s.Lyrics = f.Lyrics
	s.Description = f.Description
	s.CameraDirection = f.CameraDirection
	s.ImagePrompt = f.ImagePrompt
	s.VideoPrompt = f.VideoPrompt
}

// ScenePatch 部分更新；nil 字段保持不变
type ScenePatch struct {
	StartTime       *string `json:"start_time"`
	Lyrics          *string `json:"lyrics"`
	Description     *string `json:"description"`
	CameraDirection *string `json:"camera_direction"`
	ImagePrompt     *string `json:"image_prompt"`
	VideoPrompt     *string `json:"video_prompt"`
	ImageFileID     *string `json:"image_file_id"` // 空字符串表示解除关联
	VideoFileID     *string `json:"video_file_id"`
	Order           *int    `json:"order"`
}

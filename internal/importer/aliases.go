package importer

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Field identifies one text column of a scene.
type Field int

const (
	FieldStartTime Field = iota
	FieldLyrics
	FieldDescription
	FieldCameraDirection
	FieldImagePrompt
	FieldVideoPrompt

	fieldCount
)

// Fields lists every field in default column order.
var Fields = [fieldCount]Field{
	FieldStartTime,
	FieldLyrics,
	FieldDescription,
	FieldCameraDirection,
	FieldImagePrompt,
	FieldVideoPrompt,
}

var fieldKeys = [fieldCount]string{
	"start_time",
	"lyrics",
	"description",
	"camera_direction",
	"image_prompt",
	"video_prompt",
}

func (f Field) String() string {
	if f < 0 || f >= fieldCount {
		return fmt.Sprintf("field(%d)", int(f))
	}
	return fieldKeys[f]
}

// ParseField maps a snake_case key such as "image_prompt" to its Field.
func ParseField(key string) (Field, bool) {
	for i, k := range fieldKeys {
		if k == key {
			return Field(i), true
		}
	}
	return 0, false
}

// AliasTable holds the header labels recognised for each field, in match
// priority order.
type AliasTable [fieldCount][]string

// DefaultAliases returns the built-in English and Japanese labels.
func DefaultAliases() AliasTable {
	return AliasTable{
		FieldStartTime:       {"start_time", "start time", "開始時間"},
		FieldLyrics:          {"lyrics", "lyric", "歌詞"},
		FieldDescription:     {"description", "scene description", "シーン説明", "説明"},
		FieldCameraDirection: {"camera_direction", "camera direction", "カメラ/演出", "カメラ演出", "演出"},
		FieldImagePrompt:     {"image_prompt", "image prompt", "英語生成プロンプト", "英語プロンプト", "英語生成"},
		FieldVideoPrompt:     {"video_prompt", "video prompt", "動画生成プロンプト", "動画プロンプト", "動画生成"},
	}
}

// Merge appends extra labels after the existing ones. Duplicates are dropped.
func (t AliasTable) Merge(extra map[Field][]string) AliasTable {
	out := t
	for f, labels := range extra {
		if f < 0 || f >= fieldCount {
			continue
		}
		merged := append([]string(nil), t[f]...)
		for _, l := range labels {
			l = strings.TrimSpace(l)
			if l == "" || containsLabel(merged, l) {
				continue
			}
			merged = append(merged, l)
		}
		out[f] = merged
	}
	return out
}

// Matches reports whether cell is one of the labels of f. The comparison
// accepts an exact match or a case-insensitive one.
func (t AliasTable) Matches(f Field, cell string) bool {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return false
	}
	for _, alias := range t[f] {
		if cell == alias || strings.EqualFold(cell, alias) {
			return true
		}
	}
	return false
}

func containsLabel(labels []string, l string) bool {
	for _, existing := range labels {
		if existing == l {
			return true
		}
	}
	return false
}

// LoadAliasFile reads extra header labels from a YAML document keyed by
// field name, for example:
//
//	lyrics: ["text", "詞"]
//	start_time: ["time"]
//
// The labels are merged after the built-in ones.
func LoadAliasFile(path string) (AliasTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return AliasTable{}, fmt.Errorf("read alias file: %w", err)
	}

	var doc map[string][]string
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return AliasTable{}, fmt.Errorf("parse alias file %s: %w", path, err)
	}

	extra := make(map[Field][]string, len(doc))
	for key, labels := range doc {
		f, ok := ParseField(strings.TrimSpace(key))
		if !ok {
			return AliasTable{}, fmt.Errorf("alias file %s: unknown field %q", path, key)
		}
		extra[f] = labels
	}
	return DefaultAliases().Merge(extra), nil
}

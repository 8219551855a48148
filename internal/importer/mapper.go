package importer

import (
	"strings"

	"github.com/Corphon/MVScenePlanner/internal/models"
)

// minHeaderMatches is how many fields must resolve before the first row is
// taken as a header rather than data.
const minHeaderMatches = 2

// ColumnMap gives the cell index of each field.
type ColumnMap [fieldCount]int

// DefaultColumns is the positional layout used when no header is found:
// start time, lyrics, description, camera direction, image prompt, video prompt.
func DefaultColumns() ColumnMap {
	var m ColumnMap
	for i, f := range Fields {
		m[f] = i
	}
	return m
}

// resolveHeader tries to read row as a header. Each field takes the first
// cell matching one of its aliases; unresolved fields keep their default
// column. matched counts the resolved fields.
func resolveHeader(row Row, aliases AliasTable) (cols ColumnMap, matched int) {
	cols = DefaultColumns()
	if row.Blank() {
		return cols, 0
	}

	for _, f := range Fields {
		for i, cell := range row.Cells {
			if aliases.Matches(f, cell) {
				cols[f] = i
				matched++
				break
			}
		}
	}
	return cols, matched
}

// detectHeader decides whether the first row is a header and returns the
// column layout for the data rows.
func detectHeader(first Row, aliases AliasTable) (ColumnMap, bool) {
	cols, matched := resolveHeader(first, aliases)
	if matched >= minHeaderMatches {
		return cols, true
	}
	return DefaultColumns(), false
}

// field returns the trimmed cell for f, or "" when the row is too short.
func (m ColumnMap) field(row Row, f Field) string {
	v, _ := row.Cell(m[f])
	return strings.TrimSpace(v)
}

// mapRow turns a data row into a draft. ok is false when the row must be
// skipped; reason is empty for rows that are skipped silently.
func (m ColumnMap) mapRow(row Row) (draft models.SceneDraft, reason string, ok bool) {
	if row.Blank() {
		return draft, "", false
	}
	if len(row.Cells) < 2 {
		return draft, "expected at least 2 columns", false
	}

	lyrics := m.field(row, FieldLyrics)
	if lyrics == "" {
		return draft, "lyrics are empty", false
	}

	draft = models.SceneDraft{
		StartTime:       m.field(row, FieldStartTime),
		Lyrics:          lyrics,
		Description:     m.field(row, FieldDescription),
		CameraDirection: m.field(row, FieldCameraDirection),
		ImagePrompt:     m.field(row, FieldImagePrompt),
		VideoPrompt:     m.field(row, FieldVideoPrompt),
	}
	if draft.StartTime == "" {
		draft.StartTime = models.DefaultStartTime
	}
	return draft, "", true
}

// Package ordering keeps the scenes of a project in a dense 1..N order.
//
// All functions are pure: they validate first, then work on a copy of the
// input and return it. A failed call never changes anything, so callers can
// persist the returned slice as a whole.
package ordering

import (
	"fmt"
	"sort"

	apperrors "github.com/Corphon/MVScenePlanner/internal/errors"
	"github.com/Corphon/MVScenePlanner/internal/models"
)

// Normalize returns a copy sorted by order. Ties keep their input position.
func Normalize(scenes []models.Scene) []models.Scene {
	out := clone(scenes)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Order < out[j].Order
	})
	return out
}

// Renumber sorts a copy by order and assigns 1..N.
func Renumber(scenes []models.Scene) []models.Scene {
	out := Normalize(scenes)
	for i := range out {
		out[i].Order = i + 1
	}
	return out
}

// Validate checks that the orders are exactly {1..N}.
func Validate(scenes []models.Scene) error {
	seen := make([]bool, len(scenes)+1)
	for _, s := range scenes {
		if s.Order < 1 || s.Order > len(scenes) {
			return fmt.Errorf("scene %s has order %d outside 1..%d", s.ID, s.Order, len(scenes))
		}
		if seen[s.Order] {
			return fmt.Errorf("order %d is used twice", s.Order)
		}
		seen[s.Order] = true
	}
	return nil
}

// IndexOf returns the slice index of the scene with id, or -1.
func IndexOf(scenes []models.Scene, id string) int {
	for i := range scenes {
		if scenes[i].ID == id {
			return i
		}
	}
	return -1
}

// Append places s after every existing scene.
func Append(scenes []models.Scene, s models.Scene) []models.Scene {
	return AppendAll(scenes, []models.Scene{s})
}

// AppendAll places news after every existing scene, keeping their relative
// order. The new scenes are the tail of the returned slice.
func AppendAll(scenes []models.Scene, news []models.Scene) []models.Scene {
	maxOrder := 0
	for _, existing := range scenes {
		if existing.Order > maxOrder {
			maxOrder = existing.Order
		}
	}
	out := make([]models.Scene, len(scenes), len(scenes)+len(news))
	copy(out, scenes)
	for i, s := range news {
		s.Order = maxOrder + i + 1
		out = append(out, s)
	}
	return out
}

// InsertRelative places s directly before or after the reference scene.
// Scenes at or behind the insertion point move back by one.
func InsertRelative(scenes []models.Scene, s models.Scene, referenceID string, position models.Position) ([]models.Scene, error) {
	if !position.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("position must be %q or %q, got %q",
			models.PositionBefore, models.PositionAfter, position), nil)
	}
	ref := IndexOf(scenes, referenceID)
	if ref < 0 {
		return nil, apperrors.NewReferenceNotFoundError(referenceID)
	}

	target := scenes[ref].Order
	if position == models.PositionAfter {
		target++
	}
	if target < 1 {
		target = 1
	}

	out := clone(scenes)
	for i := range out {
		if out[i].Order >= target {
			out[i].Order++
		}
	}
	s.Order = target
	return Normalize(append(out, s)), nil
}

// BulkReorder assigns order i+1 to ids[i]. ids must name every scene of the
// collection exactly once; partial lists are rejected rather than dropping
// the scenes they leave out.
func BulkReorder(scenes []models.Scene, ids []string) ([]models.Scene, error) {
	if len(ids) == 0 {
		return nil, apperrors.NewValidationError("scene_ids must not be empty", nil)
	}

	index := make(map[string]int, len(scenes))
	for i, s := range scenes {
		index[s.ID] = i
	}

	listed := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := index[id]; !ok {
			return nil, apperrors.NewValidationError(fmt.Sprintf("unknown scene id %q", id), nil)
		}
		if listed[id] {
			return nil, apperrors.NewValidationError(fmt.Sprintf("scene id %q listed twice", id), nil)
		}
		listed[id] = true
	}
	if len(ids) != len(scenes) {
		var missing []string
		for _, s := range scenes {
			if !listed[s.ID] {
				missing = append(missing, s.ID)
			}
		}
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("scene_ids must list all %d scenes, missing %v", len(scenes), missing), nil)
	}

	out := make([]models.Scene, 0, len(ids))
	for i, id := range ids {
		s := scenes[index[id]]
		s.Order = i + 1
		out = append(out, s)
	}
	return out, nil
}

// DeleteAndRenumber removes the scene and closes the gap.
func DeleteAndRenumber(scenes []models.Scene, id string) ([]models.Scene, error) {
	idx := IndexOf(scenes, id)
	if idx < 0 {
		return nil, apperrors.NewSceneNotFoundError(id)
	}

	rest := make([]models.Scene, 0, len(scenes)-1)
	rest = append(rest, scenes[:idx]...)
	rest = append(rest, scenes[idx+1:]...)
	return Renumber(rest), nil
}

// Move gives the scene an explicit position, shifting the scenes between
// its old and new place by one.
func Move(scenes []models.Scene, id string, newOrder int) ([]models.Scene, error) {
	if newOrder < 1 || newOrder > len(scenes) {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("order must be between 1 and %d, got %d", len(scenes), newOrder), nil)
	}
	idx := IndexOf(scenes, id)
	if idx < 0 {
		return nil, apperrors.NewSceneNotFoundError(id)
	}

	sorted := Renumber(scenes)
	from := IndexOf(sorted, id)
	moved := sorted[from]
	sorted = append(sorted[:from], sorted[from+1:]...)

	out := make([]models.Scene, 0, len(scenes))
	out = append(out, sorted[:newOrder-1]...)
	out = append(out, moved)
	out = append(out, sorted[newOrder-1:]...)
	for i := range out {
		out[i].Order = i + 1
	}
	return out, nil
}

// Changed returns the IDs whose order differs between before and after.
// Scenes missing from before count as changed.
func Changed(before, after []models.Scene) map[string]bool {
	prev := make(map[string]int, len(before))
	for _, s := range before {
		prev[s.ID] = s.Order
	}
	changed := make(map[string]bool)
	for _, s := range after {
		if o, ok := prev[s.ID]; !ok || o != s.Order {
			changed[s.ID] = true
		}
	}
	return changed
}

func clone(scenes []models.Scene) []models.Scene {
	out := make([]models.Scene, len(scenes))
	copy(out, scenes)
	return out
}

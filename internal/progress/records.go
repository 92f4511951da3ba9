// Package progress holds the exercise record store and the derived
// percentage and badge presentation for a level.
package progress

import "github.com/felixgeelhaar/playground/internal/domain"

// Initialize builds the default record list for a level's exercises.
func Initialize(defs []domain.ExerciseDef) []domain.ExerciseRecord {
	records := make([]domain.ExerciseRecord, len(defs))
	for i, d := range defs {
		records[i] = domain.ExerciseRecord{ID: d.ID, Name: d.Name}
	}
	return records
}

// MarkComplete returns a copy of records with the matching exercise completed.
// An unknown id leaves the copy unchanged.
func MarkComplete(records []domain.ExerciseRecord, id int) []domain.ExerciseRecord {
	out := make([]domain.ExerciseRecord, len(records))
	copy(out, records)
	for i := range out {
		if out[i].ID == id {
			out[i].Completed = true
			break
		}
	}
	return out
}

// AllComplete reports whether every record is completed.
// An empty list is never complete.
func AllComplete(records []domain.ExerciseRecord) bool {
	if len(records) == 0 {
		return false
	}
	return CompletedCount(records) == len(records)
}

// CompletedCount counts completed records.
func CompletedCount(records []domain.ExerciseRecord) int {
	n := 0
	for _, r := range records {
		if r.Completed {
			n++
		}
	}
	return n
}

// Overlay applies persisted completion flags onto the defaults.
// Records are matched by id. Persisted ids that are not defined are dropped
// and the defaults keep their order, length and names.
func Overlay(defaults, persisted []domain.ExerciseRecord) []domain.ExerciseRecord {
	done := make(map[int]bool, len(persisted))
	for _, p := range persisted {
		if p.Completed {
			done[p.ID] = true
		}
	}

	out := make([]domain.ExerciseRecord, len(defaults))
	copy(out, defaults)
	for i := range out {
		if done[out[i].ID] {
			out[i].Completed = true
		}
	}
	return out
}

// OverlayMetrics merges persisted metric values over the defaults key by key.
func OverlayMetrics(defaults, persisted map[string]any) map[string]any {
	out := make(map[string]any, len(defaults)+len(persisted))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range persisted {
		out[k] = v
	}
	return out
}

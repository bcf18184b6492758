package pipeline

import (
	"strings"

	"github.com/crimson-sun/fortiwatch/internal/engine/severity"
	"github.com/crimson-sun/fortiwatch/internal/model"
)

// Stats summarizes a set of records for display.
type Stats struct {
	Total   int                 `json:"total"`
	Threats int                 `json:"threats"` // level error
	Blocked int                 `json:"blocked"` // action blocked
	ByLevel map[model.Level]int `json:"by_level"`
}

// Warnings returns the number of warning-level records.
func (s Stats) Warnings() int { return s.ByLevel[model.LevelWarning] }

// Summarize counts records by level and disposition.
func Summarize(records []model.Record) Stats {
	s := Stats{Total: len(records), ByLevel: make(map[model.Level]int, len(model.Levels))}
	for _, lv := range model.Levels {
		s.ByLevel[lv] = 0
	}
	for _, r := range records {
		s.ByLevel[r.Level]++
		if r.Level == model.LevelError {
			s.Threats++
		}
		if r.Action == "blocked" {
			s.Blocked++
		}
	}
	return s
}

// Filter returns the records whose message or source contains term,
// ignoring case. An empty term returns records unchanged.
func Filter(records []model.Record, term string) []model.Record {
	needle := severity.Fold(term)
	if needle == "" {
		return records
	}
	var out []model.Record
	for _, r := range records {
		if strings.Contains(severity.Fold(r.Message), needle) || strings.Contains(severity.Fold(r.Source), needle) {
			out = append(out, r)
		}
	}
	return out
}

// Package severity maps vendor log levels onto the canonical Level set.
package severity

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/crimson-sun/fortiwatch/internal/model"
)

// DefaultTable returns the built-in vendor level mapping. Keys are case-folded.
// Anything not listed maps to info.
func DefaultTable() map[string]model.Level {
	return map[string]model.Level{
		"critical":    model.LevelError,
		"error":       model.LevelError,
		"warning":     model.LevelWarning,
		"notice":      model.LevelInfo,
		"information": model.LevelInfo,
		"success":     model.LevelSuccess,
	}
}

// Mapper folds level strings and looks them up in a table. Safe for
// concurrent use once built.
type Mapper struct {
	table map[string]model.Level
}

// New creates a Mapper over table. A nil table uses DefaultTable.
func New(table map[string]model.Level) *Mapper {
	if table == nil {
		table = DefaultTable()
	}
	m := &Mapper{table: make(map[string]model.Level, len(table))}
	for k, v := range table {
		m.table[Fold(k)] = v
	}
	return m
}

// Map returns the canonical level for a vendor level. It never fails.
func (m *Mapper) Map(level string) model.Level {
	if lvl, ok := m.table[Fold(level)]; ok {
		return lvl
	}
	return model.LevelInfo
}

// Fold returns the case-folded, trimmed form of s. A Caser is stateful, so
// each call builds its own.
func Fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

var defaultMapper = New(nil)

// Map maps level with the default table.
func Map(level string) model.Level {
	return defaultMapper.Map(level)
}

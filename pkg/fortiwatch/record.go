package fortiwatch

import "github.com/crimson-sun/fortiwatch/internal/model"

// Severity levels of a Record.
const (
	LevelError   = "error"
	LevelWarning = "warning"
	LevelInfo    = "info"
	LevelSuccess = "success"
)

// Record is one normalized security event.
// This is the stable public type; internal representations may evolve
// independently.
type Record struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"` // ISO-8601, UTC, millisecond precision
	Level     string `json:"level"`     // error, warning, info, success
	Source    string `json:"source"`    // originating address
	Message   string `json:"message"`
	Action    string `json:"action"` // blocked, monitored, allowed, ...
}

// Stats summarizes the current window.
type Stats struct {
	Total    int            `json:"total"`
	Threats  int            `json:"threats"`
	Blocked  int            `json:"blocked"`
	Warnings int            `json:"warnings"`
	ByLevel  map[string]int `json:"by_level"`
}

// Verdict is the outcome of a connection test.
type Verdict struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func recordFromModel(r model.Record) Record {
	return Record{
		ID:        r.ID,
		Timestamp: r.Timestamp,
		Level:     string(r.Level),
		Source:    r.Source,
		Message:   r.Message,
		Action:    r.Action,
	}
}

func recordsFromModel(rs []model.Record) []Record {
	out := make([]Record, len(rs))
	for i, r := range rs {
		out[i] = recordFromModel(r)
	}
	return out
}

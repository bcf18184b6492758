package model

import "time"

// Level is the normalized severity of a Record.
type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
)

// Levels lists every Level in display order.
var Levels = []Level{LevelError, LevelWarning, LevelInfo, LevelSuccess}

// TimestampLayout is the ISO-8601 form used for Record.Timestamp.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Record is the canonical, display-ready form of one security event.
type Record struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Level     Level  `json:"level"`
	Source    string `json:"source"`
	Message   string `json:"message"`
	Action    string `json:"action"`
}

// FormatTimestamp renders t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Time parses Timestamp back into a time.Time. The zero time is returned
// when the field does not parse.
func (r Record) Time() time.Time {
	t, err := time.Parse(time.RFC3339Nano, r.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

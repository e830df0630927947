package logger

import (
	"encoding/json"

	"github.com/rs/zerolog"
)

// LogEntry is a decoded zerolog line kept for the logs endpoint.
type LogEntry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Component string         `json:"component,omitempty"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// RecentLogs is an io.Writer that keeps the last N JSON log lines.
type RecentLogs struct {
	buffer *RingBuffer[LogEntry]
}

// NewRecentLogs creates a buffer holding up to capacity entries.
func NewRecentLogs(capacity int) *RecentLogs {
	return &RecentLogs{buffer: NewRingBuffer[LogEntry](capacity)}
}

// Write implements io.Writer. Lines that are not JSON objects are dropped.
func (r *RecentLogs) Write(p []byte) (int, error) {
	var raw map[string]any
	if err := json.Unmarshal(p, &raw); err != nil {
		return len(p), nil //nolint:nilerr // console-formatted or partial lines are not kept
	}

	entry := LogEntry{}
	entry.Timestamp = takeString(raw, zerolog.TimestampFieldName)
	entry.Level = takeString(raw, zerolog.LevelFieldName)
	entry.Component = takeString(raw, "component")
	entry.Message = takeString(raw, zerolog.MessageFieldName)
	if len(raw) > 0 {
		entry.Fields = raw
	}

	r.buffer.Push(entry)
	return len(p), nil
}

// Entries returns the buffered entries, oldest first.
func (r *RecentLogs) Entries() []LogEntry {
	return r.buffer.GetAll()
}

func takeString(raw map[string]any, key string) string {
	v, ok := raw[key].(string)
	if !ok {
		return ""
	}
	delete(raw, key)
	return v
}

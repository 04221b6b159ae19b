package logs

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"reelsync/internal/logging"
)

// Entry is one decoded JSON log record.
type Entry struct {
	Time      time.Time
	Level     slog.Level
	Message   string
	Component string
	JobID     string
	Attrs     map[string]any
}

var reservedKeys = map[string]struct{}{
	"ts": {}, "level": {}, "msg": {}, "source": {},
	logging.FieldComponent: {}, logging.FieldJobID: {},
}

// ParseEntry decodes a line written by the JSON handler. Lines that are not
// JSON objects report false.
func ParseEntry(line string) (Entry, bool) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Entry{}, false
	}
	entry := Entry{Attrs: make(map[string]any)}
	if ts, ok := raw["ts"].(string); ok {
		entry.Time, _ = time.Parse(time.RFC3339Nano, ts)
	}
	if level, ok := raw["level"].(string); ok {
		_ = entry.Level.UnmarshalText([]byte(level))
	}
	entry.Message, _ = raw["msg"].(string)
	entry.Component, _ = raw[logging.FieldComponent].(string)
	entry.JobID, _ = raw[logging.FieldJobID].(string)
	for key, value := range raw {
		if _, skip := reservedKeys[key]; !skip {
			entry.Attrs[key] = value
		}
	}
	return entry, true
}

// Filter narrows entries. Zero fields match everything.
type Filter struct {
	JobID     string
	Component string
	MinLevel  slog.Level
}

// Match reports whether entry passes every set field.
func (f Filter) Match(entry Entry) bool {
	if entry.Level < f.MinLevel {
		return false
	}
	if f.JobID != "" && entry.JobID != f.JobID {
		return false
	}
	if f.Component != "" && !strings.EqualFold(entry.Component, f.Component) {
		return false
	}
	return true
}

// Format renders entry on one line with attributes sorted by key.
func (e Entry) Format() string {
	var b strings.Builder
	if !e.Time.IsZero() {
		b.WriteString(e.Time.Local().Format("2006-01-02 15:04:05"))
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "%-5s ", e.Level.String())
	if e.Component != "" {
		b.WriteString("[" + e.Component + "] ")
	}
	if e.JobID != "" {
		b.WriteString("job=" + shortID(e.JobID) + " ")
	}
	b.WriteString(e.Message)

	keys := make([]string, 0, len(e.Attrs))
	for key := range e.Attrs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(&b, " %s=%v", key, e.Attrs[key])
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

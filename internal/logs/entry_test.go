package logs_test

import (
	"log/slog"
	"strings"
	"testing"

	"reelsync/internal/logs"
)

const sampleLine = `{"ts":"2026-01-02T03:04:05.5Z","level":"warn","msg":"stage failed","component":"pipeline","job_id":"0123456789abcdef","stage":"encoding","attempt":2}`

func TestParseEntry(t *testing.T) {
	entry, ok := logs.ParseEntry(sampleLine)
	if !ok {
		t.Fatal("expected JSON line to parse")
	}
	if entry.Level != slog.LevelWarn || entry.Message != "stage failed" || entry.Component != "pipeline" || entry.JobID != "0123456789abcdef" {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if entry.Time.IsZero() || len(entry.Attrs) != 2 || entry.Attrs["stage"] != "encoding" {
		t.Fatalf("unexpected time/attrs %+v", entry)
	}
	if _, ok := logs.ParseEntry("plain text"); ok {
		t.Fatal("non-JSON line must not parse")
	}
}

func TestFilterMatch(t *testing.T) {
	entry, _ := logs.ParseEntry(sampleLine)
	tests := []struct {
		name   string
		filter logs.Filter
		want   bool
	}{
		{"zero filter", logs.Filter{}, true},
		{"same job", logs.Filter{JobID: "0123456789abcdef"}, true},
		{"other job", logs.Filter{JobID: "other"}, false},
		{"component case-insensitive", logs.Filter{Component: "Pipeline"}, true},
		{"level too high", logs.Filter{MinLevel: slog.LevelError}, false},
		{"level met", logs.Filter{MinLevel: slog.LevelWarn}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Match(entry); got != tt.want {
				t.Fatalf("Match = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntryFormat(t *testing.T) {
	entry, _ := logs.ParseEntry(sampleLine)
	got := entry.Format()
	for _, want := range []string{"WARN ", "[pipeline]", "job=01234567", "stage failed attempt=2 stage=encoding"} {
		if !strings.Contains(got, want) {
			t.Fatalf("Format() = %q, missing %q", got, want)
		}
	}
}

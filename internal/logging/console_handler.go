package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const consoleTimestampLayout = "2006-01-02 15:04:05"

// consoleHandler writes one line per record for people watching a terminal:
//
//	2026-01-02 15:04:05 WARN  encoder [1a2b3c4d/encoding] subtitle burn-in failed attempt=2
//
// component, job_id and stage move into the line header; everything else is
// appended as key=value pairs in the order it was added.
type consoleHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     slog.Leveler
	addSource bool
	prefix    string
	fields    []field
}

type field struct {
	key   string
	value slog.Value
}

func newConsoleHandler(w io.Writer, level slog.Leveler, addSource bool) slog.Handler {
	return &consoleHandler{mu: new(sync.Mutex), w: w, level: level, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	fields := append([]field(nil), h.fields...)
	r.Attrs(func(a slog.Attr) bool {
		fields = appendAttr(fields, h.prefix, a)
		return true
	})

	var hdr header
	var line strings.Builder
	for _, f := range fields {
		if hdr.take(f) {
			continue
		}
		fmt.Fprintf(&line, " %s=%s", f.key, formatValue(f.value))
	}

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	msg := strings.TrimSpace(r.Message)
	if msg == "" {
		msg = "(no message)"
	}
	if h.addSource {
		if src := r.Source(); src != nil {
			msg += fmt.Sprintf(" (%s:%d)", filepath.Base(src.File), src.Line)
		}
	}

	out := fmt.Sprintf("%s %-5s %s%s%s\n", ts.Local().Format(consoleTimestampLayout), levelLabel(r.Level), hdr, msg, line.String())
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, out)
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.fields = append([]field(nil), h.fields...)
	for _, a := range attrs {
		next.fields = appendAttr(next.fields, h.prefix, a)
	}
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

// header collects the fields shown before the message. The first value of
// each key wins so a per-record job id cannot override the logger's own.
type header struct {
	component, jobID, stage string
}

func (hdr *header) take(f field) bool {
	var slot *string
	switch f.key {
	case FieldComponent:
		slot = &hdr.component
	case FieldJobID:
		slot = &hdr.jobID
	case FieldStage:
		slot = &hdr.stage
	default:
		return false
	}
	if *slot == "" {
		*slot = strings.TrimSpace(attrString(f.value))
	}
	return true
}

func (hdr header) String() string {
	var b strings.Builder
	if hdr.component != "" {
		b.WriteString(hdr.component + " ")
	}
	job := hdr.jobID
	if len(job) > 8 {
		job = job[:8]
	}
	switch {
	case job != "" && hdr.stage != "":
		b.WriteString("[" + job + "/" + hdr.stage + "] ")
	case job != "":
		b.WriteString("[" + job + "] ")
	case hdr.stage != "":
		b.WriteString("[" + hdr.stage + "] ")
	}
	return b.String()
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

// appendAttr flattens groups into dotted keys and drops empty attrs.
func appendAttr(dst []field, prefix string, a slog.Attr) []field {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return dst
	}
	if a.Value.Kind() == slog.KindGroup {
		inner := prefix
		if a.Key != "" {
			inner = prefix + a.Key + "."
		}
		for _, g := range a.Value.Group() {
			dst = appendAttr(dst, inner, g)
		}
		return dst
	}
	if a.Key == "" {
		return dst
	}
	return append(dst, field{key: prefix + a.Key, value: a.Value})
}

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"reelsync/internal/jobs"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

var statusStyles = [...]struct {
	label string
	color text.Colors
}{
	statusInfo:  {"INFO", text.Colors{text.FgBlue}},
	statusOK:    {"OK", text.Colors{text.FgGreen}},
	statusWarn:  {"WARN", text.Colors{text.FgYellow}},
	statusError: {"ERROR", text.Colors{text.FgRed}},
}

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

// renderStatusLine formats "  Label:   [KIND] message".
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	line := fmt.Sprintf("%s%-*s [%s]", statusIndent, statusLabelWidth, label+":", statusStyles[kind].label)
	if message != "" {
		line += " " + message
	}
	return paint(line, kind, colorize)
}

// stateKind maps a job state onto the status palette: finished states are
// OK or ERROR, queued work is INFO, and anything in flight is WARN.
func stateKind(state jobs.State) statusKind {
	switch {
	case state == jobs.StateCompleted:
		return statusOK
	case state == jobs.StateFailed:
		return statusError
	case state == jobs.StateCreated:
		return statusInfo
	default:
		return statusWarn
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	title = "== " + strings.TrimSpace(title) + " =="
	return []string{
		paint(title, statusInfo, colorize),
		paint(strings.Repeat("-", len(title)), statusInfo, colorize),
	}
}

func paint(value string, kind statusKind, colorize bool) string {
	if !colorize || value == "" {
		return value
	}
	return statusStyles[kind].color.Sprint(value)
}

// shouldColorize reports whether w is a terminal and NO_COLOR is unset.
func shouldColorize(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// Package deps reports whether the external tools a render needs are on PATH
// and usable.
package deps

import (
	"os/exec"
	"strconv"
	"strings"
)

// Requirement names one external program.
type Requirement struct {
	Name        string
	Command     string
	Description string
	// Optional tools degrade a render instead of failing it.
	Optional bool
}

// Status is the result of checking a Requirement. Command holds the resolved
// path when the tool was found.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Check resolves the requirement's command on PATH.
func (r Requirement) Check() Status {
	s := Status{
		Name:        r.Name,
		Command:     strings.TrimSpace(r.Command),
		Description: strings.TrimSpace(r.Description),
		Optional:    r.Optional,
	}
	if s.Command == "" {
		s.Detail = "command not configured"
		return s
	}
	path, err := exec.LookPath(s.Command)
	if err != nil {
		s.Detail = strconv.Quote(s.Command) + " not found on PATH"
		return s
	}
	s.Command, s.Available = path, true
	return s
}

// CheckBinaries checks every requirement in order.
func CheckBinaries(requirements []Requirement) []Status {
	out := make([]Status, len(requirements))
	for i, req := range requirements {
		out[i] = req.Check()
	}
	return out
}

// Missing filters statuses down to unavailable required tools.
func Missing(statuses []Status) []Status {
	var out []Status
	for _, s := range statuses {
		if s.Optional || s.Available {
			continue
		}
		out = append(out, s)
	}
	return out
}

package jobs

import (
	"fmt"
	"strings"
	"time"
)

// State represents the lifecycle of a job.
type State string

const (
	StateCreated       State = "created"
	StateAcquiring     State = "acquiring"
	StateTranscribing  State = "transcribing"
	StateSynchronizing State = "synchronizing"
	StatePlanning      State = "planning"
	StateEncoding      State = "encoding"
	StateCompleted     State = "completed"
	StateFailed        State = "failed"
)

// FailureKind classifies why a job reached StateFailed.
type FailureKind string

const (
	FailureFetch           FailureKind = "fetch"
	FailureRecognition     FailureKind = "recognition"
	FailureSynchronization FailureKind = "synchronization"
	FailureEncode          FailureKind = "encode"
	FailureTimeout         FailureKind = "timeout"
	FailureResource        FailureKind = "resource"
	FailureValidation      FailureKind = "validation"
	FailureCanceled        FailureKind = "canceled"
)

// Profile selects the output video shape.
type Profile string

const (
	ProfileStandard Profile = "standard"
	ProfileShort    Profile = "short"
)

// DaemonStopReason is the error message set when jobs are failed due to daemon shutdown.
const DaemonStopReason = "Daemon stopped before the job finished"

// pipelineOrder is the single forward pass every job takes.
var pipelineOrder = []State{
	StateCreated,
	StateAcquiring,
	StateTranscribing,
	StateSynchronizing,
	StatePlanning,
	StateEncoding,
	StateCompleted,
}

var stateIndex = func() map[State]int {
	idx := make(map[State]int, len(pipelineOrder))
	for i, state := range pipelineOrder {
		idx[state] = i
	}
	return idx
}()

// Job represents one end-to-end request persisted in SQLite.
type Job struct {
	ID            string
	AudioURL      string
	ImageURL      string
	Profile       Profile
	State         State
	FailureKind   FailureKind
	ErrorMessage  string
	WorkDir       string
	OutputPath    string
	OutputDigest  string
	AudioDuration float64
	WordCount     int
	CueCount      int
	// Overlay is the subtitle track burned into the output: "ass", "srt",
	// or "none". It differs from the planned track after a fallback.
	Overlay       string
	Language      string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	StartedAt     *time.Time
	FinishedAt    *time.Time
}

// OverlayNone marks a job whose output carries no subtitle overlay.
const OverlayNone = "none"

// SubtitlesDropped reports whether the job had cues but its output was
// rendered without them after every overlay attempt failed.
func (j Job) SubtitlesDropped() bool {
	return j.CueCount > 0 && j.Overlay == OverlayNone
}

// AllStates returns the ordered list of known states, failed last.
func AllStates() []State {
	states := make([]State, 0, len(pipelineOrder)+1)
	states = append(states, pipelineOrder...)
	return append(states, StateFailed)
}

// ParseState converts a string into a known State.
func ParseState(value string) (State, bool) {
	normalized := State(strings.ToLower(strings.TrimSpace(value)))
	if normalized == StateFailed {
		return normalized, true
	}
	_, ok := stateIndex[normalized]
	return normalized, ok
}

// ParseProfile converts a string into a known Profile. Empty input selects
// the standard profile.
func ParseProfile(value string) (Profile, error) {
	switch Profile(strings.ToLower(strings.TrimSpace(value))) {
	case "", ProfileStandard:
		return ProfileStandard, nil
	case ProfileShort:
		return ProfileShort, nil
	default:
		return "", fmt.Errorf("unknown profile %q (want %q or %q)", value, ProfileStandard, ProfileShort)
	}
}

// IsTerminal reports whether the state ends the job lifecycle.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// IsTerminal reports whether the job has completed or failed.
func (j Job) IsTerminal() bool {
	return j.State.IsTerminal()
}

// CanTransition reports whether moving from one state to another respects the
// strictly sequential pipeline: each non-terminal state may only advance to the
// next state in order, or fail.
func CanTransition(from, to State) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	fromIdx, okFrom := stateIndex[from]
	toIdx, okTo := stateIndex[to]
	return okFrom && okTo && toIdx == fromIdx+1
}

// Advance moves the job to the next state, rejecting skips and re-entry.
func (j *Job) Advance(to State) error {
	if to == StateFailed {
		return fmt.Errorf("use Fail to mark job %s failed", j.ID)
	}
	if !CanTransition(j.State, to) {
		return fmt.Errorf("invalid job transition %s -> %s", j.State, to)
	}
	now := time.Now().UTC()
	if j.State == StateCreated {
		j.StartedAt = &now
	}
	j.State = to
	if to == StateCompleted {
		j.FinishedAt = &now
	}
	return nil
}

// Fail marks the job failed with the given kind and message. Failing an
// already terminal job is rejected so a job reports exactly one outcome.
func (j *Job) Fail(kind FailureKind, message string) error {
	if !CanTransition(j.State, StateFailed) {
		return fmt.Errorf("invalid job transition %s -> %s", j.State, StateFailed)
	}
	now := time.Now().UTC()
	j.State = StateFailed
	j.FailureKind = kind
	j.ErrorMessage = strings.TrimSpace(message)
	j.FinishedAt = &now
	return nil
}

// StateLabel renders the state the way status surfaces show it, including
// the failure kind for failed jobs.
func (j Job) StateLabel() string {
	if j.State == StateFailed && j.FailureKind != "" {
		return fmt.Sprintf("%s(%s)", j.State, j.FailureKind)
	}
	return string(j.State)
}

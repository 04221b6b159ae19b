package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"reelsync/internal/jobs"
)

var (
	ErrFetch           = errors.New("fetch error")
	ErrRecognition     = errors.New("recognition error")
	ErrSynchronization = errors.New("synchronization error")
	ErrEncode          = errors.New("encode error")
	ErrTimeout         = errors.New("timeout")
	ErrResource        = errors.New("resource error")
	ErrValidation      = errors.New("validation error")
	ErrConfiguration   = errors.New("configuration error")
	ErrCanceled        = errors.New("canceled")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later failure classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrResource
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FailureKind maps a stage error to the failure kind persisted on the job.
// Deadline expiry always wins so a timed-out subprocess reports as a timeout
// rather than as the tool failure it surfaced as.
func FailureKind(err error) jobs.FailureKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return jobs.FailureTimeout
	case errors.Is(err, ErrCanceled), errors.Is(err, context.Canceled):
		return jobs.FailureCanceled
	case errors.Is(err, ErrFetch):
		return jobs.FailureFetch
	case errors.Is(err, ErrRecognition):
		return jobs.FailureRecognition
	case errors.Is(err, ErrSynchronization):
		return jobs.FailureSynchronization
	case errors.Is(err, ErrEncode):
		return jobs.FailureEncode
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConfiguration):
		return jobs.FailureValidation
	default:
		return jobs.FailureResource
	}
}

// Message returns the operator-facing summary for a stage error: the wrapped
// detail without the trailing subprocess output.
func Message(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.TrimSpace(err.Error())
	if idx := strings.Index(msg, "\n"); idx > 0 {
		msg = strings.TrimSpace(msg[:idx])
	}
	const limit = 512
	if len(msg) > limit {
		msg = msg[:limit] + "..."
	}
	return msg
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

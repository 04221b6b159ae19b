package api

import (
	"time"

	"reelsync/internal/deps"
	"reelsync/internal/jobs"
)

// FromJob converts a stored job into its API form. The video URL is only set
// for completed jobs that still have an output.
func FromJob(job *jobs.Job) Job {
	if job == nil {
		return Job{}
	}
	out := Job{
		ID:            job.ID,
		AudioURL:      job.AudioURL,
		ImageURL:      job.ImageURL,
		Profile:       string(job.Profile),
		State:         string(job.State),
		FailureKind:   string(job.FailureKind),
		ErrorMessage:  job.ErrorMessage,
		AudioDuration: job.AudioDuration,
		WordCount:     job.WordCount,
		CueCount:      job.CueCount,
		Overlay:       job.Overlay,
		Language:      job.Language,
		OutputDigest:  job.OutputDigest,
		CreatedAt:     formatTime(job.CreatedAt),
		UpdatedAt:     formatTime(job.UpdatedAt),
	}
	if job.StartedAt != nil {
		out.StartedAt = formatTime(*job.StartedAt)
	}
	if job.FinishedAt != nil {
		out.FinishedAt = formatTime(*job.FinishedAt)
	}
	if job.State == jobs.StateCompleted && job.OutputPath != "" {
		out.VideoURL = VideoPath(job.ID)
	}
	return out
}

// FromJobs converts a list of stored jobs.
func FromJobs(list []*jobs.Job) []Job {
	out := make([]Job, 0, len(list))
	for _, job := range list {
		if job == nil {
			continue
		}
		out = append(out, FromJob(job))
	}
	return out
}

// FromDependencies converts preflight binary statuses.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, len(statuses))
	for i, dep := range statuses {
		out[i] = DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		}
	}
	return out
}

// JobPath is the API path of one job.
func JobPath(id string) string {
	return "/api/jobs/" + id
}

// VideoPath is the API path serving a completed job's video.
func VideoPath(id string) string {
	return JobPath(id) + "/video"
}

// Label renders the state the way status surfaces show it.
func (j Job) Label() string {
	if j.State == string(jobs.StateFailed) && j.FailureKind != "" {
		return j.State + "(" + j.FailureKind + ")"
	}
	return j.State
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// ParseTime reads a timestamp written by the API. Empty or malformed values
// give the zero time.
func ParseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(dateTimeFormat, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// SubmitRequest asks the daemon to render one video.
type SubmitRequest struct {
	AudioURL string `json:"audio_url"`
	ImageURL string `json:"image_url"`
	Profile  string `json:"profile,omitempty"`
}

// Job describes a render job in a transport-friendly format.
type Job struct {
	ID            string  `json:"id"`
	AudioURL      string  `json:"audio_url"`
	ImageURL      string  `json:"image_url"`
	Profile       string  `json:"profile"`
	State         string  `json:"state"`
	FailureKind   string  `json:"failure_kind,omitempty"`
	ErrorMessage  string  `json:"error_message,omitempty"`
	AudioDuration float64 `json:"audio_duration,omitempty"`
	WordCount     int     `json:"word_count"`
	CueCount      int     `json:"cue_count"`
	Overlay       string  `json:"overlay,omitempty"`
	Language      string  `json:"language,omitempty"`
	OutputDigest  string  `json:"output_digest,omitempty"`
	VideoURL      string  `json:"video_url,omitempty"`
	CreatedAt     string  `json:"created_at,omitempty"`
	UpdatedAt     string  `json:"updated_at,omitempty"`
	StartedAt     string  `json:"started_at,omitempty"`
	FinishedAt    string  `json:"finished_at,omitempty"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	DatabasePath string             `json:"database_path"`
	LockFilePath string             `json:"lock_file_path"`
	ActiveJobs   int                `json:"active_jobs"`
	MaxJobs      int                `json:"max_concurrent_jobs"`
	JobCounts    map[string]int     `json:"job_counts"`
	LastSweep    string             `json:"last_sweep,omitempty"`
	Workspaces   WorkspaceUsage     `json:"workspaces"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// WorkspaceUsage reports job workspaces present under work_dir.
type WorkspaceUsage struct {
	Count int   `json:"count"`
	Stale int   `json:"stale"`
	Bytes int64 `json:"bytes"`
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	JobID string `json:"job_id,omitempty"`
}

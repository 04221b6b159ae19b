package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"reelsync/internal/config"
	"reelsync/internal/jobs"
)

const userAgent = "reelsync/0.1.0"

// Service defines the notification surface exposed to the pipeline.
type Service interface {
	NotifyJobCompleted(ctx context.Context, job *jobs.Job) error
	NotifyJobFailed(ctx context.Context, job *jobs.Job) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		completed: cfg.Notifications.Completed,
		failed:    cfg.Notifications.Failed,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	completed bool
	failed    bool
}

func (n *ntfyService) NotifyJobCompleted(ctx context.Context, job *jobs.Job) error {
	if !n.completed || job == nil {
		return nil
	}
	message := fmt.Sprintf("✅ %s video ready (%s, %d cues)", job.Profile, formatSeconds(job.AudioDuration), job.CueCount)
	if job.Language != "" {
		message += fmt.Sprintf("\nLanguage: %s", job.Language)
	}
	if job.SubtitlesDropped() {
		message += "\nSubtitles could not be burned in"
	}
	message += fmt.Sprintf("\nJob: %s", job.ID)
	return n.send(ctx, payload{
		title:   "reelsync - Video Ready",
		message: message,
		tags:    []string{"reelsync", string(job.Profile), "completed"},
	})
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, job *jobs.Job) error {
	if !n.failed || job == nil {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("❌ Job failed")
	if job.FailureKind != "" {
		builder.WriteString(" (")
		builder.WriteString(string(job.FailureKind))
		builder.WriteString(")")
	}
	builder.WriteString(": ")
	if msg := strings.TrimSpace(job.ErrorMessage); msg != "" {
		builder.WriteString(msg)
	} else {
		builder.WriteString("unknown")
	}
	builder.WriteString("\nJob: ")
	builder.WriteString(job.ID)
	return n.send(ctx, payload{
		title:    "reelsync - Job Failed",
		message:  builder.String(),
		tags:     []string{"reelsync", "error", string(job.FailureKind)},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "reelsync - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"reelsync", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if tags := compact(data.tags); len(tags) > 0 {
		req.Header.Set("Tags", strings.Join(tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func compact(values []string) []string {
	out := values[:0:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func formatSeconds(v float64) string {
	return (time.Duration(v * float64(time.Second))).Round(100 * time.Millisecond).String()
}

type noopService struct{}

func (noopService) NotifyJobCompleted(context.Context, *jobs.Job) error { return nil }
func (noopService) NotifyJobFailed(context.Context, *jobs.Job) error    { return nil }
func (noopService) TestNotification(context.Context) error              { return nil }

package preflight

import (
	"context"
	"strings"

	"reelsync/internal/config"
	"reelsync/internal/recognition"
)

// CheckNtfyFromConfig evaluates ntfy status from config and connectivity.
// An unset topic is reported as a passing "Disabled" row.
func CheckNtfyFromConfig(ctx context.Context, cfg *config.Config) Result {
	const name = "ntfy"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	return CheckNtfy(ctx, cfg.Notifications.NtfyTopic)
}

// CheckModelCache reports whether the WhisperX model has been downloaded
// into the model cache directory. A cold cache is not a failure; the first
// job pays for the download.
func CheckModelCache(cfg *config.Config) Result {
	const name = "WhisperX model"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	model := cfg.Recognition.Model
	if strings.TrimSpace(model) == "" {
		model = recognition.DefaultModel
	}
	if recognition.NewModelCache(cfg.Paths.ModelCacheDir, model).Ready() {
		return Result{Name: name, Passed: true, Detail: model + " (cached)"}
	}
	return Result{Name: name, Passed: true, Detail: model + " (downloads on first job)"}
}

package main

import (
	"fmt"
	"log/slog"

	"reelsync/internal/config"
	"reelsync/internal/encoding"
	"reelsync/internal/fetch"
	"reelsync/internal/jobs"
	"reelsync/internal/notifications"
	"reelsync/internal/pipeline"
	"reelsync/internal/recognition"
)

// newOrchestrator assembles the production collaborators: HTTP fetcher,
// WhisperX recognition behind the model and transcript caches, and ffmpeg.
func newOrchestrator(cfg *config.Config, store *jobs.Store, logger *slog.Logger) (*pipeline.Orchestrator, error) {
	engine := recognition.NewEngine(recognition.EngineOptionsFromConfig(cfg), logger)
	orch, err := pipeline.New(cfg, pipeline.Deps{
		Store:      store,
		Fetcher:    fetch.NewHTTPFetcher(fetch.OptionsFromConfig(cfg), logger),
		Recognizer: recognition.NewService(cfg, engine, logger),
		Encoder:    encoding.NewFFmpegEncoder(encoding.OptionsFromConfig(cfg), logger),
		Notifier:   notifications.NewService(cfg),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}
	return orch, nil
}

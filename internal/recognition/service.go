package recognition

import (
	"context"
	"log/slog"

	"reelsync/internal/config"
	"reelsync/internal/language"
	"reelsync/internal/logging"
)

// Service is the Recognizer the pipeline uses: an engine behind the model
// cache barrier, with an optional transcript cache and a language fallback.
type Service struct {
	engine   Recognizer
	models   *ModelCache
	cache    *TranscriptCache
	model    string
	language string
	logger   *slog.Logger
}

// NewService wires a Service from config around engine. The transcript
// cache is only used when enabled in config.
func NewService(cfg *config.Config, engine Recognizer, logger *slog.Logger) *Service {
	s := &Service{
		engine:   engine,
		models:   NewModelCache(cfg.Paths.ModelCacheDir, cfg.Recognition.Model),
		model:    cfg.Recognition.Model,
		language: cfg.Recognition.Language,
		logger:   logging.NewComponentLogger(logger, "recognition"),
	}
	if cfg.Recognition.TranscriptCache && cfg.Paths.TranscriptCacheDir != "" {
		s.cache = NewTranscriptCache(cfg.Paths.TranscriptCacheDir)
	}
	return s
}

// ModelCache exposes the barrier for status reporting.
func (s *Service) ModelCache() *ModelCache {
	return s.models
}

// Transcribe implements Recognizer.
func (s *Service) Transcribe(ctx context.Context, audioPath, workDir string) (Transcription, error) {
	run := func(ctx context.Context, audioPath, workDir string) (Transcription, error) {
		var out Transcription
		err := s.models.Use(ctx, func(ctx context.Context) error {
			var err error
			out, err = s.engine.Transcribe(ctx, audioPath, workDir)
			return err
		})
		return out, err
	}

	var (
		out Transcription
		err error
	)
	if s.cache != nil {
		key, keyErr := Key(audioPath, s.model, s.language)
		if keyErr != nil {
			logging.WarnWithContext(s.logger, "transcript cache key failed; transcribing directly", "transcript_cache_key_failed",
				logging.Error(keyErr),
				logging.String(logging.FieldImpact, "cache bypassed for this job"),
			)
			out, err = run(ctx, audioPath, workDir)
		} else {
			out, err = s.cache.Do(ctx, key, audioPath, run)
			if err == nil && out.Cached {
				s.logger.Info("transcript cache hit",
					logging.String(logging.FieldEventType, "transcript_cache_hit"),
					logging.String("cache_key", key[:16]),
				)
			}
		}
	} else {
		out, err = run(ctx, audioPath, workDir)
	}
	if err != nil {
		return Transcription{}, err
	}
	s.applyLanguageFallback(&out)
	return out, nil
}

func (s *Service) applyLanguageFallback(out *Transcription) {
	if out.Language != "" {
		return
	}
	detected := language.Detect(out.Text())
	if detected.Code == "" {
		return
	}
	out.Language = detected.Code
	out.LanguageSource = LanguageDetected
	attrs := logging.DecisionAttrs("transcript_language", detected.Code, "text_detection")
	attrs = append(attrs,
		logging.Float64("confidence", detected.Confidence),
		logging.Bool("reliable", detected.Reliable),
	)
	s.logger.Info("transcript language detected", logging.Args(attrs...)...)
}

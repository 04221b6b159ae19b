package recognition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"reelsync/internal/config"
	"reelsync/internal/language"
	"reelsync/internal/logging"
	"reelsync/internal/subprocess"
)

// WhisperX invocation constants.
const (
	DefaultModel      = "large-v3-turbo"
	UVXCommand        = "uvx"
	CUDAIndexURL      = "https://download.pytorch.org/whl/cu128"
	PypiIndexURL      = "https://pypi.org/simple"
	BatchSize         = "4"
	ChunkSize         = "15"
	VADOnset          = "0.08"
	VADOffset         = "0.07"
	BeamSize          = "5"
	Temperature       = "0.0"
	OutputFormat      = "json"
	CPUDevice         = "cpu"
	CUDADevice        = "cuda"
	CPUComputeType    = "float32"
	VADMethodPyannote = "pyannote"
	VADMethodSilero   = "silero"
)

// EngineOptions configures a WhisperX engine.
type EngineOptions struct {
	Binary      string
	Model       string
	Language    string
	CUDAEnabled bool
	VADMethod   string
	HFToken     string
	ModelDir    string
	Grace       time.Duration
}

// EngineOptionsFromConfig maps the recognition config section.
func EngineOptionsFromConfig(cfg *config.Config) EngineOptions {
	return EngineOptions{
		Binary:      UVXCommand,
		Model:       cfg.Recognition.Model,
		Language:    cfg.Recognition.Language,
		CUDAEnabled: cfg.Recognition.CUDAEnabled,
		VADMethod:   cfg.Recognition.VADMethod,
		HFToken:     cfg.Recognition.HuggingFaceToken,
		ModelDir:    cfg.Paths.ModelCacheDir,
		Grace:       cfg.KillGrace(),
	}
}

// Engine runs WhisperX as a subprocess.
type Engine struct {
	opts   EngineOptions
	logger *slog.Logger
}

// NewEngine returns a WhisperX engine.
func NewEngine(opts EngineOptions, logger *slog.Logger) *Engine {
	if strings.TrimSpace(opts.Binary) == "" {
		opts.Binary = UVXCommand
	}
	if strings.TrimSpace(opts.Model) == "" {
		opts.Model = DefaultModel
	}
	if strings.TrimSpace(opts.VADMethod) == "" {
		opts.VADMethod = VADMethodSilero
	}
	return &Engine{opts: opts, logger: logging.NewComponentLogger(logger, "whisperx")}
}

// Model returns the configured model name.
func (e *Engine) Model() string {
	return e.opts.Model
}

// Transcribe runs WhisperX on audioPath, writing its JSON into workDir.
func (e *Engine) Transcribe(ctx context.Context, audioPath, workDir string) (Transcription, error) {
	if strings.TrimSpace(audioPath) == "" {
		return Transcription{}, errors.New("transcribe: audio path required")
	}
	outputDir := filepath.Join(workDir, "whisperx")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return Transcription{}, fmt.Errorf("transcribe: ensure output dir: %w", err)
	}

	args := e.buildArgs(audioPath, outputDir)
	e.logger.Debug("whisperx command",
		logging.String("binary", e.opts.Binary),
		logging.String("model", e.opts.Model),
		logging.String("args", strings.Join(redactArgs(args), " ")),
	)
	result, err := subprocess.Run(ctx, subprocess.Command{
		Binary: e.opts.Binary,
		Args:   args,
		Env:    e.env(),
		Grace:  e.opts.Grace,
	})
	if err != nil {
		if result.StderrTail != "" {
			return Transcription{}, fmt.Errorf("whisperx: %w\n%s", err, result.StderrTail)
		}
		return Transcription{}, fmt.Errorf("whisperx: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	jsonPath := filepath.Join(outputDir, base+".json")
	out, err := ParseWhisperXFile(jsonPath)
	if err != nil {
		return Transcription{}, err
	}
	out.Model = e.opts.Model
	if e.opts.Language != "" {
		out.Language = e.opts.Language
		out.LanguageSource = LanguageConfigured
	} else if out.Language != "" {
		out.Language = language.ToISO2(out.Language)
	}
	e.logger.Info("whisperx transcription complete",
		logging.String(logging.FieldEventType, "whisperx_complete"),
		logging.Int("segments", len(out.Segments)),
		logging.Int("words", out.WordCount()),
		logging.String("language", out.Language),
		logging.Duration("elapsed", result.Elapsed),
	)
	return out, nil
}

// buildArgs constructs the uvx command arguments for WhisperX.
func (e *Engine) buildArgs(source, outputDir string) []string {
	args := make([]string, 0, 40)
	if e.opts.CUDAEnabled {
		args = append(args,
			"--index-url", CUDAIndexURL,
			"--extra-index-url", PypiIndexURL,
		)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}

	args = append(args,
		"whisperx",
		source,
		"--model", e.opts.Model,
		"--batch_size", BatchSize,
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
		"--chunk_size", ChunkSize,
		"--vad_onset", VADOnset,
		"--vad_offset", VADOffset,
		"--beam_size", BeamSize,
		"--temperature", Temperature,
		"--vad_method", e.opts.VADMethod,
	)
	if e.opts.ModelDir != "" {
		args = append(args, "--model_dir", e.opts.ModelDir)
	}
	if e.opts.VADMethod == VADMethodPyannote && e.opts.HFToken != "" {
		args = append(args, "--hf_token", e.opts.HFToken)
	}
	if e.opts.Language != "" {
		args = append(args, "--language", e.opts.Language)
	}
	if e.opts.CUDAEnabled {
		args = append(args, "--device", CUDADevice)
	} else {
		args = append(args, "--device", CPUDevice, "--compute_type", CPUComputeType)
	}
	return args
}

func (e *Engine) env() []string {
	var env []string
	// Torch 2.6 defaults torch.load to weights_only, which breaks the
	// alignment and VAD checkpoints WhisperX loads.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		env = append(env, "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}
	if e.opts.ModelDir != "" && os.Getenv("HF_HOME") == "" {
		env = append(env, "HF_HOME="+filepath.Join(e.opts.ModelDir, "huggingface"))
	}
	return env
}

func redactArgs(args []string) []string {
	out := append([]string(nil), args...)
	for i := 0; i < len(out)-1; i++ {
		if out[i] == "--hf_token" {
			out[i+1] = "***"
		}
	}
	return out
}

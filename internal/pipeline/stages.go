package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"reelsync/internal/composition"
	"reelsync/internal/encoding"
	"reelsync/internal/fileutil"
	"reelsync/internal/jobs"
	"reelsync/internal/logging"
	"reelsync/internal/media/ffprobe"
	"reelsync/internal/recognition"
	"reelsync/internal/services"
	"reelsync/internal/subtitles"
	"reelsync/internal/transcript"
	"reelsync/internal/workspace"
)

// jobRun carries typed stage outputs from one stage to the next.
type jobRun struct {
	job *jobs.Job
	ws  *workspace.Workspace

	audioPath string
	imagePath string
	audio     ffprobe.AudioInfo
	image     ffprobe.ImageInfo

	transcription recognition.Transcription
	words         []transcript.Word
	cues          subtitles.Result
	plan          composition.Plan

	// published is the output path once moved out of the workspace.
	published string
}

// acquire downloads both inputs concurrently and probes them.
func (o *Orchestrator) acquire(ctx context.Context, r *jobRun) error {
	binary := o.cfg.FFprobeBinary()
	r.audioPath = r.ws.Path("audio" + inputExt(r.job.AudioURL, ".mp3"))
	r.imagePath = r.ws.Path("image" + inputExt(r.job.ImageURL, ".jpg"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if _, err := o.fetcher.Fetch(gctx, r.job.AudioURL, r.audioPath); err != nil {
			return services.Wrap(services.ErrFetch, "acquiring", "fetch audio", "", err)
		}
		probe, err := o.probe(gctx, binary, r.audioPath)
		if err != nil {
			return services.Wrap(services.ErrFetch, "acquiring", "probe audio", "downloaded audio is not readable media", err)
		}
		info, err := probe.Audio()
		if err != nil {
			return services.Wrap(services.ErrFetch, "acquiring", "probe audio", "", err)
		}
		r.audio = info
		return nil
	})
	g.Go(func() error {
		if _, err := o.fetcher.Fetch(gctx, r.job.ImageURL, r.imagePath); err != nil {
			return services.Wrap(services.ErrFetch, "acquiring", "fetch image", "", err)
		}
		probe, err := o.probe(gctx, binary, r.imagePath)
		if err != nil {
			return services.Wrap(services.ErrFetch, "acquiring", "probe image", "downloaded image is not readable media", err)
		}
		info, err := probe.Image()
		if err != nil {
			return services.Wrap(services.ErrFetch, "acquiring", "probe image", "", err)
		}
		r.image = info
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	r.job.AudioDuration = r.audio.Duration
	logging.WithContext(ctx, o.logger).Info("inputs acquired",
		logging.String(logging.FieldEventType, "inputs_acquired"),
		logging.Float64("audio_seconds", r.audio.Duration),
		logging.String("audio_codec", r.audio.Codec),
		logging.String("image", fmt.Sprintf("%dx%d", r.image.Width, r.image.Height)),
	)
	return nil
}

func (o *Orchestrator) transcribe(ctx context.Context, r *jobRun) error {
	out, err := o.recognizer.Transcribe(ctx, r.audioPath, r.ws.Dir)
	if err != nil {
		return services.Wrap(services.ErrRecognition, "transcribing", "recognize speech", "", err)
	}
	r.transcription = out
	r.job.Language = out.Language
	logging.WithContext(ctx, o.logger).Info("transcription ready",
		logging.String(logging.FieldEventType, "transcription_ready"),
		logging.Int("segments", len(out.Segments)),
		logging.Int("words", out.WordCount()),
		logging.String("language", out.Language),
		logging.String("language_source", out.LanguageSource),
		logging.Bool("cached", out.Cached),
	)
	return nil
}

func (o *Orchestrator) synchronize(ctx context.Context, r *jobRun) error {
	words, report := transcript.Normalize(r.transcription.Segments, transcript.NormalizeOptions{Duration: r.audio.Duration})
	logger := logging.WithContext(ctx, o.logger)
	if report.Adjusted() {
		logger.Info("transcript timing adjusted",
			logging.String(logging.FieldEventType, "transcript_normalized"),
			logging.Int("input_words", report.Input),
			logging.Int("kept_words", report.Kept),
			logging.Int("bad_timing", report.BadTiming),
			logging.Int("past_end", report.PastEnd),
			logging.Int("clamped", report.Clamped),
			logging.Int("reordered", report.Reordered),
			logging.Int("overlapped", report.Overlapped),
		)
	}
	r.words = words
	r.cues = o.sync.Sync(words)
	if issues := subtitles.ValidateCues(r.cues.Plain, r.audio.Duration); len(issues) > 0 {
		return services.Wrap(services.ErrSynchronization, "synchronizing", "validate cues", strings.Join(issues, "; "), nil)
	}
	r.job.WordCount = len(words)
	if r.cues.Empty() {
		logger.Info("no speech to subtitle",
			logging.Args(logging.DecisionAttrs("subtitle_overlay", "none", "no words survived recognition")...)...)
	}
	return nil
}

// planOutput builds the plan and, when there are cues, writes both subtitle
// tracks to the workspace before encoding may start.
func (o *Orchestrator) planOutput(ctx context.Context, r *jobRun) error {
	plan, cues, err := o.planner.Plan(composition.Request{
		Profile:       r.job.Profile,
		ImagePath:     r.imagePath,
		AudioPath:     r.audioPath,
		OutputPath:    r.ws.Path("output.mp4"),
		AudioDuration: r.audio.Duration,
		ImageWidth:    r.image.Width,
		ImageHeight:   r.image.Height,
		Subtitles:     r.cues,
	})
	if err != nil {
		return services.Wrap(services.ErrValidation, "planning", "plan composition", "", err)
	}
	r.job.CueCount = len(cues.Plain)
	if !cues.Empty() {
		tracks, err := subtitles.WriteTracks(r.ws.Dir, "subtitles", cues, o.assOptions(plan))
		if err != nil {
			return services.Wrap(services.ErrResource, "planning", "write subtitle tracks", "", err)
		}
		track := tracks.SRTPath
		if o.cfg.Encoding.PreferASS {
			track = tracks.ASSPath
		}
		plan = plan.WithSubtitles(track)
	}
	r.plan = plan
	logging.WithContext(ctx, o.logger).Info("composition ready",
		logging.String(logging.FieldEventType, "composition_ready"),
		logging.String("plan", composition.Describe(plan)),
	)
	return nil
}

// encode renders the plan and publishes the result to the output directory.
func (o *Orchestrator) encode(ctx context.Context, r *jobRun) error {
	rendered, err := o.encoder.Encode(ctx, r.plan)
	if err != nil {
		return services.Wrap(services.ErrEncode, "encoding", "render video", "", err)
	}
	r.job.Overlay = rendered.Overlay
	if r.job.SubtitlesDropped() {
		logging.WarnWithContext(logging.WithContext(ctx, o.logger), "video rendered without subtitles", "subtitles_dropped",
			logging.Int("cues", r.job.CueCount),
			logging.String(logging.FieldImpact, "the output has no burned-in subtitles"),
			logging.String(logging.FieldErrorHint, "check the ffmpeg libass build and the subtitle font"),
		)
	}
	dest := filepath.Join(o.cfg.Paths.OutputDir, r.job.ID+".mp4")
	if err := fileutil.MoveFile(rendered.Path, dest); err != nil {
		return services.Wrap(services.ErrResource, "encoding", "publish output", "", err)
	}
	r.published = dest
	digest, err := encoding.Digest(dest)
	if err != nil {
		return services.Wrap(services.ErrResource, "encoding", "digest output", "", err)
	}
	r.job.OutputPath = dest
	r.job.OutputDigest = digest
	return nil
}

func (o *Orchestrator) assOptions(plan composition.Plan) subtitles.ASSOptions {
	s := o.cfg.Subtitles
	return subtitles.ASSOptions{
		PlayResX:       plan.CanvasWidth,
		PlayResY:       plan.CanvasHeight,
		Font:           s.Font,
		FontSize:       s.FontSize,
		TextColor:      s.TextColor,
		HighlightColor: s.HighlightColor,
		MarginV:        s.MarginV,
	}
}

// inputExt keeps a short alphanumeric extension from the URL path so tools
// that sniff by name see something sensible.
func inputExt(rawURL, fallback string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fallback
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if len(ext) < 2 || len(ext) > 5 {
		return fallback
	}
	for _, c := range ext[1:] {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return fallback
		}
	}
	return ext
}

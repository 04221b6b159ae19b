package composition_test

import (
	"slices"
	"strings"
	"testing"

	"reelsync/internal/composition"
	"reelsync/internal/config"
	"reelsync/internal/jobs"
	"reelsync/internal/logging"
	"reelsync/internal/subtitles"
)

func newPlanner(t *testing.T) *composition.Planner {
	t.Helper()
	cfg := config.Default()
	settings, err := composition.SettingsFromConfig(&cfg)
	if err != nil {
		t.Fatalf("SettingsFromConfig: %v", err)
	}
	planner, err := composition.NewPlanner(settings, logging.NewNop())
	if err != nil {
		t.Fatalf("NewPlanner: %v", err)
	}
	return planner
}

func baseRequest(profile jobs.Profile) composition.Request {
	return composition.Request{
		Profile:       profile,
		ImagePath:     "/work/image.jpg",
		AudioPath:     "/work/audio.mp3",
		OutputPath:    "/work/output.mp4",
		AudioDuration: 30,
		ImageWidth:    1280,
		ImageHeight:   720,
	}
}

func TestPlanStandardCanvas(t *testing.T) {
	planner := newPlanner(t)
	tests := []struct {
		name          string
		width, height int
		wantW, wantH  int
	}{
		{name: "kept", width: 1280, height: 720, wantW: 1280, wantH: 720},
		{name: "odd rounded down", width: 1001, height: 667, wantW: 1000, wantH: 666},
		{name: "downscaled", width: 3840, height: 2160, wantW: 1920, wantH: 1080},
		{name: "portrait", width: 1080, height: 1350, wantW: 1080, wantH: 1350},
		{name: "tiny", width: 1, height: 1, wantW: 2, wantH: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := baseRequest(jobs.ProfileStandard)
			req.ImageWidth, req.ImageHeight = tt.width, tt.height
			plan, _, err := planner.Plan(req)
			if err != nil {
				t.Fatalf("Plan: %v", err)
			}
			if plan.CanvasWidth != tt.wantW || plan.CanvasHeight != tt.wantH {
				t.Fatalf("canvas %dx%d, want %dx%d", plan.CanvasWidth, plan.CanvasHeight, tt.wantW, tt.wantH)
			}
			if plan.DurationCap != 0 || plan.Fit != composition.FitPreserve {
				t.Fatalf("standard plan must be uncapped preserve, got cap=%v fit=%s", plan.DurationCap, plan.Fit)
			}
		})
	}
}

func TestPlanShortTruncates(t *testing.T) {
	planner := newPlanner(t)
	req := baseRequest(jobs.ProfileShort)
	req.AudioDuration = 70
	req.Subtitles = subtitles.Result{
		Plain: []subtitles.Cue{
			{Start: 1, End: 2, Text: "intro"},
			{Start: 58.5, End: 60, Text: "boundary"},
			{Start: 61, End: 63, Text: "gone"},
		},
		Karaoke: []subtitles.KaraokeCue{
			{Cue: subtitles.Cue{Start: 1, End: 2, Text: "intro"}, Words: []subtitles.Highlight{{Text: "intro", Start: 0, End: 1}}},
			{Cue: subtitles.Cue{Start: 58.5, End: 60, Text: "boundary"}, Words: []subtitles.Highlight{{Text: "boundary", Start: 0, End: 1.5}}},
			{Cue: subtitles.Cue{Start: 61, End: 63, Text: "gone"}, Words: []subtitles.Highlight{{Text: "gone", Start: 0, End: 2}}},
		},
	}
	plan, cues, err := planner.Plan(req)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if plan.DurationCap != 59 || plan.CanvasWidth != 1080 || plan.CanvasHeight != 1920 || plan.Fit != composition.FitFill {
		t.Fatalf("unexpected short plan %+v", plan)
	}
	if len(cues.Plain) != 2 || cues.Plain[1].End != 59 {
		t.Fatalf("unexpected truncated cues %+v", cues.Plain)
	}
	if cues.Karaoke[1].Words[0].End != 0.5 {
		t.Fatalf("highlight not clipped: %+v", cues.Karaoke[1].Words)
	}
	if plan.OutputDuration() != 59 {
		t.Fatalf("output duration %v", plan.OutputDuration())
	}
}

func TestPlanClipsCuesToAudio(t *testing.T) {
	planner := newPlanner(t)
	req := baseRequest(jobs.ProfileStandard)
	req.AudioDuration = 10
	req.Subtitles = subtitles.Result{
		Plain:   []subtitles.Cue{{Start: 9, End: 11, Text: "late"}},
		Karaoke: []subtitles.KaraokeCue{{Cue: subtitles.Cue{Start: 9, End: 11, Text: "late"}}},
	}
	_, cues, err := planner.Plan(req)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if cues.End() != 10 {
		t.Fatalf("cue end %v exceeds audio", cues.End())
	}
}

func TestPlanRejectsBadRequests(t *testing.T) {
	planner := newPlanner(t)
	mutations := map[string]func(*composition.Request){
		"zero duration":   func(r *composition.Request) { r.AudioDuration = 0 },
		"zero image":      func(r *composition.Request) { r.ImageWidth = 0 },
		"unknown profile": func(r *composition.Request) { r.Profile = "square" },
		"missing output":  func(r *composition.Request) { r.OutputPath = "" },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			req := baseRequest(jobs.ProfileStandard)
			mutate(&req)
			if _, _, err := planner.Plan(req); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestNewPlannerRejectsLongShortCap(t *testing.T) {
	cfg := config.Default()
	settings, err := composition.SettingsFromConfig(&cfg)
	if err != nil {
		t.Fatal(err)
	}
	settings.ShortDurationCap = 60
	if _, err := composition.NewPlanner(settings, nil); err == nil {
		t.Fatal("expected cap above 59 to be rejected")
	}
}

func TestArgs(t *testing.T) {
	planner := newPlanner(t)

	standard, _, err := planner.Plan(baseRequest(jobs.ProfileStandard))
	if err != nil {
		t.Fatal(err)
	}
	standard = standard.WithSubtitles("/work/captions.ass")
	args := composition.Args(standard)
	joined := strings.Join(args, " ")
	for _, want := range []string{
		"-loop 1 -i /work/image.jpg",
		"-i /work/audio.mp3",
		"-c:v libx264 -tune stillimage",
		"-pix_fmt yuv420p",
		"-c:a aac -b:a 192k",
		"-shortest",
		"-movflags +faststart",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args missing %q: %s", want, joined)
		}
	}
	if args[len(args)-1] != "/work/output.mp4" {
		t.Fatalf("output must be last, got %q", args[len(args)-1])
	}
	if vf := composition.VideoFilter(standard); vf != "scale=1280:720,setsar=1,ass=/work/captions.ass" {
		t.Fatalf("unexpected standard filter %q", vf)
	}
	if slices.Contains(args, "-t") {
		t.Fatal("standard plan must not cap duration")
	}

	shortReq := baseRequest(jobs.ProfileShort)
	shortReq.AudioDuration = 70
	short, _, err := planner.Plan(shortReq)
	if err != nil {
		t.Fatal(err)
	}
	short = short.WithSubtitles("/work/captions.srt")
	args = composition.Args(short)
	idx := slices.Index(args, "-t")
	if idx < 0 || args[idx+1] != "59" {
		t.Fatalf("short plan must cap at 59: %v", args)
	}
	if slices.Contains(args, "-shortest") {
		t.Fatal("capped plan uses -t instead of -shortest")
	}
	uncapped, _, err := planner.Plan(baseRequest(jobs.ProfileShort))
	if err != nil {
		t.Fatal(err)
	}
	if args := composition.Args(uncapped); slices.Contains(args, "-t") || !slices.Contains(args, "-shortest") {
		t.Fatalf("short audio under the cap ends with the audio: %v", args)
	}
	want := "scale=1080:1920:force_original_aspect_ratio=increase,crop=1080:1920,setsar=1,subtitles=/work/captions.srt"
	if vf := composition.VideoFilter(short); vf != want {
		t.Fatalf("unexpected short filter %q", vf)
	}

	padded := short.WithSubtitles("")
	padded.Fit = composition.FitPad
	if vf := composition.VideoFilter(padded); vf != "scale=1080:1920:force_original_aspect_ratio=decrease,pad=1080:1920:(ow-iw)/2:(oh-ih)/2:color=black,setsar=1" {
		t.Fatalf("unexpected pad filter %q", vf)
	}
}

func TestArgsDeterministic(t *testing.T) {
	planner := newPlanner(t)
	plan, _, err := planner.Plan(baseRequest(jobs.ProfileShort))
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(composition.Args(plan), composition.Args(plan)) {
		t.Fatal("Args is not a pure function of the plan")
	}
}

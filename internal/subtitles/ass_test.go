package subtitles

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testASSOptions() ASSOptions {
	return ASSOptions{
		PlayResX:       1080,
		PlayResY:       1920,
		Font:           "Arial",
		FontSize:       56,
		TextColor:      "FFFFFF",
		HighlightColor: "FFD700",
		MarginV:        60,
	}
}

func dialogueLines(script string) []string {
	var out []string
	for _, line := range strings.Split(script, "\n") {
		if strings.HasPrefix(line, "Dialogue:") {
			out = append(out, line)
		}
	}
	return out
}

func TestWriteASSHighlightsEachWord(t *testing.T) {
	cues := []KaraokeCue{{
		Cue: Cue{Start: 1, End: 2, Text: "hi there"},
		Words: []Highlight{
			{Text: "hi", Start: 0, End: 0.5},
			{Text: "there", Start: 0.6, End: 1.0},
		},
	}}
	var buf bytes.Buffer
	if err := WriteASS(&buf, cues, testASSOptions()); err != nil {
		t.Fatalf("WriteASS: %v", err)
	}
	script := buf.String()
	for _, want := range []string{"[Script Info]", "PlayResX: 1080", "PlayResY: 1920", "[V4+ Styles]", "Style: Default,Arial,56,&H00FFFFFF,&H0000D7FF", "[Events]"} {
		if !strings.Contains(script, want) {
			t.Fatalf("script missing %q:\n%s", want, script)
		}
	}
	lines := dialogueLines(script)
	want := []string{
		`Dialogue: 0,0:00:01.00,0:00:01.50,Default,,0,0,0,,{\c&H00D7FF&}hi{\r} there`,
		`Dialogue: 0,0:00:01.50,0:00:01.60,Default,,0,0,0,,hi there`,
		`Dialogue: 0,0:00:01.60,0:00:02.00,Default,,0,0,0,,hi {\c&H00D7FF&}there{\r}`,
	}
	if strings.Join(lines, "\n") != strings.Join(want, "\n") {
		t.Fatalf("unexpected dialogue lines:\n%s", strings.Join(lines, "\n"))
	}
}

func TestWriteASSSkipsZeroLengthAndEscapes(t *testing.T) {
	cues := []KaraokeCue{{
		Cue: Cue{Start: 0, End: 0.504, Text: `{a}\b`},
		Words: []Highlight{
			{Text: `{a}\b`, Start: 0, End: 0.5},
		},
	}}
	var buf bytes.Buffer
	if err := WriteASS(&buf, cues, testASSOptions()); err != nil {
		t.Fatalf("WriteASS: %v", err)
	}
	lines := dialogueLines(buf.String())
	if len(lines) != 1 {
		t.Fatalf("expected trailing sub-centisecond event to be skipped, got %v", lines)
	}
	if !strings.Contains(lines[0], `\{a\}\\b`) {
		t.Fatalf("text not escaped: %s", lines[0])
	}
}

func TestASSHelpers(t *testing.T) {
	if got := assColor("#ffd700"); got != "00D7FF" {
		t.Fatalf("assColor = %q", got)
	}
	if got := assColor("bad"); got != "FFFFFF" {
		t.Fatalf("assColor fallback = %q", got)
	}
	if got := formatASSTimestamp(366_123); got != "1:01:01.23" {
		t.Fatalf("formatASSTimestamp = %q", got)
	}
}

func TestWriteTracks(t *testing.T) {
	dir := t.TempDir()
	result := Result{
		Plain:   []Cue{{Start: 0, End: 1, Text: "hello"}},
		Karaoke: []KaraokeCue{{Cue: Cue{Start: 0, End: 1, Text: "hello"}, Words: []Highlight{{Text: "hello", Start: 0, End: 1}}}},
	}
	tracks, err := WriteTracks(dir, "captions", result, testASSOptions())
	if err != nil {
		t.Fatalf("WriteTracks: %v", err)
	}
	if tracks.SRTPath != filepath.Join(dir, "captions.srt") || tracks.ASSPath != filepath.Join(dir, "captions.ass") {
		t.Fatalf("unexpected paths %+v", tracks)
	}
	for _, path := range []string{tracks.SRTPath, tracks.ASSPath} {
		data, err := os.ReadFile(path)
		if err != nil || !strings.Contains(string(data), "hello") {
			t.Fatalf("read %s: %v %q", path, err, data)
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected only the two tracks, got %d entries", len(entries))
	}
}

package subtitles_test

import (
	"testing"

	"reelsync/internal/subtitles"
	"reelsync/internal/transcript"
)

func TestTruncateShortCap(t *testing.T) {
	s := newSynchronizer(t, subtitles.Config{MaxChars: 42, MaxWords: 2, MaxGapSeconds: 0.8})
	result := s.Sync([]transcript.Word{
		{Text: "early", Start: 10, End: 11},
		{Text: "words", Start: 11, End: 12},
		{Text: "boundary", Start: 58.5, End: 59.4},
		{Text: "cue", Start: 59.4, End: 60},
		{Text: "dropped", Start: 61, End: 62},
	})
	if len(result.Plain) != 3 {
		t.Fatalf("expected 3 cues before truncation, got %d", len(result.Plain))
	}

	clipped := subtitles.Truncate(result, 59)
	if len(clipped.Plain) != 2 || len(clipped.Karaoke) != 2 {
		t.Fatalf("expected 2 cues after truncation, got %d/%d", len(clipped.Plain), len(clipped.Karaoke))
	}
	boundary := clipped.Plain[1]
	if boundary.Start != 58.5 || boundary.End != 59 {
		t.Fatalf("boundary cue = %+v, want 58.5-59", boundary)
	}
	karaoke := clipped.Karaoke[1]
	if karaoke.End != 59 || karaoke.Text != "boundary" {
		t.Fatalf("karaoke boundary cue = %+v", karaoke.Cue)
	}
	if boundary.Text != karaoke.Text {
		t.Fatalf("plain text %q diverges from karaoke text %q", boundary.Text, karaoke.Text)
	}
	if len(karaoke.Words) != 1 || !approx(karaoke.Words[0].End, 0.5) {
		t.Fatalf("expected one highlight clipped to 0.5s, got %+v", karaoke.Words)
	}
	if clipped.End() != 59 {
		t.Fatalf("end = %v, want 59", clipped.End())
	}
	if len(result.Plain) != 3 {
		t.Fatalf("truncate mutated its input")
	}
}

func TestTruncateKeepsTracksAligned(t *testing.T) {
	s := newSynchronizer(t, subtitles.Config{MaxChars: 42, MaxWords: 6, MaxGapSeconds: 0.8})
	result := subtitles.Truncate(s.Sync([]transcript.Word{
		{Text: "a", Start: 58.5, End: 58.9},
		{Text: "b", Start: 59.2, End: 60},
		{Text: "late", Start: 62, End: 63},
	}), 59)

	if len(result.Plain) != len(result.Karaoke) {
		t.Fatalf("track lengths differ: %d plain, %d karaoke", len(result.Plain), len(result.Karaoke))
	}
	for i := range result.Plain {
		if result.Plain[i] != result.Karaoke[i].Cue {
			t.Fatalf("cue %d: plain %+v, karaoke %+v", i, result.Plain[i], result.Karaoke[i].Cue)
		}
	}
	if len(result.Plain) != 1 || result.Plain[0].Text != "a" || result.Plain[0].End != 59 {
		t.Fatalf("plain = %+v, want one cue \"a\" ending at 59", result.Plain)
	}
}

func TestTruncateEdges(t *testing.T) {
	base := subtitles.Result{
		Plain: []subtitles.Cue{
			{Start: 0, End: 1, Text: "a"},
			{Start: 5, End: 6, Text: "b"},
		},
		Karaoke: []subtitles.KaraokeCue{
			{Cue: subtitles.Cue{Start: 0, End: 1, Text: "a"}, Words: []subtitles.Highlight{{Text: "a", Start: 0, End: 1}}},
			{Cue: subtitles.Cue{Start: 5, End: 6, Text: "b"}, Words: []subtitles.Highlight{{Text: "b", Start: 0, End: 1}}},
		},
	}
	tests := []struct {
		name string
		cap  float64
		want int
	}{
		{name: "no cap", cap: 0, want: 2},
		{name: "negative cap", cap: -3, want: 2},
		{name: "cap past end", cap: 100, want: 2},
		{name: "cue starting at cap dropped", cap: 5, want: 1},
		{name: "everything dropped", cap: 0.0001, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := subtitles.Truncate(base, tt.cap)
			if len(got.Plain) != tt.want || len(got.Karaoke) != tt.want {
				t.Fatalf("got %d/%d cues, want %d", len(got.Plain), len(got.Karaoke), tt.want)
			}
			if tt.cap > 0 && got.End() > tt.cap {
				t.Fatalf("end %v exceeds cap %v", got.End(), tt.cap)
			}
		})
	}
	if got := subtitles.Truncate(subtitles.Result{}, 59); !got.Empty() {
		t.Fatalf("expected empty result")
	}
}

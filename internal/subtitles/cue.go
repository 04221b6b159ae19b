package subtitles

// Cue is one timed subtitle line.
type Cue struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Duration returns the cue's display time in seconds.
func (c Cue) Duration() float64 {
	return c.End - c.Start
}

// Highlight is a word's active window, in seconds relative to its cue's start.
type Highlight struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// KaraokeCue is a cue carrying the highlight window of every word it shows.
type KaraokeCue struct {
	Cue
	Words []Highlight `json:"words"`
}

// Result holds both tracks produced from one grouping pass. Plain[i] and
// Karaoke[i] always describe the same line.
type Result struct {
	Plain   []Cue        `json:"plain"`
	Karaoke []KaraokeCue `json:"karaoke"`
}

// Empty reports whether no speech survived synchronization.
func (r Result) Empty() bool {
	return len(r.Plain) == 0
}

// End returns the end of the last cue, or 0 when empty.
func (r Result) End() float64 {
	if len(r.Plain) == 0 {
		return 0
	}
	return r.Plain[len(r.Plain)-1].End
}

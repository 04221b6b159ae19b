package subtitles

// Truncate clips both tracks to capSeconds. Cues starting at or after the cap
// are dropped and a cue straddling it ends at the cap. Karaoke highlights are
// clipped the same way, and a straddling line's text on both tracks is
// rebuilt from the words that remain. A non-positive cap returns the result
// unchanged.
func Truncate(result Result, capSeconds float64) Result {
	if capSeconds <= 0 {
		return result
	}
	paired := len(result.Plain) == len(result.Karaoke)
	out := Result{
		Plain:   make([]Cue, 0, len(result.Plain)),
		Karaoke: make([]KaraokeCue, 0, len(result.Karaoke)),
	}
	for i, cue := range result.Plain {
		if cue.Start >= capSeconds {
			continue
		}
		if cue.End > capSeconds {
			cue.End = capSeconds
			if paired {
				cue.Text = lineText(clipHighlights(result.Karaoke[i], capSeconds))
			}
		}
		out.Plain = append(out.Plain, cue)
	}
	for _, cue := range result.Karaoke {
		if cue.Start >= capSeconds {
			continue
		}
		clipped := cue
		clipped.Words = clipHighlights(cue, capSeconds)
		if clipped.End > capSeconds {
			clipped.End = capSeconds
			clipped.Text = lineText(clipped.Words)
		}
		out.Karaoke = append(out.Karaoke, clipped)
	}
	return out
}

// clipHighlights returns the cue's highlights that start before the cap,
// with the last one ending at it.
func clipHighlights(cue KaraokeCue, capSeconds float64) []Highlight {
	limit := capSeconds - cue.Start
	var words []Highlight
	for _, w := range cue.Words {
		if w.Start >= limit {
			continue
		}
		if w.End > limit {
			w.End = limit
		}
		words = append(words, w)
	}
	return words
}

package subtitles

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strings"
)

// ASSOptions controls the script header and style of a rendered karaoke track.
// Colors are RRGGBB hex without a leading '#'.
type ASSOptions struct {
	PlayResX       int
	PlayResY       int
	Font           string
	FontSize       int
	TextColor      string
	HighlightColor string
	MarginV        int
}

// WriteASS renders karaoke cues as an Advanced SubStation Alpha script. Each
// highlight window becomes one Dialogue event showing the whole line with
// the active word recoloured. Gaps between words inside a cue are covered by
// an event with no word highlighted, so the line never flickers off.
func WriteASS(w io.Writer, cues []KaraokeCue, opts ASSOptions) error {
	bw := bufio.NewWriter(w)
	writeASSHeader(bw, opts)
	highlight := assColor(opts.HighlightColor)
	for _, cue := range cues {
		cursor := cue.Start
		for i, word := range cue.Words {
			start := cue.Start + word.Start
			end := cue.Start + word.End
			if start > cursor {
				writeDialogue(bw, cursor, start, renderLine(cue.Words, -1, highlight))
			}
			writeDialogue(bw, start, end, renderLine(cue.Words, i, highlight))
			cursor = end
		}
		if len(cue.Words) == 0 {
			writeDialogue(bw, cue.Start, cue.End, escapeASS(cue.Text))
		} else if cue.End > cursor {
			writeDialogue(bw, cursor, cue.End, renderLine(cue.Words, -1, highlight))
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write ass: %w", err)
	}
	return nil
}

func writeASSHeader(w *bufio.Writer, opts ASSOptions) {
	fmt.Fprintf(w, "[Script Info]\nScriptType: v4.00+\nPlayResX: %d\nPlayResY: %d\nWrapStyle: 0\nScaledBorderAndShadow: yes\n\n", opts.PlayResX, opts.PlayResY)
	w.WriteString("[V4+ Styles]\n")
	w.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	fmt.Fprintf(w, "Style: Default,%s,%d,&H00%s,&H00%s,&H00000000,&H80000000,-1,0,0,0,100,100,0,0,1,3,1,2,40,40,%d,1\n\n",
		opts.Font, opts.FontSize, assColor(opts.TextColor), assColor(opts.HighlightColor), opts.MarginV)
	w.WriteString("[Events]\n")
	w.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
}

// writeDialogue skips events that round to zero length.
func writeDialogue(w *bufio.Writer, start, end float64, text string) {
	startCs := toCentis(start)
	endCs := toCentis(end)
	if endCs <= startCs {
		return
	}
	fmt.Fprintf(w, "Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n", formatASSTimestamp(startCs), formatASSTimestamp(endCs), text)
}

func renderLine(words []Highlight, active int, color string) string {
	var b strings.Builder
	for i, word := range words {
		if i > 0 {
			b.WriteByte(' ')
		}
		if i == active {
			fmt.Fprintf(&b, "{\\c&H%s&}%s{\\r}", color, escapeASS(word.Text))
			continue
		}
		b.WriteString(escapeASS(word.Text))
	}
	return b.String()
}

func toCentis(seconds float64) int64 {
	if seconds < 0 || math.IsNaN(seconds) {
		return 0
	}
	return int64(math.Round(seconds * 100))
}

func formatASSTimestamp(cs int64) string {
	hours := cs / 360_000
	cs -= hours * 360_000
	minutes := cs / 6000
	cs -= minutes * 6000
	seconds := cs / 100
	cs -= seconds * 100
	return fmt.Sprintf("%d:%02d:%02d.%02d", hours, minutes, seconds, cs)
}

// assColor converts RRGGBB to the BBGGRR order ASS expects. Malformed input
// falls back to white.
func assColor(rgb string) string {
	rgb = strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(rgb), "#"))
	if len(rgb) != 6 {
		return "FFFFFF"
	}
	return rgb[4:6] + rgb[2:4] + rgb[0:2]
}

var assEscaper = strings.NewReplacer(`\`, `\\`, "{", `\{`, "}", `\}`, "\n", " ")

func escapeASS(text string) string {
	return assEscaper.Replace(text)
}

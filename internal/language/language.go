package language

import (
	"fmt"
	"strings"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Parse reduces a language code or tag to its ISO 639-1 base. Empty input
// and "auto" return "" with no error.
func Parse(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" || strings.EqualFold(code, "auto") {
		return "", nil
	}
	tag, err := language.Parse(code)
	if err != nil {
		return "", fmt.Errorf("parse language %q: %w", code, err)
	}
	base, conf := tag.Base()
	if conf == language.No {
		return "", fmt.Errorf("parse language %q: no base language", code)
	}
	return base.String(), nil
}

// ToISO2 is Parse for callers that treat unknown input as absent.
func ToISO2(code string) string {
	normalized, err := Parse(code)
	if err != nil {
		return ""
	}
	return normalized
}

// DisplayName returns the English name for a code, "Unknown" for empty input,
// or the uppercased input when it cannot be parsed.
func DisplayName(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return "Unknown"
	}
	tag, err := language.Parse(code)
	if err != nil {
		return strings.ToUpper(code)
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return strings.ToUpper(code)
}

// Detection is a language guess for a piece of text.
type Detection struct {
	Code       string
	Confidence float64
	Reliable   bool
}

// Detect guesses the language of text. Code is empty when nothing could be
// guessed.
func Detect(text string) Detection {
	text = strings.TrimSpace(text)
	if text == "" {
		return Detection{}
	}
	info := whatlanggo.Detect(text)
	code := ToISO2(info.Lang.Iso6391())
	if code == "" {
		return Detection{}
	}
	return Detection{
		Code:       code,
		Confidence: info.Confidence,
		Reliable:   info.IsReliable(),
	}
}

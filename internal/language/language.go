package language

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

var names = display.English.Languages()

func parse(code string) (language.Tag, bool) {
	code = strings.TrimSpace(code)
	if code == "" {
		return language.Und, false
	}
	tag, err := language.Parse(code)
	if err != nil || tag == language.Und {
		return language.Und, false
	}
	return tag, true
}

// Normalize reduces code to its base language subtag, preferring ISO 639-1
// ("eng" and "en-US" both become "en"). Unparseable input yields "".
func Normalize(code string) string {
	tag, ok := parse(code)
	if !ok {
		return ""
	}
	base, _ := tag.Base()
	return base.String()
}

// DisplayName returns the English name for code. Empty input is "Unknown";
// unrecognized input is echoed uppercased.
func DisplayName(code string) string {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "Unknown"
	}
	tag, ok := parse(trimmed)
	if !ok {
		return strings.ToUpper(trimmed)
	}
	base, _ := tag.Base()
	if name := names.Name(base); name != "" {
		return name
	}
	return strings.ToUpper(trimmed)
}

// Describe renders a detected language with its confidence, for example
// "English (en, 98%)". A zero probability is omitted.
func Describe(code string, probability float64) string {
	norm := Normalize(code)
	if norm == "" {
		return DisplayName(code)
	}
	if probability <= 0 {
		return fmt.Sprintf("%s (%s)", DisplayName(norm), norm)
	}
	return fmt.Sprintf("%s (%s, %.0f%%)", DisplayName(norm), norm, probability*100)
}

package transcript

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	fillerPattern     = regexp.MustCompile(`(?i)\b(umm|uhh|ah|like|you know|basically)\b`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// CleanText removes filler words and collapses runs of whitespace.
func CleanText(text string) string {
	text = fillerPattern.ReplaceAllString(text, "")
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
}

// Clean applies CleanText to every segment in place.
func Clean(segments []Segment) []Segment {
	for i := range segments {
		segments[i].Text = CleanText(segments[i].Text)
	}
	return segments
}

// Render formats segments one per line as "[speaker][12.3s] text", the layout
// the judge prompt expects.
func Render(segments []Segment) string {
	var b strings.Builder
	for i, seg := range segments {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "[%s][%.1fs] %s", seg.Speaker, seg.Start, seg.Text)
	}
	return b.String()
}

package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// segmentReplacer maps characters that are illegal in path segments on at
// least one supported platform to a dash.
var segmentReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	"?", "-",
	"%", "-",
	"*", "-",
	":", "-",
	"|", "-",
	"\"", "-",
	"<", "-",
	">", "-",
)

// SanitizeSegment returns name in NFC form with filesystem-illegal and control
// characters replaced by dashes and surrounding whitespace trimmed. The
// function is total: any input, including the empty string, yields a result.
func SanitizeSegment(name string) string {
	name = norm.NFC.String(name)
	name = segmentReplacer.Replace(strings.TrimSpace(name))
	return strings.TrimSpace(strings.Map(replaceControl, name))
}

func replaceControl(r rune) rune {
	if unicode.IsControl(r) {
		return '-'
	}
	return r
}

// StripDots removes every '.' from a title. Lesson and unit titles commonly
// end in a period, which would otherwise be confused with an extension.
func StripDots(title string) string {
	return strings.ReplaceAll(title, ".", "")
}

// SanitizeTitle strips dots before sanitizing.
func SanitizeTitle(title string) string {
	return SanitizeSegment(StripDots(title))
}

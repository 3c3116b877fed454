package clip

import (
	"strings"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// stripControls drops ASCII control runes except newline and tab, plus DEL.
var stripControls = runes.Remove(runes.Predicate(func(r rune) bool {
	return (r < 0x20 && r != '\n' && r != '\t') || r == 0x7f
}))

// Sanitize applies the stored-text rule:
//  1. invalid UTF-8 sequences become U+FFFD,
//  2. runes below 0x20 other than '\n' and '\t', and 0x7F, are removed,
//  3. leading and trailing Unicode whitespace is trimmed.
//
// For example "hello\x00\x01world\n" becomes "helloworld".
func Sanitize(text string) (string, error) {
	text = strings.ToValidUTF8(text, "�")
	out, _, err := transform.String(stripControls, text)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

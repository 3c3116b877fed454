package clip

import (
	"crypto/rand"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Alphabet is the set of symbols codes are drawn from: uppercase letters and
// digits without the confusable 0/O and 1/I glyphs. Its size is exactly 32,
// so the low five bits of a uniformly random byte select a symbol uniformly.
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// DefaultCodeLength is the code length used when none is configured.
const DefaultCodeLength = 6

// Generator produces random candidate codes of a fixed length.
// It is safe for concurrent use.
type Generator struct {
	length int
	rand   io.Reader
}

// NewGenerator returns a Generator backed by crypto/rand. Lengths <= 0 fall
// back to DefaultCodeLength.
func NewGenerator(length int) *Generator {
	if length <= 0 {
		length = DefaultCodeLength
	}
	return &Generator{length: length, rand: rand.Reader}
}

// Length returns the number of symbols in every generated code.
func (g *Generator) Length() int { return g.length }

// New returns a fresh candidate code. Uniqueness is not checked here; the
// store enforces it through the backend's insert-if-absent primitive.
func (g *Generator) New() (string, error) {
	buf := make([]byte, g.length)
	if _, err := io.ReadFull(g.rand, buf); err != nil {
		return "", fmt.Errorf("clip: read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = Alphabet[b&31]
	}
	return string(buf), nil
}

// NormalizeCode returns the canonical (trimmed, uppercase) form of a code.
// Codes are matched case-insensitively.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidCode reports whether code, after normalization, has exactly length
// symbols and every symbol belongs to Alphabet.
func ValidCode(code string, length int) bool {
	code = NormalizeCode(code)
	if len(code) != length {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(Alphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}

// CodePattern returns a case-insensitive pattern matching a standalone code of
// the given length. It is used to scrub codes from logs.
func CodePattern(length int) *regexp.Regexp {
	if length <= 0 {
		length = DefaultCodeLength
	}
	return regexp.MustCompile(fmt.Sprintf(`(?i)\b[%s]{%d}\b`, Alphabet, length))
}

package runner

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aretw0/railyard/pkg/domain"
)

var (
	// DefaultMaxInputSize is 4KB, a few paragraphs of chat.
	DefaultMaxInputSize = 4096
	// EnvMaxInputSize overrides DefaultMaxInputSize.
	EnvMaxInputSize = "RAILYARD_MAX_INPUT_SIZE"
)

var (
	ErrInputTooLarge = fmt.Errorf("%w: input exceeds maximum allowed size", domain.ErrInvalidInput)
	ErrInvalidUTF8   = fmt.Errorf("%w: input contains invalid UTF-8 sequences", domain.ErrInvalidInput)
)

// Sanitizer normalizes a user utterance before the input rails see it.
//
// Line endings become "\n". Control characters other than newline and tab are
// dropped. Unicode format characters (zero-width spaces and joiners, bidi
// overrides, soft hyphens) are dropped too unless KeepFormatChars is set, so
// that blocklist and pattern guards match the text as it is displayed.
type Sanitizer struct {
	// MaxSize is the limit in bytes. Zero means MaxInputSize().
	MaxSize int
	// KeepFormatChars keeps Unicode format characters, e.g. for scripts that
	// need zero-width joiners.
	KeepFormatChars bool
}

// Clean returns the normalized utterance. Oversized and invalid UTF-8 input is
// rejected rather than repaired; errors wrap domain.ErrInvalidInput.
func (s Sanitizer) Clean(input string) (string, error) {
	limit := s.MaxSize
	if limit <= 0 {
		limit = MaxInputSize()
	}
	if len(input) > limit {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(input), limit)
	}
	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}

	if s.clean(input) {
		return input, nil
	}
	input = strings.ReplaceAll(input, "\r\n", "\n")
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		switch {
		case r == '\r':
			b.WriteRune('\n')
		case s.drop(r):
		default:
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

func (s Sanitizer) clean(input string) bool {
	for _, r := range input {
		if r == '\r' || s.drop(r) {
			return false
		}
	}
	return true
}

func (s Sanitizer) drop(r rune) bool {
	if unicode.IsControl(r) {
		return r != '\n' && r != '\t'
	}
	return !s.KeepFormatChars && unicode.Is(unicode.Cf, r)
}

// SanitizeInput cleans input with the default Sanitizer.
func SanitizeInput(input string) (string, error) {
	return Sanitizer{}.Clean(input)
}

// MaxInputSize returns the input limit in bytes, honouring EnvMaxInputSize.
func MaxInputSize() int {
	if val := os.Getenv(EnvMaxInputSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxInputSize
}

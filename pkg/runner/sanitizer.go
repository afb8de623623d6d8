package runner

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxCommandSize bounds a single command line.
const MaxCommandSize = 1024

var (
	ErrCommandTooLarge = errors.New("command exceeds maximum allowed size")
	ErrInvalidUTF8     = errors.New("command contains invalid UTF-8 sequences")
)

// SanitizeCommand trims a command line, rejects oversized or malformed
// input and strips control characters so escape sequences never reach the
// terminal or the logs.
func SanitizeCommand(line string) (string, error) {
	if len(line) > MaxCommandSize {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrCommandTooLarge, len(line), MaxCommandSize)
	}
	if !utf8.ValidString(line) {
		return "", ErrInvalidUTF8
	}
	line = strings.TrimSpace(line)
	if strings.IndexFunc(line, unicode.IsControl) < 0 {
		return line, nil
	}
	var b strings.Builder
	b.Grow(len(line))
	for _, r := range line {
		switch {
		case r == '\t':
			b.WriteRune(' ')
		case !unicode.IsControl(r):
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

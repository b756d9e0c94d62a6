package extract

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode"
)

// minFallbackChars is exclusive: the joined runs must be longer than this.
const minFallbackChars = 50

// parenRun matches printable ASCII between parentheses, which is how PDF
// content streams encode literal strings.
var parenRun = regexp.MustCompile(`\(([\x20-\x27\x2a-\x7e]+)\)`)

var errNoParenText = errors.New("no recoverable text runs")

// scanParenRuns treats the payload as a byte string and keeps runs of at
// least four characters containing a letter.
func scanParenRuns(ctx context.Context, data []byte) (string, int, error) {
	matches := parenRun.FindAllSubmatch(data, -1)
	runs := make([]string, 0, len(matches))
	for _, m := range matches {
		if ctx.Err() != nil {
			return "", 0, ctx.Err()
		}
		run := strings.TrimSpace(string(m[1]))
		if len(run) < 4 || !strings.ContainsFunc(run, unicode.IsLetter) {
			continue
		}
		runs = append(runs, run)
	}
	text := strings.Join(runs, " ")
	if len(text) <= minFallbackChars {
		return "", 0, errNoParenText
	}
	return text, 1, nil
}

package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
)

const (
	// MaxPDFPages bounds the pages read by the primary parser.
	MaxPDFPages = 500
	// minPrimaryChars is the non-space character count below which the parser result is discarded.
	minPrimaryChars = 50
)

var errSparsePrimary = errors.New("primary parser yielded too little text")

func parsePDF(ctx context.Context, data []byte) (string, int, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, err
	}
	total := reader.NumPage()
	if total == 0 {
		return "", 0, errors.New("pdf has no pages")
	}

	var buf strings.Builder
	for i := 1; i <= min(total, MaxPDFPages); i++ {
		if err := ctx.Err(); err != nil {
			return "", 0, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", 0, fmt.Errorf("page %d: %w", i, err)
		}
		buf.WriteString(content)
		buf.WriteString("\n")
	}

	text := buf.String()
	if nonSpaceLen(text) < minPrimaryChars {
		return "", total, errSparsePrimary
	}
	return text, total, nil
}

func nonSpaceLen(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

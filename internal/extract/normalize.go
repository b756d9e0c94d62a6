package extract

import (
	"path/filepath"
	"strings"
	"unicode"
)

// Canonical media types accepted by the upload gate.
const (
	MimePDF      = "application/pdf"
	MimeDOCX     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeText     = "text/plain"
	MimeMarkdown = "text/markdown"
)

// TruncationMarker is appended when text is cut to the prompt ceiling.
const TruncationMarker = "\n\n[Content truncated due to length...]"

const keptPunctuation = `.,;:!?'"()-/%&@#$+=_[]`

// Normalize collapses whitespace runs to single spaces and drops characters
// outside letters, digits and a conservative punctuation set.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	pendingSpace := false
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = b.Len() > 0
		case unicode.IsLetter(r), unicode.IsDigit(r), strings.ContainsRune(keptPunctuation, r):
			if pendingSpace {
				b.WriteByte(' ')
				pendingSpace = false
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Truncate cuts text to maxChars characters and appends TruncationMarker.
// It reports whether truncation happened. maxChars <= 0 disables the ceiling.
func Truncate(text string, maxChars int) (string, bool) {
	if maxChars <= 0 {
		return text, false
	}
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text, false
	}
	return string(runes[:maxChars]) + TruncationMarker, true
}

// AcceptedMimeType maps a declared media type to a canonical accepted one.
// Empty, generic binary and zip declarations are resolved by extension.
func AcceptedMimeType(declared string, fileName string) (string, bool) {
	clean := strings.ToLower(strings.TrimSpace(strings.Split(declared, ";")[0]))
	switch clean {
	case MimePDF, MimeDOCX, MimeText, MimeMarkdown:
		return clean, true
	case "", "application/octet-stream", "application/zip", "application/x-zip-compressed":
	default:
		return "", false
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	if clean == "application/zip" || clean == "application/x-zip-compressed" {
		// Some browsers report OOXML documents as plain zip archives.
		if ext == ".docx" {
			return MimeDOCX, true
		}
		return "", false
	}
	switch ext {
	case ".pdf":
		return MimePDF, true
	case ".docx":
		return MimeDOCX, true
	case ".txt":
		return MimeText, true
	case ".md", ".markdown":
		return MimeMarkdown, true
	default:
		return "", false
	}
}

package extract

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "  Hello\n\n\tworld  ", want: "Hello world"},
		{in: "Price: $40 (approx.) ~ 50%", want: "Price: $40 (approx.) 50%"},
		{in: "a\u0000b c", want: "ab c"},
		{in: "Café résumé", want: "Café résumé"},
		{in: "   ", want: ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	text := strings.Repeat("x", 20)
	got, truncated := Truncate(text, 10)
	if !truncated {
		t.Fatalf("expected truncation")
	}
	if got != strings.Repeat("x", 10)+TruncationMarker {
		t.Fatalf("unexpected truncated text %q", got)
	}

	got, truncated = Truncate(text, 20)
	if truncated || got != text {
		t.Fatalf("expected text at the ceiling to pass through")
	}
	if _, truncated := Truncate(text, 0); truncated {
		t.Fatalf("expected zero ceiling to disable truncation")
	}
}

func TestAcceptedMimeType(t *testing.T) {
	tests := []struct {
		declared string
		fileName string
		want     string
		ok       bool
	}{
		{declared: "application/pdf", fileName: "a.pdf", want: MimePDF, ok: true},
		{declared: "Application/PDF; charset=binary", fileName: "a", want: MimePDF, ok: true},
		{declared: "", fileName: "a.PDF", want: MimePDF, ok: true},
		{declared: "application/octet-stream", fileName: "a.docx", want: MimeDOCX, ok: true},
		{declared: "application/zip", fileName: "a.docx", want: MimeDOCX, ok: true},
		{declared: "application/zip", fileName: "a.zip", ok: false},
		{declared: "text/markdown", fileName: "a.md", want: MimeMarkdown, ok: true},
		{declared: "", fileName: "notes.txt", want: MimeText, ok: true},
		{declared: "image/png", fileName: "a.pdf", ok: false},
		{declared: "", fileName: "a.exe", ok: false},
	}
	for _, tt := range tests {
		got, ok := AcceptedMimeType(tt.declared, tt.fileName)
		if ok != tt.ok || got != tt.want {
			t.Fatalf("AcceptedMimeType(%q, %q) = %q,%v want %q,%v", tt.declared, tt.fileName, got, ok, tt.want, tt.ok)
		}
	}
}

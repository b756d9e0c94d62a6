package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseEnvLine(t *testing.T) {
	tests := []struct {
		line   string
		key    string
		val    string
		wantOK bool
	}{
		{line: "PORT=9090", key: "PORT", val: "9090", wantOK: true},
		{line: `export GEMINI_API_KEY="abc"`, key: "GEMINI_API_KEY", val: "abc", wantOK: true},
		{line: "ADMIN_EMAIL='a@b.c'", key: "ADMIN_EMAIL", val: "a@b.c", wantOK: true},
		{line: "# comment", wantOK: false},
		{line: "", wantOK: false},
		{line: "NOVALUE", wantOK: false},
	}
	for _, tt := range tests {
		key, val, ok := parseEnvLine(tt.line)
		if ok != tt.wantOK {
			t.Fatalf("parseEnvLine(%q) ok = %v, want %v", tt.line, ok, tt.wantOK)
		}
		if ok && (key != tt.key || val != tt.val) {
			t.Fatalf("parseEnvLine(%q) = %q,%q want %q,%q", tt.line, key, val, tt.key, tt.val)
		}
	}
}

func TestLoadEnvFilesKeepsProcessValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("KAMI_TEST_A=file\nKAMI_TEST_B=file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("KAMI_TEST_A", "process")
	os.Unsetenv("KAMI_TEST_B")
	t.Cleanup(func() { os.Unsetenv("KAMI_TEST_B") })

	loadEnvFiles(path)

	if got := os.Getenv("KAMI_TEST_A"); got != "process" {
		t.Fatalf("expected process value to win, got %q", got)
	}
	if got := os.Getenv("KAMI_TEST_B"); got != "file" {
		t.Fatalf("expected file value, got %q", got)
	}
}

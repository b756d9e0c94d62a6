package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
server:
  port: "9090"
  env: staging
  cors_allow_origins:
    - https://app.kamiscan.dev
    - https://kamiscan.dev
storage:
  type: minio
  minio:
    endpoint: minio.internal:9000
    bucket: uploads
    use_ssl: true
llm:
  provider: openai
  timeout_seconds: 45
limits:
  max_prompt_chars: 8000
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kamiscan.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestEnvDefaultsFlattensFile(t *testing.T) {
	fc, err := readConfigFile(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("readConfigFile: %v", err)
	}
	got := fc.envDefaults()
	want := map[string]string{
		"PORT":                "9090",
		"ENV":                 "staging",
		"CORS_ALLOW_ORIGINS":  "https://app.kamiscan.dev,https://kamiscan.dev",
		"OBJECT_STORE":        "minio",
		"MINIO_ENDPOINT":      "minio.internal:9000",
		"MINIO_BUCKET":        "uploads",
		"MINIO_USE_SSL":       "true",
		"LLM_PROVIDER":        "openai",
		"LLM_TIMEOUT_SECONDS": "45",
		"MAX_PROMPT_CHARS":    "8000",
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d keys, got %v", len(want), got)
	}
	for key, val := range want {
		if got[key] != val {
			t.Fatalf("%s = %q, want %q", key, got[key], val)
		}
	}
}

func TestLoadAppliesConfigFileUnderEnvironment(t *testing.T) {
	for _, key := range []string{"PORT", "ENV", "OBJECT_STORE", "MINIO_ENDPOINT", "MINIO_BUCKET", "MINIO_USE_SSL", "LLM_TIMEOUT_SECONDS", "MAX_PROMPT_CHARS", "CORS_ALLOW_ORIGINS"} {
		t.Setenv(key, "")
	}
	t.Setenv("LLM_PROVIDER", "gemini")
	t.Setenv("CONFIG_FILE", writeConfig(t, sampleYAML))

	cfg := Load()
	if cfg.Port != "9090" || cfg.Env != "staging" {
		t.Fatalf("expected file server settings, got port=%q env=%q", cfg.Port, cfg.Env)
	}
	if cfg.ObjectStoreType != "minio" || cfg.MinioEndpoint != "minio.internal:9000" || cfg.MinioBucket != "uploads" || !cfg.MinioUseSSL {
		t.Fatalf("expected minio settings from file, got %+v", cfg)
	}
	if cfg.LLMProvider != "gemini" {
		t.Fatalf("expected environment to win for LLM_PROVIDER, got %q", cfg.LLMProvider)
	}
	if cfg.LLMTimeoutSeconds != 45 || cfg.MaxPromptChars != 8000 {
		t.Fatalf("expected file limits, got timeout=%d prompt=%d", cfg.LLMTimeoutSeconds, cfg.MaxPromptChars)
	}
	if len(cfg.CORSAllowOrigin) != 2 {
		t.Fatalf("expected two origins, got %v", cfg.CORSAllowOrigin)
	}
}

func TestReadConfigFileRejectsBadYAML(t *testing.T) {
	if _, err := readConfigFile(writeConfig(t, "server: [unclosed")); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := readConfigFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected missing file error")
	}
}

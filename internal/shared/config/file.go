package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// fileConfig is the optional YAML file named by CONFIG_FILE. It only covers
// non-secret settings; keys and passwords stay in the environment.
type fileConfig struct {
	Server struct {
		Port        string   `yaml:"port"`
		Env         string   `yaml:"env"`
		CORSOrigins []string `yaml:"cors_allow_origins"`
		AdminEmail  string   `yaml:"admin_email"`
		UIRedirect  string   `yaml:"ui_redirect_url"`
	} `yaml:"server"`
	Storage struct {
		Type     string `yaml:"type"`
		LocalDir string `yaml:"local_dir"`
		S3       struct {
			Region   string `yaml:"region"`
			Bucket   string `yaml:"bucket"`
			Prefix   string `yaml:"prefix"`
			KMSKeyID string `yaml:"kms_key_id"`
		} `yaml:"s3"`
		Minio struct {
			Endpoint string `yaml:"endpoint"`
			Bucket   string `yaml:"bucket"`
			UseSSL   bool   `yaml:"use_ssl"`
		} `yaml:"minio"`
	} `yaml:"storage"`
	LLM struct {
		Provider       string `yaml:"provider"`
		Model          string `yaml:"model"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"llm"`
	Limits struct {
		MaxUploadBytes int64 `yaml:"max_upload_bytes"`
		MaxPromptChars int   `yaml:"max_prompt_chars"`
	} `yaml:"limits"`
}

func readConfigFile(path string) (fileConfig, error) {
	var fc fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse %s: %w", path, err)
	}
	return fc, nil
}

// envDefaults flattens the file into the environment keys Load reads.
func (fc fileConfig) envDefaults() map[string]string {
	out := map[string]string{}
	set := func(key, val string) {
		if strings.TrimSpace(val) != "" {
			out[key] = val
		}
	}
	setInt := func(key string, val int64) {
		if val > 0 {
			out[key] = strconv.FormatInt(val, 10)
		}
	}

	set("PORT", fc.Server.Port)
	set("ENV", fc.Server.Env)
	set("CORS_ALLOW_ORIGINS", strings.Join(fc.Server.CORSOrigins, ","))
	set("ADMIN_EMAIL", fc.Server.AdminEmail)
	set("UI_REDIRECT_URL", fc.Server.UIRedirect)
	set("OBJECT_STORE", fc.Storage.Type)
	set("LOCAL_STORE_DIR", fc.Storage.LocalDir)
	set("AWS_REGION", fc.Storage.S3.Region)
	set("S3_BUCKET", fc.Storage.S3.Bucket)
	set("S3_PREFIX", fc.Storage.S3.Prefix)
	set("SSE_KMS_KEY_ID", fc.Storage.S3.KMSKeyID)
	set("MINIO_ENDPOINT", fc.Storage.Minio.Endpoint)
	set("MINIO_BUCKET", fc.Storage.Minio.Bucket)
	if fc.Storage.Minio.UseSSL {
		out["MINIO_USE_SSL"] = "true"
	}
	set("LLM_PROVIDER", fc.LLM.Provider)
	set("LLM_MODEL", fc.LLM.Model)
	setInt("LLM_TIMEOUT_SECONDS", int64(fc.LLM.TimeoutSeconds))
	setInt("MAX_UPLOAD_BYTES", fc.Limits.MaxUploadBytes)
	setInt("MAX_PROMPT_CHARS", int64(fc.Limits.MaxPromptChars))
	return out
}

// applyConfigFile loads path and fills environment variables that are unset.
// The process environment always wins.
func applyConfigFile(path string) error {
	fc, err := readConfigFile(path)
	if err != nil {
		return err
	}
	for key, val := range fc.envDefaults() {
		if os.Getenv(key) != "" {
			continue
		}
		os.Setenv(key, val)
	}
	return nil
}

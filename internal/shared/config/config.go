package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

const (
	defaultMaxUploadBytes = 10 << 20
	defaultMaxPromptChars = 15000
)

// Config holds application configuration.
type Config struct {
	Port               string
	CORSAllowOrigin    []string
	ObjectStoreType    string
	LocalStoreDir      string
	AWSRegion          string
	S3Bucket           string
	S3Prefix           string
	SSEKMSKeyID        string
	MinioEndpoint      string
	MinioAccessKey     string
	MinioSecretKey     string
	MinioBucket        string
	MinioUseSSL        bool
	LLMProvider        string
	LLMModel           string
	LLMTimeoutSeconds  int
	GeminiAPIKey       string
	OpenAIAPIKey       string
	MaxUploadBytes     int64
	MaxPromptChars     int
	DatabaseURL        string
	Env                string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	UIRedirectURL      string
	AdminEmail         string
	RazorpayKeyID      string
	RazorpayKeySecret  string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := applyConfigFile(path); err != nil {
			log.Printf("config file %s ignored: %v", path, err)
		}
	}

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:               getEnv("PORT", "8080"),
		CORSAllowOrigin:    splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000")),
		ObjectStoreType:    normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:      getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:          getEnv("AWS_REGION", ""),
		S3Bucket:           getEnv("S3_BUCKET", ""),
		S3Prefix:           getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:        getEnv("SSE_KMS_KEY_ID", ""),
		MinioEndpoint:      getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey:     getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey:     getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:        getEnv("MINIO_BUCKET", "kamiscan"),
		MinioUseSSL:        getEnvBool("MINIO_USE_SSL"),
		LLMProvider:        normalizeProvider(getEnv("LLM_PROVIDER", "gemini")),
		LLMModel:           getEnv("LLM_MODEL", ""),
		LLMTimeoutSeconds:  getEnvInt("LLM_TIMEOUT_SECONDS", 0),
		GeminiAPIKey:       getEnv("GEMINI_API_KEY", os.Getenv("GOOGLE_API_KEY")),
		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		MaxUploadBytes:     int64(getEnvInt("MAX_UPLOAD_BYTES", defaultMaxUploadBytes)),
		MaxPromptChars:     getEnvInt("MAX_PROMPT_CHARS", defaultMaxPromptChars),
		DatabaseURL:        dbURL,
		Env:                env,
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),
		UIRedirectURL:      getEnv("UI_REDIRECT_URL", ""),
		AdminEmail:         strings.ToLower(getEnv("ADMIN_EMAIL", "")),
		RazorpayKeyID:      getEnv("RAZORPAY_KEY_ID", ""),
		RazorpayKeySecret:  getEnv("RAZORPAY_KEY_SECRET", ""),
	}
}

// LLMAPIKey returns the key for the configured provider.
func (c Config) LLMAPIKey() string {
	if c.LLMProvider == "openai" {
		return c.OpenAIAPIKey
	}
	return c.GeminiAPIKey
}

// Presence reports which optional integrations are configured without exposing values.
func (c Config) Presence() map[string]bool {
	return map[string]bool{
		"DATABASE_URL":         strings.TrimSpace(c.DatabaseURL) != "",
		"GEMINI_API_KEY":       strings.TrimSpace(c.GeminiAPIKey) != "",
		"OPENAI_API_KEY":       strings.TrimSpace(c.OpenAIAPIKey) != "",
		"GOOGLE_CLIENT_ID":     strings.TrimSpace(c.GoogleClientID) != "",
		"GOOGLE_CLIENT_SECRET": strings.TrimSpace(c.GoogleClientSecret) != "",
		"JWT_SECRET":           strings.TrimSpace(os.Getenv("JWT_SECRET")) != "",
		"RAZORPAY_KEY_ID":      strings.TrimSpace(c.RazorpayKeyID) != "",
		"RAZORPAY_KEY_SECRET":  strings.TrimSpace(c.RazorpayKeySecret) != "",
		"ADMIN_EMAIL":          strings.TrimSpace(c.AdminEmail) != "",
		"S3_BUCKET":            strings.TrimSpace(c.S3Bucket) != "",
		"MINIO_ENDPOINT":       strings.TrimSpace(c.MinioEndpoint) != "",
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		log.Printf("config %s invalid int %q; using %d", key, raw, def)
		return def
	}
	return val
}

func getEnvBool(key string) bool {
	val, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return err == nil && val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	case "minio":
		return "minio"
	default:
		return "local"
	}
}

func normalizeProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "openai":
		return "openai"
	default:
		return "gemini"
	}
}

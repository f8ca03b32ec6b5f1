package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"applique-backend/internal/shared/telemetry"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	CORSAllowOrigin []string

	DataDir             string
	DefaultTemplatesDir string
	UserTemplatesDir    string
	AttachmentsDir      string
	ProfilePath         string
	PostingsDir         string
	WorkDir             string

	ObjectStoreType string
	OutputDir       string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string

	LedgerDriver string
	DatabaseURL  string
	SQLitePath   string

	LatexCommand       string
	LatexTimeout       time.Duration
	LatexPasses        int
	CompileMaxParallel int

	TemplateCacheSize  int
	TemplateHotReload  bool
	VariablePrecedence []string

	// Per-client token buckets; a rate of 0 disables limiting.
	GenerateRatePerMin float64
	GenerateBurst      int
	PreviewRatePerMin  float64
	PreviewBurst       int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")
	dataDir := getEnv("DATA_DIR", "./data")

	ledger := normalizeLedgerDriver(getEnv("LEDGER_DRIVER", ""), dbURL)
	if env == "production" && ledger == "memory" {
		telemetry.Warn("ledger is in-memory in production", map[string]any{"hint": "set DATABASE_URL or LEDGER_DRIVER=sqlite"})
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		Env:             env,
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),

		DataDir:             dataDir,
		DefaultTemplatesDir: getEnv("DEFAULT_TEMPLATES_DIR", filepath.Join(dataDir, "defaults")),
		UserTemplatesDir:    getEnv("USER_TEMPLATES_DIR", filepath.Join(dataDir, "user")),
		AttachmentsDir:      getEnv("ATTACHMENTS_DIR", filepath.Join(dataDir, "attachments")),
		ProfilePath:         getEnv("PROFILE_PATH", filepath.Join(dataDir, "profile.yaml")),
		PostingsDir:         getEnv("POSTINGS_DIR", filepath.Join(dataDir, "postings")),
		WorkDir:             getEnv("WORK_DIR", filepath.Join(os.TempDir(), "applique-work")),

		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		OutputDir:       getEnv("OUTPUT_DIR", filepath.Join(dataDir, "output")),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),

		LedgerDriver: ledger,
		DatabaseURL:  dbURL,
		SQLitePath:   getEnv("SQLITE_PATH", filepath.Join(dataDir, "ledger.db")),

		LatexCommand:       getEnv("LATEX_COMMAND", "pdflatex"),
		LatexTimeout:       getEnvDuration("LATEX_TIMEOUT", 60*time.Second),
		LatexPasses:        getEnvInt("LATEX_PASSES", 1),
		CompileMaxParallel: getEnvInt("COMPILE_MAX_PARALLEL", 2),

		TemplateCacheSize:  getEnvInt("TEMPLATE_CACHE_SIZE", 128),
		TemplateHotReload:  getEnvBool("TEMPLATE_HOT_RELOAD", env != "production"),
		VariablePrecedence: splitAndTrim(getEnv("VARIABLE_PRECEDENCE", "profile,posting,custom")),

		GenerateRatePerMin: getEnvFloat("GENERATE_RATE_PER_MIN", 6),
		GenerateBurst:      getEnvInt("GENERATE_BURST", 3),
		PreviewRatePerMin:  getEnvFloat("PREVIEW_RATE_PER_MIN", 60),
		PreviewBurst:       getEnvInt("PREVIEW_BURST", 10),
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
		telemetry.Warn("config invalid int", map[string]any{"key": key, "value": raw})
		return def
	}
	return val
}

func getEnvFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil || val < 0 {
		telemetry.Warn("config invalid number", map[string]any{"key": key, "value": raw})
		return def
	}
	return val
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	if val, err := time.ParseDuration(raw); err == nil && val > 0 {
		return val
	}
	// bare seconds
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	telemetry.Warn("config invalid duration", map[string]any{"key": key, "value": raw})
	return def
}

func getEnvBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
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
	default:
		return "local"
	}
}

// normalizeLedgerDriver picks postgres when a DSN is configured and nothing else was asked for.
func normalizeLedgerDriver(raw, dbURL string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "postgres", "pg", "postgresql":
		return "postgres"
	case "sqlite", "sqlite3":
		return "sqlite"
	case "memory", "mem":
		return "memory"
	}
	if strings.TrimSpace(dbURL) != "" {
		return "postgres"
	}
	return "memory"
}

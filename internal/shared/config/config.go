package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	CORSAllowOrigin []string
	PublicBaseURL   string

	DatabaseDriver string
	DatabaseURL    string

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string
	S3Endpoint      string
	S3AccessKeyID   string
	S3SecretKey     string
	MinIOEndpoint   string
	MinIOAccessKey  string
	MinIOSecretKey  string
	MinIOBucket     string
	MinIOUseSSL     bool

	MaxUploadBytes int64

	LLMProvider   string
	LLMModel      string
	GeminiAPIKey  string
	GeminiBaseURL string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	LLMTimeout    time.Duration

	OCREngine             string
	TesseractPath         string
	OCRLanguages          string
	VisionCredentialsFile string
	PdftoppmPath          string
	RenderDPI             int
	WorkDir               string

	WorkerCount     int
	QueueCapacity   int
	JobTimeout      time.Duration
	ShutdownTimeout time.Duration

	UploadsPerMinute int

	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience. Real
	// environment variables always win.
	for _, path := range []string{".env", "cmd/.env"} {
		_ = godotenv.Load(path)
	}

	env := normalizeEnv(getEnv("APP_ENV", getEnv("ENV", "dev")))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		Env:             env,
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:4200")),
		PublicBaseURL:   strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),

		DatabaseDriver: normalizeDBDriver(getEnv("DB_DRIVER", "pgx")),
		DatabaseURL:    dbURL,

		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:     getEnv("S3_SSE_KMS_KEY_ID", ""),
		S3Endpoint:      getEnv("S3_ENDPOINT", ""),
		S3AccessKeyID:   getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretKey:     getEnv("S3_SECRET_ACCESS_KEY", ""),
		MinIOEndpoint:   getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:  getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:  getEnv("MINIO_SECRET_KEY", ""),
		MinIOBucket:     getEnv("MINIO_BUCKET", "documents"),
		MinIOUseSSL:     getBool("MINIO_USE_SSL", false),

		MaxUploadBytes: int64(getInt("MAX_UPLOAD_BYTES", 50<<20)),

		LLMProvider:   normalizeLLMProvider(getEnv("LLM_PROVIDER", "gemini")),
		LLMModel:      getEnv("LLM_MODEL", ""),
		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiBaseURL: getEnv("GEMINI_BASE_URL", ""),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		LLMTimeout:    time.Duration(getInt("LLM_TIMEOUT_SECONDS", 30)) * time.Second,

		OCREngine:             normalizeOCREngine(getEnv("OCR_ENGINE", "tesseract")),
		TesseractPath:         getEnv("TESSERACT_PATH", "tesseract"),
		OCRLanguages:          getEnv("OCR_LANGUAGES", "eng+rus"),
		VisionCredentialsFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS_FILE", ""),
		PdftoppmPath:          getEnv("PDFTOPPM_PATH", "pdftoppm"),
		RenderDPI:             getInt("RENDER_DPI", 300),
		WorkDir:               getEnv("WORK_DIR", os.TempDir()),

		WorkerCount:     getInt("WORKER_COUNT", 4),
		QueueCapacity:   getInt("QUEUE_CAPACITY", 100),
		JobTimeout:      time.Duration(getInt("JOB_TIMEOUT_SECONDS", 300)) * time.Second,
		ShutdownTimeout: time.Duration(getInt("SHUTDOWN_TIMEOUT_SECONDS", 20)) * time.Second,

		UploadsPerMinute: getInt("RATE_LIMIT_UPLOADS_PER_MIN", 30),

		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "json")),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func getBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
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

func normalizeDBDriver(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "sqlite", "sqlite3":
		return "sqlite"
	default:
		return "pgx"
	}
}

func normalizeLLMProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "openai":
		return "openai"
	case "none", "off", "disabled":
		return "none"
	default:
		return "gemini"
	}
}

func normalizeOCREngine(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "vision", "google":
		return "vision"
	default:
		return "tesseract"
	}
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"visionary-design-server/modules/common/logger"
)

// Config 구조체 - 모든 환경변수를 담음
type Config struct {
	// Server
	Port string

	// Gemini API
	GeminiAPIKey   string
	GeminiModel    string // standard tier
	GeminiProModel string // high quality tier

	// Vertex AI (optional standard-tier backend)
	VertexAIProject         string
	VertexAILocation        string
	VertexAICredentialsJSON string
	VertexAICredentialsPath string

	// Redis (credential store; memory fallback when unreachable)
	RedisHost     string
	RedisPort     string
	RedisUsername string
	RedisPassword string
	RedisUseTLS   bool

	// Supabase Storage (result publishing; inline data URLs when unset)
	SupabaseURL            string
	SupabaseServiceKey     string
	SupabaseStorageBucket  string
	SupabaseStorageBaseURL string

	// Workflow
	MaxImageBytes           int64
	ProgressInterval        time.Duration
	GenerationTimeout       time.Duration
	CredentialSelectTimeout time.Duration
	CredentialTTL           time.Duration
	WebPQuality             float32
}

var globalConfig *Config

// LoadConfig - 환경변수 로드
func LoadConfig() (*Config, error) {
	// .env 파일 로드 (있으면)
	if err := godotenv.Load(); err != nil {
		logger.Info("⚠️  .env file not found, using environment variables")
	}

	cfg := &Config{
		Port: getEnv("PORT", "8080"),

		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-2.5-flash-image"),
		GeminiProModel: getEnv("GEMINI_PRO_MODEL", "gemini-3-pro-image-preview"),

		VertexAIProject:         getEnv("VERTEXAI_PROJECT", ""),
		VertexAILocation:        getEnv("VERTEXAI_LOCATION", "us-central1"),
		VertexAICredentialsJSON: getEnv("VERTEXAI_CREDENTIALS_JSON", ""),
		VertexAICredentialsPath: getEnv("VERTEXAI_CREDENTIALS_PATH", ""),

		RedisHost:     getEnv("REDIS_HOST", ""),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisUsername: getEnv("REDIS_USERNAME", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisUseTLS:   parseBool("REDIS_USE_TLS", false),

		SupabaseURL:            strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
		SupabaseServiceKey:     getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseStorageBucket:  getEnv("SUPABASE_STORAGE_BUCKET", "designs"),
		SupabaseStorageBaseURL: getEnv("SUPABASE_STORAGE_BASE_URL", ""),

		MaxImageBytes:           parseInt64("MAX_IMAGE_BYTES", 10*1024*1024), // 10MB
		ProgressInterval:        parseDuration("PROGRESS_INTERVAL", 3*time.Second),
		GenerationTimeout:       parseDuration("GENERATION_TIMEOUT", 3*time.Minute),
		CredentialSelectTimeout: parseDuration("CREDENTIAL_SELECT_TIMEOUT", time.Minute),
		CredentialTTL:           parseDuration("CREDENTIAL_TTL", 24*time.Hour),
		WebPQuality:             float32(parseInt64("WEBP_QUALITY", 90)),
	}

	// 필수 환경변수 검증
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	globalConfig = cfg

	logger.WithFields(map[string]interface{}{
		"port":          cfg.Port,
		"model":         cfg.GeminiModel,
		"pro_model":     cfg.GeminiProModel,
		"vertex":        cfg.UseVertexAI(),
		"redis":         cfg.RedisEnabled(),
		"storage":       cfg.StorageEnabled(),
		"max_image":     cfg.MaxImageBytes,
		"progress_tick": cfg.ProgressInterval.String(),
	}).Info("✅ Configuration loaded successfully")

	return cfg, nil
}

// GetConfig - 로드된 설정 가져오기
func GetConfig() *Config {
	if globalConfig == nil {
		logger.Logger.Fatal("❌ Config not loaded. Call LoadConfig() first.")
	}
	return globalConfig
}

// validate - 필수 환경변수 검증
func (c *Config) validate() error {
	if c.GeminiAPIKey == "" && c.VertexAIProject == "" {
		return fmt.Errorf("GEMINI_API_KEY or VERTEXAI_PROJECT is required")
	}
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxImageBytes <= 0 {
		return fmt.Errorf("MAX_IMAGE_BYTES must be > 0 (got %d)", c.MaxImageBytes)
	}
	if c.SupabaseURL != "" && c.SupabaseServiceKey == "" {
		return fmt.Errorf("SUPABASE_SERVICE_KEY is required when SUPABASE_URL is set")
	}
	if c.WebPQuality <= 0 || c.WebPQuality > 100 {
		return fmt.Errorf("WEBP_QUALITY must be within 1..100 (got %.0f)", c.WebPQuality)
	}
	return nil
}

// UseVertexAI - standard tier가 Vertex AI 백엔드를 쓰는지
func (c *Config) UseVertexAI() bool {
	return c.GeminiAPIKey == "" && c.VertexAIProject != ""
}

// RedisEnabled - Redis 설정 여부
func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}

// StorageEnabled - Supabase Storage 업로드 사용 여부
func (c *Config) StorageEnabled() bool {
	return c.SupabaseURL != "" && c.SupabaseServiceKey != ""
}

// GetRedisAddr - Redis 연결 문자열 생성
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

// PublicStorageURL - 업로드된 파일의 공개 URL
func (c *Config) PublicStorageURL(filePath string) string {
	base := c.SupabaseStorageBaseURL
	if base == "" {
		base = fmt.Sprintf("%s/storage/v1/object/public/%s/", c.SupabaseURL, c.SupabaseStorageBucket)
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + strings.TrimLeft(filePath, "/")
}

// getEnv - 환경변수 가져오기 (기본값 지원)
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func parseInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func parseDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}

package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"adstudio/internal/providers"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string

	StorageDir     string
	StorageBaseURL string

	GeoIPDBPath   string
	DefaultLocale string
	DefaultMarket string

	TextChain   providers.Chain
	VisionChain providers.Chain
	ImageChain  providers.Chain
	VideoChain  providers.Chain
	SpeechChain providers.Chain

	OpenAIBaseURL     string
	GeminiBaseURL     string
	DashScopeBaseURL  string
	ElevenLabsBaseURL string

	PerAttemptTimeout      time.Duration
	MaxRetriesPerCandidate int
	BackoffBase            time.Duration

	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int
	CORSAllowedOrigins []string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		StorageDir:     getEnv("STORAGE_DIR", "./data/assets"),
		StorageBaseURL: getEnv("STORAGE_BASE_URL", "http://localhost:8080/static"),

		GeoIPDBPath:   os.Getenv("GEOIP_DB_PATH"),
		DefaultLocale: getEnv("DEFAULT_LOCALE", "en"),
		DefaultMarket: getEnv("DEFAULT_MARKET", "US"),

		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		GeminiBaseURL:     getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		DashScopeBaseURL:  getEnv("DASHSCOPE_BASE_URL", "https://dashscope-intl.aliyuncs.com/api/v1"),
		ElevenLabsBaseURL: getEnv("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io"),

		PerAttemptTimeout:      time.Second * time.Duration(getEnvInt("PER_ATTEMPT_TIMEOUT_SECONDS", 90)),
		MaxRetriesPerCandidate: getEnvInt("MAX_RETRIES_PER_CANDIDATE", 2),
		BackoffBase:            time.Millisecond * time.Duration(getEnvInt("BACKOFF_BASE_MS", 500)),

		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 120)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		CORSAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var err error
	if cfg.TextChain, err = chainEnv("TEXT_CHAIN", "openai:gpt-4o-mini,gemini:gemini-2.5-flash"); err != nil {
		return nil, err
	}
	if cfg.VisionChain, err = chainEnv("VISION_CHAIN", "gemini:gemini-2.5-flash,openai:gpt-4o-mini"); err != nil {
		return nil, err
	}
	if cfg.ImageChain, err = chainEnv("IMAGE_CHAIN", "gemini:gemini-2.5-flash-image,dashscope:qwen-image-plus"); err != nil {
		return nil, err
	}
	if cfg.VideoChain, err = chainEnv("VIDEO_CHAIN", "gemini:veo-3.0-generate-001,dashscope:wan2.2-t2v-plus"); err != nil {
		return nil, err
	}
	if cfg.SpeechChain, err = chainEnv("SPEECH_CHAIN", "openai:gpt-4o-mini-tts,elevenlabs:eleven_multilingual_v2"); err != nil {
		return nil, err
	}

	return cfg, nil
}

func chainEnv(key, fallback string) (providers.Chain, error) {
	chain, err := providers.ParseChain(getEnv(key, fallback))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return chain, nil
}

func splitCSV(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

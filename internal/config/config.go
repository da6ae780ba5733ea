package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderDeepSeek = "deepseek"
	ProviderGemini   = "gemini"
)

// defaultOrigins are the frontends allowed to call the relay when
// ALLOWED_ORIGINS is not set.
var defaultOrigins = []string{
	"http://localhost:5173",
	"http://localhost:3000",
	"https://project-netaji.netlify.app",
	"https://intelligentmanage.netlify.app",
}

type Config struct {
	// Server
	Port string
	Env  string

	// Logging
	LogLevel  string
	LogFormat string

	// Upstream
	Provider            string
	DeepSeekAPIKey      string
	DeepSeekBaseURL     string
	DeepSeekModel       string
	GeminiAPIKey        string
	GeminiModel         string
	Temperature         float64
	MaxTokens           int
	UpstreamConcurrency int
	DefaultSystemPrompt string

	// CORS
	AllowedOrigins []string

	// Rate limiting
	RedisURL       string
	ChatRateLimit  int
	ChatRateWindow time.Duration

	// Auth
	JWTSecret string
}

// Load reads .env (if present) and the environment. A missing provider API
// key is an error: the relay cannot serve anything without it.
func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                getEnvOrDefault("PORT", "3001"),
		Env:                 getEnvOrDefault("ENV", "development"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "text"),
		Provider:            strings.ToLower(getEnvOrDefault("UPSTREAM_PROVIDER", ProviderDeepSeek)),
		DeepSeekAPIKey:      os.Getenv("DEEPSEEK_API_KEY"),
		DeepSeekBaseURL:     getEnvOrDefault("DEEPSEEK_BASE_URL", "https://api.deepseek.com"),
		DeepSeekModel:       getEnvOrDefault("DEEPSEEK_MODEL", "deepseek-chat"),
		GeminiAPIKey:        os.Getenv("GEMINI_API_KEY"),
		GeminiModel:         getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-flash"),
		Temperature:         getEnvAsFloatOrDefault("UPSTREAM_TEMPERATURE", 0.7),
		MaxTokens:           getEnvAsIntOrDefault("UPSTREAM_MAX_TOKENS", 2000),
		UpstreamConcurrency: getEnvAsIntOrDefault("UPSTREAM_CONCURRENT_REQUESTS", 0),
		DefaultSystemPrompt: getEnvOrDefault("DEFAULT_SYSTEM_PROMPT", "You are a helpful business and technology advisor."),
		AllowedOrigins:      allowedOrigins(os.Getenv("ALLOWED_ORIGINS"), os.Getenv("FRONTEND_URL")),
		RedisURL:            os.Getenv("REDIS_URL"),
		ChatRateLimit:       getEnvAsIntOrDefault("CHAT_RATE_LIMIT", 30),
		ChatRateWindow:      getEnvAsDurationOrDefault("CHAT_RATE_WINDOW", time.Minute),
		JWTSecret:           os.Getenv("AUTH_JWT_SECRET"),
	}

	switch cfg.Provider {
	case ProviderDeepSeek:
		if cfg.DeepSeekAPIKey == "" {
			return nil, fmt.Errorf("DEEPSEEK_API_KEY is not set in environment variables")
		}
	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is not set in environment variables")
		}
	default:
		return nil, fmt.Errorf("unsupported UPSTREAM_PROVIDER %q", cfg.Provider)
	}

	return cfg, nil
}

// IsDevelopment reports whether internal error details may be returned to clients.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func allowedOrigins(list, frontendURL string) []string {
	var origins []string
	if strings.TrimSpace(list) == "" {
		origins = append(origins, defaultOrigins...)
	} else {
		for _, o := range strings.Split(list, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
	}
	if frontendURL = strings.TrimSpace(frontendURL); frontendURL != "" {
		origins = append(origins, frontendURL)
	}
	return origins
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsFloatOrDefault(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvFiles are loaded in order before reading the environment. Variables
// already set are never overridden, so the first file defining a key wins.
var EnvFiles = []string{".env.local", ".env"}

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Logger    LoggerConfig
	Security  SecurityConfig
	Auth      AuthConfig
	Assistant AssistantConfig
	Sheets    SheetsConfig
	Summary   SummaryConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type StorageConfig struct {
	DatabasePath string
	// SeedCSV is loaded at startup when no import is active. Empty disables it.
	SeedCSV   string
	WatchSeed bool
}

type LoggerConfig struct {
	Level  string
	Format string
}

type SecurityConfig struct {
	EnableRateLimit bool
	RateLimitRPS    int
	RateLimitBurst  int
	AllowedOrigins  []string
	// TrustedProxies are addresses or CIDR ranges allowed to set
	// X-Forwarded-For and X-Real-IP.
	TrustedProxies []string
	// LoginAttemptsPerMinute bounds POST /login per client address.
	LoginAttemptsPerMinute int
}

type AuthConfig struct {
	Username     string
	Password     string
	SessionTTL   time.Duration
	SecureCookie bool
}

type AssistantConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	// RequestsPerMinute bounds calls to the completion API across all users.
	RequestsPerMinute int
}

type SheetsConfig struct {
	DownloadTimeout time.Duration
	// SyncSchedule is a cron expression for re-importing saved sheets. Empty
	// disables scheduled syncs.
	SyncSchedule string
}

type SummaryConfig struct {
	Locale             string
	TopRepairTypes     int
	TopVehiclesByCost  int
	TopVehiclesByCount int
	ContentFingerprint bool
}

func Load() (*Config, error) {
	if err := loadEnvFiles(EnvFiles...); err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnvString("SERVER_HOST", "localhost"),
			Port:            getEnvInt("SERVER_PORT", 8084),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 90*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Storage: StorageConfig{
			DatabasePath: getEnvString("DATABASE_PATH", "data/repairs.db"),
			SeedCSV:      getEnvString("SEED_CSV_FILE", ""),
			WatchSeed:    getEnvBool("SEED_CSV_WATCH", true),
		},
		Logger: LoggerConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "json"),
		},
		Security: SecurityConfig{
			EnableRateLimit: getEnvBool("SECURITY_RATE_LIMIT_ENABLED", true),
			RateLimitRPS:    getEnvInt("SECURITY_RATE_LIMIT_RPS", 100),
			RateLimitBurst:  getEnvInt("SECURITY_RATE_LIMIT_BURST", 10),
			AllowedOrigins:  getEnvStringSlice("SECURITY_ALLOWED_ORIGINS", []string{"http://localhost:8084"}),
			TrustedProxies:  getEnvStringSlice("SECURITY_TRUSTED_PROXIES", []string{"127.0.0.1"}),

			LoginAttemptsPerMinute: getEnvInt("SECURITY_LOGIN_ATTEMPTS_PER_MINUTE", 10),
		},
		Auth: AuthConfig{
			Username:     getEnvString("AUTH_USERNAME", "admin"),
			Password:     getEnvString("AUTH_PASSWORD", "1234"),
			SessionTTL:   getEnvDuration("AUTH_SESSION_TTL", 12*time.Hour),
			SecureCookie: getEnvBool("AUTH_SECURE_COOKIE", false),
		},
		Assistant: AssistantConfig{
			APIKey:            getEnvString("OPENAI_API_KEY", os.Getenv("VITE_OPENAI_API_KEY")),
			BaseURL:           getEnvString("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:             getEnvString("OPENAI_MODEL", "gpt-4o-mini"),
			MaxTokens:         getEnvInt("OPENAI_MAX_TOKENS", 16384),
			Temperature:       getEnvFloat("OPENAI_TEMPERATURE", 0.1),
			Timeout:           getEnvDuration("OPENAI_TIMEOUT", 60*time.Second),
			RequestsPerMinute: getEnvInt("OPENAI_REQUESTS_PER_MINUTE", 30),
		},
		Sheets: SheetsConfig{
			DownloadTimeout: getEnvDuration("SHEETS_DOWNLOAD_TIMEOUT", 60*time.Second),
			SyncSchedule:    getEnvString("SHEETS_SYNC_SCHEDULE", ""),
		},
		Summary: SummaryConfig{
			Locale:             getEnvString("SUMMARY_LOCALE", "en"),
			TopRepairTypes:     getEnvInt("SUMMARY_TOP_REPAIR_TYPES", 10),
			TopVehiclesByCost:  getEnvInt("SUMMARY_TOP_VEHICLES_BY_COST", 15),
			TopVehiclesByCount: getEnvInt("SUMMARY_TOP_VEHICLES_BY_COUNT", 15),
			ContentFingerprint: getEnvBool("SUMMARY_CONTENT_FINGERPRINT", false),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func loadEnvFiles(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Storage.DatabasePath == "" {
		return fmt.Errorf("database path cannot be empty")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.Logger.Level) {
		return fmt.Errorf("invalid log level %q, must be one of: %s", c.Logger.Level, strings.Join(validLogLevels, ", "))
	}

	validLogFormats := []string{"json", "text"}
	if !contains(validLogFormats, c.Logger.Format) {
		return fmt.Errorf("invalid log format %q, must be one of: %s", c.Logger.Format, strings.Join(validLogFormats, ", "))
	}

	if c.Security.RateLimitRPS <= 0 {
		return fmt.Errorf("rate limit RPS must be positive")
	}

	if c.Security.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit burst must be positive")
	}

	if c.Security.LoginAttemptsPerMinute <= 0 {
		return fmt.Errorf("login attempts per minute must be positive")
	}

	if c.Auth.Username == "" || c.Auth.Password == "" {
		return fmt.Errorf("auth username and password cannot be empty")
	}

	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}

	if c.Assistant.MaxTokens <= 0 {
		return fmt.Errorf("assistant max tokens must be positive")
	}

	if c.Assistant.Temperature < 0 || c.Assistant.Temperature > 2 {
		return fmt.Errorf("assistant temperature must be between 0 and 2, got %v", c.Assistant.Temperature)
	}

	if c.Assistant.RequestsPerMinute <= 0 {
		return fmt.Errorf("assistant requests per minute must be positive")
	}

	if c.Summary.TopRepairTypes <= 0 || c.Summary.TopVehiclesByCost <= 0 || c.Summary.TopVehiclesByCount <= 0 {
		return fmt.Errorf("summary top-N limits must be positive")
	}

	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

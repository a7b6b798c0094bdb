package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string

	// WhatsApp Cloud API credentials
	WhatsAppVerifyToken   string
	WhatsAppAccessToken   string
	WhatsAppPhoneNumberID string
	WhatsAppAppSecret     string
	WhatsAppAPIBase       string

	// Gemini completion service
	GeminiAPIKey  string
	GeminiModelID string

	// Calendar gateway
	CalendarBaseURL string
	CalendarAPIKey  string

	// Admin surface
	AdminJWTSecret string

	// Staff roster for transfer/new-conversation notifications
	StaffRoster []string

	// Clinic timezone for date parsing and availability checks
	ClinicTimezone string

	// Operational tuning
	MaxSlotAttempts    int
	HistoryLimit       int
	StoreTimeout       time.Duration
	LLMTimeout         time.Duration
	CalendarTimeout    time.Duration
	MaxStorageMB       float64
	CleanupThreshold   float64
	MaxMessagesPerSess int
	MaxSessionIdleDays int
	GovernorInterval   time.Duration
	ResyncInterval     time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		WhatsAppVerifyToken:   getEnv("WHATSAPP_VERIFY_TOKEN", ""),
		WhatsAppAccessToken:   getEnv("WHATSAPP_ACCESS_TOKEN", ""),
		WhatsAppPhoneNumberID: getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
		WhatsAppAppSecret:     getEnv("WHATSAPP_APP_SECRET", ""),
		WhatsAppAPIBase:       getEnv("WHATSAPP_API_BASE", "https://graph.facebook.com/v21.0"),

		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModelID: getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),

		CalendarBaseURL: getEnv("CALENDAR_BASE_URL", ""),
		CalendarAPIKey:  getEnv("CALENDAR_API_KEY", ""),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		StaffRoster: splitList(getEnv("STAFF_ROSTER", "")),

		ClinicTimezone: getEnv("CLINIC_TIMEZONE", "America/Guayaquil"),

		MaxSlotAttempts:    getEnvAsInt("MAX_SLOT_ATTEMPTS", 3),
		HistoryLimit:       getEnvAsInt("HISTORY_LIMIT", 20),
		StoreTimeout:       getEnvAsDuration("STORE_TIMEOUT", 3*time.Second),
		LLMTimeout:         getEnvAsDuration("LLM_TIMEOUT", 4*time.Second),
		CalendarTimeout:    getEnvAsDuration("CALENDAR_TIMEOUT", 5*time.Second),
		MaxStorageMB:       getEnvAsFloat("MAX_STORAGE_MB", 400),
		CleanupThreshold:   getEnvAsFloat("CLEANUP_THRESHOLD", 0.8),
		MaxMessagesPerSess: getEnvAsInt("MAX_MESSAGES_PER_SESSION", 50),
		MaxSessionIdleDays: getEnvAsInt("MAX_SESSION_IDLE_DAYS", 30),
		GovernorInterval:   getEnvAsDuration("GOVERNOR_INTERVAL", 6*time.Hour),
		ResyncInterval:     getEnvAsDuration("RESYNC_INTERVAL", 30*time.Second),
	}
}

// Validate fails fast on missing credentials so a misconfigured deployment
// dies at startup instead of per-message.
func (c *Config) Validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.WhatsAppVerifyToken == "" {
		missing = append(missing, "WHATSAPP_VERIFY_TOKEN")
	}
	if c.WhatsAppAccessToken == "" {
		missing = append(missing, "WHATSAPP_ACCESS_TOKEN")
	}
	if c.WhatsAppPhoneNumberID == "" {
		missing = append(missing, "WHATSAPP_PHONE_NUMBER_ID")
	}
	if c.CalendarBaseURL == "" {
		missing = append(missing, "CALENDAR_BASE_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

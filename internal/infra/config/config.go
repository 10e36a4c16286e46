package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"

// AppConfig holds all configuration for the application
type AppConfig struct {
	AppName     string
	ListenAddr  string
	AdminAPIKey string // When empty the admin API is unauthenticated
	LogLevel    string
	Environment string
	DatabaseURL string

	PollIntervalSeconds        int
	PollJitterSeconds          int
	RequestTimeoutSeconds      int
	RequestMaxRetries          int
	RequestRetryBackoffSeconds int
	AlertCooldownMinutes       int

	VsbXhrURL       string
	VsbCookieHeader string
	VsbUserAgent    string

	EmailSMTPHost         string
	EmailSMTPPort         int
	EmailSender           string
	EmailAppPassword      string
	AlertRecipientDefault string

	TelegramToken       string // Optional: admin relogin channel
	AdminTelegramChatID int64  // Optional: admin relogin channel

	CheckLogRetentionDays int
	RetentionCronSpec     string
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.AppName = getString("APP_NAME", "VSB Seat Monitor")
	cfg.ListenAddr = getString("LISTEN_ADDR", ":8000")
	cfg.AdminAPIKey = os.Getenv("ADMIN_API_KEY")

	cfg.LogLevel = strings.ToLower(getString("LOG_LEVEL", "info"))
	cfg.Environment = strings.ToLower(getString("ENVIRONMENT", "development"))

	if cfg.PollIntervalSeconds, err = getInt("POLL_INTERVAL_SECONDS", 300); err != nil {
		return nil, err
	}
	if cfg.PollJitterSeconds, err = getInt("POLL_JITTER_SECONDS", 30); err != nil {
		return nil, err
	}
	if cfg.RequestTimeoutSeconds, err = getInt("REQUEST_TIMEOUT_SECONDS", 20); err != nil {
		return nil, err
	}
	if cfg.RequestMaxRetries, err = getInt("REQUEST_MAX_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.RequestRetryBackoffSeconds, err = getInt("REQUEST_RETRY_BACKOFF_SECONDS", 2); err != nil {
		return nil, err
	}
	if cfg.AlertCooldownMinutes, err = getInt("ALERT_COOLDOWN_MINUTES", 30); err != nil {
		return nil, err
	}

	cfg.VsbXhrURL = os.Getenv("VSB_XHR_URL")
	cfg.VsbCookieHeader = os.Getenv("VSB_COOKIE_HEADER")
	cfg.VsbUserAgent = getString("VSB_USER_AGENT", defaultUserAgent)

	cfg.EmailSMTPHost = getString("EMAIL_SMTP_HOST", "smtp.gmail.com")
	if cfg.EmailSMTPPort, err = getInt("EMAIL_SMTP_PORT", 465); err != nil {
		return nil, err
	}
	cfg.EmailSender = os.Getenv("EMAIL_SENDER")
	cfg.EmailAppPassword = os.Getenv("EMAIL_APP_PASSWORD")
	cfg.AlertRecipientDefault = os.Getenv("ALERT_RECIPIENT_DEFAULT")

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	adminChatStr := os.Getenv("ADMIN_TELEGRAM_CHAT_ID")
	if adminChatStr != "" {
		cfg.AdminTelegramChatID, err = strconv.ParseInt(adminChatStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_CHAT_ID: %w", err)
		}
	}

	if cfg.CheckLogRetentionDays, err = getInt("CHECK_LOG_RETENTION_DAYS", 14); err != nil {
		return nil, err
	}
	cfg.RetentionCronSpec = getString("RETENTION_CRON_SPEC", "30 3 * * *")

	return cfg, nil
}

func getString(name, fallback string) string {
	value := os.Getenv(name)
	if value == "" {
		return fallback
	}
	return value
}

func getInt(name string, fallback int) (int, error) {
	value := os.Getenv(name)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return parsed, nil
}

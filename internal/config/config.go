package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

var ErrEmptyEnvironmentVariable = errors.New("empty environment variable")

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Mail     MailConfig
	Site     SiteConfig
	Server   ServerConfig
	Storage  StorageConfig
	Events   EventsConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Username string
	Password string
	Name     string
}

// RedisConfig holds the task broker connection settings
type RedisConfig struct {
	Addr     string
	Password string
}

// MailConfig holds outbound email defaults and delivery settings
type MailConfig struct {
	ResendAPIKey          string
	DefaultFromEmail      string
	DefaultFromName       string
	DefaultReplyToEmail   string
	DefaultReplyToName    string
	DefaultMessageStream  string
	MaxSubjectLength      int
	CooldownPeriodSeconds int
	CooldownAllowed       int
	SendTimeoutSeconds    int
}

// SiteConfig holds branding values merged into every template context
type SiteConfig struct {
	Name                string
	Company             string
	CompanyAddress      string
	CompanyCityStateZip string
	LogoURL             string
	LogoURLLink         string
	ContactEmail        string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int
}

// StorageConfig holds template and attachment storage locations
type StorageConfig struct {
	TemplatesDir string
	BlobDir      string
}

// EventsConfig holds the shared secret for the event emission webhook
type EventsConfig struct {
	WebhookSecret string
}

// Load reads and validates all required environment variables
func Load() (*Config, error) {
	// Load env.local in non-production environments
	if os.Getenv("GO_ENV") != "production" {
		if err := godotenv.Load("env.local"); err != nil {
			return nil, fmt.Errorf("failed to load env.local: %w", err)
		}
	}

	cfg := &Config{}

	// Database configuration
	var err error
	if cfg.Database.Host, err = requireEnv("DB_HOST"); err != nil {
		return nil, err
	}
	if cfg.Database.Username, err = requireEnv("DB_USERNAME"); err != nil {
		return nil, err
	}
	if cfg.Database.Password, err = requireEnv("DB_PASSWORD"); err != nil {
		return nil, err
	}
	if cfg.Database.Name, err = requireEnv("DB_NAME"); err != nil {
		return nil, err
	}

	// Redis configuration (task broker)
	if cfg.Redis.Addr, err = requireEnv("REDIS_ADDR"); err != nil {
		return nil, err
	}
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")

	// Mail configuration
	if cfg.Mail.ResendAPIKey, err = requireEnv("RESEND_API_KEY"); err != nil {
		return nil, err
	}
	if cfg.Mail.DefaultFromEmail, err = requireEnv("DEFAULT_FROM_EMAIL"); err != nil {
		return nil, err
	}
	cfg.Mail.DefaultFromName = getEnvWithDefault("DEFAULT_FROM_NAME", "")
	cfg.Mail.DefaultReplyToEmail = getEnvWithDefault("DEFAULT_REPLY_TO_EMAIL", "")
	cfg.Mail.DefaultReplyToName = getEnvWithDefault("DEFAULT_REPLY_TO_NAME", "")
	cfg.Mail.DefaultMessageStream = getEnvWithDefault("DEFAULT_MESSAGE_STREAM", "outbound")

	if cfg.Mail.MaxSubjectLength, err = intEnvWithDefault("MAX_SUBJECT_LENGTH", 78); err != nil {
		return nil, err
	}
	if cfg.Mail.CooldownPeriodSeconds, err = intEnvWithDefault("EMAIL_COOLDOWN_PERIOD_SECONDS", 180); err != nil {
		return nil, err
	}
	if cfg.Mail.CooldownAllowed, err = intEnvWithDefault("EMAIL_COOLDOWN_ALLOWED", 1); err != nil {
		return nil, err
	}
	if cfg.Mail.SendTimeoutSeconds, err = intEnvWithDefault("EMAIL_SEND_TIMEOUT_SECONDS", 60); err != nil {
		return nil, err
	}

	// Site branding configuration
	if cfg.Site.Name, err = requireEnv("SITE_NAME"); err != nil {
		return nil, err
	}
	cfg.Site.Company = getEnvWithDefault("SITE_COMPANY", cfg.Site.Name)
	cfg.Site.CompanyAddress = getEnvWithDefault("SITE_COMPANY_ADDRESS", "")
	cfg.Site.CompanyCityStateZip = getEnvWithDefault("SITE_COMPANY_CITY_STATE_ZIP", "")
	cfg.Site.LogoURL = getEnvWithDefault("SITE_LOGO_URL", "")
	cfg.Site.LogoURLLink = getEnvWithDefault("SITE_LOGO_URL_LINK", "")
	cfg.Site.ContactEmail = getEnvWithDefault("SITE_CONTACT_EMAIL", cfg.Mail.DefaultFromEmail)

	// Storage configuration
	cfg.Storage.TemplatesDir = getEnvWithDefault("TEMPLATES_DIR", "templates")
	cfg.Storage.BlobDir = getEnvWithDefault("BLOB_DIR", "blobs")

	// Events configuration
	if cfg.Events.WebhookSecret, err = requireEnv("EVENTS_WEBHOOK_SECRET"); err != nil {
		return nil, err
	}

	// Server configuration
	serverPort, err := requireEnv("SERVER_PORT")
	if err != nil {
		return nil, err
	}
	cfg.Server.Port, err = strconv.Atoi(serverPort)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SERVER_PORT: %w", err)
	}

	return cfg, nil
}

// ConnectionString returns a PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s",
		c.Username, c.Password, c.Host, c.Name)
}

// requireEnv retrieves an environment variable or returns an error if empty
func requireEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("%s is not set: %w", key, ErrEmptyEnvironmentVariable)
	}
	return value, nil
}

// getEnvWithDefault retrieves an environment variable or returns a default value
func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// intEnvWithDefault retrieves an integer environment variable or returns a default value
func intEnvWithDefault(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return parsed, nil
}

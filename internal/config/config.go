package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	// IMAP settings
	IMAPHost     string
	IMAPPort     int
	IMAPUsername string
	IMAPPassword string
	UseTLS       bool

	// Archive settings
	Folder         string
	AttachmentsDir string
	BodiesDir      string
	MboxPath       string
	IndexPath      string

	// Polling
	PollInterval time.Duration

	LogLevel string
}

// LoadConfig loads configuration from a .env file (if present) and
// environment variables
func LoadConfig() (*Config, error) {
	// A missing .env file is fine, plain environment variables still apply
	_ = godotenv.Load()

	cfg := &Config{
		IMAPHost:       getEnv("IMAP_HOST", ""),
		IMAPPort:       getEnvInt("IMAP_PORT", 993),
		IMAPUsername:   getEnv("IMAP_USERNAME", ""),
		IMAPPassword:   getEnv("IMAP_PASSWORD", ""),
		UseTLS:         getEnvBool("IMAP_TLS", true),
		Folder:         getEnv("MAIL_FOLDER", "INBOX"),
		AttachmentsDir: getEnv("ATTACHMENTS_DIR", "attachments"),
		BodiesDir:      getEnv("BODIES_DIR", "bodies"),
		MboxPath:       getEnv("MBOX_PATH", ""),
		IndexPath:      getEnv("INDEX_PATH", "mailpull.db"),
		PollInterval:   getEnvDuration("POLL_INTERVAL", 60*time.Second),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.IMAPHost == "" {
		return fmt.Errorf("IMAP_HOST is required")
	}
	if c.IMAPUsername == "" {
		return fmt.Errorf("IMAP_USERNAME is required")
	}
	if c.IMAPPassword == "" {
		return fmt.Errorf("IMAP_PASSWORD is required")
	}
	if c.IMAPPort < 1 || c.IMAPPort > 65535 {
		return fmt.Errorf("invalid IMAP_PORT: %d", c.IMAPPort)
	}
	if c.Folder == "" {
		return fmt.Errorf("MAIL_FOLDER must not be empty")
	}
	if c.AttachmentsDir == "" {
		return fmt.Errorf("ATTACHMENTS_DIR must not be empty")
	}
	if c.BodiesDir == "" {
		return fmt.Errorf("BODIES_DIR must not be empty")
	}
	if c.IndexPath == "" {
		return fmt.Errorf("INDEX_PATH must not be empty")
	}
	if c.PollInterval < time.Second {
		return fmt.Errorf("POLL_INTERVAL must be at least 1s")
	}
	return nil
}

// Addr returns the IMAP server address in host:port form
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.IMAPHost, c.IMAPPort)
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as an integer or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets an environment variable as a boolean or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration gets an environment variable as a duration or returns a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

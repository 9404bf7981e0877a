// Package config provides application configuration loaded from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	App      AppConfig
	Auth     AuthConfig
	Mail     MailConfig
	Storage  StorageConfig
	Gate     GateConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
	IdleTimeout  int // seconds
	AllowOrigins []string
}

// DatabaseConfig holds database connection settings.
// Driver is "postgres" (default) or "sqlite"; SQLitePath is only used by the latter.
type DatabaseConfig struct {
	Driver     string
	Host       string
	Port       int
	User       string
	Password   string
	DBName     string
	SSLMode    string
	SQLitePath string
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Dev        bool
	Migrations bool
	BaseURL    string
}

// AuthConfig holds session and provider sign-in settings.
type AuthConfig struct {
	SessionSecret      string
	SessionTTL         time.Duration
	RequireEmailVerify bool
	GoogleClientID     string
	GoogleClientSecret string
}

// MailConfig selects the outbound email driver and its credentials.
type MailConfig struct {
	Driver       string // resend, smtp or log
	ResendAPIKey string
	ResendURL    string
	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPass     string
	From         string
	ContactTo    string
}

// StorageConfig holds object storage settings for avatar uploads.
type StorageConfig struct {
	Dir           string
	PublicBaseURL string
}

// GateConfig holds access gate settings.
type GateConfig struct {
	Strict          bool
	AdminPrefixes   []string
	ResolveTimeout  time.Duration
	ProfileCacheTTL time.Duration
}

// DSN returns the PostgreSQL connection string in key=value format.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// URL returns the PostgreSQL connection string in URL format.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// Load reads configuration from environment variables.
// It uses sensible defaults for local development.
func Load() *Config {
	port := getEnv("PORT", "8080")
	return &Config{
		Server: ServerConfig{
			Port:         port,
			ReadTimeout:  getEnvInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getEnvInt("SERVER_IDLE_TIMEOUT", 60),
			AllowOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Driver:     getEnv("DB_DRIVER", "postgres"),
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnvInt("DB_PORT", 5432),
			User:       getEnv("DB_USER", "multifactors"),
			Password:   getEnv("DB_PASSWORD", "multifactors"),
			DBName:     getEnv("DB_NAME", "multifactors"),
			SSLMode:    getEnv("DB_SSLMODE", "disable"),
			SQLitePath: getEnv("DB_SQLITE_PATH", "multifactors.db"),
		},
		App: AppConfig{
			Dev:        getEnvBool("DEV", true),
			Migrations: getEnvBool("MIGRATIONS", true),
			BaseURL:    strings.TrimRight(getEnv("APP_BASE_URL", "http://localhost:"+port), "/"),
		},
		Auth: AuthConfig{
			SessionSecret:      getEnv("SESSION_SECRET", "devsessionsecret"),
			SessionTTL:         getEnvDuration("SESSION_TTL", 14*24*time.Hour),
			RequireEmailVerify: getEnvBool("AUTH_REQUIRE_EMAIL_VERIFY", false),
			GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		},
		Mail: MailConfig{
			Driver:       getEnv("MAIL_DRIVER", "log"),
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
			ResendURL:    getEnv("RESEND_API_URL", "https://api.resend.com"),
			SMTPHost:     getEnv("SMTP_HOST", ""),
			SMTPPort:     getEnv("SMTP_PORT", "465"),
			SMTPUser:     getEnv("SMTP_USER", ""),
			SMTPPass:     getEnv("SMTP_PASS", ""),
			From:         getEnv("MAIL_FROM", "Website Contact <onboarding@resend.dev>"),
			ContactTo:    getEnv("MAIL_CONTACT_TO", "sales@multifactors.example"),
		},
		Storage: StorageConfig{
			Dir:           getEnv("STORAGE_DIR", "storage"),
			PublicBaseURL: strings.TrimRight(getEnv("STORAGE_PUBLIC_URL", "/storage"), "/"),
		},
		Gate: GateConfig{
			Strict:          getEnvBool("GATE_STRICT", true),
			AdminPrefixes:   getEnvList("GATE_ADMIN_PREFIXES", []string{"/multifactors/account-approval"}),
			ResolveTimeout:  getEnvDuration("GATE_RESOLVE_TIMEOUT", 5*time.Second),
			ProfileCacheTTL: getEnvDuration("GATE_PROFILE_CACHE_TTL", time.Minute),
		},
	}
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvBool returns the boolean value of an environment variable or a default.
// Accepts "1", "true", "yes" as true; everything else is false.
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "1" || value == "true" || value == "yes"
}

// getEnvDuration parses a Go duration string ("90s", "5m").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping empty items.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

package common

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Document DocumentConfig
	Report   ReportConfig
	Watch    WatchConfig
	Database DatabaseConfig
	LogLevel slog.Level
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr         string
	GRPCAddr         string
	RequestTimeout   time.Duration
	IncludeParagraph bool
	AllowedOrigins   []string
}

// DocumentConfig controls where input PDFs are read from.
type DocumentConfig struct {
	Root        string
	DefaultPath string
}

// ReportConfig controls the XLSX report writer.
type ReportConfig struct {
	Enabled bool
	Path    string
}

// WatchConfig controls processing of PDFs dropped into the document root.
type WatchConfig struct {
	Enabled  bool
	Debounce time.Duration
	Workers  int32
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver          string
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// LoadConfig loads configuration from environment variables, reading a .env file first if present.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			HTTPAddr:         getEnv("HTTP_ADDR", ":3000"),
			GRPCAddr:         getEnv("GRPC_ADDR", ":8081"),
			RequestTimeout:   getEnvAsDuration("REQUEST_TIMEOUT", 60*time.Second),
			IncludeParagraph: getEnvAsBool("INCLUDE_PARAGRAPH", true),
			AllowedOrigins:   getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Document: DocumentConfig{
			Root:        getEnv("DOCUMENT_ROOT", "."),
			DefaultPath: getEnv("DOCUMENT_PATH", "PC-271000312419057199.pdf"),
		},
		Report: ReportConfig{
			Enabled: getEnvAsBool("REPORT_ENABLED", true),
			Path:    getEnv("REPORT_PATH", "./policy_report.xlsx"),
		},
		Watch: WatchConfig{
			Enabled:  getEnvAsBool("WATCH_ENABLED", false),
			Debounce: getEnvAsDuration("WATCH_DEBOUNCE", 500*time.Millisecond),
			Workers:  getEnvAsInt32("WATCH_WORKERS", 2),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "sqlite"),
			DSN:             getEnv("DB_URL", ":memory:"),
			MaxConns:        getEnvAsInt32("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt32("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:     getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
		},
		LogLevel: getEnvAsLevel("LOG_LEVEL", slog.LevelInfo),
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvAsLevel(key string, defaultValue slog.Level) slog.Level {
	if value := os.Getenv(key); value != "" {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(value)); err == nil {
			return lvl
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return NewAppError(CodeConfig, "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Document.Root == "" {
		return NewAppError(CodeConfig, "DOCUMENT_ROOT is required", ErrInvalidInput)
	}
	if c.Report.Enabled && c.Report.Path == "" {
		return NewAppError(CodeConfig, "REPORT_PATH is required when REPORT_ENABLED is set", ErrInvalidInput)
	}
	if c.Watch.Enabled && c.Watch.Workers < 1 {
		return NewAppError(CodeConfig, "WATCH_WORKERS must be at least 1", ErrInvalidInput)
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return NewAppError(CodeConfig, "DB_DRIVER must be sqlite or postgres", ErrInvalidInput)
	}
	if c.Database.DSN == "" {
		return NewAppError(CodeConfig, "DB_URL is required", ErrInvalidInput)
	}
	return nil
}

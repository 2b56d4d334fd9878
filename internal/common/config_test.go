package common

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, k := range []string{
		"HTTP_ADDR", "GRPC_ADDR", "REQUEST_TIMEOUT", "INCLUDE_PARAGRAPH", "CORS_ALLOWED_ORIGINS",
		"DOCUMENT_ROOT", "DOCUMENT_PATH", "REPORT_ENABLED", "REPORT_PATH",
		"WATCH_ENABLED", "WATCH_DEBOUNCE", "WATCH_WORKERS",
		"DB_DRIVER", "DB_URL", "DB_MAX_CONNS", "LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}

	cfg := LoadConfig()
	assert.Equal(t, ":3000", cfg.Server.HTTPAddr)
	assert.Equal(t, ":8081", cfg.Server.GRPCAddr)
	assert.Equal(t, 60*time.Second, cfg.Server.RequestTimeout)
	assert.True(t, cfg.Server.IncludeParagraph)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, ".", cfg.Document.Root)
	assert.Equal(t, "PC-271000312419057199.pdf", cfg.Document.DefaultPath)
	assert.True(t, cfg.Report.Enabled)
	assert.Equal(t, "./policy_report.xlsx", cfg.Report.Path)
	assert.False(t, cfg.Watch.Enabled)
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, int32(2), cfg.Watch.Workers)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, ":memory:", cfg.Database.DSN)
	assert.Equal(t, int32(10), cfg.Database.MaxConns)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("REQUEST_TIMEOUT", "5s")
	t.Setenv("INCLUDE_PARAGRAPH", "false")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.example, http://b.example ,")
	t.Setenv("DOCUMENT_PATH", "other.pdf")
	t.Setenv("REPORT_ENABLED", "0")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_URL", "postgres://u:p@localhost:5432/policies")
	t.Setenv("DB_MAX_CONNS", "4")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := LoadConfig()
	assert.Equal(t, ":9000", cfg.Server.HTTPAddr)
	assert.Equal(t, 5*time.Second, cfg.Server.RequestTimeout)
	assert.False(t, cfg.Server.IncludeParagraph)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "other.pdf", cfg.Document.DefaultPath)
	assert.False(t, cfg.Report.Enabled)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, int32(4), cfg.Database.MaxConns)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_BadValuesFallBack(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT", "soon")
	t.Setenv("INCLUDE_PARAGRAPH", "maybe")
	t.Setenv("DB_MAX_CONNS", "lots")
	t.Setenv("LOG_LEVEL", "chatty")

	cfg := LoadConfig()
	assert.Equal(t, 60*time.Second, cfg.Server.RequestTimeout)
	assert.True(t, cfg.Server.IncludeParagraph)
	assert.Equal(t, int32(10), cfg.Database.MaxConns)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:   ServerConfig{HTTPAddr: ":3000"},
			Document: DocumentConfig{Root: "."},
			Report:   ReportConfig{Enabled: true, Path: "r.xlsx"},
			Database: DatabaseConfig{Driver: "sqlite", DSN: ":memory:"},
		}
	}
	require.NoError(t, valid().Validate())

	cases := map[string]func(*Config){
		"no http addr":   func(c *Config) { c.Server.HTTPAddr = "" },
		"no root":        func(c *Config) { c.Document.Root = "" },
		"no report path": func(c *Config) { c.Report.Path = "" },
		"bad driver":     func(c *Config) { c.Database.Driver = "mysql" },
		"no dsn":         func(c *Config) { c.Database.DSN = "" },
		"no watchers":    func(c *Config) { c.Watch = WatchConfig{Enabled: true} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInput)
			var appErr *AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, CodeConfig, appErr.Code)
		})
	}

	c := valid()
	c.Report = ReportConfig{Enabled: false}
	assert.NoError(t, c.Validate())
}

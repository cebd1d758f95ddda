package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig holds all application-level configuration loaded from environment variables.
type AppConfig struct {
	// Port is the HTTP server port. Defaults to 8990.
	Port int `envconfig:"PORT" default:"8990"`

	// DataDir is the root data directory. Defaults to ~/.notifyd.
	DataDir string `envconfig:"NOTIFYD_DATA_DIR"`

	// LogLevel sets the minimum log level (debug, info, warn, error). Defaults to info.
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// GatewayBaseURL overrides the Zaptra API base URL and locks it against
	// changes through the settings API.
	GatewayBaseURL string `envconfig:"ZAPTRA_API_URL"`

	// APIToken overrides the Zaptra API token and locks it against changes
	// through the settings API.
	APIToken string `envconfig:"ZAPTRA_API_TOKEN"`

	// Enabled force-enables or force-disables WhatsApp notifications when the
	// WHATSAPP_NOTIFICATIONS_ENABLED environment variable is set.
	Enabled bool `envconfig:"WHATSAPP_NOTIFICATIONS_ENABLED"`

	// TimeoutMs bounds each outbound gateway call. Defaults to 10 seconds.
	TimeoutMs int `envconfig:"WHATSAPP_TIMEOUT_MS" default:"10000"`

	// TemplatesFile is the path to the template catalog YAML file. When empty
	// the built-in catalog is used.
	TemplatesFile string `envconfig:"NOTIFYD_TEMPLATES_FILE"`
}

// Load reads AppConfig from environment variables using envconfig.
// DataDir defaults to ~/.notifyd if not set.
func Load() (*AppConfig, error) {
	var c AppConfig
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		c.DataDir = filepath.Join(home, ".notifyd")
	}
	return &c, nil
}

// SlogLevel converts the LogLevel string to a slog.Level.
// Unknown values default to slog.LevelInfo.
func (c *AppConfig) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogDir returns the path to the log directory.
func (c *AppConfig) LogDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// DBPath returns the path to the SQLite database file.
func (c *AppConfig) DBPath() string {
	return filepath.Join(c.DataDir, "notifyd.db")
}

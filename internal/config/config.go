package config

import (
	"os"
	"path/filepath"
)

// Config holds runtime settings for the Ledger CLI.
//
// Fields:
//   - SupabaseURL / SupabaseAnonKey: the operator-provided default backend
//     project. Both empty means no deploy-time default exists and the user
//     must connect their own project.
//   - StateDir: directory for client-local state (connection override,
//     cached sessions, drafts database).
//   - LogLevel: slog level name (debug, info, warn, error).
type Config struct {
	SupabaseURL     string
	SupabaseAnonKey string
	StateDir        string
	LogLevel        string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.SupabaseURL = ""
	c.SupabaseAnonKey = ""
	c.StateDir = defaultStateDir()
	c.LogLevel = "info"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present), environment variables, and command-line flags. Later
// sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}

func defaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "ledger")
	}
	return ".ledger"
}

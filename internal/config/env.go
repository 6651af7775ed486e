package config

import "os"

// Environment variable names. LEDGER_SUPABASE_URL/_ANON_KEY carry the
// deploy-time default backend project, the counterpart of the hosted app's
// NEXT_PUBLIC_SUPABASE_* variables.
const (
	EnvSupabaseURL     = "LEDGER_SUPABASE_URL"
	EnvSupabaseAnonKey = "LEDGER_SUPABASE_ANON_KEY"
	EnvStateDir        = "LEDGER_STATE_DIR"
	EnvLogLevel        = "LEDGER_LOG_LEVEL"
)

// parseEnv overlays cfg with values from the environment. Empty variables
// leave the current value untouched.
func parseEnv(cfg *Config) {
	if v := os.Getenv(EnvSupabaseURL); v != "" {
		cfg.SupabaseURL = v
	}
	if v := os.Getenv(EnvSupabaseAnonKey); v != "" {
		cfg.SupabaseAnonKey = v
	}
	if v := os.Getenv(EnvStateDir); v != "" {
		cfg.StateDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
}

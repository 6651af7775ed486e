// Package config loads runtime configuration for the Ledger CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Environment variables (see parseEnv): LEDGER_SUPABASE_URL,
//     LEDGER_SUPABASE_ANON_KEY, LEDGER_STATE_DIR, LEDGER_LOG_LEVEL.
//  4. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-u string   URL of the default backend project
//	-k string   anon key of the default backend project
//	-d string   state directory
//
// # JSON schema
//
//	{
//	  "supabase_url": "https://xyz.supabase.co",
//	  "supabase_anon_key": "eyJhbGciOi...",
//	  "state_dir": "/home/me/.config/ledger",
//	  "log_level": "info"
//	}
//
// The default backend project set here is read-only at runtime: the user can
// override it through the connection store, never mutate it.
package config

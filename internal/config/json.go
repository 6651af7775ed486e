package config

import (
	"encoding/json"
	"os"

	"github.com/mekod/ledger/internal/flagx"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Values are
// copied into the runtime Config after parsing.
type JsonConfig struct {
	SupabaseURL     string `json:"supabase_url"`
	SupabaseAnonKey string `json:"supabase_anon_key"`
	StateDir        string `json:"state_dir"`
	LogLevel        string `json:"log_level"`
}

// parseJson overlays cfg with values loaded from a JSON file. The file path
// comes from the -c or -config flags; when absent, nothing is loaded.
// Read or unmarshal errors panic, matching the fail-fast startup policy
// (a config file that exists but cannot be parsed is an operator mistake).
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.SupabaseURL != "" {
		cfg.SupabaseURL = jc.SupabaseURL
	}
	if jc.SupabaseAnonKey != "" {
		cfg.SupabaseAnonKey = jc.SupabaseAnonKey
	}
	if jc.StateDir != "" {
		cfg.StateDir = jc.StateDir
	}
	if jc.LogLevel != "" {
		cfg.LogLevel = jc.LogLevel
	}
}

package config

import (
	"flag"
	"os"

	"github.com/mekod/ledger/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-u string   URL of the default backend project
//	-k string   anon key of the default backend project
//	-d string   state directory
//
// The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-u", "-k", "-d"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.SupabaseURL, "u", cfg.SupabaseURL, "default backend project URL")
	fs.StringVar(&cfg.SupabaseAnonKey, "k", cfg.SupabaseAnonKey, "default backend project anon key")
	fs.StringVar(&cfg.StateDir, "d", cfg.StateDir, "client state directory")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}

// Package connection decides which backend project the app is talking to:
// the operator-provided default, a user-supplied override, or nothing at all.
// It persists the override in the client state directory and notifies
// subscribers about every change, including changes made by another process
// observing the same state directory.
package connection

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/mekod/ledger/internal/common"
)

// Config identifies one backend project: a base URL plus the public anon key.
// Immutable value object; two configs are the same project iff both fields
// are equal.
type Config struct {
	URL     string `json:"url"`
	AnonKey string `json:"anon_key"`
}

// ParseConfig validates and normalizes raw user input into a Config.
// The URL must parse as an absolute http(s) URL; trailing slashes are
// stripped so equal projects compare equal. Returns common.ErrInvalidConfig
// (wrapped) for anything unusable.
func ParseConfig(rawURL, anonKey string) (*Config, error) {
	u := strings.TrimRight(strings.TrimSpace(rawURL), "/")
	key := strings.TrimSpace(anonKey)

	if u == "" || key == "" {
		return nil, fmt.Errorf("%w: url and anon key are required", common.ErrInvalidConfig)
	}

	parsed, err := url.Parse(u)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidConfig, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", common.ErrInvalidConfig, parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("%w: url has no host", common.ErrInvalidConfig)
	}

	return &Config{URL: u, AnonKey: key}, nil
}

// Identity returns the cache key for this config. One live backend client
// exists per identity.
func (c *Config) Identity() string {
	return c.URL + "::" + c.AnonKey
}

// Equal reports whether both configs address the same backend project.
func (c *Config) Equal(other *Config) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c.URL == other.URL && c.AnonKey == other.AnonKey
}

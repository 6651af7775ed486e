package connection

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mekod/ledger/internal/common"
)

func mustConfig(t *testing.T, url, key string) *Config {
	t.Helper()
	cfg, err := ParseConfig(url, key)
	require.NoError(t, err)
	return cfg
}

func newTestStore(t *testing.T, env *Config) *Store {
	t.Helper()
	s := NewStore(env, t.TempDir(), nil)
	t.Cleanup(s.Close)
	return s
}

func writeOverrideFiles(t *testing.T, dir string, cfg *Config, enabled string) {
	t.Helper()
	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, overrideFile), data, 0o600))
	if enabled != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, enabledFile), []byte(enabled), 0o600))
	}
}

func TestResolve_PriorityTable(t *testing.T) {
	env := mustConfig(t, "https://env.supabase.co", "env-key")
	custom := mustConfig(t, "https://custom.supabase.co", "custom-key")

	tests := []struct {
		name       string
		env        *Config
		override   *Config
		enabled    string // "" = flag file absent
		wantSource Source
		wantConfig *Config
	}{
		{"nothing configured", nil, nil, "", SourceNone, nil},
		{"env only", env, nil, "", SourceEnv, env},
		{"override enabled beats env", env, custom, "1", SourceCustom, custom},
		{"override disabled falls back to env", env, custom, "0", SourceEnv, env},
		{"override without flag falls back to env", env, custom, "", SourceEnv, env},
		{"override enabled, no env", nil, custom, "1", SourceCustom, custom},
		{"override disabled, no env, still used", nil, custom, "0", SourceCustom, custom},
		{"override without flag, no env, still used", nil, custom, "", SourceCustom, custom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.override != nil {
				writeOverrideFiles(t, dir, tt.override, tt.enabled)
			}

			s := NewStore(tt.env, dir, nil)
			defer s.Close()

			got := s.Resolve()
			require.Equal(t, tt.wantSource, got.Source)
			if tt.wantConfig == nil {
				require.Nil(t, got.Config)
			} else {
				require.True(t, tt.wantConfig.Equal(got.Config))
			}
		})
	}
}

func TestResolve_NoStateDir(t *testing.T) {
	env := mustConfig(t, "https://env.supabase.co", "env-key")

	s := NewStore(env, "", nil)
	defer s.Close()
	require.Equal(t, SourceEnv, s.Resolve().Source)

	s2 := NewStore(nil, "", nil)
	defer s2.Close()
	require.Equal(t, SourceNone, s2.Resolve().Source)
}

func TestResolve_CorruptOverrideIgnored(t *testing.T) {
	env := mustConfig(t, "https://env.supabase.co", "env-key")

	tests := []struct {
		name string
		data string
	}{
		{"corrupt json", `{"url": "https://x`},
		{"wrong shape", `[1, 2, 3]`},
		{"missing fields", `{"url": "https://x.supabase.co"}`},
		{"invalid url", `{"url": "ftp://x", "anon_key": "k"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, overrideFile), []byte(tt.data), 0o600))
			require.NoError(t, os.WriteFile(filepath.Join(dir, enabledFile), []byte("1"), 0o600))

			s := NewStore(env, dir, nil)
			defer s.Close()

			got := s.Resolve()
			require.Equal(t, SourceEnv, got.Source)
		})
	}
}

func TestSaveOverride_InvalidNeverPersisted(t *testing.T) {
	s := newTestStore(t, nil)

	err := s.SaveOverride(&Config{URL: "ftp://bad", AnonKey: "k"})
	require.Error(t, err)
	require.Equal(t, SourceNone, s.Resolve().Source)
}

func TestSaveOverride_NoStateDir(t *testing.T) {
	s := NewStore(nil, "", nil)
	defer s.Close()

	custom := mustConfig(t, "https://custom.supabase.co", "custom-key")
	err := s.SaveOverride(custom)
	require.ErrorIs(t, err, common.ErrInvalidConfig)
	require.Equal(t, SourceNone, s.Resolve().Source)
}

func TestStore_MutationsNotifyAndResolve(t *testing.T) {
	env := mustConfig(t, "https://env.supabase.co", "env-key")
	s := newTestStore(t, env)

	var notified atomic.Int32
	var observed []Source
	unsub := s.Subscribe(func() {
		notified.Add(1)
		// State must already be durable when the notification fires.
		observed = append(observed, s.Resolve().Source)
	})
	defer unsub()

	custom := mustConfig(t, "https://custom.supabase.co", "custom-key")
	require.NoError(t, s.SaveOverride(custom))
	require.NoError(t, s.DisableOverride())
	require.NoError(t, s.ClearOverride())

	require.Equal(t, int32(3), notified.Load())
	require.Equal(t, []Source{SourceCustom, SourceEnv, SourceEnv}, observed)
	require.Equal(t, SourceEnv, s.Resolve().Source)
}

func TestStore_UnsubscribeStopsNotifications(t *testing.T) {
	s := newTestStore(t, nil)

	var notified atomic.Int32
	unsub := s.Subscribe(func() { notified.Add(1) })

	custom := mustConfig(t, "https://custom.supabase.co", "custom-key")
	require.NoError(t, s.SaveOverride(custom))
	require.Equal(t, int32(1), notified.Load())

	unsub()
	require.NoError(t, s.ClearOverride())
	require.Equal(t, int32(1), notified.Load())
}

func TestStore_ExternalChangeNotifies(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(nil, dir, nil)
	defer s.Close()

	var notified atomic.Int32
	s.Subscribe(func() { notified.Add(1) })

	// Simulate another process writing the override files directly.
	custom := mustConfig(t, "https://other.supabase.co", "other-key")
	writeOverrideFiles(t, dir, custom, "1")

	require.Eventually(t, func() bool {
		return notified.Load() >= 1
	}, 3*time.Second, 20*time.Millisecond)

	got := s.Resolve()
	require.Equal(t, SourceCustom, got.Source)
	require.True(t, custom.Equal(got.Config))
}

func TestStore_CloseStopsCallbacks(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(nil, dir, nil)

	var notified atomic.Int32
	s.Subscribe(func() { notified.Add(1) })
	s.Close()

	custom := mustConfig(t, "https://other.supabase.co", "other-key")
	writeOverrideFiles(t, dir, custom, "1")

	time.Sleep(300 * time.Millisecond)
	require.Zero(t, notified.Load())
}

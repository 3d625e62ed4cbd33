package client

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestHeartbeatMustStayUnderHalfTheSessionTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SessionTimeout = 30 * time.Second

	cfg.HeartbeatInterval = 14 * time.Second
	require.NoError(t, cfg.Validate())

	// exactly half is already too slow: one delayed beat kills the session
	cfg.HeartbeatInterval = 15 * time.Second
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsBrokenFields(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty server url", func(c *Config) { c.ServerURL = "" }},
		{"zero session timeout", func(c *Config) { c.SessionTimeout = 0 }},
		{"zero heartbeat", func(c *Config) { c.HeartbeatInterval = 0 }},
		{"zero poll interval", func(c *Config) { c.PollInterval = 0 }},
		{"negative reconnect attempts", func(c *Config) { c.ReconnectAttempts = -1 }},
		{"negative backoff", func(c *Config) { c.ReconnectBackoff = -time.Second }},
		{"zero history limit", func(c *Config) { c.HistoryLimit = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestLoadConfigLayersOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parley.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"server_url: http://example.com/chat\npoll_interval: 250ms\ndefault_room: lobby\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "http://example.com/chat", cfg.ServerURL)
	require.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	require.Equal(t, "lobby", cfg.DefaultRoom)
	// untouched fields keep their defaults
	require.Equal(t, 30*time.Second, cfg.SessionTimeout)
	require.Equal(t, 50, cfg.HistoryLimit)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

package client

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds the protocol engine settings. The zero value is not usable;
// start from DefaultConfig.
type Config struct {
	// ServerURL is the chat endpoint prefix, e.g. "http://localhost:8000/chat".
	ServerURL string `yaml:"server_url"`

	// SessionTimeout is the server's idle-session timeout. The client never
	// learns it over the wire, so it is part of the contract configuration.
	SessionTimeout time.Duration `yaml:"session_timeout"`

	// HeartbeatInterval must be strictly less than SessionTimeout/2 so that a
	// single delayed keepalive cannot kill the session.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`

	// PollInterval is the fixed delay between the end of one update cycle and
	// the start of the next.
	PollInterval time.Duration `yaml:"poll_interval"`

	// ReconnectAttempts bounds automatic rejoin attempts after a disconnect.
	// Exceeding the bound is terminal.
	ReconnectAttempts int `yaml:"reconnect_attempts"`

	// ReconnectBackoff is the fixed delay before each rejoin attempt.
	ReconnectBackoff time.Duration `yaml:"reconnect_backoff"`

	// HistoryLimit caps per-conversation history; insertion evicts oldest.
	HistoryLimit int `yaml:"history_limit"`

	// DefaultRoom is auto-joined when it appears in a room announce and no
	// conversation for it is open yet. Empty disables the auto-join.
	DefaultRoom string `yaml:"default_room"`
}

// DefaultConfig mirrors the server-side constants: 30s session TTL, 500ms
// poll delay, 50-entry tab history, three reconnect attempts.
func DefaultConfig() Config {
	return Config{
		ServerURL:         "http://localhost:8000/chat",
		SessionTimeout:    30 * time.Second,
		HeartbeatInterval: 10 * time.Second,
		PollInterval:      500 * time.Millisecond,
		ReconnectAttempts: 3,
		ReconnectBackoff:  2 * time.Second,
		HistoryLimit:      50,
		DefaultRoom:       "default",
	}
}

// yamlConfig mirrors Config for decoding; durations come in as strings in
// time.ParseDuration notation ("500ms", "30s").
type yamlConfig struct {
	ServerURL         string  `yaml:"server_url"`
	SessionTimeout    string  `yaml:"session_timeout"`
	HeartbeatInterval string  `yaml:"heartbeat_interval"`
	PollInterval      string  `yaml:"poll_interval"`
	ReconnectAttempts *int    `yaml:"reconnect_attempts"`
	ReconnectBackoff  string  `yaml:"reconnect_backoff"`
	HistoryLimit      *int    `yaml:"history_limit"`
	DefaultRoom       *string `yaml:"default_room"`
}

func applyDuration(dst *time.Duration, raw, field string) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return errors.Wrapf(err, "parsing %s", field)
	}
	*dst = d
	return nil
}

// LoadConfig reads a yaml config file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "reading config %s", path)
	}
	var yc yamlConfig
	if err := yaml.Unmarshal(b, &yc); err != nil {
		return cfg, errors.Wrapf(err, "parsing config %s", path)
	}
	if yc.ServerURL != "" {
		cfg.ServerURL = yc.ServerURL
	}
	if err := applyDuration(&cfg.SessionTimeout, yc.SessionTimeout, "session_timeout"); err != nil {
		return cfg, err
	}
	if err := applyDuration(&cfg.HeartbeatInterval, yc.HeartbeatInterval, "heartbeat_interval"); err != nil {
		return cfg, err
	}
	if err := applyDuration(&cfg.PollInterval, yc.PollInterval, "poll_interval"); err != nil {
		return cfg, err
	}
	if err := applyDuration(&cfg.ReconnectBackoff, yc.ReconnectBackoff, "reconnect_backoff"); err != nil {
		return cfg, err
	}
	if yc.ReconnectAttempts != nil {
		cfg.ReconnectAttempts = *yc.ReconnectAttempts
	}
	if yc.HistoryLimit != nil {
		cfg.HistoryLimit = *yc.HistoryLimit
	}
	if yc.DefaultRoom != nil {
		cfg.DefaultRoom = *yc.DefaultRoom
	}
	return cfg, nil
}

// Validate enforces the construction-time invariants.
func (c Config) Validate() error {
	if c.ServerURL == "" {
		return errors.New("server_url is required")
	}
	if c.SessionTimeout <= 0 {
		return errors.New("session_timeout must be positive")
	}
	if c.HeartbeatInterval <= 0 {
		return errors.New("heartbeat_interval must be positive")
	}
	if 2*c.HeartbeatInterval >= c.SessionTimeout {
		return errors.Errorf(
			"heartbeat_interval %s must be strictly less than half the session_timeout %s",
			c.HeartbeatInterval, c.SessionTimeout)
	}
	if c.PollInterval <= 0 {
		return errors.New("poll_interval must be positive")
	}
	if c.ReconnectAttempts < 0 {
		return errors.New("reconnect_attempts must not be negative")
	}
	if c.ReconnectBackoff < 0 {
		return errors.New("reconnect_backoff must not be negative")
	}
	if c.HistoryLimit <= 0 {
		return errors.New("history_limit must be positive")
	}
	return nil
}

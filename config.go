package dialogsdk

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ──────────────────────────────────────────────
// Configuration — koanf-backed engine settings
// ──────────────────────────────────────────────

// Config is the file/env-tunable surface of the SDK. Values merge in
// priority order: defaults < TOML file < DIALOGSDK_* environment variables
// (e.g. DIALOGSDK_ROUTER_MIN_CONFIDENCE=0.8).
type Config struct {
	Router struct {
		MinConfidence float64 `koanf:"min_confidence"`
	} `koanf:"router"`

	Tracker struct {
		SwitchPolicy  string        `koanf:"switch_policy"` // suspend / abandon / reject
		MaxFailStreak int           `koanf:"max_fail_streak"`
		AbandonAfter  time.Duration `koanf:"abandon_after"`
	} `koanf:"tracker"`

	Classifier struct {
		Timeout    time.Duration `koanf:"timeout"`
		MaxHistory int           `koanf:"max_history"`
	} `koanf:"classifier"`

	History struct {
		Limit int `koanf:"limit"`
	} `koanf:"history"`

	Messenger struct {
		MaxInFlight int           `koanf:"max_in_flight"`
		Retries     int           `koanf:"retries"`
		RetryDelay  time.Duration `koanf:"retry_delay"`
	} `koanf:"messenger"`

	Redis struct {
		Addr   string `koanf:"addr"`
		Prefix string `koanf:"prefix"`
	} `koanf:"redis"`
}

// LoadConfig loads configuration, optionally from a TOML file. An empty path
// skips the file layer.
func LoadConfig(configPath string) (*Config, error) {
	k := koanf.New(".")

	k.Load(confmap.Provider(map[string]interface{}{
		"router.min_confidence":    0.7,
		"tracker.switch_policy":    "suspend",
		"tracker.max_fail_streak":  5,
		"tracker.abandon_after":    "30m",
		"classifier.timeout":       "10s",
		"classifier.max_history":   10,
		"history.limit":            20,
		"messenger.max_in_flight":  8,
		"messenger.retries":        2,
		"messenger.retry_delay":    "500ms",
		"redis.prefix":             "dialog",
	}, "."), nil)

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	}

	k.Load(env.Provider("DIALOGSDK_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "DIALOGSDK_")), "_", ".", 1)
	}), nil)

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	return &config, nil
}

// TrackerConfig converts the loaded settings for NewTracker.
func (c *Config) TrackerConfig() TrackerConfig {
	policy := SwitchSuspend
	switch strings.ToLower(c.Tracker.SwitchPolicy) {
	case "abandon":
		policy = SwitchAbandon
	case "reject":
		policy = SwitchReject
	}
	return TrackerConfig{
		Policy:        policy,
		MaxFailStreak: c.Tracker.MaxFailStreak,
		AbandonAfter:  c.Tracker.AbandonAfter,
	}
}

// RouterConfig converts the loaded settings for NewRouter.
func (c *Config) RouterConfig() RouterConfig {
	return RouterConfig{MinConfidence: c.Router.MinConfidence}
}

// MessengerConfig converts the loaded settings for NewAsyncMessenger.
func (c *Config) MessengerConfig() AsyncMessengerConfig {
	return AsyncMessengerConfig{
		MaxInFlight: c.Messenger.MaxInFlight,
		Retries:     c.Messenger.Retries,
		RetryDelay:  c.Messenger.RetryDelay,
	}
}

// Package config holds the runtime configuration for both roles.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Role represents the process role: the relay server or a negotiating peer.
type Role string

const (
	RoleRelay Role = "relay"
	RolePeer  Role = "peer"
)

// Config stores every parameter, read from a YAML file and/or the
// environment. CLI flags override individual fields afterwards.
type Config struct {
	Role          Role          `yaml:"role" env:"PEERLINK_ROLE"`
	Debug         bool          `yaml:"debug" env:"PEERLINK_DEBUG"`
	StatsInterval time.Duration `yaml:"stats_interval" env:"PEERLINK_STATS_INTERVAL"`

	Relay  RelayConfig  `yaml:"relay"`
	Peer   PeerConfig   `yaml:"peer"`
	WebRTC WebRTCConfig `yaml:"webrtc"`
}

type RelayConfig struct {
	Listen string `yaml:"listen" env:"PEERLINK_RELAY_LISTEN"`
	PIN    string `yaml:"pin" env:"PEERLINK_RELAY_PIN"`
}

type PeerConfig struct {
	URL         string        `yaml:"url" env:"PEERLINK_PEER_URL"`
	Offer       bool          `yaml:"offer" env:"PEERLINK_PEER_OFFER"`
	Codec       string        `yaml:"codec" env:"PEERLINK_PEER_CODEC"`
	StepTimeout time.Duration `yaml:"step_timeout" env:"PEERLINK_PEER_STEP_TIMEOUT"`
}

type WebRTCConfig struct {
	STUNServers []string `yaml:"stun_servers" env:"PEERLINK_STUN_SERVERS"`
	StreamMode  string   `yaml:"stream_mode" env:"PEERLINK_STREAM_MODE"`
}

// Load reads the configuration from path, or from the environment only when
// path is empty, and fills in defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file does not exist: %s", path)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("cannot read config: %w", err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("cannot read environment: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// Path resolves the config file location: the flag value, else CONFIG_PATH.
func Path(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv("CONFIG_PATH")
}

func (c *Config) setDefaults() {
	if c.Relay.Listen == "" {
		c.Relay.Listen = ":0"
	}
	if c.StatsInterval <= 0 {
		c.StatsInterval = 10 * time.Second
	}
	if len(c.WebRTC.STUNServers) == 0 {
		c.WebRTC.STUNServers = []string{"stun:stun.l.google.com:19302"}
	}
	if c.WebRTC.StreamMode == "" {
		c.WebRTC.StreamMode = "shared"
	}
}

// Validate checks the fields required by the selected role.
func (c *Config) Validate() error {
	switch c.Role {
	case RoleRelay:
		return nil
	case RolePeer:
		if c.Peer.URL == "" {
			return errors.New("missing relay URL for peer role")
		}
		if c.Peer.StepTimeout < 0 {
			return errors.New("step timeout must not be negative")
		}
		return nil
	case "":
		return errors.New("missing role")
	default:
		return fmt.Errorf("invalid role %q: must be 'relay' or 'peer'", c.Role)
	}
}

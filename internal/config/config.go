// Package config loads the service's YAML configuration. The config file is
// the primary configuration surface; flags in main exist for small overrides
// and dev setups where a file is awkward.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/latency.report/internal/serialmux"
	"github.com/banshee-data/latency.report/internal/wire"
)

// Config is the top-level YAML configuration for the service.
type Config struct {
	Serial SerialConfig `yaml:"serial"`
	DB     DBConfig     `yaml:"db"`
	HTTP   HTTPConfig   `yaml:"http"`
	MQTT   MQTTConfig   `yaml:"mqtt"`
	Device DeviceConfig `yaml:"device"`
}

type SerialConfig struct {
	// Port is the serial device path, e.g. /dev/ttyACM0. Empty means the
	// service runs against a mock device.
	Port    string                `yaml:"port"`
	Options serialmux.PortOptions `yaml:"options"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type HTTPConfig struct {
	Listen string `yaml:"listen"`
}

type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	TopicPrefix string `yaml:"topic_prefix,omitempty"`
}

// DeviceConfig holds the settings pushed to the tester when a session
// starts.
type DeviceConfig struct {
	PollRateHz    uint16 `yaml:"poll_rate_hz"`
	ReportMode    string `yaml:"report_mode"` // raw, summary, or combined
	ThresholdBias int16  `yaml:"threshold_bias"`
	Action        string `yaml:"action"` // "mouse:left" or "key:x"
}

// DefaultConfig returns a fully-populated Config matching the tester's
// power-on defaults.
func DefaultConfig() Config {
	return Config{
		DB:   DBConfig{Path: "latency.db"},
		HTTP: HTTPConfig{Listen: ":8080"},
		MQTT: MQTTConfig{Enabled: false},
		Device: DeviceConfig{
			PollRateHz:    2000,
			ReportMode:    "summary",
			ThresholdBias: 150,
			Action:        "mouse:left",
		},
	}
}

// Load reads and parses a YAML config file on top of the defaults.
// Unknown fields are rejected to catch typos.
func Load(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks config invariants and returns a user-friendly error.
func (c *Config) Validate() error {
	if _, err := c.Serial.Options.Normalise(); err != nil {
		return fmt.Errorf("serial.options: %w", err)
	}
	if c.DB.Path == "" {
		return errors.New("db.path must not be empty")
	}
	if c.HTTP.Listen == "" {
		return errors.New("http.listen must not be empty")
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return errors.New("mqtt.enabled is true but mqtt.broker is empty")
	}
	if c.Device.PollRateHz == 0 {
		return errors.New("device.poll_rate_hz must be at least 1")
	}
	if _, err := c.ReportMode(); err != nil {
		return err
	}
	if _, _, err := c.Action(); err != nil {
		return err
	}
	return nil
}

// ReportMode parses the configured report mode name.
func (c *Config) ReportMode() (wire.ReportMode, error) {
	switch c.Device.ReportMode {
	case "raw":
		return wire.ModeRaw, nil
	case "summary":
		return wire.ModeSummary, nil
	case "combined":
		return wire.ModeCombined, nil
	default:
		return 0, fmt.Errorf("device.report_mode must be raw, summary, or combined (got %q)", c.Device.ReportMode)
	}
}

// Action parses the configured action, e.g. "mouse:left" or "key:x".
func (c *Config) Action() (wire.ActionKind, uint8, error) {
	kind, name, found := strings.Cut(c.Device.Action, ":")
	if !found || kind == "" || name == "" {
		return 0, 0, fmt.Errorf("device.action must look like mouse:left or key:x (got %q)", c.Device.Action)
	}

	switch kind {
	case "mouse":
		switch name {
		case "left":
			return wire.KindMouse, wire.MouseLeft, nil
		case "right":
			return wire.KindMouse, wire.MouseRight, nil
		case "middle":
			return wire.KindMouse, wire.MouseMiddle, nil
		}
		return 0, 0, fmt.Errorf("unknown mouse button %q", name)
	case "key":
		if len(name) == 1 && wire.ValidActionCode(wire.KindKeyboard, name[0]) {
			return wire.KindKeyboard, name[0], nil
		}
		return 0, 0, fmt.Errorf("key must be a single letter a-z (got %q)", name)
	}
	return 0, 0, fmt.Errorf("unknown action kind %q", kind)
}

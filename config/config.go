// Package config loads daemon configuration from a YAML file with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sosodev/duration"
	"gopkg.in/yaml.v3"
)

// Duration accepts both Go duration strings ("5s", "1m30s") and ISO 8601
// durations ("PT5S", "PT1M30S") in YAML and environment values.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := parseDuration(raw)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Value returns the wrapped time.Duration.
func (d Duration) Value() time.Duration {
	return time.Duration(d)
}

func parseDuration(raw string) (time.Duration, error) {
	if parsed, err := time.ParseDuration(raw); err == nil {
		return parsed, nil
	}
	iso, err := duration.Parse(raw)
	if err != nil {
		return 0, fmt.Errorf("could not parse duration %q", raw)
	}
	return iso.ToTimeDuration(), nil
}

type (
	// Config is the daemon's full configuration tree.
	Config struct {
		Serial    Serial    `yaml:"serial"`
		Window    WindowCfg `yaml:"window"`
		Reconnect Reconnect `yaml:"reconnect"`
		Collect   Collect   `yaml:"collect"`
		Store     StoreCfg  `yaml:"store"`
		Notify    NotifyCfg `yaml:"notify"`
	}

	// Serial configures the device link.
	Serial struct {
		Endpoint   string `yaml:"endpoint"`
		BaudRate   int    `yaml:"baud_rate"`
		AutoDetect bool   `yaml:"auto_detect"`
	}

	// WindowCfg configures the rolling acidity window.
	WindowCfg struct {
		Duration Duration `yaml:"duration"`
		Capacity int      `yaml:"capacity"`
	}

	// Reconnect bounds the gateway's reconnection policy.
	Reconnect struct {
		MaxAttempts int      `yaml:"max_attempts"`
		Delay       Duration `yaml:"delay"`
	}

	// Collect configures comprehensive-reading collection.
	Collect struct {
		Window         Duration `yaml:"window"`
		SampleInterval Duration `yaml:"sample_interval"`
	}

	// StoreCfg locates the reading database.
	StoreCfg struct {
		Path string `yaml:"path"`
	}

	// NotifyCfg configures the MQTT notifier. Notification is disabled when
	// Broker is empty.
	NotifyCfg struct {
		Broker   string `yaml:"broker"`
		Topic    string `yaml:"topic"`
		ClientID string `yaml:"client_id"`
	}
)

// Default returns the configuration used when no file or overrides are given.
func Default() Config {
	return Config{
		Serial: Serial{
			BaudRate:   9600,
			AutoDetect: true,
		},
		Window: WindowCfg{
			Duration: Duration(10 * time.Second),
			Capacity: 100,
		},
		Reconnect: Reconnect{
			MaxAttempts: 5,
			Delay:       Duration(5 * time.Second),
		},
		Collect: Collect{
			Window:         Duration(5 * time.Second),
			SampleInterval: Duration(500 * time.Millisecond),
		},
		Store: StoreCfg{
			Path: "chromaprobe.db",
		},
		Notify: NotifyCfg{
			Topic:    "chromaprobe/alerts",
			ClientID: "chromaprobe-notifier",
		},
	}
}

// Load reads the configuration file at path (skipped when empty), then applies
// environment overrides on top of the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overrides configuration values from well-known environment
// variables.
func (c *Config) applyEnv() error {
	for _, env := range os.Environ() {
		idx := strings.IndexByte(env, '=')
		key := env[:idx]
		val := env[idx+1:]
		switch key {
		case "CHROMAPROBE_SERIAL_ENDPOINT":
			c.Serial.Endpoint = val

		case "CHROMAPROBE_SERIAL_BAUD_RATE":
			rate, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("could not parse serial baud rate: %w", err)
			}
			c.Serial.BaudRate = rate

		case "CHROMAPROBE_SERIAL_AUTO_DETECT":
			auto, err := strconv.ParseBool(val)
			if err != nil {
				return fmt.Errorf("could not parse serial auto-detect: %w", err)
			}
			c.Serial.AutoDetect = auto

		case "CHROMAPROBE_WINDOW_DURATION":
			d, err := parseDuration(val)
			if err != nil {
				return fmt.Errorf("could not parse window duration: %w", err)
			}
			c.Window.Duration = Duration(d)

		case "CHROMAPROBE_WINDOW_CAPACITY":
			capacity, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("could not parse window capacity: %w", err)
			}
			c.Window.Capacity = capacity

		case "CHROMAPROBE_RECONNECT_MAX_ATTEMPTS":
			attempts, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("could not parse reconnect attempts: %w", err)
			}
			c.Reconnect.MaxAttempts = attempts

		case "CHROMAPROBE_RECONNECT_DELAY":
			d, err := parseDuration(val)
			if err != nil {
				return fmt.Errorf("could not parse reconnect delay: %w", err)
			}
			c.Reconnect.Delay = Duration(d)

		case "CHROMAPROBE_COLLECT_WINDOW":
			d, err := parseDuration(val)
			if err != nil {
				return fmt.Errorf("could not parse collect window: %w", err)
			}
			c.Collect.Window = Duration(d)

		case "CHROMAPROBE_COLLECT_SAMPLE_INTERVAL":
			d, err := parseDuration(val)
			if err != nil {
				return fmt.Errorf("could not parse collect sample interval: %w", err)
			}
			c.Collect.SampleInterval = Duration(d)

		case "CHROMAPROBE_STORE_PATH":
			c.Store.Path = val

		case "CHROMAPROBE_NOTIFY_BROKER":
			c.Notify.Broker = val

		case "CHROMAPROBE_NOTIFY_TOPIC":
			c.Notify.Topic = val

		case "CHROMAPROBE_NOTIFY_CLIENT_ID":
			c.Notify.ClientID = val
		}
	}
	return nil
}

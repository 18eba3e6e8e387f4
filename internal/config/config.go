package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from a YAML string like "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = dur
	return nil
}

// Host is a single monitored host. Its index is its position in Config.Hosts.
type Host struct {
	Address string `yaml:"address"`
}

// ProbeConfig controls how reachability is checked.
type ProbeConfig struct {
	Method  string   `yaml:"method"`
	Count   int      `yaml:"count"`
	Wait    Duration `yaml:"wait"`
	Timeout Duration `yaml:"timeout"`
	Workers int      `yaml:"workers"`
}

// ChannelConfig describes the single chat channel notifications go to.
type ChannelConfig struct {
	Type     string `yaml:"type"`
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
	URL      string `yaml:"url"`
	Timezone string `yaml:"timezone"`
}

// Location returns the timezone notification timestamps are rendered in.
func (c ChannelConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// Config is the root application configuration.
type Config struct {
	Hosts    []Host        `yaml:"hosts"`
	Interval Duration      `yaml:"interval"`
	Probe    ProbeConfig   `yaml:"probe"`
	Channel  ChannelConfig `yaml:"channel"`
	Server   ServerConfig  `yaml:"server"`
	Storage  StorageConfig `yaml:"storage"`
}

var validMethods = map[string]bool{
	"ping": true,
	"tcp":  true,
}

var validChannels = map[string]bool{
	"telegram": true,
	"webhook":  true,
	"log":      true,
}

// Load reads, expands, parses, and validates the config file at path.
// ${VAR} references are replaced from the environment before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse([]byte(os.ExpandEnv(string(data))))
}

// Parse parses and validates already-expanded YAML config data.
func Parse(data []byte) (*Config, error) {
	// Durations are decoded as strings so errors can name the offending field.
	type rawProbe struct {
		Method  string `yaml:"method"`
		Count   int    `yaml:"count"`
		Wait    string `yaml:"wait"`
		Timeout string `yaml:"timeout"`
		Workers int    `yaml:"workers"`
	}
	type rawConfig struct {
		Hosts    []Host        `yaml:"hosts"`
		Interval string        `yaml:"interval"`
		Probe    rawProbe      `yaml:"probe"`
		Channel  ChannelConfig `yaml:"channel"`
		Server   ServerConfig  `yaml:"server"`
		Storage  StorageConfig `yaml:"storage"`
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Apply defaults.
	if raw.Server.Address == "" {
		raw.Server.Address = ":8080"
	}
	if raw.Storage.Path == "" {
		raw.Storage.Path = "hostwatch.db"
	}
	if raw.Probe.Method == "" {
		raw.Probe.Method = "ping"
	}
	if raw.Probe.Count == 0 {
		raw.Probe.Count = 3
	}
	if raw.Probe.Workers == 0 {
		raw.Probe.Workers = 4
	}
	if raw.Channel.Type == "" {
		raw.Channel.Type = "telegram"
	}

	if len(raw.Hosts) == 0 {
		return nil, fmt.Errorf("at least one host must be configured")
	}
	for i, h := range raw.Hosts {
		if h.Address == "" {
			return nil, fmt.Errorf("host[%d]: address is required", i)
		}
	}

	cfg := &Config{
		Hosts:   raw.Hosts,
		Channel: raw.Channel,
		Server:  raw.Server,
		Storage: raw.Storage,
		Probe: ProbeConfig{
			Method:  raw.Probe.Method,
			Count:   raw.Probe.Count,
			Workers: raw.Probe.Workers,
		},
	}

	var err error
	if cfg.Interval, err = parseDuration("interval", raw.Interval, 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.Probe.Wait, err = parseDuration("probe wait", raw.Probe.Wait, 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.Probe.Timeout, err = parseDuration("probe timeout", raw.Probe.Timeout, 5*time.Second); err != nil {
		return nil, err
	}

	if !validMethods[cfg.Probe.Method] {
		return nil, fmt.Errorf("invalid probe method %q (must be ping or tcp)", cfg.Probe.Method)
	}
	if cfg.Probe.Count < 0 {
		return nil, fmt.Errorf("probe count must be positive, got %d", cfg.Probe.Count)
	}
	if cfg.Probe.Workers < 0 {
		return nil, fmt.Errorf("probe workers must be positive, got %d", cfg.Probe.Workers)
	}

	if err := validateChannel(cfg.Channel); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseDuration(field, s string, def time.Duration) (Duration, error) {
	if s == "" {
		return Duration{def}, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return Duration{}, fmt.Errorf("invalid %s %q: %w", field, s, err)
	}
	if d <= 0 {
		return Duration{}, fmt.Errorf("invalid %s %q: must be positive", field, s)
	}
	return Duration{d}, nil
}

func validateChannel(ch ChannelConfig) error {
	if !validChannels[ch.Type] {
		return fmt.Errorf("invalid channel type %q (must be telegram, webhook, or log)", ch.Type)
	}
	switch ch.Type {
	case "telegram":
		if ch.BotToken == "" {
			return fmt.Errorf("channel: bot_token is required for telegram")
		}
		if ch.ChatID == "" {
			return fmt.Errorf("channel: chat_id is required for telegram")
		}
	case "webhook":
		if ch.URL == "" {
			return fmt.Errorf("channel: url is required for webhook")
		}
	}
	if ch.Timezone != "" {
		if _, err := time.LoadLocation(ch.Timezone); err != nil {
			return fmt.Errorf("channel: invalid timezone %q: %w", ch.Timezone, err)
		}
	}
	return nil
}

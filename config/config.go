package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Near    BrokerConfig  `json:"near" yaml:"near"`
	Far     BrokerConfig  `json:"far" yaml:"far"`
	Rules   string        `json:"rules" yaml:"rules"`
	Reload  ReloadConfig  `json:"reload" yaml:"reload"`
	Bridge  BridgeConfig  `json:"bridge" yaml:"bridge"`
	Logging LogConfig     `json:"logging" yaml:"logging"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
}

type BrokerConfig struct {
	Host     string    `json:"host" yaml:"host"`
	Port     int       `json:"port" yaml:"port"`
	Username string    `json:"username" yaml:"username"`
	Password string    `json:"password" yaml:"password"`
	ClientID string    `json:"clientId" yaml:"clientId"`
	TLS      TLSConfig `json:"tls" yaml:"tls"`
}

type TLSConfig struct {
	Enable   bool   `json:"enable" yaml:"enable"`
	CertFile string `json:"certFile" yaml:"certFile"`
	KeyFile  string `json:"keyFile" yaml:"keyFile"`
	CAFile   string `json:"caFile" yaml:"caFile"`
}

// ReloadConfig identifies the (side, topic) pair that triggers a rules
// reload. An empty topic disables the topic trigger; SIGHUP still works.
type ReloadConfig struct {
	Topic  string `json:"topic" yaml:"topic"`
	Broker string `json:"broker" yaml:"broker"` // "near" or "far"
}

// BridgeConfig holds engine tunables.
type BridgeConfig struct {
	LoopTTL       string `json:"loopTtl" yaml:"loopTtl"`             // Duration string
	StatsInterval string `json:"statsInterval" yaml:"statsInterval"` // Duration string, 0 disables
}

type LogConfig struct {
	Level      string `json:"level" yaml:"level"`           // debug, info, warn, error
	OutputPath string `json:"outputPath" yaml:"outputPath"` // file path or "stdout"
	Encoding   string `json:"encoding" yaml:"encoding"`     // json or console
	MaxSize    int    `json:"maxSize" yaml:"maxSize"`       // megabytes per rotated file
	MaxAge     int    `json:"maxAge" yaml:"maxAge"`         // days
	MaxBackups int    `json:"maxBackups" yaml:"maxBackups"`
	Compress   bool   `json:"compress" yaml:"compress"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Address string `json:"address" yaml:"address"`
	Path    string `json:"path" yaml:"path"`
}

// Load reads and parses the bridge configuration file. JSON and YAML are
// selected by extension; any other extension tries JSON first, then YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	switch filepath.Ext(path) {
	case ".json":
		err = json.Unmarshal(data, &config)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	default:
		if err = json.Unmarshal(data, &config); err != nil {
			err = yaml.Unmarshal(data, &config)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.setDefaults()

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func (c *Config) setDefaults() {
	c.Near.setDefaults("near")
	c.Far.setDefaults("far")

	if c.Reload.Broker == "" {
		c.Reload.Broker = "near"
	}

	if c.Bridge.LoopTTL == "" {
		c.Bridge.LoopTTL = "5s"
	}
	if c.Bridge.StatsInterval == "" {
		c.Bridge.StatsInterval = "1m"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.OutputPath == "" {
		c.Logging.OutputPath = "stdout"
	}
	if c.Logging.Encoding == "" {
		c.Logging.Encoding = "json"
	}

	if c.Metrics.Address == "" {
		c.Metrics.Address = ":2112"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

func (b *BrokerConfig) setDefaults(side string) {
	if b.Port == 0 {
		b.Port = 1883
	}
	if b.ClientID == "" {
		b.ClientID = fmt.Sprintf("span-bridge-%s-%s", side, uuid.New())
	}
}

// URI returns the broker address in the form the MQTT client expects.
func (b *BrokerConfig) URI() string {
	scheme := "tcp"
	if b.TLS.Enable {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, b.Host, b.Port)
}

// LoopTTLDuration returns the parsed loop guard TTL.
func (c *Config) LoopTTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.Bridge.LoopTTL)
	return d
}

// StatsIntervalDuration returns the parsed stats logging interval.
func (c *Config) StatsIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.Bridge.StatsInterval)
	return d
}

// validateConfig performs validation of all configuration values
func validateConfig(cfg *Config) error {
	if err := cfg.Near.validate("near"); err != nil {
		return err
	}
	if err := cfg.Far.validate("far"); err != nil {
		return err
	}

	if cfg.Rules == "" {
		return fmt.Errorf("rules file path is required")
	}

	switch cfg.Reload.Broker {
	case "near", "far":
	default:
		return fmt.Errorf("invalid reload broker: %s", cfg.Reload.Broker)
	}

	if _, err := time.ParseDuration(cfg.Bridge.LoopTTL); err != nil {
		return fmt.Errorf("invalid loop ttl: %w", err)
	}
	if _, err := time.ParseDuration(cfg.Bridge.StatsInterval); err != nil {
		return fmt.Errorf("invalid stats interval: %w", err)
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", cfg.Logging.Level)
	}

	switch cfg.Logging.Encoding {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log encoding: %s", cfg.Logging.Encoding)
	}

	return nil
}

func (b *BrokerConfig) validate(side string) error {
	if b.Host == "" {
		return fmt.Errorf("%s broker host is required", side)
	}
	if b.Port < 1 || b.Port > 65535 {
		return fmt.Errorf("%s broker port out of range: %d", side, b.Port)
	}

	if b.TLS.Enable {
		if b.TLS.CertFile == "" {
			return fmt.Errorf("%s broker tls cert file is required when tls is enabled", side)
		}
		if b.TLS.KeyFile == "" {
			return fmt.Errorf("%s broker tls key file is required when tls is enabled", side)
		}
		if b.TLS.CAFile == "" {
			return fmt.Errorf("%s broker tls ca file is required when tls is enabled", side)
		}
	}

	return nil
}

// ApplyOverrides applies command line flag overrides to the configuration
func (c *Config) ApplyOverrides(rulesPath, reloadTopic, reloadBroker, metricsAddr string) {
	if rulesPath != "" {
		c.Rules = rulesPath
	}
	if reloadTopic != "" {
		c.Reload.Topic = reloadTopic
	}
	if reloadBroker != "" {
		c.Reload.Broker = reloadBroker
	}
	if metricsAddr != "" {
		c.Metrics.Address = metricsAddr
	}
}

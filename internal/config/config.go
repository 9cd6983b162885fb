// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ProviderGmail   = "gmail"
	ProviderOutlook = "outlook"
	ProviderCustom  = "custom"

	DefaultSender = "noreply@tradingview.com"
)

type Config struct {
	App struct {
		Port        int    `yaml:"port" json:"port"`
		DataDir     string `yaml:"data_dir" json:"data_dir"`
		HTTPEnabled bool   `yaml:"http_enabled" json:"http_enabled"`
	} `yaml:"app" json:"app"`

	Email struct {
		Provider        string `yaml:"provider" json:"provider"` // gmail | outlook | custom
		IMAPHost        string `yaml:"imap_host" json:"imap_host"`
		IMAPPort        int    `yaml:"imap_port" json:"imap_port"`
		Username        string `yaml:"username" json:"username"`
		AppPassword     string `yaml:"app_password" json:"app_password"`
		Mailbox         string `yaml:"mailbox" json:"mailbox"`
		From            string `yaml:"from" json:"from"`
		LookbackMinutes int    `yaml:"lookback_minutes" json:"lookback_minutes"`
		IncludeSeen     bool   `yaml:"include_seen" json:"include_seen"`
		LeaveUnseen     bool   `yaml:"leave_unseen" json:"leave_unseen"`
		MaxPerCycle     int    `yaml:"max_per_cycle" json:"max_per_cycle"`
	} `yaml:"email" json:"email"`

	Webhook struct {
		URL            string  `yaml:"url" json:"url"`
		Secret         string  `yaml:"secret" json:"secret"`
		TimeoutSeconds int     `yaml:"timeout_seconds" json:"timeout_seconds"`
		RatePerSecond  float64 `yaml:"rate_per_second" json:"rate_per_second"`
	} `yaml:"webhook" json:"webhook"`

	Kafka struct {
		Enabled bool     `yaml:"enabled" json:"enabled"`
		Brokers []string `yaml:"brokers" json:"brokers"`
		Topic   string   `yaml:"topic" json:"topic"`
	} `yaml:"kafka" json:"kafka"`

	Signal struct {
		Strategy      string  `yaml:"strategy" json:"strategy"`
		Timeframe     string  `yaml:"timeframe" json:"timeframe"`
		RSIOversold   float64 `yaml:"rsi_oversold" json:"rsi_oversold"`
		RSIOverbought float64 `yaml:"rsi_overbought" json:"rsi_overbought"`
	} `yaml:"signal" json:"signal"`

	Polling struct {
		IntervalSeconds   int `yaml:"interval_seconds" json:"interval_seconds"`
		MaxBackoffSeconds int `yaml:"max_backoff_seconds" json:"max_backoff_seconds"`
	} `yaml:"polling" json:"polling"`

	Dedup struct {
		MaxEntries int `yaml:"max_entries" json:"max_entries"`
	} `yaml:"dedup" json:"dedup"`

	Store struct {
		Path          string `yaml:"path" json:"path"`
		RetentionDays int    `yaml:"retention_days" json:"retention_days"`
	} `yaml:"store" json:"store"`

	Logging struct {
		Level string `yaml:"level" json:"level"`
	} `yaml:"logging" json:"logging"`
}

// Load reads the YAML file at path, fills defaults and overlays the environment.
func Load(path string) (Config, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := ApplyEnv(&cfg, ""); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadFile is Load without the environment overlay: what is on disk, plus defaults.
func LoadFile(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	ApplyDefaults(&cfg)
	return cfg, nil
}

// Default returns a config with every default filled in.
func Default() Config {
	var cfg Config
	cfg.App.HTTPEnabled = true
	ApplyDefaults(&cfg)
	return cfg
}

func ApplyDefaults(cfg *Config) {
	if cfg.App.Port == 0 {
		cfg.App.Port = 38472
	}
	if cfg.App.DataDir == "" {
		cfg.App.DataDir = "."
	}

	if cfg.Email.Provider == "" {
		cfg.Email.Provider = ProviderGmail
	}
	if cfg.Email.Mailbox == "" {
		cfg.Email.Mailbox = "INBOX"
	}
	if cfg.Email.From == "" {
		cfg.Email.From = DefaultSender
	}
	if cfg.Email.LookbackMinutes == 0 {
		cfg.Email.LookbackMinutes = 60
	}
	if cfg.Email.MaxPerCycle == 0 {
		cfg.Email.MaxPerCycle = 50
	}

	if cfg.Webhook.TimeoutSeconds == 0 {
		cfg.Webhook.TimeoutSeconds = 10
	}
	if cfg.Webhook.RatePerSecond == 0 {
		cfg.Webhook.RatePerSecond = 5
	}

	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "trading-signals"
	}

	if cfg.Signal.Strategy == "" {
		cfg.Signal.Strategy = "Email_Alert"
	}
	if cfg.Signal.Timeframe == "" {
		cfg.Signal.Timeframe = "1h"
	}
	if cfg.Signal.RSIOversold == 0 {
		cfg.Signal.RSIOversold = 30
	}
	if cfg.Signal.RSIOverbought == 0 {
		cfg.Signal.RSIOverbought = 70
	}

	if cfg.Polling.IntervalSeconds == 0 {
		cfg.Polling.IntervalSeconds = 60
	}
	if cfg.Polling.MaxBackoffSeconds == 0 {
		cfg.Polling.MaxBackoffSeconds = 15 * 60
	}

	if cfg.Dedup.MaxEntries == 0 {
		cfg.Dedup.MaxEntries = 1000
	}
	if cfg.Store.RetentionDays == 0 {
		cfg.Store.RetentionDays = 30
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// IMAPAddr resolves the provider preset to host:port.
func (c Config) IMAPAddr() string {
	switch strings.ToLower(strings.TrimSpace(c.Email.Provider)) {
	case ProviderGmail:
		return "imap.gmail.com:993"
	case ProviderOutlook:
		return "outlook.office365.com:993"
	}

	addr := strings.TrimSpace(c.Email.IMAPHost)
	if strings.Contains(addr, ":") {
		return addr
	}
	port := c.Email.IMAPPort
	if port == 0 {
		port = 993
	}
	return fmt.Sprintf("%s:%d", addr, port)
}

// IMAPHostName is the address without the port, used for TLS and keychain names.
func (c Config) IMAPHostName() string {
	addr := c.IMAPAddr()
	if i := strings.LastIndex(addr, ":"); i > 0 {
		return addr[:i]
	}
	return addr
}

func (c Config) Interval() time.Duration {
	return time.Duration(c.Polling.IntervalSeconds) * time.Second
}

func (c Config) MaxBackoff() time.Duration {
	return time.Duration(c.Polling.MaxBackoffSeconds) * time.Second
}

func (c Config) WebhookTimeout() time.Duration {
	return time.Duration(c.Webhook.TimeoutSeconds) * time.Second
}

func (c Config) Lookback() time.Duration {
	return time.Duration(c.Email.LookbackMinutes) * time.Minute
}

// Redacted returns a copy safe to serve over the status API.
func (c Config) Redacted() Config {
	out := c
	if out.Email.AppPassword != "" {
		out.Email.AppPassword = "***"
	}
	if out.Webhook.Secret != "" {
		out.Webhook.Secret = "***"
	}
	out.Kafka.Brokers = append([]string(nil), c.Kafka.Brokers...)
	return out
}

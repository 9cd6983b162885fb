// config/overlay.go
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables that override config.yml.
const (
	EnvIMAPUsername  = "ALERTBRIDGE_IMAP_USERNAME"
	EnvIMAPPassword  = "ALERTBRIDGE_IMAP_PASSWORD"
	EnvWebhookURL    = "ALERTBRIDGE_WEBHOOK_URL"
	EnvWebhookSecret = "ALERTBRIDGE_WEBHOOK_SECRET"
	EnvPollSeconds   = "ALERTBRIDGE_POLL_SECONDS"
	EnvLogLevel      = "ALERTBRIDGE_LOG_LEVEL"
	EnvKafkaBrokers  = "ALERTBRIDGE_KAFKA_BROKERS"
)

// ApplyEnv loads envFile (default ".env") if present, then overlays ALERTBRIDGE_* variables.
// Variables already set in the process environment win over the file.
func ApplyEnv(cfg *Config, envFile string) error {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	cfg.Email.Username = getEnv(EnvIMAPUsername, cfg.Email.Username)
	cfg.Email.AppPassword = getEnv(EnvIMAPPassword, cfg.Email.AppPassword)
	cfg.Webhook.URL = getEnv(EnvWebhookURL, cfg.Webhook.URL)
	cfg.Webhook.Secret = getEnv(EnvWebhookSecret, cfg.Webhook.Secret)
	cfg.Polling.IntervalSeconds = getEnvInt(EnvPollSeconds, cfg.Polling.IntervalSeconds)
	cfg.Logging.Level = getEnv(EnvLogLevel, cfg.Logging.Level)
	if v := os.Getenv(EnvKafkaBrokers); v != "" {
		cfg.Kafka.Brokers = parseBrokers(v)
	}
	return nil
}

// StripEnv undoes the overlay before cfg is written back to disk: every field
// still holding the value of its ALERTBRIDGE_* variable gets file's value.
func StripEnv(cfg *Config, file Config) {
	restore := func(key string, dst *string, fileVal string) {
		if v := os.Getenv(key); v != "" && *dst == v {
			*dst = fileVal
		}
	}
	restore(EnvIMAPUsername, &cfg.Email.Username, file.Email.Username)
	restore(EnvIMAPPassword, &cfg.Email.AppPassword, file.Email.AppPassword)
	restore(EnvWebhookURL, &cfg.Webhook.URL, file.Webhook.URL)
	restore(EnvWebhookSecret, &cfg.Webhook.Secret, file.Webhook.Secret)
	restore(EnvLogLevel, &cfg.Logging.Level, file.Logging.Level)

	if v := os.Getenv(EnvPollSeconds); v != "" {
		if n, err := strconv.Atoi(v); err == nil && cfg.Polling.IntervalSeconds == n {
			cfg.Polling.IntervalSeconds = file.Polling.IntervalSeconds
		}
	}
	if v := os.Getenv(EnvKafkaBrokers); v != "" &&
		strings.Join(parseBrokers(v), ",") == strings.Join(parseBrokers(strings.Join(cfg.Kafka.Brokers, ",")), ",") {
		cfg.Kafka.Brokers = append([]string(nil), file.Kafka.Brokers...)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func parseBrokers(brokers string) []string {
	parts := strings.Split(brokers, ",")
	result := make([]string, 0, len(parts))
	for _, broker := range parts {
		if trimmed := strings.TrimSpace(broker); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

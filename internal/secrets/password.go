package secrets

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"alertbridge/internal/config"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService groups the bridge's secrets in the OS keychain.
	KeyringService = "alertbridge"
)

var ErrIMAPPasswordMissing = errors.New("IMAP password not found (set it in the keychain, config or " + config.EnvIMAPPassword + ")")

// IMAPPassword prefers the config value (which already includes the env overlay), then the keychain.
func IMAPPassword(cfg config.Config) (string, error) {
	if pw := strings.TrimSpace(cfg.Email.AppPassword); pw != "" {
		return pw, nil
	}
	pw, err := get(IMAPKeyringAccount(cfg))
	if err != nil {
		return "", err
	}
	if pw == "" {
		return "", ErrIMAPPasswordMissing
	}
	return pw, nil
}

// WebhookSecret resolves the shared secret. A missing secret is not an error:
// the payload simply goes out without one.
func WebhookSecret(cfg config.Config) (string, error) {
	if s := strings.TrimSpace(cfg.Webhook.Secret); s != "" {
		return s, nil
	}
	return get(WebhookKeyringAccount(cfg))
}

func SetIMAPPassword(cfg config.Config, password string) error {
	return set(IMAPKeyringAccount(cfg), password)
}

func DeleteIMAPPassword(cfg config.Config) error {
	return del(IMAPKeyringAccount(cfg))
}

func SetWebhookSecret(cfg config.Config, secret string) error {
	return set(WebhookKeyringAccount(cfg), secret)
}

func DeleteWebhookSecret(cfg config.Config) error {
	return del(WebhookKeyringAccount(cfg))
}

func IMAPKeyringAccount(cfg config.Config) string {
	return fmt.Sprintf(
		"alertbridge:imap:%s@%s",
		strings.TrimSpace(cfg.Email.Username),
		cfg.IMAPHostName(),
	)
}

func WebhookKeyringAccount(cfg config.Config) string {
	host := strings.TrimSpace(cfg.Webhook.URL)
	if u, err := url.Parse(host); err == nil && u.Host != "" {
		host = u.Host
	}
	return "alertbridge:webhook:" + host
}

func get(account string) (string, error) {
	v, err := keyring.Get(KeyringService, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("keyring get %s: %w", account, err)
	}
	return strings.TrimSpace(v), nil
}

func set(account, value string) error {
	if strings.HasSuffix(account, ":") || strings.Contains(account, ":@") {
		return errors.New("keyring account name is incomplete")
	}
	if strings.TrimSpace(value) == "" {
		return errors.New("secret is empty")
	}
	return keyring.Set(KeyringService, account, value)
}

func del(account string) error {
	err := keyring.Delete(KeyringService, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/asaskevich/govalidator"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// Err folds the errors into one error, or nil.
func (v Validation) Err() error {
	if v.OK() {
		return nil
	}
	return fmt.Errorf("config validation failed:\n- %s", strings.Join(v.Errors, "\n- "))
}

// NormalizeAndValidate returns a trimmed copy of cfg plus the validation result.
// The IMAP password and webhook secret are not required here; they may live in the keychain.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	var out = cfg
	var res Validation

	out.Email.Provider = strings.ToLower(strings.TrimSpace(out.Email.Provider))
	out.Email.IMAPHost = strings.TrimSpace(out.Email.IMAPHost)
	out.Email.Username = strings.TrimSpace(out.Email.Username)
	out.Email.From = strings.ToLower(strings.TrimSpace(out.Email.From))
	out.Email.Mailbox = strings.TrimSpace(out.Email.Mailbox)
	out.Webhook.URL = strings.TrimSpace(out.Webhook.URL)
	out.Kafka.Brokers = parseBrokers(strings.Join(out.Kafka.Brokers, ","))

	if out.App.Port <= 0 || out.App.Port > 65535 {
		res.addErr("app.port must be 1..65535")
	}

	// email
	switch out.Email.Provider {
	case ProviderGmail, ProviderOutlook:
		if out.Email.Username != "" && !govalidator.IsEmail(out.Email.Username) {
			res.addWarn("email.username %q does not look like an email address", out.Email.Username)
		}
	case ProviderCustom:
		if out.Email.IMAPHost == "" {
			res.addErr("email.imap_host is required when email.provider=custom")
		}
		if out.Email.IMAPPort < 0 || out.Email.IMAPPort > 65535 {
			res.addErr("email.imap_port must be 0..65535")
		}
	default:
		res.addErr("email.provider must be gmail, outlook or custom (got %q)", out.Email.Provider)
	}
	if out.Email.Username == "" {
		res.addErr("email.username is required")
	}
	if out.Email.Mailbox == "" {
		res.addErr("email.mailbox is required")
	}
	if out.Email.From == "" {
		res.addWarn("email.from is empty; every message in the lookback window will be treated as an alert")
	} else if !govalidator.IsEmail(out.Email.From) {
		res.addWarn("email.from %q is not a full address; IMAP FROM matches substrings", out.Email.From)
	}
	if out.Email.LookbackMinutes <= 0 {
		res.addErr("email.lookback_minutes must be > 0")
	}
	if out.Email.MaxPerCycle <= 0 {
		res.addErr("email.max_per_cycle must be > 0")
	}

	// webhook
	if out.Webhook.URL == "" {
		res.addErr("webhook.url is required")
	} else if !govalidator.IsRequestURL(out.Webhook.URL) {
		res.addErr("webhook.url %q is not a valid URL", out.Webhook.URL)
	} else if u, err := url.Parse(out.Webhook.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		res.addErr("webhook.url must use http or https")
	} else if u.Scheme == "http" && !isLocalHost(u.Hostname()) {
		res.addWarn("webhook.url uses plain http to a non-local host; the shared secret travels unencrypted")
	}
	if out.Webhook.TimeoutSeconds <= 0 {
		res.addErr("webhook.timeout_seconds must be > 0")
	}
	if out.Webhook.RatePerSecond < 0 {
		res.addErr("webhook.rate_per_second must be >= 0")
	}

	// kafka
	if out.Kafka.Enabled {
		if len(out.Kafka.Brokers) == 0 {
			res.addErr("kafka.brokers is required when kafka.enabled=true")
		}
		for _, b := range out.Kafka.Brokers {
			if !govalidator.IsDialString(b) {
				res.addWarn("kafka broker %q is not host:port", b)
			}
		}
		if strings.TrimSpace(out.Kafka.Topic) == "" {
			res.addErr("kafka.topic is required when kafka.enabled=true")
		}
	}

	// signal
	if out.Signal.RSIOversold >= out.Signal.RSIOverbought {
		res.addErr("signal.rsi_oversold (%.1f) must be below signal.rsi_overbought (%.1f)",
			out.Signal.RSIOversold, out.Signal.RSIOverbought)
	}

	// polling sanity
	if out.Polling.IntervalSeconds <= 0 {
		res.addErr("polling.interval_seconds must be > 0")
	} else if out.Polling.IntervalSeconds < 10 {
		res.addWarn("polling.interval_seconds is very low (%d) and may trip provider rate limits.", out.Polling.IntervalSeconds)
	}
	if out.Polling.MaxBackoffSeconds < out.Polling.IntervalSeconds {
		res.addWarn("polling.max_backoff_seconds is below the poll interval; errors will not slow polling down")
	}

	if out.Dedup.MaxEntries <= 0 {
		res.addErr("dedup.max_entries must be > 0")
	}

	return out, res
}

func isLocalHost(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

package httpapi

import (
	"context"
	"sync/atomic"
	"time"

	"alertbridge/internal/bridge"
	"alertbridge/internal/config"
	"alertbridge/internal/events"
	"alertbridge/internal/observability"
	"alertbridge/internal/store"
)

// Poller is the bridge as the API sees it.
type Poller interface {
	Status() bridge.Status
	Trigger() bool
}

// DeliveryLister reads the journal. *store.DB satisfies it.
type DeliveryLister interface {
	ListDeliveries(ctx context.Context, limit int) ([]store.Delivery, error)
	Counts(ctx context.Context) (map[string]int64, error)
}

type Deps struct {
	CfgVal      *atomic.Value // stores config.Config
	UserCfgPath string

	Bridge  Poller
	Journal DeliveryLister // nil when the journal is disabled
	Hub     *events.Hub
	Metrics *observability.InMemoryMetrics

	StartedAt time.Time

	// Keychain writers default to the secrets package.
	SetIMAPPassword     func(cfg config.Config, password string) error
	SetWebhookSecret    func(cfg config.Config, secret string) error
	DeleteIMAPPassword  func(cfg config.Config) error
	DeleteWebhookSecret func(cfg config.Config) error
}

func (d Deps) config() config.Config {
	if d.CfgVal == nil {
		return config.Default()
	}
	cfg, ok := d.CfgVal.Load().(config.Config)
	if !ok {
		return config.Default()
	}
	return cfg
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	ossignal "os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"alertbridge/internal/bridge"
	"alertbridge/internal/config"
	"alertbridge/internal/dedup"
	"alertbridge/internal/events"
	"alertbridge/internal/extract"
	"alertbridge/internal/httpapi"
	"alertbridge/internal/mailbox"
	"alertbridge/internal/observability"
	"alertbridge/internal/secrets"
	"alertbridge/internal/sink"
	"alertbridge/internal/store"

	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	envDataDir  = "ALERTBRIDGE_DATA_DIR"
	lockFile    = "alertbridge.lock"
	defaultPath = "config/config.yml"
)

type flags struct {
	configPath string
	dataDir    string
	once       bool
	logLevel   string
}

func parseFlags(args []string) (flags, error) {
	var f flags
	fs := flag.NewFlagSet("alertbridge", flag.ContinueOnError)
	fs.StringVar(&f.configPath, "config", "", "path to config.yml (default <data-dir>/config.yml, created on first run)")
	fs.StringVar(&f.dataDir, "data-dir", envOr(envDataDir, "."), "directory for config, journal and lock file")
	fs.BoolVar(&f.once, "once", false, "run a single poll cycle and exit")
	fs.StringVar(&f.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return f, err
	}
	return f, nil
}

func main() {
	f, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		os.Exit(2)
	}

	ctx, stop := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, f); err != nil {
		observability.Component("main").WithError(err).Error("alertbridge stopped")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, f flags) error {
	log := observability.Component("main")

	if err := os.MkdirAll(f.dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	cfgPath := f.configPath
	if cfgPath == "" {
		p, err := config.EnsureUserConfig(f.dataDir, defaultPath)
		if err != nil {
			return fmt.Errorf("config bootstrap: %w", err)
		}
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("config load (%s): %w", cfgPath, err)
	}
	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
	}
	observability.InitLogger(cfg.Logging.Level)

	cfg, vr := config.NormalizeAndValidate(cfg)
	for _, w := range vr.Warnings {
		log.WithField("config", cfgPath).Warn(w)
	}
	if err := vr.Err(); err != nil {
		return err
	}

	lock := flock.New(filepath.Join(f.dataDir, lockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock %s: %w", lock.Path(), err)
	}
	if !locked {
		return fmt.Errorf("another alertbridge holds %s", lock.Path())
	}
	defer func() { _ = lock.Unlock() }()

	password, err := secrets.IMAPPassword(cfg)
	if err != nil {
		return err
	}
	secret, err := secrets.WebhookSecret(cfg)
	if err != nil {
		log.WithError(err).Warn("webhook secret lookup failed, sending without secret")
	}

	journal, err := openJournal(ctx, f.dataDir, cfg)
	if err != nil {
		return err
	}
	defer journal.Close()

	primary := sink.NewWebhook(cfg.Webhook.URL, cfg.WebhookTimeout(), cfg.Webhook.RatePerSecond)
	var mirrors []sink.Sink
	if cfg.Kafka.Enabled {
		k := sink.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer k.Close()
		mirrors = append(mirrors, k)
	}

	hub := events.NewHub()
	defer hub.Close()
	metrics := observability.NewInMemoryMetrics()

	deps := bridge.Deps{
		Dial: bridge.IMAPDialer(mailbox.Account{
			Addr:     cfg.IMAPAddr(),
			Username: cfg.Email.Username,
			Password: password,
		}),
		Translator: extract.Translator{
			Strategy:  cfg.Signal.Strategy,
			Timeframe: cfg.Signal.Timeframe,
			Thresholds: extract.Thresholds{
				RSIOversold:     cfg.Signal.RSIOversold,
				RSIOverbought:   cfg.Signal.RSIOverbought,
				StochOversold:   extract.DefaultThresholds().StochOversold,
				StochOverbought: extract.DefaultThresholds().StochOverbought,
			},
			Secret: secret,
		},
		Primary: primary,
		Mirrors: mirrors,
		Seen:    dedup.New(cfg.Dedup.MaxEntries),
		Hub:     hub,
		Metrics: metrics,
	}
	if journal != nil {
		deps.Journal = journal
	}
	b := bridge.New(deps, bridge.Options{
		Mailbox:     cfg.Email.Mailbox,
		From:        cfg.Email.From,
		Lookback:    cfg.Lookback(),
		UnseenOnly:  !cfg.Email.IncludeSeen,
		MarkSeen:    !cfg.Email.LeaveUnseen,
		MaxPerCycle: cfg.Email.MaxPerCycle,
		Interval:    cfg.Interval(),
		MaxBackoff:  cfg.MaxBackoff(),
	})

	log.WithFields(logrus.Fields{
		"imap":     cfg.IMAPAddr(),
		"mailbox":  cfg.Email.Mailbox,
		"from":     cfg.Email.From,
		"webhook":  cfg.Webhook.URL,
		"interval": cfg.Interval().String(),
		"kafka":    cfg.Kafka.Enabled,
		"journal":  journal != nil,
	}).Info("alertbridge starting")

	if f.once {
		_, err := b.RunOnce(ctx)
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return b.Run(gctx)
	})
	if cfg.App.HTTPEnabled {
		var cfgVal atomic.Value
		cfgVal.Store(cfg)
		handler := httpapi.Handler(httpapi.Deps{
			CfgVal:      &cfgVal,
			UserCfgPath: cfgPath,
			Bridge:      b,
			Journal:     journalLister(journal),
			Hub:         hub,
			Metrics:     metrics,
			StartedAt:   time.Now(),
		})
		addr := fmt.Sprintf("127.0.0.1:%d", cfg.App.Port)
		g.Go(func() error {
			return httpapi.Serve(gctx, addr, handler)
		})
	}

	err = g.Wait()
	log.Info("alertbridge stopped")
	return err
}

// openJournal returns nil when store.path is empty.
func openJournal(ctx context.Context, dataDir string, cfg config.Config) (*store.DB, error) {
	if cfg.Store.Path == "" {
		return nil, nil
	}
	path := cfg.Store.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(dataDir, path)
	}
	db, err := store.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	n, err := db.CleanupOld(ctx, cfg.Store.RetentionDays)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if n > 0 {
		observability.Component("store").WithField("deleted", n).Info("pruned old deliveries")
	}
	return db, nil
}

// journalLister keeps a nil *store.DB from becoming a non-nil interface.
func journalLister(db *store.DB) httpapi.DeliveryLister {
	if db == nil {
		return nil
	}
	return db
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

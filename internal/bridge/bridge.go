package bridge

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"alertbridge/internal/dedup"
	"alertbridge/internal/events"
	"alertbridge/internal/extract"
	"alertbridge/internal/mailbox"
	"alertbridge/internal/observability"
	"alertbridge/internal/signal"
	"alertbridge/internal/sink"
	"alertbridge/internal/store"

	"github.com/emersion/go-imap/v2"
	"github.com/sirupsen/logrus"
)

// Journal records delivery attempts. *store.DB satisfies it.
type Journal interface {
	InsertDelivery(ctx context.Context, d store.Delivery) (int64, error)
}

// Options are the loop knobs taken from config.
type Options struct {
	Mailbox     string
	From        string
	Lookback    time.Duration
	UnseenOnly  bool
	MarkSeen    bool
	MaxPerCycle int

	Interval   time.Duration
	MaxBackoff time.Duration
}

// Deps wires the bridge. Dial, Translator and Primary are required.
type Deps struct {
	Dial       Dialer
	Translator extract.Translator
	Primary    sink.Sink
	Mirrors    []sink.Sink
	Seen       *dedup.Set

	// Passed holds keys of stale or empty messages. They are never forwarded,
	// only kept from being fetched again every cycle.
	Passed *dedup.Set

	Journal Journal
	Hub     *events.Hub
	Metrics observability.MetricsCollector
	Now     func() time.Time
}

// Bridge polls the mailbox and forwards alerts. RunOnce calls are serialized.
type Bridge struct {
	dial       Dialer
	translator extract.Translator
	primary    sink.Sink
	mirrors    []sink.Sink
	seen       *dedup.Set
	passed     *dedup.Set
	journal    Journal
	hub        *events.Hub
	metrics    observability.MetricsCollector
	now        func() time.Time
	opts       Options

	cycleMu   sync.Mutex
	statusMu  sync.Mutex
	status    Status
	forwarded atomic.Int64
	trigger   chan struct{}
	log       *logrus.Entry
}

func New(d Deps, opts Options) *Bridge {
	if d.Seen == nil {
		d.Seen = dedup.New(0)
	}
	if d.Passed == nil {
		d.Passed = dedup.New(0)
	}
	if d.Metrics == nil {
		d.Metrics = observability.NewInMemoryMetrics()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if opts.Mailbox == "" {
		opts.Mailbox = "INBOX"
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	return &Bridge{
		dial:       d.Dial,
		translator: d.Translator,
		primary:    d.Primary,
		mirrors:    d.Mirrors,
		seen:       d.Seen,
		passed:     d.Passed,
		journal:    d.Journal,
		hub:        d.Hub,
		metrics:    d.Metrics,
		now:        d.Now,
		opts:       opts,
		trigger:    make(chan struct{}, 1),
		log:        observability.Component("bridge"),
	}
}

// Status returns a copy of the current loop state.
func (b *Bridge) Status() Status {
	b.statusMu.Lock()
	st := b.status
	b.statusMu.Unlock()
	st.ProcessedKeys = b.seen.Len()
	st.TotalForwarded = b.forwarded.Load()
	return st
}

func (b *Bridge) updateStatus(fn func(*Status)) {
	b.statusMu.Lock()
	fn(&b.status)
	b.statusMu.Unlock()
}

// Trigger asks Run to start the next cycle now. It reports false when a
// request is already pending.
func (b *Bridge) Trigger() bool {
	select {
	case b.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// RunOnce performs one poll cycle. Connection, login, select, search and
// batch fetch failures are returned; per-message failures are logged and
// leave the message unprocessed for the next cycle.
func (b *Bridge) RunOnce(ctx context.Context) (Result, error) {
	b.cycleMu.Lock()
	defer b.cycleMu.Unlock()

	started := b.now()
	b.updateStatus(func(s *Status) {
		s.Running = true
		s.LastRunAt = stamp(started)
	})
	b.metrics.IncCycles()
	b.hub.Publish(events.TypeCycleStarted, map[string]string{"at": stamp(started)})

	res, err := b.cycle(ctx)

	b.updateStatus(func(s *Status) {
		s.Running = false
		s.LastResult = res
		if err != nil {
			s.LastError = err.Error()
			s.ConsecutiveFailures++
			return
		}
		s.LastError = ""
		s.LastOkAt = stamp(b.now())
		s.ConsecutiveFailures = 0
	})

	fields := logrus.Fields{
		"found":     res.Found,
		"forwarded": res.Forwarded,
		"failed":    res.Failed,
		"skipped":   res.Skipped,
		"stale":     res.Stale,
		"took_ms":   b.now().Sub(started).Milliseconds(),
	}
	if err != nil {
		b.metrics.IncCycleFailed()
		b.log.WithFields(fields).WithError(err).Warn("poll cycle failed")
	} else {
		b.log.WithFields(fields).Info("poll cycle ok")
	}
	b.hub.Publish(events.TypeCycleFinished, b.Status())
	return res, err
}

func (b *Bridge) cycle(ctx context.Context) (Result, error) {
	var res Result

	mb, err := b.dial(ctx)
	if err != nil {
		return res, fmt.Errorf("connect: %w", err)
	}
	defer func() {
		if cerr := mb.Close(); cerr != nil {
			b.log.WithError(cerr).Debug("mailbox close")
		}
	}()

	uidValidity, err := mb.Select(b.opts.Mailbox)
	if err != nil {
		return res, err
	}

	since := b.now().Add(-b.opts.Lookback)
	q := mailbox.Query{
		From:       b.opts.From,
		UnseenOnly: b.opts.UnseenOnly,
		Max:        b.opts.MaxPerCycle,
	}
	if b.opts.Lookback > 0 {
		q.Since = since
	}
	uids, err := mb.Search(q)
	if err != nil {
		return res, err
	}
	res.Found = len(uids)

	pending := make([]imap.UID, 0, len(uids))
	for _, uid := range uids {
		key := MessageKey(uidValidity, uid)
		if b.seen.Seen(key) || b.passed.Seen(key) {
			res.Skipped++
			b.metrics.IncSkipped()
			continue
		}
		pending = append(pending, uid)
	}
	if len(pending) == 0 {
		return res, nil
	}

	msgs, err := mb.Fetch(ctx, pending)
	if err != nil {
		return res, fmt.Errorf("fetch: %w", err)
	}

	processed := make([]imap.UID, 0, len(msgs))
	for _, m := range msgs {
		if err := ctx.Err(); err != nil {
			b.markSeen(mb, processed)
			return res, err
		}
		b.metrics.IncMessagesSeen()

		key := MessageKey(uidValidity, m.UID)
		mlog := b.log.WithField("key", key)

		if b.opts.Lookback > 0 && !m.Date.IsZero() && m.Date.Before(since) {
			res.Stale++
			b.pass(key)
			continue
		}

		sig, ok := b.translate(m, mlog)
		if !ok {
			res.Ignored++
			b.pass(key)
			continue
		}

		if err := b.deliver(ctx, key, sig, mlog); err != nil {
			res.Failed++
			continue
		}

		b.seen.Add(key)
		processed = append(processed, m.UID)
		res.Forwarded++

		if b.seen.MaybeReset() {
			res.DedupReset = true
			b.metrics.IncDedupResets()
			b.hub.Publish(events.TypeDedupReset, nil)
			mlog.Info("processed set cleared")
		}
	}

	b.markSeen(mb, processed)
	return res, nil
}

func (b *Bridge) pass(key string) {
	b.passed.Add(key)
	b.passed.MaybeReset()
}

func (b *Bridge) translate(m mailbox.Message, mlog *logrus.Entry) (signal.Signal, bool) {
	parsed, perr := mailbox.ParseMessage(m.Raw)
	if perr != nil {
		mlog.WithError(perr).Warn("message parse failed, using raw text")
	}
	subject := parsed.Subject
	if subject == "" {
		subject = m.Subject
	}

	sig, err := b.translator.Translate(extract.Alert{Subject: subject, Body: parsed.Text})
	if err != nil {
		mlog.WithError(err).Warn("alert skipped")
		return signal.Signal{}, false
	}
	return sig, true
}

func (b *Bridge) deliver(ctx context.Context, key string, sig signal.Signal, mlog *logrus.Entry) error {
	mlog = mlog.WithFields(logrus.Fields{
		"signal_id": sig.ID,
		"symbol":    sig.Symbol,
		"action":    sig.Action,
		"price":     sig.Price,
	})

	err := b.primary.Send(ctx, sig)
	b.record(ctx, key, b.primary.Name(), sig, err)
	if err != nil {
		b.metrics.IncForwardFailed()
		mlog.WithError(err).WithField("http_status", sink.StatusCode(err)).Warn("signal delivery failed")
		b.hub.Publish(events.TypeSignalFailed, map[string]any{
			"key":    key,
			"signal": sig.Redacted(),
			"error":  err.Error(),
		})
		return err
	}

	b.forwarded.Add(1)
	b.metrics.IncForwarded()
	mlog.Info("signal forwarded")
	b.hub.Publish(events.TypeSignalForwarded, map[string]any{
		"key":    key,
		"signal": sig.Redacted(),
	})

	for _, m := range b.mirrors {
		merr := m.Send(ctx, sig)
		b.record(ctx, key, m.Name(), sig, merr)
		if merr != nil {
			mlog.WithError(merr).WithField("sink", m.Name()).Warn("mirror delivery failed")
		}
	}
	return nil
}

func (b *Bridge) record(ctx context.Context, key, sinkName string, sig signal.Signal, sendErr error) {
	if b.journal == nil {
		return
	}
	d := store.Delivery{
		SignalID:   sig.ID,
		MessageKey: key,
		Sink:       sinkName,
		Symbol:     sig.Symbol,
		Action:     sig.Action,
		Price:      sig.Price,
		Status:     store.StatusSent,
		CreatedAt:  b.now(),
	}
	if sendErr != nil {
		d.Status = store.StatusFailed
		d.Error = sendErr.Error()
		d.HTTPStatus = sink.StatusCode(sendErr)
	} else if sinkName == b.primary.Name() {
		d.HTTPStatus = 200
	}
	if _, err := b.journal.InsertDelivery(ctx, d); err != nil {
		b.log.WithError(err).Warn("journal write failed")
	}
}

func (b *Bridge) markSeen(mb Mailbox, uids []imap.UID) {
	if !b.opts.MarkSeen || len(uids) == 0 {
		return
	}
	if err := mb.MarkSeen(uids); err != nil {
		b.log.WithError(err).WithField("count", len(uids)).Warn("mark seen failed")
	}
}

// Run polls until ctx is cancelled. After a failed cycle the wait grows
// as Backoff; a successful cycle resets it. Trigger cuts a wait short.
func (b *Bridge) Run(ctx context.Context) error {
	failures := 0
	for {
		if _, err := b.RunOnce(ctx); err != nil {
			failures++
		} else {
			failures = 0
		}
		if ctx.Err() != nil {
			return nil
		}

		wait := Backoff(b.opts.Interval, b.opts.MaxBackoff, failures)
		b.updateStatus(func(s *Status) { s.NextRunAt = stamp(b.now().Add(wait)) })
		if failures > 0 {
			b.log.WithFields(logrus.Fields{"failures": failures, "wait": wait.String()}).Info("backing off")
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-b.trigger:
			t.Stop()
		case <-t.C:
		}
	}
}

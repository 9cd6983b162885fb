package store

import (
	"context"
	"fmt"
	"time"
)

const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// createdAtLayout matches SQLite's datetime() so range filters compare as text.
const createdAtLayout = "2006-01-02 15:04:05"

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Delivery is one attempt to hand a signal to a sink.
type Delivery struct {
	ID         int64     `json:"id"`
	SignalID   string    `json:"signal_id"`
	MessageKey string    `json:"message_key"`
	Sink       string    `json:"sink"`
	Symbol     string    `json:"symbol"`
	Action     string    `json:"action"`
	Price      float64   `json:"price"`
	Status     string    `json:"status"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// InsertDelivery records d; a zero CreatedAt means now. No-op on a disabled journal.
func (d *DB) InsertDelivery(ctx context.Context, del Delivery) (int64, error) {
	if !d.enabled() {
		return 0, nil
	}
	if del.CreatedAt.IsZero() {
		del.CreatedAt = time.Now()
	}
	if del.Sink == "" {
		del.Sink = "webhook"
	}

	res, err := d.Pool.ExecContext(ctx, `
INSERT INTO deliveries (signal_id, message_key, sink, symbol, action, price, status, http_status, error, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		del.SignalID, del.MessageKey, del.Sink, del.Symbol, del.Action, del.Price,
		del.Status, del.HTTPStatus, del.Error, del.CreatedAt.UTC().Format(createdAtLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("insert delivery: %w", err)
	}
	id, _ := res.LastInsertId()
	return id, nil
}

// ListDeliveries returns the newest rows first.
func (d *DB) ListDeliveries(ctx context.Context, limit int) ([]Delivery, error) {
	if !d.enabled() {
		return []Delivery{}, nil
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	rows, err := d.Pool.QueryContext(ctx, `
SELECT id, signal_id, message_key, sink, symbol, action, price, status, http_status, error, created_at
FROM deliveries
ORDER BY created_at DESC, id DESC
LIMIT ?;`, limit)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	out := []Delivery{}
	for rows.Next() {
		var del Delivery
		var created string
		if err := rows.Scan(
			&del.ID,
			&del.SignalID,
			&del.MessageKey,
			&del.Sink,
			&del.Symbol,
			&del.Action,
			&del.Price,
			&del.Status,
			&del.HTTPStatus,
			&del.Error,
			&created,
		); err != nil {
			return nil, err
		}
		del.CreatedAt, _ = time.ParseInLocation(createdAtLayout, created, time.UTC)
		out = append(out, del)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CleanupOld deletes rows older than retentionDays (default 30).
func (d *DB) CleanupOld(ctx context.Context, retentionDays int) (deleted int64, err error) {
	if !d.enabled() {
		return 0, nil
	}
	if retentionDays <= 0 {
		retentionDays = 30
	}
	res, err := d.Pool.ExecContext(ctx, `
DELETE FROM deliveries
WHERE created_at < datetime('now', ?);`, fmt.Sprintf("-%d days", retentionDays))
	if err != nil {
		return 0, fmt.Errorf("cleanup old deliveries: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Counts returns the number of rows per status.
func (d *DB) Counts(ctx context.Context) (map[string]int64, error) {
	out := map[string]int64{}
	if !d.enabled() {
		return out, nil
	}
	rows, err := d.Pool.QueryContext(ctx, `SELECT status, COUNT(*) FROM deliveries GROUP BY status;`)
	if err != nil {
		return nil, fmt.Errorf("count deliveries: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}

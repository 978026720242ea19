package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	d "github.com/fjod/go_storefront/internal/checkout/domain"
)

var (
	ErrSessionNotFound     = errors.New("checkout session not found")
	IllegalTransitionError = errors.New("illegal transition of checkout status")
)

// OutboxEvent is written in the same transaction as the ledger change it
// describes and published later by the outbox poller.
type OutboxEvent struct {
	ID          int64
	AggregateId string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}

type RepoInterface interface {
	CreateCheckoutSession(ctx context.Context, session *d.CheckoutSession, event *OutboxEvent) error
	GetCheckoutSession(ctx context.Context, id string) (*d.CheckoutSession, error)
	ListByCartSession(ctx context.Context, cartSessionID string) ([]*d.CheckoutSession, error)
	// UpdateStatus moves a session to status. It reports false, without error,
	// when the session is already there.
	UpdateStatus(ctx context.Context, id string, status d.CheckoutStatus, event *OutboxEvent) (bool, error)
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
}

type Repository struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

func (r *Repository) CreateCheckoutSession(ctx context.Context, s *d.CheckoutSession, event *OutboxEvent) error {
	manifest, err := json.Marshal(s.Manifest)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	now := r.now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = s.CreatedAt

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO checkout_sessions
			(id, cart_session_id, status, items_count, total_quantity, amount_total, currency, manifest, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.CartSessionID, string(s.Status), s.ItemsCount, s.TotalQuantity, s.AmountTotal, s.Currency,
		string(manifest), formatTime(s.CreatedAt), formatTime(s.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert checkout session: %w", err)
	}

	if err := insertEvent(ctx, tx, event, now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit checkout session: %w", err)
	}
	return nil
}

const selectSession = `
	SELECT id, cart_session_id, status, items_count, total_quantity, amount_total, currency, manifest, created_at, updated_at
	FROM checkout_sessions`

func (r *Repository) GetCheckoutSession(ctx context.Context, id string) (*d.CheckoutSession, error) {
	s, err := scanSession(r.db.QueryRowContext(ctx, selectSession+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query checkout session: %w", err)
	}
	return s, nil
}

// ListByCartSession returns the checkouts started from one browsing session,
// newest first.
func (r *Repository) ListByCartSession(ctx context.Context, cartSessionID string) ([]*d.CheckoutSession, error) {
	rows, err := r.db.QueryContext(ctx, selectSession+` WHERE cart_session_id = ? ORDER BY created_at DESC, id`, cartSessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query checkout sessions: %w", err)
	}
	defer rows.Close()

	var out []*d.CheckoutSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan checkout session: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate checkout sessions: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*d.CheckoutSession, error) {
	var (
		s                    d.CheckoutSession
		status, manifest     string
		createdAt, updatedAt string
	)
	err := row.Scan(&s.ID, &s.CartSessionID, &status, &s.ItemsCount, &s.TotalQuantity, &s.AmountTotal,
		&s.Currency, &manifest, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	s.Status = d.CheckoutStatus(status)
	if err := json.Unmarshal([]byte(manifest), &s.Manifest); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest: %w", err)
	}
	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if s.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repository) UpdateStatus(ctx context.Context, id string, status d.CheckoutStatus, event *OutboxEvent) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT status FROM checkout_sessions WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrSessionNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to query checkout status: %w", err)
	}

	from := d.CheckoutStatus(current)
	if from == status {
		return false, nil
	}
	if !d.CanTransitionTo(from, status) {
		return false, fmt.Errorf("%w: %s -> %s", IllegalTransitionError, from, status)
	}

	now := r.now().UTC()
	_, err = tx.ExecContext(ctx, `UPDATE checkout_sessions SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), formatTime(now), id)
	if err != nil {
		return false, fmt.Errorf("failed to update checkout status: %w", err)
	}

	if err := insertEvent(ctx, tx, event, now); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit status update: %w", err)
	}
	return true, nil
}

func (r *Repository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, aggregate_id, event_type, payload, created_at
		FROM checkout_outbox
		WHERE processed_at IS NULL
		ORDER BY id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var (
			e         OutboxEvent
			payload   string
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.AggregateId, &e.EventType, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		e.Payload = []byte(payload)
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

func (r *Repository) MarkEventAsProcessed(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE checkout_outbox SET processed_at = ? WHERE id = ?`,
		formatTime(r.now().UTC()), id)
	if err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("outbox event %d not found", id)
	}
	return nil
}

func insertEvent(ctx context.Context, tx *sql.Tx, event *OutboxEvent, now time.Time) error {
	if event == nil {
		return nil
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO checkout_outbox (aggregate_id, event_type, payload, created_at)
		VALUES (?, ?, ?, ?)`,
		event.AggregateId, event.EventType, string(event.Payload), formatTime(event.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		event.ID = id
	}
	return nil
}

// timeLayout is fixed width so stored timestamps order lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/tunahanclrr/salon-api/libs/db"
)

// CheckoutSession tracks a Stripe hosted-checkout session opened for a
// package sale. The webhook, not the redirect, is what marks it completed.
type CheckoutSession struct {
	StripeSessionID string
	SaleID          string
	Amount          float64
	Status          string
	URL             string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     *time.Time
	ExpiredAt       *time.Time
}

type CheckoutRepository struct {
	pool *db.Pool
}

func NewCheckoutRepository(pool *db.Pool) *CheckoutRepository {
	return &CheckoutRepository{pool: pool}
}

func (r *CheckoutRepository) UpsertSession(ctx context.Context, tx pgx.Tx, s CheckoutSession) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO checkout_sessions (stripe_session_id, sale_id, amount, status, url)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (stripe_session_id)
		DO UPDATE SET sale_id = EXCLUDED.sale_id,
		              amount = EXCLUDED.amount,
		              status = EXCLUDED.status,
		              url = EXCLUDED.url,
		              updated_at = now()
	`, s.StripeSessionID, s.SaleID, s.Amount, s.Status, nullIfEmpty(s.URL))
	return err
}

func (r *CheckoutRepository) MarkSessionCompleted(ctx context.Context, tx pgx.Tx, stripeSessionID string, completedAt time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE checkout_sessions
		SET status = 'completed',
		    completed_at = $2,
		    updated_at = now()
		WHERE stripe_session_id = $1
	`, stripeSessionID, completedAt)
	return err
}

func (r *CheckoutRepository) MarkSessionExpired(ctx context.Context, tx pgx.Tx, stripeSessionID string, expiredAt time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE checkout_sessions
		SET status = 'expired',
		    expired_at = $2,
		    updated_at = now()
		WHERE stripe_session_id = $1 AND status <> 'completed'
	`, stripeSessionID, expiredAt)
	return err
}

func (r *CheckoutRepository) GetSession(ctx context.Context, stripeSessionID string) (CheckoutSession, error) {
	var s CheckoutSession
	err := r.pool.QueryRow(ctx, `
		SELECT stripe_session_id, sale_id::text, amount, status, COALESCE(url, ''),
		       created_at, updated_at, completed_at, expired_at
		FROM checkout_sessions
		WHERE stripe_session_id = $1
	`, stripeSessionID).Scan(
		&s.StripeSessionID,
		&s.SaleID,
		&s.Amount,
		&s.Status,
		&s.URL,
		&s.CreatedAt,
		&s.UpdatedAt,
		&s.CompletedAt,
		&s.ExpiredAt,
	)
	if err != nil {
		return CheckoutSession{}, err
	}
	return s, nil
}

type ProviderEvent struct {
	Provider        string
	ProviderEventID string
	EventType       string
	Payload         []byte
}

var ErrDuplicateProviderEvent = errors.New("duplicate provider event")

// InsertProviderEvent dedupes webhook deliveries on (provider, event id).
// A duplicate returns ErrDuplicateProviderEvent so the handler can ack
// without reprocessing.
func (r *CheckoutRepository) InsertProviderEvent(ctx context.Context, tx pgx.Tx, evt ProviderEvent) error {
	var payload any
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO provider_events (provider, provider_event_id, event_type, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (provider, provider_event_id) DO NOTHING
	`, evt.Provider, evt.ProviderEventID, evt.EventType, payload)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateProviderEvent
	}
	return nil
}

func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

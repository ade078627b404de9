package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/tunahanclrr/salon-api/libs/db"
)

// IdempotencyRecord is the stored outcome of a booking request, replayed when
// the same Idempotency-Key arrives again.
type IdempotencyRecord struct {
	Key             string
	AppointmentID   string
	StatusCode      int
	ResponsePayload []byte
}

type IdempotencyRepository struct {
	pool *db.Pool
}

func NewIdempotencyRepository(pool *db.Pool) *IdempotencyRepository {
	return &IdempotencyRepository{pool: pool}
}

// Lock claims the key inside the caller's transaction and returns whatever is
// stored under it. The FOR UPDATE row lock blocks a concurrent request using
// the same key until the holding transaction resolves, and the claiming insert
// can lose that race: the record read back may then already carry a finalized
// response even though this transaction never saw the key. Callers must decide
// replay from the record's status, never from who inserted the row.
func (r *IdempotencyRepository) Lock(ctx context.Context, tx pgx.Tx, key string) (IdempotencyRecord, error) {
	rec, err := r.selectForUpdate(ctx, tx, key)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return IdempotencyRecord{}, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (idempotency_key)
		VALUES ($1)
		ON CONFLICT (idempotency_key) DO NOTHING
	`, key)
	if err != nil {
		return IdempotencyRecord{}, err
	}

	return r.selectForUpdate(ctx, tx, key)
}

func (r *IdempotencyRepository) Finalize(ctx context.Context, tx pgx.Tx, key, appointmentID string, statusCode int, response []byte) error {
	_, err := tx.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET appointment_id = $2,
			status_code = $3,
			response_payload = $4,
			updated_at = now()
		WHERE idempotency_key = $1
	`, key, appointmentID, statusCode, response)
	return err
}

func (r *IdempotencyRepository) selectForUpdate(ctx context.Context, tx pgx.Tx, key string) (IdempotencyRecord, error) {
	var rec IdempotencyRecord
	var responseText string
	err := tx.QueryRow(ctx, `
		SELECT idempotency_key,
			COALESCE(appointment_id::text, ''),
			COALESCE(status_code, 0),
			COALESCE(response_payload::text, '')
		FROM booking_idempotency_keys
		WHERE idempotency_key = $1
		FOR UPDATE
	`, key).Scan(&rec.Key, &rec.AppointmentID, &rec.StatusCode, &responseText)
	if err != nil {
		return IdempotencyRecord{}, err
	}
	if responseText != "" {
		rec.ResponsePayload = []byte(responseText)
	}
	return rec, nil
}

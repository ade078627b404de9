package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/tunahanclrr/salon-api/internal/model"
	"github.com/tunahanclrr/salon-api/libs/db"
)

type SaleRepository struct {
	pool *db.Pool
}

func NewSaleRepository(pool *db.Pool) *SaleRepository {
	return &SaleRepository{pool: pool}
}

const saleColumns = `
	id::text, customer_id::text, package_id::text, services, total_amount, paid_amount,
	remaining_amount, installments, payments, status, expires_at, sold_at`

func scanSale(row pgx.Row) (model.PackageSale, error) {
	var s model.PackageSale
	var services, installments, payments []byte
	if err := row.Scan(
		&s.ID,
		&s.CustomerID,
		&s.PackageID,
		&services,
		&s.TotalAmount,
		&s.PaidAmount,
		&s.RemainingAmount,
		&installments,
		&payments,
		&s.Status,
		&s.ExpiresAt,
		&s.SoldAt,
	); err != nil {
		return model.PackageSale{}, err
	}
	for _, pair := range []struct {
		raw []byte
		dst any
	}{
		{services, &s.Services},
		{installments, &s.Installments},
		{payments, &s.Payments},
	} {
		if len(pair.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(pair.raw, pair.dst); err != nil {
			return model.PackageSale{}, err
		}
	}
	return s, nil
}

func marshalSaleJSON(s *model.PackageSale) (services, installments, payments []byte, err error) {
	if services, err = json.Marshal(s.Services); err != nil {
		return nil, nil, nil, err
	}
	if installments, err = json.Marshal(s.Installments); err != nil {
		return nil, nil, nil, err
	}
	if payments, err = json.Marshal(s.Payments); err != nil {
		return nil, nil, nil, err
	}
	return services, installments, payments, nil
}

func (r *SaleRepository) Create(ctx context.Context, tx pgx.Tx, s *model.PackageSale) (string, error) {
	services, installments, payments, err := marshalSaleJSON(s)
	if err != nil {
		return "", err
	}
	var id string
	err = tx.QueryRow(ctx, `
		INSERT INTO package_sales
			(customer_id, package_id, services, total_amount, paid_amount,
			 remaining_amount, installments, payments, status, expires_at, sold_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id::text
	`, s.CustomerID, s.PackageID, services, s.TotalAmount, s.PaidAmount,
		s.RemainingAmount, installments, payments, s.Status, s.ExpiresAt, s.SoldAt).Scan(&id)
	return id, err
}

func (r *SaleRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.PackageSale, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+saleColumns+`
		FROM package_sales
		WHERE id = $1
		FOR UPDATE
	`, id)
	return scanSale(row)
}

func (r *SaleRepository) Get(ctx context.Context, id string) (model.PackageSale, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+saleColumns+`
		FROM package_sales
		WHERE id = $1
	`, id)
	return scanSale(row)
}

func (r *SaleRepository) Update(ctx context.Context, tx pgx.Tx, s *model.PackageSale) error {
	services, installments, payments, err := marshalSaleJSON(s)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `
		UPDATE package_sales
		SET services = $2,
			total_amount = $3,
			paid_amount = $4,
			remaining_amount = $5,
			installments = $6,
			payments = $7,
			status = $8,
			expires_at = $9,
			updated_at = now()
		WHERE id = $1
	`, s.ID, services, s.TotalAmount, s.PaidAmount, s.RemainingAmount,
		installments, payments, s.Status, s.ExpiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *SaleRepository) ListByCustomer(ctx context.Context, customerID string) ([]model.PackageSale, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+saleColumns+`
		FROM package_sales
		WHERE customer_id = $1
		ORDER BY sold_at DESC
	`, customerID)
	if err != nil {
		return nil, err
	}
	return collectSales(rows)
}

func (r *SaleRepository) List(ctx context.Context, status string, limit int) ([]model.PackageSale, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+saleColumns+`
		FROM package_sales
		WHERE $1 = '' OR status = $1
		ORDER BY sold_at DESC
		LIMIT $2
	`, status, limit)
	if err != nil {
		return nil, err
	}
	return collectSales(rows)
}

// ClaimExpired mirrors the ledger sweep for the money side.
func (r *SaleRepository) ClaimExpired(ctx context.Context, tx pgx.Tx, now time.Time, limit int) ([]model.PackageSale, error) {
	rows, err := tx.Query(ctx, `
		SELECT `+saleColumns+`
		FROM package_sales
		WHERE status = 'active' AND expires_at IS NOT NULL AND expires_at < $1
		ORDER BY expires_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, now, limit)
	if err != nil {
		return nil, err
	}
	return collectSales(rows)
}

func collectSales(rows pgx.Rows) ([]model.PackageSale, error) {
	defer rows.Close()
	var out []model.PackageSale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

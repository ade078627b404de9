package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/tunahanclrr/salon-api/internal/model"
	"github.com/tunahanclrr/salon-api/libs/db"
)

type CustomerPackageRepository struct {
	pool *db.Pool
}

func NewCustomerPackageRepository(pool *db.Pool) *CustomerPackageRepository {
	return &CustomerPackageRepository{pool: pool}
}

const customerPackageColumns = `
	id::text, customer_id::text, package_id::text, COALESCE(sale_id::text, ''),
	total_quantity, used_quantity, remaining_quantity, status, valid_until, created_at`

func scanCustomerPackage(row pgx.Row) (model.CustomerPackage, error) {
	var cp model.CustomerPackage
	err := row.Scan(
		&cp.ID,
		&cp.CustomerID,
		&cp.PackageID,
		&cp.SaleID,
		&cp.TotalQuantity,
		&cp.UsedQuantity,
		&cp.RemainingQuantity,
		&cp.Status,
		&cp.ValidUntil,
		&cp.CreatedAt,
	)
	return cp, err
}

func (r *CustomerPackageRepository) Create(ctx context.Context, tx pgx.Tx, cp *model.CustomerPackage) (string, error) {
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO customer_packages
			(customer_id, package_id, sale_id, total_quantity, used_quantity,
			 remaining_quantity, status, valid_until)
		VALUES ($1, $2, NULLIF($3, '')::uuid, $4, $5, $6, $7, $8)
		RETURNING id::text
	`, cp.CustomerID, cp.PackageID, cp.SaleID, cp.TotalQuantity, cp.UsedQuantity,
		cp.RemainingQuantity, cp.Status, cp.ValidUntil).Scan(&id)
	return id, err
}

// GetForUpdate row-locks the ledger so concurrent uses and refunds serialize.
func (r *CustomerPackageRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.CustomerPackage, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+customerPackageColumns+`
		FROM customer_packages
		WHERE id = $1
		FOR UPDATE
	`, id)
	return scanCustomerPackage(row)
}

func (r *CustomerPackageRepository) Get(ctx context.Context, id string) (model.CustomerPackage, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+customerPackageColumns+`
		FROM customer_packages
		WHERE id = $1
	`, id)
	return scanCustomerPackage(row)
}

func (r *CustomerPackageRepository) Update(ctx context.Context, tx pgx.Tx, cp *model.CustomerPackage) error {
	tag, err := tx.Exec(ctx, `
		UPDATE customer_packages
		SET total_quantity = $2,
			used_quantity = $3,
			remaining_quantity = $4,
			status = $5,
			valid_until = $6,
			updated_at = now()
		WHERE id = $1
	`, cp.ID, cp.TotalQuantity, cp.UsedQuantity, cp.RemainingQuantity, cp.Status, cp.ValidUntil)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *CustomerPackageRepository) ListByCustomer(ctx context.Context, customerID string) ([]model.CustomerPackage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+customerPackageColumns+`
		FROM customer_packages
		WHERE customer_id = $1
		ORDER BY created_at DESC
	`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.CustomerPackage
	for rows.Next() {
		cp, err := scanCustomerPackage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

// ClaimExpired locks a batch of overdue active ledgers for the sweeper.
// SKIP LOCKED lets multiple instances sweep without stepping on each other.
func (r *CustomerPackageRepository) ClaimExpired(ctx context.Context, tx pgx.Tx, now time.Time, limit int) ([]model.CustomerPackage, error) {
	rows, err := tx.Query(ctx, `
		SELECT `+customerPackageColumns+`
		FROM customer_packages
		WHERE status = 'active' AND valid_until IS NOT NULL AND valid_until < $1
		ORDER BY valid_until ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.CustomerPackage
	for rows.Next() {
		cp, err := scanCustomerPackage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

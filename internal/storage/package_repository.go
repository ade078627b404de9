package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/tunahanclrr/salon-api/internal/model"
	"github.com/tunahanclrr/salon-api/libs/db"
)

type PackageRepository struct {
	pool *db.Pool
}

func NewPackageRepository(pool *db.Pool) *PackageRepository {
	return &PackageRepository{pool: pool}
}

const packageColumns = `id::text, name, service_id::text, quantity, price, validity_days, created_at`

func scanPackage(row pgx.Row) (model.Package, error) {
	var p model.Package
	err := row.Scan(&p.ID, &p.Name, &p.ServiceID, &p.Quantity, &p.Price, &p.ValidityDays, &p.CreatedAt)
	return p, err
}

func (r *PackageRepository) Create(ctx context.Context, p *model.Package) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO packages (name, service_id, quantity, price, validity_days)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id::text
	`, p.Name, p.ServiceID, p.Quantity, p.Price, p.ValidityDays).Scan(&id)
	return id, err
}

func (r *PackageRepository) Get(ctx context.Context, id string) (model.Package, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+packageColumns+` FROM packages WHERE id = $1`, id)
	return scanPackage(row)
}

func (r *PackageRepository) List(ctx context.Context) ([]model.Package, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+packageColumns+` FROM packages ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Package
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PackageRepository) Update(ctx context.Context, p *model.Package) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE packages
		SET name = $2,
			service_id = $3,
			quantity = $4,
			price = $5,
			validity_days = $6,
			updated_at = now()
		WHERE id = $1
	`, p.ID, p.Name, p.ServiceID, p.Quantity, p.Price, p.ValidityDays)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PackageRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM packages WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

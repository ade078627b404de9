package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/tunahanclrr/salon-api/internal/model"
	"github.com/tunahanclrr/salon-api/libs/db"
)

type CustomerRepository struct {
	pool *db.Pool
}

func NewCustomerRepository(pool *db.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

const customerColumns = `id::text, name, COALESCE(phone, ''), COALESCE(email, ''), COALESCE(notes, ''), created_at`

func scanCustomer(row pgx.Row) (model.Customer, error) {
	var c model.Customer
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Notes, &c.CreatedAt)
	return c, err
}

func (r *CustomerRepository) Create(ctx context.Context, c *model.Customer) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO customers (name, phone, email, notes)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''))
		RETURNING id::text
	`, c.Name, c.Phone, c.Email, c.Notes).Scan(&id)
	return id, err
}

func (r *CustomerRepository) Get(ctx context.Context, id string) (model.Customer, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id)
	return scanCustomer(row)
}

func (r *CustomerRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func (r *CustomerRepository) List(ctx context.Context, search string, limit int) ([]model.Customer, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE $1 = '' OR name ILIKE '%' || $1 || '%' OR phone ILIKE '%' || $1 || '%'
		ORDER BY name ASC
		LIMIT $2
	`, search, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *CustomerRepository) Update(ctx context.Context, c *model.Customer) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE customers
		SET name = $2,
			phone = NULLIF($3, ''),
			email = NULLIF($4, ''),
			notes = NULLIF($5, ''),
			updated_at = now()
		WHERE id = $1
	`, c.ID, c.Name, c.Phone, c.Email, c.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *CustomerRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/tunahanclrr/salon-api/internal/model"
	"github.com/tunahanclrr/salon-api/libs/db"
)

type EmployeeRepository struct {
	pool *db.Pool
}

func NewEmployeeRepository(pool *db.Pool) *EmployeeRepository {
	return &EmployeeRepository{pool: pool}
}

const employeeColumns = `id::text, name, COALESCE(phone, ''), COALESCE(email, ''), COALESCE(title, ''), is_active, created_at`

func scanEmployee(row pgx.Row) (model.Employee, error) {
	var e model.Employee
	err := row.Scan(&e.ID, &e.Name, &e.Phone, &e.Email, &e.Title, &e.IsActive, &e.CreatedAt)
	return e, err
}

func (r *EmployeeRepository) Create(ctx context.Context, e *model.Employee) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO employees (name, phone, email, title, is_active)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), $5)
		RETURNING id::text
	`, e.Name, e.Phone, e.Email, e.Title, e.IsActive).Scan(&id)
	return id, err
}

func (r *EmployeeRepository) Get(ctx context.Context, id string) (model.Employee, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = $1`, id)
	return scanEmployee(row)
}

func (r *EmployeeRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM employees WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func (r *EmployeeRepository) List(ctx context.Context, activeOnly bool) ([]model.Employee, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+employeeColumns+`
		FROM employees
		WHERE NOT $1 OR is_active
		ORDER BY name ASC
	`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *EmployeeRepository) Update(ctx context.Context, e *model.Employee) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE employees
		SET name = $2,
			phone = NULLIF($3, ''),
			email = NULLIF($4, ''),
			title = NULLIF($5, ''),
			is_active = $6,
			updated_at = now()
		WHERE id = $1
	`, e.ID, e.Name, e.Phone, e.Email, e.Title, e.IsActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *EmployeeRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM employees WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

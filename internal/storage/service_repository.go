package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/tunahanclrr/salon-api/internal/model"
	"github.com/tunahanclrr/salon-api/libs/db"
)

type ServiceRepository struct {
	pool *db.Pool
}

func NewServiceRepository(pool *db.Pool) *ServiceRepository {
	return &ServiceRepository{pool: pool}
}

const serviceColumns = `id::text, name, duration_minutes, price, created_at`

func scanService(row pgx.Row) (model.Service, error) {
	var s model.Service
	err := row.Scan(&s.ID, &s.Name, &s.DurationMinutes, &s.Price, &s.CreatedAt)
	return s, err
}

func (r *ServiceRepository) Create(ctx context.Context, s *model.Service) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO services (name, duration_minutes, price)
		VALUES ($1, $2, $3)
		RETURNING id::text
	`, s.Name, s.DurationMinutes, s.Price).Scan(&id)
	return id, err
}

func (r *ServiceRepository) Get(ctx context.Context, id string) (model.Service, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = $1`, id)
	return scanService(row)
}

// FindByIDs resolves a set of service ids in one round trip. Callers compare
// the result count against the request to detect unknown ids.
func (r *ServiceRepository) FindByIDs(ctx context.Context, ids []string) (map[string]model.Service, error) {
	if len(ids) == 0 {
		return map[string]model.Service{}, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+serviceColumns+`
		FROM services
		WHERE id = ANY($1::uuid[])
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]model.Service, len(ids))
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out[s.ID] = s
	}
	return out, rows.Err()
}

func (r *ServiceRepository) List(ctx context.Context) ([]model.Service, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+serviceColumns+` FROM services ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *ServiceRepository) Update(ctx context.Context, s *model.Service) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE services
		SET name = $2,
			duration_minutes = $3,
			price = $4,
			updated_at = now()
		WHERE id = $1
	`, s.ID, s.Name, s.DurationMinutes, s.Price)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ServiceRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM services WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

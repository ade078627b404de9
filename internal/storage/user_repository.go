package storage

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/tunahanclrr/salon-api/internal/model"
	"github.com/tunahanclrr/salon-api/libs/db"
)

type UserRepository struct {
	pool *db.Pool
}

func NewUserRepository(pool *db.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `id::text, email, name, password_hash, role, permissions, created_at`

func scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	var permissions []byte
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &permissions, &u.CreatedAt); err != nil {
		return model.User{}, err
	}
	if len(permissions) > 0 {
		if err := json.Unmarshal(permissions, &u.Permissions); err != nil {
			return model.User{}, err
		}
	}
	return u, nil
}

func (r *UserRepository) Create(ctx context.Context, u *model.User) (string, error) {
	permissions, err := json.Marshal(u.Permissions)
	if err != nil {
		return "", err
	}
	var id string
	err = r.pool.QueryRow(ctx, `
		INSERT INTO users (email, name, password_hash, role, permissions)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id::text
	`, u.Email, u.Name, u.PasswordHash, u.Role, permissions).Scan(&id)
	return id, err
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (model.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (r *UserRepository) Get(ctx context.Context, id string) (model.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *UserRepository) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *UserRepository) UpdatePermissions(ctx context.Context, id string, permissions map[string]bool) error {
	raw, err := json.Marshal(permissions)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET permissions = $2,
			updated_at = now()
		WHERE id = $1
	`, id, raw)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/tunahanclrr/salon-api/internal/model"
	"github.com/tunahanclrr/salon-api/libs/db"
)

type AppointmentRepository struct {
	pool *db.Pool
}

func NewAppointmentRepository(pool *db.Pool) *AppointmentRepository {
	return &AppointmentRepository{pool: pool}
}

// LockEmployeeDay serializes bookings per (employee, date) for the duration of
// the transaction, so concurrent requests cannot both pass the conflict check.
func (r *AppointmentRepository) LockEmployeeDay(ctx context.Context, tx pgx.Tx, employeeID, date string) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, employeeID+"|"+date)
	return err
}

const appointmentColumns = `
	id::text, employee_id::text, customer_id::text, date::text, start_minute,
	duration_minutes, services, status, customer_not_arrived, COALESCE(notes, ''),
	COALESCE(customer_package_id::text, ''), package_session_count, created_at`

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var a model.Appointment
	var services []byte
	if err := row.Scan(
		&a.ID,
		&a.EmployeeID,
		&a.CustomerID,
		&a.Date,
		&a.StartMinute,
		&a.DurationMinutes,
		&services,
		&a.Status,
		&a.CustomerNotArrived,
		&a.Notes,
		&a.CustomerPackageID,
		&a.PackageSessionCount,
		&a.CreatedAt,
	); err != nil {
		return model.Appointment{}, err
	}
	if len(services) > 0 {
		if err := json.Unmarshal(services, &a.Services); err != nil {
			return model.Appointment{}, err
		}
	}
	return a, nil
}

func (r *AppointmentRepository) Create(ctx context.Context, tx pgx.Tx, a *model.Appointment) (string, error) {
	services, err := json.Marshal(a.Services)
	if err != nil {
		return "", err
	}
	var id string
	err = tx.QueryRow(ctx, `
		INSERT INTO appointments
			(employee_id, customer_id, date, start_minute, duration_minutes, services,
			 status, customer_not_arrived, notes, customer_package_id, package_session_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, '')::uuid, $11)
		RETURNING id::text
	`, a.EmployeeID, a.CustomerID, a.Date, a.StartMinute, a.DurationMinutes, services,
		a.Status, a.CustomerNotArrived, a.Notes, a.CustomerPackageID, a.PackageSessionCount).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *AppointmentRepository) Update(ctx context.Context, tx pgx.Tx, a *model.Appointment) error {
	services, err := json.Marshal(a.Services)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		UPDATE appointments
		SET employee_id = $2,
			customer_id = $3,
			date = $4,
			start_minute = $5,
			duration_minutes = $6,
			services = $7,
			status = $8,
			customer_not_arrived = $9,
			notes = $10,
			customer_package_id = NULLIF($11, '')::uuid,
			package_session_count = $12,
			updated_at = now()
		WHERE id = $1
	`, a.ID, a.EmployeeID, a.CustomerID, a.Date, a.StartMinute, a.DurationMinutes, services,
		a.Status, a.CustomerNotArrived, a.Notes, a.CustomerPackageID, a.PackageSessionCount)
	return err
}

func (r *AppointmentRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.Appointment, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, id)
	return scanAppointment(row)
}

func (r *AppointmentRepository) Get(ctx context.Context, id string) (model.Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

// ListByEmployeeAndDate returns the day's appointments for the conflict check.
// Run inside the booking transaction, after LockEmployeeDay.
func (r *AppointmentRepository) ListByEmployeeAndDate(ctx context.Context, tx pgx.Tx, employeeID, date string) ([]model.Appointment, error) {
	rows, err := tx.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE employee_id = $1 AND date = $2
		ORDER BY start_minute ASC
	`, employeeID, date)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *AppointmentRepository) ListByDate(ctx context.Context, date string) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE date = $1
		ORDER BY start_minute ASC
	`, date)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *AppointmentRepository) ListByCustomer(ctx context.Context, customerID string, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE customer_id = $1
		ORDER BY date DESC, start_minute DESC
		LIMIT $2
	`, customerID, limit)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *AppointmentRepository) Delete(ctx context.Context, tx pgx.Tx, id string) error {
	tag, err := tx.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *AppointmentRepository) SetNotArrived(ctx context.Context, id string, notArrived bool) (time.Time, error) {
	var updatedAt time.Time
	err := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET customer_not_arrived = $2,
			updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, id, notArrived).Scan(&updatedAt)
	return updatedAt, err
}

func collectAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	defer rows.Close()
	var appts []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

// Package booking implements the appointment write flow: conflict checking,
// package session consumption and the appointment row all commit in one
// transaction, with domain events going through the outbox.
package booking

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/tunahanclrr/salon-api/internal/apperr"
	"github.com/tunahanclrr/salon-api/internal/ledger"
	"github.com/tunahanclrr/salon-api/internal/model"
	"github.com/tunahanclrr/salon-api/internal/outbox"
	"github.com/tunahanclrr/salon-api/internal/scheduling"
	"github.com/tunahanclrr/salon-api/internal/storage"
	"github.com/tunahanclrr/salon-api/libs/db"
)

type Service struct {
	pool      *db.Pool
	appts     *storage.AppointmentRepository
	packs     *storage.CustomerPackageRepository
	sales     *storage.SaleRepository
	services  *storage.ServiceRepository
	customers *storage.CustomerRepository
	employees *storage.EmployeeRepository
	idem      *storage.IdempotencyRepository
	outbox    *outbox.Repository
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(
	pool *db.Pool,
	appts *storage.AppointmentRepository,
	packs *storage.CustomerPackageRepository,
	sales *storage.SaleRepository,
	services *storage.ServiceRepository,
	customers *storage.CustomerRepository,
	employees *storage.EmployeeRepository,
	idem *storage.IdempotencyRepository,
	outboxRepo *outbox.Repository,
	logger *slog.Logger,
) *Service {
	return &Service{
		pool:      pool,
		appts:     appts,
		packs:     packs,
		sales:     sales,
		services:  services,
		customers: customers,
		employees: employees,
		idem:      idem,
		outbox:    outboxRepo,
		logger:    logger,
		now:       time.Now,
	}
}

type Request struct {
	CustomerID          string
	EmployeeID          string
	Date                string // YYYY-MM-DD
	Time                string // HH:MM
	DurationMinutes     int    // 0 = derive from services
	ServiceIDs          []string
	Notes               string
	CustomerPackageID   string
	PackageSessionCount int
	Force               bool
	IdempotencyKey      string
}

type eventPayload struct {
	AppointmentID string `json:"appointment_id"`
	CustomerID    string `json:"customer_id"`
	EmployeeID    string `json:"employee_id"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	Status        string `json:"status"`
}

// Book places a new appointment. When req.IdempotencyKey is set and was seen
// before, the previously stored appointment is returned and created is false.
func (s *Service) Book(ctx context.Context, req Request) (appt model.Appointment, created bool, err error) {
	if err := s.validate(ctx, &req); err != nil {
		return model.Appointment{}, false, err
	}

	snapshots, duration, err := s.resolveServices(ctx, req)
	if err != nil {
		return model.Appointment{}, false, err
	}
	startMinute, _ := scheduling.ParseClock(req.Time)
	if startMinute+duration > 24*60 {
		return model.Appointment{}, false, apperr.Validation("appointment would run past midnight")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if req.IdempotencyKey != "" {
		rec, err := s.idem.Lock(ctx, tx, req.IdempotencyKey)
		if err != nil {
			return model.Appointment{}, false, err
		}
		stored, done, err := replayedAppointment(rec)
		if err != nil {
			return model.Appointment{}, false, err
		}
		if done {
			if err := tx.Commit(ctx); err != nil {
				return model.Appointment{}, false, err
			}
			return stored, false, nil
		}
	}

	if err := s.appts.LockEmployeeDay(ctx, tx, req.EmployeeID, req.Date); err != nil {
		return model.Appointment{}, false, err
	}
	if err := s.checkConflict(ctx, tx, scheduling.Candidate{
		EmployeeID:      req.EmployeeID,
		Date:            req.Date,
		StartMinute:     startMinute,
		DurationMinutes: duration,
	}, "", req.Force); err != nil {
		return model.Appointment{}, false, err
	}

	sessions := sessionCount(req.PackageSessionCount, req.CustomerPackageID)
	if req.CustomerPackageID != "" {
		if err := s.consumeSessions(ctx, tx, req.CustomerPackageID, req.CustomerID, req.ServiceIDs, sessions); err != nil {
			return model.Appointment{}, false, err
		}
	}

	appt = model.Appointment{
		EmployeeID:          req.EmployeeID,
		CustomerID:          req.CustomerID,
		Date:                req.Date,
		StartMinute:         startMinute,
		DurationMinutes:     duration,
		Services:            snapshots,
		Status:              model.AppointmentPending,
		Notes:               req.Notes,
		CustomerPackageID:   req.CustomerPackageID,
		PackageSessionCount: sessions,
		CreatedAt:           s.now(),
	}
	id, err := s.appts.Create(ctx, tx, &appt)
	if err != nil {
		return model.Appointment{}, false, err
	}
	appt.ID = id

	if req.IdempotencyKey != "" {
		payload, err := json.Marshal(appt)
		if err != nil {
			return model.Appointment{}, false, err
		}
		if err := s.idem.Finalize(ctx, tx, req.IdempotencyKey, id, 201, payload); err != nil {
			return model.Appointment{}, false, err
		}
	}

	if err := s.emit(ctx, tx, outbox.EventAppointmentBooked, &appt); err != nil {
		return model.Appointment{}, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, false, err
	}

	s.logger.Info("appointment booked",
		"appointment_id", appt.ID,
		"employee_id", appt.EmployeeID,
		"date", appt.Date,
		"start", scheduling.FormatClock(appt.StartMinute),
		"forced", req.Force)
	return appt, true, nil
}

// Update reschedules or re-scopes an existing appointment. When the package
// attachment changes, the old package gets its sessions back before the new
// one is charged, inside the same transaction.
func (s *Service) Update(ctx context.Context, id string, req Request) (model.Appointment, error) {
	if err := s.validate(ctx, &req); err != nil {
		return model.Appointment{}, err
	}
	snapshots, duration, err := s.resolveServices(ctx, req)
	if err != nil {
		return model.Appointment{}, err
	}
	startMinute, _ := scheduling.ParseClock(req.Time)
	if startMinute+duration > 24*60 {
		return model.Appointment{}, apperr.Validation("appointment would run past midnight")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	old, err := s.appts.GetForUpdate(ctx, tx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Appointment{}, apperr.NotFound("appointment %s not found", id)
		}
		return model.Appointment{}, err
	}
	if alreadyCancelled(old) {
		return model.Appointment{}, apperr.Conflict("appointment %s is cancelled", id)
	}

	// Lock both days in a fixed order so two edits moving appointments in
	// opposite directions cannot deadlock.
	for _, key := range dayLockKeys(old, req) {
		if err := s.appts.LockEmployeeDay(ctx, tx, key.employeeID, key.date); err != nil {
			return model.Appointment{}, err
		}
	}

	if err := s.checkConflict(ctx, tx, scheduling.Candidate{
		EmployeeID:      req.EmployeeID,
		Date:            req.Date,
		StartMinute:     startMinute,
		DurationMinutes: duration,
	}, id, req.Force); err != nil {
		return model.Appointment{}, err
	}

	sessions := sessionCount(req.PackageSessionCount, req.CustomerPackageID)
	if old.CustomerPackageID != req.CustomerPackageID || old.PackageSessionCount != sessions {
		if old.CustomerPackageID != "" && old.PackageSessionCount > 0 {
			if err := s.returnSessions(ctx, tx, old.CustomerPackageID, oldServiceIDs(old), old.PackageSessionCount); err != nil {
				return model.Appointment{}, err
			}
		}
		if req.CustomerPackageID != "" {
			if err := s.consumeSessions(ctx, tx, req.CustomerPackageID, req.CustomerID, req.ServiceIDs, sessions); err != nil {
				return model.Appointment{}, err
			}
		}
	}

	updated := old
	updated.EmployeeID = req.EmployeeID
	updated.CustomerID = req.CustomerID
	updated.Date = req.Date
	updated.StartMinute = startMinute
	updated.DurationMinutes = duration
	updated.Services = snapshots
	updated.Notes = req.Notes
	updated.CustomerPackageID = req.CustomerPackageID
	updated.PackageSessionCount = sessions
	if req.CustomerPackageID == "" {
		updated.PackageSessionCount = 0
	}

	if err := s.appts.Update(ctx, tx, &updated); err != nil {
		return model.Appointment{}, err
	}
	if err := s.emit(ctx, tx, outbox.EventAppointmentUpdated, &updated); err != nil {
		return model.Appointment{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, err
	}
	return updated, nil
}

// Cancel marks the appointment cancelled and returns any consumed package
// sessions. Cancelling twice is a no-op.
func (s *Service) Cancel(ctx context.Context, id string) (model.Appointment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := s.appts.GetForUpdate(ctx, tx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Appointment{}, apperr.NotFound("appointment %s not found", id)
		}
		return model.Appointment{}, err
	}
	if alreadyCancelled(appt) {
		if err := tx.Commit(ctx); err != nil {
			return model.Appointment{}, err
		}
		return appt, nil
	}

	if appt.CustomerPackageID != "" && appt.PackageSessionCount > 0 {
		if err := s.returnSessions(ctx, tx, appt.CustomerPackageID, oldServiceIDs(appt), appt.PackageSessionCount); err != nil {
			return model.Appointment{}, err
		}
	}

	appt.Status = model.AppointmentCancelled
	if err := s.appts.Update(ctx, tx, &appt); err != nil {
		return model.Appointment{}, err
	}
	if err := s.emit(ctx, tx, outbox.EventAppointmentCancelled, &appt); err != nil {
		return model.Appointment{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

// Delete removes the appointment row. A row that was already cancelled gave
// its sessions back and announced the cancellation at cancel time, so only
// live rows refund and emit here.
func (s *Service) Delete(ctx context.Context, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := s.appts.GetForUpdate(ctx, tx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			return apperr.NotFound("appointment %s not found", id)
		}
		return err
	}

	if !alreadyCancelled(appt) && appt.CustomerPackageID != "" && appt.PackageSessionCount > 0 {
		if err := s.returnSessions(ctx, tx, appt.CustomerPackageID, oldServiceIDs(appt), appt.PackageSessionCount); err != nil {
			return err
		}
	}

	if err := s.appts.Delete(ctx, tx, id); err != nil {
		return err
	}
	if !alreadyCancelled(appt) {
		if err := s.emit(ctx, tx, outbox.EventAppointmentCancelled, &appt); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func alreadyCancelled(appt model.Appointment) bool {
	return appt.Status == model.AppointmentCancelled
}

func (s *Service) validate(ctx context.Context, req *Request) error {
	date, err := scheduling.ParseDate(req.Date)
	if err != nil {
		return err
	}
	req.Date = date
	if _, err := scheduling.ParseClock(req.Time); err != nil {
		return err
	}
	if len(req.ServiceIDs) == 0 {
		return apperr.Validation("at least one service is required")
	}
	if req.DurationMinutes < 0 {
		return apperr.Validation("duration must not be negative")
	}

	ok, err := s.customers.Exists(ctx, req.CustomerID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("customer %s not found", req.CustomerID)
	}
	ok, err = s.employees.Exists(ctx, req.EmployeeID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("employee %s not found", req.EmployeeID)
	}
	return nil
}

// resolveServices snapshots the requested services. An unknown service id is
// a hard NotFound: requests never fall back to a partial service list.
func (s *Service) resolveServices(ctx context.Context, req Request) ([]model.ServiceSnapshot, int, error) {
	found, err := s.services.FindByIDs(ctx, req.ServiceIDs)
	if err != nil {
		return nil, 0, err
	}
	snapshots := make([]model.ServiceSnapshot, 0, len(req.ServiceIDs))
	for _, id := range req.ServiceIDs {
		svc, ok := found[id]
		if !ok {
			return nil, 0, apperr.NotFound("service %s not found", id)
		}
		snapshots = append(snapshots, model.ServiceSnapshot{
			ServiceID:       svc.ID,
			Name:            svc.Name,
			DurationMinutes: svc.DurationMinutes,
			Price:           svc.Price,
		})
	}
	return snapshots, DeriveDuration(req.DurationMinutes, snapshots, sessionCount(req.PackageSessionCount, req.CustomerPackageID)), nil
}

// DeriveDuration picks the explicit override when given, otherwise sums the
// snapshot durations once per consumed session. Services with no recorded
// duration count as the default slot length.
func DeriveDuration(override int, snapshots []model.ServiceSnapshot, sessions int) int {
	if override > 0 {
		return override
	}
	total := 0
	for _, snap := range snapshots {
		d := snap.DurationMinutes
		if d <= 0 {
			d = model.DefaultAppointmentMinutes
		}
		total += d
	}
	if total == 0 {
		total = model.DefaultAppointmentMinutes
	}
	if sessions > 1 {
		total *= sessions
	}
	return total
}

func (s *Service) checkConflict(ctx context.Context, tx pgx.Tx, c scheduling.Candidate, excludeID string, force bool) error {
	day, err := s.appts.ListByEmployeeAndDate(ctx, tx, c.EmployeeID, c.Date)
	if err != nil {
		return err
	}
	return conflictError(c, day, excludeID, force)
}

// conflictError applies the overlap rule to the candidate slot. A forced
// request bypasses the rule: the overlapping appointments both stay on the
// books.
func conflictError(c scheduling.Candidate, day []model.Appointment, excludeID string, force bool) error {
	if force {
		return nil
	}
	if blocking := scheduling.FirstConflict(c, day, excludeID); blocking != nil {
		return apperr.Conflict("employee is booked %s-%s on %s",
			scheduling.FormatClock(blocking.StartMinute),
			scheduling.FormatClock(blocking.EndMinute()),
			blocking.Date)
	}
	return nil
}

// replayedAppointment decodes the response stored under an idempotency key.
// Only finalized records replay; a freshly claimed key has no status yet.
// The claim can lose the insert race to a concurrent request with the same
// key, in which case the record already carries that request's response, so
// the decision rests on the stored status alone.
func replayedAppointment(rec storage.IdempotencyRecord) (model.Appointment, bool, error) {
	if rec.StatusCode == 0 {
		return model.Appointment{}, false, nil
	}
	var stored model.Appointment
	if err := json.Unmarshal(rec.ResponsePayload, &stored); err != nil {
		return model.Appointment{}, false, err
	}
	return stored, true, nil
}

func (s *Service) consumeSessions(ctx context.Context, tx pgx.Tx, customerPackageID, customerID string, serviceIDs []string, n int) error {
	cp, err := s.packs.GetForUpdate(ctx, tx, customerPackageID)
	if err != nil {
		if storage.IsNotFound(err) {
			return apperr.NotFound("customer package %s not found", customerPackageID)
		}
		return err
	}
	if cp.CustomerID != customerID {
		return apperr.Validation("package %s belongs to another customer", customerPackageID)
	}
	ledger.Recompute(&cp, s.now())
	if err := ledger.Use(&cp, n); err != nil {
		return err
	}
	if err := s.packs.Update(ctx, tx, &cp); err != nil {
		return err
	}
	return s.syncSaleUsage(ctx, tx, cp.SaleID, serviceIDs, n, false)
}

func (s *Service) returnSessions(ctx context.Context, tx pgx.Tx, customerPackageID string, serviceIDs []string, n int) error {
	cp, err := s.packs.GetForUpdate(ctx, tx, customerPackageID)
	if err != nil {
		if storage.IsNotFound(err) {
			// The ledger was deleted out from under the appointment;
			// nothing left to credit.
			return nil
		}
		return err
	}
	if err := ledger.Refund(&cp, n); err != nil {
		return err
	}
	ledger.Recompute(&cp, s.now())
	if err := s.packs.Update(ctx, tx, &cp); err != nil {
		return err
	}
	return s.syncSaleUsage(ctx, tx, cp.SaleID, serviceIDs, n, true)
}

func (s *Service) syncSaleUsage(ctx context.Context, tx pgx.Tx, saleID string, serviceIDs []string, n int, reverse bool) error {
	if saleID == "" {
		return nil
	}
	sale, err := s.sales.GetForUpdate(ctx, tx, saleID)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil
		}
		return err
	}
	if reverse {
		ledger.ReverseSaleUsage(&sale, serviceIDs, n)
	} else {
		ledger.ApplySaleUsage(&sale, serviceIDs, n)
	}
	return s.sales.Update(ctx, tx, &sale)
}

func (s *Service) emit(ctx context.Context, tx pgx.Tx, eventType string, appt *model.Appointment) error {
	evt, err := outbox.NewEvent("appointment", appt.ID, eventType, eventPayload{
		AppointmentID: appt.ID,
		CustomerID:    appt.CustomerID,
		EmployeeID:    appt.EmployeeID,
		Date:          appt.Date,
		Time:          scheduling.FormatClock(appt.StartMinute),
		Status:        appt.Status,
	})
	if err != nil {
		return err
	}
	return s.outbox.Insert(ctx, tx, evt)
}

func sessionCount(requested int, customerPackageID string) int {
	if customerPackageID == "" {
		return 0
	}
	if requested <= 0 {
		return 1
	}
	return requested
}

func oldServiceIDs(appt model.Appointment) []string {
	ids := make([]string, 0, len(appt.Services))
	for _, snap := range appt.Services {
		ids = append(ids, snap.ServiceID)
	}
	return ids
}

type dayKey struct {
	employeeID string
	date       string
}

func dayLockKeys(old model.Appointment, req Request) []dayKey {
	a := dayKey{old.EmployeeID, old.Date}
	b := dayKey{req.EmployeeID, req.Date}
	if a == b {
		return []dayKey{a}
	}
	if a.employeeID+a.date > b.employeeID+b.date {
		a, b = b, a
	}
	return []dayKey{a, b}
}

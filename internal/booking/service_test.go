package booking

import (
	"encoding/json"
	"testing"

	"github.com/tunahanclrr/salon-api/internal/apperr"
	"github.com/tunahanclrr/salon-api/internal/model"
	"github.com/tunahanclrr/salon-api/internal/scheduling"
	"github.com/tunahanclrr/salon-api/internal/storage"
)

func TestDeriveDurationPrefersOverride(t *testing.T) {
	snaps := []model.ServiceSnapshot{{DurationMinutes: 45}, {DurationMinutes: 30}}
	if got := DeriveDuration(90, snaps, 1); got != 90 {
		t.Fatalf("got %d, want 90", got)
	}
}

func TestDeriveDurationSumsServices(t *testing.T) {
	snaps := []model.ServiceSnapshot{{DurationMinutes: 45}, {DurationMinutes: 30}}
	if got := DeriveDuration(0, snaps, 1); got != 75 {
		t.Fatalf("got %d, want 75", got)
	}
}

func TestDeriveDurationDefaultsMissingServiceDuration(t *testing.T) {
	snaps := []model.ServiceSnapshot{{DurationMinutes: 0}, {DurationMinutes: 20}}
	if got := DeriveDuration(0, snaps, 1); got != model.DefaultAppointmentMinutes+20 {
		t.Fatalf("got %d, want %d", got, model.DefaultAppointmentMinutes+20)
	}
}

func TestDeriveDurationNoServicesFallsBackToDefault(t *testing.T) {
	if got := DeriveDuration(0, nil, 1); got != model.DefaultAppointmentMinutes {
		t.Fatalf("got %d, want %d", got, model.DefaultAppointmentMinutes)
	}
}

func TestDeriveDurationMultipliesBySessions(t *testing.T) {
	snaps := []model.ServiceSnapshot{{DurationMinutes: 40}}
	if got := DeriveDuration(0, snaps, 3); got != 120 {
		t.Fatalf("got %d, want 120", got)
	}
}

func TestSessionCount(t *testing.T) {
	if got := sessionCount(5, ""); got != 0 {
		t.Fatalf("no package: got %d, want 0", got)
	}
	if got := sessionCount(0, "cp-1"); got != 1 {
		t.Fatalf("default: got %d, want 1", got)
	}
	if got := sessionCount(3, "cp-1"); got != 3 {
		t.Fatalf("explicit: got %d, want 3", got)
	}
}

func TestDayLockKeysStableOrder(t *testing.T) {
	old := model.Appointment{EmployeeID: "emp-b", Date: "2026-09-02"}
	req := Request{EmployeeID: "emp-a", Date: "2026-09-03"}

	keys := dayLockKeys(old, req)
	if len(keys) != 2 {
		t.Fatalf("got %d keys, want 2", len(keys))
	}
	if keys[0].employeeID != "emp-a" || keys[1].employeeID != "emp-b" {
		t.Fatalf("keys not ordered: %+v", keys)
	}

	// Same pair from the other direction locks in the same order.
	rev := dayLockKeys(
		model.Appointment{EmployeeID: "emp-a", Date: "2026-09-03"},
		Request{EmployeeID: "emp-b", Date: "2026-09-02"},
	)
	if rev[0] != keys[0] || rev[1] != keys[1] {
		t.Fatalf("lock order depends on direction: %+v vs %+v", rev, keys)
	}
}

func TestDayLockKeysCollapsesSameDay(t *testing.T) {
	old := model.Appointment{EmployeeID: "emp-a", Date: "2026-09-02"}
	req := Request{EmployeeID: "emp-a", Date: "2026-09-02"}
	if keys := dayLockKeys(old, req); len(keys) != 1 {
		t.Fatalf("got %d keys, want 1", len(keys))
	}
}

func TestConflictErrorBlocksOverlap(t *testing.T) {
	day := []model.Appointment{{
		ID:              "appt-1",
		EmployeeID:      "emp-a",
		Date:            "2026-09-02",
		StartMinute:     600,
		DurationMinutes: 60,
		Status:          model.AppointmentPending,
	}}
	c := scheduling.Candidate{
		EmployeeID:      "emp-a",
		Date:            "2026-09-02",
		StartMinute:     630,
		DurationMinutes: 30,
	}

	err := conflictError(c, day, "", false)
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestConflictErrorForceBypassesOverlap(t *testing.T) {
	day := []model.Appointment{{
		ID:              "appt-1",
		EmployeeID:      "emp-a",
		Date:            "2026-09-02",
		StartMinute:     600,
		DurationMinutes: 60,
		Status:          model.AppointmentPending,
	}}
	c := scheduling.Candidate{
		EmployeeID:      "emp-a",
		Date:            "2026-09-02",
		StartMinute:     600,
		DurationMinutes: 60,
	}

	// Even a fully overlapping slot goes through when forced; both
	// appointments stay on the books.
	if err := conflictError(c, day, "", true); err != nil {
		t.Fatalf("forced booking rejected: %v", err)
	}
}

func TestReplayedAppointmentFinalizedRecord(t *testing.T) {
	booked := model.Appointment{ID: "appt-1", EmployeeID: "emp-a", Date: "2026-09-02", StartMinute: 600}
	payload, err := json.Marshal(booked)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	// The record may have been finalized by a concurrent request that won the
	// key claim; replay depends only on the stored status.
	stored, done, err := replayedAppointment(storage.IdempotencyRecord{
		Key:             "key-1",
		AppointmentID:   booked.ID,
		StatusCode:      201,
		ResponsePayload: payload,
	})
	if err != nil {
		t.Fatalf("replayedAppointment: %v", err)
	}
	if !done {
		t.Fatal("finalized record did not replay")
	}
	if stored.ID != booked.ID || stored.StartMinute != booked.StartMinute {
		t.Fatalf("replayed wrong appointment: %+v", stored)
	}
}

func TestReplayedAppointmentPendingRecord(t *testing.T) {
	_, done, err := replayedAppointment(storage.IdempotencyRecord{Key: "key-1"})
	if err != nil {
		t.Fatalf("replayedAppointment: %v", err)
	}
	if done {
		t.Fatal("unfinalized record must not replay")
	}
}

func TestAlreadyCancelled(t *testing.T) {
	if alreadyCancelled(model.Appointment{Status: model.AppointmentPending}) {
		t.Fatal("pending appointment reported cancelled")
	}
	if !alreadyCancelled(model.Appointment{Status: model.AppointmentCancelled}) {
		t.Fatal("cancelled appointment not reported")
	}
}

func TestOldServiceIDs(t *testing.T) {
	appt := model.Appointment{Services: []model.ServiceSnapshot{
		{ServiceID: "svc-1"}, {ServiceID: "svc-2"},
	}}
	ids := oldServiceIDs(appt)
	if len(ids) != 2 || ids[0] != "svc-1" || ids[1] != "svc-2" {
		t.Fatalf("unexpected ids: %v", ids)
	}
}

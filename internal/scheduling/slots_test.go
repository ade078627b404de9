package scheduling

import (
	"testing"

	"github.com/tunahanclrr/salon-api/internal/model"
)

func TestAvailableSlots_Basic(t *testing.T) {
	// Window 09:00-10:00, busy 09:15-09:45, 15 minute slots.
	busy := []Interval{{Start: 555, End: 585}}

	slots := AvailableSlots(540, 600, 15, 15, busy, -1)
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d (%v)", len(slots), slots)
	}
	if slots[0] != 540 {
		t.Fatalf("expected first slot 09:00, got %s", FormatClock(slots[0]))
	}
	if slots[1] != 585 {
		t.Fatalf("expected second slot 09:45, got %s", FormatClock(slots[1]))
	}
}

func TestAvailableSlots_SkipsPast(t *testing.T) {
	// 09:00, 09:15, 09:30 already started by 09:31; only 09:45 remains.
	slots := AvailableSlots(540, 600, 15, 15, nil, 571)
	if len(slots) != 1 {
		t.Fatalf("expected 1 slot, got %d (%v)", len(slots), slots)
	}
	if slots[0] != 585 {
		t.Fatalf("expected slot 09:45, got %s", FormatClock(slots[0]))
	}
}

func TestAvailableSlots_DurationLongerThanWindow(t *testing.T) {
	if slots := AvailableSlots(540, 570, 45, 15, nil, -1); slots != nil {
		t.Fatalf("expected no slots, got %v", slots)
	}
}

func TestBusyIntervals(t *testing.T) {
	appts := []model.Appointment{
		appt("a-1", "e-1", "2026-09-01", 600, 30, model.AppointmentConfirmed),
		appt("a-2", "e-1", "2026-09-01", 660, 30, model.AppointmentCancelled),
		appt("a-3", "e-2", "2026-09-01", 700, 30, model.AppointmentConfirmed),
	}
	busy := BusyIntervals("e-1", "2026-09-01", appts)
	if len(busy) != 1 {
		t.Fatalf("expected 1 busy interval, got %d", len(busy))
	}
	if busy[0].Start != 600 || busy[0].End != 630 {
		t.Fatalf("unexpected interval %+v", busy[0])
	}
}

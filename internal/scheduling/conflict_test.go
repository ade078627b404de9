package scheduling

import (
	"testing"

	"github.com/tunahanclrr/salon-api/internal/model"
)

func appt(id, employee, date string, start, duration int, status string) model.Appointment {
	return model.Appointment{
		ID:              id,
		EmployeeID:      employee,
		CustomerID:      "c-1",
		Date:            date,
		StartMinute:     start,
		DurationMinutes: duration,
		Status:          status,
	}
}

func TestHasConflict_Overlap(t *testing.T) {
	// Existing 10:00-10:30, candidate 10:15-10:45.
	existing := []model.Appointment{
		appt("a-1", "e-1", "2026-09-01", 600, 30, model.AppointmentConfirmed),
	}
	c := Candidate{EmployeeID: "e-1", Date: "2026-09-01", StartMinute: 615, DurationMinutes: 30}
	if !HasConflict(c, existing, "") {
		t.Fatal("expected overlap 10:15-10:45 vs 10:00-10:30 to conflict")
	}
}

func TestHasConflict_AdjacentIsFree(t *testing.T) {
	// Existing 10:00-10:30, candidate 10:30-11:00: touching endpoints are fine.
	existing := []model.Appointment{
		appt("a-1", "e-1", "2026-09-01", 600, 30, model.AppointmentPending),
	}
	c := Candidate{EmployeeID: "e-1", Date: "2026-09-01", StartMinute: 630, DurationMinutes: 30}
	if HasConflict(c, existing, "") {
		t.Fatal("adjacent appointments must not conflict")
	}
	// And the mirror image: candidate ending exactly at the existing start.
	c = Candidate{EmployeeID: "e-1", Date: "2026-09-01", StartMinute: 570, DurationMinutes: 30}
	if HasConflict(c, existing, "") {
		t.Fatal("candidate ending at existing start must not conflict")
	}
}

func TestHasConflict_Filters(t *testing.T) {
	existing := []model.Appointment{
		appt("a-1", "e-1", "2026-09-01", 600, 30, model.AppointmentCancelled),
		appt("a-2", "e-2", "2026-09-01", 600, 30, model.AppointmentConfirmed),
		appt("a-3", "e-1", "2026-09-02", 600, 30, model.AppointmentConfirmed),
	}
	c := Candidate{EmployeeID: "e-1", Date: "2026-09-01", StartMinute: 600, DurationMinutes: 30}
	if HasConflict(c, existing, "") {
		t.Fatal("cancelled rows, other employees and other dates must be ignored")
	}
}

func TestHasConflict_ExcludeSelfOnEdit(t *testing.T) {
	existing := []model.Appointment{
		appt("a-1", "e-1", "2026-09-01", 600, 30, model.AppointmentConfirmed),
	}
	c := Candidate{EmployeeID: "e-1", Date: "2026-09-01", StartMinute: 610, DurationMinutes: 30}
	if HasConflict(c, existing, "a-1") {
		t.Fatal("an edit must not conflict with its own stored row")
	}
	if !HasConflict(c, existing, "a-9") {
		t.Fatal("excluding an unrelated id must not mask the conflict")
	}
}

func TestHasConflict_DefaultDuration(t *testing.T) {
	// Stored row with zero duration is treated as 30 minutes.
	existing := []model.Appointment{
		appt("a-1", "e-1", "2026-09-01", 600, 0, model.AppointmentConfirmed),
	}
	c := Candidate{EmployeeID: "e-1", Date: "2026-09-01", StartMinute: 620, DurationMinutes: 15}
	if !HasConflict(c, existing, "") {
		t.Fatal("expected conflict inside the default 30 minute window")
	}
	c.StartMinute = 630
	if HasConflict(c, existing, "") {
		t.Fatal("expected no conflict at the default window's end")
	}
}

func TestFirstConflict_ReturnsBlockingRow(t *testing.T) {
	existing := []model.Appointment{
		appt("a-1", "e-1", "2026-09-01", 540, 30, model.AppointmentConfirmed),
		appt("a-2", "e-1", "2026-09-01", 600, 45, model.AppointmentConfirmed),
	}
	c := Candidate{EmployeeID: "e-1", Date: "2026-09-01", StartMinute: 615, DurationMinutes: 30}
	hit := FirstConflict(c, existing, "")
	if hit == nil || hit.ID != "a-2" {
		t.Fatalf("expected a-2 to be the blocking row, got %+v", hit)
	}
}

func TestParseClock(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"10:00", 600, false},
		{"00:00", 0, false},
		{"23:59", 1439, false},
		{" 09:30 ", 570, false},
		{"24:00", 0, true},
		{"10:60", 0, true},
		{"1000", 0, true},
		{"", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseClock(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseClock(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseClock(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseClock(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestFormatClock(t *testing.T) {
	if got := FormatClock(615); got != "10:15" {
		t.Fatalf("FormatClock(615) = %q", got)
	}
	if got := FormatClock(0); got != "00:00" {
		t.Fatalf("FormatClock(0) = %q", got)
	}
}

func TestParseDate(t *testing.T) {
	if _, err := ParseDate("2026-09-01"); err != nil {
		t.Fatalf("valid date rejected: %v", err)
	}
	for _, bad := range []string{"2026-13-01", "2026-00-10", "26-09-01", "2026/09/01", ""} {
		if _, err := ParseDate(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

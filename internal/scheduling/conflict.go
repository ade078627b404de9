// Package scheduling holds the pure booking-time rules: interval conflict
// detection and free-slot enumeration. Nothing here touches storage; callers
// fetch the candidate appointment set first.
package scheduling

import "github.com/tunahanclrr/salon-api/internal/model"

// Candidate is a proposed appointment placement for one employee on one date.
type Candidate struct {
	EmployeeID      string
	Date            string // YYYY-MM-DD
	StartMinute     int
	DurationMinutes int
}

// FirstConflict returns the first existing appointment whose interval overlaps
// the candidate's, or nil when the slot is free.
//
// Only appointments for the same employee and date count; cancelled rows and
// the row identified by excludeID (the appointment being edited) are skipped.
// Intervals are half-open: [start, start+duration) overlaps [s, e) iff
// start < e && s < start+duration, so back-to-back bookings do not conflict.
func FirstConflict(c Candidate, existing []model.Appointment, excludeID string) *model.Appointment {
	candEnd := c.StartMinute + c.DurationMinutes
	for i := range existing {
		a := &existing[i]
		if a.EmployeeID != c.EmployeeID || a.Date != c.Date {
			continue
		}
		if a.Status == model.AppointmentCancelled {
			continue
		}
		if excludeID != "" && a.ID == excludeID {
			continue
		}
		if c.StartMinute < a.EndMinute() && a.StartMinute < candEnd {
			return a
		}
	}
	return nil
}

func HasConflict(c Candidate, existing []model.Appointment, excludeID string) bool {
	return FirstConflict(c, existing, excludeID) != nil
}

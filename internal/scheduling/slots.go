package scheduling

import "github.com/tunahanclrr/salon-api/internal/model"

// Interval is a half-open [Start, End) span in minutes since midnight.
type Interval struct {
	Start int
	End   int
}

// BusyIntervals extracts the occupied spans for one employee/date from a set
// of appointments, skipping cancelled rows.
func BusyIntervals(employeeID, date string, appts []model.Appointment) []Interval {
	busy := make([]Interval, 0, len(appts))
	for i := range appts {
		a := &appts[i]
		if a.EmployeeID != employeeID || a.Date != date || a.Status == model.AppointmentCancelled {
			continue
		}
		busy = append(busy, Interval{Start: a.StartMinute, End: a.EndMinute()})
	}
	return busy
}

// AvailableSlots returns slot start minutes within [windowStart, windowEnd)
// where a booking of the given duration would not overlap any busy interval.
// Starts before nowMinute are skipped (pass a negative nowMinute for future
// dates).
func AvailableSlots(windowStart, windowEnd, duration, step int, busy []Interval, nowMinute int) []int {
	if duration <= 0 || step <= 0 {
		return nil
	}
	if windowEnd <= windowStart {
		return nil
	}
	if windowStart+duration > windowEnd {
		return nil
	}

	var slots []int
	for t := windowStart; t+duration <= windowEnd; t += step {
		if t < nowMinute {
			continue
		}
		if !overlapsAny(t, t+duration, busy) {
			slots = append(slots, t)
		}
	}
	return slots
}

func overlapsAny(start, end int, busy []Interval) bool {
	for _, b := range busy {
		if start < b.End && b.Start < end {
			return true
		}
	}
	return false
}

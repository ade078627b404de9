package model

import "time"

const (
	AppointmentPending   = "pending"
	AppointmentConfirmed = "confirmed"
	AppointmentCompleted = "completed"
	AppointmentCancelled = "cancelled"
)

// DefaultAppointmentMinutes is assumed for stored rows with a missing or
// zero duration when checking overlaps.
const DefaultAppointmentMinutes = 30

// ServiceSnapshot is a copy of a catalog service taken at booking time, so
// later catalog edits do not rewrite history.
type ServiceSnapshot struct {
	ServiceID       string  `json:"service_id"`
	Name            string  `json:"name"`
	DurationMinutes int     `json:"duration_minutes"`
	Price           float64 `json:"price"`
}

type Appointment struct {
	ID                  string
	EmployeeID          string
	CustomerID          string
	Date                string // YYYY-MM-DD
	StartMinute         int    // minutes since midnight
	DurationMinutes     int
	Services            []ServiceSnapshot
	Status              string
	CustomerNotArrived  bool
	Notes               string
	CustomerPackageID   string // empty when not drawn from a package
	PackageSessionCount int
	CreatedAt           time.Time
}

func (a *Appointment) EndMinute() int {
	d := a.DurationMinutes
	if d <= 0 {
		d = DefaultAppointmentMinutes
	}
	return a.StartMinute + d
}

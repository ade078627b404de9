package model

import "time"

type Customer struct {
	ID        string
	Name      string
	Phone     string
	Email     string
	Notes     string
	CreatedAt time.Time
}

type Employee struct {
	ID        string
	Name      string
	Phone     string
	Email     string
	Title     string
	IsActive  bool
	CreatedAt time.Time
}

// Service is a catalog entry. Appointments store snapshots, not references.
type Service struct {
	ID              string
	Name            string
	DurationMinutes int
	Price           float64
	CreatedAt       time.Time
}

type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         string // owner|admin|staff
	Permissions  map[string]bool
	CreatedAt    time.Time
}

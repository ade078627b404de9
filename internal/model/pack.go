package model

import "time"

const (
	PackageActive    = "active"
	PackageCompleted = "completed"
	PackageExpired   = "expired"
)

const (
	SaleActive    = "active"
	SaleCompleted = "completed"
	SaleCancelled = "cancelled"
	SaleExpired   = "expired"
)

// Package is a sellable catalog definition: n units of a service at a price.
type Package struct {
	ID              string
	Name            string
	ServiceID       string
	Quantity        int
	Price           float64
	ValidityDays    int // 0 = never expires
	CreatedAt       time.Time
}

// CustomerPackage is the session ledger: purchased vs consumed units for one
// customer. RemainingQuantity and Status are derived and recomputed before
// every persist, never trusted from input.
type CustomerPackage struct {
	ID                string
	CustomerID        string
	PackageID         string
	SaleID            string
	TotalQuantity     int
	UsedQuantity      int
	RemainingQuantity int
	Status            string
	ValidUntil        *time.Time
	CreatedAt         time.Time
}

type SaleService struct {
	ServiceID    string  `json:"service_id"`
	Name         string  `json:"name"`
	Quantity     int     `json:"quantity"`
	UsedQuantity int     `json:"used_quantity"`
	UnitPrice    float64 `json:"unit_price"`
}

type Installment struct {
	Seq     int        `json:"seq"`
	Amount  float64    `json:"amount"`
	DueDate string     `json:"due_date"` // YYYY-MM-DD
	PaidAt  *time.Time `json:"paid_at,omitempty"`
}

type Payment struct {
	ID     string    `json:"id"`
	Amount float64   `json:"amount"`
	Method string    `json:"method"` // cash|card|transfer|stripe
	Note   string    `json:"note,omitempty"`
	PaidAt time.Time `json:"paid_at"`
}

// PackageSale is the money side of a package purchase. RemainingAmount and
// Status are derived the same way the session ledger derives its fields.
type PackageSale struct {
	ID              string
	CustomerID      string
	PackageID       string
	Services        []SaleService
	TotalAmount     float64
	PaidAmount      float64
	RemainingAmount float64
	Installments    []Installment
	Payments        []Payment
	Status          string
	ExpiresAt       *time.Time
	SoldAt          time.Time
}

// Package ledger holds the pure quantity/money bookkeeping for customer
// packages and package sales. Derived fields (remaining counts, statuses) are
// computed here and written back by the service layer before every persist;
// there are no storage hooks.
package ledger

import (
	"time"

	"github.com/tunahanclrr/salon-api/internal/apperr"
	"github.com/tunahanclrr/salon-api/internal/model"
)

func Remaining(cp *model.CustomerPackage) int {
	return cp.TotalQuantity - cp.UsedQuantity
}

func CanUse(cp *model.CustomerPackage, n int) bool {
	return cp.Status == model.PackageActive && Remaining(cp) >= n
}

// Use consumes n sessions. On a shortfall nothing is mutated and the error
// names how many sessions are left.
func Use(cp *model.CustomerPackage, n int) error {
	if n <= 0 {
		return apperr.Validation("session count must be positive, got %d", n)
	}
	if cp.Status == model.PackageExpired {
		return apperr.InsufficientBalance("package %s is expired", cp.ID)
	}
	if !CanUse(cp, n) {
		return apperr.InsufficientBalance("package %s has %d sessions left, need %d", cp.ID, Remaining(cp), n)
	}
	cp.UsedQuantity += n
	cp.RemainingQuantity = Remaining(cp)
	if cp.RemainingQuantity <= 0 {
		cp.Status = model.PackageCompleted
	}
	return nil
}

// Refund returns n previously used sessions (the "add session" operation).
// A completed package with sessions back on balance becomes active again.
func Refund(cp *model.CustomerPackage, n int) error {
	if n <= 0 {
		return apperr.Validation("session count must be positive, got %d", n)
	}
	if cp.UsedQuantity < n {
		return apperr.InvalidRefund("package %s has only %d used sessions, cannot return %d", cp.ID, cp.UsedQuantity, n)
	}
	wasCompleted := cp.Status == model.PackageCompleted
	cp.UsedQuantity -= n
	cp.RemainingQuantity = Remaining(cp)
	if wasCompleted && cp.RemainingQuantity > 0 {
		cp.Status = model.PackageActive
	}
	return nil
}

// Recompute re-derives RemainingQuantity and Status from the base fields.
// Order matters and is the same everywhere: an emptied package is completed
// even when its validity date has also passed; expiry only applies to packages
// that still have sessions left.
func Recompute(cp *model.CustomerPackage, now time.Time) {
	cp.RemainingQuantity = Remaining(cp)
	switch {
	case cp.RemainingQuantity <= 0:
		cp.Status = model.PackageCompleted
	case cp.ValidUntil != nil && cp.ValidUntil.Before(now):
		cp.Status = model.PackageExpired
	default:
		cp.Status = model.PackageActive
	}
}

package ledger

import (
	"time"

	"github.com/tunahanclrr/salon-api/internal/apperr"
	"github.com/tunahanclrr/salon-api/internal/model"
)

// RecomputeSale re-derives RemainingAmount and Status from the base fields.
// Cancelled is sticky; a paid-off sale is completed even when its expiry date
// has also passed (same derivation order as the session ledger).
func RecomputeSale(s *model.PackageSale, now time.Time) {
	s.RemainingAmount = s.TotalAmount - s.PaidAmount
	if s.Status == model.SaleCancelled {
		return
	}
	switch {
	case s.RemainingAmount <= 0:
		s.Status = model.SaleCompleted
	case s.ExpiresAt != nil && s.ExpiresAt.Before(now):
		s.Status = model.SaleExpired
	default:
		s.Status = model.SaleActive
	}
}

// ApplyPayment records a payment against the sale and recomputes the derived
// fields. Zero and negative amounts are rejected; overpayment is allowed (the
// remaining amount goes negative, status completed).
func ApplyPayment(s *model.PackageSale, p model.Payment, now time.Time) error {
	if p.Amount <= 0 {
		return apperr.Validation("payment amount must be positive, got %.2f", p.Amount)
	}
	if s.Status == model.SaleCancelled {
		return apperr.Validation("sale %s is cancelled", s.ID)
	}
	s.Payments = append(s.Payments, p)
	s.PaidAmount += p.Amount
	RecomputeSale(s, now)
	return nil
}

// PayInstallment marks installment seq paid and records the matching payment.
func PayInstallment(s *model.PackageSale, seq int, method string, now time.Time, paymentID string) error {
	for i := range s.Installments {
		ins := &s.Installments[i]
		if ins.Seq != seq {
			continue
		}
		if ins.PaidAt != nil {
			return apperr.Validation("installment %d of sale %s is already paid", seq, s.ID)
		}
		paidAt := now
		ins.PaidAt = &paidAt
		return ApplyPayment(s, model.Payment{
			ID:     paymentID,
			Amount: ins.Amount,
			Method: method,
			PaidAt: now,
		}, now)
	}
	return apperr.NotFound("sale %s has no installment %d", s.ID, seq)
}

// ApplySaleUsage distributes n consumed sessions over the sale's per-service
// counters, preferring services the appointment actually references. Counters
// cap at their quantity; anything past the cap is absorbed by the first
// referenced service so the sale's totals still reflect overall consumption.
func ApplySaleUsage(s *model.PackageSale, serviceIDs []string, n int) {
	left := distribute(s, serviceIDs, n, func(svc *model.SaleService, take int) {
		svc.UsedQuantity += take
	})
	if left > 0 {
		if svc := firstMatch(s, serviceIDs); svc != nil {
			svc.UsedQuantity += left
		}
	}
}

// ReverseSaleUsage undoes ApplySaleUsage for an edit or cancellation.
func ReverseSaleUsage(s *model.PackageSale, serviceIDs []string, n int) {
	for _, id := range serviceIDs {
		if n <= 0 {
			return
		}
		for i := range s.Services {
			svc := &s.Services[i]
			if svc.ServiceID != id {
				continue
			}
			take := svc.UsedQuantity
			if take > n {
				take = n
			}
			svc.UsedQuantity -= take
			n -= take
			break
		}
	}
}

func distribute(s *model.PackageSale, serviceIDs []string, n int, apply func(*model.SaleService, int)) int {
	for _, id := range serviceIDs {
		if n <= 0 {
			break
		}
		for i := range s.Services {
			svc := &s.Services[i]
			if svc.ServiceID != id {
				continue
			}
			room := svc.Quantity - svc.UsedQuantity
			if room > n {
				room = n
			}
			if room > 0 {
				apply(svc, room)
				n -= room
			}
			break
		}
	}
	return n
}

func firstMatch(s *model.PackageSale, serviceIDs []string) *model.SaleService {
	for _, id := range serviceIDs {
		for i := range s.Services {
			if s.Services[i].ServiceID == id {
				return &s.Services[i]
			}
		}
	}
	return nil
}

package ledger

import (
	"testing"
	"time"

	"github.com/tunahanclrr/salon-api/internal/model"
)

func sale() *model.PackageSale {
	return &model.PackageSale{
		ID: "s-1",
		Services: []model.SaleService{
			{ServiceID: "svc-a", Name: "Haircut", Quantity: 5, UnitPrice: 40},
			{ServiceID: "svc-b", Name: "Massage", Quantity: 3, UnitPrice: 60},
		},
		TotalAmount:     380,
		RemainingAmount: 380,
		Status:          model.SaleActive,
	}
}

func TestApplyPayment(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	s := sale()

	if err := ApplyPayment(s, model.Payment{ID: "p-1", Amount: 180, Method: "cash", PaidAt: now}, now); err != nil {
		t.Fatalf("ApplyPayment: %v", err)
	}
	if s.PaidAmount != 180 || s.RemainingAmount != 200 {
		t.Fatalf("unexpected amounts: paid=%.2f remaining=%.2f", s.PaidAmount, s.RemainingAmount)
	}
	if s.Status != model.SaleActive {
		t.Fatalf("expected active, got %s", s.Status)
	}

	if err := ApplyPayment(s, model.Payment{ID: "p-2", Amount: 200, Method: "card", PaidAt: now}, now); err != nil {
		t.Fatalf("ApplyPayment: %v", err)
	}
	if s.RemainingAmount != 0 || s.Status != model.SaleCompleted {
		t.Fatalf("expected completed with zero remaining, got %s / %.2f", s.Status, s.RemainingAmount)
	}
	if len(s.Payments) != 2 {
		t.Fatalf("expected 2 recorded payments, got %d", len(s.Payments))
	}
}

func TestApplyPayment_Rejections(t *testing.T) {
	now := time.Now().UTC()
	s := sale()
	if err := ApplyPayment(s, model.Payment{Amount: 0}, now); err == nil {
		t.Fatal("expected rejection for zero amount")
	}
	s.Status = model.SaleCancelled
	if err := ApplyPayment(s, model.Payment{Amount: 10}, now); err == nil {
		t.Fatal("expected rejection for cancelled sale")
	}
	if s.PaidAmount != 0 {
		t.Fatalf("state mutated on rejected payment: %+v", s)
	}
}

func TestPayInstallment(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	s := sale()
	s.Installments = []model.Installment{
		{Seq: 1, Amount: 190, DueDate: "2026-09-15"},
		{Seq: 2, Amount: 190, DueDate: "2026-10-15"},
	}

	if err := PayInstallment(s, 1, "card", now, "p-1"); err != nil {
		t.Fatalf("PayInstallment: %v", err)
	}
	if s.Installments[0].PaidAt == nil {
		t.Fatal("installment not marked paid")
	}
	if s.PaidAmount != 190 {
		t.Fatalf("expected paid 190, got %.2f", s.PaidAmount)
	}

	if err := PayInstallment(s, 1, "card", now, "p-2"); err == nil {
		t.Fatal("expected rejection for already-paid installment")
	}
	if err := PayInstallment(s, 9, "card", now, "p-3"); err == nil {
		t.Fatal("expected rejection for unknown installment")
	}
}

func TestRecomputeSale_Order(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)

	// Paid off and past expiry: completed wins.
	s := sale()
	s.PaidAmount = s.TotalAmount
	s.ExpiresAt = &past
	RecomputeSale(s, now)
	if s.Status != model.SaleCompleted {
		t.Fatalf("expected completed, got %s", s.Status)
	}

	// Balance owing and past expiry: expired.
	s = sale()
	s.ExpiresAt = &past
	RecomputeSale(s, now)
	if s.Status != model.SaleExpired {
		t.Fatalf("expected expired, got %s", s.Status)
	}

	// Cancelled is sticky.
	s = sale()
	s.Status = model.SaleCancelled
	s.PaidAmount = s.TotalAmount
	RecomputeSale(s, now)
	if s.Status != model.SaleCancelled {
		t.Fatalf("cancelled must be sticky, got %s", s.Status)
	}
}

func TestSaleUsageDistribution(t *testing.T) {
	s := sale()

	ApplySaleUsage(s, []string{"svc-a"}, 2)
	if s.Services[0].UsedQuantity != 2 || s.Services[1].UsedQuantity != 0 {
		t.Fatalf("unexpected usage: %+v", s.Services)
	}

	// Consumption past the per-service cap sticks to the referenced service.
	ApplySaleUsage(s, []string{"svc-a"}, 4)
	if s.Services[0].UsedQuantity != 6 {
		t.Fatalf("expected overflow absorbed by svc-a, got %+v", s.Services)
	}

	// Multi-service appointments draw from each referenced counter.
	s = sale()
	ApplySaleUsage(s, []string{"svc-a", "svc-b"}, 2)
	if s.Services[0].UsedQuantity+s.Services[1].UsedQuantity != 2 {
		t.Fatalf("expected 2 units consumed, got %+v", s.Services)
	}

	ReverseSaleUsage(s, []string{"svc-a", "svc-b"}, 2)
	if s.Services[0].UsedQuantity != 0 || s.Services[1].UsedQuantity != 0 {
		t.Fatalf("expected full reversal, got %+v", s.Services)
	}
}

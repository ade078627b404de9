package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/tunahanclrr/salon-api/internal/apperr"
	"github.com/tunahanclrr/salon-api/internal/model"
)

func pack(total, used int, status string) *model.CustomerPackage {
	return &model.CustomerPackage{
		ID:                "cp-1",
		TotalQuantity:     total,
		UsedQuantity:      used,
		RemainingQuantity: total - used,
		Status:            status,
	}
}

func kindOf(t *testing.T, err error) apperr.Kind {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error")
	}
	var e *apperr.Error
	if !errors.As(err, &e) {
		t.Fatalf("expected apperr.Error, got %T: %v", err, err)
	}
	return e.Kind
}

func TestUse_ExhaustsAndCompletes(t *testing.T) {
	cp := pack(5, 3, model.PackageActive)
	if err := Use(cp, 2); err != nil {
		t.Fatalf("Use(2): %v", err)
	}
	if cp.UsedQuantity != 5 || cp.RemainingQuantity != 0 {
		t.Fatalf("unexpected counts: used=%d remaining=%d", cp.UsedQuantity, cp.RemainingQuantity)
	}
	if cp.Status != model.PackageCompleted {
		t.Fatalf("expected completed, got %s", cp.Status)
	}
}

func TestRefund_ReactivatesCompleted(t *testing.T) {
	cp := pack(5, 5, model.PackageCompleted)
	if err := Refund(cp, 2); err != nil {
		t.Fatalf("Refund(2): %v", err)
	}
	if cp.UsedQuantity != 3 || cp.RemainingQuantity != 2 {
		t.Fatalf("unexpected counts: used=%d remaining=%d", cp.UsedQuantity, cp.RemainingQuantity)
	}
	if cp.Status != model.PackageActive {
		t.Fatalf("expected active, got %s", cp.Status)
	}
}

func TestUse_InsufficientLeavesStateUnchanged(t *testing.T) {
	cp := pack(5, 5, model.PackageCompleted)
	err := Use(cp, 1)
	if kindOf(t, err) != apperr.KindInsufficientBalance {
		t.Fatalf("expected InsufficientBalance, got %v", err)
	}
	if cp.UsedQuantity != 5 || cp.RemainingQuantity != 0 || cp.Status != model.PackageCompleted {
		t.Fatalf("state mutated on failed use: %+v", cp)
	}
}

func TestRefund_MoreThanUsedLeavesStateUnchanged(t *testing.T) {
	cp := pack(5, 1, model.PackageActive)
	err := Refund(cp, 2)
	if kindOf(t, err) != apperr.KindInvalidRefund {
		t.Fatalf("expected InvalidRefund, got %v", err)
	}
	if cp.UsedQuantity != 1 || cp.RemainingQuantity != 4 {
		t.Fatalf("state mutated on failed refund: %+v", cp)
	}
}

func TestCanUse(t *testing.T) {
	cases := []struct {
		name string
		cp   *model.CustomerPackage
		n    int
		want bool
	}{
		{"active with balance", pack(5, 2, model.PackageActive), 3, true},
		{"active short one", pack(5, 3, model.PackageActive), 3, false},
		{"expired", pack(5, 0, model.PackageExpired), 1, false},
		{"completed", pack(5, 5, model.PackageCompleted), 1, false},
	}
	for _, c := range cases {
		if got := CanUse(c.cp, c.n); got != c.want {
			t.Fatalf("%s: CanUse = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestUse_ExpiredPackage(t *testing.T) {
	cp := pack(5, 1, model.PackageExpired)
	err := Use(cp, 1)
	if kindOf(t, err) != apperr.KindInsufficientBalance {
		t.Fatalf("expected InsufficientBalance for expired package, got %v", err)
	}
}

func TestRemainingInvariantAcrossSequences(t *testing.T) {
	cp := pack(10, 0, model.PackageActive)
	steps := []struct {
		use bool
		n   int
	}{
		{true, 3}, {true, 2}, {false, 1}, {true, 6}, {false, 4}, {true, 2},
	}
	for i, s := range steps {
		var err error
		if s.use {
			err = Use(cp, s.n)
		} else {
			err = Refund(cp, s.n)
		}
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if cp.RemainingQuantity != cp.TotalQuantity-cp.UsedQuantity {
			t.Fatalf("step %d: remaining=%d, want %d", i, cp.RemainingQuantity, cp.TotalQuantity-cp.UsedQuantity)
		}
	}
}

func TestRecompute_OrderAndIdempotence(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)

	// Emptied and past validity: completed wins over expired.
	cp := pack(5, 5, model.PackageActive)
	cp.ValidUntil = &past
	Recompute(cp, now)
	if cp.Status != model.PackageCompleted {
		t.Fatalf("expected completed to win over expired, got %s", cp.Status)
	}

	// Sessions left and past validity: expired.
	cp = pack(5, 2, model.PackageActive)
	cp.ValidUntil = &past
	Recompute(cp, now)
	if cp.Status != model.PackageExpired {
		t.Fatalf("expected expired, got %s", cp.Status)
	}

	// Recompute twice yields the same result.
	before := *cp
	Recompute(cp, now)
	if *cp != before {
		t.Fatalf("recompute is not idempotent: %+v vs %+v", before, *cp)
	}

	// No validity date: stays active.
	cp = pack(5, 2, model.PackageExpired)
	Recompute(cp, now)
	if cp.Status != model.PackageActive {
		t.Fatalf("expected active without validity date, got %s", cp.Status)
	}
}

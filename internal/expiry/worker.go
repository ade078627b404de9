// Package expiry sweeps overdue package ledgers and sales into their expired
// state so reads never depend on a lazy recompute.
package expiry

import (
	"context"
	"log/slog"
	"time"

	"github.com/tunahanclrr/salon-api/internal/ledger"
	"github.com/tunahanclrr/salon-api/internal/outbox"
	"github.com/tunahanclrr/salon-api/internal/storage"
	"github.com/tunahanclrr/salon-api/libs/db"
)

type Worker struct {
	pool       *db.Pool
	packs      *storage.CustomerPackageRepository
	sales      *storage.SaleRepository
	outbox     *outbox.Repository
	logger     *slog.Logger
	sweepEvery time.Duration
	batchSize  int
	now        func() time.Time
}

type Config struct {
	SweepEvery time.Duration
	BatchSize  int
}

func NewWorker(pool *db.Pool, packs *storage.CustomerPackageRepository, sales *storage.SaleRepository, outboxRepo *outbox.Repository, logger *slog.Logger, cfg Config) *Worker {
	if cfg.SweepEvery <= 0 {
		cfg.SweepEvery = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Worker{
		pool:       pool,
		packs:      packs,
		sales:      sales,
		outbox:     outboxRepo,
		logger:     logger,
		sweepEvery: cfg.SweepEvery,
		batchSize:  cfg.BatchSize,
		now:        time.Now,
	}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Sweep(ctx); err != nil {
				w.logger.Error("expiry sweep failed", "err", err)
			}
		}
	}
}

// Sweep expires one batch of ledgers and sales in a single transaction.
func (w *Worker) Sweep(ctx context.Context) error {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := w.now()

	packs, err := w.packs.ClaimExpired(ctx, tx, now, w.batchSize)
	if err != nil {
		return err
	}
	for i := range packs {
		cp := &packs[i]
		ledger.Recompute(cp, now)
		if err := w.packs.Update(ctx, tx, cp); err != nil {
			return err
		}
		evt, err := outbox.NewEvent("customer_package", cp.ID, outbox.EventPackageExpired, map[string]string{
			"customer_package_id": cp.ID,
			"customer_id":         cp.CustomerID,
			"status":              cp.Status,
		})
		if err != nil {
			return err
		}
		if err := w.outbox.Insert(ctx, tx, evt); err != nil {
			return err
		}
	}

	sales, err := w.sales.ClaimExpired(ctx, tx, now, w.batchSize)
	if err != nil {
		return err
	}
	for i := range sales {
		sale := &sales[i]
		ledger.RecomputeSale(sale, now)
		if err := w.sales.Update(ctx, tx, sale); err != nil {
			return err
		}
	}

	if len(packs) > 0 || len(sales) > 0 {
		w.logger.Info("expiry sweep", "packages", len(packs), "sales", len(sales))
	}
	return tx.Commit(ctx)
}

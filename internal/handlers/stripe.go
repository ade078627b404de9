package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stripe/stripe-go/v79"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/webhook"
	"github.com/tunahanclrr/salon-api/internal/ledger"
	"github.com/tunahanclrr/salon-api/internal/model"
	"github.com/tunahanclrr/salon-api/internal/outbox"
	"github.com/tunahanclrr/salon-api/internal/storage"
	"github.com/tunahanclrr/salon-api/libs/db"
)

type StripeConfig struct {
	SecretKey        string
	WebhookSecret    string
	WebhookTolerance time.Duration
	Currency         string
	SuccessURL       string
	CancelURL        string
}

type StripeHandler struct {
	pool     *db.Pool
	sales    *storage.SaleRepository
	checkout *storage.CheckoutRepository
	outbox   *outbox.Repository
	logger   *slog.Logger
	cfg      StripeConfig
}

func NewStripeHandler(pool *db.Pool, sales *storage.SaleRepository, checkout *storage.CheckoutRepository, outboxRepo *outbox.Repository, logger *slog.Logger, cfg StripeConfig) *StripeHandler {
	if cfg.WebhookTolerance <= 0 {
		cfg.WebhookTolerance = 5 * time.Minute
	}
	if cfg.Currency == "" {
		cfg.Currency = "try"
	}
	return &StripeHandler{pool: pool, sales: sales, checkout: checkout, outbox: outboxRepo, logger: logger, cfg: cfg}
}

type checkoutResponse struct {
	SessionID string  `json:"session_id"`
	URL       string  `json:"url"`
	Amount    float64 `json:"amount"`
}

// Checkout opens a Stripe hosted-checkout session for the sale's remaining
// balance. POST /api/v1/sales/checkout?id=.
func (h *StripeHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if strings.TrimSpace(h.cfg.SecretKey) == "" {
		http.Error(w, "stripe not configured", http.StatusServiceUnavailable)
		return
	}
	saleID := strings.TrimSpace(r.URL.Query().Get("id"))
	if saleID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "id is required"})
		return
	}

	sale, err := h.sales.Get(r.Context(), saleID)
	if err != nil {
		writeError(w, err)
		return
	}
	if sale.Status == model.SaleCancelled {
		writeJSON(w, http.StatusConflict, errorBody{Error: "sale is cancelled"})
		return
	}
	if sale.RemainingAmount <= 0 {
		writeJSON(w, http.StatusConflict, errorBody{Error: "sale is fully paid"})
		return
	}
	amount := sale.RemainingAmount

	stripe.Key = h.cfg.SecretKey
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(h.cfg.SuccessURL),
		CancelURL:         stripe.String(h.cfg.CancelURL),
		ClientReferenceID: stripe.String(saleID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(h.cfg.Currency),
					UnitAmount: stripe.Int64(int64(math.Round(amount * 100))),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("Package sale " + saleID),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: map[string]string{
			"sale_id": saleID,
		},
	}
	params.AddExpand("url")
	if idemKey := strings.TrimSpace(r.Header.Get("Idempotency-Key")); idemKey != "" {
		params.IdempotencyKey = stripe.String(idemKey)
	}

	sess, err := checkoutsession.New(params)
	if err != nil {
		h.logger.Error("stripe checkout session create failed", "err", err, "sale_id", saleID)
		http.Error(w, "failed to create checkout session", http.StatusBadGateway)
		return
	}

	ctx := r.Context()
	tx, err := h.pool.Begin(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := h.checkout.UpsertSession(ctx, tx, storage.CheckoutSession{
		StripeSessionID: sess.ID,
		SaleID:          saleID,
		Amount:          amount,
		Status:          "open",
		URL:             sess.URL,
	}); err != nil {
		writeError(w, err)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, checkoutResponse{SessionID: sess.ID, URL: sess.URL, Amount: amount})
}

// Webhook handles Stripe callbacks. Signature verification is the auth; the
// provider_events table drops replayed deliveries.
func (h *StripeHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if strings.TrimSpace(h.cfg.WebhookSecret) == "" {
		http.Error(w, "stripe webhook not configured", http.StatusServiceUnavailable)
		return
	}
	sigHeader := r.Header.Get("Stripe-Signature")
	if strings.TrimSpace(sigHeader) == "" {
		http.Error(w, "missing Stripe-Signature header", http.StatusBadRequest)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	evt, err := webhook.ConstructEventWithTolerance(body, sigHeader, h.cfg.WebhookSecret, h.cfg.WebhookTolerance)
	if err != nil {
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}
	occurredAt := time.Unix(evt.Created, 0).UTC()
	evtType := string(evt.Type)
	h.logger.Info("stripe event received", "provider_event_id", evt.ID, "event_type", evtType)

	ctx := r.Context()
	tx, err := h.pool.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.checkout.InsertProviderEvent(ctx, tx, storage.ProviderEvent{
		Provider:        "stripe",
		ProviderEventID: evt.ID,
		EventType:       evtType,
		Payload:         body,
	}); err != nil {
		if errors.Is(err, storage.ErrDuplicateProviderEvent) {
			_ = tx.Commit(ctx)
			writeJSON(w, http.StatusOK, map[string]any{"status": "duplicate"})
			return
		}
		http.Error(w, "failed to record provider event", http.StatusInternalServerError)
		return
	}

	switch evtType {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(evt.Data.Raw, &session); err != nil {
			h.logger.Error("stripe: invalid checkout session payload", "err", err)
			break
		}
		if err := h.applyCompleted(ctx, tx, session, occurredAt); err != nil {
			http.Error(w, "failed to apply payment", http.StatusInternalServerError)
			return
		}
	case "checkout.session.expired":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(evt.Data.Raw, &session); err != nil {
			h.logger.Error("stripe: invalid checkout session payload", "err", err)
			break
		}
		_ = h.checkout.MarkSessionExpired(ctx, tx, session.ID, occurredAt)
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// applyCompleted runs inside the webhook transaction so the dedupe row, the
// session state and the payment all land together.
func (h *StripeHandler) applyCompleted(ctx context.Context, tx pgx.Tx, session stripe.CheckoutSession, occurredAt time.Time) error {
	saleID := strings.TrimSpace(session.Metadata["sale_id"])
	if saleID == "" {
		h.logger.Warn("stripe: checkout session missing sale_id metadata", "session_id", session.ID)
		return nil
	}

	if err := h.checkout.MarkSessionCompleted(ctx, tx, session.ID, occurredAt); err != nil {
		return err
	}
	sale, err := h.sales.GetForUpdate(ctx, tx, saleID)
	if err != nil {
		if storage.IsNotFound(err) {
			h.logger.Warn("stripe: sale not found for completed session", "sale_id", saleID)
			return nil
		}
		return err
	}

	amount := float64(session.AmountTotal) / 100
	if err := ledger.ApplyPayment(&sale, model.Payment{
		ID:     uuid.NewString(),
		Amount: amount,
		Method: "stripe",
		Note:   "checkout session " + session.ID,
		PaidAt: occurredAt,
	}, occurredAt); err != nil {
		h.logger.Warn("stripe: payment not applied", "sale_id", saleID, "err", err)
		return nil
	}
	ledger.RecomputeSale(&sale, occurredAt)
	if err := h.sales.Update(ctx, tx, &sale); err != nil {
		return err
	}

	evt, err := outbox.NewEvent("package_sale", saleID, outbox.EventSalePaid, map[string]any{
		"sale_id":   saleID,
		"amount":    amount,
		"method":    "stripe",
		"remaining": sale.RemainingAmount,
		"status":    sale.Status,
	})
	if err != nil {
		return err
	}
	return h.outbox.Insert(ctx, tx, evt)
}

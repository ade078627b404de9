package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tunahanclrr/salon-api/internal/apperr"
	"github.com/tunahanclrr/salon-api/internal/ledger"
	"github.com/tunahanclrr/salon-api/internal/model"
	"github.com/tunahanclrr/salon-api/internal/outbox"
	"github.com/tunahanclrr/salon-api/internal/scheduling"
	"github.com/tunahanclrr/salon-api/internal/storage"
	"github.com/tunahanclrr/salon-api/libs/db"
)

type SaleHandler struct {
	pool      *db.Pool
	sales     *storage.SaleRepository
	packs     *storage.CustomerPackageRepository
	packages  *storage.PackageRepository
	services  *storage.ServiceRepository
	customers *storage.CustomerRepository
	outbox    *outbox.Repository
	logger    *slog.Logger
}

func NewSaleHandler(
	pool *db.Pool,
	sales *storage.SaleRepository,
	packs *storage.CustomerPackageRepository,
	packages *storage.PackageRepository,
	services *storage.ServiceRepository,
	customers *storage.CustomerRepository,
	outboxRepo *outbox.Repository,
	logger *slog.Logger,
) *SaleHandler {
	return &SaleHandler{
		pool:      pool,
		sales:     sales,
		packs:     packs,
		packages:  packages,
		services:  services,
		customers: customers,
		outbox:    outboxRepo,
		logger:    logger,
	}
}

type installmentRequest struct {
	Amount  float64 `json:"amount"`
	DueDate string  `json:"due_date"` // YYYY-MM-DD
}

type createSaleRequest struct {
	CustomerID   string               `json:"customer_id"`
	PackageID    string               `json:"package_id"`
	TotalAmount  float64              `json:"total_amount"` // 0 = package list price
	DownPayment  float64              `json:"down_payment"`
	Method       string               `json:"method"`
	Installments []installmentRequest `json:"installments"`
}

type saleResponse struct {
	SaleID            string              `json:"sale_id"`
	CustomerID        string              `json:"customer_id"`
	PackageID         string              `json:"package_id"`
	CustomerPackageID string              `json:"customer_package_id,omitempty"`
	Services          []model.SaleService `json:"services"`
	TotalAmount       float64             `json:"total_amount"`
	PaidAmount        float64             `json:"paid_amount"`
	RemainingAmount   float64             `json:"remaining_amount"`
	Installments      []model.Installment `json:"installments,omitempty"`
	Payments          []model.Payment     `json:"payments,omitempty"`
	Status            string              `json:"status"`
	ExpiresAt         string              `json:"expires_at,omitempty"`
	SoldAt            string              `json:"sold_at"`
}

func saleToResponse(s model.PackageSale, customerPackageID string) saleResponse {
	resp := saleResponse{
		SaleID:            s.ID,
		CustomerID:        s.CustomerID,
		PackageID:         s.PackageID,
		CustomerPackageID: customerPackageID,
		Services:          s.Services,
		TotalAmount:       s.TotalAmount,
		PaidAmount:        s.PaidAmount,
		RemainingAmount:   s.RemainingAmount,
		Installments:      s.Installments,
		Payments:          s.Payments,
		Status:            s.Status,
		SoldAt:            s.SoldAt.Format(time.RFC3339),
	}
	if s.ExpiresAt != nil {
		resp.ExpiresAt = s.ExpiresAt.Format(time.RFC3339)
	}
	return resp
}

// Collection handles /api/v1/sales: GET lists, POST sells a package. Selling
// writes the sale, the session ledger and the outbox event in one transaction.
func (h *SaleHandler) Collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if customerID := strings.TrimSpace(r.URL.Query().Get("customer_id")); customerID != "" {
			sales, err := h.sales.ListByCustomer(r.Context(), customerID)
			if err != nil {
				writeError(w, err)
				return
			}
			writeSales(w, sales)
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		sales, err := h.sales.List(r.Context(), strings.TrimSpace(r.URL.Query().Get("status")), limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeSales(w, sales)
	case http.MethodPost:
		h.create(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *SaleHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json body"})
		return
	}
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	req.PackageID = strings.TrimSpace(req.PackageID)
	if req.CustomerID == "" || req.PackageID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "customer_id and package_id are required"})
		return
	}
	if req.DownPayment < 0 || req.TotalAmount < 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "amounts must not be negative"})
		return
	}
	for _, inst := range req.Installments {
		if inst.Amount <= 0 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "installment amounts must be positive"})
			return
		}
		if _, err := scheduling.ParseDate(inst.DueDate); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "installment due_date must be YYYY-MM-DD"})
			return
		}
	}

	ctx := r.Context()
	exists, err := h.customers.Exists(ctx, req.CustomerID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !exists {
		writeError(w, apperr.NotFound("customer %s not found", req.CustomerID))
		return
	}
	pkg, err := h.packages.Get(ctx, req.PackageID)
	if err != nil {
		writeError(w, err)
		return
	}
	svc, err := h.services.Get(ctx, pkg.ServiceID)
	if err != nil {
		writeError(w, err)
		return
	}

	now := time.Now()
	total := req.TotalAmount
	if total == 0 {
		total = pkg.Price
	}
	sale := model.PackageSale{
		CustomerID: req.CustomerID,
		PackageID:  pkg.ID,
		Services: []model.SaleService{{
			ServiceID: svc.ID,
			Name:      svc.Name,
			Quantity:  pkg.Quantity,
			UnitPrice: total / float64(pkg.Quantity),
		}},
		TotalAmount: total,
		Status:      model.SaleActive,
		SoldAt:      now,
	}
	for i, inst := range req.Installments {
		due, _ := scheduling.ParseDate(inst.DueDate)
		sale.Installments = append(sale.Installments, model.Installment{
			Seq:     i + 1,
			Amount:  inst.Amount,
			DueDate: due,
		})
	}
	var validUntil *time.Time
	if pkg.ValidityDays > 0 {
		t := now.AddDate(0, 0, pkg.ValidityDays)
		validUntil = &t
		sale.ExpiresAt = &t
	}
	if req.DownPayment > 0 {
		if err := ledger.ApplyPayment(&sale, model.Payment{
			ID:     uuid.NewString(),
			Amount: req.DownPayment,
			Method: paymentMethod(req.Method),
			PaidAt: now,
		}, now); err != nil {
			writeError(w, err)
			return
		}
	}
	ledger.RecomputeSale(&sale, now)

	tx, err := h.pool.Begin(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	saleID, err := h.sales.Create(ctx, tx, &sale)
	if err != nil {
		writeError(w, err)
		return
	}
	sale.ID = saleID

	cp := model.CustomerPackage{
		CustomerID:        req.CustomerID,
		PackageID:         pkg.ID,
		SaleID:            saleID,
		TotalQuantity:     pkg.Quantity,
		RemainingQuantity: pkg.Quantity,
		Status:            model.PackageActive,
		ValidUntil:        validUntil,
	}
	cpID, err := h.packs.Create(ctx, tx, &cp)
	if err != nil {
		writeError(w, err)
		return
	}

	evt, err := outbox.NewEvent("package_sale", saleID, outbox.EventPackageSold, map[string]any{
		"sale_id":             saleID,
		"customer_package_id": cpID,
		"customer_id":         req.CustomerID,
		"package_id":          pkg.ID,
		"total_amount":        sale.TotalAmount,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.outbox.Insert(ctx, tx, evt); err != nil {
		writeError(w, err)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("package sold",
		"sale_id", saleID,
		"customer_id", req.CustomerID,
		"package_id", pkg.ID,
		"total", sale.TotalAmount)
	writeJSON(w, http.StatusCreated, saleToResponse(sale, cpID))
}

func (h *SaleHandler) Item(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "id is required"})
		return
	}
	sale, err := h.sales.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saleToResponse(sale, ""))
}

type paymentRequest struct {
	Amount float64 `json:"amount"`
	Method string  `json:"method"`
	Note   string  `json:"note"`
}

// AddPayment records a free-form payment against the sale.
func (h *SaleHandler) AddPayment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "id is required"})
		return
	}
	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json body"})
		return
	}

	sale, err := h.withSale(w, r, id, func(sale *model.PackageSale, now time.Time) error {
		return ledger.ApplyPayment(sale, model.Payment{
			ID:     uuid.NewString(),
			Amount: req.Amount,
			Method: paymentMethod(req.Method),
			Note:   req.Note,
			PaidAt: now,
		}, now)
	})
	if err != nil {
		return
	}
	writeJSON(w, http.StatusOK, saleToResponse(sale, ""))
}

type payInstallmentRequest struct {
	Seq    int    `json:"seq"`
	Method string `json:"method"`
}

func (h *SaleHandler) PayInstallment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "id is required"})
		return
	}
	var req payInstallmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json body"})
		return
	}

	sale, err := h.withSale(w, r, id, func(sale *model.PackageSale, now time.Time) error {
		return ledger.PayInstallment(sale, req.Seq, paymentMethod(req.Method), now, uuid.NewString())
	})
	if err != nil {
		return
	}
	writeJSON(w, http.StatusOK, saleToResponse(sale, ""))
}

// Cancel marks the sale cancelled. Cancelled is sticky: later payments and
// recomputes never resurrect the sale.
func (h *SaleHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "id is required"})
		return
	}

	sale, err := h.withSale(w, r, id, func(sale *model.PackageSale, now time.Time) error {
		sale.Status = model.SaleCancelled
		return nil
	})
	if err != nil {
		return
	}
	h.logger.Info("sale cancelled", "sale_id", id)
	writeJSON(w, http.StatusOK, saleToResponse(sale, ""))
}

// withSale runs mutate against a row-locked sale and persists the result.
// Errors are already written to the response when err != nil.
func (h *SaleHandler) withSale(w http.ResponseWriter, r *http.Request, id string, mutate func(*model.PackageSale, time.Time) error) (model.PackageSale, error) {
	ctx := r.Context()
	tx, err := h.pool.Begin(ctx)
	if err != nil {
		writeError(w, err)
		return model.PackageSale{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	sale, err := h.sales.GetForUpdate(ctx, tx, id)
	if err != nil {
		writeError(w, err)
		return model.PackageSale{}, err
	}
	now := time.Now()
	if err := mutate(&sale, now); err != nil {
		writeError(w, err)
		return model.PackageSale{}, err
	}
	ledger.RecomputeSale(&sale, now)
	if err := h.sales.Update(ctx, tx, &sale); err != nil {
		writeError(w, err)
		return model.PackageSale{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		writeError(w, err)
		return model.PackageSale{}, err
	}
	return sale, nil
}

func paymentMethod(m string) string {
	switch strings.ToLower(strings.TrimSpace(m)) {
	case "card":
		return "card"
	case "transfer":
		return "transfer"
	case "stripe":
		return "stripe"
	default:
		return "cash"
	}
}

func writeSales(w http.ResponseWriter, sales []model.PackageSale) {
	out := make([]saleResponse, 0, len(sales))
	for _, s := range sales {
		out = append(out, saleToResponse(s, ""))
	}
	writeJSON(w, http.StatusOK, out)
}

package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tunahanclrr/salon-api/internal/ledger"
	"github.com/tunahanclrr/salon-api/internal/model"
	"github.com/tunahanclrr/salon-api/internal/storage"
	"github.com/tunahanclrr/salon-api/libs/db"
)

type CustomerPackageHandler struct {
	pool   *db.Pool
	packs  *storage.CustomerPackageRepository
	sales  *storage.SaleRepository
	logger *slog.Logger
}

func NewCustomerPackageHandler(pool *db.Pool, packs *storage.CustomerPackageRepository, sales *storage.SaleRepository, logger *slog.Logger) *CustomerPackageHandler {
	return &CustomerPackageHandler{pool: pool, packs: packs, sales: sales, logger: logger}
}

type customerPackageResponse struct {
	CustomerPackageID string `json:"customer_package_id"`
	CustomerID        string `json:"customer_id"`
	PackageID         string `json:"package_id"`
	SaleID            string `json:"sale_id,omitempty"`
	TotalQuantity     int    `json:"total_quantity"`
	UsedQuantity      int    `json:"used_quantity"`
	RemainingQuantity int    `json:"remaining_quantity"`
	Status            string `json:"status"`
	ValidUntil        string `json:"valid_until,omitempty"`
	CreatedAt         string `json:"created_at"`
}

func customerPackageToResponse(cp model.CustomerPackage) customerPackageResponse {
	resp := customerPackageResponse{
		CustomerPackageID: cp.ID,
		CustomerID:        cp.CustomerID,
		PackageID:         cp.PackageID,
		SaleID:            cp.SaleID,
		TotalQuantity:     cp.TotalQuantity,
		UsedQuantity:      cp.UsedQuantity,
		RemainingQuantity: cp.RemainingQuantity,
		Status:            cp.Status,
		CreatedAt:         cp.CreatedAt.Format(time.RFC3339),
	}
	if cp.ValidUntil != nil {
		resp.ValidUntil = cp.ValidUntil.Format(time.RFC3339)
	}
	return resp
}

// List handles GET /api/v1/customer-packages?customer_id=.
func (h *CustomerPackageHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	customerID := strings.TrimSpace(r.URL.Query().Get("customer_id"))
	if customerID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "customer_id is required"})
		return
	}
	packs, err := h.packs.ListByCustomer(r.Context(), customerID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]customerPackageResponse, 0, len(packs))
	for _, cp := range packs {
		out = append(out, customerPackageToResponse(cp))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *CustomerPackageHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "id is required"})
		return
	}
	cp, err := h.packs.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, customerPackageToResponse(cp))
}

type sessionRequest struct {
	Sessions int `json:"sessions"`
}

// UseSessions consumes sessions outside of an appointment (walk-in usage).
func (h *CustomerPackageHandler) UseSessions(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, false)
}

// AddSessions returns previously used sessions to the balance.
func (h *CustomerPackageHandler) AddSessions(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, true)
}

func (h *CustomerPackageHandler) adjust(w http.ResponseWriter, r *http.Request, refund bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "id is required"})
		return
	}
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json body"})
		return
	}
	if req.Sessions <= 0 {
		req.Sessions = 1
	}

	ctx := r.Context()
	tx, err := h.pool.Begin(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cp, err := h.packs.GetForUpdate(ctx, tx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	now := time.Now()
	ledger.Recompute(&cp, now)
	if refund {
		err = ledger.Refund(&cp, req.Sessions)
	} else {
		err = ledger.Use(&cp, req.Sessions)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	if refund {
		ledger.Recompute(&cp, now)
	}
	if err := h.packs.Update(ctx, tx, &cp); err != nil {
		writeError(w, err)
		return
	}

	if cp.SaleID != "" {
		sale, err := h.sales.GetForUpdate(ctx, tx, cp.SaleID)
		if err != nil && !storage.IsNotFound(err) {
			writeError(w, err)
			return
		}
		if err == nil {
			ids := saleServiceIDs(sale)
			if refund {
				ledger.ReverseSaleUsage(&sale, ids, req.Sessions)
			} else {
				ledger.ApplySaleUsage(&sale, ids, req.Sessions)
			}
			if err := h.sales.Update(ctx, tx, &sale); err != nil {
				writeError(w, err)
				return
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		writeError(w, err)
		return
	}
	h.logger.Info("package sessions adjusted",
		"customer_package_id", cp.ID,
		"sessions", req.Sessions,
		"refund", refund,
		"remaining", cp.RemainingQuantity)
	writeJSON(w, http.StatusOK, customerPackageToResponse(cp))
}

func saleServiceIDs(s model.PackageSale) []string {
	ids := make([]string, 0, len(s.Services))
	for _, svc := range s.Services {
		ids = append(ids, svc.ServiceID)
	}
	return ids
}

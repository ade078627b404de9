package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tunahanclrr/salon-api/internal/model"
	"github.com/tunahanclrr/salon-api/internal/storage"
)

type PackageHandler struct {
	packages *storage.PackageRepository
	services *storage.ServiceRepository
	logger   *slog.Logger
}

func NewPackageHandler(packages *storage.PackageRepository, services *storage.ServiceRepository, logger *slog.Logger) *PackageHandler {
	return &PackageHandler{packages: packages, services: services, logger: logger}
}

type packageRequest struct {
	Name         string  `json:"name"`
	ServiceID    string  `json:"service_id"`
	Quantity     int     `json:"quantity"`
	Price        float64 `json:"price"`
	ValidityDays int     `json:"validity_days"`
}

type packageResponse struct {
	PackageID    string  `json:"package_id"`
	Name         string  `json:"name"`
	ServiceID    string  `json:"service_id"`
	Quantity     int     `json:"quantity"`
	Price        float64 `json:"price"`
	ValidityDays int     `json:"validity_days"`
	CreatedAt    string  `json:"created_at"`
}

func packageToResponse(p model.Package) packageResponse {
	return packageResponse{
		PackageID:    p.ID,
		Name:         p.Name,
		ServiceID:    p.ServiceID,
		Quantity:     p.Quantity,
		Price:        p.Price,
		ValidityDays: p.ValidityDays,
		CreatedAt:    p.CreatedAt.Format(time.RFC3339),
	}
}

func (r *packageRequest) validate() string {
	r.Name = strings.TrimSpace(r.Name)
	r.ServiceID = strings.TrimSpace(r.ServiceID)
	if r.Name == "" {
		return "name is required"
	}
	if r.ServiceID == "" {
		return "service_id is required"
	}
	if r.Quantity <= 0 {
		return "quantity must be positive"
	}
	if r.Price < 0 {
		return "price must not be negative"
	}
	if r.ValidityDays < 0 {
		return "validity_days must not be negative"
	}
	return ""
}

func (h *PackageHandler) Collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		packages, err := h.packages.List(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]packageResponse, 0, len(packages))
		for _, p := range packages {
			out = append(out, packageToResponse(p))
		}
		writeJSON(w, http.StatusOK, out)
	case http.MethodPost:
		var req packageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json body"})
			return
		}
		if msg := req.validate(); msg != "" {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
			return
		}
		if _, err := h.services.Get(r.Context(), req.ServiceID); err != nil {
			if storage.IsNotFound(err) {
				writeJSON(w, http.StatusNotFound, errorBody{Error: "service not found"})
				return
			}
			writeError(w, err)
			return
		}
		p := model.Package{
			Name:         req.Name,
			ServiceID:    req.ServiceID,
			Quantity:     req.Quantity,
			Price:        req.Price,
			ValidityDays: req.ValidityDays,
		}
		id, err := h.packages.Create(r.Context(), &p)
		if err != nil {
			writeError(w, err)
			return
		}
		p.ID = id
		p.CreatedAt = time.Now()
		writeJSON(w, http.StatusCreated, packageToResponse(p))
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *PackageHandler) Item(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "id is required"})
		return
	}
	switch r.Method {
	case http.MethodGet:
		p, err := h.packages.Get(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, packageToResponse(p))
	case http.MethodPut:
		var req packageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json body"})
			return
		}
		if msg := req.validate(); msg != "" {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
			return
		}
		p := model.Package{
			ID:           id,
			Name:         req.Name,
			ServiceID:    req.ServiceID,
			Quantity:     req.Quantity,
			Price:        req.Price,
			ValidityDays: req.ValidityDays,
		}
		if err := h.packages.Update(r.Context(), &p); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, packageToResponse(p))
	case http.MethodDelete:
		if err := h.packages.Delete(r.Context(), id); err != nil {
			if storage.IsForeignKeyViolation(err) {
				writeJSON(w, http.StatusConflict, errorBody{Error: "package has been sold"})
				return
			}
			writeError(w, err)
			return
		}
		h.logger.Info("package deleted", "package_id", id)
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

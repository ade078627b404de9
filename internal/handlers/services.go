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

type ServiceHandler struct {
	services *storage.ServiceRepository
	logger   *slog.Logger
}

func NewServiceHandler(services *storage.ServiceRepository, logger *slog.Logger) *ServiceHandler {
	return &ServiceHandler{services: services, logger: logger}
}

type serviceRequest struct {
	Name            string  `json:"name"`
	DurationMinutes int     `json:"duration_minutes"`
	Price           float64 `json:"price"`
}

type serviceResponse struct {
	ServiceID       string  `json:"service_id"`
	Name            string  `json:"name"`
	DurationMinutes int     `json:"duration_minutes"`
	Price           float64 `json:"price"`
	CreatedAt       string  `json:"created_at"`
}

func serviceToResponse(s model.Service) serviceResponse {
	return serviceResponse{
		ServiceID:       s.ID,
		Name:            s.Name,
		DurationMinutes: s.DurationMinutes,
		Price:           s.Price,
		CreatedAt:       s.CreatedAt.Format(time.RFC3339),
	}
}

func (r *serviceRequest) validate() string {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return "name is required"
	}
	if r.DurationMinutes < 0 {
		return "duration_minutes must not be negative"
	}
	if r.Price < 0 {
		return "price must not be negative"
	}
	return ""
}

func (h *ServiceHandler) Collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		services, err := h.services.List(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]serviceResponse, 0, len(services))
		for _, s := range services {
			out = append(out, serviceToResponse(s))
		}
		writeJSON(w, http.StatusOK, out)
	case http.MethodPost:
		var req serviceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json body"})
			return
		}
		if msg := req.validate(); msg != "" {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
			return
		}
		s := model.Service{Name: req.Name, DurationMinutes: req.DurationMinutes, Price: req.Price}
		id, err := h.services.Create(r.Context(), &s)
		if err != nil {
			writeError(w, err)
			return
		}
		s.ID = id
		s.CreatedAt = time.Now()
		writeJSON(w, http.StatusCreated, serviceToResponse(s))
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ServiceHandler) Item(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "id is required"})
		return
	}
	switch r.Method {
	case http.MethodGet:
		s, err := h.services.Get(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, serviceToResponse(s))
	case http.MethodPut:
		var req serviceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json body"})
			return
		}
		if msg := req.validate(); msg != "" {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
			return
		}
		s := model.Service{ID: id, Name: req.Name, DurationMinutes: req.DurationMinutes, Price: req.Price}
		if err := h.services.Update(r.Context(), &s); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, serviceToResponse(s))
	case http.MethodDelete:
		if err := h.services.Delete(r.Context(), id); err != nil {
			if storage.IsForeignKeyViolation(err) {
				writeJSON(w, http.StatusConflict, errorBody{Error: "service is referenced by packages"})
				return
			}
			writeError(w, err)
			return
		}
		h.logger.Info("service deleted", "service_id", id)
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tunahanclrr/salon-api/internal/model"
	"github.com/tunahanclrr/salon-api/internal/storage"
)

type CustomerHandler struct {
	customers *storage.CustomerRepository
	logger    *slog.Logger
}

func NewCustomerHandler(customers *storage.CustomerRepository, logger *slog.Logger) *CustomerHandler {
	return &CustomerHandler{customers: customers, logger: logger}
}

type customerRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
	Notes string `json:"notes"`
}

type customerResponse struct {
	CustomerID string `json:"customer_id"`
	Name       string `json:"name"`
	Phone      string `json:"phone,omitempty"`
	Email      string `json:"email,omitempty"`
	Notes      string `json:"notes,omitempty"`
	CreatedAt  string `json:"created_at"`
}

func customerToResponse(c model.Customer) customerResponse {
	return customerResponse{
		CustomerID: c.ID,
		Name:       c.Name,
		Phone:      c.Phone,
		Email:      c.Email,
		Notes:      c.Notes,
		CreatedAt:  c.CreatedAt.Format(time.RFC3339),
	}
}

// Collection handles /api/v1/customers: GET lists, POST creates.
func (h *CustomerHandler) Collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		customers, err := h.customers.List(r.Context(), strings.TrimSpace(r.URL.Query().Get("search")), limit)
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]customerResponse, 0, len(customers))
		for _, c := range customers {
			out = append(out, customerToResponse(c))
		}
		writeJSON(w, http.StatusOK, out)
	case http.MethodPost:
		var req customerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json body"})
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "name is required"})
			return
		}
		c := model.Customer{Name: req.Name, Phone: strings.TrimSpace(req.Phone), Email: strings.TrimSpace(req.Email), Notes: req.Notes}
		id, err := h.customers.Create(r.Context(), &c)
		if err != nil {
			if storage.IsUniqueViolation(err) {
				writeJSON(w, http.StatusConflict, errorBody{Error: "customer with this phone already exists"})
				return
			}
			writeError(w, err)
			return
		}
		c.ID = id
		c.CreatedAt = time.Now()
		writeJSON(w, http.StatusCreated, customerToResponse(c))
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// Item handles /api/v1/customers/item?id=: GET, PUT, DELETE.
func (h *CustomerHandler) Item(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "id is required"})
		return
	}
	switch r.Method {
	case http.MethodGet:
		c, err := h.customers.Get(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, customerToResponse(c))
	case http.MethodPut:
		var req customerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json body"})
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "name is required"})
			return
		}
		c := model.Customer{ID: id, Name: req.Name, Phone: strings.TrimSpace(req.Phone), Email: strings.TrimSpace(req.Email), Notes: req.Notes}
		if err := h.customers.Update(r.Context(), &c); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, customerToResponse(c))
	case http.MethodDelete:
		if err := h.customers.Delete(r.Context(), id); err != nil {
			if storage.IsForeignKeyViolation(err) {
				writeJSON(w, http.StatusConflict, errorBody{Error: "customer has appointments or sales"})
				return
			}
			writeError(w, err)
			return
		}
		h.logger.Info("customer deleted", "customer_id", id)
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

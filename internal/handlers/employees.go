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

type EmployeeHandler struct {
	employees *storage.EmployeeRepository
	logger    *slog.Logger
}

func NewEmployeeHandler(employees *storage.EmployeeRepository, logger *slog.Logger) *EmployeeHandler {
	return &EmployeeHandler{employees: employees, logger: logger}
}

type employeeRequest struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Title    string `json:"title"`
	IsActive *bool  `json:"is_active"`
}

type employeeResponse struct {
	EmployeeID string `json:"employee_id"`
	Name       string `json:"name"`
	Phone      string `json:"phone,omitempty"`
	Email      string `json:"email,omitempty"`
	Title      string `json:"title,omitempty"`
	IsActive   bool   `json:"is_active"`
	CreatedAt  string `json:"created_at"`
}

func employeeToResponse(e model.Employee) employeeResponse {
	return employeeResponse{
		EmployeeID: e.ID,
		Name:       e.Name,
		Phone:      e.Phone,
		Email:      e.Email,
		Title:      e.Title,
		IsActive:   e.IsActive,
		CreatedAt:  e.CreatedAt.Format(time.RFC3339),
	}
}

func (h *EmployeeHandler) Collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		employees, err := h.employees.List(r.Context(), r.URL.Query().Get("active") == "true")
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]employeeResponse, 0, len(employees))
		for _, e := range employees {
			out = append(out, employeeToResponse(e))
		}
		writeJSON(w, http.StatusOK, out)
	case http.MethodPost:
		var req employeeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json body"})
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "name is required"})
			return
		}
		e := model.Employee{
			Name:     req.Name,
			Phone:    strings.TrimSpace(req.Phone),
			Email:    strings.TrimSpace(req.Email),
			Title:    strings.TrimSpace(req.Title),
			IsActive: true,
		}
		if req.IsActive != nil {
			e.IsActive = *req.IsActive
		}
		id, err := h.employees.Create(r.Context(), &e)
		if err != nil {
			writeError(w, err)
			return
		}
		e.ID = id
		e.CreatedAt = time.Now()
		writeJSON(w, http.StatusCreated, employeeToResponse(e))
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *EmployeeHandler) Item(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "id is required"})
		return
	}
	switch r.Method {
	case http.MethodGet:
		e, err := h.employees.Get(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, employeeToResponse(e))
	case http.MethodPut:
		var req employeeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json body"})
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "name is required"})
			return
		}
		e := model.Employee{
			ID:       id,
			Name:     req.Name,
			Phone:    strings.TrimSpace(req.Phone),
			Email:    strings.TrimSpace(req.Email),
			Title:    strings.TrimSpace(req.Title),
			IsActive: true,
		}
		if req.IsActive != nil {
			e.IsActive = *req.IsActive
		}
		if err := h.employees.Update(r.Context(), &e); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, employeeToResponse(e))
	case http.MethodDelete:
		if err := h.employees.Delete(r.Context(), id); err != nil {
			if storage.IsForeignKeyViolation(err) {
				writeJSON(w, http.StatusConflict, errorBody{Error: "employee has appointments"})
				return
			}
			writeError(w, err)
			return
		}
		h.logger.Info("employee deleted", "employee_id", id)
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

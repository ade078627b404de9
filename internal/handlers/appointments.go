package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tunahanclrr/salon-api/internal/booking"
	"github.com/tunahanclrr/salon-api/internal/model"
	"github.com/tunahanclrr/salon-api/internal/scheduling"
	"github.com/tunahanclrr/salon-api/internal/storage"
)

type AppointmentHandler struct {
	booking *booking.Service
	appts   *storage.AppointmentRepository
	logger  *slog.Logger
}

func NewAppointmentHandler(bookingService *booking.Service, appts *storage.AppointmentRepository, logger *slog.Logger) *AppointmentHandler {
	return &AppointmentHandler{booking: bookingService, appts: appts, logger: logger}
}

type appointmentRequest struct {
	CustomerID          string   `json:"customer_id"`
	EmployeeID          string   `json:"employee_id"`
	Date                string   `json:"date"`
	Time                string   `json:"time"`
	DurationMinutes     int      `json:"duration_minutes"`
	ServiceIDs          []string `json:"service_ids"`
	Notes               string   `json:"notes"`
	CustomerPackageID   string   `json:"customer_package_id"`
	PackageSessionCount int      `json:"package_session_count"`
	Force               bool     `json:"force"`
}

type appointmentResponse struct {
	AppointmentID       string                  `json:"appointment_id"`
	CustomerID          string                  `json:"customer_id"`
	EmployeeID          string                  `json:"employee_id"`
	Date                string                  `json:"date"`
	Time                string                  `json:"time"`
	EndTime             string                  `json:"end_time"`
	DurationMinutes     int                     `json:"duration_minutes"`
	Services            []model.ServiceSnapshot `json:"services"`
	Status              string                  `json:"status"`
	CustomerNotArrived  bool                    `json:"customer_not_arrived"`
	Notes               string                  `json:"notes,omitempty"`
	CustomerPackageID   string                  `json:"customer_package_id,omitempty"`
	PackageSessionCount int                     `json:"package_session_count,omitempty"`
	CreatedAt           string                  `json:"created_at"`
}

func appointmentToResponse(a model.Appointment) appointmentResponse {
	return appointmentResponse{
		AppointmentID:       a.ID,
		CustomerID:          a.CustomerID,
		EmployeeID:          a.EmployeeID,
		Date:                a.Date,
		Time:                scheduling.FormatClock(a.StartMinute),
		EndTime:             scheduling.FormatClock(a.EndMinute()),
		DurationMinutes:     a.DurationMinutes,
		Services:            a.Services,
		Status:              a.Status,
		CustomerNotArrived:  a.CustomerNotArrived,
		Notes:               a.Notes,
		CustomerPackageID:   a.CustomerPackageID,
		PackageSessionCount: a.PackageSessionCount,
		CreatedAt:           a.CreatedAt.Format(time.RFC3339),
	}
}

func (req appointmentRequest) toBooking(idemKey string) booking.Request {
	return booking.Request{
		CustomerID:          strings.TrimSpace(req.CustomerID),
		EmployeeID:          strings.TrimSpace(req.EmployeeID),
		Date:                strings.TrimSpace(req.Date),
		Time:                strings.TrimSpace(req.Time),
		DurationMinutes:     req.DurationMinutes,
		ServiceIDs:          req.ServiceIDs,
		Notes:               req.Notes,
		CustomerPackageID:   strings.TrimSpace(req.CustomerPackageID),
		PackageSessionCount: req.PackageSessionCount,
		Force:               req.Force,
		IdempotencyKey:      idemKey,
	}
}

// Collection handles /api/v1/appointments: GET lists a day or a customer's
// history, POST books.
func (h *AppointmentHandler) Collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if customerID := strings.TrimSpace(r.URL.Query().Get("customer_id")); customerID != "" {
			limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
			appts, err := h.appts.ListByCustomer(r.Context(), customerID, limit)
			if err != nil {
				writeError(w, err)
				return
			}
			writeAppointments(w, appts)
			return
		}
		date, err := scheduling.ParseDate(strings.TrimSpace(r.URL.Query().Get("date")))
		if err != nil {
			writeError(w, err)
			return
		}
		appts, err := h.appts.ListByDate(r.Context(), date)
		if err != nil {
			writeError(w, err)
			return
		}
		writeAppointments(w, appts)
	case http.MethodPost:
		var req appointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json body"})
			return
		}
		appt, created, err := h.booking.Book(r.Context(), req.toBooking(strings.TrimSpace(r.Header.Get("Idempotency-Key"))))
		if err != nil {
			writeError(w, err)
			return
		}
		code := http.StatusCreated
		if !created {
			code = http.StatusOK
		}
		writeJSON(w, code, appointmentToResponse(appt))
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// Item handles /api/v1/appointments/item?id=: GET, PUT, DELETE.
func (h *AppointmentHandler) Item(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "id is required"})
		return
	}
	switch r.Method {
	case http.MethodGet:
		appt, err := h.appts.Get(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, appointmentToResponse(appt))
	case http.MethodPut:
		var req appointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json body"})
			return
		}
		appt, err := h.booking.Update(r.Context(), id, req.toBooking(""))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, appointmentToResponse(appt))
	case http.MethodDelete:
		if err := h.booking.Delete(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *AppointmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "id is required"})
		return
	}
	appt, err := h.booking.Cancel(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appointmentToResponse(appt))
}

type notArrivedRequest struct {
	NotArrived bool `json:"not_arrived"`
}

func (h *AppointmentHandler) NotArrived(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "id is required"})
		return
	}
	var req notArrivedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json body"})
		return
	}
	if _, err := h.appts.SetNotArrived(r.Context(), id, req.NotArrived); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointment_id": id, "not_arrived": req.NotArrived})
}

type slotItem struct {
	Time    string `json:"time"`
	EndTime string `json:"end_time"`
}

// Slots is the public availability endpoint. The window defaults to the
// salon's working day and callers can narrow it.
func (h *AppointmentHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	employeeID := strings.TrimSpace(q.Get("employee_id"))
	if employeeID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "employee_id is required"})
		return
	}
	date, err := scheduling.ParseDate(strings.TrimSpace(q.Get("date")))
	if err != nil {
		writeError(w, err)
		return
	}
	duration, _ := strconv.Atoi(q.Get("duration_minutes"))
	if duration <= 0 {
		duration = model.DefaultAppointmentMinutes
	}
	windowStart := parseClockOr(q.Get("from"), 9*60)
	windowEnd := parseClockOr(q.Get("to"), 19*60)

	appts, err := h.appts.ListByDate(r.Context(), date)
	if err != nil {
		writeError(w, err)
		return
	}

	nowMinute := -1
	if now := time.Now(); now.Format("2006-01-02") == date {
		nowMinute = now.Hour()*60 + now.Minute()
	}
	busy := scheduling.BusyIntervals(employeeID, date, appts)
	starts := scheduling.AvailableSlots(windowStart, windowEnd, duration, 15, busy, nowMinute)

	out := make([]slotItem, 0, len(starts))
	for _, start := range starts {
		out = append(out, slotItem{Time: scheduling.FormatClock(start), EndTime: scheduling.FormatClock(start + duration)})
	}
	writeJSON(w, http.StatusOK, out)
}

func parseClockOr(s string, fallback int) int {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	m, err := scheduling.ParseClock(strings.TrimSpace(s))
	if err != nil {
		return fallback
	}
	return m
}

func writeAppointments(w http.ResponseWriter, appts []model.Appointment) {
	out := make([]appointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, appointmentToResponse(a))
	}
	writeJSON(w, http.StatusOK, out)
}

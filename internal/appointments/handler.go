package appointments

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/wolfman30/spa-desk/internal/schedule"
	"github.com/wolfman30/spa-desk/pkg/logging"
)

const maxBodyBytes = 1 << 16

// Handler serves the booking API.
type Handler struct {
	service  *Service
	validate *validator.Validate
	logger   *logging.Logger
}

// NewHandler creates an appointments HTTP handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// Routes mounts the public booking endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/availability", h.GetAvailability)
	r.Get("/range", h.GetRange)
	r.Post("/", h.CreateAppointment)
}

// AdminRoutes mounts the endpoints behind admin auth.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Get("/", h.ListAppointments)
	r.Get("/{id}", h.GetAppointment)
	r.Patch("/{id}", h.UpdateAppointment)
	r.Post("/{id}/cancel", h.CancelAppointment)
	r.Post("/{id}/complete", h.CompleteAppointment)
	r.Get("/{id}/audit", h.GetAuditTrail)
}

// GetAvailability handles GET /api/appointments/availability?date=YYYY-MM-DD.
// Unbookable dates are still a 200 with available=false and a reason.
func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		writeError(w, http.StatusBadRequest, "date is required", "")
		return
	}
	result, err := h.service.Availability(r.Context(), date)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetRange handles GET /api/appointments/range?from=&to=.
func (h *Handler) GetRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to := strings.TrimSpace(q.Get("from")), strings.TrimSpace(q.Get("to"))
	if from == "" || to == "" {
		writeError(w, http.StatusBadRequest, "from and to are required", "")
		return
	}
	days, err := h.service.AvailabilityRange(r.Context(), from, to)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": days})
}

// CreateAppointment handles POST /api/appointments.
func (h *Handler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !h.decode(w, r, &req) {
		return
	}
	appt, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

// ListAppointments handles GET /api/admin/appointments?date=.
func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		writeError(w, http.StatusBadRequest, "date is required", "")
		return
	}
	appts, err := h.service.ListByDate(r.Context(), date)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if appts == nil {
		appts = []*Appointment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "appointments": appts})
}

func (h *Handler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	appt, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// GetAuditTrail handles GET /api/admin/appointments/{id}/audit.
func (h *Handler) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	events, err := h.service.History(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointment_id": id, "events": events})
}

// UpdateAppointment handles PATCH /api/admin/appointments/{id}.
func (h *Handler) UpdateAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req UpdateRequest
	if !h.decode(w, r, &req) {
		return
	}
	appt, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// CancelAppointment handles POST /api/admin/appointments/{id}/cancel.
func (h *Handler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req cancelRequest
	if !h.decode(w, r, &req) {
		return
	}
	appt, err := h.service.Cancel(r.Context(), id, req.Reason)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// CompleteAppointment handles POST /api/admin/appointments/{id}/complete.
func (h *Handler) CompleteAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	appt, err := h.service.Complete(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed", validationReason(err))
		return false
	}
	return true
}

func validationReason(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, strings.ToLower(fe.Field())+" "+fe.Tag())
	}
	return strings.Join(fields, ", ")
}

// writeServiceError maps service errors onto status codes. Rejections keep
// their client-facing reason; infrastructure errors never leak.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if reason, ok := schedule.ReasonFor(err); ok {
		status := http.StatusUnprocessableEntity
		switch {
		case errors.Is(err, schedule.ErrInvalidDateFormat), errors.Is(err, schedule.ErrInvalidTime):
			status = http.StatusBadRequest
		case errors.Is(err, schedule.ErrTimeSlotTaken), errors.Is(err, schedule.ErrInsufficientGap):
			status = http.StatusConflict
		}
		writeError(w, status, "booking rejected", reason)
		return
	}

	switch {
	case errors.Is(err, schedule.ErrRangeTooLong):
		writeError(w, http.StatusBadRequest, err.Error(), "")
	case IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error(), "")
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error(), "")
	case errors.Is(err, ErrInvalidTransition):
		writeError(w, http.StatusConflict, ErrInvalidTransition.Error(), "")
	default:
		h.logger.Error("appointments request failed", "error", err, "path", r.URL.Path)
		writeError(w, http.StatusInternalServerError, ErrStoreFailure.Error(), "")
	}
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid appointment id", "")
		return uuid.Nil, false
	}
	return id, true
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg, reason string) {
	writeJSON(w, status, errorResponse{Error: msg, Reason: reason})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

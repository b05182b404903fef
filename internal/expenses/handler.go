package expenses

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/wolfman30/spa-desk/internal/timeparse"
	"github.com/wolfman30/spa-desk/pkg/logging"
)

// Handler serves the admin expense endpoints.
type Handler struct {
	service  *Service
	validate *validator.Validate
	logger   *logging.Logger
}

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

// ExpenseRoutes mounts under /api/admin/expenses.
func (h *Handler) ExpenseRoutes(r chi.Router) {
	r.Get("/", h.ListExpenses)
	r.Post("/", h.CreateExpense)
	r.Delete("/{id}", h.DeleteExpense)
}

// CategoryRoutes mounts under /api/admin/expense-categories.
func (h *Handler) CategoryRoutes(r chi.Router) {
	r.Get("/", h.ListCategories)
	r.Post("/", h.CreateCategory)
}

func (h *Handler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to := strings.TrimSpace(q.Get("from")), strings.TrimSpace(q.Get("to"))
	for _, d := range []string{from, to} {
		if d == "" {
			continue
		}
		if _, err := timeparse.ParseCanonicalDate(d, nil); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid date format"})
			return
		}
	}
	out, err := h.service.List(r.Context(), from, to)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if out == nil {
		out = []*Expense{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"expenses": out})
}

func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	var req CreateExpenseRequest
	if !h.decode(w, r, &req) {
		return
	}
	e, err := h.service.Record(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (h *Handler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid expense id"})
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.Categories(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if out == nil {
		out = []*Category{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": out})
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.service.AddCategory(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "validation failed", "reason": err.Error()})
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNegativeAmount), errors.Is(err, ErrUnknownCategory):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrDuplicateName):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	default:
		h.logger.Warn("expenses request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": ErrStoreFailure.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

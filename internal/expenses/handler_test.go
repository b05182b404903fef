package expenses

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/spa-desk/pkg/logging"
)

func newTestRouter() (http.Handler, *InMemoryRepository) {
	repo := NewInMemoryRepository()
	h := NewHandler(NewService(repo, logging.Discard()), logging.Discard())
	r := chi.NewRouter()
	r.Route("/api/admin/expenses", h.ExpenseRoutes)
	r.Route("/api/admin/expense-categories", h.CategoryRoutes)
	return r, repo
}

func send(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestExpenseEndpoints(t *testing.T) {
	router, repo := newTestRouter()

	rec := send(router, http.MethodPost, "/api/admin/expense-categories/", `{"name":"Supplies","color":"#AABBCC"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var cat Category
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cat))
	assert.Equal(t, "#aabbcc", cat.Color)
	assert.True(t, cat.Active)

	rec = send(router, http.MethodPost, "/api/admin/expense-categories/", `{"name":"supplies"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = send(router, http.MethodPost, "/api/admin/expenses/",
		`{"date":"2026-10-13","description":"Towels","amount":"19.999","category_id":"`+cat.ID.String()+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var e Expense
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	assert.Equal(t, "20", e.Amount.String())

	rec = send(router, http.MethodPost, "/api/admin/expenses/", `{"date":"2026-10-13","description":"Refund?","amount":"-5"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = send(router, http.MethodPost, "/api/admin/expenses/",
		`{"date":"2026-10-13","description":"Towels","amount":"5","category_id":"`+uuid.NewString()+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = send(router, http.MethodGet, "/api/admin/expenses/?from=2026-10-01&to=2026-10-31", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Towels")

	rec = send(router, http.MethodGet, "/api/admin/expenses/?from=October", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = send(router, http.MethodDelete, "/api/admin/expenses/"+e.ID.String(), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, repo.expenses)

	rec = send(router, http.MethodDelete, "/api/admin/expenses/"+e.ID.String(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = send(router, http.MethodGet, "/api/admin/expense-categories/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Supplies")
}

package appointments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var appointmentRowColumns = []string{
	"id", "date", "time", "client", "category", "payment", "tip", "status", "update_reason", "created_at", "updated_at",
}

func newMockRepo(t *testing.T) (*PostgresRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return newPostgresRepositoryWithDB(mock), mock
}

func TestPostgresRepository_Insert(t *testing.T) {
	repo, mock := newMockRepo(t)
	created := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

	appt := &Appointment{
		Date:     "2026-10-20",
		Time:     "3:30 PM",
		Client:   "Orla",
		Category: CategoryFacial,
		Payment:  decimal.RequireFromString("100"),
		Tip:      decimal.Zero,
		Status:   StatusPending,
	}

	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), "2026-10-20", "3:30 PM", "Orla", "Facial", "100.00", "0.00", "pending").
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(created, created))

	require.NoError(t, repo.Insert(context.Background(), appt))
	assert.NotEqual(t, uuid.Nil, appt.ID)
	assert.Equal(t, created, appt.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_GetMapsNoRows(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT .* FROM appointments WHERE id").WithArgs(id).WillReturnError(pgx.ErrNoRows)

	_, err := repo.Get(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_GetScansDecimals(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	reason := "client asked"

	mock.ExpectQuery("SELECT .* FROM appointments WHERE id").WithArgs(id).
		WillReturnRows(pgxmock.NewRows(appointmentRowColumns).
			AddRow(id, "2026-10-20", "2:00 PM", "Orla", "Facial+Massage", "200.00", "15.50", "completed", &reason, now, now))

	appt, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, CategoryFacialMassage, appt.Category)
	assert.Equal(t, StatusCompleted, appt.Status)
	assert.True(t, appt.Payment.Equal(decimal.RequireFromString("200")))
	assert.True(t, appt.Tip.Equal(decimal.RequireFromString("15.5")))
	require.NotNil(t, appt.UpdateReason)
	assert.Equal(t, "client asked", *appt.UpdateReason)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_UpdateReturnsRowsAffected(t *testing.T) {
	repo, mock := newMockRepo(t)
	reason := "moved"
	appt := &Appointment{
		ID:           uuid.New(),
		Date:         "2026-10-21",
		Time:         "5:00 PM",
		Client:       "Orla",
		Category:     CategoryMassage,
		Payment:      decimal.RequireFromString("120"),
		Tip:          decimal.RequireFromString("10"),
		Status:       StatusPending,
		UpdateReason: &reason,
	}

	mock.ExpectExec(`(?s)UPDATE appointments.*WHERE id = \$1 AND status = \$10`).
		WithArgs(appt.ID, "2026-10-21", "5:00 PM", "Orla", "Massage", "120.00", "10.00", "pending", &reason, "pending").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	n, err := repo.Update(context.Background(), appt, StatusPending)
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_BookedTimes(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT time FROM appointments").WithArgs("2026-10-20", uuid.Nil).
		WillReturnRows(pgxmock.NewRows([]string{"time"}).AddRow("4:00 PM").AddRow("2:00 PM"))

	times, err := repo.BookedTimes(context.Background(), "2026-10-20", uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"4:00 PM", "2:00 PM"}, times)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_ListByDateSortsByClock(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	var noReason *string

	mock.ExpectQuery("SELECT .* FROM appointments WHERE date").WithArgs("2026-10-20").
		WillReturnRows(pgxmock.NewRows(appointmentRowColumns).
			AddRow(uuid.New(), "2026-10-20", "6:00 PM", "Bea", "Massage", "120.00", "0.00", "pending", noReason, now, now).
			AddRow(uuid.New(), "2026-10-20", "2:00 PM", "Ana", "Facial", "100.00", "0.00", "pending", noReason, now, now))

	appts, err := repo.ListByDate(context.Background(), "2026-10-20")
	require.NoError(t, err)
	require.Len(t, appts, 2)
	assert.Equal(t, "2:00 PM", appts[0].Time)
	assert.Equal(t, "6:00 PM", appts[1].Time)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_FindPendingWrapsErrors(t *testing.T) {
	repo, mock := newMockRepo(t)
	boom := errors.New("connection reset")

	mock.ExpectQuery("SELECT .* FROM appointments").
		WithArgs("orla", "", "3:00 PM", "2026-10-14").
		WillReturnError(boom)

	_, err := repo.FindPending(context.Background(), Match{Client: "orla", Time: "3:00 PM", From: "2026-10-14"})
	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

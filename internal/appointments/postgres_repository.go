package appointments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const appointmentColumns = `id, date::text, time, client, category, payment::text, tip::text, status, update_reason, created_at, updated_at`

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores appointments in the relational database.
type PostgresRepository struct {
	db rowQuerier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

func newPostgresRepositoryWithDB(db rowQuerier) *PostgresRepository {
	if db == nil {
		panic("appointments: db required")
	}
	return &PostgresRepository{db: db}
}

// Insert adds a row and fills in the generated id and timestamps.
func (r *PostgresRepository) Insert(ctx context.Context, appt *Appointment) error {
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	query := `
		INSERT INTO appointments (id, date, time, client, category, payment, tip, status)
		VALUES ($1, $2::date, $3, $4, $5, $6::numeric, $7::numeric, $8)
		RETURNING created_at, updated_at
	`
	if err := r.db.QueryRow(ctx, query,
		appt.ID,
		appt.Date,
		appt.Time,
		appt.Client,
		string(appt.Category),
		appt.Payment.StringFixed(2),
		appt.Tip.StringFixed(2),
		string(appt.Status),
	).Scan(&appt.CreatedAt, &appt.UpdatedAt); err != nil {
		return fmt.Errorf("appointments: insert failed: %w", err)
	}
	return nil
}

// Get fetches one appointment by id.
func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`
	appt, err := scanAppointment(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointments: select failed: %w", err)
	}
	return appt, nil
}

// Update rewrites the mutable columns of an appointment whose status is
// still expected.
func (r *PostgresRepository) Update(ctx context.Context, appt *Appointment, expected Status) (int64, error) {
	query := `
		UPDATE appointments
		SET date = $2::date, time = $3, client = $4, category = $5,
		    payment = $6::numeric, tip = $7::numeric, status = $8,
		    update_reason = $9, updated_at = NOW()
		WHERE id = $1 AND status = $10
	`
	ct, err := r.db.Exec(ctx, query,
		appt.ID,
		appt.Date,
		appt.Time,
		appt.Client,
		string(appt.Category),
		appt.Payment.StringFixed(2),
		appt.Tip.StringFixed(2),
		string(appt.Status),
		appt.UpdateReason,
		string(expected),
	)
	if err != nil {
		return 0, fmt.Errorf("appointments: update failed: %w", err)
	}
	return ct.RowsAffected(), nil
}

// BookedTimes lists start times still holding a slot on date.
func (r *PostgresRepository) BookedTimes(ctx context.Context, date string, exclude uuid.UUID) ([]string, error) {
	query := `
		SELECT time FROM appointments
		WHERE date = $1::date AND status <> 'cancelled' AND id <> $2
		ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, query, date, exclude)
	if err != nil {
		return nil, fmt.Errorf("appointments: booked times failed: %w", err)
	}
	defer rows.Close()

	var times []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("appointments: scan booked time: %w", err)
		}
		times = append(times, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: booked times rows: %w", err)
	}
	return times, nil
}

// ListByDate returns every appointment on date regardless of status.
func (r *PostgresRepository) ListByDate(ctx context.Context, date string) ([]*Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE date = $1::date`
	return r.list(ctx, query, date)
}

// ListBetween returns appointments with from <= date <= to.
func (r *PostgresRepository) ListBetween(ctx context.Context, from, to string) ([]*Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE date BETWEEN $1::date AND $2::date`
	return r.list(ctx, query, from, to)
}

// FindPending looks up pending appointments by partial client name and
// optional date, time and earliest date.
func (r *PostgresRepository) FindPending(ctx context.Context, match Match) ([]*Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments
		WHERE status = 'pending'
		  AND ($1 = '' OR lower(client) LIKE '%' || lower($1) || '%')
		  AND ($2 = '' OR date = NULLIF($2, '')::date)
		  AND ($3 = '' OR time = $3)
		  AND ($4 = '' OR date >= NULLIF($4, '')::date)`
	return r.list(ctx, query, match.Client, match.Date, match.Time, match.From)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*Appointment, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("appointments: list failed: %w", err)
	}
	defer rows.Close()

	var out []*Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan failed: %w", err)
		}
		out = append(out, appt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: list rows: %w", err)
	}
	sortByClock(out)
	return out, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		appt             Appointment
		category, status string
		payment, tip     string
	)
	if err := row.Scan(
		&appt.ID,
		&appt.Date,
		&appt.Time,
		&appt.Client,
		&category,
		&payment,
		&tip,
		&status,
		&appt.UpdateReason,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	); err != nil {
		return nil, err
	}
	appt.Category = Category(category)
	appt.Status = Status(status)

	var err error
	if appt.Payment, err = decimal.NewFromString(payment); err != nil {
		return nil, fmt.Errorf("payment %q: %w", payment, err)
	}
	if appt.Tip, err = decimal.NewFromString(tip); err != nil {
		return nil, fmt.Errorf("tip %q: %w", tip, err)
	}
	return &appt, nil
}

package expenses

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

const uniqueViolation = "23505"

// Repository stores expenses and their categories.
type Repository interface {
	InsertExpense(ctx context.Context, e *Expense) error
	DeleteExpense(ctx context.Context, id uuid.UUID) (int64, error)
	ListExpenses(ctx context.Context, from, to string) ([]*Expense, error)
	InsertCategory(ctx context.Context, c *Category) error
	GetCategory(ctx context.Context, id uuid.UUID) (*Category, error)
	ListCategories(ctx context.Context) ([]*Category, error)
}

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository is the pgx-backed Repository.
type PostgresRepository struct {
	db rowQuerier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("expenses: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

func newPostgresRepositoryWithDB(db rowQuerier) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) InsertExpense(ctx context.Context, e *Expense) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	query := `
		INSERT INTO expenses (id, date, description, amount, category_id)
		VALUES ($1, $2::date, $3, $4::numeric, $5)
		RETURNING created_at
	`
	if err := r.db.QueryRow(ctx, query, e.ID, e.Date, e.Description, e.Amount.StringFixed(2), e.CategoryID).Scan(&e.CreatedAt); err != nil {
		return fmt.Errorf("expenses: insert expense: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteExpense(ctx context.Context, id uuid.UUID) (int64, error) {
	ct, err := r.db.Exec(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("expenses: delete expense: %w", err)
	}
	return ct.RowsAffected(), nil
}

// ListExpenses returns expenses dated from..to inclusive, newest first.
// Empty bounds are open.
func (r *PostgresRepository) ListExpenses(ctx context.Context, from, to string) ([]*Expense, error) {
	query := `
		SELECT id, date::text, description, amount::text, category_id, created_at
		FROM expenses
		WHERE ($1 = '' OR date >= NULLIF($1, '')::date)
		  AND ($2 = '' OR date <= NULLIF($2, '')::date)
		ORDER BY date DESC, created_at DESC
	`
	rows, err := r.db.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("expenses: list expenses: %w", err)
	}
	defer rows.Close()

	var out []*Expense
	for rows.Next() {
		var (
			e      Expense
			amount string
		)
		if err := rows.Scan(&e.ID, &e.Date, &e.Description, &amount, &e.CategoryID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("expenses: scan expense: %w", err)
		}
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("expenses: amount %q: %w", amount, err)
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("expenses: list rows: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) InsertCategory(ctx context.Context, c *Category) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	query := `
		INSERT INTO expense_categories (id, name, description, color, active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query, c.ID, c.Name, c.Description, c.Color, c.Active).Scan(&c.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateName
		}
		return fmt.Errorf("expenses: insert category: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetCategory(ctx context.Context, id uuid.UUID) (*Category, error) {
	query := `SELECT id, name, description, color, active, created_at FROM expense_categories WHERE id = $1`
	var c Category
	err := r.db.QueryRow(ctx, query, id).Scan(&c.ID, &c.Name, &c.Description, &c.Color, &c.Active, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUnknownCategory
		}
		return nil, fmt.Errorf("expenses: get category: %w", err)
	}
	return &c, nil
}

func (r *PostgresRepository) ListCategories(ctx context.Context) ([]*Category, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, description, color, active, created_at FROM expense_categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("expenses: list categories: %w", err)
	}
	defer rows.Close()

	var out []*Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Color, &c.Active, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("expenses: scan category: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/RateThatLowballer/lowballer-discord-bot/internal/store"
)

var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrDuplicate indicates a unique constraint rejected the write.
	ErrDuplicate = errors.New("repository: duplicate key")
	// ErrMissingReference indicates a foreign key rejected the write.
	ErrMissingReference = errors.New("repository: missing referenced row")
	// ErrConstraint indicates a CHECK constraint rejected the write.
	ErrConstraint = errors.New("repository: check constraint violated")
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx so the same
// repositories serve autocommit reads and transactional writes.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository aggregates all domain-specific repositories.
type Repository struct {
	Raters   *RatersRepository
	Subjects *SubjectsRepository
	Ratings  *RatingsRepository
	Settings *SettingsRepository
}

// New constructs a Repository backed by the provided store.
func New(st *store.Store) *Repository {
	return NewWithPool(st.Pool())
}

// NewWithPool allows constructing repositories directly from a pgx pool.
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return newWithDB(pool)
}

// WithTx returns repositories bound to tx.
func (r *Repository) WithTx(tx pgx.Tx) *Repository {
	return newWithDB(tx)
}

func newWithDB(db DBTX) *Repository {
	return &Repository{
		Raters:   &RatersRepository{db: db},
		Subjects: &SubjectsRepository{db: db},
		Ratings:  &RatingsRepository{db: db},
		Settings: &SettingsRepository{db: db},
	}
}

// mapPgError translates constraint violations into repository sentinels and
// leaves everything else untouched.
func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return errors.Join(ErrDuplicate, err)
		case "23503": // foreign_key_violation
			return errors.Join(ErrMissingReference, err)
		case "23514": // check_violation
			return errors.Join(ErrConstraint, err)
		}
	}
	return err
}

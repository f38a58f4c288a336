package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ptfpinho23/HeadlessVendingMachine/internal/dbx"
	"github.com/ptfpinho23/HeadlessVendingMachine/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	db dbx.Pool
}

// New constructs a Repository. db is normally a *pgxpool.Pool.
func New(db dbx.Pool) *Repository {
	return &Repository{db: db}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.UserRepository     = (*Repository)(nil)
	_ repository.ProductRepository  = (*Repository)(nil)
	_ repository.PurchaseRepository = (*Repository)(nil)
)

// mapError translates driver errors into repository sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return repository.ErrConflict
		case "23503":
			return repository.ErrNotFound
		case "23514", "22P02", "22003":
			return repository.ErrInvalidArgument
		}
	}
	return err
}

func requireAffected(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

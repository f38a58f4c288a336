package postgres

import (
	"context"

	"github.com/ptfpinho23/HeadlessVendingMachine/internal/domain"
)

const userColumns = `id, username, password_hash, role, deposit, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.Deposit, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, mapError(err)
	}
	return &u, nil
}

// CreateUser inserts a user.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	const query = `INSERT INTO users (id, username, password_hash, role, deposit, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)`
	_, err := r.db.Exec(ctx, query, user.ID, user.Username, user.PasswordHash, user.Role, user.Deposit, user.CreatedAt)
	if err != nil {
		return mapError(err)
	}
	user.UpdatedAt = user.CreatedAt
	return nil
}

// GetUserByID retrieves a user by identifier.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRow(ctx, query, id))
}

// GetUserByUsername fetches a user by username.
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return scanUser(r.db.QueryRow(ctx, query, username))
}

// ListUsers returns every account ordered by creation time.
func (r *Repository) ListUsers(ctx context.Context) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// UpdateUser stores the mutable account fields (password hash and role).
func (r *Repository) UpdateUser(ctx context.Context, user *domain.User) error {
	const query = `UPDATE users SET password_hash = $2, role = $3, updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`
	if err := r.db.QueryRow(ctx, query, user.ID, user.PasswordHash, user.Role).Scan(&user.UpdatedAt); err != nil {
		return mapError(err)
	}
	return nil
}

// DeleteUser removes an account.
func (r *Repository) DeleteUser(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(tag)
}

// IncrementDeposit adds a coin to the deposit.
func (r *Repository) IncrementDeposit(ctx context.Context, id string, amount int) (int, error) {
	const query = `UPDATE users SET deposit = deposit + $2, updated_at = NOW()
		WHERE id = $1 RETURNING deposit`
	var deposit int
	if err := r.db.QueryRow(ctx, query, id, amount).Scan(&deposit); err != nil {
		return 0, mapError(err)
	}
	return deposit, nil
}

// ResetDeposit zeroes the deposit.
func (r *Repository) ResetDeposit(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET deposit = 0, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(tag)
}

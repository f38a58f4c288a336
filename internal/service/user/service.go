package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ptfpinho23/HeadlessVendingMachine/internal/apperr"
	"github.com/ptfpinho23/HeadlessVendingMachine/internal/coins"
	"github.com/ptfpinho23/HeadlessVendingMachine/internal/domain"
	"github.com/ptfpinho23/HeadlessVendingMachine/internal/repository"
	"github.com/ptfpinho23/HeadlessVendingMachine/pkg/crypto"
)

const (
	minUsernameLen = 3
	minPasswordLen = 6
	maxPasswordLen = 72
)

// SessionRevoker ends the session of an account.
type SessionRevoker interface {
	Logout(ctx context.Context, username string) error
}

// Service manages accounts and the balance ledger.
type Service struct {
	users    repository.UserRepository
	sessions SessionRevoker
	logger   *slog.Logger
}

// New constructs a Service.
func New(users repository.UserRepository, sessions SessionRevoker, logger *slog.Logger) Service {
	return Service{users: users, sessions: sessions, logger: logger}
}

// UpdateInput carries the mutable account fields.
type UpdateInput struct {
	Password *string `json:"password,omitempty"`
	Role     *string `json:"role,omitempty"`
}

// Create registers an account.
func (s Service) Create(ctx context.Context, username, password, role string) (domain.UserView, error) {
	username = strings.TrimSpace(username)
	if len(username) < minUsernameLen {
		return domain.UserView{}, apperr.New(apperr.InvalidInput, fmt.Sprintf("username must be at least %d characters", minUsernameLen))
	}
	if err := validatePassword(password); err != nil {
		return domain.UserView{}, err
	}
	if err := validateRole(role); err != nil {
		return domain.UserView{}, err
	}
	hash, err := crypto.HashPassword(password)
	if err != nil {
		return domain.UserView{}, apperr.Wrap(apperr.Internal, "hash password", err)
	}
	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return domain.UserView{}, apperr.New(apperr.Conflict, "username already exists")
		}
		return domain.UserView{}, mapError(err, "create user")
	}
	s.logger.Info("user registered", "user_id", user.ID, "role", user.Role)
	return user.View(), nil
}

// Get returns one account.
func (s Service) Get(ctx context.Context, id string) (domain.UserView, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return domain.UserView{}, mapError(err, "get user")
	}
	return user.View(), nil
}

// List returns every account.
func (s Service) List(ctx context.Context) ([]domain.UserView, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, mapError(err, "list users")
	}
	views := make([]domain.UserView, 0, len(users))
	for _, u := range users {
		views = append(views, u.View())
	}
	return views, nil
}

// Update changes the password and/or role of the actor's own account.
func (s Service) Update(ctx context.Context, actorID, id string, in UpdateInput) (domain.UserView, error) {
	if actorID != id {
		return domain.UserView{}, apperr.New(apperr.Forbidden, "you can only update your own account")
	}
	if in.Password == nil && in.Role == nil {
		return domain.UserView{}, apperr.New(apperr.InvalidInput, "nothing to update")
	}
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return domain.UserView{}, mapError(err, "get user")
	}
	if in.Password != nil {
		if err := validatePassword(*in.Password); err != nil {
			return domain.UserView{}, err
		}
		hash, err := crypto.HashPassword(*in.Password)
		if err != nil {
			return domain.UserView{}, apperr.Wrap(apperr.Internal, "hash password", err)
		}
		user.PasswordHash = hash
	}
	if in.Role != nil {
		if err := validateRole(*in.Role); err != nil {
			return domain.UserView{}, err
		}
		user.Role = *in.Role
	}
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return domain.UserView{}, mapError(err, "update user")
	}
	s.logger.Info("user updated", "user_id", user.ID)
	return user.View(), nil
}

// Delete removes the actor's own account and ends its session.
func (s Service) Delete(ctx context.Context, actorID, id string) error {
	if actorID != id {
		return apperr.New(apperr.Forbidden, "you can only delete your own account")
	}
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return mapError(err, "get user")
	}
	if err := s.users.DeleteUser(ctx, id); err != nil {
		return mapError(err, "delete user")
	}
	if s.sessions != nil {
		if err := s.sessions.Logout(ctx, user.Username); err != nil {
			s.logger.Warn("session not cleared after account deletion", "user_id", id, "error", err)
		}
	}
	s.logger.Info("user deleted", "user_id", id)
	return nil
}

// Deposit credits one accepted coin and returns the new balance.
func (s Service) Deposit(ctx context.Context, userID string, amount int) (int, error) {
	if !coins.IsAccepted(amount) {
		return 0, apperr.New(apperr.InvalidInput, fmt.Sprintf("amount must be one of %v", coins.Accepted))
	}
	balance, err := s.users.IncrementDeposit(ctx, userID, amount)
	if err != nil {
		return 0, mapError(err, "deposit")
	}
	s.logger.Debug("deposit accepted", "user_id", userID, "amount", amount, "balance", balance)
	return balance, nil
}

// Reset returns the balance to zero.
func (s Service) Reset(ctx context.Context, userID string) error {
	if err := s.users.ResetDeposit(ctx, userID); err != nil {
		return mapError(err, "reset deposit")
	}
	return nil
}

// Balance reports the current deposit.
func (s Service) Balance(ctx context.Context, userID string) (int, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return 0, mapError(err, "get user")
	}
	return user.Deposit, nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLen {
		return apperr.New(apperr.InvalidInput, fmt.Sprintf("password must be at least %d characters", minPasswordLen))
	}
	if len(password) > maxPasswordLen {
		return apperr.New(apperr.InvalidInput, fmt.Sprintf("password must be at most %d bytes", maxPasswordLen))
	}
	return nil
}

func validateRole(role string) error {
	if !domain.ValidRole(role) {
		return apperr.New(apperr.InvalidInput, "role must be buyer or seller")
	}
	return nil
}

func mapError(err error, op string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.New(apperr.NotFound, "user not found")
	case errors.Is(err, repository.ErrConflict):
		return apperr.Wrap(apperr.Conflict, "user conflicts with an existing record", err)
	case errors.Is(err, repository.ErrInvalidArgument):
		return apperr.Wrap(apperr.InvalidInput, "invalid user data", err)
	default:
		return apperr.Wrap(apperr.Internal, op, err)
	}
}

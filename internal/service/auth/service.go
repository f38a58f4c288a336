package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/ptfpinho23/HeadlessVendingMachine/internal/apperr"
	"github.com/ptfpinho23/HeadlessVendingMachine/internal/domain"
	"github.com/ptfpinho23/HeadlessVendingMachine/internal/repository"
	"github.com/ptfpinho23/HeadlessVendingMachine/internal/session"
	"github.com/ptfpinho23/HeadlessVendingMachine/pkg/config"
	"github.com/ptfpinho23/HeadlessVendingMachine/pkg/crypto"
	jwtpkg "github.com/ptfpinho23/HeadlessVendingMachine/pkg/jwt"
)

// Service handles login, session gating and logout.
type Service struct {
	users    repository.UserRepository
	sessions session.Store
	logger   *slog.Logger
	cfg      config.APIConfig
}

// New constructs a Service.
func New(users repository.UserRepository, sessions session.Store, logger *slog.Logger, cfg config.APIConfig) Service {
	return Service{users: users, sessions: sessions, logger: logger, cfg: cfg}
}

// record is the session marker payload: the principal plus the id of the
// token that opened the session.
type record struct {
	domain.Principal
	TokenID string `json:"token_id"`
}

// Login verifies credentials and opens the account's single session.
func (s Service) Login(ctx context.Context, username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", apperr.New(apperr.InvalidInput, "username and password are required")
	}
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", apperr.New(apperr.Unauthenticated, "invalid credentials")
		}
		return "", apperr.Wrap(apperr.Internal, "load user", err)
	}
	if err := crypto.ComparePassword(user.PasswordHash, password); err != nil {
		return "", apperr.New(apperr.Unauthenticated, "invalid credentials")
	}

	key := s.key(user.Username)
	if _, err := s.sessions.Get(ctx, key); err == nil {
		return "", errSessionActive
	} else if !errors.Is(err, session.ErrNotFound) {
		return "", apperr.Wrap(apperr.Internal, "read session", err)
	}

	token, err := jwtpkg.GenerateToken(user.ID, user.Username, s.cfg.JWTSecret, s.cfg.SessionTTL)
	if err != nil {
		return "", apperr.Wrap(apperr.Internal, "sign token", err)
	}
	claims, err := jwtpkg.Parse(token, s.cfg.JWTSecret)
	if err != nil {
		return "", apperr.Wrap(apperr.Internal, "read signed token", err)
	}
	payload, err := json.Marshal(record{
		Principal: domain.Principal{UserID: user.ID, Username: user.Username, Role: user.Role},
		TokenID:   claims.ID,
	})
	if err != nil {
		return "", apperr.Wrap(apperr.Internal, "encode session", err)
	}
	claimed, err := s.sessions.SetIfAbsent(ctx, key, payload, s.cfg.SessionTTL)
	if err != nil {
		return "", apperr.Wrap(apperr.Internal, "store session", err)
	}
	if !claimed {
		return "", errSessionActive
	}
	s.logger.Info("user logged in", "user_id", user.ID)
	return token, nil
}

var errSessionActive = apperr.New(apperr.SessionAlreadyActive, "there is already an active session using your account")

// Authenticate validates a bearer token against the live session and
// returns the caller as currently stored.
func (s Service) Authenticate(ctx context.Context, token string) (domain.Principal, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return domain.Principal{}, apperr.New(apperr.Unauthenticated, "authentication required")
	}
	claims, err := jwtpkg.Parse(trimmed, s.cfg.JWTSecret)
	if err != nil {
		return domain.Principal{}, apperr.Wrap(apperr.Unauthenticated, "invalid token", err)
	}
	raw, err := s.sessions.Get(ctx, s.key(claims.Username))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return domain.Principal{}, apperr.New(apperr.Unauthenticated, "session expired or logged out")
		}
		return domain.Principal{}, apperr.Wrap(apperr.Internal, "read session", err)
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.Principal{}, apperr.Wrap(apperr.Internal, "decode session", err)
	}
	if rec.TokenID != claims.ID {
		return domain.Principal{}, apperr.New(apperr.Unauthenticated, "session expired or logged out")
	}
	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Principal{}, apperr.New(apperr.Unauthenticated, "account no longer exists")
		}
		return domain.Principal{}, apperr.Wrap(apperr.Internal, "load user", err)
	}
	return domain.Principal{UserID: user.ID, Username: user.Username, Role: user.Role}, nil
}

// Logout ends the account's session. Absent sessions are not an error.
func (s Service) Logout(ctx context.Context, username string) error {
	if err := s.sessions.Delete(ctx, s.key(username)); err != nil {
		return apperr.Wrap(apperr.Internal, "delete session", err)
	}
	s.logger.Info("session terminated", "username", username)
	return nil
}

func (s Service) key(username string) string {
	return s.cfg.SessionPrefix + username
}

// Authorize checks that the principal holds role.
func Authorize(p domain.Principal, role string) error {
	if p.Role != role {
		return apperr.New(apperr.Forbidden, "this action requires the "+role+" role")
	}
	return nil
}

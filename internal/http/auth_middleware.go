package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ptfpinho23/HeadlessVendingMachine/internal/domain"
	"github.com/ptfpinho23/HeadlessVendingMachine/internal/service/auth"
)

type authContextKey string

const contextKeyAuth authContextKey = "vending-principal"

type contextSetter interface {
	SetContext(context.Context)
}

// requireAuth ensures the request carries a token for a live session before
// invoking the handler.
func (r *Router) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ctx, _, ok := r.ensureAuth(w, req)
		if !ok {
			return
		}
		if setter, ok := w.(contextSetter); ok {
			setter.SetContext(ctx)
		}
		next(w, req.WithContext(ctx))
	}
}

// requireRole authenticates the request and checks the caller's role.
func (r *Router) requireRole(role string, next http.HandlerFunc) http.HandlerFunc {
	return r.requireAuth(func(w http.ResponseWriter, req *http.Request) {
		principal, _ := principalFromContext(req.Context())
		if err := auth.Authorize(principal, role); err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		next(w, req)
	})
}

// ensureAuth validates the Authorization header and enriches the context.
func (r *Router) ensureAuth(w http.ResponseWriter, req *http.Request) (context.Context, domain.Principal, bool) {
	token, err := bearerToken(req.Header.Get("Authorization"))
	if err != nil {
		r.logger.Warn("authorization header invalid", "error", err, "path", req.URL.Path)
		writeError(w, http.StatusUnauthorized, "authentication required")
		return req.Context(), domain.Principal{}, false
	}
	principal, err := r.auth.Authenticate(req.Context(), token)
	if err != nil {
		r.logger.Warn("session validation failed", "error", err, "path", req.URL.Path)
		r.writeServiceError(w, req, err)
		return req.Context(), domain.Principal{}, false
	}
	ctx := context.WithValue(req.Context(), contextKeyAuth, principal)
	return ctx, principal, true
}

// principalFromContext extracts the authenticated caller from context.
func principalFromContext(ctx context.Context) (domain.Principal, bool) {
	value := ctx.Value(contextKeyAuth)
	if value == nil {
		return domain.Principal{}, false
	}
	principal, ok := value.(domain.Principal)
	return principal, ok
}

func bearerToken(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", errors.New("missing authorization header")
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header format")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("empty bearer token")
	}
	return token, nil
}

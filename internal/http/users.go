package httpx

import (
	"net/http"

	"github.com/ptfpinho23/HeadlessVendingMachine/internal/service/user"
)

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	token, err := r.auth.Login(req.Context(), payload.Username, payload.Password)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeData(w, http.StatusOK, "login successful", map[string]string{"token": token})
}

func (r *Router) handleLogout(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	principal, _ := principalFromContext(req.Context())
	if err := r.auth.Logout(req.Context(), principal.Username); err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeData(w, http.StatusCreated, "active session terminated", nil)
}

// handleUsers serves signup (public) and the account list (authenticated).
func (r *Router) handleUsers(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodPost:
		r.withRateLimit("/users", r.opts.SignupRateLimit, r.opts.RateLimitWindow, r.rateLimitKeyIP, r.createUser)(w, req)
	case http.MethodGet:
		r.requireAuth(r.listUsers)(w, req)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) createUser(w http.ResponseWriter, req *http.Request) {
	var payload struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := decodeJSON(req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	view, err := r.users.Create(req.Context(), payload.Username, payload.Password, payload.Role)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeData(w, http.StatusCreated, "user created", view)
}

func (r *Router) listUsers(w http.ResponseWriter, req *http.Request) {
	users, err := r.users.List(req.Context())
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeData(w, http.StatusOK, "", users)
}

func (r *Router) handleUser(w http.ResponseWriter, req *http.Request) {
	id, ok := pathID(req.URL.Path, "/users/")
	if !ok {
		r.notFound(w)
		return
	}
	principal, _ := principalFromContext(req.Context())
	switch req.Method {
	case http.MethodGet:
		view, err := r.users.Get(req.Context(), id)
		if err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		writeData(w, http.StatusOK, "", view)
	case http.MethodPatch:
		var payload user.UpdateInput
		if err := decodeJSON(req, &payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		view, err := r.users.Update(req.Context(), principal.UserID, id, payload)
		if err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		writeData(w, http.StatusOK, "user updated", view)
	case http.MethodDelete:
		if err := r.users.Delete(req.Context(), principal.UserID, id); err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		writeData(w, http.StatusOK, "user deleted", nil)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleDeposit(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Amount int `json:"amount"`
	}
	if err := decodeJSON(req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "amount must be an integer")
		return
	}
	principal, _ := principalFromContext(req.Context())
	balance, err := r.users.Deposit(req.Context(), principal.UserID, payload.Amount)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	r.recordDeposit(payload.Amount)
	writeData(w, http.StatusOK, "deposit accepted", map[string]int{"deposit": balance})
}

func (r *Router) handleReset(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet && req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	principal, _ := principalFromContext(req.Context())
	if err := r.users.Reset(req.Context(), principal.UserID); err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeData(w, http.StatusOK, "deposit reset", map[string]int{"deposit": 0})
}

package httpx

import (
	"net/http"
	"strings"

	"github.com/ptfpinho23/HeadlessVendingMachine/internal/domain"
	"github.com/ptfpinho23/HeadlessVendingMachine/internal/service/product"
)

// handleProducts lists the catalog (public) or creates a product (seller).
// GET /products?name=X looks a product up by its unique name.
func (r *Router) handleProducts(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		if name := strings.TrimSpace(req.URL.Query().Get("name")); name != "" {
			view, err := r.products.GetByName(req.Context(), name)
			if err != nil {
				r.writeServiceError(w, req, err)
				return
			}
			writeData(w, http.StatusOK, "", view)
			return
		}
		views, err := r.products.List(req.Context())
		if err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		writeData(w, http.StatusOK, "", views)
	case http.MethodPost:
		r.requireRole(domain.RoleSeller, r.createProduct)(w, req)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) createProduct(w http.ResponseWriter, req *http.Request) {
	var payload product.CreateInput
	if err := decodeJSON(req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	principal, _ := principalFromContext(req.Context())
	view, err := r.products.Create(req.Context(), principal.UserID, payload)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeData(w, http.StatusCreated, "product created", view)
}

func (r *Router) handleProduct(w http.ResponseWriter, req *http.Request) {
	id, ok := pathID(req.URL.Path, "/products/")
	if !ok {
		r.notFound(w)
		return
	}
	switch req.Method {
	case http.MethodGet:
		view, err := r.products.Get(req.Context(), id)
		if err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		writeData(w, http.StatusOK, "", view)
	case http.MethodPatch:
		r.requireRole(domain.RoleSeller, func(w http.ResponseWriter, req *http.Request) {
			var patch domain.ProductPatch
			if err := decodeJSON(req, &patch); err != nil {
				writeError(w, http.StatusBadRequest, "invalid JSON body")
				return
			}
			principal, _ := principalFromContext(req.Context())
			view, err := r.products.Update(req.Context(), principal.UserID, id, patch)
			if err != nil {
				r.writeServiceError(w, req, err)
				return
			}
			writeData(w, http.StatusOK, "product updated", view)
		})(w, req)
	case http.MethodDelete:
		r.requireRole(domain.RoleSeller, func(w http.ResponseWriter, req *http.Request) {
			principal, _ := principalFromContext(req.Context())
			if err := r.products.Delete(req.Context(), principal.UserID, id); err != nil {
				r.writeServiceError(w, req, err)
				return
			}
			writeData(w, http.StatusOK, "product deleted", nil)
		})(w, req)
	default:
		r.methodNotAllowed(w)
	}
}

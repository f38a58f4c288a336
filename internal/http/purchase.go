package httpx

import (
	"net/http"

	"github.com/ptfpinho23/HeadlessVendingMachine/internal/apperr"
)

func (r *Router) handlePurchase(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		ProductID       string `json:"productId"`
		AmountOfProduct int    `json:"amountOfProduct"`
	}
	if err := decodeJSON(req, &payload); err != nil {
		r.recordPurchase(apperr.InvalidInput.String())
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	principal, _ := principalFromContext(req.Context())
	receipt, err := r.purchases.Buy(req.Context(), principal.UserID, payload.ProductID, payload.AmountOfProduct)
	if err != nil {
		r.recordPurchase(apperr.KindOf(err).String())
		r.writeServiceError(w, req, err)
		return
	}
	r.recordPurchase("success")
	writeData(w, http.StatusCreated, "Thanks for your Purchase!", receipt)
}

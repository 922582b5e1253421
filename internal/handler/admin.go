package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/feastbox/checkout-api/internal/domain/order"
	"github.com/feastbox/checkout-api/internal/repository"
)

const defaultOrderListLimit = 50

type manualOrderRequest struct {
	checkoutRequest
	// Overrides replaces unit prices by item ID. Values must be >= 0.
	Overrides map[string]decimal.Decimal `json:"overrides,omitempty"`
}

// placeManualOrder creates an order on behalf of a customer, settled
// out-of-band. Admin callers may override line prices; every override is
// flagged on the stored line item for audit.
func (h *Handler) placeManualOrder(w http.ResponseWriter, r *http.Request) {
	var req manualOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	dreq, err := req.toDomain()
	if err != nil {
		respondError(w, r, err)
		return
	}
	dreq.Overrides = req.Overrides
	dreq.Manual = true

	o, err := h.checkout.PlaceOrder(r.Context(), order.PlaceOrderRequest{CheckoutRequest: dreq})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	limit := defaultOrderListLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	orders, err := h.orders.List(r.Context(), limit)
	if err != nil {
		respondError(w, r, err)
		return
	}

	out := make([]orderResponse, len(orders))
	for i := range orders {
		out[i] = toOrderResponse(&orders[i])
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	o, err := h.orders.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			respondJSON(w, http.StatusNotFound, errorResponse{Error: "order not found"})
			return
		}
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toOrderResponse(o))
}

package handler

import (
	"net/http"

	"github.com/shopspring/decimal"
)

type validateCodeRequest struct {
	Code string `json:"code"`
}

type couponValidResponse struct {
	Valid bool            `json:"valid"`
	Code  string          `json:"code"`
	Kind  string          `json:"kind"`
	Value decimal.Decimal `json:"value"`
}

type giftCardValidResponse struct {
	Valid   bool            `json:"valid"`
	Code    string          `json:"code"`
	Balance decimal.Decimal `json:"balance"`
}

// validateCoupon checks a coupon code without consuming a use. The same
// validation runs again inside order placement, so a code that expires
// between the two calls is still rejected at redemption.
func (h *Handler) validateCoupon(w http.ResponseWriter, r *http.Request) {
	var req validateCodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.coupons.Validate(r.Context(), req.Code)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, couponValidResponse{
		Valid: true,
		Code:  c.Code,
		Kind:  string(c.Kind),
		Value: c.Value,
	})
}

// validateGiftCard checks a gift card code without touching its balance.
func (h *Handler) validateGiftCard(w http.ResponseWriter, r *http.Request) {
	var req validateCodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	gc, err := h.giftcards.Validate(r.Context(), req.Code)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, giftCardValidResponse{
		Valid:   true,
		Code:    gc.Code,
		Balance: gc.Balance,
	})
}

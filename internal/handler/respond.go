package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/feastbox/checkout-api/internal/domain/cart"
	"github.com/feastbox/checkout-api/internal/domain/discount"
	"github.com/feastbox/checkout-api/internal/domain/fulfillment"
	"github.com/feastbox/checkout-api/internal/domain/order"
)

type errorResponse struct {
	Error string `json:"error"`
}

type catalogItemResponse struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Kind     string          `json:"kind"`
	Category string          `json:"category,omitempty"`
	Contents map[string]int  `json:"contents,omitempty"`
}

type collectionPointResponse struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Address       string          `json:"address,omitempty"`
	CollectionFee decimal.Decimal `json:"collection_fee"`
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// respondError maps an error onto the wire contract: business-rule
// rejections are 200 with an error string, infrastructure failures are 500.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	if isBusinessRejection(err) {
		respondJSON(w, http.StatusOK, errorResponse{Error: err.Error()})
		return
	}

	var rec *order.ReconciliationError
	if errors.As(err, &rec) {
		// A charge exists without an order record. This must reach an
		// operator, not just the client.
		zctx.From(r.Context()).Error("RECONCILIATION REQUIRED",
			zap.String("order_id", rec.OrderID),
			zap.String("charge_ref", rec.ChargeRef),
			zap.Error(rec.Err),
		)
		respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "order could not be finalized, support has been notified"})
		return
	}

	zctx.From(r.Context()).Error("Request failed", zap.Error(err))
	respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

// isBusinessRejection reports whether the error is an expected business-rule
// outcome the customer can act on, as opposed to a system fault.
func isBusinessRejection(err error) bool {
	switch {
	case errors.Is(err, order.ErrEmptyItems),
		errors.Is(err, order.ErrBelowMinimumCharge),
		errors.Is(err, order.ErrMissingClientSecret),
		errors.Is(err, order.ErrPaymentDeclined),
		errors.Is(err, order.ErrInvalidFulfillment),
		errors.Is(err, discount.ErrInvalidCoupon),
		errors.Is(err, discount.ErrCouponExpired),
		errors.Is(err, discount.ErrCouponUsageLimitReached),
		errors.Is(err, discount.ErrInvalidGiftCard),
		errors.Is(err, discount.ErrGiftCardRedeemed),
		errors.Is(err, discount.ErrGiftCardConflict),
		errors.Is(err, fulfillment.ErrNoZoneMatch),
		errors.Is(err, fulfillment.ErrNoCollectionPoint),
		errors.Is(err, fulfillment.ErrInvalidSelection),
		errors.Is(err, cart.ErrNegativeOverride):
		return true
	}

	var (
		notFound    *order.ItemNotFoundError
		badQuantity *order.InvalidQuantityError
	)
	return errors.As(err, &notFound) || errors.As(err, &badQuantity)
}

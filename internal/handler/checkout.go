package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/feastbox/checkout-api/internal/domain/cart"
	"github.com/feastbox/checkout-api/internal/domain/fulfillment"
	"github.com/feastbox/checkout-api/internal/domain/order"
)

type itemRequest struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

type fulfillmentRequest struct {
	Method            string `json:"method"`
	Postcode          string `json:"postcode,omitempty"`
	CollectionPointID string `json:"collection_point_id,omitempty"`
	RequestedDate     string `json:"requested_date"`
}

type checkoutRequest struct {
	Items        []itemRequest      `json:"items"`
	Fulfillment  fulfillmentRequest `json:"fulfillment"`
	CouponCode   string             `json:"coupon_code,omitempty"`
	GiftCardCode string             `json:"gift_card_code,omitempty"`
	Subscriber   bool               `json:"subscriber,omitempty"`
}

type placeOrderRequest struct {
	checkoutRequest
	ClientSecret string `json:"client_secret,omitempty"`
}

type quotedItemResponse struct {
	ItemID    string          `json:"item_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

type quoteResponse struct {
	Subtotal             decimal.Decimal      `json:"subtotal"`
	Fee                  decimal.Decimal      `json:"fee"`
	SubscriptionDiscount decimal.Decimal      `json:"subscription_discount"`
	CouponDiscount       decimal.Decimal      `json:"coupon_discount"`
	GiftCardApplied      decimal.Decimal      `json:"gift_card_applied"`
	FreeDelivery         bool                 `json:"free_delivery,omitempty"`
	TotalMinorUnits      int64                `json:"total_minor_units"`
	Items                []quotedItemResponse `json:"items"`
}

type intentResponse struct {
	ClientSecret string        `json:"client_secret,omitempty"`
	Quote        quoteResponse `json:"quote"`
}

type orderResponse struct {
	ID                   string              `json:"id"`
	Subtotal             decimal.Decimal     `json:"subtotal"`
	Fee                  decimal.Decimal     `json:"fee"`
	SubscriptionDiscount decimal.Decimal     `json:"subscription_discount"`
	CouponDiscount       decimal.Decimal     `json:"coupon_discount"`
	GiftCardApplied      decimal.Decimal     `json:"gift_card_applied"`
	TotalMinorUnits      int64               `json:"total_minor_units"`
	Currency             string              `json:"currency"`
	Items                []orderItemResponse `json:"items"`
	Fulfillment          fulfillmentRequest  `json:"fulfillment"`
	ChargeRef            string              `json:"charge_ref,omitempty"`
	Manual               bool                `json:"manual,omitempty"`
	Redemptions          []redemptionView    `json:"redemptions,omitempty"`
	CreatedAt            time.Time           `json:"created_at"`
}

type orderItemResponse struct {
	ItemID          string          `json:"item_id"`
	Name            string          `json:"name"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	Quantity        int             `json:"quantity"`
	PriceOverridden bool            `json:"price_overridden,omitempty"`
}

type redemptionView struct {
	Instrument string          `json:"instrument"`
	Code       string          `json:"code"`
	Amount     decimal.Decimal `json:"amount"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondJSON(w, http.StatusOK, errorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func (cr checkoutRequest) toDomain() (order.CheckoutRequest, error) {
	items := make([]order.ItemRequest, len(cr.Items))
	for i, it := range cr.Items {
		items[i] = order.ItemRequest{ItemID: it.ItemID, Quantity: it.Quantity}
	}

	var date time.Time
	if cr.Fulfillment.RequestedDate != "" {
		var err error
		date, err = time.Parse("2006-01-02", cr.Fulfillment.RequestedDate)
		if err != nil {
			return order.CheckoutRequest{}, fulfillment.ErrInvalidSelection
		}
	}

	return order.CheckoutRequest{
		Items: items,
		Fulfillment: fulfillment.Selection{
			Method:            fulfillment.Method(cr.Fulfillment.Method),
			Postcode:          cr.Fulfillment.Postcode,
			CollectionPointID: cr.Fulfillment.CollectionPointID,
			RequestedDate:     date,
		},
		CouponCode:   cr.CouponCode,
		GiftCardCode: cr.GiftCardCode,
		Subscriber:   cr.Subscriber,
	}, nil
}

func (h *Handler) quote(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	dreq, err := req.toDomain()
	if err != nil {
		respondError(w, r, err)
		return
	}

	res, err := h.checkout.Quote(r.Context(), dreq)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toQuoteResponse(res.Quote, res.Items))
}

func (h *Handler) createIntent(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	dreq, err := req.toDomain()
	if err != nil {
		respondError(w, r, err)
		return
	}

	intent, err := h.checkout.CreateIntent(r.Context(), dreq)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, intentResponse{
		ClientSecret: intent.ClientSecret,
		Quote:        toQuoteResponse(intent.Quote, nil),
	})
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	dreq, err := req.toDomain()
	if err != nil {
		respondError(w, r, err)
		return
	}

	o, err := h.checkout.PlaceOrder(r.Context(), order.PlaceOrderRequest{
		CheckoutRequest: dreq,
		ClientSecret:    req.ClientSecret,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toOrderResponse(o))
}

func toQuoteResponse(q order.Quote, items []cart.LineItem) quoteResponse {
	resp := quoteResponse{
		Subtotal:             q.Subtotal,
		Fee:                  q.Fee,
		SubscriptionDiscount: q.SubscriptionDiscount,
		CouponDiscount:       q.CouponDiscount,
		GiftCardApplied:      q.GiftCardApplied,
		FreeDelivery:         q.FreeDelivery,
		TotalMinorUnits:      q.TotalMinorUnits,
	}
	for _, it := range items {
		resp.Items = append(resp.Items, quotedItemResponse{
			ItemID:    it.ID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
		})
	}
	return resp
}

func toOrderResponse(o *order.Order) orderResponse {
	resp := orderResponse{
		ID:                   o.ID,
		Subtotal:             o.Subtotal,
		Fee:                  o.Fee,
		SubscriptionDiscount: o.SubscriptionDiscount,
		CouponDiscount:       o.CouponDiscount,
		GiftCardApplied:      o.GiftCardApplied,
		TotalMinorUnits:      o.TotalMinorUnits,
		Currency:             o.Currency,
		Fulfillment: fulfillmentRequest{
			Method:            string(o.Fulfillment.Method),
			Postcode:          o.Fulfillment.Postcode,
			CollectionPointID: o.Fulfillment.CollectionPointID,
			RequestedDate:     o.Fulfillment.RequestedDate.Format("2006-01-02"),
		},
		ChargeRef: o.ChargeRef,
		Manual:    o.Manual,
		CreatedAt: o.CreatedAt,
	}
	for _, it := range o.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			ItemID:          it.ItemID,
			Name:            it.Name,
			UnitPrice:       it.UnitPrice,
			Quantity:        it.Quantity,
			PriceOverridden: it.PriceOverridden,
		})
	}
	for _, red := range o.Redemptions {
		resp.Redemptions = append(resp.Redemptions, redemptionView{
			Instrument: red.Instrument,
			Code:       red.Code,
			Amount:     red.Amount,
		})
	}
	return resp
}

package order

import (
	"context"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/feastbox/checkout-api/internal/domain/cart"
	"github.com/feastbox/checkout-api/internal/domain/catalog"
	"github.com/feastbox/checkout-api/internal/domain/discount"
	"github.com/feastbox/checkout-api/internal/domain/fulfillment"
)

// Payment gateway contract errors. Implementations map processor responses
// onto these so the caller can tell "try another card" from "retry later".
var (
	ErrPaymentDeclined    = errors.New("payment declined")
	ErrPaymentUnavailable = errors.New("payment processor unavailable")
)

// PaymentGateway is the payment collaborator contract: create an intent for
// an exact minor-unit amount, then confirm it. Metadata travels to the
// processor transaction for later audit.
type PaymentGateway interface {
	CreateIntent(ctx context.Context, amountMinorUnits int64, currency string, metadata map[string]string) (clientSecret string, err error)
	Confirm(ctx context.Context, clientSecret string) (chargeRef string, err error)
}

// SettingsSource supplies the storefront's subscription discount, fetched
// once per checkout rather than read from process-wide state.
type SettingsSource interface {
	SubscriptionDiscount(ctx context.Context) (percent decimal.Decimal, enabled bool, err error)
}

// Notifier receives confirmed orders. Implementations are fire-and-forget
// and must never fail the checkout path.
type Notifier interface {
	OrderConfirmed(ctx context.Context, o *Order)
}

// ItemRequest is one requested cart line.
type ItemRequest struct {
	ItemID   string
	Quantity int
}

// CheckoutRequest is the input shared by the quote, intent, and order paths.
// Overrides and Manual are only honored on the admin path; the handler
// rejects them elsewhere before any computation.
type CheckoutRequest struct {
	Items        []ItemRequest
	Fulfillment  fulfillment.Selection
	CouponCode   string
	GiftCardCode string
	Subscriber   bool
	Overrides    map[string]decimal.Decimal
	Manual       bool
}

// PlaceOrderRequest finalizes a checkout. ClientSecret identifies the
// payment intent created earlier; it is empty for zero-total and manual
// orders.
type PlaceOrderRequest struct {
	CheckoutRequest
	ClientSecret string
}

// QuoteResult pairs the pricing breakdown with the resolved line items at
// their effective prices.
type QuoteResult struct {
	Quote Quote
	Items []cart.LineItem
}

// Intent is a created payment intent plus the quote it was priced from.
// ClientSecret is empty when no charge is needed.
type Intent struct {
	ClientSecret string
	Quote        Quote
}

// Service orchestrates checkout: pricing, payment settlement, and
// persistence.
type Service struct {
	items     catalog.Repository
	fees      *fulfillment.Resolver
	coupons   *discount.CouponValidator
	giftcards *discount.GiftCardValidator
	orders    Repository
	payments  PaymentGateway
	settings  SettingsSource
	notifier  Notifier
	currency  string
}

// NewService creates a checkout Service with the required collaborators.
func NewService(
	items catalog.Repository,
	fees *fulfillment.Resolver,
	coupons *discount.CouponValidator,
	giftcards *discount.GiftCardValidator,
	orders Repository,
	payments PaymentGateway,
	settings SettingsSource,
	notifier Notifier,
	currency string,
) *Service {
	return &Service{
		items:     items,
		fees:      fees,
		coupons:   coupons,
		giftcards: giftcards,
		orders:    orders,
		payments:  payments,
		settings:  settings,
		notifier:  notifier,
		currency:  currency,
	}
}

// Quote prices a checkout without touching any instrument state: the
// preview path and the charge path share this computation exactly.
func (s *Service) Quote(ctx context.Context, req CheckoutRequest) (*QuoteResult, error) {
	items, ov, feeRes, dctx, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	q, err := BuildQuote(items, ov, feeRes, req.Fulfillment.Method, dctx)
	if err != nil {
		return nil, err
	}
	if q.TotalMinorUnits > 0 && q.TotalMinorUnits < MinimumChargeMinorUnits {
		return nil, ErrBelowMinimumCharge
	}

	return &QuoteResult{Quote: q, Items: ov.Apply(items)}, nil
}

// CreateIntent prices the checkout and registers a payment intent for the
// final amount. When the gift card covers everything no intent is created
// and the client secret is empty.
func (s *Service) CreateIntent(ctx context.Context, req CheckoutRequest) (*Intent, error) {
	res, err := s.Quote(ctx, req)
	if err != nil {
		return nil, err
	}
	q := res.Quote

	if q.TotalMinorUnits == 0 {
		return &Intent{Quote: q}, nil
	}

	secret, err := s.payments.CreateIntent(ctx, q.TotalMinorUnits, s.currency, s.intentMetadata(req, q))
	if err != nil {
		return nil, errors.Wrap(err, "create payment intent")
	}
	return &Intent{ClientSecret: secret, Quote: q}, nil
}

// PlaceOrder finalizes a checkout. Instruments are re-validated here rather
// than trusted from the earlier quote, the charge is confirmed, and the
// order with its redemption records is committed in one transaction. No
// instrument state is mutated before payment confirmation, so an abandoned
// checkout leaves nothing behind.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Order, error) {
	items, ov, feeRes, dctx, err := s.resolve(ctx, req.CheckoutRequest)
	if err != nil {
		return nil, err
	}

	q, err := BuildQuote(items, ov, feeRes, req.Fulfillment.Method, dctx)
	if err != nil {
		return nil, err
	}
	if q.TotalMinorUnits > 0 && q.TotalMinorUnits < MinimumChargeMinorUnits {
		return nil, ErrBelowMinimumCharge
	}

	chargeRef := ""
	charged := false
	switch {
	case req.Manual:
		// Manual admin orders settle out-of-band.
		chargeRef = "offline"
	case q.TotalMinorUnits == 0:
		// Fully covered by the gift card; nothing to charge.
	default:
		if req.ClientSecret == "" {
			return nil, ErrMissingClientSecret
		}
		chargeRef, err = s.payments.Confirm(ctx, req.ClientSecret)
		if err != nil {
			return nil, errors.Wrap(err, "confirm payment")
		}
		charged = true
	}

	o := s.buildOrder(req.CheckoutRequest, items, ov, feeRes, q, chargeRef)

	if err := s.orders.Create(ctx, o); err != nil {
		if charged {
			// The charge exists but the order does not. Surface it as a
			// reconciliation failure for manual follow-up; retrying would
			// double-charge.
			return nil, &ReconciliationError{OrderID: o.ID, ChargeRef: chargeRef, Err: err}
		}
		return nil, errors.Wrap(err, "create order")
	}

	if s.notifier != nil {
		s.notifier.OrderConfirmed(ctx, o)
	}
	return o, nil
}

// resolve validates the request and loads everything pricing needs: catalog
// line items, the override set, the resolved fee, and the discount context.
func (s *Service) resolve(ctx context.Context, req CheckoutRequest) ([]cart.LineItem, *cart.OverrideSet, fulfillment.FeeResult, discount.Context, error) {
	var (
		feeRes fulfillment.FeeResult
		dctx   discount.Context
	)

	items, err := s.lineItems(ctx, req.Items)
	if err != nil {
		return nil, nil, feeRes, dctx, err
	}

	var ov *cart.OverrideSet
	if len(req.Overrides) > 0 {
		ov = cart.NewOverrideSet()
		for id, price := range req.Overrides {
			if err := ov.Set(id, price); err != nil {
				return nil, nil, feeRes, dctx, err
			}
		}
	}

	feeRes, err = s.fees.Resolve(ctx, req.Fulfillment)
	if err != nil {
		return nil, nil, feeRes, dctx, err
	}

	if req.Subscriber {
		percent, enabled, err := s.settings.SubscriptionDiscount(ctx)
		if err != nil {
			return nil, nil, feeRes, dctx, errors.Wrap(err, "load subscription settings")
		}
		if enabled {
			dctx.SubscriptionPercent = percent
		}
	}

	if req.CouponCode != "" {
		c, err := s.coupons.Validate(ctx, req.CouponCode)
		if err != nil {
			return nil, nil, feeRes, dctx, err
		}
		dctx.Coupon = c
	}

	if req.GiftCardCode != "" {
		gc, err := s.giftcards.Validate(ctx, req.GiftCardCode)
		if err != nil {
			return nil, nil, feeRes, dctx, err
		}
		dctx.GiftCard = gc
	}

	return items, ov, feeRes, dctx, nil
}

// lineItems validates quantities and batch-fetches the catalog records in a
// single query.
func (s *Service) lineItems(ctx context.Context, reqs []ItemRequest) ([]cart.LineItem, error) {
	if len(reqs) == 0 {
		return nil, ErrEmptyItems
	}

	ids := make([]string, len(reqs))
	for i, r := range reqs {
		if r.Quantity <= 0 {
			return nil, &InvalidQuantityError{ItemID: r.ItemID}
		}
		ids[i] = r.ItemID
	}

	fetched, err := s.items.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get catalog items")
	}
	byID := make(map[string]catalog.Item, len(fetched))
	for _, it := range fetched {
		byID[it.ID] = it
	}

	items := make([]cart.LineItem, len(reqs))
	for i, r := range reqs {
		it, ok := byID[r.ItemID]
		if !ok {
			return nil, &ItemNotFoundError{ItemID: r.ItemID}
		}
		items[i] = cart.LineItem{
			ID:        it.ID,
			Name:      it.Name,
			UnitPrice: it.Price,
			Quantity:  r.Quantity,
			Kind:      cart.Kind(it.Kind),
			Contents:  it.Contents,
		}
	}
	return items, nil
}

func (s *Service) buildOrder(req CheckoutRequest, items []cart.LineItem, ov *cart.OverrideSet, feeRes fulfillment.FeeResult, q Quote, chargeRef string) *Order {
	orderItems := make([]Item, len(items))
	for i, li := range items {
		orderItems[i] = Item{
			ItemID:          li.ID,
			Name:            li.Name,
			UnitPrice:       ov.UnitPrice(li),
			Quantity:        li.Quantity,
			Kind:            string(li.Kind),
			PriceOverridden: ov.Overridden(li.ID),
		}
	}

	o := &Order{
		ID:                   uuid.New().String(),
		Items:                orderItems,
		Subtotal:             q.Subtotal,
		Fee:                  q.Fee,
		SubscriptionDiscount: q.SubscriptionDiscount,
		CouponDiscount:       q.CouponDiscount,
		GiftCardApplied:      q.GiftCardApplied,
		TotalMinorUnits:      q.TotalMinorUnits,
		Currency:             s.currency,
		CouponCode:           req.CouponCode,
		GiftCardCode:         req.GiftCardCode,
		Fulfillment:          req.Fulfillment,
		ChargeRef:            chargeRef,
		Manual:               req.Manual,
	}

	if req.CouponCode != "" {
		amount := q.CouponDiscount
		if q.FreeDelivery {
			// The value of a free-delivery coupon is the waived fee.
			amount = feeRes.Fee
		}
		o.Redemptions = append(o.Redemptions, Redemption{
			Instrument: InstrumentCoupon,
			Code:       req.CouponCode,
			Amount:     amount,
		})
	}
	if req.GiftCardCode != "" && q.GiftCardApplied.IsPositive() {
		o.Redemptions = append(o.Redemptions, Redemption{
			Instrument: InstrumentGiftCard,
			Code:       req.GiftCardCode,
			Amount:     q.GiftCardApplied,
		})
	}
	return o
}

// intentMetadata is the audit bundle attached to the processor transaction.
func (s *Service) intentMetadata(req CheckoutRequest, q Quote) map[string]string {
	meta := map[string]string{
		"subtotal":              q.Subtotal.String(),
		"fee":                   q.Fee.String(),
		"subscription_discount": q.SubscriptionDiscount.String(),
		"coupon_discount":       q.CouponDiscount.String(),
		"gift_card_applied":     q.GiftCardApplied.String(),
		"total_minor_units":     strconv.FormatInt(q.TotalMinorUnits, 10),
		"fulfillment_method":    string(req.Fulfillment.Method),
		"requested_date":        req.Fulfillment.RequestedDate.Format("2006-01-02"),
	}
	if req.CouponCode != "" {
		meta["coupon_code"] = req.CouponCode
	}
	if req.GiftCardCode != "" {
		meta["gift_card_code"] = req.GiftCardCode
	}
	return meta
}

package order

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feastbox/checkout-api/internal/domain/catalog"
	"github.com/feastbox/checkout-api/internal/domain/discount"
	"github.com/feastbox/checkout-api/internal/domain/fulfillment"
)

// --- Mock implementations ---

type mockCatalog struct {
	items map[string]catalog.Item
	err   error
}

func (m *mockCatalog) List(_ context.Context) ([]catalog.Item, error) {
	out := make([]catalog.Item, 0, len(m.items))
	for _, it := range m.items {
		out = append(out, it)
	}
	return out, nil
}

func (m *mockCatalog) GetByIDs(_ context.Context, ids []string) ([]catalog.Item, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []catalog.Item
	for _, id := range ids {
		if it, ok := m.items[id]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

type mockZoneRepo struct {
	zone *fulfillment.Zone
}

func (m *mockZoneRepo) MatchPostcode(_ context.Context, postcode string) (*fulfillment.Zone, error) {
	if m.zone != nil && m.zone.Matches(postcode) {
		return m.zone, nil
	}
	return nil, fulfillment.ErrNoZoneMatch
}

type mockPointRepo struct {
	point *fulfillment.CollectionPoint
}

func (m *mockPointRepo) GetByID(_ context.Context, id string) (*fulfillment.CollectionPoint, error) {
	if m.point != nil && m.point.ID == id {
		return m.point, nil
	}
	return nil, fulfillment.ErrNoCollectionPoint
}

func (m *mockPointRepo) List(_ context.Context) ([]fulfillment.CollectionPoint, error) {
	if m.point == nil {
		return nil, nil
	}
	return []fulfillment.CollectionPoint{*m.point}, nil
}

type mockCouponRepo struct {
	coupon *discount.Coupon
	err    error
	calls  int
}

func (m *mockCouponRepo) FindByCode(_ context.Context, _ string) (*discount.Coupon, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.coupon == nil {
		return nil, discount.ErrInvalidCoupon
	}
	return m.coupon, nil
}

type mockGiftCardRepo struct {
	card *discount.GiftCard
}

func (m *mockGiftCardRepo) FindByCode(_ context.Context, _ string) (*discount.GiftCard, error) {
	if m.card == nil {
		return nil, discount.ErrInvalidGiftCard
	}
	return m.card, nil
}

type mockOrderRepo struct {
	lastOrder *Order
	err       error
}

func (m *mockOrderRepo) Create(_ context.Context, o *Order) error {
	if m.err != nil {
		return m.err
	}
	m.lastOrder = o
	return nil
}

type mockGateway struct {
	intentSecret string
	intentErr    error
	chargeRef    string
	confirmErr   error

	intents      int
	confirms     int
	lastAmount   int64
	lastCurrency string
	lastMetadata map[string]string
}

func (m *mockGateway) CreateIntent(_ context.Context, amount int64, currency string, metadata map[string]string) (string, error) {
	m.intents++
	m.lastAmount = amount
	m.lastCurrency = currency
	m.lastMetadata = metadata
	return m.intentSecret, m.intentErr
}

func (m *mockGateway) Confirm(_ context.Context, _ string) (string, error) {
	m.confirms++
	return m.chargeRef, m.confirmErr
}

type mockSettings struct {
	percent decimal.Decimal
	enabled bool
	err     error
}

func (m *mockSettings) SubscriptionDiscount(_ context.Context) (decimal.Decimal, bool, error) {
	return m.percent, m.enabled, m.err
}

type mockNotifier struct {
	confirmed []*Order
}

func (m *mockNotifier) OrderConfirmed(_ context.Context, o *Order) {
	m.confirmed = append(m.confirmed, o)
}

// --- Helpers ---

type fixture struct {
	catalog   *mockCatalog
	coupons   *mockCouponRepo
	giftcards *mockGiftCardRepo
	orders    *mockOrderRepo
	gateway   *mockGateway
	settings  *mockSettings
	notifier  *mockNotifier
	svc       *Service
}

func newFixture() *fixture {
	f := &fixture{
		catalog: &mockCatalog{items: map[string]catalog.Item{
			"m1": {ID: "m1", Name: "Katsu Curry", Price: dec("10.00"), Kind: "meal"},
			"m2": {ID: "m2", Name: "Pad Thai", Price: dec("7.95"), Kind: "meal"},
			"pk1": {ID: "pk1", Name: "Family Box", Price: dec("24.00"), Kind: "package",
				Contents: map[string]int{"m1": 2, "m2": 2}},
		}},
		coupons:   &mockCouponRepo{},
		giftcards: &mockGiftCardRepo{},
		orders:    &mockOrderRepo{},
		gateway:   &mockGateway{intentSecret: "pi_secret_123", chargeRef: "ch_456"},
		settings:  &mockSettings{percent: dec("10"), enabled: true},
		notifier:  &mockNotifier{},
	}

	zones := &mockZoneRepo{zone: &fulfillment.Zone{
		ID: "z1", PostcodePrefixes: []string{"SW1"}, DeliveryFee: dec("3.00"),
	}}
	points := &mockPointRepo{point: &fulfillment.CollectionPoint{
		ID: "cp1", Name: "Borough Market", CollectionFee: dec("1.00"),
	}}

	f.svc = NewService(
		f.catalog,
		fulfillment.NewResolver(zones, points),
		discount.NewCouponValidator(f.coupons),
		discount.NewGiftCardValidator(f.giftcards),
		f.orders,
		f.gateway,
		f.settings,
		f.notifier,
		"GBP",
	)
	return f
}

func deliveryReq(items ...ItemRequest) CheckoutRequest {
	return CheckoutRequest{
		Items: items,
		Fulfillment: fulfillment.Selection{
			Method:        fulfillment.MethodDelivery,
			Postcode:      "SW1A 1AA",
			RequestedDate: time.Date(2026, 9, 4, 0, 0, 0, 0, time.UTC),
		},
	}
}

// --- Tests ---

func TestService_Quote(t *testing.T) {
	f := newFixture()

	res, err := f.svc.Quote(context.Background(), deliveryReq(ItemRequest{ItemID: "m1", Quantity: 2}))
	require.NoError(t, err)

	assert.True(t, res.Quote.Subtotal.Equal(dec("20.00")))
	assert.True(t, res.Quote.Fee.Equal(dec("3.00")))
	assert.Equal(t, int64(2300), res.Quote.TotalMinorUnits)
	assert.Nil(t, f.orders.lastOrder, "quote must not persist anything")
	assert.Equal(t, 0, f.gateway.intents)
}

func TestService_Quote_EmptyItems(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Quote(context.Background(), deliveryReq())
	require.ErrorIs(t, err, ErrEmptyItems)
}

func TestService_Quote_InvalidQuantity(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Quote(context.Background(), deliveryReq(ItemRequest{ItemID: "m1", Quantity: 0}))

	var iq *InvalidQuantityError
	require.ErrorAs(t, err, &iq)
	assert.Equal(t, "m1", iq.ItemID)
}

func TestService_Quote_UnknownItem(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Quote(context.Background(), deliveryReq(ItemRequest{ItemID: "nope", Quantity: 1}))

	var nf *ItemNotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestService_Quote_UnmatchedPostcodeNeverPrices(t *testing.T) {
	f := newFixture()
	req := deliveryReq(ItemRequest{ItemID: "m1", Quantity: 1})
	req.Fulfillment.Postcode = "ZZ99 9ZZ"

	_, err := f.svc.Quote(context.Background(), req)
	require.ErrorIs(t, err, fulfillment.ErrNoZoneMatch)
}

func TestService_Quote_SubscriberDiscount(t *testing.T) {
	f := newFixture()
	req := deliveryReq(ItemRequest{ItemID: "m1", Quantity: 10})
	req.Subscriber = true

	res, err := f.svc.Quote(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.Quote.SubscriptionDiscount.Equal(dec("10")))
}

func TestService_Quote_SubscriptionDisabledGlobally(t *testing.T) {
	f := newFixture()
	f.settings.enabled = false
	req := deliveryReq(ItemRequest{ItemID: "m1", Quantity: 10})
	req.Subscriber = true

	res, err := f.svc.Quote(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.Quote.SubscriptionDiscount.IsZero())
}

func TestService_Quote_BelowMinimumCharge(t *testing.T) {
	f := newFixture()
	f.catalog.items["cheap"] = catalog.Item{ID: "cheap", Name: "Sauce Pot", Price: dec("0.30"), Kind: "meal"}
	f.giftcards.card = &discount.GiftCard{ID: "g1", Code: "GC", Balance: dec("1.00"), Status: discount.GiftCardActive}

	// 0.30 subtotal + 1.00 collection fee - 1.00 gift card = 0.30.
	req := deliveryReq(ItemRequest{ItemID: "cheap", Quantity: 1})
	req.GiftCardCode = "GC"
	req.Fulfillment.Method = fulfillment.MethodPickup
	req.Fulfillment.Postcode = ""
	req.Fulfillment.CollectionPointID = "cp1"

	_, err := f.svc.Quote(context.Background(), req)
	require.ErrorIs(t, err, ErrBelowMinimumCharge)
}

func TestService_CreateIntent(t *testing.T) {
	f := newFixture()
	req := deliveryReq(ItemRequest{ItemID: "m1", Quantity: 2})
	req.CouponCode = "SAVE5"
	f.coupons.coupon = &discount.Coupon{
		Code: "SAVE5", Kind: discount.CouponFixedAmount, Value: dec("5"), Active: true,
	}

	intent, err := f.svc.CreateIntent(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "pi_secret_123", intent.ClientSecret)
	assert.Equal(t, int64(1800), intent.Quote.TotalMinorUnits)
	assert.Equal(t, int64(1800), f.gateway.lastAmount)
	assert.Equal(t, "GBP", f.gateway.lastCurrency)
	assert.Equal(t, "SAVE5", f.gateway.lastMetadata["coupon_code"])
	assert.Equal(t, "2026-09-04", f.gateway.lastMetadata["requested_date"])
}

func TestService_CreateIntent_ZeroTotalSkipsGateway(t *testing.T) {
	f := newFixture()
	f.giftcards.card = &discount.GiftCard{ID: "g1", Code: "GC", Balance: dec("100"), Status: discount.GiftCardActive}
	req := deliveryReq(ItemRequest{ItemID: "m1", Quantity: 1})
	req.GiftCardCode = "GC"

	intent, err := f.svc.CreateIntent(context.Background(), req)
	require.NoError(t, err)

	assert.Empty(t, intent.ClientSecret)
	assert.Equal(t, int64(0), intent.Quote.TotalMinorUnits)
	assert.Equal(t, 0, f.gateway.intents)
}

func TestService_PlaceOrder(t *testing.T) {
	f := newFixture()
	f.coupons.coupon = &discount.Coupon{
		Code: "SAVE5", Kind: discount.CouponFixedAmount, Value: dec("5"), Active: true,
	}
	f.giftcards.card = &discount.GiftCard{ID: "g1", Code: "GC", Balance: dec("20"), Status: discount.GiftCardActive}

	req := PlaceOrderRequest{
		CheckoutRequest: deliveryReq(ItemRequest{ItemID: "m1", Quantity: 10}),
		ClientSecret:    "pi_secret_123",
	}
	req.CouponCode = "SAVE5"
	req.GiftCardCode = "GC"
	req.Subscriber = true

	o, err := f.svc.PlaceOrder(context.Background(), req)
	require.NoError(t, err)

	// 100 - 10 (subscription) - 5 (coupon) + 3 fee - 20 gift card = 68.00.
	assert.Equal(t, int64(6800), o.TotalMinorUnits)
	assert.Equal(t, "ch_456", o.ChargeRef)
	require.Len(t, o.Redemptions, 2)
	assert.Equal(t, InstrumentCoupon, o.Redemptions[0].Instrument)
	assert.True(t, o.Redemptions[0].Amount.Equal(dec("5")))
	assert.Equal(t, InstrumentGiftCard, o.Redemptions[1].Instrument)
	assert.True(t, o.Redemptions[1].Amount.Equal(dec("20")))

	require.NotNil(t, f.orders.lastOrder)
	require.Len(t, f.notifier.confirmed, 1)
	assert.Equal(t, 1, f.gateway.confirms)
}

func TestService_PlaceOrder_RevalidatesCoupon(t *testing.T) {
	f := newFixture()
	// Coupon was deactivated between quote and redemption.
	f.coupons.coupon = &discount.Coupon{
		Code: "SAVE5", Kind: discount.CouponFixedAmount, Value: dec("5"), Active: false,
	}

	req := PlaceOrderRequest{
		CheckoutRequest: deliveryReq(ItemRequest{ItemID: "m1", Quantity: 1}),
		ClientSecret:    "pi_secret_123",
	}
	req.CouponCode = "SAVE5"

	_, err := f.svc.PlaceOrder(context.Background(), req)
	require.ErrorIs(t, err, discount.ErrInvalidCoupon)
	assert.Equal(t, 0, f.gateway.confirms, "no charge on failed validation")
	assert.Nil(t, f.orders.lastOrder)
}

func TestService_PlaceOrder_MissingClientSecret(t *testing.T) {
	f := newFixture()
	req := PlaceOrderRequest{
		CheckoutRequest: deliveryReq(ItemRequest{ItemID: "m1", Quantity: 1}),
	}

	_, err := f.svc.PlaceOrder(context.Background(), req)
	require.ErrorIs(t, err, ErrMissingClientSecret)
}

func TestService_PlaceOrder_PaymentDeclined(t *testing.T) {
	f := newFixture()
	f.gateway.confirmErr = ErrPaymentDeclined

	req := PlaceOrderRequest{
		CheckoutRequest: deliveryReq(ItemRequest{ItemID: "m1", Quantity: 1}),
		ClientSecret:    "pi_secret_123",
	}

	_, err := f.svc.PlaceOrder(context.Background(), req)
	require.ErrorIs(t, err, ErrPaymentDeclined)
	assert.Nil(t, f.orders.lastOrder, "declined payment persists nothing")
}

func TestService_PlaceOrder_PersistFailureAfterChargeIsReconciliation(t *testing.T) {
	f := newFixture()
	f.orders.err = errors.New("db write failed")

	req := PlaceOrderRequest{
		CheckoutRequest: deliveryReq(ItemRequest{ItemID: "m1", Quantity: 1}),
		ClientSecret:    "pi_secret_123",
	}

	_, err := f.svc.PlaceOrder(context.Background(), req)

	var rec *ReconciliationError
	require.ErrorAs(t, err, &rec)
	assert.Equal(t, "ch_456", rec.ChargeRef)
	assert.Empty(t, f.notifier.confirmed)
}

func TestService_PlaceOrder_ZeroTotalSkipsPayment(t *testing.T) {
	f := newFixture()
	f.giftcards.card = &discount.GiftCard{ID: "g1", Code: "GC", Balance: dec("100"), Status: discount.GiftCardActive}

	req := PlaceOrderRequest{
		CheckoutRequest: deliveryReq(ItemRequest{ItemID: "m1", Quantity: 1}),
	}
	req.GiftCardCode = "GC"

	o, err := f.svc.PlaceOrder(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, int64(0), o.TotalMinorUnits)
	assert.Empty(t, o.ChargeRef)
	assert.Equal(t, 0, f.gateway.confirms)
}

func TestService_PlaceOrder_ZeroTotalConflictPassesThrough(t *testing.T) {
	f := newFixture()
	f.giftcards.card = &discount.GiftCard{ID: "g1", Code: "GC", Balance: dec("100"), Status: discount.GiftCardActive}
	f.orders.err = discount.ErrGiftCardConflict

	req := PlaceOrderRequest{
		CheckoutRequest: deliveryReq(ItemRequest{ItemID: "m1", Quantity: 1}),
	}
	req.GiftCardCode = "GC"

	_, err := f.svc.PlaceOrder(context.Background(), req)
	require.ErrorIs(t, err, discount.ErrGiftCardConflict)

	var rec *ReconciliationError
	assert.False(t, errors.As(err, &rec), "no charge happened, so not a reconciliation failure")
}

func TestService_PlaceOrder_ManualWithOverrides(t *testing.T) {
	f := newFixture()

	req := PlaceOrderRequest{
		CheckoutRequest: deliveryReq(ItemRequest{ItemID: "m1", Quantity: 2}),
	}
	req.Manual = true
	req.Overrides = map[string]decimal.Decimal{"m1": dec("1.00")}

	o, err := f.svc.PlaceOrder(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "offline", o.ChargeRef)
	assert.True(t, o.Manual)
	assert.Equal(t, 0, f.gateway.confirms)
	// 2 x 1.00 + 3.00 fee = 5.00.
	assert.Equal(t, int64(500), o.TotalMinorUnits)
	require.Len(t, o.Items, 1)
	assert.True(t, o.Items[0].PriceOverridden)
	assert.True(t, o.Items[0].UnitPrice.Equal(dec("1.00")))
}

func TestService_PlaceOrder_NegativeOverrideRejected(t *testing.T) {
	f := newFixture()

	req := PlaceOrderRequest{
		CheckoutRequest: deliveryReq(ItemRequest{ItemID: "m1", Quantity: 1}),
	}
	req.Manual = true
	req.Overrides = map[string]decimal.Decimal{"m1": dec("-2.00")}

	_, err := f.svc.PlaceOrder(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, 0, f.gateway.confirms)
}

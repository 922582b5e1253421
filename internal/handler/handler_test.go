package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feastbox/checkout-api/internal/domain/auth"
	"github.com/feastbox/checkout-api/internal/domain/catalog"
	"github.com/feastbox/checkout-api/internal/domain/discount"
	"github.com/feastbox/checkout-api/internal/domain/fulfillment"
	"github.com/feastbox/checkout-api/internal/domain/order"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// --- Mocks ---

type stubCatalog struct {
	items map[string]catalog.Item
}

func (s *stubCatalog) List(context.Context) ([]catalog.Item, error) {
	out := make([]catalog.Item, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, it)
	}
	return out, nil
}

func (s *stubCatalog) GetByIDs(_ context.Context, ids []string) ([]catalog.Item, error) {
	var out []catalog.Item
	for _, id := range ids {
		if it, ok := s.items[id]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

type stubZones struct{ zone *fulfillment.Zone }

func (s *stubZones) MatchPostcode(_ context.Context, postcode string) (*fulfillment.Zone, error) {
	if s.zone != nil && s.zone.Matches(postcode) {
		return s.zone, nil
	}
	return nil, fulfillment.ErrNoZoneMatch
}

type stubPoints struct{ points []fulfillment.CollectionPoint }

func (s *stubPoints) GetByID(_ context.Context, id string) (*fulfillment.CollectionPoint, error) {
	for i := range s.points {
		if s.points[i].ID == id {
			return &s.points[i], nil
		}
	}
	return nil, fulfillment.ErrNoCollectionPoint
}

func (s *stubPoints) List(context.Context) ([]fulfillment.CollectionPoint, error) {
	return s.points, nil
}

type stubCouponRepo struct{ coupon *discount.Coupon }

func (s *stubCouponRepo) FindByCode(context.Context, string) (*discount.Coupon, error) {
	if s.coupon == nil {
		return nil, discount.ErrInvalidCoupon
	}
	return s.coupon, nil
}

type stubGiftCardRepo struct{ card *discount.GiftCard }

func (s *stubGiftCardRepo) FindByCode(context.Context, string) (*discount.GiftCard, error) {
	if s.card == nil {
		return nil, discount.ErrInvalidGiftCard
	}
	return s.card, nil
}

type stubOrderRepo struct {
	created []*order.Order
	err     error
}

func (s *stubOrderRepo) Create(_ context.Context, o *order.Order) error {
	if s.err != nil {
		return s.err
	}
	s.created = append(s.created, o)
	return nil
}

func (s *stubOrderRepo) GetByID(context.Context, string) (*order.Order, error) {
	if len(s.created) == 0 {
		return nil, errors.New("no orders")
	}
	return s.created[0], nil
}

func (s *stubOrderRepo) List(_ context.Context, limit int) ([]order.Order, error) {
	out := make([]order.Order, 0, len(s.created))
	for _, o := range s.created {
		out = append(out, *o)
	}
	return out, nil
}

type stubGateway struct {
	confirmErr error
}

func (s *stubGateway) CreateIntent(context.Context, int64, string, map[string]string) (string, error) {
	return "pi_secret", nil
}

func (s *stubGateway) Confirm(context.Context, string) (string, error) {
	if s.confirmErr != nil {
		return "", s.confirmErr
	}
	return "ch_1", nil
}

type stubSettings struct{}

func (stubSettings) SubscriptionDiscount(context.Context) (decimal.Decimal, bool, error) {
	return dec("10"), true, nil
}

type stubKeys struct{ hash string }

func (s *stubKeys) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	if hash != s.hash {
		return nil, errors.New("not found")
	}
	return &auth.APIKeyInfo{ID: "k1", KeyHash: hash, Name: "ops", Scopes: []string{auth.ScopeAdmin}}, nil
}

// --- Harness ---

const testAdminKey = "feast_admin_key"
const testPepper = "pepper"

type env struct {
	orders  *stubOrderRepo
	gateway *stubGateway
	coupons *stubCouponRepo
	cards   *stubGiftCardRepo
	srv     *httptest.Server
}

func newEnv(t *testing.T) *env {
	t.Helper()

	cat := &stubCatalog{items: map[string]catalog.Item{
		"m1": {ID: "m1", Name: "Katsu Curry", Price: dec("10.00"), Kind: "meal"},
	}}
	points := &stubPoints{points: []fulfillment.CollectionPoint{
		{ID: "cp1", Name: "Borough Market", CollectionFee: dec("1.00")},
	}}
	zones := &stubZones{zone: &fulfillment.Zone{ID: "z1", PostcodePrefixes: []string{"SW1"}, DeliveryFee: dec("3.00")}}

	e := &env{
		orders:  &stubOrderRepo{},
		gateway: &stubGateway{},
		coupons: &stubCouponRepo{},
		cards:   &stubGiftCardRepo{},
	}

	couponValidator := discount.NewCouponValidator(e.coupons)
	giftCardValidator := discount.NewGiftCardValidator(e.cards)
	svc := order.NewService(
		cat,
		fulfillment.NewResolver(zones, points),
		couponValidator,
		giftCardValidator,
		e.orders,
		e.gateway,
		stubSettings{},
		nil,
		"GBP",
	)

	mac := hmac.New(sha256.New, []byte(testPepper))
	mac.Write([]byte(testAdminKey))
	keys := &stubKeys{hash: hex.EncodeToString(mac.Sum(nil))}

	h := NewHandler(cat, points, svc, couponValidator, giftCardValidator, nil, e.orders,
		NewAPIKeyAuth(keys, []byte(testPepper)))

	e.srv = httptest.NewServer(h.Routes())
	t.Cleanup(e.srv.Close)
	return e
}

func (e *env) post(t *testing.T, path string, body any, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, e.srv.URL+path, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func checkoutBody(extra map[string]any) map[string]any {
	body := map[string]any{
		"items": []map[string]any{{"item_id": "m1", "quantity": 2}},
		"fulfillment": map[string]any{
			"method":         "delivery",
			"postcode":       "SW1A 1AA",
			"requested_date": "2026-09-04",
		},
	}
	for k, v := range extra {
		body[k] = v
	}
	return body
}

// --- Tests ---

func TestListMeals(t *testing.T) {
	e := newEnv(t)

	resp, err := http.Get(e.srv.URL + "/meals")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var items []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&items))
	require.Len(t, items, 1)
	assert.Equal(t, "Katsu Curry", items[0]["name"])
}

func TestQuote(t *testing.T) {
	e := newEnv(t)

	resp, out := e.post(t, "/checkout/quote", checkoutBody(nil), nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2300), out["total_minor_units"])
	assert.NotContains(t, out, "error")
}

func TestQuote_UnmatchedPostcode(t *testing.T) {
	e := newEnv(t)

	body := checkoutBody(nil)
	body["fulfillment"] = map[string]any{
		"method": "delivery", "postcode": "ZZ9 9ZZ", "requested_date": "2026-09-04",
	}
	resp, out := e.post(t, "/checkout/quote", body, nil)

	// Business rejection: 200 with an error payload.
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, out["error"], "postcode")
}

func TestQuote_InvalidCoupon(t *testing.T) {
	e := newEnv(t)

	resp, out := e.post(t, "/checkout/quote", checkoutBody(map[string]any{"coupon_code": "NOPE"}), nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, out["error"])
}

func TestPlaceOrder(t *testing.T) {
	e := newEnv(t)

	resp, out := e.post(t, "/checkout/order",
		checkoutBody(map[string]any{"client_secret": "pi_secret"}), nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2300), out["total_minor_units"])
	assert.Equal(t, "ch_1", out["charge_ref"])
	require.Len(t, e.orders.created, 1)
}

func TestPlaceOrder_Declined(t *testing.T) {
	e := newEnv(t)
	e.gateway.confirmErr = order.ErrPaymentDeclined

	resp, out := e.post(t, "/checkout/order",
		checkoutBody(map[string]any{"client_secret": "pi_secret"}), nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, out["error"])
	assert.Empty(t, e.orders.created)
}

func TestPlaceOrder_ReconciliationFailureIs500(t *testing.T) {
	e := newEnv(t)
	e.orders.err = errors.New("db down")

	resp, out := e.post(t, "/checkout/order",
		checkoutBody(map[string]any{"client_secret": "pi_secret"}), nil)

	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.NotEmpty(t, out["error"])
}

func TestValidateCoupon(t *testing.T) {
	e := newEnv(t)
	e.coupons.coupon = &discount.Coupon{
		Code: "SAVE5", Kind: discount.CouponFixedAmount, Value: dec("5"), Active: true,
	}

	resp, out := e.post(t, "/coupons/validate", map[string]any{"code": "SAVE5"}, nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, out["valid"])
	assert.Equal(t, "fixed_amount", out["kind"])
}

func TestValidateGiftCard_Redeemed(t *testing.T) {
	e := newEnv(t)
	e.cards.card = &discount.GiftCard{ID: "g1", Code: "GC", Balance: decimal.Zero, Status: discount.GiftCardRedeemed}

	resp, out := e.post(t, "/giftcards/validate", map[string]any{"code": "GC"}, nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, out["error"])
}

func TestAdmin_RequiresAPIKey(t *testing.T) {
	e := newEnv(t)

	resp, _ := e.post(t, "/admin/orders", checkoutBody(nil), nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = e.post(t, "/admin/orders", checkoutBody(nil), map[string]string{"X-API-Key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdmin_ManualOrderWithOverride(t *testing.T) {
	e := newEnv(t)

	body := checkoutBody(map[string]any{
		"overrides": map[string]string{"m1": "1.00"},
	})
	resp, out := e.post(t, "/admin/orders", body, map[string]string{"X-API-Key": testAdminKey})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	// 2 x 1.00 + 3.00 fee = 5.00.
	assert.Equal(t, float64(500), out["total_minor_units"])
	assert.Equal(t, "offline", out["charge_ref"])
	assert.Equal(t, true, out["manual"])

	items, ok := out["items"].([]any)
	require.True(t, ok)
	require.Len(t, items, 1)
	assert.Equal(t, true, items[0].(map[string]any)["price_overridden"])
}

func TestAdmin_ListOrders(t *testing.T) {
	e := newEnv(t)

	_, _ = e.post(t, "/checkout/order", checkoutBody(map[string]any{"client_secret": "pi_secret"}), nil)

	req, err := http.NewRequest(http.MethodGet, e.srv.URL+"/admin/orders", nil)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", testAdminKey)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var orders []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&orders))
	require.Len(t, orders, 1)
}

package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feastbox/checkout-api/internal/domain/order"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL, "sk_test_123")
	require.NoError(t, err)
	return c
}

func TestClient_CreateIntent(t *testing.T) {
	var gotAuth string
	var gotReq intentRequest

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(intentResponse{ID: "pi_1", ClientSecret: "pi_1_secret"})
	})

	secret, err := c.CreateIntent(context.Background(), 2300, "GBP", map[string]string{"fee": "3"})
	require.NoError(t, err)

	assert.Equal(t, "pi_1_secret", secret)
	assert.Equal(t, "Bearer sk_test_123", gotAuth)
	assert.Equal(t, int64(2300), gotReq.Amount)
	assert.Equal(t, "GBP", gotReq.Currency)
	assert.Equal(t, "3", gotReq.Metadata["fee"])
}

func TestClient_CreateIntent_InvalidCurrency(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("processor must not be called for an invalid currency")
	})

	_, err := c.CreateIntent(context.Background(), 100, "QUID", nil)
	require.Error(t, err)
}

func TestClient_CreateIntent_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(intentResponse{ClientSecret: "pi_2_secret"})
	})

	secret, err := c.CreateIntent(context.Background(), 500, "GBP", nil)
	require.NoError(t, err)
	assert.Equal(t, "pi_2_secret", secret)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_CreateIntent_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.CreateIntent(context.Background(), 500, "GBP", nil)
	require.ErrorIs(t, err, order.ErrPaymentUnavailable)
	assert.Equal(t, int32(maxAttempts), calls.Load())
}

func TestClient_Confirm(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/intents/pi_1_secret/confirm", r.URL.Path)
		_ = json.NewEncoder(w).Encode(confirmResponse{Status: "succeeded", ChargeRef: "ch_42"})
	})

	ref, err := c.Confirm(context.Background(), "pi_1_secret")
	require.NoError(t, err)
	assert.Equal(t, "ch_42", ref)
}

func TestClient_Confirm_Declined(t *testing.T) {
	t.Run("status field", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(confirmResponse{Status: "declined"})
		})

		_, err := c.Confirm(context.Background(), "pi_1_secret")
		require.ErrorIs(t, err, order.ErrPaymentDeclined)
	})

	t.Run("402 response", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusPaymentRequired)
		})

		_, err := c.Confirm(context.Background(), "pi_1_secret")
		require.ErrorIs(t, err, order.ErrPaymentDeclined)
	})
}

func TestClient_Confirm_NeverRetries(t *testing.T) {
	var calls atomic.Int32

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.Confirm(context.Background(), "pi_1_secret")
	require.ErrorIs(t, err, order.ErrPaymentUnavailable)
	assert.Equal(t, int32(1), calls.Load())
}

// Package payment is the HTTP client for the payment processor. It maps
// processor responses onto the order package's gateway errors so the
// checkout service never sees transport details.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/currency"

	"github.com/feastbox/checkout-api/internal/domain/order"
)

const (
	defaultTimeout = 10 * time.Second
	maxAttempts    = 3
	retryDelay     = 200 * time.Millisecond
)

var _ order.PaymentGateway = (*Client)(nil)

// Client talks to the payment processor over HTTP.
type Client struct {
	base   *url.URL
	http   *http.Client
	secret string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Used by tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTracerProvider instruments outgoing requests with the given provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		c.http.Transport = otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithTracerProvider(tp))
	}
}

// NewClient creates a payment Client for the given processor base URL.
func NewClient(baseURL, secretKey string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid payment base url %q", baseURL)
	}
	c := &Client{
		base:   u,
		http:   &http.Client{Timeout: defaultTimeout},
		secret: secretKey,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type intentRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type intentResponse struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
}

type confirmResponse struct {
	Status    string `json:"status"`
	ChargeRef string `json:"charge_ref"`
}

// CreateIntent registers a payment intent for the exact minor-unit amount.
// Transient processor failures are retried; the processor deduplicates by
// request payload.
func (c *Client) CreateIntent(ctx context.Context, amountMinorUnits int64, cur string, metadata map[string]string) (string, error) {
	if _, err := currency.ParseISO(cur); err != nil {
		return "", errors.Wrapf(err, "invalid currency %q", cur)
	}

	body, err := json.Marshal(intentRequest{
		Amount:   amountMinorUnits,
		Currency: cur,
		Metadata: metadata,
	})
	if err != nil {
		return "", errors.Wrap(err, "marshal intent request")
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt) * retryDelay):
			}
		}

		var res intentResponse
		retryable, err := c.post(ctx, "/v1/intents", body, &res)
		if err == nil {
			return res.ClientSecret, nil
		}
		if !retryable {
			return "", err
		}
		lastErr = err
	}
	return "", lastErr
}

// Confirm captures the intent identified by the client secret and returns
// the processor's charge reference. Not retried: a confirm that may have
// reached the processor must not be repeated.
func (c *Client) Confirm(ctx context.Context, clientSecret string) (string, error) {
	var res confirmResponse
	path := "/v1/intents/" + url.PathEscape(clientSecret) + "/confirm"
	if _, err := c.post(ctx, path, nil, &res); err != nil {
		return "", err
	}
	if res.Status == "declined" {
		return "", order.ErrPaymentDeclined
	}
	return res.ChargeRef, nil
}

// post issues one request and decodes the response. The bool reports whether
// the failure is transient and safe to retry.
func (c *Client) post(ctx context.Context, path string, body []byte, out any) (bool, error) {
	u := c.base.ResolveReference(&url.URL{Path: path})

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), rd)
	if err != nil {
		return false, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.secret)

	resp, err := c.http.Do(req)
	if err != nil {
		return true, errors.Wrap(order.ErrPaymentUnavailable, err.Error())
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return false, errors.Wrap(err, "decode response")
		}
		return false, nil
	case resp.StatusCode == http.StatusPaymentRequired:
		return false, order.ErrPaymentDeclined
	case resp.StatusCode >= 500:
		return true, errors.Wrap(order.ErrPaymentUnavailable, fmt.Sprintf("status %d", resp.StatusCode))
	default:
		return false, errors.Errorf("payment processor status %d", resp.StatusCode)
	}
}

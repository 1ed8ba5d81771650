// Package orders is the HTTP client for the order-management system the
// bridge reports payment outcomes to. Requests are signed with HMAC-SHA256
// and retried with exponential backoff; the remote side dedupes status
// transitions, so redelivered callbacks are harmless.
package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mobbexco/subscriptions-bridge/pkg/subscription"
)

var (
	ErrInvalidConfig    = errors.New("invalid orders client configuration")
	ErrInvalidSignature = errors.New("invalid request signature")
	ErrRequestFailed    = errors.New("order system request failed")
	ErrOrderNotFound    = errors.New("order not found")
)

// Config holds order-system connection settings populated from the
// environment.
type Config struct {
	BaseURL       string        `env:"ORDERS_BASE_URL,required"`
	SigningSecret string        `env:"ORDERS_SIGNING_SECRET,required"`
	Timeout       time.Duration `env:"ORDERS_TIMEOUT" envDefault:"15s"`
	MaxRetries    int           `env:"ORDERS_MAX_RETRIES" envDefault:"3"`
}

// Client talks to the order system. It implements subscription.OrderGateway.
type Client struct {
	config  Config
	http    *http.Client
	backoff BackoffStrategy
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client, typically for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithBackoff overrides the retry backoff strategy.
func WithBackoff(b BackoffStrategy) Option {
	return func(c *Client) {
		if b != nil {
			c.backoff = b
		}
	}
}

// NewClient creates an order-system client.
func NewClient(config Config, opts ...Option) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("%w: base URL is required", ErrInvalidConfig)
	}
	if config.SigningSecret == "" {
		return nil, fmt.Errorf("%w: signing secret is required", ErrInvalidConfig)
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}

	c := &Client{
		config:  config,
		http:    &http.Client{Timeout: config.Timeout},
		backoff: ExponentialBackoff{JitterFactor: 0.2},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Resolve determines the subscription context of an order.
func (c *Client) Resolve(ctx context.Context, orderID string) (subscription.OrderContext, error) {
	var resp struct {
		Kind       string `json:"kind"`
		ManagedRef string `json:"managed_ref"`
	}
	if err := c.do(ctx, http.MethodGet, "/orders/"+orderID+"/subscription-context", nil, &resp); err != nil {
		return subscription.OrderContext{}, err
	}

	octx := subscription.OrderContext{OrderID: orderID}
	switch resp.Kind {
	case "standalone":
		octx.Kind = subscription.OrderStandalone
	case "managed":
		octx.Kind = subscription.OrderManaged
		octx.ManagedRef = resp.ManagedRef
	default:
		octx.Kind = subscription.OrderNone
	}
	return octx, nil
}

// PaymentComplete marks the order or managed subscription as paid.
func (c *Client) PaymentComplete(ctx context.Context, octx subscription.OrderContext) error {
	body := map[string]string{"managed_ref": octx.ManagedRef}
	return c.do(ctx, http.MethodPost, "/orders/"+octx.OrderID+"/payment-complete", body, nil)
}

// PaymentFailed marks the order or managed subscription payment as failed.
func (c *Client) PaymentFailed(ctx context.Context, octx subscription.OrderContext, reason string) error {
	body := map[string]string{"managed_ref": octx.ManagedRef, "reason": reason}
	return c.do(ctx, http.MethodPost, "/orders/"+octx.OrderID+"/payment-failed", body, nil)
}

// UpdateStatus moves an order to the given status with a note.
func (c *Client) UpdateStatus(ctx context.Context, orderID, status, note string) error {
	body := map[string]string{"status": status, "note": note}
	return c.do(ctx, http.MethodPost, "/orders/"+orderID+"/status", body, nil)
}

// AddNote attaches an informational note to an order.
func (c *Client) AddNote(ctx context.Context, orderID, note string) error {
	body := map[string]string{"note": note}
	return c.do(ctx, http.MethodPost, "/orders/"+orderID+"/notes", body, nil)
}

// PaymentMethod returns the gateway identifier of the order's payment method.
func (c *Client) PaymentMethod(ctx context.Context, orderID string) (string, error) {
	var resp struct {
		Method string `json:"method"`
	}
	if err := c.do(ctx, http.MethodGet, "/orders/"+orderID+"/payment-method", nil, &resp); err != nil {
		return "", err
	}
	return resp.Method, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	payload := []byte("{}")
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errors.Join(ErrRequestFailed, err)
		}
		payload = encoded
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff.NextInterval(attempt)):
			}
		}

		retryable, err := c.attempt(ctx, method, path, payload, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable {
			return err
		}
	}
	return lastErr
}

// attempt performs one signed request. The second return reports whether a
// retry makes sense: 4xx responses and not-found are final.
func (c *Client) attempt(ctx context.Context, method, path string, payload []byte, out any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return false, errors.Join(ErrRequestFailed, err)
	}

	headers, err := SignPayload(c.config.SigningSecret, payload)
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers.Headers() {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return true, errors.Join(ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return true, errors.Join(ErrRequestFailed, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, fmt.Errorf("%w: %s", ErrOrderNotFound, path)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return false, fmt.Errorf("%w: status %d: %s", ErrRequestFailed, resp.StatusCode, raw)
	case resp.StatusCode >= 500:
		return true, fmt.Errorf("%w: status %d", ErrRequestFailed, resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return false, errors.Join(ErrRequestFailed, err)
		}
	}
	return false, nil
}

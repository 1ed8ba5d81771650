// Package mobbex implements the REST client for the Mobbex payment provider.
//
// The bridge consumes two provider surfaces: the synchronous subscriptions
// API (charge execution, subscription registration, subscriber status
// updates) and the pre-shared webhook token used to authenticate incoming
// notifications. Charge idempotency is delegated to the provider via the
// caller-supplied reference, so the client performs no local locking.
package mobbex

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrMissingAPIKey      = errors.New("mobbex API key is required")
	ErrMissingAccessToken = errors.New("mobbex access token is required")
	ErrRequestFailed      = errors.New("mobbex request failed")
	ErrInvalidResponse    = errors.New("invalid mobbex response")
	ErrNoSubscriptionUID  = errors.New("no subscription UID returned from mobbex")
)

// CodeExecutionInProgress is returned by the provider when a charge with the
// same reference is already being processed. Callers treat it as
// success-pending, not as an error.
const CodeExecutionInProgress = "SUBSCRIPTIONS:EXECUTION_ALREADY_IN_PROGRESS"

// Config holds Mobbex API credentials and connection settings.
type Config struct {
	APIKey      string        `env:"MOBBEX_API_KEY,required"`
	AccessToken string        `env:"MOBBEX_ACCESS_TOKEN,required"`
	BaseURL     string        `env:"MOBBEX_BASE_URL" envDefault:"https://api.mobbex.com/p"`
	Timeout     time.Duration `env:"MOBBEX_TIMEOUT" envDefault:"30s"`
}

// Client is a Mobbex subscriptions API client.
type Client struct {
	config Config
	http   *http.Client
	token  string
}

// NewClient creates a Mobbex client. All provider calls carry the configured
// bounded timeout; a timeout surfaces as an error, never silently.
func NewClient(config Config) (*Client, error) {
	if config.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if config.AccessToken == "" {
		return nil, ErrMissingAccessToken
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	sum := md5.Sum([]byte(config.APIKey + "|" + config.AccessToken))

	return &Client{
		config: config,
		http:   &http.Client{Timeout: config.Timeout},
		token:  hex.EncodeToString(sum[:]),
	}, nil
}

// Token returns the pre-shared webhook token derived from the credentials.
// It is embedded in webhook URLs handed to the provider and echoed back on
// every notification.
func (c *Client) Token() string {
	return c.token
}

// ValidateToken reports whether the given webhook token matches the one
// derived from the configured credentials.
func (c *Client) ValidateToken(token string) bool {
	return hmac.Equal([]byte(token), []byte(c.token))
}

// ChargeResult is the raw provider response for a charge execution.
// A response lacking the result flag is treated as failed by callers.
type ChargeResult struct {
	Result        *bool  `json:"result"`
	Code          string `json:"code"`
	Error         string `json:"error"`
	StatusMessage string `json:"status_message"`
}

// Charge executes a recurring charge against a subscriber enrollment.
// The reference acts as the provider-side idempotency key: retried calls with
// the same reference collapse to a single charge.
func (c *Client) Charge(ctx context.Context, subscriptionUID, subscriberUID, reference string, total decimal.Decimal) (*ChargeResult, error) {
	path := fmt.Sprintf("/subscriptions/%s/subscriber/%s/execution", subscriptionUID, subscriberUID)
	body := map[string]any{
		"total":     total,
		"reference": reference,
	}

	var result ChargeResult
	if err := c.do(ctx, http.MethodPost, path, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SubscriptionRequest describes a recurring-billing plan to register with the
// provider.
type SubscriptionRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Total       decimal.Decimal `json:"total"`
	SignupFee   decimal.Decimal `json:"setupFee"`
	Interval    string          `json:"interval"`
	Type        string          `json:"type"`
	Reference   string          `json:"reference"`
	ReturnURL   string          `json:"return_url,omitempty"`
	WebhookURL  string          `json:"webhook,omitempty"`
}

// CreateSubscription registers a subscription with the provider and returns
// the provider-assigned UID. The UID is set exactly once, here.
func (c *Client) CreateSubscription(ctx context.Context, req SubscriptionRequest) (string, error) {
	var resp struct {
		Result bool `json:"result"`
		Data   struct {
			UID string `json:"uid"`
		} `json:"data"`
	}

	if err := c.do(ctx, http.MethodPost, "/subscriptions", req, &resp); err != nil {
		return "", err
	}
	if !resp.Result || resp.Data.UID == "" {
		return "", ErrNoSubscriptionUID
	}
	return resp.Data.UID, nil
}

// UpdateSubscriberStatus forwards a lifecycle status change to the provider
// so both sides agree on the enrollment state. Unknown statuses are ignored
// by design: other gateways own their own transitions.
func (c *Client) UpdateSubscriberStatus(ctx context.Context, subscriptionUID, subscriberUID, status string) error {
	action, ok := statusAction(status)
	if !ok {
		return nil
	}

	path := fmt.Sprintf("/subscriptions/%s/subscriber/%s/action/%s", subscriptionUID, subscriberUID, action)

	var resp struct {
		Result bool `json:"result"`
	}
	if err := c.do(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return err
	}
	if !resp.Result {
		return fmt.Errorf("%w: subscriber action %s rejected", ErrRequestFailed, action)
	}
	return nil
}

// statusAction maps external lifecycle statuses to provider subscriber actions.
func statusAction(status string) (string, bool) {
	switch status {
	case "active":
		return "activate", true
	case "cancelled", "canceled", "expired":
		return "cancel", true
	case "on-hold", "suspended":
		return "suspend", true
	default:
		return "", false
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errors.Join(ErrRequestFailed, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return errors.Join(ErrRequestFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.config.APIKey)
	req.Header.Set("x-access-token", c.config.AccessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Join(ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Join(ErrInvalidResponse, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: unexpected status %d: %s", ErrRequestFailed, resp.StatusCode, payload)
	}

	if out != nil {
		if err := json.Unmarshal(payload, out); err != nil {
			return errors.Join(ErrInvalidResponse, err)
		}
	}
	return nil
}

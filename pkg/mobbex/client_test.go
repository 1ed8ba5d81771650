package mobbex_test

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mobbexco/subscriptions-bridge/pkg/mobbex"
)

func newTestClient(t *testing.T, baseURL string) *mobbex.Client {
	t.Helper()
	client, err := mobbex.NewClient(mobbex.Config{
		APIKey:      "test-api-key",
		AccessToken: "test-access-token",
		BaseURL:     baseURL,
		Timeout:     2 * time.Second,
	})
	require.NoError(t, err)
	return client
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	t.Parallel()

	_, err := mobbex.NewClient(mobbex.Config{AccessToken: "x"})
	assert.ErrorIs(t, err, mobbex.ErrMissingAPIKey)

	_, err = mobbex.NewClient(mobbex.Config{APIKey: "x"})
	assert.ErrorIs(t, err, mobbex.ErrMissingAccessToken)
}

func TestClient_Token(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, "http://unused")

	sum := md5.Sum([]byte("test-api-key|test-access-token"))
	expected := hex.EncodeToString(sum[:])

	assert.Equal(t, expected, client.Token())
	assert.True(t, client.ValidateToken(expected))
	assert.False(t, client.ValidateToken("forged"))
	assert.False(t, client.ValidateToken(""))
}

func TestClient_Charge(t *testing.T) {
	t.Parallel()

	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		assert.Equal(t, "test-api-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "test-access-token", r.Header.Get("x-access-token"))
		_, _ = w.Write([]byte(`{"result": true, "code": "200"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	result, err := client.Charge(t.Context(), "sub_123", "scr_456", "sub_123_scr_456_900", decimal.NewFromFloat(49.99))
	require.NoError(t, err)

	assert.Equal(t, "/subscriptions/sub_123/subscriber/scr_456/execution", gotPath)
	assert.Equal(t, "sub_123_scr_456_900", gotBody["reference"])
	require.NotNil(t, result.Result)
	assert.True(t, *result.Result)
}

func TestClient_Charge_MissingResultFlag(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code": "INTERNAL", "error": "something broke"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	result, err := client.Charge(t.Context(), "sub_123", "scr_456", "ref", decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.Nil(t, result.Result)
	assert.Equal(t, "INTERNAL", result.Code)
}

func TestClient_Charge_HTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.Charge(t.Context(), "sub_123", "scr_456", "ref", decimal.NewFromInt(10))
	assert.ErrorIs(t, err, mobbex.ErrRequestFailed)
}

func TestClient_CreateSubscription(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/subscriptions", r.URL.Path)
		var req mobbex.SubscriptionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Monthly Plan", req.Name)
		_, _ = w.Write([]byte(`{"result": true, "data": {"uid": "sub_new"}}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	uid, err := client.CreateSubscription(t.Context(), mobbex.SubscriptionRequest{
		Name:     "Monthly Plan",
		Total:    decimal.NewFromInt(100),
		Interval: "1m",
		Type:     "automatic",
	})
	require.NoError(t, err)
	assert.Equal(t, "sub_new", uid)
}

func TestClient_CreateSubscription_NoUID(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result": false}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.CreateSubscription(t.Context(), mobbex.SubscriptionRequest{Name: "x"})
	assert.ErrorIs(t, err, mobbex.ErrNoSubscriptionUID)
}

func TestClient_UpdateSubscriberStatus(t *testing.T) {
	t.Parallel()

	t.Run("maps status to provider action", func(t *testing.T) {
		t.Parallel()
		var gotPath string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			_, _ = w.Write([]byte(`{"result": true}`))
		}))
		defer srv.Close()

		client := newTestClient(t, srv.URL)

		require.NoError(t, client.UpdateSubscriberStatus(t.Context(), "sub_1", "scr_1", "cancelled"))
		assert.Equal(t, "/subscriptions/sub_1/subscriber/scr_1/action/cancel", gotPath)
	})

	t.Run("ignores statuses other gateways own", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		}))
		defer srv.Close()

		client := newTestClient(t, srv.URL)
		assert.NoError(t, client.UpdateSubscriberStatus(t.Context(), "sub_1", "scr_1", "pending-payment"))
	})
}

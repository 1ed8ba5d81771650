package subscription_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mobbexco/subscriptions-bridge/pkg/subscription"
)

func newWebhookServer(t *testing.T) (*httptest.Server, *serviceFixture) {
	t.Helper()
	f := newServiceFixture(t)
	srv := httptest.NewServer(subscription.NewHandler(f.service, nil).Routes())
	t.Cleanup(srv.Close)
	return srv, f
}

func postWebhook(t *testing.T, srv *httptest.Server, token, contentType string, body []byte) (*http.Response, string) {
	t.Helper()

	url := srv.URL + "/webhook?mobbex_token=" + token + "&mobbex_order_id=" + testOrderID
	resp, err := http.Post(url, contentType, bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(raw)
}

func TestHandler_Webhook(t *testing.T) {
	t.Parallel()

	t.Run("acknowledges a handled JSON notification", func(t *testing.T) {
		t.Parallel()
		srv, f := newWebhookServer(t)

		resp, body := postWebhook(t, srv, testToken, "application/json",
			notificationJSON(subscription.NotificationCheckout, 200))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "WebHook OK: Mobbex Subscriptions Bridge v4.0.0", body)

		subscriber, err := f.subscribers.GetByOrderID(context.Background(), testOrderID)
		require.NoError(t, err)
		assert.True(t, subscriber.Registered())
	})

	t.Run("acknowledges a form-encoded notification", func(t *testing.T) {
		t.Parallel()
		srv, f := newWebhookServer(t)
		f.register(t)

		form := url.Values{}
		form.Set("type", "subscription:execution")
		form.Set("data[payment][status][code]", "200")
		form.Set("data[subscriptions][0][subscription]", testSubUID)
		form.Set("data[subscriptions][0][subscriber]", testScrUID)

		resp, body := postWebhook(t, srv, testToken, "application/x-www-form-urlencoded", []byte(form.Encode()))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.True(t, strings.HasPrefix(body, "WebHook OK"))
	})

	t.Run("acknowledges duplicate registrations to stop retries", func(t *testing.T) {
		t.Parallel()
		srv, f := newWebhookServer(t)
		f.register(t)

		resp, body := postWebhook(t, srv, testToken, "application/json",
			notificationJSON(subscription.NotificationCheckout, 200))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.True(t, strings.HasPrefix(body, "WebHook OK"))
	})

	t.Run("rejects a bad token", func(t *testing.T) {
		t.Parallel()
		srv, _ := newWebhookServer(t)

		resp, _ := postWebhook(t, srv, "intruder", "application/json",
			notificationJSON(subscription.NotificationCheckout, 200))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("rejects an unparseable body", func(t *testing.T) {
		t.Parallel()
		srv, _ := newWebhookServer(t)

		resp, _ := postWebhook(t, srv, testToken, "application/json", []byte("not json"))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("answers 404 for unknown records", func(t *testing.T) {
		t.Parallel()
		srv, _ := newWebhookServer(t)

		// Execution for a subscriber that never registered.
		resp, _ := postWebhook(t, srv, testToken, "application/json",
			notificationJSON(subscription.NotificationExecution, 200))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

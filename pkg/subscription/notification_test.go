package subscription_test

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mobbexco/subscriptions-bridge/pkg/subscription"
)

func TestParseNotification(t *testing.T) {
	t.Parallel()

	t.Run("numeric status code", func(t *testing.T) {
		t.Parallel()
		n, err := subscription.ParseNotification([]byte(`{
			"type": "checkout",
			"data": {
				"payment": {"status": {"code": 200, "text": "approved"}},
				"subscriptions": [{"subscription": "sub_1", "subscriber": "scr_1"}]
			}
		}`))
		require.NoError(t, err)
		assert.Equal(t, subscription.NotificationCheckout, n.Type)

		code, err := n.StatusCode()
		require.NoError(t, err)
		assert.Equal(t, 200, code)
	})

	t.Run("string status code", func(t *testing.T) {
		t.Parallel()
		n, err := subscription.ParseNotification([]byte(`{
			"type": "subscription:execution",
			"data": {"payment": {"status": {"code": "402"}}}
		}`))
		require.NoError(t, err)

		code, err := n.StatusCode()
		require.NoError(t, err)
		assert.Equal(t, 402, code)
	})

	t.Run("missing status code", func(t *testing.T) {
		t.Parallel()
		n, err := subscription.ParseNotification([]byte(`{"type": "checkout", "data": {}}`))
		require.NoError(t, err)

		_, err = n.StatusCode()
		assert.ErrorIs(t, err, subscription.ErrInvalidNotification)
	})

	t.Run("malformed body", func(t *testing.T) {
		t.Parallel()
		_, err := subscription.ParseNotification([]byte(`not json`))
		assert.ErrorIs(t, err, subscription.ErrInvalidNotification)
	})

	t.Run("raw preserves the delivered body", func(t *testing.T) {
		t.Parallel()
		body := []byte(`{"type":"checkout","data":{"payment":{"status":{"code":200}}}}`)
		n, err := subscription.ParseNotification(body)
		require.NoError(t, err)
		assert.Equal(t, body, n.Raw())
	})
}

func TestParseNotificationForm(t *testing.T) {
	t.Parallel()

	values := url.Values{}
	values.Set("type", "subscription:execution")
	values.Set("data[payment][status][code]", "200")
	values.Set("data[payment][status][text]", "approved")
	values.Set("data[subscriptions][0][subscription]", "sub_1")
	values.Set("data[subscriptions][0][subscriber]", "scr_1")
	values.Set("data[subscriptions][1][subscription]", "sub_2")
	values.Set("data[subscriptions][1][subscriber]", "scr_2")

	n, err := subscription.ParseNotificationForm(values)
	require.NoError(t, err)
	assert.Equal(t, subscription.NotificationExecution, n.Type)

	code, err := n.StatusCode()
	require.NoError(t, err)
	assert.Equal(t, 200, code)

	require.Len(t, n.Data.Subscriptions, 2)
	ref, ok := n.Ref()
	require.True(t, ok)
	assert.Equal(t, "sub_1", ref.Subscription)
	assert.Equal(t, "scr_1", ref.Subscriber)

	assert.NotEmpty(t, n.Raw())
}

func TestNotification_Ref(t *testing.T) {
	t.Parallel()

	n, err := subscription.ParseNotification([]byte(`{"type":"checkout","data":{"payment":{"status":{"code":200}}}}`))
	require.NoError(t, err)

	_, ok := n.Ref()
	assert.False(t, ok)
}

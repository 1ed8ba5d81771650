package orders_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mobbexco/subscriptions-bridge/pkg/orders"
)

func TestSignPayload(t *testing.T) {
	t.Parallel()

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()

		payload := []byte(`{"note":"hello"}`)
		headers, err := orders.SignPayload("secret", payload)
		require.NoError(t, err)
		assert.NotEmpty(t, headers.Signature)
		assert.NotEmpty(t, headers.ID)

		require.NoError(t, orders.VerifySignature("secret", payload, headers, time.Minute))
	})

	t.Run("requires a secret", func(t *testing.T) {
		t.Parallel()
		_, err := orders.SignPayload("", []byte(`{}`))
		assert.ErrorIs(t, err, orders.ErrInvalidConfig)
	})

	t.Run("rejects a tampered payload", func(t *testing.T) {
		t.Parallel()

		headers, err := orders.SignPayload("secret", []byte(`{"total":10}`))
		require.NoError(t, err)

		err = orders.VerifySignature("secret", []byte(`{"total":1000}`), headers, time.Minute)
		assert.ErrorIs(t, err, orders.ErrInvalidSignature)
	})

	t.Run("rejects a wrong secret", func(t *testing.T) {
		t.Parallel()

		payload := []byte(`{}`)
		headers, err := orders.SignPayload("secret", payload)
		require.NoError(t, err)

		err = orders.VerifySignature("other", payload, headers, time.Minute)
		assert.ErrorIs(t, err, orders.ErrInvalidSignature)
	})

	t.Run("rejects an expired timestamp", func(t *testing.T) {
		t.Parallel()

		payload := []byte(`{}`)
		headers, err := orders.SignPayload("secret", payload)
		require.NoError(t, err)
		headers.Timestamp -= 3600

		err = orders.VerifySignature("secret", payload, headers, time.Minute)
		assert.ErrorIs(t, err, orders.ErrInvalidSignature)
	})
}

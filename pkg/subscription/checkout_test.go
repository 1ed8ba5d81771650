package subscription_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mobbexco/subscriptions-bridge/pkg/subscription"
)

func TestModifyCheckout(t *testing.T) {
	t.Parallel()

	newCheckout := func() *subscription.Checkout {
		return &subscription.Checkout{
			Total: decimal.NewFromInt(150),
			Items: []subscription.CheckoutItem{
				{Description: "Gold Plan", Total: decimal.NewFromInt(100), Quantity: 1},
				{Description: "Shipping", Total: decimal.NewFromInt(50), Quantity: 1},
			},
			Merchants: []string{"merchant-a", "merchant-b"},
		}
	}

	plan := &subscription.Subscription{
		UID:              testSubUID,
		Name:             "Gold Plan",
		Type:             subscription.TypeAutomatic,
		Cadence:          subscription.MustParseCadence("1m"),
		Price:            decimal.NewFromInt(100),
		SignupFee:        decimal.NewFromInt(10),
		ProductReference: "prod-1",
	}

	t.Run("replaces items with the subscription reference", func(t *testing.T) {
		t.Parallel()
		co := newCheckout()

		require.NoError(t, subscription.ModifyCheckout(co, plan, "https://bridge.example/webhook"))

		require.Len(t, co.Items, 2)
		assert.Equal(t, "subscription", co.Items[0].Type)
		assert.Equal(t, testSubUID, co.Items[0].Reference)
		assert.Equal(t, "Signup fee: Gold Plan", co.Items[1].Description)
		assert.True(t, co.Items[1].Total.Equal(decimal.NewFromInt(10)))

		// The recurring price is billed by the subscription, not the checkout.
		assert.True(t, co.Total.Equal(decimal.NewFromInt(50)))
		assert.Equal(t, "https://bridge.example/webhook", co.WebhookURL)
		assert.Nil(t, co.Merchants)
	})

	t.Run("manual subscriptions carry no signup fee line", func(t *testing.T) {
		t.Parallel()
		co := newCheckout()
		manual := *plan
		manual.Type = subscription.TypeManual

		require.NoError(t, subscription.ModifyCheckout(co, &manual, "https://bridge.example/webhook"))
		require.Len(t, co.Items, 1)
		assert.Equal(t, "subscription", co.Items[0].Type)
	})

	t.Run("total never goes negative", func(t *testing.T) {
		t.Parallel()
		co := newCheckout()
		co.Total = decimal.NewFromInt(40)

		require.NoError(t, subscription.ModifyCheckout(co, plan, ""))
		assert.True(t, co.Total.IsZero())
	})

	t.Run("rejects an unregistered subscription", func(t *testing.T) {
		t.Parallel()
		co := newCheckout()
		unregistered := *plan
		unregistered.UID = ""

		err := subscription.ModifyCheckout(co, &unregistered, "")
		assert.ErrorIs(t, err, subscription.ErrCheckoutNotAdjusted)
	})
}

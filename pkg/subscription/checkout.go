package subscription

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CheckoutItem is one line in an outgoing checkout request.
type CheckoutItem struct {
	Type        string          `json:"type,omitempty"`
	Reference   string          `json:"reference,omitempty"`
	Description string          `json:"description,omitempty"`
	Total       decimal.Decimal `json:"total,omitempty"`
	Quantity    int             `json:"quantity,omitempty"`
	Image       string          `json:"image,omitempty"`
}

// Checkout is the mutable portion of a checkout request sent to the
// provider.
type Checkout struct {
	Total      decimal.Decimal `json:"total"`
	Items      []CheckoutItem  `json:"items"`
	WebhookURL string          `json:"webhook"`
	Merchants  []string        `json:"merchants,omitempty"`
}

// ModifyCheckout rewrites a checkout so the provider treats it as a
// subscription signup instead of a one-off sale. The product line items are
// replaced by a single subscription reference, the recurring price moves out
// of the immediate total, and for non-manual subscriptions a signup-fee line
// keeps the first payment non-empty. Split-payment merchants are cleared
// because subscription charges settle against a single account.
func ModifyCheckout(co *Checkout, sub *Subscription, webhookURL string) error {
	if co == nil || sub == nil {
		return fmt.Errorf("%w: nil checkout or subscription", ErrCheckoutNotAdjusted)
	}
	if !sub.Registered() {
		return fmt.Errorf("%w: subscription %q has no provider uid", ErrCheckoutNotAdjusted, sub.ProductReference)
	}

	items := []CheckoutItem{{
		Type:      "subscription",
		Reference: sub.UID,
	}}

	total := co.Total.Sub(sub.Price)
	if total.IsNegative() {
		total = decimal.Zero
	}

	if !sub.IsManual() && sub.SignupFee.IsPositive() {
		items = append(items, CheckoutItem{
			Description: "Signup fee: " + sub.Name,
			Total:       sub.SignupFee,
			Quantity:    1,
		})
	}

	co.Items = items
	co.Total = total
	co.WebhookURL = webhookURL
	co.Merchants = nil
	return nil
}

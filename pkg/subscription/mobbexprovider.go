package subscription

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/mobbexco/subscriptions-bridge/pkg/mobbex"
)

// mobbexProvider adapts the Mobbex REST client to the Provider interface.
type mobbexProvider struct {
	client     *mobbex.Client
	returnURL  string
	webhookURL string
}

// NewMobbexProvider wraps a Mobbex client as a Provider. The return and
// webhook URLs are attached to every plan registered with the provider.
// Panics on a nil client.
func NewMobbexProvider(client *mobbex.Client, returnURL, webhookURL string) Provider {
	if client == nil {
		panic("subscription: mobbex client is required")
	}
	return &mobbexProvider{client: client, returnURL: returnURL, webhookURL: webhookURL}
}

func (p *mobbexProvider) ValidateToken(token string) bool {
	return p.client.ValidateToken(token)
}

func (p *mobbexProvider) Charge(ctx context.Context, subscriptionUID, subscriberUID, reference string, total decimal.Decimal) (ChargeResponse, error) {
	result, err := p.client.Charge(ctx, subscriptionUID, subscriberUID, reference, total)
	if err != nil {
		return ChargeResponse{}, err
	}

	resp := ChargeResponse{
		Code:          result.Code,
		Error:         result.Error,
		StatusMessage: result.StatusMessage,
	}
	if result.Result != nil {
		resp.HasResult = true
		resp.Result = *result.Result
	}
	return resp, nil
}

func (p *mobbexProvider) RegisterSubscription(ctx context.Context, sub *Subscription) (string, error) {
	return p.client.CreateSubscription(ctx, mobbex.SubscriptionRequest{
		Name:        sub.Name,
		Description: sub.Description,
		Total:       sub.Price,
		SignupFee:   sub.SignupFee,
		Interval:    sub.Cadence.String(),
		Type:        string(sub.Type),
		Reference:   sub.ProductReference,
		ReturnURL:   p.returnURL,
		WebhookURL:  p.webhookURL,
	})
}

func (p *mobbexProvider) PushSubscriberStatus(ctx context.Context, subscriptionUID, subscriberUID, status string) error {
	return p.client.UpdateSubscriberStatus(ctx, subscriptionUID, subscriberUID, status)
}

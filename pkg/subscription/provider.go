package subscription

import (
	"context"

	"github.com/shopspring/decimal"
)

// Provider is the synchronous surface of the payment provider consumed by
// the bridge. The concrete implementation wraps the Mobbex REST client; the
// abstraction keeps the reconciler and executor testable without network
// access.
type Provider interface {
	// ValidateToken checks the pre-shared webhook token.
	ValidateToken(token string) bool

	// Charge executes a recurring charge. The reference is the provider-side
	// idempotency key; retried calls with the same reference must not
	// produce a second charge.
	Charge(ctx context.Context, subscriptionUID, subscriberUID, reference string, total decimal.Decimal) (ChargeResponse, error)

	// RegisterSubscription registers a plan with the provider and returns
	// the provider-assigned UID.
	RegisterSubscription(ctx context.Context, sub *Subscription) (string, error)

	// PushSubscriberStatus forwards an external lifecycle status change to
	// the provider.
	PushSubscriberStatus(ctx context.Context, subscriptionUID, subscriberUID, status string) error
}

// ChargeResponse is the normalized provider response for a charge call.
// HasResult is false when the provider answered without a recognizable
// result flag; callers treat that as a failure with a synthesized
// diagnostic.
type ChargeResponse struct {
	HasResult     bool
	Result        bool
	Code          string
	Error         string
	StatusMessage string
}

// OrderGateway is the order-management collaborator that owns order and
// managed-subscription lifecycle. The reconciler invokes it at most once
// per successful reconciliation; implementations dedupe by order status, so
// completing an already-completed order is a no-op at their boundary.
type OrderGateway interface {
	// Resolve determines the subscription context of an order: managed by
	// an external subscription system, standalone, or none.
	Resolve(ctx context.Context, orderID string) (OrderContext, error)

	// PaymentComplete marks the order or managed subscription as paid.
	PaymentComplete(ctx context.Context, octx OrderContext) error

	// PaymentFailed marks the order or managed subscription as failed.
	PaymentFailed(ctx context.Context, octx OrderContext, reason string) error

	// UpdateStatus moves an order to the given status with a note.
	UpdateStatus(ctx context.Context, orderID, status, note string) error

	// AddNote attaches an informational note to an order.
	AddNote(ctx context.Context, orderID, note string) error

	// PaymentMethod returns the gateway identifier of the order's payment
	// method.
	PaymentMethod(ctx context.Context, orderID string) (string, error)
}

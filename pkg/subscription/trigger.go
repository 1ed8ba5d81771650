package subscription

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"
)

// Trigger drives scheduled recurring payments. It initiates the charge and
// leaves final confirmation to the webhook reconciler: the charge call and
// the webhook are two eventually-consistent signals of the same billing
// event.
type Trigger struct {
	subscribers SubscriberStore
	orders      OrderGateway
	executor    *Executor
	gatewayID   string
	log         *slog.Logger
}

// NewTrigger creates a scheduled-payment trigger. Panics if a required
// dependency is nil.
func NewTrigger(subscribers SubscriberStore, orders OrderGateway, executor *Executor, log *slog.Logger) *Trigger {
	if subscribers == nil {
		panic("subscription: SubscriberStore is required")
	}
	if orders == nil {
		panic("subscription: OrderGateway is required")
	}
	if executor == nil {
		panic("subscription: Executor is required")
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Trigger{
		subscribers: subscribers,
		orders:      orders,
		executor:    executor,
		gatewayID:   GatewayID,
		log:         log,
	}
}

// OnBillingDue executes one billing cycle for an order. It reports whether
// the charge was initiated; a true result does not mean payment completed,
// only that confirmation is now in the webhook's hands.
func (t *Trigger) OnBillingDue(ctx context.Context, orderID string, amountDue decimal.Decimal) bool {
	method, err := t.orders.PaymentMethod(ctx, orderID)
	if err != nil {
		t.log.ErrorContext(ctx, "failed to read order payment method", "order_id", orderID, "error", err)
		return false
	}
	// Other gateways own their own billing.
	if method != t.gatewayID {
		t.log.DebugContext(ctx, "skipping non-mobbex order", "order_id", orderID, "payment_method", method)
		return false
	}

	subscriber, err := t.subscribers.GetByOrderID(ctx, orderID)
	if err != nil {
		if !errors.Is(err, ErrSubscriberNotFound) {
			t.log.ErrorContext(ctx, "failed to resolve subscriber", "order_id", orderID, "error", err)
		}
		t.noteOrder(ctx, orderID, "Error executing scheduled payment: no subscriber enrolled for order")
		return false
	}

	key := IdempotencyKey{
		SubscriptionUID: subscriber.SubscriptionUID,
		SubscriberUID:   subscriber.UID,
		OrderID:         orderID,
	}

	t.noteOrder(ctx, orderID, "Executing charge for subscription "+subscriber.SubscriptionUID+", subscriber "+subscriber.UID)

	outcome, err := t.executor.ExecuteCharge(ctx, key, amountDue)
	if err != nil {
		t.noteOrder(ctx, orderID, "Charge execution error: "+err.Error())
		t.failPayment(ctx, orderID, err.Error())
		return false
	}

	if outcome == OutcomeAlreadyInProgress {
		t.noteOrder(ctx, orderID, "Charge execution result: already in progress")
		return true
	}

	t.log.InfoContext(ctx, "scheduled charge initiated",
		"order_id", orderID, "reference", key.String(), "amount", amountDue.String())
	return true
}

func (t *Trigger) failPayment(ctx context.Context, orderID, reason string) {
	octx, err := t.orders.Resolve(ctx, orderID)
	if err != nil {
		t.log.ErrorContext(ctx, "failed to resolve order context", "order_id", orderID, "error", err)
		return
	}
	if err := t.orders.PaymentFailed(ctx, octx, reason); err != nil {
		t.log.ErrorContext(ctx, "payment failed callback failed", "order_id", orderID, "error", err)
	}
}

func (t *Trigger) noteOrder(ctx context.Context, orderID, note string) {
	if err := t.orders.AddNote(ctx, orderID, note); err != nil {
		t.log.WarnContext(ctx, "failed to annotate order", "order_id", orderID, "error", err)
	}
}

package subscription

// Version is reported in the webhook acknowledgement body.
const Version = "4.0.0"

// GatewayID identifies this payment gateway on orders. The scheduled trigger
// ignores orders whose payment method names a different gateway.
const GatewayID = "mobbex"

// PaymentState is the coarse state derived from a provider status code.
type PaymentState string

const (
	StatePending  PaymentState = "pending"
	StateOnHold   PaymentState = "on-hold"
	StateApproved PaymentState = "approved"
	StateRejected PaymentState = "rejected"
	StateFailed   PaymentState = "failed"
)

// StateFromStatusCode maps a provider payment status code to a PaymentState
// using a fixed table. 201 reports an operation queued on the provider side
// and is on-hold despite sitting in the 2xx range.
func StateFromStatusCode(code int) PaymentState {
	switch {
	case code == 2 || code == 3 || code == 100 || code == 201:
		return StateOnHold
	case code >= 200 && code < 300:
		return StateApproved
	case code >= 400 && code < 600:
		return StateRejected
	case code >= 600:
		return StateFailed
	default:
		return StatePending
	}
}

// Paid reports whether the state counts as a successful recurring charge.
func (s PaymentState) Paid() bool {
	return s == StateApproved || s == StateOnHold
}

// NotificationType discriminates provider webhook notifications.
type NotificationType string

const (
	// NotificationCheckout reports the outcome of a subscriber registration.
	NotificationCheckout NotificationType = "checkout"
	// NotificationExecution reports the outcome of a recurring charge.
	NotificationExecution NotificationType = "subscription:execution"
)

// Valid reports whether the notification type is one the reconciler handles.
func (t NotificationType) Valid() bool {
	return t == NotificationCheckout || t == NotificationExecution
}

// Action is the downstream order action a reconciliation produced.
type Action string

const (
	ActionNone            Action = "none"
	ActionPaymentComplete Action = "payment_complete"
	ActionMarkFailed      Action = "mark_failed"
)

// SubscriptionType distinguishes recurring billing modes. Manual
// subscriptions are charged by the subscriber, automatic ones by the
// scheduled trigger.
type SubscriptionType string

const (
	TypeManual    SubscriptionType = "manual"
	TypeAutomatic SubscriptionType = "automatic"
	TypeDynamic   SubscriptionType = "dynamic"
)

// OrderKind tags how an order relates to subscription management.
type OrderKind int

const (
	// OrderNone means the order carries no subscription at all.
	OrderNone OrderKind = iota
	// OrderStandalone means the order holds a bridge-managed subscription
	// with no external subscription object behind it.
	OrderStandalone
	// OrderManaged means an external subscription-management system tracks
	// the order's subscription lifecycle.
	OrderManaged
)

// OrderContext is the resolved subscription context of an order. It is
// resolved once per reconciliation and passed explicitly to every branch.
type OrderContext struct {
	Kind       OrderKind
	OrderID    string
	ManagedRef string // set only for OrderManaged
}

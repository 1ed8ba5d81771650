package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Service reconciles provider notifications against local records and
// drives downstream order state transitions.
type Service struct {
	subscriptions SubscriptionStore
	subscribers   SubscriberStore
	orders        OrderGateway
	provider      Provider
	locker        Locker
	now           func() time.Time
	log           *slog.Logger
}

// NewService creates the reconciliation service. Panics if a required
// dependency is nil to fail fast during initialization.
func NewService(subscriptions SubscriptionStore, subscribers SubscriberStore, orders OrderGateway, provider Provider, opts ...ServiceOption) *Service {
	if subscriptions == nil {
		panic("subscription: SubscriptionStore is required")
	}
	if subscribers == nil {
		panic("subscription: SubscriberStore is required")
	}
	if orders == nil {
		panic("subscription: OrderGateway is required")
	}
	if provider == nil {
		panic("subscription: Provider is required")
	}

	s := &Service{
		subscriptions: subscriptions,
		subscribers:   subscribers,
		orders:        orders,
		provider:      provider,
		locker:        NewMemoryLocker(),
		now:           func() time.Time { return time.Now().UTC() },
		log:           slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reconcile consumes one provider notification and decides idempotently
// what local records to update and which downstream action to trigger.
//
// Validation and lookup failures short-circuit before any mutation. The
// duplicate-registration guard is evaluated inside the per-subscriber lock.
// After the action branch, bookkeeping always advances: execution dates move
// forward and the raw payload is appended to the execution log.
func (s *Service) Reconcile(ctx context.Context, token string, typ NotificationType, payload *Notification, orderID string) (Action, error) {
	// Fully reject malformed requests before touching any store.
	if token == "" || !s.provider.ValidateToken(token) {
		return ActionNone, fmt.Errorf("%w: bad token", ErrInvalidNotification)
	}
	if !typ.Valid() {
		return ActionNone, fmt.Errorf("%w: unknown type %q", ErrInvalidNotification, string(typ))
	}
	if payload == nil {
		return ActionNone, fmt.Errorf("%w: empty payload", ErrInvalidNotification)
	}
	status, err := payload.StatusCode()
	if err != nil {
		return ActionNone, err
	}
	ref, ok := payload.Ref()
	if !ok {
		return ActionNone, fmt.Errorf("%w: no subscription reference", ErrInvalidNotification)
	}

	sub, err := s.subscriptions.GetByUID(ctx, ref.Subscription)
	if err != nil {
		return ActionNone, err
	}

	octx, err := s.orders.Resolve(ctx, orderID)
	if err != nil {
		return ActionNone, err
	}
	if octx.Kind == OrderNone {
		s.log.DebugContext(ctx, "order carries no subscription", "order_id", orderID)
		return ActionNone, ErrNoSubscriptionOrder
	}

	// Serialize with concurrent deliveries for the same subscriber. The
	// duplicate-registration check below must happen while holding this.
	unlock, err := s.locker.Lock(ctx, ref.Subscriber)
	if err != nil {
		return ActionNone, err
	}
	defer unlock()

	subscriber, err := s.subscribers.GetByUID(ctx, ref.Subscriber, sub.UID, orderID)
	switch {
	case err == nil:
	case errors.Is(err, ErrSubscriberNotFound) && typ == NotificationCheckout:
		// Enrollments are created lazily by the first checkout
		// notification for an order.
		subscriber = &Subscriber{
			UID:             ref.Subscriber,
			SubscriptionUID: sub.UID,
			OrderID:         orderID,
		}
	default:
		return ActionNone, err
	}

	now := s.now()
	var action Action

	switch typ {
	case NotificationCheckout:
		if subscriber.Registered() {
			s.log.InfoContext(ctx, "duplicate registration rejected",
				"subscriber_uid", subscriber.UID, "order_id", orderID)
			s.noteOrder(ctx, orderID, "Avoided attempt to re-register subscriber "+subscriber.UID)
			return ActionNone, ErrDuplicateRegistration
		}

		subscriber.RegisterData = payload.Raw()
		subscriber.State = status
		subscriber.StartDate = &now

		s.noteOrder(ctx, orderID, fmt.Sprintf("Mobbex subscription %s, subscriber %s", sub.UID, subscriber.UID))

		// Registration succeeds only on an exact 200 from the provider.
		if status == 200 {
			action = ActionPaymentComplete
			s.completePayment(ctx, octx)
		} else {
			action = ActionMarkFailed
			s.failPayment(ctx, octx, "subscription registration validation failed")
		}

	case NotificationExecution:
		subscriber.State = status
		if StateFromStatusCode(status).Paid() {
			action = ActionPaymentComplete
			s.completePayment(ctx, octx)
		} else {
			action = ActionMarkFailed
			s.failPayment(ctx, octx, "subscription execution failed")
		}
	}

	// Bookkeeping always advances once the action branch ran, so replayed
	// deliveries remain observable in the execution log.
	subscriber.LastExecution = &now
	next := sub.Cadence.Next(now)
	subscriber.NextExecution = &next

	if err := s.subscribers.Save(ctx, subscriber); err != nil {
		// The downstream action already fired; a lost save leaves the
		// records inconsistent with the order system.
		s.log.ErrorContext(ctx, "failed to save subscriber after action",
			"subscriber_uid", subscriber.UID, "order_id", orderID, "action", string(action), "error", err)
		return action, errors.Join(ErrPersistenceFailed, err)
	}

	entry := &ExecutionLogEntry{
		ID:            uuid.New(),
		SubscriberUID: subscriber.UID,
		OrderID:       orderID,
		Timestamp:     now,
		RawPayload:    payload.Raw(),
	}
	if err := s.subscribers.AppendExecution(ctx, entry); err != nil {
		s.log.ErrorContext(ctx, "failed to append execution log entry",
			"subscriber_uid", subscriber.UID, "order_id", orderID, "error", err)
		return action, errors.Join(ErrPersistenceFailed, err)
	}

	s.log.InfoContext(ctx, "notification reconciled",
		"type", string(typ), "subscriber_uid", subscriber.UID,
		"order_id", orderID, "status", status, "action", string(action))

	return action, nil
}

// SyncCatalog registers catalog definitions with the provider. Entries that
// already have a provider UID keep it; only fields like price and cadence
// are refreshed.
func (s *Service) SyncCatalog(ctx context.Context, src CatalogSource) error {
	defs, err := src.Load(ctx)
	if err != nil {
		return errors.Join(ErrFailedToLoadCatalog, err)
	}

	for i := range defs {
		def := defs[i]
		if err := def.Validate(); err != nil {
			return err
		}

		existing, err := s.subscriptions.GetByProduct(ctx, def.ProductReference)
		switch {
		case err == nil:
			// The provider assigned this UID once at registration; it is
			// never rewritten.
			def.UID = existing.UID
			def.CreatedAt = existing.CreatedAt
		case errors.Is(err, ErrSubscriptionNotFound):
			uid, err := s.provider.RegisterSubscription(ctx, &def)
			if err != nil {
				return err
			}
			def.UID = uid
		default:
			return err
		}

		if err := s.subscriptions.Save(ctx, &def); err != nil {
			return err
		}
		s.log.InfoContext(ctx, "subscription synced",
			"uid", def.UID, "product", def.ProductReference)
	}
	return nil
}

// PushSubscriberStatus forwards an external lifecycle status change (for
// example a cancellation in the order system) to the provider so the
// enrollment state stays aligned on both sides.
func (s *Service) PushSubscriberStatus(ctx context.Context, orderID, status string) error {
	subscriber, err := s.subscribers.GetByOrderID(ctx, orderID)
	if err != nil {
		return err
	}
	return s.provider.PushSubscriberStatus(ctx, subscriber.SubscriptionUID, subscriber.UID, status)
}

// completePayment invokes the downstream payment-complete callback. Gateway
// failures are logged, not propagated: the order system dedupes by status
// and the provider redelivers webhooks, so reconciliation bookkeeping must
// still advance.
func (s *Service) completePayment(ctx context.Context, octx OrderContext) {
	if err := s.orders.PaymentComplete(ctx, octx); err != nil {
		s.log.ErrorContext(ctx, "payment complete callback failed",
			"order_id", octx.OrderID, "error", err)
	}
}

func (s *Service) failPayment(ctx context.Context, octx OrderContext, reason string) {
	var err error
	if octx.Kind == OrderManaged {
		err = s.orders.PaymentFailed(ctx, octx, reason)
	} else {
		err = s.orders.UpdateStatus(ctx, octx.OrderID, "failed", reason)
	}
	if err != nil {
		s.log.ErrorContext(ctx, "payment failed callback failed",
			"order_id", octx.OrderID, "error", err)
	}
}

func (s *Service) noteOrder(ctx context.Context, orderID, note string) {
	if err := s.orders.AddNote(ctx, orderID, note); err != nil {
		s.log.WarnContext(ctx, "failed to annotate order",
			"order_id", orderID, "error", err)
	}
}

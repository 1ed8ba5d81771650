package subscription

import (
	"context"
	"time"
)

// SubscriptionStore persists subscription plan definitions.
//
// Implementations must treat a non-empty UID as immutable: saving a record
// whose UID differs from the stored one fails with ErrUIDImmutable.
type SubscriptionStore interface {
	// GetByUID returns the subscription with the given provider UID.
	// Returns ErrSubscriptionNotFound if no such subscription exists.
	GetByUID(ctx context.Context, uid string) (*Subscription, error)

	// GetByProduct returns the subscription linked to a product reference.
	GetByProduct(ctx context.Context, productRef string) (*Subscription, error)

	// List returns all known subscriptions.
	List(ctx context.Context) ([]*Subscription, error)

	// Save creates or updates a subscription, keyed by product reference.
	Save(ctx context.Context, sub *Subscription) error
}

// SubscriberStore persists subscriber enrollments and their append-only
// execution logs.
//
// Implementations must uphold two invariants regardless of engine:
// registration data is write-once (ErrRegisterDataImmutable), and
// concurrent saves of the same subscriber serialize via the Version field
// (ErrVersionConflict).
type SubscriberStore interface {
	// GetByUID returns the subscriber matching the provider UID, its
	// subscription UID and the originating order.
	// Returns ErrSubscriberNotFound if no such enrollment exists.
	GetByUID(ctx context.Context, uid, subscriptionUID, orderID string) (*Subscriber, error)

	// GetByOrderID returns the subscriber enrolled through the given order.
	GetByOrderID(ctx context.Context, orderID string) (*Subscriber, error)

	// Save creates the subscriber when Version is zero and updates it
	// otherwise, bumping Version on success.
	Save(ctx context.Context, sub *Subscriber) error

	// ListDue returns registered subscribers whose next execution date is
	// at or before now, oldest first, capped at limit.
	ListDue(ctx context.Context, now time.Time, limit int) ([]*Subscriber, error)

	// AppendExecution appends an immutable execution log entry.
	AppendExecution(ctx context.Context, entry *ExecutionLogEntry) error

	// ListExecutions returns a subscriber's execution log, oldest first.
	ListExecutions(ctx context.Context, subscriberUID string) ([]*ExecutionLogEntry, error)
}

package subscription

import (
	"time"

	"github.com/google/uuid"
)

// Subscriber is one customer's enrollment in a Subscription. It is created
// on the first checkout notification for an order and mutated by every
// subsequent notification matching its UID; it is never deleted.
type Subscriber struct {
	UID             string
	SubscriptionUID string
	OrderID         string

	// RegisterData is the raw registration notification payload. It is set
	// at most once; a second registration attempt is rejected, never
	// overwritten.
	RegisterData []byte

	// State is the last known provider payment status code.
	State int

	StartDate     *time.Time
	LastExecution *time.Time
	NextExecution *time.Time

	// Version guards concurrent saves. Zero means the record has not been
	// persisted yet; stores bump it on every successful save.
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Registered reports whether the registration payload has been recorded.
func (s *Subscriber) Registered() bool {
	return len(s.RegisterData) > 0
}

// PaymentState derives the coarse payment state from the last status code.
func (s *Subscriber) PaymentState() PaymentState {
	return StateFromStatusCode(s.State)
}

// ExecutionLogEntry is an immutable audit record appended on every
// successful reconciliation. Entries are owned by their Subscriber and are
// keyed by (subscriber UID, timestamp) for downstream duplicate detection.
type ExecutionLogEntry struct {
	ID            uuid.UUID
	SubscriberUID string
	OrderID       string
	Timestamp     time.Time
	RawPayload    []byte
}

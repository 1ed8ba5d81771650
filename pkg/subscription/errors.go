package subscription

import "errors"

var (
	// ErrInvalidNotification rejects a webhook before any lookup or
	// mutation: missing or invalid token, unknown notification type, or an
	// empty payment status.
	ErrInvalidNotification = errors.New("invalid webhook notification")

	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrSubscriberNotFound   = errors.New("subscriber not found")

	// ErrNoSubscriptionOrder means the referenced order carries no
	// subscription, neither managed nor standalone.
	ErrNoSubscriptionOrder = errors.New("order has no subscription attached")

	// ErrDuplicateRegistration is the idempotence guard for checkout
	// notifications: the subscriber's registration data is already set.
	ErrDuplicateRegistration = errors.New("subscriber already registered")

	// ErrRegisterDataImmutable is returned by stores when a save attempts
	// to overwrite registration data that was already set.
	ErrRegisterDataImmutable = errors.New("subscriber registration data is write-once")

	// ErrUIDImmutable is returned by stores when a save attempts to change
	// a provider-assigned UID.
	ErrUIDImmutable = errors.New("provider-assigned UID is immutable")

	// ErrVersionConflict means a concurrent writer updated the subscriber
	// between read and save.
	ErrVersionConflict = errors.New("subscriber version conflict")

	ErrChargeFailed = errors.New("charge execution failed")

	// ErrPersistenceFailed wraps store write failures surfaced after the
	// action branch already ran. These are critical inconsistencies.
	ErrPersistenceFailed = errors.New("failed to persist reconciliation state")

	ErrInvalidCadence      = errors.New("invalid billing cadence")
	ErrInvalidSubscription = errors.New("invalid subscription definition")
	ErrSubscriptionExists  = errors.New("subscription already exists")
	ErrCheckoutNotAdjusted = errors.New("checkout references no known subscription")
	ErrLockNotAcquired     = errors.New("failed to acquire subscriber lock")
	ErrFailedToLoadCatalog = errors.New("failed to load subscription catalog")
)

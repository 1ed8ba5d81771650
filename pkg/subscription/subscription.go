package subscription

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Subscription is a recurring-billing plan definition. The UID is assigned
// by the provider when the plan is registered and never changes afterwards.
type Subscription struct {
	UID              string
	Name             string
	Description      string
	Type             SubscriptionType
	Cadence          Cadence
	Price            decimal.Decimal
	SignupFee        decimal.Decimal
	ProductReference string // weak back-reference to the sellable item
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Validate checks the definition's internal consistency.
func (s *Subscription) Validate() error {
	if s.ProductReference == "" {
		return fmt.Errorf("%w: missing product reference", ErrInvalidSubscription)
	}
	if !s.Cadence.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidSubscription, ErrInvalidCadence)
	}
	if s.Price.IsNegative() {
		return fmt.Errorf("%w: negative price", ErrInvalidSubscription)
	}
	if s.SignupFee.IsNegative() {
		return fmt.Errorf("%w: negative signup fee", ErrInvalidSubscription)
	}
	switch s.Type {
	case TypeManual, TypeAutomatic, TypeDynamic:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidSubscription, s.Type)
	}
	return nil
}

// IsManual reports whether charges are initiated by the subscriber rather
// than the scheduled trigger.
func (s *Subscription) IsManual() bool {
	return s.Type == TypeManual
}

// Registered reports whether the provider has assigned a UID.
func (s *Subscription) Registered() bool {
	return s.UID != ""
}

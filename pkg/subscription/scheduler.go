package subscription

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Scheduler periodically scans for subscribers whose next execution date
// has arrived and feeds them to the Trigger. Each tick is an independent
// unit of work; charge idempotency keys make overlapping ticks across
// processes harmless.
type Scheduler struct {
	subscriptions SubscriptionStore
	subscribers   SubscriberStore
	trigger       *Trigger
	interval      time.Duration
	batchSize     int
	log           *slog.Logger
}

// SchedulerOption configures the scheduler.
type SchedulerOption func(*Scheduler)

// WithCheckInterval sets how often due subscribers are scanned.
func WithCheckInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithBatchSize caps how many due subscribers one tick processes.
func WithBatchSize(n int) SchedulerOption {
	return func(s *Scheduler) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// NewScheduler creates a billing scheduler. Panics if a required dependency
// is nil.
func NewScheduler(subscriptions SubscriptionStore, subscribers SubscriberStore, trigger *Trigger, log *slog.Logger, opts ...SchedulerOption) *Scheduler {
	if subscriptions == nil {
		panic("subscription: SubscriptionStore is required")
	}
	if subscribers == nil {
		panic("subscription: SubscriberStore is required")
	}
	if trigger == nil {
		panic("subscription: Trigger is required")
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	s := &Scheduler{
		subscriptions: subscriptions,
		subscribers:   subscribers,
		trigger:       trigger,
		interval:      time.Minute,
		batchSize:     100,
		log:           log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs the scheduling loop until ctx is cancelled. The first scan
// happens immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			s.log.InfoContext(ctx, "billing scheduler shutting down")
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	due, err := s.subscribers.ListDue(ctx, time.Now().UTC(), s.batchSize)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to list due subscribers", "error", err)
		return
	}

	for _, subscriber := range due {
		sub, err := s.subscriptions.GetByUID(ctx, subscriber.SubscriptionUID)
		if err != nil {
			if errors.Is(err, ErrSubscriptionNotFound) {
				s.log.WarnContext(ctx, "due subscriber references unknown subscription",
					"subscriber_uid", subscriber.UID, "subscription_uid", subscriber.SubscriptionUID)
				continue
			}
			s.log.ErrorContext(ctx, "failed to load subscription", "error", err)
			continue
		}

		// Manual subscriptions are charged by the subscriber, not by us.
		if sub.IsManual() {
			continue
		}

		s.trigger.OnBillingDue(ctx, subscriber.OrderID, sub.Price)
	}
}

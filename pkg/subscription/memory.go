package subscription

import (
	"bytes"
	"context"
	"slices"
	"sync"
	"time"
)

// memorySubscriptionStore keeps subscription definitions in memory. Used in
// tests and single-node setups without a database.
type memorySubscriptionStore struct {
	mu   sync.RWMutex
	byID map[string]*Subscription // keyed by product reference
}

// NewMemorySubscriptionStore returns an in-memory SubscriptionStore.
func NewMemorySubscriptionStore() SubscriptionStore {
	return &memorySubscriptionStore{byID: make(map[string]*Subscription)}
}

func (s *memorySubscriptionStore) GetByUID(ctx context.Context, uid string) (*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.byID {
		if sub.UID == uid && uid != "" {
			return copySubscription(sub), nil
		}
	}
	return nil, ErrSubscriptionNotFound
}

func (s *memorySubscriptionStore) GetByProduct(ctx context.Context, productRef string) (*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.byID[productRef]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	return copySubscription(sub), nil
}

func (s *memorySubscriptionStore) List(ctx context.Context) ([]*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Subscription, 0, len(s.byID))
	for _, sub := range s.byID {
		out = append(out, copySubscription(sub))
	}
	return out, nil
}

func (s *memorySubscriptionStore) Save(ctx context.Context, sub *Subscription) error {
	if err := sub.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := s.byID[sub.ProductReference]; ok {
		if existing.UID != "" && sub.UID != existing.UID {
			return ErrUIDImmutable
		}
		sub.CreatedAt = existing.CreatedAt
	} else {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now

	s.byID[sub.ProductReference] = copySubscription(sub)
	return nil
}

// memorySubscriberStore keeps subscriber enrollments and execution logs in
// memory, upholding the write-once and optimistic-version invariants the
// interface requires of every engine.
type memorySubscriberStore struct {
	mu         sync.RWMutex
	byUID      map[string]*Subscriber
	executions map[string][]*ExecutionLogEntry
}

// NewMemorySubscriberStore returns an in-memory SubscriberStore.
func NewMemorySubscriberStore() SubscriberStore {
	return &memorySubscriberStore{
		byUID:      make(map[string]*Subscriber),
		executions: make(map[string][]*ExecutionLogEntry),
	}
}

func (s *memorySubscriberStore) GetByUID(ctx context.Context, uid, subscriptionUID, orderID string) (*Subscriber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.byUID[uid]
	if !ok || sub.SubscriptionUID != subscriptionUID || sub.OrderID != orderID {
		return nil, ErrSubscriberNotFound
	}
	return copySubscriber(sub), nil
}

func (s *memorySubscriberStore) GetByOrderID(ctx context.Context, orderID string) (*Subscriber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.byUID {
		if sub.OrderID == orderID {
			return copySubscriber(sub), nil
		}
	}
	return nil, ErrSubscriberNotFound
}

func (s *memorySubscriberStore) Save(ctx context.Context, sub *Subscriber) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	existing, ok := s.byUID[sub.UID]
	if !ok {
		if sub.Version != 0 {
			return ErrVersionConflict
		}
		sub.Version = 1
		sub.CreatedAt = now
	} else {
		if sub.Version != existing.Version {
			return ErrVersionConflict
		}
		if existing.Registered() && !bytes.Equal(existing.RegisterData, sub.RegisterData) {
			return ErrRegisterDataImmutable
		}
		sub.Version = existing.Version + 1
		sub.CreatedAt = existing.CreatedAt
	}
	sub.UpdatedAt = now

	s.byUID[sub.UID] = copySubscriber(sub)
	return nil
}

func (s *memorySubscriberStore) ListDue(ctx context.Context, now time.Time, limit int) ([]*Subscriber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	due := make([]*Subscriber, 0)
	for _, sub := range s.byUID {
		if !sub.Registered() || sub.NextExecution == nil {
			continue
		}
		if sub.NextExecution.After(now) {
			continue
		}
		due = append(due, copySubscriber(sub))
	}

	slices.SortFunc(due, func(a, b *Subscriber) int {
		return a.NextExecution.Compare(*b.NextExecution)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *memorySubscriberStore) AppendExecution(ctx context.Context, entry *ExecutionLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *entry
	stored.RawPayload = slices.Clone(entry.RawPayload)
	s.executions[entry.SubscriberUID] = append(s.executions[entry.SubscriberUID], &stored)
	return nil
}

func (s *memorySubscriberStore) ListExecutions(ctx context.Context, subscriberUID string) ([]*ExecutionLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.executions[subscriberUID]
	out := make([]*ExecutionLogEntry, 0, len(entries))
	for _, entry := range entries {
		stored := *entry
		stored.RawPayload = slices.Clone(entry.RawPayload)
		out = append(out, &stored)
	}
	return out, nil
}

func copySubscription(sub *Subscription) *Subscription {
	dup := *sub
	return &dup
}

func copySubscriber(sub *Subscriber) *Subscriber {
	dup := *sub
	dup.RegisterData = slices.Clone(sub.RegisterData)
	if sub.StartDate != nil {
		v := *sub.StartDate
		dup.StartDate = &v
	}
	if sub.LastExecution != nil {
		v := *sub.LastExecution
		dup.LastExecution = &v
	}
	if sub.NextExecution != nil {
		v := *sub.NextExecution
		dup.NextExecution = &v
	}
	return &dup
}

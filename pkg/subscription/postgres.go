package subscription

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mobbexco/subscriptions-bridge/pkg/pg"
)

// postgresSubscriptionStore persists subscription definitions in PostgreSQL.
type postgresSubscriptionStore struct {
	pool *pgxpool.Pool
}

// NewPostgresSubscriptionStore creates a PostgreSQL-backed SubscriptionStore.
// Panics on a nil pool.
func NewPostgresSubscriptionStore(pool *pgxpool.Pool) SubscriptionStore {
	if pool == nil {
		panic("subscription: pgx pool is required")
	}
	return &postgresSubscriptionStore{pool: pool}
}

// Monetary columns are read as text and parsed to keep decimal precision out
// of float64 territory.
const subscriptionColumns = `uid, name, description, type, cadence, price::text, signup_fee::text, product_ref, created_at, updated_at`

func (s *postgresSubscriptionStore) GetByUID(ctx context.Context, uid string) (*Subscription, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE uid = $1`, uid)
	return scanSubscription(row)
}

func (s *postgresSubscriptionStore) GetByProduct(ctx context.Context, productRef string) (*Subscription, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE product_ref = $1`, productRef)
	return scanSubscription(row)
}

func (s *postgresSubscriptionStore) List(ctx context.Context) ([]*Subscription, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions ORDER BY product_ref`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *postgresSubscriptionStore) Save(ctx context.Context, sub *Subscription) error {
	if err := sub.Validate(); err != nil {
		return err
	}

	// The upsert refuses to rewrite a provider-assigned UID; a zero-row
	// result means the guard fired.
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO subscriptions (uid, name, description, type, cadence, price, signup_fee, product_ref, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		ON CONFLICT (product_ref) DO UPDATE SET
			uid = EXCLUDED.uid,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			type = EXCLUDED.type,
			cadence = EXCLUDED.cadence,
			price = EXCLUDED.price,
			signup_fee = EXCLUDED.signup_fee,
			updated_at = now()
		WHERE subscriptions.uid = '' OR subscriptions.uid = EXCLUDED.uid`,
		sub.UID, sub.Name, sub.Description, string(sub.Type), sub.Cadence.String(),
		sub.Price.String(), sub.SignupFee.String(), sub.ProductReference)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUIDImmutable
	}
	return nil
}

func scanSubscription(row pgx.Row) (*Subscription, error) {
	var (
		sub                 Subscription
		typ, cadence        string
		priceStr, signupStr string
	)
	err := row.Scan(&sub.UID, &sub.Name, &sub.Description, &typ, &cadence,
		&priceStr, &signupStr, &sub.ProductReference, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}

	sub.Type = SubscriptionType(typ)
	if sub.Cadence, err = ParseCadence(cadence); err != nil {
		return nil, fmt.Errorf("corrupt cadence for %s: %w", sub.ProductReference, err)
	}
	if sub.Price, err = decimal.NewFromString(priceStr); err != nil {
		return nil, fmt.Errorf("corrupt price for %s: %w", sub.ProductReference, err)
	}
	if sub.SignupFee, err = decimal.NewFromString(signupStr); err != nil {
		return nil, fmt.Errorf("corrupt signup fee for %s: %w", sub.ProductReference, err)
	}
	return &sub, nil
}

// postgresSubscriberStore persists subscriber enrollments and execution logs
// in PostgreSQL. Saves run in a transaction with a row lock so the write-once
// and version invariants hold across processes.
type postgresSubscriberStore struct {
	pool *pgxpool.Pool
}

// NewPostgresSubscriberStore creates a PostgreSQL-backed SubscriberStore.
// Panics on a nil pool.
func NewPostgresSubscriberStore(pool *pgxpool.Pool) SubscriberStore {
	if pool == nil {
		panic("subscription: pgx pool is required")
	}
	return &postgresSubscriberStore{pool: pool}
}

const subscriberColumns = `uid, subscription_uid, order_id, register_data, state, start_date, last_execution, next_execution, version, created_at, updated_at`

func (s *postgresSubscriberStore) GetByUID(ctx context.Context, uid, subscriptionUID, orderID string) (*Subscriber, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+subscriberColumns+` FROM subscribers
		 WHERE uid = $1 AND subscription_uid = $2 AND order_id = $3`,
		uid, subscriptionUID, orderID)
	return scanSubscriber(row)
}

func (s *postgresSubscriberStore) GetByOrderID(ctx context.Context, orderID string) (*Subscriber, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+subscriberColumns+` FROM subscribers WHERE order_id = $1`, orderID)
	return scanSubscriber(row)
}

func (s *postgresSubscriberStore) Save(ctx context.Context, sub *Subscriber) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		storedData    []byte
		storedVersion int64
		createdAt     time.Time
	)
	err = tx.QueryRow(ctx,
		`SELECT register_data, version, created_at FROM subscribers WHERE uid = $1 FOR UPDATE`,
		sub.UID).Scan(&storedData, &storedVersion, &createdAt)

	switch {
	case pg.IsNotFoundError(err):
		if sub.Version != 0 {
			return ErrVersionConflict
		}
		sub.Version = 1
		_, err = tx.Exec(ctx, `
			INSERT INTO subscribers (uid, subscription_uid, order_id, register_data, state, start_date, last_execution, next_execution, version, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())`,
			sub.UID, sub.SubscriptionUID, sub.OrderID, sub.RegisterData, sub.State,
			sub.StartDate, sub.LastExecution, sub.NextExecution, sub.Version)
		if err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		if sub.Version != storedVersion {
			return ErrVersionConflict
		}
		if len(storedData) > 0 && !bytes.Equal(storedData, sub.RegisterData) {
			return ErrRegisterDataImmutable
		}
		sub.Version = storedVersion + 1
		sub.CreatedAt = createdAt
		_, err = tx.Exec(ctx, `
			UPDATE subscribers SET
				subscription_uid = $2,
				order_id = $3,
				register_data = $4,
				state = $5,
				start_date = $6,
				last_execution = $7,
				next_execution = $8,
				version = $9,
				updated_at = now()
			WHERE uid = $1`,
			sub.UID, sub.SubscriptionUID, sub.OrderID, sub.RegisterData, sub.State,
			sub.StartDate, sub.LastExecution, sub.NextExecution, sub.Version)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (s *postgresSubscriberStore) ListDue(ctx context.Context, now time.Time, limit int) ([]*Subscriber, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+subscriberColumns+` FROM subscribers
		 WHERE length(register_data) > 0 AND next_execution IS NOT NULL AND next_execution <= $1
		 ORDER BY next_execution
		 LIMIT $2`,
		now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Subscriber
	for rows.Next() {
		sub, err := scanSubscriber(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *postgresSubscriberStore) AppendExecution(ctx context.Context, entry *ExecutionLogEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO subscriber_executions (id, subscriber_uid, order_id, executed_at, raw_payload)
		VALUES ($1, $2, $3, $4, $5)`,
		entry.ID, entry.SubscriberUID, entry.OrderID, entry.Timestamp, entry.RawPayload)
	if pg.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}

func (s *postgresSubscriberStore) ListExecutions(ctx context.Context, subscriberUID string) ([]*ExecutionLogEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, subscriber_uid, order_id, executed_at, raw_payload
		FROM subscriber_executions
		WHERE subscriber_uid = $1
		ORDER BY executed_at`,
		subscriberUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ExecutionLogEntry
	for rows.Next() {
		var entry ExecutionLogEntry
		if err := rows.Scan(&entry.ID, &entry.SubscriberUID, &entry.OrderID, &entry.Timestamp, &entry.RawPayload); err != nil {
			return nil, err
		}
		out = append(out, &entry)
	}
	return out, rows.Err()
}

func scanSubscriber(row pgx.Row) (*Subscriber, error) {
	var sub Subscriber
	err := row.Scan(&sub.UID, &sub.SubscriptionUID, &sub.OrderID, &sub.RegisterData,
		&sub.State, &sub.StartDate, &sub.LastExecution, &sub.NextExecution,
		&sub.Version, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrSubscriberNotFound
		}
		return nil, err
	}
	return &sub, nil
}

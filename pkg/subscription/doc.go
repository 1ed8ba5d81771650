// Package subscription implements the core of the Mobbex subscription
// bridge: record stores for subscriptions and subscriber enrollments, the
// webhook reconciler that turns provider notifications into local state
// transitions and downstream order actions, the idempotent charge executor,
// and the scheduled-payment trigger.
//
// The reconciler is the heart of the package. Each incoming notification is
// validated, matched against a Subscription and Subscriber, and processed
// under a per-subscriber lock so at-least-once webhook delivery cannot
// double-register an enrollment or double-fire a downstream action. After
// the action branch, bookkeeping always advances: execution dates move
// forward and the raw payload is appended to the subscriber's execution log.
//
// External collaborators are injected as small interfaces: Provider for the
// synchronous Mobbex API, OrderGateway for the order-management system that
// owns order lifecycle, Locker for cross-process serialization. The package
// ships in-memory stores for tests and single-node setups and pgx-backed
// stores for production.
package subscription

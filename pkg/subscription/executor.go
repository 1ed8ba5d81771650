package subscription

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
)

// ChargeOutcome is the interpreted result of a charge execution.
type ChargeOutcome int

const (
	// OutcomeSuccess means the provider accepted the charge. Final
	// confirmation arrives asynchronously via webhook.
	OutcomeSuccess ChargeOutcome = iota
	// OutcomeAlreadyInProgress means the provider reported a concurrent or
	// duplicate attempt for the same reference. Treated as success-pending;
	// callers must not retry within the same scheduling cycle.
	OutcomeAlreadyInProgress
)

// codeExecutionInProgress is the provider code for a duplicate attempt.
const codeExecutionInProgress = "SUBSCRIPTIONS:EXECUTION_ALREADY_IN_PROGRESS"

// IdempotencyKey is the stable composite identifying one billing cycle
// attempt. Retried scheduled payments for the same cycle collapse to a
// single provider-side charge.
type IdempotencyKey struct {
	SubscriptionUID string
	SubscriberUID   string
	OrderID         string
}

func (k IdempotencyKey) String() string {
	return k.SubscriptionUID + "_" + k.SubscriberUID + "_" + k.OrderID
}

// Executor issues idempotent charge requests and interprets provider
// response codes.
type Executor struct {
	provider Provider
	log      *slog.Logger
}

// NewExecutor creates a charge executor. Panics on a nil provider.
func NewExecutor(provider Provider, log *slog.Logger) *Executor {
	if provider == nil {
		panic("subscription: Provider is required")
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Executor{provider: provider, log: log}
}

// ExecuteCharge runs one charge attempt for the given billing cycle.
// Transport errors and rejected charges return an error wrapping
// ErrChargeFailed; a response without a recognizable result flag is treated
// the same way with a synthesized diagnostic.
func (e *Executor) ExecuteCharge(ctx context.Context, key IdempotencyKey, total decimal.Decimal) (ChargeOutcome, error) {
	resp, err := e.provider.Charge(ctx, key.SubscriptionUID, key.SubscriberUID, key.String(), total)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrChargeFailed, err)
	}

	if !resp.HasResult {
		return 0, fmt.Errorf("%w: provider response missing result flag: %s", ErrChargeFailed, chargeDiagnostic(resp))
	}

	if resp.Code == codeExecutionInProgress {
		e.log.DebugContext(ctx, "charge already in progress", "reference", key.String())
		return OutcomeAlreadyInProgress, nil
	}

	if !resp.Result {
		return 0, fmt.Errorf("%w: %s", ErrChargeFailed, chargeDiagnostic(resp))
	}

	e.log.InfoContext(ctx, "charge accepted", "reference", key.String(), "total", total.String())
	return OutcomeSuccess, nil
}

func chargeDiagnostic(resp ChargeResponse) string {
	code, errMsg, status := resp.Code, resp.Error, resp.StatusMessage
	if code == "" {
		code = "unknown"
	}
	if errMsg == "" {
		errMsg = "unknown"
	}
	if status == "" {
		status = "unknown"
	}
	return fmt.Sprintf("code=%s error=%s status=%s", code, errMsg, status)
}

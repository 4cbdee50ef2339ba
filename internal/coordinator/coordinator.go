// Package coordinator implements the Request Coordinator: it computes the
// canonical request hash, drives the Idempotency Gate and a caller-
// supplied operation inside one Store transaction, and commits or rolls
// back as a single unit. Grounded on ledger.py's
// _prepare_idempotent_operation, generalized with Go generics so handlers
// don't need type assertions on the replayed response.
package coordinator

import (
	"context"
	"encoding/json"
	"fmt"

	"ledger-api/internal/domain/ledger"
	"ledger-api/internal/infrastructure/idempotency"
	"ledger-api/internal/infrastructure/store"
	"ledger-api/internal/pkg/canonicaljson"
)

// Operation is the work a coordinated request performs once the
// Idempotency Gate has granted it a fresh lease. It runs inside the same
// Store.Tx the Gate locked its record in.
type Operation[T any] func(ctx context.Context, tx store.Tx) (T, error)

// Coordinator wires a Store and an Idempotency Gate together.
type Coordinator struct {
	st   store.Store
	gate *idempotency.Gate
}

func New(st store.Store, gate *idempotency.Gate) *Coordinator {
	return &Coordinator{st: st, gate: gate}
}

// Outcome is what Run hands back: the result (either freshly computed or
// replayed from a settled idempotency record), the HTTP status to send,
// and whether it was served from the cache.
type Outcome[T any] struct {
	Result     T
	StatusCode int
	Replayed   bool
}

// maxOptimisticRetries bounds the retry-on-version-conflict loop (spec.md
// §7: "OptimisticConflict (internal) | version mismatch | retried ≤3
// times, then 409").
const maxOptimisticRetries = 3

// Run computes the canonical hash of payload, acquires idempotencyKey
// through the Gate, and either replays a settled response or executes op
// and settles its result, all within one transaction. A domain failure
// rolls the whole Tx back, so the idempotency row is never persisted for a
// rejected payload — a retry with the same key is free to succeed once the
// precondition changes. An OptimisticConflict from a racing writer is
// retried transparently a bounded number of times before surfacing as 409.
func Run[T any](ctx context.Context, c *Coordinator, idempotencyKey string, payload interface{}, successStatus int, op Operation[T]) (Outcome[T], error) {
	var zero Outcome[T]

	hash, err := canonicaljson.Hash(payload)
	if err != nil {
		return zero, ledger.Wrap(ledger.KindInternal, "failed to hash request payload", err)
	}

	var lastErr error
	for attempt := 0; attempt < maxOptimisticRetries; attempt++ {
		outcome, retry, err := runOnce(ctx, c, idempotencyKey, hash, successStatus, op)
		if !retry {
			return outcome, err
		}
		lastErr = err
	}
	return zero, lastErr
}

// runOnce drives a single attempt: acquire the gate lease inside a fresh
// Tx, replay or execute+settle, commit. The second return value signals
// whether the caller should retry the whole attempt (true only for an
// OptimisticConflict raised by op, meaning a racing writer touched one of
// the accounts the operation locked between lock and commit).
func runOnce[T any](ctx context.Context, c *Coordinator, idempotencyKey, hash string, successStatus int, op Operation[T]) (Outcome[T], bool, error) {
	var zero Outcome[T]

	tx, err := c.st.Begin(ctx)
	if err != nil {
		return zero, false, ledger.Wrap(ledger.KindInternal, "failed to begin transaction", err)
	}

	lease, err := c.gate.Acquire(ctx, tx, idempotencyKey, hash)
	if err != nil {
		_ = tx.Rollback(ctx)
		return zero, false, err
	}

	if lease.Cached != nil {
		_ = tx.Rollback(ctx)
		var result T
		if len(lease.Cached.Body) > 0 {
			if err := json.Unmarshal(lease.Cached.Body, &result); err != nil {
				return zero, false, ledger.Wrap(ledger.KindInternal, "failed to decode cached response", err)
			}
		}
		return Outcome[T]{Result: result, StatusCode: lease.Cached.StatusCode, Replayed: true}, false, nil
	}

	result, err := op(ctx, tx)
	if err != nil {
		_ = tx.Rollback(ctx)
		if le, ok := ledger.As(err); ok && le.Kind == ledger.KindOptimisticConflict {
			return zero, true, err
		}
		return zero, false, err
	}

	body, err := json.Marshal(result)
	if err != nil {
		_ = tx.Rollback(ctx)
		return zero, false, ledger.Wrap(ledger.KindInternal, "failed to encode response", err)
	}

	if err := c.gate.Settle(ctx, tx, idempotencyKey, successStatus, body); err != nil {
		_ = tx.Rollback(ctx)
		return zero, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return zero, false, ledger.Wrap(ledger.KindInternal, fmt.Sprintf("failed to commit %T operation", result), err)
	}

	return Outcome[T]{Result: result, StatusCode: successStatus, Replayed: false}, false, nil
}

// Package idempotency implements the Idempotency Gate: the
// NEW -> LOCKED -> SETTLED state machine guarding every mutating ledger
// operation, grounded on idempotency.py's acquire_lock/store_response.
package idempotency

import (
	"context"
	"time"

	"ledger-api/internal/domain/ledger"
	"ledger-api/internal/infrastructure/store"
)

// Lease is what Acquire hands back when the caller is clear to execute
// the operation: either a fresh lock (Cached == nil) or a previously
// settled response to replay verbatim (Cached != nil).
type Lease struct {
	Cached *CachedResponse
}

type CachedResponse struct {
	StatusCode int
	Body       []byte
}

// Gate coordinates Store-backed idempotency records. lockOwner identifies
// this process instance in the locked_by column (diagnostic only).
type Gate struct {
	ttl       time.Duration
	lockOwner string
	cache     Cache
}

// Cache is the optional settled-response read-through layer (Redis). A
// nil Cache disables the fast path; Postgres remains authoritative either
// way.
type Cache interface {
	Get(ctx context.Context, key string) (*CachedResponse, bool)
	Set(ctx context.Context, key string, resp *CachedResponse, ttl time.Duration)
}

func New(ttl time.Duration, lockOwner string, cache Cache) *Gate {
	return &Gate{ttl: ttl, lockOwner: lockOwner, cache: cache}
}

// Acquire implements the Gate's state machine for a single (key,
// requestHash) pair within tx:
//   - no record exists: insert one as LOCKED and return a fresh Lease.
//   - record is SETTLED and request_hash matches: return the cached
//     response for the caller to replay (no operation re-execution).
//   - record is SETTLED and request_hash differs: KindIdempotencyConflict.
//   - record is LOCKED and still within its TTL: KindIdempotencyInProgress
//     (a concurrent request is mid-flight).
//   - record is LOCKED but expired: reclaim the lock and return a fresh
//     Lease, exactly as a crashed worker's lock is reclaimed.
func (g *Gate) Acquire(ctx context.Context, tx store.Tx, key, requestHash string) (*Lease, error) {
	if key == "" {
		return nil, ledger.New(ledger.KindMissingIdempotencyKey, "Idempotency-Key header is required")
	}

	if cached, ok := g.checkCache(ctx, key, requestHash); ok {
		return cached, nil
	}

	rec, err := tx.LockIdempotencyRecord(ctx, key)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	if rec == nil {
		lockedBy := g.lockOwner
		newRec := &ledger.IdempotencyRecord{
			Key:         key,
			RequestHash: requestHash,
			Status:      ledger.RequestLocked,
			LockedAt:    &now,
			LockedBy:    &lockedBy,
			ExpiresAt:   now.Add(g.ttl),
			CreatedAt:   now,
		}
		if err := tx.InsertIdempotencyRecord(ctx, newRec); err != nil {
			return nil, err
		}
		return &Lease{}, nil
	}

	switch rec.Status {
	case ledger.RequestSettled:
		if rec.RequestHash != requestHash {
			return nil, ledger.New(ledger.KindIdempotencyConflict, "idempotency key reused with a different request body")
		}
		code := 0
		if rec.ResponseCode != nil {
			code = *rec.ResponseCode
		}
		if g.cache != nil {
			g.cache.Set(ctx, key, &CachedResponse{StatusCode: code, Body: rec.ResponseBody}, g.ttl)
		}
		return &Lease{Cached: &CachedResponse{StatusCode: code, Body: rec.ResponseBody}}, nil

	case ledger.RequestLocked:
		if rec.RequestHash != requestHash {
			return nil, ledger.New(ledger.KindIdempotencyConflict, "idempotency key reused with a different request body")
		}
		if rec.ExpiresAt.After(now) {
			return nil, ledger.New(ledger.KindIdempotencyInProgress, "a request with this idempotency key is already in flight")
		}
		// Expired lock: reclaim it for this attempt.
		lockedBy := g.lockOwner
		rec.Status = ledger.RequestLocked
		rec.LockedAt = &now
		rec.LockedBy = &lockedBy
		rec.ExpiresAt = now.Add(g.ttl)
		if err := tx.UpdateIdempotencyRecord(ctx, rec); err != nil {
			return nil, err
		}
		return &Lease{}, nil

	default: // RequestNew, treated the same as an absent record
		if rec.RequestHash != requestHash {
			return nil, ledger.New(ledger.KindIdempotencyConflict, "idempotency key reused with a different request body")
		}
		return &Lease{}, nil
	}
}

func (g *Gate) checkCache(ctx context.Context, key, requestHash string) (*Lease, bool) {
	if g.cache == nil {
		return nil, false
	}
	cached, ok := g.cache.Get(ctx, key)
	if !ok {
		return nil, false
	}
	return &Lease{Cached: cached}, true
}

// Settle records a successful operation's response against key so future
// retries replay it instead of re-executing. Called within the same
// Store.Tx as the operation it's gating, just before Commit.
func (g *Gate) Settle(ctx context.Context, tx store.Tx, key string, statusCode int, body []byte) error {
	rec := &ledger.IdempotencyRecord{
		Key:          key,
		Status:       ledger.RequestSettled,
		ResponseCode: &statusCode,
		ResponseBody: body,
		ExpiresAt:    time.Now().UTC().Add(g.ttl),
	}
	if err := tx.UpdateIdempotencyRecord(ctx, rec); err != nil {
		return err
	}
	if g.cache != nil {
		g.cache.Set(ctx, key, &CachedResponse{StatusCode: statusCode, Body: body}, g.ttl)
	}
	return nil
}

// Release drops the lock on a failed attempt so the same key can be
// retried rather than being stuck until its TTL expires. Mirrors
// idempotency.py never persisting a failure as settled.
func (g *Gate) Release(ctx context.Context, tx store.Tx, key, requestHash string) error {
	rec := &ledger.IdempotencyRecord{
		Key:         key,
		RequestHash: requestHash,
		Status:      ledger.RequestNew,
		ExpiresAt:   time.Now().UTC(),
	}
	return tx.UpdateIdempotencyRecord(ctx, rec)
}

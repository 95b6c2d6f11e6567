// Package ratelimit implements a non-blocking token-bucket limiter with
// pluggable state storage.
//
// The limiter never blocks: Consume returns immediately with an admission
// decision, and callers that need admission poll with a short sleep. State
// lives behind the Storage interface so the same limiter works against
// process-local memory or a shared Redis backend.
package ratelimit

import "time"

// PollInterval is the sleep callers are expected to use between denied
// Consume calls. It is part of the limiter's contract, not an internal knob.
const PollInterval = 10 * time.Millisecond

// State is the per-key bucket state a Storage holds.
type State struct {
	Tokens float64
	Last   time.Time
}

// Storage persists per-key bucket state. Implementations must serialize
// concurrent Consume calls for the same key; state for distinct keys is
// independent.
type Storage interface {
	// Consume applies continuous refill to the key's bucket and, if at least
	// n tokens remain, decrements them and reports true. It never blocks.
	Consume(key string, n, rate, capacity float64) (bool, error)
}

// Limiter admits at most rate requests per second with burst capacity per key.
type Limiter struct {
	rate     float64
	capacity float64
	store    Storage
}

// NewLimiter returns a limiter with the given steady-state rate (tokens/sec)
// and bucket capacity, backed by store.
func NewLimiter(rate, capacity float64, store Storage) *Limiter {
	return &Limiter{
		rate:     rate,
		capacity: capacity,
		store:    store,
	}
}

// Consume tries to take n tokens for key. It returns true iff the bucket
// held at least n tokens after refill. Storage failures deny admission.
func (l *Limiter) Consume(key string, n float64) bool {
	ok, err := l.store.Consume(key, n, l.rate, l.capacity)
	if err != nil {
		return false
	}
	return ok
}

// refill applies the continuous refill formula to a bucket state. Shared by
// storage backends so they agree on the arithmetic.
func refill(s State, now time.Time, rate, capacity float64) State {
	if s.Last.IsZero() {
		return State{Tokens: capacity, Last: now}
	}
	elapsed := now.Sub(s.Last).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	tokens := s.Tokens + elapsed*rate
	if tokens > capacity {
		tokens = capacity
	}
	return State{Tokens: tokens, Last: now}
}

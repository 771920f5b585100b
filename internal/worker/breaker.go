package worker

import (
	"sync"
	"time"
)

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Breaker stops the history worker from hammering an unavailable store. After
// threshold consecutive failures it rejects writes for openFor, then lets a single
// trial call through.
type Breaker struct {
	mu        sync.Mutex
	st        breakerState
	fails     int
	threshold int
	openFor   time.Duration
	retryAt   time.Time
	probing   bool
	now       func() time.Time
}

func NewBreaker(threshold int, openFor time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 1
	}
	return &Breaker{threshold: threshold, openFor: openFor, now: time.Now}
}

// Allow reports whether a write may be attempted now. In the half-open state only the
// first caller is admitted until it reports back.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.st {
	case breakerOpen:
		if b.now().Before(b.retryAt) {
			return false
		}
		b.st = breakerHalfOpen
		b.probing = true
		return true
	case breakerHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	default:
		return true
	}
}

func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fails = 0
	b.st = breakerClosed
	b.probing = false
}

func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.st == breakerHalfOpen {
		b.trip()
		return
	}
	b.fails++
	if b.fails >= b.threshold {
		b.trip()
	}
}

func (b *Breaker) trip() {
	b.st = breakerOpen
	b.probing = false
	b.retryAt = b.now().Add(b.openFor)
}

func (b *Breaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.st.String()
}

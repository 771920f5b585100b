package model

import (
	"strings"
	"time"

	"github.com/jmehdipour/faucet-gateway/internal/identity"
)

// ThrottleScope selects how throttle records are keyed.
type ThrottleScope string

const (
	// ThrottleScopeFaucet keys records by (faucet, requester).
	ThrottleScopeFaucet ThrottleScope = "faucet"
	// ThrottleScopeGlobal keys records by requester only, sharing quota across faucets.
	ThrottleScopeGlobal ThrottleScope = "global"
)

func (s ThrottleScope) String() string { return string(s) }

// ParseThrottleScope normalizes input; empty => faucet.
func ParseThrottleScope(s string) (ThrottleScope, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "faucet":
		return ThrottleScopeFaucet, true
	case "global":
		return ThrottleScopeGlobal, true
	default:
		return ThrottleScopeFaucet, false
	}
}

// ThrottleRecord tracks one requester's consumption in its current window.
type ThrottleRecord struct {
	ID          identity.ID `db:"id"           json:"id"`
	FaucetID    identity.ID `db:"faucet_id"    json:"faucet_id"` // zero for global scope
	Requester   identity.ID `db:"requester"    json:"requester"`
	WindowStart int64       `db:"window_start" json:"window_start"`
	Count       uint16      `db:"count"        json:"count"`
	UpdatedAt   time.Time   `db:"updated_at"   json:"-"`
}

// Expired reports whether the window that started at WindowStart is over at now.
func (r *ThrottleRecord) Expired(now, interval int64) bool {
	return now-r.WindowStart >= interval
}

// EffectiveCount is the quantity consumed in the window that is current at now.
func (r *ThrottleRecord) EffectiveCount(now, interval int64) uint16 {
	if r.Expired(now, interval) {
		return 0
	}
	return r.Count
}

// Remaining is the quantity still available at now. It is negative when max was lowered
// below what the requester already consumed.
func (r *ThrottleRecord) Remaining(now, interval int64, max uint16) int {
	return int(max) - int(r.EffectiveCount(now, interval))
}

// Consume records quantity at now. Callers must validate quantity against Remaining with
// the same now first.
func (r *ThrottleRecord) Consume(now, interval int64, quantity uint16) {
	if r.Expired(now, interval) {
		r.WindowStart = now
		r.Count = quantity
		return
	}
	r.Count += quantity
}

// ResetsAt is the unix second at which the current window expires.
func (r *ThrottleRecord) ResetsAt(interval int64) int64 {
	return r.WindowStart + interval
}

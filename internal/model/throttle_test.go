package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThrottleRecord_Window(t *testing.T) {
	var r ThrottleRecord

	assert.Equal(t, 5, r.Remaining(0, 60, 5))
	r.Consume(0, 60, 3)
	assert.Equal(t, int64(0), r.WindowStart)
	assert.Equal(t, uint16(3), r.Count)

	assert.Equal(t, 2, r.Remaining(30, 60, 5))
	assert.Equal(t, int64(60), r.ResetsAt(60))

	// window boundary is inclusive: at start+interval the window is over
	assert.True(t, r.Expired(60, 60))
	assert.Equal(t, 5, r.Remaining(60, 60, 5))

	r.Consume(61, 60, 5)
	assert.Equal(t, int64(61), r.WindowStart)
	assert.Equal(t, uint16(5), r.Count)
	assert.Equal(t, 0, r.Remaining(61, 60, 5))
}

func TestThrottleRecord_RemainingNegative(t *testing.T) {
	r := ThrottleRecord{WindowStart: 10, Count: 4}
	assert.Equal(t, -1, r.Remaining(20, 60, 3))
	assert.Equal(t, uint16(0), r.EffectiveCount(70, 60))
}

func TestParseThrottleScope(t *testing.T) {
	s, ok := ParseThrottleScope("")
	assert.True(t, ok)
	assert.Equal(t, ThrottleScopeFaucet, s)

	s, ok = ParseThrottleScope(" GLOBAL ")
	assert.True(t, ok)
	assert.Equal(t, ThrottleScopeGlobal, s)

	_, ok = ParseThrottleScope("per-ip")
	assert.False(t, ok)
}

func TestFaucetPatch(t *testing.T) {
	f := Faucet{Price: 1, Amount: 2, Interval: 3, MaxQuantity: 4}
	assert.True(t, FaucetPatch{}.Empty())

	price, max := uint64(9), uint16(0)
	p := FaucetPatch{Price: &price, MaxQuantity: &max}
	assert.False(t, p.Empty())

	p.Apply(&f)
	assert.Equal(t, uint64(9), f.Price)
	assert.Equal(t, uint64(2), f.Amount)
	assert.Equal(t, int64(3), f.Interval)
	assert.True(t, f.Closed())
}

func TestTopicFor(t *testing.T) {
	assert.Equal(t, TopicFaucetPayouts, TopicFor(OpPayout))
	assert.Equal(t, TopicFaucetEvents, TopicFor(OpDeposit))
	assert.Equal(t, TopicFaucetEvents, TopicFor(OpClose))
}

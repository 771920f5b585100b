package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreaker(t *testing.T) {
	now := time.Unix(1000, 0)
	b := NewBreaker(2, 10*time.Second)
	b.now = func() time.Time { return now }

	assert.True(t, b.Allow())
	b.Failure()
	assert.Equal(t, "closed", b.State())
	b.Failure()
	assert.Equal(t, "open", b.State())
	assert.False(t, b.Allow())

	now = now.Add(10 * time.Second)
	assert.True(t, b.Allow())
	assert.Equal(t, "half-open", b.State())
	assert.False(t, b.Allow(), "only one trial call at a time")

	b.Failure()
	assert.Equal(t, "open", b.State())
	assert.False(t, b.Allow())

	now = now.Add(11 * time.Second)
	assert.True(t, b.Allow())
	b.Success()
	assert.Equal(t, "closed", b.State())
	assert.True(t, b.Allow())
}

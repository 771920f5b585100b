package util

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIDAt_MonotonicWithinMillisecond(t *testing.T) {
	at := time.Unix(1_700_000_000, 0)
	a, b := NewIDAt(at), NewIDAt(at)
	assert.Less(t, a, b)

	id, err := ulid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, ulid.Timestamp(at), id.Time())
}

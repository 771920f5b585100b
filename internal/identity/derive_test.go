package identity

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindDerived_OffCurve(t *testing.T) {
	faucet := New()

	addr, bump, err := Custody(faucet)
	require.NoError(t, err)
	assert.True(t, addr.IsDerived())
	assert.False(t, onCurve(addr[:]))

	again, err := CustodyWithBump(faucet, bump)
	require.NoError(t, err)
	assert.Equal(t, addr, again)
}

func TestFindDerived_Deterministic(t *testing.T) {
	owner, tokenType := New(), New()

	a, err := Associated(owner, tokenType)
	require.NoError(t, err)
	b, err := Associated(owner, tokenType)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := Associated(tokenType, owner)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestThrottle_Scopes(t *testing.T) {
	requester := New()
	one, two := New(), New()

	k1, err := Throttle(one, requester)
	require.NoError(t, err)
	k2, err := Throttle(two, requester)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)

	g1, err := Throttle(Zero, requester)
	require.NoError(t, err)
	g2, err := Throttle(Zero, requester)
	require.NoError(t, err)
	assert.Equal(t, g1, g2)
	assert.NotEqual(t, g1, k1)
}

func TestCreateDerived_Limits(t *testing.T) {
	_, err := CreateDerived(255, bytes.Repeat([]byte{1}, maxSeedLen+1))
	require.ErrorIs(t, err, ErrSeedTooLong)

	seeds := make([][]byte, maxSeeds+1)
	for i := range seeds {
		seeds[i] = []byte{byte(i)}
	}
	_, err = CreateDerived(255, seeds...)
	require.ErrorIs(t, err, ErrTooManySeeds)
}

func TestKeyPairIdentitiesAreOnCurve(t *testing.T) {
	for range 16 {
		assert.False(t, New().IsDerived())
	}
}

func TestFromSeed(t *testing.T) {
	a := FromSeed([]byte("alice"))
	assert.Equal(t, a, FromSeed([]byte("alice")))
	assert.NotEqual(t, a, FromSeed([]byte("bob")))
	assert.False(t, a.IsDerived())
}

func TestParse(t *testing.T) {
	id := New()

	got, err := Parse(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = Parse("abc")
	require.ErrorIs(t, err, ErrInvalidID)
	_, err = Parse(string(bytes.Repeat([]byte("zz"), Size)))
	require.ErrorIs(t, err, ErrInvalidID)
}

func TestScan(t *testing.T) {
	id := New()

	var fromString, fromBytes, fromNil ID
	require.NoError(t, fromString.Scan(id.String()))
	require.NoError(t, fromBytes.Scan([]byte(id.String())))
	require.NoError(t, fromNil.Scan(nil))
	assert.Equal(t, id, fromString)
	assert.Equal(t, id, fromBytes)
	assert.True(t, fromNil.IsZero())

	v, err := id.Value()
	require.NoError(t, err)
	assert.Equal(t, id.String(), v)
}

package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"database/sql/driver"
	"encoding/hex"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/blake2b"
)

// Size is the byte length of an identity.
const Size = 32

const (
	// derivedDomain separates derived addresses from any other blake2b usage.
	derivedDomain = "faucet-gateway/derived-address"
	maxSeeds      = 16
	maxSeedLen    = 32
)

var (
	ErrInvalidID    = errors.New("identity: invalid id")
	ErrOnCurve      = errors.New("identity: derived address is on the ed25519 curve")
	ErrNoBump       = errors.New("identity: unable to find a viable bump")
	ErrSeedTooLong  = errors.New("identity: seed longer than 32 bytes")
	ErrTooManySeeds = errors.New("identity: too many seeds")
)

// ID is a 32-byte account identity. Key-pair identities are ed25519 public keys;
// derived identities are guaranteed not to be valid curve points.
type ID [Size]byte

// Zero is the empty identity.
var Zero ID

// New returns a fresh key-pair identity.
func New() ID {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		panic(fmt.Sprintf("identity: generate key: %v", err))
	}
	var id ID
	copy(id[:], pub)
	return id
}

// FromSeed returns the key-pair identity whose private key is derived from seed.
// The same seed always yields the same identity.
func FromSeed(seed []byte) ID {
	sum := blake2b.Sum256(seed)
	pub := ed25519.NewKeyFromSeed(sum[:]).Public().(ed25519.PublicKey)
	var id ID
	copy(id[:], pub)
	return id
}

// Parse decodes a hex encoded identity.
func Parse(s string) (ID, error) {
	var id ID
	if len(s) != Size*2 {
		return id, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return id, fmt.Errorf("%w: %v", ErrInvalidID, err)
	}
	return id, nil
}

func (id ID) String() string { return hex.EncodeToString(id[:]) }

func (id ID) Bytes() []byte { return id[:] }

func (id ID) IsZero() bool { return id == Zero }

// IsDerived reports whether id lies off the ed25519 curve, i.e. no private key exists for it.
func (id ID) IsDerived() bool { return !onCurve(id[:]) }

func (id ID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *ID) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Value stores identities as 64-char lowercase hex.
func (id ID) Value() (driver.Value, error) { return id.String(), nil }

func (id *ID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*id = Zero
		return nil
	case string:
		if v == "" {
			*id = Zero
			return nil
		}
		return id.UnmarshalText([]byte(v))
	case []byte:
		if len(v) == 0 {
			*id = Zero
			return nil
		}
		return id.UnmarshalText(v)
	default:
		return fmt.Errorf("%w: cannot scan %T", ErrInvalidID, src)
	}
}

func onCurve(b []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}

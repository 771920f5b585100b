package identity

import (
	"golang.org/x/crypto/blake2b"
)

// Seed prefixes for the addresses the gateway derives.
var (
	SeedCustody    = []byte("custody")
	SeedThrottle   = []byte("throttle")
	SeedAssociated = []byte("associated")
)

// CreateDerived hashes seeds and bump into an address. It fails with ErrOnCurve when the
// result is a valid curve point, since such an address could have a private key.
func CreateDerived(bump byte, seeds ...[]byte) (ID, error) {
	if len(seeds) > maxSeeds {
		return Zero, ErrTooManySeeds
	}

	buf := make([]byte, 0, len(seeds)*maxSeedLen+1+len(derivedDomain))
	for _, s := range seeds {
		if len(s) > maxSeedLen {
			return Zero, ErrSeedTooLong
		}
		buf = append(buf, s...)
	}
	buf = append(buf, bump)
	buf = append(buf, derivedDomain...)

	sum := blake2b.Sum256(buf)
	if onCurve(sum[:]) {
		return Zero, ErrOnCurve
	}
	return ID(sum), nil
}

// FindDerived searches bumps from 255 downward and returns the first off-curve address
// together with the bump that produced it.
func FindDerived(seeds ...[]byte) (ID, byte, error) {
	for b := 255; b >= 0; b-- {
		id, err := CreateDerived(byte(b), seeds...)
		if err == nil {
			return id, byte(b), nil
		}
		if err != ErrOnCurve {
			return Zero, 0, err
		}
	}
	return Zero, 0, ErrNoBump
}

// Custody derives the custody token account of a faucet.
func Custody(faucet ID) (ID, byte, error) {
	return FindDerived(SeedCustody, faucet.Bytes())
}

// CustodyWithBump re-derives the custody address from a stored bump.
func CustodyWithBump(faucet ID, bump byte) (ID, error) {
	return CreateDerived(bump, SeedCustody, faucet.Bytes())
}

// Associated derives the canonical token account of owner for tokenType.
func Associated(owner, tokenType ID) (ID, error) {
	id, _, err := FindDerived(SeedAssociated, owner.Bytes(), tokenType.Bytes())
	return id, err
}

// Throttle derives the throttle record address of a requester. A zero faucet yields a
// key shared by every faucet.
func Throttle(faucet, requester ID) (ID, error) {
	var (
		id  ID
		err error
	)
	if faucet.IsZero() {
		id, _, err = FindDerived(SeedThrottle, requester.Bytes())
	} else {
		id, _, err = FindDerived(SeedThrottle, faucet.Bytes(), requester.Bytes())
	}
	return id, err
}

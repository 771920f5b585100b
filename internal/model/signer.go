package model

import (
	"time"

	"github.com/jmehdipour/faucet-gateway/internal/identity"
)

type SignerStatus string

const (
	SignerActive    SignerStatus = "active"
	SignerSuspended SignerStatus = "suspended"
)

// Signer maps an API key to the identity it authenticates.
type Signer struct {
	APIKey       string       `db:"api_key"`
	Identity     identity.ID  `db:"identity"`
	Name         string       `db:"name"`
	Status       SignerStatus `db:"status"`         // active|suspended
	RateLimitRPS *int         `db:"rate_limit_rps"` // nullable
	CreatedAt    time.Time    `db:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at"`
}

func (s *Signer) Active() bool { return s.Status == SignerActive }

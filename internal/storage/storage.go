package storage

import (
	"context"
	"fmt"
	"time"
)

type ClaimState string

const (
	ClaimState_Reserved  ClaimState = "reserved"
	ClaimState_Committed ClaimState = "committed"
	ClaimState_Released  ClaimState = "released"
)

// ClaimStore is the claim ledger: one record per
// (requesterAddress, targetAccount) pair, insert-or-update semantics.
// TryReserve must be atomic against concurrent callers; it is the only
// synchronization point in the whole claim path.
type ClaimStore interface {
	// TryReserve atomically reserves the claim slot for the identity if no
	// record exists, the previous record is released, or the previous
	// claim's cooldown has fully elapsed (a claim exactly at
	// lastClaimAt+cooldown is eligible). On denial it returns an
	// *AlreadyClaimedError carrying the prior claim time.
	TryReserve(ctx context.Context, requesterAddress string, targetAccount string, now time.Time, cooldown time.Duration) (*Reservation, error)

	// Commit marks the reserved claim as paid out. Idempotent.
	Commit(ctx context.Context, reservation *Reservation) error

	// Release returns the claim slot without charging the cooldown.
	// Idempotent.
	Release(ctx context.Context, reservation *Reservation) error

	GetClaim(ctx context.Context, requesterAddress string, targetAccount string) (*ClaimRecord, error)
}

// Tables
type ClaimRecord struct {
	RequesterAddress string `gorm:"primaryKey"`
	TargetAccount    string `gorm:"primaryKey"`
	State            ClaimState
	LastClaimAt      time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (ClaimRecord) TableName() string {
	return "faucet_claims"
}

// Reservation is the handle returned by a successful TryReserve. The
// ReservedAt timestamp pins Commit/Release to the reservation that
// created it, so a stale handle cannot clobber a newer record.
type Reservation struct {
	RequesterAddress string
	TargetAccount    string
	ReservedAt       time.Time
}

type AlreadyClaimedError struct {
	LastClaimAt time.Time
}

func (e *AlreadyClaimedError) Error() string {
	return fmt.Sprintf("identity already claimed at %s", e.LastClaimAt.Format(time.RFC3339))
}

// NotFoundError is returned by GetClaim when no record exists.
type NotFoundError struct {
	RequesterAddress string
	TargetAccount    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no claim record for (%s, %s)", e.RequesterAddress, e.TargetAccount)
}

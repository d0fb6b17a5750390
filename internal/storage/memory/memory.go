package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/freemoonfaucet/gas-faucet/internal/storage"
)

// InMemoryClaimStore mirrors the postgres claim ledger semantics behind a
// mutex. It only synchronizes within a single process, so it is suitable
// for tests and single-instance development runs, never for a deployment
// with more than one service instance.
type InMemoryClaimStore struct {
	mu      sync.Mutex
	records map[string]*storage.ClaimRecord
}

func NewInMemoryClaimStore() *InMemoryClaimStore {
	return &InMemoryClaimStore{
		records: make(map[string]*storage.ClaimRecord),
	}
}

func key(requesterAddress string, targetAccount string) string {
	return fmt.Sprintf("%s|%s", strings.ToLower(requesterAddress), strings.ToLower(targetAccount))
}

func (s *InMemoryClaimStore) TryReserve(
	ctx context.Context,
	requesterAddress string,
	targetAccount string,
	now time.Time,
	cooldown time.Duration,
) (*storage.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now = now.UTC().Truncate(time.Microsecond)
	k := key(requesterAddress, targetAccount)

	existing, ok := s.records[k]
	if ok {
		eligible := existing.State == storage.ClaimState_Released ||
			!existing.LastClaimAt.Add(cooldown).After(now)
		if !eligible {
			return nil, &storage.AlreadyClaimedError{LastClaimAt: existing.LastClaimAt}
		}
	}

	record := &storage.ClaimRecord{
		RequesterAddress: strings.ToLower(requesterAddress),
		TargetAccount:    strings.ToLower(targetAccount),
		State:            storage.ClaimState_Reserved,
		LastClaimAt:      now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if ok {
		record.CreatedAt = existing.CreatedAt
	}
	s.records[k] = record

	return &storage.Reservation{
		RequesterAddress: record.RequesterAddress,
		TargetAccount:    record.TargetAccount,
		ReservedAt:       now,
	}, nil
}

func (s *InMemoryClaimStore) Commit(ctx context.Context, reservation *storage.Reservation) error {
	return s.transition(reservation, storage.ClaimState_Committed)
}

func (s *InMemoryClaimStore) Release(ctx context.Context, reservation *storage.Reservation) error {
	return s.transition(reservation, storage.ClaimState_Released)
}

func (s *InMemoryClaimStore) transition(reservation *storage.Reservation, to storage.ClaimState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(reservation.RequesterAddress, reservation.TargetAccount)
	existing, ok := s.records[k]
	if !ok || !existing.LastClaimAt.Equal(reservation.ReservedAt) {
		return nil
	}
	if existing.State != storage.ClaimState_Reserved && existing.State != to {
		return nil
	}
	existing.State = to
	existing.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
	return nil
}

func (s *InMemoryClaimStore) GetClaim(ctx context.Context, requesterAddress string, targetAccount string) (*storage.ClaimRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.records[key(requesterAddress, targetAccount)]
	if !ok {
		return nil, &storage.NotFoundError{
			RequesterAddress: requesterAddress,
			TargetAccount:    targetAccount,
		}
	}
	copied := *existing
	return &copied, nil
}

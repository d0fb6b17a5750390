package postgresql

import (
	"context"
	"strings"
	"time"

	"github.com/freemoonfaucet/gas-faucet/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/xerrors"
	"gorm.io/gorm"
)

// PostgresClaimStore implements the claim ledger on a shared postgres
// database. The reserve path is a single conditional upsert, so any
// number of stateless service instances can race on the same identity
// and exactly one wins.
type PostgresClaimStore struct {
	Db     *gorm.DB
	Logger *zap.Logger
}

func NewPostgresClaimStore(db *gorm.DB, l *zap.Logger) *PostgresClaimStore {
	return &PostgresClaimStore{
		Db:     db,
		Logger: l,
	}
}

func normalizeTime(t time.Time) time.Time {
	// Postgres stores microseconds; truncate so the reservation handle
	// compares equal to what comes back out of the table.
	return t.UTC().Truncate(time.Microsecond)
}

func (s *PostgresClaimStore) TryReserve(
	ctx context.Context,
	requesterAddress string,
	targetAccount string,
	now time.Time,
	cooldown time.Duration,
) (*storage.Reservation, error) {
	requesterAddress = strings.ToLower(requesterAddress)
	targetAccount = strings.ToLower(targetAccount)
	now = normalizeTime(now)
	cutoff := now.Add(-cooldown)

	query := `
		INSERT INTO faucet_claims (requester_address, target_account, state, last_claim_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (requester_address, target_account) DO UPDATE
		SET state = EXCLUDED.state,
			last_claim_at = EXCLUDED.last_claim_at,
			updated_at = EXCLUDED.updated_at
		WHERE faucet_claims.state = ?
			OR faucet_claims.last_claim_at <= ?
		RETURNING last_claim_at`

	var reserved []time.Time
	res := s.Db.WithContext(ctx).Raw(query,
		requesterAddress,
		targetAccount,
		storage.ClaimState_Reserved,
		now,
		now,
		now,
		storage.ClaimState_Released,
		cutoff,
	).Scan(&reserved)
	if res.Error != nil {
		return nil, xerrors.Errorf("Failed to reserve claim: %w", res.Error)
	}

	if len(reserved) == 0 {
		// The upsert predicate rejected us. Read the standing record so
		// the caller can report the remaining cooldown; the atomic
		// decision already happened above.
		existing, err := s.GetClaim(ctx, requesterAddress, targetAccount)
		if err != nil {
			return nil, xerrors.Errorf("Failed to load denied claim record: %w", err)
		}
		return nil, &storage.AlreadyClaimedError{LastClaimAt: existing.LastClaimAt}
	}

	return &storage.Reservation{
		RequesterAddress: requesterAddress,
		TargetAccount:    targetAccount,
		ReservedAt:       now,
	}, nil
}

func (s *PostgresClaimStore) Commit(ctx context.Context, reservation *storage.Reservation) error {
	return s.transition(ctx, reservation, storage.ClaimState_Committed)
}

func (s *PostgresClaimStore) Release(ctx context.Context, reservation *storage.Reservation) error {
	return s.transition(ctx, reservation, storage.ClaimState_Released)
}

func (s *PostgresClaimStore) transition(ctx context.Context, reservation *storage.Reservation, to storage.ClaimState) error {
	res := s.Db.WithContext(ctx).
		Model(&storage.ClaimRecord{}).
		Where("requester_address = ? AND target_account = ? AND last_claim_at = ? AND state IN ?",
			reservation.RequesterAddress,
			reservation.TargetAccount,
			reservation.ReservedAt,
			[]storage.ClaimState{storage.ClaimState_Reserved, to},
		).
		Updates(map[string]interface{}{
			"state":      to,
			"updated_at": normalizeTime(time.Now()),
		})
	if res.Error != nil {
		return xerrors.Errorf("Failed to transition claim to %s: %w", to, res.Error)
	}
	if res.RowsAffected == 0 {
		// Either already transitioned (idempotent repeat) or the record
		// was superseded by a newer reservation; both are harmless here.
		s.Logger.Sugar().Debugw("Claim transition matched no rows",
			zap.String("requesterAddress", reservation.RequesterAddress),
			zap.String("targetAccount", reservation.TargetAccount),
			zap.String("state", string(to)),
		)
	}
	return nil
}

func (s *PostgresClaimStore) GetClaim(ctx context.Context, requesterAddress string, targetAccount string) (*storage.ClaimRecord, error) {
	record := &storage.ClaimRecord{}
	res := s.Db.WithContext(ctx).
		Model(&storage.ClaimRecord{}).
		Where("requester_address = ? AND target_account = ?",
			strings.ToLower(requesterAddress),
			strings.ToLower(targetAccount),
		).
		First(&record)
	if res.Error != nil {
		if res.Error == gorm.ErrRecordNotFound {
			return nil, &storage.NotFoundError{
				RequesterAddress: requesterAddress,
				TargetAccount:    targetAccount,
			}
		}
		return nil, xerrors.Errorf("Failed to load claim record: %w", res.Error)
	}
	return record, nil
}

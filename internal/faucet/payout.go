package faucet

import (
	"context"
	"errors"
	"time"

	"github.com/freemoonfaucet/gas-faucet/internal/metrics"
	"github.com/freemoonfaucet/gas-faucet/internal/metrics/metricsTypes"
	"github.com/freemoonfaucet/gas-faucet/internal/storage"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"
)

// PayoutSender submits the faucet payout for a target account and
// returns a transaction reference. Implementations wrap
// ErrPayoutOutcomeUnknown when a submitted transaction's fate cannot be
// confirmed; any other error means nothing landed on chain.
type PayoutSender interface {
	Send(ctx context.Context, to string) (string, error)
}

type ClaimResult struct {
	TxHash  string
	Message string
}

type OrchestratorConfig struct {
	Cooldown      time.Duration
	PayoutTimeout time.Duration
}

// Orchestrator runs one claim end to end: reserve the identity's slot,
// re-check the target account against the chain, pay out, and reconcile
// the ledger with the payout outcome.
type Orchestrator struct {
	config      *OrchestratorConfig
	store       storage.ClaimStore
	checker     *EligibilityChecker
	sender      PayoutSender
	metricsSink *metrics.MetricsSink
	logger      *zap.Logger

	now func() time.Time
}

func NewOrchestrator(
	cfg *OrchestratorConfig,
	store storage.ClaimStore,
	checker *EligibilityChecker,
	sender PayoutSender,
	ms *metrics.MetricsSink,
	l *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		config:      cfg,
		store:       store,
		checker:     checker,
		sender:      sender,
		metricsSink: ms,
		logger:      l,
		now:         time.Now,
	}
}

// ExecuteClaim reserves before anything else: the ledger check is cheap
// and closes the concurrent-duplicate window before any network call is
// made. An account that then turns out to be ineligible gets its
// reservation released, so no cooldown is charged for a rejected claim.
func (o *Orchestrator) ExecuteClaim(ctx context.Context, identity ClaimIdentity) (*ClaimResult, error) {
	now := o.now()

	reservation, err := o.store.TryReserve(ctx, identity.RequesterAddress, identity.TargetAccount, now, o.config.Cooldown)
	if err != nil {
		alreadyClaimed := &storage.AlreadyClaimedError{}
		if errors.As(err, &alreadyClaimed) {
			remaining := alreadyClaimed.LastClaimAt.Add(o.config.Cooldown).Sub(now)
			return nil, newClaimError(KindAlreadyClaimed, msgAlreadyClaimed(remaining), err)
		}
		return nil, newClaimError(KindNetworkQueryFailed, msgNetworkQueryFailed, pkgerrors.Wrap(err, "claim ledger unavailable"))
	}

	snapshot, err := o.checker.CheckEligible(ctx, identity.TargetAccount)
	if err != nil {
		o.release(ctx, reservation)
		return nil, err
	}

	if snapshot.TransactionCount != 0 {
		o.release(ctx, reservation)
		return nil, newClaimError(KindNotUnused, msgNotUnused, nil)
	}
	if snapshot.Balance.Sign() != 0 {
		o.release(ctx, reservation)
		return nil, newClaimError(KindNonZeroBalance, msgNonZeroBalance(snapshot.Balance), nil)
	}

	txHash, err := o.payout(ctx, identity.TargetAccount)
	if err != nil {
		if errors.Is(err, ErrPayoutOutcomeUnknown) {
			// The sender marks only ambiguous submits with this sentinel; a
			// timeout on its pre-submit reads surfaces as an ordinary error
			// and releases below, since nothing reached the chain. Here the
			// transfer may have landed, so keep the slot reserved; clearing
			// the row is a manual reconciliation step.
			o.logger.Sugar().Errorw("Payout outcome unknown, leaving claim reserved",
				zap.String("requesterAddress", identity.RequesterAddress),
				zap.String("targetAccount", identity.TargetAccount),
				zap.Error(err),
			)
			return nil, newClaimError(KindPayoutOutcomeUnknown, msgPayoutOutcomeUnknown, err)
		}

		o.logger.Sugar().Errorw("Payout failed",
			zap.String("targetAccount", identity.TargetAccount),
			zap.Error(err),
		)
		o.release(ctx, reservation)
		return nil, newClaimError(KindPayoutFailed, msgPayoutFailed, err)
	}

	if err := o.store.Commit(ctx, reservation); err != nil {
		// The payout already happened; surface success and leave the
		// reserved row to block further claims until reconciled.
		o.logger.Sugar().Errorw("Failed to commit claim after successful payout",
			zap.String("requesterAddress", identity.RequesterAddress),
			zap.String("targetAccount", identity.TargetAccount),
			zap.String("txHash", txHash),
			zap.Error(err),
		)
	}

	return &ClaimResult{
		TxHash:  txHash,
		Message: successMessage(identity.TargetAccount),
	}, nil
}

func (o *Orchestrator) payout(ctx context.Context, targetAccount string) (string, error) {
	payoutCtx := ctx
	if o.config.PayoutTimeout > 0 {
		var cancel context.CancelFunc
		payoutCtx, cancel = context.WithTimeout(ctx, o.config.PayoutTimeout)
		defer cancel()
	}

	start := time.Now()
	txHash, err := o.sender.Send(payoutCtx, targetAccount)
	o.metricsSink.Timing(metricsTypes.Metric_Timing_PayoutDuration, time.Since(start), nil) //nolint:errcheck

	if err == nil && payoutCtx.Err() != nil {
		// The sender returned a hash but the deadline already fired;
		// treat it as confirmed since we hold a transaction reference.
		o.logger.Sugar().Warnw("Payout returned after its deadline",
			zap.String("targetAccount", targetAccount),
			zap.String("txHash", txHash),
		)
	}
	return txHash, err
}

func (o *Orchestrator) release(ctx context.Context, reservation *storage.Reservation) {
	if err := o.store.Release(ctx, reservation); err != nil {
		// The row stays reserved until the cooldown lapses; unfair to
		// this identity but safe.
		o.logger.Sugar().Errorw("Failed to release reservation",
			zap.String("requesterAddress", reservation.RequesterAddress),
			zap.String("targetAccount", reservation.TargetAccount),
			zap.Error(err),
		)
	}
}

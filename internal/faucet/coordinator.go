package faucet

import (
	"context"
	"fmt"
	"time"

	"github.com/freemoonfaucet/gas-faucet/internal/metrics"
	"github.com/freemoonfaucet/gas-faucet/internal/metrics/metricsTypes"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ClaimRequest carries the raw request inputs the HTTP layer hands over.
type ClaimRequest struct {
	WalletAddress string
	ForwardedFor  string
	RemoteAddr    string
}

// Coordinator is the single entry point for the service layer. It
// sequences identity extraction and the claim orchestration, and
// guarantees that every failure surfaces as a *ClaimError.
type Coordinator struct {
	orchestrator *Orchestrator
	metricsSink  *metrics.MetricsSink
	logger       *zap.Logger
}

func NewCoordinator(orchestrator *Orchestrator, ms *metrics.MetricsSink, l *zap.Logger) *Coordinator {
	return &Coordinator{
		orchestrator: orchestrator,
		metricsSink:  ms,
		logger:       l,
	}
}

func (c *Coordinator) RequestClaim(ctx context.Context, req *ClaimRequest) (*ClaimResult, error) {
	claimId := uuid.New().String()
	start := time.Now()

	c.metricsSink.Incr(metricsTypes.Metric_Incr_ClaimRequest, nil, 1) //nolint:errcheck

	identity, err := ExtractIdentity(req.WalletAddress, req.ForwardedFor, req.RemoteAddr)
	if err != nil {
		return nil, c.reject(claimId, err)
	}

	c.logger.Sugar().Infow("Processing claim",
		zap.String("claimId", claimId),
		zap.String("requesterAddress", identity.RequesterAddress),
		zap.String("targetAccount", identity.TargetAccount),
	)

	result, err := c.orchestrator.ExecuteClaim(ctx, identity)
	c.metricsSink.Timing(metricsTypes.Metric_Timing_ClaimDuration, time.Since(start), nil) //nolint:errcheck
	if err != nil {
		return nil, c.reject(claimId, err)
	}

	c.metricsSink.Incr(metricsTypes.Metric_Incr_ClaimGranted, nil, 1) //nolint:errcheck
	c.logger.Sugar().Infow("Claim granted",
		zap.String("claimId", claimId),
		zap.String("targetAccount", identity.TargetAccount),
		zap.String("txHash", result.TxHash),
	)
	return result, nil
}

func (c *Coordinator) reject(claimId string, err error) *ClaimError {
	claimErr := AsClaimError(err)
	c.metricsSink.Incr(metricsTypes.Metric_Incr_ClaimRejected, []metricsTypes.MetricsLabel{
		{Name: "reason", Value: string(claimErr.Kind)},
	}, 1) //nolint:errcheck
	c.logger.Sugar().Infow("Claim rejected",
		zap.String("claimId", claimId),
		zap.String("kind", string(claimErr.Kind)),
		zap.String("message", claimErr.Message),
	)
	return claimErr
}

func successMessage(targetAccount string) string {
	return fmt.Sprintf("Success. Gas will be sent to %s shortly.", targetAccount)
}

package faucet

import (
	"context"
	"math/big"

	"go.uber.org/zap"
)

// ChainReader is the subset of the node RPC surface the eligibility
// check needs.
type ChainReader interface {
	GetTransactionCount(ctx context.Context, address string) (uint64, error)
	GetBalance(ctx context.Context, address string) (*big.Int, error)
}

// AccountSnapshot is the observed state of a target account, fetched
// fresh for every claim and never cached across requests.
type AccountSnapshot struct {
	Address          string
	TransactionCount uint64
	Balance          *big.Int
}

// Unused reports whether the account has never transacted and holds
// nothing. Balance comparison happens on raw wei; converting to a float
// could round a dust balance down to zero.
func (s *AccountSnapshot) Unused() bool {
	return s.TransactionCount == 0 && s.Balance.Sign() == 0
}

type EligibilityChecker struct {
	chain  ChainReader
	logger *zap.Logger
}

func NewEligibilityChecker(chain ChainReader, l *zap.Logger) *EligibilityChecker {
	return &EligibilityChecker{
		chain:  chain,
		logger: l,
	}
}

// CheckEligible fetches the account's nonce and balance. Both reads must
// succeed; a partial result never feeds an eligibility decision.
func (c *EligibilityChecker) CheckEligible(ctx context.Context, targetAccount string) (*AccountSnapshot, error) {
	txCount, err := c.chain.GetTransactionCount(ctx, targetAccount)
	if err != nil {
		c.logger.Sugar().Errorw("Failed to fetch transaction count",
			zap.String("targetAccount", targetAccount),
			zap.Error(err),
		)
		return nil, newClaimError(KindNetworkQueryFailed, msgNetworkQueryFailed, err)
	}

	balance, err := c.chain.GetBalance(ctx, targetAccount)
	if err != nil {
		c.logger.Sugar().Errorw("Failed to fetch balance",
			zap.String("targetAccount", targetAccount),
			zap.Error(err),
		)
		return nil, newClaimError(KindNetworkQueryFailed, msgNetworkQueryFailed, err)
	}

	return &AccountSnapshot{
		Address:          targetAccount,
		TransactionCount: txCount,
		Balance:          balance,
	}, nil
}

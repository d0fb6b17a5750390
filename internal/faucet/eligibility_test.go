package faucet

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeChainReader struct {
	txCount    uint64
	balance    *big.Int
	txCountErr error
	balanceErr error
}

func (f *fakeChainReader) GetTransactionCount(ctx context.Context, address string) (uint64, error) {
	if f.txCountErr != nil {
		return 0, f.txCountErr
	}
	return f.txCount, nil
}

func (f *fakeChainReader) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	if f.balanceErr != nil {
		return nil, f.balanceErr
	}
	return f.balance, nil
}

func Test_EligibilityChecker(t *testing.T) {
	l := zap.NewNop()

	t.Run("returns a snapshot for an unused account", func(t *testing.T) {
		checker := NewEligibilityChecker(&fakeChainReader{txCount: 0, balance: big.NewInt(0)}, l)

		snapshot, err := checker.CheckEligible(context.Background(), "0xab5801a7d398351b8be11c439e05c5b3259aec9b")
		assert.Nil(t, err)
		assert.True(t, snapshot.Unused())
	})
	t.Run("an account with transactions is not unused regardless of balance", func(t *testing.T) {
		checker := NewEligibilityChecker(&fakeChainReader{txCount: 3, balance: big.NewInt(0)}, l)

		snapshot, err := checker.CheckEligible(context.Background(), "0xab5801a7d398351b8be11c439e05c5b3259aec9b")
		assert.Nil(t, err)
		assert.False(t, snapshot.Unused())
	})
	t.Run("a dust balance below one coin still disqualifies", func(t *testing.T) {
		checker := NewEligibilityChecker(&fakeChainReader{txCount: 0, balance: big.NewInt(1)}, l)

		snapshot, err := checker.CheckEligible(context.Background(), "0xab5801a7d398351b8be11c439e05c5b3259aec9b")
		assert.Nil(t, err)
		assert.False(t, snapshot.Unused())
	})
	t.Run("failed nonce read aborts the check", func(t *testing.T) {
		checker := NewEligibilityChecker(&fakeChainReader{txCountErr: errors.New("boom")}, l)

		_, err := checker.CheckEligible(context.Background(), "0xab5801a7d398351b8be11c439e05c5b3259aec9b")
		assert.NotNil(t, err)
		assert.Equal(t, KindNetworkQueryFailed, AsClaimError(err).Kind)
	})
	t.Run("failed balance read aborts the check", func(t *testing.T) {
		checker := NewEligibilityChecker(&fakeChainReader{balanceErr: errors.New("boom")}, l)

		_, err := checker.CheckEligible(context.Background(), "0xab5801a7d398351b8be11c439e05c5b3259aec9b")
		assert.NotNil(t, err)
		assert.Equal(t, KindNetworkQueryFailed, AsClaimError(err).Kind)
	})
}

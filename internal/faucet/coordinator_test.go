package faucet

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/freemoonfaucet/gas-faucet/internal/metrics"
	"github.com/freemoonfaucet/gas-faucet/internal/storage"
	"github.com/freemoonfaucet/gas-faucet/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"golang.org/x/xerrors"
)

type fakeSender struct {
	txHash string
	err    error
	delay  time.Duration
	calls  atomic.Int32
}

func (f *fakeSender) Send(ctx context.Context, to string) (string, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return "", xerrors.Errorf("send interrupted: %w", ErrPayoutOutcomeUnknown)
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return f.txHash, nil
}

type countingChainReader struct {
	fakeChainReader
	calls atomic.Int32
}

func (c *countingChainReader) GetTransactionCount(ctx context.Context, address string) (uint64, error) {
	c.calls.Add(1)
	return c.fakeChainReader.GetTransactionCount(ctx, address)
}

func newTestMetricsSink(t *testing.T) *metrics.MetricsSink {
	ms, err := metrics.NewMetricsSink(&metrics.MetricsSinkConfig{}, nil)
	if err != nil {
		t.Fatalf("Failed to create metrics sink: %v", err)
	}
	return ms
}

func setupCoordinator(t *testing.T, chain ChainReader, sender PayoutSender) (*Coordinator, *Orchestrator, *memory.InMemoryClaimStore) {
	l := zap.NewNop()
	ms := newTestMetricsSink(t)
	store := memory.NewInMemoryClaimStore()

	orchestrator := NewOrchestrator(&OrchestratorConfig{
		Cooldown:      time.Hour * 24,
		PayoutTimeout: time.Second * 5,
	}, store, NewEligibilityChecker(chain, l), sender, ms, l)

	return NewCoordinator(orchestrator, ms, l), orchestrator, store
}

func unusedAccountChain() *fakeChainReader {
	return &fakeChainReader{txCount: 0, balance: big.NewInt(0)}
}

func claimRequest() *ClaimRequest {
	return &ClaimRequest{
		WalletAddress: "0xAB5801a7D398351b8bE11C439e05C5B3259aeC9B",
		ForwardedFor:  "10.0.0.1",
		RemoteAddr:    "192.0.2.10:43210",
	}
}

func Test_Coordinator_RequestClaim(t *testing.T) {
	t.Run("grants a claim for a fresh identity and unused account", func(t *testing.T) {
		sender := &fakeSender{txHash: "0xdeadbeef"}
		coordinator, _, store := setupCoordinator(t, unusedAccountChain(), sender)

		result, err := coordinator.RequestClaim(context.Background(), claimRequest())
		assert.Nil(t, err)
		assert.Equal(t, "0xdeadbeef", result.TxHash)
		assert.Contains(t, result.Message, "0xab5801a7d398351b8be11c439e05c5b3259aec9b")

		record, err := store.GetClaim(context.Background(), "10.0.0.1", "0xab5801a7d398351b8be11c439e05c5b3259aec9b")
		assert.Nil(t, err)
		assert.Equal(t, storage.ClaimState_Committed, record.State)
	})
	t.Run("denies a repeat claim without re-querying the chain", func(t *testing.T) {
		sender := &fakeSender{txHash: "0xdeadbeef"}
		chain := &countingChainReader{fakeChainReader: fakeChainReader{txCount: 0, balance: big.NewInt(0)}}
		coordinator, _, _ := setupCoordinator(t, chain, sender)

		_, err := coordinator.RequestClaim(context.Background(), claimRequest())
		assert.Nil(t, err)
		callsAfterFirst := chain.calls.Load()

		_, err = coordinator.RequestClaim(context.Background(), claimRequest())
		assert.NotNil(t, err)
		assert.Equal(t, KindAlreadyClaimed, AsClaimError(err).Kind)
		assert.Contains(t, AsClaimError(err).Message, "claimed for an address recently")

		assert.Equal(t, callsAfterFirst, chain.calls.Load())
		assert.Equal(t, int32(1), sender.calls.Load())
	})
	t.Run("rejects a used account and releases the slot", func(t *testing.T) {
		sender := &fakeSender{txHash: "0xdeadbeef"}
		coordinator, _, store := setupCoordinator(t, &fakeChainReader{txCount: 5, balance: big.NewInt(0)}, sender)

		_, err := coordinator.RequestClaim(context.Background(), claimRequest())
		assert.Equal(t, KindNotUnused, AsClaimError(err).Kind)
		assert.Equal(t, int32(0), sender.calls.Load())

		record, getErr := store.GetClaim(context.Background(), "10.0.0.1", "0xab5801a7d398351b8be11c439e05c5b3259aec9b")
		assert.Nil(t, getErr)
		assert.Equal(t, storage.ClaimState_Released, record.State)
	})
	t.Run("rejects a funded account and reports the observed balance", func(t *testing.T) {
		balance, _ := new(big.Int).SetString("1500000000000000000", 10)
		sender := &fakeSender{txHash: "0xdeadbeef"}
		coordinator, _, _ := setupCoordinator(t, &fakeChainReader{txCount: 0, balance: balance}, sender)

		_, err := coordinator.RequestClaim(context.Background(), claimRequest())
		claimErr := AsClaimError(err)
		assert.Equal(t, KindNonZeroBalance, claimErr.Kind)
		assert.Contains(t, claimErr.Message, "1.5")
	})
	t.Run("a failed network read releases the slot for an immediate retry", func(t *testing.T) {
		chain := &fakeChainReader{txCountErr: errors.New("rpc down")}
		sender := &fakeSender{txHash: "0xdeadbeef"}
		coordinator, _, _ := setupCoordinator(t, chain, sender)

		_, err := coordinator.RequestClaim(context.Background(), claimRequest())
		assert.Equal(t, KindNetworkQueryFailed, AsClaimError(err).Kind)

		chain.txCountErr = nil
		chain.balance = big.NewInt(0)

		result, err := coordinator.RequestClaim(context.Background(), claimRequest())
		assert.Nil(t, err)
		assert.Equal(t, "0xdeadbeef", result.TxHash)
	})
	t.Run("a rejected payout releases the slot", func(t *testing.T) {
		sender := &fakeSender{err: errors.New("insufficient faucet funds")}
		coordinator, _, store := setupCoordinator(t, unusedAccountChain(), sender)

		_, err := coordinator.RequestClaim(context.Background(), claimRequest())
		assert.Equal(t, KindPayoutFailed, AsClaimError(err).Kind)

		record, getErr := store.GetClaim(context.Background(), "10.0.0.1", "0xab5801a7d398351b8be11c439e05c5b3259aec9b")
		assert.Nil(t, getErr)
		assert.Equal(t, storage.ClaimState_Released, record.State)
	})
	t.Run("a timeout before anything was submitted releases the slot", func(t *testing.T) {
		sender := &fakeSender{err: xerrors.Errorf("failed to read coordinator balance: %w", context.DeadlineExceeded)}
		coordinator, _, store := setupCoordinator(t, unusedAccountChain(), sender)

		_, err := coordinator.RequestClaim(context.Background(), claimRequest())
		assert.Equal(t, KindPayoutFailed, AsClaimError(err).Kind)

		record, getErr := store.GetClaim(context.Background(), "10.0.0.1", "0xab5801a7d398351b8be11c439e05c5b3259aec9b")
		assert.Nil(t, getErr)
		assert.Equal(t, storage.ClaimState_Released, record.State)

		_, err = coordinator.RequestClaim(context.Background(), claimRequest())
		assert.NotEqual(t, KindAlreadyClaimed, AsClaimError(err).Kind)
	})
	t.Run("an ambiguous payout keeps the slot reserved and blocks retries", func(t *testing.T) {
		sender := &fakeSender{err: xerrors.Errorf("submit timed out: %w", ErrPayoutOutcomeUnknown)}
		coordinator, _, store := setupCoordinator(t, unusedAccountChain(), sender)

		_, err := coordinator.RequestClaim(context.Background(), claimRequest())
		assert.Equal(t, KindPayoutOutcomeUnknown, AsClaimError(err).Kind)

		record, getErr := store.GetClaim(context.Background(), "10.0.0.1", "0xab5801a7d398351b8be11c439e05c5b3259aec9b")
		assert.Nil(t, getErr)
		assert.Equal(t, storage.ClaimState_Reserved, record.State)

		_, err = coordinator.RequestClaim(context.Background(), claimRequest())
		assert.Equal(t, KindAlreadyClaimed, AsClaimError(err).Kind)
		assert.Equal(t, int32(1), sender.calls.Load())
	})
	t.Run("an invalid address never reaches the ledger or the chain", func(t *testing.T) {
		chain := &countingChainReader{}
		sender := &fakeSender{txHash: "0xdeadbeef"}
		coordinator, _, store := setupCoordinator(t, chain, sender)

		req := claimRequest()
		req.WalletAddress = "0x1234"
		_, err := coordinator.RequestClaim(context.Background(), req)
		assert.Equal(t, KindInvalidAddress, AsClaimError(err).Kind)
		assert.Equal(t, int32(0), chain.calls.Load())

		_, getErr := store.GetClaim(context.Background(), "10.0.0.1", "0x1234")
		assert.NotNil(t, getErr)
	})
	t.Run("the identity becomes eligible again once the cooldown elapses", func(t *testing.T) {
		sender := &fakeSender{txHash: "0xdeadbeef"}
		coordinator, orchestrator, _ := setupCoordinator(t, unusedAccountChain(), sender)

		start := time.Now()
		orchestrator.now = func() time.Time { return start }

		_, err := coordinator.RequestClaim(context.Background(), claimRequest())
		assert.Nil(t, err)

		orchestrator.now = func() time.Time { return start.Add(time.Hour * 24) }
		_, err = coordinator.RequestClaim(context.Background(), claimRequest())
		assert.Nil(t, err)
		assert.Equal(t, int32(2), sender.calls.Load())
	})
}

func Test_Coordinator_ConcurrentClaims(t *testing.T) {
	sender := &fakeSender{txHash: "0xdeadbeef", delay: time.Millisecond * 50}
	coordinator, _, _ := setupCoordinator(t, unusedAccountChain(), sender)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := coordinator.RequestClaim(context.Background(), claimRequest())
			results[i] = err
		}(i)
	}
	wg.Wait()

	successes := 0
	alreadyClaimed := 0
	for _, err := range results {
		if err == nil {
			successes++
		} else if AsClaimError(err).Kind == KindAlreadyClaimed {
			alreadyClaimed++
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, alreadyClaimed)
	assert.Equal(t, int32(1), sender.calls.Load())
}

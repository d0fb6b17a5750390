package signer

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	ethereumClient "github.com/freemoonfaucet/gas-faucet/internal/clients/ethereum"
	"github.com/freemoonfaucet/gas-faucet/internal/faucet"
	"github.com/freemoonfaucet/gas-faucet/internal/metrics"
	"github.com/freemoonfaucet/gas-faucet/internal/metrics/metricsTypes"
	"go.uber.org/zap"
	"golang.org/x/xerrors"
)

// ErrInsufficientFunds means the coordinator account cannot cover the
// payout. Nothing was submitted to the chain.
var ErrInsufficientFunds = errors.New("faucet funds too low")

const payoutGasLimit = uint64(40000)

type Signer struct {
	client      *ethereumClient.Client
	logger      *zap.Logger
	metricsSink *metrics.MetricsSink

	privateKey  *ecdsa.PrivateKey
	coordinator common.Address
	chainId     *big.Int
	gasPrice    *big.Int
	payoutWei   *big.Int
}

func NewSigner(
	client *ethereumClient.Client,
	privateKeyHex string,
	chainId int64,
	gasAmount int64,
	gasPriceWei int64,
	ms *metrics.MetricsSink,
	l *zap.Logger,
) (*Signer, error) {
	key, err := crypto.HexToECDSA(stripHexPrefix(privateKeyHex))
	if err != nil {
		return nil, xerrors.Errorf("failed to parse coordinator private key: %w", err)
	}

	coordinator := crypto.PubkeyToAddress(key.PublicKey)
	gasPrice := big.NewInt(gasPriceWei)
	payoutWei := new(big.Int).Mul(big.NewInt(gasAmount), gasPrice)

	l.Sugar().Infow("Initialized payout signer",
		zap.String("coordinator", coordinator.Hex()),
		zap.String("payoutWei", payoutWei.String()),
	)

	return &Signer{
		client:      client,
		logger:      l,
		metricsSink: ms,
		privateKey:  key,
		coordinator: coordinator,
		chainId:     big.NewInt(chainId),
		gasPrice:    gasPrice,
		payoutWei:   payoutWei,
	}, nil
}

func stripHexPrefix(s string) string {
	if len(s) >= 2 && s[0:2] == "0x" {
		return s[2:]
	}
	return s
}

// Send transfers the configured payout amount to the given account and
// returns the transaction hash. Errors wrap ErrInsufficientFunds when the
// faucet cannot cover the payout and faucet.ErrPayoutOutcomeUnknown when the submit
// result is ambiguous; any other error is a confirmed rejection.
func (s *Signer) Send(ctx context.Context, to string) (string, error) {
	balance, err := s.client.GetBalance(ctx, s.coordinator.Hex())
	if err != nil {
		return "", xerrors.Errorf("failed to read coordinator balance: %w", err)
	}
	s.metricsSink.Gauge(metricsTypes.Metric_Gauge_FaucetBalanceWei, toGaugeValue(balance), nil) //nolint:errcheck

	if balance.Cmp(s.payoutWei) < 0 {
		s.logger.Sugar().Errorw("Faucet funds too low",
			zap.String("coordinator", s.coordinator.Hex()),
			zap.String("balanceWei", balance.String()),
			zap.String("payoutWei", s.payoutWei.String()),
		)
		return "", xerrors.Errorf("coordinator balance %s: %w", balance.String(), ErrInsufficientFunds)
	}

	nonce, err := s.client.GetTransactionCount(ctx, s.coordinator.Hex())
	if err != nil {
		return "", xerrors.Errorf("failed to read coordinator nonce: %w", err)
	}

	tx := types.NewTransaction(nonce, common.HexToAddress(to), s.payoutWei, payoutGasLimit, s.gasPrice, nil)
	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(s.chainId), s.privateKey)
	if err != nil {
		return "", xerrors.Errorf("failed to sign payout transaction: %w", err)
	}

	encoded, err := signedTx.MarshalBinary()
	if err != nil {
		return "", xerrors.Errorf("failed to encode payout transaction: %w", err)
	}

	txHash, err := s.client.SendRawTransaction(ctx, hexutil.Encode(encoded))
	if err != nil {
		rpcErr := &ethereumClient.RPCError{}
		if errors.As(err, &rpcErr) {
			// The node saw the transaction and rejected it.
			return "", xerrors.Errorf("payout rejected by node: %w", err)
		}
		return "", xerrors.Errorf("payout submit failed: %v: %w", err, faucet.ErrPayoutOutcomeUnknown)
	}

	return txHash, nil
}

func (s *Signer) CoordinatorAddress() string {
	return s.coordinator.Hex()
}

func toGaugeValue(wei *big.Int) float64 {
	f, _ := new(big.Float).SetInt(wei).Float64()
	return f
}

package ethereum

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
	"golang.org/x/xerrors"
)

type RPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      uint   `json:"id"`
}

// RPCError is an error payload returned by the node itself, as opposed to
// a transport failure. Callers use this distinction to tell a confirmed
// rejection apart from an unknown outcome.
type RPCError struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *uint           `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

var jsonRPCVersion = "2.0"

type Client struct {
	BaseURL string
	Logger  *zap.Logger

	httpClient *http.Client
	requestId  atomic.Uint64
}

func NewClient(baseUrl string, l *zap.Logger) *Client {
	client := &http.Client{
		Timeout: time.Second * 10,
	}

	l.Sugar().Debugw(fmt.Sprintf("Creating new Ethereum client with url '%s'", baseUrl))

	return &Client{
		BaseURL:    baseUrl,
		httpClient: client,
		Logger:     l,
	}
}

func (c *Client) HttpClient() *http.Client {
	return c.httpClient
}

func (c *Client) nextRequestId() uint {
	return uint(c.requestId.Add(1))
}

func (c *Client) newRequest(method string, params any) *RPCRequest {
	return &RPCRequest{
		JSONRPC: jsonRPCVersion,
		Method:  method,
		Params:  params,
		ID:      c.nextRequestId(),
	}
}

// GetTransactionCount returns the latest nonce of the given account.
func (c *Client) GetTransactionCount(ctx context.Context, address string) (uint64, error) {
	res, err := c.Call(ctx, c.newRequest("eth_getTransactionCount", []any{address, "latest"}))
	if err != nil {
		return 0, err
	}

	var encoded string
	if err := json.Unmarshal(res.Result, &encoded); err != nil {
		return 0, xerrors.Errorf("failed to unmarshal transaction count: %w", err)
	}

	count, err := hexutil.DecodeUint64(encoded)
	if err != nil {
		return 0, xerrors.Errorf("failed to decode transaction count '%s': %w", encoded, err)
	}
	return count, nil
}

// GetBalance returns the latest balance of the given account in wei.
func (c *Client) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	res, err := c.Call(ctx, c.newRequest("eth_getBalance", []any{address, "latest"}))
	if err != nil {
		return nil, err
	}

	var encoded string
	if err := json.Unmarshal(res.Result, &encoded); err != nil {
		return nil, xerrors.Errorf("failed to unmarshal balance: %w", err)
	}

	balance, err := hexutil.DecodeBig(encoded)
	if err != nil {
		return nil, xerrors.Errorf("failed to decode balance '%s': %w", encoded, err)
	}
	return balance, nil
}

func (c *Client) GetChainId(ctx context.Context) (*big.Int, error) {
	res, err := c.Call(ctx, c.newRequest("eth_chainId", nil))
	if err != nil {
		return nil, err
	}

	var encoded string
	if err := json.Unmarshal(res.Result, &encoded); err != nil {
		return nil, xerrors.Errorf("failed to unmarshal chain id: %w", err)
	}

	chainId, err := hexutil.DecodeBig(encoded)
	if err != nil {
		return nil, xerrors.Errorf("failed to decode chain id '%s': %w", encoded, err)
	}
	return chainId, nil
}

// SendRawTransaction submits a signed transaction and returns its hash.
// It is never retried: a transport failure leaves the on-chain outcome
// unknown and the caller must treat it as such.
func (c *Client) SendRawTransaction(ctx context.Context, signedTx string) (string, error) {
	res, err := c.call(ctx, c.newRequest("eth_sendRawTransaction", []any{signedTx}))
	if err != nil {
		return "", err
	}

	var txHash string
	if err := json.Unmarshal(res.Result, &txHash); err != nil {
		return "", xerrors.Errorf("failed to unmarshal transaction hash: %w", err)
	}
	return txHash, nil
}

func (c *Client) call(ctx context.Context, rpcRequest *RPCRequest) (*RPCResponse, error) {
	requestBody, err := json.Marshal(rpcRequest)
	if err != nil {
		return nil, xerrors.Errorf("failed to marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(requestBody))
	if err != nil {
		return nil, xerrors.Errorf("failed to make request: %w", err)
	}

	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, xerrors.Errorf("request failed: %w", err)
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, xerrors.Errorf("failed to read body: %w", err)
	}
	if response.StatusCode != http.StatusOK {
		return nil, xerrors.Errorf("received http error code %+v", response.StatusCode)
	}

	destination := &RPCResponse{}
	if err := json.Unmarshal(responseBody, destination); err != nil {
		return nil, xerrors.Errorf("failed to unmarshal response: %w", err)
	}

	if destination.Error != nil {
		return nil, destination.Error
	}

	return destination, nil
}

var readBackoffs = []time.Duration{0, time.Second, time.Second * 3}

// Call issues a read-only request, retrying transport failures with a
// short backoff. Node-level error responses are returned immediately.
func (c *Client) Call(ctx context.Context, rpcRequest *RPCRequest) (*RPCResponse, error) {
	var lastErr error
	for _, backoff := range readBackoffs {
		if backoff > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		res, err := c.call(ctx, rpcRequest)
		if err == nil {
			return res, nil
		}

		rpcErr := &RPCError{}
		if errors.As(err, &rpcErr) {
			return nil, err
		}

		lastErr = err
		c.Logger.Sugar().Errorw("Failed to call", zap.Error(err), zap.String("method", rpcRequest.Method))
	}
	c.Logger.Sugar().Errorw("Exceeded retries for Call", zap.String("method", rpcRequest.Method))
	return nil, xerrors.Errorf("exceeded retries for %s: %w", rpcRequest.Method, lastErr)
}

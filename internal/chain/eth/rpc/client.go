// Package rpc provides a minimal JSON-RPC 2.0 client for Ethereum nodes,
// covering what a contract deployment needs: chain parameters, gas estimation,
// submission and receipts.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mrz1836/ethdeploy/internal/chain"
	ethcrypto "github.com/mrz1836/ethdeploy/internal/chain/eth/crypto"
	ethtypes "github.com/mrz1836/ethdeploy/internal/chain/eth/types"
	"github.com/mrz1836/ethdeploy/internal/metrics"
	deployerr "github.com/mrz1836/ethdeploy/pkg/errors"
)

const (
	// DefaultTimeout bounds a single HTTP round trip.
	DefaultTimeout = 30 * time.Second

	// maxResponseBytes caps the body read from a node.
	maxResponseBytes = 16 << 20
)

// JSON-RPC error codes that signal a node-side throttle rather than a bad request.
const (
	codeLimitExceeded     = -32005
	codeResourceUnavail   = -32002
	codeInternalTransient = -32603
)

// Logger is the logging interface used by the client.
type Logger interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

// ClientOptions contains optional configuration for the RPC client.
type ClientOptions struct {
	// Timeout bounds each HTTP round trip. Zero means DefaultTimeout.
	Timeout time.Duration
	// Transport overrides the default HTTP transport.
	Transport http.RoundTripper
	// RateLimiter throttles calls per endpoint. Nil disables limiting.
	RateLimiter *chain.RateLimiter
	// Retry configures retries of transient failures. Nil means chain.DefaultRetryConfig.
	Retry *chain.RetryConfig
	// Logger receives request traces. Nil disables logging.
	Logger Logger
	// Metrics records call counts and latency. Nil means metrics.Global.
	Metrics *metrics.Metrics
}

// Client is a minimal Ethereum JSON-RPC client. It is safe for concurrent use.
type Client struct {
	url        string
	endpoint   string
	httpClient *http.Client
	limiter    *chain.RateLimiter
	retry      chain.RetryConfig
	logger     Logger
	metrics    *metrics.Metrics
	idCounter  atomic.Uint64
}

// NewClient creates a new RPC client with default options.
func NewClient(url string) *Client {
	return NewClientWithOptions(url, nil)
}

// NewClientWithOptions creates a new RPC client.
func NewClientWithOptions(url string, opts *ClientOptions) *Client {
	if opts == nil {
		opts = &ClientOptions{}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	retry := chain.DefaultRetryConfig()
	if opts.Retry != nil {
		retry = *opts.Retry
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.Global
	}

	httpClient := &http.Client{Timeout: timeout}
	if opts.Transport != nil {
		httpClient.Transport = opts.Transport
	}

	return &Client{
		url:        url,
		endpoint:   chain.EndpointKey(url),
		httpClient: httpClient,
		limiter:    opts.RateLimiter,
		retry:      retry,
		logger:     opts.Logger,
		metrics:    m,
	}
}

// request represents a JSON-RPC 2.0 request.
type request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      uint64 `json:"id"`
}

// response represents a JSON-RPC 2.0 response.
type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC error object.
type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

func (e *rpcError) transient() bool {
	switch e.Code {
	case codeLimitExceeded, codeResourceUnavail:
		return true
	case codeInternalTransient:
		msg := strings.ToLower(e.Message)
		return strings.Contains(msg, "timeout") || strings.Contains(msg, "try again")
	default:
		return false
	}
}

// Call performs a JSON-RPC call, retrying transient failures.
func (c *Client) Call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	if params == nil {
		params = []any{}
	}

	attempt := 0
	return chain.RetryWithConfig(ctx, c.retry, func() (json.RawMessage, error) {
		attempt++
		if attempt > 1 {
			c.metrics.RecordRPCRetry()
			c.debug("rpc %s: retry attempt %d", method, attempt)
		}
		return c.call(ctx, method, params)
	})
}

// call performs a single round trip.
func (c *Client) call(ctx context.Context, method string, params []any) (result json.RawMessage, err error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, c.endpoint); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	defer func() {
		c.metrics.RecordRPCCall(time.Since(start), err)
		if err != nil {
			c.logError("rpc %s failed: %v", method, err)
		}
	}()

	req := request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.idCounter.Add(1),
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, deployerr.Wrap(err, "marshaling %s request", method)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, deployerr.WithDetails(deployerr.WithCause(deployerr.ErrInvalidInput, err), map[string]string{
			"rpc": c.endpoint,
		})
	}
	httpReq.Header.Set("Content-Type", "application/json")

	c.debug("rpc %s id=%d -> %s", method, req.ID, c.endpoint)
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, deployerr.WithDetails(chain.WrapRetryable(err), map[string]string{
			"method":   method,
			"endpoint": c.endpoint,
		})
	}
	// Body.Close error is intentionally ignored as it only fails if the
	// connection is already broken, and there's no recovery action.
	defer func() { _ = httpResp.Body.Close() }()

	if err := checkStatus(httpResp, method); err != nil {
		return nil, err
	}

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, deployerr.WithDetails(chain.WrapRetryable(err), map[string]string{
			"method": method,
			"reason": "reading response body",
		})
	}

	var resp response
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, deployerr.WithDetails(deployerr.WithCause(deployerr.ErrRPCError, err), map[string]string{
			"method": method,
			"reason": "response is not JSON-RPC",
		})
	}

	if resp.Error != nil {
		base := deployerr.ErrRPCError
		if resp.Error.transient() {
			base = deployerr.ErrNetworkTransient
		}
		return nil, deployerr.WithDetails(deployerr.WithCause(base, resp.Error), map[string]string{
			"method":  method,
			"code":    strconv.Itoa(resp.Error.Code),
			"message": resp.Error.Message,
		})
	}

	return resp.Result, nil
}

// checkStatus maps HTTP failures: throttling and server errors are transient,
// other non-2xx statuses are permanent.
func checkStatus(resp *http.Response, method string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	details := map[string]string{
		"method": method,
		"status": strconv.Itoa(resp.StatusCode),
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		if wait := chain.ParseRetryAfter(resp.Header.Get("Retry-After")); wait > 0 {
			details["retry_after"] = wait.String()
		}
		return deployerr.WithDetails(deployerr.ErrNetworkTransient, details)
	}
	return deployerr.WithDetails(deployerr.ErrRPCError, details)
}

// ChainID returns the chain ID.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	return c.callBigInt(ctx, "eth_chainId")
}

// GetBalance returns the balance of an address in wei at the given block tag.
func (c *Client) GetBalance(ctx context.Context, address ethtypes.Address, block string) (*big.Int, error) {
	if block == "" {
		block = "latest"
	}
	return c.callBigInt(ctx, "eth_getBalance", address.Hex(), block)
}

// GetTransactionCount returns the nonce for an address at the given block tag.
// An empty tag means "pending".
func (c *Client) GetTransactionCount(ctx context.Context, address ethtypes.Address, block string) (uint64, error) {
	if block == "" {
		block = "pending"
	}
	return c.callUint64(ctx, "eth_getTransactionCount", address.Hex(), block)
}

// GasPrice returns the current gas price in wei.
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	return c.callBigInt(ctx, "eth_gasPrice")
}

// CallMsg represents the parameters for eth_call and eth_estimateGas.
// A nil To describes a contract creation.
type CallMsg struct {
	From     *ethtypes.Address
	To       *ethtypes.Address
	Gas      uint64
	GasPrice *big.Int
	Value    *big.Int
	Data     []byte
}

// MarshalJSON implements custom JSON marshaling for CallMsg.
func (m CallMsg) MarshalJSON() ([]byte, error) {
	type callMsgJSON struct {
		From     string `json:"from,omitempty"`
		To       string `json:"to,omitempty"`
		Gas      string `json:"gas,omitempty"`
		GasPrice string `json:"gasPrice,omitempty"`
		Value    string `json:"value,omitempty"`
		Data     string `json:"data,omitempty"`
	}

	var msg callMsgJSON
	if m.From != nil {
		msg.From = m.From.Hex()
	}
	if m.To != nil {
		msg.To = m.To.Hex()
	}
	if m.Gas > 0 {
		msg.Gas = "0x" + strconv.FormatUint(m.Gas, 16)
	}
	if m.GasPrice != nil && m.GasPrice.Sign() > 0 {
		msg.GasPrice = "0x" + m.GasPrice.Text(16)
	}
	if m.Value != nil && m.Value.Sign() > 0 {
		msg.Value = "0x" + m.Value.Text(16)
	}
	if len(m.Data) > 0 {
		msg.Data = ethtypes.EncodeHex(m.Data)
	}

	return json.Marshal(msg)
}

// EthCall performs an eth_call.
func (c *Client) EthCall(ctx context.Context, msg CallMsg, block string) ([]byte, error) {
	if block == "" {
		block = "latest"
	}
	return c.callBytes(ctx, "eth_call", msg, block)
}

// EstimateGas estimates the gas needed for a transaction.
func (c *Client) EstimateGas(ctx context.Context, msg CallMsg) (uint64, error) {
	return c.callUint64(ctx, "eth_estimateGas", msg)
}

// GetCode returns the runtime code at an address.
func (c *Client) GetCode(ctx context.Context, address ethtypes.Address, block string) ([]byte, error) {
	if block == "" {
		block = "latest"
	}
	return c.callBytes(ctx, "eth_getCode", address.Hex(), block)
}

// SendRawTransaction submits a signed transaction and returns its hash.
// A node that already holds the transaction is treated as success.
func (c *Client) SendRawTransaction(ctx context.Context, signedTx []byte) (ethcrypto.Hash, error) {
	result, err := c.Call(ctx, "eth_sendRawTransaction", ethtypes.EncodeHex(signedTx))
	if err != nil {
		if isAlreadyKnown(err) {
			c.debug("rpc eth_sendRawTransaction: node already knows the transaction")
			return ethcrypto.Keccak256Hash(signedTx), nil
		}
		if deployerr.Is(err, deployerr.ErrRPCError) {
			return ethcrypto.Hash{}, deployerr.WithCause(deployerr.ErrTxRejected, err)
		}
		return ethcrypto.Hash{}, err
	}

	var txHash ethcrypto.Hash
	if err := json.Unmarshal(result, &txHash); err != nil {
		return ethcrypto.Hash{}, invalidResult("eth_sendRawTransaction", err)
	}
	return txHash, nil
}

func isAlreadyKnown(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already known") ||
		strings.Contains(msg, "known transaction") ||
		strings.Contains(msg, "already imported")
}

func (c *Client) callBigInt(ctx context.Context, method string, params ...any) (*big.Int, error) {
	result, err := c.Call(ctx, method, params...)
	if err != nil {
		return nil, err
	}
	var hexVal string
	if err := json.Unmarshal(result, &hexVal); err != nil {
		return nil, invalidResult(method, err)
	}
	n, err := parseHexBigInt(hexVal)
	if err != nil {
		return nil, invalidResult(method, err)
	}
	return n, nil
}

func (c *Client) callUint64(ctx context.Context, method string, params ...any) (uint64, error) {
	n, err := c.callBigInt(ctx, method, params...)
	if err != nil {
		return 0, err
	}
	if !n.IsUint64() {
		return 0, deployerr.WithDetails(deployerr.ErrRPCError, map[string]string{
			"method": method,
			"reason": "quantity exceeds 64 bits",
		})
	}
	return n.Uint64(), nil
}

func (c *Client) callBytes(ctx context.Context, method string, params ...any) ([]byte, error) {
	result, err := c.Call(ctx, method, params...)
	if err != nil {
		return nil, err
	}
	var hexVal string
	if err := json.Unmarshal(result, &hexVal); err != nil {
		return nil, invalidResult(method, err)
	}
	b, err := ethtypes.DecodeHex(hexVal)
	if err != nil {
		return nil, invalidResult(method, err)
	}
	return b, nil
}

func invalidResult(method string, cause error) error {
	return deployerr.WithDetails(deployerr.WithCause(deployerr.ErrRPCError, cause), map[string]string{
		"method": method,
		"reason": "unexpected result",
	})
}

// parseHexBigInt parses a 0x-prefixed hex quantity.
func parseHexBigInt(s string) (*big.Int, error) {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return big.NewInt(0), nil
	}

	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, deployerr.WithDetails(deployerr.ErrInvalidHex, map[string]string{
			"quantity": s,
		})
	}
	return n, nil
}

func (c *Client) debug(format string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(format, args...)
	}
}

func (c *Client) logError(format string, args ...any) {
	if c.logger != nil {
		c.logger.Error(format, args...)
	}
}

package rpc

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/ethdeploy/internal/chain"
	ethcrypto "github.com/mrz1836/ethdeploy/internal/chain/eth/crypto"
	ethtypes "github.com/mrz1836/ethdeploy/internal/chain/eth/types"
	"github.com/mrz1836/ethdeploy/internal/metrics"
	deployerr "github.com/mrz1836/ethdeploy/pkg/errors"
)

const (
	testAddressHex = "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"
	testTxHash     = "0xd8f64a42b57be0d565f385378db2f6bf324ce14a594afc05de90436e9ce01f60"
)

// rpcCall is a decoded JSON-RPC request as seen by the test server.
type rpcCall struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
	ID     uint64            `json:"id"`
}

// handlerFunc answers one call with either a result or an error object.
type handlerFunc func(t *testing.T, call rpcCall) (result any, rpcErr map[string]any)

func newRPCServer(t *testing.T, handle handlerFunc) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var call rpcCall
		err := json.NewDecoder(r.Body).Decode(&call)
		assert.NoError(t, err)

		result, rpcErr := handle(t, call)
		resp := map[string]any{"jsonrpc": "2.0", "id": call.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		assert.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestClient(url string) *Client {
	retry := chain.RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	return NewClientWithOptions(url, &ClientOptions{
		Timeout: 5 * time.Second,
		Retry:   &retry,
		Metrics: &metrics.Metrics{},
	})
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func param(t *testing.T, call rpcCall, i int) string {
	t.Helper()
	require.Greater(t, len(call.Params), i)
	var s string
	require.NoError(t, json.Unmarshal(call.Params[i], &s))
	return s
}

func TestQuantityMethods(t *testing.T) {
	t.Parallel()

	addr := ethtypes.MustHexToAddress(testAddressHex)

	tests := []struct {
		name   string
		method string
		result string
		call   func(ctx context.Context, c *Client) (*big.Int, error)
		check  func(t *testing.T, call rpcCall)
		want   *big.Int
	}{
		{
			name:   "chain id",
			method: "eth_chainId",
			result: "0x539",
			call:   func(ctx context.Context, c *Client) (*big.Int, error) { return c.ChainID(ctx) },
			want:   big.NewInt(1337),
		},
		{
			name:   "gas price",
			method: "eth_gasPrice",
			result: "0x4a817c800",
			call:   func(ctx context.Context, c *Client) (*big.Int, error) { return c.GasPrice(ctx) },
			want:   big.NewInt(20000000000),
		},
		{
			name:   "balance",
			method: "eth_getBalance",
			result: "0xde0b6b3a7640000",
			call: func(ctx context.Context, c *Client) (*big.Int, error) {
				return c.GetBalance(ctx, addr, "")
			},
			check: func(t *testing.T, call rpcCall) {
				assert.Equal(t, addr.Hex(), param(t, call, 0))
				assert.Equal(t, "latest", param(t, call, 1))
			},
			want: big.NewInt(1000000000000000000),
		},
		{
			name:   "transaction count",
			method: "eth_getTransactionCount",
			result: "0xa",
			call: func(ctx context.Context, c *Client) (*big.Int, error) {
				n, err := c.GetTransactionCount(ctx, addr, "")
				return new(big.Int).SetUint64(n), err
			},
			check: func(t *testing.T, call rpcCall) {
				assert.Equal(t, "pending", param(t, call, 1))
			},
			want: big.NewInt(10),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server := newRPCServer(t, func(t *testing.T, call rpcCall) (any, map[string]any) {
				assert.Equal(t, tc.method, call.Method)
				if tc.check != nil {
					tc.check(t, call)
				}
				return tc.result, nil
			})

			got, err := tc.call(testContext(t), newTestClient(server.URL))
			require.NoError(t, err)
			assert.Equal(t, 0, tc.want.Cmp(got), "got %s", got)
		})
	}
}

func TestEstimateGas_contractCreation(t *testing.T) {
	t.Parallel()

	from := ethtypes.MustHexToAddress(testAddressHex)
	server := newRPCServer(t, func(t *testing.T, call rpcCall) (any, map[string]any) {
		assert.Equal(t, "eth_estimateGas", call.Method)

		var msg map[string]string
		require.NoError(t, json.Unmarshal(call.Params[0], &msg))
		assert.NotContains(t, msg, "to")
		assert.Equal(t, from.Hex(), msg["from"])
		assert.Equal(t, "0x6080", msg["data"])
		return "0x1d4c0", nil
	})

	gas, err := newTestClient(server.URL).EstimateGas(testContext(t), CallMsg{From: &from, Data: []byte{0x60, 0x80}})
	require.NoError(t, err)
	assert.Equal(t, uint64(120000), gas)
}

func TestCallMsg_MarshalJSON(t *testing.T) {
	t.Parallel()

	to := ethtypes.MustHexToAddress(testAddressHex)
	data, err := json.Marshal(CallMsg{
		To:       &to,
		Gas:      21000,
		GasPrice: big.NewInt(1000000000),
		Value:    big.NewInt(255),
		Data:     []byte{0xde, 0xad},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"to": "0x742d35cc6634c0532925a3b844bc454e4438f44e",
		"gas": "0x5208",
		"gasPrice": "0x3b9aca00",
		"value": "0xff",
		"data": "0xdead"
	}`, string(data))

	empty, err := json.Marshal(CallMsg{Value: big.NewInt(0)})
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(empty))
}

func TestGetCodeAndEthCall(t *testing.T) {
	t.Parallel()

	server := newRPCServer(t, func(t *testing.T, call rpcCall) (any, map[string]any) {
		switch call.Method {
		case "eth_getCode":
			return "0x6080604052", nil
		case "eth_call":
			return "0x", nil
		default:
			t.Errorf("unexpected method %s", call.Method)
			return nil, nil
		}
	})
	client := newTestClient(server.URL)
	addr := ethtypes.MustHexToAddress(testAddressHex)

	code, err := client.GetCode(testContext(t), addr, "")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x60, 0x80, 0x60, 0x40, 0x52}, code)

	out, err := client.EthCall(testContext(t), CallMsg{To: &addr}, "")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestSendRawTransaction(t *testing.T) {
	t.Parallel()

	raw := []byte{0xf8, 0x01, 0x02}

	t.Run("accepted", func(t *testing.T) {
		t.Parallel()
		server := newRPCServer(t, func(t *testing.T, call rpcCall) (any, map[string]any) {
			assert.Equal(t, "eth_sendRawTransaction", call.Method)
			assert.Equal(t, "0xf80102", param(t, call, 0))
			return testTxHash, nil
		})

		hash, err := newTestClient(server.URL).SendRawTransaction(testContext(t), raw)
		require.NoError(t, err)
		assert.Equal(t, testTxHash, hash.Hex())
	})

	t.Run("already known is success", func(t *testing.T) {
		t.Parallel()
		server := newRPCServer(t, func(_ *testing.T, _ rpcCall) (any, map[string]any) {
			return nil, map[string]any{"code": -32000, "message": "already known"}
		})

		hash, err := newTestClient(server.URL).SendRawTransaction(testContext(t), raw)
		require.NoError(t, err)
		assert.Equal(t, ethcrypto.Keccak256Hash(raw), hash)
	})

	t.Run("rejected", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		server := newRPCServer(t, func(_ *testing.T, _ rpcCall) (any, map[string]any) {
			calls.Add(1)
			return nil, map[string]any{"code": -32000, "message": "nonce too low"}
		})

		_, err := newTestClient(server.URL).SendRawTransaction(testContext(t), raw)
		require.ErrorIs(t, err, deployerr.ErrTxRejected)
		assert.Contains(t, err.Error(), "nonce too low")
		assert.Equal(t, int32(1), calls.Load(), "permanent errors are not retried")
	})
}

func TestCall_transientErrorsAreRetried(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		fail func(w http.ResponseWriter)
	}{
		{
			name: "429",
			fail: func(w http.ResponseWriter) {
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
			},
		},
		{
			name: "503",
			fail: func(w http.ResponseWriter) { w.WriteHeader(http.StatusServiceUnavailable) },
		},
		{
			name: "limit exceeded",
			fail: func(w http.ResponseWriter) {
				_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32005,"message":"limit exceeded"}}`))
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				if calls.Add(1) == 1 {
					tc.fail(w)
					return
				}
				_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":2,"result":"0x1"}`))
			}))
			t.Cleanup(server.Close)

			m := &metrics.Metrics{}
			retry := chain.RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
			client := NewClientWithOptions(server.URL, &ClientOptions{Retry: &retry, Metrics: m})

			id, err := client.ChainID(testContext(t))
			require.NoError(t, err)
			assert.Equal(t, big.NewInt(1), id)
			assert.Equal(t, int32(2), calls.Load())

			snap := m.Snapshot()
			assert.Equal(t, int64(2), snap.RPCCallsTotal)
			assert.Equal(t, int64(1), snap.RPCErrorsTotal)
			assert.Equal(t, int64(1), snap.RPCRetriesTotal)
		})
	}
}

func TestCall_transientExhausted(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	_, err := newTestClient(server.URL).GasPrice(testContext(t))
	require.ErrorIs(t, err, deployerr.ErrNetworkTransient)
	assert.True(t, deployerr.IsNetworkTransient(err))
	assert.Equal(t, int32(3), calls.Load())
}

func TestCall_permanentErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{
			name:    "bad request",
			handler: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusBadRequest) },
			wantErr: deployerr.ErrRPCError,
		},
		{
			name: "not json",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("<html>oops</html>"))
			},
			wantErr: deployerr.ErrRPCError,
		},
		{
			name: "execution reverted",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":3,"message":"execution reverted"}}`))
			},
			wantErr: deployerr.ErrRPCError,
		},
		{
			name: "bad quantity",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"0xzz"}`))
			},
			wantErr: deployerr.ErrRPCError,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				tc.handler(w, r)
			}))
			t.Cleanup(server.Close)

			_, err := newTestClient(server.URL).GasPrice(testContext(t))
			require.ErrorIs(t, err, tc.wantErr)
			assert.False(t, deployerr.IsNetworkTransient(err))
			assert.Equal(t, int32(1), calls.Load())
		})
	}
}

func TestCall_connectionRefusedIsTransient(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	retry := chain.NoRetry()
	client := NewClientWithOptions(url, &ClientOptions{Retry: &retry, Metrics: &metrics.Metrics{}})
	_, err := client.ChainID(testContext(t))
	require.ErrorIs(t, err, deployerr.ErrNetworkTransient)
}

func TestCall_rateLimited(t *testing.T) {
	t.Parallel()

	server := newRPCServer(t, func(_ *testing.T, _ rpcCall) (any, map[string]any) {
		return "0x1", nil
	})

	limiter := chain.NewRateLimiter(1000, 1)
	client := NewClientWithOptions(server.URL, &ClientOptions{RateLimiter: limiter, Metrics: &metrics.Metrics{}})

	for i := 0; i < 3; i++ {
		_, err := client.ChainID(testContext(t))
		require.NoError(t, err)
	}
}

func TestCall_canceledContext(t *testing.T) {
	t.Parallel()

	server := newRPCServer(t, func(_ *testing.T, _ rpcCall) (any, map[string]any) {
		return "0x1", nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(server.URL).ChainID(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestCall_logsErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	t.Cleanup(server.Close)

	logger := &recordingLogger{}
	client := NewClientWithOptions(server.URL, &ClientOptions{Logger: logger, Metrics: &metrics.Metrics{}})
	_, err := client.ChainID(testContext(t))
	require.Error(t, err)

	assert.NotEmpty(t, logger.debugs.Load())
	assert.Equal(t, int32(1), logger.errors.Load())
}

type recordingLogger struct {
	debugs atomic.Int32
	errors atomic.Int32
}

func (l *recordingLogger) Debug(string, ...any) { l.debugs.Add(1) }
func (l *recordingLogger) Error(string, ...any) { l.errors.Add(1) }

func TestParseHexBigInt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"0x0", 0, false},
		{"0x", 0, false},
		{"0x1a", 26, false},
		{"ff", 255, false},
		{"0xzz", 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			t.Parallel()
			n, err := parseHexBigInt(tc.input)
			if tc.wantErr {
				require.ErrorIs(t, err, deployerr.ErrInvalidHex)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, n.Int64())
		})
	}
}

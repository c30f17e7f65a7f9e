package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ethtypes "github.com/mrz1836/ethdeploy/internal/chain/eth/types"
	"github.com/mrz1836/ethdeploy/internal/config"
)

const (
	// hardhatKey is the first public development account of local node tooling. // gitleaks:allow
	hardhatKey     = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	hardhatAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

	// hardhatFirstContract and hardhatSecondContract are the CREATE addresses
	// of hardhatAddress at nonces 0 and 1.
	hardhatFirstContract  = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	hardhatSecondContract = "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"

	// tinyContract returns a single zero byte as runtime code.
	tinyContract = "0x6001600c60003960016000f300"
	tinyRuntime  = "0x00"
)

// setupCLI isolates the CLI from the user's environment: a temp home with a
// config tuned for fast receipt polling, logging off and the development key.
func setupCLI(t *testing.T) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv(config.EnvHome, home)
	t.Setenv(config.EnvLogLevel, "off")
	t.Setenv(config.EnvPrivateKey, hardhatKey)
	t.Setenv(config.EnvMnemonic, "")
	t.Setenv(config.EnvPassphrase, "")
	t.Setenv(config.EnvMnemonicPassphrase, "")
	t.Setenv(config.EnvKeySource, "")
	t.Setenv(config.EnvKeyFile, filepath.Join(home, "deployer.key.age"))
	t.Setenv(config.EnvRPC, "")
	t.Setenv(config.EnvChainID, "")
	t.Setenv(config.EnvOutputFormat, "")
	t.Setenv(config.EnvNonce, "")

	c := config.Defaults()
	c.Home = home
	c.Logging.File = ""
	c.Receipt.PollInterval = 5 * time.Millisecond
	c.Receipt.Timeout = 2 * time.Second
	c.Network.RateLimit = 0
	require.NoError(t, config.Save(c, config.Path(home)))
	return home
}

// executeCommand runs the root command with args and returns stdout and stderr.
// Flags are reset first because cobra keeps their values between runs.
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	resetFlags(rootCmd)
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	_, err := rootCmd.ExecuteC()
	return stdout.String(), stderr.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

// decodeJSON unmarshals command output into v.
func decodeJSON(t *testing.T, out string, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(out), v), out)
}

// withMockPrompts replaces the terminal prompts and restores them on cleanup.
func withMockPrompts(t *testing.T, password string) {
	t.Helper()
	origPW, origNewPW := promptPasswordFn, promptNewPasswordFn
	t.Cleanup(func() {
		promptPasswordFn = origPW
		promptNewPasswordFn = origNewPW
	})
	promptPasswordFn = func(_ string) ([]byte, error) {
		return []byte(password), nil
	}
	promptNewPasswordFn = func() ([]byte, error) {
		return []byte(password), nil
	}
}

// devNode is a JSON-RPC node that mines every transaction immediately.
type devNode struct {
	mu       sync.Mutex
	chainID  uint64
	gasPrice uint64
	code     string
	nonces   map[ethtypes.Address]uint64
	receipts map[string]map[string]any
	methods  []string
}

func newDevNode(t *testing.T) (*devNode, string) {
	t.Helper()

	n := &devNode{
		chainID:  31337,
		gasPrice: 1_000_000_000,
		code:     tinyRuntime,
		nonces:   make(map[ethtypes.Address]uint64),
		receipts: make(map[string]map[string]any),
	}
	srv := httptest.NewServer(n.handler(t))
	t.Cleanup(srv.Close)
	return n, srv.URL
}

func (n *devNode) calls(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, m := range n.methods {
		if m == method {
			count++
		}
	}
	return count
}

func (n *devNode) handler(t *testing.T) http.Handler {
	quantity := func(v uint64) string { return fmt.Sprintf("0x%x", v) }

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var call struct {
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
			ID     json.RawMessage   `json:"id"`
		}
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&call)) {
			return
		}

		n.mu.Lock()
		defer n.mu.Unlock()
		n.methods = append(n.methods, call.Method)

		var result any
		var rpcErr string
		switch call.Method {
		case "eth_chainId":
			result = quantity(n.chainID)
		case "eth_gasPrice":
			result = quantity(n.gasPrice)
		case "eth_estimateGas":
			result = quantity(90_000)
		case "eth_getTransactionCount":
			var addr string
			require.NoError(t, json.Unmarshal(call.Params[0], &addr))
			a, err := ethtypes.HexToAddress(strings.ToLower(addr))
			require.NoError(t, err)
			result = quantity(n.nonces[a])
		case "eth_sendRawTransaction":
			var rawHex string
			require.NoError(t, json.Unmarshal(call.Params[0], &rawHex))
			raw, err := ethtypes.DecodeHex(rawHex)
			require.NoError(t, err)
			stx, err := ethtypes.DecodeSignedTx(raw)
			require.NoError(t, err)
			sender, err := stx.Sender()
			require.NoError(t, err)
			nonce := stx.Unsigned().Nonce()
			if nonce != n.nonces[sender] {
				rpcErr = "nonce too low"
				break
			}
			n.nonces[sender]++
			contract := ethtypes.CreateAddress(sender, nonce)
			n.receipts[stx.HashHex()] = map[string]any{
				"transactionHash": stx.HashHex(),
				"blockNumber":     quantity(uint64(len(n.receipts) + 1)),
				"from":            sender.Hex(),
				"contractAddress": contract.Hex(),
				"gasUsed":         quantity(stx.Unsigned().Gas() - 1000),
				"status":          "0x1",
			}
			result = stx.HashHex()
		case "eth_getTransactionReceipt":
			var hash string
			require.NoError(t, json.Unmarshal(call.Params[0], &hash))
			if receipt, ok := n.receipts[strings.ToLower(hash)]; ok {
				result = receipt
			}
		case "eth_getCode":
			result = n.code
		default:
			rpcErr = "method not found"
		}

		resp := map[string]any{"jsonrpc": "2.0", "id": call.ID, "result": result}
		if rpcErr != "" {
			resp = map[string]any{"jsonrpc": "2.0", "id": call.ID, "error": map[string]any{"code": -32000, "message": rpcErr}}
		}
		assert.NoError(t, json.NewEncoder(w).Encode(resp))
	})
}

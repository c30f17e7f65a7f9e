package cli

import (
	"context"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/ethdeploy/internal/chain"
	ethcrypto "github.com/mrz1836/ethdeploy/internal/chain/eth/crypto"
	"github.com/mrz1836/ethdeploy/internal/chain/eth/rpc"
	ethtypes "github.com/mrz1836/ethdeploy/internal/chain/eth/types"
	"github.com/mrz1836/ethdeploy/internal/config"
	"github.com/mrz1836/ethdeploy/internal/keys"
	"github.com/mrz1836/ethdeploy/internal/metrics"
	"github.com/mrz1836/ethdeploy/internal/output"
	"github.com/mrz1836/ethdeploy/internal/service/deploy"
	deployerr "github.com/mrz1836/ethdeploy/pkg/errors"
)

// deployFlags holds the deploy command flags.
type deployFlags struct {
	keyFlags

	bytecode       string
	manifest       string
	types          []string
	args           []string
	value          string
	nonce          string
	gasPrice       string
	gas            string
	chainID        string
	runtime        string
	verifyCode     bool
	dryRun         bool
	rpcURL         string
	nonceStrategy  string
	crossCheck     bool
	receiptTimeout time.Duration
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var deployOpts deployFlags

// deployCmd deploys contracts to a node.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy a contract and verify its address",
	Long: `Deploy a contract to the configured JSON-RPC node.

Missing transaction fields are filled from the node: the nonce from the
pending transaction count, the gas price, the gas limit from an estimate
scaled by gas.multiplier, and the chain id. A configured chain id must match
the node's. After the receipt arrives, the reported contract address is
checked against the address derived from the sender and nonce.

--bytecode takes hex or @file; the file may hold raw hex or a Hardhat,
Truffle or Foundry artifact. With --verify-code the deployed runtime code is
compared with --runtime or the artifact's deployedBytecode.

--manifest deploys several contracts in order from one sender.

Examples:
  ethdeploy deploy --bytecode @artifacts/Token.json --types uint256 --args 1000000
  ethdeploy deploy --bytecode 0x6080... --dry-run -o json
  ethdeploy deploy --manifest deploy.yaml --rpc https://sepolia.example.org`,
	Args: cobra.NoArgs,
	RunE: runDeploy,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(deployCmd)

	f := deployCmd.Flags()
	f.StringVar(&deployOpts.bytecode, "bytecode", "", "creation bytecode as hex, @file or @artifact.json")
	f.StringVar(&deployOpts.manifest, "manifest", "", "YAML manifest listing several deployments")
	f.StringSliceVar(&deployOpts.types, "types", nil, "constructor argument types")
	f.StringArrayVar(&deployOpts.args, "args", nil, "constructor argument value (repeat once per type)")
	f.StringVar(&deployOpts.value, "value", "0", "value sent to the constructor, e.g. 1ether")
	f.StringVar(&deployOpts.nonce, "nonce", "", "sender nonce (default: pending count from the node)")
	f.StringVar(&deployOpts.gasPrice, "gas-price", "", "gas price (default: eth_gasPrice)")
	f.StringVar(&deployOpts.gas, "gas", "", "gas limit (default: scaled eth_estimateGas)")
	f.StringVar(&deployOpts.chainID, "chain-id", "", "expected chain id (default from config, else the node's)")
	f.StringVar(&deployOpts.runtime, "runtime", "", "expected runtime code as hex or @file")
	f.BoolVar(&deployOpts.verifyCode, "verify-code", false, "compare the deployed code with the expected runtime")
	f.BoolVar(&deployOpts.dryRun, "dry-run", false, "sign but do not submit")
	f.StringVar(&deployOpts.rpcURL, "rpc", "", "JSON-RPC endpoint (default from config)")
	f.StringVar(&deployOpts.nonceStrategy, "nonce-strategy", "", "ECDSA nonce: deterministic or randomized (default from config)")
	f.BoolVar(&deployOpts.crossCheck, "cross-check", false, "verify every signed transaction with go-ethereum")
	f.DurationVar(&deployOpts.receiptTimeout, "receipt-timeout", 0, "how long to wait for the receipt (default from config)")
	deployOpts.register(deployCmd)

	deployCmd.MarkFlagsOneRequired("bytecode", "manifest")
	deployCmd.MarkFlagsMutuallyExclusive("bytecode", "manifest")
	for _, flag := range []string{"types", "args", "value", "nonce", "gas", "runtime"} {
		deployCmd.MarkFlagsMutuallyExclusive("manifest", flag)
	}
}

func runDeploy(cmd *cobra.Command, _ []string) error {
	reqs, err := deployOpts.requests(cmd)
	if err != nil {
		return err
	}

	strategy, err := cfg.NonceStrategy()
	if deployOpts.nonceStrategy != "" {
		strategy, err = ethcrypto.ParseNonceStrategy(deployOpts.nonceStrategy)
	}
	if err != nil {
		return err
	}

	node, err := newNode(deployOpts.rpcURL)
	if err != nil {
		return err
	}

	key, err := deployOpts.load()
	if err != nil {
		return err
	}
	defer key.Destroy()

	svc := deploy.NewService(&deploy.Config{
		Node:          node,
		Signer:        ethtypes.NewSigner(ethtypes.WithNonceStrategy(strategy)),
		Logger:        logger,
		Metrics:       metrics.Global,
		GasMultiplier: cfg.Gas.Multiplier,
		Wait:          deployOpts.waitOptions(),
		CrossCheck:    deployOpts.crossCheck || cfg.Signing.CrossCheck,
	})

	ctx, cancel := contextWithTimeout(cmd, 0)
	defer cancel()

	results, err := runDeployments(ctx, cmd, svc, key, reqs)
	if cfg.Output.Verbose {
		printMetrics(cmd)
	}
	if err != nil {
		return err
	}

	if len(results) == 1 {
		return formatter.PrintResult(results[0], resultFields(results[0]))
	}
	return printResults(results)
}

// runDeployments deploys one request directly and several through DeployAll,
// reporting progress on stderr.
func runDeployments(ctx context.Context, cmd *cobra.Command, svc *deploy.Service, key *keys.Key, reqs []*deploy.Request) ([]*deploy.Result, error) {
	w := cmd.ErrOrStderr()
	if !formatter.IsJSON() {
		if deployOpts.dryRun {
			output.Info(w, "Dry run: signing %d deployment(s) from %s without submitting", len(reqs), key.Address())
		} else {
			output.Info(w, "Deploying %d contract(s) from %s", len(reqs), key.Address())
		}
	}

	if len(reqs) == 1 {
		result, err := svc.Deploy(ctx, key, reqs[0])
		if err != nil {
			return nil, err
		}
		return []*deploy.Result{result}, nil
	}
	return svc.DeployAll(ctx, key, reqs)
}

// requests builds the deployment requests from flags or the manifest.
func (d *deployFlags) requests(cmd *cobra.Command) ([]*deploy.Request, error) {
	chainID, err := optionalChainID(cmd, d.chainID)
	if err != nil {
		return nil, err
	}
	gasPrice, err := optionalWei(cmd, "gas-price", d.gasPrice)
	if err != nil {
		return nil, err
	}

	if d.manifest != "" {
		m, err := loadManifest(d.manifest)
		if err != nil {
			return nil, err
		}
		return m.requests(chainID, gasPrice, d.verifyCode, d.dryRun)
	}

	c, err := readHexArg("bytecode", d.bytecode)
	if err != nil {
		return nil, err
	}
	types, args, err := constructorArgs(d.types, d.args)
	if err != nil {
		return nil, err
	}

	req := &deploy.Request{
		Bytecode:         c.creation,
		ConstructorTypes: types,
		ConstructorArgs:  args,
		GasPrice:         gasPrice,
		ChainID:          chainID,
		DryRun:           d.dryRun,
	}
	if req.Value, err = optionalWei(cmd, "value", d.value); err != nil {
		return nil, err
	}
	if req.Nonce, err = optionalUint64(cmd, "nonce", d.nonce); err != nil {
		return nil, err
	}
	if req.Gas, err = optionalUint64(cmd, "gas", d.gas); err != nil {
		return nil, err
	}

	if d.verifyCode {
		runtime := c.runtime
		if d.runtime != "" {
			rc, err := readHexArg("runtime", d.runtime)
			if err != nil {
				return nil, err
			}
			runtime = rc.creation
		}
		if len(runtime) == 0 {
			return nil, missingRuntime()
		}
		req.ExpectedRuntime = runtime
	}
	return []*deploy.Request{req}, nil
}

func missingRuntime() error {
	return deployerr.WithSuggestion(
		deployerr.WithDetails(deployerr.ErrMissingField, map[string]string{"field": "runtime"}),
		"pass --runtime or a compiler artifact with deployedBytecode",
	)
}

func (d *deployFlags) waitOptions() rpc.WaitOptions {
	timeout := cfg.Receipt.Timeout
	if d.receiptTimeout > 0 {
		timeout = d.receiptTimeout
	}
	return rpc.WaitOptions{
		PollInterval: cfg.Receipt.PollInterval,
		Timeout:      timeout,
		Logger:       logger,
	}
}

// newNode creates the JSON-RPC client from configuration. Plaintext HTTP is
// only accepted for loopback nodes.
func newNode(override string) (*rpc.Client, error) {
	url := cfg.Network.RPC
	if override != "" {
		url = config.SanitizeURL(override)
	}
	if err := config.ValidateRPCURL(url); err != nil {
		return nil, flagError("rpc", url, err)
	}
	if url == "" {
		return nil, flagError("rpc", url, config.ErrInsecureRPCURL)
	}

	opts := &rpc.ClientOptions{
		Timeout: cfg.Network.Timeout,
		Logger:  logger,
		Metrics: metrics.Global,
	}
	if cfg.Network.RateLimit > 0 {
		opts.RateLimiter = chain.NewRateLimiter(cfg.Network.RateLimit, cfg.Network.Burst)
	}
	logger.Debug("using node %s (timeout %s, rate %.1f/s)", chain.EndpointKey(url), opts.Timeout, cfg.Network.RateLimit)
	return rpc.NewClientWithOptions(url, opts), nil
}

func resultFields(r *deploy.Result) []output.Field {
	status := "submitted"
	switch {
	case !r.Submitted:
		status = "signed (dry run)"
	case r.CodeVerified:
		status = "deployed, address and code verified"
	case r.BlockNumber != "":
		status = "deployed, address verified"
	}

	gas := strconv.FormatUint(r.Gas, 10)
	if r.GasEstimated {
		gas += " (estimated)"
	}
	gasPrice := r.GasPrice
	if n, ok := parseBig(r.GasPrice); ok {
		gasPrice = chain.FormatGasPrice(n)
	}
	gasUsed := ""
	if r.GasUsed > 0 {
		gasUsed = strconv.FormatUint(r.GasUsed, 10)
	}

	fields := []output.Field{
		{Label: "Status", Value: status},
		{Label: "Contract", Value: r.ContractAddress.String()},
		{Label: "Transaction", Value: r.TxHash},
		{Label: "From", Value: r.From.String()},
		{Label: "Nonce", Value: strconv.FormatUint(r.Nonce, 10)},
		{Label: "Chain ID", Value: r.ChainID},
		{Label: "Gas price", Value: gasPrice},
		{Label: "Gas", Value: gas},
		{Label: "Gas used", Value: gasUsed},
		{Label: "Block", Value: r.BlockNumber},
	}
	if !r.Submitted {
		fields = append(fields, output.Field{Label: "Raw", Value: r.RawTx})
	}
	return fields
}

func printResults(results []*deploy.Result) error {
	if formatter.IsJSON() {
		return formatter.Print(results)
	}
	table := output.NewTable("#", "CONTRACT", "NONCE", "BLOCK", "TRANSACTION")
	for i, r := range results {
		block := r.BlockNumber
		if block == "" {
			block = "-"
		}
		table.AddRow(strconv.Itoa(i+1), r.ContractAddress.String(), strconv.FormatUint(r.Nonce, 10), block, r.TxHash)
	}
	return table.Render(formatter.Writer())
}

// printMetrics reports the process counters on stderr.
func printMetrics(cmd *cobra.Command) {
	snap := metrics.Global.Snapshot()
	w := cmd.ErrOrStderr()
	outln(w)
	out(w, "RPC calls: %d (errors %d, retries %d, avg %.1fms)\n",
		snap.RPCCallsTotal, snap.RPCErrorsTotal, snap.RPCRetriesTotal, metrics.Global.RPCLatencyAvgMs())
	out(w, "Signatures: %d (errors %d)\n", snap.SignaturesTotal, snap.SignErrorsTotal)
	out(w, "Deployments: %d (failed %d, verification failures %d)\n",
		snap.DeploymentsTotal, snap.DeploymentsFailed, snap.VerificationFailures)
}

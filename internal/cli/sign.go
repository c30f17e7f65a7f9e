package cli

import (
	"github.com/spf13/cobra"

	"github.com/mrz1836/ethdeploy/internal/chain/eth/compat"
	ethcrypto "github.com/mrz1836/ethdeploy/internal/chain/eth/crypto"
	ethtypes "github.com/mrz1836/ethdeploy/internal/chain/eth/types"
	"github.com/mrz1836/ethdeploy/internal/metrics"
	deployerr "github.com/mrz1836/ethdeploy/pkg/errors"
)

// signFlags holds the sign command flags.
type signFlags struct {
	keyFlags

	to            string
	value         string
	data          string
	types         []string
	args          []string
	nonce         string
	gasPrice      string
	gas           string
	chainID       string
	nonceStrategy string
	crossCheck    bool
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var signOpts signFlags

// signCmd builds and signs a transaction offline.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Build and sign a transaction offline",
	Long: `Build a legacy transaction and sign it with EIP-155 replay protection.

Nothing is sent to a node: nonce, gas price, gas and chain id must be given
(the chain id may come from the configuration). Without --to the transaction
is a contract deployment: --data is the creation bytecode and --types/--args
are appended as constructor arguments; the predicted contract address is shown.

The key is read from ETHDEPLOY_PRIVATE_KEY, ETHDEPLOY_MNEMONIC or the
configured age key file.

Examples:
  ethdeploy sign --nonce 0 --gas-price 20gwei --gas 500000 --chain-id 1 --data @build/Token.bin
  ethdeploy sign --to 0x742d35Cc6634C0532925a3b844Bc454e4438f44e --value 1ether \
    --nonce 3 --gas-price 20gwei --gas 21000 --chain-id 11155111`,
	Args: cobra.NoArgs,
	RunE: runSign,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(signCmd)

	f := signCmd.Flags()
	f.StringVar(&signOpts.to, "to", "", "recipient address (omit for a contract deployment)")
	f.StringVar(&signOpts.value, "value", "0", "value to transfer, e.g. 1000, 20gwei, 1.5ether")
	f.StringVar(&signOpts.data, "data", "", "call data or creation bytecode as hex or @file")
	f.StringSliceVar(&signOpts.types, "types", nil, "constructor argument types (deployments only)")
	f.StringArrayVar(&signOpts.args, "args", nil, "constructor argument value (repeat once per type)")
	f.StringVar(&signOpts.nonce, "nonce", "", "sender nonce")
	f.StringVar(&signOpts.gasPrice, "gas-price", "", "gas price, e.g. 20gwei")
	f.StringVar(&signOpts.gas, "gas", "", "gas limit")
	f.StringVar(&signOpts.chainID, "chain-id", "", "chain id (default from config)")
	f.StringVar(&signOpts.nonceStrategy, "nonce-strategy", "", "ECDSA nonce: deterministic or randomized (default from config)")
	f.BoolVar(&signOpts.crossCheck, "cross-check", false, "verify the signed transaction with go-ethereum")
	signOpts.register(signCmd)
}

func runSign(cmd *cobra.Command, _ []string) error {
	params, err := signOpts.params(cmd)
	if err != nil {
		return err
	}

	var tx *ethtypes.UnsignedTx
	if params.To == nil {
		var bytecode []byte
		if signOpts.data != "" {
			c, err := readHexArg("data", signOpts.data)
			if err != nil {
				return err
			}
			bytecode = c.creation
		}
		types, args, err := constructorArgs(signOpts.types, signOpts.args)
		if err != nil {
			return err
		}
		tx, err = ethtypes.BuildDeploymentTransaction(bytecode, types, args, params)
		if err != nil {
			return err
		}
	} else {
		if len(signOpts.types) > 0 || len(signOpts.args) > 0 {
			return deployerr.WithSuggestion(
				deployerr.WithDetails(deployerr.ErrInvalidInput, map[string]string{"flag": "types"}),
				"constructor arguments only apply to deployments; encode call data with 'ethdeploy encode --signature'",
			)
		}
		if signOpts.data != "" {
			c, err := readHexArg("data", signOpts.data)
			if err != nil {
				return err
			}
			params.Data = c.creation
		}
		if tx, err = ethtypes.BuildTransaction(params); err != nil {
			return err
		}
	}

	strategy, err := signOpts.strategy()
	if err != nil {
		return err
	}

	key, err := signOpts.load()
	if err != nil {
		return err
	}
	defer key.Destroy()

	signer := ethtypes.NewSigner(ethtypes.WithNonceStrategy(strategy))
	stx, err := signer.Sign(tx, key.Bytes())
	metrics.Global.RecordSignature(err)
	if err != nil {
		logger.Error("signing transaction: %v", err)
		return err
	}

	crossCheck := signOpts.crossCheck || cfg.Signing.CrossCheck
	if crossCheck {
		if err := compat.CrossCheck(stx, key.Bytes(), strategy); err != nil {
			logger.Error("cross-check failed for %s: %v", stx.HashHex(), err)
			return err
		}
	}

	view, err := newTxView(stx)
	if err != nil {
		return err
	}
	view.NonceStrategy = strategy.String()
	view.CrossChecked = crossCheck
	logger.Debug("signed %s from %s (nonce %d, %s)", view.Hash, view.From, view.Nonce, view.NonceStrategy)

	return formatter.PrintResult(view, view.fields())
}

// params collects the transaction fields from flags and configuration.
func (s *signFlags) params(cmd *cobra.Command) (ethtypes.TxParams, error) {
	var p ethtypes.TxParams
	var err error

	if s.to != "" {
		to, err := ethtypes.HexToAddress(s.to)
		if err != nil {
			return p, err
		}
		p.To = &to
	}
	if p.Nonce, err = optionalUint64(cmd, "nonce", s.nonce); err != nil {
		return p, err
	}
	if p.Gas, err = optionalUint64(cmd, "gas", s.gas); err != nil {
		return p, err
	}
	if p.GasPrice, err = optionalWei(cmd, "gas-price", s.gasPrice); err != nil {
		return p, err
	}
	if p.Value, err = optionalWei(cmd, "value", s.value); err != nil {
		return p, err
	}
	if p.ChainID, err = optionalChainID(cmd, s.chainID); err != nil {
		return p, err
	}
	return p, p.Validate()
}

func (s *signFlags) strategy() (ethcrypto.NonceStrategy, error) {
	if s.nonceStrategy != "" {
		return ethcrypto.ParseNonceStrategy(s.nonceStrategy)
	}
	return cfg.NonceStrategy()
}

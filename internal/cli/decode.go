package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrz1836/ethdeploy/internal/chain/eth/compat"
	ethtypes "github.com/mrz1836/ethdeploy/internal/chain/eth/types"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var decodeCrossCheck bool

// decodeCmd decodes a raw signed transaction.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var decodeCmd = &cobra.Command{
	Use:   "decode <raw-tx>",
	Short: "Decode a raw signed transaction",
	Long: `Decode a raw legacy transaction, recover its sender and compute its hash.

The raw transaction may be given as hex or as @file.

Examples:
  ethdeploy decode 0xf86c808504a817c800825208...
  ethdeploy decode @signed.hex --cross-check`,
	Args: cobra.ExactArgs(1),
	RunE: runDecode,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().BoolVar(&decodeCrossCheck, "cross-check", false, "decode again with go-ethereum and compare")
}

func runDecode(_ *cobra.Command, args []string) error {
	raw, err := readHexArg("raw-tx", strings.TrimSpace(args[0]))
	if err != nil {
		return err
	}

	stx, err := ethtypes.DecodeSignedTx(raw.creation)
	if err != nil {
		return err
	}
	view, err := newTxView(stx)
	if err != nil {
		return err
	}

	if decodeCrossCheck {
		if err := compat.VerifyDecoded(stx); err != nil {
			logger.Error("decode cross-check mismatch for %s: %v", view.Hash, err)
			return err
		}
		view.CrossChecked = true
	}

	logger.Debug("decoded %s from %s", view.Hash, view.From)
	return formatter.PrintResult(view, view.fields())
}

package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrz1836/ethdeploy/internal/chain"
	ethtypes "github.com/mrz1836/ethdeploy/internal/chain/eth/types"
	deployerr "github.com/mrz1836/ethdeploy/pkg/errors"
)

// out is a helper for CLI output that ignores write errors.
//
//nolint:errcheck // CLI output writes to stdout are intentionally unchecked
func out(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format, args...)
}

// outln is a helper for CLI output with newline.
//
//nolint:errcheck // CLI output writes to stdout are intentionally unchecked
func outln(w io.Writer, args ...any) {
	fmt.Fprintln(w, args...)
}

// artifact is the subset of a compiler artifact ethdeploy reads. Hardhat and
// Truffle store bytecode as a string; Foundry nests it under "object".
type artifact struct {
	Bytecode         json.RawMessage `json:"bytecode"`
	DeployedBytecode json.RawMessage `json:"deployedBytecode"`
}

// code holds the creation and (when known) runtime bytecode of a contract.
type code struct {
	creation []byte
	runtime  []byte
}

// readHexArg decodes a hex flag value. A value starting with @ names a file
// holding either raw hex or a compiler artifact JSON.
func readHexArg(flag, value string) (code, error) {
	if !strings.HasPrefix(value, "@") {
		b, err := ethtypes.DecodeHex(value)
		if err != nil {
			return code{}, flagError(flag, value, err)
		}
		return code{creation: b}, nil
	}

	path := strings.TrimPrefix(value, "@")
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is supplied by the operator
	if err != nil {
		return code{}, deployerr.WithDetails(deployerr.WithCause(deployerr.ErrNotFound, err), map[string]string{
			"flag": flag,
			"path": path,
		})
	}

	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		return parseArtifact(flag, path, data)
	}

	b, err := ethtypes.DecodeHex(string(data))
	if err != nil {
		return code{}, flagError(flag, path, err)
	}
	return code{creation: b}, nil
}

func parseArtifact(flag, path string, data []byte) (code, error) {
	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return code{}, flagError(flag, path, err)
	}

	creation, err := artifactHex(a.Bytecode)
	if err != nil || len(creation) == 0 {
		return code{}, deployerr.WithDetails(deployerr.ErrMissingField, map[string]string{
			"flag":  flag,
			"path":  path,
			"field": "bytecode",
		})
	}
	runtime, err := artifactHex(a.DeployedBytecode)
	if err != nil {
		return code{}, flagError(flag, path, err)
	}
	return code{creation: creation, runtime: runtime}, nil
}

// artifactHex accepts "0x..." or {"object": "0x..."}.
func artifactHex(raw json.RawMessage) ([]byte, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		var nested struct {
			Object string `json:"object"`
		}
		if err := json.Unmarshal(raw, &nested); err != nil {
			return nil, err
		}
		s = nested.Object
	}
	return ethtypes.DecodeHex(s)
}

// optionalUint64 parses a flag only when the user set it.
func optionalUint64(cmd *cobra.Command, flag, value string) (*uint64, error) {
	if !cmd.Flags().Changed(flag) {
		return nil, nil //nolint:nilnil // unset flag
	}
	n, err := strconv.ParseUint(strings.TrimSpace(value), 0, 64)
	if err != nil {
		return nil, flagError(flag, value, err)
	}
	return &n, nil
}

// optionalWei parses an amount flag such as "20gwei" only when the user set it.
func optionalWei(cmd *cobra.Command, flag, value string) (*big.Int, error) {
	if !cmd.Flags().Changed(flag) {
		return nil, nil //nolint:nilnil // unset flag
	}
	n, err := chain.ParseWei(value)
	if err != nil {
		return nil, deployerr.WithDetails(err, map[string]string{"flag": flag, "value": value})
	}
	return n, nil
}

// optionalChainID parses --chain-id, falling back to the configured chain id.
// Zero means "ask the node".
func optionalChainID(cmd *cobra.Command, value string) (*big.Int, error) {
	id, err := optionalUint64(cmd, "chain-id", value)
	if err != nil {
		return nil, err
	}
	switch {
	case id != nil:
		return new(big.Int).SetUint64(*id), nil
	case cfg.Network.ChainID != 0:
		return new(big.Int).SetUint64(cfg.Network.ChainID), nil
	default:
		return nil, nil //nolint:nilnil // resolved later
	}
}

// constructorArgs pairs the --args values with the --types list.
func constructorArgs(types, args []string) ([]string, []any, error) {
	if len(types) != len(args) {
		return nil, nil, deployerr.WithDetails(deployerr.ErrABIArgumentCount, map[string]string{
			"types": strconv.Itoa(len(types)),
			"args":  strconv.Itoa(len(args)),
		})
	}
	values := make([]any, len(args))
	for i, a := range args {
		values[i] = a
	}
	return types, values, nil
}

func parseBig(s string) (*big.Int, bool) {
	return new(big.Int).SetString(s, 10)
}

func flagError(flag, value string, cause error) error {
	return deployerr.WithDetails(deployerr.WithCause(deployerr.ErrInvalidInput, cause), map[string]string{
		"flag":  flag,
		"value": truncateValue(value),
	})
}

func truncateValue(s string) string {
	const limit = 24
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}

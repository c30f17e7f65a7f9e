package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	ethcrypto "github.com/mrz1836/ethdeploy/internal/chain/eth/crypto"
	ethtypes "github.com/mrz1836/ethdeploy/internal/chain/eth/types"
	"github.com/mrz1836/ethdeploy/internal/output"
	deployerr "github.com/mrz1836/ethdeploy/pkg/errors"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	addressSender   string
	addressNonce    string
	addressSalt     string
	addressInitCode string
	addressCount    int
)

// addressCmd derives contract addresses.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var addressCmd = &cobra.Command{
	Use:   "address",
	Short: "Derive contract deployment addresses",
	Long: `Derive the address a contract will be deployed at.

CREATE addresses depend on the sender and its nonce. CREATE2 addresses depend
on the deploying contract, a 32-byte salt and the init code.

Examples:
  ethdeploy address --sender 0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266 --nonce 0
  ethdeploy address --sender 0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266 --nonce 0 --count 5
  ethdeploy address --sender 0x4e59b44847b379578588920cA78FbF26c0B4956C --salt 0x01 --init-code @build/Token.bin`,
	Args: cobra.NoArgs,
	RunE: runAddress,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(addressCmd)

	f := addressCmd.Flags()
	f.StringVar(&addressSender, "sender", "", "deploying account or factory contract")
	f.StringVar(&addressNonce, "nonce", "0", "sender nonce (CREATE)")
	f.IntVar(&addressCount, "count", 1, "number of consecutive nonces to derive (CREATE)")
	f.StringVar(&addressSalt, "salt", "", "32-byte salt, left-padded when shorter (CREATE2)")
	f.StringVar(&addressInitCode, "init-code", "", "init code as hex or @file (CREATE2)")
	_ = addressCmd.MarkFlagRequired("sender")
	addressCmd.MarkFlagsRequiredTogether("salt", "init-code")
	addressCmd.MarkFlagsMutuallyExclusive("salt", "nonce")
}

// addressEntry is one derived address.
type addressEntry struct {
	Nonce   *uint64          `json:"nonce,omitempty"`
	Address ethtypes.Address `json:"address"`
}

// addressResult is the JSON shape of the address command.
type addressResult struct {
	Sender       ethtypes.Address `json:"sender"`
	Scheme       string           `json:"scheme"`
	Salt         string           `json:"salt,omitempty"`
	InitCodeHash string           `json:"init_code_hash,omitempty"`
	Addresses    []addressEntry   `json:"addresses"`
}

func runAddress(_ *cobra.Command, _ []string) error {
	sender, err := ethtypes.HexToAddress(addressSender)
	if err != nil {
		return err
	}

	var result *addressResult
	if addressSalt != "" {
		result, err = create2Address(sender)
	} else {
		result, err = createAddresses(sender)
	}
	if err != nil {
		return err
	}

	if formatter.IsJSON() {
		return formatter.Print(result)
	}

	if result.Scheme == "create2" || len(result.Addresses) == 1 {
		return formatter.Println(result.Addresses[0].Address.String())
	}
	table := output.NewTable("NONCE", "ADDRESS")
	for _, e := range result.Addresses {
		table.AddRow(strconv.FormatUint(*e.Nonce, 10), e.Address.String())
	}
	return table.Render(formatter.Writer())
}

func createAddresses(sender ethtypes.Address) (*addressResult, error) {
	start, err := strconv.ParseUint(addressNonce, 0, 64)
	if err != nil {
		return nil, flagError("nonce", addressNonce, err)
	}
	if addressCount < 1 || addressCount > 1000 {
		return nil, deployerr.WithDetails(deployerr.ErrInvalidInput, map[string]string{
			"flag":   "count",
			"reason": "must be between 1 and 1000",
		})
	}

	result := &addressResult{Sender: sender, Scheme: "create"}
	for i := range uint64(addressCount) { //nolint:gosec // G115: bounded above
		nonce := start + i
		result.Addresses = append(result.Addresses, addressEntry{
			Nonce:   &nonce,
			Address: ethtypes.CreateAddress(sender, nonce),
		})
	}
	return result, nil
}

func create2Address(sender ethtypes.Address) (*addressResult, error) {
	saltBytes, err := ethtypes.DecodeHex(addressSalt)
	if err != nil {
		return nil, flagError("salt", addressSalt, err)
	}
	if len(saltBytes) > 32 {
		return nil, deployerr.WithDetails(deployerr.ErrInvalidInput, map[string]string{
			"flag":   "salt",
			"reason": "salt is longer than 32 bytes",
		})
	}
	var salt [32]byte
	copy(salt[32-len(saltBytes):], saltBytes)

	initCode, err := readHexArg("init-code", addressInitCode)
	if err != nil {
		return nil, err
	}

	return &addressResult{
		Sender:       sender,
		Scheme:       "create2",
		Salt:         ethtypes.EncodeHex(salt[:]),
		InitCodeHash: ethcrypto.Keccak256Hash(initCode.creation).Hex(),
		Addresses: []addressEntry{{
			Address: ethtypes.CreateAddress2(sender, salt, initCode.creation),
		}},
	}, nil
}

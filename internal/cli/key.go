package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/mrz1836/ethdeploy/internal/config"
	"github.com/mrz1836/ethdeploy/internal/keys"
	"github.com/mrz1836/ethdeploy/internal/output"
	deployerr "github.com/mrz1836/ethdeploy/pkg/errors"
)

// keyCmd is the parent command for deployer key management.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage the deployer key",
	Long: `Create, import and inspect the deployer key.

Key files are hex keys encrypted with an age scrypt passphrase. The
passphrase is read from ETHDEPLOY_PASSPHRASE or prompted for.`,
}

// keyGenerateCmd creates a new encrypted key file.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var keyGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new encrypted deployer key",
	Long: `Generate a random secp256k1 key and write it age-encrypted to the key file.

The private key is never printed.

Examples:
  ethdeploy key generate
  ethdeploy key generate --out ./deployer.key.age`,
	Args: cobra.NoArgs,
	RunE: runKeyGenerate,
}

// keyImportCmd encrypts a key from the environment into a key file.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var keyImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Encrypt a key from the environment into a key file",
	Long: `Read the key from ETHDEPLOY_PRIVATE_KEY or ETHDEPLOY_MNEMONIC and
write it age-encrypted to the key file.

Examples:
  ETHDEPLOY_PRIVATE_KEY=0x... ethdeploy key import
  ETHDEPLOY_MNEMONIC="..." ethdeploy key import --key-source mnemonic --force`,
	Args: cobra.NoArgs,
	RunE: runKeyImport,
}

// keyAddressCmd prints the sender address of the configured key.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var keyAddressCmd = &cobra.Command{
	Use:   "address",
	Short: "Show the deployer address",
	Long: `Load the configured key and print the address it signs for.

Example:
  ethdeploy key address
  ethdeploy key address --key-file ./deployer.key.age -o json`,
	Args: cobra.NoArgs,
	RunE: runKeyAddress,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	keyOut     string
	keyForce   bool
	keyImport  keyFlags
	keyAddress keyFlags
)

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(keyCmd)
	keyCmd.AddCommand(keyGenerateCmd, keyImportCmd, keyAddressCmd)

	for _, c := range []*cobra.Command{keyGenerateCmd, keyImportCmd} {
		c.Flags().StringVar(&keyOut, "out", "", "key file to write (default from config)")
		c.Flags().BoolVar(&keyForce, "force", false, "replace an existing key file")
	}
	keyImportCmd.Flags().StringVar(&keyImport.source, "key-source", "", "hex or mnemonic (default: detected from the environment)")
	keyAddress.register(keyAddressCmd)
}

// keyResult is the JSON shape of the key commands.
type keyResult struct {
	Address string `json:"address"`
	Origin  string `json:"origin"`
	File    string `json:"file,omitempty"`
}

func (r *keyResult) fields() []output.Field {
	fields := []output.Field{{Label: "Address", Value: r.Address}, {Label: "Origin", Value: r.Origin}}
	if r.File != "" {
		fields = append(fields, output.Field{Label: "File", Value: r.File})
	}
	return fields
}

func runKeyGenerate(_ *cobra.Command, _ []string) error {
	key, err := keys.Generate()
	if err != nil {
		return err
	}
	defer key.Destroy()
	return saveKey(key)
}

func runKeyImport(_ *cobra.Command, _ []string) error {
	spec, err := keyImport.spec()
	if err != nil {
		return err
	}
	if spec.Source == keys.SourceFile {
		return deployerr.WithSuggestion(
			deployerr.WithDetails(deployerr.ErrKeyNotFound, map[string]string{"reason": "no key in the environment"}),
			"set ETHDEPLOY_PRIVATE_KEY or ETHDEPLOY_MNEMONIC",
		)
	}
	key, err := keys.Load(spec, nil)
	if err != nil {
		return err
	}
	defer key.Destroy()
	return saveKey(key)
}

func runKeyAddress(_ *cobra.Command, _ []string) error {
	key, err := keyAddress.load()
	if err != nil {
		return err
	}
	defer key.Destroy()

	result := &keyResult{Address: key.Address().String(), Origin: key.Origin()}
	if key.Origin() == string(keys.SourceFile) {
		spec, _ := keyAddress.spec()
		result.File = spec.File
	}
	return formatter.PrintResult(result, result.fields())
}

// saveKey encrypts key into the output file.
func saveKey(key *keys.Key) error {
	path := keyOut
	if path == "" {
		path = cfg.Keys.File
	}
	path = config.ExpandPath(path)

	if !keyForce {
		if _, err := os.Stat(path); err == nil {
			return deployerr.WithSuggestion(
				deployerr.WithDetails(deployerr.ErrInvalidInput, map[string]string{"path": path, "reason": "key file exists"}),
				"pass --force to replace it",
			)
		}
	}

	pass, err := newKeyPassphrase()
	if err != nil {
		return err
	}
	defer clear(pass)

	if err := keys.SaveFile(path, key, string(pass), keyForce); err != nil {
		logger.Error("writing key file %s: %v", path, err)
		return err
	}
	logger.Debug("wrote %s key for %s to %s", key.Origin(), key.Address(), path)

	result := &keyResult{Address: key.Address().String(), Origin: key.Origin(), File: path}
	return formatter.PrintResult(result, result.fields())
}

// newKeyPassphrase reads the passphrase for a new key file.
func newKeyPassphrase() ([]byte, error) {
	if v := os.Getenv(config.EnvPassphrase); v != "" {
		if len(v) < minPassphraseLength {
			return nil, deployerr.WithSuggestion(
				deployerr.WithDetails(deployerr.ErrInvalidInput, map[string]string{"variable": config.EnvPassphrase}),
				"passphrase must be at least 8 characters",
			)
		}
		return []byte(v), nil
	}
	return promptNewPasswordFn()
}

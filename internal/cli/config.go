package cli

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mrz1836/ethdeploy/internal/config"
	deployerr "github.com/mrz1836/ethdeploy/pkg/errors"
)

// configCmd is the parent command for configuration operations.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and modify ethdeploy configuration settings.`,
}

// configInitCmd initializes the configuration.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	Long: `Create a default configuration file at ~/.ethdeploy/config.yaml.

If a configuration file already exists, this command will not overwrite it
unless --force is specified.

Example:
  ethdeploy config init
  ethdeploy config init --force`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// configShowCmd shows the current configuration.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Display the effective configuration: the file, then environment
variables, then flags.

Example:
  ethdeploy config show
  ethdeploy config show -o json`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

// configGetCmd gets a specific configuration value.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configGetCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Get a configuration value",
	Long: `Get a configuration value by its dotted path.

Examples:
  ethdeploy config get network.rpc
  ethdeploy config get signing.nonce_strategy
  ethdeploy config get receipt`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigGet,
}

// configSetCmd sets a configuration value.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configSetCmd = &cobra.Command{
	Use:   "set <path> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value by its dotted path and save the file.

The resulting configuration is validated before it is written.

Examples:
  ethdeploy config set network.rpc https://sepolia.example.org/v3/KEY
  ethdeploy config set network.chain_id 11155111
  ethdeploy config set receipt.timeout 5m
  ethdeploy config set signing.nonce_strategy randomized`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var configForce bool

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)

	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite existing configuration")
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	configPath := config.Path(cfg.Home)

	if _, err := os.Stat(configPath); err == nil && !configForce {
		return deployerr.WithSuggestion(
			deployerr.WithDetails(deployerr.ErrInvalidInput, map[string]string{"path": configPath}),
			"configuration already exists, use --force to overwrite",
		)
	}

	defaults := config.Defaults()
	defaults.Home = cfg.Home
	if err := config.Save(defaults, configPath); err != nil {
		return deployerr.Wrap(err, "writing config file")
	}
	logger.Debug("wrote default configuration to %s", configPath)

	w := cmd.OutOrStdout()
	out(w, "Configuration initialized at %s\n", configPath)
	outln(w)
	outln(w, "Edit this file to configure:")
	outln(w, "  - network.rpc: JSON-RPC endpoint (https, or http on loopback)")
	outln(w, "  - network.chain_id: expected chain id (0 asks the node)")
	outln(w, "  - keys.file: age-encrypted deployer key")
	outln(w, "  - signing.nonce_strategy: deterministic or randomized")
	return nil
}

func runConfigShow(_ *cobra.Command, _ []string) error {
	root, err := configTree(cfg)
	if err != nil {
		return err
	}
	return printNode(root)
}

func runConfigGet(_ *cobra.Command, args []string) error {
	root, err := configTree(cfg)
	if err != nil {
		return err
	}
	node, err := lookupNode(root, args[0])
	if err != nil {
		return err
	}
	return printNode(node)
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	path, value := args[0], args[1]
	configPath := config.Path(cfg.Home)

	// Start from the file rather than the effective configuration so that
	// environment overrides are not persisted.
	current, err := config.LoadOrDefault(configPath)
	if err != nil {
		return err
	}
	root, err := configTree(current)
	if err != nil {
		return err
	}
	node, err := lookupNode(root, path)
	if err != nil {
		return err
	}
	if node.Kind != yaml.ScalarNode {
		return deployerr.WithSuggestion(
			deployerr.WithDetails(deployerr.ErrInvalidInput, map[string]string{"path": path}),
			"only single values can be set; use a longer path",
		)
	}
	// Drop the encoded tag so the value is resolved against the field type.
	node.Value = value
	node.Tag = ""
	node.Style = 0

	updated := config.Defaults()
	if err := root.Decode(updated); err != nil {
		return deployerr.WithDetails(deployerr.WithCause(deployerr.ErrConfigInvalid, err), map[string]string{
			"path":  path,
			"value": value,
		})
	}
	if err := updated.Validate(); err != nil {
		return err
	}
	if err := config.Save(updated, configPath); err != nil {
		return deployerr.Wrap(err, "saving config")
	}
	logger.Debug("set %s in %s", path, configPath)

	if formatter.IsJSON() {
		return formatter.Print(map[string]string{"path": path, "value": value})
	}
	out(cmd.OutOrStdout(), "Set %s = %s\n", path, value)
	return nil
}

// configTree encodes the configuration into a YAML mapping node.
func configTree(c *config.Config) (*yaml.Node, error) {
	var doc yaml.Node
	if err := doc.Encode(c); err != nil {
		return nil, deployerr.Wrap(err, "encoding config")
	}
	return &doc, nil
}

// lookupNode follows a dotted path through nested mappings.
func lookupNode(root *yaml.Node, path string) (*yaml.Node, error) {
	node := root
	for _, key := range strings.Split(path, ".") {
		next := mappingValue(node, key)
		if next == nil {
			return nil, deployerr.WithSuggestion(
				deployerr.WithDetails(deployerr.ErrNotFound, map[string]string{"path": path}),
				"run 'ethdeploy config show' to list the available settings",
			)
		}
		node = next
	}
	return node, nil
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

// printNode writes a scalar as a bare line and a mapping as YAML or JSON.
func printNode(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && !formatter.IsJSON() {
		return formatter.Println(node.Value)
	}

	if formatter.IsJSON() {
		var v any
		if err := node.Decode(&v); err != nil {
			return deployerr.Wrap(err, "decoding config")
		}
		return formatter.Print(v)
	}

	enc := yaml.NewEncoder(formatter.Writer())
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return deployerr.Wrap(err, "encoding config")
	}
	return enc.Close()
}

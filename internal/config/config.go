// Package config provides configuration management for ethdeploy.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	ethcrypto "github.com/mrz1836/ethdeploy/internal/chain/eth/crypto"
	"github.com/mrz1836/ethdeploy/internal/fileutil"
	"github.com/mrz1836/ethdeploy/internal/keys"
	deployerr "github.com/mrz1836/ethdeploy/pkg/errors"
)

// Config represents the application configuration.
type Config struct {
	Version int           `yaml:"version"`
	Home    string        `yaml:"home"`
	Network NetworkConfig `yaml:"network"`
	Receipt ReceiptConfig `yaml:"receipt"`
	Signing SigningConfig `yaml:"signing"`
	Gas     GasConfig     `yaml:"gas"`
	Keys    KeysConfig    `yaml:"keys"`
	Output  OutputConfig  `yaml:"output"`
	Logging LoggingConfig `yaml:"logging"`
}

// NetworkConfig defines the JSON-RPC endpoint and its limits.
type NetworkConfig struct {
	RPC string `yaml:"rpc"`
	// ChainID of zero means "ask the node".
	ChainID   uint64        `yaml:"chain_id"`
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"rate_limit"`
	Burst     int           `yaml:"burst"`
}

// ReceiptConfig defines how long and how often receipts are polled.
type ReceiptConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	Timeout      time.Duration `yaml:"timeout"`
}

// SigningConfig defines signature settings.
type SigningConfig struct {
	NonceStrategy string `yaml:"nonce_strategy"`
	CrossCheck    bool   `yaml:"cross_check"`
}

// GasConfig defines gas estimation settings.
type GasConfig struct {
	Multiplier float64 `yaml:"multiplier"`
}

// KeysConfig defines where signing keys come from.
type KeysConfig struct {
	Source  string `yaml:"source"`
	File    string `yaml:"file"`
	Account uint32 `yaml:"account"`
	Index   uint32 `yaml:"index"`
}

// OutputConfig defines output formatting settings.
type OutputConfig struct {
	DefaultFormat string `yaml:"default_format"`
	Color         string `yaml:"color"`
	Verbose       bool   `yaml:"verbose"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Load reads configuration from the specified file. Values missing from the
// file keep their defaults.
func Load(path string) (*Config, error) {
	// #nosec G304 -- config file path is from validated user input
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, deployerr.WithDetails(deployerr.ErrConfigNotFound, map[string]string{
				"path": path,
			})
		}
		return nil, deployerr.Wrap(err, "reading config %s", path)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, deployerr.WithDetails(deployerr.WithCause(deployerr.ErrConfigInvalid, err), map[string]string{
			"path": path,
		})
	}

	return cfg, nil
}

// LoadOrDefault reads the configuration at path, falling back to defaults
// when no file exists yet.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, deployerr.ErrConfigNotFound) {
		return Defaults(), nil
	}
	return cfg, err
}

// Save writes configuration to the specified file.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return fileutil.WriteAtomic(path, data, 0o600)
}

// Validate checks that the configuration can drive a deployment.
func (c *Config) Validate() error {
	if err := ValidateRPCURL(c.Network.RPC); err != nil {
		return invalid("network.rpc", err.Error())
	}
	if c.Network.Timeout <= 0 {
		return invalid("network.timeout", "must be positive")
	}
	if c.Network.RateLimit < 0 {
		return invalid("network.rate_limit", "must not be negative")
	}
	if c.Receipt.PollInterval <= 0 {
		return invalid("receipt.poll_interval", "must be positive")
	}
	if c.Receipt.Timeout < c.Receipt.PollInterval {
		return invalid("receipt.timeout", "must be at least the poll interval")
	}
	if _, err := ethcrypto.ParseNonceStrategy(c.Signing.NonceStrategy); err != nil {
		return invalid("signing.nonce_strategy", "must be deterministic or randomized")
	}
	if c.Gas.Multiplier < 1 {
		return invalid("gas.multiplier", "must be at least 1")
	}
	if c.Keys.Source != "" {
		if _, err := keys.ParseSource(c.Keys.Source); err != nil {
			return invalid("keys.source", "must be hex, file or mnemonic")
		}
	}
	switch c.Output.DefaultFormat {
	case "", "auto", "text", "json":
	default:
		return invalid("output.default_format", "must be auto, text or json")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "off", "none", "error", "debug":
	default:
		return invalid("logging.level", "must be off, error or debug")
	}
	return nil
}

func invalid(field, reason string) error {
	return deployerr.WithDetails(deployerr.ErrConfigInvalid, map[string]string{
		"field":  field,
		"reason": reason,
	})
}

// Path returns the default config file path.
func Path(home string) string {
	return filepath.Join(home, "config.yaml")
}

// NonceStrategy returns the parsed signing nonce strategy.
func (c *Config) NonceStrategy() (ethcrypto.NonceStrategy, error) {
	return ethcrypto.ParseNonceStrategy(c.Signing.NonceStrategy)
}

// ChainIDString returns the configured chain id, or "auto" when the node is asked.
func (c *Config) ChainIDString() string {
	if c.Network.ChainID == 0 {
		return "auto"
	}
	return strconv.FormatUint(c.Network.ChainID, 10)
}

// GetLoggingLevel returns the configured logging level.
func (c *Config) GetLoggingLevel() string {
	return c.Logging.Level
}

// GetLoggingFile returns the configured log file path.
func (c *Config) GetLoggingFile() string {
	return c.Logging.File
}

// GetOutputFormat returns the default output format.
func (c *Config) GetOutputFormat() string {
	return c.Output.DefaultFormat
}

// IsVerbose returns true if verbose output is enabled.
func (c *Config) IsVerbose() bool {
	return c.Output.Verbose
}

// ExpandPath resolves a leading "~/" against the user's home directory.
func ExpandPath(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// DefaultHome returns the default ethdeploy home directory.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ethdeploy"
	}
	return filepath.Join(home, ".ethdeploy")
}

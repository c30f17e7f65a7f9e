package config

import "time"

// DefaultRPCURL is the default JSON-RPC endpoint: a local development node.
const DefaultRPCURL = "http://127.0.0.1:8545"

// Default timing and limits.
const (
	DefaultNetworkTimeout = 30 * time.Second
	DefaultRateLimit      = 10
	DefaultBurst          = 20
	DefaultPollInterval   = 2 * time.Second
	DefaultReceiptTimeout = 2 * time.Minute
	DefaultGasMultiplier  = 1.2
)

// Defaults returns the default configuration.
func Defaults() *Config {
	return &Config{
		Version: 1,
		Home:    "~/.ethdeploy",
		Network: NetworkConfig{
			RPC:       DefaultRPCURL,
			ChainID:   0, // ask the node
			Timeout:   DefaultNetworkTimeout,
			RateLimit: DefaultRateLimit,
			Burst:     DefaultBurst,
		},
		Receipt: ReceiptConfig{
			PollInterval: DefaultPollInterval,
			Timeout:      DefaultReceiptTimeout,
		},
		Signing: SigningConfig{
			NonceStrategy: "deterministic",
			CrossCheck:    false,
		},
		Gas: GasConfig{
			Multiplier: DefaultGasMultiplier,
		},
		Keys: KeysConfig{
			Source: "",
			File:   "~/.ethdeploy/deployer.key.age",
		},
		Output: OutputConfig{
			DefaultFormat: "auto",
			Color:         "auto",
			Verbose:       false,
		},
		Logging: LoggingConfig{
			Level: "error",
			File:  "~/.ethdeploy/ethdeploy.log",
		},
	}
}

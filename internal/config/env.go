package config

import (
	"errors"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Environment variable names.
const (
	EnvHome         = "ETHDEPLOY_HOME"
	EnvRPC          = "ETHDEPLOY_RPC"
	EnvChainID      = "ETHDEPLOY_CHAIN_ID"
	EnvOutputFormat = "ETHDEPLOY_OUTPUT_FORMAT"
	EnvVerbose      = "ETHDEPLOY_VERBOSE"
	EnvLogLevel     = "ETHDEPLOY_LOG_LEVEL"
	EnvNoColor      = "NO_COLOR"
	EnvKeySource    = "ETHDEPLOY_KEY_SOURCE"
	EnvKeyFile      = "ETHDEPLOY_KEY_FILE"
	EnvNonce        = "ETHDEPLOY_NONCE_STRATEGY"

	// Key material is read by the CLI at use time and never stored in the config file.
	EnvPrivateKey = "ETHDEPLOY_PRIVATE_KEY" // #nosec G101 -- variable name, not a credential
	EnvMnemonic   = "ETHDEPLOY_MNEMONIC"
	EnvPassphrase = "ETHDEPLOY_PASSPHRASE" // #nosec G101 -- variable name, not a credential

	// EnvMnemonicPassphrase is the optional BIP39 passphrase, distinct from
	// the key file passphrase.
	EnvMnemonicPassphrase = "ETHDEPLOY_MNEMONIC_PASSPHRASE" // #nosec G101 -- variable name, not a credential
)

// ErrInsecureRPCURL is returned for RPC URLs that would leak signed
// transactions over plaintext to a remote host, or use a non-HTTP scheme.
var ErrInsecureRPCURL = errors.New("insecure RPC URL")

// ApplyEnvironment applies environment variable overrides to the configuration.
//
//nolint:gocognit,gocyclo // Environment variable overrides require sequential checks
func ApplyEnvironment(cfg *Config) {
	if v := os.Getenv(EnvHome); v != "" {
		cfg.Home = v
	}

	if v := os.Getenv(EnvRPC); v != "" {
		cfg.Network.RPC = SanitizeURL(v)
	}

	if v := os.Getenv(EnvChainID); v != "" {
		if id, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64); err == nil {
			cfg.Network.ChainID = id
		}
	}

	if v := os.Getenv(EnvOutputFormat); v != "" {
		cfg.Output.DefaultFormat = strings.ToLower(v)
	}

	if v := os.Getenv(EnvVerbose); v != "" {
		cfg.Output.Verbose = parseBool(v)
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}

	// NO_COLOR disables colored output
	if _, ok := os.LookupEnv(EnvNoColor); ok {
		cfg.Output.Color = "never"
	}

	if v := os.Getenv(EnvKeySource); v != "" {
		cfg.Keys.Source = strings.ToLower(strings.TrimSpace(v))
	}

	if v := os.Getenv(EnvKeyFile); v != "" {
		cfg.Keys.File = v
	}

	if v := os.Getenv(EnvNonce); v != "" {
		cfg.Signing.NonceStrategy = strings.ToLower(strings.TrimSpace(v))
	}
}

// parseBool parses a boolean string value.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "1" || s == "true" || s == "yes" || s == "on" {
		return true
	}
	b, _ := strconv.ParseBool(s)
	return b
}

// SanitizeURL trims whitespace and strips control characters and quotes left
// behind by copy-paste.
func SanitizeURL(raw string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f || r == '"' || r == '\'' || r == ' ' {
			return -1
		}
		return r
	}, strings.TrimSpace(raw))
}

// ValidateRPCURL accepts https URLs, and plain http only for loopback hosts.
// An empty URL is accepted and means "not configured".
func ValidateRPCURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ErrInsecureRPCURL
	}
	switch strings.ToLower(u.Scheme) {
	case "https":
		return nil
	case "http":
		if isLoopback(u.Hostname()) {
			return nil
		}
	}
	return ErrInsecureRPCURL
}

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

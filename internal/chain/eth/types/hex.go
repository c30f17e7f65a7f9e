package ethtypes

import (
	"encoding/hex"
	"strings"

	deployerr "github.com/mrz1836/ethdeploy/pkg/errors"
)

// DecodeHex decodes a hex string with an optional 0x prefix.
// An empty string or a bare "0x" decodes to an empty slice.
func DecodeHex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, deployerr.WithDetails(deployerr.WithCause(deployerr.ErrInvalidHex, err), map[string]string{
			"input": truncate(s, 16),
		})
	}
	return b, nil
}

// EncodeHex encodes bytes as a 0x-prefixed lowercase hex string.
func EncodeHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Package ethcrypto provides the Ethereum hashing and secp256k1 signing primitives:
// legacy Keccak-256, recoverable ECDSA with selectable nonce derivation, and
// EIP-55 address checksums.
package ethcrypto

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"

	deployerr "github.com/mrz1836/ethdeploy/pkg/errors"
)

// HashLength is the length of a Keccak-256 digest.
const HashLength = 32

// Hash is a Keccak-256 digest.
type Hash [HashLength]byte

// Bytes returns the digest as a byte slice.
func (h Hash) Bytes() []byte {
	return h[:]
}

// Hex returns the digest as a 0x-prefixed hex string.
func (h Hash) Hex() string {
	return "0x" + hex.EncodeToString(h[:])
}

// MarshalText renders the 0x-prefixed hex form.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.Hex()), nil
}

// UnmarshalText parses a 32-byte hex digest with an optional 0x prefix.
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := HexToHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// HexToHash parses a 32-byte hex digest with an optional 0x prefix.
func HexToHash(s string) (Hash, error) {
	var h Hash
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != HashLength {
		return h, deployerr.WithDetails(deployerr.ErrInvalidHex, map[string]string{
			"hash":   s,
			"reason": "expected 32 bytes of hex",
		})
	}
	copy(h[:], b)
	return h, nil
}

// Keccak256 computes the Keccak-256 hash (original padding, not FIPS SHA3-256)
// of the concatenation of data. Empty input is valid.
func Keccak256(data ...[]byte) []byte {
	hasher := sha3.NewLegacyKeccak256()
	for _, b := range data {
		hasher.Write(b)
	}
	return hasher.Sum(nil)
}

// Keccak256Hash computes the Keccak-256 hash and returns it as a Hash.
func Keccak256Hash(data ...[]byte) Hash {
	var h Hash
	copy(h[:], Keccak256(data...))
	return h
}

package ethtypes

import (
	"encoding/hex"
	"strings"

	ethcrypto "github.com/mrz1836/ethdeploy/internal/chain/eth/crypto"
	deployerr "github.com/mrz1836/ethdeploy/pkg/errors"
)

// AddressLength is the length of an Ethereum address in bytes.
const AddressLength = ethcrypto.AddressLength

// Address represents a 20-byte Ethereum address. Equality is byte-wise.
type Address [AddressLength]byte

// BytesToAddress converts a byte slice to an Address.
// Shorter input is left-padded with zeros; longer input keeps the last 20 bytes.
func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
	return a
}

// HexToAddress parses a hex address with an optional 0x prefix.
// Mixed-case input must carry a valid EIP-55 checksum.
func HexToAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if !ethcrypto.IsHexAddress(s) {
		return Address{}, deployerr.WithDetails(deployerr.ErrInvalidAddress, map[string]string{
			"address": s,
		})
	}
	if err := ethcrypto.ValidateChecksum(s); err != nil {
		return Address{}, err
	}

	b, _ := hex.DecodeString(s[len(s)-AddressLength*2:])
	return BytesToAddress(b), nil
}

// MustHexToAddress converts a hex string to an Address, panicking on error.
// Only use with known-good constants.
func MustHexToAddress(s string) Address {
	addr, err := HexToAddress(s)
	if err != nil {
		panic(err)
	}
	return addr
}

// Bytes returns the address as a byte slice.
func (a Address) Bytes() []byte {
	return a[:]
}

// Hex returns the address as a lowercase hex string with 0x prefix.
func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

// String returns the EIP-55 checksummed hex representation.
func (a Address) String() string {
	return ethcrypto.ToChecksumAddress(a.Hex())
}

// IsZero returns true if the address is all zeros.
func (a Address) IsZero() bool {
	return a == Address{}
}

// MarshalText renders the checksummed form, so JSON output is checksummed.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText parses a hex address.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := HexToAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

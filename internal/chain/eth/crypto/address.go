package ethcrypto

import (
	"encoding/hex"
	"strings"

	deployerr "github.com/mrz1836/ethdeploy/pkg/errors"
)

// AddressLength is the length of an Ethereum address in bytes.
const AddressLength = 20

// IsHexAddress reports whether s is 40 hex characters with an optional 0x prefix.
func IsHexAddress(s string) bool {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != AddressLength*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// ToChecksumAddress converts an address to EIP-55 checksum format.
// Input that is not a hex address is returned unchanged.
func ToChecksumAddress(address string) string {
	if !IsHexAddress(address) {
		return address
	}
	addr := strings.ToLower(address[len(address)-AddressLength*2:])
	hash := hex.EncodeToString(Keccak256([]byte(addr)))

	result := make([]byte, 2+len(addr))
	result[0] = '0'
	result[1] = 'x'
	for i := 0; i < len(addr); i++ {
		c := addr[i]
		if hash[i] >= '8' && c >= 'a' && c <= 'f' {
			c -= 32
		}
		result[i+2] = c
	}
	return string(result)
}

// ValidateChecksum checks an address string. All-lowercase and all-uppercase
// addresses carry no checksum and are accepted; mixed case must match EIP-55.
func ValidateChecksum(address string) error {
	if !IsHexAddress(address) {
		return deployerr.WithDetails(deployerr.ErrInvalidAddress, map[string]string{
			"address": address,
		})
	}

	body := address[len(address)-AddressLength*2:]
	if body == strings.ToLower(body) || body == strings.ToUpper(body) {
		return nil
	}

	expected := ToChecksumAddress(address)
	if "0x"+body != expected {
		return deployerr.WithDetails(deployerr.ErrInvalidChecksum, map[string]string{
			"expected": expected,
			"actual":   address,
		})
	}
	return nil
}

// LeftPadBytes pads a byte slice with zeros on the left to the specified length.
func LeftPadBytes(b []byte, length int) []byte {
	if len(b) >= length {
		return b
	}
	result := make([]byte, length)
	copy(result[length-len(b):], b)
	return result
}

package ethtypes

import (
	"strconv"

	ethcrypto "github.com/mrz1836/ethdeploy/internal/chain/eth/crypto"
	"github.com/mrz1836/ethdeploy/internal/chain/eth/rlp"
	deployerr "github.com/mrz1836/ethdeploy/pkg/errors"
)

// CreateAddress returns the address of a contract deployed by sender with
// the given nonce: keccak256(rlp([sender, nonce]))[12:].
func CreateAddress(sender Address, nonce uint64) Address {
	encoded := rlp.Encode([]any{sender.Bytes(), nonce})
	return BytesToAddress(ethcrypto.Keccak256(encoded)[12:])
}

// CreateAddress2 returns the CREATE2 address:
// keccak256(0xff ++ sender ++ salt ++ keccak256(initCode))[12:].
func CreateAddress2(sender Address, salt [32]byte, initCode []byte) Address {
	return BytesToAddress(ethcrypto.Keccak256(
		[]byte{0xff},
		sender.Bytes(),
		salt[:],
		ethcrypto.Keccak256(initCode),
	)[12:])
}

// VerifyContractAddress compares the derived deployment address against the
// address a node reported in the receipt.
func VerifyContractAddress(sender Address, nonce uint64, reported Address) error {
	expected := CreateAddress(sender, nonce)
	if expected == reported {
		return nil
	}
	return deployerr.WithDetails(deployerr.ErrReceiptMismatch, map[string]string{
		"expected": expected.String(),
		"reported": reported.String(),
		"sender":   sender.String(),
		"nonce":    strconv.FormatUint(nonce, 10),
	})
}

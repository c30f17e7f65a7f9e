// Package keys loads the deployer's signing key from a hex string, an
// age-encrypted key file or a BIP39 mnemonic, and keeps it in locked memory.
package keys

import (
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	ethcrypto "github.com/mrz1836/ethdeploy/internal/chain/eth/crypto"
	ethtypes "github.com/mrz1836/ethdeploy/internal/chain/eth/types"
	deployerr "github.com/mrz1836/ethdeploy/pkg/errors"
)

// Key is a secp256k1 private key together with the sender address it controls.
type Key struct {
	secret  *SecureBytes
	address ethtypes.Address
	origin  string
}

// FromBytes copies a raw 32-byte key into secure memory. The caller keeps
// ownership of b and should zero it.
func FromBytes(b []byte) (*Key, error) {
	if err := ethcrypto.ValidatePrivateKey(b); err != nil {
		return nil, err
	}
	addr, err := ethcrypto.DeriveAddress(b)
	if err != nil {
		return nil, err
	}
	return &Key{
		secret:  SecureBytesFromSlice(b),
		address: ethtypes.BytesToAddress(addr),
		origin:  "raw",
	}, nil
}

// FromHex parses a 64-character hex key with an optional 0x prefix.
func FromHex(s string) (*Key, error) {
	b, err := ethtypes.DecodeHex(strings.TrimSpace(s))
	if err != nil {
		return nil, deployerr.WithCause(deployerr.ErrInvalidPrivateKey, err)
	}
	defer zero(b)

	k, err := FromBytes(b)
	if err != nil {
		return nil, err
	}
	k.origin = "hex"
	return k, nil
}

// Generate creates a new random key.
func Generate() (*Key, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, deployerr.WithCause(deployerr.ErrInvalidPrivateKey, err)
	}
	b := priv.Key.Bytes()
	priv.Zero()
	defer zero(b[:])

	k, err := FromBytes(b[:])
	if err != nil {
		return nil, err
	}
	k.origin = "generated"
	return k, nil
}

// Address returns the sender address derived from the key.
func (k *Key) Address() ethtypes.Address {
	return k.address
}

// Origin names where the key came from: hex, file or mnemonic.
func (k *Key) Origin() string {
	return k.origin
}

// Bytes returns the raw key. The slice is only valid until Destroy.
func (k *Key) Bytes() []byte {
	return k.secret.Bytes()
}

// Destroy zeroes the key material.
func (k *Key) Destroy() {
	if k != nil && k.secret != nil {
		k.secret.Destroy()
	}
}

// hex returns the key as lowercase hex without prefix. Only used to hand the
// key to an encryptor; never log the result.
func (k *Key) hex() []byte {
	const digits = "0123456789abcdef"
	raw := k.Bytes()
	out := make([]byte, len(raw)*2)
	for i, b := range raw {
		out[i*2] = digits[b>>4]
		out[i*2+1] = digits[b&0x0f]
	}
	return out
}

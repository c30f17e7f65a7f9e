// Package ethtypes provides the legacy Ethereum transaction model, its EIP-155
// signer and contract address derivation.
package ethtypes

import (
	"encoding/hex"
	"math/big"

	ethcrypto "github.com/mrz1836/ethdeploy/internal/chain/eth/crypto"
	"github.com/mrz1836/ethdeploy/internal/chain/eth/rlp"
	deployerr "github.com/mrz1836/ethdeploy/pkg/errors"
)

// UnsignedTx is a legacy (pre-EIP-1559) transaction before signing.
// It is immutable once built; accessors return copies.
type UnsignedTx struct {
	nonce    uint64
	gasPrice *big.Int
	gas      uint64
	to       *Address // nil for contract creation
	value    *big.Int
	data     []byte
	chainID  *big.Int // nil only for decoded pre-EIP-155 transactions
}

// Nonce returns the sender account nonce.
func (tx *UnsignedTx) Nonce() uint64 { return tx.nonce }

// GasPrice returns the gas price in wei.
func (tx *UnsignedTx) GasPrice() *big.Int { return new(big.Int).Set(tx.gasPrice) }

// Gas returns the gas limit.
func (tx *UnsignedTx) Gas() uint64 { return tx.gas }

// Value returns the transferred amount in wei.
func (tx *UnsignedTx) Value() *big.Int { return new(big.Int).Set(tx.value) }

// Data returns a copy of the call data or constructor payload.
func (tx *UnsignedTx) Data() []byte {
	return append([]byte{}, tx.data...)
}

// To returns the recipient, or nil for contract creation.
func (tx *UnsignedTx) To() *Address {
	if tx.to == nil {
		return nil
	}
	to := *tx.to
	return &to
}

// ChainID returns the replay-protection chain id, or nil when the
// transaction is not replay protected.
func (tx *UnsignedTx) ChainID() *big.Int {
	if tx.chainID == nil {
		return nil
	}
	return new(big.Int).Set(tx.chainID)
}

// IsContractCreation reports whether the transaction deploys a contract.
func (tx *UnsignedTx) IsContractCreation() bool {
	return tx.to == nil
}

// fields returns the six common RLP fields.
func (tx *UnsignedTx) fields() []any {
	var to []byte
	if tx.to != nil {
		to = tx.to.Bytes()
	}
	return []any{tx.nonce, tx.gasPrice, tx.gas, to, tx.value, tx.data}
}

// SigningPayload returns the RLP list that is hashed for signing:
// [nonce, gasPrice, gas, to, value, data, chainId, "", ""] under EIP-155,
// or the bare six fields without a chain id.
func (tx *UnsignedTx) SigningPayload() []byte {
	fields := tx.fields()
	if tx.chainID != nil {
		fields = append(fields, tx.chainID, []byte{}, []byte{})
	}
	return rlp.Encode(fields)
}

// SigningHash returns the keccak256 digest of the signing payload.
func (tx *UnsignedTx) SigningHash() []byte {
	return ethcrypto.Keccak256(tx.SigningPayload())
}

// SignedTx is an UnsignedTx plus its (v, r, s) signature. The raw encoding
// and the hash are computed once at construction.
type SignedTx struct {
	tx   *UnsignedTx
	v    *big.Int
	r    *big.Int
	s    *big.Int
	raw  []byte
	hash ethcrypto.Hash
}

func newSignedTx(tx *UnsignedTx, v, r, s *big.Int) *SignedTx {
	fields := append(tx.fields(), v, r, s)
	raw := rlp.Encode(fields)
	return &SignedTx{
		tx:   tx,
		v:    v,
		r:    r,
		s:    s,
		raw:  raw,
		hash: ethcrypto.Keccak256Hash(raw),
	}
}

// Unsigned returns the transaction that was signed.
func (stx *SignedTx) Unsigned() *UnsignedTx { return stx.tx }

// RawBytes returns the RLP-encoded signed transaction, ready for broadcast.
func (stx *SignedTx) RawBytes() []byte {
	return append([]byte(nil), stx.raw...)
}

// RawHex returns the raw transaction hex-encoded with a 0x prefix.
func (stx *SignedTx) RawHex() string {
	return "0x" + hex.EncodeToString(stx.raw)
}

// Hash returns the transaction hash (keccak256 of the raw encoding).
func (stx *SignedTx) Hash() ethcrypto.Hash { return stx.hash }

// HashHex returns the transaction hash as a hex string with 0x prefix.
func (stx *SignedTx) HashHex() string { return stx.hash.Hex() }

// V returns the signature v value.
func (stx *SignedTx) V() *big.Int { return new(big.Int).Set(stx.v) }

// R returns the signature r value.
func (stx *SignedTx) R() *big.Int { return new(big.Int).Set(stx.r) }

// S returns the signature s value.
func (stx *SignedTx) S() *big.Int { return new(big.Int).Set(stx.s) }

// IsProtected reports whether v carries an EIP-155 chain id.
func (stx *SignedTx) IsProtected() bool {
	return stx.tx.chainID != nil
}

// RecoveryID returns the recovery id encoded in v.
func (stx *SignedTx) RecoveryID() byte {
	id, _, _ := splitV(stx.v)
	return id
}

// ChainID returns the chain id encoded in v, or nil for unprotected transactions.
func (stx *SignedTx) ChainID() *big.Int {
	return stx.tx.ChainID()
}

// Signature returns the recoverable signature carried by the transaction.
func (stx *SignedTx) Signature() (ethcrypto.Signature, error) {
	return ethcrypto.SignatureFromValues(stx.r, stx.s, stx.RecoveryID())
}

// Sender recovers the address that signed the transaction.
func (stx *SignedTx) Sender() (Address, error) {
	sig, err := stx.Signature()
	if err != nil {
		return Address{}, err
	}
	addr, err := ethcrypto.RecoverAddress(stx.tx.SigningHash(), sig)
	if err != nil {
		return Address{}, err
	}
	return BytesToAddress(addr), nil
}

// splitV separates v into recovery id and chain id. The chain id is nil for
// the pre-EIP-155 values 27 and 28.
func splitV(v *big.Int) (byte, *big.Int, error) {
	if v.IsInt64() && (v.Int64() == 27 || v.Int64() == 28) {
		return byte(v.Int64() - 27), nil, nil
	}
	if v.Cmp(big.NewInt(35)) < 0 {
		return 0, nil, deployerr.WithDetails(deployerr.ErrInvalidSignature, map[string]string{
			"v":      v.String(),
			"reason": "v must be 27, 28 or at least 35",
		})
	}
	x := new(big.Int).Sub(v, big.NewInt(35))
	recoveryID := byte(x.Bit(0))
	chainID := x.Rsh(x, 1)
	if chainID.Sign() <= 0 {
		return 0, nil, deployerr.WithDetails(deployerr.ErrInvalidChainID, map[string]string{
			"v":      v.String(),
			"reason": "v encodes chain id 0",
		})
	}
	return recoveryID, chainID, nil
}

// DecodeSignedTx parses a raw legacy transaction and validates its signature values.
func DecodeSignedTx(raw []byte) (*SignedTx, error) {
	item, err := rlp.DecodeExact(raw)
	if err != nil {
		return nil, err
	}
	fields, err := item.List()
	if err != nil {
		return nil, invalidTx("transaction must be an RLP list")
	}
	if len(fields) != 9 {
		return nil, invalidTx("legacy transaction must have 9 fields")
	}

	tx := &UnsignedTx{}
	if tx.nonce, err = fields[0].Uint64(); err != nil {
		return nil, fieldError("nonce", err)
	}
	if tx.gasPrice, err = fields[1].BigInt(); err != nil {
		return nil, fieldError("gasPrice", err)
	}
	if tx.gas, err = fields[2].Uint64(); err != nil {
		return nil, fieldError("gas", err)
	}
	to, err := fields[3].Bytes()
	if err != nil {
		return nil, fieldError("to", err)
	}
	switch len(to) {
	case 0:
	case AddressLength:
		addr := BytesToAddress(to)
		tx.to = &addr
	default:
		return nil, invalidTx("recipient must be empty or 20 bytes")
	}
	if tx.value, err = fields[4].BigInt(); err != nil {
		return nil, fieldError("value", err)
	}
	data, err := fields[5].Bytes()
	if err != nil {
		return nil, fieldError("data", err)
	}
	tx.data = append([]byte{}, data...)

	v, err := fields[6].BigInt()
	if err != nil {
		return nil, fieldError("v", err)
	}
	r, err := fields[7].BigInt()
	if err != nil {
		return nil, fieldError("r", err)
	}
	s, err := fields[8].BigInt()
	if err != nil {
		return nil, fieldError("s", err)
	}

	_, chainID, err := splitV(v)
	if err != nil {
		return nil, err
	}
	tx.chainID = chainID
	if err := ethcrypto.ValidateSignatureValues(r, s); err != nil {
		return nil, err
	}

	return newSignedTx(tx, v, r, s), nil
}

// DecodeSignedTxHex parses a hex-encoded raw transaction with an optional 0x prefix.
func DecodeSignedTxHex(s string) (*SignedTx, error) {
	raw, err := DecodeHex(s)
	if err != nil {
		return nil, err
	}
	return DecodeSignedTx(raw)
}

func invalidTx(reason string) error {
	return deployerr.WithDetails(deployerr.ErrInvalidTransaction, map[string]string{
		"reason": reason,
	})
}

func fieldError(field string, cause error) error {
	return deployerr.WithDetails(deployerr.WithCause(deployerr.ErrInvalidTransaction, cause), map[string]string{
		"field": field,
	})
}

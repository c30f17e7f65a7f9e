// Package compat cross-checks locally built transactions against go-ethereum,
// the reference client implementation.
package compat

import (
	"bytes"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	ethcrypto "github.com/mrz1836/ethdeploy/internal/chain/eth/crypto"
	ethtypes "github.com/mrz1836/ethdeploy/internal/chain/eth/types"
	deployerr "github.com/mrz1836/ethdeploy/pkg/errors"
)

// Decoded is what go-ethereum reads back from a raw transaction.
type Decoded struct {
	Sender  ethtypes.Address
	Hash    ethcrypto.Hash
	ChainID *big.Int
	Nonce   uint64
	To      *ethtypes.Address
}

// toReference converts an unsigned transaction to go-ethereum's legacy form.
func toReference(tx *ethtypes.UnsignedTx) *types.Transaction {
	var to *common.Address
	if addr := tx.To(); addr != nil {
		ref := common.Address(*addr)
		to = &ref
	}
	return types.NewTx(&types.LegacyTx{
		Nonce:    tx.Nonce(),
		GasPrice: tx.GasPrice(),
		Gas:      tx.Gas(),
		To:       to,
		Value:    tx.Value(),
		Data:     tx.Data(),
	})
}

// ReferenceSign signs tx with go-ethereum's EIP-155 signer and returns the raw
// encoding. go-ethereum derives ECDSA nonces with RFC 6979.
func ReferenceSign(tx *ethtypes.UnsignedTx, privateKey []byte) ([]byte, error) {
	chainID := tx.ChainID()
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, deployerr.ErrInvalidChainID
	}

	key, err := crypto.ToECDSA(privateKey)
	if err != nil {
		return nil, deployerr.WithCause(deployerr.ErrInvalidPrivateKey, err)
	}

	signed, err := types.SignTx(toReference(tx), types.NewEIP155Signer(chainID), key)
	if err != nil {
		return nil, deployerr.WithCause(deployerr.ErrInvalidSignature, err)
	}

	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, deployerr.Wrap(err, "encoding reference transaction")
	}
	return raw, nil
}

// VerifyRaw decodes raw with go-ethereum and recovers its sender.
func VerifyRaw(raw []byte) (*Decoded, error) {
	var tx types.Transaction
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, deployerr.WithCause(deployerr.ErrInvalidTransaction, err)
	}
	if tx.Type() != types.LegacyTxType {
		return nil, deployerr.WithDetails(deployerr.ErrInvalidTransaction, map[string]string{
			"reason": "not a legacy transaction",
		})
	}

	var signer types.Signer = types.HomesteadSigner{}
	var chainID *big.Int
	if tx.Protected() {
		chainID = tx.ChainId()
		signer = types.NewEIP155Signer(chainID)
	}

	sender, err := types.Sender(signer, &tx)
	if err != nil {
		return nil, deployerr.WithCause(deployerr.ErrInvalidSignature, err)
	}

	decoded := &Decoded{
		Sender:  ethtypes.Address(sender),
		Hash:    ethcrypto.Hash(tx.Hash()),
		ChainID: chainID,
		Nonce:   tx.Nonce(),
	}
	if to := tx.To(); to != nil {
		addr := ethtypes.Address(*to)
		decoded.To = &addr
	}
	return decoded, nil
}

// CrossCheck verifies stx against go-ethereum. Deterministic signatures must
// match the reference encoding byte for byte. Randomized signatures cannot, so
// for them the decoded sender, hash and fields are compared instead.
func CrossCheck(stx *ethtypes.SignedTx, privateKey []byte, strategy ethcrypto.NonceStrategy) error {
	if err := VerifyDecoded(stx); err != nil {
		return err
	}

	if strategy != ethcrypto.NonceDeterministic {
		return nil
	}

	reference, err := ReferenceSign(stx.Unsigned(), privateKey)
	if err != nil {
		return err
	}
	if !bytes.Equal(reference, stx.RawBytes()) {
		return mismatch("raw", stx.RawHex(), ethtypes.EncodeHex(reference))
	}
	return nil
}

// VerifyDecoded decodes stx with go-ethereum and compares the recovered
// sender, the hash and the nonce with the local decoding.
func VerifyDecoded(stx *ethtypes.SignedTx) error {
	decoded, err := VerifyRaw(stx.RawBytes())
	if err != nil {
		return err
	}

	sender, err := stx.Sender()
	if err != nil {
		return err
	}
	if decoded.Sender != sender {
		return mismatch("sender", sender.String(), decoded.Sender.String())
	}
	if decoded.Hash != stx.Hash() {
		return mismatch("hash", stx.HashHex(), decoded.Hash.Hex())
	}
	if decoded.Nonce != stx.Unsigned().Nonce() {
		return mismatch("nonce", strconv.FormatUint(stx.Unsigned().Nonce(), 10), strconv.FormatUint(decoded.Nonce, 10))
	}
	return nil
}

func mismatch(field, local, reference string) error {
	return deployerr.WithDetails(deployerr.ErrReferenceMismatch, map[string]string{
		"field":     field,
		"local":     local,
		"reference": reference,
	})
}

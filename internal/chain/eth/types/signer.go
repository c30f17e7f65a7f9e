package ethtypes

import (
	"io"
	"math/big"

	ethcrypto "github.com/mrz1836/ethdeploy/internal/chain/eth/crypto"
	deployerr "github.com/mrz1836/ethdeploy/pkg/errors"
)

// Signer produces EIP-155 signatures for legacy transactions.
// A Signer holds no mutable state and is safe for concurrent use.
type Signer struct {
	strategy ethcrypto.NonceStrategy
	entropy  io.Reader
}

// SignerOption configures a Signer.
type SignerOption func(*Signer)

// WithNonceStrategy selects deterministic or randomized ECDSA nonces.
func WithNonceStrategy(strategy ethcrypto.NonceStrategy) SignerOption {
	return func(s *Signer) {
		s.strategy = strategy
	}
}

// WithEntropy sets the entropy source for randomized nonces.
func WithEntropy(r io.Reader) SignerOption {
	return func(s *Signer) {
		s.entropy = r
	}
}

// NewSigner creates a Signer. Without options it uses randomized nonces;
// pass WithNonceStrategy(ethcrypto.NonceDeterministic) for reproducible output.
func NewSigner(opts ...SignerOption) *Signer {
	s := &Signer{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Strategy returns the configured nonce strategy.
func (s *Signer) Strategy() ethcrypto.NonceStrategy {
	return s.strategy
}

// DigestedTx is a transaction whose signing digest has been computed.
type DigestedTx struct {
	signer *Signer
	tx     *UnsignedTx
	digest []byte
}

// Digest computes the EIP-155 signing digest of tx.
func (s *Signer) Digest(tx *UnsignedTx) (*DigestedTx, error) {
	if tx == nil {
		return nil, deployerr.WithDetails(deployerr.ErrInvalidInput, map[string]string{
			"reason": "transaction is nil",
		})
	}
	if tx.chainID == nil || tx.chainID.Sign() <= 0 {
		return nil, deployerr.WithDetails(deployerr.ErrInvalidChainID, map[string]string{
			"reason": "chain id must be positive",
		})
	}
	return &DigestedTx{signer: s, tx: tx, digest: tx.SigningHash()}, nil
}

// Digest returns a copy of the 32-byte signing digest.
func (d *DigestedTx) Digest() []byte {
	return append([]byte(nil), d.digest...)
}

// Tx returns the transaction being signed.
func (d *DigestedTx) Tx() *UnsignedTx {
	return d.tx
}

// Sign signs the digest and assembles the raw transaction with
// v = recoveryId + chainId*2 + 35.
func (d *DigestedTx) Sign(privateKey []byte) (*SignedTx, error) {
	sig, err := ethcrypto.SignDigest(d.digest, privateKey, d.signer.strategy, d.signer.entropy)
	if err != nil {
		return nil, err
	}

	v := new(big.Int).Lsh(d.tx.chainID, 1)
	v.Add(v, big.NewInt(35+int64(sig.RecoveryID)))
	r := new(big.Int).SetBytes(sig.R[:])
	s := new(big.Int).SetBytes(sig.S[:])

	return newSignedTx(d.tx, v, r, s), nil
}

// Sign computes the digest of tx and signs it.
func (s *Signer) Sign(tx *UnsignedTx, privateKey []byte) (*SignedTx, error) {
	d, err := s.Digest(tx)
	if err != nil {
		return nil, err
	}
	return d.Sign(privateKey)
}

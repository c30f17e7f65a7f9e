package ethcrypto

import (
	"crypto/rand"
	"io"
	"math/big"
	"strconv"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	deployerr "github.com/mrz1836/ethdeploy/pkg/errors"
)

const (
	// SignatureLength is the length of an [R || S || V] signature.
	SignatureLength = 65

	// DigestLength is the length of a signing digest.
	DigestLength = 32

	// PrivateKeyLength is the length of a raw secp256k1 private key.
	PrivateKeyLength = 32

	compactSigMagicOffset = 27
)

// NonceStrategy selects how the per-signature ECDSA nonce is derived.
type NonceStrategy uint8

const (
	// NonceRandomized derives the nonce with RFC 6979 mixed with 32 bytes of
	// fresh entropy. Signatures are valid and recoverable but not reproducible.
	NonceRandomized NonceStrategy = iota

	// NonceDeterministic derives the nonce with plain RFC 6979, so the same
	// digest and key always yield the same (r, s). Reference clients sign this way.
	NonceDeterministic
)

// String returns the configuration name of the strategy.
func (n NonceStrategy) String() string {
	if n == NonceDeterministic {
		return "deterministic"
	}
	return "randomized"
}

// ParseNonceStrategy parses a strategy name as used in configuration.
func ParseNonceStrategy(s string) (NonceStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "deterministic", "rfc6979":
		return NonceDeterministic, nil
	case "randomized", "random", "":
		return NonceRandomized, nil
	default:
		return 0, deployerr.WithDetails(deployerr.ErrInvalidInput, map[string]string{
			"nonce_strategy": s,
			"expected":       "deterministic or randomized",
		})
	}
}

// Signature is a recoverable secp256k1 signature with a low S value.
type Signature struct {
	R          [32]byte
	S          [32]byte
	RecoveryID byte // 0 or 1
}

// Bytes returns the signature in [R || S || V] form with V in {0, 1}.
func (sig Signature) Bytes() []byte {
	out := make([]byte, SignatureLength)
	copy(out[0:32], sig.R[:])
	copy(out[32:64], sig.S[:])
	out[64] = sig.RecoveryID
	return out
}

// SignatureFromBytes parses an [R || S || V] signature. V may be 0/1 or 27/28.
func SignatureFromBytes(b []byte) (Signature, error) {
	var sig Signature
	if len(b) != SignatureLength {
		return sig, deployerr.WithDetails(deployerr.ErrInvalidSignature, map[string]string{
			"reason": "signature must be 65 bytes",
		})
	}
	v := b[64]
	if v >= compactSigMagicOffset {
		v -= compactSigMagicOffset
	}
	if v > 1 {
		return sig, deployerr.WithDetails(deployerr.ErrInvalidSignature, map[string]string{
			"reason": "recovery id must be 0 or 1",
		})
	}
	copy(sig.R[:], b[0:32])
	copy(sig.S[:], b[32:64])
	sig.RecoveryID = v
	return sig, nil
}

// ValidatePrivateKey checks that key is a 32-byte scalar in [1, n-1].
func ValidatePrivateKey(key []byte) error {
	if len(key) != PrivateKeyLength {
		return deployerr.WithDetails(deployerr.ErrInvalidPrivateKey, map[string]string{
			"reason": "private key must be 32 bytes",
		})
	}
	var scalar secp256k1.ModNScalar
	overflow := scalar.SetByteSlice(key)
	defer scalar.Zero()
	if overflow || scalar.IsZero() {
		return deployerr.WithDetails(deployerr.ErrInvalidPrivateKey, map[string]string{
			"reason": "private key is outside the curve order",
		})
	}
	return nil
}

// Sign signs a 32-byte digest deterministically (RFC 6979) and returns a 65-byte
// signature in [R || S || V] form where V is the recovery ID (0 or 1).
func Sign(hash, privateKey []byte) ([]byte, error) {
	sig, err := SignDigest(hash, privateKey, NonceDeterministic, nil)
	if err != nil {
		return nil, err
	}
	return sig.Bytes(), nil
}

// SignDigest signs a 32-byte digest with the given nonce strategy. The entropy
// reader is only used by NonceRandomized and defaults to crypto/rand.
func SignDigest(hash, privateKey []byte, strategy NonceStrategy, entropy io.Reader) (Signature, error) {
	if len(hash) != DigestLength {
		return Signature{}, deployerr.WithDetails(deployerr.ErrInvalidDigest, map[string]string{
			"length": strconv.Itoa(len(hash)),
		})
	}
	if err := ValidatePrivateKey(privateKey); err != nil {
		return Signature{}, err
	}

	privKey := secp256k1.PrivKeyFromBytes(privateKey)
	defer privKey.Zero()

	if strategy == NonceDeterministic {
		// SignCompact returns [27+recid || R || S].
		compact := ecdsa.SignCompact(privKey, hash, false)
		var sig Signature
		sig.RecoveryID = compact[0] - compactSigMagicOffset
		if sig.RecoveryID > 1 {
			return Signature{}, deployerr.WithDetails(deployerr.ErrInvalidSignature, map[string]string{
				"reason": "r overflowed the curve order",
			})
		}
		copy(sig.R[:], compact[1:33])
		copy(sig.S[:], compact[33:65])
		return sig, nil
	}

	if entropy == nil {
		entropy = rand.Reader
	}
	var extra [32]byte
	if _, err := io.ReadFull(entropy, extra[:]); err != nil {
		return Signature{}, deployerr.Wrap(err, "reading signing entropy")
	}
	return signWithExtra(&privKey.Key, hash, extra[:]), nil
}

// signWithExtra runs RFC 6979 nonce generation with additional data, then
// ECDSA with low-S normalization. With nil extra data it produces the same
// signature as the deterministic path.
func signWithExtra(privKey *secp256k1.ModNScalar, hash, extra []byte) Signature {
	var privKeyBytes [32]byte
	privKey.PutBytes(&privKeyBytes)
	defer func() {
		for i := range privKeyBytes {
			privKeyBytes[i] = 0
		}
	}()

	var e secp256k1.ModNScalar
	e.SetByteSlice(hash)

	for iteration := uint32(0); ; iteration++ {
		k := secp256k1.NonceRFC6979(privKeyBytes[:], hash, extra, nil, iteration)

		var kG secp256k1.JacobianPoint
		secp256k1.ScalarBaseMultNonConst(k, &kG)
		kG.ToAffine()

		var r secp256k1.ModNScalar
		overflow := r.SetBytes(kG.X.Bytes())
		if r.IsZero() || overflow != 0 {
			// Recovery ids 2 and 3 cannot be expressed in a legacy v value.
			k.Zero()
			continue
		}
		recoveryID := byte(kG.Y.IsOddBit())

		kinv := new(secp256k1.ModNScalar).InverseValNonConst(k)
		k.Zero()
		s := new(secp256k1.ModNScalar).Mul2(privKey, &r).Add(&e).Mul(kinv)
		if s.IsZero() {
			continue
		}
		if s.IsOverHalfOrder() {
			s.Negate()
			recoveryID ^= 0x01
		}

		return Signature{R: r.Bytes(), S: s.Bytes(), RecoveryID: recoveryID}
	}
}

// ValidateSignatureValues checks that r and s are in [1, n-1] and that s is
// in the lower half of the curve order.
func ValidateSignatureValues(r, s *big.Int) error {
	n := secp256k1.Params().N
	if r == nil || s == nil || r.Sign() <= 0 || s.Sign() <= 0 || r.Cmp(n) >= 0 || s.Cmp(n) >= 0 {
		return deployerr.WithDetails(deployerr.ErrInvalidSignature, map[string]string{
			"reason": "r and s must be in [1, n-1]",
		})
	}
	halfN := new(big.Int).Rsh(n, 1)
	if s.Cmp(halfN) > 0 {
		return deployerr.WithDetails(deployerr.ErrInvalidSignature, map[string]string{
			"reason": "s is not in the lower half of the curve order",
		})
	}
	return nil
}

// SignatureFromValues builds a Signature from big-endian r and s and a recovery id.
func SignatureFromValues(r, s *big.Int, recoveryID byte) (Signature, error) {
	if err := ValidateSignatureValues(r, s); err != nil {
		return Signature{}, err
	}
	if recoveryID > 1 {
		return Signature{}, deployerr.WithDetails(deployerr.ErrInvalidSignature, map[string]string{
			"reason": "recovery id must be 0 or 1",
		})
	}
	sig := Signature{RecoveryID: recoveryID}
	r.FillBytes(sig.R[:])
	s.FillBytes(sig.S[:])
	return sig, nil
}

// RecoverPublicKey recovers the uncompressed public key that produced sig over hash.
func RecoverPublicKey(hash []byte, sig Signature) ([]byte, error) {
	if len(hash) != DigestLength {
		return nil, deployerr.WithDetails(deployerr.ErrInvalidDigest, map[string]string{
			"length": strconv.Itoa(len(hash)),
		})
	}
	if sig.RecoveryID > 1 {
		return nil, deployerr.WithDetails(deployerr.ErrInvalidSignature, map[string]string{
			"reason": "recovery id must be 0 or 1",
		})
	}

	compact := make([]byte, SignatureLength)
	compact[0] = compactSigMagicOffset + sig.RecoveryID
	copy(compact[1:33], sig.R[:])
	copy(compact[33:65], sig.S[:])

	pubKey, _, err := ecdsa.RecoverCompact(compact, hash)
	if err != nil {
		return nil, deployerr.WithCause(deployerr.ErrInvalidSignature, err)
	}
	return pubKey.SerializeUncompressed(), nil
}

// RecoverAddress recovers the 20-byte address that produced sig over hash.
func RecoverAddress(hash []byte, sig Signature) ([]byte, error) {
	pubKey, err := RecoverPublicKey(hash, sig)
	if err != nil {
		return nil, err
	}
	return PublicKeyToAddress(pubKey)
}

// PrivateKeyToPublicKey derives the public key from a private key.
// Returns the uncompressed public key (65 bytes: 0x04 || X || Y).
func PrivateKeyToPublicKey(privateKey []byte) ([]byte, error) {
	if err := ValidatePrivateKey(privateKey); err != nil {
		return nil, err
	}

	privKey := secp256k1.PrivKeyFromBytes(privateKey)
	defer privKey.Zero()
	return privKey.PubKey().SerializeUncompressed(), nil
}

// PublicKeyToAddress derives an Ethereum address from an uncompressed public key.
// The public key may be 65 bytes (0x04 prefix) or the bare 64-byte X || Y.
func PublicKeyToAddress(publicKey []byte) ([]byte, error) {
	var pubKeyBytes []byte

	switch len(publicKey) {
	case 65:
		if publicKey[0] != 0x04 {
			return nil, deployerr.WithDetails(deployerr.ErrInvalidInput, map[string]string{
				"reason": "public key must start with 0x04",
			})
		}
		pubKeyBytes = publicKey[1:]
	case 64:
		pubKeyBytes = publicKey
	default:
		return nil, deployerr.WithDetails(deployerr.ErrInvalidInput, map[string]string{
			"reason": "public key must be 64 or 65 bytes",
		})
	}

	return Keccak256(pubKeyBytes)[12:], nil
}

// DeriveAddress derives an Ethereum address from a private key.
func DeriveAddress(privateKey []byte) ([]byte, error) {
	pubKey, err := PrivateKeyToPublicKey(privateKey)
	if err != nil {
		return nil, err
	}
	return PublicKeyToAddress(pubKey)
}

package ethcrypto

import (
	"bytes"
	"encoding/hex"
	"errors"
	"math/big"
	"math/rand/v2"
	"sync"
	"testing"
	"testing/iotest"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	deployerr "github.com/mrz1836/ethdeploy/pkg/errors"
)

const (
	// fixtureKeyHex is the well-known web3 documentation key. // gitleaks:allow
	fixtureKeyHex     = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	fixtureAddressHex = "2c7536e3605d9c16a7a3d7b1898e529396a65c23"

	// curveOrderHex is the secp256k1 group order n.
	curveOrderHex = "fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141"
)

var errEntropy = errors.New("entropy source exhausted")

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func TestKeccak256(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    [][]byte
		expected string
	}{
		{"empty input", [][]byte{{}}, "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"},
		{"no arguments", nil, "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"},
		{"hello", [][]byte{[]byte("hello")}, "1c8aff950685c2ed4bc3174f3472287b56d9517b9c948127319a09a7a36deac8"},
		{"split input", [][]byte{[]byte("hel"), []byte("lo")}, "1c8aff950685c2ed4bc3174f3472287b56d9517b9c948127319a09a7a36deac8"},
		{
			"transfer selector preimage",
			[][]byte{[]byte("transfer(address,uint256)")},
			"a9059cbb2ab09eb219583f4a59a5d0623ade346d962bcd4e46b11da047c9049b",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, hex.EncodeToString(Keccak256(tc.input...)))
		})
	}
}

func TestKeccak256Hash(t *testing.T) {
	t.Parallel()
	h := Keccak256Hash([]byte("hello"))
	assert.Equal(t, "0x1c8aff950685c2ed4bc3174f3472287b56d9517b9c948127319a09a7a36deac8", h.Hex())
	assert.Len(t, h.Bytes(), HashLength)
}

func TestHexToHash(t *testing.T) {
	t.Parallel()

	const hashHex = "0x1c8aff950685c2ed4bc3174f3472287b56d9517b9c948127319a09a7a36deac8"
	h, err := HexToHash(hashHex)
	require.NoError(t, err)
	assert.Equal(t, Keccak256Hash([]byte("hello")), h)

	text, err := h.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, hashHex, string(text))

	var decoded Hash
	require.NoError(t, decoded.UnmarshalText([]byte(hashHex[2:])))
	assert.Equal(t, h, decoded)

	for _, bad := range []string{"", "0x1234", hashHex + "00", "0xzz"} {
		_, err := HexToHash(bad)
		require.ErrorIs(t, err, deployerr.ErrInvalidHex, bad)
	}
}

func TestDeriveAddress(t *testing.T) {
	t.Parallel()

	addr, err := DeriveAddress(mustHex(t, fixtureKeyHex))
	require.NoError(t, err)
	assert.Equal(t, fixtureAddressHex, hex.EncodeToString(addr))
}

func TestValidatePrivateKey(t *testing.T) {
	t.Parallel()

	order := mustHex(t, curveOrderHex)
	orderMinusOne := bytes.Clone(order)
	orderMinusOne[31]--
	one := make([]byte, 32)
	one[31] = 1

	tests := []struct {
		name  string
		key   []byte
		valid bool
	}{
		{"fixture key", mustHex(t, fixtureKeyHex), true},
		{"one", one, true},
		{"order minus one", orderMinusOne, true},
		{"zero", make([]byte, 32), false},
		{"curve order", order, false},
		{"all ones", bytes.Repeat([]byte{0xff}, 32), false},
		{"too short", []byte{1, 2, 3}, false},
		{"too long", make([]byte, 33), false},
		{"nil", nil, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := ValidatePrivateKey(tc.key)
			if tc.valid {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, deployerr.ErrInvalidPrivateKey)
			assert.True(t, deployerr.IsSigning(err))

			_, signErr := Sign(make([]byte, 32), tc.key)
			require.ErrorIs(t, signErr, deployerr.ErrInvalidPrivateKey)
			_, pubErr := PrivateKeyToPublicKey(tc.key)
			require.ErrorIs(t, pubErr, deployerr.ErrInvalidPrivateKey)
		})
	}
}

func TestSign_knownVector(t *testing.T) {
	t.Parallel()

	// EIP-155 example: signing hash of the nonce-9 transfer with key 0x4646...46.
	digest := mustHex(t, "daf5a779ae972f972197303d7b574746c7ef83eadac0f2791ad23db92e4c8e53")
	key := bytes.Repeat([]byte{0x46}, 32)

	sig, err := Sign(digest, key)
	require.NoError(t, err)
	require.Len(t, sig, SignatureLength)
	assert.Equal(t, "28ef61340bd939bc2195fe537567866003e1a15d3c71ff63e1590620aa636276", hex.EncodeToString(sig[:32]))
	assert.Equal(t, "67cbe9d8997f761aecb703304b3800ccf555c9f3dc64214b297fb1966a3b6d83", hex.EncodeToString(sig[32:64]))
	assert.Equal(t, byte(0), sig[64])
}

func TestSignDigest_invalidDigest(t *testing.T) {
	t.Parallel()

	key := mustHex(t, fixtureKeyHex)
	for _, n := range []int{0, 31, 33, 64} {
		_, err := SignDigest(make([]byte, n), key, NonceDeterministic, nil)
		require.ErrorIs(t, err, deployerr.ErrInvalidDigest)
		assert.True(t, deployerr.IsSigning(err))
	}
}

func TestSignDigest_randomized(t *testing.T) {
	t.Parallel()

	key := mustHex(t, fixtureKeyHex)
	digest := Keccak256([]byte("randomized"))

	det, err := SignDigest(digest, key, NonceDeterministic, nil)
	require.NoError(t, err)

	first, err := SignDigest(digest, key, NonceRandomized, bytes.NewReader(bytes.Repeat([]byte{0x01}, 32)))
	require.NoError(t, err)
	second, err := SignDigest(digest, key, NonceRandomized, bytes.NewReader(bytes.Repeat([]byte{0x02}, 32)))
	require.NoError(t, err)

	assert.NotEqual(t, det.R, first.R)
	assert.NotEqual(t, first.R, second.R)

	for _, sig := range []Signature{first, second} {
		addr, err := RecoverAddress(digest, sig)
		require.NoError(t, err)
		assert.Equal(t, fixtureAddressHex, hex.EncodeToString(addr))
	}

	_, err = SignDigest(digest, key, NonceRandomized, iotest.ErrReader(errEntropy))
	require.ErrorIs(t, err, errEntropy)
}

func TestSignWithExtra_matchesCompactSigner(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(6979, 155)) //nolint:gosec // deterministic test data
	for i := 0; i < 25; i++ {
		key := randomKey(t, rng)
		digest := Keccak256(key, []byte{byte(i)})

		priv := secp256k1.PrivKeyFromBytes(key)
		compact := ecdsa.SignCompact(priv, digest, false)
		got := signWithExtra(&priv.Key, digest, nil)

		assert.Equal(t, compact[1:33], got.R[:])
		assert.Equal(t, compact[33:65], got.S[:])
		assert.Equal(t, compact[0]-27, got.RecoveryID)
	}
}

func TestSignatureRecoverability(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(1, 2)) //nolint:gosec // deterministic test data
	for i := 0; i < 40; i++ {
		key := randomKey(t, rng)
		digest := make([]byte, 32)
		for j := range digest {
			digest[j] = byte(rng.UintN(256))
		}
		expected, err := DeriveAddress(key)
		require.NoError(t, err)

		for _, strategy := range []NonceStrategy{NonceDeterministic, NonceRandomized} {
			sig, err := SignDigest(digest, key, strategy, nil)
			require.NoError(t, err)

			r := new(secp256k1.ModNScalar)
			require.False(t, r.SetByteSlice(sig.R[:]), "r must be below the curve order")
			require.False(t, r.IsZero())
			s := new(secp256k1.ModNScalar)
			require.False(t, s.SetByteSlice(sig.S[:]))
			require.False(t, s.IsZero())
			assert.False(t, s.IsOverHalfOrder(), "s must be low")

			recovered, err := RecoverAddress(digest, sig)
			require.NoError(t, err)
			assert.Equal(t, expected, recovered, "strategy %s iteration %d", strategy, i)
		}
	}
}

func randomKey(t *testing.T, rng *rand.Rand) []byte {
	t.Helper()
	for {
		key := make([]byte, 32)
		for i := range key {
			key[i] = byte(rng.UintN(256))
		}
		if ValidatePrivateKey(key) == nil {
			return key
		}
	}
}

func TestSignatureFromBytes(t *testing.T) {
	t.Parallel()

	digest := Keccak256([]byte("roundtrip"))
	raw, err := Sign(digest, mustHex(t, fixtureKeyHex))
	require.NoError(t, err)

	sig, err := SignatureFromBytes(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, sig.Bytes())

	legacy := bytes.Clone(raw)
	legacy[64] += 27
	fromLegacy, err := SignatureFromBytes(legacy)
	require.NoError(t, err)
	assert.Equal(t, sig, fromLegacy)

	bad := bytes.Clone(raw)
	bad[64] = 2
	_, err = SignatureFromBytes(bad)
	require.ErrorIs(t, err, deployerr.ErrInvalidSignature)

	_, err = SignatureFromBytes(raw[:64])
	require.ErrorIs(t, err, deployerr.ErrInvalidSignature)
}

func TestRecoverPublicKey_errors(t *testing.T) {
	t.Parallel()

	_, err := RecoverPublicKey(make([]byte, 31), Signature{})
	require.ErrorIs(t, err, deployerr.ErrInvalidDigest)

	_, err = RecoverPublicKey(make([]byte, 32), Signature{RecoveryID: 3})
	require.ErrorIs(t, err, deployerr.ErrInvalidSignature)

	// r = s = 0 is never a valid signature.
	_, err = RecoverPublicKey(make([]byte, 32), Signature{})
	require.ErrorIs(t, err, deployerr.ErrInvalidSignature)
}

func TestPublicKeyToAddress_edgeCases(t *testing.T) {
	t.Parallel()

	pub, err := PrivateKeyToPublicKey(mustHex(t, fixtureKeyHex))
	require.NoError(t, err)

	withPrefix, err := PublicKeyToAddress(pub)
	require.NoError(t, err)
	bare, err := PublicKeyToAddress(pub[1:])
	require.NoError(t, err)
	assert.Equal(t, withPrefix, bare)

	badPrefix := bytes.Clone(pub)
	badPrefix[0] = 0x02
	_, err = PublicKeyToAddress(badPrefix)
	require.ErrorIs(t, err, deployerr.ErrInvalidInput)

	_, err = PublicKeyToAddress(pub[:33])
	require.ErrorIs(t, err, deployerr.ErrInvalidInput)
}

func TestParseNonceStrategy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected NonceStrategy
		wantErr  bool
	}{
		{"deterministic", NonceDeterministic, false},
		{"RFC6979", NonceDeterministic, false},
		{" randomized ", NonceRandomized, false},
		{"", NonceRandomized, false},
		{"sometimes", 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			t.Parallel()
			got, err := ParseNonceStrategy(tc.input)
			if tc.wantErr {
				require.ErrorIs(t, err, deployerr.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}

	assert.Equal(t, "deterministic", NonceDeterministic.String())
	assert.Equal(t, "randomized", NonceRandomized.String())
}

func TestToChecksumAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected string
	}{
		{"0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"},
		{"0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359", "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"},
		{"0xdbf03b407c01e7cd3cbea99509d93f8dddc8c6fb", "0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB"},
		{"D1220A0CF47C7B9BE7A2E6BA89F429762E7B9ADB", "0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb"},
		{"0xf0109fc8df283027b6285cc889f5aa624eac1f55", "0xF0109fC8DF283027b6285cc889F5aA624EaC1F55"},
		{"not an address", "not an address"},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, ToChecksumAddress(tc.input))
		})
	}
}

func TestValidateChecksum(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateChecksum("0xF0109fC8DF283027b6285cc889F5aA624EaC1F55"))
	require.NoError(t, ValidateChecksum("0xf0109fc8df283027b6285cc889f5aa624eac1f55"))
	require.NoError(t, ValidateChecksum("0xF0109FC8DF283027B6285CC889F5AA624EAC1F55"))

	err := ValidateChecksum("0xf0109fC8DF283027b6285cc889F5aA624EaC1F55")
	require.ErrorIs(t, err, deployerr.ErrInvalidChecksum)

	err = ValidateChecksum("0x1234")
	require.ErrorIs(t, err, deployerr.ErrInvalidAddress)
}

func TestLeftPadBytes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    []byte
		length   int
		expected []byte
	}{
		{"pad short", []byte{1, 2}, 4, []byte{0, 0, 1, 2}},
		{"no pad needed", []byte{1, 2, 3, 4}, 4, []byte{1, 2, 3, 4}},
		{"longer than target", []byte{1, 2, 3, 4, 5}, 4, []byte{1, 2, 3, 4, 5}},
		{"empty input", []byte{}, 4, []byte{0, 0, 0, 0}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, LeftPadBytes(tc.input, tc.length))
		})
	}
}

func TestSign_concurrent(t *testing.T) {
	t.Parallel()

	privKey := mustHex(t, fixtureKeyHex)
	hash := Keccak256([]byte("test message"))

	const numGoroutines = 50
	results := make(chan []byte, numGoroutines)
	var wg sync.WaitGroup

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sig, err := Sign(hash, privKey)
			if err != nil {
				t.Errorf("failed to sign: %v", err)
				return
			}
			results <- sig
		}()
	}

	wg.Wait()
	close(results)

	var first []byte
	for sig := range results {
		if first == nil {
			first = sig
			continue
		}
		assert.Equal(t, first, sig)
	}
	require.Len(t, first, SignatureLength)
}

func TestValidateSignatureValues(t *testing.T) {
	t.Parallel()

	n, _ := new(big.Int).SetString("fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141", 16)
	halfN := new(big.Int).Rsh(n, 1)

	tests := []struct {
		name    string
		r, s    *big.Int
		wantErr bool
	}{
		{"minimal", big.NewInt(1), big.NewInt(1), false},
		{"half order s", big.NewInt(1), halfN, false},
		{"nil r", nil, big.NewInt(1), true},
		{"zero r", big.NewInt(0), big.NewInt(1), true},
		{"zero s", big.NewInt(1), big.NewInt(0), true},
		{"r equals order", new(big.Int).Set(n), big.NewInt(1), true},
		{"high s", big.NewInt(1), new(big.Int).Add(halfN, big.NewInt(1)), true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateSignatureValues(tc.r, tc.s)
			if tc.wantErr {
				require.ErrorIs(t, err, deployerr.ErrInvalidSignature)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestSignatureFromValues(t *testing.T) {
	t.Parallel()

	sig, err := SignatureFromValues(big.NewInt(0x0102), big.NewInt(3), 1)
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), sig.R[30])
	assert.Equal(t, byte(0x02), sig.R[31])
	assert.Equal(t, byte(0x03), sig.S[31])
	assert.Equal(t, byte(1), sig.RecoveryID)

	_, err = SignatureFromValues(big.NewInt(1), big.NewInt(1), 2)
	require.ErrorIs(t, err, deployerr.ErrInvalidSignature)
}

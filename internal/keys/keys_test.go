package keys

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ethtypes "github.com/mrz1836/ethdeploy/internal/chain/eth/types"
	deployerr "github.com/mrz1836/ethdeploy/pkg/errors"
)

const (
	// fixtureKeyHex is the well-known web3 documentation key. // gitleaks:allow
	fixtureKeyHex  = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	fixtureAddress = "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"

	// testMnemonic is the public development mnemonic shipped with local node tooling.
	testMnemonic = "test test test test test test test test test test test junk"
)

var errNoTTY = errors.New("no terminal")

func TestFromHex(t *testing.T) {
	t.Parallel()

	for _, input := range []string{fixtureKeyHex, "0x" + fixtureKeyHex, "  0x" + fixtureKeyHex + "\n"} {
		k, err := FromHex(input)
		require.NoError(t, err)
		assert.Equal(t, fixtureAddress, k.Address().String())
		assert.Equal(t, "hex", k.Origin())
		assert.Len(t, k.Bytes(), 32)
		k.Destroy()
		assert.Nil(t, k.Bytes())
	}
}

func TestFromHex_invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"not hex", "0xzz"},
		{"short", "0x1234"},
		{"zero", "0x" + "00000000000000000000000000000000" + "00000000000000000000000000000000"},
		{"curve order", "fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := FromHex(tc.input)
			require.ErrorIs(t, err, deployerr.ErrInvalidPrivateKey)
			assert.Equal(t, deployerr.ExitInput, deployerr.ExitCode(err))
		})
	}
}

func TestKey_DestroyNil(t *testing.T) {
	t.Parallel()

	var k *Key
	assert.NotPanics(t, k.Destroy)
}

func TestFromMnemonic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		mnemonic   string
		passphrase string
		account    uint32
		index      uint32
		want       string
	}{
		{"index 0", testMnemonic, "", 0, 0, "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"},
		{"index 1", testMnemonic, "", 0, 1, "0x70997970c51812dc3a010c7d01b50e0d17dc79c8"},
		{"account 1", testMnemonic, "", 1, 0, "0x8c8d35429f74ec245f8ef2f4fd1e551cff97d650"},
		{"passphrase", testMnemonic, "TREZOR", 0, 0, "0x9313778b3753108128b9c476ebdd42fbd566f4ed"},
		{"messy input", "1. Test, test\n2. test  test test test test test test test test JUNK", "", 0, 0, "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			k, err := FromMnemonic(tc.mnemonic, tc.passphrase, tc.account, tc.index)
			require.NoError(t, err)
			defer k.Destroy()

			assert.Equal(t, ethtypes.MustHexToAddress(tc.want), k.Address())
			assert.Equal(t, "mnemonic", k.Origin())
		})
	}
}

func TestFromMnemonic_knownKey(t *testing.T) {
	t.Parallel()

	k, err := FromMnemonic(testMnemonic, "", 0, 0)
	require.NoError(t, err)
	defer k.Destroy()

	assert.Equal(t, "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80", string(k.hex()))
}

func TestValidateMnemonic(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateMnemonic(testMnemonic))

	err := ValidateMnemonic("test test test")
	require.ErrorIs(t, err, deployerr.ErrInvalidMnemonic)

	err = ValidateMnemonic("test test test test test test test test test test test junk junk")
	require.ErrorIs(t, err, deployerr.ErrInvalidMnemonic)

	// Valid words, bad checksum.
	err = ValidateMnemonic("test test test test test test test test test test test test")
	require.ErrorIs(t, err, deployerr.ErrInvalidMnemonic)
	assert.Contains(t, err.Error(), "checksum")

	err = ValidateMnemonic("test test test test test test test test test test test junkk")
	require.ErrorIs(t, err, deployerr.ErrInvalidMnemonic)
	var de *deployerr.DeployError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, `did you mean "junk"?`, de.Suggestion)
	assert.Equal(t, "12", de.Details["position"])
}

func TestDerivationPath(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "m/44'/60'/0'/0/0", DerivationPath(0, 0))
	assert.Equal(t, "m/44'/60'/2'/0/7", DerivationPath(2, 7))
}

func TestKeyFile_RoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "keys", "deployer.key.age")
	k, err := FromHex(fixtureKeyHex)
	require.NoError(t, err)

	require.NoError(t, SaveFile(path, k, "correct horse", false))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(keyFilePerm), info.Mode().Perm())

	raw, err := os.ReadFile(path) //nolint:gosec // G304: Test path from t.TempDir()
	require.NoError(t, err)
	assert.NotContains(t, string(raw), fixtureKeyHex)

	loaded, err := LoadFile(path, "correct horse")
	require.NoError(t, err)
	defer loaded.Destroy()
	assert.Equal(t, k.Address(), loaded.Address())
	assert.Equal(t, "file", loaded.Origin())

	_, err = LoadFile(path, "wrong horse")
	require.ErrorIs(t, err, deployerr.ErrDecryptionFailed)
	assert.Equal(t, deployerr.ExitAuth, deployerr.ExitCode(err))

	err = SaveFile(path, k, "correct horse", false)
	require.ErrorIs(t, err, deployerr.ErrInvalidInput)
	require.NoError(t, SaveFile(path, k, "another", true))
}

func TestLoadFile_missing(t *testing.T) {
	t.Parallel()

	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.age"), "x")
	require.ErrorIs(t, err, deployerr.ErrKeyNotFound)
}

func TestEncrypt_emptyPassphrase(t *testing.T) {
	t.Parallel()

	_, err := Encrypt([]byte("data"), "")
	require.ErrorIs(t, err, deployerr.ErrInvalidInput)
}

func TestDecrypt_corrupt(t *testing.T) {
	t.Parallel()

	_, err := Decrypt([]byte("not an age file"), "pw")
	require.ErrorIs(t, err, deployerr.ErrDecryptionFailed)
}

func TestLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	keyFile := filepath.Join(dir, "deployer.key.age")
	k, err := FromHex(fixtureKeyHex)
	require.NoError(t, err)
	require.NoError(t, SaveFile(keyFile, k, "pw", false))

	passphrase := func(prompt string) (string, error) {
		assert.Contains(t, prompt, keyFile)
		return "pw", nil
	}
	failing := func(string) (string, error) { return "", errNoTTY }

	tests := []struct {
		name    string
		spec    Spec
		prompt  PassphraseFunc
		want    string
		wantErr error
	}{
		{"hex", Spec{Source: SourceHex, Hex: fixtureKeyHex}, nil, fixtureAddress, nil},
		{"file", Spec{Source: SourceFile, File: keyFile}, passphrase, fixtureAddress, nil},
		{"mnemonic", Spec{Source: SourceMnemonic, Mnemonic: testMnemonic, Index: 1}, nil, "0x70997970C51812dc3A010C7d01b50e0d17dc79C8", nil},
		{"hex missing", Spec{Source: SourceHex}, nil, "", deployerr.ErrKeyNotFound},
		{"file missing", Spec{Source: SourceFile}, passphrase, "", deployerr.ErrKeyNotFound},
		{"file without prompt", Spec{Source: SourceFile, File: keyFile}, nil, "", deployerr.ErrDecryptionFailed},
		{"prompt fails", Spec{Source: SourceFile, File: keyFile}, failing, "", errNoTTY},
		{"mnemonic missing", Spec{Source: SourceMnemonic}, nil, "", deployerr.ErrKeyNotFound},
		{"unknown source", Spec{Source: "ledger"}, nil, "", deployerr.ErrInvalidInput},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := Load(tc.spec, tc.prompt)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			defer got.Destroy()
			assert.Equal(t, tc.want, got.Address().String())
		})
	}
}

func TestParseSource(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Source{"hex": SourceHex, " FILE ": SourceFile, "Mnemonic": SourceMnemonic} {
		got, err := ParseSource(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseSource("ledger")
	require.ErrorIs(t, err, deployerr.ErrInvalidInput)
}

func TestSecureBytes(t *testing.T) {
	t.Parallel()

	src := []byte{1, 2, 3, 4}
	sb := SecureBytesFromSlice(src)
	assert.Equal(t, src, sb.Bytes())
	assert.Equal(t, 4, sb.Len())

	data := sb.Bytes()
	sb.Destroy()
	assert.Equal(t, []byte{0, 0, 0, 0}, data)
	assert.Nil(t, sb.Bytes())
	assert.Equal(t, 0, sb.Len())
	assert.False(t, sb.IsLocked())

	assert.NotPanics(t, sb.Destroy)

	empty := NewSecureBytes(0)
	assert.False(t, empty.IsLocked())
	empty.Destroy()
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	a, err := Generate()
	require.NoError(t, err)
	defer a.Destroy()
	b, err := Generate()
	require.NoError(t, err)
	defer b.Destroy()

	assert.Equal(t, "generated", a.Origin())
	assert.Len(t, a.Bytes(), 32)
	assert.NotEqual(t, a.Address(), b.Address())

	again, err := FromBytes(a.Bytes())
	require.NoError(t, err)
	assert.Equal(t, a.Address(), again.Address())
}

package cli

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	deployerr "github.com/mrz1836/ethdeploy/pkg/errors"
)

func writeManifest(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "deploy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestManifest_Requests(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Token.json"),
		[]byte(`{"bytecode":"0x6080","deployedBytecode":"0x6001"}`), 0o600))
	path := writeManifest(t, dir, `contracts:
  - name: Token
    bytecode: "@Token.json"
    types: [uint256, string, "address[]"]
    args:
      - 1000000
      - TKN
      - ["0x3535353535353535353535353535353535353535"]
    value: 1gwei
    gas: 500000
  - name: Plain
    bytecode: "0x6001"
    verify_code: false
`)

	m, err := loadManifest(path)
	require.NoError(t, err)

	chainID := big.NewInt(31337)
	reqs, err := m.requests(chainID, nil, true, false)
	require.NoError(t, err)
	require.Len(t, reqs, 2)

	token := reqs[0]
	assert.Equal(t, []byte{0x60, 0x80}, token.Bytecode)
	assert.Equal(t, []string{"uint256", "string", "address[]"}, token.ConstructorTypes)
	require.Len(t, token.ConstructorArgs, 3)
	assert.Equal(t, "TKN", token.ConstructorArgs[1])
	require.NotNil(t, token.Value)
	assert.Equal(t, "1000000000", token.Value.String())
	require.NotNil(t, token.Gas)
	assert.Equal(t, uint64(500000), *token.Gas)
	assert.Equal(t, []byte{0x60, 0x01}, token.ExpectedRuntime)
	assert.Equal(t, chainID, token.ChainID)
	assert.Nil(t, token.Nonce)

	plain := reqs[1]
	assert.Nil(t, plain.ExpectedRuntime, "verify_code: false overrides the flag")
	assert.Nil(t, plain.Value)
	assert.Nil(t, plain.Gas)
}

func TestManifest_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		is   error
	}{
		{"empty", "contracts: []\n", deployerr.ErrMissingField},
		{"unknown field", "contracts:\n  - bytecode: \"0x00\"\n    nonce: 3\n", deployerr.ErrInvalidInput},
		{"not yaml", "contracts: [\n", deployerr.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := loadManifest(writeManifest(t, t.TempDir(), tt.body))
			require.ErrorIs(t, err, tt.is)
		})
	}

	entryTests := []struct {
		name string
		body string
		is   error
	}{
		{"missing bytecode", "contracts:\n  - name: A\n", deployerr.ErrMissingField},
		{"arg count", "contracts:\n  - bytecode: \"0x00\"\n    types: [uint256]\n", deployerr.ErrABIArgumentCount},
		{"bad value", "contracts:\n  - bytecode: \"0x00\"\n    value: lots\n", deployerr.ErrInvalidInput},
		{"missing file", "contracts:\n  - bytecode: \"@absent.bin\"\n", deployerr.ErrNotFound},
		{"runtime required", "contracts:\n  - bytecode: \"0x00\"\n    verify_code: true\n", deployerr.ErrMissingField},
	}
	for _, tt := range entryTests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m, err := loadManifest(writeManifest(t, t.TempDir(), tt.body))
			require.NoError(t, err)
			_, err = m.requests(nil, nil, false, false)
			require.ErrorIs(t, err, tt.is)
			assert.Contains(t, err.Error(), "manifest entry 1")
		})
	}
}

func TestManifest_Resolve(t *testing.T) {
	t.Parallel()

	m := &manifest{dir: filepath.Join("projects", "app")}
	assert.Equal(t, "0x00", m.resolve("0x00"))
	assert.Equal(t, "@"+filepath.Join("projects", "app", "build", "A.bin"), m.resolve("@build/A.bin"))
	abs := filepath.Join(string(filepath.Separator), "tmp", "A.bin")
	assert.Equal(t, "@"+abs, m.resolve("@"+abs))
}

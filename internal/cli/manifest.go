package cli

import (
	"bytes"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mrz1836/ethdeploy/internal/chain"
	"github.com/mrz1836/ethdeploy/internal/service/deploy"
	deployerr "github.com/mrz1836/ethdeploy/pkg/errors"
)

// manifest lists deployments to run in order from one sender.
//
//	contracts:
//	  - name: Token
//	    bytecode: "@artifacts/Token.json"
//	    types: [uint256, string]
//	    args: ["1000000", "TKN"]
//	  - name: Vault
//	    bytecode: "@build/Vault.bin"
//	    value: 1ether
//
// File references are resolved relative to the manifest.
type manifest struct {
	Contracts []manifestEntry `yaml:"contracts"`

	dir string
}

// manifestEntry is one deployment in a manifest.
type manifestEntry struct {
	Name       string   `yaml:"name"`
	Bytecode   string   `yaml:"bytecode"`
	Types      []string `yaml:"types"`
	Args       []any    `yaml:"args"`
	Value      string   `yaml:"value"`
	Gas        uint64   `yaml:"gas"`
	Runtime    string   `yaml:"runtime"`
	VerifyCode *bool    `yaml:"verify_code"`
}

// loadManifest reads and checks a manifest file.
func loadManifest(path string) (*manifest, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is supplied by the operator
	if err != nil {
		return nil, deployerr.WithDetails(deployerr.WithCause(deployerr.ErrNotFound, err), map[string]string{
			"manifest": path,
		})
	}

	var m manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, deployerr.WithDetails(deployerr.WithCause(deployerr.ErrInvalidInput, err), map[string]string{
			"manifest": path,
		})
	}
	if len(m.Contracts) == 0 {
		return nil, deployerr.WithDetails(deployerr.ErrMissingField, map[string]string{
			"manifest": path,
			"field":    "contracts",
		})
	}
	m.dir = filepath.Dir(path)
	return &m, nil
}

// requests converts the manifest into deploy requests sharing the chain id
// and gas price given on the command line.
func (m *manifest) requests(chainID, gasPrice *big.Int, verifyCode, dryRun bool) ([]*deploy.Request, error) {
	reqs := make([]*deploy.Request, 0, len(m.Contracts))
	for i := range m.Contracts {
		req, err := m.request(&m.Contracts[i], chainID, gasPrice, verifyCode, dryRun)
		if err != nil {
			return nil, deployerr.Wrap(err, "manifest entry %s", m.Contracts[i].label(i))
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

func (m *manifest) request(e *manifestEntry, chainID, gasPrice *big.Int, verifyCode, dryRun bool) (*deploy.Request, error) {
	if e.Bytecode == "" {
		return nil, deployerr.WithDetails(deployerr.ErrMissingField, map[string]string{"field": "bytecode"})
	}
	c, err := readHexArg("bytecode", m.resolve(e.Bytecode))
	if err != nil {
		return nil, err
	}
	if len(e.Types) != len(e.Args) {
		return nil, deployerr.WithDetails(deployerr.ErrABIArgumentCount, map[string]string{
			"types": strconv.Itoa(len(e.Types)),
			"args":  strconv.Itoa(len(e.Args)),
		})
	}

	req := &deploy.Request{
		Bytecode:         c.creation,
		ConstructorTypes: e.Types,
		ConstructorArgs:  e.Args,
		GasPrice:         gasPrice,
		ChainID:          chainID,
		DryRun:           dryRun,
	}
	if e.Value != "" {
		if req.Value, err = chain.ParseWei(e.Value); err != nil {
			return nil, err
		}
	}
	if e.Gas > 0 {
		gas := e.Gas
		req.Gas = &gas
	}

	if e.VerifyCode != nil {
		verifyCode = *e.VerifyCode
	}
	if verifyCode {
		runtime := c.runtime
		if e.Runtime != "" {
			rc, err := readHexArg("runtime", m.resolve(e.Runtime))
			if err != nil {
				return nil, err
			}
			runtime = rc.creation
		}
		if len(runtime) == 0 {
			return nil, missingRuntime()
		}
		req.ExpectedRuntime = runtime
	}
	return req, nil
}

// resolve makes @file references relative to the manifest directory.
func (m *manifest) resolve(value string) string {
	path, ok := strings.CutPrefix(value, "@")
	if !ok || filepath.IsAbs(path) {
		return value
	}
	return "@" + filepath.Join(m.dir, path)
}

func (e *manifestEntry) label(i int) string {
	if e.Name != "" {
		return strconv.Itoa(i+1) + " (" + e.Name + ")"
	}
	return strconv.Itoa(i + 1)
}

package ethtypes

import (
	"math/big"

	"github.com/mrz1836/ethdeploy/internal/chain/eth/abi"
	deployerr "github.com/mrz1836/ethdeploy/pkg/errors"
)

// TxParams holds caller-supplied transaction fields. Nonce, GasPrice, Gas and
// ChainID are required; Value defaults to zero and Data to empty. A nil To
// means contract creation.
type TxParams struct {
	Nonce    *uint64
	GasPrice *big.Int
	Gas      *uint64
	To       *Address
	Value    *big.Int
	Data     []byte
	ChainID  *big.Int
}

// Uint64 returns a pointer to v, for filling optional TxParams fields.
func Uint64(v uint64) *uint64 {
	return &v
}

// Validate checks that all required fields are present and non-negative.
func (p TxParams) Validate() error {
	if p.Nonce == nil {
		return missingField("nonce")
	}
	if p.GasPrice == nil {
		return missingField("gasPrice")
	}
	if p.Gas == nil {
		return missingField("gas")
	}
	if p.ChainID == nil {
		return missingField("chainId")
	}

	for name, v := range map[string]*big.Int{
		"gasPrice": p.GasPrice,
		"value":    p.Value,
		"chainId":  p.ChainID,
	} {
		if v != nil && v.Sign() < 0 {
			return deployerr.WithDetails(deployerr.ErrInvalidInput, map[string]string{
				"field":  name,
				"reason": "must not be negative",
			})
		}
	}
	return nil
}

// BuildTransaction assembles an unsigned transaction from params.
// It performs no network I/O and never estimates missing values.
func BuildTransaction(p TxParams) (*UnsignedTx, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	tx := &UnsignedTx{
		nonce:    *p.Nonce,
		gasPrice: new(big.Int).Set(p.GasPrice),
		gas:      *p.Gas,
		value:    new(big.Int),
		data:     append([]byte{}, p.Data...),
		chainID:  new(big.Int).Set(p.ChainID),
	}
	if p.Value != nil {
		tx.value.Set(p.Value)
	}
	if p.To != nil {
		to := *p.To
		tx.to = &to
	}
	return tx, nil
}

// BuildDeploymentTransaction builds a contract-creation transaction whose data
// is the bytecode followed by the ABI-encoded constructor arguments.
// Any Data in params is replaced by the constructor payload.
func BuildDeploymentTransaction(bytecode []byte, abiTypes []string, args []any, p TxParams) (*UnsignedTx, error) {
	if p.To != nil {
		return nil, deployerr.WithDetails(deployerr.ErrInvalidInput, map[string]string{
			"field":  "to",
			"reason": "deployment transactions have no recipient",
		})
	}
	if len(bytecode) == 0 {
		return nil, missingField("bytecode")
	}

	payload, err := abi.ConstructorPayload(bytecode, abiTypes, args)
	if err != nil {
		return nil, err
	}
	p.Data = payload
	return BuildTransaction(p)
}

func missingField(name string) error {
	return deployerr.WithDetails(deployerr.ErrMissingField, map[string]string{
		"field": name,
	})
}

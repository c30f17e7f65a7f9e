package deploy

import (
	"math/big"

	ethtypes "github.com/mrz1836/ethdeploy/internal/chain/eth/types"
)

// Request describes one contract deployment. Nil optional fields are filled
// from the node.
type Request struct {
	Bytecode         []byte
	ConstructorTypes []string
	ConstructorArgs  []any
	Value            *big.Int

	// Optional overrides.
	Nonce    *uint64
	GasPrice *big.Int
	Gas      *uint64
	ChainID  *big.Int

	// ExpectedRuntime, when set, is compared against the deployed code.
	ExpectedRuntime []byte

	// DryRun signs the transaction without submitting it.
	DryRun bool
}

// Result is the outcome of a deployment.
type Result struct {
	TxHash          string           `json:"tx_hash"`
	RawTx           string           `json:"raw_tx"`
	From            ethtypes.Address `json:"from"`
	Nonce           uint64           `json:"nonce"`
	ChainID         string           `json:"chain_id"`
	GasPrice        string           `json:"gas_price"`
	Gas             uint64           `json:"gas"`
	GasEstimated    bool             `json:"gas_estimated"`
	ContractAddress ethtypes.Address `json:"contract_address"`
	Submitted       bool             `json:"submitted"`
	BlockNumber     string           `json:"block_number,omitempty"`
	GasUsed         uint64           `json:"gas_used,omitempty"`
	CodeVerified    bool             `json:"code_verified"`
}

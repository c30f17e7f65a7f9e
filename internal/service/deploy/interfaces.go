package deploy

import (
	"context"
	"math/big"

	ethcrypto "github.com/mrz1836/ethdeploy/internal/chain/eth/crypto"
	"github.com/mrz1836/ethdeploy/internal/chain/eth/rpc"
	ethtypes "github.com/mrz1836/ethdeploy/internal/chain/eth/types"
	"github.com/mrz1836/ethdeploy/internal/keys"
)

// Compile-time interface checks.
var (
	_ Node       = (*rpc.Client)(nil)
	_ KeyHandle  = (*keys.Key)(nil)
	_ rpc.Logger = LogWriter(nil)
)

// Node is the subset of the JSON-RPC client the deployment flow needs.
type Node interface {
	ChainID(ctx context.Context) (*big.Int, error)
	GetTransactionCount(ctx context.Context, address ethtypes.Address, block string) (uint64, error)
	GasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg rpc.CallMsg) (uint64, error)
	SendRawTransaction(ctx context.Context, signedTx []byte) (ethcrypto.Hash, error)
	GetTransactionReceipt(ctx context.Context, txHash ethcrypto.Hash) (*rpc.Receipt, error)
	GetCode(ctx context.Context, address ethtypes.Address, block string) ([]byte, error)
}

// KeyHandle exposes the signing key and its address.
type KeyHandle interface {
	Address() ethtypes.Address
	Bytes() []byte
}

// LogWriter provides logging operations.
type LogWriter interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

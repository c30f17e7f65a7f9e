package rpc

import (
	"context"
	"encoding/json"
	"math/big"

	ethcrypto "github.com/mrz1836/ethdeploy/internal/chain/eth/crypto"
	ethtypes "github.com/mrz1836/ethdeploy/internal/chain/eth/types"
)

// Receipt status values.
const (
	ReceiptStatusFailed     uint64 = 0
	ReceiptStatusSuccessful uint64 = 1
)

// Receipt is the subset of a transaction receipt a deployment inspects.
type Receipt struct {
	TransactionHash ethcrypto.Hash    `json:"transactionHash"`
	BlockNumber     *big.Int          `json:"blockNumber"`
	BlockHash       ethcrypto.Hash    `json:"blockHash"`
	From            ethtypes.Address  `json:"from"`
	To              *ethtypes.Address `json:"to,omitempty"`
	ContractAddress *ethtypes.Address `json:"contractAddress,omitempty"`
	GasUsed         uint64            `json:"gasUsed"`
	Status          uint64            `json:"status"`
}

// Succeeded reports whether the transaction executed without reverting.
func (r *Receipt) Succeeded() bool {
	return r.Status == ReceiptStatusSuccessful
}

// receiptJSON mirrors the node encoding: quantities are hex strings and
// absent addresses are null.
type receiptJSON struct {
	TransactionHash ethcrypto.Hash    `json:"transactionHash"`
	BlockNumber     string            `json:"blockNumber"`
	BlockHash       ethcrypto.Hash    `json:"blockHash"`
	From            ethtypes.Address  `json:"from"`
	To              *ethtypes.Address `json:"to"`
	ContractAddress *ethtypes.Address `json:"contractAddress"`
	GasUsed         string            `json:"gasUsed"`
	Status          string            `json:"status"`
}

// UnmarshalJSON decodes the node's receipt encoding.
func (r *Receipt) UnmarshalJSON(data []byte) error {
	var raw receiptJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	blockNumber, err := parseHexBigInt(raw.BlockNumber)
	if err != nil {
		return err
	}
	gasUsed, err := parseHexBigInt(raw.GasUsed)
	if err != nil {
		return err
	}
	status, err := parseHexBigInt(raw.Status)
	if err != nil {
		return err
	}

	*r = Receipt{
		TransactionHash: raw.TransactionHash,
		BlockNumber:     blockNumber,
		BlockHash:       raw.BlockHash,
		From:            raw.From,
		To:              raw.To,
		ContractAddress: raw.ContractAddress,
		GasUsed:         gasUsed.Uint64(),
		Status:          status.Uint64(),
	}
	return nil
}

// GetTransactionReceipt returns the receipt for a mined transaction, or nil
// when the node does not know it yet.
func (c *Client) GetTransactionReceipt(ctx context.Context, txHash ethcrypto.Hash) (*Receipt, error) {
	result, err := c.Call(ctx, "eth_getTransactionReceipt", txHash.Hex())
	if err != nil {
		return nil, err
	}
	if len(result) == 0 || string(result) == "null" {
		return nil, nil //nolint:nilnil // absent receipt is not an error
	}

	var receipt Receipt
	if err := json.Unmarshal(result, &receipt); err != nil {
		return nil, invalidResult("eth_getTransactionReceipt", err)
	}
	return &receipt, nil
}

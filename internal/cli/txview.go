package cli

import (
	"strconv"

	"github.com/mrz1836/ethdeploy/internal/chain"
	ethtypes "github.com/mrz1836/ethdeploy/internal/chain/eth/types"
	"github.com/mrz1836/ethdeploy/internal/output"
)

// txView is the printable form of a signed legacy transaction.
type txView struct {
	Hash            string            `json:"hash"`
	Raw             string            `json:"raw"`
	From            ethtypes.Address  `json:"from"`
	Nonce           uint64            `json:"nonce"`
	GasPrice        string            `json:"gas_price"`
	Gas             uint64            `json:"gas"`
	To              *ethtypes.Address `json:"to"`
	Value           string            `json:"value"`
	Data            string            `json:"data"`
	ChainID         string            `json:"chain_id,omitempty"`
	V               string            `json:"v"`
	R               string            `json:"r"`
	S               string            `json:"s"`
	ContractAddress *ethtypes.Address `json:"contract_address,omitempty"`
	NonceStrategy   string            `json:"nonce_strategy,omitempty"`
	CrossChecked    bool              `json:"cross_checked,omitempty"`
}

// newTxView recovers the sender and, for deployments, the contract address.
func newTxView(stx *ethtypes.SignedTx) (*txView, error) {
	sender, err := stx.Sender()
	if err != nil {
		return nil, err
	}
	tx := stx.Unsigned()

	view := &txView{
		Hash:     stx.HashHex(),
		Raw:      stx.RawHex(),
		From:     sender,
		Nonce:    tx.Nonce(),
		GasPrice: tx.GasPrice().String(),
		Gas:      tx.Gas(),
		To:       tx.To(),
		Value:    tx.Value().String(),
		Data:     ethtypes.EncodeHex(tx.Data()),
		V:        stx.V().String(),
		R:        ethtypes.EncodeHex(stx.R().Bytes()),
		S:        ethtypes.EncodeHex(stx.S().Bytes()),
	}
	if id := stx.ChainID(); id != nil {
		view.ChainID = id.String()
	}
	if tx.IsContractCreation() {
		contract := ethtypes.CreateAddress(sender, tx.Nonce())
		view.ContractAddress = &contract
	}
	return view, nil
}

// fields lists the text rendering of the view. Long hex values are summarized.
func (v *txView) fields() []output.Field {
	to := "(contract creation)"
	if v.To != nil {
		to = v.To.String()
	}
	contract := ""
	if v.ContractAddress != nil {
		contract = v.ContractAddress.String()
	}
	chainID := v.ChainID
	if chainID == "" {
		chainID = "(unprotected)"
	}

	gasPrice := v.GasPrice
	if n, ok := parseBig(v.GasPrice); ok {
		gasPrice = chain.FormatGasPrice(n)
	}

	fields := []output.Field{
		{Label: "Hash", Value: v.Hash},
		{Label: "From", Value: v.From.String()},
		{Label: "To", Value: to},
		{Label: "Contract", Value: contract},
		{Label: "Nonce", Value: strconv.FormatUint(v.Nonce, 10)},
		{Label: "Gas price", Value: gasPrice},
		{Label: "Gas", Value: strconv.FormatUint(v.Gas, 10)},
		{Label: "Value", Value: v.Value + " wei"},
		{Label: "Data", Value: summarizeHex(v.Data)},
		{Label: "Chain ID", Value: chainID},
		{Label: "V", Value: v.V},
		{Label: "R", Value: v.R},
		{Label: "S", Value: v.S},
		{Label: "Nonce mode", Value: v.NonceStrategy},
	}
	if v.CrossChecked {
		fields = append(fields, output.Field{Label: "Cross-check", Value: "go-ethereum ok"})
	}
	return append(fields, output.Field{Label: "Raw", Value: v.Raw})
}

// summarizeHex shortens long hex payloads for the text view.
func summarizeHex(s string) string {
	const keep = 34
	if len(s) <= 2*keep {
		return s
	}
	size := (len(s) - 2) / 2
	return s[:keep] + "..." + " (" + strconv.Itoa(size) + " bytes)"
}

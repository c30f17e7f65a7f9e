// Package deploy runs the contract deployment flow against a node: fill the
// missing transaction fields, sign, submit, wait for the receipt and verify
// the reported contract address against the locally derived one.
package deploy

import (
	"bytes"
	"context"
	"math/big"
	"strconv"

	"github.com/mrz1836/ethdeploy/internal/chain"
	"github.com/mrz1836/ethdeploy/internal/chain/eth/abi"
	"github.com/mrz1836/ethdeploy/internal/chain/eth/compat"
	ethcrypto "github.com/mrz1836/ethdeploy/internal/chain/eth/crypto"
	"github.com/mrz1836/ethdeploy/internal/chain/eth/rpc"
	ethtypes "github.com/mrz1836/ethdeploy/internal/chain/eth/types"
	"github.com/mrz1836/ethdeploy/internal/metrics"
	deployerr "github.com/mrz1836/ethdeploy/pkg/errors"
)

// Service deploys contracts through a Node.
type Service struct {
	node          Node
	signer        *ethtypes.Signer
	nonces        *chain.NonceManager
	logger        LogWriter
	metrics       *metrics.Metrics
	gasMultiplier float64
	wait          rpc.WaitOptions
	crossCheck    bool
}

// Config holds dependencies for the deploy service.
type Config struct {
	Node   Node
	Signer *ethtypes.Signer
	// Nonces may be shared between services that sign for the same senders.
	Nonces        *chain.NonceManager
	Logger        LogWriter
	Metrics       *metrics.Metrics
	GasMultiplier float64
	Wait          rpc.WaitOptions
	// CrossCheck verifies every signed transaction with go-ethereum before it is submitted.
	CrossCheck bool
}

// NewService creates a new deploy service. Missing optional dependencies get
// defaults: a deterministic signer, a fresh nonce manager, the global metrics
// and the default gas multiplier.
func NewService(cfg *Config) *Service {
	s := &Service{
		node:          cfg.Node,
		signer:        cfg.Signer,
		nonces:        cfg.Nonces,
		logger:        cfg.Logger,
		metrics:       cfg.Metrics,
		gasMultiplier: cfg.GasMultiplier,
		wait:          cfg.Wait,
		crossCheck:    cfg.CrossCheck,
	}
	if s.signer == nil {
		s.signer = ethtypes.NewSigner(ethtypes.WithNonceStrategy(ethcrypto.NonceDeterministic))
	}
	if s.nonces == nil {
		s.nonces = chain.NewNonceManager()
	}
	if s.metrics == nil {
		s.metrics = metrics.Global
	}
	if s.gasMultiplier == 0 {
		s.gasMultiplier = chain.DefaultGasMultiplier
	}
	if s.wait.Logger == nil && s.logger != nil {
		s.wait.Logger = s.logger
	}
	return s
}

// Deploy signs and submits one deployment and verifies its outcome.
func (s *Service) Deploy(ctx context.Context, key KeyHandle, req *Request) (result *Result, err error) {
	verificationFailed := false
	defer func() {
		if req.DryRun {
			return
		}
		s.metrics.RecordDeployment(err, verificationFailed)
	}()

	stx, result, err := s.prepare(ctx, key, req)
	if err != nil {
		return nil, err
	}
	if req.DryRun {
		return result, nil
	}

	chainID := stx.ChainID()
	hash, err := s.node.SendRawTransaction(ctx, stx.RawBytes())
	if err != nil {
		// The nonce was never consumed; resync with the node on the next call.
		s.nonces.Reset(chainID, key.Address())
		s.errorf("submitting deployment from %s: %v", key.Address(), err)
		return nil, err
	}
	if hash != stx.Hash() {
		verificationFailed = true
		return nil, deployerr.WithDetails(deployerr.ErrReceiptMismatch, map[string]string{
			"field":    "tx_hash",
			"expected": stx.HashHex(),
			"reported": hash.Hex(),
		})
	}
	result.Submitted = true
	s.debugf("submitted %s (nonce %d), waiting for receipt", result.TxHash, result.Nonce)

	receipt, err := rpc.WaitForReceipt(ctx, s.node, hash, s.wait)
	if err != nil {
		return nil, err
	}
	if receipt.BlockNumber != nil {
		result.BlockNumber = receipt.BlockNumber.String()
	}
	result.GasUsed = receipt.GasUsed

	if !receipt.Succeeded() {
		return nil, deployerr.WithDetails(deployerr.ErrDeploymentFailed, map[string]string{
			"tx_hash":  result.TxHash,
			"block":    result.BlockNumber,
			"gas_used": strconv.FormatUint(receipt.GasUsed, 10),
			"gas":      strconv.FormatUint(result.Gas, 10),
		})
	}

	if err := s.verifyReceipt(key.Address(), stx.Unsigned().Nonce(), receipt); err != nil {
		verificationFailed = true
		s.errorf("verifying deployment %s: %v", result.TxHash, err)
		return nil, err
	}

	if len(req.ExpectedRuntime) > 0 {
		if err := s.verifyCode(ctx, result.ContractAddress, req.ExpectedRuntime); err != nil {
			verificationFailed = true
			s.errorf("verifying code at %s: %v", result.ContractAddress, err)
			return nil, err
		}
		result.CodeVerified = true
	}

	s.debugf("deployed %s at block %s", result.ContractAddress, result.BlockNumber)
	return result, nil
}

// DeployAll deploys the requests in order from one sender. It stops at the
// first failure and returns the results gathered so far. Dry runs reserve no
// nonces, so later dry-run requests without a nonce continue from the
// previous one.
func (s *Service) DeployAll(ctx context.Context, key KeyHandle, reqs []*Request) ([]*Result, error) {
	results := make([]*Result, 0, len(reqs))
	var next *uint64
	for i, req := range reqs {
		if req.DryRun && req.Nonce == nil && next != nil {
			r := *req
			r.Nonce = next
			req = &r
		}
		result, err := s.Deploy(ctx, key, req)
		if err != nil {
			return results, deployerr.Wrap(err, "deployment %d of %d", i+1, len(reqs))
		}
		results = append(results, result)
		n := result.Nonce + 1
		next = &n
	}
	return results, nil
}

// prepare fills every missing field, signs, and derives the contract address.
func (s *Service) prepare(ctx context.Context, key KeyHandle, req *Request) (*ethtypes.SignedTx, *Result, error) {
	if len(req.Bytecode) == 0 {
		return nil, nil, deployerr.WithDetails(deployerr.ErrMissingField, map[string]string{
			"field": "bytecode",
		})
	}
	sender := key.Address()

	chainID, err := s.resolveChainID(ctx, req.ChainID)
	if err != nil {
		return nil, nil, err
	}

	payload, err := abi.ConstructorPayload(req.Bytecode, req.ConstructorTypes, req.ConstructorArgs)
	if err != nil {
		return nil, nil, err
	}

	gasPrice := req.GasPrice
	if gasPrice == nil {
		if gasPrice, err = s.node.GasPrice(ctx); err != nil {
			return nil, nil, err
		}
	}

	gas, estimated, err := s.resolveGas(ctx, sender, req, payload)
	if err != nil {
		return nil, nil, err
	}

	nonce, err := s.resolveNonce(ctx, chainID, sender, req)
	if err != nil {
		return nil, nil, err
	}

	tx, err := ethtypes.BuildTransaction(ethtypes.TxParams{
		Nonce:    &nonce,
		GasPrice: gasPrice,
		Gas:      &gas,
		Value:    req.Value,
		Data:     payload,
		ChainID:  chainID,
	})
	if err != nil {
		s.nonces.Reset(chainID, sender)
		return nil, nil, err
	}

	stx, err := s.signer.Sign(tx, key.Bytes())
	s.metrics.RecordSignature(err)
	if err != nil {
		s.nonces.Reset(chainID, sender)
		return nil, nil, err
	}

	if s.crossCheck {
		if err := compat.CrossCheck(stx, key.Bytes(), s.signer.Strategy()); err != nil {
			s.nonces.Reset(chainID, sender)
			return nil, nil, err
		}
	}

	result := &Result{
		TxHash:          stx.HashHex(),
		RawTx:           stx.RawHex(),
		From:            sender,
		Nonce:           nonce,
		ChainID:         chainID.String(),
		GasPrice:        gasPrice.String(),
		Gas:             gas,
		GasEstimated:    estimated,
		ContractAddress: ethtypes.CreateAddress(sender, nonce),
	}
	s.debugf("signed deployment %s: nonce=%d gas=%d gasPrice=%s contract=%s",
		result.TxHash, nonce, gas, chain.FormatGasPrice(gasPrice), result.ContractAddress)
	return stx, result, nil
}

// resolveChainID uses the requested chain id when given, and always checks
// it against the node so a misconfigured endpoint cannot receive the signature.
func (s *Service) resolveChainID(ctx context.Context, requested *big.Int) (*big.Int, error) {
	nodeID, err := s.node.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	if requested == nil || requested.Sign() == 0 {
		return nodeID, nil
	}
	if requested.Cmp(nodeID) != 0 {
		return nil, deployerr.WithDetails(deployerr.ErrChainIDMismatch, map[string]string{
			"configured": requested.String(),
			"node":       nodeID.String(),
		})
	}
	return new(big.Int).Set(requested), nil
}

// resolveGas returns the requested gas limit, or the node estimate scaled by
// the multiplier and floored at the intrinsic creation cost.
func (s *Service) resolveGas(ctx context.Context, sender ethtypes.Address, req *Request, payload []byte) (uint64, bool, error) {
	if req.Gas != nil {
		return *req.Gas, false, nil
	}

	estimate, err := s.node.EstimateGas(ctx, rpc.CallMsg{
		From:  &sender,
		Value: req.Value,
		Data:  payload,
	})
	if err != nil {
		return 0, false, err
	}

	gas, err := chain.ScaleGas(estimate, s.gasMultiplier)
	if err != nil {
		return 0, false, err
	}
	gas = max(gas, chain.MinCreationGas)
	s.debugf("gas estimate %d scaled to %d", estimate, gas)
	return gas, true, nil
}

// resolveNonce returns the requested nonce, or the next one for sender.
// Dry runs read the node's pending count without reserving it.
func (s *Service) resolveNonce(ctx context.Context, chainID *big.Int, sender ethtypes.Address, req *Request) (uint64, error) {
	if req.Nonce != nil {
		return *req.Nonce, nil
	}
	pending, err := s.node.GetTransactionCount(ctx, sender, "pending")
	if err != nil {
		return 0, err
	}
	if req.DryRun {
		return pending, nil
	}
	return s.nonces.Next(chainID, sender, pending), nil
}

// verifyReceipt checks the contract address the node reported.
func (s *Service) verifyReceipt(sender ethtypes.Address, nonce uint64, receipt *rpc.Receipt) error {
	if receipt.ContractAddress == nil {
		return deployerr.WithDetails(deployerr.ErrReceiptMismatch, map[string]string{
			"expected": ethtypes.CreateAddress(sender, nonce).String(),
			"reported": "none",
		})
	}
	return ethtypes.VerifyContractAddress(sender, nonce, *receipt.ContractAddress)
}

// verifyCode compares the code stored at address with the expected runtime.
func (s *Service) verifyCode(ctx context.Context, address ethtypes.Address, expected []byte) error {
	code, err := s.node.GetCode(ctx, address, "latest")
	if err != nil {
		return err
	}
	if bytes.Equal(code, expected) {
		return nil
	}
	return deployerr.WithDetails(deployerr.ErrCodeMismatch, map[string]string{
		"address":       address.String(),
		"expected_hash": ethcrypto.Keccak256Hash(expected).Hex(),
		"actual_hash":   ethcrypto.Keccak256Hash(code).Hex(),
		"expected_size": strconv.Itoa(len(expected)),
		"actual_size":   strconv.Itoa(len(code)),
	})
}

func (s *Service) debugf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(format, args...)
	}
}

func (s *Service) errorf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Error(format, args...)
	}
}

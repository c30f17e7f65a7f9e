package rpc

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mrz1836/ethdeploy/internal/chain"
	ethcrypto "github.com/mrz1836/ethdeploy/internal/chain/eth/crypto"
	deployerr "github.com/mrz1836/ethdeploy/pkg/errors"
)

// Receipt polling defaults.
const (
	DefaultPollInterval   = 2 * time.Second
	DefaultReceiptTimeout = 2 * time.Minute
)

// ReceiptSource fetches receipts; *Client satisfies it.
type ReceiptSource interface {
	GetTransactionReceipt(ctx context.Context, txHash ethcrypto.Hash) (*Receipt, error)
}

// WaitOptions configures receipt polling.
type WaitOptions struct {
	PollInterval time.Duration
	Timeout      time.Duration
	Logger       Logger
}

// errReceiptPending marks a poll that found no receipt yet.
var errReceiptPending = errors.New("receipt not yet available")

// WaitForReceipt polls until the receipt is present or the timeout elapses.
// Absent receipts and transient errors are retried at a constant interval;
// any other error is returned immediately. A timeout yields ErrReceiptTimeout.
func WaitForReceipt(ctx context.Context, src ReceiptSource, txHash ethcrypto.Hash, opts WaitOptions) (*Receipt, error) {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultReceiptTimeout
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	polls := 0
	var permanentErr error
	poll := func() (*Receipt, error) {
		polls++
		receipt, err := src.GetTransactionReceipt(waitCtx, txHash)
		switch {
		case err != nil && chain.IsRetryable(err):
			if opts.Logger != nil {
				opts.Logger.Debug("receipt %s: transient error on poll %d: %v", txHash.Hex(), polls, err)
			}
			return nil, err
		case err != nil:
			permanentErr = err
			return nil, backoff.Permanent(err)
		case receipt == nil:
			return nil, errReceiptPending
		default:
			return receipt, nil
		}
	}

	receipt, err := backoff.RetryWithData(poll, backoff.WithContext(backoff.NewConstantBackOff(interval), waitCtx))
	if err == nil {
		if opts.Logger != nil {
			opts.Logger.Debug("receipt %s: found in block %s after %d polls", txHash.Hex(), receipt.BlockNumber, polls)
		}
		return receipt, nil
	}

	if permanentErr != nil {
		return nil, permanentErr
	}
	// Parent cancellation is the caller's decision, not a timeout.
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if waitCtx.Err() != nil || errors.Is(err, errReceiptPending) || chain.IsRetryable(err) {
		return nil, deployerr.WithDetails(deployerr.ErrReceiptTimeout, map[string]string{
			"tx_hash": txHash.Hex(),
			"timeout": timeout.String(),
			"polls":   strconv.Itoa(polls),
		})
	}
	return nil, err
}

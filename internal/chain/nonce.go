package chain

import (
	"math/big"
	"sync"

	ethtypes "github.com/mrz1836/ethdeploy/internal/chain/eth/types"
)

// nonceKey scopes a tracked nonce to one sender on one chain.
type nonceKey struct {
	chainID string
	sender  ethtypes.Address
}

// NonceManager tracks the next nonce per sender so that transactions signed
// in rapid succession do not collide before the node's pending count catches up.
type NonceManager struct {
	mu     sync.Mutex
	nonces map[nonceKey]uint64 // one past the highest handed out
}

// NewNonceManager creates a new NonceManager.
func NewNonceManager() *NonceManager {
	return &NonceManager{
		nonces: make(map[nonceKey]uint64),
	}
}

func keyFor(chainID *big.Int, sender ethtypes.Address) nonceKey {
	id := ""
	if chainID != nil {
		id = chainID.String()
	}
	return nonceKey{chainID: id, sender: sender}
}

// Next returns the nonce to use for sender: the higher of the node-reported
// pending nonce and the locally tracked one. The local value is advanced.
func (nm *NonceManager) Next(chainID *big.Int, sender ethtypes.Address, rpcNonce uint64) uint64 {
	nm.mu.Lock()
	defer nm.mu.Unlock()

	key := keyFor(chainID, sender)
	nonce := rpcNonce
	if local, ok := nm.nonces[key]; ok && local > rpcNonce {
		nonce = local
	}
	nm.nonces[key] = nonce + 1
	return nonce
}

// Reset forgets the tracked nonce for sender, e.g. after a rejected submission.
func (nm *NonceManager) Reset(chainID *big.Int, sender ethtypes.Address) {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	delete(nm.nonces, keyFor(chainID, sender))
}

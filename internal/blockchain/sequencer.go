package blockchain

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// PendingNonceReader supplies the chain's authoritative pending count for an
// account. Satisfied by ethclient.Client.
type PendingNonceReader interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

// NonceSequencer hands out nonces for the relayer account. Allocation is the
// single serialization point in the whole service: two concurrent callers
// must never observe the same nonce, and the sequence must stay contiguous.
// Only allocation holds the lock; broadcast and receipt waiting happen
// outside it.
type NonceSequencer struct {
	mu      sync.Mutex
	client  PendingNonceReader
	account common.Address

	next        uint64
	initialized bool
}

func NewNonceSequencer(client PendingNonceReader, account common.Address) *NonceSequencer {
	return &NonceSequencer{client: client, account: account}
}

// Allocate claims the next nonce. The counter is lazily seeded from the
// chain's pending count on first use.
func (s *NonceSequencer) Allocate(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		if err := s.resyncLocked(ctx); err != nil {
			return 0, err
		}
	}

	n := s.next
	s.next++
	return n, nil
}

// Resync rereads the pending count from the chain. Called at startup and
// whenever drift is suspected (nonce-too-low rejection, abandoned broadcast).
func (s *NonceSequencer) Resync(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resyncLocked(ctx)
}

func (s *NonceSequencer) resyncLocked(ctx context.Context) error {
	pending, err := s.client.PendingNonceAt(ctx, s.account)
	if err != nil {
		return fmt.Errorf("failed to read pending nonce: %w", err)
	}
	s.next = pending
	s.initialized = true
	return nil
}

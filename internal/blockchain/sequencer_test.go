package blockchain

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNonceReader struct {
	mu      sync.Mutex
	pending uint64
	err     error
	calls   int
}

func (f *fakeNonceReader) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.pending, f.err
}

func (f *fakeNonceReader) set(pending uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = pending
}

var testAccount = common.HexToAddress("0x00000000000000000000000000000000000000aa")

func TestAllocateSeedsFromPendingCount(t *testing.T) {
	reader := &fakeNonceReader{pending: 42}
	seq := NewNonceSequencer(reader, testAccount)

	n, err := seq.Allocate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), n)

	n, err = seq.Allocate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(43), n)

	// Seeded once; subsequent allocations never hit the chain.
	assert.Equal(t, 1, reader.calls)
}

func TestAllocateContiguousUnderConcurrency(t *testing.T) {
	reader := &fakeNonceReader{pending: 100}
	seq := NewNonceSequencer(reader, testAccount)

	const workers = 64
	results := make([]uint64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			n, err := seq.Allocate(context.Background())
			assert.NoError(t, err)
			results[i] = n
		}(i)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i] < results[j] })
	for i, n := range results {
		assert.Equal(t, uint64(100+i), n, "nonce sequence must be contiguous with no duplicates")
	}
}

func TestResyncResetsCounter(t *testing.T) {
	reader := &fakeNonceReader{pending: 5}
	seq := NewNonceSequencer(reader, testAccount)

	_, err := seq.Allocate(context.Background())
	require.NoError(t, err)

	reader.set(20)
	require.NoError(t, seq.Resync(context.Background()))

	n, err := seq.Allocate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(20), n)
}

func TestAllocateFailsWhenSeedUnavailable(t *testing.T) {
	reader := &fakeNonceReader{err: errors.New("rpc down")}
	seq := NewNonceSequencer(reader, testAccount)

	_, err := seq.Allocate(context.Background())
	assert.Error(t, err)
}

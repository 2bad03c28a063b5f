package blockchain

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAddressGeneratesDistinctValidAddresses(t *testing.T) {
	provider := NewWalletProvider()

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		addr, err := provider.NewAddress()
		require.NoError(t, err)
		assert.True(t, common.IsHexAddress(addr), "generated address must be valid hex: %s", addr)
		assert.False(t, seen[addr], "address collision: %s", addr)
		seen[addr] = true
	}
}

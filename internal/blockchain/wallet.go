package blockchain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// WalletProvider issues fresh wallet addresses for new identities.
type WalletProvider interface {
	NewAddress() (string, error)
}

// walletProvider generates a random keypair and keeps only the public
// address. Users never sign; the relayer does. The private key goes out of
// scope here and is never persisted.
type walletProvider struct{}

func NewWalletProvider() WalletProvider {
	return walletProvider{}
}

func (walletProvider) NewAddress() (string, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return "", fmt.Errorf("failed to generate wallet key: %w", err)
	}
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), nil
}

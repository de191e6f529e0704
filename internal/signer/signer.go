package signer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrMissingKey = errors.New("no signing key configured")

// Account is a signing key together with the address it controls
type Account struct {
	Key     *ecdsa.PrivateKey
	Address common.Address
}

// LoadKey parses a hex private key, with or without the 0x prefix
func LoadKey(hexKey string) (*Account, error) {
	hexKey = strings.TrimSpace(hexKey)
	hexKey = strings.TrimPrefix(strings.TrimPrefix(hexKey, "0x"), "0X")
	if hexKey == "" {
		return nil, ErrMissingKey
	}

	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	return &Account{
		Key:     key,
		Address: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// LoadAccounts parses every key of a network profile
func LoadAccounts(hexKeys []string) ([]*Account, error) {
	accounts := make([]*Account, 0, len(hexKeys))
	for i, hexKey := range hexKeys {
		account, err := LoadKey(hexKey)
		if err != nil {
			return nil, fmt.Errorf("account %d: %w", i, err)
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

package config

import (
	"math/big"
	"os"

	"metag-stakepool-go/internal/models"
)

const (
	DefaultNetwork = "hardhat"

	mainnetGas      = 2_100_000
	mainnetChainId  = 43114
	hardhatChainId  = 31337
	mainnetGasPrice = 225_000_000_000 // 225 gwei
	hardhatGasPrice = 1_000_000_000
)

// Well-known development keys of the local simulated network. Never fund these elsewhere.
var hardhatAccounts = []string{
	"0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80",
	"0x59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d",
	"0x5de4111afa1a4b94908f83103eb1f1706367c2e68ca870fc3fb9a804cdab365a",
}

// BuiltinNetworks returns the hardhat and mainnet profiles. The mainnet URL
// may be empty here; it is only required once something dials it.
func BuiltinNetworks() map[string]models.NetworkProfile {
	var mainnetAccounts []string
	if key := os.Getenv("PRIVATE_KEY"); key != "" {
		mainnetAccounts = []string{key}
	}

	return map[string]models.NetworkProfile{
		"hardhat": {
			Name:      "hardhat",
			GasPrice:  big.NewInt(hardhatGasPrice),
			ChainId:   hardhatChainId,
			Accounts:  append([]string(nil), hardhatAccounts...),
			Simulated: true,
		},
		"mainnet": {
			Name:     "mainnet",
			Url:      os.Getenv("AVALANCHE_URL"),
			Gas:      mainnetGas,
			GasPrice: big.NewInt(mainnetGasPrice),
			ChainId:  mainnetChainId,
			Accounts: mainnetAccounts,
		},
	}
}

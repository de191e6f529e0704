package deploy

import (
	"math/big"

	"metag-stakepool-go/internal/token"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

const devTokenSymbol = "TMETAG"

// DevTokenSupply is minted to the deployer on the simulated network (1,000,000 tokens)
var DevTokenSupply = new(big.Int).Mul(big.NewInt(1_000_000), big.NewInt(1e18))

// PrepareSimulated makes sure the configured tokens exist on a fresh
// simulated network. An empty address deploys a new test token; an address
// the network does not know yet is registered and funded for the deployer.
func PrepareSimulated(sim *token.Simulated, deployer common.Address, stakeToken, rewardToken string) (string, string) {
	stake := prepareDevToken(sim, deployer, stakeToken, "")
	if rewardToken == "" || rewardToken == stakeToken {
		return stake, stake
	}
	return stake, prepareDevToken(sim, deployer, rewardToken, stake)
}

func prepareDevToken(sim *token.Simulated, deployer common.Address, configured, fallback string) string {
	if configured == "" {
		if fallback != "" {
			return fallback
		}
		address := sim.DeployToken(deployer, devTokenSymbol, 18, DevTokenSupply)
		return address.Hex()
	}

	if !common.IsHexAddress(configured) {
		// Left for Deploy to reject
		return configured
	}

	address := common.HexToAddress(configured)
	sim.RegisterToken(address, devTokenSymbol, 18)
	if err := sim.Mint(address, deployer, DevTokenSupply); err != nil {
		zap.L().Warn("Unable to fund deployer with dev tokens", zap.String("token", configured), zap.Error(err))
	}
	return address.Hex()
}

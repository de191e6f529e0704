/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"

	"metag-stakepool-go/internal/models"
	"metag-stakepool-go/internal/signer"
	"metag-stakepool-go/internal/store"
	"metag-stakepool-go/internal/token"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrInvalidTokenAddress = errors.New("invalid token address")

// Deployer constructs stake pools on one network
type Deployer struct {
	store   store.LedgerStore
	gateway token.Gateway
	network models.NetworkProfile
	out     io.Writer
}

func NewDeployer(ledger store.LedgerStore, gateway token.Gateway, network models.NetworkProfile, out io.Writer) *Deployer {
	return &Deployer{
		store:   ledger,
		gateway: gateway,
		network: network,
		out:     out,
	}
}

// Deploy creates a pool owned by the deploying account, staking stakeToken
// and recording rewardToken.
func (d *Deployer) Deploy(ctx context.Context, account *signer.Account, stakeToken, rewardToken string) (*models.Pool, error) {
	if account == nil {
		return nil, signer.ErrMissingKey
	}

	stake, err := ParseTokenAddress(stakeToken)
	if err != nil {
		return nil, fmt.Errorf("stake token: %w", err)
	}
	reward, err := ParseTokenAddress(rewardToken)
	if err != nil {
		return nil, fmt.Errorf("reward token: %w", err)
	}

	fmt.Fprintf(d.out, "Deploying contracts with the account: %s\n", account.Address.Hex())

	balance, err := d.preflight(ctx, account.Address, stake, reward)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(d.out, "Account balance: %s\n", balance.String())

	custody, err := d.gateway.OpenCustody(ctx, account.Address)
	if err != nil {
		return nil, fmt.Errorf("unable to open custody: %w", err)
	}

	pool, err := d.store.CreatePool(ctx, store.CreatePoolParams{
		Address:     custody.Hex(),
		Owner:       account.Address.Hex(),
		StakeToken:  stake.Hex(),
		RewardToken: reward.Hex(),
		Custody:     custody.Hex(),
		Network:     d.network.Name,
		ChainId:     d.network.ChainId,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to record pool: %w", err)
	}

	zap.L().Info("MetagStakepool deployed",
		zap.String("address", pool.Address),
		zap.String("owner", pool.Owner),
		zap.String("stake_token", pool.StakeToken),
		zap.String("reward_token", pool.RewardToken),
		zap.String("network", pool.Network))

	fmt.Fprintf(d.out, "MetagStakepool address: %s\n", pool.Address)
	return pool, nil
}

// preflight reads the deployer balance and checks both tokens answer
func (d *Deployer) preflight(ctx context.Context, deployer, stake, reward common.Address) (*big.Int, error) {
	var balance *big.Int

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		balance, err = d.gateway.NativeBalance(gctx, deployer)
		if err != nil {
			return fmt.Errorf("unable to read deployer balance: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if _, err := d.gateway.Decimals(gctx, stake); err != nil {
			return fmt.Errorf("stake token %s: %w", stake.Hex(), err)
		}
		return nil
	})
	g.Go(func() error {
		if _, err := d.gateway.Decimals(gctx, reward); err != nil {
			return fmt.Errorf("reward token %s: %w", reward.Hex(), err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return balance, nil
}

// ParseTokenAddress accepts a 0x-prefixed 20 byte hex address other than zero
func ParseTokenAddress(value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidTokenAddress, value)
	}
	address := common.HexToAddress(value)
	if address == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: zero address", ErrInvalidTokenAddress)
	}
	return address, nil
}

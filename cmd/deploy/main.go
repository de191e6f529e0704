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

package main

import (
	"context"
	"flag"

	"metag-stakepool-go/internal/common"
	"metag-stakepool-go/internal/config"

	"go.uber.org/zap"
)

func main() {
	stakeFlag := flag.String("stake-token", "", "Stake token address (default: TMETAG_ADDRESS)")
	rewardFlag := flag.String("reward-token", "", "Reward token address (default: TMETAG_ADDRESS)")
	flag.Parse()

	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	if *stakeFlag != "" {
		cfg.Contract.StakeToken = *stakeFlag
	}
	if *rewardFlag != "" {
		cfg.Contract.RewardToken = *rewardFlag
	}

	logger.Info("Starting deployment",
		zap.String("network", cfg.Network.Name),
		zap.Int64("chain_id", cfg.Network.Profile.ChainId))

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	pool, err := services.DeployPool(ctx, cfg.Contract)
	if err != nil {
		services.Close()
		logger.Fatal("Deployment failed", zap.Error(err))
	}

	logger.Info("Deployment completed",
		zap.String("pool", pool.Address),
		zap.String("owner", pool.Owner),
		zap.String("network", pool.Network))
}

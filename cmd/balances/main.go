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
	"fmt"
	"os"
	"strings"

	"metag-stakepool-go/internal/common"
	"metag-stakepool-go/internal/config"
	"metag-stakepool-go/internal/database"
	"metag-stakepool-go/internal/models"

	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"
)

type balanceStats struct {
	totalPools     int
	poolsWithStake int
	totalPositions int
}

func formatTransactionId(txId string) string {
	if txId == "" {
		return "none"
	}
	if len(txId) > 8 {
		return txId[:8] + "..."
	}
	return txId
}

func printPoolHeader(pool common.PoolInfo, positions int) {
	fmt.Printf("\n┌─ Pool: %s (%s)\n", pool.Address, pool.Network)
	fmt.Printf("│  Owner: %s\n", pool.Owner)
	fmt.Printf("│  Stake token: %s\n", pool.StakeToken)
	fmt.Printf("│  Stakers: %d\n", positions)
}

func printBalances(balances []models.StakeBalance, participantFilter string) int {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Participant", "Balance (base units)", "Version", "Last tx", "Updated"})

	printed := 0
	for _, balance := range balances {
		if participantFilter != "" && !strings.EqualFold(balance.Participant, participantFilter) {
			continue
		}
		table.Append([]string{
			balance.Participant,
			balance.Balance.String(),
			fmt.Sprintf("v%d", balance.Version),
			formatTransactionId(balance.LastTransactionId),
			balance.UpdatedAt.Format("2006-01-02 15:04:05"),
		})
		printed++
	}

	if printed > 0 {
		table.Render()
	}
	return printed
}

func processPool(ctx context.Context, pool common.PoolInfo, dbService *database.Service, participantFilter string) (int, error) {
	balances, err := dbService.GetPoolBalances(ctx, pool.Address)
	if err != nil {
		return 0, fmt.Errorf("failed to get balances: %w", err)
	}

	total, err := dbService.GetTotalStaked(ctx, pool.Address)
	if err != nil {
		return 0, fmt.Errorf("failed to total stake: %w", err)
	}

	if len(balances) == 0 {
		return 0, nil
	}

	printPoolHeader(pool, len(balances))
	printed := printBalances(balances, participantFilter)
	fmt.Printf("%sTotal staked: %s\n", common.BoxPrefix(true), total.String())

	return printed, nil
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	poolFlag := flag.String("pool", "", "Filter by pool address (optional)")
	participantFlag := flag.String("participant", "", "Filter by participant address (optional)")
	flag.Parse()

	logger.Info("Starting stake balance query")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Read-only report, no network connection needed
	logger.Info("Connecting to database", zap.String("path", cfg.Database.Path))
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	pools, err := common.InitializePools(ctx, dbService, *poolFlag, cfg.Network.Name)
	if err != nil {
		logger.Fatal("Failed to initialize pools", zap.Error(err))
	}

	common.PrintHeader("STAKE BALANCE REPORT", common.WideWidth)

	stats := balanceStats{}
	for _, pool := range pools {
		stats.totalPools++

		positions, err := processPool(ctx, pool, dbService, *participantFlag)
		if err != nil {
			logger.Error("Failed to process pool", zap.String("pool", pool.Address), zap.Error(err))
			continue
		}
		if positions > 0 {
			stats.poolsWithStake++
			stats.totalPositions += positions
		}
	}

	summary := fmt.Sprintf("SUMMARY: %d pools with stake (%d positions across %d pools queried)",
		stats.poolsWithStake, stats.totalPositions, stats.totalPools)
	common.PrintFooter(summary, common.WideWidth)

	logger.Info("Stake balance query completed",
		zap.Int("pools_queried", stats.totalPools),
		zap.Int("pools_with_stake", stats.poolsWithStake),
		zap.Int("total_positions", stats.totalPositions))
}

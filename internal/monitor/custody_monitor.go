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

package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"metag-stakepool-go/internal/models"
	"metag-stakepool-go/internal/token"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Start begins custody monitoring
func (m *CustodyMonitor) Start(ctx context.Context) error {
	zap.L().Info("Starting custody monitor", zap.String("network", m.network))

	if m.pollingInterval <= 0 {
		return fmt.Errorf("polling interval must be positive, got %v", m.pollingInterval)
	}

	pools, err := m.networkPools(ctx)
	if err != nil {
		return fmt.Errorf("failed to load pools: %w", err)
	}
	if len(pools) == 0 {
		zap.L().Warn("No pools to monitor - deploy a pool first", zap.String("network", m.network))
		return fmt.Errorf("no pools to monitor on network %s", m.network)
	}

	go m.pollLoop(ctx)

	zap.L().Info("Custody monitor started successfully",
		zap.Int("pools", len(pools)),
		zap.Duration("polling_interval", m.pollingInterval))

	return nil
}

// Stop gracefully stops the custody monitor
func (m *CustodyMonitor) Stop() {
	zap.L().Info("Stopping custody monitor")
	close(m.stopChan)
	<-m.doneChan
	zap.L().Info("Custody monitor stopped")
}

func (m *CustodyMonitor) pollLoop(ctx context.Context) {
	defer close(m.doneChan)

	ticker := time.NewTicker(m.pollingInterval)
	defer ticker.Stop()

	m.report(ctx)

	for {
		select {
		case <-ticker.C:
			m.report(ctx)
		case <-m.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// ANSI color helpers for console output.
const (
	colorReset = "\033[0m"
	colorRed   = "\033[31m"
	colorGreen = "\033[32m"
	colorCyan  = "\033[36m"
)

func (m *CustodyMonitor) report(ctx context.Context) {
	fmt.Printf("\n%s[%s] Checking custody on %s%s\n", colorCyan, time.Now().Format("15:04:05"), m.network, colorReset)

	statuses, err := m.CheckOnce(ctx)
	if err != nil {
		fmt.Printf("  %s✗ %s%s\n", colorRed, err, colorReset)
		zap.L().Error("Custody check failed", zap.Error(err))
		return
	}

	for _, status := range statuses {
		if status.Healthy {
			fmt.Printf("  %s✓ %s staked %s held %s%s\n", colorGreen, status.Pool, status.TotalStaked, status.CustodyBalance, colorReset)
			continue
		}
		fmt.Printf("  %s✗ %s staked %s held %s%s\n", colorRed, status.Pool, status.TotalStaked, status.CustodyBalance, colorReset)
	}
}

// CheckOnce compares total stake with the custody balance of every pool
func (m *CustodyMonitor) CheckOnce(ctx context.Context) ([]models.CustodyStatus, error) {
	pools, err := m.networkPools(ctx)
	if err != nil {
		return nil, err
	}

	statuses := make([]models.CustodyStatus, len(pools))
	errs := make([]error, len(pools))

	var wg sync.WaitGroup
	for i, pool := range pools {
		wg.Add(1)

		go func(i int, p models.Pool) {
			defer wg.Done()
			statuses[i], errs[i] = m.checkPool(ctx, p)
		}(i, pool)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("pool %s: %w", pools[i].Address, err)
		}
	}
	return statuses, nil
}

func (m *CustodyMonitor) checkPool(ctx context.Context, pool models.Pool) (models.CustodyStatus, error) {
	if m.settler != nil {
		// Settlement errors do not block the custody check
		if _, err := m.settler.SettlePending(ctx, common.HexToAddress(pool.Address)); err != nil {
			zap.L().Warn("Failed to settle pending transactions",
				zap.String("pool", pool.Address),
				zap.Error(err))
		}
	}

	total, err := m.dbService.GetTotalStaked(ctx, pool.Address)
	if err != nil {
		return models.CustodyStatus{}, fmt.Errorf("failed to total stake: %w", err)
	}

	held, err := m.gateway.BalanceOf(ctx, common.HexToAddress(pool.StakeToken), common.HexToAddress(pool.Custody))
	if err != nil {
		return models.CustodyStatus{}, fmt.Errorf("failed to read custody balance: %w", err)
	}

	status := models.CustodyStatus{
		Pool:           pool.Address,
		StakeToken:     pool.StakeToken,
		Custody:        pool.Custody,
		TotalStaked:    total,
		CustodyBalance: token.ToDecimal(held),
	}
	status.Healthy = status.TotalStaked.LessThanOrEqual(status.CustodyBalance)

	if !status.Healthy {
		zap.L().Error("Custody shortfall detected",
			zap.String("pool", pool.Address),
			zap.String("total_staked", status.TotalStaked.String()),
			zap.String("custody_balance", status.CustodyBalance.String()),
			zap.String("shortfall", status.TotalStaked.Sub(status.CustodyBalance).String()))
	}

	return status, nil
}

func (m *CustodyMonitor) networkPools(ctx context.Context) ([]models.Pool, error) {
	pools, err := m.dbService.GetPools(ctx)
	if err != nil {
		return nil, err
	}

	filtered := make([]models.Pool, 0, len(pools))
	for _, pool := range pools {
		if m.network == "" || pool.Network == m.network {
			filtered = append(filtered, pool)
		}
	}
	return filtered, nil
}

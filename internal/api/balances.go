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

package api

import (
	"context"
	"fmt"

	"metag-stakepool-go/internal/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BalanceOf returns the participant's stake in base units
func (s *StakepoolService) BalanceOf(ctx context.Context, pool, participant common.Address) (decimal.Decimal, error) {
	balance, err := s.store.GetStakeBalance(ctx, pool.Hex(), participant.Hex())
	if err != nil {
		zap.L().Error("Failed to get stake balance",
			zap.String("pool", pool.Hex()),
			zap.String("participant", participant.Hex()),
			zap.Error(err))
		return decimal.Zero, fmt.Errorf("failed to retrieve balance: %w", err)
	}

	return balance, nil
}

func (s *StakepoolService) TotalStaked(ctx context.Context, pool common.Address) (decimal.Decimal, error) {
	total, err := s.store.GetTotalStaked(ctx, pool.Hex())
	if err != nil {
		zap.L().Error("Failed to get total staked", zap.String("pool", pool.Hex()), zap.Error(err))
		return decimal.Zero, fmt.Errorf("failed to retrieve total staked: %w", err)
	}
	return total, nil
}

// Balances returns every non-zero stake of a pool
func (s *StakepoolService) Balances(ctx context.Context, pool common.Address) ([]models.ParticipantBalance, error) {
	balances, err := s.store.GetPoolBalances(ctx, pool.Hex())
	if err != nil {
		zap.L().Error("Failed to get pool balances", zap.String("pool", pool.Hex()), zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve balances: %w", err)
	}

	result := make([]models.ParticipantBalance, len(balances))
	for i, balance := range balances {
		result[i] = models.ParticipantBalance{
			Participant: balance.Participant,
			Balance:     balance.Balance,
		}
	}

	return result, nil
}

// History returns paginated stake history for a participant
func (s *StakepoolService) History(ctx context.Context, pool, participant common.Address, limit, offset int) ([]models.TransactionRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	transactions, err := s.store.GetTransactionHistory(ctx, pool.Hex(), participant.Hex(), limit, offset)
	if err != nil {
		zap.L().Error("Failed to get transaction history",
			zap.String("pool", pool.Hex()),
			zap.String("participant", participant.Hex()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve transaction history: %w", err)
	}

	result := make([]models.TransactionRecord, len(transactions))
	for i, tx := range transactions {
		result[i] = models.TransactionRecord{
			Id:          tx.Id,
			Type:        tx.TransactionType,
			Amount:      tx.Amount,
			TxHash:      tx.ExternalTxHash,
			Status:      tx.Status,
			ProcessedAt: tx.ProcessedAt,
		}
	}

	return result, nil
}

// Reconcile checks that the stored balance matches the participant's history
func (s *StakepoolService) Reconcile(ctx context.Context, pool, participant common.Address) error {
	return s.store.ReconcileStakeBalance(ctx, pool.Hex(), participant.Hex())
}

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
	"errors"
	"fmt"
	"math/big"

	"metag-stakepool-go/internal/models"
	"metag-stakepool-go/internal/store"
	"metag-stakepool-go/internal/token"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// DepositTokens pulls amount stake tokens from caller into pool custody and
// credits the caller's stake. The caller must have approved custody first.
// A pull whose outcome is unknown is recorded as a pending deposit and
// credited by SettlePending once mined.
func (s *StakepoolService) DepositTokens(ctx context.Context, pool, caller common.Address, amount *big.Int) (*models.OperationResult, error) {
	zap.L().Info("Processing deposit",
		zap.String("pool", pool.Hex()),
		zap.String("participant", caller.Hex()),
		zap.Stringer("amount", amount))

	if amount == nil || amount.Sign() <= 0 {
		err := fmt.Errorf("%w: got %v", ErrInvalidAmount, amount)
		logRejection("deposit", pool, caller, err)
		return rejected(pool, caller, err), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.store.GetPool(ctx, pool.Hex())
	if err != nil {
		if isBusinessRejection(err) {
			logRejection("deposit", pool, caller, err)
			return rejected(pool, caller, err), nil
		}
		return nil, fmt.Errorf("unable to load pool: %w", err)
	}
	stakeToken := common.HexToAddress(record.StakeToken)
	custody := common.HexToAddress(record.Custody)

	if caller == custody {
		err := fmt.Errorf("%w: %s", ErrCustodyDeposit, caller.Hex())
		logRejection("deposit", pool, caller, err)
		return rejected(pool, caller, err), nil
	}

	value := token.ToDecimal(amount)
	params := store.StakeParams{
		Pool:        pool.Hex(),
		Participant: caller.Hex(),
		Amount:      value,
		Reference:   token.MethodTransferFrom,
	}

	receipt, err := s.gateway.Pull(ctx, stakeToken, caller, custody, amount)
	if err != nil {
		if isBusinessRejection(err) {
			logRejection("deposit", pool, caller, err)
			return rejected(pool, caller, err), nil
		}
		if hash, ok := token.PendingTransaction(err); ok {
			settleCtx, cancel := s.settlementContext(ctx)
			defer cancel()
			params.TxHash = hash.Hex()
			return nil, s.recordPendingDeposit(settleCtx, params, err)
		}
		zap.L().Error("Stake token transfer failed", zap.String("participant", caller.Hex()), zap.Error(err))
		return nil, fmt.Errorf("unable to pull stake tokens: %w", err)
	}
	s.recordGas(receipt)

	// The tokens are in custody, so the credit must land even if the caller gives up
	settleCtx, cancel := s.settlementContext(ctx)
	defer cancel()

	params.TxHash = receipt.TxHash.Hex()
	transaction, err := s.store.RecordDeposit(settleCtx, params)
	if err != nil {
		return nil, s.refund(settleCtx, stakeToken, custody, caller, amount, err)
	}

	zap.L().Info("Deposit processed successfully",
		zap.String("pool", pool.Hex()),
		zap.String("participant", caller.Hex()),
		zap.String("amount", value.String()),
		zap.String("new_balance", transaction.BalanceAfter.String()),
		zap.String("tx_hash", receipt.TxHash.Hex()))

	return &models.OperationResult{
		Success:     true,
		Pool:        pool.Hex(),
		Participant: caller.Hex(),
		Amount:      value,
		NewBalance:  transaction.BalanceAfter,
		TxHash:      receipt.TxHash.Hex(),
	}, nil
}

func (s *StakepoolService) recordPendingDeposit(ctx context.Context, params store.StakeParams, cause error) error {
	zap.L().Warn("Deposit transfer outcome unknown, recording it pending",
		zap.String("participant", params.Participant),
		zap.String("amount", params.Amount.String()),
		zap.String("tx_hash", params.TxHash),
		zap.Error(cause))

	transaction, err := s.store.RecordPendingDeposit(ctx, params)
	if err != nil {
		zap.L().Error("Pending deposit could not be recorded, custody may hold unrecorded tokens",
			zap.String("participant", params.Participant),
			zap.String("tx_hash", params.TxHash),
			zap.Error(err))
		return errors.Join(cause, fmt.Errorf("unable to record pending deposit %s: %w", params.TxHash, err))
	}
	return fmt.Errorf("deposit %s pending on %s: %w", transaction.Id, params.TxHash, cause)
}

// refund returns pulled tokens when the ledger could not credit them
func (s *StakepoolService) refund(ctx context.Context, stakeToken, custody, caller common.Address, amount *big.Int, cause error) error {
	zap.L().Error("Ledger credit failed after pull, refunding",
		zap.String("participant", caller.Hex()),
		zap.Stringer("amount", amount),
		zap.Error(cause))

	receipt, err := s.gateway.Push(ctx, stakeToken, custody, caller, amount)
	if err != nil {
		zap.L().Error("Refund failed, custody holds unrecorded tokens",
			zap.String("participant", caller.Hex()),
			zap.Stringer("amount", amount),
			zap.Error(err))
		return errors.Join(fmt.Errorf("unable to record deposit: %w", cause), fmt.Errorf("unable to refund deposit: %w", err))
	}
	s.recordGas(receipt)

	return fmt.Errorf("unable to record deposit, tokens refunded in %s: %w", receipt.TxHash.Hex(), cause)
}

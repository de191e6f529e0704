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
	"sync"
	"time"

	"metag-stakepool-go/internal/access"
	"metag-stakepool-go/internal/models"
	"metag-stakepool-go/internal/store"
	"metag-stakepool-go/internal/token"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

var (
	ErrInvalidAmount  = errors.New("amount must be a positive whole number of base units")
	ErrCustodyDeposit = errors.New("custody account cannot stake into its own pool")
)

// settlementTimeout bounds ledger writes and refunds that run after a token
// transfer, detached from the caller's context. It covers one receipt wait.
const settlementTimeout = 3 * time.Minute

// GasRecorder receives the gas used by every token transaction
type GasRecorder interface {
	Record(method string, gasUsed uint64)
}

// StakepoolService is the call surface of a deployed pool. Writes are
// serialized so the ledger sees one movement at a time, as a chain would.
type StakepoolService struct {
	store   store.LedgerStore
	access  *access.Controller
	gateway token.Gateway
	gas     GasRecorder
	mu      sync.Mutex
}

func NewStakepoolService(ledger store.LedgerStore, gateway token.Gateway, gas GasRecorder) *StakepoolService {
	return &StakepoolService{
		store:   ledger,
		access:  access.NewController(ledger),
		gateway: gateway,
		gas:     gas,
	}
}

func (s *StakepoolService) HealthCheck(ctx context.Context) error {
	_, err := s.store.GetPools(ctx)
	if err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// Pool returns the stored record of a deployed pool
func (s *StakepoolService) Pool(ctx context.Context, pool common.Address) (*models.Pool, error) {
	return s.store.GetPool(ctx, pool.Hex())
}

func (s *StakepoolService) StakeToken(ctx context.Context, pool common.Address) (common.Address, error) {
	record, err := s.store.GetPool(ctx, pool.Hex())
	if err != nil {
		return common.Address{}, err
	}
	return common.HexToAddress(record.StakeToken), nil
}

// RewardToken is recorded at deployment; no reward distribution is performed.
func (s *StakepoolService) RewardToken(ctx context.Context, pool common.Address) (common.Address, error) {
	record, err := s.store.GetPool(ctx, pool.Hex())
	if err != nil {
		return common.Address{}, err
	}
	return common.HexToAddress(record.RewardToken), nil
}

func (s *StakepoolService) recordGas(receipt *token.Receipt) {
	if s.gas == nil || receipt == nil {
		return
	}
	s.gas.Record(receipt.Method, receipt.GasUsed)
}

// settlementContext keeps ctx's values but not its cancellation
func (s *StakepoolService) settlementContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), settlementTimeout)
}

func rejected(pool, participant common.Address, cause error) *models.OperationResult {
	return &models.OperationResult{
		Success:     false,
		Pool:        pool.Hex(),
		Participant: participant.Hex(),
		Error:       cause.Error(),
		Cause:       cause,
	}
}

// isBusinessRejection reports errors caused by the caller's input or state
// rather than by the infrastructure.
func isBusinessRejection(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrCustodyDeposit) ||
		errors.Is(err, store.ErrInsufficientStake) ||
		errors.Is(err, store.ErrPoolNotFound) ||
		errors.Is(err, store.ErrDuplicateTransaction) ||
		errors.Is(err, token.ErrInsufficientAllowance) ||
		errors.Is(err, token.ErrInsufficientBalance) ||
		errors.Is(err, access.ErrNotOwner) ||
		errors.Is(err, access.ErrInvalidAddress)
}

func logRejection(operation string, pool, participant common.Address, err error) {
	zap.L().Warn("Operation rejected",
		zap.String("operation", operation),
		zap.String("pool", pool.Hex()),
		zap.String("participant", participant.Hex()),
		zap.Error(err))
}

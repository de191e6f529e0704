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

package database

import (
	"context"
	"database/sql"
	"fmt"

	"metag-stakepool-go/internal/models"
	"metag-stakepool-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.LedgerStore.
var _ store.LedgerStore = (*Service)(nil)

type Service struct {
	db        *sql.DB
	subledger *SubledgerService
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	db, err := sql.Open("sqlite3", dataSourceName(cfg.Path))
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	// An in-memory database lives and dies with its connection
	if cfg.Path == ":memory:" {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
		cfg.ConnMaxIdleTime = 0
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := newServiceFromDB(db)
	if err := service.initSchema(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Database service initialized successfully")
	return service, nil
}

func newServiceFromDB(db *sql.DB) *Service {
	return &Service{db: db, subledger: NewSubledgerService(db)}
}

func dataSourceName(path string) string {
	if path == ":memory:" {
		return path
	}
	return path + "?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000"
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

func (s *Service) initSchema() error {
	schema := `
	-- Deployed pools
	CREATE TABLE IF NOT EXISTS pools (
		address TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		stake_token TEXT NOT NULL,
		reward_token TEXT NOT NULL,
		custody TEXT NOT NULL,
		network TEXT NOT NULL,
		chain_id INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_pools_owner ON pools(owner);

	-- Owner changes, oldest first
	CREATE TABLE IF NOT EXISTS ownership_events (
		id TEXT PRIMARY KEY,
		pool TEXT NOT NULL REFERENCES pools(address) ON DELETE CASCADE,
		previous_owner TEXT NOT NULL,
		new_owner TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_ownership_events_pool ON ownership_events(pool);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	return s.subledger.InitSchema()
}

// Subledger convenience methods

func (s *Service) GetStakeBalance(ctx context.Context, pool, participant string) (decimal.Decimal, error) {
	return s.subledger.GetBalance(ctx, pool, participant)
}

func (s *Service) GetPoolBalances(ctx context.Context, pool string) ([]models.StakeBalance, error) {
	return s.subledger.GetPoolBalances(ctx, pool)
}

func (s *Service) GetTotalStaked(ctx context.Context, pool string) (decimal.Decimal, error) {
	return s.subledger.GetTotalStaked(ctx, pool)
}

func (s *Service) ReconcileStakeBalance(ctx context.Context, pool, participant string) error {
	return s.subledger.ReconcileBalance(ctx, pool, participant)
}

func (s *Service) GetTransactionHistory(ctx context.Context, pool, participant string, limit, offset int) ([]models.StakeTransaction, error) {
	return s.subledger.GetTransactionHistory(ctx, pool, participant, limit, offset)
}

// RecordDeposit credits a participant after the stake tokens reached custody
func (s *Service) RecordDeposit(ctx context.Context, params store.StakeParams) (*models.StakeTransaction, error) {
	if !params.Amount.IsPositive() {
		return nil, fmt.Errorf("deposit amount must be positive, got %s", params.Amount.String())
	}

	transaction, err := s.subledger.ProcessTransaction(ctx, ProcessTransactionParams{
		Pool:            params.Pool,
		Participant:     params.Participant,
		TransactionType: models.TransactionTypeDeposit,
		Amount:          params.Amount,
		ExternalTxHash:  params.TxHash,
		Reference:       params.Reference,
	})
	if err != nil {
		return nil, fmt.Errorf("error processing deposit transaction: %w", err)
	}

	zap.L().Info("Deposit recorded",
		zap.String("pool", params.Pool),
		zap.String("participant", params.Participant),
		zap.String("amount", params.Amount.String()),
		zap.String("new_balance", transaction.BalanceAfter.String()))

	return transaction, nil
}

// RecordPendingDeposit stores a deposit whose transfer outcome is not known yet
func (s *Service) RecordPendingDeposit(ctx context.Context, params store.StakeParams) (*models.StakeTransaction, error) {
	if !params.Amount.IsPositive() {
		return nil, fmt.Errorf("deposit amount must be positive, got %s", params.Amount.String())
	}
	if params.TxHash == "" {
		return nil, fmt.Errorf("pending deposit needs the transfer hash")
	}

	transaction, err := s.subledger.ProcessTransaction(ctx, ProcessTransactionParams{
		Pool:            params.Pool,
		Participant:     params.Participant,
		TransactionType: models.TransactionTypeDeposit,
		Amount:          params.Amount,
		ExternalTxHash:  params.TxHash,
		Reference:       params.Reference,
		Status:          models.TransactionStatusPending,
		Deferred:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("error recording pending deposit: %w", err)
	}

	zap.L().Warn("Deposit pending",
		zap.String("pool", params.Pool),
		zap.String("participant", params.Participant),
		zap.String("amount", params.Amount.String()),
		zap.String("tx_hash", params.TxHash))

	return transaction, nil
}

func (s *Service) SettleDeposit(ctx context.Context, id string) (*models.StakeTransaction, error) {
	return s.subledger.SettleDeposit(ctx, id)
}

func (s *Service) UpdateTransactionStatus(ctx context.Context, id, status, txHash string) error {
	return s.subledger.UpdateTransactionStatus(ctx, id, status, txHash)
}

func (s *Service) GetPendingTransactions(ctx context.Context, pool string) ([]models.StakeTransaction, error) {
	return s.subledger.GetPendingTransactions(ctx, pool)
}

// RecordWithdrawal debits a participant before the stake tokens leave custody.
// The row stays pending until the transfer is confirmed or reversed.
func (s *Service) RecordWithdrawal(ctx context.Context, params store.StakeParams) (*models.StakeTransaction, error) {
	if !params.Amount.IsPositive() {
		return nil, fmt.Errorf("withdrawal amount must be positive, got %s", params.Amount.String())
	}

	transaction, err := s.subledger.ProcessTransaction(ctx, ProcessTransactionParams{
		Pool:            params.Pool,
		Participant:     params.Participant,
		TransactionType: models.TransactionTypeWithdrawal,
		Amount:          params.Amount.Neg(),
		ExternalTxHash:  params.TxHash,
		Reference:       params.Reference,
		Status:          models.TransactionStatusPending,
	})
	if err != nil {
		return nil, fmt.Errorf("error processing withdrawal transaction: %w", err)
	}

	zap.L().Info("Withdrawal recorded",
		zap.String("pool", params.Pool),
		zap.String("participant", params.Participant),
		zap.String("amount", params.Amount.String()),
		zap.String("new_balance", transaction.BalanceAfter.String()))

	return transaction, nil
}

// ReverseWithdrawal credits back a withdrawal whose token transfer failed.
// params.Reference names the pending withdrawal.
func (s *Service) ReverseWithdrawal(ctx context.Context, params store.StakeParams) (*models.StakeTransaction, error) {
	if !params.Amount.IsPositive() {
		return nil, fmt.Errorf("reversal amount must be positive, got %s", params.Amount.String())
	}
	if params.Reference == "" {
		return nil, fmt.Errorf("reversal must reference the withdrawal")
	}

	transaction, err := s.subledger.ProcessTransaction(ctx, ProcessTransactionParams{
		Pool:            params.Pool,
		Participant:     params.Participant,
		TransactionType: models.TransactionTypeWithdrawalReversal,
		Amount:          params.Amount,
		ExternalTxHash:  params.TxHash,
		Reference:       params.Reference,
		Reverses:        params.Reference,
	})
	if err != nil {
		return nil, fmt.Errorf("error reversing withdrawal: %w", err)
	}

	zap.L().Warn("Withdrawal reversed",
		zap.String("pool", params.Pool),
		zap.String("participant", params.Participant),
		zap.String("amount", params.Amount.String()),
		zap.String("reference", params.Reference))

	return transaction, nil
}

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
	"database/sql"

	"metag-stakepool-go/internal/store"
)

// Sentinel errors for database operations
var (
	ErrDuplicateTransaction   = store.ErrDuplicateTransaction
	ErrConcurrentModification = store.ErrConcurrentModification
	ErrInsufficientStake      = store.ErrInsufficientStake
)

// SubledgerService handles stake subledger operations
type SubledgerService struct {
	db *sql.DB
}

func NewSubledgerService(db *sql.DB) *SubledgerService {
	return &SubledgerService{
		db: db,
	}
}

// InitSchema creates the subledger tables. Amounts are stored as TEXT so
// 18-decimal base units survive without float rounding.
func (s *SubledgerService) InitSchema() error {
	schema := `
	-- Stake Balances Table (Current State - Hot Data)
	CREATE TABLE IF NOT EXISTS stake_balances (
		id TEXT PRIMARY KEY,
		pool TEXT NOT NULL,
		participant TEXT NOT NULL,
		balance TEXT NOT NULL DEFAULT '0',
		last_transaction_id TEXT,
		version INTEGER NOT NULL DEFAULT 1,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(pool, participant)
	);

	-- Stake Transactions Table (Audit Trail - Cold Data)
	CREATE TABLE IF NOT EXISTS stake_transactions (
		id TEXT PRIMARY KEY,
		pool TEXT NOT NULL,
		participant TEXT NOT NULL,
		transaction_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		balance_before TEXT NOT NULL,
		balance_after TEXT NOT NULL,
		external_tx_hash TEXT,
		reference TEXT,
		status TEXT DEFAULT 'confirmed',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		processed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_stake_balances_pool ON stake_balances(pool);
	CREATE INDEX IF NOT EXISTS idx_stake_transactions_pool_participant ON stake_transactions(pool, participant);
	CREATE INDEX IF NOT EXISTS idx_stake_transactions_created_at ON stake_transactions(created_at);
	CREATE INDEX IF NOT EXISTS idx_stake_transactions_tx_hash ON stake_transactions(external_tx_hash);

	-- Journal Entries for Double-Entry Bookkeeping
	CREATE TABLE IF NOT EXISTS journal_entries (
		id TEXT PRIMARY KEY,
		transaction_id TEXT NOT NULL,
		account_type TEXT NOT NULL,
		account_id TEXT NOT NULL,
		debit_amount TEXT DEFAULT '0',
		credit_amount TEXT DEFAULT '0',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_journal_transaction_id ON journal_entries(transaction_id);
	CREATE INDEX IF NOT EXISTS idx_journal_account ON journal_entries(account_type, account_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

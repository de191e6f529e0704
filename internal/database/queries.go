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

const (
	// Pool queries
	queryInsertPool = `
		INSERT INTO pools (address, owner, stake_token, reward_token, custody, network, chain_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	queryGetPool = `
		SELECT address, owner, stake_token, reward_token, custody, network, chain_id, created_at, updated_at
		FROM pools
		WHERE LOWER(address) = LOWER(?)`

	queryGetPools = `
		SELECT address, owner, stake_token, reward_token, custody, network, chain_id, created_at, updated_at
		FROM pools
		ORDER BY created_at`

	queryUpdatePoolOwner = `
		UPDATE pools
		SET owner = ?, updated_at = CURRENT_TIMESTAMP
		WHERE LOWER(address) = LOWER(?) AND LOWER(owner) = LOWER(?)`

	queryInsertOwnershipEvent = `
		INSERT INTO ownership_events (id, pool, previous_owner, new_owner)
		VALUES (?, ?, ?, ?)`

	queryGetOwnershipEvents = `
		SELECT id, pool, previous_owner, new_owner, created_at
		FROM ownership_events
		WHERE LOWER(pool) = LOWER(?)
		ORDER BY created_at, rowid`

	// Balance queries
	queryGetBalance = `
		SELECT balance
		FROM stake_balances
		WHERE pool = ? AND participant = ?`

	queryGetPoolBalances = `
		SELECT id, pool, participant, balance, COALESCE(last_transaction_id, ''), version, updated_at
		FROM stake_balances
		WHERE pool = ? AND balance != '0'
		ORDER BY participant`

	queryGetPoolBalanceValues = `
		SELECT balance
		FROM stake_balances
		WHERE pool = ?`

	// Every row that moved the balance: all but deposits still pending or failed
	queryGetAppliedAmounts = `
		SELECT amount
		FROM stake_transactions
		WHERE pool = ? AND participant = ?
		  AND (status IN ('confirmed', 'reversed') OR (status = 'pending' AND transaction_type != 'deposit'))`

	// Subledger transaction queries
	queryCheckDuplicateTransaction = `
		SELECT id FROM stake_transactions WHERE external_tx_hash = ? LIMIT 1`

	queryGetAccountBalance = `
		SELECT id, balance, version
		FROM stake_balances
		WHERE pool = ? AND participant = ?`

	queryInsertAccountBalance = `
		INSERT INTO stake_balances (id, pool, participant, balance, version)
		VALUES (?, ?, ?, ?, ?)`

	queryInsertTransaction = `
		INSERT INTO stake_transactions (id, pool, participant, transaction_type, amount, balance_before, balance_after,
		                                external_tx_hash, reference, status, created_at, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryUpdateAccountBalance = `
		UPDATE stake_balances
		SET balance = ?, last_transaction_id = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE pool = ? AND participant = ? AND version = ?`

	queryGetTransaction = `
		SELECT id, pool, participant, transaction_type, amount, balance_before, balance_after,
		       COALESCE(external_tx_hash, ''), COALESCE(reference, ''), status, created_at, processed_at
		FROM stake_transactions
		WHERE id = ?`

	queryGetPendingTransactions = `
		SELECT id, pool, participant, transaction_type, amount, balance_before, balance_after,
		       COALESCE(external_tx_hash, ''), COALESCE(reference, ''), status, created_at, processed_at
		FROM stake_transactions
		WHERE pool = ? AND status = 'pending'
		ORDER BY created_at, rowid`

	queryMarkWithdrawalReversed = `
		UPDATE stake_transactions
		SET status = 'reversed', processed_at = ?
		WHERE id = ? AND transaction_type = 'withdrawal' AND status = 'pending'`

	querySettleDeposit = `
		UPDATE stake_transactions
		SET status = 'confirmed', balance_before = ?, balance_after = ?, processed_at = ?
		WHERE id = ? AND status = 'pending'`

	queryUpdateTransactionStatus = `
		UPDATE stake_transactions
		SET status = ?, external_tx_hash = CASE WHEN ? = '' THEN external_tx_hash ELSE ? END, processed_at = ?
		WHERE id = ? AND status = 'pending'`

	queryInsertJournalEntry = `
		INSERT INTO journal_entries (id, transaction_id, account_type, account_id, debit_amount, credit_amount)
		VALUES (?, ?, ?, ?, ?, ?)`

	queryGetTransactionHistory = `
		SELECT id, pool, participant, transaction_type, amount, balance_before, balance_after,
		       COALESCE(external_tx_hash, ''), COALESCE(reference, ''), status, created_at, processed_at
		FROM stake_transactions
		WHERE pool = ? AND participant = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`
)

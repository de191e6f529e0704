package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"metag-stakepool-go/internal/models"
	"metag-stakepool-go/internal/store"
)

// ProcessTransactionParams contains the parameters for processing a stake movement.
// Amount is signed: positive credits the participant, negative debits.
type ProcessTransactionParams struct {
	Pool            string
	Participant     string
	TransactionType string
	Amount          decimal.Decimal
	ExternalTxHash  string
	Reference       string
	// Status defaults to confirmed
	Status string
	// Deferred records the row without touching the balance
	Deferred bool
	// Reverses names a pending withdrawal to mark reversed in the same transaction
	Reverses string
}

// ProcessTransaction atomically updates the stake balance and records the transaction
func (s *SubledgerService) ProcessTransaction(ctx context.Context, params ProcessTransactionParams) (*models.StakeTransaction, error) {

	zap.L().Info("Processing stake transaction",
		zap.String("pool", params.Pool),
		zap.String("participant", params.Participant),
		zap.String("type", params.TransactionType),
		zap.String("amount", params.Amount.String()),
		zap.String("tx_hash", params.ExternalTxHash))

	if !params.Amount.IsInteger() {
		return nil, fmt.Errorf("amount %s is not a whole number of base units", params.Amount.String())
	}

	status := params.Status
	if status == "" {
		status = models.TransactionStatusConfirmed
	}

	// Check for duplicate external transaction hash
	if params.ExternalTxHash != "" {
		var existingTxId string
		err := s.db.QueryRowContext(ctx, queryCheckDuplicateTransaction, params.ExternalTxHash).Scan(&existingTxId)
		if err == nil {
			zap.L().Warn("Duplicate external transaction hash detected, skipping",
				zap.String("tx_hash", params.ExternalTxHash),
				zap.String("existing_internal_tx_id", existingTxId))
			return nil, fmt.Errorf("%w: tx hash %s already recorded", ErrDuplicateTransaction, params.ExternalTxHash)
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to check for duplicate transaction: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	transactionId := uuid.New().String()

	var currentBalance, newBalance decimal.Decimal
	if params.Deferred {
		currentBalance, err = currentBalanceTx(ctx, tx, params.Pool, params.Participant)
		newBalance = currentBalance
	} else {
		currentBalance, newBalance, err = applyBalance(ctx, tx, params.Pool, params.Participant, params.Amount, transactionId)
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, queryInsertTransaction,
		transactionId, params.Pool, params.Participant, params.TransactionType,
		params.Amount.String(), currentBalance.String(), newBalance.String(),
		params.ExternalTxHash, params.Reference, status, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert transaction: %w", err)
	}

	transaction := &models.StakeTransaction{
		Id:              transactionId,
		Pool:            params.Pool,
		Participant:     params.Participant,
		TransactionType: params.TransactionType,
		Amount:          params.Amount,
		BalanceBefore:   currentBalance,
		BalanceAfter:    newBalance,
		ExternalTxHash:  params.ExternalTxHash,
		Reference:       params.Reference,
		Status:          status,
		CreatedAt:       now,
		ProcessedAt:     now,
	}

	if !params.Deferred {
		if err := s.addJournalEntries(ctx, tx, transaction); err != nil {
			return nil, fmt.Errorf("failed to add journal entries: %w", err)
		}
	}

	if params.Reverses != "" {
		result, err := tx.ExecContext(ctx, queryMarkWithdrawalReversed, now, params.Reverses)
		if err != nil {
			return nil, fmt.Errorf("failed to mark withdrawal reversed: %w", err)
		}
		if rows, err := result.RowsAffected(); err != nil {
			return nil, fmt.Errorf("failed to check rows affected: %w", err)
		} else if rows == 0 {
			return nil, fmt.Errorf("%w: withdrawal %s", store.ErrTransactionNotPending, params.Reverses)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Stake transaction processed successfully",
		zap.String("transaction_id", transactionId),
		zap.String("pool", params.Pool),
		zap.String("participant", params.Participant),
		zap.String("status", status),
		zap.String("old_balance", currentBalance.String()),
		zap.String("new_balance", newBalance.String()))

	return transaction, nil
}

// SettleDeposit credits a pending deposit once its transfer is known to be mined
func (s *SubledgerService) SettleDeposit(ctx context.Context, id string) (*models.StakeTransaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	transaction, err := scanTransaction(tx.QueryRowContext(ctx, queryGetTransaction, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrTransactionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	if transaction.TransactionType != models.TransactionTypeDeposit || transaction.Status != models.TransactionStatusPending {
		return nil, fmt.Errorf("%w: %s %s is %s", store.ErrTransactionNotPending, transaction.TransactionType, id, transaction.Status)
	}

	before, after, err := applyBalance(ctx, tx, transaction.Pool, transaction.Participant, transaction.Amount, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, querySettleDeposit, before.String(), after.String(), now, id); err != nil {
		return nil, fmt.Errorf("failed to settle deposit: %w", err)
	}

	transaction.BalanceBefore = before
	transaction.BalanceAfter = after
	transaction.Status = models.TransactionStatusConfirmed
	transaction.ProcessedAt = now

	if err := s.addJournalEntries(ctx, tx, transaction); err != nil {
		return nil, fmt.Errorf("failed to add journal entries: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Pending deposit settled",
		zap.String("transaction_id", id),
		zap.String("participant", transaction.Participant),
		zap.String("new_balance", after.String()))

	return transaction, nil
}

// UpdateTransactionStatus moves a pending row to status. A pending deposit
// can only be confirmed through SettleDeposit, which credits it.
func (s *SubledgerService) UpdateTransactionStatus(ctx context.Context, id, status, txHash string) error {
	switch status {
	case models.TransactionStatusConfirmed, models.TransactionStatusPending, models.TransactionStatusFailed:
	default:
		return fmt.Errorf("unsupported transaction status %q", status)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	transaction, err := scanTransaction(tx.QueryRowContext(ctx, queryGetTransaction, id))
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", store.ErrTransactionNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("failed to get transaction: %w", err)
	}
	if transaction.Status != models.TransactionStatusPending {
		return fmt.Errorf("%w: %s is %s", store.ErrTransactionNotPending, id, transaction.Status)
	}
	if transaction.TransactionType == models.TransactionTypeDeposit && status == models.TransactionStatusConfirmed {
		return fmt.Errorf("deposit %s must be settled to be confirmed", id)
	}
	if transaction.TransactionType == models.TransactionTypeWithdrawal && status == models.TransactionStatusFailed {
		return fmt.Errorf("withdrawal %s must be reversed, not failed", id)
	}

	if _, err := tx.ExecContext(ctx, queryUpdateTransactionStatus, status, txHash, txHash, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("failed to update transaction status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Transaction status updated",
		zap.String("transaction_id", id),
		zap.String("status", status),
		zap.String("tx_hash", txHash))
	return nil
}

// GetPendingTransactions returns the unsettled rows of a pool, oldest first
func (s *SubledgerService) GetPendingTransactions(ctx context.Context, pool string) ([]models.StakeTransaction, error) {
	rows, err := s.db.QueryContext(ctx, queryGetPendingTransactions, pool)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending transactions: %w", err)
	}
	return collectTransactions(rows)
}

func currentBalanceTx(ctx context.Context, tx *sql.Tx, pool, participant string) (decimal.Decimal, error) {
	var balanceStr string
	err := tx.QueryRowContext(ctx, queryGetBalance, pool, participant).Scan(&balanceStr)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get current balance: %w", err)
	}
	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse current balance '%s': %w", balanceStr, err)
	}
	return balance, nil
}

// applyBalance adds amount to the participant's stake under optimistic locking
func applyBalance(ctx context.Context, tx *sql.Tx, pool, participant string, amount decimal.Decimal, transactionId string) (decimal.Decimal, decimal.Decimal, error) {
	var currentBalanceStr string
	var accountId string
	var version int64

	err := tx.QueryRowContext(ctx, queryGetAccountBalance, pool, participant).Scan(&accountId, &currentBalanceStr, &version)

	var currentBalance decimal.Decimal
	if errors.Is(err, sql.ErrNoRows) {
		accountId = uuid.New().String()
		currentBalance = decimal.Zero
		version = 1

		_, err = tx.ExecContext(ctx, queryInsertAccountBalance, accountId, pool, participant, "0", 1)
		if err != nil {
			return decimal.Zero, decimal.Zero, fmt.Errorf("failed to create stake balance: %w", err)
		}
	} else if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("failed to get current balance: %w", err)
	} else {
		currentBalance, err = decimal.NewFromString(currentBalanceStr)
		if err != nil {
			return decimal.Zero, decimal.Zero, fmt.Errorf("failed to parse current balance '%s': %w", currentBalanceStr, err)
		}
	}

	newBalance := currentBalance.Add(amount)
	if newBalance.IsNegative() {
		zap.L().Warn("Rejecting stake transaction that would overdraw balance",
			zap.String("pool", pool),
			zap.String("participant", participant),
			zap.String("balance", currentBalance.String()),
			zap.String("amount", amount.String()))
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: balance %s, requested %s", ErrInsufficientStake, currentBalance.String(), amount.Neg().String())
	}

	// Optimistic locking on the balance row
	result, err := tx.ExecContext(ctx, queryUpdateAccountBalance, newBalance.String(), transactionId, pool, participant, version)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("failed to update balance: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return decimal.Zero, decimal.Zero, fmt.Errorf("balance update failed - %w", ErrConcurrentModification)
	}

	return currentBalance, newBalance, nil
}

type journalEntry struct {
	accountType  string
	accountId    string
	debitAmount  decimal.Decimal
	creditAmount decimal.Decimal
}

// addJournalEntries creates double-entry bookkeeping entries.
// A credit to the participant's stake is a liability of the pool custody.
func (s *SubledgerService) addJournalEntries(ctx context.Context, tx *sql.Tx, transaction *models.StakeTransaction) error {
	stakeAccount := fmt.Sprintf("%s_%s", transaction.Pool, transaction.Participant)
	custodyAccount := fmt.Sprintf("custody_%s", transaction.Pool)
	amount := transaction.Amount.Abs()

	var entries []journalEntry
	if transaction.Amount.IsPositive() {
		entries = []journalEntry{
			{"participant_stake", stakeAccount, amount, decimal.Zero},
			{"pool_liability", custodyAccount, decimal.Zero, amount},
		}
	} else {
		entries = []journalEntry{
			{"participant_stake", stakeAccount, decimal.Zero, amount},
			{"pool_liability", custodyAccount, amount, decimal.Zero},
		}
	}

	for _, entry := range entries {
		_, err := tx.ExecContext(ctx, queryInsertJournalEntry,
			uuid.New().String(), transaction.Id, entry.accountType, entry.accountId,
			entry.debitAmount.String(), entry.creditAmount.String())
		if err != nil {
			return err
		}
	}

	return nil
}

// GetTransactionHistory returns paginated stake history for a participant, newest first
func (s *SubledgerService) GetTransactionHistory(ctx context.Context, pool, participant string, limit, offset int) ([]models.StakeTransaction, error) {
	zap.L().Debug("Getting transaction history",
		zap.String("pool", pool),
		zap.String("participant", participant),
		zap.Int("limit", limit),
		zap.Int("offset", offset))

	rows, err := s.db.QueryContext(ctx, queryGetTransactionHistory, pool, participant, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction history: %w", err)
	}
	return collectTransactions(rows)
}

func collectTransactions(rows *sql.Rows) ([]models.StakeTransaction, error) {
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var transactions []models.StakeTransaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *tx)
	}

	if err := rows.Err(); err != nil {
		zap.L().Error("Error during transaction row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}

	return transactions, nil
}

func scanTransaction(row rowScanner) (*models.StakeTransaction, error) {
	var tx models.StakeTransaction
	var amountStr, balanceBeforeStr, balanceAfterStr string
	err := row.Scan(&tx.Id, &tx.Pool, &tx.Participant, &tx.TransactionType,
		&amountStr, &balanceBeforeStr, &balanceAfterStr,
		&tx.ExternalTxHash, &tx.Reference,
		&tx.Status, &tx.CreatedAt, &tx.ProcessedAt)
	if err != nil {
		return nil, err
	}
	if err := parseAmounts(&tx, amountStr, balanceBeforeStr, balanceAfterStr); err != nil {
		return nil, err
	}
	return &tx, nil
}

func parseAmounts(tx *models.StakeTransaction, amountStr, balanceBeforeStr, balanceAfterStr string) error {
	var err error
	tx.Amount, err = decimal.NewFromString(amountStr)
	if err != nil {
		return fmt.Errorf("failed to parse amount '%s': %w", amountStr, err)
	}
	tx.BalanceBefore, err = decimal.NewFromString(balanceBeforeStr)
	if err != nil {
		return fmt.Errorf("failed to parse balance_before '%s': %w", balanceBeforeStr, err)
	}
	tx.BalanceAfter, err = decimal.NewFromString(balanceAfterStr)
	if err != nil {
		return fmt.Errorf("failed to parse balance_after '%s': %w", balanceAfterStr, err)
	}
	return nil
}

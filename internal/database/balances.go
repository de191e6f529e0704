package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"metag-stakepool-go/internal/models"
)

// GetBalance returns current stake for pool/participant (O(1) lookup)
func (s *SubledgerService) GetBalance(ctx context.Context, pool, participant string) (decimal.Decimal, error) {
	zap.L().Debug("Getting balance", zap.String("pool", pool), zap.String("participant", participant))

	var balanceStr string
	err := s.db.QueryRowContext(ctx, queryGetBalance, pool, participant).Scan(&balanceStr)
	if errors.Is(err, sql.ErrNoRows) {
		// No balance record means zero balance
		return decimal.Zero, nil
	}
	if err != nil {
		zap.L().Error("Failed to get balance", zap.String("pool", pool), zap.String("participant", participant), zap.Error(err))
		return decimal.Zero, fmt.Errorf("failed to get balance: %w", err)
	}

	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		zap.L().Error("Failed to parse balance", zap.String("balance_str", balanceStr), zap.Error(err))
		return decimal.Zero, fmt.Errorf("failed to parse balance: %w", err)
	}

	return balance, nil
}

// GetPoolBalances returns all non-zero stake balances in a pool
func (s *SubledgerService) GetPoolBalances(ctx context.Context, pool string) ([]models.StakeBalance, error) {
	zap.L().Debug("Getting pool balances", zap.String("pool", pool))

	rows, err := s.db.QueryContext(ctx, queryGetPoolBalances, pool)
	if err != nil {
		zap.L().Error("Failed to get pool balances", zap.String("pool", pool), zap.Error(err))
		return nil, fmt.Errorf("failed to get pool balances: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var balances []models.StakeBalance
	for rows.Next() {
		var balance models.StakeBalance
		var balanceStr string
		err := rows.Scan(&balance.Id, &balance.Pool, &balance.Participant, &balanceStr,
			&balance.LastTransactionId, &balance.Version, &balance.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}

		balance.Balance, err = decimal.NewFromString(balanceStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse balance '%s': %w", balanceStr, err)
		}

		balances = append(balances, balance)
	}

	if err := rows.Err(); err != nil {
		zap.L().Error("Error during balance row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating balance rows: %w", err)
	}

	zap.L().Debug("Retrieved pool balances", zap.String("pool", pool), zap.Int("count", len(balances)))
	return balances, nil
}

// GetTotalStaked sums every participant balance of a pool. The sum is
// done in Go because SQLite's SUM over TEXT would go through REAL.
func (s *SubledgerService) GetTotalStaked(ctx context.Context, pool string) (decimal.Decimal, error) {
	total, err := s.sumColumn(ctx, queryGetPoolBalanceValues, pool)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to total pool stake: %w", err)
	}
	return total, nil
}

// ReconcileBalance verifies that current stake matches the sum of every transaction applied to it
func (s *SubledgerService) ReconcileBalance(ctx context.Context, pool, participant string) error {
	zap.L().Info("Reconciling balance", zap.String("pool", pool), zap.String("participant", participant))

	currentBalance, err := s.GetBalance(ctx, pool, participant)
	if err != nil {
		return fmt.Errorf("failed to get current balance: %w", err)
	}

	calculatedBalance, err := s.sumColumn(ctx, queryGetAppliedAmounts, pool, participant)
	if err != nil {
		return fmt.Errorf("failed to calculate balance from transactions: %w", err)
	}

	if !currentBalance.Equal(calculatedBalance) {
		zap.L().Error("Balance reconciliation failed",
			zap.String("pool", pool),
			zap.String("participant", participant),
			zap.String("current_balance", currentBalance.String()),
			zap.String("calculated_balance", calculatedBalance.String()),
			zap.String("difference", currentBalance.Sub(calculatedBalance).String()))
		return fmt.Errorf("balance mismatch: current=%s, calculated=%s", currentBalance.String(), calculatedBalance.String())
	}

	zap.L().Info("Balance reconciliation successful",
		zap.String("pool", pool),
		zap.String("participant", participant),
		zap.String("balance", currentBalance.String()))
	return nil
}

func (s *SubledgerService) sumColumn(ctx context.Context, query string, args ...any) (decimal.Decimal, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return decimal.Zero, err
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	total := decimal.Zero
	for rows.Next() {
		var valueStr string
		if err := rows.Scan(&valueStr); err != nil {
			return decimal.Zero, err
		}
		value, err := decimal.NewFromString(valueStr)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to parse amount '%s': %w", valueStr, err)
		}
		total = total.Add(value)
	}

	return total, rows.Err()
}

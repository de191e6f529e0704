package api

import (
	"context"
	"errors"
	"fmt"

	"metag-stakepool-go/internal/models"
	"metag-stakepool-go/internal/store"
	"metag-stakepool-go/internal/token"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// SettlePending resolves the pool's pending movements against the chain.
// Mined deposits are credited and mined withdrawals confirmed; reverted
// deposits are failed and reverted withdrawals credited back. Movements
// still in flight are left for a later pass.
func (s *StakepoolService) SettlePending(ctx context.Context, pool common.Address) (*models.SettlementResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, err := s.store.GetPendingTransactions(ctx, pool.Hex())
	if err != nil {
		return nil, fmt.Errorf("unable to load pending transactions: %w", err)
	}

	result := &models.SettlementResult{Pool: pool.Hex()}
	for _, transaction := range pending {
		if transaction.ExternalTxHash == "" {
			// Interrupted before the transfer was signed or confirmed
			zap.L().Warn("Pending transaction has no transfer hash, needs review",
				zap.String("transaction_id", transaction.Id),
				zap.String("type", transaction.TransactionType),
				zap.String("participant", transaction.Participant))
			result.Unresolved++
			continue
		}

		_, err := s.gateway.TransactionStatus(ctx, common.HexToHash(transaction.ExternalTxHash))
		switch {
		case err == nil:
			err = s.settleMined(ctx, transaction)
			result.Confirmed++
		case errors.Is(err, token.ErrTransactionReverted):
			err = s.settleReverted(ctx, transaction)
			result.Reverted++
		case errors.Is(err, token.ErrOutcomeUnknown):
			result.Unresolved++
			continue
		default:
			return result, fmt.Errorf("unable to check transfer %s: %w", transaction.ExternalTxHash, err)
		}
		if err != nil {
			return result, err
		}
	}

	if len(pending) > 0 {
		zap.L().Info("Pending transactions settled",
			zap.String("pool", pool.Hex()),
			zap.Int("confirmed", result.Confirmed),
			zap.Int("reverted", result.Reverted),
			zap.Int("unresolved", result.Unresolved))
	}
	return result, nil
}

func (s *StakepoolService) settleMined(ctx context.Context, transaction models.StakeTransaction) error {
	switch transaction.TransactionType {
	case models.TransactionTypeDeposit:
		if _, err := s.store.SettleDeposit(ctx, transaction.Id); err != nil {
			return fmt.Errorf("unable to settle deposit %s: %w", transaction.Id, err)
		}
	case models.TransactionTypeWithdrawal:
		if err := s.store.UpdateTransactionStatus(ctx, transaction.Id, models.TransactionStatusConfirmed, ""); err != nil {
			return fmt.Errorf("unable to confirm withdrawal %s: %w", transaction.Id, err)
		}
	default:
		return fmt.Errorf("unexpected pending %s %s", transaction.TransactionType, transaction.Id)
	}
	return nil
}

func (s *StakepoolService) settleReverted(ctx context.Context, transaction models.StakeTransaction) error {
	switch transaction.TransactionType {
	case models.TransactionTypeDeposit:
		if err := s.store.UpdateTransactionStatus(ctx, transaction.Id, models.TransactionStatusFailed, ""); err != nil {
			return fmt.Errorf("unable to fail deposit %s: %w", transaction.Id, err)
		}
	case models.TransactionTypeWithdrawal:
		_, err := s.store.ReverseWithdrawal(ctx, store.StakeParams{
			Pool:        transaction.Pool,
			Participant: transaction.Participant,
			Amount:      transaction.Amount.Abs(),
			Reference:   transaction.Id,
		})
		if err != nil {
			return fmt.Errorf("unable to reverse withdrawal %s: %w", transaction.Id, err)
		}
	default:
		return fmt.Errorf("unexpected pending %s %s", transaction.TransactionType, transaction.Id)
	}
	return nil
}

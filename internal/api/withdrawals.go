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

// Withdraw debits the caller's stake and transfers the tokens out of custody.
// A transfer that definitely failed is credited back with a
// withdrawal_reversal entry; one whose outcome is unknown stays pending until
// SettlePending resolves it.
func (s *StakepoolService) Withdraw(ctx context.Context, pool, caller common.Address, amount *big.Int) (*models.OperationResult, error) {
	zap.L().Info("Processing withdrawal",
		zap.String("pool", pool.Hex()),
		zap.String("participant", caller.Hex()),
		zap.Stringer("amount", amount))

	if amount == nil || amount.Sign() <= 0 {
		err := fmt.Errorf("%w: got %v", ErrInvalidAmount, amount)
		logRejection("withdrawal", pool, caller, err)
		return rejected(pool, caller, err), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.store.GetPool(ctx, pool.Hex())
	if err != nil {
		if isBusinessRejection(err) {
			logRejection("withdrawal", pool, caller, err)
			return rejected(pool, caller, err), nil
		}
		return nil, fmt.Errorf("unable to load pool: %w", err)
	}
	stakeToken := common.HexToAddress(record.StakeToken)
	custody := common.HexToAddress(record.Custody)

	value := token.ToDecimal(amount)
	params := store.StakeParams{
		Pool:        pool.Hex(),
		Participant: caller.Hex(),
		Amount:      value,
	}

	transaction, err := s.store.RecordWithdrawal(ctx, params)
	if err != nil {
		if isBusinessRejection(err) {
			logRejection("withdrawal", pool, caller, err)
			return rejected(pool, caller, err), nil
		}
		zap.L().Error("Withdrawal processing failed",
			zap.String("participant", caller.Hex()),
			zap.String("amount", value.String()),
			zap.Error(err))
		return nil, fmt.Errorf("unable to record withdrawal: %w", err)
	}

	// The stake is debited, so the ledger must follow the transfer even if
	// the caller gives up.
	settleCtx, cancel := s.settlementContext(ctx)
	defer cancel()

	receipt, err := s.gateway.Push(ctx, stakeToken, custody, caller, amount)
	if err != nil {
		if hash, ok := token.PendingTransaction(err); ok {
			return nil, s.leaveWithdrawalPending(settleCtx, transaction, hash, err)
		}
		params.Reference = transaction.Id
		return nil, s.reverseWithdrawal(settleCtx, params, err)
	}
	s.recordGas(receipt)

	if err := s.store.UpdateTransactionStatus(settleCtx, transaction.Id, models.TransactionStatusConfirmed, receipt.TxHash.Hex()); err != nil {
		zap.L().Error("Withdrawal transferred but left pending in the ledger",
			zap.String("withdrawal_id", transaction.Id),
			zap.String("tx_hash", receipt.TxHash.Hex()),
			zap.Error(err))
		return nil, fmt.Errorf("withdrawal %s transferred in %s but not confirmed: %w", transaction.Id, receipt.TxHash.Hex(), err)
	}

	zap.L().Info("Withdrawal processed successfully",
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

// reverseWithdrawal credits back a withdrawal whose transfer did not happen.
// params.Reference names the withdrawal.
func (s *StakepoolService) reverseWithdrawal(ctx context.Context, params store.StakeParams, cause error) error {
	if _, err := s.store.ReverseWithdrawal(ctx, params); err != nil {
		zap.L().Error("Withdrawal reversal failed, stake stays debited",
			zap.String("participant", params.Participant),
			zap.String("withdrawal_id", params.Reference),
			zap.Error(err))
		return errors.Join(fmt.Errorf("unable to transfer stake tokens: %w", cause), fmt.Errorf("unable to reverse withdrawal: %w", err))
	}
	return fmt.Errorf("unable to transfer stake tokens, withdrawal %s reversed: %w", params.Reference, cause)
}

// leaveWithdrawalPending keeps the debit and attaches the transfer hash so
// the withdrawal can be settled once the chain has decided.
func (s *StakepoolService) leaveWithdrawalPending(ctx context.Context, transaction *models.StakeTransaction, hash common.Hash, cause error) error {
	zap.L().Warn("Withdrawal transfer outcome unknown, left pending",
		zap.String("withdrawal_id", transaction.Id),
		zap.String("participant", transaction.Participant),
		zap.String("tx_hash", hash.Hex()),
		zap.Error(cause))

	if err := s.store.UpdateTransactionStatus(ctx, transaction.Id, models.TransactionStatusPending, hash.Hex()); err != nil {
		return errors.Join(cause, fmt.Errorf("unable to attach %s to withdrawal %s: %w", hash.Hex(), transaction.Id, err))
	}
	return fmt.Errorf("withdrawal %s pending on %s: %w", transaction.Id, hash.Hex(), cause)
}

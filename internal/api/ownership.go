package api

import (
	"context"
	"fmt"

	"metag-stakepool-go/internal/models"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

func (s *StakepoolService) Owner(ctx context.Context, pool common.Address) (common.Address, error) {
	return s.access.Owner(ctx, pool)
}

// TransferOwnership hands the pool to newOwner. Only the current owner may call it.
func (s *StakepoolService) TransferOwnership(ctx context.Context, pool, caller, newOwner common.Address) (*models.OperationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.access.TransferOwnership(ctx, pool, caller, newOwner); err != nil {
		if isBusinessRejection(err) {
			logRejection("transfer_ownership", pool, caller, err)
			return rejected(pool, caller, err), nil
		}
		zap.L().Error("Ownership transfer failed", zap.String("pool", pool.Hex()), zap.Error(err))
		return nil, fmt.Errorf("unable to transfer ownership: %w", err)
	}

	return &models.OperationResult{
		Success:     true,
		Pool:        pool.Hex(),
		Participant: newOwner.Hex(),
	}, nil
}

func (s *StakepoolService) OwnershipHistory(ctx context.Context, pool common.Address) ([]models.OwnershipEvent, error) {
	return s.store.GetOwnershipEvents(ctx, pool.Hex())
}

package common

import (
	"context"
	"fmt"

	"metag-stakepool-go/internal/models"
	"metag-stakepool-go/internal/store"

	"go.uber.org/zap"
)

// PoolInfo represents a pool selected for a command-line report
type PoolInfo struct {
	Address    string
	Owner      string
	StakeToken string
	Network    string
}

// InitializePools returns the pools a report should cover. With a filter only
// that pool is returned; otherwise every pool recorded for network.
func InitializePools(ctx context.Context, dbService store.LedgerStore, poolFilter, network string) ([]PoolInfo, error) {
	if poolFilter != "" {
		zap.L().Info("Looking up pool", zap.String("address", poolFilter))
		pool, err := dbService.GetPool(ctx, poolFilter)
		if err != nil {
			return nil, fmt.Errorf("pool not found: %w", err)
		}
		return []PoolInfo{toPoolInfo(*pool)}, nil
	}

	pools, err := dbService.GetPools(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get pools: %w", err)
	}

	var result []PoolInfo
	for _, pool := range pools {
		if network != "" && pool.Network != network {
			continue
		}
		result = append(result, toPoolInfo(pool))
	}
	return result, nil
}

func toPoolInfo(pool models.Pool) PoolInfo {
	return PoolInfo{
		Address:    pool.Address,
		Owner:      pool.Owner,
		StakeToken: pool.StakeToken,
		Network:    pool.Network,
	}
}

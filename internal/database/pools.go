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
	"errors"
	"fmt"

	"metag-stakepool-go/internal/models"
	"metag-stakepool-go/internal/store"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

func (s *Service) CreatePool(ctx context.Context, params store.CreatePoolParams) (*models.Pool, error) {
	zap.L().Info("Storing pool",
		zap.String("address", params.Address),
		zap.String("owner", params.Owner),
		zap.String("stake_token", params.StakeToken),
		zap.String("reward_token", params.RewardToken),
		zap.String("network", params.Network))

	_, err := s.db.ExecContext(ctx, queryInsertPool,
		params.Address, params.Owner, params.StakeToken, params.RewardToken,
		params.Custody, params.Network, params.ChainId)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && isUniqueViolation(sqliteErr) {
			return nil, fmt.Errorf("%w: %s", store.ErrPoolExists, params.Address)
		}
		zap.L().Error("Failed to insert pool", zap.String("address", params.Address), zap.Error(err))
		return nil, fmt.Errorf("unable to insert pool: %w", err)
	}

	return s.GetPool(ctx, params.Address)
}

func (s *Service) GetPool(ctx context.Context, address string) (*models.Pool, error) {
	zap.L().Debug("Querying pool", zap.String("address", address))

	var pool models.Pool
	err := scanPool(s.db.QueryRowContext(ctx, queryGetPool, address), &pool)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrPoolNotFound, address)
		}
		zap.L().Error("Failed to query pool", zap.String("address", address), zap.Error(err))
		return nil, fmt.Errorf("unable to query pool: %w", err)
	}

	return &pool, nil
}

func (s *Service) GetPools(ctx context.Context) ([]models.Pool, error) {
	zap.L().Debug("Querying pools")

	rows, err := s.db.QueryContext(ctx, queryGetPools)
	if err != nil {
		zap.L().Error("Failed to query pools", zap.Error(err))
		return nil, fmt.Errorf("unable to query pools: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var pools []models.Pool
	for rows.Next() {
		var pool models.Pool
		if err := scanPool(rows, &pool); err != nil {
			zap.L().Error("Failed to scan pool row", zap.Error(err))
			return nil, fmt.Errorf("unable to scan pool row: %w", err)
		}
		pools = append(pools, pool)
	}

	if err := rows.Err(); err != nil {
		zap.L().Error("Error during pool row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating pool rows: %w", err)
	}

	zap.L().Debug("Retrieved pools", zap.Int("count", len(pools)))
	return pools, nil
}

// UpdatePoolOwner swaps the owner only if it still equals previousOwner,
// and records the change in the same transaction.
func (s *Service) UpdatePoolOwner(ctx context.Context, address, previousOwner, newOwner string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, queryUpdatePoolOwner, newOwner, address, previousOwner)
	if err != nil {
		return fmt.Errorf("failed to update pool owner: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("owner update failed - %w", store.ErrConcurrentModification)
	}

	if _, err := tx.ExecContext(ctx, queryInsertOwnershipEvent, uuid.New().String(), address, previousOwner, newOwner); err != nil {
		return fmt.Errorf("failed to record ownership event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Pool owner updated",
		zap.String("pool", address),
		zap.String("previous_owner", previousOwner),
		zap.String("new_owner", newOwner))
	return nil
}

func (s *Service) GetOwnershipEvents(ctx context.Context, address string) ([]models.OwnershipEvent, error) {
	rows, err := s.db.QueryContext(ctx, queryGetOwnershipEvents, address)
	if err != nil {
		return nil, fmt.Errorf("unable to query ownership events: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var events []models.OwnershipEvent
	for rows.Next() {
		var event models.OwnershipEvent
		if err := rows.Scan(&event.Id, &event.Pool, &event.PreviousOwner, &event.NewOwner, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("unable to scan ownership event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ownership events: %w", err)
	}

	return events, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPool(row rowScanner, pool *models.Pool) error {
	return row.Scan(&pool.Address, &pool.Owner, &pool.StakeToken, &pool.RewardToken,
		&pool.Custody, &pool.Network, &pool.ChainId, &pool.CreatedAt, &pool.UpdatedAt)
}

func isUniqueViolation(err sqlite3.Error) bool {
	return err.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || err.ExtendedCode == sqlite3.ErrConstraintUnique
}

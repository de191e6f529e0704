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

package access

import (
	"context"
	"errors"
	"fmt"

	"metag-stakepool-go/internal/models"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

var (
	ErrNotOwner       = errors.New("caller is not the owner")
	ErrInvalidAddress = errors.New("new owner is the zero address")
)

// OwnerStore persists the owner of each pool
type OwnerStore interface {
	GetPool(ctx context.Context, address string) (*models.Pool, error)
	UpdatePoolOwner(ctx context.Context, address, previousOwner, newOwner string) error
}

// Controller enforces single-owner access on a pool. The owner is fixed to
// the deploying account when the pool is created.
type Controller struct {
	store OwnerStore
}

func NewController(store OwnerStore) *Controller {
	return &Controller{store: store}
}

func (c *Controller) Owner(ctx context.Context, pool common.Address) (common.Address, error) {
	record, err := c.store.GetPool(ctx, pool.Hex())
	if err != nil {
		return common.Address{}, err
	}
	return common.HexToAddress(record.Owner), nil
}

func (c *Controller) RequireOwner(ctx context.Context, pool, caller common.Address) error {
	owner, err := c.Owner(ctx, pool)
	if err != nil {
		return err
	}
	if owner != caller {
		return fmt.Errorf("%w: %s", ErrNotOwner, caller.Hex())
	}
	return nil
}

func (c *Controller) TransferOwnership(ctx context.Context, pool, caller, newOwner common.Address) error {
	if err := c.RequireOwner(ctx, pool, caller); err != nil {
		return err
	}
	if newOwner == (common.Address{}) {
		return ErrInvalidAddress
	}

	if err := c.store.UpdatePoolOwner(ctx, pool.Hex(), caller.Hex(), newOwner.Hex()); err != nil {
		return fmt.Errorf("unable to transfer ownership: %w", err)
	}

	zap.L().Info("Ownership transferred",
		zap.String("pool", pool.Hex()),
		zap.String("previous_owner", caller.Hex()),
		zap.String("new_owner", newOwner.Hex()))
	return nil
}

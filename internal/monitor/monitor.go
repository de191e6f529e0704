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

package monitor

import (
	"context"
	"time"

	"metag-stakepool-go/internal/models"
	"metag-stakepool-go/internal/store"
	"metag-stakepool-go/internal/token"

	"github.com/ethereum/go-ethereum/common"
)

// Settler resolves a pool's pending movements against the chain
type Settler interface {
	SettlePending(ctx context.Context, pool common.Address) (*models.SettlementResult, error)
}

// CustodyMonitorConfig contains configuration for CustodyMonitor
type CustodyMonitorConfig struct {
	DbService       store.LedgerStore
	Gateway         token.Gateway
	Network         string
	PollingInterval time.Duration
	// Settler is optional. When set, pending movements are settled before
	// custody is compared.
	Settler Settler
}

// CustodyMonitor periodically checks that every pool on the network holds
// at least as many stake tokens as its stakers are owed.
type CustodyMonitor struct {
	dbService       store.LedgerStore
	gateway         token.Gateway
	network         string
	pollingInterval time.Duration
	settler         Settler

	// Control channels
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewCustodyMonitor creates a new custody monitor
func NewCustodyMonitor(cfg CustodyMonitorConfig) *CustodyMonitor {
	return &CustodyMonitor{
		dbService:       cfg.DbService,
		gateway:         cfg.Gateway,
		network:         cfg.Network,
		pollingInterval: cfg.PollingInterval,
		settler:         cfg.Settler,
		stopChan:        make(chan struct{}),
		doneChan:        make(chan struct{}),
	}
}

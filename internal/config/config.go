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

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"metag-stakepool-go/internal/common"
	"metag-stakepool-go/internal/models"
)

const memoryDatabase = ":memory:"

// ErrPersistentSimulatedLedger is returned when a simulated network is paired
// with a file-backed ledger.
var ErrPersistentSimulatedLedger = errors.New("simulated network requires an in-memory ledger")

func Load() (*models.Config, error) {
	receiptTimeout, err := getEnvDuration("RECEIPT_TIMEOUT", 2*time.Minute)
	if err != nil {
		return nil, err
	}

	receiptPoll, err := getEnvDuration("RECEIPT_POLL_INTERVAL", 2*time.Second)
	if err != nil {
		return nil, err
	}

	pollingInterval, err := getEnvDuration("MONITOR_POLLING_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, err
	}

	connMaxLifetime, err := getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	connMaxIdleTime, err := getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second)
	if err != nil {
		return nil, err
	}

	pingTimeout, err := getEnvDuration("DB_PING_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	networkName := getEnvString("NETWORK", DefaultNetwork)
	networksFile := getEnvString("NETWORKS_FILE", "networks.yaml")

	profiles, err := common.LoadNetworks(networksFile, BuiltinNetworks())
	if err != nil {
		return nil, err
	}
	profile, ok := profiles[networkName]
	if !ok {
		return nil, fmt.Errorf("unknown network %q", networkName)
	}

	// The simulated chain lives in memory and restarts from nonce 0 on every
	// run, so a file ledger would point at pools that no longer exist
	databasePath := getEnvString("DATABASE_PATH", "stakepool.db")
	if profile.Simulated {
		if path := os.Getenv("DATABASE_PATH"); path != "" && path != memoryDatabase {
			return nil, fmt.Errorf("%w: DATABASE_PATH=%q on network %s", ErrPersistentSimulatedLedger, path, networkName)
		}
		databasePath = memoryDatabase
	}

	// TMETAG_ADDRESS names the deployed token; METAG_ADDRESS is the older name
	tokenAddress := getEnvString("TMETAG_ADDRESS", os.Getenv("METAG_ADDRESS"))

	return &models.Config{
		Database: models.DatabaseConfig{
			Path:            databasePath,
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: connMaxLifetime,
			ConnMaxIdleTime: connMaxIdleTime,
			PingTimeout:     pingTimeout,
		},
		Network: models.NetworkConfig{
			Name:           networkName,
			NetworksFile:   networksFile,
			ReceiptTimeout: receiptTimeout,
			ReceiptPoll:    receiptPoll,
			Profile:        profile,
		},
		Contract: models.ContractConfig{
			StakeToken:  getEnvString("STAKE_TOKEN_ADDRESS", tokenAddress),
			RewardToken: getEnvString("REWARD_TOKEN_ADDRESS", tokenAddress),
		},
		Monitor: models.MonitorConfig{
			PollingInterval: pollingInterval,
		},
		GasReport: models.GasReportConfig{
			// Any non-empty value enables the report
			Enabled:  os.Getenv("REPORT_GAS") != "",
			Currency: getEnvString("GAS_REPORT_CURRENCY", "USD"),
		},
	}, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

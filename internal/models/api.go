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

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ParticipantBalance represents a participant's stake in a pool
type ParticipantBalance struct {
	Participant string          `json:"participant"`
	Balance     decimal.Decimal `json:"balance"`
}

// TransactionRecord represents a transaction in the participant's history
type TransactionRecord struct {
	Id          string          `json:"id"`
	Type        string          `json:"type"` // "deposit", "withdrawal", "withdrawal_reversal"
	Amount      decimal.Decimal `json:"amount"`
	TxHash      string          `json:"tx_hash,omitempty"`
	Status      string          `json:"status"`
	ProcessedAt time.Time       `json:"processed_at"`
}

// OperationResult represents the result of a deposit or withdrawal
type OperationResult struct {
	Success     bool            `json:"success"`
	Pool        string          `json:"pool,omitempty"`
	Participant string          `json:"participant,omitempty"`
	Amount      decimal.Decimal `json:"amount,omitempty"`
	NewBalance  decimal.Decimal `json:"new_balance,omitempty"`
	TxHash      string          `json:"tx_hash,omitempty"`
	Error       string          `json:"error,omitempty"`
	Cause       error           `json:"-"`
}

// CustodyStatus compares what a pool owes its stakers with what custody holds
type CustodyStatus struct {
	Pool           string          `json:"pool"`
	StakeToken     string          `json:"stake_token"`
	Custody        string          `json:"custody"`
	TotalStaked    decimal.Decimal `json:"total_staked"`
	CustodyBalance decimal.Decimal `json:"custody_balance"`
	Healthy        bool            `json:"healthy"`
}

// SettlementResult counts what a settlement pass resolved for a pool
type SettlementResult struct {
	Pool       string `json:"pool"`
	Confirmed  int    `json:"confirmed"`
	Reverted   int    `json:"reverted"`
	Unresolved int    `json:"unresolved"`
}

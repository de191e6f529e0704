package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Pool represents a deployed stake pool
type Pool struct {
	Address     string    `db:"address"`
	Owner       string    `db:"owner"`
	StakeToken  string    `db:"stake_token"`
	RewardToken string    `db:"reward_token"`
	Custody     string    `db:"custody"`
	Network     string    `db:"network"`
	ChainId     int64     `db:"chain_id"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// StakeBalance represents a participant's current stake (hot data)
type StakeBalance struct {
	Id                string          `db:"id"`
	Pool              string          `db:"pool"`
	Participant       string          `db:"participant"`
	Balance           decimal.Decimal `db:"balance"`
	LastTransactionId string          `db:"last_transaction_id"`
	Version           int64           `db:"version"`
	UpdatedAt         time.Time       `db:"updated_at"`
}

// StakeTransaction represents immutable stake history (cold data).
// Amounts are signed token base units.
type StakeTransaction struct {
	Id              string          `db:"id"`
	Pool            string          `db:"pool"`
	Participant     string          `db:"participant"`
	TransactionType string          `db:"transaction_type"`
	Amount          decimal.Decimal `db:"amount"`
	BalanceBefore   decimal.Decimal `db:"balance_before"`
	BalanceAfter    decimal.Decimal `db:"balance_after"`
	ExternalTxHash  string          `db:"external_tx_hash"`
	Reference       string          `db:"reference"`
	Status          string          `db:"status"`
	CreatedAt       time.Time       `db:"created_at"`
	ProcessedAt     time.Time       `db:"processed_at"`
}

// OwnershipEvent records a change of pool owner
type OwnershipEvent struct {
	Id            string    `db:"id"`
	Pool          string    `db:"pool"`
	PreviousOwner string    `db:"previous_owner"`
	NewOwner      string    `db:"new_owner"`
	CreatedAt     time.Time `db:"created_at"`
}

const (
	TransactionTypeDeposit            = "deposit"
	TransactionTypeWithdrawal         = "withdrawal"
	TransactionTypeWithdrawalReversal = "withdrawal_reversal"
)

// A pending withdrawal has already debited the stake while its transfer is
// unsettled. A pending deposit is credited only once its transfer is mined.
const (
	TransactionStatusConfirmed = "confirmed"
	TransactionStatusPending   = "pending"
	TransactionStatusReversed  = "reversed"
	TransactionStatusFailed    = "failed"
)

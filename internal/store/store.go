package store

import (
	"context"
	"errors"

	"metag-stakepool-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrDuplicateTransaction   = errors.New("duplicate transaction")
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrInsufficientStake      = errors.New("insufficient stake")
	ErrPoolNotFound           = errors.New("pool not found")
	ErrPoolExists             = errors.New("pool already exists")
	ErrTransactionNotFound    = errors.New("transaction not found")
	ErrTransactionNotPending  = errors.New("transaction is not pending")
)

// CreatePoolParams contains the parameters for recording a deployed pool.
type CreatePoolParams struct {
	Address     string
	Owner       string
	StakeToken  string
	RewardToken string
	Custody     string
	Network     string
	ChainId     int64
}

// StakeParams describes a single balance movement for a participant.
// Amount is always positive; the transaction type decides the sign.
type StakeParams struct {
	Pool        string
	Participant string
	Amount      decimal.Decimal
	TxHash      string
	Reference   string
}

// LedgerStore defines the contract that every backend must satisfy.
type LedgerStore interface {
	// --- Pools ---
	CreatePool(ctx context.Context, params CreatePoolParams) (*models.Pool, error)
	GetPool(ctx context.Context, address string) (*models.Pool, error)
	GetPools(ctx context.Context) ([]models.Pool, error)
	UpdatePoolOwner(ctx context.Context, address, previousOwner, newOwner string) error
	GetOwnershipEvents(ctx context.Context, address string) ([]models.OwnershipEvent, error)

	// --- Balances ---
	GetStakeBalance(ctx context.Context, pool, participant string) (decimal.Decimal, error)
	GetPoolBalances(ctx context.Context, pool string) ([]models.StakeBalance, error)
	GetTotalStaked(ctx context.Context, pool string) (decimal.Decimal, error)
	ReconcileStakeBalance(ctx context.Context, pool, participant string) error

	// --- Transactions ---
	RecordDeposit(ctx context.Context, params StakeParams) (*models.StakeTransaction, error)
	// RecordPendingDeposit stores a deposit whose transfer has not been seen
	// mined. The stake is credited later by SettleDeposit.
	RecordPendingDeposit(ctx context.Context, params StakeParams) (*models.StakeTransaction, error)
	SettleDeposit(ctx context.Context, id string) (*models.StakeTransaction, error)
	// RecordWithdrawal debits the stake and leaves the withdrawal pending
	// until its transfer is confirmed or reversed.
	RecordWithdrawal(ctx context.Context, params StakeParams) (*models.StakeTransaction, error)
	// ReverseWithdrawal credits back the pending withdrawal named by
	// params.Reference and marks it reversed.
	ReverseWithdrawal(ctx context.Context, params StakeParams) (*models.StakeTransaction, error)
	// UpdateTransactionStatus moves a pending transaction to status and
	// attaches txHash when it is not empty.
	UpdateTransactionStatus(ctx context.Context, id, status, txHash string) error
	GetPendingTransactions(ctx context.Context, pool string) ([]models.StakeTransaction, error)
	GetTransactionHistory(ctx context.Context, pool, participant string, limit, offset int) ([]models.StakeTransaction, error)

	// --- Lifecycle ---
	Close()
}

package access

import (
	"context"
	"errors"
	"strings"
	"testing"

	"metag-stakepool-go/internal/models"
	"metag-stakepool-go/internal/store"

	"github.com/ethereum/go-ethereum/common"
)

var (
	pool     = common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
	deployer = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	other    = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
)

type memoryOwnerStore struct {
	pools map[string]*models.Pool
}

func newMemoryOwnerStore(owner common.Address) *memoryOwnerStore {
	return &memoryOwnerStore{pools: map[string]*models.Pool{
		strings.ToLower(pool.Hex()): {Address: pool.Hex(), Owner: owner.Hex()},
	}}
}

func (m *memoryOwnerStore) GetPool(_ context.Context, address string) (*models.Pool, error) {
	record, ok := m.pools[strings.ToLower(address)]
	if !ok {
		return nil, store.ErrPoolNotFound
	}
	copied := *record
	return &copied, nil
}

func (m *memoryOwnerStore) UpdatePoolOwner(_ context.Context, address, previousOwner, newOwner string) error {
	record, ok := m.pools[strings.ToLower(address)]
	if !ok || !strings.EqualFold(record.Owner, previousOwner) {
		return store.ErrConcurrentModification
	}
	record.Owner = newOwner
	return nil
}

func TestOwner_IsDeployer(t *testing.T) {
	controller := NewController(newMemoryOwnerStore(deployer))

	owner, err := controller.Owner(context.Background(), pool)
	if err != nil {
		t.Fatalf("Owner failed: %v", err)
	}
	if owner != deployer {
		t.Errorf("Expected owner %s, got %s", deployer.Hex(), owner.Hex())
	}
}

func TestRequireOwner(t *testing.T) {
	controller := NewController(newMemoryOwnerStore(deployer))
	ctx := context.Background()

	if err := controller.RequireOwner(ctx, pool, deployer); err != nil {
		t.Errorf("Expected owner to pass, got %v", err)
	}
	if err := controller.RequireOwner(ctx, pool, other); !errors.Is(err, ErrNotOwner) {
		t.Errorf("Expected ErrNotOwner, got %v", err)
	}
}

func TestTransferOwnership(t *testing.T) {
	controller := NewController(newMemoryOwnerStore(deployer))
	ctx := context.Background()

	if err := controller.TransferOwnership(ctx, pool, other, other); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("Expected ErrNotOwner for non-owner caller, got %v", err)
	}
	if err := controller.TransferOwnership(ctx, pool, deployer, common.Address{}); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("Expected ErrInvalidAddress for zero address, got %v", err)
	}
	if err := controller.TransferOwnership(ctx, pool, deployer, other); err != nil {
		t.Fatalf("TransferOwnership failed: %v", err)
	}

	owner, _ := controller.Owner(ctx, pool)
	if owner != other {
		t.Errorf("Expected new owner %s, got %s", other.Hex(), owner.Hex())
	}

	// The previous owner has lost its rights
	if err := controller.RequireOwner(ctx, pool, deployer); !errors.Is(err, ErrNotOwner) {
		t.Errorf("Expected ErrNotOwner for previous owner, got %v", err)
	}
}

func TestOwner_UnknownPool(t *testing.T) {
	controller := NewController(newMemoryOwnerStore(deployer))

	_, err := controller.Owner(context.Background(), other)
	if !errors.Is(err, store.ErrPoolNotFound) {
		t.Errorf("Expected ErrPoolNotFound, got %v", err)
	}
}

package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"metag-stakepool-go/internal/database"
	"metag-stakepool-go/internal/models"
	"metag-stakepool-go/internal/store"
)

func TestInitializePools(t *testing.T) {
	ctx := context.Background()
	db, err := database.NewService(ctx, models.DatabaseConfig{Path: ":memory:", MaxOpenConns: 1, PingTimeout: time.Second})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	defer db.Close()

	for _, p := range []store.CreatePoolParams{
		{Address: "0x5FbDB2315678afecb367f032d93F642f64180aa3", Network: "hardhat", ChainId: 31337},
		{Address: "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512", Network: "mainnet", ChainId: 43114},
	} {
		p.Owner, p.StakeToken, p.RewardToken, p.Custody = p.Address, p.Address, p.Address, p.Address
		if _, err := db.CreatePool(ctx, p); err != nil {
			t.Fatalf("CreatePool failed: %v", err)
		}
	}

	pools, err := InitializePools(ctx, db, "", "mainnet")
	if err != nil {
		t.Fatalf("InitializePools failed: %v", err)
	}
	if len(pools) != 1 || pools[0].Network != "mainnet" {
		t.Errorf("Expected only the mainnet pool, got %+v", pools)
	}

	pools, err = InitializePools(ctx, db, "0x5fbdb2315678afecb367f032d93f642f64180aa3", "mainnet")
	if err != nil {
		t.Fatalf("InitializePools with filter failed: %v", err)
	}
	if len(pools) != 1 || pools[0].Network != "hardhat" {
		t.Errorf("Expected the filtered pool regardless of network, got %+v", pools)
	}

	_, err = InitializePools(ctx, db, "0x0000000000000000000000000000000000000bad", "")
	if !errors.Is(err, store.ErrPoolNotFound) {
		t.Errorf("Expected ErrPoolNotFound, got %v", err)
	}
}

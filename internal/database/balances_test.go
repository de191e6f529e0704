package database

import (
	"context"
	"database/sql"
	"testing"

	"metag-stakepool-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

func setupBalanceTestDB(t *testing.T) (*Service, func()) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	service := newServiceFromDB(db)
	if err := service.initSchema(); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	cleanup := func() {
		db.Close()
	}

	return service, cleanup
}

func TestGetStakeBalance_NoBalance(t *testing.T) {
	service, cleanup := setupBalanceTestDB(t)
	defer cleanup()

	balance, err := service.GetStakeBalance(context.Background(), testPool, testParticipant)
	if err != nil {
		t.Fatalf("GetStakeBalance failed: %v", err)
	}

	if !balance.Equal(decimal.Zero) {
		t.Errorf("Expected balance 0, got %s", balance.String())
	}
}

func TestGetStakeBalance_WithTransactions(t *testing.T) {
	service, cleanup := setupBalanceTestDB(t)
	defer cleanup()

	ctx := context.Background()

	_, err := service.RecordDeposit(ctx, store.StakeParams{Pool: testPool, Participant: testParticipant, Amount: decimal.New(2, 18), TxHash: "0x01"})
	if err != nil {
		t.Fatalf("Failed to record deposit: %v", err)
	}

	_, err = service.RecordWithdrawal(ctx, store.StakeParams{Pool: testPool, Participant: testParticipant, Amount: decimal.New(5, 17), TxHash: "0x02"})
	if err != nil {
		t.Fatalf("Failed to record withdrawal: %v", err)
	}

	balance, err := service.GetStakeBalance(ctx, testPool, testParticipant)
	if err != nil {
		t.Fatalf("GetStakeBalance failed: %v", err)
	}

	expectedBalance := decimal.New(15, 17)
	if !balance.Equal(expectedBalance) {
		t.Errorf("Expected balance %s, got %s", expectedBalance.String(), balance.String())
	}

	if err := service.ReconcileStakeBalance(ctx, testPool, testParticipant); err != nil {
		t.Errorf("Expected reconciliation to pass, got %v", err)
	}
}

func TestGetPoolBalancesAndTotal(t *testing.T) {
	service, cleanup := setupBalanceTestDB(t)
	defer cleanup()

	ctx := context.Background()
	other := "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"

	if _, err := service.RecordDeposit(ctx, store.StakeParams{Pool: testPool, Participant: testParticipant, Amount: decimal.New(3, 18)}); err != nil {
		t.Fatalf("Failed to record deposit: %v", err)
	}
	if _, err := service.RecordDeposit(ctx, store.StakeParams{Pool: testPool, Participant: other, Amount: decimal.New(7, 18)}); err != nil {
		t.Fatalf("Failed to record deposit: %v", err)
	}
	// Fully withdrawn participants drop out of the listing
	if _, err := service.RecordWithdrawal(ctx, store.StakeParams{Pool: testPool, Participant: other, Amount: decimal.New(7, 18)}); err != nil {
		t.Fatalf("Failed to record withdrawal: %v", err)
	}

	balances, err := service.GetPoolBalances(ctx, testPool)
	if err != nil {
		t.Fatalf("GetPoolBalances failed: %v", err)
	}
	if len(balances) != 1 {
		t.Fatalf("Expected 1 non-zero balance, got %d", len(balances))
	}
	if balances[0].Participant != testParticipant {
		t.Errorf("Expected participant %s, got %s", testParticipant, balances[0].Participant)
	}
	if balances[0].Version != 2 {
		t.Errorf("Expected version 2 after one update, got %d", balances[0].Version)
	}

	total, err := service.GetTotalStaked(ctx, testPool)
	if err != nil {
		t.Fatalf("GetTotalStaked failed: %v", err)
	}
	if !total.Equal(decimal.New(3, 18)) {
		t.Errorf("Expected total %s, got %s", decimal.New(3, 18).String(), total.String())
	}
}

func TestReconcileStakeBalance_Mismatch(t *testing.T) {
	service, cleanup := setupBalanceTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if _, err := service.RecordDeposit(ctx, store.StakeParams{Pool: testPool, Participant: testParticipant, Amount: decimal.New(3, 18)}); err != nil {
		t.Fatalf("Failed to record deposit: %v", err)
	}

	if _, err := service.db.ExecContext(ctx, "UPDATE stake_balances SET balance = '1' WHERE participant = ?", testParticipant); err != nil {
		t.Fatalf("Failed to tamper balance: %v", err)
	}

	if err := service.ReconcileStakeBalance(ctx, testPool, testParticipant); err == nil {
		t.Error("Expected reconciliation mismatch, got nil")
	}
}

func TestRecordDeposit_RejectsNonPositive(t *testing.T) {
	service, cleanup := setupBalanceTestDB(t)
	defer cleanup()

	for _, amount := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-1)} {
		if _, err := service.RecordDeposit(context.Background(), store.StakeParams{Pool: testPool, Participant: testParticipant, Amount: amount}); err == nil {
			t.Errorf("Expected error for amount %s, got nil", amount.String())
		}
	}
}

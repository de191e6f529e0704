package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

const (
	testPool        = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	testParticipant = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func setupTestDb(t *testing.T) (*SubledgerService, func()) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	service := NewSubledgerService(db)

	// Use the actual schema initialization
	if err := service.InitSchema(); err != nil {
		t.Fatalf("Failed to create test schema: %v", err)
	}

	cleanup := func() {
		db.Close()
	}

	return service, cleanup
}

func threeTokens() decimal.Decimal {
	return decimal.New(3, 18)
}

func TestProcessTransaction_Deposit(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	amount := threeTokens()

	result, err := service.ProcessTransaction(ctx, ProcessTransactionParams{Pool: testPool, Participant: testParticipant, TransactionType: "deposit", Amount: amount, ExternalTxHash: "0xaa01", Reference: "memo1"})
	if err != nil {
		t.Fatalf("ProcessTransaction failed: %v", err)
	}

	if result.Participant != testParticipant {
		t.Errorf("Expected participant %s, got %s", testParticipant, result.Participant)
	}
	if result.Pool != testPool {
		t.Errorf("Expected pool %s, got %s", testPool, result.Pool)
	}
	if !result.Amount.Equal(amount) {
		t.Errorf("Expected amount %s, got %s", amount.String(), result.Amount.String())
	}
	if !result.BalanceBefore.IsZero() {
		t.Errorf("Expected balance before 0, got %s", result.BalanceBefore.String())
	}
	if !result.BalanceAfter.Equal(amount) {
		t.Errorf("Expected balance %s, got %s", amount.String(), result.BalanceAfter.String())
	}
}

func TestProcessTransaction_Withdrawal(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()

	_, err := service.ProcessTransaction(ctx, ProcessTransactionParams{Pool: testPool, Participant: testParticipant, TransactionType: "deposit", Amount: threeTokens(), ExternalTxHash: "0xaa01"})
	if err != nil {
		t.Fatalf("Initial deposit failed: %v", err)
	}

	withdrawalAmount := decimal.New(-1, 18)
	result, err := service.ProcessTransaction(ctx, ProcessTransactionParams{Pool: testPool, Participant: testParticipant, TransactionType: "withdrawal", Amount: withdrawalAmount, ExternalTxHash: "0xaa02"})
	if err != nil {
		t.Fatalf("ProcessTransaction withdrawal failed: %v", err)
	}

	expectedBalance := decimal.New(2, 18)
	if !result.BalanceAfter.Equal(expectedBalance) {
		t.Errorf("Expected balance %s, got %s", expectedBalance.String(), result.BalanceAfter.String())
	}
}

func TestProcessTransaction_DuplicateHandling(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	txHash := "0xduplicate"

	_, err := service.ProcessTransaction(ctx, ProcessTransactionParams{Pool: testPool, Participant: testParticipant, TransactionType: "deposit", Amount: threeTokens(), ExternalTxHash: txHash})
	if err != nil {
		t.Fatalf("First ProcessTransaction failed: %v", err)
	}

	_, err = service.ProcessTransaction(ctx, ProcessTransactionParams{Pool: testPool, Participant: testParticipant, TransactionType: "deposit", Amount: threeTokens(), ExternalTxHash: txHash})
	if err == nil {
		t.Fatalf("Expected duplicate transaction error, got nil")
	}

	if !errors.Is(err, ErrDuplicateTransaction) {
		t.Errorf("Expected duplicate transaction error, got: %v", err)
	}
}

func TestProcessTransaction_OverdraftRejected(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()

	_, err := service.ProcessTransaction(ctx, ProcessTransactionParams{Pool: testPool, Participant: testParticipant, TransactionType: "withdrawal", Amount: decimal.New(-1, 18), ExternalTxHash: "0xaa01"})
	if !errors.Is(err, ErrInsufficientStake) {
		t.Fatalf("Expected ErrInsufficientStake, got: %v", err)
	}

	balance, err := service.GetBalance(ctx, testPool, testParticipant)
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !balance.IsZero() {
		t.Errorf("Expected balance to stay 0, got %s", balance.String())
	}

	history, err := service.GetTransactionHistory(ctx, testPool, testParticipant, 10, 0)
	if err != nil {
		t.Fatalf("GetTransactionHistory failed: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("Expected no recorded transactions, got %d", len(history))
	}
}

func TestProcessTransaction_FractionalAmountRejected(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	_, err := service.ProcessTransaction(context.Background(), ProcessTransactionParams{Pool: testPool, Participant: testParticipant, TransactionType: "deposit", Amount: decimal.RequireFromString("0.5"), ExternalTxHash: ""})
	if err == nil {
		t.Fatal("Expected error for fractional base units, got nil")
	}
}

func TestProcessTransaction_JournalBalances(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	if _, err := service.ProcessTransaction(ctx, ProcessTransactionParams{Pool: testPool, Participant: testParticipant, TransactionType: "deposit", Amount: threeTokens(), ExternalTxHash: "0xaa01"}); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if _, err := service.ProcessTransaction(ctx, ProcessTransactionParams{Pool: testPool, Participant: testParticipant, TransactionType: "withdrawal", Amount: decimal.New(-1, 18), ExternalTxHash: "0xaa02"}); err != nil {
		t.Fatalf("withdrawal failed: %v", err)
	}

	rows, err := service.db.QueryContext(ctx, "SELECT debit_amount, credit_amount FROM journal_entries")
	if err != nil {
		t.Fatalf("query journal failed: %v", err)
	}
	defer rows.Close()

	debits, credits := decimal.Zero, decimal.Zero
	count := 0
	for rows.Next() {
		var debit, credit string
		if err := rows.Scan(&debit, &credit); err != nil {
			t.Fatalf("scan failed: %v", err)
		}
		debits = debits.Add(decimal.RequireFromString(debit))
		credits = credits.Add(decimal.RequireFromString(credit))
		count++
	}

	if count != 4 {
		t.Errorf("Expected 4 journal entries, got %d", count)
	}
	if !debits.Equal(credits) {
		t.Errorf("Journal out of balance: debits=%s credits=%s", debits.String(), credits.String())
	}
}

func TestGetTransactionHistory_NewestFirst(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	for i, hash := range []string{"0x01", "0x02", "0x03"} {
		amount := decimal.NewFromInt(int64(i + 1))
		if _, err := service.ProcessTransaction(ctx, ProcessTransactionParams{Pool: testPool, Participant: testParticipant, TransactionType: "deposit", Amount: amount, ExternalTxHash: hash}); err != nil {
			t.Fatalf("deposit %d failed: %v", i, err)
		}
	}

	history, err := service.GetTransactionHistory(ctx, testPool, testParticipant, 2, 0)
	if err != nil {
		t.Fatalf("GetTransactionHistory failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(history))
	}
	if history[0].ExternalTxHash != "0x03" {
		t.Errorf("Expected newest record first, got %s", history[0].ExternalTxHash)
	}

	page, err := service.GetTransactionHistory(ctx, testPool, testParticipant, 2, 2)
	if err != nil {
		t.Fatalf("GetTransactionHistory page 2 failed: %v", err)
	}
	if len(page) != 1 || page[0].ExternalTxHash != "0x01" {
		t.Errorf("Expected oldest record on second page, got %+v", page)
	}
}

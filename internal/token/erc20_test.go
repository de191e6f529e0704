package token

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"metag-stakepool-go/internal/models"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

const testKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

// fakeBackend answers ERC-20 view calls from a fixed table and mines every
// transaction immediately.
type fakeBackend struct {
	balances   map[common.Address]*big.Int
	allowances map[common.Address]*big.Int
	decimals   uint8
	nonce      uint64
	status     uint64
	sent       []*types.Transaction
	sendErr    error
	pending    int
}

// nodeError is how go-ethereum surfaces a JSON-RPC error answered by the node
type nodeError struct{}

func (nodeError) Error() string  { return "nonce too low" }
func (nodeError) ErrorCode() int { return -32000 }

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[common.Address]*big.Int),
		decimals:   18,
		status:     types.ReceiptStatusSuccessful,
	}
}

func (f *fakeBackend) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	method, err := parsedERC20.MethodById(call.Data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(call.Data[4:])
	if err != nil {
		return nil, err
	}

	switch method.Name {
	case "balanceOf":
		value := f.balances[args[0].(common.Address)]
		if value == nil {
			value = big.NewInt(0)
		}
		return method.Outputs.Pack(value)
	case "allowance":
		value := f.allowances[args[0].(common.Address)]
		if value == nil {
			value = big.NewInt(0)
		}
		return method.Outputs.Pack(value)
	case "decimals":
		return method.Outputs.Pack(f.decimals)
	}
	return nil, fmt.Errorf("unexpected call %s", method.Name)
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	if f.pending > 0 {
		f.pending--
		return nil, ethereum.NotFound
	}
	return &types.Receipt{Status: f.status, TxHash: hash, GasUsed: 51_000}, nil
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return f.nonce, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	f.nonce++
	return nil
}

func (f *fakeBackend) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return ether(2), nil
}

func (f *fakeBackend) Close() {}

func newTestRPCGateway(t *testing.T, backend *fakeBackend) *RPCGateway {
	t.Helper()
	return newTestRPCGatewayWithTimeout(t, backend, time.Second)
}

func newTestRPCGatewayWithTimeout(t *testing.T, backend *fakeBackend, receiptTimeout time.Duration) *RPCGateway {
	t.Helper()
	key, err := crypto.HexToECDSA(testKeyHex)
	if err != nil {
		t.Fatalf("Failed to load key: %v", err)
	}
	profile := models.NetworkProfile{
		Name:     "mainnet",
		Gas:      2_100_000,
		GasPrice: big.NewInt(225_000_000_000),
		ChainId:  43114,
	}
	return newRPCGateway(backend, profile, key, models.NetworkConfig{ReceiptPoll: time.Millisecond, ReceiptTimeout: receiptTimeout})
}

func TestRPCGateway_OpenCustodyIsSigner(t *testing.T) {
	gateway := newTestRPCGateway(t, newFakeBackend())
	ctx := context.Background()

	custody, err := gateway.OpenCustody(ctx, deployer)
	if err != nil {
		t.Fatalf("OpenCustody failed: %v", err)
	}
	if custody != deployer {
		t.Errorf("Expected custody %s, got %s", deployer.Hex(), custody.Hex())
	}

	if _, err := gateway.OpenCustody(ctx, participant); !errors.Is(err, ErrCustodyMismatch) {
		t.Errorf("Expected ErrCustodyMismatch, got %v", err)
	}
}

func TestRPCGateway_PullSignsLegacyTransaction(t *testing.T) {
	backend := newFakeBackend()
	backend.allowances[participant] = ether(5)
	backend.pending = 2
	gateway := newTestRPCGateway(t, backend)
	token := common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

	receipt, err := gateway.Pull(context.Background(), token, participant, deployer, ether(3))
	if err != nil {
		t.Fatalf("Pull failed: %v", err)
	}
	if receipt.Method != MethodTransferFrom || receipt.GasUsed != 51_000 {
		t.Errorf("Unexpected receipt %+v", receipt)
	}

	if len(backend.sent) != 1 {
		t.Fatalf("Expected 1 transaction, got %d", len(backend.sent))
	}
	tx := backend.sent[0]
	if tx.Gas() != 2_100_000 {
		t.Errorf("Expected gas limit 2100000, got %d", tx.Gas())
	}
	if tx.GasPrice().Cmp(big.NewInt(225_000_000_000)) != 0 {
		t.Errorf("Expected gas price 225 gwei, got %s", tx.GasPrice().String())
	}
	if tx.ChainId().Int64() != 43114 {
		t.Errorf("Expected chain id 43114, got %s", tx.ChainId().String())
	}

	sender, err := types.Sender(types.NewEIP155Signer(big.NewInt(43114)), tx)
	if err != nil {
		t.Fatalf("Failed to recover sender: %v", err)
	}
	if sender != deployer {
		t.Errorf("Expected sender %s, got %s", deployer.Hex(), sender.Hex())
	}

	method, err := parsedERC20.MethodById(tx.Data()[:4])
	if err != nil || method.Name != MethodTransferFrom {
		t.Errorf("Expected transferFrom calldata, got %v (%v)", method, err)
	}
}

func TestRPCGateway_PullWithoutAllowance(t *testing.T) {
	backend := newFakeBackend()
	gateway := newTestRPCGateway(t, backend)
	token := common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

	_, err := gateway.Pull(context.Background(), token, participant, deployer, ether(1))
	if !errors.Is(err, ErrInsufficientAllowance) {
		t.Errorf("Expected ErrInsufficientAllowance, got %v", err)
	}
	if len(backend.sent) != 0 {
		t.Errorf("Expected no transaction to be sent, got %d", len(backend.sent))
	}
}

func TestRPCGateway_RevertedPush(t *testing.T) {
	backend := newFakeBackend()
	backend.status = types.ReceiptStatusFailed
	gateway := newTestRPCGateway(t, backend)
	token := common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

	_, err := gateway.Push(context.Background(), token, deployer, participant, ether(1))
	if !errors.Is(err, ErrTransactionReverted) {
		t.Errorf("Expected ErrTransactionReverted, got %v", err)
	}
}

func TestRPCGateway_Reads(t *testing.T) {
	backend := newFakeBackend()
	backend.balances[deployer] = ether(9)
	backend.decimals = 6
	gateway := newTestRPCGateway(t, backend)
	ctx := context.Background()
	token := common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

	balance, err := gateway.BalanceOf(ctx, token, deployer)
	if err != nil {
		t.Fatalf("BalanceOf failed: %v", err)
	}
	if balance.Cmp(ether(9)) != 0 {
		t.Errorf("Expected 9 ether, got %s", balance.String())
	}

	decimals, err := gateway.Decimals(ctx, token)
	if err != nil {
		t.Fatalf("Decimals failed: %v", err)
	}
	if decimals != 6 {
		t.Errorf("Expected 6 decimals, got %d", decimals)
	}

	native, err := gateway.NativeBalance(ctx, deployer)
	if err != nil {
		t.Fatalf("NativeBalance failed: %v", err)
	}
	if native.Cmp(ether(2)) != 0 {
		t.Errorf("Expected 2 ether, got %s", native.String())
	}
}

func TestRPCGateway_ReceiptTimeoutLeavesTransferPending(t *testing.T) {
	backend := newFakeBackend()
	backend.pending = 1 << 30
	gateway := newTestRPCGatewayWithTimeout(t, backend, 20*time.Millisecond)
	ctx := context.Background()
	token := common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

	_, err := gateway.Push(ctx, token, deployer, participant, ether(1))
	if !errors.Is(err, ErrOutcomeUnknown) {
		t.Fatalf("Expected ErrOutcomeUnknown, got %v", err)
	}
	if errors.Is(err, ErrTransactionReverted) {
		t.Error("A timed out transfer must not be reported as reverted")
	}

	hash, ok := PendingTransaction(err)
	if !ok {
		t.Fatal("Expected the pending transaction hash in the error")
	}
	if len(backend.sent) != 1 || backend.sent[0].Hash() != hash {
		t.Errorf("Expected pending hash to match the broadcast transaction")
	}

	if _, err := gateway.TransactionStatus(ctx, hash); !errors.Is(err, ErrOutcomeUnknown) {
		t.Errorf("Expected transfer to be still pending, got %v", err)
	}

	backend.pending = 0
	receipt, err := gateway.TransactionStatus(ctx, hash)
	if err != nil {
		t.Fatalf("TransactionStatus failed: %v", err)
	}
	if receipt.TxHash != hash {
		t.Errorf("Expected receipt for %s, got %s", hash.Hex(), receipt.TxHash.Hex())
	}
}

func TestRPCGateway_RejectedSendIsDefinite(t *testing.T) {
	backend := newFakeBackend()
	backend.sendErr = nodeError{}
	gateway := newTestRPCGateway(t, backend)
	token := common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

	_, err := gateway.Push(context.Background(), token, deployer, participant, ether(1))
	if err == nil {
		t.Fatal("Expected Push to fail")
	}
	if errors.Is(err, ErrOutcomeUnknown) {
		t.Errorf("Expected a definite failure for a rejected send, got %v", err)
	}
}

func TestRPCGateway_UnansweredSendIsPending(t *testing.T) {
	backend := newFakeBackend()
	backend.sendErr = errors.New("connection reset by peer")
	gateway := newTestRPCGateway(t, backend)
	token := common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

	_, err := gateway.Push(context.Background(), token, deployer, participant, ether(1))
	if !errors.Is(err, ErrOutcomeUnknown) {
		t.Errorf("Expected ErrOutcomeUnknown when the node did not answer, got %v", err)
	}
}

func TestRPCGateway_TransactionStatusReverted(t *testing.T) {
	backend := newFakeBackend()
	backend.status = types.ReceiptStatusFailed
	gateway := newTestRPCGateway(t, backend)

	_, err := gateway.TransactionStatus(context.Background(), common.HexToHash("0x01"))
	if !errors.Is(err, ErrTransactionReverted) {
		t.Errorf("Expected ErrTransactionReverted, got %v", err)
	}
}

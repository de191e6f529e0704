package token

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"metag-stakepool-go/internal/models"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

const erc20ABI = `[
	{"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"transferFrom","stateMutability":"nonpayable","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]}
]`

const defaultReceiptPoll = 2 * time.Second

var parsedERC20 = mustParseABI(erc20ABI)

// chainBackend is the subset of ethclient.Client the gateway needs
type chainBackend interface {
	ethereum.ContractCaller
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	Close()
}

var _ chainBackend = (*ethclient.Client)(nil)

var _ Gateway = (*RPCGateway)(nil)

// RPCGateway moves ERC-20 tokens over a JSON-RPC endpoint. Custody is the
// signer's own account, so Pull needs an allowance granted to the signer.
type RPCGateway struct {
	backend        chainBackend
	key            *ecdsa.PrivateKey
	signer         common.Address
	chainId        *big.Int
	gas            uint64
	gasPrice       *big.Int
	receiptTimeout time.Duration
	receiptPoll    time.Duration
	nonceMu        sync.Mutex
}

func NewRPCGateway(ctx context.Context, profile models.NetworkProfile, key *ecdsa.PrivateKey, cfg models.NetworkConfig) (*RPCGateway, error) {
	if profile.Url == "" {
		return nil, fmt.Errorf("network %s has no RPC url configured", profile.Name)
	}
	if key == nil {
		return nil, fmt.Errorf("network %s has no signing account configured", profile.Name)
	}

	client, err := Dial(ctx, profile.Url)
	if err != nil {
		return nil, err
	}

	return newRPCGateway(client, profile, key, cfg), nil
}

func newRPCGateway(backend chainBackend, profile models.NetworkProfile, key *ecdsa.PrivateKey, cfg models.NetworkConfig) *RPCGateway {
	gasPrice := profile.GasPrice
	if gasPrice == nil {
		gasPrice = big.NewInt(0)
	}
	poll := cfg.ReceiptPoll
	if poll <= 0 {
		poll = defaultReceiptPoll
	}

	return &RPCGateway{
		backend:        backend,
		key:            key,
		signer:         crypto.PubkeyToAddress(key.PublicKey),
		chainId:        big.NewInt(profile.ChainId),
		gas:            profile.Gas,
		gasPrice:       new(big.Int).Set(gasPrice),
		receiptTimeout: cfg.ReceiptTimeout,
		receiptPoll:    poll,
	}
}

func (g *RPCGateway) Close() {
	g.backend.Close()
}

func (g *RPCGateway) Signer() common.Address {
	return g.signer
}

func (g *RPCGateway) OpenCustody(_ context.Context, deployer common.Address) (common.Address, error) {
	if deployer != g.signer {
		return common.Address{}, fmt.Errorf("%w: deployer %s, signer %s", ErrCustodyMismatch, deployer.Hex(), g.signer.Hex())
	}
	return g.signer, nil
}

func (g *RPCGateway) Pull(ctx context.Context, token, from, custody common.Address, amount *big.Int) (*Receipt, error) {
	if custody != g.signer {
		return nil, fmt.Errorf("%w: %s", ErrCustodyMismatch, custody.Hex())
	}

	allowance, err := g.allowance(ctx, token, from, custody)
	if err != nil {
		return nil, err
	}
	if allowance.Cmp(amount) < 0 {
		return nil, fmt.Errorf("%w: allowance %s, requested %s", ErrInsufficientAllowance, allowance.String(), amount.String())
	}

	data, err := parsedERC20.Pack(MethodTransferFrom, from, custody, amount)
	if err != nil {
		return nil, fmt.Errorf("unable to pack transferFrom: %w", err)
	}
	return g.send(ctx, token, MethodTransferFrom, data)
}

func (g *RPCGateway) Push(ctx context.Context, token, custody, to common.Address, amount *big.Int) (*Receipt, error) {
	if custody != g.signer {
		return nil, fmt.Errorf("%w: %s", ErrCustodyMismatch, custody.Hex())
	}

	data, err := parsedERC20.Pack(MethodTransfer, to, amount)
	if err != nil {
		return nil, fmt.Errorf("unable to pack transfer: %w", err)
	}
	return g.send(ctx, token, MethodTransfer, data)
}

func (g *RPCGateway) BalanceOf(ctx context.Context, token, holder common.Address) (*big.Int, error) {
	out, err := g.call(ctx, token, "balanceOf", holder)
	if err != nil {
		return nil, err
	}
	return unpackUint256(out)
}

func (g *RPCGateway) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	out, err := g.call(ctx, token, "decimals")
	if err != nil {
		return 0, err
	}

	values, err := parsedERC20.Unpack("decimals", out)
	if err != nil {
		return 0, fmt.Errorf("unable to unpack decimals: %w", err)
	}
	decimals, ok := values[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("unexpected decimals type %T", values[0])
	}
	return decimals, nil
}

func (g *RPCGateway) NativeBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	balance, err := g.backend.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to read balance of %s: %w", account.Hex(), err)
	}
	return balance, nil
}

func (g *RPCGateway) TransactionStatus(ctx context.Context, hash common.Hash) (*Receipt, error) {
	receipt, err := g.backend.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, &PendingError{TxHash: hash, Err: err}
	}
	if err != nil {
		return nil, fmt.Errorf("unable to fetch receipt for %s: %w", hash.Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: %s", ErrTransactionReverted, hash.Hex())
	}
	return &Receipt{TxHash: hash, GasUsed: receipt.GasUsed}, nil
}

func (g *RPCGateway) allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	out, err := g.call(ctx, token, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	return unpackUint256(out)
}

func (g *RPCGateway) call(ctx context.Context, token common.Address, method string, args ...any) ([]byte, error) {
	data, err := parsedERC20.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("unable to pack %s: %w", method, err)
	}

	out, err := g.backend.CallContract(ctx, ethereum.CallMsg{From: g.signer, To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s call on %s failed: %w", method, token.Hex(), err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no contract code at %s", ErrUnknownToken, token.Hex())
	}
	return out, nil
}

func (g *RPCGateway) send(ctx context.Context, token common.Address, method string, data []byte) (*Receipt, error) {
	signed, err := g.signAndSend(ctx, token, data)
	if err != nil {
		if signed != nil {
			return nil, &PendingError{TxHash: signed.Hash(), Method: method, Err: err}
		}
		return nil, err
	}

	zap.L().Info("Token transaction submitted",
		zap.String("method", method),
		zap.String("token", token.Hex()),
		zap.String("tx_hash", signed.Hash().Hex()),
		zap.Uint64("nonce", signed.Nonce()))

	receipt, err := g.waitMined(ctx, signed.Hash())
	if err != nil {
		zap.L().Warn("Token transaction not confirmed",
			zap.String("method", method),
			zap.String("tx_hash", signed.Hash().Hex()),
			zap.Error(err))
		return nil, &PendingError{TxHash: signed.Hash(), Method: method, Err: err}
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: %s %s", ErrTransactionReverted, method, signed.Hash().Hex())
	}

	return &Receipt{TxHash: signed.Hash(), Method: method, GasUsed: receipt.GasUsed}, nil
}

// signAndSend holds the nonce lock until the node has accepted the transaction.
// When the send fails without an answer from the node the signed transaction
// is returned with the error, since it may have been broadcast.
func (g *RPCGateway) signAndSend(ctx context.Context, to common.Address, data []byte) (*types.Transaction, error) {
	g.nonceMu.Lock()
	defer g.nonceMu.Unlock()

	nonce, err := g.backend.PendingNonceAt(ctx, g.signer)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch nonce for %s: %w", g.signer.Hex(), err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    big.NewInt(0),
		Gas:      g.gas,
		GasPrice: g.gasPrice,
		Data:     data,
	})

	signed, err := types.SignTx(tx, types.NewEIP155Signer(g.chainId), g.key)
	if err != nil {
		return nil, fmt.Errorf("unable to sign transaction: %w", err)
	}

	if err := g.backend.SendTransaction(ctx, signed); err != nil {
		var rejected rpc.Error
		if errors.As(err, &rejected) {
			return nil, fmt.Errorf("transaction rejected by node: %w", err)
		}
		return signed, fmt.Errorf("unable to send transaction: %w", err)
	}
	return signed, nil
}

func (g *RPCGateway) waitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	if g.receiptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.receiptTimeout)
		defer cancel()
	}

	ticker := time.NewTicker(g.receiptPoll)
	defer ticker.Stop()

	for {
		receipt, err := g.backend.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("unable to fetch receipt for %s: %w", hash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for receipt %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

func unpackUint256(out []byte) (*big.Int, error) {
	values, err := parsedERC20.Unpack("balanceOf", out)
	if err != nil {
		return nil, fmt.Errorf("unable to unpack uint256: %w", err)
	}
	value, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected uint256 type %T", values[0])
	}
	return value, nil
}

func mustParseABI(definition string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		panic(fmt.Sprintf("invalid ERC-20 ABI: %v", err))
	}
	return parsed
}

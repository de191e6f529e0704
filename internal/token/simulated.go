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

package token

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// Gas figures reported by the simulated network. They approximate what an
// OpenZeppelin ERC-20 costs on a real EVM.
const (
	SimulatedGasTransfer     uint64 = 34_494
	SimulatedGasTransferFrom uint64 = 51_580
	SimulatedGasApprove      uint64 = 46_176
	SimulatedGasDeploy       uint64 = 1_196_828
)

// DefaultNativeFunding is what every development account starts with (10000 ether)
var DefaultNativeFunding = new(big.Int).Mul(big.NewInt(10_000), big.NewInt(1e18))

var _ Gateway = (*Simulated)(nil)

// Simulated is an in-process development network holding ERC-20 style
// tokens and native balances. State lives only as long as the process.
type Simulated struct {
	mu      sync.Mutex
	chainId int64
	tokens  map[common.Address]*simToken
	native  map[common.Address]*big.Int
	nonces  map[common.Address]uint64
	mined   map[common.Hash]*Receipt
	txCount uint64
}

type simToken struct {
	symbol     string
	decimals   uint8
	supply     *big.Int
	balances   map[common.Address]*big.Int
	allowances map[common.Address]map[common.Address]*big.Int
}

// NewSimulated creates a network and funds each account with DefaultNativeFunding
func NewSimulated(chainId int64, accounts ...common.Address) *Simulated {
	s := &Simulated{
		chainId: chainId,
		tokens:  make(map[common.Address]*simToken),
		native:  make(map[common.Address]*big.Int),
		nonces:  make(map[common.Address]uint64),
		mined:   make(map[common.Hash]*Receipt),
	}
	for _, account := range accounts {
		s.native[account] = new(big.Int).Set(DefaultNativeFunding)
	}
	return s
}

func (s *Simulated) ChainId() int64 {
	return s.chainId
}

// DeployToken creates a token at the deployer's next contract address and
// credits the whole supply to the deployer.
func (s *Simulated) DeployToken(deployer common.Address, symbol string, decimals uint8, supply *big.Int) common.Address {
	s.mu.Lock()
	defer s.mu.Unlock()

	address := s.nextContractAddress(deployer)
	s.registerToken(address, symbol, decimals)
	s.credit(address, deployer, supply)

	zap.L().Info("Simulated token deployed",
		zap.String("address", address.Hex()),
		zap.String("symbol", symbol),
		zap.Uint8("decimals", decimals),
		zap.String("supply", supply.String()))
	return address
}

// RegisterToken places a token at a fixed address, for example one taken
// from configuration. Registering an existing address is a no-op.
func (s *Simulated) RegisterToken(address common.Address, symbol string, decimals uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tokens[address]; exists {
		return
	}
	s.registerToken(address, symbol, decimals)
}

func (s *Simulated) Mint(token, to common.Address, amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tokens[token]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownToken, token.Hex())
	}
	s.credit(token, to, amount)
	return nil
}

// Approve sets spender's allowance over owner's tokens
func (s *Simulated) Approve(token, owner, spender common.Address, amount *big.Int) (*Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[token]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, token.Hex())
	}
	if t.allowances[owner] == nil {
		t.allowances[owner] = make(map[common.Address]*big.Int)
	}
	t.allowances[owner][spender] = new(big.Int).Set(amount)

	return s.receipt(MethodApprove, SimulatedGasApprove), nil
}

func (s *Simulated) Allowance(token, owner, spender common.Address) *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[token]
	if !ok || t.allowances[owner] == nil || t.allowances[owner][spender] == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(t.allowances[owner][spender])
}

// Transfer moves tokens between two accounts on behalf of from
func (s *Simulated) Transfer(token, from, to common.Address, amount *big.Int) (*Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.move(token, from, to, amount); err != nil {
		return nil, err
	}
	return s.receipt(MethodTransfer, SimulatedGasTransfer), nil
}

func (s *Simulated) OpenCustody(_ context.Context, deployer common.Address) (common.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	address := s.nextContractAddress(deployer)
	if _, ok := s.native[address]; !ok {
		s.native[address] = big.NewInt(0)
	}
	return address, nil
}

func (s *Simulated) Pull(_ context.Context, token, from, custody common.Address, amount *big.Int) (*Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[token]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, token.Hex())
	}

	allowance := big.NewInt(0)
	if t.allowances[from] != nil && t.allowances[from][custody] != nil {
		allowance = t.allowances[from][custody]
	}
	if allowance.Cmp(amount) < 0 {
		return nil, fmt.Errorf("%w: allowance %s, requested %s", ErrInsufficientAllowance, allowance.String(), amount.String())
	}

	if err := s.move(token, from, custody, amount); err != nil {
		return nil, err
	}
	t.allowances[from][custody] = new(big.Int).Sub(allowance, amount)

	return s.receipt(MethodTransferFrom, SimulatedGasTransferFrom), nil
}

func (s *Simulated) Push(_ context.Context, token, custody, to common.Address, amount *big.Int) (*Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.move(token, custody, to, amount); err != nil {
		return nil, err
	}
	return s.receipt(MethodTransfer, SimulatedGasTransfer), nil
}

func (s *Simulated) BalanceOf(_ context.Context, token, holder common.Address) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[token]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, token.Hex())
	}
	return balanceOf(t, holder), nil
}

func (s *Simulated) Decimals(_ context.Context, token common.Address) (uint8, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[token]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownToken, token.Hex())
	}
	return t.decimals, nil
}

func (s *Simulated) NativeBalance(_ context.Context, account common.Address) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if balance, ok := s.native[account]; ok {
		return new(big.Int).Set(balance), nil
	}
	return big.NewInt(0), nil
}

// TransactionStatus reports transfers made by this network; every transfer
// is mined the moment it is made.
func (s *Simulated) TransactionStatus(_ context.Context, hash common.Hash) (*Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	receipt, ok := s.mined[hash]
	if !ok {
		return nil, &PendingError{TxHash: hash, Err: ethereum.NotFound}
	}
	copied := *receipt
	return &copied, nil
}

func (s *Simulated) registerToken(address common.Address, symbol string, decimals uint8) {
	s.tokens[address] = &simToken{
		symbol:     symbol,
		decimals:   decimals,
		supply:     big.NewInt(0),
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[common.Address]map[common.Address]*big.Int),
	}
}

// nextContractAddress follows the EVM CREATE rule: keccak(rlp(sender, nonce))
func (s *Simulated) nextContractAddress(deployer common.Address) common.Address {
	nonce := s.nonces[deployer]
	s.nonces[deployer] = nonce + 1
	return crypto.CreateAddress(deployer, nonce)
}

func (s *Simulated) credit(token, to common.Address, amount *big.Int) {
	t := s.tokens[token]
	t.balances[to] = new(big.Int).Add(balanceOf(t, to), amount)
	t.supply = new(big.Int).Add(t.supply, amount)
}

func (s *Simulated) move(token, from, to common.Address, amount *big.Int) error {
	t, ok := s.tokens[token]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownToken, token.Hex())
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("negative transfer amount %s", amount.String())
	}

	fromBalance := balanceOf(t, from)
	if fromBalance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds %s, requested %s", ErrInsufficientBalance, from.Hex(), fromBalance.String(), amount.String())
	}

	t.balances[from] = new(big.Int).Sub(fromBalance, amount)
	t.balances[to] = new(big.Int).Add(balanceOf(t, to), amount)
	return nil
}

func (s *Simulated) receipt(method string, gas uint64) *Receipt {
	s.txCount++
	var counter [8]byte
	binary.BigEndian.PutUint64(counter[:], s.txCount)
	receipt := &Receipt{
		TxHash:  crypto.Keccak256Hash([]byte(method), counter[:]),
		Method:  method,
		GasUsed: gas,
	}
	s.mined[receipt.TxHash] = receipt

	copied := *receipt
	return &copied
}

func balanceOf(t *simToken, holder common.Address) *big.Int {
	if balance, ok := t.balances[holder]; ok {
		return new(big.Int).Set(balance)
	}
	return big.NewInt(0)
}

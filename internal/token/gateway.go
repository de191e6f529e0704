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
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Sentinel errors returned by gateway implementations
var (
	ErrInsufficientBalance   = errors.New("transfer amount exceeds balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrUnknownToken          = errors.New("unknown token")
	ErrTransactionReverted   = errors.New("transaction reverted")
	ErrCustodyMismatch       = errors.New("custody account not controlled by this gateway")
	ErrOutcomeUnknown        = errors.New("transaction outcome unknown")
)

// PendingError reports a transaction that was broadcast but not seen mined.
// It may still land, so callers must not treat it as a failed transfer.
type PendingError struct {
	TxHash common.Hash
	Method string
	Err    error
}

func (e *PendingError) Error() string {
	return fmt.Sprintf("%s %s not confirmed: %v", e.Method, e.TxHash.Hex(), e.Err)
}

func (e *PendingError) Unwrap() []error {
	return []error{ErrOutcomeUnknown, e.Err}
}

// PendingTransaction returns the hash carried by a *PendingError in err's chain
func PendingTransaction(err error) (common.Hash, bool) {
	var pending *PendingError
	if errors.As(err, &pending) {
		return pending.TxHash, true
	}
	return common.Hash{}, false
}

// Token method names, also used as gas report keys
const (
	MethodTransfer     = "transfer"
	MethodTransferFrom = "transferFrom"
	MethodApprove      = "approve"
)

// Receipt describes a mined token transfer
type Receipt struct {
	TxHash  common.Hash
	Method  string
	GasUsed uint64
}

// Gateway moves fungible tokens between participants and a pool's custody account
type Gateway interface {
	// OpenCustody returns the account that will hold tokens for a pool deployed by deployer.
	OpenCustody(ctx context.Context, deployer common.Address) (common.Address, error)
	// Pull moves amount from a participant into custody. The participant must
	// have approved custody for at least amount.
	Pull(ctx context.Context, token, from, custody common.Address, amount *big.Int) (*Receipt, error)
	// Push moves amount out of custody to a participant.
	Push(ctx context.Context, token, custody, to common.Address, amount *big.Int) (*Receipt, error)
	BalanceOf(ctx context.Context, token, holder common.Address) (*big.Int, error)
	Decimals(ctx context.Context, token common.Address) (uint8, error)
	NativeBalance(ctx context.Context, account common.Address) (*big.Int, error)
	// TransactionStatus looks up a transfer sent earlier. It returns the
	// receipt once mined, ErrTransactionReverted when it failed and a
	// *PendingError while it is not mined yet.
	TransactionStatus(ctx context.Context, hash common.Hash) (*Receipt, error)
}

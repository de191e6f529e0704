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

package models

import "math/big"

// NetworkProfile describes one named network the tools can target
type NetworkProfile struct {
	Name      string
	Url       string
	Gas       uint64
	GasPrice  *big.Int // wei
	ChainId   int64
	Accounts  []string // hex private keys
	Simulated bool
}

// HasAccounts reports whether the profile carries at least one signing key
func (p NetworkProfile) HasAccounts() bool {
	return len(p.Accounts) > 0
}

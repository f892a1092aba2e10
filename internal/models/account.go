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

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// AccountLen is the byte length of an account identifier
const AccountLen = 32

// Account is an opaque 32-byte account identifier. The all-zero value is the null account.
type Account [AccountLen]byte

// ZeroAccount is the null account
var ZeroAccount Account

// ParseAccount decodes a hex account, with or without a 0x prefix
func ParseAccount(s string) (Account, error) {
	var a Account
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return a, fmt.Errorf("invalid account %q: %w", s, err)
	}
	if len(b) != AccountLen {
		return a, fmt.Errorf("invalid account %q: expected %d bytes, got %d", s, AccountLen, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// MustParseAccount is ParseAccount for constants and tests
func MustParseAccount(s string) Account {
	a, err := ParseAccount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// AccountFromBytes copies b into an Account, failing on a length mismatch
func AccountFromBytes(b []byte) (Account, error) {
	var a Account
	if len(b) != AccountLen {
		return a, fmt.Errorf("account must be %d bytes, got %d", AccountLen, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// AccountFromLabel derives a readable test/dev account: the label left-aligned and zero padded.
func AccountFromLabel(label string) Account {
	var a Account
	copy(a[:], label)
	return a
}

func (a Account) IsZero() bool {
	return a == ZeroAccount
}

func (a Account) Bytes() []byte {
	return a[:]
}

func (a Account) String() string {
	return hex.EncodeToString(a[:])
}

// Short returns an abbreviated form for logs and reports
func (a Account) Short() string {
	s := a.String()
	return s[:8] + ".." + s[len(s)-4:]
}

// AssetRef identifies an asset by the ledger that accounts for it.
// The zero value refers to the native asset.
type AssetRef struct {
	Ledger Account
}

// NativeAsset is the sentinel for the native asset
var NativeAsset = AssetRef{}

// ParseAssetRef accepts "native" or a hex ledger account
func ParseAssetRef(s string) (AssetRef, error) {
	if s == "" || strings.EqualFold(s, "native") {
		return NativeAsset, nil
	}
	a, err := ParseAccount(s)
	if err != nil {
		return AssetRef{}, fmt.Errorf("invalid asset: %w", err)
	}
	return AssetRef{Ledger: a}, nil
}

func (r AssetRef) IsNative() bool {
	return r.Ledger.IsZero()
}

func (r AssetRef) String() string {
	if r.IsNative() {
		return "native"
	}
	return r.Ledger.String()
}

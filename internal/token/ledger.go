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
	"fmt"

	"token-vesting-go/internal/events"
	"token-vesting-go/internal/models"
	"token-vesting-go/internal/store"

	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// Ledger accounts for one fungible asset on top of a shared store.
// Every mutation commits balances, allowances, supply and its events together or not at all.
type Ledger struct {
	store  store.Store
	asset  models.AssetRef
	policy Policy
	hook   UpdateHook
	sink   events.Sink
}

type Option func(*Ledger)

// WithPolicy gates Mint and Burn. Without one, every caller may mint and burn.
func WithPolicy(policy Policy) Option {
	return func(l *Ledger) { l.policy = policy }
}

func WithHook(hook UpdateHook) Option {
	return func(l *Ledger) { l.hook = hook }
}

func WithSink(sink events.Sink) Option {
	return func(l *Ledger) { l.sink = sink }
}

func NewLedger(st store.Store, asset models.AssetRef, opts ...Option) *Ledger {
	l := &Ledger{store: st, asset: asset}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) Asset() models.AssetRef {
	return l.asset
}

// --- Queries ---

func (l *Ledger) BalanceOf(ctx context.Context, account models.Account) (*uint256.Int, error) {
	return l.store.GetBalance(ctx, l.asset, account)
}

func (l *Ledger) Allowance(ctx context.Context, owner, spender models.Account) (*uint256.Int, error) {
	return l.store.GetAllowance(ctx, l.asset, owner, spender)
}

func (l *Ledger) TotalSupply(ctx context.Context) (*uint256.Int, error) {
	supply, err := l.store.GetSupply(ctx, l.asset)
	if err != nil {
		return nil, err
	}
	return supply.Total, nil
}

func (l *Ledger) Supply(ctx context.Context) (*models.Supply, error) {
	return l.store.GetSupply(ctx, l.asset)
}

// Reconcile verifies that the persisted balances add up to the supply and that
// the supply matches minted minus burned.
func (l *Ledger) Reconcile(ctx context.Context) error {
	zap.L().Info("Reconciling supply", zap.String("asset", l.asset.String()))

	supply, err := l.store.GetSupply(ctx, l.asset)
	if err != nil {
		return fmt.Errorf("failed to get supply: %w", err)
	}
	sum, err := l.store.SumBalances(ctx, l.asset)
	if err != nil {
		return fmt.Errorf("failed to sum balances: %w", err)
	}

	if !sum.Eq(supply.Total) {
		zap.L().Error("Supply reconciliation failed",
			zap.String("asset", l.asset.String()),
			zap.String("total_supply", supply.Total.Dec()),
			zap.String("sum_of_balances", sum.Dec()))
		return fmt.Errorf("supply mismatch: total=%s, balances=%s", supply.Total.Dec(), sum.Dec())
	}

	issued, underflow := new(uint256.Int).SubOverflow(supply.Minted, supply.Burned)
	if underflow || !issued.Eq(supply.Total) {
		return fmt.Errorf("issuance mismatch: total=%s, minted=%s, burned=%s",
			supply.Total.Dec(), supply.Minted.Dec(), supply.Burned.Dec())
	}

	zap.L().Info("Supply reconciliation successful",
		zap.String("asset", l.asset.String()),
		zap.String("total_supply", supply.Total.Dec()))
	return nil
}

// --- Mutations ---

// Mint creates amount out of nothing and credits it to to
func (l *Ledger) Mint(ctx context.Context, caller, to models.Account, amount *uint256.Int) error {
	if err := l.authorize(ctx, caller, ActionMint); err != nil {
		return err
	}
	if to.IsZero() {
		return ErrZeroRecipientAddress
	}

	err := l.run(ctx, func(tx store.Tx) ([]models.Event, error) {
		if err := l.update(ctx, tx, nil, &to, amount); err != nil {
			return nil, err
		}
		return []models.Event{models.TransferEvent{To: &to, Amount: amount}}, nil
	})
	if err != nil {
		return err
	}

	zap.L().Info("Minted",
		zap.String("asset", l.asset.String()),
		zap.String("to", to.String()),
		zap.String("amount", amount.Dec()))
	return nil
}

// Burn destroys amount held by from
func (l *Ledger) Burn(ctx context.Context, caller, from models.Account, amount *uint256.Int) error {
	if err := l.authorize(ctx, caller, ActionBurn); err != nil {
		return err
	}
	if from.IsZero() {
		return ErrZeroSenderAddress
	}

	err := l.run(ctx, func(tx store.Tx) ([]models.Event, error) {
		if err := l.update(ctx, tx, &from, nil, amount); err != nil {
			return nil, err
		}
		return []models.Event{models.TransferEvent{From: &from, Amount: amount}}, nil
	})
	if err != nil {
		return err
	}

	zap.L().Info("Burned",
		zap.String("asset", l.asset.String()),
		zap.String("from", from.String()),
		zap.String("amount", amount.Dec()))
	return nil
}

// Transfer moves amount from caller to to. data is opaque and only logged.
func (l *Ledger) Transfer(ctx context.Context, caller, to models.Account, amount *uint256.Int, data []byte) error {
	if caller.IsZero() {
		return ErrZeroSenderAddress
	}
	if to.IsZero() {
		return ErrZeroRecipientAddress
	}

	err := l.run(ctx, func(tx store.Tx) ([]models.Event, error) {
		if err := l.update(ctx, tx, &caller, &to, amount); err != nil {
			return nil, err
		}
		return []models.Event{models.TransferEvent{From: &caller, To: &to, Amount: amount}}, nil
	})
	if err != nil {
		return err
	}

	zap.L().Info("Transfer processed",
		zap.String("asset", l.asset.String()),
		zap.String("from", caller.String()),
		zap.String("to", to.String()),
		zap.String("amount", amount.Dec()),
		zap.Int("data_len", len(data)))
	return nil
}

// TransferFrom moves amount from from to to, spending caller's allowance.
// The Unlimited allowance is never decremented.
func (l *Ledger) TransferFrom(ctx context.Context, caller, from, to models.Account, amount *uint256.Int, data []byte) error {
	if from.IsZero() {
		return ErrZeroSenderAddress
	}
	if to.IsZero() {
		return ErrZeroRecipientAddress
	}

	err := l.run(ctx, func(tx store.Tx) ([]models.Event, error) {
		allowance, err := tx.GetAllowance(ctx, l.asset, from, caller)
		if err != nil {
			return nil, err
		}
		if allowance.Lt(amount) {
			return nil, newError(KindInsufficientAllowance, "allowance %s < %s", allowance.Dec(), amount.Dec())
		}

		var out []models.Event
		if !allowance.Eq(Unlimited) {
			remaining := new(uint256.Int).Sub(allowance, amount)
			if err := tx.SetAllowance(ctx, l.asset, from, caller, remaining); err != nil {
				return nil, err
			}
			out = append(out, models.ApprovalEvent{Owner: from, Spender: caller, Amount: remaining})
		}

		if err := l.update(ctx, tx, &from, &to, amount); err != nil {
			return nil, err
		}
		return append(out, models.TransferEvent{From: &from, To: &to, Amount: amount}), nil
	})
	if err != nil {
		return err
	}

	zap.L().Info("Delegated transfer processed",
		zap.String("asset", l.asset.String()),
		zap.String("spender", caller.String()),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.String("amount", amount.Dec()),
		zap.Int("data_len", len(data)))
	return nil
}

// Approve sets spender's allowance over caller's balance to amount
func (l *Ledger) Approve(ctx context.Context, caller, spender models.Account, amount *uint256.Int) error {
	return l.setAllowance(ctx, caller, spender, func(*uint256.Int) (*uint256.Int, error) {
		return amount, nil
	})
}

func (l *Ledger) IncreaseAllowance(ctx context.Context, caller, spender models.Account, delta *uint256.Int) error {
	return l.setAllowance(ctx, caller, spender, func(current *uint256.Int) (*uint256.Int, error) {
		return CheckedAdd(current, delta)
	})
}

func (l *Ledger) DecreaseAllowance(ctx context.Context, caller, spender models.Account, delta *uint256.Int) error {
	return l.setAllowance(ctx, caller, spender, func(current *uint256.Int) (*uint256.Int, error) {
		if current.Lt(delta) {
			return nil, newError(KindInsufficientAllowance, "allowance %s < %s", current.Dec(), delta.Dec())
		}
		return new(uint256.Int).Sub(current, delta), nil
	})
}

func (l *Ledger) setAllowance(ctx context.Context, owner, spender models.Account, next func(*uint256.Int) (*uint256.Int, error)) error {
	if owner.IsZero() {
		return ErrZeroSenderAddress
	}
	if spender.IsZero() {
		return ErrZeroRecipientAddress
	}

	var amount *uint256.Int
	err := l.run(ctx, func(tx store.Tx) ([]models.Event, error) {
		current, err := tx.GetAllowance(ctx, l.asset, owner, spender)
		if err != nil {
			return nil, err
		}
		if amount, err = next(current); err != nil {
			return nil, err
		}
		if err := tx.SetAllowance(ctx, l.asset, owner, spender, amount); err != nil {
			return nil, err
		}
		return []models.Event{models.ApprovalEvent{Owner: owner, Spender: spender, Amount: amount}}, nil
	})
	if err != nil {
		return err
	}

	zap.L().Info("Allowance updated",
		zap.String("asset", l.asset.String()),
		zap.String("owner", owner.String()),
		zap.String("spender", spender.String()),
		zap.String("amount", amount.Dec()))
	return nil
}

// update is the single balance-movement primitive. A nil from mints, a nil to burns.
func (l *Ledger) update(ctx context.Context, tx store.Tx, from, to *models.Account, amount *uint256.Int) error {
	if l.hook != nil {
		if err := l.hook.BeforeUpdate(ctx, from, to, amount); err != nil {
			return err
		}
	}

	var supply *models.Supply
	if from == nil || to == nil {
		var err error
		if supply, err = tx.GetSupply(ctx, l.asset); err != nil {
			return err
		}
	}

	if from == nil {
		total, err := CheckedAdd(supply.Total, amount)
		if err != nil {
			return err
		}
		minted, err := CheckedAdd(supply.Minted, amount)
		if err != nil {
			return err
		}
		supply.Total, supply.Minted = total, minted
	} else {
		balance, err := tx.GetBalance(ctx, l.asset, *from)
		if err != nil {
			return err
		}
		if balance.Lt(amount) {
			return newError(KindInsufficientBalance, "balance %s < %s", balance.Dec(), amount.Dec())
		}
		if err := tx.SetBalance(ctx, l.asset, *from, new(uint256.Int).Sub(balance, amount)); err != nil {
			return err
		}
	}

	if to == nil {
		burned, err := CheckedAdd(supply.Burned, amount)
		if err != nil {
			return err
		}
		total, err := CheckedSub(supply.Total, amount)
		if err != nil {
			return err
		}
		supply.Total, supply.Burned = total, burned
	} else {
		balance, err := tx.GetBalance(ctx, l.asset, *to)
		if err != nil {
			return err
		}
		credited, err := CheckedAdd(balance, amount)
		if err != nil {
			return err
		}
		if err := tx.SetBalance(ctx, l.asset, *to, credited); err != nil {
			return err
		}
	}

	if supply != nil {
		return tx.SetSupply(ctx, supply)
	}
	return nil
}

func (l *Ledger) authorize(ctx context.Context, caller models.Account, action Action) error {
	if l.policy == nil {
		return nil
	}
	return l.policy.Authorize(ctx, caller, action)
}

// run executes fn in one store transaction, appends the events it returns,
// commits, and only then publishes the events to the sink.
func (l *Ledger) run(ctx context.Context, fn func(tx store.Tx) ([]models.Event, error)) error {
	tx, err := l.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	produced, err := fn(tx)
	if err != nil {
		return err
	}

	records := make([]models.EventRecord, 0, len(produced))
	for _, event := range produced {
		record, err := events.NewRecord(l.asset, event)
		if err != nil {
			return err
		}
		if err := tx.AppendEvent(ctx, record); err != nil {
			return err
		}
		records = append(records, *record)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	for _, record := range records {
		events.Publish(ctx, l.sink, record)
	}
	return nil
}

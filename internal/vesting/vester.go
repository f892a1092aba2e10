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

package vesting

import (
	"context"
	"errors"
	"fmt"

	"token-vesting-go/internal/events"
	"token-vesting-go/internal/models"
	"token-vesting-go/internal/store"
	"token-vesting-go/internal/token"

	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// ErrInvariantViolation signals broken internal bookkeeping, never bad user input
var ErrInvariantViolation = errors.New("vesting invariant violated")

// TimeSource is satisfied by *timesource.Adapter
type TimeSource interface {
	Now() uint64
	Window(ctx context.Context, schedule models.VestingSchedule) (models.Window, bool)
}

// Vester locks deposits under release schedules and pays out matured amounts.
// It holds custody in its own account on each asset's ledger.
type Vester struct {
	store   store.Store
	ledgers Ledgers
	times   TimeSource
	self    models.Account
	sink    events.Sink
}

func NewVester(st store.Store, ledgers Ledgers, times TimeSource, self models.Account, sink events.Sink) *Vester {
	return &Vester{store: st, ledgers: ledgers, times: times, self: self, sink: sink}
}

// Account is the custody account the Vester spends from and must be approved as spender
func (v *Vester) Account() models.Account {
	return v.self
}

// CreateVest pulls amount from caller into custody and records a new entry for receiver
func (v *Vester) CreateVest(ctx context.Context, caller, receiver models.Account, asset models.AssetRef,
	amount *uint256.Int, schedule models.VestingSchedule, data []byte) (*models.VestEntry, error) {
	if amount == nil || amount.IsZero() {
		return nil, token.Custom("ZeroAmount")
	}
	if receiver.IsZero() {
		return nil, token.ErrZeroRecipientAddress
	}
	if err := schedule.Validate(); err != nil {
		return nil, &token.Error{Kind: token.KindCustom, Message: "InvalidSchedule", Cause: err}
	}

	ledger, err := v.ledgers.Resolve(asset)
	if err != nil {
		return nil, err
	}

	if err := ledger.TransferFrom(ctx, v.self, caller, v.self, amount, data); err != nil {
		zap.L().Warn("Failed to pull vest deposit",
			zap.String("creator", caller.String()),
			zap.String("asset", asset.String()),
			zap.String("amount", amount.Dec()),
			zap.Error(err))
		return nil, token.ExternalCallFailed(err)
	}

	entry := &models.VestEntry{
		Creator:   caller,
		Receiver:  receiver,
		Asset:     asset,
		Total:     new(uint256.Int).Set(amount),
		Released:  new(uint256.Int),
		Schedule:  schedule,
		CreatedAt: v.times.Now(),
	}

	err = v.run(ctx, asset, func(tx store.Tx) ([]models.Event, error) {
		id, err := tx.InsertVest(ctx, entry)
		if err != nil {
			return nil, err
		}
		entry.Id = id

		custody, err := tx.GetCustody(ctx, asset)
		if err != nil {
			return nil, err
		}
		custody, err = token.CheckedAdd(custody, amount)
		if err != nil {
			return nil, err
		}
		if err := tx.SetCustody(ctx, asset, custody); err != nil {
			return nil, err
		}

		return []models.Event{models.VestingScheduledEvent{
			Creator:  caller,
			Receiver: receiver,
			Asset:    asset,
			Amount:   amount,
			Schedule: schedule,
		}}, nil
	})
	if err != nil {
		zap.L().Error("Failed to record vest entry, refunding deposit",
			zap.String("creator", caller.String()),
			zap.String("amount", amount.Dec()),
			zap.Error(err))
		if refundErr := v.refundDeposit(ctx, ledger, caller, amount); refundErr != nil {
			zap.L().Error("Failed to refund vest deposit", zap.Error(refundErr))
			return nil, errors.Join(err, fmt.Errorf("refund failed: %w", refundErr))
		}
		return nil, err
	}

	zap.L().Info("Vest created",
		zap.Int64("entry_id", entry.Id),
		zap.String("creator", caller.String()),
		zap.String("receiver", receiver.String()),
		zap.String("asset", asset.String()),
		zap.String("amount", amount.Dec()),
		zap.String("schedule", schedule.String()))
	return entry, nil
}

// Release pays receiver everything matured across its entries for asset and
// returns the amount paid. Anyone may call it; funds only ever go to receiver.
// Bookkeeping commits before the payout and is reverted if the payout fails.
func (v *Vester) Release(ctx context.Context, caller, receiver models.Account, asset models.AssetRef, data []byte) (*uint256.Int, error) {
	entries, err := v.store.GetVests(ctx, receiver, asset)
	if err != nil {
		return nil, fmt.Errorf("failed to load vest entries: %w", err)
	}

	now := v.times.Now()
	steps, total, err := v.plan(ctx, entries, now)
	if err != nil {
		return nil, err
	}

	if !total.IsZero() {
		ledger, err := v.ledgers.Resolve(asset)
		if err != nil {
			return nil, err
		}
		if err := v.applySteps(ctx, asset, steps, total, false); err != nil {
			return nil, err
		}

		if err := ledger.Transfer(ctx, v.self, receiver, total, data); err != nil {
			zap.L().Error("Release payout failed, reverting bookkeeping",
				zap.String("receiver", receiver.String()),
				zap.String("asset", asset.String()),
				zap.String("amount", total.Dec()),
				zap.Error(err))
			if revertErr := v.applySteps(ctx, asset, steps, total, true); revertErr != nil {
				zap.L().Error("Failed to revert release bookkeeping", zap.Error(revertErr))
				return nil, errors.Join(token.ExternalCallFailed(err), revertErr)
			}
			return nil, token.ExternalCallFailed(err)
		}
	}

	released := models.TokenReleasedEvent{Caller: caller, Asset: asset, Receiver: receiver, Amount: total}
	if err := v.run(ctx, asset, func(store.Tx) ([]models.Event, error) {
		return []models.Event{released}, nil
	}); err != nil {
		zap.L().Error("Failed to record release event", zap.Error(err))
	}

	zap.L().Info("Release processed",
		zap.String("caller", caller.String()),
		zap.String("receiver", receiver.String()),
		zap.String("asset", asset.String()),
		zap.String("amount", total.Dec()),
		zap.Int("entries", len(steps)),
		zap.Uint64("now", now))
	return total, nil
}

// refundDeposit returns a pulled deposit and the allowance it consumed.
// An unlimited allowance was never decremented and is left alone.
func (v *Vester) refundDeposit(ctx context.Context, ledger AssetLedger, caller models.Account, amount *uint256.Int) error {
	if err := ledger.Transfer(ctx, v.self, caller, amount, nil); err != nil {
		return err
	}

	allowance, err := ledger.Allowance(ctx, caller, v.self)
	if err != nil {
		return fmt.Errorf("failed to read allowance: %w", err)
	}
	if allowance.Eq(token.Unlimited) {
		return nil
	}
	if err := ledger.IncreaseAllowance(ctx, caller, v.self, amount); err != nil {
		return fmt.Errorf("failed to restore allowance: %w", err)
	}
	return nil
}

// step moves one entry's released amount from `from` to `to`
type step struct {
	id       int64
	from, to *uint256.Int
}

// plan evaluates every open entry at now and returns the per-entry moves and their sum
func (v *Vester) plan(ctx context.Context, entries []models.VestEntry, now uint64) ([]step, *uint256.Int, error) {
	total := new(uint256.Int)
	var steps []step

	for i := range entries {
		entry := &entries[i]
		if entry.FullyReleased() {
			continue
		}

		var window *models.Window
		if w, ok := v.times.Window(ctx, entry.Schedule); ok {
			window = &w
		}
		releasable, err := Releasable(window, entry.Total, now)
		if err != nil {
			return nil, nil, err
		}

		if releasable.Lt(entry.Released) {
			if entry.Schedule.Kind != models.ScheduleExternal {
				zap.L().Error("Releasable amount below released amount",
					zap.Int64("entry_id", entry.Id),
					zap.String("releasable", releasable.Dec()),
					zap.String("released", entry.Released.Dec()))
				return nil, nil, fmt.Errorf("%w: entry %d releasable %s < released %s",
					ErrInvariantViolation, entry.Id, releasable.Dec(), entry.Released.Dec())
			}
			zap.L().Warn("Oracle window moved backwards, nothing to release",
				zap.Int64("entry_id", entry.Id),
				zap.String("oracle", entry.Schedule.Oracle.String()))
			continue
		}

		delta := new(uint256.Int).Sub(releasable, entry.Released)
		if delta.IsZero() {
			continue
		}
		if total, err = token.CheckedAdd(total, delta); err != nil {
			return nil, nil, err
		}
		steps = append(steps, step{id: entry.Id, from: entry.Released, to: releasable})
	}

	return steps, total, nil
}

// applySteps commits the released counters and the custody decrement in one transaction,
// or undoes them when revert is set
func (v *Vester) applySteps(ctx context.Context, asset models.AssetRef, steps []step, total *uint256.Int, revert bool) error {
	tx, err := v.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, s := range steps {
		from, to := s.from, s.to
		if revert {
			from, to = to, from
		}
		if err := tx.UpdateReleased(ctx, s.id, from, to); err != nil {
			return fmt.Errorf("entry %d: %w", s.id, err)
		}
	}

	held, err := tx.GetCustody(ctx, asset)
	if err != nil {
		return err
	}
	var custody *uint256.Int
	if revert {
		custody, err = token.CheckedAdd(held, total)
	} else {
		custody, err = token.CheckedSub(held, total)
	}
	if err != nil {
		return fmt.Errorf("%w: custody %s cannot cover %s", ErrInvariantViolation, held.Dec(), total.Dec())
	}
	if err := tx.SetCustody(ctx, asset, custody); err != nil {
		return err
	}

	return tx.Commit()
}

// run executes fn in one store transaction, appends its events, commits and then publishes
func (v *Vester) run(ctx context.Context, asset models.AssetRef, fn func(tx store.Tx) ([]models.Event, error)) error {
	tx, err := v.store.Begin(ctx)
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
		record, err := events.NewRecord(asset, event)
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
		events.Publish(ctx, v.sink, record)
	}
	return nil
}

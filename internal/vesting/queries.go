package vesting

import (
	"context"
	"fmt"

	"token-vesting-go/internal/models"
	"token-vesting-go/internal/token"

	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// CustodyReport compares the custody counter with what entries still owe and
// what the Vester actually holds on the asset's ledger
type CustodyReport struct {
	Asset   models.AssetRef
	Counter *uint256.Int
	Owed    *uint256.Int
	Held    *uint256.Int
}

func (v *Vester) Entries(ctx context.Context, receiver models.Account, asset models.AssetRef) ([]models.VestEntry, error) {
	return v.store.GetVests(ctx, receiver, asset)
}

// Summary totals a receiver's entries and what Release would pay right now
func (v *Vester) Summary(ctx context.Context, receiver models.Account, asset models.AssetRef) (*models.VestingSummary, error) {
	entries, err := v.store.GetVests(ctx, receiver, asset)
	if err != nil {
		return nil, fmt.Errorf("failed to load vest entries: %w", err)
	}

	now := v.times.Now()
	summary := &models.VestingSummary{
		Receiver: receiver,
		Asset:    asset,
		Entries:  len(entries),
		Total:    new(uint256.Int),
		Released: new(uint256.Int),
		AsOf:     now,
	}
	for _, entry := range entries {
		if summary.Total, err = token.CheckedAdd(summary.Total, entry.Total); err != nil {
			return nil, err
		}
		if summary.Released, err = token.CheckedAdd(summary.Released, entry.Released); err != nil {
			return nil, err
		}
	}

	if _, summary.Releasable, err = v.plan(ctx, entries, now); err != nil {
		return nil, err
	}
	return summary, nil
}

// CheckCustody verifies the custody counter equals the sum still owed to
// receivers and that the Vester's ledger balance covers it
func (v *Vester) CheckCustody(ctx context.Context, asset models.AssetRef) (*CustodyReport, error) {
	ledger, err := v.ledgers.Resolve(asset)
	if err != nil {
		return nil, err
	}

	report := &CustodyReport{Asset: asset, Owed: new(uint256.Int)}
	if report.Counter, err = v.store.GetCustody(ctx, asset); err != nil {
		return nil, fmt.Errorf("failed to get custody: %w", err)
	}

	entries, err := v.store.ListVests(ctx, asset)
	if err != nil {
		return nil, fmt.Errorf("failed to list vest entries: %w", err)
	}
	for _, entry := range entries {
		if report.Owed, err = token.CheckedAdd(report.Owed, entry.Remaining()); err != nil {
			return nil, err
		}
	}

	if report.Held, err = ledger.BalanceOf(ctx, v.self); err != nil {
		return nil, token.ExternalCallFailed(err)
	}

	if !report.Counter.Eq(report.Owed) {
		zap.L().Error("Custody counter does not match entries",
			zap.String("asset", asset.String()),
			zap.String("counter", report.Counter.Dec()),
			zap.String("owed", report.Owed.Dec()))
		return report, fmt.Errorf("%w: custody %s, owed %s", ErrInvariantViolation, report.Counter.Dec(), report.Owed.Dec())
	}
	if report.Held.Lt(report.Counter) {
		zap.L().Error("Custody is not backed by ledger balance",
			zap.String("asset", asset.String()),
			zap.String("counter", report.Counter.Dec()),
			zap.String("held", report.Held.Dec()))
		return report, fmt.Errorf("%w: custody %s, held %s", ErrInvariantViolation, report.Counter.Dec(), report.Held.Dec())
	}
	return report, nil
}

package api

import (
	"context"
	"fmt"

	"token-vesting-go/internal/models"
	"token-vesting-go/internal/token"

	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// ProcessVest locks amount for receiver. Failures are reported in the result, not as an error.
func (s *LedgerService) ProcessVest(ctx context.Context, caller, receiver models.Account, asset models.AssetRef,
	amount *uint256.Int, schedule models.VestingSchedule) (*models.VestResult, error) {
	entry, err := s.vester.CreateVest(ctx, caller, receiver, asset, amount, schedule, nil)
	if err != nil {
		zap.L().Warn("Vest creation failed",
			zap.String("creator", caller.String()),
			zap.String("receiver", receiver.String()),
			zap.String("kind", string(token.KindOf(err))),
			zap.Error(err))
		return &models.VestResult{
			Success: false,
			Error:   err.Error(),
		}, nil
	}

	return &models.VestResult{
		Success: true,
		Entry:   entry,
	}, nil
}

// ProcessRelease pays receiver whatever has matured
func (s *LedgerService) ProcessRelease(ctx context.Context, caller, receiver models.Account, asset models.AssetRef) (*models.ReleaseResult, error) {
	if receiver.IsZero() {
		return &models.ReleaseResult{
			Success: false,
			Error:   "receiver is required",
		}, nil
	}

	amount, err := s.vester.Release(ctx, caller, receiver, asset, nil)
	if err != nil {
		zap.L().Error("Release failed",
			zap.String("receiver", receiver.String()),
			zap.String("asset", asset.String()),
			zap.Error(err))
		return &models.ReleaseResult{
			Success:  false,
			Receiver: receiver,
			Asset:    asset,
			Error:    err.Error(),
		}, nil
	}

	return &models.ReleaseResult{
		Success:  true,
		Receiver: receiver,
		Asset:    asset,
		Amount:   amount,
	}, nil
}

func (s *LedgerService) GetVestingSummary(ctx context.Context, receiver models.Account, asset models.AssetRef) (*models.VestingSummary, error) {
	summary, err := s.vester.Summary(ctx, receiver, asset)
	if err != nil {
		zap.L().Error("Failed to summarise vesting",
			zap.String("receiver", receiver.String()),
			zap.String("asset", asset.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve vesting summary: %w", err)
	}
	return summary, nil
}

func (s *LedgerService) GetVestEntries(ctx context.Context, receiver models.Account, asset models.AssetRef) ([]models.VestEntry, error) {
	if receiver.IsZero() {
		return s.store.ListVests(ctx, asset)
	}
	return s.vester.Entries(ctx, receiver, asset)
}

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

package api

import (
	"context"
	"fmt"

	"token-vesting-go/internal/events"
	"token-vesting-go/internal/models"
	"token-vesting-go/internal/store"

	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// GetBalance returns the current balance of an account for an asset
func (s *LedgerService) GetBalance(ctx context.Context, asset models.AssetRef, account models.Account) (*uint256.Int, error) {
	if account.IsZero() {
		return nil, fmt.Errorf("account is required")
	}

	balance, err := s.store.GetBalance(ctx, asset, account)
	if err != nil {
		zap.L().Error("Failed to get balance",
			zap.String("account", account.String()),
			zap.String("asset", asset.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve balance")
	}

	return balance, nil
}

// GetBalances returns all non-zero balances of an asset
func (s *LedgerService) GetBalances(ctx context.Context, asset models.AssetRef) ([]models.AccountBalance, error) {
	balances, err := s.store.GetAllBalances(ctx, asset)
	if err != nil {
		zap.L().Error("Failed to get balances", zap.String("asset", asset.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve balances")
	}

	result := make([]models.AccountBalance, 0, len(balances))
	for _, balance := range balances {
		if balance.Balance.IsZero() {
			continue
		}
		result = append(result, balance)
	}

	return result, nil
}

// GetEvents returns decoded events of an asset after the given sequence number
func (s *LedgerService) GetEvents(ctx context.Context, asset models.AssetRef, afterSeq int64, limit int) ([]models.EventView, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if afterSeq < 0 {
		afterSeq = 0
	}

	records, err := s.store.GetEvents(ctx, store.EventQuery{Asset: asset, AfterSeq: afterSeq, Limit: limit})
	if err != nil {
		zap.L().Error("Failed to get events", zap.String("asset", asset.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve events")
	}

	result := make([]models.EventView, len(records))
	for i, record := range records {
		event, err := events.Decode(record.Kind, record.Payload)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", record.Seq, err)
		}
		result[i] = models.EventView{
			Seq:       record.Seq,
			Id:        record.Id,
			Kind:      record.Kind,
			Asset:     record.Asset,
			Event:     event,
			CreatedAt: record.CreatedAt,
		}
	}

	return result, nil
}

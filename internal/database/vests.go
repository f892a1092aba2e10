package database

import (
	"context"
	"database/sql"
	"fmt"

	"token-vesting-go/internal/models"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

// GetVests returns the entries of a (receiver, asset) pair in creation order
func (s *Service) GetVests(ctx context.Context, receiver models.Account, asset models.AssetRef) ([]models.VestEntry, error) {
	zap.L().Debug("Getting vest entries",
		zap.String("receiver", receiver.String()),
		zap.String("asset", asset.String()))
	return queryVests(ctx, s.db, queryGetVests, receiver.String(), asset.String())
}

// ListVests returns every entry of an asset in creation order
func (s *Service) ListVests(ctx context.Context, asset models.AssetRef) ([]models.VestEntry, error) {
	return queryVests(ctx, s.db, queryListVests, asset.String())
}

func insertVest(ctx context.Context, q queryer, entry *models.VestEntry) (int64, error) {
	schedule, err := msgpack.Marshal(&entry.Schedule)
	if err != nil {
		return 0, fmt.Errorf("failed to encode schedule: %w", err)
	}

	released := entry.Released
	if released == nil {
		released = zeroAmount()
	}

	var id int64
	err = q.QueryRowContext(ctx, queryInsertVest,
		entry.Creator.String(), entry.Receiver.String(), entry.Asset.String(),
		entry.Total.Dec(), released.Dec(), schedule, int64(entry.CreatedAt)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert vest entry: %w", err)
	}
	return id, nil
}

func queryVests(ctx context.Context, q queryer, query string, args ...any) ([]models.VestEntry, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get vest entries: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var entries []models.VestEntry
	for rows.Next() {
		var entry models.VestEntry
		var creatorStr, receiverStr, assetStr, totalStr, releasedStr string
		var schedule []byte
		var createdAt int64
		err := rows.Scan(&entry.Id, &creatorStr, &receiverStr, &assetStr, &totalStr, &releasedStr, &schedule, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vest entry: %w", err)
		}

		if entry.Creator, err = models.ParseAccount(creatorStr); err != nil {
			return nil, fmt.Errorf("vest entry %d creator: %w", entry.Id, err)
		}
		if entry.Receiver, err = models.ParseAccount(receiverStr); err != nil {
			return nil, fmt.Errorf("vest entry %d receiver: %w", entry.Id, err)
		}
		if entry.Asset, err = models.ParseAssetRef(assetStr); err != nil {
			return nil, fmt.Errorf("vest entry %d: %w", entry.Id, err)
		}
		if entry.Total, err = parseAmount(totalStr); err != nil {
			return nil, err
		}
		if entry.Released, err = parseAmount(releasedStr); err != nil {
			return nil, err
		}
		if err := msgpack.Unmarshal(schedule, &entry.Schedule); err != nil {
			return nil, fmt.Errorf("vest entry %d schedule: %w", entry.Id, err)
		}
		entry.CreatedAt = uint64(createdAt)

		entries = append(entries, entry)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during vest row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating vest rows: %w", err)
	}

	return entries, nil
}

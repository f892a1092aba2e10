package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"token-vesting-go/internal/models"
	"token-vesting-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultEventLimit = 100

// GetEvents pages through the event log in sequence order
func (s *Service) GetEvents(ctx context.Context, q store.EventQuery) ([]models.EventRecord, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultEventLimit
	}

	var rows *sql.Rows
	var err error
	if q.AllAssets {
		rows, err = s.db.QueryContext(ctx, queryGetAllEvents, q.AfterSeq, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, queryGetEvents, q.Asset.String(), q.AfterSeq, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var records []models.EventRecord
	for rows.Next() {
		var record models.EventRecord
		var kind, assetStr string
		if err := rows.Scan(&record.Seq, &record.Id, &kind, &assetStr, &record.Payload, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		record.Kind = models.EventKind(kind)
		if record.Asset, err = models.ParseAssetRef(assetStr); err != nil {
			return nil, fmt.Errorf("event %d: %w", record.Seq, err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}
	return records, nil
}

// appendEvent assigns Id, CreatedAt (when unset) and Seq
func appendEvent(ctx context.Context, q queryer, record *models.EventRecord) error {
	if record.Id == "" {
		record.Id = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	err := q.QueryRowContext(ctx, queryInsertEvent,
		record.Id, string(record.Kind), record.Asset.String(), record.Payload, record.CreatedAt).Scan(&record.Seq)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

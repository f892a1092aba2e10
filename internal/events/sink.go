package events

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"token-vesting-go/internal/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Sink receives committed events. Publishing never affects the operation that produced the event.
type Sink interface {
	Publish(ctx context.Context, record models.EventRecord) error
}

// Publish fans a record out to sink, logging instead of returning failures
func Publish(ctx context.Context, sink Sink, record models.EventRecord) {
	if sink == nil {
		return
	}
	if err := sink.Publish(ctx, record); err != nil {
		zap.L().Warn("Failed to publish event",
			zap.String("event_id", record.Id),
			zap.String("kind", string(record.Kind)),
			zap.Error(err))
	}
}

// RedisSink appends events to a Redis stream
type RedisSink struct {
	client redis.Cmdable
	stream string
	maxLen int64
}

func NewRedisSink(client redis.Cmdable, stream string, maxLen int64) *RedisSink {
	return &RedisSink{client: client, stream: stream, maxLen: maxLen}
}

func (s *RedisSink) Publish(ctx context.Context, record models.EventRecord) error {
	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"id":      record.Id,
			"seq":     strconv.FormatInt(record.Seq, 10),
			"kind":    string(record.Kind),
			"asset":   record.Asset.String(),
			"payload": record.Payload,
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", s.stream, err)
	}
	return nil
}

// LogSink writes a structured log line per event
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Publish(_ context.Context, record models.EventRecord) error {
	event, err := Decode(record.Kind, record.Payload)
	if err != nil {
		return err
	}
	s.logger.Info("Event",
		zap.String("kind", string(record.Kind)),
		zap.Int64("seq", record.Seq),
		zap.String("asset", record.Asset.String()),
		zap.Any("event", event))
	return nil
}

// Multi publishes to every sink and joins their errors
type Multi []Sink

func (m Multi) Publish(ctx context.Context, record models.EventRecord) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Publish(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps published events in memory
type Recorder struct {
	mu      sync.Mutex
	records []models.EventRecord
}

func (r *Recorder) Publish(_ context.Context, record models.EventRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return nil
}

func (r *Recorder) Records() []models.EventRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.EventRecord(nil), r.records...)
}

// Events decodes every recorded payload, optionally filtered by kind
func (r *Recorder) Events(kind models.EventKind) []models.Event {
	var out []models.Event
	for _, record := range r.Records() {
		if kind != "" && record.Kind != kind {
			continue
		}
		event, err := Decode(record.Kind, record.Payload)
		if err != nil {
			continue
		}
		out = append(out, event)
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = nil
}

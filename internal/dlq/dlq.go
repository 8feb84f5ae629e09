// Package dlq persists events that exhausted their delivery budget so
// operators can inspect and replay them.
package dlq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/workmait/digestd/internal/logging"
	"github.com/workmait/digestd/internal/metrics"
)

const (
	streamName    = "DIGEST_DLQ"
	subjectPrefix = "digest.dlq."
)

// Entry is one dead-lettered event, stored as JSON.
type Entry struct {
	EventType  string            `json:"event_type"`
	EntryID    string            `json:"entry_id"`
	Fields     map[string]string `json:"fields"`
	Error      string            `json:"error"`
	Deliveries int64             `json:"deliveries"`
	FailedAt   time.Time         `json:"failed_at"`
}

// Queue is a JetStream-backed dead-letter queue. Entries are published
// under digest.dlq.<event_type> into a file-backed stream.
type Queue struct {
	js     jetstream.JetStream
	logger *slog.Logger
}

// New creates the queue, ensuring the backing stream exists.
func New(ctx context.Context, nc *nats.Conn, logger *slog.Logger) (*Queue, error) {
	if logger == nil {
		logger = slog.Default()
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      streamName,
		Subjects:  []string{subjectPrefix + ">"},
		MaxAge:    7 * 24 * time.Hour,
		Retention: jetstream.LimitsPolicy,
		Storage:   jetstream.FileStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("create stream %s: %w", streamName, err)
	}

	return &Queue{js: js, logger: logger}, nil
}

// Write stores the entry below its event type's subject.
func (q *Queue) Write(ctx context.Context, entry Entry) error {
	if entry.FailedAt.IsZero() {
		entry.FailedAt = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal dead-letter entry: %w", err)
	}

	if _, err := q.js.Publish(ctx, subjectPrefix+entry.EventType, data); err != nil {
		return fmt.Errorf("publish dead-letter entry: %w", err)
	}

	metrics.EventsDeadLettered.WithLabelValues(entry.EventType).Inc()
	q.logger.Warn("event dead-lettered",
		logging.EventType(entry.EventType),
		logging.EntryID(entry.EntryID),
		slog.Int64("deliveries", entry.Deliveries),
		slog.String(logging.FieldError, entry.Error))
	return nil
}

// List returns up to limit entries from the head of the queue without
// consuming them.
func (q *Queue) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}

	stream, err := q.js.Stream(ctx, streamName)
	if err != nil {
		return nil, fmt.Errorf("open stream %s: %w", streamName, err)
	}

	cons, err := stream.OrderedConsumer(ctx, jetstream.OrderedConsumerConfig{})
	if err != nil {
		return nil, fmt.Errorf("create inspection consumer: %w", err)
	}

	batch, err := cons.FetchNoWait(limit)
	if err != nil {
		return nil, fmt.Errorf("fetch dead-letter entries: %w", err)
	}

	var entries []Entry
	for msg := range batch.Messages() {
		var e Entry
		if err := json.Unmarshal(msg.Data(), &e); err != nil {
			q.logger.Warn("skipping undecodable dead-letter entry", logging.Error(err))
			continue
		}
		entries = append(entries, e)
	}
	if err := batch.Error(); err != nil {
		return entries, fmt.Errorf("fetch dead-letter entries: %w", err)
	}
	return entries, nil
}

// Purge removes every entry from the queue.
func (q *Queue) Purge(ctx context.Context) error {
	stream, err := q.js.Stream(ctx, streamName)
	if err != nil {
		return fmt.Errorf("open stream %s: %w", streamName, err)
	}
	if err := stream.Purge(ctx); err != nil {
		return fmt.Errorf("purge stream %s: %w", streamName, err)
	}
	return nil
}

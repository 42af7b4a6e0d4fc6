// Package kafka publishes committed ledger events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	logAdapter "github.com/bft-labs/ledgerworker/internal/adapters/log"
	"github.com/bft-labs/ledgerworker/internal/domain"
	"github.com/bft-labs/ledgerworker/internal/ports"
)

// DefaultTopic receives the ledger events of every worker.
const DefaultTopic = "ledger.events"

// messageWriter is the part of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher implements ports.EventPublisher.
type Publisher struct {
	writer messageWriter
	logger ports.Logger
}

// NewPublisher creates a publisher writing to topic on the given brokers.
// Writes are asynchronous so a slow broker never stalls the ledger; failed
// deliveries are logged when the writer completes the batch.
func NewPublisher(brokers []string, topic string, logger ports.Logger) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	if logger == nil {
		logger = logAdapter.NewNoopLogger()
	}
	p := &Publisher{logger: logger}
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
		Completion:   p.completed,
	}
	return p
}

// completed runs on the writer's goroutine after each asynchronous batch.
func (p *Publisher) completed(msgs []kafka.Message, err error) {
	if err == nil {
		return
	}
	p.logger.Warn("deliver ledger events failed",
		ports.Int("events", len(msgs)),
		ports.Err(err),
	)
}

// Publish encodes each event as JSON keyed by account id, so the events of
// one account stay ordered within a partition.
func (p *Publisher) Publish(ctx context.Context, events ...domain.Event) error {
	if len(events) == 0 {
		return nil
	}
	msgs, err := encode(events)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

// Close flushes pending messages and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func encode(events []domain.Event) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			return nil, fmt.Errorf("encode event %s: %w", ev.ID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(strconv.FormatUint(ev.AccountID, 10)),
			Value: data,
			Time:  ev.At,
			Headers: []kafka.Header{
				{Key: "event-type", Value: []byte(ev.Type)},
				{Key: "worker-id", Value: []byte(ev.WorkerID)},
			},
		})
	}
	return msgs, nil
}

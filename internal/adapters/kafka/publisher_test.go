package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/ledgerworker/internal/domain"
	"github.com/bft-labs/ledgerworker/internal/ports"
)

type recordingWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublisher_Publish(t *testing.T) {
	w := &recordingWriter{}
	p := &Publisher{writer: w}
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	err := p.Publish(context.Background(),
		domain.Event{ID: "e1", WorkerID: "w1", Type: domain.EventDebited, AccountID: 42, Amount: decimal.NewFromInt(3), At: at},
		domain.Event{ID: "e2", WorkerID: "w1", Type: domain.EventCredited, AccountID: 7, Amount: decimal.NewFromInt(3), At: at},
	)
	require.NoError(t, err)
	require.Len(t, w.msgs, 2)

	assert.Equal(t, "42", string(w.msgs[0].Key))
	assert.Equal(t, at, w.msgs[0].Time)
	assert.Equal(t, "event-type", w.msgs[0].Headers[0].Key)
	assert.Equal(t, "debited", string(w.msgs[0].Headers[0].Value))

	var ev domain.Event
	require.NoError(t, json.Unmarshal(w.msgs[1].Value, &ev))
	assert.Equal(t, domain.EventCredited, ev.Type)
	assert.True(t, ev.Amount.Equal(decimal.NewFromInt(3)))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublisher_PublishNothing(t *testing.T) {
	w := &recordingWriter{}
	p := &Publisher{writer: w}
	require.NoError(t, p.Publish(context.Background()))
	assert.Empty(t, w.msgs)
}

// warnLogger records warning messages.
type warnLogger struct {
	mu       sync.Mutex
	warnings []string
}

func (l *warnLogger) Debug(string, ...ports.Field) {}
func (l *warnLogger) Info(string, ...ports.Field)  {}
func (l *warnLogger) Error(string, ...ports.Field) {}

func (l *warnLogger) Warn(msg string, _ ...ports.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warnings = append(l.warnings, msg)
}

func TestNewPublisher_LogsFailedDeliveries(t *testing.T) {
	logger := &warnLogger{}
	p := NewPublisher([]string{"localhost:9092"}, "events", logger)
	kw, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	require.NotNil(t, kw.Completion)

	msgs := []kafka.Message{{Value: []byte("a")}, {Value: []byte("b")}}
	kw.Completion(msgs, nil)
	assert.Empty(t, logger.warnings)

	kw.Completion(msgs, errors.New("leader not available"))
	assert.Equal(t, []string{"deliver ledger events failed"}, logger.warnings)
}

func TestNewPublisher_DefaultTopic(t *testing.T) {
	p := NewPublisher([]string{"localhost:9092"}, "", nil)
	kw, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, DefaultTopic, kw.Topic)
	assert.True(t, kw.Async)
}

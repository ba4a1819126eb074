package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInMemoryEventBusOrdering(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	var trades, all Recorder
	bus.Subscribe(TopicTrade, trades.Handle)
	bus.Subscribe(AllTopics, all.Handle)

	now := time.Unix(1000, 0)
	bus.Publish(context.Background(), New(TopicCommodity, TypeCommodityRegistered, now, CommodityRegistered{ID: 1}))
	for i := uint64(1); i <= 3; i++ {
		bus.Publish(context.Background(), New(TopicTrade, TypeTradeExecuted, now, TradeExecuted{TradeID: i, CommodityID: 1}))
	}

	got := trades.Events()
	require.Len(t, got, 3)
	for i, e := range got {
		assert.Equal(t, uint64(i+1), e.Payload.(TradeExecuted).TradeID)
	}
	assert.Len(t, all.Events(), 4)
	assert.Equal(t, TypeCommodityRegistered, all.Events()[0].Type)

	m := bus.Metrics()
	assert.Equal(t, int64(4), m.Published)
	assert.Equal(t, int64(7), m.Delivered)
}

func TestInMemoryEventBusRecoversPanics(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	var rec Recorder
	bus.Subscribe(TopicFees, func(context.Context, Event) { panic("boom") })
	bus.Subscribe(TopicFees, rec.Handle)

	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), New(TopicFees, TypeFeesWithdrawn, time.Now(), FeesWithdrawn{Account: "admin", Amount: 5}))
	})
	assert.Len(t, rec.Events(), 1)
	assert.Equal(t, int64(1), bus.Metrics().Failed)
}

type ctxKey struct{}

func TestInMemoryEventBusPassesPublisherContext(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	var seen any
	bus.Subscribe(TopicTrade, func(ctx context.Context, _ Event) { seen = ctx.Value(ctxKey{}) })

	ctx := context.WithValue(context.Background(), ctxKey{}, "op-1")
	bus.Publish(ctx, New(TopicTrade, TypeTradeExecuted, time.Now(), TradeExecuted{TradeID: 1}))
	assert.Equal(t, "op-1", seen)
}

func TestNewKafkaWriterDefaults(t *testing.T) {
	w := NewKafkaWriter(KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "commodex.events"})
	assert.Equal(t, "commodex.events", w.Topic)
	assert.Equal(t, 10*time.Millisecond, w.BatchTimeout)
	assert.Equal(t, 5*time.Second, w.WriteTimeout)
	assert.Equal(t, kafka.RequireOne, w.RequiredAcks)
	assert.IsType(t, &kafka.Hash{}, w.Balancer)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "7", Key(TradeExecuted{CommodityID: 7}))
	assert.Equal(t, "3", Key(PriceSet{ID: 3}))
	assert.Equal(t, "", Key(FeesWithdrawn{}))
}

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	return nil
}

func (w *fakeWriter) messages() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.msgs...)
}

func TestKafkaPublisherWritesQueuedEvents(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisher(zap.NewNop(), w, 16)
	p.Handle(context.Background(), New(TopicTrade, TypeTradeExecuted, time.Unix(10, 0), TradeExecuted{TradeID: 1, CommodityID: 4, Amount: 2}))
	p.Handle(context.Background(), New(TopicTrade, TypeTradeExecuted, time.Unix(11, 0), TradeExecuted{TradeID: 2, CommodityID: 4, Amount: 3}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	require.Eventually(t, func() bool { return len(w.messages()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	msgs := w.messages()
	assert.Equal(t, "4", string(msgs[0].Key))
	var decoded struct {
		Type    string        `json:"type"`
		Payload TradeExecuted `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(msgs[1].Value, &decoded))
	assert.Equal(t, TypeTradeExecuted, decoded.Type)
	assert.Equal(t, uint64(2), decoded.Payload.TradeID)
	assert.True(t, w.closed)

	written, dropped := p.Stats()
	assert.Equal(t, int64(2), written)
	assert.Zero(t, dropped)
}

func TestKafkaPublisherDropsWhenFull(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisher(zap.NewNop(), w, 1)
	e := New(TopicFees, TypeFeesWithdrawn, time.Now(), FeesWithdrawn{Amount: 1})
	p.Handle(context.Background(), e)
	p.Handle(context.Background(), e)

	_, dropped := p.Stats()
	assert.Equal(t, int64(1), dropped)
}

func TestKafkaPublisherCountsWriteFailures(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := NewKafkaPublisher(zap.NewNop(), w, 4)
	p.Handle(context.Background(), New(TopicFees, TypeFeesWithdrawn, time.Now(), FeesWithdrawn{Amount: 1}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, p.Run(ctx))

	written, dropped := p.Stats()
	assert.Zero(t, written)
	assert.Equal(t, int64(1), dropped)
}

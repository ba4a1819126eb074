package events

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Aidin1998/commodex/pkg/metrics"
)

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig contains configuration for the broker publisher
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	BufferSize   int
	BatchTimeout time.Duration
	WriteTimeout time.Duration
}

// NewKafkaWriter returns a writer for cfg. Messages with the same key land on
// the same partition, so per-commodity order is kept by the broker. The topic
// must already exist.
func NewKafkaWriter(cfg KafkaConfig) *kafka.Writer {
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 10 * time.Millisecond
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: batchTimeout,
		WriteTimeout: writeTimeout,
		RequiredAcks: kafka.RequireOne,
	}
}

// KafkaPublisher forwards bus events to a broker. Handle never blocks the
// engine: events are queued on a bounded channel and written by Run. When
// the queue is full the event is dropped and counted.
type KafkaPublisher struct {
	logger *zap.Logger
	writer MessageWriter
	queue  chan kafka.Message

	dropped atomic.Int64
	written atomic.Int64
}

func NewKafkaPublisher(logger *zap.Logger, writer MessageWriter, bufferSize int) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	return &KafkaPublisher{
		logger: logger,
		writer: writer,
		queue:  make(chan kafka.Message, bufferSize),
	}
}

// Handle is an EventHandler; subscribe it with AllTopics.
func (p *KafkaPublisher) Handle(_ context.Context, e Event) {
	value, err := json.Marshal(e)
	if err != nil {
		p.fail("Failed to encode event", e, err)
		return
	}
	msg := kafka.Message{
		Key:   []byte(Key(e.Payload)),
		Value: value,
		Time:  e.Timestamp,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(e.Type)},
			{Key: "topic", Value: []byte(e.Topic)},
		},
	}
	select {
	case p.queue <- msg:
	default:
		p.fail("Event queue full, dropping event", e, nil)
	}
}

func (p *KafkaPublisher) fail(msg string, e Event, err error) {
	p.dropped.Add(1)
	metrics.EventPublishFailures.Inc()
	fields := []zap.Field{zap.String("topic", e.Topic), zap.String("type", e.Type)}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	p.logger.Warn(msg, fields...)
}

// Run writes queued messages until ctx is cancelled, then drains what is
// left with a bounded grace period and closes the writer.
func (p *KafkaPublisher) Run(ctx context.Context) error {
	for {
		select {
		case msg := <-p.queue:
			p.write(ctx, msg)
		case <-ctx.Done():
			p.drain()
			return p.writer.Close()
		}
	}
}

func (p *KafkaPublisher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case msg := <-p.queue:
			p.write(ctx, msg)
		default:
			return
		}
	}
}

func (p *KafkaPublisher) write(ctx context.Context, msg kafka.Message) {
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.dropped.Add(1)
		metrics.EventPublishFailures.Inc()
		p.logger.Error("Failed to publish event", zap.ByteString("key", msg.Key), zap.Error(err))
		return
	}
	p.written.Add(1)
}

// Stats returns how many events were written and how many were lost.
func (p *KafkaPublisher) Stats() (written, dropped int64) {
	return p.written.Load(), p.dropped.Load()
}

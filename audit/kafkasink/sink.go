// Package kafkasink publishes goToken audit events to a Kafka topic.
package kafkasink

import (
	"context"
	"encoding/json"
	"time"

	goToken "github.com/MrEthical07/goToken"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// messageWriter is the part of *kafka.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config configures a [Sink].
type Config struct {
	Brokers []string
	Topic   string
	// WriteTimeout bounds each publish. Defaults to 5s.
	WriteTimeout time.Duration
}

// Sink is a goToken.AuditSink writing one JSON message per event, keyed by
// user id so a user's events stay ordered within a partition.
type Sink struct {
	w       messageWriter
	topic   string
	timeout time.Duration
	log     *zap.Logger
}

var _ goToken.AuditSink = (*Sink)(nil)

func New(cfg Config, logger *zap.Logger) *Sink {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
	}
	return newSink(w, cfg, logger)
}

func newSink(w messageWriter, cfg Config, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	return &Sink{
		w:       w,
		topic:   cfg.Topic,
		timeout: cfg.WriteTimeout,
		log:     logger.With(zap.String("component", "audit.kafka"), zap.String("topic", cfg.Topic)),
	}
}

// Emit publishes event. Failures are logged; the dispatcher never retries.
func (s *Sink) Emit(ctx context.Context, event goToken.AuditEvent) {
	value, err := json.Marshal(event)
	if err != nil {
		s.log.Error("audit marshal failed", zap.Error(err))
		return
	}

	headers := []kafka.Header{{Key: "event_type", Value: []byte(event.EventType)}}
	if event.RequestID != "" {
		headers = append(headers, kafka.Header{Key: "request_id", Value: []byte(event.RequestID)})
	}
	msg := kafka.Message{
		Key:     []byte(event.UserID),
		Value:   value,
		Headers: headers,
		Time:    event.Timestamp,
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.w.WriteMessages(ctx, msg); err != nil {
		s.log.Error("kafka write failed", zap.String("event", event.EventType), zap.Error(err))
		return
	}
	s.log.Debug("audit event published", zap.String("event", event.EventType), zap.Int("value_len", len(value)))
}

func (s *Sink) Close() error { return s.w.Close() }

package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"autotrader/src/model"

	"github.com/segmentio/kafka-go"
	logger "github.com/sirupsen/logrus"
)

var ErrNoBrokers = errors.New("events: kafka brokers are required")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher streams trade events to a topic, keyed by user and symbol
// so the events of one pair stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

func NewKafkaPublisher(cfg Config) (*KafkaPublisher, error) {
	if !cfg.Enabled() {
		return nil, ErrNoBrokers
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  cfg.KafkaMaxAttempts,
		WriteTimeout: cfg.KafkaWriteTimeout,
	}
	return newKafkaPublisher(w, cfg.KafkaTopic), nil
}

func newKafkaPublisher(w messageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: w, topic: topic}
}

// MessageKey is the partition key of an event.
func MessageKey(event model.TradeEvent) []byte {
	return []byte(event.UserID + ":" + strings.ToUpper(event.Symbol))
}

func (p *KafkaPublisher) Record(ctx context.Context, event model.TradeEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal trade event: %w", err)
	}
	at := event.Timestamp
	if at.IsZero() {
		at = time.Now().UTC()
	}
	msg := kafka.Message{
		Key:   MessageKey(event),
		Value: body,
		Time:  at,
		Headers: []kafka.Header{
			{Key: "status", Value: []byte(event.Status)},
			{Key: "order_dir", Value: []byte(event.OrderDir)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		logger.WithFields(logger.Fields{
			"topic":   p.topic,
			"user_id": event.UserID,
			"symbol":  event.Symbol,
		}).WithError(err).Error("failed to publish trade event")
		return fmt.Errorf("publish trade event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

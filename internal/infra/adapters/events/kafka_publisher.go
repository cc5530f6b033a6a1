package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"github.com/zeyera-studio/zeyera-studio-main/internal/config"
	"github.com/zeyera-studio/zeyera-studio-main/internal/domain/ports/adapter"
	"github.com/zeyera-studio/zeyera-studio-main/internal/infra/logging"
)

var _ adapter.EventPublisher = (*KafkaPublisher)(nil)

// KafkaPublisher writes purchase events to one topic, keyed by order id so all events of
// an order land on the same partition in transition order.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	log      *zerolog.Logger
}

func NewKafkaPublisher(cfg config.KafkaConfig, logger *zerolog.Logger) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	sc := sarama.NewConfig()
	if cfg.ClientID != "" {
		sc.ClientID = cfg.ClientID
	}
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 5
	sc.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}
	log := logging.OrNop(logger)
	log.Info().Strs("brokers", cfg.Brokers).Str("topic", cfg.Topic).Msg("kafka producer connected")
	return NewKafkaPublisherWithProducer(producer, cfg.Topic, logger), nil
}

// NewKafkaPublisherWithProducer wraps an existing producer; tests pass sarama/mocks here.
func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, topic string, logger *zerolog.Logger) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic, log: logging.OrNop(logger)}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev adapter.PurchaseEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(ev.OrderID),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(ev.Type)},
		},
	}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to send %s for %s: %w", ev.Type, ev.OrderID, err)
	}
	logging.With(ctx, p.log).Debug().
		Str("event", ev.Type).
		Str("order_id", ev.OrderID).
		Int32("partition", partition).
		Int64("offset", offset).
		Msg("purchase event published")
	return nil
}

func (p *KafkaPublisher) Close() error {
	if p.producer == nil {
		return nil
	}
	return p.producer.Close()
}

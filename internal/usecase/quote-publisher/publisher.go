package quotepublisher

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	quotev1 "github.com/rosssaunders/aggbook/internal/domain/quote/v1"
	"github.com/rosssaunders/aggbook/pkg/config"
	"github.com/rosssaunders/aggbook/pkg/errors"
	"github.com/rosssaunders/aggbook/pkg/logger"
)

// Publisher writes consolidated quotes to Kafka, keyed by symbol so one
// instrument's quotes stay ordered within a partition.
type Publisher struct {
	kafkaWriter *kafka.Writer
	logger      logger.Interface
}

// Ensure Publisher implements the domain interface
var _ quotev1.Publisher = (*Publisher)(nil)

// NewPublisher creates a Kafka publisher for the consolidated quote topic.
func NewPublisher(cfg config.QuoteKafkaConfig, log logger.Interface) *Publisher {
	kafkaWriter := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}

	return &Publisher{
		kafkaWriter: kafkaWriter,
		logger:      log,
	}
}

// Publish serializes and writes one consolidated quote.
func (p *Publisher) Publish(ctx context.Context, quote *quotev1.Quote) error {
	buf, err := json.Marshal(quote)
	if err != nil {
		return errors.NewCodeTracer(errors.QuotePublishError).Wrap(err)
	}

	err = p.kafkaWriter.WriteMessages(ctx, kafka.Message{
		Key:   []byte(quote.Symbol),
		Value: buf,
	})
	if err != nil {
		p.logger.Error(err,
			logger.Field{Key: "operation", Value: "PublishQuote"},
			logger.Field{Key: "symbol", Value: quote.Symbol},
			logger.Field{Key: "quoteId", Value: quote.ID},
		)
		return errors.NewCodeTracer(errors.QuotePublishError).Wrap(err)
	}

	return nil
}

// Close properly closes the Kafka writer.
func (p *Publisher) Close() error {
	return p.kafkaWriter.Close()
}

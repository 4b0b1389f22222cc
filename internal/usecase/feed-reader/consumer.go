package feedreader

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	feedv1 "github.com/rosssaunders/aggbook/internal/domain/feed/v1"
	orderbookv1 "github.com/rosssaunders/aggbook/internal/domain/orderbook/v1"
	"github.com/rosssaunders/aggbook/pkg/config"
	"github.com/rosssaunders/aggbook/pkg/errors"
	"github.com/rosssaunders/aggbook/pkg/logger"
)

// Reader consumes normalized depth events from Kafka and hands them to the
// engine parsed and boundary-validated. Venue adapters publish prices and
// sizes as decimal strings; this is the one place they are converted, so a
// price that cannot be represented at the book's precision is rejected here
// and never reaches the book (the book itself trusts its input).
type Reader struct {
	kafkaReader *kafka.Reader
	precision   uint32
	logger      logger.Interface
}

// NewReader creates a Kafka reader for the depth event topic.
func NewReader(cfg config.FeedKafkaConfig, pricePrecision uint32, log logger.Interface) *Reader {
	kafkaReader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.LastOffset,
	})

	return &Reader{
		kafkaReader: kafkaReader,
		precision:   pricePrecision,
		logger:      log,
	}
}

// ReadUpdate blocks for the next depth event and returns it parsed.
func (r *Reader) ReadUpdate(ctx context.Context) (*feedv1.BookUpdate, error) {
	msg, err := r.kafkaReader.ReadMessage(ctx)
	if err != nil {
		return nil, errors.NewCodeTracer(errors.FeedReadError).Wrap(err)
	}

	var event feedv1.DepthEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		r.logger.Error(err,
			logger.Field{Key: "operation", Value: "UnmarshalDepthEvent"},
			logger.Field{Key: "offset", Value: msg.Offset},
		)
		return nil, errors.NewCodeTracer(errors.FeedDecodeError).Wrap(err)
	}

	update, err := ParseEvent(&event, r.precision)
	if err != nil {
		r.logger.Error(err,
			logger.Field{Key: "operation", Value: "ParseDepthEvent"},
			logger.Field{Key: "venue", Value: event.Venue},
			logger.Field{Key: "symbol", Value: event.Symbol},
		)
		return nil, err
	}

	r.logger.Debug("ReadUpdate",
		logger.Field{Key: "venue", Value: update.Venue},
		logger.Field{Key: "symbol", Value: update.Symbol},
		logger.Field{Key: "type", Value: update.Type},
		logger.Field{Key: "bids", Value: len(update.Bids)},
		logger.Field{Key: "asks", Value: len(update.Asks)},
	)

	return update, nil
}

// Close properly closes the Kafka reader.
func (r *Reader) Close() error {
	return r.kafkaReader.Close()
}

// ParseEvent converts a wire depth event into a book update, validating
// every price against the fixed-point range at the given precision.
func ParseEvent(event *feedv1.DepthEvent, precision uint32) (*feedv1.BookUpdate, error) {
	bids, err := parseLevels(event.Bids, precision)
	if err != nil {
		return nil, err
	}
	asks, err := parseLevels(event.Asks, precision)
	if err != nil {
		return nil, err
	}

	return &feedv1.BookUpdate{
		Venue:         event.Venue,
		Symbol:        event.Symbol,
		Type:          event.Type,
		Bids:          bids,
		Asks:          asks,
		FirstUpdateID: event.FirstUpdateID,
		FinalUpdateID: event.FinalUpdateID,
		Timestamp:     event.Timestamp,
	}, nil
}

func parseLevels(raw []feedv1.RawLevel, precision uint32) ([]orderbookv1.PriceLevel, error) {
	levels := make([]orderbookv1.PriceLevel, 0, len(raw))
	for _, lvl := range raw {
		price, err := decimal.NewFromString(lvl.Price)
		if err != nil {
			return nil, errors.NewCodeTracer(errors.FeedDecodeError).Wrap(err)
		}
		size, err := decimal.NewFromString(lvl.Size)
		if err != nil {
			return nil, errors.NewCodeTracer(errors.FeedDecodeError).Wrap(err)
		}

		decoded := price.InexactFloat64()
		if err := orderbookv1.ValidatePrice(decoded, precision); err != nil {
			return nil, errors.NewCodeTracer(errors.FeedPriceRangeError).Wrap(err)
		}

		levels = append(levels, orderbookv1.PriceLevel{
			Price: decoded,
			Size:  size.InexactFloat64(),
		})
	}
	return levels, nil
}

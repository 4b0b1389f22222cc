package snapshot

import (
	"context"
	"encoding/json"
	"fmt"

	snapshotv1 "github.com/rosssaunders/aggbook/internal/domain/snapshot/v1"
	"github.com/rosssaunders/aggbook/pkg/errors"
	"github.com/rosssaunders/aggbook/pkg/logger"
	"github.com/rosssaunders/aggbook/pkg/redis"
)

// Store persists venue book snapshots in Redis so a restarted engine can
// rebuild its books without waiting for fresh venue snapshots.
type Store struct {
	symbol      string
	logger      *logger.Logger
	redisclient redis.Client
}

// Ensure Store implements the domain interface
var _ snapshotv1.Store = (*Store)(nil)

// NewStore creates a snapshot store for one instrument.
func NewStore(redisclient redis.Client, symbol string, log *logger.Logger) *Store {
	return &Store{
		symbol:      symbol,
		redisclient: redisclient,
		logger:      log,
	}
}

// Store serializes the snapshot and writes it under the venue's key.
func (s *Store) Store(ctx context.Context, snapshot *snapshotv1.BookSnapshot) error {
	buf, err := json.Marshal(snapshot)
	if err != nil {
		s.logger.ErrorContext(ctx, err,
			logger.Field{Key: "symbol", Value: s.symbol},
			logger.Field{Key: "venue", Value: snapshot.Venue},
		)
		return errors.NewCodeTracer(errors.SnapshotMarshalError).Wrap(err)
	}

	if err := s.redisclient.Set(ctx, s.key(snapshot.Venue), buf, 0); err != nil {
		s.logger.ErrorContext(ctx, err,
			logger.Field{Key: "symbol", Value: s.symbol},
			logger.Field{Key: "venue", Value: snapshot.Venue},
		)
		return errors.NewCodeTracer(errors.SnapshotStoreError).Wrap(err)
	}

	s.logger.DebugContext(ctx, "snapshot stored",
		logger.Field{Key: "symbol", Value: s.symbol},
		logger.Field{Key: "venue", Value: snapshot.Venue},
		logger.Field{Key: "bids", Value: len(snapshot.Bids)},
		logger.Field{Key: "asks", Value: len(snapshot.Asks)},
	)
	return nil
}

// Load returns the last stored snapshot for the venue, nil when none exists.
func (s *Store) Load(ctx context.Context, venue string) (*snapshotv1.BookSnapshot, error) {
	data, err := s.redisclient.Get(ctx, s.key(venue))
	if err != nil {
		s.logger.ErrorContext(ctx, err,
			logger.Field{Key: "symbol", Value: s.symbol},
			logger.Field{Key: "venue", Value: venue},
		)
		return nil, errors.NewCodeTracer(errors.SnapshotLoadError).Wrap(err)
	}

	if data == "" {
		s.logger.WarnContext(ctx, "no snapshot found",
			logger.Field{Key: "symbol", Value: s.symbol},
			logger.Field{Key: "venue", Value: venue},
		)
		return nil, nil
	}

	var snapshot snapshotv1.BookSnapshot
	if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
		s.logger.ErrorContext(ctx, err,
			logger.Field{Key: "symbol", Value: s.symbol},
			logger.Field{Key: "venue", Value: venue},
		)
		return nil, errors.NewCodeTracer(errors.SnapshotUnmarshalError).Wrap(err)
	}

	return &snapshot, nil
}

func (s *Store) key(venue string) string {
	return fmt.Sprintf("book:%s:%s", s.symbol, venue)
}

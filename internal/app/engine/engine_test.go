package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	aggregatev1 "github.com/rosssaunders/aggbook/internal/domain/aggregate/v1"
	feedv1 "github.com/rosssaunders/aggbook/internal/domain/feed/v1"
	feedmock "github.com/rosssaunders/aggbook/internal/domain/feed/v1/mock"
	orderbookv1 "github.com/rosssaunders/aggbook/internal/domain/orderbook/v1"
	quotev1 "github.com/rosssaunders/aggbook/internal/domain/quote/v1"
	quotemock "github.com/rosssaunders/aggbook/internal/domain/quote/v1/mock"
	snapshotv1 "github.com/rosssaunders/aggbook/internal/domain/snapshot/v1"
	snapshotmock "github.com/rosssaunders/aggbook/internal/domain/snapshot/v1/mock"
	repomock "github.com/rosssaunders/aggbook/internal/infrastructure/questdb/quote/mock"
	"github.com/rosssaunders/aggbook/pkg/config"
	"github.com/rosssaunders/aggbook/pkg/logger"
)

// Test fixtures and helpers
type testFixture struct {
	ctrl              *gomock.Controller
	mockFeed          *feedmock.MockReader
	mockSnapshotStore *snapshotmock.MockStore
	mockPublisher     *quotemock.MockPublisher
	mockQuoteRepo     *repomock.MockQuoteRepository
	logger            *logger.Logger
	config            *config.Config
}

func setupTestFixture(t *testing.T) *testFixture {
	ctrl := gomock.NewController(t)

	log, err := logger.NewLogger()
	require.NoError(t, err)

	return &testFixture{
		ctrl:              ctrl,
		mockFeed:          feedmock.NewMockReader(ctrl),
		mockSnapshotStore: snapshotmock.NewMockStore(ctrl),
		mockPublisher:     quotemock.NewMockPublisher(ctrl),
		mockQuoteRepo:     repomock.NewMockQuoteRepository(ctrl),
		logger:            log,
		config: &config.Config{
			Instrument: config.InstrumentConfig{
				Symbol:         "BTC-USDT",
				PricePrecision: 8,
				DepthLimit:     50,
			},
		},
	}
}

func (f *testFixture) teardown() {
	f.ctrl.Finish()
}

// createTestEngine builds an engine with an initialized context so direct
// calls into its internals do not dereference a nil context.
func createTestEngine(t *testing.T, fixture *testFixture) *Engine {
	engine, err := NewEngine(
		fixture.mockFeed,
		fixture.mockSnapshotStore,
		fixture.mockPublisher,
		fixture.mockQuoteRepo,
		fixture.logger,
		fixture.config,
	)
	require.NoError(t, err)

	engine.ctx = context.Background()
	return engine
}

// addVenueWithoutSnapshot registers a venue whose snapshot store is empty.
func addVenueWithoutSnapshot(t *testing.T, fixture *testFixture, engine *Engine, venue aggregatev1.Venue) {
	t.Helper()
	fixture.mockSnapshotStore.EXPECT().
		Load(gomock.Any(), venue.Name).
		Return(nil, nil).
		Times(1)
	require.NoError(t, engine.AddVenue(context.Background(), venue))
}

func snapshotUpdate(venue string, finalID int64) *feedv1.BookUpdate {
	return &feedv1.BookUpdate{
		Venue:         venue,
		Symbol:        "BTC-USDT",
		Type:          feedv1.EventSnapshot,
		Bids:          []orderbookv1.PriceLevel{{Price: 100.0, Size: 1.0}, {Price: 99.0, Size: 2.0}},
		Asks:          []orderbookv1.PriceLevel{{Price: 101.0, Size: 1.0}, {Price: 102.0, Size: 2.0}},
		FinalUpdateID: finalID,
		Timestamp:     time.Now().UTC(),
	}
}

func diffUpdate(venue string, firstID, finalID int64, bids, asks []orderbookv1.PriceLevel) *feedv1.BookUpdate {
	return &feedv1.BookUpdate{
		Venue:         venue,
		Symbol:        "BTC-USDT",
		Type:          feedv1.EventDiff,
		Bids:          bids,
		Asks:          asks,
		FirstUpdateID: firstID,
		FinalUpdateID: finalID,
		Timestamp:     time.Now().UTC(),
	}
}

func TestNewEngine(t *testing.T) {
	t.Run("successful engine creation", func(t *testing.T) {
		fixture := setupTestFixture(t)
		defer fixture.teardown()

		engine := createTestEngine(t, fixture)
		assert.NotNil(t, engine)
		assert.Equal(t, Stats{}, engine.GetStats())
	})

	t.Run("custom snapshot interval is honored", func(t *testing.T) {
		fixture := setupTestFixture(t)
		defer fixture.teardown()

		engine, err := NewEngineWithOptions(
			fixture.mockFeed,
			fixture.mockSnapshotStore,
			fixture.mockPublisher,
			fixture.mockQuoteRepo,
			fixture.logger,
			fixture.config,
			&Options{SnapshotInterval: 5 * time.Second},
		)
		require.NoError(t, err)
		assert.Equal(t, 5*time.Second, engine.snapshotInterval)
	})

	t.Run("invalid precision is rejected", func(t *testing.T) {
		fixture := setupTestFixture(t)
		defer fixture.teardown()

		fixture.config.Instrument.PricePrecision = orderbookv1.MaxPricePrecision + 1
		_, err := NewEngine(
			fixture.mockFeed,
			fixture.mockSnapshotStore,
			fixture.mockPublisher,
			fixture.mockQuoteRepo,
			fixture.logger,
			fixture.config,
		)
		assert.ErrorIs(t, err, orderbookv1.ErrPrecisionTooLarge)
	})
}

func TestEngine_AddVenue(t *testing.T) {
	t.Run("venue without a stored snapshot starts out of the consolidated book", func(t *testing.T) {
		fixture := setupTestFixture(t)
		defer fixture.teardown()
		engine := createTestEngine(t, fixture)

		addVenueWithoutSnapshot(t, fixture, engine, aggregatev1.Venue{Name: "binance"})

		stats := engine.GetStats()
		assert.Equal(t, 1, stats.Venues)
		_, _, ok := engine.BestBidAsk()
		assert.False(t, ok)
	})

	t.Run("venue with a stored snapshot contributes immediately", func(t *testing.T) {
		fixture := setupTestFixture(t)
		defer fixture.teardown()
		engine := createTestEngine(t, fixture)

		fixture.mockSnapshotStore.EXPECT().
			Load(gomock.Any(), "binance").
			Return(&snapshotv1.BookSnapshot{
				Venue:        "binance",
				Symbol:       "BTC-USDT",
				Bids:         []orderbookv1.PriceLevel{{Price: 100.0, Size: 1.0}},
				Asks:         []orderbookv1.PriceLevel{{Price: 101.0, Size: 2.0}},
				LastUpdateID: 42,
			}, nil).
			Times(1)

		require.NoError(t, engine.AddVenue(context.Background(), aggregatev1.Venue{Name: "binance"}))

		bid, ask, ok := engine.BestBidAsk()
		require.True(t, ok)
		assert.Equal(t, 1.0, bid.Size)
		assert.Equal(t, 2.0, ask.Size)
		assert.Equal(t, []string{"binance"}, bid.Venues())
	})

	t.Run("re-registering a venue clears its previous consolidated contribution", func(t *testing.T) {
		fixture := setupTestFixture(t)
		defer fixture.teardown()
		engine := createTestEngine(t, fixture)

		addVenueWithoutSnapshot(t, fixture, engine, aggregatev1.Venue{Name: "binance"})
		addVenueWithoutSnapshot(t, fixture, engine, aggregatev1.Venue{Name: "coinbase"})
		require.NoError(t, engine.ApplyUpdate(snapshotUpdate("binance", 10)))
		require.NoError(t, engine.ApplyUpdate(snapshotUpdate("coinbase", 20)))

		// The second registration discards binance's book, so its liquidity
		// must leave the consolidated view until the next snapshot event
		addVenueWithoutSnapshot(t, fixture, engine, aggregatev1.Venue{Name: "binance"})

		bid, _, ok := engine.BestBidAsk()
		require.True(t, ok)
		assert.Equal(t, 1.0, bid.Size)
		assert.Equal(t, []string{"coinbase"}, bid.Venues())
		assert.Equal(t, 2, engine.GetStats().Venues)
	})

	t.Run("re-registering the only venue empties the consolidated book", func(t *testing.T) {
		fixture := setupTestFixture(t)
		defer fixture.teardown()
		engine := createTestEngine(t, fixture)

		addVenueWithoutSnapshot(t, fixture, engine, aggregatev1.Venue{Name: "binance"})
		require.NoError(t, engine.ApplyUpdate(snapshotUpdate("binance", 10)))

		addVenueWithoutSnapshot(t, fixture, engine, aggregatev1.Venue{Name: "binance"})

		_, _, ok := engine.BestBidAsk()
		assert.False(t, ok)
	})

	t.Run("snapshot load failure still registers the venue", func(t *testing.T) {
		fixture := setupTestFixture(t)
		defer fixture.teardown()
		engine := createTestEngine(t, fixture)

		fixture.mockSnapshotStore.EXPECT().
			Load(gomock.Any(), "binance").
			Return(nil, assert.AnError).
			Times(1)

		require.NoError(t, engine.AddVenue(context.Background(), aggregatev1.Venue{Name: "binance"}))
		assert.Equal(t, 1, engine.GetStats().Venues)
	})
}

func TestEngine_ApplyUpdate(t *testing.T) {
	t.Run("unknown venue is rejected", func(t *testing.T) {
		fixture := setupTestFixture(t)
		defer fixture.teardown()
		engine := createTestEngine(t, fixture)

		err := engine.ApplyUpdate(snapshotUpdate("unknown", 1))
		assert.Error(t, err)
	})

	t.Run("snapshot syncs the venue into the consolidated book", func(t *testing.T) {
		fixture := setupTestFixture(t)
		defer fixture.teardown()
		engine := createTestEngine(t, fixture)
		addVenueWithoutSnapshot(t, fixture, engine, aggregatev1.Venue{Name: "binance"})

		require.NoError(t, engine.ApplyUpdate(snapshotUpdate("binance", 10)))

		bidPrice := func() float64 {
			bids, _ := engine.Depth(1)
			require.Len(t, bids, 1)
			return bids[0].Price
		}
		assert.Equal(t, 100.0, bidPrice())
		assert.Equal(t, int64(1), engine.GetStats().UpdatesApplied)
	})

	t.Run("diff before any snapshot is dropped", func(t *testing.T) {
		fixture := setupTestFixture(t)
		defer fixture.teardown()
		engine := createTestEngine(t, fixture)
		addVenueWithoutSnapshot(t, fixture, engine, aggregatev1.Venue{Name: "binance"})

		diff := diffUpdate("binance", 1, 2,
			[]orderbookv1.PriceLevel{{Price: 100.0, Size: 1.0}}, nil)
		require.NoError(t, engine.ApplyUpdate(diff))

		_, _, ok := engine.BestBidAsk()
		assert.False(t, ok)
		assert.Equal(t, int64(0), engine.GetStats().UpdatesApplied)
	})

	t.Run("contiguous diff mutates both the venue book and the consolidated view", func(t *testing.T) {
		fixture := setupTestFixture(t)
		defer fixture.teardown()
		engine := createTestEngine(t, fixture)
		addVenueWithoutSnapshot(t, fixture, engine, aggregatev1.Venue{Name: "binance"})

		require.NoError(t, engine.ApplyUpdate(snapshotUpdate("binance", 10)))

		// Remove the best bid, add a deeper ask
		diff := diffUpdate("binance", 11, 11,
			[]orderbookv1.PriceLevel{{Price: 100.0, Size: 0}},
			[]orderbookv1.PriceLevel{{Price: 103.0, Size: 5.0}},
		)
		require.NoError(t, engine.ApplyUpdate(diff))

		bids, asks := engine.Depth(0)
		require.Len(t, bids, 1)
		assert.Equal(t, 99.0, bids[0].Price)
		assert.Len(t, asks, 3)

		venueBids, _, ok := engine.VenueDepth("binance", 0)
		require.True(t, ok)
		assert.Len(t, venueBids, 1)
	})

	t.Run("replayed diff is ignored", func(t *testing.T) {
		fixture := setupTestFixture(t)
		defer fixture.teardown()
		engine := createTestEngine(t, fixture)
		addVenueWithoutSnapshot(t, fixture, engine, aggregatev1.Venue{Name: "binance"})

		require.NoError(t, engine.ApplyUpdate(snapshotUpdate("binance", 10)))

		stale := diffUpdate("binance", 5, 9,
			[]orderbookv1.PriceLevel{{Price: 100.0, Size: 0}}, nil)
		require.NoError(t, engine.ApplyUpdate(stale))

		bid, _, ok := engine.BestBidAsk()
		require.True(t, ok)
		assert.Equal(t, 1.0, bid.Size)
	})

	t.Run("sequence gap drops the venue from the consolidated book", func(t *testing.T) {
		fixture := setupTestFixture(t)
		defer fixture.teardown()
		engine := createTestEngine(t, fixture)
		addVenueWithoutSnapshot(t, fixture, engine, aggregatev1.Venue{Name: "binance"})
		addVenueWithoutSnapshot(t, fixture, engine, aggregatev1.Venue{Name: "coinbase"})

		require.NoError(t, engine.ApplyUpdate(snapshotUpdate("binance", 10)))
		require.NoError(t, engine.ApplyUpdate(snapshotUpdate("coinbase", 20)))

		// 1. Gap: firstUpdateId jumps past lastUpdateId+1
		gap := diffUpdate("binance", 15, 16,
			[]orderbookv1.PriceLevel{{Price: 98.0, Size: 1.0}}, nil)
		require.NoError(t, engine.ApplyUpdate(gap))

		stats := engine.GetStats()
		assert.Equal(t, int64(1), stats.GapsDetected)

		// 2. Only coinbase remains in the consolidated view
		bid, _, ok := engine.BestBidAsk()
		require.True(t, ok)
		assert.Equal(t, []string{"coinbase"}, bid.Venues())

		// 3. Further diffs for the stale venue are dropped
		late := diffUpdate("binance", 17, 17,
			[]orderbookv1.PriceLevel{{Price: 98.0, Size: 1.0}}, nil)
		require.NoError(t, engine.ApplyUpdate(late))
		bid, _, _ = engine.BestBidAsk()
		assert.Equal(t, []string{"coinbase"}, bid.Venues())

		// 4. The next snapshot recovers the venue
		require.NoError(t, engine.ApplyUpdate(snapshotUpdate("binance", 30)))
		bid, _, _ = engine.BestBidAsk()
		assert.Equal(t, 2.0, bid.Size)
	})
}

func TestEngine_RemoveVenue(t *testing.T) {
	fixture := setupTestFixture(t)
	defer fixture.teardown()
	engine := createTestEngine(t, fixture)
	addVenueWithoutSnapshot(t, fixture, engine, aggregatev1.Venue{Name: "binance"})

	require.NoError(t, engine.ApplyUpdate(snapshotUpdate("binance", 10)))

	engine.RemoveVenue("binance")

	assert.Equal(t, 0, engine.GetStats().Venues)
	_, _, ok := engine.BestBidAsk()
	assert.False(t, ok)

	// Removing again is a no-op
	engine.RemoveVenue("binance")
}

func TestEngine_PublishQuote(t *testing.T) {
	t.Run("publishes and persists the consolidated top of book", func(t *testing.T) {
		fixture := setupTestFixture(t)
		defer fixture.teardown()
		engine := createTestEngine(t, fixture)
		addVenueWithoutSnapshot(t, fixture, engine, aggregatev1.Venue{Name: "binance"})

		require.NoError(t, engine.ApplyUpdate(snapshotUpdate("binance", 10)))

		var published *quotev1.Quote
		fixture.mockPublisher.EXPECT().
			Publish(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, q *quotev1.Quote) error {
				published = q
				return nil
			}).
			Times(1)
		fixture.mockQuoteRepo.EXPECT().
			Store(gomock.Any(), gomock.Any()).
			Return(nil).
			Times(1)

		engine.publishQuote(context.Background())

		require.NotNil(t, published)
		assert.Equal(t, "BTC-USDT", published.Symbol)
		assert.Equal(t, 100.0, published.BidPrice)
		assert.Equal(t, 1.0, published.BidSize)
		assert.Equal(t, 101.0, published.AskPrice)
		assert.Equal(t, []string{"binance"}, published.BidVenues)
		assert.NotEmpty(t, published.ID)
		assert.Equal(t, int64(1), engine.GetStats().QuotesPublished)
		assert.Equal(t, published, engine.LastQuote())
	})

	t.Run("unchanged top of book is not republished", func(t *testing.T) {
		fixture := setupTestFixture(t)
		defer fixture.teardown()
		engine := createTestEngine(t, fixture)
		addVenueWithoutSnapshot(t, fixture, engine, aggregatev1.Venue{Name: "binance"})

		require.NoError(t, engine.ApplyUpdate(snapshotUpdate("binance", 10)))

		fixture.mockPublisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil).Times(1)
		fixture.mockQuoteRepo.EXPECT().Store(gomock.Any(), gomock.Any()).Return(nil).Times(1)

		engine.publishQuote(context.Background())
		engine.publishQuote(context.Background())

		assert.Equal(t, int64(1), engine.GetStats().QuotesPublished)
	})

	t.Run("empty consolidated book publishes nothing", func(t *testing.T) {
		fixture := setupTestFixture(t)
		defer fixture.teardown()
		engine := createTestEngine(t, fixture)

		engine.publishQuote(context.Background())
		assert.Equal(t, int64(0), engine.GetStats().QuotesPublished)
	})

	t.Run("persistence failure does not block publishing", func(t *testing.T) {
		fixture := setupTestFixture(t)
		defer fixture.teardown()
		engine := createTestEngine(t, fixture)
		addVenueWithoutSnapshot(t, fixture, engine, aggregatev1.Venue{Name: "binance"})

		require.NoError(t, engine.ApplyUpdate(snapshotUpdate("binance", 10)))

		fixture.mockPublisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil).Times(1)
		fixture.mockQuoteRepo.EXPECT().Store(gomock.Any(), gomock.Any()).Return(assert.AnError).Times(1)

		engine.publishQuote(context.Background())
		assert.Equal(t, int64(1), engine.GetStats().QuotesPublished)
	})
}

func TestEngine_SetConversionRate(t *testing.T) {
	fixture := setupTestFixture(t)
	defer fixture.teardown()
	engine := createTestEngine(t, fixture)

	addVenueWithoutSnapshot(t, fixture, engine, aggregatev1.Venue{Name: "binance"})
	addVenueWithoutSnapshot(t, fixture, engine, aggregatev1.Venue{Name: "kraken", QuoteUSD: true})

	engine.SetConversionRate(0.5)

	require.NoError(t, engine.ApplyUpdate(snapshotUpdate("binance", 10)))
	require.NoError(t, engine.ApplyUpdate(&feedv1.BookUpdate{
		Venue:         "kraken",
		Symbol:        "BTC-USDT",
		Type:          feedv1.EventSnapshot,
		Bids:          []orderbookv1.PriceLevel{{Price: 200.0, Size: 3.0}},
		Asks:          []orderbookv1.PriceLevel{{Price: 202.0, Size: 1.0}},
		FinalUpdateID: 5,
	}))

	// kraken's 200.0 converts onto binance's 100.0 level
	bid, _, ok := engine.BestBidAsk()
	require.True(t, ok)
	assert.Equal(t, 4.0, bid.Size)
	assert.ElementsMatch(t, []string{"binance", "kraken"}, bid.Venues())

	// A rate change rebuilds the consolidated book from the synced venue
	// books instead of leaving it empty
	engine.SetConversionRate(0.25)
	bid, _, ok = engine.BestBidAsk()
	require.True(t, ok)
	assert.Equal(t, 1.0, bid.SourceSize("binance"))
	assert.Equal(t, 3.0, engine.VolumeAtPrice(50.0, true)-engine.VolumeAtPrice(75.0, true))
}

func TestEngine_StartStop(t *testing.T) {
	fixture := setupTestFixture(t)
	defer fixture.teardown()
	engine := createTestEngine(t, fixture)

	// The feed blocks until the context is cancelled, then the reader is
	// closed on the way out
	fixture.mockFeed.EXPECT().
		ReadUpdate(gomock.Any()).
		DoAndReturn(func(ctx context.Context) (*feedv1.BookUpdate, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}).
		AnyTimes()
	fixture.mockFeed.EXPECT().Close().Return(nil).Times(1)

	require.NoError(t, engine.Start(context.Background()))

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, engine.Stop(stopCtx))
}

func TestEngine_DepthLimit(t *testing.T) {
	fixture := setupTestFixture(t)
	defer fixture.teardown()
	fixture.config.Instrument.DepthLimit = 1
	engine := createTestEngine(t, fixture)
	addVenueWithoutSnapshot(t, fixture, engine, aggregatev1.Venue{Name: "binance"})

	require.NoError(t, engine.ApplyUpdate(snapshotUpdate("binance", 10)))

	// Unbounded and oversized requests are both capped at the configured limit
	bids, asks := engine.Depth(0)
	assert.Len(t, bids, 1)
	assert.Len(t, asks, 1)
	bids, _ = engine.Depth(10)
	require.Len(t, bids, 1)
	assert.Equal(t, 100.0, bids[0].Price)

	venueBids, venueAsks, ok := engine.VenueDepth("binance", 0)
	require.True(t, ok)
	assert.Len(t, venueBids, 1)
	assert.Len(t, venueAsks, 1)

	// Persisted snapshots honor the same limit
	fixture.mockSnapshotStore.EXPECT().
		Store(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, s *snapshotv1.BookSnapshot) error {
			assert.Len(t, s.Bids, 1)
			assert.Len(t, s.Asks, 1)
			return nil
		}).
		Times(1)
	engine.storeSnapshots()
}

func TestEngine_StoreSnapshots(t *testing.T) {
	fixture := setupTestFixture(t)
	defer fixture.teardown()
	engine := createTestEngine(t, fixture)

	addVenueWithoutSnapshot(t, fixture, engine, aggregatev1.Venue{Name: "binance"})
	addVenueWithoutSnapshot(t, fixture, engine, aggregatev1.Venue{Name: "coinbase"})

	// Only binance is synced; coinbase must not be snapshotted
	require.NoError(t, engine.ApplyUpdate(snapshotUpdate("binance", 10)))

	fixture.mockSnapshotStore.EXPECT().
		Store(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, s *snapshotv1.BookSnapshot) error {
			assert.Equal(t, "binance", s.Venue)
			assert.Equal(t, "BTC-USDT", s.Symbol)
			assert.Equal(t, int64(10), s.LastUpdateID)
			assert.Len(t, s.Bids, 2)
			assert.Len(t, s.Asks, 2)
			return nil
		}).
		Times(1)

	engine.storeSnapshots()
}

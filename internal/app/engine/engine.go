package engine

import (
	"context"
	"sync"
	"time"

	aggregatev1 "github.com/rosssaunders/aggbook/internal/domain/aggregate/v1"
	feedv1 "github.com/rosssaunders/aggbook/internal/domain/feed/v1"
	orderbookv1 "github.com/rosssaunders/aggbook/internal/domain/orderbook/v1"
	quotev1 "github.com/rosssaunders/aggbook/internal/domain/quote/v1"
	snapshotv1 "github.com/rosssaunders/aggbook/internal/domain/snapshot/v1"
	quoterepo "github.com/rosssaunders/aggbook/internal/infrastructure/questdb/quote"
	"github.com/rosssaunders/aggbook/internal/usecase/aggregate"
	"github.com/rosssaunders/aggbook/internal/usecase/orderbook"
	"github.com/rosssaunders/aggbook/pkg/config"
	"github.com/rosssaunders/aggbook/pkg/errors"
	"github.com/rosssaunders/aggbook/pkg/logger"
)

// venueBook pairs one venue's limit book with its stream position. synced
// is false until a full snapshot arrives, and flips back to false when a
// sequence gap is detected.
type venueBook struct {
	book         *orderbook.Book
	venue        aggregatev1.Venue
	lastUpdateID int64
	synced       bool
}

// Stats carries engine counters for observability and tests.
type Stats struct {
	UpdatesApplied  int64
	GapsDetected    int64
	QuotesPublished int64
	Venues          int
}

// Engine consumes normalized depth events, maintains one book per venue
// plus the consolidated cross-venue book, and emits a quote whenever the
// consolidated top of book changes.
type Engine struct {
	// Core components
	books     map[string]*venueBook
	agg       *aggregate.Book
	feed      feedv1.Reader
	snapshots snapshotv1.Store
	quotes    quotev1.Publisher
	quoteRepo quoterepo.QuoteRepository
	logger    *logger.Logger
	config    *config.Config

	// All book state is funneled through mu: the feed processor writes,
	// the snapshot manager and query surface read.
	mu        sync.RWMutex
	lastQuote *quotev1.Quote
	stats     Stats

	// Shutdown coordination
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	snapshotInterval time.Duration
}

// NewEngine creates a new instance of Engine with the provided dependencies.
func NewEngine(
	feed feedv1.Reader,
	snapshots snapshotv1.Store,
	quotes quotev1.Publisher,
	quoteRepo quoterepo.QuoteRepository,
	logger *logger.Logger,
	config *config.Config,
) (*Engine, error) {
	return NewEngineWithOptions(feed, snapshots, quotes, quoteRepo, logger, config, DefaultEngineOptions())
}

// NewEngineWithOptions creates a new engine with custom options.
func NewEngineWithOptions(
	feed feedv1.Reader,
	snapshots snapshotv1.Store,
	quotes quotev1.Publisher,
	quoteRepo quoterepo.QuoteRepository,
	logger *logger.Logger,
	config *config.Config,
	options *Options,
) (*Engine, error) {
	agg, err := aggregate.New(config.Instrument.PricePrecision)
	if err != nil {
		return nil, err
	}

	return &Engine{
		books:     make(map[string]*venueBook),
		agg:       agg,
		feed:      feed,
		snapshots: snapshots,
		quotes:    quotes,
		quoteRepo: quoteRepo,
		logger:    logger,
		config:    config,

		snapshotInterval: options.SnapshotInterval,
	}, nil
}

// AddVenue registers a venue and restores its book from the snapshot store
// when one exists. A restored book contributes to the consolidated book
// immediately; otherwise the venue stays out until its first snapshot event.
func (e *Engine) AddVenue(ctx context.Context, venue aggregatev1.Venue) error {
	book, err := orderbook.NewBook(e.config.Instrument.PricePrecision)
	if err != nil {
		return err
	}

	vb := &venueBook{
		book:  book,
		venue: venue,
	}

	snapshot, err := e.snapshots.Load(ctx, venue.Name)
	if err != nil {
		e.logger.ErrorContext(ctx, err, logger.Field{
			Key:   "action",
			Value: "load_venue_snapshot",
		}, logger.Field{
			Key:   "venue",
			Value: venue.Name,
		})
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// A re-registered venue starts from scratch. Its previous book is being
	// discarded, so its contribution must leave the consolidated view too.
	if _, exists := e.books[venue.Name]; exists {
		e.agg.RemoveVenue(venue.Name)
	}

	if snapshot != nil {
		vb.book.ApplySnapshot(snapshot.Bids, snapshot.Asks)
		vb.lastUpdateID = snapshot.LastUpdateID
		vb.synced = true
		e.agg.ReplaceVenue(vb.book, venue)

		e.logger.Info("Venue book restored from snapshot",
			logger.Field{Key: "venue", Value: venue.Name},
			logger.Field{Key: "lastUpdateId", Value: snapshot.LastUpdateID},
			logger.Field{Key: "bidLevels", Value: vb.book.BidCount()},
			logger.Field{Key: "askLevels", Value: vb.book.AskCount()},
		)
	}

	e.books[venue.Name] = vb
	return nil
}

// RemoveVenue unregisters a venue and clears its contribution from the
// consolidated book. Removing an unknown venue is a no-op.
func (e *Engine) RemoveVenue(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.books[name]; !ok {
		return
	}
	delete(e.books, name)
	e.agg.RemoveVenue(name)
}

// SetConversionRate updates the quote-to-USD rate used for venues quoting
// in USD. Changing the rate clears the consolidated book, which is rebuilt
// by replaying every synced venue book.
func (e *Engine) SetConversionRate(rate float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.agg.SetConversionRate(rate)
	for _, vb := range e.books {
		if vb.synced {
			e.agg.ReplaceVenue(vb.book, vb.venue)
		}
	}
}

// Start initializes the engine and starts processing routines.
func (e *Engine) Start(ctx context.Context) error {
	e.ctx, e.cancel = context.WithCancel(ctx)

	e.wg.Add(2)
	go e.runFeedProcessor()
	go e.runSnapshotManager()

	e.logger.Info("Engine started", logger.Field{
		Key:   "symbol",
		Value: e.config.Instrument.Symbol,
	})

	return nil
}

// Stop gracefully shuts down the engine.
func (e *Engine) Stop(ctx context.Context) error {
	if e.cancel != nil {
		e.cancel()
	}

	// Wait for goroutines to finish with timeout
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.logger.Info("Engine stopped gracefully")
		return nil
	case <-ctx.Done():
		e.logger.Warn("Engine stop timeout exceeded")
		return ctx.Err()
	}
}

// runFeedProcessor reads depth events and applies them in a single
// goroutine so the books never see concurrent writers.
func (e *Engine) runFeedProcessor() {
	defer e.wg.Done()

	e.logger.Info("Starting feed processor", logger.Field{
		Key:   "symbol",
		Value: e.config.Instrument.Symbol,
	})

	for {
		select {
		case <-e.ctx.Done():
			e.logger.Info("Feed processor shutting down")
			e.feed.Close()
			return
		default:
			update, err := e.feed.ReadUpdate(e.ctx)
			if err != nil {
				e.logger.ErrorContext(e.ctx, err, logger.Field{
					Key:   "action",
					Value: "read_depth_event",
				})
				// Simple backoff
				time.Sleep(100 * time.Millisecond)
				continue
			}

			if err := e.ApplyUpdate(update); err != nil {
				e.logger.ErrorContext(e.ctx, err, logger.Field{
					Key:   "action",
					Value: "apply_depth_event",
				}, logger.Field{
					Key:   "venue",
					Value: update.Venue,
				})
				continue
			}

			e.publishQuote(e.ctx)
		}
	}
}

// runSnapshotManager persists every synced venue book on a fixed interval.
func (e *Engine) runSnapshotManager() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.snapshotInterval)
	defer ticker.Stop()

	e.logger.Info("Starting snapshot manager")

	for {
		select {
		case <-e.ctx.Done():
			e.logger.Info("Snapshot manager shutting down")
			return
		case <-ticker.C:
			e.storeSnapshots()
		}
	}
}

// ApplyUpdate applies one parsed depth event to the venue's book and the
// consolidated book. Snapshot events replace the venue's state; diff events
// apply only when contiguous with the last seen update id.
func (e *Engine) ApplyUpdate(update *feedv1.BookUpdate) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	vb, ok := e.books[update.Venue]
	if !ok {
		return errors.NewCodeTracer(errors.VenueUnknownError)
	}

	switch update.Type {
	case feedv1.EventSnapshot:
		vb.book.ApplySnapshot(update.Bids, update.Asks)
		vb.lastUpdateID = update.FinalUpdateID
		vb.synced = true
		e.agg.ReplaceVenue(vb.book, vb.venue)

	case feedv1.EventDiff:
		if !vb.synced {
			e.logger.Debug("Dropping diff for unsynced venue", logger.Field{
				Key:   "venue",
				Value: update.Venue,
			})
			return nil
		}

		// Replay of something already applied
		if update.FinalUpdateID <= vb.lastUpdateID {
			return nil
		}

		// Gap in the stream, the book can no longer be trusted. Drop it
		// from the consolidated view until the next snapshot.
		if update.FirstUpdateID > vb.lastUpdateID+1 {
			vb.synced = false
			e.agg.RemoveVenue(update.Venue)
			e.stats.GapsDetected++

			e.logger.Warn("Sequence gap detected, venue marked stale",
				logger.Field{Key: "venue", Value: update.Venue},
				logger.Field{Key: "lastUpdateId", Value: vb.lastUpdateID},
				logger.Field{Key: "firstUpdateId", Value: update.FirstUpdateID},
			)
			return nil
		}

		e.applyDiff(vb, update)
		vb.lastUpdateID = update.FinalUpdateID
	}

	e.stats.UpdatesApplied++
	return nil
}

func (e *Engine) applyDiff(vb *venueBook, update *feedv1.BookUpdate) {
	for _, lvl := range update.Bids {
		vb.book.Update(lvl.Price, lvl.Size, true)
		e.agg.Update(lvl.Price, lvl.Size, true, vb.venue)
	}
	for _, lvl := range update.Asks {
		vb.book.Update(lvl.Price, lvl.Size, false)
		e.agg.Update(lvl.Price, lvl.Size, false, vb.venue)
	}
}

// publishQuote emits the consolidated top of book when it changed since the
// last published quote. Persistence failures are logged, not fatal: the
// stream keeps flowing.
func (e *Engine) publishQuote(ctx context.Context) {
	e.mu.Lock()
	quote, changed := e.buildQuoteLocked()
	e.mu.Unlock()

	if !changed {
		return
	}

	if err := e.quotes.Publish(ctx, quote); err != nil {
		e.logger.ErrorContext(ctx, err, logger.Field{
			Key:   "action",
			Value: "publish_quote",
		})
		return
	}

	if err := e.quoteRepo.Store(ctx, quote); err != nil {
		e.logger.ErrorContext(ctx, err, logger.Field{
			Key:   "action",
			Value: "store_quote",
		})
	}

	e.mu.Lock()
	e.lastQuote = quote
	e.stats.QuotesPublished++
	e.mu.Unlock()
}

// buildQuoteLocked assembles the consolidated quote. changed is false when
// either side is empty or the top of book matches the last published quote.
func (e *Engine) buildQuoteLocked() (*quotev1.Quote, bool) {
	bid, ask, ok := e.agg.BestBidAsk()
	if !ok {
		return nil, false
	}
	bidPrice, askPrice, _ := e.agg.BestBidAskPrices()

	quote := &quotev1.Quote{
		ID:        quotev1.NewID(),
		Symbol:    e.config.Instrument.Symbol,
		BidPrice:  bidPrice,
		BidSize:   bid.Size,
		BidVenues: bid.Venues(),
		AskPrice:  askPrice,
		AskSize:   ask.Size,
		AskVenues: ask.Venues(),
		Timestamp: time.Now().UTC(),
	}

	if quote.TopEqual(e.lastQuote) {
		return nil, false
	}
	return quote, true
}

// storeSnapshots writes one snapshot per synced venue.
func (e *Engine) storeSnapshots() {
	e.mu.RLock()
	snapshots := make([]*snapshotv1.BookSnapshot, 0, len(e.books))
	for name, vb := range e.books {
		if !vb.synced {
			continue
		}
		bids, asks := vb.book.DepthWithPrices(e.config.Instrument.DepthLimit)
		snapshots = append(snapshots, &snapshotv1.BookSnapshot{
			Venue:        name,
			Symbol:       e.config.Instrument.Symbol,
			Bids:         bids,
			Asks:         asks,
			LastUpdateID: vb.lastUpdateID,
			TakenAt:      time.Now().UTC(),
		})
	}
	e.mu.RUnlock()

	for _, snapshot := range snapshots {
		if err := e.snapshots.Store(e.ctx, snapshot); err != nil {
			e.logger.ErrorContext(e.ctx, err, logger.Field{
				Key:   "action",
				Value: "store_snapshot",
			}, logger.Field{
				Key:   "venue",
				Value: snapshot.Venue,
			})
			continue
		}
		e.logger.Debug("Snapshot stored",
			logger.Field{Key: "venue", Value: snapshot.Venue},
			logger.Field{Key: "lastUpdateId", Value: snapshot.LastUpdateID},
		)
	}
}

// BestBidAsk returns the consolidated best bid and ask with venue
// attribution.
func (e *Engine) BestBidAsk() (bid, ask aggregatev1.Level, ok bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.agg.BestBidAsk()
}

// Depth returns up to depth consolidated levels per side, best first.
// Requests above the configured depth limit are clamped, and depth <= 0
// means the full limit.
func (e *Engine) Depth(depth int) (bids, asks []aggregatev1.PriceLevel) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.agg.Depth(e.clampDepth(depth))
}

// VenueDepth returns one venue's book, best first. ok is false for an
// unknown venue.
func (e *Engine) VenueDepth(venue string, depth int) (bids, asks []orderbookv1.PriceLevel, ok bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	vb, found := e.books[venue]
	if !found {
		return nil, nil, false
	}
	bids, asks = vb.book.DepthWithPrices(e.clampDepth(depth))
	return bids, asks, true
}

func (e *Engine) clampDepth(depth int) int {
	limit := e.config.Instrument.DepthLimit
	if limit > 0 && (depth <= 0 || depth > limit) {
		return limit
	}
	return depth
}

// VolumeAtPrice returns the consolidated liquidity at or better than price.
func (e *Engine) VolumeAtPrice(price float64, isBid bool) float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.agg.VolumeAtPrice(price, isBid)
}

// LastQuote returns the most recently published consolidated quote, or nil
// when nothing has been published yet.
func (e *Engine) LastQuote() *quotev1.Quote {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastQuote
}

// GetStats returns a copy of the engine counters.
func (e *Engine) GetStats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	stats := e.stats
	stats.Venues = len(e.books)
	return stats
}

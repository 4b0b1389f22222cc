package aggregate

import (
	"math"
	"sort"

	aggregatev1 "github.com/rosssaunders/aggbook/internal/domain/aggregate/v1"
	orderbookv1 "github.com/rosssaunders/aggbook/internal/domain/orderbook/v1"
)

// Book is the consolidated order book across venues. Levels at the same
// fixed-point price are summed into one aggregated level that keeps the
// per-venue contributions, so the merged view never silently drops a
// venue's liquidity.
//
// Like the single-venue book it carries no locking; the engine funnels all
// venue updates through one writer and guards reads with its own mutex.
type Book struct {
	bids      aggSide
	asks      aggSide
	precision uint32
	usdRate   float64 // conversion for USD-denominated venues into the common quote
}

type aggSide struct {
	levels map[int64]*aggregatev1.Level
	keys   []int64
}

func newAggSide() aggSide {
	return aggSide{levels: make(map[int64]*aggregatev1.Level)}
}

func (s *aggSide) get(key int64) *aggregatev1.Level {
	if lvl, exists := s.levels[key]; exists {
		return lvl
	}
	lvl := aggregatev1.NewLevel()
	s.levels[key] = lvl
	idx := sort.Search(len(s.keys), func(i int) bool { return s.keys[i] >= key })
	s.keys = append(s.keys, 0)
	copy(s.keys[idx+1:], s.keys[idx:])
	s.keys[idx] = key
	return lvl
}

func (s *aggSide) remove(key int64) {
	if _, exists := s.levels[key]; !exists {
		return
	}
	delete(s.levels, key)
	idx := sort.Search(len(s.keys), func(i int) bool { return s.keys[i] >= key })
	s.keys = append(s.keys[:idx], s.keys[idx+1:]...)
}

func (s *aggSide) len() int {
	return len(s.keys)
}

func (s *aggSide) reset() {
	s.levels = make(map[int64]*aggregatev1.Level)
	s.keys = s.keys[:0]
}

// clearVenue drops one venue's contribution from every level on this side,
// removing levels left with no liquidity.
func (s *aggSide) clearVenue(venue string) {
	var emptied []int64
	for key, lvl := range s.levels {
		lvl.SetSource(venue, 0)
		if lvl.Size <= 0 {
			emptied = append(emptied, key)
		}
	}
	for _, key := range emptied {
		s.remove(key)
	}
}

// New creates an empty aggregated book with the given price precision.
func New(pricePrecision uint32) (*Book, error) {
	if err := orderbookv1.ValidatePrecision(pricePrecision); err != nil {
		return nil, err
	}
	return &Book{
		bids:      newAggSide(),
		asks:      newAggSide(),
		precision: pricePrecision,
		usdRate:   1.0,
	}, nil
}

// Precision returns the book's decimal price precision.
func (b *Book) Precision() uint32 {
	return b.precision
}

// SetConversionRate updates the rate used to bring USD-denominated venue
// prices into the common quote currency. A rate change shifts every
// converted key, so both sides are cleared and rebuilt from the next venue
// replays.
func (b *Book) SetConversionRate(rate float64) {
	const eps = 2.220446049250313e-16
	if math.Abs(b.usdRate-rate) <= eps {
		return
	}
	b.usdRate = rate
	b.bids.reset()
	b.asks.reset()
}

// Update replaces one venue's absolute size at a price level. A size of
// zero or less removes the venue's contribution; a level with no remaining
// liquidity is removed entirely.
func (b *Book) Update(price, size float64, isBid bool, venue aggregatev1.Venue) {
	fixed := b.priceToFixed(price, venue)
	s := b.sideFor(isBid)

	lvl := s.get(fixed)
	lvl.SetSource(venue.Name, size)
	if lvl.Size <= 0 {
		s.remove(fixed)
	}
}

// ReplaceVenue discards everything previously attributed to the venue and
// replays the venue book's full depth.
func (b *Book) ReplaceVenue(src aggregatev1.DepthSource, venue aggregatev1.Venue) {
	b.RemoveVenue(venue.Name)

	bids, asks := src.DepthWithPrices(0)
	for _, lvl := range bids {
		b.Update(lvl.Price, lvl.Size, true, venue)
	}
	for _, lvl := range asks {
		b.Update(lvl.Price, lvl.Size, false, venue)
	}
}

// RemoveVenue clears all entries from a venue on both sides. Removing a
// venue that never contributed is a no-op.
func (b *Book) RemoveVenue(venue string) {
	b.bids.clearVenue(venue)
	b.asks.clearVenue(venue)
}

// BestBidAsk returns copies of the consolidated best bid and ask levels
// with their venue attributions. ok is false unless both sides are
// non-empty.
func (b *Book) BestBidAsk() (bid, ask aggregatev1.Level, ok bool) {
	if b.bids.len() == 0 || b.asks.len() == 0 {
		return aggregatev1.Level{}, aggregatev1.Level{}, false
	}
	bestBid := b.bids.levels[b.bids.keys[b.bids.len()-1]]
	bestAsk := b.asks.levels[b.asks.keys[0]]
	return bestBid.Clone(), bestAsk.Clone(), true
}

// BestBidAskPrices returns the decoded consolidated top-of-book prices in
// the common quote currency.
func (b *Book) BestBidAskPrices() (bid, ask float64, ok bool) {
	if b.bids.len() == 0 || b.asks.len() == 0 {
		return 0, 0, false
	}
	return orderbookv1.FixedToPrice(b.bids.keys[b.bids.len()-1], b.precision),
		orderbookv1.FixedToPrice(b.asks.keys[0], b.precision),
		true
}

// Depth returns up to depth venue-attributed levels per side, bids
// descending and asks ascending. depth <= 0 returns all available levels.
func (b *Book) Depth(depth int) (bids, asks []aggregatev1.PriceLevel) {
	nBids := b.bids.len()
	nAsks := b.asks.len()
	if depth <= 0 {
		depth = max(nBids, nAsks)
	}

	bids = make([]aggregatev1.PriceLevel, 0, min(depth, nBids))
	for i := nBids - 1; i >= 0 && len(bids) < depth; i-- {
		key := b.bids.keys[i]
		bids = append(bids, aggregatev1.PriceLevel{
			Price: orderbookv1.FixedToPrice(key, b.precision),
			Level: b.bids.levels[key].Clone(),
		})
	}

	asks = make([]aggregatev1.PriceLevel, 0, min(depth, nAsks))
	for i := 0; i < nAsks && len(asks) < depth; i++ {
		key := b.asks.keys[i]
		asks = append(asks, aggregatev1.PriceLevel{
			Price: orderbookv1.FixedToPrice(key, b.precision),
			Level: b.asks.levels[key].Clone(),
		})
	}

	return bids, asks
}

// VolumeAtPrice returns the cumulative merged size at least as good as
// price: for bids every level at or above it, for asks every level at or
// below it. The price is taken in the common quote currency.
func (b *Book) VolumeAtPrice(price float64, isBid bool) float64 {
	fixed := orderbookv1.PriceToFixed(price, b.precision)
	total := 0.0
	if isBid {
		for i := b.bids.len() - 1; i >= 0 && b.bids.keys[i] >= fixed; i-- {
			total += b.bids.levels[b.bids.keys[i]].Size
		}
		return total
	}
	for i := 0; i < b.asks.len() && b.asks.keys[i] <= fixed; i++ {
		total += b.asks.levels[b.asks.keys[i]].Size
	}
	return total
}

// VolumeFromVenue returns one venue's size at exactly the given price
// level, zero if the venue has no liquidity there.
func (b *Book) VolumeFromVenue(price float64, isBid bool, venue aggregatev1.Venue) float64 {
	fixed := b.priceToFixed(price, venue)
	s := b.sideFor(isBid)
	lvl, exists := s.levels[fixed]
	if !exists {
		return 0
	}
	return lvl.SourceSize(venue.Name)
}

// priceToFixed converts a venue price into the common-quote fixed-point
// key, applying the USD conversion for USD-denominated venues.
func (b *Book) priceToFixed(price float64, venue aggregatev1.Venue) int64 {
	if venue.QuoteUSD {
		price *= b.usdRate
	}
	return orderbookv1.PriceToFixed(price, b.precision)
}

func (b *Book) sideFor(isBid bool) *aggSide {
	if isBid {
		return &b.bids
	}
	return &b.asks
}

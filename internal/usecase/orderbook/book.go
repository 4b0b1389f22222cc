package orderbook

import (
	"sort"

	orderbookv1 "github.com/rosssaunders/aggbook/internal/domain/orderbook/v1"
)

// Book is one venue's view of a limit order book, keyed by fixed-point
// price. It carries no locking: each instance is owned by exactly one
// stream of updates, and the engine serializes access when a book is shared.
type Book struct {
	bids      side
	asks      side
	precision uint32
}

// side holds one half of the book: sizes keyed by fixed price, plus the
// keys in ascending order so endpoints and ranges come cheap.
type side struct {
	levels map[int64]float64
	keys   []int64
}

func newSide() side {
	return side{levels: make(map[int64]float64)}
}

func (s *side) set(key int64, size float64) {
	if _, exists := s.levels[key]; !exists {
		idx := sort.Search(len(s.keys), func(i int) bool { return s.keys[i] >= key })
		s.keys = append(s.keys, 0)
		copy(s.keys[idx+1:], s.keys[idx:])
		s.keys[idx] = key
	}
	s.levels[key] = size
}

func (s *side) remove(key int64) {
	if _, exists := s.levels[key]; !exists {
		return
	}
	delete(s.levels, key)
	idx := sort.Search(len(s.keys), func(i int) bool { return s.keys[i] >= key })
	s.keys = append(s.keys[:idx], s.keys[idx+1:]...)
}

func (s *side) len() int {
	return len(s.keys)
}

func (s *side) reset() {
	s.levels = make(map[int64]float64)
	s.keys = s.keys[:0]
}

// Ensure Book implements the domain query interface
var _ orderbookv1.Book = (*Book)(nil)

// NewBook creates an empty book with the given price precision. Precision is
// immutable after construction and validated here so fixed-point conversion
// cannot overflow later.
func NewBook(pricePrecision uint32) (*Book, error) {
	if err := orderbookv1.ValidatePrecision(pricePrecision); err != nil {
		return nil, err
	}
	return &Book{
		bids:      newSide(),
		asks:      newSide(),
		precision: pricePrecision,
	}, nil
}

// Precision returns the book's decimal price precision.
func (b *Book) Precision() uint32 {
	return b.precision
}

// Update applies a point change to one side. A size of zero or less removes
// the level at that price; removing an absent level is a no-op.
func (b *Book) Update(price, size float64, isBid bool) {
	fixed := orderbookv1.PriceToFixed(price, b.precision)
	s := b.sideFor(isBid)
	if size <= 0 {
		s.remove(fixed)
		return
	}
	s.set(fixed, size)
}

// BatchUpdate applies all bid updates first, then all ask updates. Keys are
// per-price and last write wins, so the grouping is for locality only; the
// final state is the same under any stable ordering of the batch.
func (b *Book) BatchUpdate(updates []orderbookv1.Update) {
	for _, u := range updates {
		if u.Bid {
			b.Update(u.Price, u.Size, true)
		}
	}
	for _, u := range updates {
		if !u.Bid {
			b.Update(u.Price, u.Size, false)
		}
	}
}

// ApplySnapshot discards all existing levels on both sides and rebuilds from
// the given decimal levels. Any level not present in the snapshot is gone.
func (b *Book) ApplySnapshot(bids, asks []orderbookv1.PriceLevel) {
	b.bids.reset()
	b.asks.reset()
	for _, lvl := range bids {
		b.Update(lvl.Price, lvl.Size, true)
	}
	for _, lvl := range asks {
		b.Update(lvl.Price, lvl.Size, false)
	}
}

// BestBidAsk returns the highest bid and lowest ask. ok is false unless both
// sides are non-empty.
func (b *Book) BestBidAsk() (bid, ask orderbookv1.Level, ok bool) {
	if b.bids.len() == 0 || b.asks.len() == 0 {
		return orderbookv1.Level{}, orderbookv1.Level{}, false
	}
	bestBid := b.bids.keys[b.bids.len()-1]
	bestAsk := b.asks.keys[0]
	return orderbookv1.Level{Size: b.bids.levels[bestBid]},
		orderbookv1.Level{Size: b.asks.levels[bestAsk]},
		true
}

// BestBidAskPrices returns the decoded decimal top-of-book prices. ok is
// false unless both sides are non-empty.
func (b *Book) BestBidAskPrices() (bid, ask float64, ok bool) {
	if b.bids.len() == 0 || b.asks.len() == 0 {
		return 0, 0, false
	}
	return orderbookv1.FixedToPrice(b.bids.keys[b.bids.len()-1], b.precision),
		orderbookv1.FixedToPrice(b.asks.keys[0], b.precision),
		true
}

// Depth returns up to depth levels per side, bids in descending price order
// and asks ascending. depth <= 0 returns all available levels.
func (b *Book) Depth(depth int) (bids, asks []orderbookv1.Level) {
	bidLevels, askLevels := b.DepthWithPrices(depth)
	bids = make([]orderbookv1.Level, len(bidLevels))
	for i, lvl := range bidLevels {
		bids[i] = orderbookv1.Level{Size: lvl.Size}
	}
	asks = make([]orderbookv1.Level, len(askLevels))
	for i, lvl := range askLevels {
		asks[i] = orderbookv1.Level{Size: lvl.Size}
	}
	return bids, asks
}

// DepthWithPrices is Depth with each level paired to its decoded decimal
// price.
func (b *Book) DepthWithPrices(depth int) (bids, asks []orderbookv1.PriceLevel) {
	nBids := b.bids.len()
	nAsks := b.asks.len()
	if depth <= 0 {
		depth = max(nBids, nAsks)
	}

	bids = make([]orderbookv1.PriceLevel, 0, min(depth, nBids))
	for i := nBids - 1; i >= 0 && len(bids) < depth; i-- {
		key := b.bids.keys[i]
		bids = append(bids, orderbookv1.PriceLevel{
			Price: orderbookv1.FixedToPrice(key, b.precision),
			Size:  b.bids.levels[key],
		})
	}

	asks = make([]orderbookv1.PriceLevel, 0, min(depth, nAsks))
	for i := 0; i < nAsks && len(asks) < depth; i++ {
		key := b.asks.keys[i]
		asks = append(asks, orderbookv1.PriceLevel{
			Price: orderbookv1.FixedToPrice(key, b.precision),
			Size:  b.asks.levels[key],
		})
	}

	return bids, asks
}

// VolumeAtPrice returns the cumulative size of all levels at least as good
// as price on the given side: for bids every level priced at or above it,
// for asks every level priced at or below it.
func (b *Book) VolumeAtPrice(price float64, isBid bool) float64 {
	fixed := orderbookv1.PriceToFixed(price, b.precision)
	total := 0.0
	if isBid {
		for i := b.bids.len() - 1; i >= 0 && b.bids.keys[i] >= fixed; i-- {
			total += b.bids.levels[b.bids.keys[i]]
		}
		return total
	}
	for i := 0; i < b.asks.len() && b.asks.keys[i] <= fixed; i++ {
		total += b.asks.levels[b.asks.keys[i]]
	}
	return total
}

// BidCount returns the number of resting bid levels.
func (b *Book) BidCount() int {
	return b.bids.len()
}

// AskCount returns the number of resting ask levels.
func (b *Book) AskCount() int {
	return b.asks.len()
}

func (b *Book) sideFor(isBid bool) *side {
	if isBid {
		return &b.bids
	}
	return &b.asks
}

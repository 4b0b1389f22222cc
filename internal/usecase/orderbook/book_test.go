package orderbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orderbookv1 "github.com/rosssaunders/aggbook/internal/domain/orderbook/v1"
)

func newTestBook(t *testing.T) *Book {
	t.Helper()
	book, err := NewBook(8)
	require.NoError(t, err)
	return book
}

func seedBook(t *testing.T, book *Book) {
	t.Helper()
	book.ApplySnapshot(
		[]orderbookv1.PriceLevel{{Price: 100.0, Size: 1.0}, {Price: 99.0, Size: 2.0}},
		[]orderbookv1.PriceLevel{{Price: 101.0, Size: 1.0}, {Price: 102.0, Size: 2.0}},
	)
}

func TestNewBook(t *testing.T) {
	t.Run("valid precision", func(t *testing.T) {
		book, err := NewBook(8)
		require.NoError(t, err)
		assert.Equal(t, uint32(8), book.Precision())
		assert.Equal(t, 0, book.BidCount())
		assert.Equal(t, 0, book.AskCount())
	})

	t.Run("precision above maximum is rejected", func(t *testing.T) {
		_, err := NewBook(orderbookv1.MaxPricePrecision + 1)
		assert.ErrorIs(t, err, orderbookv1.ErrPrecisionTooLarge)
	})
}

func TestBook_BestBidAsk(t *testing.T) {
	book := newTestBook(t)

	// 1. Empty book has no top
	_, _, ok := book.BestBidAsk()
	assert.False(t, ok)

	// 2. One-sided book still has no top
	book.Update(100.0, 1.0, true)
	_, _, ok = book.BestBidAsk()
	assert.False(t, ok)

	// 3. Both sides present
	book.Update(101.0, 3.0, false)
	bid, ask, ok := book.BestBidAsk()
	require.True(t, ok)
	assert.Equal(t, 1.0, bid.Size)
	assert.Equal(t, 3.0, ask.Size)

	bidPrice, askPrice, ok := book.BestBidAskPrices()
	require.True(t, ok)
	assert.Equal(t, 100.0, bidPrice)
	assert.Equal(t, 101.0, askPrice)
}

func TestBook_SnapshotThenRemoveBest(t *testing.T) {
	book := newTestBook(t)
	seedBook(t, book)

	// 1. Top of book after the snapshot
	bid, ask, ok := book.BestBidAsk()
	require.True(t, ok)
	assert.Equal(t, 1.0, bid.Size)
	assert.Equal(t, 1.0, ask.Size)

	bidPrice, askPrice, _ := book.BestBidAskPrices()
	assert.Equal(t, 100.0, bidPrice)
	assert.Equal(t, 101.0, askPrice)

	// 2. Removing the best bid promotes the next level
	book.Update(100.0, 0, true)
	bid, _, ok = book.BestBidAsk()
	require.True(t, ok)
	assert.Equal(t, 2.0, bid.Size)

	bidPrice, _, _ = book.BestBidAskPrices()
	assert.Equal(t, 99.0, bidPrice)
}

func TestBook_BatchUpdate(t *testing.T) {
	book := newTestBook(t)
	seedBook(t, book)
	book.Update(100.0, 0, true)

	// 1. Add three more levels in one batch
	book.BatchUpdate([]orderbookv1.Update{
		{Price: 98.0, Size: 1.0, Bid: true},
		{Price: 97.0, Size: 1.0, Bid: true},
		{Price: 103.0, Size: 1.0, Bid: false},
	})

	bids, asks := book.Depth(5)
	assert.Len(t, bids, 3)
	assert.Len(t, asks, 3)

	// 2. Final state is independent of update order within the batch
	other := newTestBook(t)
	seedBook(t, other)
	other.Update(100.0, 0, true)
	other.BatchUpdate([]orderbookv1.Update{
		{Price: 103.0, Size: 1.0, Bid: false},
		{Price: 97.0, Size: 1.0, Bid: true},
		{Price: 98.0, Size: 1.0, Bid: true},
	})

	wantBids, wantAsks := book.DepthWithPrices(0)
	gotBids, gotAsks := other.DepthWithPrices(0)
	assert.Equal(t, wantBids, gotBids)
	assert.Equal(t, wantAsks, gotAsks)

	// 3. Last write wins when a batch touches the same price twice
	book.BatchUpdate([]orderbookv1.Update{
		{Price: 98.0, Size: 4.0, Bid: true},
		{Price: 98.0, Size: 7.0, Bid: true},
	})
	assert.Equal(t, 7.0, book.VolumeAtPrice(98.0, true)-book.VolumeAtPrice(98.5, true))
}

func TestBook_ApplySnapshotReplacesState(t *testing.T) {
	book := newTestBook(t)
	seedBook(t, book)

	// A second snapshot leaves nothing of the first
	book.ApplySnapshot(
		[]orderbookv1.PriceLevel{{Price: 50.0, Size: 5.0}},
		[]orderbookv1.PriceLevel{{Price: 51.0, Size: 6.0}},
	)

	assert.Equal(t, 1, book.BidCount())
	assert.Equal(t, 1, book.AskCount())

	bidPrice, askPrice, ok := book.BestBidAskPrices()
	require.True(t, ok)
	assert.Equal(t, 50.0, bidPrice)
	assert.Equal(t, 51.0, askPrice)
	assert.Equal(t, 0.0, book.VolumeAtPrice(99.0, true))
}

func TestBook_Depth(t *testing.T) {
	book := newTestBook(t)
	book.ApplySnapshot(
		[]orderbookv1.PriceLevel{
			{Price: 100.0, Size: 1.0},
			{Price: 99.0, Size: 2.0},
			{Price: 98.0, Size: 3.0},
		},
		[]orderbookv1.PriceLevel{
			{Price: 101.0, Size: 1.0},
			{Price: 102.0, Size: 2.0},
			{Price: 103.0, Size: 3.0},
		},
	)

	t.Run("bids descend and asks ascend from the top", func(t *testing.T) {
		bids, asks := book.DepthWithPrices(2)
		require.Len(t, bids, 2)
		require.Len(t, asks, 2)
		assert.Equal(t, 100.0, bids[0].Price)
		assert.Equal(t, 99.0, bids[1].Price)
		assert.Equal(t, 101.0, asks[0].Price)
		assert.Equal(t, 102.0, asks[1].Price)
	})

	t.Run("depth beyond book size returns everything", func(t *testing.T) {
		bids, asks := book.DepthWithPrices(50)
		assert.Len(t, bids, 3)
		assert.Len(t, asks, 3)
	})

	t.Run("non-positive depth returns everything", func(t *testing.T) {
		bids, asks := book.DepthWithPrices(0)
		assert.Len(t, bids, 3)
		assert.Len(t, asks, 3)
	})
}

func TestBook_VolumeAtPrice(t *testing.T) {
	book := newTestBook(t)
	book.ApplySnapshot(
		[]orderbookv1.PriceLevel{
			{Price: 100.0, Size: 1.0},
			{Price: 99.0, Size: 2.0},
			{Price: 98.0, Size: 3.0},
		},
		[]orderbookv1.PriceLevel{
			{Price: 101.0, Size: 1.0},
			{Price: 102.0, Size: 2.0},
		},
	)

	// Bids at or above the given price
	assert.Equal(t, 1.0, book.VolumeAtPrice(100.0, true))
	assert.Equal(t, 3.0, book.VolumeAtPrice(99.0, true))
	assert.Equal(t, 6.0, book.VolumeAtPrice(98.0, true))
	assert.Equal(t, 0.0, book.VolumeAtPrice(100.5, true))

	// Asks at or below the given price
	assert.Equal(t, 1.0, book.VolumeAtPrice(101.0, false))
	assert.Equal(t, 3.0, book.VolumeAtPrice(102.0, false))
	assert.Equal(t, 0.0, book.VolumeAtPrice(100.5, false))
}

func TestBook_RemoveAbsentLevel(t *testing.T) {
	book := newTestBook(t)
	seedBook(t, book)

	// Removing twice, or removing what was never there, changes nothing
	book.Update(100.0, 0, true)
	book.Update(100.0, 0, true)
	book.Update(55.5, 0, true)

	assert.Equal(t, 1, book.BidCount())
	assert.Equal(t, 2, book.AskCount())
}

func TestBook_SidesAreIndependent(t *testing.T) {
	book := newTestBook(t)

	// The same price can rest on both sides without interference
	book.Update(100.0, 1.0, true)
	book.Update(100.0, 2.0, false)
	book.Update(100.0, 0, true)

	assert.Equal(t, 0, book.BidCount())
	assert.Equal(t, 1, book.AskCount())
	assert.Equal(t, 2.0, book.VolumeAtPrice(100.0, false))
}

func TestBook_NearbyPricesStayDistinct(t *testing.T) {
	book, err := NewBook(2)
	require.NoError(t, err)

	// One tick apart at precision 2
	book.Update(100.01, 1.0, true)
	book.Update(100.02, 2.0, true)

	assert.Equal(t, 2, book.BidCount())
	assert.Equal(t, 2.0, book.VolumeAtPrice(100.02, true))
	assert.Equal(t, 3.0, book.VolumeAtPrice(100.01, true))
}

package orderbookv1

// Book defines the query surface of a single-venue order book. Mutation
// methods are deliberately excluded: consumers that only read depth should
// not be handed the writer half.
type Book interface {
	BestBidAsk() (bid Level, ask Level, ok bool)
	BestBidAskPrices() (bid float64, ask float64, ok bool)
	Depth(depth int) (bids []Level, asks []Level)
	DepthWithPrices(depth int) (bids []PriceLevel, asks []PriceLevel)
	VolumeAtPrice(price float64, isBid bool) float64
	Precision() uint32
}

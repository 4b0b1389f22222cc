package aggregatev1

// Venue identifies a liquidity source contributing quotes to the
// consolidated book. QuoteUSD marks venues whose prices are denominated in
// USD rather than the common quote currency; the aggregator converts them
// with its current conversion rate before merging.
type Venue struct {
	Name     string
	QuoteUSD bool
}

// VenueSize is one venue's contribution to an aggregated level.
type VenueSize struct {
	Venue string  `json:"venue"`
	Size  float64 `json:"size"`
}

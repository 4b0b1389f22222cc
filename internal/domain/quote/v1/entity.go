package quotev1

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Quote is the consolidated top of book across all registered venues, with
// full venue attribution on both sides.
type Quote struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	BidPrice  float64   `json:"bidPrice"`
	BidSize   float64   `json:"bidSize"`
	BidVenues []string  `json:"bidVenues"`
	AskPrice  float64   `json:"askPrice"`
	AskSize   float64   `json:"askSize"`
	AskVenues []string  `json:"askVenues"`
	Timestamp time.Time `json:"timestamp"`
}

// NewID returns a lexicographically sortable quote id.
func NewID() string {
	return ulid.Make().String()
}

// TopEqual reports whether two quotes carry the same top-of-book prices and
// sizes. Used to suppress republishing an unchanged consolidated quote.
func (q *Quote) TopEqual(other *Quote) bool {
	if other == nil {
		return false
	}
	return q.BidPrice == other.BidPrice &&
		q.BidSize == other.BidSize &&
		q.AskPrice == other.AskPrice &&
		q.AskSize == other.AskSize
}

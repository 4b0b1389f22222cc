package feedv1

import (
	"time"

	orderbookv1 "github.com/rosssaunders/aggbook/internal/domain/orderbook/v1"
)

// EventType distinguishes a full-state replace from an incremental diff.
type EventType string

const (
	// EventSnapshot replaces the venue's entire book.
	EventSnapshot EventType = "snapshot"
	// EventDiff applies point changes; size "0" removes a level.
	EventDiff EventType = "diff"
)

// RawLevel is a price/size pair as the venue adapter published it. Prices
// and sizes stay decimal strings on the wire so no precision is lost before
// the boundary validation in the feed reader.
type RawLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// DepthEvent is the wire form of a normalized order book event produced by
// an out-of-process venue adapter.
type DepthEvent struct {
	Venue         string     `json:"venue"`
	Symbol        string     `json:"symbol"`
	Type          EventType  `json:"type"`
	Bids          []RawLevel `json:"bids"`
	Asks          []RawLevel `json:"asks"`
	FirstUpdateID int64      `json:"firstUpdateId"`
	FinalUpdateID int64      `json:"finalUpdateId"`
	Timestamp     time.Time  `json:"timestamp"`
}

// BookUpdate is a DepthEvent after decimal parsing and range validation,
// ready to be applied to a venue book.
type BookUpdate struct {
	Venue         string
	Symbol        string
	Type          EventType
	Bids          []orderbookv1.PriceLevel
	Asks          []orderbookv1.PriceLevel
	FirstUpdateID int64
	FinalUpdateID int64
	Timestamp     time.Time
}

package snapshotv1

import (
	"time"

	orderbookv1 "github.com/rosssaunders/aggbook/internal/domain/orderbook/v1"
)

// BookSnapshot is one venue book's full resting state at a point in time.
// Restoring it through ApplySnapshot reproduces the book exactly.
type BookSnapshot struct {
	Venue        string                   `json:"venue"`
	Symbol       string                   `json:"symbol"`
	Bids         []orderbookv1.PriceLevel `json:"bids"`
	Asks         []orderbookv1.PriceLevel `json:"asks"`
	LastUpdateID int64                    `json:"lastUpdateId"`
	TakenAt      time.Time                `json:"takenAt"`
}

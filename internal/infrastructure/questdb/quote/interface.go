package quote

import (
	"context"
	"time"

	quotev1 "github.com/rosssaunders/aggbook/internal/domain/quote/v1"
)

// Filter represents the filter criteria for stored quotes.
type Filter struct {
	Symbol string
	From   *time.Time
	To     *time.Time
	Limit  int
}

// QuoteRepository defines the interface for persisting consolidated quotes.
//
//go:generate mockgen -source interface.go -destination=mock/interface_mock.go -package=quote_mock
type QuoteRepository interface {
	Store(ctx context.Context, quote *quotev1.Quote) error
	StoreBatch(ctx context.Context, quotes []*quotev1.Quote) error
	GetByFilter(ctx context.Context, filter Filter) ([]*quotev1.Quote, error)
}

package quote

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	quotev1 "github.com/rosssaunders/aggbook/internal/domain/quote/v1"
	"github.com/rosssaunders/aggbook/pkg/questdb"
)

// Repository persists consolidated quotes to QuestDB.
type Repository struct {
	client questdb.QuestDBClient
}

// Ensure Repository implements QuoteRepository
var _ QuoteRepository = (*Repository)(nil)

// NewRepository creates a new quote repository.
func NewRepository(client questdb.QuestDBClient) *Repository {
	return &Repository{
		client: client,
	}
}

// Store stores a single consolidated quote.
func (r *Repository) Store(ctx context.Context, quote *quotev1.Quote) error {
	query := `INSERT INTO quotes (timestamp, quote_id, symbol, bid_price, bid_size, bid_venues, ask_price, ask_size, ask_venues)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	err := r.client.Exec(ctx, query,
		quote.Timestamp, quote.ID, quote.Symbol,
		quote.BidPrice, quote.BidSize, strings.Join(quote.BidVenues, ","),
		quote.AskPrice, quote.AskSize, strings.Join(quote.AskVenues, ","))

	if err != nil {
		return fmt.Errorf("failed to store quote: %w", err)
	}

	return nil
}

// StoreBatch stores a batch of consolidated quotes.
func (r *Repository) StoreBatch(ctx context.Context, quotes []*quotev1.Quote) error {
	if len(quotes) == 0 {
		return nil
	}

	// Use CopyFrom for better performance with large batches
	_, err := r.client.CopyFrom(
		ctx,
		pgx.Identifier{"quotes"},
		[]string{"timestamp", "quote_id", "symbol", "bid_price", "bid_size", "bid_venues", "ask_price", "ask_size", "ask_venues"},
		pgx.CopyFromSlice(len(quotes), func(i int) ([]any, error) {
			q := quotes[i]
			return []any{
				q.Timestamp, q.ID, q.Symbol,
				q.BidPrice, q.BidSize, strings.Join(q.BidVenues, ","),
				q.AskPrice, q.AskSize, strings.Join(q.AskVenues, ","),
			}, nil
		}),
	)

	if err != nil {
		return fmt.Errorf("failed to copy quotes: %w", err)
	}

	return nil
}

// GetByFilter retrieves stored quotes matching the filter.
func (r *Repository) GetByFilter(ctx context.Context, filter Filter) ([]*quotev1.Quote, error) {
	query := `SELECT timestamp, quote_id, symbol, bid_price, bid_size, bid_venues, ask_price, ask_size, ask_venues FROM quotes WHERE 1=1`
	args := []any{}
	argIndex := 1

	if filter.Symbol != "" {
		query += fmt.Sprintf(" AND symbol = $%d", argIndex)
		args = append(args, filter.Symbol)
		argIndex++
	}

	if filter.From != nil {
		query += fmt.Sprintf(" AND timestamp >= $%d", argIndex)
		args = append(args, *filter.From)
		argIndex++
	}

	if filter.To != nil {
		query += fmt.Sprintf(" AND timestamp <= $%d", argIndex)
		args = append(args, *filter.To)
		argIndex++
	}

	query += " ORDER BY timestamp DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, filter.Limit)
	}

	rows, err := r.client.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query quotes: %w", err)
	}
	defer rows.Close()

	var quotes []*quotev1.Quote
	for rows.Next() {
		q := &quotev1.Quote{}
		var bidVenues, askVenues string
		err := rows.Scan(&q.Timestamp, &q.ID, &q.Symbol,
			&q.BidPrice, &q.BidSize, &bidVenues,
			&q.AskPrice, &q.AskSize, &askVenues)
		if err != nil {
			return nil, fmt.Errorf("failed to scan quote: %w", err)
		}
		q.BidVenues = splitVenues(bidVenues)
		q.AskVenues = splitVenues(askVenues)
		quotes = append(quotes, q)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate quotes: %w", err)
	}

	return quotes, nil
}

func splitVenues(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, ",")
}

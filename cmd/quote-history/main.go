package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	quoterepo "github.com/rosssaunders/aggbook/internal/infrastructure/questdb/quote"
	"github.com/rosssaunders/aggbook/pkg/config"
	"github.com/rosssaunders/aggbook/pkg/questdb"
)

func main() {
	var (
		symbol = flag.String("symbol", "", "instrument symbol, defaults to the configured one")
		since  = flag.Duration("since", time.Hour, "how far back to query")
		limit  = flag.Int("limit", 20, "maximum number of quotes to print")
	)
	flag.Parse()

	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize QuestDB client
	client, err := questdb.NewClient(ctx, cfg.QuestDB)
	if err != nil {
		log.Fatalf("Failed to initialize QuestDB client: %v", err)
	}
	defer client.Close()

	if *symbol == "" {
		*symbol = cfg.Instrument.Symbol
	}

	from := time.Now().UTC().Add(-*since)
	quotes, err := quoterepo.NewRepository(client).GetByFilter(ctx, quoterepo.Filter{
		Symbol: *symbol,
		From:   &from,
		Limit:  *limit,
	})
	if err != nil {
		log.Fatalf("Failed to query quotes: %v", err)
	}

	if len(quotes) == 0 {
		log.Printf("No quotes for %s in the last %s", *symbol, *since)
		return
	}

	for _, q := range quotes {
		fmt.Printf("%s  %s  bid %.8f x %.4f [%s]  ask %.8f x %.4f [%s]\n",
			q.Timestamp.Format(time.RFC3339Nano),
			q.Symbol,
			q.BidPrice, q.BidSize, strings.Join(q.BidVenues, ","),
			q.AskPrice, q.AskSize, strings.Join(q.AskVenues, ","),
		)
	}
}

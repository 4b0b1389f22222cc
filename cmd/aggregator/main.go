package main

import (
	"context"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	app "github.com/rosssaunders/aggbook/internal/app/engine"
	aggregatev1 "github.com/rosssaunders/aggbook/internal/domain/aggregate/v1"
	quoterepo "github.com/rosssaunders/aggbook/internal/infrastructure/questdb/quote"
	feedreader "github.com/rosssaunders/aggbook/internal/usecase/feed-reader"
	quotepublisher "github.com/rosssaunders/aggbook/internal/usecase/quote-publisher"
	snapshot "github.com/rosssaunders/aggbook/internal/usecase/snapshot"
	"github.com/rosssaunders/aggbook/pkg/config"
	"github.com/rosssaunders/aggbook/pkg/logger"
	"github.com/rosssaunders/aggbook/pkg/questdb"
	"github.com/rosssaunders/aggbook/pkg/redis"
)

var cfg *config.Config
var log *logger.Logger

func init() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logger.NewLogger(logger.WithLoggingLevel(logger.Level(cfg.App.LogLevel)))
	if err != nil {
		panic(err)
	}

	log = logger
}

func main() {
	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Initialize Redis client
	rclient := redis.NewClient(log, &cfg.Redis)
	if err := rclient.Connect(ctx); err != nil {
		log.Error(err, logger.Field{
			Key:   "action",
			Value: "connect_redis",
		})
		return
	}

	// Initialize QuestDB client
	qclient, err := questdb.NewClient(ctx, cfg.QuestDB)
	if err != nil {
		log.Error(err, logger.Field{
			Key:   "action",
			Value: "connect_questdb",
		})
		return
	}

	// Initialize components
	reader := feedreader.NewReader(cfg.FeedKafka, cfg.Instrument.PricePrecision, log)
	publisher := quotepublisher.NewPublisher(cfg.QuoteKafka, log)
	snapshotStore := snapshot.NewStore(rclient, cfg.Instrument.Symbol, log)
	repository := quoterepo.NewRepository(qclient)

	engine, err := app.NewEngineWithOptions(
		reader,
		snapshotStore,
		publisher,
		repository,
		log,
		cfg,
		&app.Options{
			SnapshotInterval: time.Duration(cfg.Engine.SnapshotIntervalSeconds) * time.Second,
		},
	)
	if err != nil {
		log.Error(err, logger.Field{
			Key:   "action",
			Value: "create_engine",
		})
		return
	}

	// Register configured venues
	engine.SetConversionRate(cfg.Venues.USDRate)
	for _, name := range cfg.Venues.Names {
		venue := aggregatev1.Venue{
			Name:     name,
			QuoteUSD: slices.Contains(cfg.Venues.USDQuoted, name),
		}
		if err := engine.AddVenue(ctx, venue); err != nil {
			log.Error(err, logger.Field{
				Key:   "action",
				Value: "add_venue",
			}, logger.Field{
				Key:   "venue",
				Value: name,
			})
			return
		}
	}

	// Start the engine
	if err := engine.Start(ctx); err != nil {
		log.Error(err, logger.Field{
			Key:   "action",
			Value: "start_engine",
		})
		return
	}

	log.Info("Aggregator started successfully", logger.Field{
		Key:   "symbol",
		Value: cfg.Instrument.Symbol,
	}, logger.Field{
		Key:   "venues",
		Value: cfg.Venues.Names,
	})

	// Wait for shutdown signal
	sig := <-sigChan
	log.Info("Received shutdown signal", logger.Field{
		Key:   "signal",
		Value: sig.String(),
	})

	// Cancel the main context to signal shutdown
	cancel()

	// Create a timeout context for graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop the engine gracefully
	if err := engine.Stop(shutdownCtx); err != nil {
		log.Error(err, logger.Field{
			Key:   "action",
			Value: "stop_engine",
		})
	}

	if err := publisher.Close(); err != nil {
		log.Error(err, logger.Field{
			Key:   "action",
			Value: "close_quote_publisher",
		})
	}

	qclient.Close()

	if err := rclient.Disconnect(ctx); err != nil {
		log.Error(err, logger.Field{
			Key:   "action",
			Value: "disconnect_redis",
		})
	}

	log.Info("Aggregator shutdown complete")
}

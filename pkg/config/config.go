package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rosssaunders/aggbook/pkg/questdb"
	"github.com/rosssaunders/aggbook/pkg/redis"
)

// Config represents the application configuration.
type Config struct {
	App        AppConfig        `envPrefix:"APP_"`
	Instrument InstrumentConfig `envPrefix:"INSTRUMENT_"`
	Venues     VenuesConfig     `envPrefix:"VENUES_"`
	Engine     EngineConfig     `envPrefix:"ENGINE_"`
	FeedKafka  FeedKafkaConfig  `envPrefix:"FEED_KAFKA_"`
	QuoteKafka QuoteKafkaConfig `envPrefix:"QUOTE_KAFKA_"`
	Redis      redis.Config     `envPrefix:"REDIS_"`
	QuestDB    questdb.Config   `envPrefix:"QUESTDB_"`
}

// AppConfig represents the application configuration.
type AppConfig struct {
	Name        string `env:"NAME" envDefault:"aggbook"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
}

// InstrumentConfig describes the instrument this engine consolidates.
type InstrumentConfig struct {
	Symbol         string `env:"SYMBOL" envDefault:"BTC-USDT"`
	PricePrecision uint32 `env:"PRICE_PRECISION" envDefault:"8"`
	DepthLimit     int    `env:"DEPTH_LIMIT" envDefault:"50"`
}

// VenuesConfig lists the venues whose books are consolidated. Venues in
// USDQuoted publish prices in USD and are converted to the instrument's
// quote currency at USDRate.
type VenuesConfig struct {
	Names     []string `env:"NAMES" envSeparator:"," envDefault:"binance,coinbase"`
	USDQuoted []string `env:"USD_QUOTED" envSeparator:","`
	USDRate   float64  `env:"USD_RATE" envDefault:"1"`
}

// EngineConfig holds engine timing knobs.
type EngineConfig struct {
	SnapshotIntervalSeconds int `env:"SNAPSHOT_INTERVAL_SECONDS" envDefault:"30"`
}

// FeedKafkaConfig represents the inbound depth feed Kafka configuration.
type FeedKafkaConfig struct {
	Brokers       []string `env:"BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	Topic         string   `env:"TOPIC" envDefault:"depth-events"`
	ConsumerGroup string   `env:"CONSUMER_GROUP" envDefault:"aggbook"`
}

// QuoteKafkaConfig represents the outbound consolidated quote Kafka configuration.
type QuoteKafkaConfig struct {
	Brokers []string `env:"BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	Topic   string   `env:"TOPIC" envDefault:"consolidated-quotes"`
}

// Load loads the configuration from the environment.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

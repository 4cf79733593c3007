package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	orderbookv1 "github.com/muhammadchandra19/tickstore/internal/domain/orderbook/v1"
	"github.com/muhammadchandra19/tickstore/pkg/errors"
	"github.com/muhammadchandra19/tickstore/pkg/interval"
	"github.com/muhammadchandra19/tickstore/pkg/questdb"
	"github.com/muhammadchandra19/tickstore/pkg/redis"
)

// Config represents the application configuration.
type Config struct {
	App     AppConfig      `envPrefix:"APP_"`
	Store   StoreConfig    `envPrefix:"STORE_"`
	Kafka   KafkaConfig    `envPrefix:"KAFKA_"`
	Redis   redis.Config   `envPrefix:"REDIS_"`
	QuestDB questdb.Config `envPrefix:"QUESTDB_"`
	Replay  ReplayConfig   `envPrefix:"REPLAY_"`
}

// AppConfig represents the process configuration.
type AppConfig struct {
	Name        string `env:"NAME" envDefault:"tickstore"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Port        int    `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
}

// StoreConfig represents where and how DTF files are written.
type StoreConfig struct {
	Root          string        `env:"ROOT" envDefault:"./data"`
	CatalogPath   string        `env:"CATALOG_PATH" envDefault:"./data/catalog.db"`
	SymbolsFile   string        `env:"SYMBOLS_FILE"`
	MaxRecords    int           `env:"MAX_RECORDS" envDefault:"100000"`
	BlockSize     int           `env:"BLOCK_SIZE" envDefault:"1024"`
	Compress      bool          `env:"COMPRESS" envDefault:"false"`
	FlushInterval time.Duration `env:"FLUSH_INTERVAL" envDefault:"1m"`
}

// KafkaConfig represents the ingest and finalized-file topics.
type KafkaConfig struct {
	Brokers        []string `env:"BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	RawTopic       string   `env:"RAW_TOPIC" envDefault:"raw-events"`
	ConsumerGroup  string   `env:"CONSUMER_GROUP" envDefault:"tickstore-ingest"`
	FinalizedTopic string   `env:"FINALIZED_TOPIC" envDefault:"dtf-finalized"`
}

// ReplayConfig represents the replay worker configuration.
type ReplayConfig struct {
	Intervals     interval.Config
	Workers       int           `env:"WORKERS" envDefault:"4"`
	TradePolicy   string        `env:"TRADE_POLICY" envDefault:"decoupled"`
	LeaseTTL      time.Duration `env:"LEASE_TTL" envDefault:"5m"`
	CheckpointTTL time.Duration `env:"CHECKPOINT_TTL" envDefault:"0s"`
	Owner         string        `env:"OWNER"`
}

// Policy returns the configured trade policy.
func (c ReplayConfig) Policy() (orderbookv1.TradePolicy, error) {
	switch strings.ToLower(c.TradePolicy) {
	case "", "decoupled":
		return orderbookv1.TradeDecoupled, nil
	case "deplete":
		return orderbookv1.TradeDeplete, nil
	}
	return 0, fmt.Errorf("unknown trade policy %q", c.TradePolicy)
}

// Load loads the configuration from the environment, reading a .env file
// first when one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values the services cannot start without.
func (c *Config) Validate() error {
	details := errors.NewBaseError()
	invalid := func(code errors.ErrorCode, field, format string, args ...any) {
		details.AddErrorDetails(errors.NewErrorDetails(fmt.Sprintf(format, args...), string(code), field))
	}

	if c.Store.Root == "" {
		invalid(errors.StoreConfigError, "STORE_ROOT", "store root is required")
	}
	if c.Store.CatalogPath == "" {
		invalid(errors.StoreConfigError, "STORE_CATALOG_PATH", "catalog path is required")
	}
	if c.Store.BlockSize < 1 {
		invalid(errors.StoreConfigError, "STORE_BLOCK_SIZE", "block size must be positive, got %d", c.Store.BlockSize)
	}
	if c.Store.MaxRecords < 1 {
		invalid(errors.StoreConfigError, "STORE_MAX_RECORDS", "max records must be positive, got %d", c.Store.MaxRecords)
	}
	if len(c.Kafka.Brokers) == 0 {
		invalid(errors.KafkaConfigError, "KAFKA_BROKERS", "at least one broker is required")
	}
	if c.Kafka.RawTopic == "" {
		invalid(errors.KafkaConfigError, "KAFKA_RAW_TOPIC", "raw topic is required")
	}
	if _, err := c.Replay.Intervals.GetEnabledIntervals(); err != nil {
		invalid(errors.ConfigValidationError, "REPLAY_ENABLED_INTERVALS", "%v", err)
	}
	if _, err := c.Replay.Policy(); err != nil {
		invalid(errors.ConfigValidationError, "REPLAY_TRADE_POLICY", "%v", err)
	}
	if c.Replay.Workers < 0 {
		invalid(errors.ConfigValidationError, "REPLAY_WORKERS", "workers must not be negative, got %d", c.Replay.Workers)
	}

	if details.HasDetails() {
		return details
	}
	return nil
}

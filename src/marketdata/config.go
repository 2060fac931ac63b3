package marketdata

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	SourceRandom  = "random"
	SourceReplay  = "replay"
	SourceBinance = "binance"
)

var ErrUnknownSource = errors.New("marketdata: unknown source")

type Config struct {
	Source   string `envconfig:"MARKET_DATA_SOURCE" default:"random"`
	Interval string `envconfig:"MARKET_DATA_INTERVAL" default:"1m"`

	RandomBasePrice  float64 `envconfig:"RANDOM_BASE_PRICE" default:"19500"`
	RandomVolatility float64 `envconfig:"RANDOM_VOLATILITY" default:"0.002"`
	RandomSeed       int64   `envconfig:"RANDOM_SEED" default:"0"`

	ReplayStart time.Time `envconfig:"REPLAY_START" default:"2025-01-01T00:00:00Z"`
	ReplayBatch int       `envconfig:"REPLAY_BATCH" default:"500"`

	BinanceEndpoint string        `envconfig:"BINANCE_ENDPOINT" default:"https://api.binance.com"`
	BinanceTimeout  time.Duration `envconfig:"BINANCE_TIMEOUT" default:"10s"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("process market data config: %w", err)
	}
	cfg.Source = strings.ToLower(strings.TrimSpace(cfg.Source))
	return cfg, nil
}

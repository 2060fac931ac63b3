package marketdata

import (
	"fmt"

	"autotrader/src/utils"
)

// New builds the feed selected by cfg.Source. store is only needed for
// replay.
func New(cfg Config, store CandleStore) (Port, error) {
	interval, err := utils.ParseInterval(cfg.Interval)
	if err != nil {
		return nil, err
	}
	switch cfg.Source {
	case SourceRandom, "":
		return NewRandomFeed(cfg.RandomBasePrice, cfg.RandomVolatility, cfg.RandomSeed), nil
	case SourceReplay:
		if store == nil {
			return nil, fmt.Errorf("%w: replay needs a candle store", ErrUnknownSource)
		}
		return NewReplayFeed(store, interval, cfg.ReplayStart, cfg.ReplayBatch), nil
	case SourceBinance:
		return NewBinanceFeed(cfg.BinanceEndpoint, cfg.BinanceTimeout, interval)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, cfg.Source)
	}
}

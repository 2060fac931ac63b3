package marketdata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"autotrader/src/model"
)

// CandleStore is the stored OHLCV history a replay runs over.
type CandleStore interface {
	FetchRange(ctx context.Context, symbol string, interval time.Duration, from, to time.Time) ([]model.Bar, error)
	FetchAfter(ctx context.Context, symbol string, interval time.Duration, after time.Time, limit int) ([]model.Bar, error)
}

type replayCursor struct {
	at      time.Time
	pending []model.Bar
	current *model.Bar
}

// ReplayFeed walks stored candles forward, one bar per GetTick call, with a
// cursor per stream and symbol. It also quotes the current replay price of
// the caller's stream for paper fills.
type ReplayFeed struct {
	store    CandleStore
	interval time.Duration
	start    time.Time
	batch    int

	mu      sync.Mutex
	cursors map[string]*replayCursor
}

func NewReplayFeed(store CandleStore, interval time.Duration, start time.Time, batch int) *ReplayFeed {
	if batch <= 0 {
		batch = 500
	}
	return &ReplayFeed{
		store:    store,
		interval: interval,
		start:    start,
		batch:    batch,
		cursors:  make(map[string]*replayCursor),
	}
}

func (f *ReplayFeed) cursor(key string) *replayCursor {
	c, ok := f.cursors[key]
	if !ok {
		c = &replayCursor{at: f.start.Add(-time.Nanosecond)}
		f.cursors[key] = c
	}
	return c
}

func (f *ReplayFeed) GetTick(ctx context.Context, symbol string) (model.Bar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c := f.cursor(cursorKey(ctx, symbol))
	if len(c.pending) == 0 {
		bars, err := f.store.FetchAfter(ctx, symbol, f.interval, c.at, f.batch)
		if err != nil {
			return model.Bar{}, fmt.Errorf("replay fetch %s: %w", symbol, err)
		}
		if len(bars) == 0 {
			return model.Bar{}, ErrNoData
		}
		c.pending = bars
	}
	bar := c.pending[0]
	c.pending = c.pending[1:]
	c.at = bar.Timestamp
	c.current = &bar
	return bar, nil
}

func (f *ReplayFeed) GetHistory(ctx context.Context, symbol string, interval time.Duration, from, to time.Time) ([]model.Bar, error) {
	if interval <= 0 {
		interval = f.interval
	}
	bars, err := f.store.FetchRange(ctx, symbol, interval, from, to)
	if err != nil {
		return nil, fmt.Errorf("replay history %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return nil, ErrNoData
	}
	return bars, nil
}

// Quote returns the close of the bar last handed out for symbol on the
// caller's stream.
func (f *ReplayFeed) Quote(ctx context.Context, symbol string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cursors[cursorKey(ctx, symbol)]
	if !ok || c.current == nil {
		return 0, ErrNoData
	}
	return c.current.Close, nil
}

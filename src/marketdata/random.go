package marketdata

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"autotrader/src/model"
)

// RandomFeed simulates a market as a bounded random walk per stream and
// symbol. Quote returns the walk's current price without advancing it.
type RandomFeed struct {
	basePrice  float64
	volatility float64
	now        func() time.Time

	mu     sync.Mutex
	rng    *rand.Rand
	prices map[string]float64
	last   map[string]time.Time
}

func NewRandomFeed(basePrice, volatility float64, seed int64) *RandomFeed {
	if basePrice <= 0 {
		basePrice = 19500
	}
	if volatility <= 0 {
		volatility = 0.002
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RandomFeed{
		basePrice:  basePrice,
		volatility: volatility,
		now:        time.Now,
		rng:        rand.New(rand.NewSource(seed)),
		prices:     make(map[string]float64),
		last:       make(map[string]time.Time),
	}
}

func (f *RandomFeed) GetTick(ctx context.Context, symbol string) (model.Bar, error) {
	if err := ctx.Err(); err != nil {
		return model.Bar{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	key := cursorKey(ctx, symbol)
	at := f.now().UTC()
	if prev, ok := f.last[key]; ok && !at.After(prev) {
		at = prev.Add(time.Millisecond)
	}
	f.last[key] = at

	open, ok := f.prices[key]
	if !ok {
		open = f.basePrice
	}
	closePrice := f.step(open)
	f.prices[key] = closePrice
	return f.bar(symbol, at, open, closePrice), nil
}

func (f *RandomFeed) GetHistory(ctx context.Context, symbol string, interval time.Duration, from, to time.Time) ([]model.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if interval <= 0 || !to.After(from) {
		return nil, ErrNoData
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	price, ok := f.prices[cursorKey(ctx, symbol)]
	if !ok {
		price = f.basePrice
	}
	n := int(to.Sub(from) / interval)
	if n == 0 {
		return nil, ErrNoData
	}

	// walk backwards so the series ends at the current price
	closes := make([]float64, n)
	closes[n-1] = price
	for i := n - 2; i >= 0; i-- {
		closes[i] = f.step(closes[i+1])
	}
	bars := make([]model.Bar, n)
	for i := range closes {
		open := closes[i]
		if i > 0 {
			open = closes[i-1]
		}
		at := from.Add(time.Duration(i+1) * interval).UTC()
		bars[i] = f.bar(symbol, at, open, closes[i])
	}
	return bars, nil
}

func (f *RandomFeed) Quote(ctx context.Context, symbol string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if price, ok := f.prices[cursorKey(ctx, symbol)]; ok {
		return price, nil
	}
	return f.basePrice, nil
}

// step must be called with f.mu held.
func (f *RandomFeed) step(price float64) float64 {
	next := price * (1 + f.rng.NormFloat64()*f.volatility)
	floor := f.basePrice * 0.5
	ceil := f.basePrice * 1.5
	return math.Min(ceil, math.Max(floor, next))
}

func (f *RandomFeed) bar(symbol string, at time.Time, open, closePrice float64) model.Bar {
	return model.Bar{
		Symbol:    symbol,
		Timestamp: at,
		Open:      open,
		High:      math.Max(open, closePrice),
		Low:       math.Min(open, closePrice),
		Close:     closePrice,
		Volume:    float64(1 + f.rng.Intn(100)),
	}
}

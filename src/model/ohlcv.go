package model

import (
	"time"

	"github.com/shopspring/decimal"
)

func candleToBar(symbol string, at time.Time, open, high, low, closePrice, volume decimal.Decimal) Bar {
	return Bar{
		Symbol:    symbol,
		Timestamp: at.UTC(),
		Open:      open.InexactFloat64(),
		High:      high.InexactFloat64(),
		Low:       low.InexactFloat64(),
		Close:     closePrice.InexactFloat64(),
		Volume:    volume.InexactFloat64(),
	}
}

// NewOHLCVCrypto1m converts a bar into a 1m storage row.
func NewOHLCVCrypto1m(b Bar) OHLCVCrypto1m {
	return OHLCVCrypto1m{
		Symbol:   b.Symbol,
		Datetime: b.Timestamp.UTC().Truncate(time.Minute),
		Open:     decimal.NewFromFloat(b.Open),
		High:     decimal.NewFromFloat(b.High),
		Low:      decimal.NewFromFloat(b.Low),
		Close:    decimal.NewFromFloat(b.Close),
		Volume:   decimal.NewFromFloat(b.Volume),
	}
}

// NewOHLCVCrypto1h converts a bar into a 1h storage row.
func NewOHLCVCrypto1h(b Bar) OHLCVCrypto1h {
	return OHLCVCrypto1h{
		Symbol:   b.Symbol,
		Datetime: b.Timestamp.UTC().Truncate(time.Hour),
		Open:     decimal.NewFromFloat(b.Open),
		High:     decimal.NewFromFloat(b.High),
		Low:      decimal.NewFromFloat(b.Low),
		Close:    decimal.NewFromFloat(b.Close),
		Volume:   decimal.NewFromFloat(b.Volume),
	}
}

package ohlcvcrypto

import (
	"context"
	"errors"
	"fmt"
	"time"

	"autotrader/src/marketdata"
	"autotrader/src/model"

	logger "github.com/sirupsen/logrus"
)

const (
	Duration1m = "1m"
	Duration1h = "1h"
)

var ErrInvalidDuration = errors.New("invalid DURATION, expected 1m or 1h")

type historySource interface {
	GetHistory(ctx context.Context, symbol string, interval time.Duration, from, to time.Time) ([]model.Bar, error)
}

type candleStore interface {
	LatestDatetime(ctx context.Context, symbol string, interval time.Duration) (time.Time, bool, error)
	UpsertBars(ctx context.Context, interval time.Duration, bars []model.Bar) error
}

// OHLCVCrypto copies Binance candles into the OHLCV tables the replay feed
// reads from.
type OHLCVCrypto struct {
	Log    *logger.Entry
	Feed   historySource
	Repo   candleStore
	Config *Config
}

func (o *OHLCVCrypto) Start(ctx context.Context) error {
	if o.Config == nil {
		o.Config = GetConfig()
	}
	interval, err := o.parseDuration()
	if err != nil {
		return err
	}
	if o.Config.AutoMode {
		if err := o.determineStartPoint(ctx, interval); err != nil {
			return err
		}
	}
	n, err := o.aggregateAndSave(ctx, interval)
	o.Log.WithFields(logger.Fields{
		"symbol": o.Config.Pair(),
		"rows":   n,
	}).Info("OHLCV import finished")
	return err
}

// aggregateAndSave pages through [StartDt, EndDt] and upserts every page.
func (o *OHLCVCrypto) aggregateAndSave(ctx context.Context, interval time.Duration) (int, error) {
	from, to := o.Config.StartDt.UTC(), o.Config.EndDt.UTC()
	total := 0
	for from.Before(to) {
		bars, err := o.Feed.GetHistory(ctx, o.Config.Pair(), interval, from, to)
		if errors.Is(err, marketdata.ErrNoData) {
			break
		}
		if err != nil {
			o.Log.WithError(err).Error("aggregateAndSave, GetHistory")
			return total, err
		}
		if err := o.Repo.UpsertBars(ctx, interval, bars); err != nil {
			o.Log.WithError(err).Error("aggregateAndSave, UpsertBars")
			return total, err
		}
		total += len(bars)

		last := bars[len(bars)-1].Timestamp
		o.Log.WithFields(logger.Fields{
			"symbol": o.Config.Pair(),
			"rows":   len(bars),
			"last":   last,
		}).Info("OHLCV data inserted or updated in database")

		next := last.Add(interval)
		if !next.After(from) {
			break
		}
		from = next
	}
	return total, nil
}

// determineStartPoint resumes one interval before the newest stored candle
// and runs up to now.
func (o *OHLCVCrypto) determineStartPoint(ctx context.Context, interval time.Duration) error {
	o.Config.StartDt = o.Config.StartDt.Add(-interval)
	o.Config.EndDt = time.Now().UTC()

	latest, ok, err := o.Repo.LatestDatetime(ctx, o.Config.Pair(), interval)
	if err != nil {
		o.Log.WithError(err).Error("Failed to query latest datetime")
		return err
	}
	if !ok {
		o.Log.
			WithField("StartDt", o.Config.StartDt.String()).
			WithField("EndDt", o.Config.EndDt.String()).
			Warn("no records found, start from the configured StartDt")
		return nil
	}
	o.Config.StartDt = latest.Add(-interval)
	o.Log.
		WithField("StartDt", o.Config.StartDt.String()).
		WithField("EndDt", o.Config.EndDt.String()).
		Info("determineStartPoint valid date found")
	return nil
}

func (o *OHLCVCrypto) parseDuration() (time.Duration, error) {
	switch o.Config.DurationStr {
	case Duration1m:
		return time.Minute, nil
	case Duration1h:
		return time.Hour, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, o.Config.DurationStr)
	}
}

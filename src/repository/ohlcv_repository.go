package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"autotrader/src/database"
	"autotrader/src/model"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrInvalidInterval = errors.New("invalid interval: must be a whole number of minutes below 1h or of hours from 1h")

// OHLCVRepository stores candles in a 1m and a 1h table and serves other
// intervals by aggregating the finer table.
type OHLCVRepository struct {
	db *gorm.DB
}

func NewOHLCVRepository() *OHLCVRepository {
	return NewOHLCVRepositoryWithDB(database.MainDB)
}

func NewOHLCVRepositoryWithDB(db *gorm.DB) *OHLCVRepository {
	logger.WithField("component", "OHLCVRepository").Debug("Creating OHLCVRepository")
	return &OHLCVRepository{db: db}
}

// baseInterval is the stored interval a request is served from.
func baseInterval(interval time.Duration) (time.Duration, error) {
	switch {
	case interval <= 0:
		return 0, ErrInvalidInterval
	case interval < time.Hour && interval%time.Minute == 0:
		return time.Minute, nil
	case interval >= time.Hour && interval%time.Hour == 0:
		return time.Hour, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrInvalidInterval, interval)
	}
}

func (s *OHLCVRepository) find(ctx context.Context, base time.Duration, scope func(*gorm.DB) *gorm.DB) ([]model.Bar, error) {
	q := scope(s.db.WithContext(ctx))
	if base == time.Hour {
		var rows []model.OHLCVCrypto1h
		if err := q.Find(&rows).Error; err != nil {
			return nil, err
		}
		bars := make([]model.Bar, len(rows))
		for i, r := range rows {
			bars[i] = r.ToBar()
		}
		return bars, nil
	}
	var rows []model.OHLCVCrypto1m
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	bars := make([]model.Bar, len(rows))
	for i, r := range rows {
		bars[i] = r.ToBar()
	}
	return bars, nil
}

// FetchRange returns the bars of symbol whose bucket starts in [from, to],
// oldest first.
func (s *OHLCVRepository) FetchRange(ctx context.Context, symbol string, interval time.Duration, from, to time.Time) ([]model.Bar, error) {
	base, err := baseInterval(interval)
	if err != nil {
		return nil, err
	}
	start := bucketStart(from, interval)
	bars, err := s.find(ctx, base, func(db *gorm.DB) *gorm.DB {
		return db.Where("symbol = ? AND datetime >= ? AND datetime <= ?", symbol, start.UTC(), to.UTC()).
			Order("datetime ASC")
	})
	if err != nil {
		return nil, err
	}
	out := AggregateBars(bars, interval)
	for len(out) > 0 && out[0].Timestamp.Before(from) {
		out = out[1:]
	}
	return out, nil
}

// FetchAfter returns up to limit bars of symbol that start after the given
// time, oldest first. A trailing bucket that may still be incomplete is held
// back.
func (s *OHLCVRepository) FetchAfter(ctx context.Context, symbol string, interval time.Duration, after time.Time, limit int) ([]model.Bar, error) {
	base, err := baseInterval(interval)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 200
	}
	mult := int(interval / base)
	baseLimit := limit*mult + mult
	start := bucketStart(after, interval).Add(interval)

	bars, err := s.find(ctx, base, func(db *gorm.DB) *gorm.DB {
		return db.Where("symbol = ? AND datetime >= ?", symbol, start.UTC()).
			Order("datetime ASC").
			Limit(baseLimit)
	})
	if err != nil {
		return nil, err
	}
	out := AggregateBars(bars, interval)
	if mult > 1 && len(bars) == baseLimit && len(out) > 0 {
		out = out[:len(out)-1]
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// LatestDatetime returns the newest stored candle time of symbol.
func (s *OHLCVRepository) LatestDatetime(ctx context.Context, symbol string, interval time.Duration) (time.Time, bool, error) {
	base, err := baseInterval(interval)
	if err != nil {
		return time.Time{}, false, err
	}
	bars, err := s.find(ctx, base, func(db *gorm.DB) *gorm.DB {
		return db.Where("symbol = ?", symbol).Order("datetime DESC").Limit(1)
	})
	if err != nil {
		return time.Time{}, false, err
	}
	if len(bars) == 0 {
		return time.Time{}, false, nil
	}
	return bars[0].Timestamp, true, nil
}

// UpsertBars writes bars into the table of interval, which must be 1m or
// 1h, replacing rows with the same (symbol, datetime).
func (s *OHLCVRepository) UpsertBars(ctx context.Context, interval time.Duration, bars []model.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	onConflict := clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}, {Name: "datetime"}},
		DoUpdates: clause.AssignmentColumns([]string{"open", "high", "low", "close", "volume"}),
	}
	db := s.db.WithContext(ctx).Clauses(onConflict)

	switch interval {
	case time.Minute:
		rows := make([]model.OHLCVCrypto1m, len(bars))
		for i, b := range bars {
			rows[i] = model.NewOHLCVCrypto1m(b)
		}
		return db.Create(&rows).Error
	case time.Hour:
		rows := make([]model.OHLCVCrypto1h, len(bars))
		for i, b := range bars {
			rows[i] = model.NewOHLCVCrypto1h(b)
		}
		return db.Create(&rows).Error
	default:
		return fmt.Errorf("%w: only 1m and 1h are stored", ErrInvalidInterval)
	}
}

// bucketStart aligns t to wall-clock boundaries of interval: 12:07 with 5m
// is 12:05.
func bucketStart(t time.Time, interval time.Duration) time.Time {
	step := int64(interval.Seconds())
	if step <= 0 {
		return t.UTC()
	}
	secs := t.Unix()
	return time.Unix((secs/step)*step, 0).UTC()
}

// AggregateBars folds ascending bars into interval buckets. Bars are
// returned unchanged when they already have that interval.
func AggregateBars(bars []model.Bar, interval time.Duration) []model.Bar {
	if len(bars) == 0 {
		return nil
	}
	out := make([]model.Bar, 0, len(bars))
	var cur model.Bar
	hasCur := false

	for _, b := range bars {
		start := bucketStart(b.Timestamp, interval)
		if !hasCur || !start.Equal(cur.Timestamp) {
			if hasCur {
				out = append(out, cur)
			}
			cur = b
			cur.Timestamp = start
			hasCur = true
			continue
		}
		if b.High > cur.High {
			cur.High = b.High
		}
		if b.Low < cur.Low {
			cur.Low = b.Low
		}
		cur.Close = b.Close
		cur.Volume += b.Volume
	}
	return append(out, cur)
}

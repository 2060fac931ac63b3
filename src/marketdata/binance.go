package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"autotrader/src/model"
	"autotrader/src/utils"

	"github.com/nntaoli-project/goex"
	"github.com/nntaoli-project/goex/binance"
	logger "github.com/sirupsen/logrus"
)

const binanceMaxLimit = 1000

// BinanceFeed reads live klines from Binance through goex.
type BinanceFeed struct {
	exchange goex.API
	interval time.Duration
	period   goex.KlinePeriod
	log      *logger.Entry
}

func NewBinanceFeed(endpoint string, timeout time.Duration, interval time.Duration) (*BinanceFeed, error) {
	if endpoint == "" {
		endpoint = binance.GLOBAL_API_BASE_URL
	}
	api := binance.NewWithConfig(&goex.APIConfig{
		HttpClient: &http.Client{Timeout: timeout},
		Endpoint:   endpoint,
	})
	return NewBinanceFeedWithAPI(api, interval)
}

func NewBinanceFeedWithAPI(api goex.API, interval time.Duration) (*BinanceFeed, error) {
	period, err := GoexPeriod(interval)
	if err != nil {
		return nil, err
	}
	return &BinanceFeed{
		exchange: api,
		interval: interval,
		period:   period,
		log:      logger.WithField("feed", "binance"),
	}, nil
}

// GoexPeriod maps a bar interval onto the goex kline period.
func GoexPeriod(interval time.Duration) (goex.KlinePeriod, error) {
	switch interval {
	case time.Minute:
		return goex.KLINE_PERIOD_1MIN, nil
	case 5 * time.Minute:
		return goex.KLINE_PERIOD_5MIN, nil
	case 15 * time.Minute:
		return goex.KLINE_PERIOD_15MIN, nil
	case 30 * time.Minute:
		return goex.KLINE_PERIOD_30MIN, nil
	case time.Hour:
		return goex.KLINE_PERIOD_1H, nil
	case 4 * time.Hour:
		return goex.KLINE_PERIOD_4H, nil
	case 24 * time.Hour:
		return goex.KLINE_PERIOD_1DAY, nil
	default:
		return 0, fmt.Errorf("unsupported kline interval %s", interval)
	}
}

func pairOf(symbol string) (goex.CurrencyPair, error) {
	base, quote, err := utils.SplitSymbol(symbol)
	if err != nil {
		return goex.CurrencyPair{}, err
	}
	return goex.NewCurrencyPair(goex.Currency{Symbol: base}, goex.Currency{Symbol: quote}), nil
}

// klines runs the blocking goex call so ctx can still end the wait.
func (f *BinanceFeed) klines(ctx context.Context, symbol string, period goex.KlinePeriod, limit int, opts ...goex.OptionalParameter) ([]model.Bar, error) {
	pair, err := pairOf(symbol)
	if err != nil {
		return nil, err
	}
	type result struct {
		lines []goex.Kline
		err   error
	}
	done := make(chan result, 1)
	go func() {
		lines, err := f.exchange.GetKlineRecords(pair, period, limit, opts...)
		done <- result{lines, err}
	}()

	var res result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-done:
	}
	if res.err != nil {
		f.log.WithError(res.err).WithField("symbol", symbol).Warn("GetKlineRecords failed")
		return nil, fmt.Errorf("binance klines %s: %w", symbol, res.err)
	}
	if len(res.lines) == 0 {
		return nil, ErrNoData
	}
	bars := make([]model.Bar, 0, len(res.lines))
	for _, k := range res.lines {
		bars = append(bars, model.Bar{
			Symbol:    symbol,
			Timestamp: time.Unix(k.Timestamp, 0).UTC(),
			Open:      k.Open,
			High:      k.High,
			Low:       k.Low,
			Close:     k.Close,
			Volume:    k.Vol,
		})
	}
	return bars, nil
}

func (f *BinanceFeed) GetTick(ctx context.Context, symbol string) (model.Bar, error) {
	bars, err := f.klines(ctx, symbol, f.period, 1)
	if err != nil {
		return model.Bar{}, err
	}
	return bars[len(bars)-1], nil
}

func (f *BinanceFeed) GetHistory(ctx context.Context, symbol string, interval time.Duration, from, to time.Time) ([]model.Bar, error) {
	period := f.period
	if interval > 0 && interval != f.interval {
		p, err := GoexPeriod(interval)
		if err != nil {
			return nil, err
		}
		period = p
	} else {
		interval = f.interval
	}
	if !to.After(from) {
		return nil, ErrNoData
	}
	limit := int(to.Sub(from)/interval) + 1
	if limit > binanceMaxLimit {
		limit = binanceMaxLimit
	}
	const millis = 1000
	return f.klines(ctx, symbol, period, limit,
		goex.OptionalParameter{}.
			Optional("startTime", from.Unix()*millis).
			Optional("endTime", to.Unix()*millis))
}

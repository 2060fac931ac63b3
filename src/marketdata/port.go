package marketdata

import (
	"context"
	"errors"
	"time"

	"autotrader/src/model"
)

// ErrNoData is returned when a feed has nothing for the request. Feeds never
// answer an empty success.
var ErrNoData = errors.New("marketdata: no data")

// Port is the read side of a market data source.
type Port interface {
	GetTick(ctx context.Context, symbol string) (model.Bar, error)
	GetHistory(ctx context.Context, symbol string, interval time.Duration, from, to time.Time) ([]model.Bar, error)
}

// Quoter returns the price a simulated venue should fill at right now.
type Quoter interface {
	Quote(ctx context.Context, symbol string) (float64, error)
}

// TickQuoter quotes the close of the latest tick of a Port.
type TickQuoter struct {
	Port Port
}

func (q TickQuoter) Quote(ctx context.Context, symbol string) (float64, error) {
	bar, err := q.Port.GetTick(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return bar.Close, nil
}

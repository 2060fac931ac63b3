package report

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"autotrader/src/analytics"
	"autotrader/src/model"
	"autotrader/src/repository"

	logger "github.com/sirupsen/logrus"
)

var ErrMissingUser = errors.New("report: user id is required")

type tradeEventLister interface {
	List(ctx context.Context, filter repository.TradeEventFilter) ([]model.TradeEvent, error)
}

// Report prints the performance summary of a user's filled trades as JSON.
type Report struct {
	Log    *logger.Entry
	Events tradeEventLister
	Out    io.Writer
}

type Options struct {
	UserID string
	Symbol string
	From   *time.Time
	To     *time.Time
}

func (r *Report) Run(ctx context.Context, opts Options) (analytics.Report, error) {
	if opts.UserID == "" {
		return analytics.Report{}, ErrMissingUser
	}
	evts, err := r.Events.List(ctx, repository.TradeEventFilter{
		UserID: opts.UserID,
		Symbol: opts.Symbol,
		Status: model.OrderStatusFilled,
		From:   opts.From,
		To:     opts.To,
	})
	if err != nil {
		r.Log.WithError(err).Error("Failed to list trade events")
		return analytics.Report{}, err
	}
	summary := analytics.Summarize(evts)
	r.Log.WithFields(logger.Fields{
		"user_id": opts.UserID,
		"events":  len(evts),
		"trades":  summary.TotalTrades,
	}).Info("performance report built")

	enc := json.NewEncoder(r.Out)
	enc.SetIndent("", "  ")
	return summary, enc.Encode(summary)
}

package events

import (
	"context"
	"errors"

	"autotrader/src/model"
)

// Sink receives every trade event the control loop commits.
type Sink interface {
	Record(ctx context.Context, event model.TradeEvent) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, event model.TradeEvent) error

func (f SinkFunc) Record(ctx context.Context, event model.TradeEvent) error {
	return f(ctx, event)
}

// MultiSink fans an event out to every sink in order. All sinks are called
// even when one fails; the errors are joined.
type MultiSink []Sink

func (m MultiSink) Record(ctx context.Context, event model.TradeEvent) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops events.
var Discard Sink = SinkFunc(func(context.Context, model.TradeEvent) error { return nil })

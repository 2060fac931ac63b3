package executors

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"autotrader/src/marketdata"
	"autotrader/src/model"
	"autotrader/src/position"
	"autotrader/src/risk"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 4, 14, 0, 0, 0, time.UTC)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.HistoryBars = 0
	cfg.CadenceOpen = time.Millisecond
	cfg.CadenceFlat = time.Millisecond
	cfg.RetryBackoff = time.Millisecond
	cfg.FetchTimeout = time.Second
	cfg.OrderTimeout = time.Second
	cfg.FillTimeout = time.Second
	cfg.PollInterval = time.Millisecond
	cfg.ReconcileTimeout = time.Second
	return cfg
}

type fakeFeed struct {
	mu      sync.Mutex
	prices  []float64
	i       int
	err     error
	history []model.Bar
	calls   int
}

func (f *fakeFeed) GetTick(_ context.Context, symbol string) (model.Bar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return model.Bar{}, f.err
	}
	idx := f.i
	if idx >= len(f.prices) {
		idx = len(f.prices) - 1
	} else {
		f.i++
	}
	p := f.prices[idx]
	return model.Bar{Symbol: symbol, Timestamp: t0.Add(time.Duration(idx) * time.Minute), Open: p, High: p, Low: p, Close: p}, nil
}

func (f *fakeFeed) GetHistory(context.Context, string, time.Duration, time.Time, time.Time) ([]model.Bar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.history) == 0 {
		return nil, marketdata.ErrNoData
	}
	return f.history, nil
}

type fakeVenue struct {
	mu      sync.Mutex
	place   func(intent model.OrderIntent) (model.OrderResult, error)
	status  func(id string) (model.OrderResult, error)
	cancel  model.OrderStatus
	intents []model.OrderIntent
	queries int
	cancels int
}

// fillingVenue fills every order at price.
func fillingVenue(price float64) *fakeVenue {
	return &fakeVenue{place: func(intent model.OrderIntent) (model.OrderResult, error) {
		return model.OrderResult{
			VenueOrderID:   uuid.NewString(),
			Status:         model.OrderStatusFilled,
			FilledQuantity: intent.Quantity,
			AvgFillPrice:   price,
		}, nil
	}}
}

func (v *fakeVenue) PlaceOrder(_ context.Context, intent model.OrderIntent) (model.OrderResult, error) {
	v.mu.Lock()
	v.intents = append(v.intents, intent)
	place := v.place
	v.mu.Unlock()
	return place(intent)
}

func (v *fakeVenue) CancelOrder(_ context.Context, _ string) (model.OrderStatus, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cancels++
	if v.cancel == "" {
		return model.OrderStatusCancelled, nil
	}
	return v.cancel, nil
}

func (v *fakeVenue) GetOrderStatus(_ context.Context, id string) (model.OrderResult, error) {
	v.mu.Lock()
	v.queries++
	status := v.status
	v.mu.Unlock()
	if status == nil {
		return model.OrderResult{}, errors.New("unknown order")
	}
	return status(id)
}

func (v *fakeVenue) placed() []model.OrderIntent {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]model.OrderIntent(nil), v.intents...)
}

type fakeDetector struct {
	mu      sync.Mutex
	signal  *model.Signal
	err     error
	windows []int
}

func (d *fakeDetector) Detect(window []model.Bar) (*model.Signal, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.windows = append(d.windows, len(window))
	if d.err != nil || d.signal == nil {
		return nil, d.err
	}
	s := *d.signal
	return &s, nil
}

func buySignal(conf float64) *model.Signal {
	return &model.Signal{Symbol: "NIFTY", Action: model.ActionBuy, Confidence: conf, PatternName: "Golden Cross"}
}

func sellSignal(conf float64) *model.Signal {
	return &model.Signal{Symbol: "NIFTY", Action: model.ActionSell, Confidence: conf, PatternName: "Death Cross"}
}

type recordingSink struct {
	mu     sync.Mutex
	events []model.TradeEvent
}

func (s *recordingSink) Record(_ context.Context, e model.TradeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) all() []model.TradeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.TradeEvent(nil), s.events...)
}

type capturedException struct {
	level string
	err   error
	data  map[string]interface{}
}

type fakeCapturer struct {
	mu       sync.Mutex
	captured []capturedException
}

func (c *fakeCapturer) Capture(_ context.Context, _, _, level string, err error, data map[string]interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.captured = append(c.captured, capturedException{level: level, err: err, data: data})
}

func testDeps(t *testing.T, feed *fakeFeed, venue *fakeVenue, det *fakeDetector, sink *recordingSink) Deps {
	t.Helper()
	rm, err := risk.NewManager(risk.DefaultConfig())
	require.NoError(t, err)
	return Deps{Feed: feed, Venue: venue, Detector: det, Risk: rm, Sink: sink}
}

func newTestTask(t *testing.T, deps Deps) (*Task, *position.Machine) {
	t.Helper()
	m := position.NewMachine("u1", "NIFTY")
	task, err := NewTask(testConfig(), deps, m)
	require.NoError(t, err)
	return task, m
}

func openLong(t *testing.T, m *position.Machine, qty, entry float64) {
	t.Helper()
	require.NoError(t, m.Restore(model.Position{Side: model.SideLong, Quantity: qty, EntryPrice: entry, OpenedAt: t0}))
}

// findingVenue is a fakeVenue that can look orders up by client id.
type findingVenue struct {
	*fakeVenue
	find func(clientOrderID string) (model.OrderResult, error)
}

func (v *findingVenue) FindByClientOrderID(_ context.Context, clientOrderID string) (model.OrderResult, error) {
	return v.find(clientOrderID)
}

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

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTask_StopLossClosesLong(t *testing.T) {
	sink := &recordingSink{}
	venue := fillingVenue(98.9)
	task, m := newTestTask(t, testDeps(t, &fakeFeed{prices: []float64{98.9}}, venue, &fakeDetector{}, sink))
	openLong(t, m, 1, 100)

	wait, err := task.tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, task.cfg.CadenceFlat, wait)
	assert.Equal(t, position.StateFlat, m.State())

	intents := venue.placed()
	require.Len(t, intents, 1)
	assert.Equal(t, model.OrderSideSell, intents[0].Side)
	assert.Equal(t, 1.0, intents[0].Quantity)

	evs := sink.all()
	require.Len(t, evs, 1)
	assert.Equal(t, model.OrderDirectionExit, evs[0].OrderDir)
	assert.Equal(t, string(model.ExitStopLoss), evs[0].Reason)
	assert.Equal(t, model.OrderStatusFilled, evs[0].Status)
	assert.Equal(t, "98.9", evs[0].Price.String())
}

func TestTask_TakeProfitClosesLong(t *testing.T) {
	sink := &recordingSink{}
	det := &fakeDetector{signal: buySignal(0.95)}
	task, m := newTestTask(t, testDeps(t, &fakeFeed{prices: []float64{102.5}}, fillingVenue(102.5), det, sink))
	openLong(t, m, 1, 100)

	_, err := task.tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, position.StateFlat, m.State())
	require.Len(t, sink.all(), 1)
	assert.Equal(t, string(model.ExitTakeProfit), sink.all()[0].Reason)
	// risk exits are decided before any signal
	assert.Empty(t, det.windows)
}

func TestTask_RejectedEntryStaysFlat(t *testing.T) {
	sink := &recordingSink{}
	venue := &fakeVenue{place: func(model.OrderIntent) (model.OrderResult, error) {
		return model.OrderResult{VenueOrderID: "o-1", Status: model.OrderStatusRejected, Reason: "insufficient margin"}, nil
	}}
	task, m := newTestTask(t, testDeps(t, &fakeFeed{prices: []float64{100}}, venue, &fakeDetector{signal: buySignal(0.95)}, sink))

	wait, err := task.tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, task.cfg.CadenceFlat, wait)
	assert.Equal(t, position.StateFlat, m.State())
	opened, _ := m.Transitions()
	assert.Zero(t, opened)

	evs := sink.all()
	require.Len(t, evs, 1)
	assert.Equal(t, model.OrderStatusRejected, evs[0].Status)
	assert.Equal(t, "insufficient margin", evs[0].Reason)
}

func TestTask_EntryUsesFillPrice(t *testing.T) {
	sink := &recordingSink{}
	venue := fillingVenue(101.3)
	task, m := newTestTask(t, testDeps(t, &fakeFeed{prices: []float64{100}}, venue, &fakeDetector{signal: sellSignal(0.91)}, sink))

	wait, err := task.tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, task.cfg.CadenceOpen, wait)

	pos, open := m.Snapshot()
	require.True(t, open)
	assert.Equal(t, model.SideShort, pos.Side)
	assert.Equal(t, 101.3, pos.EntryPrice)
	assert.Equal(t, 1.0, pos.Quantity)

	require.Len(t, venue.placed(), 1)
	assert.Equal(t, model.OrderSideSell, venue.placed()[0].Side)
	evs := sink.all()
	require.Len(t, evs, 1)
	assert.Equal(t, model.OrderDirectionEntry, evs[0].OrderDir)
	assert.Equal(t, "Death Cross", evs[0].PatternName)

	st := task.Status()
	assert.Equal(t, position.StateOpen, st.State)
	require.NotNil(t, st.Position)
	assert.Equal(t, int64(1), st.Ticks)
}

func TestTask_LotSizePerSymbol(t *testing.T) {
	venue := fillingVenue(100)
	deps := testDeps(t, &fakeFeed{prices: []float64{100}}, venue, &fakeDetector{signal: buySignal(0.95)}, &recordingSink{})
	cfg := testConfig()
	cfg.LotSizes = map[string]float64{"NIFTY": 3}
	task, err := NewTask(cfg, deps, position.NewMachine("u1", "NIFTY"))
	require.NoError(t, err)

	_, err = task.tick(context.Background())
	require.NoError(t, err)
	require.Len(t, venue.placed(), 1)
	assert.Equal(t, 3.0, venue.placed()[0].Quantity)
}

func TestTask_SignalBelowThresholdPlacesNothing(t *testing.T) {
	venue := fillingVenue(100)
	task, m := newTestTask(t, testDeps(t, &fakeFeed{prices: []float64{100}}, venue, &fakeDetector{signal: buySignal(0.89)}, &recordingSink{}))

	_, err := task.tick(context.Background())
	require.NoError(t, err)
	assert.Empty(t, venue.placed())
	assert.Equal(t, position.StateFlat, m.State())
}

func TestTask_SameDirectionSignalIsIgnored(t *testing.T) {
	venue := fillingVenue(100.5)
	task, m := newTestTask(t, testDeps(t, &fakeFeed{prices: []float64{100.5}}, venue, &fakeDetector{signal: buySignal(0.95)}, &recordingSink{}))
	openLong(t, m, 1, 100)

	_, err := task.tick(context.Background())
	require.NoError(t, err)
	assert.Empty(t, venue.placed())
	pos, open := m.Snapshot()
	require.True(t, open)
	assert.Equal(t, 1.0, pos.Quantity)
}

func TestTask_OpposingSignalReverses(t *testing.T) {
	sink := &recordingSink{}
	venue := fillingVenue(100.5)
	task, m := newTestTask(t, testDeps(t, &fakeFeed{prices: []float64{100.5}}, venue, &fakeDetector{signal: sellSignal(0.95)}, sink))
	openLong(t, m, 1, 100)

	_, err := task.tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, position.StateFlat, m.State())
	require.Len(t, venue.placed(), 1)
	assert.Equal(t, model.OrderSideSell, venue.placed()[0].Side)
	assert.Equal(t, string(model.ExitSignalReversal), sink.all()[0].Reason)
}

func TestTask_SubmittedOrderIsPolledUntilFilled(t *testing.T) {
	var mu sync.Mutex
	polls := 0
	venue := &fakeVenue{
		place: func(intent model.OrderIntent) (model.OrderResult, error) {
			return model.OrderResult{VenueOrderID: "o-1", Status: model.OrderStatusSubmitted}, nil
		},
		status: func(id string) (model.OrderResult, error) {
			mu.Lock()
			defer mu.Unlock()
			polls++
			if polls < 3 {
				return model.OrderResult{VenueOrderID: id, Status: model.OrderStatusSubmitted}, nil
			}
			return model.OrderResult{VenueOrderID: id, Status: model.OrderStatusFilled, FilledQuantity: 1, AvgFillPrice: 100.2}, nil
		},
	}
	task, m := newTestTask(t, testDeps(t, &fakeFeed{prices: []float64{100}}, venue, &fakeDetector{signal: buySignal(0.95)}, &recordingSink{}))

	_, err := task.tick(context.Background())
	require.NoError(t, err)
	pos, open := m.Snapshot()
	require.True(t, open)
	assert.Equal(t, 100.2, pos.EntryPrice)
	assert.Zero(t, venue.cancels)
}

func TestTask_FillTimeoutCancelsOrder(t *testing.T) {
	sink := &recordingSink{}
	cancelled := false
	venue := &fakeVenue{
		place: func(model.OrderIntent) (model.OrderResult, error) {
			return model.OrderResult{VenueOrderID: "o-2", Status: model.OrderStatusSubmitted}, nil
		},
	}
	venue.status = func(id string) (model.OrderResult, error) {
		venue.mu.Lock()
		n := venue.cancels
		venue.mu.Unlock()
		if n > 0 {
			cancelled = true
			return model.OrderResult{VenueOrderID: id, Status: model.OrderStatusCancelled}, nil
		}
		return model.OrderResult{VenueOrderID: id, Status: model.OrderStatusSubmitted}, nil
	}
	deps := testDeps(t, &fakeFeed{prices: []float64{100}}, venue, &fakeDetector{signal: buySignal(0.95)}, sink)
	cfg := testConfig()
	cfg.FillTimeout = 20 * time.Millisecond
	m := position.NewMachine("u1", "NIFTY")
	task, err := NewTask(cfg, deps, m)
	require.NoError(t, err)

	_, err = task.tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, position.StateFlat, m.State())
	assert.True(t, cancelled)
	evs := sink.all()
	require.Len(t, evs, 1)
	assert.Equal(t, model.OrderStatusCancelled, evs[0].Status)
}

func TestTask_StopWithOrderInFlightReconciles(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	venue := &fakeVenue{
		place: func(model.OrderIntent) (model.OrderResult, error) {
			cancel()
			return model.OrderResult{VenueOrderID: "o-3", Status: model.OrderStatusSubmitted}, nil
		},
		status: func(id string) (model.OrderResult, error) {
			return model.OrderResult{VenueOrderID: id, Status: model.OrderStatusFilled, FilledQuantity: 1, AvgFillPrice: 99.8}, nil
		},
	}
	deps := testDeps(t, &fakeFeed{prices: []float64{100}}, venue, &fakeDetector{signal: buySignal(0.95)}, &recordingSink{})
	cfg := testConfig()
	cfg.PollInterval = time.Hour
	cfg.FillTimeout = time.Hour
	m := position.NewMachine("u1", "NIFTY")
	task, err := NewTask(cfg, deps, m)
	require.NoError(t, err)

	_, err = task.tick(ctx)
	require.NoError(t, err)
	pos, open := m.Snapshot()
	require.True(t, open, "fill found while reconciling must be applied")
	assert.Equal(t, 99.8, pos.EntryPrice)
	assert.Zero(t, venue.cancels)
}

func TestTask_ConcurrentTicksAreSerialized(t *testing.T) {
	feed := &fakeFeed{prices: []float64{100}}
	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0
	venue := &fakeVenue{place: func(intent model.OrderIntent) (model.OrderResult, error) {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()
		time.Sleep(30 * time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
		return model.OrderResult{VenueOrderID: "o", Status: model.OrderStatusFilled, FilledQuantity: intent.Quantity, AvgFillPrice: 100}, nil
	}}
	deps := testDeps(t, feed, venue, &fakeDetector{signal: buySignal(0.95)}, &recordingSink{})

	m := position.NewMachine("u1", "NIFTY")
	a, err := NewTask(testConfig(), deps, m)
	require.NoError(t, err)
	b, err := NewTask(testConfig(), deps, m)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, task := range []*Task{a, b} {
		wg.Add(1)
		go func(i int, task *Task) {
			defer wg.Done()
			_, errs[i] = task.tick(context.Background())
		}(i, task)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Len(t, venue.placed(), 1, "second tick must see the open position")
	assert.Equal(t, 1, maxInFlight)
	opened, _ := m.Transitions()
	assert.Equal(t, 1, opened)
}

func TestTask_SeedsWindowFromHistory(t *testing.T) {
	history := make([]model.Bar, 60)
	for i := range history {
		history[i] = model.Bar{Symbol: "NIFTY", Timestamp: t0.Add(time.Duration(i-60) * time.Minute), Close: 100}
	}
	det := &fakeDetector{}
	deps := testDeps(t, &fakeFeed{prices: []float64{100, 101}, history: history}, fillingVenue(100), det, &recordingSink{})
	cfg := testConfig()
	cfg.HistoryBars = 60
	task, err := NewTask(cfg, deps, position.NewMachine("u1", "NIFTY"))
	require.NoError(t, err)

	_, err = task.tick(context.Background())
	require.NoError(t, err)
	_, err = task.tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{61, 62}, det.windows)
}

func TestTask_RunRetriesTransientErrors(t *testing.T) {
	feed := &fakeFeed{prices: []float64{100}, err: errors.New("feed timeout")}
	task, _ := newTestTask(t, testDeps(t, feed, fillingVenue(100), &fakeDetector{}, &recordingSink{}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- task.Run(ctx) }()

	require.Eventually(t, func() bool {
		feed.mu.Lock()
		defer feed.mu.Unlock()
		return feed.calls >= 3
	}, time.Second, time.Millisecond)
	st := task.Status()
	assert.True(t, st.Running)
	assert.Contains(t, st.LastError, "feed timeout")
	require.NotNil(t, st.LastErrorAt)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("task did not stop")
	}
	assert.False(t, task.Status().Running)
}

func TestTask_InvariantViolationAbortsRun(t *testing.T) {
	capt := &fakeCapturer{}
	venue := &fakeVenue{place: func(model.OrderIntent) (model.OrderResult, error) {
		return model.OrderResult{VenueOrderID: "o-4", Status: model.OrderStatusFilled, FilledQuantity: 2, AvgFillPrice: 98}, nil
	}}
	deps := testDeps(t, &fakeFeed{prices: []float64{98}}, venue, &fakeDetector{}, &recordingSink{})
	deps.Exceptions = capt
	hook := logtest.NewGlobal()
	t.Cleanup(func() { logrus.StandardLogger().ReplaceHooks(make(logrus.LevelHooks)) })
	task, m := newTestTask(t, deps)
	openLong(t, m, 1, 100)

	err := task.Run(context.Background())
	require.ErrorIs(t, err, position.ErrInvariantViolation)

	var aborted bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel && e.Message == "position invariant violated, aborting loop" {
			aborted = true
			assert.Equal(t, "NIFTY", e.Data["symbol"])
		}
	}
	assert.True(t, aborted)

	st := task.Status()
	assert.False(t, st.Running)
	assert.Contains(t, st.LastError, "invariant")
	require.Len(t, capt.captured, 1)
	assert.Equal(t, "fatal", capt.captured[0].level)
	assert.Equal(t, "NIFTY", capt.captured[0].data["symbol"])
}

func TestNewTask_MissingDependencies(t *testing.T) {
	_, err := NewTask(testConfig(), Deps{}, position.NewMachine("u1", "NIFTY"))
	require.ErrorIs(t, err, ErrMissingDependency)
	assert.Contains(t, err.Error(), "execution venue")
}

func TestTask_PartialExitFillShrinksPosition(t *testing.T) {
	sink := &recordingSink{}
	calls := 0
	venue := &fakeVenue{place: func(intent model.OrderIntent) (model.OrderResult, error) {
		calls++
		if calls == 1 {
			return model.OrderResult{
				VenueOrderID:   "o-p1",
				Status:         model.OrderStatusCancelled,
				FilledQuantity: 0.6,
				AvgFillPrice:   98.9,
				Reason:         "ioc remainder cancelled",
			}, nil
		}
		return model.OrderResult{VenueOrderID: "o-p2", Status: model.OrderStatusFilled, FilledQuantity: intent.Quantity, AvgFillPrice: 98.8}, nil
	}}
	task, m := newTestTask(t, testDeps(t, &fakeFeed{prices: []float64{98.9}}, venue, &fakeDetector{}, sink))
	openLong(t, m, 1, 100)

	_, err := task.tick(context.Background())
	require.NoError(t, err)
	pos, open := m.Snapshot()
	require.True(t, open)
	assert.InDelta(t, 0.4, pos.Quantity, 1e-9)

	evs := sink.all()
	require.Len(t, evs, 1)
	assert.Equal(t, model.OrderStatusFilled, evs[0].Status)
	assert.Equal(t, "0.6", evs[0].Quantity.String())
	assert.Contains(t, evs[0].Reason, "partial fill")

	_, err = task.tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, position.StateFlat, m.State())

	intents := venue.placed()
	require.Len(t, intents, 2)
	assert.Equal(t, 1.0, intents[0].Quantity)
	assert.InDelta(t, 0.4, intents[1].Quantity, 1e-9)
	for _, in := range intents {
		assert.True(t, in.ReduceOnly, "exit orders must only reduce")
		assert.NotEmpty(t, in.ClientOrderID)
	}
}

func TestTask_PartialEntryFillOpensExecutedQuantity(t *testing.T) {
	sink := &recordingSink{}
	venue := &fakeVenue{place: func(model.OrderIntent) (model.OrderResult, error) {
		return model.OrderResult{VenueOrderID: "o-e1", Status: model.OrderStatusCancelled, FilledQuantity: 0.3, AvgFillPrice: 100.1}, nil
	}}
	task, m := newTestTask(t, testDeps(t, &fakeFeed{prices: []float64{100}}, venue, &fakeDetector{signal: buySignal(0.95)}, sink))

	_, err := task.tick(context.Background())
	require.NoError(t, err)
	pos, open := m.Snapshot()
	require.True(t, open)
	assert.Equal(t, 0.3, pos.Quantity)
	assert.Equal(t, 100.1, pos.EntryPrice)
	assert.False(t, venue.placed()[0].ReduceOnly)

	evs := sink.all()
	require.Len(t, evs, 1)
	assert.Equal(t, model.OrderStatusFilled, evs[0].Status)
	assert.Equal(t, "0.3", evs[0].Quantity.String())
}

func TestTask_PlacementErrorRecoveredByClientOrderID(t *testing.T) {
	base := &fakeVenue{place: func(model.OrderIntent) (model.OrderResult, error) {
		return model.OrderResult{}, errors.New("gateway timeout")
	}}
	var looked []string
	venue := &findingVenue{fakeVenue: base, find: func(id string) (model.OrderResult, error) {
		looked = append(looked, id)
		return model.OrderResult{VenueOrderID: "o-r1", Status: model.OrderStatusFilled, FilledQuantity: 1, AvgFillPrice: 100.4}, nil
	}}
	deps := testDeps(t, &fakeFeed{prices: []float64{100}}, base, &fakeDetector{signal: buySignal(0.95)}, &recordingSink{})
	deps.Venue = venue
	task, m := newTestTask(t, deps)

	_, err := task.tick(context.Background())
	require.NoError(t, err)
	pos, open := m.Snapshot()
	require.True(t, open, "an order accepted despite the error must be applied")
	assert.Equal(t, 100.4, pos.EntryPrice)

	intents := base.placed()
	require.Len(t, intents, 1)
	require.NotEmpty(t, intents[0].ClientOrderID)
	assert.Equal(t, []string{intents[0].ClientOrderID}, looked)
}

func TestTask_PlacementErrorWithoutRecovery(t *testing.T) {
	placeErr := errors.New("gateway timeout")
	base := &fakeVenue{place: func(model.OrderIntent) (model.OrderResult, error) {
		return model.OrderResult{}, placeErr
	}}

	t.Run("venue cannot look orders up", func(t *testing.T) {
		task, m := newTestTask(t, testDeps(t, &fakeFeed{prices: []float64{100}}, base, &fakeDetector{signal: buySignal(0.95)}, &recordingSink{}))
		_, err := task.tick(context.Background())
		require.ErrorIs(t, err, placeErr)
		assert.Equal(t, position.StateFlat, m.State())
	})

	t.Run("order unknown to the venue", func(t *testing.T) {
		venue := &findingVenue{fakeVenue: base, find: func(string) (model.OrderResult, error) {
			return model.OrderResult{}, errors.New("order not found")
		}}
		deps := testDeps(t, &fakeFeed{prices: []float64{100}}, base, &fakeDetector{signal: buySignal(0.95)}, &recordingSink{})
		deps.Venue = venue
		task, m := newTestTask(t, deps)
		_, err := task.tick(context.Background())
		require.ErrorIs(t, err, placeErr)
		assert.Equal(t, position.StateFlat, m.State())
	})
}

type barStore struct {
	bars []model.Bar
}

func (s *barStore) FetchRange(context.Context, string, time.Duration, time.Time, time.Time) ([]model.Bar, error) {
	return nil, nil
}

func (s *barStore) FetchAfter(_ context.Context, symbol string, _ time.Duration, after time.Time, limit int) ([]model.Bar, error) {
	var out []model.Bar
	for _, b := range s.bars {
		if b.Symbol == symbol && b.Timestamp.After(after) && len(out) < limit {
			out = append(out, b)
		}
	}
	return out, nil
}

// closesFeed records every close handed out by the wrapped feed.
type closesFeed struct {
	marketdata.Port
	mu     sync.Mutex
	closes []float64
}

func (f *closesFeed) GetTick(ctx context.Context, symbol string) (model.Bar, error) {
	bar, err := f.Port.GetTick(ctx, symbol)
	if err == nil {
		f.mu.Lock()
		f.closes = append(f.closes, bar.Close)
		f.mu.Unlock()
	}
	return bar, err
}

func TestTask_UsersSharingAReplayFeedSeeEveryBar(t *testing.T) {
	var bars []model.Bar
	for i, c := range []float64{100, 101, 102} {
		bars = append(bars, model.Bar{Symbol: "NIFTY", Timestamp: t0.Add(time.Duration(i) * time.Minute), Open: c, High: c, Low: c, Close: c})
	}
	feed := &closesFeed{Port: marketdata.NewReplayFeed(&barStore{bars: bars}, time.Minute, t0, 10)}

	var tasks []*Task
	for _, user := range []string{"u1", "u2"} {
		deps := testDeps(t, &fakeFeed{prices: []float64{100}}, fillingVenue(100), &fakeDetector{}, &recordingSink{})
		deps.Feed = feed
		task, err := NewTask(testConfig(), deps, position.NewMachine(user, "NIFTY"))
		require.NoError(t, err)
		tasks = append(tasks, task)
	}

	for i := 0; i < 3; i++ {
		for _, task := range tasks {
			_, err := task.tick(context.Background())
			require.NoError(t, err)
		}
	}
	assert.Equal(t, []float64{100, 100, 101, 101, 102, 102}, feed.closes)
}

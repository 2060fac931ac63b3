package executors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"autotrader/src/connectors"
	"autotrader/src/events"
	"autotrader/src/marketdata"
	"autotrader/src/metrics"
	"autotrader/src/model"
	"autotrader/src/position"
	"autotrader/src/risk"
	"autotrader/src/signal"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

var ErrMissingDependency = errors.New("executors: missing dependency")

// ExceptionCapturer persists failures that stop a task.
type ExceptionCapturer interface {
	Capture(ctx context.Context, module, method, level string, err error, contextData map[string]interface{})
}

// Deps are the collaborators shared by every task of a supervisor.
type Deps struct {
	Feed       marketdata.Port
	Venue      connectors.ExecutionPort
	Detector   signal.Detector
	Risk       *risk.Manager
	Sink       events.Sink
	Exceptions ExceptionCapturer
	// Threshold overrides Config.ConfidenceThreshold when positive.
	Threshold float64
}

func (d Deps) validate() error {
	var missing []string
	if d.Feed == nil {
		missing = append(missing, "market data feed")
	}
	if d.Venue == nil {
		missing = append(missing, "execution venue")
	}
	if d.Detector == nil {
		missing = append(missing, "signal detector")
	}
	if d.Risk == nil {
		missing = append(missing, "risk manager")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingDependency, strings.Join(missing, ", "))
	}
	return nil
}

// Task runs the control loop of one (user, symbol) pair. It owns its bar
// window; the position lives in the pair's Machine.
type Task struct {
	cfg       Config
	deps      Deps
	userID    string
	symbol    string
	machine   *position.Machine
	window    *signal.Window
	threshold float64
	log       *logger.Entry
	now       func() time.Time

	mu     sync.RWMutex
	status Status
}

func NewTask(cfg Config, deps Deps, machine *position.Machine) (*Task, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if machine == nil {
		return nil, fmt.Errorf("%w: position machine", ErrMissingDependency)
	}
	if deps.Sink == nil {
		deps.Sink = events.Discard
	}
	threshold := cfg.ConfidenceThreshold
	if deps.Threshold > 0 {
		threshold = deps.Threshold
	}
	t := &Task{
		cfg:       cfg,
		deps:      deps,
		userID:    machine.UserID(),
		symbol:    machine.Symbol(),
		machine:   machine,
		window:    signal.NewWindow(cfg.WindowSize),
		threshold: threshold,
		now:       func() time.Time { return time.Now().UTC() },
		log: logger.WithFields(logger.Fields{
			"user_id": machine.UserID(),
			"symbol":  machine.Symbol(),
		}),
	}
	t.status = Status{UserID: t.userID, Symbol: t.symbol, State: position.StateFlat}
	return t, nil
}

// Run loops until ctx is cancelled or the position invariant is broken.
// Transient failures are recorded in the status and retried after the
// backoff.
func (t *Task) Run(ctx context.Context) error {
	t.markStarted()
	metrics.TaskStarted()
	defer metrics.TaskStopped()
	t.log.Info("trading loop started")

	for {
		if ctx.Err() != nil {
			t.markStopped(nil)
			t.log.Info("trading loop stopped")
			return nil
		}

		wait, err := t.tick(ctx)
		if err != nil {
			if errors.Is(err, position.ErrInvariantViolation) {
				t.log.WithError(err).Error("position invariant violated, aborting loop")
				if t.deps.Exceptions != nil {
					t.deps.Exceptions.Capture(context.WithoutCancel(ctx), "executors", "Task.Run", "fatal", err, map[string]interface{}{
						"user_id": t.userID,
						"symbol":  t.symbol,
					})
				}
				t.markStopped(err)
				return err
			}
			if ctx.Err() == nil {
				t.log.WithError(err).Warn("tick failed, backing off")
				t.recordError(err)
				wait = t.cfg.RetryBackoff
			}
		}

		if !sleep(ctx, wait) {
			t.markStopped(nil)
			t.log.Info("trading loop stopped")
			return nil
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// tick runs one iteration and returns how long to wait before the next.
// Stateful feeds and the quotes they give venues are scoped to the user.
func (t *Task) tick(ctx context.Context) (time.Duration, error) {
	ctx = marketdata.WithStream(ctx, t.userID)
	bar, err := t.fetch(ctx)
	if err != nil {
		metrics.RecordFetchError(t.symbol)
		return 0, err
	}
	metrics.RecordTick(t.symbol)
	t.recordTick(bar)

	err = t.machine.Transact(ctx, func(tx *position.Tx) error {
		if pos, open := tx.Position(); open {
			return t.manageOpen(ctx, tx, pos, bar)
		}
		return t.considerEntry(ctx, tx, bar)
	})

	pos, open := t.machine.Snapshot()
	metrics.SetPositionOpen(t.userID, t.symbol, open)
	t.recordPosition(pos, open)
	if err != nil {
		return 0, err
	}
	if open {
		return t.cfg.CadenceOpen, nil
	}
	return t.cfg.CadenceFlat, nil
}

// fetch returns the newest bar and keeps the window current. The first call
// seeds the window with history ending at the current tick.
func (t *Task) fetch(ctx context.Context) (model.Bar, error) {
	fctx, cancel := context.WithTimeout(ctx, t.cfg.FetchTimeout)
	defer cancel()

	bar, err := t.deps.Feed.GetTick(fctx, t.symbol)
	if err != nil {
		return model.Bar{}, fmt.Errorf("get tick: %w", err)
	}

	if t.window.Len() == 0 && t.cfg.HistoryBars > 0 {
		from := bar.Timestamp.Add(-time.Duration(t.cfg.HistoryBars) * t.cfg.HistoryInterval)
		history, err := t.deps.Feed.GetHistory(fctx, t.symbol, t.cfg.HistoryInterval, from, bar.Timestamp)
		switch {
		case errors.Is(err, marketdata.ErrNoData):
			t.log.Warn("no history to seed the window, starting from the current tick")
		case err != nil:
			return model.Bar{}, fmt.Errorf("get history: %w", err)
		default:
			n := t.window.Seed(history)
			t.log.WithField("bars", n).Debug("window seeded")
		}
	}
	t.window.Push(bar)
	return bar, nil
}

func (t *Task) detect() (*model.Signal, error) {
	sig, err := t.deps.Detector.Detect(t.window.Bars())
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}
	if sig != nil {
		metrics.RecordSignal(t.symbol, string(sig.Action), sig.Actionable(t.threshold))
	}
	return sig, nil
}

// manageOpen checks the risk rules first, then an opposing signal. A signal
// in the direction of the position is ignored.
func (t *Task) manageOpen(ctx context.Context, tx *position.Tx, pos model.Position, bar model.Bar) error {
	if exit := t.deps.Risk.Evaluate(pos, bar.Close); exit != nil {
		t.log.WithFields(logger.Fields{
			"reason": exit.Reason,
			"return": exit.Return.StringFixed(4),
			"price":  bar.Close,
		}).Info("risk exit triggered")
		return t.exit(ctx, tx, pos, bar, exit.Reason, nil)
	}

	sig, err := t.detect()
	if err != nil || sig == nil || !sig.Actionable(t.threshold) {
		return err
	}
	if !pos.Side.Opposes(sig.Action) {
		t.log.WithField("pattern", sig.PatternName).Debug("signal agrees with open position, holding")
		return nil
	}
	t.log.WithFields(logger.Fields{
		"pattern":    sig.PatternName,
		"confidence": sig.Confidence,
	}).Info("opposing signal, closing position")
	return t.exit(ctx, tx, pos, bar, model.ExitSignalReversal, sig)
}

func (t *Task) considerEntry(ctx context.Context, tx *position.Tx, bar model.Bar) error {
	sig, err := t.detect()
	if err != nil || sig == nil {
		return err
	}
	if !sig.Actionable(t.threshold) {
		t.log.WithFields(logger.Fields{
			"pattern":    sig.PatternName,
			"confidence": sig.Confidence,
		}).Debug("signal below confidence threshold")
		return nil
	}

	size, session := t.deps.Risk.Sessions().EntrySize(decimal.NewFromFloat(t.cfg.LotFor(t.symbol)), t.now())
	if !size.IsPositive() {
		t.log.WithField("session", session).Info("entry blocked by session policy")
		return nil
	}

	side := sig.Action.PositionSide()
	intent := model.OrderIntent{
		Symbol:   t.symbol,
		Side:     side.EntrySide(),
		Type:     model.OrderTypeMarket,
		Quantity: size.InexactFloat64(),
	}
	res, err := t.submit(ctx, model.OrderDirectionEntry, intent)
	if err != nil {
		return err
	}

	event := t.event(model.OrderDirectionEntry, side, intent, res, sig)
	if !filledAny(res) {
		t.unfilled(ctx, intent, res, event)
		return nil
	}

	qty, price := t.fill(intent, res, bar)
	pos, err := tx.Open(side, qty, price, t.now())
	if err != nil {
		return fmt.Errorf("open position: %w", err)
	}
	t.markFill(&event, res, qty, price)
	t.persist(ctx, event)
	t.log.WithFields(logger.Fields{
		"side":     pos.Side,
		"quantity": pos.Quantity,
		"entry":    pos.EntryPrice,
		"pattern":  sig.PatternName,
	}).Info("position opened")
	return nil
}

func (t *Task) exit(ctx context.Context, tx *position.Tx, pos model.Position, bar model.Bar, reason model.ExitReason, sig *model.Signal) error {
	intent := model.OrderIntent{
		Symbol:     t.symbol,
		Side:       pos.Side.ExitSide(),
		Type:       model.OrderTypeMarket,
		Quantity:   pos.Quantity,
		ReduceOnly: true,
	}
	res, err := t.submit(ctx, model.OrderDirectionExit, intent)
	if err != nil {
		return err
	}

	event := t.event(model.OrderDirectionExit, pos.Side, intent, res, sig)
	event.Reason = string(reason)
	if res.Reason != "" && res.Status != model.OrderStatusFilled {
		event.Reason = string(reason) + ": " + res.Reason
	}
	if !filledAny(res) {
		t.unfilled(ctx, intent, res, event)
		return nil
	}

	qty, price := t.fill(intent, res, bar)
	_, remaining, err := tx.Close(qty, price)
	if err != nil {
		return fmt.Errorf("close position: %w", err)
	}
	t.markFill(&event, res, qty, price)
	t.persist(ctx, event)
	metrics.RecordExit(t.symbol, string(reason))

	entry := t.log.WithFields(logger.Fields{
		"reason":    reason,
		"exit":      price,
		"entry":     pos.EntryPrice,
		"remaining": remaining,
	})
	if remaining > 0 {
		entry.Warn("exit partially filled, position still open")
	} else {
		entry.Info("position closed")
	}
	return nil
}

// filledAny reports whether the venue executed any quantity. A cancelled or
// unresolved order can still carry a partial fill, and that fill moved the
// venue's position.
func filledAny(res model.OrderResult) bool {
	return res.Status == model.OrderStatusFilled || res.FilledQuantity > 0
}

// fill returns the confirmed quantity and price of a result that filled.
// The position always uses the fill, never the intent.
func (t *Task) fill(intent model.OrderIntent, res model.OrderResult, bar model.Bar) (qty, price float64) {
	qty, price = res.FilledQuantity, res.AvgFillPrice
	if qty <= 0 && res.Status == model.OrderStatusFilled {
		qty = intent.Quantity
	}
	if price <= 0 {
		t.log.WithField("venue_order_id", res.VenueOrderID).Warn("fill without price, using last close")
		price = bar.Close
	}
	return qty, price
}

// markFill turns event into the record of the executed quantity. A partial
// fill is logged as FILLED so the event log rebuilds the same position; the
// order's own status goes into the reason.
func (t *Task) markFill(event *model.TradeEvent, res model.OrderResult, qty, price float64) {
	event.Quantity = decimal.NewFromFloat(qty)
	event.Price = decimal.NewFromFloat(price)
	if res.Status == model.OrderStatusFilled {
		return
	}
	t.log.WithFields(logger.Fields{
		"status":         res.Status,
		"venue_order_id": res.VenueOrderID,
		"filled":         qty,
	}).Warn("order partially filled, applying the executed quantity")
	note := fmt.Sprintf("partial fill, order %s", res.Status)
	if event.Reason != "" {
		note = event.Reason + "; " + note
	}
	event.Status = model.OrderStatusFilled
	event.Reason = note
}

// unfilled records an order that did not change the position.
func (t *Task) unfilled(ctx context.Context, intent model.OrderIntent, res model.OrderResult, event model.TradeEvent) {
	fields := logger.Fields{
		"side":           intent.Side,
		"status":         res.Status,
		"venue_order_id": res.VenueOrderID,
		"reason":         res.Reason,
	}
	switch {
	case res.Status == model.OrderStatusSubmitted:
		t.log.WithFields(fields).Error("order still unresolved after reconciliation")
	default:
		t.log.WithFields(fields).Warn("order not filled")
	}
	if res.Reason != "" && event.Reason == "" {
		event.Reason = res.Reason
	}
	t.persist(ctx, event)
}

func (t *Task) event(dir string, side model.PositionSide, intent model.OrderIntent, res model.OrderResult, sig *model.Signal) model.TradeEvent {
	e := model.TradeEvent{
		UserID:       t.userID,
		Symbol:       t.symbol,
		Side:         intent.Side,
		PositionSide: side,
		OrderDir:     dir,
		Quantity:     decimal.NewFromFloat(intent.Quantity),
		Price:        decimal.NewFromFloat(res.AvgFillPrice),
		Status:       res.Status,
		VenueOrderID: res.VenueOrderID,
		Timestamp:    t.now(),
	}
	if sig != nil {
		e.PatternName = sig.PatternName
		e.Confidence = sig.Confidence
		if dir == model.OrderDirectionEntry {
			e.Reason = sig.Reason
		}
	}
	return e
}

// persist hands the event to the sink. A sink failure is logged and does not
// undo the committed transition.
func (t *Task) persist(ctx context.Context, event model.TradeEvent) {
	if err := t.deps.Sink.Record(context.WithoutCancel(ctx), event); err != nil {
		t.log.WithError(err).WithField("status", event.Status).Error("failed to record trade event")
	}
}

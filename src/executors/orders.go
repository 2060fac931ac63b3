package executors

import (
	"context"
	"fmt"
	"time"

	"autotrader/src/connectors"
	"autotrader/src/metrics"
	"autotrader/src/model"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"
)

// submit places intent and waits until the venue reports a final status, the
// fill timeout cancels it, or ctx ends and the order is reconciled.
func (t *Task) submit(ctx context.Context, dir string, intent model.OrderIntent) (model.OrderResult, error) {
	start := time.Now()
	if intent.ClientOrderID == "" {
		intent.ClientOrderID = "at-" + uuid.NewString()
	}
	log := t.log.WithFields(logger.Fields{
		"direction":       dir,
		"side":            intent.Side,
		"quantity":        intent.Quantity,
		"client_order_id": intent.ClientOrderID,
	})

	pctx, cancel := context.WithTimeout(ctx, t.cfg.OrderTimeout)
	res, err := t.deps.Venue.PlaceOrder(pctx, intent)
	cancel()
	if err != nil {
		log.WithError(err).Error("place order failed")
		found, ok := t.recoverPlaced(ctx, intent.ClientOrderID, log)
		if !ok {
			return model.OrderResult{}, fmt.Errorf("place %s order: %w", dir, err)
		}
		res = found
	}
	log = log.WithField("venue_order_id", res.VenueOrderID)
	log.WithField("status", res.Status).Info("order placed")

	if res.Status == model.OrderStatusSubmitted {
		res = t.awaitFill(ctx, res, log)
	}
	metrics.RecordOrder(t.symbol, dir, string(res.Status), time.Since(start).Seconds())
	return res, nil
}

func (t *Task) awaitFill(ctx context.Context, res model.OrderResult, log *logger.Entry) model.OrderResult {
	deadline := time.NewTimer(t.cfg.FillTimeout)
	defer deadline.Stop()
	poll := time.NewTicker(t.cfg.PollInterval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Warn("task stopping with order in flight, reconciling")
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.cfg.ReconcileTimeout)
			defer cancel()
			return t.cancelAndSettle(rctx, res, log)

		case <-deadline.C:
			log.WithField("fill_timeout", t.cfg.FillTimeout).Warn("order not filled in time, cancelling")
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.cfg.ReconcileTimeout)
			defer cancel()
			return t.cancelAndSettle(rctx, res, log)

		case <-poll.C:
			cur, err := t.queryOrder(ctx, res.VenueOrderID)
			if err != nil {
				log.WithError(err).Warn("order status query failed")
				continue
			}
			res = cur
			if res.Status.Final() {
				log.WithField("status", res.Status).Info("order settled")
				return res
			}
		}
	}
}

// recoverPlaced asks the venue whether an order whose placement failed was
// accepted anyway. ok is false when the venue cannot look orders up by
// client id or does not know the order.
func (t *Task) recoverPlaced(ctx context.Context, clientOrderID string, log *logger.Entry) (model.OrderResult, bool) {
	finder, ok := t.deps.Venue.(connectors.ClientOrderFinder)
	if !ok {
		return model.OrderResult{}, false
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.cfg.ReconcileTimeout)
	defer cancel()
	res, err := finder.FindByClientOrderID(rctx, clientOrderID)
	if err != nil {
		log.WithError(err).Warn("order not found after failed placement")
		return model.OrderResult{}, false
	}
	log.WithFields(logger.Fields{
		"venue_order_id": res.VenueOrderID,
		"status":         res.Status,
	}).Warn("order accepted despite placement error")
	return res, true
}

func (t *Task) queryOrder(ctx context.Context, venueOrderID string) (model.OrderResult, error) {
	qctx, cancel := context.WithTimeout(ctx, t.cfg.OrderTimeout)
	defer cancel()
	return t.deps.Venue.GetOrderStatus(qctx, venueOrderID)
}

// cancelAndSettle cancels a pending order and returns its final state. A
// fill that raced the cancel is reported as FILLED.
func (t *Task) cancelAndSettle(ctx context.Context, res model.OrderResult, log *logger.Entry) model.OrderResult {
	cur, err := t.queryOrder(ctx, res.VenueOrderID)
	if err == nil {
		res = cur
		if res.Status.Final() {
			return res
		}
	}

	status, err := t.deps.Venue.CancelOrder(ctx, res.VenueOrderID)
	if err != nil {
		log.WithError(err).Error("cancel order failed")
	}

	cur, qerr := t.queryOrder(ctx, res.VenueOrderID)
	switch {
	case qerr == nil:
		res = cur
	case err == nil && status.Final():
		res.Status = status
	default:
		log.WithError(qerr).Error("order state unknown after cancel")
	}
	return res
}

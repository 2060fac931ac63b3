package connectors

import (
	"context"
	"fmt"
	"sync"

	"autotrader/src/marketdata"
	"autotrader/src/model"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"
)

type paperOrder struct {
	intent model.OrderIntent
	result model.OrderResult
}

// PaperVenue fills against the price a Quoter reports, normally the replay
// feed's current bar. It keeps a cash balance and a net quantity per symbol.
type PaperVenue struct {
	quoter marketdata.Quoter

	mu       sync.Mutex
	balance  float64
	holdings map[string]float64
	orders   map[string]*paperOrder
	clients  map[string]string
	log      *logger.Entry
}

func NewPaperVenue(quoter marketdata.Quoter, balance float64) *PaperVenue {
	return &PaperVenue{
		quoter:   quoter,
		balance:  balance,
		holdings: make(map[string]float64),
		orders:   make(map[string]*paperOrder),
		clients:  make(map[string]string),
		log:      logger.WithField("venue", ModeReplay),
	}
}

func (v *PaperVenue) Balance() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.balance
}

func (v *PaperVenue) Holding(symbol string) float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.holdings[symbol]
}

func (v *PaperVenue) PlaceOrder(ctx context.Context, intent model.OrderIntent) (model.OrderResult, error) {
	id := uuid.NewString()
	if err := validateIntent(intent); err != nil {
		return v.remember(id, intent, model.OrderResult{VenueOrderID: id, Status: model.OrderStatusRejected, Reason: err.Error()}), nil
	}
	price, err := v.quoter.Quote(ctx, intent.Symbol)
	if err != nil {
		return model.OrderResult{}, fmt.Errorf("paper quote %s: %w", intent.Symbol, err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	order := &paperOrder{intent: intent, result: model.OrderResult{VenueOrderID: id, Status: model.OrderStatusSubmitted}}
	v.orders[id] = order
	if intent.ClientOrderID != "" {
		v.clients[intent.ClientOrderID] = id
	}
	v.tryFill(order, price)

	v.log.WithFields(logger.Fields{
		"symbol":   intent.Symbol,
		"side":     intent.Side,
		"qty":      intent.Quantity,
		"status":   order.result.Status,
		"price":    order.result.AvgFillPrice,
		"order_id": id,
	}).Info("paper order")
	return order.result, nil
}

func (v *PaperVenue) remember(id string, intent model.OrderIntent, res model.OrderResult) model.OrderResult {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.orders[id] = &paperOrder{intent: intent, result: res}
	if intent.ClientOrderID != "" {
		v.clients[intent.ClientOrderID] = id
	}
	return res
}

// tryFill must be called with v.mu held.
func (v *PaperVenue) tryFill(o *paperOrder, price float64) {
	in := o.intent
	if in.Type == model.OrderTypeLimit {
		limit := *in.LimitPrice
		crossed := (in.Side == model.OrderSideBuy && price <= limit) ||
			(in.Side == model.OrderSideSell && price >= limit)
		if !crossed {
			return
		}
		price = limit
	}

	notional := in.Quantity * price
	if in.Side == model.OrderSideBuy {
		if notional > v.balance {
			o.result.Status = model.OrderStatusRejected
			o.result.Reason = fmt.Sprintf("insufficient balance: need %.2f have %.2f", notional, v.balance)
			return
		}
		v.balance -= notional
		v.holdings[in.Symbol] += in.Quantity
	} else {
		v.balance += notional
		v.holdings[in.Symbol] -= in.Quantity
	}
	o.result.Status = model.OrderStatusFilled
	o.result.FilledQuantity = in.Quantity
	o.result.AvgFillPrice = price
}

func (v *PaperVenue) GetOrderStatus(ctx context.Context, venueOrderID string) (model.OrderResult, error) {
	v.mu.Lock()
	order, ok := v.orders[venueOrderID]
	if !ok {
		v.mu.Unlock()
		return model.OrderResult{}, fmt.Errorf("%w: %s", ErrOrderNotFound, venueOrderID)
	}
	if order.result.Status != model.OrderStatusSubmitted {
		res := order.result
		v.mu.Unlock()
		return res, nil
	}
	symbol := order.intent.Symbol
	v.mu.Unlock()

	price, err := v.quoter.Quote(ctx, symbol)
	if err != nil {
		return model.OrderResult{}, fmt.Errorf("paper quote %s: %w", symbol, err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if order.result.Status == model.OrderStatusSubmitted {
		v.tryFill(order, price)
	}
	return order.result, nil
}

func (v *PaperVenue) CancelOrder(_ context.Context, venueOrderID string) (model.OrderStatus, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	order, ok := v.orders[venueOrderID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrOrderNotFound, venueOrderID)
	}
	if order.result.Status == model.OrderStatusSubmitted {
		order.result.Status = model.OrderStatusCancelled
		order.result.Reason = "cancelled by client"
	}
	return order.result.Status, nil
}

func (v *PaperVenue) FindByClientOrderID(ctx context.Context, clientOrderID string) (model.OrderResult, error) {
	v.mu.Lock()
	id, ok := v.clients[clientOrderID]
	v.mu.Unlock()
	if !ok {
		return model.OrderResult{}, fmt.Errorf("%w: client id %s", ErrOrderNotFound, clientOrderID)
	}
	return v.GetOrderStatus(ctx, id)
}

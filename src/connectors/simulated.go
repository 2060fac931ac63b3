package connectors

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"autotrader/src/marketdata"
	"autotrader/src/model"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"
)

// SimulatedVenue fills market orders immediately at the quoted price with
// random slippage, so fills track the feed the loop trades on. Without a
// quoter it fills around a fixed base price. Limit orders fill at their
// limit price.
type SimulatedVenue struct {
	quoter     marketdata.Quoter
	basePrice  float64
	slippage   float64
	rejectRate float64

	mu      sync.Mutex
	rng     *rand.Rand
	orders  map[string]model.OrderResult
	clients map[string]string
	log     *logger.Entry
}

func NewSimulatedVenue(quoter marketdata.Quoter, basePrice, slippage, rejectRate float64, seed int64) *SimulatedVenue {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &SimulatedVenue{
		quoter:     quoter,
		basePrice:  basePrice,
		slippage:   slippage,
		rejectRate: rejectRate,
		rng:        rand.New(rand.NewSource(seed)),
		orders:     make(map[string]model.OrderResult),
		clients:    make(map[string]string),
		log:        logger.WithField("venue", ModeRandom),
	}
}

func (v *SimulatedVenue) PlaceOrder(ctx context.Context, intent model.OrderIntent) (model.OrderResult, error) {
	if err := ctx.Err(); err != nil {
		return model.OrderResult{}, err
	}
	id := uuid.NewString()
	if err := validateIntent(intent); err != nil {
		res := model.OrderResult{VenueOrderID: id, Status: model.OrderStatusRejected, Reason: err.Error()}
		v.store(intent.ClientOrderID, res)
		return res, nil
	}

	price := v.basePrice
	if v.quoter != nil && intent.Type != model.OrderTypeLimit {
		q, err := v.quoter.Quote(ctx, intent.Symbol)
		if err != nil {
			return model.OrderResult{}, fmt.Errorf("simulated quote %s: %w", intent.Symbol, err)
		}
		price = q
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	res := model.OrderResult{VenueOrderID: id}
	switch {
	case v.rejectRate > 0 && v.rng.Float64() < v.rejectRate:
		res.Status = model.OrderStatusRejected
		res.Reason = "simulated rejection"
	case intent.Type == model.OrderTypeLimit:
		res.Status = model.OrderStatusFilled
		res.FilledQuantity = intent.Quantity
		res.AvgFillPrice = *intent.LimitPrice
	default:
		res.Status = model.OrderStatusFilled
		res.FilledQuantity = intent.Quantity
		res.AvgFillPrice = price + (v.rng.Float64()*2-1)*v.slippage
	}
	v.orders[id] = res
	if intent.ClientOrderID != "" {
		v.clients[intent.ClientOrderID] = id
	}

	v.log.WithFields(logger.Fields{
		"symbol":   intent.Symbol,
		"side":     intent.Side,
		"qty":      intent.Quantity,
		"status":   res.Status,
		"price":    res.AvgFillPrice,
		"order_id": id,
	}).Info("simulated order")
	return res, nil
}

func (v *SimulatedVenue) store(clientOrderID string, res model.OrderResult) {
	v.mu.Lock()
	v.orders[res.VenueOrderID] = res
	if clientOrderID != "" {
		v.clients[clientOrderID] = res.VenueOrderID
	}
	v.mu.Unlock()
}

func (v *SimulatedVenue) CancelOrder(_ context.Context, venueOrderID string) (model.OrderStatus, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	res, ok := v.orders[venueOrderID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrOrderNotFound, venueOrderID)
	}
	return res.Status, nil
}

func (v *SimulatedVenue) GetOrderStatus(_ context.Context, venueOrderID string) (model.OrderResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	res, ok := v.orders[venueOrderID]
	if !ok {
		return model.OrderResult{}, fmt.Errorf("%w: %s", ErrOrderNotFound, venueOrderID)
	}
	return res, nil
}

func (v *SimulatedVenue) FindByClientOrderID(ctx context.Context, clientOrderID string) (model.OrderResult, error) {
	v.mu.Lock()
	id, ok := v.clients[clientOrderID]
	v.mu.Unlock()
	if !ok {
		return model.OrderResult{}, fmt.Errorf("%w: client id %s", ErrOrderNotFound, clientOrderID)
	}
	return v.GetOrderStatus(ctx, id)
}

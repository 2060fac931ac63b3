package connectors

import (
	"context"
	"errors"

	"autotrader/src/model"
)

var (
	ErrOrderNotFound      = errors.New("connectors: order not found")
	ErrUnknownVenueMode   = errors.New("connectors: unknown venue mode")
	ErrMissingCredentials = errors.New("connectors: live venue requires api key and secret")
	ErrInvalidIntent      = errors.New("connectors: invalid order intent")
)

// ExecutionPort is the write side of a trading venue. Implementations are
// shared by every task and must be safe for concurrent use.
type ExecutionPort interface {
	PlaceOrder(ctx context.Context, intent model.OrderIntent) (model.OrderResult, error)
	CancelOrder(ctx context.Context, venueOrderID string) (model.OrderStatus, error)
	GetOrderStatus(ctx context.Context, venueOrderID string) (model.OrderResult, error)
}

// ClientOrderFinder looks an order up by the ClientOrderID of its intent.
// The control loop uses it when PlaceOrder failed without telling whether
// the venue accepted the order.
type ClientOrderFinder interface {
	FindByClientOrderID(ctx context.Context, clientOrderID string) (model.OrderResult, error)
}

func validateIntent(intent model.OrderIntent) error {
	switch {
	case intent.Symbol == "":
		return errors.Join(ErrInvalidIntent, errors.New("symbol is empty"))
	case intent.Quantity <= 0:
		return errors.Join(ErrInvalidIntent, errors.New("quantity must be positive"))
	case intent.Side != model.OrderSideBuy && intent.Side != model.OrderSideSell:
		return errors.Join(ErrInvalidIntent, errors.New("unknown side "+string(intent.Side)))
	case intent.Type == model.OrderTypeLimit && (intent.LimitPrice == nil || *intent.LimitPrice <= 0):
		return errors.Join(ErrInvalidIntent, errors.New("limit order without price"))
	}
	return nil
}

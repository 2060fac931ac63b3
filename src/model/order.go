package model

const (
	OrderDirectionEntry = "entry"
	OrderDirectionExit  = "exit"
)

type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

type OrderStatus string

const (
	OrderStatusSubmitted OrderStatus = "SUBMITTED"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusRejected  OrderStatus = "REJECTED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Accepted is true for results that may lead to a position change.
func (s OrderStatus) Accepted() bool {
	return s == OrderStatusFilled || s == OrderStatusSubmitted
}

// Final is true once the venue will not change the status any more.
func (s OrderStatus) Final() bool {
	return s == OrderStatusFilled || s == OrderStatusRejected || s == OrderStatusCancelled
}

// OrderIntent is what the control loop asks a venue to do. ClientOrderID
// lets the order be found again when the placement response is lost.
// ReduceOnly orders may only shrink an existing position.
type OrderIntent struct {
	Symbol        string    `json:"symbol"`
	Side          OrderSide `json:"side"`
	Type          OrderType `json:"type"`
	Quantity      float64   `json:"quantity"`
	LimitPrice    *float64  `json:"limit_price,omitempty"`
	ClientOrderID string    `json:"client_order_id,omitempty"`
	ReduceOnly    bool      `json:"reduce_only,omitempty"`
}

// OrderResult is the venue's answer to an intent or a status query.
type OrderResult struct {
	VenueOrderID   string      `json:"venue_order_id"`
	Status         OrderStatus `json:"status"`
	FilledQuantity float64     `json:"filled_quantity"`
	AvgFillPrice   float64     `json:"avg_fill_price"`
	Reason         string      `json:"reason,omitempty"`
}

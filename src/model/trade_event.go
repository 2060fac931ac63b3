package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeEvent is the immutable record the control loop emits for every order
// outcome it commits. Open positions can be rebuilt from the FILLED rows.
type TradeEvent struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	UserID       string          `gorm:"size:64;not null;index:idx_trade_events_user_symbol,priority:1" json:"user_id"`
	Symbol       string          `gorm:"size:50;not null;index:idx_trade_events_user_symbol,priority:2" json:"symbol"`
	Side         OrderSide       `gorm:"size:10;not null" json:"side"`
	PositionSide PositionSide    `gorm:"size:10;not null" json:"position_side"`
	OrderDir     string          `gorm:"size:10;not null" json:"order_dir"`
	Quantity     decimal.Decimal `gorm:"type:numeric;not null" json:"quantity"`
	Price        decimal.Decimal `gorm:"type:numeric;not null" json:"price"`
	Status       OrderStatus     `gorm:"size:20;not null;index" json:"status"`
	Reason       string          `gorm:"size:255" json:"reason,omitempty"`
	PatternName  string          `gorm:"size:100" json:"pattern_name,omitempty"`
	Confidence   float64         `json:"confidence,omitempty"`
	VenueOrderID string          `gorm:"size:100;index" json:"venue_order_id,omitempty"`
	Timestamp    time.Time       `gorm:"column:occurred_at;not null;index" json:"timestamp"`
	CreatedAt    time.Time       `json:"created_at"`
}

func (TradeEvent) TableName() string {
	return "trade_events"
}

// Filled reports whether the event changed a position.
func (e TradeEvent) Filled() bool {
	return e.Status == OrderStatusFilled
}

package model

import "time"

type PositionSide string

const (
	SideLong  PositionSide = "LONG"
	SideShort PositionSide = "SHORT"
)

// EntrySide is the order side that opens a position on this side.
func (s PositionSide) EntrySide() OrderSide {
	if s == SideShort {
		return OrderSideSell
	}
	return OrderSideBuy
}

// ExitSide is the order side that closes a position on this side.
func (s PositionSide) ExitSide() OrderSide {
	if s == SideShort {
		return OrderSideBuy
	}
	return OrderSideSell
}

// Opposes reports whether an action points against this side.
func (s PositionSide) Opposes(a Action) bool {
	return a.PositionSide() != s
}

// Position is the open exposure of a user on a symbol. Only the position
// state machine creates or changes one; everybody else gets copies.
type Position struct {
	UserID     string       `json:"user_id"`
	Symbol     string       `json:"symbol"`
	Side       PositionSide `json:"side"`
	Quantity   float64      `json:"quantity"`
	EntryPrice float64      `json:"entry_price"`
	OpenedAt   time.Time    `json:"opened_at"`
}

type ExitReason string

const (
	ExitStopLoss       ExitReason = "STOP_LOSS"
	ExitTakeProfit     ExitReason = "TAKE_PROFIT"
	ExitSignalReversal ExitReason = "SIGNAL_REVERSAL"
)

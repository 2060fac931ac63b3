package model

import "time"

type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// PositionSide returns the side a position opened by this action would take.
func (a Action) PositionSide() PositionSide {
	if a == ActionSell {
		return SideShort
	}
	return SideLong
}

// Signal is the output of a detector for one window.
type Signal struct {
	Symbol         string    `json:"symbol"`
	Action         Action    `json:"action"`
	Confidence     float64   `json:"confidence"`
	ReferencePrice float64   `json:"reference_price"`
	PatternName    string    `json:"pattern_name"`
	Reason         string    `json:"reason"`
	Timestamp      time.Time `json:"timestamp"`
}

// Actionable reports whether the signal clears the confidence threshold.
func (s Signal) Actionable(threshold float64) bool {
	return s.Confidence >= threshold
}

package position

import (
	"fmt"
	"sort"

	"autotrader/src/model"
)

// Rebuild replays the FILLED events of one (user, symbol) and returns the
// position still open at the end, or nil.
func Rebuild(events []model.TradeEvent) (*model.Position, error) {
	filled := make([]model.TradeEvent, 0, len(events))
	for _, e := range events {
		if e.Filled() {
			filled = append(filled, e)
		}
	}
	sort.SliceStable(filled, func(i, j int) bool {
		if filled[i].Timestamp.Equal(filled[j].Timestamp) {
			return filled[i].ID < filled[j].ID
		}
		return filled[i].Timestamp.Before(filled[j].Timestamp)
	})

	var pos *model.Position
	for _, e := range filled {
		qty := e.Quantity.InexactFloat64()
		switch e.OrderDir {
		case model.OrderDirectionEntry:
			if pos != nil {
				return nil, fmt.Errorf("%w: entry event %d while %s position open", ErrInvariantViolation, e.ID, pos.Side)
			}
			pos = &model.Position{
				UserID:     e.UserID,
				Symbol:     e.Symbol,
				Side:       e.PositionSide,
				Quantity:   qty,
				EntryPrice: e.Price.InexactFloat64(),
				OpenedAt:   e.Timestamp,
			}
		case model.OrderDirectionExit:
			if pos == nil {
				return nil, fmt.Errorf("%w: exit event %d without open position", ErrInvariantViolation, e.ID)
			}
			pos.Quantity -= qty
			if pos.Quantity <= 1e-9 {
				pos = nil
			}
		}
	}
	return pos, nil
}

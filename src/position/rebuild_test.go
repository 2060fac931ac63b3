package position

import (
	"testing"
	"time"

	"autotrader/src/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func event(id uint, dir string, side model.PositionSide, qty, price float64, status model.OrderStatus, at time.Time) model.TradeEvent {
	return model.TradeEvent{
		ID:           id,
		UserID:       "u1",
		Symbol:       "NIFTY",
		OrderDir:     dir,
		PositionSide: side,
		Quantity:     decimal.NewFromFloat(qty),
		Price:        decimal.NewFromFloat(price),
		Status:       status,
		Timestamp:    at,
	}
}

func TestRebuild(t *testing.T) {
	entry := model.OrderDirectionEntry
	exit := model.OrderDirectionExit
	filled := model.OrderStatusFilled

	t.Run("no events", func(t *testing.T) {
		pos, err := Rebuild(nil)
		require.NoError(t, err)
		assert.Nil(t, pos)
	})

	t.Run("open after round trip", func(t *testing.T) {
		pos, err := Rebuild([]model.TradeEvent{
			event(1, entry, model.SideLong, 1, 100, filled, now),
			event(2, exit, model.SideLong, 1, 102, filled, now.Add(time.Minute)),
			event(3, entry, model.SideShort, 2, 101, model.OrderStatusRejected, now.Add(2*time.Minute)),
			event(4, entry, model.SideShort, 2, 101.5, filled, now.Add(3*time.Minute)),
		})
		require.NoError(t, err)
		require.NotNil(t, pos)
		assert.Equal(t, model.SideShort, pos.Side)
		assert.Equal(t, 2.0, pos.Quantity)
		assert.Equal(t, 101.5, pos.EntryPrice)
	})

	t.Run("partial exit keeps remainder", func(t *testing.T) {
		pos, err := Rebuild([]model.TradeEvent{
			event(2, exit, model.SideLong, 1, 102, filled, now.Add(time.Minute)),
			event(1, entry, model.SideLong, 3, 100, filled, now),
		})
		require.NoError(t, err)
		require.NotNil(t, pos)
		assert.Equal(t, 2.0, pos.Quantity)
	})

	t.Run("double entry is a violation", func(t *testing.T) {
		_, err := Rebuild([]model.TradeEvent{
			event(1, entry, model.SideLong, 1, 100, filled, now),
			event(2, entry, model.SideLong, 1, 100, filled, now.Add(time.Minute)),
		})
		require.ErrorIs(t, err, ErrInvariantViolation)
	})

	t.Run("exit without entry is a violation", func(t *testing.T) {
		_, err := Rebuild([]model.TradeEvent{event(1, exit, model.SideLong, 1, 100, filled, now)})
		require.ErrorIs(t, err, ErrInvariantViolation)
	})
}

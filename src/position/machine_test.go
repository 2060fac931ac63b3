package position

import (
	"context"
	"sync"
	"testing"
	"time"

	"autotrader/src/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, time.March, 4, 14, 0, 0, 0, time.UTC)

func TestMachine_OpenThenClose(t *testing.T) {
	m := NewMachine("u1", "NIFTY")
	ctx := context.Background()
	assert.Equal(t, StateFlat, m.State())

	err := m.Transact(ctx, func(tx *Tx) error {
		pos, err := tx.Open(model.SideLong, 2, 100.5, now)
		require.NoError(t, err)
		assert.Equal(t, 100.5, pos.EntryPrice)
		assert.Equal(t, "u1", pos.UserID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StateOpen, m.State())

	err = m.Transact(ctx, func(tx *Tx) error {
		closed, remaining, err := tx.Close(2, 101)
		require.NoError(t, err)
		assert.Zero(t, remaining)
		assert.Equal(t, model.SideLong, closed.Side)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StateFlat, m.State())

	opened, closedCount := m.Transitions()
	assert.Equal(t, 1, opened)
	assert.Equal(t, 1, closedCount)
}

func TestMachine_SecondOpenIsInvariantViolation(t *testing.T) {
	m := NewMachine("u1", "NIFTY")
	err := m.Transact(context.Background(), func(tx *Tx) error {
		if _, err := tx.Open(model.SideLong, 1, 100, now); err != nil {
			return err
		}
		_, err := tx.Open(model.SideShort, 1, 100, now)
		return err
	})
	require.ErrorIs(t, err, ErrInvariantViolation)

	pos, ok := m.Snapshot()
	require.True(t, ok)
	assert.Equal(t, model.SideLong, pos.Side)
}

func TestMachine_CloseErrors(t *testing.T) {
	m := NewMachine("u1", "NIFTY")
	ctx := context.Background()

	err := m.Transact(ctx, func(tx *Tx) error {
		_, _, err := tx.Close(1, 100)
		return err
	})
	require.ErrorIs(t, err, ErrNotOpen)

	require.NoError(t, m.Transact(ctx, func(tx *Tx) error {
		_, err := tx.Open(model.SideShort, 1, 100, now)
		return err
	}))

	err = m.Transact(ctx, func(tx *Tx) error {
		_, _, err := tx.Close(3, 100)
		return err
	})
	require.ErrorIs(t, err, ErrInvariantViolation)

	err = m.Transact(ctx, func(tx *Tx) error {
		_, _, err := tx.Close(1, 0)
		return err
	})
	require.ErrorIs(t, err, ErrInvalidFill)
	assert.Equal(t, StateOpen, m.State())
}

func TestMachine_PartialClose(t *testing.T) {
	m := NewMachine("u1", "NIFTY")
	ctx := context.Background()
	require.NoError(t, m.Transact(ctx, func(tx *Tx) error {
		_, err := tx.Open(model.SideLong, 3, 100, now)
		return err
	}))

	require.NoError(t, m.Transact(ctx, func(tx *Tx) error {
		_, remaining, err := tx.Close(1, 101)
		assert.Equal(t, 2.0, remaining)
		return err
	}))
	pos, ok := m.Snapshot()
	require.True(t, ok)
	assert.Equal(t, 2.0, pos.Quantity)
	assert.Equal(t, 100.0, pos.EntryPrice)
}

func TestMachine_TxUnusableAfterCommit(t *testing.T) {
	m := NewMachine("u1", "NIFTY")
	var leaked *Tx
	require.NoError(t, m.Transact(context.Background(), func(tx *Tx) error {
		leaked = tx
		return nil
	}))
	_, err := leaked.Open(model.SideLong, 1, 100, now)
	require.ErrorIs(t, err, ErrInvariantViolation)
	assert.Equal(t, StateFlat, m.State())
}

// Two ticks racing for the same pair: the second must observe the position
// opened by the first and must not open another.
func TestMachine_ConcurrentTicksOpenOnce(t *testing.T) {
	m := NewMachine("u1", "NIFTY")
	ctx := context.Background()

	var wg sync.WaitGroup
	opens := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			opens <- m.Transact(ctx, func(tx *Tx) error {
				if _, open := tx.Position(); open {
					return nil
				}
				time.Sleep(2 * time.Millisecond)
				_, err := tx.Open(model.SideLong, 1, 100, now)
				return err
			})
		}()
	}
	wg.Wait()
	close(opens)

	for err := range opens {
		require.NoError(t, err)
	}
	opened, _ := m.Transitions()
	assert.Equal(t, 1, opened)
}

func TestMachine_TransactHonoursContext(t *testing.T) {
	m := NewMachine("u1", "NIFTY")
	hold := make(chan struct{})
	entered := make(chan struct{})
	go func() {
		_ = m.Transact(context.Background(), func(tx *Tx) error {
			close(entered)
			<-hold
			return nil
		})
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := m.Transact(ctx, func(tx *Tx) error { return nil })
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// status reads are not blocked by the held transaction
	assert.Equal(t, StateFlat, m.State())
	close(hold)
}

func TestMachine_Restore(t *testing.T) {
	m := NewMachine("u1", "NIFTY")
	require.NoError(t, m.Restore(model.Position{Side: model.SideShort, Quantity: 1, EntryPrice: 99, OpenedAt: now}))

	pos, ok := m.Snapshot()
	require.True(t, ok)
	assert.Equal(t, "NIFTY", pos.Symbol)
	assert.Equal(t, model.SideShort, pos.Side)

	err := m.Restore(model.Position{Side: model.SideLong, Quantity: 1, EntryPrice: 99})
	require.ErrorIs(t, err, ErrInvariantViolation)
}

func TestBook_OneMachinePerPair(t *testing.T) {
	b := NewBook()
	a := b.Machine("u1", "NIFTY")
	assert.Same(t, a, b.Machine("u1", "NIFTY"))
	assert.NotSame(t, a, b.Machine("u2", "NIFTY"))
	assert.NotSame(t, a, b.Machine("u1", "BANKNIFTY"))

	require.NoError(t, a.Restore(model.Position{Side: model.SideLong, Quantity: 1, EntryPrice: 10}))
	assert.Equal(t, 1, b.OpenCount())
}

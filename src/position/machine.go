package position

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"autotrader/src/model"
)

type State string

const (
	StateFlat State = "FLAT"
	StateOpen State = "OPEN"
)

var (
	ErrInvariantViolation = errors.New("position: invariant violation")
	ErrNotOpen            = errors.New("position: no open position")
	ErrInvalidFill        = errors.New("position: fill quantity and price must be positive")
)

// Machine owns the position of one (user, symbol) pair. All transitions run
// inside Transact, one at a time, so a caller always sees the state left by
// the previous transaction.
type Machine struct {
	userID string
	symbol string

	sem chan struct{}

	mu       sync.RWMutex
	position *model.Position
	opened   int
	closed   int
}

func NewMachine(userID, symbol string) *Machine {
	return &Machine{userID: userID, symbol: symbol, sem: make(chan struct{}, 1)}
}

func (m *Machine) UserID() string { return m.userID }
func (m *Machine) Symbol() string { return m.symbol }

// Snapshot returns a copy of the open position. It does not wait for an
// in-flight transaction.
func (m *Machine) Snapshot() (model.Position, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.position == nil {
		return model.Position{}, false
	}
	return *m.position, true
}

func (m *Machine) State() State {
	if _, ok := m.Snapshot(); ok {
		return StateOpen
	}
	return StateFlat
}

// Transitions returns how many positions were opened and fully closed.
func (m *Machine) Transitions() (opened, closed int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.opened, m.closed
}

// Transact runs fn with exclusive access to the machine. It returns
// ctx.Err() if the context ends before access is granted.
func (m *Machine) Transact(ctx context.Context, fn func(tx *Tx) error) error {
	select {
	case m.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-m.sem }()

	tx := &Tx{m: m}
	defer func() { tx.done = true }()
	return fn(tx)
}

// Restore installs a position rebuilt from the event log. It is only valid
// while the machine is flat and before any task drives it.
func (m *Machine) Restore(pos model.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.position != nil {
		return fmt.Errorf("%w: restore over open %s position", ErrInvariantViolation, m.position.Side)
	}
	if pos.Quantity <= 0 || pos.EntryPrice <= 0 {
		return ErrInvalidFill
	}
	pos.UserID, pos.Symbol = m.userID, m.symbol
	m.position = &pos
	m.opened++
	return nil
}

// Tx is the handle a transaction uses to read and change the position.
type Tx struct {
	m    *Machine
	done bool
}

func (tx *Tx) Position() (model.Position, bool) {
	return tx.m.Snapshot()
}

// Open moves FLAT to OPEN using the confirmed fill.
func (tx *Tx) Open(side model.PositionSide, qty, fillPrice float64, at time.Time) (model.Position, error) {
	if tx.done {
		return model.Position{}, fmt.Errorf("%w: transaction already finished", ErrInvariantViolation)
	}
	if qty <= 0 || fillPrice <= 0 {
		return model.Position{}, ErrInvalidFill
	}
	m := tx.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.position != nil {
		return model.Position{}, fmt.Errorf("%w: %s/%s already has an open %s position",
			ErrInvariantViolation, m.userID, m.symbol, m.position.Side)
	}
	m.position = &model.Position{
		UserID:     m.userID,
		Symbol:     m.symbol,
		Side:       side,
		Quantity:   qty,
		EntryPrice: fillPrice,
		OpenedAt:   at,
	}
	m.opened++
	return *m.position, nil
}

// Close reduces the open position by qty. The position is removed when
// nothing is left; remaining reports the quantity still open.
func (tx *Tx) Close(qty, fillPrice float64) (closed model.Position, remaining float64, err error) {
	if tx.done {
		return model.Position{}, 0, fmt.Errorf("%w: transaction already finished", ErrInvariantViolation)
	}
	if qty <= 0 || fillPrice <= 0 {
		return model.Position{}, 0, ErrInvalidFill
	}
	m := tx.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.position == nil {
		return model.Position{}, 0, ErrNotOpen
	}
	const eps = 1e-9
	pos := *m.position
	switch {
	case qty > pos.Quantity+eps:
		return model.Position{}, 0, fmt.Errorf("%w: closing %v of %v", ErrInvariantViolation, qty, pos.Quantity)
	case pos.Quantity-qty <= eps:
		m.position = nil
		m.closed++
		return pos, 0, nil
	default:
		m.position.Quantity = pos.Quantity - qty
		return pos, m.position.Quantity, nil
	}
}

package executors

import (
	"time"

	"autotrader/src/model"
	"autotrader/src/position"
)

// Status is a point in time view of a task for operators.
type Status struct {
	UserID      string          `json:"user_id"`
	Symbol      string          `json:"symbol"`
	Running     bool            `json:"running"`
	State       position.State  `json:"state"`
	Position    *model.Position `json:"position,omitempty"`
	LastError   string          `json:"last_error,omitempty"`
	LastErrorAt *time.Time      `json:"last_error_at,omitempty"`
	LastTickAt  *time.Time      `json:"last_tick_at,omitempty"`
	LastPrice   float64         `json:"last_price,omitempty"`
	Ticks       int64           `json:"ticks"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	StoppedAt   *time.Time      `json:"stopped_at,omitempty"`
}

func (t *Task) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s := t.status
	if s.Position != nil {
		p := *s.Position
		s.Position = &p
	}
	return s
}

func (t *Task) markStarted() {
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.Running = true
	t.status.StartedAt = &now
	t.status.StoppedAt = nil
	if pos, open := t.machine.Snapshot(); open {
		t.status.State = position.StateOpen
		t.status.Position = &pos
	}
}

func (t *Task) markStopped(err error) {
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.Running = false
	t.status.StoppedAt = &now
	if err != nil {
		t.status.LastError = err.Error()
		t.status.LastErrorAt = &now
	}
}

func (t *Task) recordError(err error) {
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.LastError = err.Error()
	t.status.LastErrorAt = &now
}

func (t *Task) recordTick(bar model.Bar) {
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.Ticks++
	t.status.LastTickAt = &now
	t.status.LastPrice = bar.Close
}

func (t *Task) recordPosition(pos model.Position, open bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if open {
		t.status.State = position.StateOpen
		t.status.Position = &pos
		return
	}
	t.status.State = position.StateFlat
	t.status.Position = nil
}

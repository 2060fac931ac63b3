package signal

import "autotrader/src/model"

const DefaultWindowSize = 100

// Window keeps the most recent bars of one symbol in timestamp order.
// It belongs to a single task and is not safe for concurrent use.
type Window struct {
	capacity int
	bars     []model.Bar
}

func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultWindowSize
	}
	return &Window{capacity: capacity, bars: make([]model.Bar, 0, capacity)}
}

// Push appends b when it is strictly newer than the last bar and evicts the
// oldest bar on overflow. It returns false for stale or duplicate bars.
func (w *Window) Push(b model.Bar) bool {
	if n := len(w.bars); n > 0 && !b.Timestamp.After(w.bars[n-1].Timestamp) {
		return false
	}
	if len(w.bars) == w.capacity {
		copy(w.bars, w.bars[1:])
		w.bars = w.bars[:len(w.bars)-1]
	}
	w.bars = append(w.bars, b)
	return true
}

// Seed pushes bars in order and returns how many were accepted.
func (w *Window) Seed(bars []model.Bar) int {
	n := 0
	for _, b := range bars {
		if w.Push(b) {
			n++
		}
	}
	return n
}

// Bars returns a copy of the window contents, oldest first.
func (w *Window) Bars() []model.Bar {
	out := make([]model.Bar, len(w.bars))
	copy(out, w.bars)
	return out
}

func (w *Window) Len() int { return len(w.bars) }

func (w *Window) Last() (model.Bar, bool) {
	if len(w.bars) == 0 {
		return model.Bar{}, false
	}
	return w.bars[len(w.bars)-1], true
}

func (w *Window) Reset() { w.bars = w.bars[:0] }

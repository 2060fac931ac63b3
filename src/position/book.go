package position

import "sync"

type key struct {
	userID string
	symbol string
}

// Book hands out exactly one Machine per (user, symbol).
type Book struct {
	mu       sync.Mutex
	machines map[key]*Machine
}

func NewBook() *Book {
	return &Book{machines: make(map[key]*Machine)}
}

func (b *Book) Machine(userID, symbol string) *Machine {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := key{userID, symbol}
	m, ok := b.machines[k]
	if !ok {
		m = NewMachine(userID, symbol)
		b.machines[k] = m
	}
	return m
}

// OpenCount returns the number of machines currently holding a position.
func (b *Book) OpenCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, m := range b.machines {
		if m.State() == StateOpen {
			n++
		}
	}
	return n
}

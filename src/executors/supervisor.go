package executors

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"autotrader/src/lock"
	"autotrader/src/model"
	"autotrader/src/position"

	logger "github.com/sirupsen/logrus"
)

var (
	ErrPairLocked = errors.New("executors: pair is running in another process")
	ErrNotRunning = errors.New("executors: no running task for pair")
)

// PositionRestorer returns the position a pair still holds according to the
// durable event log.
type PositionRestorer interface {
	OpenPosition(ctx context.Context, userID, symbol string) (*model.Position, error)
}

type pairKey struct {
	userID string
	symbol string
}

type handle struct {
	task   *Task
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func (h *handle) running() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Supervisor starts and stops one Task per (user, symbol). It replaces a
// process wide loop so several users can trade side by side.
type Supervisor struct {
	cfg      Config
	deps     Deps
	book     *position.Book
	lease    lock.DistributedLock
	restorer PositionRestorer

	mu    sync.Mutex
	tasks map[pairKey]*handle
	wg    sync.WaitGroup
}

type Option func(*Supervisor)

func WithLock(l lock.DistributedLock) Option {
	return func(s *Supervisor) { s.lease = l }
}

func WithRestorer(r PositionRestorer) Option {
	return func(s *Supervisor) { s.restorer = r }
}

func WithBook(b *position.Book) Option {
	return func(s *Supervisor) { s.book = b }
}

// NewSupervisor validates the configuration and dependencies up front, so
// fatal configuration errors surface before any task starts.
func NewSupervisor(cfg Config, deps Deps, opts ...Option) (*Supervisor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}
	s := &Supervisor{
		cfg:   cfg,
		deps:  deps,
		book:  position.NewBook(),
		lease: lock.NewNopLock(),
		tasks: make(map[pairKey]*handle),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Book exposes the position machines of every pair.
func (s *Supervisor) Book() *position.Book {
	return s.book
}

// Start launches a task for each symbol of the user. Symbols that already
// run are left alone. Tasks outlive ctx; use Stop to end them.
func (s *Supervisor) Start(ctx context.Context, userID string, symbols []string) error {
	var errs []error
	for _, raw := range symbols {
		symbol := strings.ToUpper(strings.TrimSpace(raw))
		if symbol == "" {
			continue
		}
		if err := s.startOne(ctx, userID, symbol); err != nil {
			errs = append(errs, fmt.Errorf("%s/%s: %w", userID, symbol, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Supervisor) startOne(ctx context.Context, userID, symbol string) error {
	k := pairKey{userID, symbol}
	s.mu.Lock()
	defer s.mu.Unlock()

	if h, ok := s.tasks[k]; ok && h.running() {
		logger.WithFields(logger.Fields{"user_id": userID, "symbol": symbol}).Debug("task already running")
		return nil
	}

	leaseKey := lock.PairKey(userID, symbol)
	ok, err := s.lease.TryLock(ctx, leaseKey, s.cfg.LeaseTTL)
	if err != nil {
		return fmt.Errorf("acquire lease: %w", err)
	}
	if !ok {
		return ErrPairLocked
	}

	machine := s.book.Machine(userID, symbol)
	if err := s.restore(ctx, machine); err != nil {
		s.release(ctx, leaseKey)
		return err
	}

	task, err := NewTask(s.cfg, s.deps, machine)
	if err != nil {
		s.release(ctx, leaseKey)
		return err
	}

	tctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	h := &handle{task: task, cancel: cancel, done: make(chan struct{})}
	s.tasks[k] = h

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(h.done)
		defer s.release(tctx, leaseKey)
		defer cancel()

		go s.keepLease(tctx, cancel, leaseKey, task)
		h.err = task.Run(tctx)
	}()
	return nil
}

// restore installs the open position recorded in the event log, if any.
func (s *Supervisor) restore(ctx context.Context, machine *position.Machine) error {
	if s.restorer == nil || machine.State() == position.StateOpen {
		return nil
	}
	pos, err := s.restorer.OpenPosition(ctx, machine.UserID(), machine.Symbol())
	if err != nil {
		return fmt.Errorf("restore position: %w", err)
	}
	if pos == nil {
		return nil
	}
	if err := machine.Restore(*pos); err != nil {
		return fmt.Errorf("restore position: %w", err)
	}
	logger.WithFields(logger.Fields{
		"user_id":  machine.UserID(),
		"symbol":   machine.Symbol(),
		"side":     pos.Side,
		"quantity": pos.Quantity,
		"entry":    pos.EntryPrice,
	}).Info("open position restored from event log")
	return nil
}

// keepLease extends the pair lease until the task ends. Losing the lease
// stops the task, since another process may now own the pair.
func (s *Supervisor) keepLease(ctx context.Context, cancel context.CancelFunc, key string, task *Task) {
	if _, nop := s.lease.(*lock.NopLock); nop {
		return
	}
	every := s.cfg.LeaseTTL / 3
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.lease.Extend(ctx, key, s.cfg.LeaseTTL); err != nil {
				if ctx.Err() != nil {
					return
				}
				task.log.WithError(err).Error("lost pair lease, stopping task")
				task.recordError(err)
				cancel()
				return
			}
		}
	}
}

func (s *Supervisor) release(ctx context.Context, key string) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.lease.Unlock(rctx, key); err != nil {
		logger.WithError(err).WithField("lease", key).Warn("failed to release pair lease")
	}
}

// Stop cancels the task of a pair and waits for it to finish, including any
// order reconciliation. It returns the task's terminal error.
func (s *Supervisor) Stop(userID, symbol string) error {
	s.mu.Lock()
	h, ok := s.tasks[pairKey{userID, strings.ToUpper(symbol)}]
	s.mu.Unlock()
	if !ok || !h.running() {
		return ErrNotRunning
	}
	h.cancel()
	<-h.done
	return h.err
}

// StopUser stops every task of a user.
func (s *Supervisor) StopUser(userID string) {
	s.stopWhere(func(k pairKey) bool { return k.userID == userID })
}

func (s *Supervisor) StopAll() {
	s.stopWhere(func(pairKey) bool { return true })
}

func (s *Supervisor) stopWhere(match func(pairKey) bool) {
	s.mu.Lock()
	var hs []*handle
	for k, h := range s.tasks {
		if match(k) {
			hs = append(hs, h)
		}
	}
	s.mu.Unlock()

	for _, h := range hs {
		h.cancel()
	}
	for _, h := range hs {
		<-h.done
	}
}

// Wait blocks until every task has ended.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}

// Err returns the terminal error of a finished task.
func (s *Supervisor) Err(userID, symbol string) error {
	s.mu.Lock()
	h, ok := s.tasks[pairKey{userID, strings.ToUpper(symbol)}]
	s.mu.Unlock()
	if !ok || h.running() {
		return nil
	}
	return h.err
}

func (s *Supervisor) Status(userID, symbol string) (Status, bool) {
	s.mu.Lock()
	h, ok := s.tasks[pairKey{userID, strings.ToUpper(symbol)}]
	s.mu.Unlock()
	if !ok {
		return Status{}, false
	}
	return h.task.Status(), true
}

// Statuses returns the tasks of userID, or of everybody when userID is
// empty, sorted by user then symbol.
func (s *Supervisor) Statuses(userID string) []Status {
	s.mu.Lock()
	out := make([]Status, 0, len(s.tasks))
	for k, h := range s.tasks {
		if userID == "" || k.userID == userID {
			out = append(out, h.task.Status())
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

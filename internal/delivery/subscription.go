package delivery

import (
	"errors"
	"sync"

	"go.uber.org/zap"
)

var ErrEngineClosed = errors.New("delivery engine closed")

// Subscription is the handle returned by Register.
type Subscription struct {
	key    string
	done   chan struct{}
	once   sync.Once
	remove func()
}

func (s *Subscription) Key() string { return s.key }

// Cancel stops future deliveries. A delivery already handed to the callback is not retracted.
// Calling Cancel more than once is a no-op.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		close(s.done)
		if s.remove != nil {
			s.remove()
		}
	})
}

// Done is closed once the subscription is cancelled.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// mailbox holds at most one undelivered snapshot. A newer snapshot replaces an older
// one that the callback has not picked up yet; the callback always sees the latest state.
type mailbox[T any] struct {
	onUpdate func(T)
	log      *zap.Logger

	mu      sync.Mutex
	pending *T
	signal  chan struct{}
}

func newMailbox[T any](onUpdate func(T), log *zap.Logger) *mailbox[T] {
	return &mailbox[T]{
		onUpdate: onUpdate,
		log:      log,
		signal:   make(chan struct{}, 1),
	}
}

func (m *mailbox[T]) put(view T) {
	m.mu.Lock()
	m.pending = &view
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
}

func (m *mailbox[T]) take() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pending == nil {
		var zero T
		return zero, false
	}
	view := *m.pending
	m.pending = nil
	return view, true
}

func (m *mailbox[T]) run(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-m.signal:
		}

		view, ok := m.take()
		if !ok {
			continue
		}
		// Cancelled between signal and take: drop silently.
		select {
		case <-done:
			return
		default:
		}
		m.deliver(view)
	}
}

func (m *mailbox[T]) deliver(view T) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("subscriber panicked", zap.Any("panic", r))
		}
	}()
	m.onUpdate(view)
}

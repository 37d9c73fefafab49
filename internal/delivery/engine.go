package delivery

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Loader materializes the current ordered view of a stream.
type Loader[T any] func(ctx context.Context, key string) (T, error)

// Engine pushes full snapshots of a keyed stream to every registered callback.
//
// Publish materializes the view once per call and hands it to each subscription's
// mailbox without waiting for the callback to run. Materialization is serialized
// per key, so a subscription never receives a snapshot older than one it has
// already been given.
type Engine[T any] struct {
	name string
	load Loader[T]
	log  *zap.Logger

	mu        sync.Mutex
	announcer Announcer
	streams   map[string]*stream[T]
	closed    bool
}

type stream[T any] struct {
	// publishing serializes load+enqueue for the key.
	publishing sync.Mutex
	subs       map[*Subscription]*mailbox[T]
}

func NewEngine[T any](name string, load Loader[T], log *zap.Logger) *Engine[T] {
	return &Engine[T]{
		name:    name,
		load:    load,
		log:     log.With(zap.String("stream", name)),
		streams: make(map[string]*stream[T]),
	}
}

// Register adds onUpdate to key and delivers the current view to it right away.
// A failed initial load cancels the registration and returns the error.
func (e *Engine[T]) Register(ctx context.Context, key string, onUpdate func(T)) (*Subscription, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrEngineClosed
	}
	st, ok := e.streams[key]
	if !ok {
		st = &stream[T]{subs: make(map[*Subscription]*mailbox[T])}
		e.streams[key] = st
	}
	sub := &Subscription{key: key, done: make(chan struct{})}
	box := newMailbox(onUpdate, e.log.With(zap.String("key", key)))
	st.subs[sub] = box
	sub.remove = func() { e.remove(key, sub) }
	e.mu.Unlock()

	go box.run(sub.done)

	st.publishing.Lock()
	defer st.publishing.Unlock()

	view, err := e.load(ctx, key)
	if err != nil {
		sub.Cancel()
		return nil, err
	}
	box.put(view)
	return sub, nil
}

// Announcer tells other processes that a stream changed.
type Announcer interface {
	Announce(ctx context.Context, key string) error
}

// WithAnnouncer makes every later Publish also announce the key. It may be called
// while the engine is in use.
func (e *Engine[T]) WithAnnouncer(a Announcer) *Engine[T] {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.announcer = a
	return e
}

// Publish refreshes local subscribers of key and announces the change when an
// announcer is configured. Announce failures are logged, never returned: the local
// write already succeeded.
func (e *Engine[T]) Publish(ctx context.Context, key string) error {
	err := e.Refresh(ctx, key)

	e.mu.Lock()
	announcer := e.announcer
	e.mu.Unlock()
	if announcer != nil {
		if aerr := announcer.Announce(ctx, key); aerr != nil {
			e.log.Warn("announce change failed", zap.String("key", key), zap.Error(aerr))
		}
	}
	return err
}

// Refresh re-materializes key and offers it to every live subscription in this process.
// With no subscribers it returns immediately without loading.
func (e *Engine[T]) Refresh(ctx context.Context, key string) error {
	e.mu.Lock()
	st, ok := e.streams[key]
	e.mu.Unlock()
	if !ok {
		return nil
	}

	st.publishing.Lock()
	defer st.publishing.Unlock()

	boxes := e.mailboxes(st)
	if len(boxes) == 0 {
		return nil
	}

	view, err := e.load(ctx, key)
	if err != nil {
		e.log.Warn("materialize snapshot failed", zap.String("key", key), zap.Error(err))
		return err
	}
	for _, box := range boxes {
		box.put(view)
	}
	return nil
}

// Subscribers returns the number of live subscriptions on key.
func (e *Engine[T]) Subscribers(key string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if st, ok := e.streams[key]; ok {
		return len(st.subs)
	}
	return 0
}

// Close cancels every subscription. Later registrations fail with ErrEngineClosed.
func (e *Engine[T]) Close() {
	e.mu.Lock()
	e.closed = true
	var subs []*Subscription
	for _, st := range e.streams {
		for sub := range st.subs {
			subs = append(subs, sub)
		}
	}
	e.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
}

func (e *Engine[T]) mailboxes(st *stream[T]) []*mailbox[T] {
	e.mu.Lock()
	defer e.mu.Unlock()

	boxes := make([]*mailbox[T], 0, len(st.subs))
	for _, box := range st.subs {
		boxes = append(boxes, box)
	}
	return boxes
}

func (e *Engine[T]) remove(key string, sub *Subscription) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.streams[key]
	if !ok {
		return
	}
	delete(st.subs, sub)
	if len(st.subs) == 0 {
		delete(e.streams, key)
	}
}

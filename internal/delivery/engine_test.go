package delivery

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// counterStore is a stream whose state is a version number per key.
type counterStore struct {
	mu       sync.Mutex
	versions map[string]int
	loads    atomic.Int32
}

func newCounterStore() *counterStore {
	return &counterStore{versions: map[string]int{}}
}

func (c *counterStore) bump(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[key]++
}

func (c *counterStore) load(_ context.Context, key string) (int, error) {
	c.loads.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.versions[key], nil
}

type recorder struct {
	mu   sync.Mutex
	seen []int
}

func (r *recorder) add(v int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, v)
}

func (r *recorder) last() (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.seen) == 0 {
		return 0, false
	}
	return r.seen[len(r.seen)-1], true
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

func waitForLast(t *testing.T, r *recorder, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		v, ok := r.last()
		return ok && v == want
	}, time.Second, 5*time.Millisecond)
}

func TestEngine_Register_DeliversCurrentView(t *testing.T) {
	req := require.New(t)
	store := newCounterStore()
	store.bump("room")
	engine := NewEngine[int]("test", store.load, zap.NewNop())
	rec := &recorder{}

	sub, err := engine.Register(context.Background(), "room", rec.add)
	req.NoError(err)
	defer sub.Cancel()

	waitForLast(t, rec, 1)
	req.Equal(1, engine.Subscribers("room"))
}

func TestEngine_Publish_DeliversSnapshotToEverySubscriber(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := newCounterStore()
	engine := NewEngine[int]("test", store.load, zap.NewNop())
	rec1, rec2 := &recorder{}, &recorder{}

	sub1, err := engine.Register(ctx, "room", rec1.add)
	req.NoError(err)
	defer sub1.Cancel()
	sub2, err := engine.Register(ctx, "room", rec2.add)
	req.NoError(err)
	defer sub2.Cancel()

	// When the stream changes and is published
	store.bump("room")
	req.NoError(engine.Publish(ctx, "room"))

	// Then both subscribers converge on the new view
	waitForLast(t, rec1, 1)
	waitForLast(t, rec2, 1)
}

func TestEngine_Publish_WithoutSubscribersDoesNotLoad(t *testing.T) {
	store := newCounterStore()
	engine := NewEngine[int]("test", store.load, zap.NewNop())

	require.NoError(t, engine.Publish(context.Background(), "nobody"))
	require.Zero(t, store.loads.Load())
}

func TestEngine_Cancel_StopsDeliveriesAndIsIdempotent(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := newCounterStore()
	engine := NewEngine[int]("test", store.load, zap.NewNop())
	rec := &recorder{}

	sub, err := engine.Register(ctx, "room", rec.add)
	req.NoError(err)
	waitForLast(t, rec, 0)

	// When the subscription is cancelled twice
	sub.Cancel()
	sub.Cancel()
	req.Zero(engine.Subscribers("room"))

	// Then later publishes do not reach it
	store.bump("room")
	req.NoError(engine.Publish(ctx, "room"))
	time.Sleep(30 * time.Millisecond)
	req.Equal(1, rec.count())
}

func TestEngine_SlowSubscriberDoesNotBlockPublisher(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := newCounterStore()
	engine := NewEngine[int]("test", store.load, zap.NewNop())

	release := make(chan struct{})
	slow := &recorder{}
	sub, err := engine.Register(ctx, "room", func(v int) {
		<-release
		slow.add(v)
	})
	req.NoError(err)
	defer sub.Cancel()

	// When many changes are published while the subscriber is stuck
	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			store.bump("room")
			_ = engine.Publish(ctx, "room")
		}
		close(done)
	}()

	// Then the publisher is not held back
	select {
	case <-done:
	case <-time.After(time.Second):
		req.Fail("publisher blocked on a slow subscriber")
	}

	// And once released the subscriber ends on the latest snapshot
	close(release)
	waitForLast(t, slow, 50)
	req.LessOrEqual(slow.count(), 3)
}

func TestEngine_PanickingSubscriberIsIsolated(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := newCounterStore()
	engine := NewEngine[int]("test", store.load, zap.NewNop())

	bad, err := engine.Register(ctx, "room", func(int) { panic("boom") })
	req.NoError(err)
	defer bad.Cancel()
	rec := &recorder{}
	good, err := engine.Register(ctx, "room", rec.add)
	req.NoError(err)
	defer good.Cancel()

	store.bump("room")
	req.NoError(engine.Publish(ctx, "room"))
	waitForLast(t, rec, 1)

	store.bump("room")
	req.NoError(engine.Publish(ctx, "room"))
	waitForLast(t, rec, 2)
}

func TestEngine_ConcurrentPublishesNeverGoBackwards(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := newCounterStore()
	engine := NewEngine[int]("test", store.load, zap.NewNop())
	rec := &recorder{}

	sub, err := engine.Register(ctx, "room", rec.add)
	req.NoError(err)
	defer sub.Cancel()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				store.bump("room")
				_ = engine.Publish(ctx, "room")
			}
		}()
	}
	wg.Wait()
	waitForLast(t, rec, 200)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	for i := 1; i < len(rec.seen); i++ {
		req.GreaterOrEqual(rec.seen[i], rec.seen[i-1])
	}
}

func TestEngine_Register_LoadErrorLeavesNoSubscriber(t *testing.T) {
	req := require.New(t)
	boom := errors.New("store down")
	engine := NewEngine[int]("test", func(context.Context, string) (int, error) { return 0, boom }, zap.NewNop())

	sub, err := engine.Register(context.Background(), "room", func(int) {})
	req.ErrorIs(err, boom)
	req.Nil(sub)
	req.Zero(engine.Subscribers("room"))
}

func TestEngine_Close_CancelsAll(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := newCounterStore()
	engine := NewEngine[int]("test", store.load, zap.NewNop())

	sub, err := engine.Register(ctx, "room", func(int) {})
	req.NoError(err)

	engine.Close()

	select {
	case <-sub.Done():
	default:
		req.Fail("subscription still open after Close")
	}
	_, err = engine.Register(ctx, "room", func(int) {})
	req.ErrorIs(err, ErrEngineClosed)
}

type keyRecorder struct {
	mu   sync.Mutex
	keys []string
}

func (k *keyRecorder) Announce(_ context.Context, key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys = append(k.keys, key)
	return nil
}

func (k *keyRecorder) count() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.keys)
}

func TestEngine_WithAnnouncer_WhilePublishing(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := newCounterStore()
	engine := NewEngine[int]("test", store.load, zap.NewNop())
	announced := &keyRecorder{}

	// Given publishes already running
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				_ = engine.Publish(ctx, "room")
			}
		}
	}()

	// When the announcer is attached mid-flight
	engine.WithAnnouncer(announced)
	req.NoError(engine.Publish(ctx, "room"))
	close(stop)
	wg.Wait()

	// Then publishes from then on are announced
	req.GreaterOrEqual(announced.count(), 1)
}

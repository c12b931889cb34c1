package room

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	mural "github.com/nevindra/mural"
	"github.com/nevindra/mural/crdt"
)

// fakeStore counts loads and saves and can be primed with snapshots.
type fakeStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	loads   atomic.Int64
	saves   atomic.Int64
	failSav bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string][]byte)}
}

func (f *fakeStore) Init(context.Context) error { return nil }
func (f *fakeStore) Name() string               { return "fake" }
func (f *fakeStore) Close() error               { return nil }

func (f *fakeStore) Load(_ context.Context, roomID string) ([]byte, error) {
	f.loads.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data[roomID], nil
}

func (f *fakeStore) Save(_ context.Context, roomID string, snapshot []byte) error {
	f.saves.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSav {
		return errors.New("store down")
	}
	f.data[roomID] = snapshot
	return nil
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestGetOrCreateSingleFlight(t *testing.T) {
	fs := newFakeStore()
	m := NewManager(fs)
	ctx := context.Background()

	const n = 16
	docs := make([]*crdt.Doc, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			doc, err := m.GetOrCreate(ctx, "r1")
			if err != nil {
				t.Errorf("GetOrCreate: %v", err)
				return
			}
			docs[i] = doc
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if docs[i] != docs[0] {
			t.Fatal("concurrent callers received different documents")
		}
	}
	if got := fs.loads.Load(); got != 1 {
		t.Errorf("store loads = %d, want 1", got)
	}
}

func TestGetOrCreateSeedsFromSnapshot(t *testing.T) {
	src := crdt.New()
	if err := src.PutObject(mural.BoardObject{ID: "o1", Type: mural.TypeSticky, X: 1, Y: 2, Width: 200, Height: 150, Fill: "#FFD700"}); err != nil {
		t.Fatal(err)
	}
	fs := newFakeStore()
	fs.data["r1"] = src.EncodeState()

	m := NewManager(fs)
	doc, err := m.GetOrCreate(context.Background(), "r1")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := doc.Get("o1"); !ok {
		t.Error("loaded document missing snapshot object")
	}
}

func TestSnapshotTickDrainsDirtySet(t *testing.T) {
	fs := newFakeStore()
	m := NewManager(fs)
	ctx := context.Background()

	doc, _ := m.GetOrCreate(ctx, "r1")
	if err := doc.PutObject(mural.BoardObject{ID: "o1", Type: mural.TypeRect, Width: 150, Height: 100, Fill: "#87CEEB"}); err != nil {
		t.Fatal(err)
	}

	m.SnapshotTick(ctx)
	if got := fs.saves.Load(); got != 1 {
		t.Fatalf("saves after first tick = %d, want 1", got)
	}
	// Clean room: second tick saves nothing.
	m.SnapshotTick(ctx)
	if got := fs.saves.Load(); got != 1 {
		t.Errorf("saves after clean tick = %d, want 1", got)
	}
}

func TestSnapshotSaveFailureRetries(t *testing.T) {
	fs := newFakeStore()
	fs.failSav = true
	m := NewManager(fs)
	ctx := context.Background()

	doc, _ := m.GetOrCreate(ctx, "r1")
	if err := doc.SetFields("o1", map[string]any{"x": 1.0}); err != nil {
		t.Fatal(err)
	}

	m.SnapshotTick(ctx)
	fs.mu.Lock()
	fs.failSav = false
	fs.mu.Unlock()
	m.SnapshotTick(ctx)

	if got := fs.saves.Load(); got != 2 {
		t.Errorf("saves = %d, want 2 (initial failure + retry)", got)
	}
}

func TestEvictIdleSavesDirtyOnce(t *testing.T) {
	fs := newFakeStore()
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	m := NewManager(fs,
		WithClock(clock.now),
		WithIdleTimeout(60*time.Second))
	ctx := context.Background()

	doc, _ := m.GetOrCreate(ctx, "r1")
	if err := doc.PutObject(mural.BoardObject{ID: "o1", Type: mural.TypeSticky, Width: 200, Height: 150, Fill: "#FFD700"}); err != nil {
		t.Fatal(err)
	}

	clock.advance(61 * time.Second)
	m.EvictIdle(ctx)

	if got := fs.saves.Load(); got != 1 {
		t.Errorf("saves during eviction = %d, want 1", got)
	}
	if m.Len() != 0 {
		t.Errorf("registry len = %d after eviction, want 0", m.Len())
	}

	// A later reference reloads from the store.
	before := fs.loads.Load()
	doc2, err := m.GetOrCreate(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if fs.loads.Load() != before+1 {
		t.Error("re-created room did not trigger a store load")
	}
	if _, ok := doc2.Get("o1"); !ok {
		t.Error("evicted state not recovered from snapshot")
	}
}

func TestEvictSkipsJoinedRooms(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	m := NewManager(nil,
		WithClock(clock.now),
		WithIdleTimeout(time.Second))
	ctx := context.Background()

	if _, err := m.GetOrCreate(ctx, "r1"); err != nil {
		t.Fatal(err)
	}
	m.Acquire("r1")
	clock.advance(time.Hour)
	m.EvictIdle(ctx)
	if m.Len() != 1 {
		t.Error("room with a joined connection was evicted")
	}

	m.Release("r1")
	m.EvictIdle(ctx)
	if m.Len() != 0 {
		t.Error("idle unreferenced room survived eviction")
	}
}

func TestJoinRefcountsFirstConnection(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	m := NewManager(nil,
		WithClock(clock.now),
		WithIdleTimeout(time.Second))
	ctx := context.Background()

	// The very first reference to the room comes from Join, so the ref must
	// be taken with the entry's creation, not against a pre-existing entry.
	if _, err := m.Join(ctx, "r1"); err != nil {
		t.Fatal(err)
	}
	clock.advance(time.Hour)
	m.EvictIdle(ctx)
	if m.Len() != 1 {
		t.Fatal("room was evicted while its first joiner was still connected")
	}

	m.Release("r1")
	m.EvictIdle(ctx)
	if m.Len() != 0 {
		t.Error("idle unreferenced room survived eviction")
	}
}

func TestJoinSharesLoadWithGetOrCreate(t *testing.T) {
	fs := newFakeStore()
	m := NewManager(fs)
	ctx := context.Background()

	a, err := m.Join(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	defer m.Release("r1")
	b, err := m.GetOrCreate(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("Join and GetOrCreate returned different documents")
	}
	if got := fs.loads.Load(); got != 1 {
		t.Errorf("store loads = %d, want 1", got)
	}
}

func TestRoomObserverTracksLifecycle(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	var gauge atomic.Int64
	m := NewManager(nil,
		WithClock(clock.now),
		WithIdleTimeout(time.Second),
		WithRoomObserver(func(delta int) { gauge.Add(int64(delta)) }))
	ctx := context.Background()

	if _, err := m.GetOrCreate(ctx, "r1"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.GetOrCreate(ctx, "r2"); err != nil {
		t.Fatal(err)
	}
	if gauge.Load() != 2 {
		t.Errorf("gauge after two loads = %d, want 2", gauge.Load())
	}

	clock.advance(time.Hour)
	m.EvictIdle(ctx)
	if gauge.Load() != 0 {
		t.Errorf("gauge after eviction = %d, want 0", gauge.Load())
	}
}

func TestLocalUpdatesForwardedRemoteNot(t *testing.T) {
	m := NewManager(nil)
	var mu sync.Mutex
	var forwarded [][]byte
	m.SetOnLocalUpdate(func(roomID string, delta []byte) {
		mu.Lock()
		forwarded = append(forwarded, delta)
		mu.Unlock()
	})
	ctx := context.Background()

	doc, _ := m.GetOrCreate(ctx, "r1")
	if err := doc.SetFields("o1", map[string]any{"x": 10.0}); err != nil {
		t.Fatal(err)
	}

	other := crdt.New()
	if err := other.SetFields("o2", map[string]any{"x": 20.0}); err != nil {
		t.Fatal(err)
	}
	if err := doc.ApplyUpdate(other.EncodeState(), crdt.OriginRemote); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(forwarded) != 1 {
		t.Errorf("forwarded %d deltas, want 1 (local only)", len(forwarded))
	}
}

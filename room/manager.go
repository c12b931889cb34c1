// Package room owns the registry of live documents: lazy single-flight
// loading from the snapshot store, dirty tracking, periodic persistence,
// and idle eviction.
package room

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nevindra/mural/crdt"
	"github.com/nevindra/mural/store"
)

const (
	defaultSnapshotInterval = 30 * time.Second
	defaultIdleTimeout      = 60 * time.Minute
	defaultEvictionCheck    = 5 * time.Minute
)

// LocalUpdateFn receives server-originated deltas (tool executions) for
// fan-out to a room's connections. Remote deltas are excluded: the hub's
// message path already broadcast them, and echoing would duplicate every
// client update.
type LocalUpdateFn func(roomID string, delta []byte)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithClock overrides the time source. Tests inject a fake clock to drive
// idle eviction deterministically.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithSnapshotInterval sets the dirty-room persistence cadence. Default: 30s.
func WithSnapshotInterval(d time.Duration) Option {
	return func(m *Manager) { m.snapshotInterval = d }
}

// WithIdleTimeout sets how long an unreferenced room may stay idle before
// eviction. Default: 60m.
func WithIdleTimeout(d time.Duration) Option {
	return func(m *Manager) { m.idleTimeout = d }
}

// WithEvictionCheckInterval sets the eviction sweep cadence. Default: 5m.
func WithEvictionCheckInterval(d time.Duration) Option {
	return func(m *Manager) { m.evictionCheck = d }
}

// WithSaveObserver registers a callback invoked after every snapshot save
// attempt, for metrics.
func WithSaveObserver(fn func(failed bool)) Option {
	return func(m *Manager) { m.onSave = fn }
}

// WithRoomObserver registers a callback invoked with +1 when a room enters
// the registry and -1 when it is evicted, for gauge metrics.
func WithRoomObserver(fn func(delta int)) Option {
	return func(m *Manager) { m.onRooms = fn }
}

// entry is one registered room. ready is closed once doc is installed;
// concurrent GetOrCreate callers for the same room all wait on the same
// channel so the snapshot store sees at most one load.
type entry struct {
	ready      chan struct{}
	doc        *crdt.Doc
	lastActive time.Time
	dirty      bool
	refs       int
}

// Manager is the room registry. All exported methods are safe for
// concurrent use.
type Manager struct {
	mu    sync.Mutex
	rooms map[string]*entry

	snaps  store.Snapshots // nil = persistence disabled
	logger *slog.Logger
	now    func() time.Time

	onLocal LocalUpdateFn
	onSave  func(failed bool)
	onRooms func(delta int)

	snapshotInterval time.Duration
	idleTimeout      time.Duration
	evictionCheck    time.Duration
}

// NewManager creates a Manager. snaps may be nil, in which case documents
// live only in memory and eviction discards state.
func NewManager(snaps store.Snapshots, opts ...Option) *Manager {
	m := &Manager{
		rooms:            make(map[string]*entry),
		snaps:            snaps,
		logger:           slog.Default(),
		now:              time.Now,
		snapshotInterval: defaultSnapshotInterval,
		idleTimeout:      defaultIdleTimeout,
		evictionCheck:    defaultEvictionCheck,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// SetOnLocalUpdate registers the fan-out sink for server-originated deltas.
// Must be called before the first GetOrCreate.
func (m *Manager) SetOnLocalUpdate(fn LocalUpdateFn) {
	m.mu.Lock()
	m.onLocal = fn
	m.mu.Unlock()
}

// GetOrCreate returns the room's document, loading it from the snapshot
// store on first reference. Concurrent callers for the same room share one
// in-flight load. Load failures degrade to an empty document.
func (m *Manager) GetOrCreate(ctx context.Context, roomID string) (*crdt.Doc, error) {
	return m.getOrCreate(ctx, roomID, false)
}

// Join is GetOrCreate plus a connection reference, taken inside the same
// critical section that installs or finds the entry, so eviction can never
// destroy a room between load and join. Callers must Release.
func (m *Manager) Join(ctx context.Context, roomID string) (*crdt.Doc, error) {
	return m.getOrCreate(ctx, roomID, true)
}

func (m *Manager) getOrCreate(ctx context.Context, roomID string, acquire bool) (*crdt.Doc, error) {
	m.mu.Lock()
	if e, ok := m.rooms[roomID]; ok {
		if acquire {
			e.refs++
		}
		m.mu.Unlock()
		select {
		case <-e.ready:
			return e.doc, nil
		case <-ctx.Done():
			if acquire {
				m.Release(roomID)
			}
			return nil, ctx.Err()
		}
	}
	e := &entry{ready: make(chan struct{}), lastActive: m.now()}
	if acquire {
		e.refs = 1
	}
	m.rooms[roomID] = e
	m.mu.Unlock()
	if m.onRooms != nil {
		m.onRooms(1)
	}

	doc := crdt.New()
	if m.snaps != nil {
		if data, err := m.snaps.Load(ctx, roomID); err != nil {
			m.logger.Warn("snapshot load failed, starting empty", "room", roomID, "error", err)
		} else if data != nil {
			if err := doc.ApplyUpdate(data, crdt.OriginRemote); err != nil {
				m.logger.Warn("snapshot corrupt, starting empty", "room", roomID, "error", err)
				doc = crdt.New()
			}
		}
	}
	doc.OnUpdate(func(delta []byte, origin crdt.Origin) {
		m.onUpdate(roomID, delta, origin)
	})

	m.mu.Lock()
	e.doc = doc
	m.mu.Unlock()
	close(e.ready)
	return doc, nil
}

// onUpdate is the per-document mutation observer: every mutation dirties
// the room; server-originated ones are additionally pushed to the hub.
func (m *Manager) onUpdate(roomID string, delta []byte, origin crdt.Origin) {
	m.mu.Lock()
	if e, ok := m.rooms[roomID]; ok {
		e.dirty = true
		e.lastActive = m.now()
	}
	fn := m.onLocal
	m.mu.Unlock()

	if origin != crdt.OriginRemote && fn != nil {
		fn(roomID, delta)
	}
}

// Touch stamps the room's last-active time.
func (m *Manager) Touch(roomID string) {
	m.mu.Lock()
	if e, ok := m.rooms[roomID]; ok {
		e.lastActive = m.now()
	}
	m.mu.Unlock()
}

// MarkDirty flags the room for the next snapshot tick.
func (m *Manager) MarkDirty(roomID string) {
	m.mu.Lock()
	if e, ok := m.rooms[roomID]; ok {
		e.dirty = true
	}
	m.mu.Unlock()
}

// Acquire increments the room's connection count; eviction skips rooms with
// joined connections.
func (m *Manager) Acquire(roomID string) {
	m.mu.Lock()
	if e, ok := m.rooms[roomID]; ok {
		e.refs++
	}
	m.mu.Unlock()
}

// Release decrements the room's connection count.
func (m *Manager) Release(roomID string) {
	m.mu.Lock()
	if e, ok := m.rooms[roomID]; ok && e.refs > 0 {
		e.refs--
	}
	m.mu.Unlock()
}

// Len returns the number of registered rooms.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}

// SnapshotTick saves every dirty room and clears its flag. The dirty set is
// drained before any save so mutations landing mid-save simply re-qualify on
// the next tick. Save failures re-flag the room for retry.
func (m *Manager) SnapshotTick(ctx context.Context) {
	if m.snaps == nil {
		return
	}
	type pending struct {
		roomID string
		doc    *crdt.Doc
	}
	var work []pending
	m.mu.Lock()
	for roomID, e := range m.rooms {
		if e.dirty && e.doc != nil {
			e.dirty = false
			work = append(work, pending{roomID, e.doc})
		}
	}
	m.mu.Unlock()

	for _, p := range work {
		err := m.snaps.Save(ctx, p.roomID, p.doc.EncodeState())
		if m.onSave != nil {
			m.onSave(err != nil)
		}
		if err != nil {
			m.logger.Warn("snapshot save failed, will retry", "room", p.roomID, "error", err)
			m.MarkDirty(p.roomID)
		}
	}
}

// EvictIdle destroys rooms that have been idle past the timeout and have no
// joined connections, saving dirty ones first. Eviction without a working
// store is best-effort: the state is lost.
func (m *Manager) EvictIdle(ctx context.Context) {
	cutoff := m.now().Add(-m.idleTimeout)

	type candidate struct {
		roomID string
		doc    *crdt.Doc
		dirty  bool
	}
	var cands []candidate
	m.mu.Lock()
	for roomID, e := range m.rooms {
		if e.doc != nil && e.refs == 0 && e.lastActive.Before(cutoff) {
			cands = append(cands, candidate{roomID, e.doc, e.dirty})
		}
	}
	m.mu.Unlock()

	for _, c := range cands {
		if c.dirty && m.snaps != nil {
			err := m.snaps.Save(ctx, c.roomID, c.doc.EncodeState())
			if m.onSave != nil {
				m.onSave(err != nil)
			}
			if err != nil {
				m.logger.Warn("final snapshot before eviction failed", "room", c.roomID, "error", err)
			}
		}
		m.mu.Lock()
		// Re-check under lock: a client may have joined or touched the room
		// while the final save was in flight.
		evicted := false
		if e, ok := m.rooms[c.roomID]; ok && e.refs == 0 && e.lastActive.Before(cutoff) {
			delete(m.rooms, c.roomID)
			evicted = true
		}
		m.mu.Unlock()
		if evicted {
			if m.onRooms != nil {
				m.onRooms(-1)
			}
			m.logger.Info("room evicted", "room", c.roomID)
		}
	}
}

// Run drives the snapshot and eviction loops until ctx is cancelled, then
// performs a final snapshot flush.
func (m *Manager) Run(ctx context.Context) {
	snapshot := time.NewTicker(m.snapshotInterval)
	defer snapshot.Stop()
	evict := time.NewTicker(m.evictionCheck)
	defer evict.Stop()

	for {
		select {
		case <-snapshot.C:
			m.SnapshotTick(ctx)
		case <-evict.C:
			m.EvictIdle(ctx)
		case <-ctx.Done():
			// Final flush uses a fresh context; the loop's is already dead.
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			m.SnapshotTick(flushCtx)
			cancel()
			return
		}
	}
}

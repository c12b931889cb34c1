// Package crdt implements the merge-convergent document each room is built
// on: a mapping of object id to board object, realized as one last-writer-wins
// register per object field plus a last-writer-wins tombstone per object id.
// Merging is a pointwise maximum over (timestamp, actor) pairs, so deltas
// commute and repeated application is a no-op — the relay can forward frames
// opaquely and apply them in any arrival order.
package crdt

import (
	"encoding/json"
	"fmt"
	"sync"

	mural "github.com/nevindra/mural"
)

// Origin tags where a mutation came from. Remote deltas arrive over the
// wire and are already broadcast by the hub's message path; local deltas
// originate server-side (tool executions) and need a separate fan-out.
type Origin string

const (
	OriginRemote Origin = "remote"
	OriginLocal  Origin = "local"
)

// register is one LWW cell. Ties on the lamport timestamp break by actor id
// so concurrent writes converge identically on every replica.
type register struct {
	Value json.RawMessage
	TS    uint64
	Actor string
}

// supersededBy reports whether a write stamped (ts, actor) beats r.
func (r register) supersededBy(ts uint64, actor string) bool {
	return ts > r.TS || (ts == r.TS && actor > r.Actor)
}

// UpdateFn observes every document mutation. The delta is the encoded form
// of exactly the entries that were applied.
type UpdateFn func(delta []byte, origin Origin)

// Doc is one room's document. All methods are safe for concurrent use.
//
// Registers and tombstones are never discarded on merge; an object is live
// when its newest field write beats its tombstone (or it has none). Keeping
// both sides makes the merge a pure pointwise maximum, which is what buys
// commutativity and idempotence.
type Doc struct {
	mu        sync.Mutex
	actor     string
	clock     uint64
	objects   map[string]map[string]register
	tombs     map[string]register
	observers []UpdateFn
}

// New creates an empty document with a unique actor id for local writes.
func New() *Doc {
	return &Doc{
		actor:   mural.NewID(),
		objects: make(map[string]map[string]register),
		tombs:   make(map[string]register),
	}
}

// OnUpdate registers an observer called after every mutation.
func (d *Doc) OnUpdate(fn UpdateFn) {
	d.mu.Lock()
	d.observers = append(d.observers, fn)
	d.mu.Unlock()
}

// liveLocked reports whether id currently denotes a visible object.
func (d *Doc) liveLocked(id string) bool {
	fields, ok := d.objects[id]
	if !ok || len(fields) == 0 {
		return false
	}
	tomb, ok := d.tombs[id]
	if !ok {
		return true
	}
	for _, r := range fields {
		if tomb.supersededBy(r.TS, r.Actor) {
			return true
		}
	}
	return false
}

// Len returns the number of live objects.
func (d *Doc) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for id := range d.objects {
		if d.liveLocked(id) {
			n++
		}
	}
	return n
}

// Get materializes one live object by id.
func (d *Doc) Get(id string) (mural.BoardObject, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.liveLocked(id) {
		return mural.BoardObject{}, false
	}
	return materialize(id, d.objects[id]), true
}

// Objects returns a snapshot copy of all live objects.
func (d *Doc) Objects() map[string]mural.BoardObject {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]mural.BoardObject)
	for id, fields := range d.objects {
		if d.liveLocked(id) {
			out[id] = materialize(id, fields)
		}
	}
	return out
}

func materialize(id string, fields map[string]register) mural.BoardObject {
	m := make(map[string]json.RawMessage, len(fields))
	for k, r := range fields {
		m[k] = r.Value
	}
	data, _ := json.Marshal(m)
	var obj mural.BoardObject
	_ = json.Unmarshal(data, &obj)
	obj.ID = id
	return obj
}

// PutObject writes a full object record as a local mutation.
func (d *Doc) PutObject(obj mural.BoardObject) error {
	if obj.ID == "" {
		return fmt.Errorf("crdt: object id required")
	}
	fields, err := objectFields(obj)
	if err != nil {
		return err
	}
	return d.localWrite(obj.ID, fields)
}

// SetFields writes a partial field update as a local mutation. Values must
// be JSON-marshalable.
func (d *Doc) SetFields(id string, fields map[string]any) error {
	if id == "" {
		return fmt.Errorf("crdt: object id required")
	}
	raw := make(map[string]json.RawMessage, len(fields))
	for k, v := range fields {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("crdt: field %q: %w", k, err)
		}
		raw[k] = data
	}
	return d.localWrite(id, raw)
}

// Delete removes an object as a local mutation.
func (d *Doc) Delete(id string) {
	d.mu.Lock()
	d.clock++
	del := deltaRemove{ID: id, TS: d.clock, Actor: d.actor}
	d.mergeRemoveLocked(del)
	data, _ := json.Marshal(delta{Removes: []deltaRemove{del}})
	obs := append([]UpdateFn(nil), d.observers...)
	d.mu.Unlock()
	notify(obs, data, OriginLocal)
}

func (d *Doc) localWrite(id string, fields map[string]json.RawMessage) error {
	d.mu.Lock()
	d.clock++
	ts := d.clock
	entries := make([]deltaEntry, 0, len(fields))
	for k, v := range fields {
		e := deltaEntry{ID: id, Field: k, Value: v, TS: ts, Actor: d.actor}
		d.mergeEntryLocked(e)
		entries = append(entries, e)
	}
	data, err := json.Marshal(delta{Entries: entries})
	obs := append([]UpdateFn(nil), d.observers...)
	d.mu.Unlock()
	if err != nil {
		return err
	}
	notify(obs, data, OriginLocal)
	return nil
}

// ApplyUpdate merges an encoded delta (or full state, which is just a large
// delta) into the document. Malformed payloads return an error and leave the
// document untouched.
func (d *Doc) ApplyUpdate(data []byte, origin Origin) error {
	var dl delta
	if err := json.Unmarshal(data, &dl); err != nil {
		return fmt.Errorf("crdt: decode update: %w", err)
	}
	d.mu.Lock()
	for _, e := range dl.Entries {
		if e.TS > d.clock {
			d.clock = e.TS
		}
		d.mergeEntryLocked(e)
	}
	for _, r := range dl.Removes {
		if r.TS > d.clock {
			d.clock = r.TS
		}
		d.mergeRemoveLocked(r)
	}
	obs := append([]UpdateFn(nil), d.observers...)
	d.mu.Unlock()
	notify(obs, data, origin)
	return nil
}

func (d *Doc) mergeEntryLocked(e deltaEntry) {
	fields, ok := d.objects[e.ID]
	if !ok {
		fields = make(map[string]register)
		d.objects[e.ID] = fields
	}
	cur, ok := fields[e.Field]
	if !ok || cur.supersededBy(e.TS, e.Actor) {
		fields[e.Field] = register{Value: e.Value, TS: e.TS, Actor: e.Actor}
	}
}

func (d *Doc) mergeRemoveLocked(r deltaRemove) {
	cur, ok := d.tombs[r.ID]
	if !ok || cur.supersededBy(r.TS, r.Actor) {
		d.tombs[r.ID] = register{TS: r.TS, Actor: r.Actor}
	}
}

// EncodeState encodes the full document as one delta. Applying it to an
// empty document reproduces the object mapping exactly.
func (d *Doc) EncodeState() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	var dl delta
	for id, fields := range d.objects {
		for k, r := range fields {
			dl.Entries = append(dl.Entries, deltaEntry{ID: id, Field: k, Value: r.Value, TS: r.TS, Actor: r.Actor})
		}
	}
	for id, t := range d.tombs {
		dl.Removes = append(dl.Removes, deltaRemove{ID: id, TS: t.TS, Actor: t.Actor})
	}
	data, _ := json.Marshal(dl)
	return data
}

func notify(obs []UpdateFn, delta []byte, origin Origin) {
	for _, fn := range obs {
		fn(delta, origin)
	}
}

func objectFields(obj mural.BoardObject) (map[string]json.RawMessage, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

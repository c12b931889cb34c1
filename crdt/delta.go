package crdt

import "encoding/json"

// delta is the wire form of a document update. Full state is the degenerate
// case of a delta carrying every register.
type delta struct {
	Entries []deltaEntry  `json:"entries,omitempty"`
	Removes []deltaRemove `json:"removes,omitempty"`
}

// deltaEntry is one LWW register write.
type deltaEntry struct {
	ID    string          `json:"id"`
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
	TS    uint64          `json:"ts"`
	Actor string          `json:"actor"`
}

// deltaRemove is one object tombstone.
type deltaRemove struct {
	ID    string `json:"id"`
	TS    uint64 `json:"ts"`
	Actor string `json:"actor"`
}

// Package hub is the realtime transport layer: it upgrades websocket
// connections, relays binary delta and awareness frames between the clients
// of a room, and injects server-originated deltas from the AI pipeline.
//
// Wire format, both directions: one leading tag byte followed by the payload.
// Tag 0 is a CRDT delta; tag 1 is opaque awareness data that is broadcast
// without touching the document.
package hub

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	mural "github.com/nevindra/mural"
	"github.com/nevindra/mural/crdt"
	"github.com/nevindra/mural/observer"
	"github.com/nevindra/mural/room"
)

const (
	tagDelta     = 0
	tagAwareness = 1

	// sendBuffer bounds the per-connection outbound queue. A peer that
	// cannot drain it is silently skipped on broadcast.
	sendBuffer = 64
)

// conn is one websocket client. Writes go through the send channel so the
// single writer goroutine owns the socket. Frames enqueued before start are
// buffered, so the initial state snapshot is always first on the wire and
// broadcasts landing during the join handshake are not lost.
type conn struct {
	ws        *websocket.Conn
	send      chan []byte
	closeOnce sync.Once

	mu      sync.Mutex
	started bool
	pending [][]byte
}

func (c *conn) close() {
	c.closeOnce.Do(func() { close(c.send) })
}

// enqueue hands a frame to the writer. It reports false when the peer's
// queue is full and the frame was dropped.
func (c *conn) enqueue(frame []byte) bool {
	c.mu.Lock()
	if !c.started {
		c.pending = append(c.pending, frame)
		c.mu.Unlock()
		return true
	}
	c.mu.Unlock()
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// start queues the snapshot frame followed by everything buffered while it
// was being encoded, in arrival order.
func (c *conn) start(snapshot []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// The send channel is untouched before start, so the snapshot always
	// fits and goes out first.
	c.send <- snapshot
	for _, f := range c.pending {
		select {
		case c.send <- f:
		default:
		}
	}
	c.pending = nil
	c.started = true
}

func (c *conn) writeLoop() {
	defer c.ws.Close()
	for frame := range c.send {
		if err := c.ws.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			return
		}
	}
	c.ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// Hub fans frames out across the connections of each room.
type Hub struct {
	manager        *room.Manager
	logger         *slog.Logger
	inst           *observer.Instruments
	allowedOrigins string
	upgrader       websocket.Upgrader

	mu    sync.RWMutex
	rooms map[string]map[*conn]struct{}
}

type Option func(*Hub)

func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) { h.logger = l }
}

// WithAllowedOrigins sets the comma-separated origin allow list. Empty allows
// every origin.
func WithAllowedOrigins(list string) Option {
	return func(h *Hub) { h.allowedOrigins = list }
}

// WithInstruments enables frame and connection metrics. A nil value is a
// no-op recorder.
func WithInstruments(inst *observer.Instruments) Option {
	return func(h *Hub) { h.inst = inst }
}

// New creates a hub over the room manager and registers itself as the
// manager's local-update listener, so tool executions reach joined clients.
func New(manager *room.Manager, opts ...Option) *Hub {
	h := &Hub{
		manager: manager,
		logger:  slog.New(slog.DiscardHandler),
		rooms:   make(map[string]map[*conn]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return mural.OriginAllowed(r.Header.Get("Origin"), h.allowedOrigins)
		},
	}
	manager.SetOnLocalUpdate(h.BroadcastLocal)
	return h
}

// ConnCount returns the number of connections currently joined to the room.
func (h *Hub) ConnCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// token pulls the opaque auth token from the query string or the
// Authorization header. The hub does not interpret it.
func token(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

// ServeHTTP handles a join: the room id is the URL path.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	roomID := strings.Trim(r.URL.Path, "/")
	if !mural.ValidRoomName(roomID) {
		http.Error(w, "invalid room name", http.StatusBadRequest)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the response (403 on origin rejection).
		h.logger.Warn("websocket upgrade failed", "room", roomID, "error", err)
		return
	}

	c := &conn{ws: ws, send: make(chan []byte, sendBuffer)}
	go c.writeLoop()

	// Join takes the connection reference atomically with the entry lookup,
	// so the room cannot be evicted while this socket is open.
	doc, err := h.manager.Join(r.Context(), roomID)
	if err != nil {
		h.logger.Warn("room load aborted", "room", roomID, "error", err)
		c.close()
		return
	}
	defer h.manager.Release(roomID)

	// Register before encoding the snapshot: a co-tenant delta landing in
	// between is buffered by enqueue and also merged into the snapshot;
	// applying it twice is harmless. Encoding before registering would lose
	// it entirely.
	h.register(roomID, c)
	c.start(append([]byte{tagDelta}, doc.EncodeState()...))
	h.inst.ConnOpened(r.Context())
	h.logger.Info("client joined", "room", roomID, "conns", h.ConnCount(roomID), "token_present", token(r) != "")

	defer func() {
		h.unregister(roomID, c)
		c.close()
		h.inst.ConnClosed(context.Background())
		h.logger.Info("client left", "room", roomID, "conns", h.ConnCount(roomID))
	}()

	h.readLoop(roomID, doc, c)
}

func (h *Hub) register(roomID string, c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.rooms[roomID]
	if !ok {
		set = make(map[*conn]struct{})
		h.rooms[roomID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) unregister(roomID string, c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.rooms[roomID]
	delete(set, c)
	if len(set) == 0 {
		delete(h.rooms, roomID)
	}
}

func (h *Hub) readLoop(roomID string, doc *crdt.Doc, c *conn) {
	for {
		mt, frame, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.BinaryMessage {
			continue
		}
		if !mural.FrameWithinLimit(frame) {
			h.logger.Warn("oversize frame dropped", "room", roomID, "bytes", len(frame))
			continue
		}
		if len(frame) < 2 {
			continue
		}
		h.manager.Touch(roomID)

		switch frame[0] {
		case tagDelta:
			if !mural.CanAddObject(doc.Len()) {
				// At the object cap the document must stay untouched.
				h.logger.Warn("delta dropped, board full", "room", roomID)
				continue
			}
			if err := doc.ApplyUpdate(frame[1:], crdt.OriginRemote); err != nil {
				h.logger.Warn("malformed delta dropped", "room", roomID, "error", err)
				continue
			}
			h.inst.RecordFrame(context.Background(), roomID)
			h.broadcast(roomID, frame, c)
		case tagAwareness:
			h.broadcast(roomID, frame, c)
		}
	}
}

// broadcast queues the raw frame on every connection of the room except the
// sender. Connections with a full queue are skipped.
func (h *Hub) broadcast(roomID string, frame []byte, sender *conn) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[roomID] {
		if c == sender {
			continue
		}
		if !c.enqueue(frame) {
			h.logger.Warn("slow peer skipped", "room", roomID)
		}
	}
}

// BroadcastLocal sends a server-originated delta to every connection of the
// room. The room manager calls this for each local document update.
func (h *Hub) BroadcastLocal(roomID string, delta []byte) {
	frame := make([]byte, 0, len(delta)+1)
	frame = append(frame, tagDelta)
	frame = append(frame, delta...)
	h.inst.RecordBroadcast(context.Background(), roomID)
	h.broadcast(roomID, frame, nil)
}

// Package mural is the server-side collaboration plane for a shared
// whiteboard. Clients join named rooms over a binary websocket channel and
// converge on one document per room; natural-language commands are turned
// into deterministic tool-call sequences that mutate the same documents.
//
// The root package defines the contracts the components implement:
//
//   - [Tool] — pluggable capability for LLM function calling
//   - [Provider] — LLM backend (chat with tool use)
//   - [StreamEvent] — incremental events delivered over the SSE channel
//   - security validators shared by the websocket and HTTP boundaries
//
// The moving parts live in subpackages: crdt (document state), room
// (registry, snapshot and eviction loops), hub (websocket relay), board
// (tool executor), recipe (learned-command cache), fallback (offline command
// parser), agent (the AI orchestrator) and store (snapshot backends).
//
// See cmd/murald for the wired server.
package mural

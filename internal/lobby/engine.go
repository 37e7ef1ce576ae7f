// Package lobby implements the Lobby Agent and Lobby Manager: the
// per-lobby coordinator and its process-wide registry.
package lobby

import (
	"github.com/kottz/kolmodin-go/internal/gateway"
	"github.com/kottz/kolmodin-go/internal/twitch"
)

// HandleResult is the result of handing an upstream frame to a GameEngine:
// either it was handled in place, or the client should be disconnected.
type HandleResult int

const (
	Handled HandleResult = iota
	RequestDisconnect
)

// Outbox is the narrow capability a GameEngine is given to reach clients.
// The Lobby Agent is the exclusive owner of the actual client queue map;
// Outbox lets the engine address individual clients or broadcast without
// holding that map itself. ClientIDs enumerates connected clients by
// identity only, since the queues themselves remain Lobby-Agent-owned.
type Outbox interface {
	SendToClient(clientID string, frame []byte)
	Broadcast(frame []byte)
	ClientIDs() []string
}

// Engine is the contract every game implementation satisfies, opaque to
// the rest of the core. The Lobby Agent never calls two Engine operations
// concurrently.
type Engine interface {
	ClientConnected(clientID string, out Outbox)
	ClientDisconnected(clientID string, out Outbox)
	HandleUpstreamMessage(clientID string, frame gateway.ClientFrame, out Outbox) HandleResult
	HandleTwitchMessage(msg twitch.ChatMessage, out Outbox)
	IsEmpty() bool
	GameTypeTag() string
}

// EngineFactory constructs a fresh Engine instance for a newly created
// lobby of the given game-type tag.
type EngineFactory func() Engine

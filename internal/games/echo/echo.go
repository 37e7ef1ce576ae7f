// Package echo is a second minimal reference GameEngine, exercising
// game-type-tag routing in the Lobby Manager: it echoes
// GameSpecificCommand frames back to the sender only, rather than
// broadcasting, to show the contract distinguishes the two.
package echo

import (
	"github.com/kottz/kolmodin-go/internal/gateway"
	"github.com/kottz/kolmodin-go/internal/lobby"
	"github.com/kottz/kolmodin-go/internal/twitch"
)

const GameTypeTag = "echo"

// Aliases are additional spellings that resolve to GameTypeTag.
var Aliases = []string{"reflect"}

type Engine struct {
	clients map[string]struct{}
}

func New() lobby.Engine {
	return &Engine{clients: make(map[string]struct{})}
}

func (e *Engine) ClientConnected(clientID string, out lobby.Outbox) {
	e.clients[clientID] = struct{}{}
}

func (e *Engine) ClientDisconnected(clientID string, out lobby.Outbox) {
	delete(e.clients, clientID)
}

func (e *Engine) HandleUpstreamMessage(clientID string, frame gateway.ClientFrame, out lobby.Outbox) lobby.HandleResult {
	switch frame.Kind {
	case gateway.ClientGameSpecificCommand:
		out.SendToClient(clientID, gateway.GameSpecificEventFrame(frame.GameTypeTag, frame.Payload))
	case gateway.ClientGlobalCommand:
		out.SendToClient(clientID, gateway.GlobalEventFrame(frame.CommandName, frame.Payload))
	}
	return lobby.Handled
}

// HandleTwitchMessage is a no-op: echo never auto-relays chat, unlike
// helloworld.
func (e *Engine) HandleTwitchMessage(msg twitch.ChatMessage, out lobby.Outbox) {}

func (e *Engine) IsEmpty() bool { return len(e.clients) == 0 }

func (e *Engine) GameTypeTag() string { return GameTypeTag }

// Package helloworld is a minimal reference GameEngine: it echoes global
// commands to every client and relays Twitch chat messages unmodified. It
// exists to exercise the Lobby Agent / Lobby Manager machinery end to end,
// standing in for a real game implementation.
package helloworld

import (
	"github.com/kottz/kolmodin-go/internal/gateway"
	"github.com/kottz/kolmodin-go/internal/lobby"
	"github.com/kottz/kolmodin-go/internal/twitch"
)

const GameTypeTag = "helloworld"

// Aliases are additional spellings that resolve to GameTypeTag.
var Aliases = []string{"hello", "hw"}

// Engine implements lobby.Engine.
type Engine struct {
	clients map[string]struct{}
}

// New constructs a fresh Engine, suitable for use as a lobby.EngineFactory.
func New() lobby.Engine {
	return &Engine{clients: make(map[string]struct{})}
}

func (e *Engine) ClientConnected(clientID string, out lobby.Outbox) {
	e.clients[clientID] = struct{}{}
	out.SendToClient(clientID, gateway.GameSpecificEventFrame(GameTypeTag, map[string]string{
		"greeting": "hello from kolmodin",
	}))
}

func (e *Engine) ClientDisconnected(clientID string, out lobby.Outbox) {
	delete(e.clients, clientID)
}

func (e *Engine) HandleUpstreamMessage(clientID string, frame gateway.ClientFrame, out lobby.Outbox) lobby.HandleResult {
	if frame.Kind == gateway.ClientGlobalCommand {
		out.Broadcast(gateway.GlobalEventFrame(frame.CommandName, frame.Payload))
	}
	return lobby.Handled
}

func (e *Engine) HandleTwitchMessage(msg twitch.ChatMessage, out lobby.Outbox) {
	out.Broadcast(gateway.TwitchMessageRelayFrame(msg))
}

func (e *Engine) IsEmpty() bool { return len(e.clients) == 0 }

func (e *Engine) GameTypeTag() string { return GameTypeTag }

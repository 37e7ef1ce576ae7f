package helloworld

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kottz/kolmodin-go/internal/gateway"
	"github.com/kottz/kolmodin-go/internal/lobby"
	"github.com/kottz/kolmodin-go/internal/twitch"
)

type recordingOutbox struct {
	toClient  map[string][][]byte
	broadcast [][]byte
}

func newRecordingOutbox() *recordingOutbox {
	return &recordingOutbox{toClient: make(map[string][][]byte)}
}

func (o *recordingOutbox) SendToClient(clientID string, frame []byte) {
	o.toClient[clientID] = append(o.toClient[clientID], frame)
}

func (o *recordingOutbox) Broadcast(frame []byte) {
	o.broadcast = append(o.broadcast, frame)
}

func (o *recordingOutbox) ClientIDs() []string {
	ids := make([]string, 0, len(o.toClient))
	for id := range o.toClient {
		ids = append(ids, id)
	}
	return ids
}

func decodeEnvelope(t *testing.T, frame []byte) map[string]any {
	t.Helper()
	var env map[string]any
	require.NoError(t, json.Unmarshal(frame, &env))
	return env
}

func TestNewSatisfiesLobbyEngine(t *testing.T) {
	var _ lobby.Engine = New()
}

func TestClientConnectedGreetsTheNewClient(t *testing.T) {
	e := New()
	out := newRecordingOutbox()

	e.ClientConnected("alice", out)

	require.Len(t, out.toClient["alice"], 1)
	env := decodeEnvelope(t, out.toClient["alice"][0])
	assert.Equal(t, "GameSpecificEvent", env["messageType"])
	assert.False(t, e.IsEmpty())
}

func TestClientDisconnectedEmptiesTheEngine(t *testing.T) {
	e := New()
	out := newRecordingOutbox()

	e.ClientConnected("alice", out)
	e.ClientDisconnected("alice", out)

	assert.True(t, e.IsEmpty())
}

func TestHandleUpstreamMessageBroadcastsGlobalCommands(t *testing.T) {
	e := New()
	out := newRecordingOutbox()
	e.ClientConnected("alice", out)

	result := e.HandleUpstreamMessage("alice", gateway.ClientFrame{
		Kind:        gateway.ClientGlobalCommand,
		CommandName: "ping",
	}, out)

	assert.Equal(t, lobby.Handled, result)
	require.Len(t, out.broadcast, 1)
	env := decodeEnvelope(t, out.broadcast[0])
	assert.Equal(t, "GlobalEvent", env["messageType"])
}

func TestHandleUpstreamMessageIgnoresGameSpecificCommands(t *testing.T) {
	e := New()
	out := newRecordingOutbox()

	result := e.HandleUpstreamMessage("alice", gateway.ClientFrame{
		Kind: gateway.ClientGameSpecificCommand,
	}, out)

	assert.Equal(t, lobby.Handled, result)
	assert.Empty(t, out.broadcast)
}

func TestHandleTwitchMessageRelaysToEveryClient(t *testing.T) {
	e := New()
	out := newRecordingOutbox()

	e.HandleTwitchMessage(twitch.ChatMessage{Channel: "somechannel", Text: "hi"}, out)

	require.Len(t, out.broadcast, 1)
	env := decodeEnvelope(t, out.broadcast[0])
	assert.Equal(t, "TwitchMessageRelay", env["messageType"])
}

func TestGameTypeTag(t *testing.T) {
	e := New()
	assert.Equal(t, GameTypeTag, e.GameTypeTag())
}

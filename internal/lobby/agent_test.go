package lobby

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/kottz/kolmodin-go/internal/gateway"
	"github.com/kottz/kolmodin-go/internal/twitch"
)

// countingEngine tracks connected clients and records every upstream frame
// and chat message it is handed, to assert the Lobby Agent's dispatch.
type countingEngine struct {
	connected    map[string]bool
	upstreamSeen []gateway.ClientFrame
	chatSeen     []twitch.ChatMessage
	nextResult   HandleResult
}

func newCountingEngine() *countingEngine {
	return &countingEngine{connected: make(map[string]bool)}
}

func (e *countingEngine) ClientConnected(clientID string, out Outbox) { e.connected[clientID] = true }
func (e *countingEngine) ClientDisconnected(clientID string, out Outbox) {
	delete(e.connected, clientID)
}
func (e *countingEngine) HandleUpstreamMessage(clientID string, frame gateway.ClientFrame, out Outbox) HandleResult {
	e.upstreamSeen = append(e.upstreamSeen, frame)
	return e.nextResult
}
func (e *countingEngine) HandleTwitchMessage(msg twitch.ChatMessage, out Outbox) {
	e.chatSeen = append(e.chatSeen, msg)
}
func (e *countingEngine) IsEmpty() bool       { return len(e.connected) == 0 }
func (e *countingEngine) GameTypeTag() string { return "counting" }

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func TestAgentClientConnectAndDisconnectShutsDownWhenEmpty(t *testing.T) {
	engine := newCountingEngine()
	shutdownCh := make(chan string, 1)
	agent := NewAgent("lobby-1", "counting", "", engine, nil, func(id string) { shutdownCh <- id })
	handle := agent.Handle()

	queue := make(chan []byte, 4)
	handle.ClientConnected("client-1", queue)

	waitFor(t, time.Second, func() bool { return engine.connected["client-1"] })

	// No Twitch channel configured: the client should receive a
	// TwitchStatusUpdate frame reporting Disconnected.
	select {
	case frame := <-queue:
		var env struct {
			Payload struct {
				Payload struct {
					StatusType string `json:"status_type"`
				} `json:"payload"`
			} `json:"payload"`
		}
		if err := json.Unmarshal(frame, &env); err != nil {
			t.Fatalf("failed to unmarshal initial status frame: %v", err)
		}
		if env.Payload.Payload.StatusType != "Disconnected" {
			t.Errorf("status_type = %q, want Disconnected", env.Payload.Payload.StatusType)
		}
	case <-time.After(time.Second):
		t.Fatalf("did not receive the initial status frame")
	}

	handle.ClientDisconnected("client-1")

	select {
	case id := <-shutdownCh:
		if id != "lobby-1" {
			t.Errorf("onShutdown called with %q, want lobby-1", id)
		}
	case <-time.After(time.Second):
		t.Fatalf("onShutdown was not called after the last client disconnected")
	}
}

func TestAgentDispatchesUpstreamFrames(t *testing.T) {
	engine := newCountingEngine()
	agent := NewAgent("lobby-2", "counting", "", engine, nil, func(string) {})
	handle := agent.Handle()

	queue := make(chan []byte, 4)
	handle.ClientConnected("client-1", queue)
	waitFor(t, time.Second, func() bool { return engine.connected["client-1"] })

	raw := []byte(`{"messageType":"GlobalCommand","payload":{"name":"ping","payload":null}}`)
	handle.ClientEvent("client-1", raw)

	waitFor(t, time.Second, func() bool { return len(engine.upstreamSeen) == 1 })
	if engine.upstreamSeen[0].Kind != gateway.ClientGlobalCommand || engine.upstreamSeen[0].CommandName != "ping" {
		t.Errorf("unexpected frame dispatched to engine: %+v", engine.upstreamSeen[0])
	}
}

func TestAgentMalformedClientEventSendsSystemError(t *testing.T) {
	engine := newCountingEngine()
	agent := NewAgent("lobby-3", "counting", "", engine, nil, func(string) {})
	handle := agent.Handle()

	queue := make(chan []byte, 4)
	handle.ClientConnected("client-1", queue)
	waitFor(t, time.Second, func() bool { return engine.connected["client-1"] })
	<-queue // drain the initial status frame

	handle.ClientEvent("client-1", []byte("not json"))

	select {
	case frame := <-queue:
		var env struct {
			MessageType string `json:"messageType"`
		}
		if err := json.Unmarshal(frame, &env); err != nil {
			t.Fatalf("failed to unmarshal error frame: %v", err)
		}
		if env.MessageType != "SystemError" {
			t.Errorf("messageType = %q, want SystemError", env.MessageType)
		}
	case <-time.After(time.Second):
		t.Fatalf("did not receive a SystemError frame for a malformed event")
	}
	if len(engine.upstreamSeen) != 0 {
		t.Errorf("malformed frame should never reach the engine, got %d calls", len(engine.upstreamSeen))
	}
}

func TestAgentLeaveLobbyDisconnectsClient(t *testing.T) {
	engine := newCountingEngine()
	shutdownCh := make(chan string, 1)
	agent := NewAgent("lobby-4", "counting", "", engine, nil, func(id string) { shutdownCh <- id })
	handle := agent.Handle()

	queue := make(chan []byte, 4)
	handle.ClientConnected("client-1", queue)
	waitFor(t, time.Second, func() bool { return engine.connected["client-1"] })

	handle.ClientEvent("client-1", []byte(`{"messageType":"LeaveLobby","payload":null}`))

	select {
	case <-shutdownCh:
	case <-time.After(time.Second):
		t.Fatalf("lobby did not shut down after its only client sent LeaveLobby")
	}
	if engine.connected["client-1"] {
		t.Errorf("engine still reports client-1 as connected after LeaveLobby")
	}
}

func TestAgentSecondClientAlsoReceivesCurrentStatusOnConnect(t *testing.T) {
	engine := newCountingEngine()
	agent := NewAgent("lobby-6", "counting", "", engine, nil, func(string) {})
	handle := agent.Handle()

	firstQueue := make(chan []byte, 4)
	handle.ClientConnected("client-1", firstQueue)
	waitFor(t, time.Second, func() bool { return engine.connected["client-1"] })
	<-firstQueue // drain the first client's own initial status frame

	secondQueue := make(chan []byte, 4)
	handle.ClientConnected("client-2", secondQueue)
	waitFor(t, time.Second, func() bool { return engine.connected["client-2"] })

	select {
	case frame := <-secondQueue:
		var env struct {
			Payload struct {
				Payload struct {
					StatusType string `json:"status_type"`
				} `json:"payload"`
			} `json:"payload"`
		}
		if err := json.Unmarshal(frame, &env); err != nil {
			t.Fatalf("failed to unmarshal second client's initial status frame: %v", err)
		}
		if env.Payload.Payload.StatusType != "Disconnected" {
			t.Errorf("status_type = %q, want Disconnected", env.Payload.Payload.StatusType)
		}
	case <-time.After(time.Second):
		t.Fatalf("second client joining an already-active lobby did not receive a current-status frame")
	}
}

func TestAgentRequestDisconnectResultDisconnectsClient(t *testing.T) {
	engine := newCountingEngine()
	engine.nextResult = RequestDisconnect
	shutdownCh := make(chan string, 1)
	agent := NewAgent("lobby-5", "counting", "", engine, nil, func(id string) { shutdownCh <- id })
	handle := agent.Handle()

	queue := make(chan []byte, 4)
	handle.ClientConnected("client-1", queue)
	waitFor(t, time.Second, func() bool { return engine.connected["client-1"] })

	raw := []byte(`{"messageType":"GlobalCommand","payload":{"name":"kick","payload":null}}`)
	handle.ClientEvent("client-1", raw)

	select {
	case <-shutdownCh:
	case <-time.After(time.Second):
		t.Fatalf("lobby did not shut down after RequestDisconnect emptied it")
	}
}

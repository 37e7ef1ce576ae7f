package lobby

import (
	"testing"
	"time"

	"github.com/kottz/kolmodin-go/internal/gateway"
	"github.com/kottz/kolmodin-go/internal/twitch"
)

// testEngine is a minimal Engine used only to exercise the Manager; it
// never becomes empty, so tests control shutdown explicitly via Handle.
type testEngine struct{ tag string }

func (e *testEngine) ClientConnected(clientID string, out Outbox)    {}
func (e *testEngine) ClientDisconnected(clientID string, out Outbox) {}
func (e *testEngine) HandleUpstreamMessage(clientID string, frame gateway.ClientFrame, out Outbox) HandleResult {
	return Handled
}
func (e *testEngine) HandleTwitchMessage(msg twitch.ChatMessage, out Outbox) {}
func (e *testEngine) IsEmpty() bool                                         { return false }
func (e *testEngine) GameTypeTag() string                                   { return e.tag }

func newTestManager(enabled map[string]bool, defaultType string) *Manager {
	engines := map[string]EngineFactory{
		"helloworld": func() Engine { return &testEngine{tag: "helloworld"} },
		"echo":       func() Engine { return &testEngine{tag: "echo"} },
	}
	aliases := map[string]string{"hello": "helloworld", "reflect": "echo"}
	return NewManager(enabled, defaultType, engines, aliases, nil, nil, nil)
}

func TestResolveGameTypeDefaultWhenEmpty(t *testing.T) {
	m := newTestManager(map[string]bool{"helloworld": true}, "helloworld")
	got, err := m.resolveGameType("")
	if err != nil || got != "helloworld" {
		t.Fatalf("resolveGameType(\"\") = (%q, %v), want (helloworld, nil)", got, err)
	}
}

func TestResolveGameTypeEmptyWithNoDefaultEnabled(t *testing.T) {
	m := newTestManager(map[string]bool{"echo": true}, "helloworld")
	if _, err := m.resolveGameType(""); err == nil {
		t.Errorf("expected an error when the default type is not enabled")
	}
}

func TestResolveGameTypeExplicitEnabled(t *testing.T) {
	m := newTestManager(map[string]bool{"helloworld": true, "echo": true}, "helloworld")
	got, err := m.resolveGameType("ECHO")
	if err != nil || got != "echo" {
		t.Fatalf("resolveGameType(ECHO) = (%q, %v), want (echo, nil) (case-insensitive)", got, err)
	}
}

func TestResolveGameTypeUnknownFallsBackToDefault(t *testing.T) {
	m := newTestManager(map[string]bool{"helloworld": true}, "helloworld")
	got, err := m.resolveGameType("nonexistent")
	if err != nil || got != "helloworld" {
		t.Fatalf("resolveGameType(nonexistent) = (%q, %v), want fallback to helloworld", got, err)
	}
}

func TestResolveGameTypeUnknownNoFallback(t *testing.T) {
	m := newTestManager(map[string]bool{"echo": true}, "helloworld")
	if _, err := m.resolveGameType("nonexistent"); err == nil {
		t.Errorf("expected an error when neither the requested nor default type is enabled")
	}
}

func TestResolveGameTypeResolvesAlias(t *testing.T) {
	m := newTestManager(map[string]bool{"helloworld": true, "echo": true}, "helloworld")
	got, err := m.resolveGameType("REFLECT")
	if err != nil || got != "echo" {
		t.Fatalf("resolveGameType(REFLECT) = (%q, %v), want (echo, nil) via alias", got, err)
	}
}

func TestResolveGameTypeAliasForDisabledTypeFallsBackToDefault(t *testing.T) {
	m := newTestManager(map[string]bool{"helloworld": true}, "helloworld")
	got, err := m.resolveGameType("reflect")
	if err != nil || got != "helloworld" {
		t.Fatalf("resolveGameType(reflect) = (%q, %v), want fallback to helloworld when echo is disabled", got, err)
	}
}

type credentialDenier struct{ deny string }

func (c credentialDenier) HasCredentials(gameTypeTag string) bool { return gameTypeTag != c.deny }

type allowlistDenier struct{ deny string }

func (a allowlistDenier) Allowed(channel string) bool { return channel != a.deny }

func TestCreateRejectsDisallowedChannel(t *testing.T) {
	engines := map[string]EngineFactory{"helloworld": func() Engine { return &testEngine{tag: "helloworld"} }}
	m := NewManager(map[string]bool{"helloworld": true}, "helloworld", engines, nil, allowlistDenier{deny: "banned"}, nil, nil)

	if _, err := m.Create("", "banned"); err == nil {
		t.Errorf("expected Create to reject a disallowed channel")
	}
}

func TestCreateRejectsMissingCredentials(t *testing.T) {
	engines := map[string]EngineFactory{"helloworld": func() Engine { return &testEngine{tag: "helloworld"} }}
	m := NewManager(map[string]bool{"helloworld": true}, "helloworld", engines, nil, nil, credentialDenier{deny: "helloworld"}, nil)

	if _, err := m.Create("", ""); err == nil {
		t.Errorf("expected Create to reject a game type missing credentials")
	}
}

func TestCreateSucceedsAndRegisters(t *testing.T) {
	engines := map[string]EngineFactory{"helloworld": func() Engine { return &testEngine{tag: "helloworld"} }}
	m := NewManager(map[string]bool{"helloworld": true}, "helloworld", engines, nil, nil, nil, nil)

	details, err := m.Create("", "")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if details.LobbyID == "" || details.AdminID == "" {
		t.Errorf("Create did not mint IDs: %+v", details)
	}
	if details.GameTypeTag != "helloworld" {
		t.Errorf("GameTypeTag = %q, want helloworld", details.GameTypeTag)
	}

	handle, ok := m.Lookup(details.LobbyID)
	if !ok {
		t.Fatalf("Lookup(%q) did not find the newly created lobby", details.LobbyID)
	}
	handle.Shutdown()

	// notifyShutdown runs from the agent's own goroutine asynchronously;
	// give it a moment to remove the registry entry.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, ok := m.Lookup(details.LobbyID); !ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Errorf("lobby was not removed from the registry after Shutdown")
}

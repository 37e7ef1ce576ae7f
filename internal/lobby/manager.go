package lobby

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/kottz/kolmodin-go/internal/logger"
	"github.com/kottz/kolmodin-go/internal/twitch"
)

// Details is the result of a successful lobby creation, returned to the
// HTTP layer.
type Details struct {
	LobbyID       string
	AdminID       string
	GameTypeTag   string
	TwitchChannel string // "" if none was requested
}

// ChannelAllowlist is the external content-cache collaborator consulted
// for the Twitch-channel allow-list; its implementation lives outside this
// core and is represented here only by the interface it satisfies.
type ChannelAllowlist interface {
	// Allowed reports whether channel may be used. An empty overall
	// allow-list means unrestricted.
	Allowed(channel string) bool
}

// CredentialChecker reports whether the external credentials a game type
// requires (e.g. a YouTube API key) are available.
type CredentialChecker interface {
	HasCredentials(gameTypeTag string) bool
}

// Manager is the process-wide registry of Lobby Agents keyed by lobby-id.
type Manager struct {
	enabledTypes  map[string]bool
	defaultType   string
	engines       map[string]EngineFactory
	aliases       map[string]string // lowercased alias -> canonical game-type tag
	allowlist     ChannelAllowlist
	credentials   CredentialChecker
	twitchService *twitch.Service

	mu      sync.Mutex
	lobbies map[string]*Agent
}

// NewManager constructs a Lobby Manager. engines maps every enabled
// game-type tag to its engine constructor; defaultType is used when an
// unknown tag is requested and is itself enabled. aliases maps additional
// recognized spellings to the canonical tag they resolve to (e.g. a game
// type may be requested by more than one name); it may be nil.
func NewManager(enabledTypes map[string]bool, defaultType string, engines map[string]EngineFactory, aliases map[string]string, allowlist ChannelAllowlist, credentials CredentialChecker, svc *twitch.Service) *Manager {
	return &Manager{
		enabledTypes:  enabledTypes,
		defaultType:   defaultType,
		engines:       engines,
		aliases:       aliases,
		allowlist:     allowlist,
		credentials:   credentials,
		twitchService: svc,
		lobbies:       make(map[string]*Agent),
	}
}

// Create resolves and validates a lobby-creation request, spawns a Lobby
// Agent, and registers it.
func (m *Manager) Create(requestedGameType, requestedTwitchChannel string) (Details, error) {
	gameType, err := m.resolveGameType(requestedGameType)
	if err != nil {
		return Details{}, err
	}

	if requestedTwitchChannel != "" && m.allowlist != nil && !m.allowlist.Allowed(requestedTwitchChannel) {
		return Details{}, fmt.Errorf("twitch channel %q is not allowed", requestedTwitchChannel)
	}

	if m.credentials != nil && !m.credentials.HasCredentials(gameType) {
		return Details{}, fmt.Errorf("game type %q is missing required credentials", gameType)
	}

	factory, ok := m.engines[gameType]
	if !ok {
		return Details{}, fmt.Errorf("no engine registered for game type %q", gameType)
	}

	lobbyID := uuid.NewString()
	adminID := uuid.NewString()
	engine := factory()

	agent := NewAgent(lobbyID, gameType, strings.ToLower(requestedTwitchChannel), engine, m.twitchService, m.notifyShutdown)

	m.mu.Lock()
	m.lobbies[lobbyID] = agent
	m.mu.Unlock()

	logger.Lobby().Info().Str("lobby_id", lobbyID).Str("game_type", gameType).Msg("lobby created")

	return Details{
		LobbyID:       lobbyID,
		AdminID:       adminID,
		GameTypeTag:   gameType,
		TwitchChannel: agent.TwitchChannel,
	}, nil
}

func (m *Manager) resolveGameType(requested string) (string, error) {
	if requested == "" {
		if m.enabledTypes[m.defaultType] {
			return m.defaultType, nil
		}
		return "", fmt.Errorf("no default game type is enabled")
	}
	tag := strings.ToLower(strings.TrimSpace(requested))
	if canonical, ok := m.aliases[tag]; ok {
		tag = canonical
	}
	if m.enabledTypes[tag] {
		return tag, nil
	}
	if m.enabledTypes[m.defaultType] {
		return m.defaultType, nil
	}
	return "", fmt.Errorf("game type %q is not enabled", requested)
}

// Lookup returns the handle for lobbyID, if it exists.
func (m *Manager) Lookup(lobbyID string) (Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	agent, ok := m.lobbies[lobbyID]
	if !ok {
		return Handle{}, false
	}
	return agent.Handle(), true
}

// notifyShutdown removes lobbyID's entry, invoked by the agent's own
// handler loop when it shuts down.
func (m *Manager) notifyShutdown(lobbyID string) {
	m.mu.Lock()
	delete(m.lobbies, lobbyID)
	m.mu.Unlock()
	logger.Lobby().Info().Str("lobby_id", lobbyID).Msg("lobby removed from registry")
}

// Package twitch implements the upstream Twitch IRC subsystem: the Token
// Provider, Twitch Service registry, Channel Agents and IRC Connection
// Workers.
package twitch

import (
	"context"
	"strings"
	"sync"

	"github.com/kottz/kolmodin-go/internal/logger"
)

// Service is the process-wide registry of Channel Agents, keyed by
// lowercased channel name. It is the sole creator and retirer of Channel
// Agents.
type Service struct {
	ctx           context.Context
	tokenProvider *TokenProvider

	mu       sync.Mutex
	channels map[string]*ChannelAgent
}

// NewService constructs a Twitch Service bound to ctx: agents it creates
// are torn down when ctx is cancelled at process shutdown.
func NewService(ctx context.Context, tp *TokenProvider) *Service {
	s := &Service{
		ctx:           ctx,
		tokenProvider: tp,
		channels:      make(map[string]*ChannelAgent),
	}
	go func() {
		<-s.ctx.Done()
		s.mu.Lock()
		agents := make([]*ChannelAgent, 0, len(s.channels))
		for _, agent := range s.channels {
			agents = append(agents, agent)
		}
		s.mu.Unlock()
		for _, agent := range agents {
			agent.Shutdown()
		}
	}()
	return s
}

// Subscribe lowercases channel, reuses an existing non-Terminated agent or
// creates a new one, registers lobbyID's queue, and returns the agent's
// status watch for the caller to observe.
func (s *Service) Subscribe(channel, lobbyID string, queue chan<- ChatMessage) (*Watch[Status], error) {
	key := strings.ToLower(channel)

	s.mu.Lock()
	agent, exists := s.channels[key]
	if !exists || agent.StatusWatch().Get().Kind == StatusTerminated {
		agent = newChannelAgent(key, s.tokenProvider, s.onAgentTerminated)
		s.channels[key] = agent
		logger.Twitch().Info().Str("channel", key).Msg("created channel agent")
	}
	s.mu.Unlock()

	if err := agent.AddSubscriber(lobbyID, queue); err != nil {
		return nil, err
	}
	return agent.StatusWatch(), nil
}

// Unsubscribe forwards RemoveSubscriber to channel's agent. A channel
// absent from the registry (raced with termination) is not an error.
func (s *Service) Unsubscribe(channel, lobbyID string) {
	key := strings.ToLower(channel)

	s.mu.Lock()
	agent, exists := s.channels[key]
	s.mu.Unlock()
	if !exists {
		return
	}
	agent.RemoveSubscriber(lobbyID)
}

// onAgentTerminated removes channel's entry once its agent has completed
// its Terminated transition, observed via the agent's own handler loop
// rather than a supervising goroutine holding a back-reference.
func (s *Service) onAgentTerminated(channel string) {
	s.mu.Lock()
	delete(s.channels, channel)
	s.mu.Unlock()
	logger.Twitch().Info().Str("channel", channel).Msg("removed channel agent from registry")
}

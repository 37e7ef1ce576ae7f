package lobby

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kottz/kolmodin-go/internal/gateway"
	"github.com/kottz/kolmodin-go/internal/logger"
	"github.com/kottz/kolmodin-go/internal/twitch"
)

// chatQueueCapacity is the default bound on a lobby's per-channel chat
// queue.
const chatQueueCapacity = 32

// mailboxCapacity bounds a Lobby Agent's own input queue.
const mailboxCapacity = 32

// inactivityTimeout is the lobby inactivity window: a lobby with no
// client activity for this long shuts itself down.
const inactivityTimeout = 60 * time.Minute

// Agent is the authoritative per-lobby coordinator. It owns the game
// engine, the client queue map, and the lobby's Twitch subscription
// lifecycle exclusively.
type Agent struct {
	ID            string
	GameTypeTag   string
	TwitchChannel string // "" if no channel was configured

	mailbox chan agentMsg

	engine        Engine
	twitchService *twitch.Service
	onShutdown    func(lobbyID string)
}

type agentMsg interface{ isAgentMsg() }

type clientConnectedMsg struct {
	clientID string
	queue    chan<- []byte
}
type clientDisconnectedMsg struct{ clientID string }
type clientEventMsg struct {
	clientID string
	rawText  []byte
}
type internalTwitchMessageMsg struct{ msg twitch.ChatMessage }
type internalTwitchStatusMsg struct{ status twitch.Status }
type agentShutdownMsg struct{}

func (clientConnectedMsg) isAgentMsg()      {}
func (clientDisconnectedMsg) isAgentMsg()   {}
func (clientEventMsg) isAgentMsg()          {}
func (internalTwitchMessageMsg) isAgentMsg() {}
func (internalTwitchStatusMsg) isAgentMsg() {}
func (agentShutdownMsg) isAgentMsg()        {}

// NewAgent constructs a Lobby Agent and starts its handler loop.
// onShutdown is invoked exactly once, from the handler loop, when the
// lobby shuts down for any reason — a write-end notification capability
// handed to the agent, not a back-reference to its owner.
func NewAgent(id, gameTypeTag, twitchChannel string, engine Engine, svc *twitch.Service, onShutdown func(string)) *Agent {
	a := &Agent{
		ID:            id,
		GameTypeTag:   gameTypeTag,
		TwitchChannel: twitchChannel,
		mailbox:       make(chan agentMsg, mailboxCapacity),
		engine:        engine,
		twitchService: svc,
		onShutdown:    onShutdown,
	}
	go a.run()
	return a
}

// Handle is the cloneable, fire-and-forget write-end of an Agent's
// mailbox, used by the WebSocket session handler.
type Handle struct {
	id      string
	mailbox chan agentMsg
}

func (a *Agent) Handle() Handle { return Handle{id: a.ID, mailbox: a.mailbox} }

func (h Handle) ID() string { return h.id }

func (h Handle) ClientConnected(clientID string, queue chan<- []byte) {
	h.send(clientConnectedMsg{clientID: clientID, queue: queue})
}

func (h Handle) ClientDisconnected(clientID string) {
	h.send(clientDisconnectedMsg{clientID: clientID})
}

func (h Handle) ClientEvent(clientID string, rawText []byte) {
	h.send(clientEventMsg{clientID: clientID, rawText: rawText})
}

func (h Handle) Shutdown() {
	h.send(agentShutdownMsg{})
}

func (h Handle) send(msg agentMsg) {
	select {
	case h.mailbox <- msg:
	default:
		logger.Lobby().Warn().Str("lobby_id", h.id).Msg("dropped message, lobby mailbox full")
	}
}

type lobbyOutbox struct {
	clients       map[string]chan<- []byte
	onSendFailure func(clientID string)
}

func (o lobbyOutbox) SendToClient(clientID string, frame []byte) {
	q, ok := o.clients[clientID]
	if !ok {
		return
	}
	select {
	case q <- frame:
	default:
		o.onSendFailure(clientID)
	}
}

func (o lobbyOutbox) Broadcast(frame []byte) {
	for id, q := range o.clients {
		select {
		case q <- frame:
		default:
			o.onSendFailure(id)
		}
	}
}

func (o lobbyOutbox) ClientIDs() []string {
	ids := make([]string, 0, len(o.clients))
	for id := range o.clients {
		ids = append(ids, id)
	}
	return ids
}

func (a *Agent) run() {
	log := logger.Lobby().With().Str("lobby_id", a.ID).Logger()

	clients := make(map[string]chan<- []byte)
	outbox := lobbyOutbox{clients: clients, onSendFailure: func(clientID string) {
		select {
		case a.mailbox <- clientDisconnectedMsg{clientID: clientID}:
		default:
		}
	}}

	var listenerCancel context.CancelFunc
	var listenerGroup *errgroup.Group
	var statusWatch *twitch.Watch[twitch.Status]
	subscribed := false

	currentStatusFrame := func() []byte {
		if statusWatch != nil {
			return gateway.TwitchStatusUpdateFrame(statusWatch.Get())
		}
		return gateway.TwitchStatusUpdateFrame(twitch.Disconnected("No Twitch channel configured"))
	}

	inactivityTimer := time.NewTimer(inactivityTimeout)
	inactivityTimer.Stop()

	shutdown := func() {
		if subscribed {
			a.twitchService.Unsubscribe(a.TwitchChannel, a.ID)
		}
		if listenerCancel != nil {
			listenerCancel()
		}
		if listenerGroup != nil {
			if err := listenerGroup.Wait(); err != nil {
				log.Warn().Err(err).Msg("twitch listener group returned an error")
			}
		}
		inactivityTimer.Stop()
		log.Info().Msg("lobby shut down")
		a.onShutdown(a.ID)
	}

	armInactivityTimer := func() {
		if a.engine.IsEmpty() {
			return
		}
		if !inactivityTimer.Stop() {
			select {
			case <-inactivityTimer.C:
			default:
			}
		}
		inactivityTimer.Reset(inactivityTimeout)
	}

	subscribeToTwitch := func() {
		chatQueue := make(chan twitch.ChatMessage, chatQueueCapacity)
		watch, err := a.twitchService.Subscribe(a.TwitchChannel, a.ID, chatQueue)
		if err != nil {
			log.Warn().Err(err).Msg("failed to subscribe to twitch channel")
			return
		}
		subscribed = true
		statusWatch = watch

		parentCtx, cancel := context.WithCancel(context.Background())
		listenerCancel = cancel
		group, ctx := errgroup.WithContext(parentCtx)
		listenerGroup = group

		statusCh, unsubscribeWatch := watch.Subscribe()

		group.Go(func() error {
			defer unsubscribeWatch()
			for {
				select {
				case <-ctx.Done():
					return nil
				case msg, ok := <-chatQueue:
					if !ok {
						return nil
					}
					select {
					case a.mailbox <- internalTwitchMessageMsg{msg: msg}:
					default:
					}
				}
			}
		})

		group.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case status, ok := <-statusCh:
					if !ok {
						return nil
					}
					select {
					case a.mailbox <- internalTwitchStatusMsg{status: status}:
					default:
					}
				}
			}
		})
	}

	for {
		var raw agentMsg
		select {
		case <-inactivityTimer.C:
			log.Info().Msg("lobby inactivity timeout, shutting down")
			shutdown()
			return
		case raw = <-a.mailbox:
		}

		switch msg := raw.(type) {

		case clientConnectedMsg:
			clients[msg.clientID] = msg.queue
			if len(clients) == 1 && a.TwitchChannel != "" {
				subscribeToTwitch()
			}
			select {
			case msg.queue <- currentStatusFrame():
			default:
			}
			a.engine.ClientConnected(msg.clientID, outbox)
			armInactivityTimer()

		case clientDisconnectedMsg:
			delete(clients, msg.clientID)
			a.engine.ClientDisconnected(msg.clientID, outbox)
			if a.engine.IsEmpty() {
				shutdown()
				return
			}

		case clientEventMsg:
			armInactivityTimer()
			frame, err := gateway.ParseClientFrame(msg.rawText)
			if err != nil {
				outbox.SendToClient(msg.clientID, gateway.SystemErrorFrame(err.Error()))
				continue
			}
			if frame.Kind == gateway.ClientLeaveLobby {
				delete(clients, msg.clientID)
				a.engine.ClientDisconnected(msg.clientID, outbox)
				if a.engine.IsEmpty() {
					shutdown()
					return
				}
				continue
			}
			result := a.engine.HandleUpstreamMessage(msg.clientID, frame, outbox)
			if result == RequestDisconnect {
				delete(clients, msg.clientID)
				a.engine.ClientDisconnected(msg.clientID, outbox)
				if a.engine.IsEmpty() {
					shutdown()
					return
				}
			}

		case internalTwitchMessageMsg:
			a.engine.HandleTwitchMessage(msg.msg, outbox)

		case internalTwitchStatusMsg:
			outbox.Broadcast(gateway.TwitchStatusUpdateFrame(msg.status))

		case agentShutdownMsg:
			shutdown()
			return
		}
	}
}

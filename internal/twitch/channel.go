package twitch

import (
	"context"
	"errors"

	"github.com/kottz/kolmodin-go/internal/logger"
	"github.com/kottz/kolmodin-go/internal/twitch/ircmsg"
)

// errChannelTerminated is returned by AddSubscriber when the agent has
// already entered its Terminated state. The Twitch Service replaces an agent
// it already sees as Terminated before subscribing; if the agent terminates
// after that check, Service.Subscribe returns this error to its caller.
var errChannelTerminated = errors.New("channel agent terminated")

// defaultSubscriberQueueCapacity is the default bound on a Lobby's chat
// queue.
const defaultSubscriberQueueCapacity = 32

// ircEventQueueCapacity bounds the Channel Agent's own mailbox, larger
// than a subscriber queue since it fans in every raw IRC line.
const ircEventQueueCapacity = 512

// ChannelAgent represents one Twitch channel within the process. It owns
// its subscriber map and its Connection Worker's lifetime exclusively;
// everything else reaches it only through its mailbox.
type ChannelAgent struct {
	channel string
	mailbox chan channelAgentMsg
	status  *Watch[Status]

	tokenProvider *TokenProvider
	onTerminated  func(channel string)
}

type channelAgentMsg interface{ isChannelAgentMsg() }

type addSubscriberMsg struct {
	lobbyID string
	queue   chan<- ChatMessage
	reply   chan<- error
}

type removeSubscriberMsg struct {
	lobbyID string
	reply   chan<- bool
}

type internalLineMsg struct{ line string }

type internalStatusMsg struct{ status Status }

type shutdownMsg struct{}

func (addSubscriberMsg) isChannelAgentMsg()    {}
func (removeSubscriberMsg) isChannelAgentMsg() {}
func (internalLineMsg) isChannelAgentMsg()     {}
func (internalStatusMsg) isChannelAgentMsg()   {}
func (shutdownMsg) isChannelAgentMsg()         {}

// newChannelAgent constructs a Channel Agent in Initializing status and
// starts its handler loop. onTerminated is invoked exactly once, from the
// handler loop itself, after the Terminated transition completes — the
// Twitch Service uses it to remove the registry entry.
func newChannelAgent(channel string, tp *TokenProvider, onTerminated func(string)) *ChannelAgent {
	a := &ChannelAgent{
		channel:       channel,
		mailbox:       make(chan channelAgentMsg, ircEventQueueCapacity),
		status:        NewWatch(Initializing()),
		tokenProvider: tp,
		onTerminated:  onTerminated,
	}
	go a.run()
	return a
}

// StatusWatch returns the status watch's read side.
func (a *ChannelAgent) StatusWatch() *Watch[Status] { return a.status }

func (a *ChannelAgent) run() {
	log := logger.Twitch().With().Str("channel", a.channel).Logger()

	subscribers := make(map[string]chan<- ChatMessage)
	var workerCancel context.CancelFunc
	var workerDone chan struct{}
	workerRunning := false

	startWorker := func() {
		ctx, cancel := context.WithCancel(context.Background())
		workerCancel = cancel
		workerDone = make(chan struct{})
		workerRunning = true

		mailbox := a.mailbox
		done := workerDone
		cb := workerCallbacks{
			reportStatus: func(s Status) {
				select {
				case mailbox <- internalStatusMsg{status: s}:
				default:
					log.Warn().Msg("dropped status update, agent mailbox full")
				}
			},
			reportLine: func(line string) {
				select {
				case mailbox <- internalLineMsg{line: line}:
				default:
					log.Warn().Msg("dropped irc line, agent mailbox full")
				}
			},
		}
		go func() {
			defer close(done)
			runConnectionWorker(ctx, a.channel, a.tokenProvider, cb)
		}()
	}

	terminate := func() {
		a.status.Set(Terminated())
		if workerCancel != nil {
			workerCancel()
		}
		if workerDone != nil {
			<-workerDone
		}
		log.Info().Msg("channel agent terminated")
		a.onTerminated(a.channel)
	}

	for raw := range a.mailbox {
		switch msg := raw.(type) {

		case addSubscriberMsg:
			if a.status.Get().Kind == StatusTerminated {
				msg.reply <- errChannelTerminated
				continue
			}
			subscribers[msg.lobbyID] = msg.queue
			if !workerRunning {
				startWorker()
			}
			msg.reply <- nil

		case removeSubscriberMsg:
			delete(subscribers, msg.lobbyID)
			empty := len(subscribers) == 0
			if empty && workerRunning && workerCancel != nil {
				workerCancel()
			}
			msg.reply <- empty

		case internalLineMsg:
			parsed, ok := ircmsg.Parse(msg.line)
			if !ok {
				continue
			}
			chatMsg, ok := chatMessageFromLine(parsed, a.channel)
			if !ok {
				continue
			}
			for lobbyID, queue := range subscribers {
				select {
				case queue <- chatMsg:
				default:
					delete(subscribers, lobbyID)
					log.Warn().Str("lobby_id", lobbyID).Msg("evicted slow subscriber")
				}
			}
			if len(subscribers) == 0 && workerRunning && workerCancel != nil {
				workerCancel()
			}

		case internalStatusMsg:
			a.status.Set(msg.status)

			finished := false
			if workerRunning {
				select {
				case <-workerDone:
					finished = true
					workerRunning = false
				default:
				}
			}

			if msg.status.Kind == StatusDisconnected && finished {
				if isUnrecoverableAuthFailure(msg.status.Reason) || len(subscribers) == 0 {
					terminate()
					return
				}
				startWorker()
			}

		case shutdownMsg:
			terminate()
			return
		}
	}
}

func isUnrecoverableAuthFailure(reason string) bool {
	return reason == "Persistent Auth Failure"
}

// AddSubscriber registers lobbyID's chat queue with the agent, starting the
// Connection Worker on first subscriber. Returns errChannelTerminated if
// the agent has already terminated.
func (a *ChannelAgent) AddSubscriber(lobbyID string, queue chan<- ChatMessage) error {
	reply := make(chan error, 1)
	a.mailbox <- addSubscriberMsg{lobbyID: lobbyID, queue: queue, reply: reply}
	return <-reply
}

// RemoveSubscriber unregisters lobbyID, reporting whether the subscriber
// set is now empty.
func (a *ChannelAgent) RemoveSubscriber(lobbyID string) bool {
	reply := make(chan bool, 1)
	a.mailbox <- removeSubscriberMsg{lobbyID: lobbyID, reply: reply}
	return <-reply
}

// Shutdown initiates the agent's Terminated transition.
func (a *ChannelAgent) Shutdown() {
	a.mailbox <- shutdownMsg{}
}

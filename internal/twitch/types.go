package twitch

import (
	"strings"
	"time"

	"github.com/kottz/kolmodin-go/internal/twitch/ircmsg"
)

// ChatMessage is the downstream chat-message shape produced by a Channel
// Agent from a parsed PRIVMSG line and fanned out to subscriber queues.
type ChatMessage struct {
	Channel            string
	SenderLogin        string
	SenderDisplayName  string
	SenderUserID       string
	Text               string
	Badges             string
	IsModerator        bool
	IsSubscriber       bool
	MessageID          string
	RawTags            map[string]string
	Timestamp          time.Time
}

// chatMessageFromLine converts a parsed PRIVMSG line addressed to channel
// into a ChatMessage, or ok=false if the line is not a PRIVMSG for that
// channel.
func chatMessageFromLine(m ircmsg.Message, channel string) (ChatMessage, bool) {
	if m.Command != ircmsg.CmdPrivmsg {
		return ChatMessage{}, false
	}
	if len(m.Params) == 0 {
		return ChatMessage{}, false
	}
	target := strings.TrimPrefix(m.Params[0], "#")
	if !strings.EqualFold(target, channel) {
		return ChatMessage{}, false
	}

	text, ok := m.PrivmsgText()
	if !ok {
		return ChatMessage{}, false
	}
	text = ircmsg.CleanText(text)

	displayName, _ := m.TagValue("display-name")
	login := m.PrefixUsername()
	senderLogin := login
	senderDisplay := displayName
	if senderDisplay == "" {
		senderDisplay = login
	}
	if senderLogin == "" {
		senderLogin = "unknown_user"
	}

	userID, _ := m.TagValue("user-id")
	badges, hasBadges := m.TagValue("badges")
	messageID, _ := m.TagValue("id")

	modTag, _ := m.TagValue("mod")
	subTag, _ := m.TagValue("subscriber")
	isMod := modTag == "1" || (hasBadges && strings.Contains(badges, "moderator"))
	isSub := subTag == "1" || (hasBadges && strings.Contains(badges, "subscriber/"))

	var rawTags map[string]string
	if m.HasTags() {
		rawTags = make(map[string]string)
		for _, component := range strings.Split(m.Tags, ";") {
			k, v, _ := strings.Cut(component, "=")
			rawTags[k] = v
		}
	}

	return ChatMessage{
		Channel:           channel,
		SenderLogin:       senderLogin,
		SenderDisplayName: senderDisplay,
		SenderUserID:      userID,
		Text:              text,
		Badges:            badges,
		IsModerator:       isMod,
		IsSubscriber:      isSub,
		MessageID:         messageID,
		RawTags:           rawTags,
		Timestamp:         time.Now().UTC(),
	}, true
}

// StatusKind enumerates the Connection status watched value.
type StatusKind int

const (
	StatusInitializing StatusKind = iota
	StatusConnecting
	StatusAuthenticating
	StatusConnected
	StatusReconnecting
	StatusDisconnected
	StatusTerminated
)

func (k StatusKind) String() string {
	switch k {
	case StatusInitializing:
		return "Initializing"
	case StatusConnecting:
		return "Connecting"
	case StatusAuthenticating:
		return "Authenticating"
	case StatusConnected:
		return "Connected"
	case StatusReconnecting:
		return "Reconnecting"
	case StatusDisconnected:
		return "Disconnected"
	case StatusTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// Status is one value of the status watch: one of the StatusKind variants
// above plus whichever fields that variant carries. Terminated is the only
// one that is final; the rest may recur.
type Status struct {
	Kind          StatusKind
	Attempt       int           // Connecting / Authenticating
	Reason        string        // Reconnecting / Disconnected
	FailedAttempt int           // Reconnecting
	RetryIn       time.Duration // Reconnecting
}

func Initializing() Status { return Status{Kind: StatusInitializing} }

func Connecting(attempt int) Status {
	return Status{Kind: StatusConnecting, Attempt: attempt}
}

func Authenticating(attempt int) Status {
	return Status{Kind: StatusAuthenticating, Attempt: attempt}
}

func Connected() Status { return Status{Kind: StatusConnected} }

func Reconnecting(reason string, failedAttempt int, retryIn time.Duration) Status {
	return Status{Kind: StatusReconnecting, Reason: reason, FailedAttempt: failedAttempt, RetryIn: retryIn}
}

func Disconnected(reason string) Status {
	return Status{Kind: StatusDisconnected, Reason: reason}
}

func Terminated() Status { return Status{Kind: StatusTerminated} }

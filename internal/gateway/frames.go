// Package gateway implements the WebSocket Session Handler and the
// client/server tagged-union frame types carried over it.
package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/kottz/kolmodin-go/internal/twitch"
)

// ClientFrameKind enumerates the upstream tagged union.
type ClientFrameKind string

const (
	ClientConnectToLobby      ClientFrameKind = "ConnectToLobby"
	ClientLeaveLobby          ClientFrameKind = "LeaveLobby"
	ClientGlobalCommand       ClientFrameKind = "GlobalCommand"
	ClientGameSpecificCommand ClientFrameKind = "GameSpecificCommand"
)

// ClientFrame is one parsed upstream frame.
type ClientFrame struct {
	Kind ClientFrameKind

	LobbyID     string          // ConnectToLobby
	CommandName string          // GlobalCommand
	GameTypeTag string          // GameSpecificCommand
	Payload     json.RawMessage // GlobalCommand / GameSpecificCommand
}

type clientEnvelope struct {
	MessageType string          `json:"messageType"`
	Payload     json.RawMessage `json:"payload"`
}

// ParseClientFrame decodes one raw WebSocket text frame into a ClientFrame.
func ParseClientFrame(data []byte) (ClientFrame, error) {
	var env clientEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return ClientFrame{}, fmt.Errorf("malformed frame: %w", err)
	}

	switch ClientFrameKind(env.MessageType) {
	case ClientConnectToLobby:
		var p struct {
			LobbyID string `json:"lobby_id"`
		}
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return ClientFrame{}, fmt.Errorf("malformed ConnectToLobby payload: %w", err)
		}
		if p.LobbyID == "" {
			return ClientFrame{}, fmt.Errorf("ConnectToLobby missing lobby_id")
		}
		return ClientFrame{Kind: ClientConnectToLobby, LobbyID: p.LobbyID}, nil

	case ClientLeaveLobby:
		return ClientFrame{Kind: ClientLeaveLobby}, nil

	case ClientGlobalCommand:
		var p struct {
			Name    string          `json:"name"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return ClientFrame{}, fmt.Errorf("malformed GlobalCommand payload: %w", err)
		}
		return ClientFrame{Kind: ClientGlobalCommand, CommandName: p.Name, Payload: p.Payload}, nil

	case ClientGameSpecificCommand:
		var p struct {
			GameTypeTag string          `json:"game_type_tag"`
			Payload     json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return ClientFrame{}, fmt.Errorf("malformed GameSpecificCommand payload: %w", err)
		}
		return ClientFrame{Kind: ClientGameSpecificCommand, GameTypeTag: p.GameTypeTag, Payload: p.Payload}, nil

	default:
		return ClientFrame{}, fmt.Errorf("unknown messageType %q", env.MessageType)
	}
}

type serverEnvelope struct {
	MessageType string `json:"messageType"`
	Payload     any    `json:"payload"`
}

func encode(messageType string, payload any) []byte {
	b, err := json.Marshal(serverEnvelope{MessageType: messageType, Payload: payload})
	if err != nil {
		// payload types here are always marshalable plain structs; a
		// failure means a caller bug, not a recoverable runtime condition.
		b, _ = json.Marshal(serverEnvelope{MessageType: "SystemError", Payload: map[string]string{"message": "internal encoding error"}})
	}
	return b
}

// GlobalEventFrame encodes a GlobalEvent{name, payload} downstream frame.
func GlobalEventFrame(name string, payload any) []byte {
	return encode("GlobalEvent", map[string]any{"name": name, "payload": payload})
}

// GameSpecificEventFrame encodes a GameSpecificEvent{gameTypeTag, payload}
// downstream frame.
func GameSpecificEventFrame(gameTypeTag string, payload any) []byte {
	return encode("GameSpecificEvent", map[string]any{"game_type_tag": gameTypeTag, "payload": payload})
}

// SystemErrorFrame encodes a SystemError{message} downstream frame.
func SystemErrorFrame(message string) []byte {
	return encode("SystemError", map[string]string{"message": message})
}

// TwitchMessageRelayFrame encodes a TwitchMessageRelay{...} downstream
// frame carrying one chat message.
func TwitchMessageRelayFrame(msg twitch.ChatMessage) []byte {
	return encode("TwitchMessageRelay", map[string]any{
		"channel":             msg.Channel,
		"sender_login":        msg.SenderLogin,
		"sender_display_name": msg.SenderDisplayName,
		"sender_user_id":      msg.SenderUserID,
		"text":                msg.Text,
		"badges":              msg.Badges,
		"is_moderator":        msg.IsModerator,
		"is_subscriber":       msg.IsSubscriber,
		"message_id":          msg.MessageID,
		"timestamp":           msg.Timestamp,
	})
}

// twitchStatusPayload is the payload of the standing TwitchStatusUpdate
// GlobalEvent.
type twitchStatusPayload struct {
	StatusType    string `json:"status_type"`
	Detail        string `json:"detail,omitempty"`
	Attempt       int    `json:"attempt,omitempty"`
	FailedAttempt int    `json:"failed_attempt,omitempty"`
	RetryInMs     int64  `json:"retry_in_ms,omitempty"`
}

// TwitchStatusUpdateFrame encodes the current Twitch connection status as a
// GlobalEvent named "TwitchStatusUpdate".
func TwitchStatusUpdateFrame(status twitch.Status) []byte {
	payload := twitchStatusPayload{StatusType: status.Kind.String()}
	switch status.Kind {
	case twitch.StatusConnecting, twitch.StatusAuthenticating:
		payload.Attempt = status.Attempt
	case twitch.StatusReconnecting:
		payload.Detail = status.Reason
		payload.FailedAttempt = status.FailedAttempt
		payload.RetryInMs = status.RetryIn.Milliseconds()
	case twitch.StatusDisconnected:
		payload.Detail = status.Reason
	}
	return GlobalEventFrame("TwitchStatusUpdate", payload)
}

// Package wire defines the push-channel frame format: the JSON envelope
// exchanged over the websocket, the inbound server events decoded from it,
// and the small set of client emissions.
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/resolving/chatsync/pkg/models"
)

// EventType tags an inbound push event.
type EventType string

const (
	// EventConnected and EventDisconnected are synthesized by the transport
	// around the channel lifecycle; the server never sends them as frames.
	EventConnected    EventType = "connect"
	EventDisconnected EventType = "disconnect"

	EventUserConnected    EventType = "user_connected"
	EventUserDisconnected EventType = "user_disconnected"
	EventNewMessage       EventType = "new_message"
	EventMessageDeleted   EventType = "message_deleted"
	EventUserMuted        EventType = "user_muted"
	EventUserUnmuted      EventType = "user_unmuted"
	EventMessageError     EventType = "message_error"
)

// Client emission names.
const (
	EmitSendMessage   = "send_message"
	EmitDeleteMessage = "delete_message"
	EmitHeartbeat     = "heartbeat"
)

// Frame is the JSON envelope carried on the push channel in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Presence is the payload of user_connected and user_disconnected.
type Presence struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

// Deleted is the payload of message_deleted.
type Deleted struct {
	MessageID int64 `json:"message_id"`
}

// Muted is the payload of user_muted. Duration is the raw wire tag; the
// notice layer humanizes it.
type Muted struct {
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	Duration  string `json:"duration"`
	Moderator string `json:"moderator"`
}

// Unmuted is the payload of user_unmuted.
type Unmuted struct {
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	Moderator string `json:"moderator"`
}

// ErrorNotice is the payload of message_error.
type ErrorNotice struct {
	Message string `json:"message"`
}

// Event is a decoded inbound event. Type selects which payload field is set;
// the lifecycle events carry none.
type Event struct {
	Type     EventType
	Presence *Presence
	Message  *models.Message
	Deleted  *Deleted
	Muted    *Muted
	Unmuted  *Unmuted
	Error    *ErrorNotice
}

// Decode parses a server frame into a typed event. Unknown event names are
// an error; the transport logs and drops them so a newer server cannot wedge
// an older client.
func Decode(frame Frame) (Event, error) {
	ev := Event{Type: EventType(frame.Event)}

	unmarshal := func(dst any) error {
		if len(frame.Data) == 0 {
			return fmt.Errorf("event %q carries no payload", frame.Event)
		}
		return json.Unmarshal(frame.Data, dst)
	}

	switch ev.Type {
	case EventConnected, EventDisconnected:
		return ev, nil
	case EventUserConnected, EventUserDisconnected:
		ev.Presence = &Presence{}
		return ev, unmarshal(ev.Presence)
	case EventNewMessage:
		ev.Message = &models.Message{}
		return ev, unmarshal(ev.Message)
	case EventMessageDeleted:
		ev.Deleted = &Deleted{}
		return ev, unmarshal(ev.Deleted)
	case EventUserMuted:
		ev.Muted = &Muted{}
		return ev, unmarshal(ev.Muted)
	case EventUserUnmuted:
		ev.Unmuted = &Unmuted{}
		return ev, unmarshal(ev.Unmuted)
	case EventMessageError:
		ev.Error = &ErrorNotice{}
		return ev, unmarshal(ev.Error)
	default:
		return ev, fmt.Errorf("unknown push event %q", frame.Event)
	}
}

// Connected returns the synthesized channel-up event.
func Connected() Event { return Event{Type: EventConnected} }

// Disconnected returns the synthesized channel-down event.
func Disconnected() Event { return Event{Type: EventDisconnected} }

type sendPayload struct {
	Message string `json:"message"`
}

type deletePayload struct {
	MessageID int64 `json:"message_id"`
}

// SendMessage builds the client frame carrying a chat message.
func SendMessage(text string) Frame {
	return Frame{Event: EmitSendMessage, Data: mustMarshal(sendPayload{Message: text})}
}

// DeleteMessage builds the client frame requesting a deletion.
func DeleteMessage(messageID int64) Frame {
	return Frame{Event: EmitDeleteMessage, Data: mustMarshal(deletePayload{MessageID: messageID})}
}

// Heartbeat builds the payloadless liveness frame.
func Heartbeat() Frame {
	return Frame{Event: EmitHeartbeat}
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		// Only reachable with unmarshalable types, which the payload
		// structs above are not.
		panic(err)
	}
	return data
}

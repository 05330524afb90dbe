package event

import "encoding/json"

// Client -> server events.
const (
	EventUserConnect       = "user_connect"
	EventJoinConversation  = "join_conversation"
	EventLeaveConversation = "leave_conversation"
	EventTypingStart       = "typing_start"
	EventTypingStop        = "typing_stop"
	EventHeartbeat         = "heartbeat"
)

// Server -> client events.
const (
	EventUserStatusChange      = "user_status_change"
	EventFriendRequestReceived = "friend_request_received"
	EventFriendRequestAccepted = "friend_request_accepted"
	EventNewMessage            = "new_message"
	EventUserTyping            = "user_typing"
)

// Topic naming. A user topic carries friend-request and presence events
// to every connection of one user; a conversation topic carries messages
// and typing indicators to whoever has that conversation open.
func UserTopic(userID string) string         { return "user_" + userID }
func ConversationTopic(convID string) string { return "conversation_" + convID }

// WsEvent is the envelope for every websocket frame in both directions.
type WsEvent struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// New wraps a payload into an envelope. Marshal failures can only come
// from payload types that are not JSON-encodable, so callers treat the
// error as a programming bug and log it.
func New(name string, payload any) (WsEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return WsEvent{}, err
	}
	return WsEvent{Event: name, Payload: raw}, nil
}

// UserConnectPayload authenticates a live connection to a user identity.
type UserConnectPayload struct {
	UserID string `json:"userId"`
}

// ConversationPayload addresses join/leave/typing events at a conversation.
type ConversationPayload struct {
	ConversationID string `json:"conversationId"`
}

// HeartbeatPayload keeps a user's lastSeen fresh.
type HeartbeatPayload struct {
	UserID string `json:"userId"`
}

// StatusChangePayload announces a presence flip to all live connections.
type StatusChangePayload struct {
	UserID string `json:"userId"`
	Online bool   `json:"online"`
}

// TypingPayload rebroadcasts a typing indicator to a conversation topic.
type TypingPayload struct {
	UserID         string `json:"userId"`
	ConversationID string `json:"conversationId"`
	Typing         bool   `json:"typing"`
}

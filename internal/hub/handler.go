package hub

import (
	"encoding/json"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/hungvu25/Web-chat-HungVu/internal/event"
)

// handleEvent dispatches one inbound client event. There is no
// request/response contract on the realtime channel, so every failure
// here is logged and swallowed.
func (h *Hub) handleEvent(ev event.WsEvent, c *Client) {
	switch ev.Event {
	case event.EventUserConnect:
		h.handleUserConnect(ev, c)
	case event.EventJoinConversation:
		if id, ok := h.conversationID(ev, c); ok {
			h.Join(c, event.ConversationTopic(id))
		}
	case event.EventLeaveConversation:
		if id, ok := h.conversationID(ev, c); ok {
			h.Leave(c, event.ConversationTopic(id))
		}
	case event.EventTypingStart:
		h.handleTyping(ev, c, true)
	case event.EventTypingStop:
		h.handleTyping(ev, c, false)
	case event.EventHeartbeat:
		h.handleHeartbeat(ev, c)
	default:
		h.logger.Warn("unknown event type", zap.String("event", ev.Event), zap.String("conn_id", c.ID))
	}
}

// handleUserConnect is the handshake: it binds the connection to a user,
// joins the user topic so notifications reach every tab, attaches to the
// presence tracker, and broadcasts became-online if this was the user's
// first connection.
func (h *Hub) handleUserConnect(ev event.WsEvent, c *Client) {
	var payload event.UserConnectPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		h.logger.Warn("malformed user_connect payload", zap.String("conn_id", c.ID), zap.Error(err))
		return
	}

	userID, err := primitive.ObjectIDFromHex(payload.UserID)
	if err != nil {
		h.logger.Warn("user_connect with invalid user id",
			zap.String("conn_id", c.ID),
			zap.String("user_id", payload.UserID),
		)
		return
	}

	if !c.bindUser(userID) {
		h.logger.Warn("user_connect on already-bound connection", zap.String("conn_id", c.ID))
		return
	}

	h.Join(c, event.UserTopic(payload.UserID))

	if becameOnline := h.tracker.Attach(h.ctx, userID, c.ID); becameOnline {
		h.broadcastStatus(payload.UserID, true)
	}
}

func (h *Hub) handleTyping(ev event.WsEvent, c *Client, typing bool) {
	id, ok := h.conversationID(ev, c)
	if !ok {
		return
	}

	userID, bound := c.boundUser()
	if !bound {
		h.logger.Debug("typing event from unbound connection", zap.String("conn_id", c.ID))
		return
	}

	out, err := event.New(event.EventUserTyping, event.TypingPayload{
		UserID:         userID.Hex(),
		ConversationID: id,
		Typing:         typing,
	})
	if err != nil {
		h.logger.Error("failed to encode typing event", zap.Error(err))
		return
	}

	// The emitter already knows it is typing.
	h.PublishExcept(event.ConversationTopic(id), out, c)
}

// handleHeartbeat refreshes lastSeen. The payload's user id must match
// the connection's bound user; anything else is ignored.
func (h *Hub) handleHeartbeat(ev event.WsEvent, c *Client) {
	var payload event.HeartbeatPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		h.logger.Debug("malformed heartbeat payload", zap.String("conn_id", c.ID), zap.Error(err))
		return
	}

	userID, bound := c.boundUser()
	if !bound || userID.Hex() != payload.UserID {
		return
	}

	h.tracker.Touch(h.ctx, userID)
}

func (h *Hub) conversationID(ev event.WsEvent, c *Client) (string, bool) {
	var payload event.ConversationPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil || payload.ConversationID == "" {
		h.logger.Debug("malformed conversation payload",
			zap.String("event", ev.Event),
			zap.String("conn_id", c.ID),
		)
		return "", false
	}
	return payload.ConversationID, true
}

package hub

import (
	"context"
	"crypto/sha1"
	"encoding/binary"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/hungvu25/Web-chat-HungVu/internal/event"
	"github.com/hungvu25/Web-chat-HungVu/internal/presence"
)

const (
	shardCount = 64 // tune: 16/64/128 depending on load
)

type inboundMessage struct {
	event  event.WsEvent
	client *Client
}

type topicBucket struct {
	sync.RWMutex
	rooms map[string]map[string]*Client
}

// Hub routes events to topics and owns every live websocket client. It
// is the process-wide fan-out router: delivery is at-most-once and
// best-effort, with no queuing for absent members. Durable state is
// written before anything is published, so a missed event degrades to
// "delayed until next fetch".
type Hub struct {
	shards     [shardCount]*topicBucket
	register   chan *Client
	unregister chan *Client
	inbound    chan inboundMessage

	clientsMu sync.RWMutex
	clients   map[string]*Client

	tracker  *presence.Tracker
	logger   *zap.Logger
	upgrader websocket.Upgrader

	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
}

func NewHub(tracker *presence.Tracker, allowedOrigins []string, logger *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		register:   make(chan *Client, 1024),
		unregister: make(chan *Client, 1024),
		inbound:    make(chan inboundMessage, 4096), // buffer for burst handling
		clients:    make(map[string]*Client),
		tracker:    tracker,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}

	for i := 0; i < shardCount; i++ {
		h.shards[i] = &topicBucket{
			rooms: make(map[string]map[string]*Client),
		}
	}

	// run manager loop
	go h.run()

	// start worker loop
	for i := 0; i < workerPoolSize; i++ {
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			for {
				select {
				case <-h.ctx.Done():
					return
				case in, ok := <-h.inbound:
					if !ok {
						return
					}

					h.handleEvent(in.event, in.client)
				}
			}
		}()
	}

	return h
}

func (h *Hub) run() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case c := <-h.register:
			h.addClient(c)
		case c := <-h.unregister:
			h.removeClient(c)
		}
	}
}

func getShard(topic string) uint32 {
	if topic == "" {
		return 0
	}

	sum := sha1.Sum([]byte(topic))
	return binary.BigEndian.Uint32(sum[:4]) % shardCount
}

func (h *Hub) addClient(c *Client) {
	h.clientsMu.Lock()
	h.clients[c.ID] = c
	h.clientsMu.Unlock()

	h.logger.Info("client registered", zap.String("conn_id", c.ID))
}

// removeClient tears a connection down: topic memberships, the global
// registry, and the presence tracker. If it was the user's last
// connection the became-offline signal is broadcast to everyone.
func (h *Hub) removeClient(c *Client) {
	for _, topic := range c.topicSnapshot() {
		h.Leave(c, topic)
	}

	h.clientsMu.Lock()
	delete(h.clients, c.ID)
	h.clientsMu.Unlock()

	userID, becameOffline := h.tracker.Detach(h.ctx, c.ID)
	if becameOffline {
		h.broadcastStatus(userID.Hex(), false)
	}

	c.Close()
	h.logger.Info("client removed", zap.String("conn_id", c.ID))
}

// Join adds the client to a topic. Idempotent.
func (h *Hub) Join(c *Client, topic string) {
	b := h.shards[getShard(topic)]
	b.Lock()
	room, ok := b.rooms[topic]
	if !ok {
		room = make(map[string]*Client)
		b.rooms[topic] = room
	}
	room[c.ID] = c
	b.Unlock()

	c.rememberTopic(topic)
	h.logger.Debug("client joined topic", zap.String("conn_id", c.ID), zap.String("topic", topic))
}

// Leave removes the client from a topic. Idempotent; empty rooms are
// dropped so stale topics do not accumulate.
func (h *Hub) Leave(c *Client, topic string) {
	b := h.shards[getShard(topic)]
	b.Lock()
	if room, ok := b.rooms[topic]; ok {
		delete(room, c.ID)
		if len(room) == 0 {
			delete(b.rooms, topic)
		}
	}
	b.Unlock()

	c.forgetTopic(topic)
	h.logger.Debug("client left topic", zap.String("conn_id", c.ID), zap.String("topic", topic))
}

// Publish delivers an event to every connection joined to the topic.
// With zero members the event is dropped; the durable write that
// preceded it is the recipient's source of truth.
func (h *Hub) Publish(topic string, ev event.WsEvent) {
	h.publish(topic, ev, nil)
}

// PublishExcept is Publish minus one connection, used for typing
// indicators where the emitter must not hear its own echo.
func (h *Hub) PublishExcept(topic string, ev event.WsEvent, except *Client) {
	h.publish(topic, ev, except)
}

func (h *Hub) publish(topic string, ev event.WsEvent, except *Client) {
	b := h.shards[getShard(topic)]

	// collect clients while holding RLock
	b.RLock()
	room, ok := b.rooms[topic]
	if !ok || len(room) == 0 {
		b.RUnlock()
		return
	}

	clients := make([]*Client, 0, len(room))
	for _, c := range room {
		if except != nil && c.ID == except.ID {
			continue
		}
		clients = append(clients, c)
	}
	b.RUnlock()

	// deliver without holding the lock
	for _, c := range clients {
		h.deliver(c, ev, topic)
	}
}

// Broadcast delivers an event to every live connection process-wide.
// Used for presence changes, which are idempotent and supersede one
// another, so clients that have not loaded a friend list yet still
// converge.
func (h *Hub) Broadcast(ev event.WsEvent) {
	h.clientsMu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clientsMu.RUnlock()

	for _, c := range clients {
		h.deliver(c, ev, "*")
	}
}

func (h *Hub) deliver(c *Client, ev event.WsEvent, topic string) {
	if c.SafeSend(ev, sendTimeout) {
		return
	}

	if c.IsClosed() {
		// The connection is already torn down; its unregister is in
		// flight and will remove it from every topic.
		return
	}

	// egress full -> apply policy
	h.logger.Warn("egress full", zap.String("conn_id", c.ID), zap.String("topic", topic))
	if kickOnFull {
		// Unregister (safe async)
		select {
		case h.unregister <- c:
		default:
		}
	}
}

func (h *Hub) broadcastStatus(userID string, online bool) {
	ev, err := event.New(event.EventUserStatusChange, event.StatusChangePayload{
		UserID: userID,
		Online: online,
	})
	if err != nil {
		h.logger.Error("failed to encode status change", zap.Error(err))
		return
	}
	h.Broadcast(ev)
}

// Stop closes every client and drains the worker pool. Safe to call
// more than once; shutdown paths overlap with the container cleanup.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		h.cancel()

		h.clientsMu.RLock()
		for _, c := range h.clients {
			c.Close()
		}
		h.clientsMu.RUnlock()

		close(h.inbound)
		h.wg.Wait()
	})
}

// ServeWS upgrades an HTTP request to a websocket connection and
// registers the client. The connection is anonymous until its
// user_connect handshake arrives.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	RegisterClient(conn, h)
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if origin == a {
				return true
			}
		}
		return false
	}
}

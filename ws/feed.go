package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gameVerifyServer/config"
	"gameVerifyServer/registry"

	"github.com/gorilla/websocket"
)

/* =========================
   FEED CHANNELS
   submissions   every accepted submission
   flags         rapid-duplicate flags
   seed:<seed>   both, for one seed
========================= */

const (
	ChannelSubmissions = "submissions"
	ChannelFlags       = "flags"
	seedChannelPrefix  = "seed:"

	maxFeedHistory = 50
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  config.WSReadBufferSize,
	WriteBufferSize: config.WSWriteBufferSize,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ClientConnection is one feed observer and its subscriptions.
type ClientConnection struct {
	ID            string
	Conn          *websocket.Conn
	Subscriptions map[string]bool
	mu            sync.RWMutex
	Send          chan []byte
}

// ClientMessage is a request from an observer.
type ClientMessage struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
}

// Hub fans registry events out to subscribed observers.
type Hub struct {
	clients      map[*ClientConnection]bool
	clientsMutex sync.RWMutex

	unregister chan *ClientConnection
	broadcast  chan registry.Event
	done       chan struct{}

	history      []registry.Event
	historyMutex sync.RWMutex

	clientIDCounter int64
	pumps           sync.WaitGroup
}

// NewHub creates a Hub. Call Run to start dispatching.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*ClientConnection]bool),
		unregister: make(chan *ClientConnection),
		broadcast:  make(chan registry.Event, 100),
		done:       make(chan struct{}),
	}
}

// Publish queues ev for broadcast. It never blocks; events are dropped when
// the queue is full or the hub has stopped.
func (h *Hub) Publish(ev registry.Event) {
	select {
	case <-h.done:
		return
	default:
	}
	select {
	case h.broadcast <- ev:
	default:
		log.Printf("⚠️  Feed broadcast queue full, dropping %s event", ev.Type)
	}
}

// Run dispatches events until ctx is cancelled, then disconnects every
// client and waits for their pumps to exit.
func (h *Hub) Run(ctx context.Context) {
	log.Println("🚀 Verification feed hub started")

	defer func() {
		close(h.done)
		h.clientsMutex.Lock()
		for client := range h.clients {
			delete(h.clients, client)
			close(client.Send)
		}
		h.clientsMutex.Unlock()
		h.pumps.Wait()
		log.Println("🔌 Verification feed hub stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.unregister:
			h.clientsMutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			total := len(h.clients)
			h.clientsMutex.Unlock()
			log.Printf("👋 Feed client unregistered: %s (Total: %d)", client.ID, total)

		case ev := <-h.broadcast:
			h.remember(ev)
			h.dispatch(ev)
		}
	}
}

func (h *Hub) remember(ev registry.Event) {
	h.historyMutex.Lock()
	defer h.historyMutex.Unlock()
	h.history = append(h.history, ev)
	if len(h.history) > maxFeedHistory {
		h.history = h.history[1:]
	}
}

// channelsFor lists the channels an event is delivered on.
func channelsFor(ev registry.Event) []string {
	var channels []string
	switch ev.Type {
	case registry.EventFlag:
		channels = append(channels, ChannelFlags)
	default:
		channels = append(channels, ChannelSubmissions)
	}
	if ev.Seed != "" {
		channels = append(channels, seedChannelPrefix+ev.Seed)
	}
	return channels
}

func (h *Hub) dispatch(ev registry.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("❌ Failed to marshal %s event: %v", ev.Type, err)
		return
	}
	channels := channelsFor(ev)

	h.clientsMutex.RLock()
	defer h.clientsMutex.RUnlock()

	for client := range h.clients {
		if !client.subscribedToAny(channels) {
			continue
		}
		select {
		case client.Send <- data:
		default:
			log.Printf("⚠️  Client %s send buffer full, skipping message", client.ID)
		}
	}
}

func (c *ClientConnection) subscribedToAny(channels []string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, ch := range channels {
		if c.Subscriptions[ch] {
			return true
		}
	}
	return false
}

// ServeWS upgrades the request and attaches the connection to the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	select {
	case <-h.done:
		http.Error(w, "feed unavailable", http.StatusServiceUnavailable)
		return
	default:
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("❌ WebSocket upgrade failed:", err)
		return
	}

	client := &ClientConnection{
		ID:            fmt.Sprintf("feed_%d", atomic.AddInt64(&h.clientIDCounter, 1)),
		Conn:          conn,
		Subscriptions: make(map[string]bool),
		Send:          make(chan []byte, config.WSSendBufferSize),
	}

	// Registered under the lock so Run's shutdown either sees the client or
	// the client sees done.
	h.clientsMutex.Lock()
	select {
	case <-h.done:
		h.clientsMutex.Unlock()
		conn.Close()
		return
	default:
	}
	h.clients[client] = true
	total := len(h.clients)
	h.pumps.Add(2)
	h.clientsMutex.Unlock()
	log.Printf("✅ Feed client registered: %s (Total: %d)", client.ID, total)

	go h.writePump(client)
	go h.readPump(client)
}

// writePump sends queued messages and keepalive pings.
func (h *Hub) writePump(c *ClientConnection) {
	ticker := time.NewTicker(config.WSPingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		h.pumps.Done()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(config.WSWriteDeadline))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("❌ Write error for client %s: %v", c.ID, err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(config.WSWriteDeadline))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump handles subscription requests until the connection drops.
func (h *Hub) readPump(c *ClientConnection) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.Conn.Close()
		h.pumps.Done()
	}()

	c.Conn.SetReadLimit(config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(config.WSReadDeadline))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(config.WSReadDeadline))
		return nil
	})

	for {
		_, messageBytes, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("❌ Read error for client %s: %v", c.ID, err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			log.Printf("❌ Failed to parse message from client %s: %v", c.ID, err)
			continue
		}
		h.handleMessage(c, msg)
	}
}

func validChannel(channel string) bool {
	switch {
	case channel == ChannelSubmissions, channel == ChannelFlags:
		return true
	case strings.HasPrefix(channel, seedChannelPrefix):
		return len(channel) > len(seedChannelPrefix)
	}
	return false
}

func (h *Hub) handleMessage(c *ClientConnection, msg ClientMessage) {
	switch msg.Type {
	case "subscribe":
		if !validChannel(msg.Channel) {
			h.reply(c, map[string]any{"type": "error", "error": "unknown channel: " + msg.Channel})
			return
		}
		c.mu.Lock()
		c.Subscriptions[msg.Channel] = true
		c.mu.Unlock()
		log.Printf("📡 Client %s subscribed to: %s", c.ID, msg.Channel)
		h.sendInitialData(c, msg.Channel)

	case "unsubscribe":
		c.mu.Lock()
		delete(c.Subscriptions, msg.Channel)
		c.mu.Unlock()
		log.Printf("📴 Client %s unsubscribed from: %s", c.ID, msg.Channel)
		h.reply(c, map[string]any{"type": "unsubscribed", "channel": msg.Channel})

	default:
		log.Printf("⚠️  Unknown message type from client %s: %s", c.ID, msg.Type)
		h.reply(c, map[string]any{"type": "error", "error": "unknown message type: " + msg.Type})
	}
}

// sendInitialData acknowledges a subscription with the recent events that
// match the channel.
func (h *Hub) sendInitialData(c *ClientConnection, channel string) {
	h.historyMutex.RLock()
	var recent []registry.Event
	for _, ev := range h.history {
		for _, ch := range channelsFor(ev) {
			if ch == channel {
				recent = append(recent, ev)
				break
			}
		}
	}
	h.historyMutex.RUnlock()

	if recent == nil {
		recent = []registry.Event{}
	}
	h.reply(c, map[string]any{
		"type":    "subscribed",
		"channel": channel,
		"history": recent,
	})
	log.Printf("📨 Client %s subscribed to %s (sent %d history events)", c.ID, channel, len(recent))
}

// reply queues a direct message to one client. Replies go through the hub so
// they cannot race a close of the send channel.
func (h *Hub) reply(c *ClientConnection, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	h.clientsMutex.RLock()
	defer h.clientsMutex.RUnlock()
	if !h.clients[c] {
		return
	}
	select {
	case c.Send <- data:
	default:
		log.Printf("⚠️  Client %s send buffer full, skipping reply", c.ID)
	}
}

var _ registry.Publisher = (*Hub)(nil)

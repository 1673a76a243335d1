package server

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// channelBufferSize is the buffer size for the broadcast channel and per-client
// send channels.
const channelBufferSize = 256

// Hub fans events out to every connected /events subscriber.
type Hub struct {
	mu        sync.RWMutex
	clients   map[*Client]bool
	broadcast chan Message
	stopped   bool
	upgrader  websocket.Upgrader

	// greeting builds the first message a new client receives. Optional.
	greeting func() Message

	log zerolog.Logger
}

// Client is one WebSocket subscriber.
type Client struct {
	// conn is the underlying WebSocket connection.
	conn *websocket.Conn

	// send is a buffered channel for outgoing messages.
	send chan Message

	// done is closed to signal the client should shut down.
	done chan struct{}

	// sendOnce guards closing done; both Stop and readPump may try.
	sendOnce sync.Once

	hub *Hub
}

// NewHub creates a hub and starts its broadcaster. Call Stop to release it.
func NewHub(log zerolog.Logger) *Hub {
	h := &Hub{
		clients:   make(map[*Client]bool),
		broadcast: make(chan Message, channelBufferSize),
		upgrader: websocket.Upgrader{
			// The UI is served by a dev server on another port.
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		log: log.With().Str("component", "events").Logger(),
	}
	go h.runBroadcaster()
	return h
}

// SetGreeting sets the message builder used for newly connected clients.
func (h *Hub) SetGreeting(fn func() Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.greeting = fn
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and registers the new client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	stopped := h.stopped
	greeting := h.greeting
	h.mu.RUnlock()
	if stopped {
		http.Error(w, "event stream closed", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error.
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{
		conn: conn,
		send: make(chan Message, channelBufferSize),
		done: make(chan struct{}),
		hub:  h,
	}
	if greeting != nil {
		client.send <- greeting()
	}

	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[client] = true
	h.mu.Unlock()

	h.log.Info().Int("clients", h.ClientCount()).Msg("client connected")

	go client.writePump()
	go client.readPump()
}

// Stop disconnects every client and ends the broadcaster. Further
// broadcasts are dropped.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return
	}
	h.stopped = true

	// writePump sends the close frame once it sees done.
	for client := range h.clients {
		client.closeSend()
	}
	h.clients = make(map[*Client]bool)
	close(h.broadcast)
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.closeSend()
}

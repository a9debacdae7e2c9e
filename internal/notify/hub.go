package notify

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	TopicNotification = "notification"
	TopicProgress     = "progress"

	writeTimeout = 5 * time.Second
)

// Envelope is the JSON frame written to websocket clients.
type Envelope struct {
	Topic   string `json:"topic"`
	Payload any    `json:"payload"`
}

type hubClient struct {
	conn    *websocket.Conn
	channel string
	mu      sync.Mutex
}

func (c *hubClient) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(v)
}

// Hub delivers notifications and pipeline progress to websocket clients.
// Every client subscribes to one channel (an upload token or a view id)
// and only receives frames published on it.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader
	now      func() time.Time

	mu      sync.RWMutex
	clients map[*hubClient]struct{}
	closed  bool
}

// NewHub constructs an empty Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: sameOrigin,
		},
		now:     time.Now,
		clients: make(map[*hubClient]struct{}),
	}
}

// sameOrigin accepts requests without an Origin header (non-browser
// clients) and browser requests from the page's own host.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// Channel returns a Notifier publishing on channel only.
func (h *Hub) Channel(channel string) Notifier {
	return channelNotifier{hub: h, channel: channel}
}

type channelNotifier struct {
	hub     *Hub
	channel string
}

func (n channelNotifier) Notify(title, message string, level Level) {
	n.hub.Publish(n.channel, TopicNotification, Notification{
		Title:   title,
		Message: message,
		Level:   level,
		Time:    n.hub.now().UTC(),
	})
}

// Publish writes payload to the clients subscribed to channel. Clients that
// fail to accept the frame are dropped.
func (h *Hub) Publish(channel, topic string, payload any) {
	if channel == "" {
		return
	}
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return
	}
	var clients []*hubClient
	for c := range h.clients {
		if c.channel == channel {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	frame := Envelope{Topic: topic, Payload: payload}
	for _, c := range clients {
		if err := c.writeJSON(frame); err != nil {
			h.logger.Debug("ws: dropping client", slog.String("error", err.Error()))
			h.remove(c)
		}
	}
}

// Clients reports the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and keeps the connection subscribed to
// the channel query parameter until the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	channel := strings.TrimSpace(r.URL.Query().Get("channel"))
	if channel == "" {
		http.Error(w, "missing channel", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	client := &hubClient{conn: conn, channel: channel}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[client] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug("ws: client connected",
		slog.String("remote", r.RemoteAddr),
		slog.String("channel", channel),
		slog.Int("clients", count),
	)

	go h.readLoop(client)
}

// readLoop discards inbound frames; it exists to notice disconnects.
func (h *Hub) readLoop(c *hubClient) {
	defer h.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("ws: read error", slog.String("error", err.Error()))
			}
			return
		}
	}
}

func (h *Hub) remove(c *hubClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		c.conn.Close()
	}
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[*hubClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.mu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		c.mu.Unlock()
		c.conn.Close()
	}
}

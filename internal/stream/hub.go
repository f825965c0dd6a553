// Package stream provides the channel broadcaster that fans JSON events out to
// WebSocket subscribers.
package stream

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	apperrors "pattern-trader/internal/errors"
	"pattern-trader/internal/logging"
)

// HubConfig holds configuration for the Hub.
type HubConfig struct {
	// SendBufferSize is the size of each connection's outbound queue.
	SendBufferSize int
	// PingInterval is the liveness sweep period.
	PingInterval time.Duration
	// WriteTimeout bounds every write to a connection.
	WriteTimeout time.Duration
	// MaxMessageSize limits inbound control messages.
	MaxMessageSize int64
	// MissedProbeLimit is the number of unanswered probes a connection may
	// accumulate; the next sweep drops it.
	MissedProbeLimit int
}

// DefaultHubConfig returns the default hub configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		SendBufferSize:   256,
		PingInterval:     30 * time.Second,
		WriteTimeout:     10 * time.Second,
		MaxMessageSize:   4096,
		MissedProbeLimit: 1,
	}
}

// Conn is the subset of *websocket.Conn the hub needs.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Hub is the connection registry. A single mutex serializes registration,
// removal, subscription changes and broadcast iteration.
type Hub struct {
	config  HubConfig
	logger  zerolog.Logger
	metrics *Metrics

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*Client
	closed  bool
}

// NewHub creates a hub with default configuration.
func NewHub(logger zerolog.Logger, metrics *Metrics) *Hub {
	return NewHubWithConfig(DefaultHubConfig(), logger, metrics)
}

// NewHubWithConfig creates a hub with custom configuration.
func NewHubWithConfig(config HubConfig, logger zerolog.Logger, metrics *Metrics) *Hub {
	def := DefaultHubConfig()
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = def.SendBufferSize
	}
	if config.PingInterval <= 0 {
		config.PingInterval = def.PingInterval
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = def.WriteTimeout
	}
	if config.MaxMessageSize <= 0 {
		config.MaxMessageSize = def.MaxMessageSize
	}
	if config.MissedProbeLimit <= 0 {
		config.MissedProbeLimit = def.MissedProbeLimit
	}

	return &Hub{
		config:  config,
		logger:  logging.WithComponent(logger, "hub"),
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*Client),
	}
}

// ServeHTTP upgrades the request to a WebSocket and serves it until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("WebSocket upgrade failed")
		return
	}
	h.Serve(conn)
}

// Serve registers conn and blocks reading its control messages until the
// connection fails or is dropped.
func (h *Hub) Serve(conn Conn) {
	c := h.Register(conn)
	if c == nil {
		return
	}
	c.readPump()
}

// Register adds a connection with an empty subscription set and starts its
// writer. It returns nil if the hub is closed.
func (h *Hub) Register(conn Conn) *Client {
	c := &Client{
		id:       uuid.NewString(),
		conn:     conn,
		hub:      h,
		send:     make(chan []byte, h.config.SendBufferSize),
		channels: make(map[string]struct{}),
	}
	c.logger = logging.WithConn(h.logger, c.id)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return nil
	}
	h.clients[c.id] = c
	count := len(h.clients)
	h.mu.Unlock()

	h.metrics.connOpened()
	c.logger.Info().Int("clients", count).Msg("Client connected")

	go c.writePump()
	return c
}

// Unregister removes the connection and releases it. Safe to call repeatedly.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	removed := h.removeLocked(c)
	h.mu.Unlock()

	if removed {
		c.logger.Info().Msg("Client disconnected")
	}
}

// removeLocked drops c from the registry and closes its queue, which makes
// the writer close the socket. Caller holds h.mu.
func (h *Hub) removeLocked(c *Client) bool {
	if _, ok := h.clients[c.id]; !ok {
		return false
	}
	delete(h.clients, c.id)
	close(c.send)
	h.metrics.connClosed()
	return true
}

// Subscribe adds channel to the connection's subscription set.
func (h *Hub) Subscribe(c *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	c.channels[channel] = struct{}{}
}

// Unsubscribe removes channel from the connection's subscription set.
// The connection stays open.
func (h *Hub) Unsubscribe(c *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(c.channels, channel)
}

// Broadcast delivers {"channel","data"} to every connection subscribed to
// channel. A connection whose queue is full is dropped; delivery failures
// never reach the caller. The only error is a payload that cannot be encoded.
func (h *Hub) Broadcast(channel string, payload any) error {
	frame, err := encodeEnvelope(channel, payload)
	if err != nil {
		return err
	}

	h.mu.Lock()
	delivered, dropped := 0, 0
	for _, c := range h.clients {
		if _, ok := c.channels[channel]; !ok {
			continue
		}
		select {
		case c.send <- frame:
			delivered++
		default:
			// Queue full: slow consumer.
			dropped++
			h.removeLocked(c)
			h.metrics.deliveryFailure()
			c.logger.Warn().
				Err(apperrors.ErrDeliveryFailure).
				Str("channel", channel).
				Msg("Send queue full, dropping client")
		}
	}
	h.mu.Unlock()

	h.metrics.sent(channel, delivered)
	if delivered > 0 || dropped > 0 {
		logging.LogBroadcast(h.logger, channel, delivered, dropped)
	}
	return nil
}

// Publish implements the pipeline publisher contract.
func (h *Hub) Publish(_ context.Context, channel string, payload any) error {
	return h.Broadcast(channel, payload)
}

// Sweep runs one liveness pass. A connection that has not answered its
// previous probe is dropped; every other connection is marked pending and
// probed with a WebSocket ping.
func (h *Hub) Sweep() {
	var probe []*Client

	h.mu.Lock()
	for _, c := range h.clients {
		if c.missed >= h.config.MissedProbeLimit {
			h.removeLocked(c)
			h.metrics.livenessDrop()
			c.logger.Info().Int("missed", c.missed).Msg("Client failed liveness probe, dropping")
			continue
		}
		c.missed++
		probe = append(probe, c)
	}
	h.mu.Unlock()

	deadline := time.Now().Add(h.config.WriteTimeout)
	for _, c := range probe {
		if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
			c.logger.Debug().Err(err).Msg("Ping failed")
			h.metrics.deliveryFailure()
			h.Unregister(c)
		}
	}
}

// Run performs liveness sweeps every PingInterval until ctx is cancelled,
// then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.Close()
			return
		case <-ticker.C:
			h.Sweep()
		}
	}
}

// Close drops every connection and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, c := range h.clients {
		h.removeLocked(c)
	}
}

// markAlive clears the pending probe count.
func (h *Hub) markAlive(c *Client) {
	h.mu.Lock()
	c.missed = 0
	h.mu.Unlock()
}

// reply queues a frame for a single connection.
func (h *Hub) reply(c *Client, frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	select {
	case c.send <- frame:
	default:
		h.removeLocked(c)
		h.metrics.deliveryFailure()
	}
}

// ClientCount returns the number of registered connections.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// SubscriberCount returns the number of connections subscribed to channel.
func (h *Hub) SubscriberCount(channel string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, c := range h.clients {
		if _, ok := c.channels[channel]; ok {
			n++
		}
	}
	return n
}

// Channels returns the sorted set of channels with at least one subscriber.
func (h *Hub) Channels() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := make(map[string]struct{})
	for _, c := range h.clients {
		for ch := range c.channels {
			set[ch] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for ch := range set {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}

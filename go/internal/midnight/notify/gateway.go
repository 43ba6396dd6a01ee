package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Gateway fans change signals out to WebSocket clients. It is the server
// half of WebSocketNotifier.
type Gateway struct {
	conns map[*conn]bool
	mu    sync.RWMutex

	upgrader websocket.Upgrader
	config   GatewayConfig

	broadcastCh chan Table
}

type conn struct {
	id      string
	ws      *websocket.Conn
	send    chan []byte
	gateway *Gateway
	once    sync.Once
}

// GatewayConfig holds configuration for WebSocket connections
type GatewayConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  512,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

func NewGateway(config GatewayConfig) *Gateway {
	return &Gateway{
		conns: make(map[*conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan Table, 256),
	}
}

var _ Publisher = (*Gateway)(nil)

// Start processes broadcasts until ctx is cancelled.
func (g *Gateway) Start(ctx context.Context) {
	log.Info().Msg("notify gateway started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("notify gateway shutting down")
			g.closeAll()
			return
		case table := <-g.broadcastCh:
			g.broadcast(table)
		}
	}
}

// Publish queues a signal for every connected client.
func (g *Gateway) Publish(_ context.Context, table Table) error {
	select {
	case g.broadcastCh <- table:
	default:
		log.Warn().Str("table", string(table)).Msg("broadcast channel full, dropping signal")
	}
	return nil
}

// ServeHTTP upgrades the request and registers the connection.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return
	}
	c := &conn{
		id:      uuid.NewString(),
		ws:      ws,
		send:    make(chan []byte, 64),
		gateway: g,
	}
	g.register(c)

	go c.writePump()
	go c.readPump()

	log.Info().Str("connection_id", c.id).Msg("WebSocket connection established")
}

// Connections returns the number of registered clients.
func (g *Gateway) Connections() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.conns)
}

func (g *Gateway) register(c *conn) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.conns[c] = true
}

func (g *Gateway) unregister(c *conn) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conns[c] {
		delete(g.conns, c)
		close(c.send)
		log.Debug().Str("connection_id", c.id).Msg("connection unregistered")
	}
}

func (g *Gateway) broadcast(table Table) {
	data, err := json.Marshal(Signal{Table: table})
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal signal")
		return
	}

	// sends happen under the read lock so unregister cannot close a channel
	// mid-send
	g.mu.RLock()
	sent := len(g.conns)
	var slow []*conn
	for c := range g.conns {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	g.mu.RUnlock()

	for _, c := range slow {
		log.Warn().Str("connection_id", c.id).Msg("connection send buffer full, closing connection")
		g.unregister(c)
		c.close()
	}
	log.Debug().Str("table", string(table)).Int("connections", sent).Msg("signal broadcast")
}

func (g *Gateway) closeAll() {
	g.mu.RLock()
	targets := make([]*conn, 0, len(g.conns))
	for c := range g.conns {
		targets = append(targets, c)
	}
	g.mu.RUnlock()
	for _, c := range targets {
		g.unregister(c)
	}
}

func (c *conn) close() {
	c.once.Do(func() { _ = c.ws.Close() })
}

func (c *conn) writePump() {
	cfg := c.gateway.config
	ticker := time.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.close()
		c.gateway.unregister(c)
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().Err(err).Str("connection_id", c.id).Msg("failed to write message to WebSocket")
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().Err(err).Str("connection_id", c.id).Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump drains client frames so pongs and closes are processed.
func (c *conn) readPump() {
	cfg := c.gateway.config
	defer func() {
		c.gateway.unregister(c)
		c.close()
	}()

	c.ws.SetReadLimit(cfg.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("connection_id", c.id).Msg("unexpected WebSocket close error")
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	}
}

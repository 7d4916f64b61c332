package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/bosswatch/go/internal/worldboss"
	"github.com/mcdev12/bosswatch/go/internal/worldboss/events"
	"github.com/rs/zerolog/log"
)

// Countdown is the part of the engine the gateway drives.
type Countdown interface {
	Attach(ctx context.Context) (*worldboss.Subscription, error)
	Resume(ctx context.Context) error
	RefreshNow(ctx context.Context) error
	Snapshot() worldboss.Snapshot
}

// ConnectionManager manages WebSocket connections. Every connection is one
// subscriber of the countdown.
type ConnectionManager struct {
	engine Countdown

	connections map[*Connection]bool
	mu          sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	// Transitions forwarded to every connection
	broadcastCh chan []byte
}

// Connection represents a WebSocket connection to a client
type Connection struct {
	ID      string
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	sub       *worldboss.Subscription
	closeOnce sync.Once

	ConnectedAt time.Time
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	AttachTimeout   time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		AttachTimeout:   5 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(engine Countdown, config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		engine:      engine,
		connections: make(map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan []byte, 256),
	}
}

// Start forwards broadcast transitions until ctx is canceled, then closes
// every connection.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			cm.closeAll()
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// OnTransition forwards the transitions clients react to. It never blocks
// the engine.
func (cm *ConnectionManager) OnTransition(t events.Transition) {
	typ, ok := forwardedKinds[t.Kind]
	if !ok {
		return
	}

	data, err := newMessage(typ, t.OccurredAt, t)
	if err != nil {
		log.Error().Err(err).Str("kind", string(t.Kind)).Msg("failed to marshal transition for broadcast")
		return
	}

	select {
	case cm.broadcastCh <- data:
	default:
		log.Warn().Str("kind", string(t.Kind)).Msg("broadcast channel full, dropping message")
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket and attaches it
// to the countdown.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(r.Context(), cm.config.AttachTimeout)
	defer cancel()

	sub, err := cm.engine.Attach(ctx)
	if err != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "countdown unavailable"),
			time.Now().Add(cm.config.WriteTimeout))
		conn.Close()
		return fmt.Errorf("failed to attach to countdown: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, 16),
		Manager:     cm,
		sub:         sub,
		ConnectedAt: time.Now(),
	}

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Uint64("subscription_id", sub.ID()).
		Msg("WebSocket connection established")

	return nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.connections[conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Int("total_connections", len(cm.connections)).
		Msg("connection registered")
}

// unregisterConnection removes conn and detaches its subscription. Safe to
// call from both pumps.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	_, exists := cm.connections[conn]
	if exists {
		delete(cm.connections, conn)
		close(conn.Send)
	}
	cm.mu.Unlock()

	if !exists {
		return
	}
	conn.sub.Detach()

	log.Info().
		Str("connection_id", conn.ID).
		Dur("connected_for", time.Since(conn.ConnectedAt)).
		Msg("connection unregistered")
}

func (cm *ConnectionManager) closeAll() {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.connections))
	for conn := range cm.connections {
		conns = append(conns, conn)
	}
	cm.mu.RUnlock()

	for _, conn := range conns {
		cm.unregisterConnection(conn)
		conn.close()
	}
}

func (cm *ConnectionManager) handleBroadcast(message []byte) {
	cm.mu.RLock()
	targets := make([]*Connection, 0, len(cm.connections))
	for conn := range cm.connections {
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()

	for _, conn := range targets {
		if !conn.enqueue(message) {
			log.Warn().
				Str("connection_id", conn.ID).
				Msg("connection send buffer full, closing connection")
			cm.unregisterConnection(conn)
			conn.close()
		}
	}

	log.Debug().Int("connections", len(targets)).Msg("event broadcasted")
}

// ConnectionCount returns the number of open WebSocket connections.
func (cm *ConnectionManager) ConnectionCount() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.connections)
}

// enqueue queues message unless the connection is gone or its buffer is
// full.
func (c *Connection) enqueue(message []byte) (ok bool) {
	c.Manager.mu.RLock()
	defer c.Manager.mu.RUnlock()
	if !c.Manager.connections[c] {
		return true
	}
	select {
	case c.Send <- message:
		return true
	default:
		return false
	}
}

func (c *Connection) close() {
	c.closeOnce.Do(func() {
		c.Conn.Close()
	})
}

// writePump writes snapshots from the subscription and queued broadcasts to
// the socket. It owns every write to the connection.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Manager.unregisterConnection(c)
		c.close()
	}()

	for {
		select {
		case snap, ok := <-c.sub.C:
			if !ok {
				c.writeClose(websocket.CloseGoingAway, "countdown stopped")
				return
			}
			message, err := snapshotMessage(snap)
			if err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to marshal snapshot")
				continue
			}
			if !c.write(websocket.TextMessage, message) {
				return
			}

		case message, ok := <-c.Send:
			if !ok {
				c.writeClose(websocket.CloseNormalClosure, "")
				return
			}
			if !c.write(websocket.TextMessage, message) {
				return
			}

		case <-ticker.C:
			if !c.write(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Connection) write(messageType int, data []byte) bool {
	c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
	if err := c.Conn.WriteMessage(messageType, data); err != nil {
		log.Debug().
			Err(err).
			Str("connection_id", c.ID).
			Msg("failed to write to WebSocket")
		return false
	}
	return true
}

func (c *Connection) writeClose(code int, text string) {
	c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
	c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, text))
}

// readPump keeps the read deadline alive and notices when the client goes
// away.
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			return
		}

		log.Debug().
			Str("connection_id", c.ID).
			Int("bytes", len(message)).
			Msg("ignoring client message")
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

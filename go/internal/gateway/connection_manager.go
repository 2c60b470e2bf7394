package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/fieldofplay/go/internal/fop"
	"github.com/mcdev12/fieldofplay/go/internal/fop/bus"
	"github.com/mcdev12/fieldofplay/go/internal/fop/events"
	"github.com/rs/zerolog/log"
)

// Role limits what a connection may send.
type Role string

const (
	RoleDisplay Role = "display"
	RoleConsole Role = "console"
	RoleReferee Role = "referee"
)

// ParseRole maps a query value to a role, display when empty.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case "":
		return RoleDisplay, nil
	case RoleDisplay, RoleConsole, RoleReferee:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Platforms resolves platform names to their field of play.
type Platforms interface {
	Platform(name string) (*fop.FieldOfPlay, error)
	PlatformNames() []string
}

// ConnectionManager manages WebSocket connections of every platform
type ConnectionManager struct {
	platforms   Platforms
	connections map[string]map[*Connection]bool
	mu          sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
}

// Connection is one display, console or referee device. Its id is also the
// origin token of the commands it sends.
type Connection struct {
	ID       string
	Role     Role
	Platform string
	Conn     *websocket.Conn
	Send     chan []byte
	Manager  *ConnectionManager

	fop *fop.FieldOfPlay
	sub *bus.Subscription

	ConnectedAt time.Time
	done        chan struct{}
	closeOnce   sync.Once
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	CommandTimeout  time.Duration
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
		CommandTimeout:  5 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(platforms Platforms, config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		platforms:   platforms,
		connections: make(map[string]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config: config,
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket, sends the
// platform snapshot and subscribes the connection to the platform bus.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, platform string, role Role) error {
	f, err := cm.platforms.Platform(platform)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return err
	}

	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	c := &Connection{
		ID:          uuid.NewString(),
		Role:        role,
		Platform:    platform,
		Conn:        conn,
		Send:        make(chan []byte, 256),
		Manager:     cm,
		fop:         f,
		ConnectedAt: time.Now(),
		done:        make(chan struct{}),
	}
	c.sub = f.Bus().Subscribe(c.ID)

	if err := c.sendSnapshot(r.Context()); err != nil {
		f.Bus().Unsubscribe(c.sub)
		conn.Close()
		return err
	}

	cm.registerConnection(c)
	go c.writePump()
	go c.readPump()

	log.Info().
		Str("connection_id", c.ID).
		Str("role", string(role)).
		Str("platform", platform).
		Msg("WebSocket connection established")
	return nil
}

func (cm *ConnectionManager) registerConnection(c *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.connections[c.Platform] == nil {
		cm.connections[c.Platform] = make(map[*Connection]bool)
	}
	cm.connections[c.Platform][c] = true

	log.Debug().
		Str("connection_id", c.ID).
		Str("platform", c.Platform).
		Int("total_connections", len(cm.connections[c.Platform])).
		Msg("connection registered")
}

func (cm *ConnectionManager) unregisterConnection(c *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if connections, exists := cm.connections[c.Platform]; exists {
		if _, exists := connections[c]; exists {
			delete(connections, c)
			if len(connections) == 0 {
				delete(cm.connections, c.Platform)
			}
			log.Info().
				Str("connection_id", c.ID).
				Str("role", string(c.Role)).
				Str("platform", c.Platform).
				Msg("connection unregistered")
		}
	}
}

// CloseAll disconnects every client.
func (cm *ConnectionManager) CloseAll() {
	cm.mu.RLock()
	var all []*Connection
	for _, connections := range cm.connections {
		for c := range connections {
			all = append(all, c)
		}
	}
	cm.mu.RUnlock()

	for _, c := range all {
		c.close()
	}
}

// ConnectionStats describes connected clients and bus counters.
type ConnectionStats struct {
	TotalConnections int            `json:"total_connections"`
	Platforms        map[string]int `json:"platform_connections"`
	Buses            []bus.Stats    `json:"buses"`
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	stats := ConnectionStats{Platforms: make(map[string]int)}
	for platform, connections := range cm.connections {
		stats.TotalConnections += len(connections)
		stats.Platforms[platform] = len(connections)
	}
	cm.mu.RUnlock()

	for _, name := range cm.platforms.PlatformNames() {
		if f, err := cm.platforms.Platform(name); err == nil {
			stats.Buses = append(stats.Buses, f.Bus().Stats())
		}
	}
	return stats
}

func (c *Connection) sendSnapshot(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.Manager.config.CommandTimeout)
	defer cancel()
	snap, err := c.fop.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to read platform snapshot: %w", err)
	}
	msg, err := json.Marshal(newServerMessage(MessageSnapshot, c.Platform, snap))
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
	return c.Conn.WriteMessage(websocket.TextMessage, msg)
}

// reply queues a message for this connection only.
func (c *Connection) reply(msg ServerMessage) {
	b, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to marshal reply")
		return
	}
	select {
	case c.Send <- b:
	case <-c.done:
	default:
		log.Warn().Str("connection_id", c.ID).Msg("reply buffer full, dropping reply")
	}
}

func (c *Connection) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.Manager.unregisterConnection(c)
		c.fop.Bus().Unsubscribe(c.sub)
		c.Conn.Close()
	})
}

// writePump forwards bus notifications and replies to the socket.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return

		case n, ok := <-c.sub.C():
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				// Bus dropped this subscriber or the platform stopped.
				c.Conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "subscription closed"))
				return
			}
			msg, err := json.Marshal(n)
			if err != nil {
				log.Error().Err(err).Str("type", string(n.Type)).Msg("failed to marshal notification")
				continue
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case msg := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write reply to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump reads commands from the client.
func (c *Connection) readPump() {
	defer c.close()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			return
		}

		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

// handleClientMessage runs a command and replies with its outcome.
func (c *Connection) handleClientMessage(message []byte) {
	var env events.CommandEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		c.reply(commandResult(c.Platform, "", fmt.Errorf("%w: %w", ErrBadCommand, err)))
		return
	}
	if env.Platform != "" && env.Platform != c.Platform {
		c.reply(commandResult(c.Platform, env.Type, fmt.Errorf("%w: connection is bound to platform %s", ErrBadCommand, c.Platform)))
		return
	}
	if err := c.authorize(env.Type); err != nil {
		c.reply(commandResult(c.Platform, env.Type, err))
		return
	}
	cmd, err := decodeCommand(&env)
	if err != nil {
		c.reply(commandResult(c.Platform, env.Type, err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.Manager.config.CommandTimeout)
	defer cancel()
	err = c.fop.Do(ctx, c.ID, cmd)

	log.Debug().
		Err(err).
		Str("connection_id", c.ID).
		Str("command", string(env.Type)).
		Msg("client command handled")
	c.reply(commandResult(c.Platform, env.Type, err))
}

func (c *Connection) authorize(typ events.CommandType) error {
	switch c.Role {
	case RoleConsole:
		return nil
	case RoleReferee:
		if typ == events.CommandRefereeDecision {
			return nil
		}
		return fmt.Errorf("%w: referee devices may only send %s", ErrForbidden, events.CommandRefereeDecision)
	default:
		return fmt.Errorf("%w: %s connections are read only", ErrForbidden, c.Role)
	}
}

package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"smartstudy/internal/logger"
	"smartstudy/internal/models"
	"smartstudy/internal/store"
)

const (
	channelPrefix  = "smartstudy_updates:"
	sendBuffer     = 16
	writeWait      = 10 * time.Second
	publishTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// client owns one connection. Only writePump writes to conn; send is closed
// by the hub, under mu, when the client leaves.
type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

func (c *client) writePump(log logger.ILogger) {
	defer c.conn.Close()
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Debug("websocket", "write failed", map[string]interface{}{"client": c.id, "error": err.Error()})
			return
		}
	}
}

// Hub pushes snapshot-saved events to websocket clients, grouped by store
// profile. With a redis client the events fan out through pub/sub so every
// process serving the profile sees them.
type Hub struct {
	mu             sync.RWMutex
	connections    map[string][]*client
	redisClient    *redis.Client
	cancelFuncs    map[string]context.CancelFunc
	defaultProfile string
	log            logger.ILogger
}

var _ store.Notifier = (*Hub)(nil)

// NewHub creates a hub. redisClient may be nil for a single process.
func NewHub(redisClient *redis.Client, defaultProfile string, log logger.ILogger) *Hub {
	if log == nil {
		log = logger.NewNop()
	}
	return &Hub{
		connections:    make(map[string][]*client),
		redisClient:    redisClient,
		cancelFuncs:    make(map[string]context.CancelFunc),
		defaultProfile: defaultProfile,
		log:            log,
	}
}

func channel(profile string) string {
	return channelPrefix + profile
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	profile := r.URL.Query().Get("profile")
	if profile == "" {
		profile = h.defaultProfile
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket", "upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}

	c := &client{id: uuid.NewString(), conn: conn, send: make(chan []byte, sendBuffer)}
	h.registerConnection(profile, c)
	go c.writePump(h.log)

	// Keep connection alive and handle disconnect
	go func() {
		defer h.unregisterConnection(profile, c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (h *Hub) registerConnection(profile string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[profile] = append(h.connections[profile], c)

	// Start pub/sub subscription if this is the first connection for this profile
	if h.redisClient != nil && len(h.connections[profile]) == 1 {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancelFuncs[profile] = cancel
		go h.subscribeToPubSub(ctx, profile)
	}

	h.log.Info("websocket", "client connected", map[string]interface{}{
		"client":  c.id,
		"profile": profile,
		"total":   len(h.connections[profile]),
	})
}

func (h *Hub) unregisterConnection(profile string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.conn.Close()

	conns := h.connections[profile]
	for i, cc := range conns {
		if cc == c {
			h.connections[profile] = append(conns[:i], conns[i+1:]...)
			close(c.send)
			break
		}
	}

	// If no more connections, cancel pub/sub
	if len(h.connections[profile]) == 0 {
		delete(h.connections, profile)
		if cancel, ok := h.cancelFuncs[profile]; ok {
			cancel()
			delete(h.cancelFuncs, profile)
		}
	}

	h.log.Info("websocket", "client disconnected", map[string]interface{}{"client": c.id, "profile": profile})
}

func (h *Hub) subscribeToPubSub(ctx context.Context, profile string) {
	pubsub := h.redisClient.Subscribe(ctx, channel(profile))
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast(profile, []byte(msg.Payload))
		}
	}
}

func (h *Hub) broadcast(profile string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.connections[profile] {
		select {
		case c.send <- data:
		default:
			h.log.Debug("websocket", "client too slow, event dropped", map[string]interface{}{"client": c.id})
		}
	}
}

// SnapshotSaved implements store.Notifier. It never blocks on the network:
// local delivery is queued per client and the redis publish runs in the
// background.
func (h *Hub) SnapshotSaved(_ context.Context, profile string, scope store.Scope) {
	data, err := json.Marshal(models.WSMessage{
		Type:    "snapshot_saved",
		Payload: models.SnapshotSaved{Profile: profile, Scope: string(scope)},
	})
	if err != nil {
		return
	}

	if h.redisClient == nil {
		h.broadcast(profile, data)
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := h.redisClient.Publish(ctx, channel(profile), data).Err(); err != nil {
			h.log.Warn("websocket", "publish failed, delivering locally", map[string]interface{}{"error": err.Error()})
			h.broadcast(profile, data)
		}
	}()
}

// Connections reports how many clients follow profile.
func (h *Hub) Connections(profile string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[profile])
}

// Close disconnects every client and stops the subscriptions.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for profile, conns := range h.connections {
		for _, c := range conns {
			c.conn.Close()
			close(c.send)
		}
		if cancel, ok := h.cancelFuncs[profile]; ok {
			cancel()
		}
	}
	h.connections = make(map[string][]*client)
	h.cancelFuncs = make(map[string]context.CancelFunc)
}

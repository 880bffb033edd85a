package hub

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"courier/internal/channel"
	"courier/internal/metrics"
	"courier/pkg/logging"
)

// State is the hub lifecycle state
type State int32

const (
	StateRunning State = iota
	StateShuttingDown
	StateShutdown
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting_down"
	case StateShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Config holds hub timing configuration
type Config struct {
	HeartbeatInterval   time.Duration
	ShutdownGracePeriod time.Duration
}

// DefaultConfig returns the stock hub timings
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval:   30 * time.Second,
		ShutdownGracePeriod: 5 * time.Second,
	}
}

type controlMessage struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

var heartbeatPing = controlMessage{Type: "ping"}

// Hub owns the broadcast engine and the connection lifecycle: publish
// fan-out, per-connection read loops, the liveness sweep and the graceful
// shutdown sequence.
type Hub struct {
	manager *Manager
	logger  logging.Logger
	metrics *metrics.Metrics
	cfg     Config

	state      atomic.Int32
	shutdownCh chan struct{}
	gateOnce   sync.Once

	heartbeatDone    chan struct{}
	heartbeatStarted atomic.Bool

	startTime time.Time

	// Statistics counters; read snapshots need not be consistent with each
	// other or with the registry.
	publishesTotal    atomic.Uint64
	messagesDelivered atomic.Uint64
	messagesReceived  atomic.Uint64
	sendFailures      atomic.Uint64
}

// New creates a hub over a connection registry. metrics may be nil in tests.
func New(manager *Manager, logger logging.Logger, m *metrics.Metrics, cfg Config) *Hub {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultConfig().HeartbeatInterval
	}
	if cfg.ShutdownGracePeriod < 0 {
		cfg.ShutdownGracePeriod = DefaultConfig().ShutdownGracePeriod
	}
	return &Hub{
		manager:       manager,
		logger:        logger,
		metrics:       m,
		cfg:           cfg,
		shutdownCh:    make(chan struct{}),
		heartbeatDone: make(chan struct{}),
		startTime:     time.Now(),
	}
}

// Manager exposes the connection registry
func (h *Hub) Manager() *Manager {
	return h.manager
}

// State returns the current lifecycle state
func (h *Hub) State() State {
	return State(h.state.Load())
}

// IsRunning reports whether the hub accepts new work
func (h *Hub) IsRunning() bool {
	return h.State() == StateRunning
}

// Register adds a connection to the registry and counts it
func (h *Hub) Register(conn *websocket.Conn, ch channel.Name, userID, walletAddress *string) (*Subscriber, error) {
	sub, err := h.manager.AddClient(conn, ch, userID, walletAddress)
	if err != nil {
		return nil, err
	}
	if h.metrics != nil {
		h.metrics.HubConnections.WithLabelValues(ch.String()).Inc()
	}
	h.logger.WithFields(logging.Fields{
		"channel":           ch.String(),
		"user_id":           userID,
		"total_connections": h.manager.TotalConnections(),
	}).Info("Client connected")
	return sub, nil
}

// unregister removes a subscriber; safe to call from multiple exit paths
func (h *Hub) unregister(sub *Subscriber) {
	if h.manager.RemoveClient(sub.conn, sub.Channel) {
		if h.metrics != nil {
			h.metrics.HubConnections.WithLabelValues(sub.Channel).Dec()
		}
		h.logger.WithFields(logging.Fields{
			"channel":           sub.Channel,
			"total_connections": h.manager.TotalConnections(),
		}).Info("Client disconnected")
	}
	_ = sub.conn.Close()
}

// Publish fans a message out to every current subscriber of the channel.
// Best-effort and fire-and-forget per socket: a send failure marks the
// socket dead and never aborts the remaining sends. Returns the number of
// subscribers reached.
func (h *Hub) Publish(ch channel.Name, data map[string]interface{}) (int, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	subs := h.manager.ChannelSubscribers(ch.String())

	delivered := 0
	var dead []*Subscriber
	for _, sub := range subs {
		if err := sub.WriteText(payload); err != nil {
			dead = append(dead, sub)
			h.sendFailures.Add(1)
			continue
		}
		delivered++
	}

	for _, sub := range dead {
		h.unregister(sub)
	}

	h.publishesTotal.Add(1)
	h.messagesDelivered.Add(uint64(delivered))
	if h.metrics != nil {
		h.metrics.EventsPublished.WithLabelValues(ch.String(), "ok").Inc()
		h.metrics.HubMessages.WithLabelValues(ch.String(), "out").Add(float64(delivered))
		h.metrics.PublishDuration.WithLabelValues(ch.String()).Observe(time.Since(start).Seconds())
	}

	h.logger.WithFields(logging.Fields{
		"channel":         ch.String(),
		"clients_reached": delivered,
		"dead_sockets":    len(dead),
	}).Debug("Broadcast complete")

	return delivered, nil
}

// RunConnection drives a registered subscriber until it disconnects, errors
// out or the hub shuts down. Removal from the registry and closure of the
// socket happen on every exit path.
func (h *Hub) RunConnection(sub *Subscriber) {
	defer h.unregister(sub)

	conn := sub.conn
	conn.SetReadLimit(maxInboundFrameSize)

	frames := make(chan []byte, 8)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	// Reads block in their own goroutine so the loop below can multiplex
	// inbound frames with the idle heartbeat and the shutdown gate. Reads
	// carry no deadline: a subscriber that only listens stays connected,
	// liveness is judged by send failures on the ping paths. The goroutine
	// never outlives the loop; done unblocks a pending frame hand-off and
	// the closed socket unblocks ReadMessage.
	go func() {
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case frames <- payload:
			case <-done:
				return
			case <-h.shutdownCh:
				return
			}
		}
	}()

	idle := time.NewTimer(h.cfg.HeartbeatInterval)
	defer idle.Stop()

	for {
		select {
		case <-h.shutdownCh:
			_ = sub.WriteJSON(controlMessage{Type: "shutdown", Message: "Server is shutting down"})
			sub.CloseWithCode(websocket.CloseGoingAway, "Server is shutting down")
			return

		case payload := <-frames:
			h.messagesReceived.Add(1)
			if h.metrics != nil {
				h.metrics.HubMessages.WithLabelValues(sub.Channel, "in").Inc()
			}
			// The only inbound content the hub understands is the literal
			// ping; everything else is counted and ignored.
			if string(payload) == "ping" {
				if err := sub.WriteText([]byte("pong")); err != nil {
					return
				}
			}
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(h.cfg.HeartbeatInterval)

		case err := <-readErr:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.WithError(err).WithField("channel", sub.Channel).Warn("WebSocket read error")
			}
			return

		case <-idle.C:
			if err := sub.WriteJSON(heartbeatPing); err != nil {
				return
			}
			idle.Reset(h.cfg.HeartbeatInterval)
		}
	}
}

// StartHeartbeat launches the global liveness sweep. Redundant with the
// per-connection idle ping on purpose: the sweep guarantees progress over
// the whole connection table even if a read loop is stuck in a long wait.
// The sweep also garbage-collects empty channel entries, which publishes
// to subscriber-less channels leave behind.
func (h *Hub) StartHeartbeat() {
	if !h.heartbeatStarted.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(h.heartbeatDone)

		ticker := time.NewTicker(h.cfg.HeartbeatInterval)
		defer ticker.Stop()

		for {
			select {
			case <-h.shutdownCh:
				return
			case <-ticker.C:
				h.sweep()
			}
		}
	}()
}

func (h *Hub) sweep() {
	subs := h.manager.AllSubscribers()
	var dead []*Subscriber
	for _, sub := range subs {
		if err := sub.WriteJSON(heartbeatPing); err != nil {
			dead = append(dead, sub)
		}
	}
	for _, sub := range dead {
		h.unregister(sub)
	}
	removed := h.manager.CleanupEmptyChannels()
	if len(dead) > 0 || len(removed) > 0 {
		h.logger.WithFields(logging.Fields{
			"probed":           len(subs),
			"pruned":           len(dead),
			"channels_dropped": len(removed),
		}).Info("Heartbeat sweep pruned dead connections and idle channels")
	}
}

// Shutdown runs the graceful shutdown sequence: gate new connections,
// notify subscribers, wait the grace period, close stragglers, stop the
// heartbeat. Bounded by ctx.
func (h *Hub) Shutdown(ctx context.Context) {
	if !h.state.CompareAndSwap(int32(StateRunning), int32(StateShuttingDown)) {
		return
	}
	h.logger.Info("Hub shutdown initiated")

	// Gate: read loops and the connect handler observe this
	h.gateOnce.Do(func() { close(h.shutdownCh) })

	notice := controlMessage{
		Type:    "shutdown",
		Message: "Server is shutting down",
		Code:    websocket.CloseGoingAway,
	}
	for _, sub := range h.manager.AllSubscribers() {
		_ = sub.WriteJSON(notice)
	}

	// Give clients a moment to disconnect on their own
	select {
	case <-time.After(h.cfg.ShutdownGracePeriod):
	case <-ctx.Done():
	}

	for _, sub := range h.manager.AllSubscribers() {
		sub.CloseWithCode(websocket.CloseGoingAway, "Server shutdown")
		h.unregister(sub)
	}

	if h.heartbeatStarted.Load() {
		select {
		case <-h.heartbeatDone:
		case <-ctx.Done():
		}
	}

	h.state.Store(int32(StateShutdown))
	h.logger.Info("Hub shutdown complete")
}

// Stats returns a snapshot of hub counters and per-channel subscriber counts
func (h *Hub) Stats() map[string]interface{} {
	return map[string]interface{}{
		"state":              h.State().String(),
		"uptime_seconds":     time.Since(h.startTime).Seconds(),
		"total_connections":  h.manager.TotalConnections(),
		"channels":           h.manager.AllChannels(),
		"publishes_total":    h.publishesTotal.Load(),
		"messages_delivered": h.messagesDelivered.Load(),
		"messages_received":  h.messagesReceived.Load(),
		"send_failures":      h.sendFailures.Load(),
	}
}

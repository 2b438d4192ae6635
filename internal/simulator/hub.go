// Package simulator implements a stand-in Dual Asset Bot server for
// development and testing: a WebSocket hub speaking the dashboard's
// envelope protocol plus a synthetic feed that emits price ticks, trades,
// task progress, alerts, portfolio updates, and AI recommendations on the
// schedules the real bot uses.
package simulator

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/jqwei/dualstream/internal/domain"
	"github.com/jqwei/dualstream/internal/stream"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// Size of the send buffer for each session.
	sendBufferSize = 256
)

// session represents one connected dashboard.
type session struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan []byte

	// Logger for this session.
	logger *zap.Logger
}

// Hub maintains the set of connected dashboards and broadcasts envelopes to
// them. Inbound envelopes are limited to health checks (answered in place)
// and subscribe intents (handed to the intent handler).
type Hub struct {
	// Registered sessions.
	sessions map[*session]bool

	// Encoded envelopes awaiting fan-out.
	broadcast chan []byte

	// Register requests from sessions.
	register chan *session

	// Unregister requests from sessions.
	unregister chan *session

	// Mutex to protect the sessions map.
	mu sync.RWMutex

	// Called for every subscribe intent a dashboard sends.
	onIntent func(domain.SubscribeIntent)

	logger *zap.Logger

	// Shutdown channel.
	done     chan struct{}
	doneOnce sync.Once
}

// NewHub creates a new Hub instance.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		sessions:   make(map[*session]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *session),
		unregister: make(chan *session),
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// SetIntentHandler registers the callback for inbound subscribe intents.
// Set it before Run.
func (h *Hub) SetIntentHandler(fn func(domain.SubscribeIntent)) {
	h.onIntent = fn
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	h.logger.Info("Simulator hub started")
	defer h.logger.Info("Simulator hub stopped")

	for {
		select {
		case sess := <-h.register:
			h.mu.Lock()
			h.sessions[sess] = true
			total := len(h.sessions)
			h.mu.Unlock()
			h.logger.Info("Dashboard connected", zap.Int("total_sessions", total))

		case sess := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.sessions[sess]; ok {
				delete(h.sessions, sess)
				close(sess.send)
				h.logger.Info("Dashboard disconnected", zap.Int("total_sessions", len(h.sessions)))
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.fanOut(message)

		case <-h.done:
			h.shutdown()
			return
		}
	}
}

// fanOut sends an encoded envelope to every session.
func (h *Hub) fanOut(message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sess := range h.sessions {
		select {
		case sess.send <- message:
		default:
			// Session's send buffer is full, remove it.
			go func(s *session) {
				h.unregister <- s
			}(sess)
		}
	}
}

// Broadcast wraps payload in an envelope of the given kind and queues it
// for fan-out to every connected dashboard.
func (h *Hub) Broadcast(kind stream.EventType, payload interface{}) {
	env, err := stream.NewEnvelope(kind, payload)
	if err != nil {
		h.logger.Error("Failed to build envelope",
			zap.String("kind", kind.String()),
			zap.Error(err))
		return
	}
	data, err := env.Encode()
	if err != nil {
		h.logger.Error("Failed to encode envelope",
			zap.String("kind", kind.String()),
			zap.Error(err))
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("Broadcast channel full, dropping envelope",
			zap.String("kind", kind.String()))
	}
}

// SessionCount returns the number of connected dashboards.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Shutdown gracefully shuts down the hub.
func (h *Hub) Shutdown() {
	h.doneOnce.Do(func() {
		close(h.done)
	})
}

// shutdown closes all dashboard connections.
func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sess := range h.sessions {
		close(sess.send)
		if sess.conn != nil {
			sess.conn.Close()
		}
	}
	h.sessions = make(map[*session]bool)
}

// readPump pumps inbound frames from the websocket connection.
func (s *session) readPump() {
	defer func() {
		s.hub.unregister <- s
		s.conn.Close()
	}()

	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				s.logger.Error("WebSocket read error", zap.Error(err))
			}
			break
		}
		s.handleFrame(message)
	}
}

// handleFrame interprets one inbound envelope. Health checks get an
// immediate acknowledgment; subscribe intents go to the intent handler;
// everything else is ignored.
func (s *session) handleFrame(message []byte) {
	env, err := stream.DecodeEnvelope(message)
	if err != nil {
		s.logger.Debug("Ignoring malformed frame", zap.Error(err))
		return
	}

	if env.Type == stream.EventHealthCheck {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		ack, err := stream.NewEnvelope(stream.EventHealthCheck, map[string]string{"status": "ok"})
		if err != nil {
			return
		}
		data, err := ack.Encode()
		if err != nil {
			return
		}
		select {
		case s.send <- data:
		default:
			s.logger.Debug("Send buffer full, dropping health check ack")
		}
		return
	}

	var intent domain.SubscribeIntent
	if err := json.Unmarshal(env.Data, &intent); err != nil || intent.Action != domain.ActionSubscribe {
		s.logger.Debug("Ignoring envelope",
			zap.String("kind", env.Type.String()))
		return
	}
	s.logger.Info("Subscribe intent received",
		zap.String("kind", env.Type.String()),
		zap.Strings("symbols", intent.Symbols),
		zap.String("task_id", intent.TaskID))
	if s.hub.onIntent != nil {
		s.hub.onIntent(intent)
	}
}

// writePump pumps envelopes from the hub to the websocket connection, one
// frame per envelope, with periodic pings.
func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case message, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// upgrader is used to upgrade HTTP connections to WebSocket.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The simulator is a dev tool; accept any origin.
		return true
	},
}

// ServeWS handles websocket upgrade requests from dashboards.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade connection", zap.Error(err))
		return
	}

	sess := &session{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		logger: h.logger.With(zap.String("remote_addr", r.RemoteAddr)),
	}

	h.register <- sess

	go sess.writePump()
	go sess.readPump()
}

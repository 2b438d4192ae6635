package stream

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jqwei/dualstream/internal/domain"
)

// ConnState is the connection lifecycle state, exposed for UI status
// indicators.
type ConnState string

const (
	StateClosed     ConnState = "closed"
	StateConnecting ConnState = "connecting"
	StateOpen       ConnState = "open"
	StateClosing    ConnState = "closing"
)

// String returns the string representation of the state.
func (s ConnState) String() string {
	return string(s)
}

// DefaultHeartbeatInterval is how often a health_check envelope is emitted
// while the connection is open.
const DefaultHeartbeatInterval = 30 * time.Second

// AlertSink receives user-facing notices raised by the connection layer:
// system_alert envelopes and the terminal reconnect failure. notify.Center
// satisfies it.
type AlertSink interface {
	Push(severity domain.Severity, title, message string)
}

type discardSink struct{}

func (discardSink) Push(domain.Severity, string, string) {}

// Config configures a Client. Zero durations and counts fall back to the
// package defaults.
type Config struct {
	// URL is the ws:// or wss:// endpoint of the bot server.
	URL string

	HeartbeatInterval    time.Duration
	ReconnectDelay       time.Duration
	MaxReconnectWait     time.Duration
	MaxReconnectAttempts int
	QueueCapacity        int
}

// Client multiplexes the bot server's event streams over one persistent
// WebSocket connection: subscribers register per event kind, outbound
// envelopes queue while disconnected, and unclean closures trigger
// automatic reconnection with linear clamped backoff.
//
// A Client is safe for concurrent use. Instances are independent; create
// one per upstream endpoint.
type Client struct {
	cfg    Config
	dialer Dialer
	alerts AlertSink
	logger *zap.Logger
	policy reconnectPolicy

	reg   *registry
	queue *sendQueue

	mu             sync.Mutex
	state          ConnState
	conn           Conn
	gen            int
	connecting     bool
	intentional    bool
	attempts       int
	waiters        []chan error
	reconnectTimer *time.Timer
	heartbeatStop  chan struct{}
	lastErr        error
}

// New creates a Client. A nil dialer selects the gorilla-backed WSDialer, a
// nil sink discards notices, a nil logger disables logging.
func New(cfg Config, dialer Dialer, alerts AlertSink, logger *zap.Logger) *Client {
	if dialer == nil {
		dialer = &WSDialer{}
	}
	if alerts == nil {
		alerts = discardSink{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	return &Client{
		cfg:    cfg,
		dialer: dialer,
		alerts: alerts,
		logger: logger,
		policy: newReconnectPolicy(cfg.ReconnectDelay, cfg.MaxReconnectWait, cfg.MaxReconnectAttempts),
		reg:    newRegistry(logger),
		queue:  newSendQueue(cfg.QueueCapacity),
		state:  StateClosed,
	}
}

// Connect establishes the connection. It is idempotent: when already open
// it returns nil immediately, and when an attempt is in flight the caller
// waits for that attempt's outcome instead of starting a second one. An
// explicit Connect starts a fresh reconnect cycle, clearing a terminal
// reconnect failure. On success the heartbeat starts and queued envelopes
// are flushed in order.
func (c *Client) Connect(ctx context.Context) error {
	return c.connect(ctx, true)
}

// connect is the shared dial path. fresh marks an explicit caller-initiated
// attempt, which resets the reconnect counter; the reconnect timer and
// Send-triggered attempts keep the counter so the backoff progresses.
func (c *Client) connect(ctx context.Context, fresh bool) error {
	c.mu.Lock()
	if c.state == StateOpen {
		c.mu.Unlock()
		return nil
	}
	if c.connecting {
		ch := make(chan error, 1)
		c.waiters = append(c.waiters, ch)
		c.mu.Unlock()
		select {
		case err := <-ch:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if fresh {
		c.attempts = 0
	}
	c.connecting = true
	c.intentional = false
	c.state = StateConnecting
	c.lastErr = nil
	url := c.cfg.URL
	c.mu.Unlock()

	conn, dialErr := c.dialer.Dial(ctx, url)

	c.mu.Lock()
	c.connecting = false
	if dialErr != nil {
		err := ConnectError{URL: url, Err: dialErr}
		c.lastErr = err
		if c.state == StateConnecting {
			c.state = StateClosed
		}
		c.logger.Warn("Connection attempt failed",
			zap.String("url", url),
			zap.Error(dialErr))
		terminal := false
		if !c.intentional {
			terminal = c.scheduleReconnectLocked()
		}
		c.notifyWaitersLocked(err)
		c.mu.Unlock()
		if terminal {
			c.raiseTerminal()
		}
		return err
	}
	if c.intentional || c.state != StateConnecting {
		// Torn down while the dial was in flight.
		c.notifyWaitersLocked(ErrClientClosed)
		c.mu.Unlock()
		conn.Close()
		return ErrClientClosed
	}
	c.conn = conn
	c.state = StateOpen
	c.attempts = 0
	c.gen++
	gen := c.gen
	c.startHeartbeatLocked()
	c.notifyWaitersLocked(nil)
	c.mu.Unlock()

	c.logger.Info("Connected", zap.String("url", url))
	go c.readLoop(conn, gen)
	c.flush()
	return nil
}

// Disconnect closes the connection intentionally: the pending reconnect
// timer is cancelled, the heartbeat stops, the transport closes cleanly,
// and the subscriber registry and outbound queue are cleared. Auto
// reconnect is suppressed until the next Connect.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.intentional = true
	c.attempts = 0
	c.lastErr = nil
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.stopHeartbeatLocked()
	conn := c.conn
	c.conn = nil
	c.gen++
	if conn != nil {
		c.state = StateClosing
	} else {
		c.state = StateClosed
	}
	c.mu.Unlock()

	c.reg.clear()
	c.queue.Clear()

	if conn != nil {
		conn.Close()
		c.mu.Lock()
		c.state = StateClosed
		c.mu.Unlock()
		c.logger.Info("Disconnected")
	}
}

// Send transmits the envelope when the connection is open. Otherwise the
// envelope joins the outbound queue (oldest dropped beyond capacity) and a
// connection attempt is triggered in the background. Send never returns a
// transport error; delivery of queued envelopes happens on the next open.
func (c *Client) Send(env Envelope) error {
	c.mu.Lock()
	conn := c.conn
	open := c.state == StateOpen
	c.mu.Unlock()

	if open && conn != nil {
		data, err := env.Encode()
		if err != nil {
			return err
		}
		if err := conn.WriteMessage(data); err != nil {
			// The read loop will observe the broken connection; keep the
			// envelope for the next flush.
			c.logger.Warn("Send failed, envelope queued",
				zap.String("kind", env.Type.String()),
				zap.Error(err))
			c.enqueue(env)
		}
		return nil
	}

	c.enqueue(env)
	go c.autoConnect()
	return nil
}

// Subscribe registers fn for every envelope of the given kind. Handlers run
// synchronously on the read loop, so envelopes of one kind arrive in order.
// The returned Subscription cancels exactly this registration.
func (c *Client) Subscribe(kind EventType, fn Handler) Subscription {
	return c.reg.add(kind, fn)
}

// IsConnected returns true while the connection is open.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateOpen
}

// State returns the current connection state.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError returns the most recent connect or terminal reconnect error.
// It is cleared by Connect and Disconnect.
func (c *Client) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Stats is a point-in-time snapshot for status displays.
type Stats struct {
	State             ConnState `json:"state"`
	ReconnectAttempts int       `json:"reconnect_attempts"`
	QueuedEnvelopes   int       `json:"queued_envelopes"`
	DroppedEnvelopes  uint64    `json:"dropped_envelopes"`
	Subscribers       int       `json:"subscribers"`
}

// Stats returns a snapshot of the client's counters.
func (c *Client) Stats() Stats {
	c.mu.Lock()
	state := c.state
	attempts := c.attempts
	c.mu.Unlock()

	return Stats{
		State:             state,
		ReconnectAttempts: attempts,
		QueuedEnvelopes:   c.queue.Len(),
		DroppedEnvelopes:  c.queue.Dropped(),
		Subscribers:       c.reg.count(),
	}
}

func (c *Client) enqueue(env Envelope) {
	if c.queue.Push(env) {
		c.logger.Warn("Outbound queue full, dropped oldest envelope",
			zap.String("kind", env.Type.String()),
			zap.Int("queued", c.queue.Len()))
	}
}

// autoConnect runs a background connection attempt for Send. It defers to
// an in-flight attempt or a pending reconnect timer, and stays quiet once
// the reconnection policy has given up; only an explicit Connect revives
// the client then.
func (c *Client) autoConnect() {
	c.mu.Lock()
	skip := c.state == StateOpen || c.connecting || c.reconnectTimer != nil ||
		c.policy.Exhausted(c.attempts)
	c.mu.Unlock()
	if skip {
		return
	}
	if err := c.connect(context.Background(), false); err != nil {
		c.logger.Debug("Background connect failed", zap.Error(err))
	}
}

// readLoop drains the connection until it dies, then hands the closure to
// handleClosed. gen ties the loop to the connection it was started for.
func (c *Client) readLoop(conn Conn, gen int) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			c.handleClosed(gen, err)
			return
		}
		c.handleFrame(data)
	}
}

func (c *Client) handleFrame(raw []byte) {
	env, err := DecodeEnvelope(raw)
	if err != nil {
		c.logger.Warn("Dropping malformed frame", zap.Error(err))
		return
	}
	if env.Type == EventHealthCheck {
		c.logger.Debug("Health check acknowledged")
		return
	}
	if !env.Type.IsValid() {
		c.logger.Debug("Ignoring unknown event kind", zap.String("kind", env.Type.String()))
		return
	}
	if env.Type == EventSystemAlert {
		c.raiseAlert(env.Data)
	}
	c.reg.dispatch(env)
}

// raiseAlert pushes every system_alert to the notification sink, whether or
// not anyone subscribed to the kind.
func (c *Client) raiseAlert(data json.RawMessage) {
	var alert domain.SystemAlert
	if err := json.Unmarshal(data, &alert); err != nil {
		c.logger.Warn("Dropping malformed system alert", zap.Error(err))
		return
	}
	if !alert.Severity.IsValid() {
		alert.Severity = domain.SeverityInfo
	}
	c.alerts.Push(alert.Severity, alert.Title, alert.Message)
}

// handleClosed runs when a connection's read loop ends. Stale generations
// are ignored so a closure raced by Disconnect or a newer dial is not
// handled twice.
func (c *Client) handleClosed(gen int, cause error) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.stopHeartbeatLocked()
	c.conn = nil
	c.state = StateClosed
	if c.intentional {
		c.mu.Unlock()
		return
	}
	c.logger.Warn("Connection lost", zap.Error(cause))
	terminal := c.scheduleReconnectLocked()
	c.mu.Unlock()
	if terminal {
		c.raiseTerminal()
	}
}

// scheduleReconnectLocked arms the single reconnect timer. It reports true
// when the attempt ceiling is reached and the terminal error must be
// raised instead. Callers hold c.mu.
func (c *Client) scheduleReconnectLocked() bool {
	if c.reconnectTimer != nil {
		return false
	}
	if c.policy.Exhausted(c.attempts) {
		c.lastErr = ReconnectError{Attempts: c.attempts}
		c.logger.Error("Reconnect attempts exhausted", zap.Int("attempts", c.attempts))
		return true
	}
	c.attempts++
	delay := c.policy.Delay(c.attempts)
	c.logger.Info("Reconnect scheduled",
		zap.Int("attempt", c.attempts),
		zap.Duration("delay", delay))
	c.reconnectTimer = time.AfterFunc(delay, c.reconnect)
	return false
}

// raiseTerminal surfaces the exhausted-reconnect condition, the one
// persistent user-facing failure. Called without c.mu held.
func (c *Client) raiseTerminal() {
	c.alerts.Push(domain.SeverityCritical, "Connection lost",
		"Unable to reach the bot server. Check the network and reconnect manually.")
}

// reconnect is the timer callback for a scheduled attempt.
func (c *Client) reconnect() {
	c.mu.Lock()
	c.reconnectTimer = nil
	if c.intentional || c.connecting || c.state == StateOpen {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if err := c.connect(context.Background(), false); err != nil {
		c.logger.Debug("Reconnect attempt failed", zap.Error(err))
	}
}

// flush transmits queued envelopes oldest first while the connection stays
// open. Remaining envelopes stay queued for the next open.
func (c *Client) flush() {
	for {
		c.mu.Lock()
		conn := c.conn
		open := c.state == StateOpen
		c.mu.Unlock()
		if !open || conn == nil {
			return
		}

		env, ok := c.queue.Pop()
		if !ok {
			return
		}
		data, err := env.Encode()
		if err != nil {
			c.logger.Warn("Dropping unencodable queued envelope", zap.Error(err))
			continue
		}
		if err := conn.WriteMessage(data); err != nil {
			c.logger.Warn("Flush interrupted", zap.Error(err))
			return
		}
	}
}

// startHeartbeatLocked starts the keepalive ticker. Callers hold c.mu.
func (c *Client) startHeartbeatLocked() {
	stop := make(chan struct{})
	c.heartbeatStop = stop
	go c.heartbeatLoop(c.cfg.HeartbeatInterval, stop)
}

// stopHeartbeatLocked stops the keepalive ticker. Callers hold c.mu.
func (c *Client) stopHeartbeatLocked() {
	if c.heartbeatStop != nil {
		close(c.heartbeatStop)
		c.heartbeatStop = nil
	}
}

// heartbeatLoop emits a health_check envelope on every tick while the
// connection stays open. Missing acknowledgments are not a failure signal;
// a dead peer surfaces as a read error instead.
func (c *Client) heartbeatLoop(interval time.Duration, stop chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			conn := c.conn
			open := c.state == StateOpen
			c.mu.Unlock()
			if !open || conn == nil {
				return
			}

			env, err := NewEnvelope(EventHealthCheck, struct{}{})
			if err != nil {
				return
			}
			data, err := env.Encode()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(data); err != nil {
				c.logger.Debug("Heartbeat write failed", zap.Error(err))
				return
			}
		}
	}
}

// notifyWaitersLocked resolves every caller parked on an in-flight connect.
// Callers hold c.mu.
func (c *Client) notifyWaitersLocked(err error) {
	for _, ch := range c.waiters {
		ch <- err
	}
	c.waiters = nil
}

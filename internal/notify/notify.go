// Package notify implements the dashboard's notification center. System
// alerts from the event stream and terminal connection failures surface
// here; non-critical notices expire after a display interval, critical
// ones stay until dismissed.
package notify

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jqwei/dualstream/internal/domain"
)

// DefaultDisplayFor is how long a non-critical notice stays active.
const DefaultDisplayFor = 5 * time.Second

// Notice is one user-facing notification. A nil ExpiresAt means the notice
// is sticky and leaves only through Dismiss.
type Notice struct {
	ID        uuid.UUID       `json:"id"`
	Severity  domain.Severity `json:"severity"`
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
}

// Center collects notices in memory. It satisfies the stream client's
// AlertSink and is safe for concurrent use.
type Center struct {
	mu         sync.Mutex
	notices    map[uuid.UUID]*Notice
	displayFor time.Duration
	onChange   func()
	logger     *zap.Logger
}

// NewCenter creates a Center. displayFor bounds the lifetime of
// non-critical notices; zero selects DefaultDisplayFor.
func NewCenter(displayFor time.Duration, logger *zap.Logger) *Center {
	if displayFor <= 0 {
		displayFor = DefaultDisplayFor
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Center{
		notices:    make(map[uuid.UUID]*Notice),
		displayFor: displayFor,
		logger:     logger,
	}
}

// SetOnChange registers a hook invoked after every push or dismissal, for
// UI re-renders. The hook runs outside the Center's lock.
func (c *Center) SetOnChange(fn func()) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Push records a notice. Critical notices never expire on their own; every
// other severity expires displayFor after creation. Notices are mirrored
// into the structured log so headless runs still surface them.
func (c *Center) Push(severity domain.Severity, title, message string) {
	if !severity.IsValid() {
		severity = domain.SeverityInfo
	}
	now := time.Now()
	n := &Notice{
		ID:        uuid.New(),
		Severity:  severity,
		Title:     title,
		Message:   message,
		CreatedAt: now,
	}
	if severity != domain.SeverityCritical {
		exp := now.Add(c.displayFor)
		n.ExpiresAt = &exp
	}

	c.mu.Lock()
	c.purgeLocked(now)
	c.notices[n.ID] = n
	onChange := c.onChange
	c.mu.Unlock()

	c.log(n)
	if onChange != nil {
		onChange()
	}
}

// Dismiss removes a notice by id, critical ones included. It reports
// whether the notice was still active.
func (c *Center) Dismiss(id uuid.UUID) bool {
	c.mu.Lock()
	c.purgeLocked(time.Now())
	_, ok := c.notices[id]
	delete(c.notices, id)
	onChange := c.onChange
	c.mu.Unlock()

	if ok && onChange != nil {
		onChange()
	}
	return ok
}

// DismissAll removes every notice.
func (c *Center) DismissAll() {
	c.mu.Lock()
	changed := len(c.notices) > 0
	c.notices = make(map[uuid.UUID]*Notice)
	onChange := c.onChange
	c.mu.Unlock()

	if changed && onChange != nil {
		onChange()
	}
}

// Active returns the live notices, most severe first, newest first within
// the same severity.
func (c *Center) Active() []Notice {
	c.mu.Lock()
	c.purgeLocked(time.Now())
	out := make([]Notice, 0, len(c.notices))
	for _, n := range c.notices {
		out = append(out, *n)
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Severity.Rank() != out[j].Severity.Rank() {
			return out[i].Severity.Rank() > out[j].Severity.Rank()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// purgeLocked drops expired notices. Callers hold c.mu.
func (c *Center) purgeLocked(now time.Time) {
	for id, n := range c.notices {
		if n.ExpiresAt != nil && now.After(*n.ExpiresAt) {
			delete(c.notices, id)
		}
	}
}

func (c *Center) log(n *Notice) {
	fields := []zap.Field{
		zap.String("severity", n.Severity.String()),
		zap.String("title", n.Title),
		zap.String("message", n.Message),
	}
	switch n.Severity {
	case domain.SeverityCritical, domain.SeverityError:
		c.logger.Error("Notification", fields...)
	case domain.SeverityWarning:
		c.logger.Warn("Notification", fields...)
	default:
		c.logger.Info("Notification", fields...)
	}
}

package stream

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler receives the raw payload of every envelope of the subscribed
// kind. Handlers run synchronously on the read loop, so envelopes of one
// kind are observed in arrival order.
type Handler func(data json.RawMessage)

// Subscription is the capability returned by Subscribe. Cancel removes
// exactly the handler it was issued for; cancelling twice is a no-op.
// Subscribing the same function twice yields two independent subscriptions.
type Subscription struct {
	id   uuid.UUID
	kind EventType
	reg  *registry
}

// Kind returns the event kind the subscription was made for.
func (s Subscription) Kind() EventType {
	return s.kind
}

// Cancel removes the handler from the registry.
func (s Subscription) Cancel() {
	if s.reg != nil {
		s.reg.remove(s.kind, s.id)
	}
}

// registry maps event kinds to subscriber handlers keyed by token. No
// ordering is guaranteed between handlers of the same kind.
type registry struct {
	mu       sync.RWMutex
	handlers map[EventType]map[uuid.UUID]Handler
	logger   *zap.Logger
}

func newRegistry(logger *zap.Logger) *registry {
	return &registry{
		handlers: make(map[EventType]map[uuid.UUID]Handler),
		logger:   logger,
	}
}

func (r *registry) add(kind EventType, h Handler) Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, ok := r.handlers[kind]
	if !ok {
		bucket = make(map[uuid.UUID]Handler)
		r.handlers[kind] = bucket
	}
	id := uuid.New()
	bucket[id] = h
	return Subscription{id: id, kind: kind, reg: r}
}

func (r *registry) remove(kind EventType, id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, ok := r.handlers[kind]
	if !ok {
		return
	}
	delete(bucket, id)
	if len(bucket) == 0 {
		delete(r.handlers, kind)
	}
}

// dispatch fans the payload out to every handler registered for the
// envelope's kind and returns how many handlers ran. A panicking handler
// is recovered and logged; the remaining handlers still run.
func (r *registry) dispatch(env Envelope) int {
	r.mu.RLock()
	snapshot := make([]Handler, 0, len(r.handlers[env.Type]))
	for _, h := range r.handlers[env.Type] {
		snapshot = append(snapshot, h)
	}
	r.mu.RUnlock()

	for _, h := range snapshot {
		r.invoke(env.Type, h, env.Data)
	}
	return len(snapshot)
}

func (r *registry) invoke(kind EventType, h Handler, data json.RawMessage) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Subscriber handler panicked",
				zap.String("kind", kind.String()),
				zap.Any("panic", rec))
		}
	}()
	h(data)
}

// count returns the total number of registered handlers across all kinds.
func (r *registry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, bucket := range r.handlers {
		total += len(bucket)
	}
	return total
}

// clear removes every handler. Outstanding Subscriptions become no-ops.
func (r *registry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = make(map[EventType]map[uuid.UUID]Handler)
}

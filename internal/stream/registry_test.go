package stream

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testEnvelope(t *testing.T, kind EventType, payload string) Envelope {
	t.Helper()
	return Envelope{Type: kind, Data: json.RawMessage(payload)}
}

func TestRegistry_DispatchToSubscriber(t *testing.T) {
	r := newRegistry(zaptest.NewLogger(t))

	var got []string
	r.add(EventPriceUpdate, func(data json.RawMessage) {
		got = append(got, string(data))
	})

	n := r.dispatch(testEnvelope(t, EventPriceUpdate, `{"symbol":"BTCUSDT"}`))

	assert.Equal(t, 1, n)
	require.Len(t, got, 1)
	assert.JSONEq(t, `{"symbol":"BTCUSDT"}`, got[0])
}

func TestRegistry_DispatchOnlyMatchingKind(t *testing.T) {
	r := newRegistry(zaptest.NewLogger(t))

	priceCalls := 0
	tradeCalls := 0
	r.add(EventPriceUpdate, func(json.RawMessage) { priceCalls++ })
	r.add(EventTradeExecution, func(json.RawMessage) { tradeCalls++ })

	r.dispatch(testEnvelope(t, EventPriceUpdate, `{}`))

	assert.Equal(t, 1, priceCalls)
	assert.Equal(t, 0, tradeCalls)
}

func TestRegistry_DispatchUnknownKindMatchesNothing(t *testing.T) {
	r := newRegistry(zaptest.NewLogger(t))
	r.add(EventPriceUpdate, func(json.RawMessage) {
		t.Fatal("handler must not run for a different kind")
	})

	n := r.dispatch(testEnvelope(t, EventType("mystery"), `{}`))
	assert.Equal(t, 0, n)
}

func TestRegistry_MultipleHandlersSameKind(t *testing.T) {
	r := newRegistry(zaptest.NewLogger(t))

	first := 0
	second := 0
	r.add(EventSystemAlert, func(json.RawMessage) { first++ })
	r.add(EventSystemAlert, func(json.RawMessage) { second++ })

	n := r.dispatch(testEnvelope(t, EventSystemAlert, `{}`))

	assert.Equal(t, 2, n)
	assert.Equal(t, 1, first)
	assert.Equal(t, 1, second)
}

func TestRegistry_CancelStopsDelivery(t *testing.T) {
	r := newRegistry(zaptest.NewLogger(t))

	calls := 0
	sub := r.add(EventTaskStatus, func(json.RawMessage) { calls++ })
	assert.Equal(t, EventTaskStatus, sub.Kind())

	r.dispatch(testEnvelope(t, EventTaskStatus, `{}`))
	sub.Cancel()
	r.dispatch(testEnvelope(t, EventTaskStatus, `{}`))

	assert.Equal(t, 1, calls)
}

func TestRegistry_CancelTwiceIsNoop(t *testing.T) {
	r := newRegistry(zaptest.NewLogger(t))

	sub := r.add(EventTaskStatus, func(json.RawMessage) {})
	other := r.add(EventTaskStatus, func(json.RawMessage) {})

	sub.Cancel()
	sub.Cancel()

	assert.Equal(t, 1, r.count())
	other.Cancel()
	assert.Equal(t, 0, r.count())
}

func TestRegistry_CancelOnlyRemovesOwnHandler(t *testing.T) {
	r := newRegistry(zaptest.NewLogger(t))

	calls := 0
	keep := func(json.RawMessage) { calls++ }

	// The same function subscribed twice yields independent subscriptions.
	subA := r.add(EventPortfolioUpdate, keep)
	r.add(EventPortfolioUpdate, keep)
	subA.Cancel()

	r.dispatch(testEnvelope(t, EventPortfolioUpdate, `{}`))
	assert.Equal(t, 1, calls)
}

func TestRegistry_EmptyBucketIsRemoved(t *testing.T) {
	r := newRegistry(zaptest.NewLogger(t))

	sub := r.add(EventMarketData, func(json.RawMessage) {})
	sub.Cancel()

	r.mu.RLock()
	_, exists := r.handlers[EventMarketData]
	r.mu.RUnlock()
	assert.False(t, exists)
}

func TestRegistry_PanickingHandlerIsIsolated(t *testing.T) {
	r := newRegistry(zaptest.NewLogger(t))

	survived := 0
	r.add(EventPriceUpdate, func(json.RawMessage) {
		panic("subscriber bug")
	})
	r.add(EventPriceUpdate, func(json.RawMessage) { survived++ })

	n := r.dispatch(testEnvelope(t, EventPriceUpdate, `{}`))

	// Both ran; the panic was contained and the second still fired.
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, survived)

	// The registry keeps working afterwards.
	n = r.dispatch(testEnvelope(t, EventPriceUpdate, `{}`))
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, survived)
}

func TestRegistry_Clear(t *testing.T) {
	r := newRegistry(zaptest.NewLogger(t))

	sub := r.add(EventPriceUpdate, func(json.RawMessage) {
		t.Fatal("handler must not run after clear")
	})
	r.add(EventSystemAlert, func(json.RawMessage) {})
	require.Equal(t, 2, r.count())

	r.clear()

	assert.Equal(t, 0, r.count())
	assert.Equal(t, 0, r.dispatch(testEnvelope(t, EventPriceUpdate, `{}`)))

	// Cancelling a stale subscription after clear is harmless.
	sub.Cancel()
}

package simulator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jqwei/dualstream/internal/domain"
)

func TestServer_Healthz(t *testing.T) {
	srv := NewServer(testFeedConfig(), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.handleHealthz(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(0), body["sessions"])
}

func TestServer_WiresIntentsIntoFeed(t *testing.T) {
	srv := NewServer(testFeedConfig(), zap.NewNop())
	require.NotNil(t, srv.Hub())

	// A dashboard asking for a new symbol makes the feed track it.
	srv.hub.onIntent(domain.SubscribeIntent{
		Action:  domain.ActionSubscribe,
		Symbols: []string{"ADAUSDT"},
	})

	srv.feed.mu.Lock()
	defer srv.feed.mu.Unlock()
	assert.Contains(t, srv.feed.prices, "ADAUSDT")
}

func TestServer_RunStopsOnContextCancel(t *testing.T) {
	srv := NewServer(testFeedConfig(), zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after context cancellation")
	}
}

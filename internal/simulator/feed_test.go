package simulator

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jqwei/dualstream/internal/config"
	"github.com/jqwei/dualstream/internal/domain"
	"github.com/jqwei/dualstream/internal/stream"
)

func testFeedConfig() *config.SimulatorConfig {
	return &config.SimulatorConfig{
		ListenAddr:    ":0",
		Symbols:       []string{"BTCUSDT", "ETHUSDT"},
		TickInterval:  "20ms",
		TradeChance:   0,
		MarketCron:    "@every 1h",
		AdviceCron:    "@every 1h",
		PortfolioCron: "@every 1h",
		ReportCron:    "0 8 * * *",
	}
}

// newTestFeed builds a feed whose hub is not running; broadcasts pile up in
// the hub's buffered channel where tests can read them directly.
func newTestFeed(t *testing.T) (*Feed, *Hub) {
	t.Helper()
	hub := NewHub(zap.NewNop())
	feed := NewFeed(testFeedConfig(), hub, zap.NewNop())
	return feed, hub
}

// nextBroadcast pops the next queued envelope from the hub.
func nextBroadcast(t *testing.T, hub *Hub) stream.Envelope {
	t.Helper()
	select {
	case raw := <-hub.broadcast:
		env, err := stream.DecodeEnvelope(raw)
		require.NoError(t, err)
		return env
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a broadcast")
		return stream.Envelope{}
	}
}

// drainBroadcasts empties the hub's queue, counting envelopes per kind.
func drainBroadcasts(hub *Hub) map[stream.EventType]int {
	counts := make(map[stream.EventType]int)
	for {
		select {
		case raw := <-hub.broadcast:
			if env, err := stream.DecodeEnvelope(raw); err == nil {
				counts[env.Type]++
			}
		default:
			return counts
		}
	}
}

func TestFeed_EnsureSymbol(t *testing.T) {
	feed, _ := newTestFeed(t)

	feed.EnsureSymbol("BTCUSDT")
	feed.mu.Lock()
	price := feed.prices["BTCUSDT"]
	open := feed.opens["BTCUSDT"]
	feed.mu.Unlock()

	// Seeded near the well-known level, scattered by at most 1%.
	assert.InDelta(t, 65000, price, 65000*0.011)
	assert.Equal(t, price, open)

	// A second call keeps the existing series.
	feed.EnsureSymbol("BTCUSDT")
	feed.mu.Lock()
	assert.Equal(t, price, feed.prices["BTCUSDT"])
	feed.mu.Unlock()

	// Unknown symbols start at the generic level; empty ones are ignored.
	feed.EnsureSymbol("DOGEUSDT")
	feed.EnsureSymbol("")
	feed.mu.Lock()
	assert.InDelta(t, 100, feed.prices["DOGEUSDT"], 100*0.011)
	assert.Len(t, feed.prices, 2)
	feed.mu.Unlock()
}

func TestFeed_HandleIntentTracksSymbols(t *testing.T) {
	feed, _ := newTestFeed(t)

	feed.HandleIntent(domain.SubscribeIntent{
		Action:  domain.ActionSubscribe,
		Symbols: []string{"SOLUSDT", "BNBUSDT"},
	})

	feed.mu.Lock()
	defer feed.mu.Unlock()
	assert.Contains(t, feed.prices, "SOLUSDT")
	assert.Contains(t, feed.prices, "BNBUSDT")
}

func TestFeed_WalkPrices(t *testing.T) {
	feed, _ := newTestFeed(t)
	feed.EnsureSymbol("BTCUSDT")
	feed.EnsureSymbol("ETHUSDT")

	feed.mu.Lock()
	before := map[string]float64{}
	for s, p := range feed.prices {
		before[s] = p
	}
	feed.mu.Unlock()

	updates := feed.walkPrices()
	require.Len(t, updates, 2)

	for _, u := range updates {
		prev := before[u.Symbol]
		require.NotZero(t, prev)
		// Each step moves the price by at most ±0.5%.
		assert.InDelta(t, prev, u.Price, prev*0.006, "symbol %s", u.Symbol)
		assert.Greater(t, u.Price, 0.0)
	}

	// The walk mutates the series, so the next tick starts from here.
	feed.mu.Lock()
	defer feed.mu.Unlock()
	for s, p := range feed.prices {
		assert.NotEqual(t, 0.0, p, "symbol %s", s)
	}
}

func TestFeed_SnapshotTrends(t *testing.T) {
	feed, _ := newTestFeed(t)

	feed.mu.Lock()
	feed.prices["UPUSDT"], feed.opens["UPUSDT"] = 102, 100
	feed.prices["DOWNUSDT"], feed.opens["DOWNUSDT"] = 97, 100
	feed.prices["FLATUSDT"], feed.opens["FLATUSDT"] = 100.2, 100
	feed.mu.Unlock()

	byTrend := map[string]domain.MarketSnapshot{}
	for _, snap := range feed.snapshots() {
		byTrend[snap.Symbol] = snap
	}
	require.Len(t, byTrend, 3)

	up := byTrend["UPUSDT"]
	assert.Equal(t, domain.TrendBullish, up.Trend)
	assert.Contains(t, up.Signal, "sell-high")

	down := byTrend["DOWNUSDT"]
	assert.Equal(t, domain.TrendBearish, down.Trend)
	assert.Contains(t, down.Signal, "buy-low")

	flat := byTrend["FLATUSDT"]
	assert.Equal(t, domain.TrendSideways, flat.Trend)

	// Support and resistance bracket the current price.
	assert.Less(t, up.Support, up.Price)
	assert.Greater(t, up.Resistance, up.Price)
}

func TestFeed_EmitAdviceFollowsTrend(t *testing.T) {
	feed, hub := newTestFeed(t)

	feed.mu.Lock()
	feed.prices["UPUSDT"], feed.opens["UPUSDT"] = 110, 100
	feed.prices["DOWNUSDT"], feed.opens["DOWNUSDT"] = 90, 100
	feed.prices["FLATUSDT"], feed.opens["FLATUSDT"] = 100, 100
	feed.mu.Unlock()

	feed.emitAdvice()

	want := map[string]domain.AdviceAction{
		"UPUSDT":   domain.AdviceSellHigh,
		"DOWNUSDT": domain.AdviceBuyLow,
		"FLATUSDT": domain.AdviceHold,
	}
	for i := 0; i < len(want); i++ {
		env := nextBroadcast(t, hub)
		require.Equal(t, stream.EventAIRecommendation, env.Type)

		var rec domain.AIRecommendation
		require.NoError(t, json.Unmarshal(env.Data, &rec))
		assert.Equal(t, want[rec.Symbol], rec.Action, "symbol %s", rec.Symbol)
		assert.GreaterOrEqual(t, rec.Confidence, 0.55)
		assert.LessOrEqual(t, rec.Confidence, 0.95)
		assert.NotEmpty(t, rec.Reasoning)
	}
}

func TestFeed_EmitPortfolio(t *testing.T) {
	feed, hub := newTestFeed(t)
	feed.EnsureSymbol("BTCUSDT")
	feed.EnsureSymbol("ETHUSDT")

	feed.emitPortfolio()

	env := nextBroadcast(t, hub)
	require.Equal(t, stream.EventPortfolioUpdate, env.Type)

	var p domain.PortfolioUpdate
	require.NoError(t, json.Unmarshal(env.Data, &p))

	assert.Equal(t, 25000.0, p.Balances["USDT"])
	assert.Contains(t, p.Balances, "BTC")
	assert.Contains(t, p.Balances, "ETH")
	assert.Greater(t, p.TotalValueUSDT, 25000.0)
	// Prices have not moved off their opens yet.
	assert.Equal(t, 0.0, p.PnL24h)
}

func TestFeed_EmitDailyReport(t *testing.T) {
	feed, hub := newTestFeed(t)
	feed.EnsureSymbol("BTCUSDT")

	feed.emitDailyReport()

	env := nextBroadcast(t, hub)
	require.Equal(t, stream.EventSystemAlert, env.Type)

	var alert domain.SystemAlert
	require.NoError(t, json.Unmarshal(env.Data, &alert))
	assert.Equal(t, domain.SeverityInfo, alert.Severity)
	assert.Equal(t, "Daily report", alert.Title)
	assert.Contains(t, alert.Message, "1 symbols")
}

func TestFeed_SettlementTaskLifecycle(t *testing.T) {
	feed, hub := newTestFeed(t)
	feed.ctx, feed.cancel = context.WithCancel(context.Background())
	defer feed.cancel()

	trade := domain.TradeExecution{
		Symbol: "BTCUSDT",
		Side:   domain.SideBuyLow,
		Amount: 500,
	}
	feed.wg.Add(1)
	feed.runSettlementTask(trade)

	var statuses []domain.TaskStatus
	for i := 0; i < 5; i++ {
		env := nextBroadcast(t, hub)
		require.Equal(t, stream.EventTaskStatus, env.Type)
		var ts domain.TaskStatus
		require.NoError(t, json.Unmarshal(env.Data, &ts))
		statuses = append(statuses, ts)
	}

	assert.Equal(t, domain.TaskStatePending, statuses[0].State)
	assert.Equal(t, 0, statuses[0].Progress)
	for _, ts := range statuses[1:4] {
		assert.Equal(t, domain.TaskStateRunning, ts.State)
	}
	last := statuses[4]
	assert.True(t, last.State.IsTerminal(), "final state %s", last.State)
	assert.Equal(t, 100, last.Progress)

	// Every update belongs to the same task, and progress never regresses.
	for i, ts := range statuses {
		assert.Equal(t, statuses[0].TaskID, ts.TaskID)
		if i > 0 {
			assert.GreaterOrEqual(t, ts.Progress, statuses[i-1].Progress)
		}
	}

	// A failed settlement is chased by a warning alert.
	if last.State == domain.TaskStateFailed {
		env := nextBroadcast(t, hub)
		require.Equal(t, stream.EventSystemAlert, env.Type)
		var alert domain.SystemAlert
		require.NoError(t, json.Unmarshal(env.Data, &alert))
		assert.Equal(t, domain.SeverityWarning, alert.Severity)
	}
}

func TestFeed_StartStop(t *testing.T) {
	feed, hub := newTestFeed(t)

	require.NoError(t, feed.Start())
	time.Sleep(120 * time.Millisecond)
	require.NoError(t, feed.Stop())

	counts := drainBroadcasts(hub)

	// The immediate round on start.
	assert.GreaterOrEqual(t, counts[stream.EventMarketData], 2)
	assert.GreaterOrEqual(t, counts[stream.EventAIRecommendation], 2)
	assert.GreaterOrEqual(t, counts[stream.EventPortfolioUpdate], 1)

	// Tick loop output for two symbols at a 20ms interval.
	assert.GreaterOrEqual(t, counts[stream.EventPriceUpdate], 4)

	// Stop is idempotent enough for a double call.
	require.NoError(t, feed.Stop())
}

func TestFeed_StartRejectsBadCron(t *testing.T) {
	cfg := testFeedConfig()
	cfg.AdviceCron = "whenever"
	feed := NewFeed(cfg, NewHub(zap.NewNop()), zap.NewNop())

	err := feed.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "whenever")
}

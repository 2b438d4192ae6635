// Terminal watcher for the Dual Asset Bot event stream.
// Connects to the bot server, subscribes to every channel, and renders
// incoming events to the log. A stand-in for the browser dashboard.

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/jqwei/dualstream/internal/config"
	"github.com/jqwei/dualstream/internal/domain"
	"github.com/jqwei/dualstream/internal/logging"
	"github.com/jqwei/dualstream/internal/notify"
	"github.com/jqwei/dualstream/internal/stream"
)

// Build-time variables (set via ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (YAML)")
	wsURL := flag.String("url", "", "Bot server ws:// endpoint (overrides config)")
	symbols := flag.String("symbols", "", "Comma-separated symbols to watch (overrides config)")
	flag.Parse()

	// .env is optional; ignore a missing file.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *wsURL != "" {
		cfg.Server.WSURL = *wsURL
	}
	if *symbols != "" {
		cfg.Watch.Symbols = splitSymbols(*symbols)
	}

	logger, err := logging.New(&cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting stream watcher",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("url", cfg.Server.WSURL),
		zap.Strings("symbols", cfg.Watch.Symbols),
	)

	center := notify.NewCenter(cfg.Watch.GetNoticeDisplay(), logger.Named("notify"))

	dialer := &stream.WSDialer{
		HandshakeTimeout: cfg.Stream.GetHandshakeTimeout(),
		WriteTimeout:     cfg.Stream.GetWriteTimeout(),
	}
	client := stream.New(cfg.StreamClientConfig(), dialer, center, logger.Named("stream"))

	watch(client, cfg.Watch.Symbols, logger)

	// A failed first dial is not fatal: the client keeps retrying with
	// backoff and the subscriptions above are already registered.
	connectCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := client.Connect(connectCtx); err != nil {
		logger.Warn("Initial connect failed, retrying in background", zap.Error(err))
	}
	cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	client.Disconnect()
	logger.Info("Stream watcher stopped")
}

// watch registers a rendering handler on every channel the bot publishes.
func watch(client *stream.Client, symbols []string, logger *zap.Logger) {
	client.SubscribePrices(symbols, func(p domain.PriceUpdate) {
		logger.Info("Price",
			zap.String("symbol", p.Symbol),
			zap.Float64("price", p.Price),
			zap.Float64("change_pct_24h", p.ChangePct24h))
	})

	client.SubscribeMarketData(func(m domain.MarketSnapshot) {
		logger.Info("Market",
			zap.String("symbol", m.Symbol),
			zap.String("trend", m.Trend.String()),
			zap.Float64("volatility", m.Volatility),
			zap.String("signal", m.Signal))
	})

	client.SubscribeTrades(func(t domain.TradeExecution) {
		logger.Info("Trade",
			zap.String("symbol", t.Symbol),
			zap.String("side", t.Side.String()),
			zap.Float64("amount", t.Amount),
			zap.Float64("apr", t.APR),
			zap.String("status", t.Status))
	})

	// The watcher has no task ids ahead of time, so it takes the raw
	// task_status stream instead of the per-id adapter.
	client.Subscribe(stream.EventTaskStatus, func(data json.RawMessage) {
		var t domain.TaskStatus
		if err := json.Unmarshal(data, &t); err != nil {
			return
		}
		logger.Info("Task",
			zap.String("task_id", t.TaskID),
			zap.String("name", t.Name),
			zap.String("state", t.State.String()),
			zap.Int("progress", t.Progress))
	})

	client.SubscribeAlerts(func(a domain.SystemAlert) {
		logger.Info("Alert",
			zap.String("severity", a.Severity.String()),
			zap.String("title", a.Title),
			zap.String("message", a.Message))
	})

	client.SubscribePortfolio(func(p domain.PortfolioUpdate) {
		logger.Info("Portfolio",
			zap.Float64("total_value_usdt", p.TotalValueUSDT),
			zap.Float64("pnl_24h", p.PnL24h),
			zap.Int("assets", len(p.Balances)))
	})

	client.SubscribeAdvice(symbols, func(r domain.AIRecommendation) {
		logger.Info("Advice",
			zap.String("symbol", r.Symbol),
			zap.String("action", r.Action.String()),
			zap.Float64("confidence", r.Confidence),
			zap.String("reasoning", r.Reasoning))
	})
}

// splitSymbols parses a comma-separated symbol list, trimming whitespace.
func splitSymbols(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

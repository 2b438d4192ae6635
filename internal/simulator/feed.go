package simulator

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/jqwei/dualstream/internal/config"
	"github.com/jqwei/dualstream/internal/domain"
	"github.com/jqwei/dualstream/internal/stream"
)

// Seed prices for well-known symbols; anything else starts at a generic
// level and random-walks from there.
var seedPrices = map[string]float64{
	"BTCUSDT": 65000,
	"ETHUSDT": 3500,
	"BNBUSDT": 580,
	"SOLUSDT": 150,
}

const defaultSeedPrice = 100

// Feed drives the synthetic event streams. Price ticks run on a plain
// ticker; market snapshots, AI advice, portfolio updates, and the daily
// report run on cron schedules mirroring the real bot's periodic tasks.
type Feed struct {
	cfg    *config.SimulatorConfig
	hub    *Hub
	logger *zap.Logger

	cron *cron.Cron

	mu     sync.Mutex
	prices map[string]float64
	opens  map[string]float64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewFeed creates a Feed emitting through hub for the configured symbols.
func NewFeed(cfg *config.SimulatorConfig, hub *Hub, logger *zap.Logger) *Feed {
	return &Feed{
		cfg:    cfg,
		hub:    hub,
		logger: logger,
		cron:   cron.New(),
		prices: make(map[string]float64),
		opens:  make(map[string]float64),
	}
}

// Start seeds the price series, registers the cron emitters, and starts the
// tick loop. It emits one round of snapshots immediately so a fresh
// dashboard sees data without waiting out the schedules.
func (f *Feed) Start() error {
	f.logger.Info("Starting feed",
		zap.Strings("symbols", f.cfg.Symbols),
		zap.Duration("tick_interval", f.cfg.GetTickInterval()),
	)

	f.ctx, f.cancel = context.WithCancel(context.Background())

	for _, symbol := range f.cfg.Symbols {
		f.EnsureSymbol(symbol)
	}

	entries := []struct {
		spec string
		emit func()
	}{
		{f.cfg.MarketCron, f.emitMarketData},
		{f.cfg.AdviceCron, f.emitAdvice},
		{f.cfg.PortfolioCron, f.emitPortfolio},
		{f.cfg.ReportCron, f.emitDailyReport},
	}
	for _, e := range entries {
		if _, err := f.cron.AddFunc(e.spec, e.emit); err != nil {
			return fmt.Errorf("failed to register cron %q: %w", e.spec, err)
		}
	}
	f.cron.Start()

	f.wg.Add(1)
	go f.tickLoop()

	f.emitMarketData()
	f.emitAdvice()
	f.emitPortfolio()

	f.logger.Info("Feed started")
	return nil
}

// Stop gracefully stops the feed and waits for in-flight emitters.
func (f *Feed) Stop() error {
	f.logger.Info("Stopping feed")

	if f.cancel != nil {
		f.cancel()
	}
	if f.cron != nil {
		<-f.cron.Stop().Done()
	}
	f.wg.Wait()

	f.logger.Info("Feed stopped")
	return nil
}

// EnsureSymbol adds a price series for symbol if one does not exist yet.
// Called for configured symbols and for any symbol a dashboard asks for.
func (f *Feed) EnsureSymbol(symbol string) {
	if symbol == "" {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.prices[symbol]; ok {
		return
	}
	price, ok := seedPrices[symbol]
	if !ok {
		price = defaultSeedPrice
	}
	// Scatter the open a little so change_pct is not zero at startup.
	price *= 1 + (rand.Float64()-0.5)*0.02
	f.prices[symbol] = price
	f.opens[symbol] = price
	f.logger.Info("Tracking symbol", zap.String("symbol", symbol), zap.Float64("price", price))
}

// HandleIntent reacts to dashboard subscribe intents: requested price
// symbols join the feed.
func (f *Feed) HandleIntent(intent domain.SubscribeIntent) {
	for _, symbol := range intent.Symbols {
		f.EnsureSymbol(symbol)
	}
}

// tickLoop random-walks every tracked symbol and emits a price_update per
// symbol per tick, plus the occasional synthetic trade.
func (f *Feed) tickLoop() {
	defer f.wg.Done()

	ticker := time.NewTicker(f.cfg.GetTickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-f.ctx.Done():
			return
		case <-ticker.C:
			f.tick()
		}
	}
}

func (f *Feed) tick() {
	for _, update := range f.walkPrices() {
		f.hub.Broadcast(stream.EventPriceUpdate, update)
	}
	if rand.Float64() < f.cfg.TradeChance {
		f.emitTrade()
	}
}

// walkPrices advances every price by up to ±0.5% and returns the updates.
func (f *Feed) walkPrices() []domain.PriceUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()

	updates := make([]domain.PriceUpdate, 0, len(f.prices))
	for symbol, price := range f.prices {
		price *= 1 + (rand.Float64()-0.5)*0.01
		f.prices[symbol] = price
		open := f.opens[symbol]
		updates = append(updates, domain.PriceUpdate{
			Symbol:       symbol,
			Price:        round2(price),
			ChangePct24h: round2((price - open) / open * 100),
		})
	}
	return updates
}

// emitTrade broadcasts a synthetic dual-investment subscription and spawns
// the settlement task that follows it.
func (f *Feed) emitTrade() {
	symbol := f.pickSymbol()
	if symbol == "" {
		return
	}
	side := domain.SideBuyLow
	if rand.Intn(2) == 0 {
		side = domain.SideSellHigh
	}
	trade := domain.TradeExecution{
		InvestmentID: uuid.New().String(),
		ProductID:    uuid.New().String(),
		Symbol:       symbol,
		Side:         side,
		Amount:       round2(100 + rand.Float64()*4900),
		APR:          round2(8 + rand.Float64()*37),
		Status:       "executed",
	}
	f.hub.Broadcast(stream.EventTradeExecution, trade)

	f.wg.Add(1)
	go f.runSettlementTask(trade)
}

// runSettlementTask walks a task through pending, running, and a terminal
// state, emitting task_status at every step. A failed settlement also
// raises a warning alert.
func (f *Feed) runSettlementTask(trade domain.TradeExecution) {
	defer f.wg.Done()

	taskID := uuid.New().String()
	name := "execute_investment"
	step := f.cfg.GetTickInterval() / 2
	if step <= 0 {
		step = time.Second
	}

	f.hub.Broadcast(stream.EventTaskStatus, domain.TaskStatus{
		TaskID: taskID, Name: name, State: domain.TaskStatePending, Progress: 0,
	})

	for _, progress := range []int{25, 50, 75} {
		select {
		case <-f.ctx.Done():
			return
		case <-time.After(step):
		}
		f.hub.Broadcast(stream.EventTaskStatus, domain.TaskStatus{
			TaskID: taskID, Name: name, State: domain.TaskStateRunning, Progress: progress,
		})
	}

	select {
	case <-f.ctx.Done():
		return
	case <-time.After(step):
	}

	if rand.Float64() < 0.1 {
		f.hub.Broadcast(stream.EventTaskStatus, domain.TaskStatus{
			TaskID: taskID, Name: name, State: domain.TaskStateFailed, Progress: 100,
			Error: "exchange rejected order",
		})
		f.hub.Broadcast(stream.EventSystemAlert, domain.SystemAlert{
			Severity: domain.SeverityWarning,
			Title:    "Investment settlement failed",
			Message:  fmt.Sprintf("%s %s for %.2f USDT was rejected", trade.Symbol, trade.Side, trade.Amount),
		})
		return
	}
	f.hub.Broadcast(stream.EventTaskStatus, domain.TaskStatus{
		TaskID: taskID, Name: name, State: domain.TaskStateCompleted, Progress: 100,
	})
}

// emitMarketData broadcasts one market_data snapshot per tracked symbol.
func (f *Feed) emitMarketData() {
	for _, snap := range f.snapshots() {
		f.hub.Broadcast(stream.EventMarketData, snap)
	}
}

func (f *Feed) snapshots() []domain.MarketSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	snaps := make([]domain.MarketSnapshot, 0, len(f.prices))
	for symbol, price := range f.prices {
		open := f.opens[symbol]
		trend := domain.TrendSideways
		signal := "wait for a clearer setup"
		switch {
		case price > open*1.01:
			trend = domain.TrendBullish
			signal = "consider sell-high products"
		case price < open*0.99:
			trend = domain.TrendBearish
			signal = "consider buy-low products"
		}
		snaps = append(snaps, domain.MarketSnapshot{
			Symbol:     symbol,
			Price:      round2(price),
			Trend:      trend,
			Volatility: round2(1 + rand.Float64()*7),
			Signal:     signal,
			Support:    round2(price * 0.97),
			Resistance: round2(price * 1.03),
		})
	}
	return snaps
}

// emitAdvice broadcasts one ai_recommendation per tracked symbol, derived
// from the snapshot trend.
func (f *Feed) emitAdvice() {
	for _, snap := range f.snapshots() {
		action := domain.AdviceHold
		reasoning := "Market is ranging; keep capital available."
		switch snap.Trend {
		case domain.TrendBearish:
			action = domain.AdviceBuyLow
			reasoning = "Price is below the daily open; buy-low products offer favorable strikes."
		case domain.TrendBullish:
			action = domain.AdviceSellHigh
			reasoning = "Price is above the daily open; sell-high products lock in yield."
		}
		f.hub.Broadcast(stream.EventAIRecommendation, domain.AIRecommendation{
			Symbol:     snap.Symbol,
			Action:     action,
			Confidence: round2(0.55 + rand.Float64()*0.4),
			Reasoning:  reasoning,
			ProductID:  uuid.New().String(),
		})
	}
}

// emitPortfolio broadcasts a portfolio_update valued at current prices.
func (f *Feed) emitPortfolio() {
	f.mu.Lock()
	defer f.mu.Unlock()

	balances := map[string]float64{"USDT": 25000}
	total := balances["USDT"]
	openTotal := balances["USDT"]
	for symbol, price := range f.prices {
		asset := strings.TrimSuffix(symbol, "USDT")
		if asset == symbol || asset == "" {
			continue
		}
		qty := round4(1000 / f.opens[symbol] * 5)
		balances[asset] = qty
		total += qty * price
		openTotal += qty * f.opens[symbol]
	}

	f.hub.Broadcast(stream.EventPortfolioUpdate, domain.PortfolioUpdate{
		TotalValueUSDT: round2(total),
		PnL24h:         round2(total - openTotal),
		Balances:       balances,
	})
}

// emitDailyReport broadcasts the daily summary alert.
func (f *Feed) emitDailyReport() {
	f.mu.Lock()
	symbols := len(f.prices)
	f.mu.Unlock()

	f.hub.Broadcast(stream.EventSystemAlert, domain.SystemAlert{
		Severity: domain.SeverityInfo,
		Title:    "Daily report",
		Message:  fmt.Sprintf("Bot is healthy; tracking %d symbols.", symbols),
	})
}

func (f *Feed) pickSymbol() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := len(f.prices)
	if n == 0 {
		return ""
	}
	i := rand.Intn(n)
	for symbol := range f.prices {
		if i == 0 {
			return symbol
		}
		i--
	}
	return ""
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}

func round4(v float64) float64 {
	return float64(int64(v*10000+0.5)) / 10000
}

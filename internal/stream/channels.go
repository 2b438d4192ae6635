package stream

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/jqwei/dualstream/internal/domain"
)

// Typed channel adapters. Each wraps the generic Subscribe with a decoded
// payload; a payload that fails to decode is logged and dropped without
// reaching the handler. Where the server needs to know about the interest
// (prices, task status) the adapter also sends a subscribe-intent envelope,
// which queues like any other outbound message while disconnected.

// SubscribePrices registers fn for price ticks and announces the symbols of
// interest to the server. Filtering stays server-side: fn receives every
// price_update the server sends, whatever its symbol.
func (c *Client) SubscribePrices(symbols []string, fn func(domain.PriceUpdate)) Subscription {
	sub := c.Subscribe(EventPriceUpdate, func(data json.RawMessage) {
		var p domain.PriceUpdate
		if err := json.Unmarshal(data, &p); err != nil {
			c.logger.Warn("Dropping malformed price update", zap.Error(err))
			return
		}
		fn(p)
	})
	c.sendIntent(EventPriceUpdate, domain.SubscribeIntent{
		Action:  domain.ActionSubscribe,
		Symbols: symbols,
	})
	return sub
}

// SubscribeMarketData registers fn for per-symbol market analysis
// snapshots.
func (c *Client) SubscribeMarketData(fn func(domain.MarketSnapshot)) Subscription {
	return c.Subscribe(EventMarketData, func(data json.RawMessage) {
		var m domain.MarketSnapshot
		if err := json.Unmarshal(data, &m); err != nil {
			c.logger.Warn("Dropping malformed market snapshot", zap.Error(err))
			return
		}
		fn(m)
	})
}

// SubscribeTrades registers fn for dual-investment trade executions.
func (c *Client) SubscribeTrades(fn func(domain.TradeExecution)) Subscription {
	return c.Subscribe(EventTradeExecution, func(data json.RawMessage) {
		var t domain.TradeExecution
		if err := json.Unmarshal(data, &t); err != nil {
			c.logger.Warn("Dropping malformed trade execution", zap.Error(err))
			return
		}
		fn(t)
	})
}

// SubscribeTaskStatus registers fn for updates of one background task. The
// handler fires only for envelopes whose task id matches; updates for other
// tasks are skipped. The task id is also announced to the server.
func (c *Client) SubscribeTaskStatus(taskID string, fn func(domain.TaskStatus)) Subscription {
	sub := c.Subscribe(EventTaskStatus, func(data json.RawMessage) {
		var t domain.TaskStatus
		if err := json.Unmarshal(data, &t); err != nil {
			c.logger.Warn("Dropping malformed task status", zap.Error(err))
			return
		}
		if t.TaskID != taskID {
			return
		}
		fn(t)
	})
	c.sendIntent(EventTaskStatus, domain.SubscribeIntent{
		Action: domain.ActionSubscribe,
		TaskID: taskID,
	})
	return sub
}

// SubscribeAlerts registers fn for system alerts. The notification side
// effect happens in the connection layer independent of this subscription;
// subscribe only to react to alerts programmatically.
func (c *Client) SubscribeAlerts(fn func(domain.SystemAlert)) Subscription {
	return c.Subscribe(EventSystemAlert, func(data json.RawMessage) {
		var a domain.SystemAlert
		if err := json.Unmarshal(data, &a); err != nil {
			c.logger.Warn("Dropping malformed system alert", zap.Error(err))
			return
		}
		fn(a)
	})
}

// SubscribePortfolio registers fn for portfolio valuation updates.
func (c *Client) SubscribePortfolio(fn func(domain.PortfolioUpdate)) Subscription {
	return c.Subscribe(EventPortfolioUpdate, func(data json.RawMessage) {
		var p domain.PortfolioUpdate
		if err := json.Unmarshal(data, &p); err != nil {
			c.logger.Warn("Dropping malformed portfolio update", zap.Error(err))
			return
		}
		fn(p)
	})
}

// SubscribeAdvice registers fn for AI recommendations. A non-empty symbols
// list acts as an allow-list: recommendations for other symbols are
// skipped.
func (c *Client) SubscribeAdvice(symbols []string, fn func(domain.AIRecommendation)) Subscription {
	allow := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		allow[s] = true
	}
	return c.Subscribe(EventAIRecommendation, func(data json.RawMessage) {
		var rec domain.AIRecommendation
		if err := json.Unmarshal(data, &rec); err != nil {
			c.logger.Warn("Dropping malformed recommendation", zap.Error(err))
			return
		}
		if len(allow) > 0 && !allow[rec.Symbol] {
			return
		}
		fn(rec)
	})
}

func (c *Client) sendIntent(kind EventType, intent domain.SubscribeIntent) {
	env, err := NewEnvelope(kind, intent)
	if err != nil {
		c.logger.Warn("Subscribe intent not sent", zap.Error(err))
		return
	}
	if err := c.Send(env); err != nil {
		c.logger.Warn("Subscribe intent not sent", zap.Error(err))
	}
}

package domain

// PriceUpdate is the payload of a price_update event.
type PriceUpdate struct {
	Symbol       string  `json:"symbol"`
	Price        float64 `json:"price"`
	ChangePct24h float64 `json:"change_pct_24h,omitempty"`
}

// MarketSnapshot is the payload of a market_data event, one per symbol.
type MarketSnapshot struct {
	Symbol     string  `json:"symbol"`
	Price      float64 `json:"current_price"`
	Trend      Trend   `json:"trend"`
	Volatility float64 `json:"volatility"`
	Signal     string  `json:"signal,omitempty"`
	Support    float64 `json:"support,omitempty"`
	Resistance float64 `json:"resistance,omitempty"`
}

// TradeExecution is the payload of a trade_execution event, emitted when
// the bot subscribes to a dual-investment product.
type TradeExecution struct {
	InvestmentID string      `json:"investment_id"`
	ProductID    string      `json:"product_id"`
	Symbol       string      `json:"symbol"`
	Side         ProductSide `json:"side"`
	Amount       float64     `json:"amount"`
	APR          float64     `json:"apr,omitempty"`
	Status       string      `json:"status"`
}

// TaskStatus is the payload of a task_status event. Progress is 0-100.
type TaskStatus struct {
	TaskID   string    `json:"task_id"`
	Name     string    `json:"name,omitempty"`
	State    TaskState `json:"status"`
	Progress int       `json:"progress"`
	Error    string    `json:"error,omitempty"`
}

// SystemAlert is the payload of a system_alert event.
type SystemAlert struct {
	Severity Severity `json:"severity"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
}

// PortfolioUpdate is the payload of a portfolio_update event. Balances maps
// asset ticker to quantity.
type PortfolioUpdate struct {
	TotalValueUSDT float64            `json:"total_value_usdt"`
	PnL24h         float64            `json:"pnl_24h"`
	Balances       map[string]float64 `json:"balances"`
}

// AIRecommendation is the payload of an ai_recommendation event.
// Confidence is 0-1.
type AIRecommendation struct {
	Symbol     string       `json:"symbol"`
	Action     AdviceAction `json:"action"`
	Confidence float64      `json:"confidence"`
	Reasoning  string       `json:"reasoning,omitempty"`
	ProductID  string       `json:"product_id,omitempty"`
}

// ActionSubscribe is the action field of a SubscribeIntent.
const ActionSubscribe = "subscribe"

// SubscribeIntent is the payload a client sends to opt into server-side
// streams. Symbols applies to price updates, TaskID to task status.
type SubscribeIntent struct {
	Action  string   `json:"action"`
	Symbols []string `json:"symbols,omitempty"`
	TaskID  string   `json:"task_id,omitempty"`
}

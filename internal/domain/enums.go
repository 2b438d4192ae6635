// Package domain contains the event payload models shared by the stream
// client, the typed channel adapters, and the bot simulator.
package domain

// Severity represents the severity of a system alert.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// IsValid returns true if the severity is a valid Severity.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError, SeverityCritical:
		return true
	default:
		return false
	}
}

// Rank returns the ordering weight of the severity, higher is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityError:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

// String returns the string representation of the severity.
func (s Severity) String() string {
	return string(s)
}

// SeverityFromString converts a string to Severity.
func SeverityFromString(s string) Severity {
	sev := Severity(s)
	if sev.IsValid() {
		return sev
	}
	return SeverityInfo
}

// TaskState represents the lifecycle state of a background bot task.
type TaskState string

const (
	TaskStatePending   TaskState = "pending"
	TaskStateRunning   TaskState = "running"
	TaskStateCompleted TaskState = "completed"
	TaskStateFailed    TaskState = "failed"
)

// IsTerminal returns true if the state is terminal (no further transitions).
func (s TaskState) IsTerminal() bool {
	return s == TaskStateCompleted || s == TaskStateFailed
}

// IsValid returns true if the state is a valid TaskState.
func (s TaskState) IsValid() bool {
	switch s {
	case TaskStatePending, TaskStateRunning, TaskStateCompleted, TaskStateFailed:
		return true
	default:
		return false
	}
}

// String returns the string representation of the state.
func (s TaskState) String() string {
	return string(s)
}

// TaskStateFromString converts a string to TaskState.
func TaskStateFromString(s string) TaskState {
	state := TaskState(s)
	if state.IsValid() {
		return state
	}
	return TaskStatePending
}

// ProductSide represents the direction of a dual-investment product.
type ProductSide string

const (
	SideBuyLow   ProductSide = "BUY_LOW"
	SideSellHigh ProductSide = "SELL_HIGH"
)

// IsValid returns true if the side is a valid ProductSide.
func (p ProductSide) IsValid() bool {
	return p == SideBuyLow || p == SideSellHigh
}

// String returns the string representation of the side.
func (p ProductSide) String() string {
	return string(p)
}

// AdviceAction represents the action recommended by the AI analyzer.
type AdviceAction string

const (
	AdviceBuyLow   AdviceAction = "BUY_LOW"
	AdviceSellHigh AdviceAction = "SELL_HIGH"
	AdviceHold     AdviceAction = "HOLD"
)

// IsValid returns true if the action is a valid AdviceAction.
func (a AdviceAction) IsValid() bool {
	switch a {
	case AdviceBuyLow, AdviceSellHigh, AdviceHold:
		return true
	default:
		return false
	}
}

// String returns the string representation of the action.
func (a AdviceAction) String() string {
	return string(a)
}

// Trend represents the direction of a market analysis snapshot.
type Trend string

const (
	TrendBullish  Trend = "bullish"
	TrendBearish  Trend = "bearish"
	TrendSideways Trend = "sideways"
)

// IsValid returns true if the trend is a valid Trend.
func (t Trend) IsValid() bool {
	switch t {
	case TrendBullish, TrendBearish, TrendSideways:
		return true
	default:
		return false
	}
}

// String returns the string representation of the trend.
func (t Trend) String() string {
	return string(t)
}

// Package models defines the core data structures shared by the buywrite
// backtest engine, data sources, report writers, and API.
package models

import "time"

// PriceBar represents one trading day of a price series.
type PriceBar struct {
	Date     time.Time `json:"date"`
	Close    float64   `json:"close"`
	AdjClose float64   `json:"adj_close,omitempty"` // dividend/split-adjusted close
}

// Price returns the adjusted close when available, else the raw close.
// The engine prices everything off this value.
func (b PriceBar) Price() float64 {
	if b.AdjClose > 0 {
		return b.AdjClose
	}
	return b.Close
}

// EventType distinguishes the two ways a short call leaves the book.
type EventType string

const (
	EventRoll   EventType = "roll"   // closed early and replaced
	EventExpiry EventType = "expiry" // held to expiration (or final bar)
)

// RollReason records which trigger fired a roll.
type RollReason string

const (
	RollReasonDelta     RollReason = "delta"     // delta breached the roll threshold
	RollReasonScheduled RollReason = "scheduled" // within the scheduled-roll window
)

// SettlementEvent is an immutable record of a contract close: either a roll
// (early buy-back) or an expiry/assignment settlement. Appended to the
// result's event log in day order, never mutated after emission.
type SettlementEvent struct {
	Day             int        `json:"day"` // index into the input bar series
	Date            time.Time  `json:"date"`
	Type            EventType  `json:"type"`
	RollReason      RollReason `json:"roll_reason,omitempty"` // set for roll events only
	Strike          float64    `json:"strike"`
	Underlying      float64    `json:"underlying"`        // price on the event day
	Premium         float64    `json:"premium"`           // per-share premium received at sale
	Qty             int        `json:"qty"`               // contracts (1 contract = 100 shares)
	PnL             float64    `json:"pnl"`               // realized on this contract
	Delta           float64    `json:"delta,omitempty"`   // contract delta at the trigger (rolls)
	TotalValueAfter float64    `json:"total_value_after"` // cash + shares*price after the event
}

// CurvePoint is one day of backtest output. Strike and Delta are nil while no
// call is open; Event is non-nil only on days a settlement occurred.
type CurvePoint struct {
	Day        int              `json:"day"`
	Date       time.Time        `json:"date"`
	Underlying float64          `json:"underlying"`
	BHValue    float64          `json:"bh_value"` // buy-and-hold benchmark value
	CCValue    float64          `json:"cc_value"` // covered-call strategy value
	Shares     int              `json:"shares"`   // covered-call share count after the day's events
	Strike     *float64         `json:"strike,omitempty"`
	Delta      *float64         `json:"delta,omitempty"`
	Event      *SettlementEvent `json:"event,omitempty"`
}

// Result is the complete output of one backtest run. Curve has exactly one
// point per input bar, in input order.
type Result struct {
	Curve []CurvePoint `json:"curve"`

	BHReturn float64 `json:"bh_return"` // finalValue/initialValue - 1
	CCReturn float64 `json:"cc_return"`

	HV     float64 `json:"hv"`      // annualized historical volatility of the input series
	IVUsed float64 `json:"iv_used"` // volatility the pricer actually used (override or HV)

	BHShares int `json:"bh_shares"` // final share count, buy-and-hold
	CCShares int `json:"cc_shares"` // final share count, covered-call

	Settlements []SettlementEvent `json:"settlements"`
	RollEvents  []SettlementEvent `json:"roll_events"` // delta-triggered rolls only

	CCWinRate         float64 `json:"cc_win_rate"` // pnl>0 settlements / total, 0 when none
	CCSettlementCount int     `json:"cc_settlement_count"`

	EffectiveTargetDelta float64 `json:"effective_target_delta"` // after clamping
	RollDeltaTrigger     float64 `json:"roll_delta_trigger"`     // after clamping
}

package backtest

import "math"

// ════════════════════════════════════════════════════════════════════
// Run Parameters
// ════════════════════════════════════════════════════════════════════

// Frequency selects how the price series is partitioned into option cycles.
type Frequency string

const (
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
)

// Params configures a single backtest run. Out-of-range fields are silently
// clamped or defaulted before the run; see Normalized.
type Params struct {
	InitialCash   float64 `json:"initial_cash"`
	InitialShares int     `json:"initial_shares"`

	RiskFreeRate  float64 `json:"risk_free_rate"` // annual r
	DividendYield float64 `json:"dividend_yield"` // annual q

	TargetDelta float64   `json:"target_delta"`
	Frequency   Frequency `json:"frequency"`
	IVOverride  float64   `json:"iv_override,omitempty"` // 0 = estimate from history

	ReinvestPremium   bool `json:"reinvest_premium"`
	ReinvestThreshold int  `json:"reinvest_threshold"` // whole shares accrued before buying

	RoundStrikes bool `json:"round_strikes"`
	SkipEarnings bool `json:"skip_earnings"`
	DynamicQty   bool `json:"dynamic_qty"` // size contracts off current holdings

	EnableRolling           bool    `json:"enable_rolling"`
	RollDeltaTrigger        float64 `json:"roll_delta_trigger"`
	RollDaysBeforeExpiry    int     `json:"roll_days_before_expiry"`     // 0 disables scheduled rolls
	EntryDaysBeforeCycleEnd int     `json:"entry_days_before_cycle_end"` // <0 follows RollDaysBeforeExpiry
}

// DefaultParams returns the baseline configuration: 100 covered shares,
// weekly cycles, 0.30 target delta, delta-triggered rolling at 0.70.
func DefaultParams() Params {
	return Params{
		InitialShares:           100,
		RiskFreeRate:            0.04,
		TargetDelta:             0.30,
		Frequency:               Weekly,
		ReinvestThreshold:       1,
		EnableRolling:           true,
		RollDeltaTrigger:        0.70,
		EntryDaysBeforeCycleEnd: -1,
	}
}

// Normalized returns a copy with every out-of-range field clamped or
// defaulted. The engine always operates on normalized parameters and reports
// the effective values back in the result.
func (p Params) Normalized() Params {
	p.TargetDelta = clampDelta(p.TargetDelta, 0.30)
	p.RollDeltaTrigger = clampDelta(p.RollDeltaTrigger, 0.70)

	if p.RollDaysBeforeExpiry < 0 {
		p.RollDaysBeforeExpiry = 0
	} else if p.RollDaysBeforeExpiry > 4 {
		p.RollDaysBeforeExpiry = 4
	}

	// The entry offset pre-positions the next sale ahead of the current
	// cycle's end. Negative means "same as the scheduled-roll offset".
	if p.EntryDaysBeforeCycleEnd < 0 {
		p.EntryDaysBeforeCycleEnd = p.RollDaysBeforeExpiry
	} else if p.EntryDaysBeforeCycleEnd > 4 {
		p.EntryDaysBeforeCycleEnd = 4
	}

	if p.Frequency != Weekly && p.Frequency != Monthly {
		p.Frequency = Weekly
	}
	return p
}

// clampDelta substitutes def for absent or unusable delta values, then clamps
// into the band the strike solver supports.
func clampDelta(d, def float64) float64 {
	if d == 0 || math.IsNaN(d) {
		d = def
	}
	if d < 0.05 {
		return 0.05
	}
	if d > 0.95 {
		return 0.95
	}
	return d
}

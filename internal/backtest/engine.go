// Package backtest implements a walk-forward covered-call simulation over a
// daily price series, benchmarked against passive buy-and-hold. Each day the
// engine decides whether to roll an open short call, open a new one, or
// settle at expiry, mutating a single cash/shares ledger and emitting an
// auditable event log alongside the equity curve.
package backtest

import (
	"math"
	"time"

	"github.com/quantfray/buywrite/internal/pricing"
	"github.com/quantfray/buywrite/pkg/models"
	"github.com/quantfray/buywrite/pkg/utils"
)

// tradingYear converts day spans to year fractions for the pricer.
const tradingYear = 252.0

// ════════════════════════════════════════════════════════════════════
// Position & Run State
// ════════════════════════════════════════════════════════════════════

// position is one open short-call contract. At most one exists at a time;
// Qty > 0 and ExpiryDay >= SaleDay hold while open.
type position struct {
	Strike    float64
	Premium   float64 // per share, received at sale
	Qty       int     // contracts, 1 contract = 100 shares
	SaleDay   int
	ExpiryDay int
}

// runState is the mutable ledger threaded through one forward pass, together
// with the immutable pre-pass planning tables. All mutation happens inside
// the per-day step methods; nothing is shared between runs.
type runState struct {
	p Params

	closes []float64
	dates  []time.Time
	iv     float64

	cycles   []Cycle
	cycleOf  []int
	eligible []bool
	plan     map[int]int // sale day index -> target cycle index

	cash    float64
	shares  int
	pos     *position // nil while no call is open
	accrued float64   // premium awaiting reinvestment

	settlements []models.SettlementEvent
	rollEvents  []models.SettlementEvent
	dayEvent    *models.SettlementEvent // last event emitted today
}

// ════════════════════════════════════════════════════════════════════
// Engine
// ════════════════════════════════════════════════════════════════════

// Engine runs covered-call backtests with a fixed parameter set. Runs are
// pure: an Engine may be shared across goroutines, and each Run call works
// on its own state.
type Engine struct {
	params Params
}

// New creates an engine, normalizing out-of-range parameters.
func New(params Params) *Engine {
	return &Engine{params: params.Normalized()}
}

// Params returns the normalized parameter set the engine runs with.
func (e *Engine) Params() Params { return e.params }

// Run simulates the covered-call overlay over the bar series. earnings lists
// dates with scheduled earnings reports, consulted only when SkipEarnings is
// set. The pass is total: degenerate inputs produce degenerate curves, never
// an error. Callers decide for themselves how short a series is too short.
func (e *Engine) Run(bars []models.PriceBar, earnings []time.Time) *models.Result {
	p := e.params

	closes := make([]float64, len(bars))
	dates := make([]time.Time, len(bars))
	for i, b := range bars {
		closes[i] = b.Price()
		dates[i] = b.Date
	}

	hv := pricing.HistoricalVol(closes)
	iv := hv
	if p.IVOverride > 0 {
		iv = p.IVOverride
	}

	cycles := BuildCycles(dates, p.Frequency)

	st := &runState{
		p:        p,
		closes:   closes,
		dates:    dates,
		iv:       iv,
		cycles:   cycles,
		cycleOf:  cycleIndex(cycles, len(bars)),
		eligible: eligibleCycles(cycles, dates, earnings, p.SkipEarnings),
		plan:     planSales(cycles, p.EntryDaysBeforeCycleEnd),
		cash:     p.InitialCash,
		shares:   p.InitialShares,
	}

	// The per-day precedence is fixed: roll, then open, then settle, then
	// mark to market. Reordering changes outcomes on days where several
	// conditions hold at once.
	curve := make([]models.CurvePoint, 0, len(bars))
	for i := range bars {
		s := closes[i]
		st.dayEvent = nil

		st.checkRoll(i, s)
		st.checkOpen(i, s)
		st.checkSettle(i, s)
		curve = append(curve, st.markToMarket(i, s))
	}

	return buildResult(p, curve, st, hv, iv)
}

// ════════════════════════════════════════════════════════════════════
// Pre-Pass Planning
// ════════════════════════════════════════════════════════════════════

// planSales maps day indices to the cycle a sale opened that day should
// target. Day 0 bootstraps into cycle 0; each cycle transition schedules the
// next sale entryOffset days before the current cycle ends, clamped inside
// the cycle. Later writes win when days collide.
func planSales(cycles []Cycle, entryOffset int) map[int]int {
	plan := make(map[int]int)
	if len(cycles) == 0 {
		return plan
	}
	plan[0] = 0
	for c := 0; c+1 < len(cycles); c++ {
		day := cycles[c].End - entryOffset
		if day < cycles[c].Start {
			day = cycles[c].Start
		}
		if day > cycles[c].End {
			day = cycles[c].End
		}
		plan[day] = c + 1
	}
	return plan
}

// eligibleCycles flags which cycles may host new sales. With earnings
// avoidance on, any cycle containing a known earnings date is skipped; a
// sale fires only when both the sale day's cycle and the target cycle are
// eligible, so strikes never straddle an earnings report.
func eligibleCycles(cycles []Cycle, dates []time.Time, earnings []time.Time, skip bool) []bool {
	eligible := make([]bool, len(cycles))
	if !skip {
		for i := range eligible {
			eligible[i] = true
		}
		return eligible
	}

	known := make(map[string]struct{}, len(earnings))
	for _, d := range earnings {
		known[utils.FormatDate(d)] = struct{}{}
	}

	for ci, c := range cycles {
		eligible[ci] = true
		for i := c.Start; i <= c.End && i < len(dates); i++ {
			if _, ok := known[utils.FormatDate(dates[i])]; ok {
				eligible[ci] = false
				break
			}
		}
	}
	return eligible
}

// ════════════════════════════════════════════════════════════════════
// Per-Day Steps
// ════════════════════════════════════════════════════════════════════

// checkRoll closes and replaces an open contract when its delta breaches the
// roll trigger or the scheduled-roll window is reached. Runs before the open
// and settle checks.
func (st *runState) checkRoll(i int, s float64) {
	if !st.p.EnableRolling || st.pos == nil {
		return
	}
	dte := st.pos.ExpiryDay - i
	if dte < 0 {
		return
	}

	t := yearFrac(dte)
	delta := pricing.CallDelta(s, st.pos.Strike, st.p.RiskFreeRate, st.p.DividendYield, st.iv, t)

	deltaFire := dte > 2 && delta >= st.p.RollDeltaTrigger
	schedFire := st.p.RollDaysBeforeExpiry > 0 && dte <= st.p.RollDaysBeforeExpiry
	if !deltaFire && !schedFire {
		return
	}

	old := *st.pos
	closeValue := pricing.CallPrice(s, old.Strike, st.p.RiskFreeRate, st.p.DividendYield, st.iv, t)
	st.cash -= closeValue * float64(old.Qty) * 100
	st.pos = nil

	reason := models.RollReasonScheduled
	if deltaFire {
		reason = models.RollReasonDelta
	}

	// Re-open into the next eligible cycle, or push out by the old
	// contract's term when none remains.
	expiry := -1
	for ci := st.cycleOf[i] + 1; ci < len(st.cycles); ci++ {
		if st.eligible[ci] {
			expiry = st.cycles[ci].End
			break
		}
	}
	if expiry < 0 {
		expiry = i + (old.ExpiryDay - old.SaleDay)
	}

	strike := st.solveStrike(s, expiry-i)
	if deltaFire && strike <= old.Strike {
		strike = old.Strike + strikeBump(st.p.RoundStrikes, strike)
	}

	if qty := st.contractQty(); qty > 0 {
		prem := pricing.CallPrice(s, strike, st.p.RiskFreeRate, st.p.DividendYield, st.iv, yearFrac(expiry-i))
		st.receivePremium(prem*float64(qty)*100, s)
		st.pos = &position{Strike: strike, Premium: prem, Qty: qty, SaleDay: i, ExpiryDay: expiry}
	}

	st.emit(models.SettlementEvent{
		Day:             i,
		Date:            st.dates[i],
		Type:            models.EventRoll,
		RollReason:      reason,
		Strike:          old.Strike,
		Underlying:      s,
		Premium:         old.Premium,
		Qty:             old.Qty,
		PnL:             (old.Premium - closeValue) * float64(old.Qty) * 100,
		Delta:           delta,
		TotalValueAfter: st.cash + float64(st.shares)*s,
	}, deltaFire)
}

// checkOpen opens a planned sale when no position is held, today is a
// planned sale day, both today's cycle and the target cycle are eligible,
// and the target expiry is still ahead.
func (st *runState) checkOpen(i int, s float64) {
	if st.pos != nil {
		return
	}
	target, ok := st.plan[i]
	if !ok {
		return
	}
	if !st.eligible[target] || !st.eligible[st.cycleOf[i]] {
		return
	}
	expiry := st.cycles[target].End
	if expiry <= i {
		return
	}

	strike := st.solveStrike(s, expiry-i)
	qty := st.contractQty()
	if qty == 0 {
		return
	}
	prem := pricing.CallPrice(s, strike, st.p.RiskFreeRate, st.p.DividendYield, st.iv, yearFrac(expiry-i))
	st.receivePremium(prem*float64(qty)*100, s)
	st.pos = &position{Strike: strike, Premium: prem, Qty: qty, SaleDay: i, ExpiryDay: expiry}
}

// checkSettle settles an open contract at expiry, or on the final bar if it
// has not expired yet. Assignment delivers covered shares at the strike and
// immediately rebuys the same count at market, keeping the share count
// stable across assignment.
func (st *runState) checkSettle(i int, s float64) {
	if st.pos == nil {
		return
	}
	if st.pos.ExpiryDay != i && i != len(st.closes)-1 {
		return
	}

	pos := *st.pos
	intrinsic := math.Max(0, s-pos.Strike)
	if s > pos.Strike {
		deliver := pos.Qty * 100
		if deliver > st.shares {
			deliver = st.shares
		}
		st.cash += float64(deliver) * pos.Strike
		st.cash -= float64(deliver) * s
	}

	st.pos = nil
	st.emit(models.SettlementEvent{
		Day:             i,
		Date:            st.dates[i],
		Type:            models.EventExpiry,
		Strike:          pos.Strike,
		Underlying:      s,
		Premium:         pos.Premium,
		Qty:             pos.Qty,
		PnL:             (pos.Premium - intrinsic) * float64(pos.Qty) * 100,
		TotalValueAfter: st.cash + float64(st.shares)*s,
	}, false)
}

// markToMarket records today's curve point: the independent buy-and-hold
// value, the covered-call ledger value, and the open contract's strike and
// delta when one is held.
func (st *runState) markToMarket(i int, s float64) models.CurvePoint {
	cp := models.CurvePoint{
		Day:        i,
		Date:       st.dates[i],
		Underlying: s,
		BHValue:    st.p.InitialCash + float64(st.p.InitialShares)*s,
		CCValue:    st.cash + float64(st.shares)*s,
		Shares:     st.shares,
		Event:      st.dayEvent,
	}
	if st.pos != nil {
		strike := st.pos.Strike
		delta := pricing.CallDelta(s, strike, st.p.RiskFreeRate, st.p.DividendYield, st.iv, yearFrac(st.pos.ExpiryDay-i))
		cp.Strike = &strike
		cp.Delta = &delta
	}
	return cp
}

// ════════════════════════════════════════════════════════════════════
// Ledger Helpers
// ════════════════════════════════════════════════════════════════════

// receivePremium credits option premium and, when reinvestment is on,
// accumulates it until enough whole shares can be bought at today's price.
// Leftover fractional cash stays in the ledger.
func (st *runState) receivePremium(amount, s float64) {
	st.cash += amount
	if !st.p.ReinvestPremium || s <= 0 {
		return
	}
	st.accrued += amount
	n := int(math.Floor(st.accrued / s))
	if n > 0 && n >= st.p.ReinvestThreshold {
		cost := float64(n) * s
		st.cash -= cost
		st.shares += n
		st.accrued -= cost
	}
}

// emit appends an event to the settlement log, mirrors delta-triggered rolls
// into the roll-only log, and marks the event for attachment to today's
// curve point. Events are never mutated after emission.
func (st *runState) emit(ev models.SettlementEvent, deltaRoll bool) {
	st.settlements = append(st.settlements, ev)
	if deltaRoll {
		st.rollEvents = append(st.rollEvents, ev)
	}
	cp := ev
	st.dayEvent = &cp
}

// solveStrike finds the strike matching the configured target delta for a
// term of dte days, optionally rounding to whole dollars.
func (st *runState) solveStrike(s float64, dte int) float64 {
	k := pricing.StrikeForDelta(st.p.TargetDelta, s, st.p.RiskFreeRate, st.p.DividendYield, st.iv, yearFrac(dte))
	if st.p.RoundStrikes {
		k = math.Round(k)
	}
	return k
}

// contractQty sizes a new contract: dynamic sizing covers current holdings,
// fixed sizing stays at the initial share count.
func (st *runState) contractQty() int {
	if st.p.DynamicQty {
		return st.shares / 100
	}
	return st.p.InitialShares / 100
}

// strikeBump is the minimum increment forcing a delta-rolled strike above
// the strike it replaces.
func strikeBump(rounded bool, k float64) float64 {
	if rounded {
		return 1.0
	}
	return math.Max(0.5, 0.01*k)
}

// yearFrac converts a day span to years with a one-day floor, so even
// same-day contracts carry a sliver of time value.
func yearFrac(days int) float64 {
	t := float64(days) / tradingYear
	if t < 1/tradingYear {
		return 1 / tradingYear
	}
	return t
}

// ════════════════════════════════════════════════════════════════════
// Result Assembly
// ════════════════════════════════════════════════════════════════════

// buildResult assembles summary statistics after the pass.
func buildResult(p Params, curve []models.CurvePoint, st *runState, hv, iv float64) *models.Result {
	res := &models.Result{
		Curve:                curve,
		HV:                   hv,
		IVUsed:               iv,
		BHShares:             p.InitialShares,
		CCShares:             st.shares,
		Settlements:          st.settlements,
		RollEvents:           st.rollEvents,
		CCSettlementCount:    len(st.settlements),
		EffectiveTargetDelta: p.TargetDelta,
		RollDeltaTrigger:     p.RollDeltaTrigger,
	}
	if res.Settlements == nil {
		res.Settlements = []models.SettlementEvent{}
	}
	if res.RollEvents == nil {
		res.RollEvents = []models.SettlementEvent{}
	}

	if len(curve) > 0 {
		first, last := curve[0], curve[len(curve)-1]
		if first.BHValue != 0 {
			res.BHReturn = last.BHValue/first.BHValue - 1
		}
		if first.CCValue != 0 {
			res.CCReturn = last.CCValue/first.CCValue - 1
		}
	}

	wins, total := 0, 0
	for _, ev := range res.Settlements {
		if ev.Qty <= 0 {
			continue
		}
		total++
		if ev.PnL > 0 {
			wins++
		}
	}
	if total > 0 {
		res.CCWinRate = float64(wins) / float64(total)
	}

	return res
}

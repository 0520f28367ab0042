package report

import (
	"math"

	"github.com/quantfray/buywrite/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Performance Metrics — derived from the curve, display-layer only
// ════════════════════════════════════════════════════════════════════

// Metrics holds analytics computed from a backtest result. They are
// presentation values; the engine's Result is the contract.
type Metrics struct {
	CAGR             float64 // covered-call leg, percent
	BHCAGR           float64 // buy-and-hold leg, percent
	MaxDrawdown      float64 // covered-call, currency
	MaxDrawdownPct   float64 // covered-call, percent of peak
	BHMaxDrawdownPct float64 // buy-and-hold, percent of peak
	SharpeRatio      float64 // annualized, covered-call daily returns
	SortinoRatio     float64 // annualized, downside deviation only

	PremiumCollected float64 // sum of premium received across settlements
	TotalPnL         float64 // sum of settlement P&L
	WinningCount     int
	LosingCount      int
	AvgWin           float64
	AvgLoss          float64
	ProfitFactor     float64
}

// ComputeMetrics computes all derived metrics for a result.
// riskFreeRate is annual (e.g. 0.04 for 4%).
func ComputeMetrics(r *models.Result, riskFreeRate float64) *Metrics {
	m := &Metrics{}
	if r == nil {
		return m
	}

	computeSettlementStats(m, r.Settlements)
	computeCAGR(m, r.Curve)
	computeDrawdown(m, r.Curve)
	computeSharpe(m, r.Curve, riskFreeRate)
	computeSortino(m, r.Curve, riskFreeRate)
	return m
}

// ────────────────────────────────────────────────────────────────────
// Settlement statistics
// ────────────────────────────────────────────────────────────────────

func computeSettlementStats(m *Metrics, events []models.SettlementEvent) {
	var totalWin, totalLoss float64
	for _, ev := range events {
		if ev.Qty <= 0 {
			continue
		}
		m.PremiumCollected += ev.Premium * float64(ev.Qty) * 100
		m.TotalPnL += ev.PnL
		if ev.PnL > 0 {
			m.WinningCount++
			totalWin += ev.PnL
		} else if ev.PnL < 0 {
			m.LosingCount++
			totalLoss += math.Abs(ev.PnL)
		}
	}

	if m.WinningCount > 0 {
		m.AvgWin = totalWin / float64(m.WinningCount)
	}
	if m.LosingCount > 0 {
		m.AvgLoss = totalLoss / float64(m.LosingCount)
	}
	if totalLoss > 0 {
		m.ProfitFactor = totalWin / totalLoss
	} else if totalWin > 0 {
		m.ProfitFactor = math.Inf(1)
	}
}

// ────────────────────────────────────────────────────────────────────
// CAGR — Compound Annual Growth Rate
// ────────────────────────────────────────────────────────────────────

func computeCAGR(m *Metrics, curve []models.CurvePoint) {
	if len(curve) < 2 {
		return
	}
	first, last := curve[0], curve[len(curve)-1]

	days := last.Date.Sub(first.Date).Hours() / 24
	if days <= 0 {
		return
	}
	years := days / 365.25

	if first.CCValue > 0 && last.CCValue > 0 {
		m.CAGR = (math.Pow(last.CCValue/first.CCValue, 1.0/years) - 1) * 100
	}
	if first.BHValue > 0 && last.BHValue > 0 {
		m.BHCAGR = (math.Pow(last.BHValue/first.BHValue, 1.0/years) - 1) * 100
	}
}

// ────────────────────────────────────────────────────────────────────
// Maximum Drawdown
// ────────────────────────────────────────────────────────────────────

func computeDrawdown(m *Metrics, curve []models.CurvePoint) {
	if len(curve) == 0 {
		return
	}

	m.MaxDrawdown, m.MaxDrawdownPct = maxDrawdown(curve, func(p models.CurvePoint) float64 { return p.CCValue })
	_, m.BHMaxDrawdownPct = maxDrawdown(curve, func(p models.CurvePoint) float64 { return p.BHValue })
}

func maxDrawdown(curve []models.CurvePoint, value func(models.CurvePoint) float64) (dd, ddPct float64) {
	peak := value(curve[0])
	for _, p := range curve {
		v := value(p)
		if v > peak {
			peak = v
		}
		d := peak - v
		if d > dd {
			dd = d
		}
		if peak > 0 {
			if pct := d / peak * 100; pct > ddPct {
				ddPct = pct
			}
		}
	}
	return dd, ddPct
}

// ────────────────────────────────────────────────────────────────────
// Sharpe Ratio (annualized)
// ────────────────────────────────────────────────────────────────────

func computeSharpe(m *Metrics, curve []models.CurvePoint, riskFreeRate float64) {
	returns := dailyReturns(curve)
	if len(returns) < 2 {
		return
	}

	dailyRf := riskFreeRate / 252 // trading days
	excess := make([]float64, len(returns))
	for i, ret := range returns {
		excess[i] = ret - dailyRf
	}

	sd := stddev(excess)
	if sd > 0 {
		m.SharpeRatio = (mean(excess) / sd) * math.Sqrt(252) // annualize
	}
}

// ────────────────────────────────────────────────────────────────────
// Sortino Ratio (annualized, downside deviation only)
// ────────────────────────────────────────────────────────────────────

func computeSortino(m *Metrics, curve []models.CurvePoint, riskFreeRate float64) {
	returns := dailyReturns(curve)
	if len(returns) < 2 {
		return
	}

	dailyRf := riskFreeRate / 252
	excess := make([]float64, len(returns))
	for i, ret := range returns {
		excess[i] = ret - dailyRf
	}

	var downsideSqSum float64
	var downsideCount int
	for _, er := range excess {
		if er < 0 {
			downsideSqSum += er * er
			downsideCount++
		}
	}
	if downsideCount == 0 {
		return
	}

	downsideDev := math.Sqrt(downsideSqSum / float64(len(excess)))
	if downsideDev > 0 {
		m.SortinoRatio = (mean(excess) / downsideDev) * math.Sqrt(252)
	}
}

// ════════════════════════════════════════════════════════════════════
// Helpers
// ════════════════════════════════════════════════════════════════════

// dailyReturns computes simple returns of the covered-call leg.
func dailyReturns(curve []models.CurvePoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	returns := make([]float64, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		if curve[i-1].CCValue > 0 {
			returns[i-1] = (curve[i].CCValue - curve[i-1].CCValue) / curve[i-1].CCValue
		}
	}
	return returns
}

func mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range data {
		sum += v
	}
	return sum / float64(len(data))
}

func stddev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	m := mean(data)
	sumSq := 0.0
	for _, v := range data {
		d := v - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(data)-1)) // sample stddev
}

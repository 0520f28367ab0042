// Package pricing implements Black-Scholes pricing for European calls with a
// continuous dividend yield, plus the volatility estimate the backtest engine
// feeds it. All math is plain float64 arithmetic so identical inputs produce
// identical curves on every platform.
package pricing

import "math"

const sqrt2Pi = 2.5066282746310002

// Zelen & Severo polynomial coefficients for the standard normal CDF
// (Abramowitz & Stegun 26.2.17, |error| < 7.5e-8).
const (
	cdfP  = 0.2316419
	cdfB1 = 0.319381530
	cdfB2 = -0.356563782
	cdfB3 = 1.781477937
	cdfB4 = -1.821255978
	cdfB5 = 1.330274429
)

// NormCDF computes the cumulative distribution function of the standard
// normal distribution using the Zelen & Severo polynomial. The closed-form
// polynomial keeps results bit-identical across platforms, which erf-based
// implementations do not guarantee.
func NormCDF(x float64) float64 {
	if x < 0 {
		return 1 - NormCDF(-x)
	}
	k := 1 / (1 + cdfP*x)
	poly := k * (cdfB1 + k*(cdfB2+k*(cdfB3+k*(cdfB4+k*cdfB5))))
	return 1 - normPDF(x)*poly
}

// normPDF is the standard normal density exp(-x²/2)/√(2π).
func normPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) / sqrt2Pi
}

// CallPrice returns the Black-Scholes price of a European call with a
// continuous dividend yield q. If volatility or time to expiry is zero or
// negative the model degenerates and the discounted intrinsic value is
// returned instead.
func CallPrice(s, k, r, q, sigma, t float64) float64 {
	if sigma <= 0 || t <= 0 {
		return math.Max(0, s*math.Exp(-q*t)-k*math.Exp(-r*t))
	}
	sqrtT := math.Sqrt(t)
	d1 := (math.Log(s/k) + (r-q+0.5*sigma*sigma)*t) / (sigma * sqrtT)
	d2 := d1 - sigma*sqrtT
	return s*math.Exp(-q*t)*NormCDF(d1) - k*math.Exp(-r*t)*NormCDF(d2)
}

// CallDelta returns e^(-qt)·Φ(d1), the sensitivity of the call price to the
// underlying. At the degenerate boundary (zero volatility or expiry) the
// delta collapses to a step: 1 in the money, 0 otherwise.
func CallDelta(s, k, r, q, sigma, t float64) float64 {
	if sigma <= 0 || t <= 0 {
		if s > k {
			return 1
		}
		return 0
	}
	d1 := (math.Log(s/k) + (r-q+0.5*sigma*sigma)*t) / (sigma * math.Sqrt(t))
	return math.Exp(-q*t) * NormCDF(d1)
}

// StrikeForDelta solves for the strike whose call delta equals target,
// bisecting over [0.5·s, 2·s]. Delta is monotone decreasing in strike, so
// each step keeps the half of the bracket that still contains the target.
// The iteration count is fixed: the bracket is far below float resolution
// by the time it stops, and the result is deterministic.
func StrikeForDelta(target, s, r, q, sigma, t float64) float64 {
	lo, hi := 0.5*s, 2.0*s
	for i := 0; i < 60; i++ {
		mid := (lo + hi) / 2
		if CallDelta(s, mid, r, q, sigma, t) > target {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2
}

// HistoricalVol estimates annualized volatility from a daily close series:
// the sample standard deviation of log returns scaled by √252. Returns that
// are not finite (from zero or negative prices) are discarded. With fewer
// than two usable returns the estimate falls back to 0.20.
func HistoricalVol(closes []float64) float64 {
	var rets []float64
	for i := 1; i < len(closes); i++ {
		r := math.Log(closes[i] / closes[i-1])
		if math.IsNaN(r) || math.IsInf(r, 0) {
			continue
		}
		rets = append(rets, r)
	}
	if len(rets) < 2 {
		return 0.20
	}
	mean := 0.0
	for _, v := range rets {
		mean += v
	}
	mean /= float64(len(rets))
	sd := 0.0
	for _, v := range rets {
		sd += (v - mean) * (v - mean)
	}
	sd = math.Sqrt(sd / float64(len(rets)-1))
	return sd * math.Sqrt(252.0)
}

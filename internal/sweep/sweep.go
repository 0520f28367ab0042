// Package sweep runs covered-call backtests for several parameter variants
// concurrently. Each variant is an independent engine invocation over the same
// bar series, so variants parallelize with no shared state.
package sweep

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quantfray/buywrite/internal/backtest"
	"github.com/quantfray/buywrite/pkg/models"
)

// Variant is one named parameter set in a sweep.
type Variant struct {
	Name   string          `json:"name"`
	Params backtest.Params `json:"params"`
}

// Outcome pairs a variant with its backtest result. Outcomes are returned in
// the same order as the variants that produced them.
type Outcome struct {
	Variant Variant        `json:"variant"`
	Result  *models.Result `json:"result"`
}

// Runner executes sweeps with a bounded degree of parallelism.
type Runner struct {
	limit int
}

// New creates a runner. A non-positive limit defaults to the number of
// available CPUs.
func New(limit int) *Runner {
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	return &Runner{limit: limit}
}

// Run executes one backtest per variant and collects the outcomes,
// index-aligned to the variant list. The engine itself never fails; the only
// error source is context cancellation, which abandons variants not yet
// started.
func (r *Runner) Run(ctx context.Context, bars []models.PriceBar, earnings []time.Time, variants []Variant) ([]Outcome, error) {
	outcomes := make([]Outcome, len(variants))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.limit)
	for i, v := range variants {
		i, v := i, v // per-iteration copies (go <1.22 loop variable semantics)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = Outcome{
				Variant: v,
				Result:  backtest.New(v.Params).Run(bars, earnings),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// DeltaVariants builds one variant per target delta on top of a base
// parameter set, the common sweep shape.
func DeltaVariants(base backtest.Params, deltas []float64) []Variant {
	variants := make([]Variant, len(deltas))
	for i, d := range deltas {
		p := base
		p.TargetDelta = d
		variants[i] = Variant{
			Name:   fmt.Sprintf("delta_%.2f", d),
			Params: p,
		}
	}
	return variants
}

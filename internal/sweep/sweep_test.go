package sweep

import (
	"context"
	"testing"

	"github.com/quantfray/buywrite/internal/backtest"
	"github.com/quantfray/buywrite/pkg/models"
	"github.com/quantfray/buywrite/pkg/utils"
)

func flatBars(n int, price float64) []models.PriceBar {
	days := utils.TradingDays(utils.DateUTC(2025, 1, 6), n)
	bars := make([]models.PriceBar, n)
	for i := range bars {
		bars[i] = models.PriceBar{Date: days[i], Close: price}
	}
	return bars
}

func TestRunner_AlignsOutcomes(t *testing.T) {
	base := backtest.DefaultParams()
	base.IVOverride = 0.30

	deltas := []float64{0.2, 0.3, 0.4}
	outcomes, err := New(2).Run(context.Background(), flatBars(30, 100), nil, DeltaVariants(base, deltas))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcomes) != len(deltas) {
		t.Fatalf("expected %d outcomes, got %d", len(deltas), len(outcomes))
	}

	strikes := make([]float64, len(outcomes))
	for i, o := range outcomes {
		if o.Variant.Params.TargetDelta != deltas[i] {
			t.Errorf("outcome %d: expected delta %f, got %f", i, deltas[i], o.Variant.Params.TargetDelta)
		}
		if o.Result == nil || len(o.Result.Curve) != 30 {
			t.Fatalf("outcome %d: missing or truncated result", i)
		}
		if o.Result.Curve[0].Strike == nil {
			t.Fatalf("outcome %d: expected day-0 strike", i)
		}
		strikes[i] = *o.Result.Curve[0].Strike
	}

	// Lower target delta means further out of the money.
	if !(strikes[0] > strikes[1] && strikes[1] > strikes[2]) {
		t.Errorf("expected strikes to fall as target delta rises, got %v", strikes)
	}
}

func TestRunner_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	base := backtest.DefaultParams()
	_, err := New(1).Run(ctx, flatBars(10, 100), nil, DeltaVariants(base, []float64{0.2, 0.3}))
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestRunner_NoVariants(t *testing.T) {
	outcomes, err := New(0).Run(context.Background(), flatBars(5, 100), nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcomes) != 0 {
		t.Errorf("expected no outcomes, got %d", len(outcomes))
	}
}

func TestDeltaVariants(t *testing.T) {
	base := backtest.DefaultParams()
	base.IVOverride = 0.25

	variants := DeltaVariants(base, []float64{0.2, 0.4})
	if len(variants) != 2 {
		t.Fatalf("expected 2 variants, got %d", len(variants))
	}
	if variants[0].Name != "delta_0.20" || variants[1].Name != "delta_0.40" {
		t.Errorf("unexpected variant names: %q %q", variants[0].Name, variants[1].Name)
	}
	for i, v := range variants {
		if v.Params.IVOverride != 0.25 {
			t.Errorf("variant %d: expected base params inherited, got IV %f", i, v.Params.IVOverride)
		}
	}
	if variants[0].Params.TargetDelta != 0.2 || variants[1].Params.TargetDelta != 0.4 {
		t.Errorf("unexpected deltas: %f %f",
			variants[0].Params.TargetDelta, variants[1].Params.TargetDelta)
	}
}

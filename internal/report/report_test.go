package report

import (
	"bytes"
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/quantfray/buywrite/pkg/models"
	"github.com/quantfray/buywrite/pkg/utils"
)

// ════════════════════════════════════════════════════════════════════
// Test Helpers
// ════════════════════════════════════════════════════════════════════

// curveFromValues builds a curve whose covered-call leg takes the given
// values; the buy-and-hold leg stays flat.
func curveFromValues(values ...float64) []models.CurvePoint {
	dates := utils.TradingDays(utils.DateUTC(2025, 1, 6), len(values))
	curve := make([]models.CurvePoint, len(values))
	for i, v := range values {
		curve[i] = models.CurvePoint{
			Day:        i,
			Date:       dates[i],
			Underlying: 100,
			BHValue:    100,
			CCValue:    v,
			Shares:     100,
		}
	}
	return curve
}

func sampleResult() *models.Result {
	prices := []float64{100, 101, 99, 100, 102, 104, 103, 105, 106, 107}
	dates := utils.TradingDays(utils.DateUTC(2025, 1, 6), len(prices))

	strike := 104.25
	delta := 0.31

	curve := make([]models.CurvePoint, len(prices))
	for i, p := range prices {
		curve[i] = models.CurvePoint{
			Day:        i,
			Date:       dates[i],
			Underlying: p,
			BHValue:    500 + 100*p,
			CCValue:    650 + 100*p,
			Shares:     100,
			Strike:     &strike,
			Delta:      &delta,
		}
	}

	expiry := models.SettlementEvent{
		Day: 4, Date: dates[4], Type: models.EventExpiry,
		Strike: strike, Underlying: prices[4], Premium: 1.5, Qty: 1,
		PnL: 80, TotalValueAfter: curve[4].CCValue,
	}
	roll := models.SettlementEvent{
		Day: 7, Date: dates[7], Type: models.EventRoll,
		RollReason: models.RollReasonDelta,
		Strike:     strike, Underlying: prices[7], Premium: 2.0, Qty: 2,
		PnL: -30, Delta: 0.74, TotalValueAfter: curve[7].CCValue,
	}
	curve[4].Event = &expiry
	curve[7].Event = &roll

	return &models.Result{
		Curve:                curve,
		BHReturn:             (500 + 100*prices[9]) / (500 + 100*prices[0]) - 1,
		CCReturn:             (650 + 100*prices[9]) / (650 + 100*prices[0]) - 1,
		HV:                   0.24,
		IVUsed:               0.30,
		BHShares:             100,
		CCShares:             100,
		Settlements:          []models.SettlementEvent{expiry, roll},
		RollEvents:           []models.SettlementEvent{roll},
		CCWinRate:            0.5,
		CCSettlementCount:    2,
		EffectiveTargetDelta: 0.30,
		RollDeltaTrigger:     0.70,
	}
}

// ════════════════════════════════════════════════════════════════════
// Metrics
// ════════════════════════════════════════════════════════════════════

func TestComputeMetrics_Drawdown(t *testing.T) {
	res := &models.Result{Curve: curveFromValues(100, 120, 90, 108)}
	m := ComputeMetrics(res, 0.04)

	if math.Abs(m.MaxDrawdown-30) > 1e-9 {
		t.Errorf("MaxDrawdown = %v, want 30", m.MaxDrawdown)
	}
	if math.Abs(m.MaxDrawdownPct-25) > 1e-9 {
		t.Errorf("MaxDrawdownPct = %v, want 25", m.MaxDrawdownPct)
	}
	if m.BHMaxDrawdownPct != 0 {
		t.Errorf("flat B&H leg should have zero drawdown, got %v", m.BHMaxDrawdownPct)
	}
}

func TestComputeMetrics_CAGR(t *testing.T) {
	// Two points one year apart, 10% growth.
	curve := []models.CurvePoint{
		{Day: 0, Date: utils.DateUTC(2024, 1, 2), BHValue: 100, CCValue: 100},
		{Day: 1, Date: utils.DateUTC(2025, 1, 2), BHValue: 100, CCValue: 110},
	}
	m := ComputeMetrics(&models.Result{Curve: curve}, 0.04)

	if math.Abs(m.CAGR-10) > 0.2 {
		t.Errorf("CAGR = %v, want ~10", m.CAGR)
	}
	if math.Abs(m.BHCAGR) > 0.01 {
		t.Errorf("flat B&H CAGR = %v, want 0", m.BHCAGR)
	}
}

func TestComputeMetrics_SettlementStats(t *testing.T) {
	res := &models.Result{
		Settlements: []models.SettlementEvent{
			{Type: models.EventExpiry, Premium: 1.5, Qty: 1, PnL: 50},
			{Type: models.EventExpiry, Premium: 2.0, Qty: 2, PnL: 30},
			{Type: models.EventRoll, Premium: 1.0, Qty: 1, PnL: -40},
			{Type: models.EventExpiry, Premium: 9.9, Qty: 0, PnL: 999}, // no contracts, ignored
		},
	}
	m := ComputeMetrics(res, 0.04)

	// 1.5*1*100 + 2.0*2*100 + 1.0*1*100
	if math.Abs(m.PremiumCollected-650) > 1e-9 {
		t.Errorf("PremiumCollected = %v, want 650", m.PremiumCollected)
	}
	if math.Abs(m.TotalPnL-40) > 1e-9 {
		t.Errorf("TotalPnL = %v, want 40", m.TotalPnL)
	}
	if m.WinningCount != 2 || m.LosingCount != 1 {
		t.Errorf("wins/losses = %d/%d, want 2/1", m.WinningCount, m.LosingCount)
	}
	if math.Abs(m.AvgWin-40) > 1e-9 {
		t.Errorf("AvgWin = %v, want 40", m.AvgWin)
	}
	if math.Abs(m.AvgLoss-40) > 1e-9 {
		t.Errorf("AvgLoss = %v, want 40", m.AvgLoss)
	}
	if math.Abs(m.ProfitFactor-2) > 1e-9 {
		t.Errorf("ProfitFactor = %v, want 2", m.ProfitFactor)
	}
}

func TestComputeMetrics_ProfitFactorNoLosses(t *testing.T) {
	res := &models.Result{
		Settlements: []models.SettlementEvent{
			{Type: models.EventExpiry, Premium: 1, Qty: 1, PnL: 10},
		},
	}
	m := ComputeMetrics(res, 0.04)
	if !math.IsInf(m.ProfitFactor, 1) {
		t.Errorf("ProfitFactor = %v, want +Inf with no losses", m.ProfitFactor)
	}
}

func TestComputeMetrics_Sharpe(t *testing.T) {
	// Steadily rising curve beats the risk-free drag.
	values := make([]float64, 30)
	for i := range values {
		values[i] = 100 * math.Pow(1.002, float64(i))
	}
	m := ComputeMetrics(&models.Result{Curve: curveFromValues(values...)}, 0.04)
	if m.SharpeRatio <= 0 {
		t.Errorf("SharpeRatio = %v, want > 0 for a rising curve", m.SharpeRatio)
	}

	// A flat curve has zero variance, so no ratio.
	flat := ComputeMetrics(&models.Result{Curve: curveFromValues(100, 100, 100, 100)}, 0)
	if flat.SharpeRatio != 0 {
		t.Errorf("flat SharpeRatio = %v, want 0", flat.SharpeRatio)
	}
}

func TestComputeMetrics_Degenerate(t *testing.T) {
	if m := ComputeMetrics(nil, 0.04); m == nil {
		t.Fatal("ComputeMetrics(nil) returned nil")
	}
	m := ComputeMetrics(&models.Result{}, 0.04)
	if m.CAGR != 0 || m.MaxDrawdown != 0 || m.SharpeRatio != 0 {
		t.Errorf("empty result should yield zero metrics, got %+v", m)
	}
}

// ════════════════════════════════════════════════════════════════════
// Charts
// ════════════════════════════════════════════════════════════════════

func TestLineChart_Basic(t *testing.T) {
	svg := LineChart([]LineChartSeries{
		{Name: "Alpha", Values: []float64{1, 2, 3, 2, 4}},
		{Name: "Beta", Values: []float64{2, 2, 2, 3, 3}},
	}, nil, []string{"a", "b", "c", "d", "e"}, DefaultChartConfig())

	if !strings.Contains(svg, "<svg") || !strings.Contains(svg, "</svg>") {
		t.Fatal("not a complete SVG document")
	}
	if !strings.Contains(svg, "<path") {
		t.Error("expected at least one path element")
	}
	if !strings.Contains(svg, "Alpha") || !strings.Contains(svg, "Beta") {
		t.Error("expected series legends")
	}
}

func TestLineChart_Empty(t *testing.T) {
	svg := LineChart(nil, nil, nil, DefaultChartConfig())
	if !strings.Contains(svg, "No data") {
		t.Error("expected empty-state message")
	}
}

func TestLineChart_Markers(t *testing.T) {
	svg := LineChart(
		[]LineChartSeries{{Name: "S", Values: []float64{1, 2, 3}}},
		[]ChartMarker{
			{Index: 1, Value: 2, Color: "#4caf50", Label: "hit"},
			{Index: 99, Value: 2}, // out of range, skipped
		},
		nil, DefaultChartConfig())

	if got := strings.Count(svg, "<circle"); got != 1 {
		t.Errorf("expected 1 marker circle, got %d", got)
	}
	if !strings.Contains(svg, "<title>hit</title>") {
		t.Error("expected marker tooltip")
	}
}

func TestEquityChart_Basic(t *testing.T) {
	svg := EquityChart(sampleResult().Curve, ChartConfig{})
	if !strings.Contains(svg, "Covered Call") || !strings.Contains(svg, "Buy &amp; Hold") {
		t.Error("expected both series legends")
	}
	// One expiry + one roll marker.
	if got := strings.Count(svg, "<circle"); got != 2 {
		t.Errorf("expected 2 settlement markers, got %d", got)
	}
}

func TestEquityChart_Empty(t *testing.T) {
	svg := EquityChart(nil, ChartConfig{})
	if !strings.Contains(svg, "No curve data") {
		t.Error("expected empty-state message")
	}
}

func TestEscapeXML(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"a & b", "a &amp; b"},
		{"<tag>", "&lt;tag&gt;"},
		{`say "hi"`, "say &quot;hi&quot;"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := escapeXML(tt.input); got != tt.want {
			t.Errorf("escapeXML(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestPlotArea(t *testing.T) {
	cfg := DefaultChartConfig()
	x, y, w, h := cfg.plotArea()
	if x != cfg.MarginLeft || y != cfg.MarginTop {
		t.Errorf("plot origin = (%d,%d), want (%d,%d)", x, y, cfg.MarginLeft, cfg.MarginTop)
	}
	if w != cfg.Width-cfg.MarginLeft-cfg.MarginRight {
		t.Errorf("plot width = %d", w)
	}
	if h != cfg.Height-cfg.MarginTop-cfg.MarginBottom {
		t.Errorf("plot height = %d", h)
	}
}

// ════════════════════════════════════════════════════════════════════
// CSV Export
// ════════════════════════════════════════════════════════════════════

func TestWriteCurveCSV(t *testing.T) {
	res := sampleResult()
	var buf bytes.Buffer
	if err := WriteCurveCSV(&buf, res.Curve); err != nil {
		t.Fatalf("WriteCurveCSV() failed: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("re-reading CSV: %v", err)
	}
	if len(records) != len(res.Curve)+1 {
		t.Fatalf("expected %d rows, got %d", len(res.Curve)+1, len(records))
	}
	wantHeader := "index,date,underlying,bh_value,cc_value,strike,delta,event_type"
	if got := strings.Join(records[0], ","); got != wantHeader {
		t.Errorf("header = %q, want %q", got, wantHeader)
	}
	// Day 4 carries the expiry event.
	if records[5][7] != "expiry" {
		t.Errorf("event_type at day 4 = %q, want expiry", records[5][7])
	}
	if records[1][7] != "" {
		t.Errorf("event_type at day 0 = %q, want empty", records[1][7])
	}
}

func TestWriteCurveCSV_NilStrike(t *testing.T) {
	curve := curveFromValues(100, 101)
	var buf bytes.Buffer
	if err := WriteCurveCSV(&buf, curve); err != nil {
		t.Fatalf("WriteCurveCSV() failed: %v", err)
	}
	records, _ := csv.NewReader(&buf).ReadAll()
	if records[1][5] != "" || records[1][6] != "" {
		t.Errorf("nil strike/delta should serialize empty, got %q/%q", records[1][5], records[1][6])
	}
}

func TestWriteSettlementsCSV(t *testing.T) {
	res := sampleResult()
	var buf bytes.Buffer
	if err := WriteSettlementsCSV(&buf, res.Settlements); err != nil {
		t.Fatalf("WriteSettlementsCSV() failed: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("re-reading CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(records))
	}
	wantHeader := "day,date,type,reason,strike,underlying,premium,qty,pnl,delta,total_after"
	if got := strings.Join(records[0], ","); got != wantHeader {
		t.Errorf("header = %q, want %q", got, wantHeader)
	}
	if records[1][2] != "expiry" || records[1][3] != "" {
		t.Errorf("expiry row = type %q reason %q", records[1][2], records[1][3])
	}
	if records[2][2] != "roll" || records[2][3] != "delta" {
		t.Errorf("roll row = type %q reason %q", records[2][2], records[2][3])
	}
}

func TestExportDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "export")
	if err := ExportDir(dir, sampleResult()); err != nil {
		t.Fatalf("ExportDir() failed: %v", err)
	}

	for _, name := range []string{"curve.csv", "settlements.csv"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("reading %s: %v", name, err)
		}
		if len(data) == 0 {
			t.Errorf("%s is empty", name)
		}
	}
}

func TestExportDir_NilResult(t *testing.T) {
	if err := ExportDir(t.TempDir(), nil); err == nil {
		t.Fatal("expected error for nil result")
	}
}

// ════════════════════════════════════════════════════════════════════
// Text Report
// ════════════════════════════════════════════════════════════════════

func TestGenerateText_Basic(t *testing.T) {
	cfg := DefaultReportConfig()
	cfg.Ticker = "TEST"
	out, err := GenerateText(sampleResult(), cfg)
	if err != nil {
		t.Fatalf("GenerateText() failed: %v", err)
	}

	for _, want := range []string{
		"TEST — Covered Call Backtest",
		"PERFORMANCE",
		"RISK",
		"PREMIUM",
		"SETTLEMENTS",
		"[EXPIRY]",
		"[ROLL] (delta)",
		"Win Rate",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text report missing %q", want)
		}
	}
}

func TestGenerateText_NilResult(t *testing.T) {
	if _, err := GenerateText(nil, DefaultReportConfig()); err == nil {
		t.Fatal("expected error for nil result")
	}
}

func TestGenerateText_CapsSettlements(t *testing.T) {
	res := sampleResult()
	res.Settlements = nil
	for i := 0; i < maxTextSettlements+5; i++ {
		res.Settlements = append(res.Settlements, models.SettlementEvent{
			Day: i, Date: utils.DateUTC(2025, 1, 6), Type: models.EventExpiry,
			Strike: 100, Underlying: 100, Premium: 1, Qty: 1, PnL: 10,
		})
	}

	out, err := GenerateText(res, DefaultReportConfig())
	if err != nil {
		t.Fatalf("GenerateText() failed: %v", err)
	}
	if !strings.Contains(out, "… 5 more settlements") {
		t.Error("expected overflow note for long settlement history")
	}
	if got := strings.Count(out, "[EXPIRY]"); got != maxTextSettlements {
		t.Errorf("expected %d listed settlements, got %d", maxTextSettlements, got)
	}
}

// ════════════════════════════════════════════════════════════════════
// HTML Report
// ════════════════════════════════════════════════════════════════════

func TestGenerateHTML_Basic(t *testing.T) {
	cfg := DefaultReportConfig()
	cfg.Ticker = "TEST"
	html, err := GenerateHTML(sampleResult(), cfg)
	if err != nil {
		t.Fatalf("GenerateHTML() failed: %v", err)
	}

	for _, want := range []string{
		"<!DOCTYPE html>",
		"TEST — Covered Call Backtest",
		"<svg",
		"Equity Curves",
		"104.25",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("HTML report missing %q", want)
		}
	}
}

func TestGenerateHTML_NilResult(t *testing.T) {
	if _, err := GenerateHTML(nil, DefaultReportConfig()); err == nil {
		t.Fatal("expected error for nil result")
	}
}

func TestGenerateHTML_CustomTitle(t *testing.T) {
	cfg := DefaultReportConfig()
	cfg.Title = "Custom Run"
	html, err := GenerateHTML(sampleResult(), cfg)
	if err != nil {
		t.Fatalf("GenerateHTML() failed: %v", err)
	}
	if !strings.Contains(html, "<title>Custom Run</title>") {
		t.Error("expected custom title in head")
	}
}

func TestGenerateHTML_WriteToDisk(t *testing.T) {
	html, err := GenerateHTML(sampleResult(), DefaultReportConfig())
	if err != nil {
		t.Fatalf("GenerateHTML() failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "report.html")
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		t.Fatalf("writing report: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat report: %v", err)
	}
	if info.Size() < 1000 {
		t.Errorf("report suspiciously small: %d bytes", info.Size())
	}
}

// ════════════════════════════════════════════════════════════════════
// Misc
// ════════════════════════════════════════════════════════════════════

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{30 * time.Second, "30.0s"},
		{90 * time.Second, "1.5m"},
		{2 * time.Hour, "2.0h"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

package report

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/quantfray/buywrite/pkg/models"
	"github.com/quantfray/buywrite/pkg/utils"
)

// ════════════════════════════════════════════════════════════════════
// Report Generator — text summary + HTML report over one Result
// ════════════════════════════════════════════════════════════════════

// maxTextSettlements caps the settlement listing in the text summary;
// the CSV export carries the full history.
const maxTextSettlements = 15

// ReportConfig controls report generation behaviour.
type ReportConfig struct {
	Title        string      // custom report title (optional)
	Ticker       string      // underlying symbol for headings
	RiskFreeRate float64     // annual, for Sharpe/Sortino
	ChartCfg     ChartConfig // chart rendering config
}

// DefaultReportConfig returns sensible defaults.
func DefaultReportConfig() ReportConfig {
	return ReportConfig{
		RiskFreeRate: 0.04,
		ChartCfg:     DefaultChartConfig(),
	}
}

// ════════════════════════════════════════════════════════════════════
// Report Data — Flattened for rendering
// ════════════════════════════════════════════════════════════════════

// ReportData is the model passed to both the text and HTML renderers.
type ReportData struct {
	// Header
	Title       string
	Ticker      string
	GeneratedAt string
	PeriodStart string
	PeriodEnd   string
	TradingDays int

	// Strategy inputs as run
	TargetDelta string
	RollTrigger string
	HV          string
	IVUsed      string
	BHShares    int
	CCShares    int

	// Performance
	CCReturn      string
	BHReturn      string
	Edge          string
	CCFinal       string
	BHFinal       string
	CAGR          string
	BHCAGR        string
	CCReturnClass string // positive / negative
	EdgeClass     string

	// Risk
	MaxDrawdownPct   string
	BHMaxDrawdownPct string
	Sharpe           string
	Sortino          string

	// Premium / settlements
	PremiumCollected string
	TotalPnL         string
	TotalPnLClass    string
	WinRate          string
	SettlementCount  int
	ExpiryCount      int
	RollCount        int
	DeltaRollCount   int
	Settlements      []SettlementRow
	MoreSettlements  int // rows omitted from the text listing

	// Chart (embedded SVG)
	EquityChart template.HTML
}

// SettlementRow is a flattened settlement event for rendering.
type SettlementRow struct {
	Day        int
	Date       string
	Type       string
	Reason     string
	Strike     string
	Underlying string
	Premium    string
	Qty        int
	PnL        string
	PnLClass   string // positive / negative / neutral
}

// ════════════════════════════════════════════════════════════════════
// Generate
// ════════════════════════════════════════════════════════════════════

// GenerateText renders a terminal-friendly summary of the result.
func GenerateText(res *models.Result, cfg ReportConfig) (string, error) {
	if res == nil {
		return "", fmt.Errorf("result is nil")
	}
	return renderTextReport(buildReportData(res, cfg)), nil
}

// GenerateHTML renders the full HTML report with the embedded equity chart.
func GenerateHTML(res *models.Result, cfg ReportConfig) (string, error) {
	if res == nil {
		return "", fmt.Errorf("result is nil")
	}

	data := buildReportData(res, cfg)

	tmpl, err := template.New("report").Parse(reportTemplate)
	if err != nil {
		return "", fmt.Errorf("parsing template: %w", err)
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing template: %w", err)
	}
	return buf.String(), nil
}

// ════════════════════════════════════════════════════════════════════
// Internal — Build render data
// ════════════════════════════════════════════════════════════════════

func buildReportData(res *models.Result, cfg ReportConfig) ReportData {
	m := ComputeMetrics(res, cfg.RiskFreeRate)

	data := ReportData{
		Title:       cfg.Title,
		Ticker:      cfg.Ticker,
		GeneratedAt: time.Now().UTC().Format("02 Jan 2006, 15:04 UTC"),
		TradingDays: len(res.Curve),

		TargetDelta: fmt.Sprintf("%.2f", res.EffectiveTargetDelta),
		RollTrigger: fmt.Sprintf("%.2f", res.RollDeltaTrigger),
		HV:          fmt.Sprintf("%.1f%%", res.HV*100),
		IVUsed:      fmt.Sprintf("%.1f%%", res.IVUsed*100),
		BHShares:    res.BHShares,
		CCShares:    res.CCShares,

		CCReturn:      utils.FormatPct(res.CCReturn),
		BHReturn:      utils.FormatPct(res.BHReturn),
		Edge:          utils.FormatPct(res.CCReturn - res.BHReturn),
		CAGR:          fmt.Sprintf("%+.2f%%", m.CAGR),
		BHCAGR:        fmt.Sprintf("%+.2f%%", m.BHCAGR),
		CCReturnClass: signClass(res.CCReturn),
		EdgeClass:     signClass(res.CCReturn - res.BHReturn),

		MaxDrawdownPct:   fmt.Sprintf("%.1f%%", m.MaxDrawdownPct),
		BHMaxDrawdownPct: fmt.Sprintf("%.1f%%", m.BHMaxDrawdownPct),
		Sharpe:           fmt.Sprintf("%.2f", m.SharpeRatio),
		Sortino:          fmt.Sprintf("%.2f", m.SortinoRatio),

		PremiumCollected: utils.FormatUSD(m.PremiumCollected),
		TotalPnL:         utils.FormatUSD(m.TotalPnL),
		TotalPnLClass:    signClass(m.TotalPnL),
		WinRate:          fmt.Sprintf("%.1f%%", res.CCWinRate*100),
		SettlementCount:  res.CCSettlementCount,
		DeltaRollCount:   len(res.RollEvents),
	}

	if len(res.Curve) > 0 {
		first, last := res.Curve[0], res.Curve[len(res.Curve)-1]
		data.PeriodStart = utils.FormatDate(first.Date)
		data.PeriodEnd = utils.FormatDate(last.Date)
		data.CCFinal = utils.FormatUSD(last.CCValue)
		data.BHFinal = utils.FormatUSD(last.BHValue)
	}
	if data.Title == "" {
		if data.Ticker != "" {
			data.Title = fmt.Sprintf("%s — Covered Call Backtest", data.Ticker)
		} else {
			data.Title = "Covered Call Backtest"
		}
	}

	for _, ev := range res.Settlements {
		switch ev.Type {
		case models.EventExpiry:
			data.ExpiryCount++
		case models.EventRoll:
			data.RollCount++
		}
		data.Settlements = append(data.Settlements, SettlementRow{
			Day:        ev.Day,
			Date:       utils.FormatDate(ev.Date),
			Type:       strings.ToUpper(string(ev.Type)),
			Reason:     string(ev.RollReason),
			Strike:     fmt.Sprintf("%.2f", ev.Strike),
			Underlying: fmt.Sprintf("%.2f", ev.Underlying),
			Premium:    fmt.Sprintf("%.2f", ev.Premium),
			Qty:        ev.Qty,
			PnL:        utils.FormatUSD(ev.PnL),
			PnLClass:   signClass(ev.PnL),
		})
	}

	chartCfg := cfg.ChartCfg
	if chartCfg.Title == "" && data.Ticker != "" {
		chartCfg.Title = fmt.Sprintf("%s Equity Curves", data.Ticker)
	}
	data.EquityChart = template.HTML(EquityChart(res.Curve, chartCfg))

	return data
}

func signClass(v float64) string {
	switch {
	case v > 0:
		return "positive"
	case v < 0:
		return "negative"
	default:
		return "neutral"
	}
}

// ════════════════════════════════════════════════════════════════════
// Plain-text renderer
// ════════════════════════════════════════════════════════════════════

func renderTextReport(d ReportData) string {
	var sb strings.Builder
	line := strings.Repeat("═", 60)
	thinLine := strings.Repeat("─", 60)

	sb.WriteString("\n" + line + "\n")
	sb.WriteString(fmt.Sprintf("  %s\n", d.Title))
	sb.WriteString(fmt.Sprintf("  Generated: %s\n", d.GeneratedAt))
	sb.WriteString(line + "\n\n")

	if d.PeriodStart != "" {
		sb.WriteString(fmt.Sprintf("  Period: %s → %s (%d trading days)\n", d.PeriodStart, d.PeriodEnd, d.TradingDays))
	}
	sb.WriteString(fmt.Sprintf("  Target delta %s | Roll trigger %s | HV %s | IV used %s\n",
		d.TargetDelta, d.RollTrigger, d.HV, d.IVUsed))
	sb.WriteString(thinLine + "\n")

	writeSection := func(title string, rows [][2]string) {
		sb.WriteString(fmt.Sprintf("\n  ■ %s\n", title))
		for _, r := range rows {
			sb.WriteString(fmt.Sprintf("    %-22s %s\n", r[0], r[1]))
		}
		sb.WriteString(thinLine + "\n")
	}

	writeSection("PERFORMANCE", [][2]string{
		{"Covered Call", fmt.Sprintf("%s  (%s, CAGR %s)", d.CCReturn, d.CCFinal, d.CAGR)},
		{"Buy & Hold", fmt.Sprintf("%s  (%s, CAGR %s)", d.BHReturn, d.BHFinal, d.BHCAGR)},
		{"Edge", d.Edge},
		{"Shares (CC vs B&H)", fmt.Sprintf("%d vs %d", d.CCShares, d.BHShares)},
	})

	writeSection("RISK", [][2]string{
		{"Max Drawdown", fmt.Sprintf("%s (B&H %s)", d.MaxDrawdownPct, d.BHMaxDrawdownPct)},
		{"Sharpe", d.Sharpe},
		{"Sortino", d.Sortino},
	})

	writeSection("PREMIUM", [][2]string{
		{"Collected", d.PremiumCollected},
		{"Net Settlement P&L", d.TotalPnL},
		{"Win Rate", fmt.Sprintf("%s over %d settlements", d.WinRate, d.SettlementCount)},
		{"Breakdown", fmt.Sprintf("%d expiries, %d rolls (%d delta-triggered)", d.ExpiryCount, d.RollCount, d.DeltaRollCount)},
	})

	if len(d.Settlements) > 0 {
		sb.WriteString("\n  ■ SETTLEMENTS\n")
		shown := d.Settlements
		if len(shown) > maxTextSettlements {
			shown = shown[:maxTextSettlements]
		}
		for _, s := range shown {
			reason := ""
			if s.Reason != "" {
				reason = " (" + s.Reason + ")"
			}
			sb.WriteString(fmt.Sprintf("    [%s]%s day %d %s  K=%s S=%s prem=%s x%d  P&L %s\n",
				s.Type, reason, s.Day, s.Date, s.Strike, s.Underlying, s.Premium, s.Qty, s.PnL))
		}
		if n := len(d.Settlements) - len(shown); n > 0 {
			sb.WriteString(fmt.Sprintf("    … %d more settlements (use the CSV export for the full history)\n", n))
		}
		sb.WriteString(thinLine + "\n")
	}

	sb.WriteString("\n" + line + "\n")
	sb.WriteString("  Simulation only — fixed IV, frictionless fills, no fees or taxes.\n")
	sb.WriteString(line + "\n")

	return sb.String()
}

// FormatDuration formats a duration for display.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
	return fmt.Sprintf("%.1fh", d.Hours())
}

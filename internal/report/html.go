package report

// reportTemplate is the HTML template for the backtest report.
// It is embedded as a Go constant — no external file dependencies.
const reportTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
<style>
  :root {
    --bg: #ffffff;
    --text: #1a1a2e;
    --muted: #6b7280;
    --border: #e5e7eb;
    --accent: #2563eb;
    --green: #16a34a;
    --red: #dc2626;
    --section-bg: #f8fafc;
  }
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body {
    font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
    color: var(--text);
    background: var(--bg);
    line-height: 1.6;
    max-width: 900px;
    margin: 0 auto;
    padding: 20px;
  }
  h1, h2 { font-weight: 600; }
  h1 { font-size: 1.5rem; margin-bottom: 4px; color: var(--accent); }
  h2 { font-size: 1.2rem; margin: 24px 0 12px; padding-bottom: 6px; border-bottom: 2px solid var(--accent); }
  .muted { color: var(--muted); font-size: 0.85rem; }

  .header {
    display: flex;
    justify-content: space-between;
    align-items: flex-start;
    border-bottom: 3px solid var(--accent);
    padding-bottom: 12px;
    margin-bottom: 16px;
  }
  .ticker-badge {
    display: inline-block;
    background: var(--accent);
    color: white;
    padding: 2px 12px;
    border-radius: 4px;
    font-weight: 700;
    font-size: 1.1rem;
  }

  .stat-bar {
    display: grid;
    grid-template-columns: repeat(auto-fill, minmax(140px, 1fr));
    gap: 8px;
    background: var(--section-bg);
    padding: 12px;
    border-radius: 8px;
    margin-bottom: 16px;
  }
  .stat-item { text-align: center; }
  .stat-item .label { font-size: 0.75rem; color: var(--muted); text-transform: uppercase; }
  .stat-item .value { font-size: 1rem; font-weight: 600; }
  .positive { color: var(--green); }
  .negative { color: var(--red); }
  .neutral { color: var(--muted); }

  .chart { margin: 12px 0; text-align: center; }
  .chart svg { max-width: 100%; height: auto; }

  table { width: 100%; border-collapse: collapse; margin: 8px 0 16px; font-size: 0.9rem; }
  th { background: var(--section-bg); text-align: left; padding: 8px; font-weight: 600; }
  td { padding: 8px; border-bottom: 1px solid var(--border); }
  .type-badge {
    display: inline-block;
    padding: 1px 8px;
    border-radius: 10px;
    font-size: 0.75rem;
    font-weight: 600;
    background: var(--section-bg);
  }

  .footer {
    margin-top: 24px;
    padding-top: 12px;
    border-top: 1px solid var(--border);
    font-size: 0.8rem;
    color: var(--muted);
    text-align: center;
  }
</style>
</head>
<body>

<div class="header">
  <div>
    <h1>{{.Title}}</h1>
    <p class="muted">{{.PeriodStart}} → {{.PeriodEnd}} · {{.TradingDays}} trading days</p>
  </div>
  <div style="text-align:right">
    {{if .Ticker}}<span class="ticker-badge">{{.Ticker}}</span>{{end}}
    <p class="muted">Generated {{.GeneratedAt}}</p>
  </div>
</div>

<div class="stat-bar">
  <div class="stat-item"><div class="label">Covered Call</div><div class="value {{.CCReturnClass}}">{{.CCReturn}}</div></div>
  <div class="stat-item"><div class="label">Buy &amp; Hold</div><div class="value">{{.BHReturn}}</div></div>
  <div class="stat-item"><div class="label">Edge</div><div class="value {{.EdgeClass}}">{{.Edge}}</div></div>
  <div class="stat-item"><div class="label">CAGR</div><div class="value">{{.CAGR}}</div></div>
  <div class="stat-item"><div class="label">Max Drawdown</div><div class="value">{{.MaxDrawdownPct}}</div></div>
  <div class="stat-item"><div class="label">Sharpe</div><div class="value">{{.Sharpe}}</div></div>
  <div class="stat-item"><div class="label">Win Rate</div><div class="value">{{.WinRate}}</div></div>
  <div class="stat-item"><div class="label">Premium</div><div class="value">{{.PremiumCollected}}</div></div>
</div>

<h2>Equity Curves</h2>
<div class="chart">{{.EquityChart}}</div>

<h2>Strategy</h2>
<div class="stat-bar">
  <div class="stat-item"><div class="label">Target Delta</div><div class="value">{{.TargetDelta}}</div></div>
  <div class="stat-item"><div class="label">Roll Trigger</div><div class="value">{{.RollTrigger}}</div></div>
  <div class="stat-item"><div class="label">Historical Vol</div><div class="value">{{.HV}}</div></div>
  <div class="stat-item"><div class="label">IV Used</div><div class="value">{{.IVUsed}}</div></div>
  <div class="stat-item"><div class="label">Shares CC</div><div class="value">{{.CCShares}}</div></div>
  <div class="stat-item"><div class="label">Shares B&amp;H</div><div class="value">{{.BHShares}}</div></div>
  <div class="stat-item"><div class="label">Net P&amp;L</div><div class="value {{.TotalPnLClass}}">{{.TotalPnL}}</div></div>
  <div class="stat-item"><div class="label">Settlements</div><div class="value">{{.SettlementCount}}</div></div>
</div>

{{if .Settlements}}
<h2>Settlements ({{.ExpiryCount}} expiries, {{.RollCount}} rolls)</h2>
<table>
  <thead>
    <tr><th>Day</th><th>Date</th><th>Type</th><th>Reason</th><th>Strike</th><th>Spot</th><th>Premium</th><th>Qty</th><th>P&amp;L</th></tr>
  </thead>
  <tbody>
    {{range .Settlements}}
    <tr>
      <td>{{.Day}}</td>
      <td>{{.Date}}</td>
      <td><span class="type-badge">{{.Type}}</span></td>
      <td>{{.Reason}}</td>
      <td>{{.Strike}}</td>
      <td>{{.Underlying}}</td>
      <td>{{.Premium}}</td>
      <td>{{.Qty}}</td>
      <td class="{{.PnLClass}}">{{.PnL}}</td>
    </tr>
    {{end}}
  </tbody>
</table>
{{end}}

<div class="footer">
  Simulation only — fixed IV, frictionless fills, no fees or taxes.
</div>

</body>
</html>`

// buywrite — covered-call overlay backtesting against buy-and-hold.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantfray/buywrite/api"
	"github.com/quantfray/buywrite/internal/backtest"
	"github.com/quantfray/buywrite/internal/config"
	"github.com/quantfray/buywrite/internal/datasource"
	"github.com/quantfray/buywrite/internal/report"
	"github.com/quantfray/buywrite/internal/sweep"
	"github.com/quantfray/buywrite/pkg/models"
	"github.com/quantfray/buywrite/pkg/utils"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config
var cfg *config.Config

// minBars is the shortest series run and sweep accept.
const minBars = 30

// fetchTimeout bounds a remote bar/earnings fetch.
const fetchTimeout = 60 * time.Second

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "buywrite",
	Short: "buywrite — covered-call overlay backtesting",
	Long: `buywrite simulates a covered-call (buy-write) overlay on a stock's daily
price history and compares it against plain buy-and-hold: weekly or monthly
short calls struck at a target delta, with optional premium reinvestment,
earnings avoidance, and delta-triggered rolling.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: search ./config, ~/.buywrite, /etc/buywrite)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(serveCmd)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("buywrite %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Run Command ---

var runCmd = &cobra.Command{
	Use:   "run [ticker|csv-file]",
	Short: "Run a covered-call backtest",
	Long: `Run a single covered-call backtest and print a text summary. The argument
is either a ticker (bars are fetched) or a path to a bars CSV
(date,close,adj_close), for example one produced by buywrite fetch.

Examples:
  buywrite run AAPL
  buywrite run AAPL --delta 0.25 --freq monthly --from 2023-01-02
  buywrite run bars.csv --roll=false --export out/ --html report.html`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params := paramsFromFlags(cmd)

		bars, earnings, name, err := resolveBars(cmd, args[0], params.SkipEarnings)
		if err != nil {
			return err
		}
		if len(bars) < minBars {
			return fmt.Errorf("insufficient data: %d bars (need at least %d)", len(bars), minBars)
		}

		result := backtest.New(params).Run(bars, earnings)

		repCfg := report.DefaultReportConfig()
		repCfg.Ticker = name
		repCfg.RiskFreeRate = params.RiskFreeRate

		text, err := report.GenerateText(result, repCfg)
		if err != nil {
			return err
		}
		fmt.Println(text)

		if dir, _ := cmd.Flags().GetString("export"); dir != "" {
			if err := report.ExportDir(dir, result); err != nil {
				return fmt.Errorf("csv export: %w", err)
			}
			fmt.Printf("📁 CSV export written to %s\n", dir)
		}
		if path, _ := cmd.Flags().GetString("html"); path != "" {
			html, err := report.GenerateHTML(result, repCfg)
			if err != nil {
				return fmt.Errorf("html report: %w", err)
			}
			if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
				return fmt.Errorf("html report: %w", err)
			}
			fmt.Printf("📄 HTML report written to %s\n", path)
		}
		return nil
	},
}

func init() {
	addRangeFlags(runCmd)
	addParamFlags(runCmd)
	runCmd.Flags().String("export", "", "directory for curve/settlement CSV export")
	runCmd.Flags().String("html", "", "write an HTML report to this file")
}

// --- Sweep Command ---

var sweepCmd = &cobra.Command{
	Use:   "sweep [ticker|csv-file]",
	Short: "Compare target deltas side by side",
	Long: `Run one backtest per target delta concurrently over the same bars and
print a comparison table.

Example:
  buywrite sweep AAPL --deltas 0.2,0.3,0.4`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deltas, _ := cmd.Flags().GetFloat64Slice("deltas")
		if len(deltas) == 0 {
			return fmt.Errorf("--deltas is required (e.g. --deltas 0.2,0.3,0.4)")
		}

		params := paramsFromFlags(cmd)
		bars, earnings, name, err := resolveBars(cmd, args[0], params.SkipEarnings)
		if err != nil {
			return err
		}
		if len(bars) < minBars {
			return fmt.Errorf("insufficient data: %d bars (need at least %d)", len(bars), minBars)
		}

		variants := sweep.DeltaVariants(params, deltas)
		outcomes, err := sweep.New(0).Run(cmd.Context(), bars, earnings, variants)
		if err != nil {
			return err
		}

		printSweepTable(name, len(bars), outcomes)
		return nil
	},
}

func init() {
	addRangeFlags(sweepCmd)
	addParamFlags(sweepCmd)
	sweepCmd.Flags().Float64Slice("deltas", nil, "target deltas to compare (comma separated)")
}

// printSweepTable renders the delta comparison, best covered-call return
// marked.
func printSweepTable(name string, barCount int, outcomes []sweep.Outcome) {
	best := 0
	for i, o := range outcomes {
		if o.Result.CCReturn > outcomes[best].Result.CCReturn {
			best = i
		}
	}

	line := strings.Repeat("═", 66)
	fmt.Println(line)
	fmt.Printf("  %s — Delta Sweep (%d bars)\n", name, barCount)
	fmt.Println(line)
	fmt.Printf("  %-7s %12s %12s %10s %8s %7s\n",
		"Delta", "CC Return", "B&H Return", "Win Rate", "Settles", "Rolls")
	fmt.Println(strings.Repeat("─", 66))
	for i, o := range outcomes {
		r := o.Result
		marker := ""
		if i == best && len(outcomes) > 1 {
			marker = "  ◀ best"
		}
		fmt.Printf("  %-7.2f %12s %12s %10s %8d %7d%s\n",
			r.EffectiveTargetDelta,
			utils.FormatPct(r.CCReturn),
			utils.FormatPct(r.BHReturn),
			fmt.Sprintf("%.1f%%", r.CCWinRate*100),
			r.CCSettlementCount,
			len(r.RollEvents),
			marker)
	}
	fmt.Println(line)
}

// --- Fetch Command ---

var fetchCmd = &cobra.Command{
	Use:   "fetch [ticker]",
	Short: "Fetch daily bars as CSV",
	Long: `Fetch daily close prices for a ticker and write them as CSV
(date,close,adj_close) to stdout or, with --out, to a file. The file can be
fed back into run and sweep.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ticker := utils.NormalizeTicker(args[0])
		from, to, err := dateRange(cmd)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), fetchTimeout)
		defer cancel()

		agg := datasource.NewAggregator(cfg.Data.Options())
		bars, err := agg.Yahoo().GetDailyBars(ctx, ticker, from, to)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", ticker, err)
		}

		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			return datasource.WriteBars(os.Stdout, bars)
		}
		if err := datasource.SaveBarsCSV(out, bars); err != nil {
			return err
		}
		fmt.Printf("💾 %d bars written to %s\n", len(bars), out)
		return nil
	},
}

func init() {
	addRangeFlags(fetchCmd)
	fetchCmd.Flags().String("out", "", "write CSV to this file instead of stdout")
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		srv := api.NewServer(cfg)
		srv.SetVersion(version)

		addr := cfg.Server.Addr()
		fmt.Printf("🌐 buywrite API server listening on %s\n", addr)
		return srv.ListenAndServe(addr)
	},
}

// --- Shared helpers ---

// addParamFlags registers the backtest parameter flags shared by run and
// sweep. The defaults shown in --help are the engine baselines; values from
// the config file apply when a flag is not set.
func addParamFlags(cmd *cobra.Command) {
	def := backtest.DefaultParams()
	fs := cmd.Flags()

	fs.Float64("cash", def.InitialCash, "starting cash")
	fs.Int("shares", def.InitialShares, "starting share count")
	fs.Float64("risk-free-rate", def.RiskFreeRate, "annual risk-free rate")
	fs.Float64("dividend-yield", def.DividendYield, "annual dividend yield")
	fs.Float64("delta", def.TargetDelta, "target delta for new calls")
	fs.String("freq", string(def.Frequency), "option cycle frequency (weekly|monthly)")
	fs.Float64("iv", def.IVOverride, "implied volatility override (0 = estimate from history)")
	fs.Bool("reinvest", def.ReinvestPremium, "reinvest collected premium into shares")
	fs.Int("reinvest-threshold", def.ReinvestThreshold, "whole shares accrued before a reinvest buy")
	fs.Bool("round-strikes", def.RoundStrikes, "round strikes to standard increments")
	fs.Bool("skip-earnings", def.SkipEarnings, "skip cycles containing an earnings date")
	fs.Bool("dynamic-qty", def.DynamicQty, "size contracts off current holdings")
	fs.Bool("roll", def.EnableRolling, "roll threatened calls up and out")
	fs.Float64("roll-trigger", def.RollDeltaTrigger, "delta that triggers a roll")
	fs.Int("roll-days", def.RollDaysBeforeExpiry, "days before expiry for scheduled rolls (0 disables)")
	fs.Int("entry-days", def.EntryDaysBeforeCycleEnd, "days before cycle end to sell the next call (-1 follows roll-days)")
}

// addRangeFlags registers the fetch window flags.
func addRangeFlags(cmd *cobra.Command) {
	cmd.Flags().String("from", "", "start date YYYY-MM-DD (default: one year before to)")
	cmd.Flags().String("to", "", "end date YYYY-MM-DD (default: today)")
}

// paramsFromFlags layers explicitly-set CLI flags over the configured
// defaults. Flags left untouched keep the config file's value.
func paramsFromFlags(cmd *cobra.Command) backtest.Params {
	p := cfg.Backtest.Params()
	fs := cmd.Flags()

	if fs.Changed("cash") {
		p.InitialCash, _ = fs.GetFloat64("cash")
	}
	if fs.Changed("shares") {
		p.InitialShares, _ = fs.GetInt("shares")
	}
	if fs.Changed("risk-free-rate") {
		p.RiskFreeRate, _ = fs.GetFloat64("risk-free-rate")
	}
	if fs.Changed("dividend-yield") {
		p.DividendYield, _ = fs.GetFloat64("dividend-yield")
	}
	if fs.Changed("delta") {
		p.TargetDelta, _ = fs.GetFloat64("delta")
	}
	if fs.Changed("freq") {
		s, _ := fs.GetString("freq")
		p.Frequency = backtest.Frequency(s)
	}
	if fs.Changed("iv") {
		p.IVOverride, _ = fs.GetFloat64("iv")
	}
	if fs.Changed("reinvest") {
		p.ReinvestPremium, _ = fs.GetBool("reinvest")
	}
	if fs.Changed("reinvest-threshold") {
		p.ReinvestThreshold, _ = fs.GetInt("reinvest-threshold")
	}
	if fs.Changed("round-strikes") {
		p.RoundStrikes, _ = fs.GetBool("round-strikes")
	}
	if fs.Changed("skip-earnings") {
		p.SkipEarnings, _ = fs.GetBool("skip-earnings")
	}
	if fs.Changed("dynamic-qty") {
		p.DynamicQty, _ = fs.GetBool("dynamic-qty")
	}
	if fs.Changed("roll") {
		p.EnableRolling, _ = fs.GetBool("roll")
	}
	if fs.Changed("roll-trigger") {
		p.RollDeltaTrigger, _ = fs.GetFloat64("roll-trigger")
	}
	if fs.Changed("roll-days") {
		p.RollDaysBeforeExpiry, _ = fs.GetInt("roll-days")
	}
	if fs.Changed("entry-days") {
		p.EntryDaysBeforeCycleEnd, _ = fs.GetInt("entry-days")
	}
	return p
}

// dateRange resolves --from/--to. The end defaults to today, the start to
// one year before the end.
func dateRange(cmd *cobra.Command) (from, to time.Time, err error) {
	to = time.Now().UTC()
	if s, _ := cmd.Flags().GetString("to"); s != "" {
		if to, err = utils.ParseDate(s); err != nil {
			return from, to, fmt.Errorf("invalid to date %q; use YYYY-MM-DD", s)
		}
	}
	from = to.AddDate(-1, 0, 0)
	if s, _ := cmd.Flags().GetString("from"); s != "" {
		if from, err = utils.ParseDate(s); err != nil {
			return from, to, fmt.Errorf("invalid from date %q; use YYYY-MM-DD", s)
		}
	}
	return from, to, nil
}

// resolveBars loads bars from a CSV path or fetches them for a ticker,
// depending on what the argument names. Earnings dates are fetched only for
// tickers; CSV input runs without them.
func resolveBars(cmd *cobra.Command, arg string, wantEarnings bool) ([]models.PriceBar, []time.Time, string, error) {
	if isCSVPath(arg) {
		bars, err := datasource.LoadBarsCSV(arg)
		if err != nil {
			return nil, nil, "", fmt.Errorf("load %s: %w", arg, err)
		}
		name := strings.ToUpper(strings.TrimSuffix(filepath.Base(arg), filepath.Ext(arg)))
		return bars, nil, name, nil
	}

	ticker := utils.NormalizeTicker(arg)
	from, to, err := dateRange(cmd)
	if err != nil {
		return nil, nil, "", err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), fetchTimeout)
	defer cancel()

	data, err := datasource.NewAggregator(cfg.Data.Options()).FetchMarketData(ctx, ticker, from, to, wantEarnings)
	if err != nil {
		return nil, nil, "", fmt.Errorf("fetch %s: %w", ticker, err)
	}
	return data.Bars, data.Earnings, data.Ticker, nil
}

// isCSVPath reports whether the run/sweep argument names a bars file rather
// than a ticker.
func isCSVPath(arg string) bool {
	if strings.EqualFold(filepath.Ext(arg), ".csv") {
		return true
	}
	_, err := os.Stat(arg)
	return err == nil
}

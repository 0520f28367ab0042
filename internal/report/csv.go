package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/quantfray/buywrite/pkg/models"
	"github.com/quantfray/buywrite/pkg/utils"
)

// ════════════════════════════════════════════════════════════════════
// CSV Export
// ════════════════════════════════════════════════════════════════════

// WriteCurveCSV writes the daily curve, one row per trading day.
func WriteCurveCSV(w io.Writer, curve []models.CurvePoint) error {
	cw := csv.NewWriter(w)
	header := []string{"index", "date", "underlying", "bh_value", "cc_value", "strike", "delta", "event_type"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, p := range curve {
		rec := []string{
			strconv.Itoa(p.Day),
			utils.FormatDate(p.Date),
			f64(p.Underlying),
			f64(p.BHValue),
			f64(p.CCValue),
			optF64(p.Strike),
			optF64(p.Delta),
			eventType(p.Event),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSettlementsCSV writes the settlement history, one row per event.
func WriteSettlementsCSV(w io.Writer, events []models.SettlementEvent) error {
	cw := csv.NewWriter(w)
	header := []string{"day", "date", "type", "reason", "strike", "underlying", "premium", "qty", "pnl", "delta", "total_after"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, ev := range events {
		rec := []string{
			strconv.Itoa(ev.Day),
			utils.FormatDate(ev.Date),
			string(ev.Type),
			string(ev.RollReason),
			f64(ev.Strike),
			f64(ev.Underlying),
			f64(ev.Premium),
			strconv.Itoa(ev.Qty),
			f64(ev.PnL),
			f64(ev.Delta),
			f64(ev.TotalValueAfter),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportDir writes curve.csv and settlements.csv into dir, creating it
// if needed.
func ExportDir(dir string, res *models.Result) error {
	if res == nil {
		return fmt.Errorf("result is nil")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	err := writeFileCSV(filepath.Join(dir, "curve.csv"), func(w io.Writer) error {
		return WriteCurveCSV(w, res.Curve)
	})
	if err != nil {
		return err
	}
	return writeFileCSV(filepath.Join(dir, "settlements.csv"), func(w io.Writer) error {
		return WriteSettlementsCSV(w, res.Settlements)
	})
}

func writeFileCSV(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}

func f64(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }

func optF64(v *float64) string {
	if v == nil {
		return ""
	}
	return f64(*v)
}

func eventType(ev *models.SettlementEvent) string {
	if ev == nil {
		return ""
	}
	return string(ev.Type)
}

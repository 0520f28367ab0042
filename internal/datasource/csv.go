package datasource

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/quantfray/buywrite/pkg/models"
	"github.com/quantfray/buywrite/pkg/utils"
)

// barCSVHeader is the first row of a bars CSV file.
var barCSVHeader = []string{"date", "close", "adj_close"}

// LoadBarsCSV reads a daily bar series from a local CSV file.
func LoadBarsCSV(path string) ([]models.PriceBar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bars CSV: %w", err)
	}
	defer f.Close()

	bars, err := ReadBars(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bars, nil
}

// ReadBars parses a bar series from CSV. The header row is optional and
// adj_close may be empty or absent.
func ReadBars(r io.Reader) ([]models.PriceBar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read CSV: %w", err)
	}

	bars := make([]models.PriceBar, 0, len(records))
	for i, rec := range records {
		if i == 0 && isBarHeader(rec) {
			continue
		}
		if len(rec) < 2 {
			return nil, fmt.Errorf("row %d: want date,close[,adj_close], got %d fields", i+1, len(rec))
		}

		date, err := utils.ParseDate(strings.TrimSpace(rec[0]))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		closeVal, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: parse close: %w", i+1, err)
		}

		bar := models.PriceBar{Date: date, Close: closeVal}
		if len(rec) >= 3 {
			if s := strings.TrimSpace(rec[2]); s != "" {
				adj, err := strconv.ParseFloat(s, 64)
				if err != nil {
					return nil, fmt.Errorf("row %d: parse adj_close: %w", i+1, err)
				}
				bar.AdjClose = adj
			}
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func isBarHeader(rec []string) bool {
	return len(rec) > 0 && strings.EqualFold(strings.TrimSpace(rec[0]), "date")
}

// WriteBars writes a bar series as CSV with the standard header.
func WriteBars(w io.Writer, bars []models.PriceBar) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(barCSVHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, b := range bars {
		rec := []string{
			utils.FormatDate(b.Date),
			strconv.FormatFloat(b.Close, 'f', 6, 64),
			strconv.FormatFloat(b.AdjClose, 'f', 6, 64),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveBarsCSV writes a bar series to a file, creating or truncating it.
func SaveBarsCSV(path string, bars []models.PriceBar) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create bars CSV: %w", err)
	}
	if err := WriteBars(f, bars); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

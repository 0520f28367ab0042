package datasource

import (
	"bytes"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/quantfray/buywrite/pkg/models"
	"github.com/quantfray/buywrite/pkg/utils"
)

func TestBarsCSVRoundTrip(t *testing.T) {
	bars := []models.PriceBar{
		{Date: utils.DateUTC(2025, 1, 2), Close: 101.5, AdjClose: 100.25},
		{Date: utils.DateUTC(2025, 1, 3), Close: 99.875, AdjClose: 98.625},
		{Date: utils.DateUTC(2025, 1, 6), Close: 103.123456, AdjClose: 0},
	}

	path := filepath.Join(t.TempDir(), "bars.csv")
	if err := SaveBarsCSV(path, bars); err != nil {
		t.Fatalf("SaveBarsCSV() failed: %v", err)
	}

	got, err := LoadBarsCSV(path)
	if err != nil {
		t.Fatalf("LoadBarsCSV() failed: %v", err)
	}
	if len(got) != len(bars) {
		t.Fatalf("expected %d bars, got %d", len(bars), len(got))
	}
	for i := range bars {
		if !got[i].Date.Equal(bars[i].Date) {
			t.Errorf("bar %d date = %v, want %v", i, got[i].Date, bars[i].Date)
		}
		if math.Abs(got[i].Close-bars[i].Close) > 1e-6 {
			t.Errorf("bar %d close = %f, want %f", i, got[i].Close, bars[i].Close)
		}
		if math.Abs(got[i].AdjClose-bars[i].AdjClose) > 1e-6 {
			t.Errorf("bar %d adj_close = %f, want %f", i, got[i].AdjClose, bars[i].AdjClose)
		}
	}
}

func TestWriteBarsHeader(t *testing.T) {
	var buf bytes.Buffer
	err := WriteBars(&buf, []models.PriceBar{
		{Date: utils.DateUTC(2025, 1, 2), Close: 100},
	})
	if err != nil {
		t.Fatalf("WriteBars() failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines", len(lines))
	}
	if lines[0] != "date,close,adj_close" {
		t.Errorf("header = %q, want date,close,adj_close", lines[0])
	}
	if !strings.HasPrefix(lines[1], "2025-01-02,100.000000,") {
		t.Errorf("row = %q, want 2025-01-02,100.000000,...", lines[1])
	}
}

func TestReadBarsNoHeader(t *testing.T) {
	in := "2025-01-02,100.5\n2025-01-03,101.25\n"
	bars, err := ReadBars(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadBars() failed: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	if bars[0].Close != 100.5 {
		t.Errorf("bars[0].Close = %f, want 100.5", bars[0].Close)
	}
	if bars[0].AdjClose != 0 {
		t.Errorf("bars[0].AdjClose = %f, want 0 when column absent", bars[0].AdjClose)
	}
}

func TestReadBarsEmptyAdjClose(t *testing.T) {
	in := "date,close,adj_close\n2025-01-02,100.5,\n"
	bars, err := ReadBars(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadBars() failed: %v", err)
	}
	if len(bars) != 1 || bars[0].AdjClose != 0 {
		t.Fatalf("expected 1 bar with zero adj_close, got %+v", bars)
	}
}

func TestReadBarsBadClose(t *testing.T) {
	in := "date,close,adj_close\n2025-01-02,100.5,100\n2025-01-03,abc,0\n"
	_, err := ReadBars(strings.NewReader(in))
	if err == nil {
		t.Fatal("expected error for unparseable close")
	}
	if !strings.Contains(err.Error(), "row 3") {
		t.Errorf("error %q should name row 3", err.Error())
	}
}

func TestReadBarsBadDate(t *testing.T) {
	in := "01/02/2025,100.5\n"
	_, err := ReadBars(strings.NewReader(in))
	if err == nil {
		t.Fatal("expected error for unparseable date")
	}
}

func TestLoadBarsCSVMissingFile(t *testing.T) {
	_, err := LoadBarsCSV(filepath.Join(t.TempDir(), "absent.csv"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

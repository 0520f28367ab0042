package datasource

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quantfray/buywrite/pkg/models"
	"github.com/quantfray/buywrite/pkg/utils"
)

// MarketData bundles everything a backtest needs for one ticker.
type MarketData struct {
	Ticker    string            `json:"ticker"`
	Bars      []models.PriceBar `json:"bars"`
	Earnings  []time.Time       `json:"earnings,omitempty"`
	FetchedAt time.Time         `json:"fetched_at"`
}

// Aggregator fetches bars and earnings dates concurrently from the
// individual sources. Bars are required; earnings dates are best-effort
// because a backtest can run without them.
type Aggregator struct {
	yahoo    *Yahoo
	earnings *Earnings
}

// NewAggregator creates an aggregator whose sources share the same options.
func NewAggregator(opts DataOptions) *Aggregator {
	return &Aggregator{
		yahoo:    NewYahoo(opts),
		earnings: NewEarnings(opts),
	}
}

// Yahoo returns the bar source for direct access.
func (a *Aggregator) Yahoo() *Yahoo { return a.yahoo }

// Earnings returns the earnings source for direct access.
func (a *Aggregator) Earnings() *Earnings { return a.earnings }

// FetchMarketData fetches daily bars and, when includeEarnings is set,
// earnings dates for the ticker. A bar fetch failure fails the whole call;
// an earnings failure is logged and leaves Earnings empty.
func (a *Aggregator) FetchMarketData(ctx context.Context, ticker string, from, to time.Time, includeEarnings bool) (*MarketData, error) {
	symbol := utils.NormalizeTicker(ticker)
	data := &MarketData{
		Ticker:    symbol,
		FetchedAt: time.Now().UTC(),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		bars, err := a.yahoo.GetDailyBars(gctx, symbol, from, to)
		if err != nil {
			return err
		}
		data.Bars = bars
		return nil
	})

	if includeEarnings {
		g.Go(func() error {
			dates, err := a.earnings.GetEarningsDates(gctx, symbol)
			if err != nil {
				log.Printf("earnings dates unavailable for %s, continuing without: %v", symbol, err)
				return nil // non-fatal
			}
			data.Earnings = dates
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return data, nil
}

package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/quantfray/buywrite/pkg/models"
	"github.com/quantfray/buywrite/pkg/utils"
)

const defaultYahooBaseURL = "https://query1.finance.yahoo.com"

// Yahoo fetches daily bars from the Yahoo Finance v8 chart API.
type Yahoo struct {
	baseURL string
	ua      string
	cache   *Cache
	limiter *RateLimiter
}

// NewYahoo creates a Yahoo Finance bar source.
func NewYahoo(opts DataOptions) *Yahoo {
	baseURL := opts.YahooBaseURL
	if baseURL == "" {
		baseURL = defaultYahooBaseURL
	}
	return &Yahoo{
		baseURL: baseURL,
		ua:      opts.userAgent(),
		cache:   NewCache(opts.cacheTTL()),
		limiter: NewRateLimiter(opts.ratePerMinute(), time.Minute),
	}
}

// Name returns the data source name.
func (y *Yahoo) Name() string { return "Yahoo Finance" }

// --- Yahoo Finance v8 chart API types ---

type yfChartResponse struct {
	Chart struct {
		Result []yfChartResult `json:"result"`
		Error  *yfError        `json:"error"`
	} `json:"chart"`
}

type yfChartResult struct {
	Timestamp  []int64      `json:"timestamp"`
	Indicators yfIndicators `json:"indicators"`
}

type yfIndicators struct {
	Quote    []yfQuote    `json:"quote"`
	AdjClose []yfAdjClose `json:"adjclose"`
}

type yfQuote struct {
	Close []*float64 `json:"close"`
}

type yfAdjClose struct {
	AdjClose []*float64 `json:"adjclose"`
}

type yfError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// --- Public methods ---

// GetDailyBars returns daily bars from the Yahoo Finance chart API,
// ascending by date. Bars with no close (holidays, halts) are dropped.
func (y *Yahoo) GetDailyBars(ctx context.Context, ticker string, from, to time.Time) ([]models.PriceBar, error) {
	sym := utils.NormalizeTicker(ticker)

	period1, period2 := utils.UnixRange(from, to)
	cacheKey := fmt.Sprintf("bars:%s:%d:%d", sym, period1, period2)
	if cached, ok := y.cache.Get(cacheKey); ok {
		return cached.([]models.PriceBar), nil
	}

	if err := y.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v8/finance/chart/%s?period1=%d&period2=%d&interval=1d",
		y.baseURL, sym, period1, period2)

	body, _, err := doGet(ctx, url, map[string]string{
		"Accept":     "application/json",
		"User-Agent": y.ua,
	})
	if err != nil {
		var httpErr *ErrHTTP
		if errors.As(err, &httpErr) && httpErr.StatusCode == 404 {
			return nil, fmt.Errorf("%w: %s", ErrTickerNotFound, sym)
		}
		return nil, fmt.Errorf("yahoo chart %s: %w", sym, err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var resp yfChartResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse yahoo chart: %w", err)
	}

	if resp.Chart.Error != nil {
		if resp.Chart.Error.Code == "Not Found" {
			return nil, fmt.Errorf("%w: %s", ErrTickerNotFound, sym)
		}
		return nil, fmt.Errorf("yahoo chart error: %s", resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTickerNotFound, sym)
	}

	bars := parseChartBars(resp.Chart.Result[0])
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s %s..%s", ErrNoData,
			sym, utils.FormatDate(from), utils.FormatDate(to))
	}

	y.cache.SetWithTTL(cacheKey, bars, 15*time.Minute)
	return bars, nil
}

// --- Helpers ---

// parseChartBars converts one chart result into bars, dropping entries whose
// close is null and normalizing timestamps to midnight UTC.
func parseChartBars(result yfChartResult) []models.PriceBar {
	if len(result.Indicators.Quote) == 0 {
		return nil
	}

	closes := result.Indicators.Quote[0].Close
	var adjCloses []*float64
	if len(result.Indicators.AdjClose) > 0 {
		adjCloses = result.Indicators.AdjClose[0].AdjClose
	}

	bars := make([]models.PriceBar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		t := time.Unix(ts, 0).UTC()
		bar := models.PriceBar{
			Date:  utils.DateUTC(t.Year(), t.Month(), t.Day()),
			Close: *closes[i],
		}
		if i < len(adjCloses) && adjCloses[i] != nil {
			bar.AdjClose = *adjCloses[i]
		}
		bars = append(bars, bar)
	}
	return bars
}

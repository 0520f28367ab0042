package datasource

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/quantfray/buywrite/pkg/utils"
)

const (
	defaultEarningsURL = "https://finance.yahoo.com/calendar/earnings"
	defaultRSSURL      = "https://feeds.finance.yahoo.com/rss/2.0/headline"
)

// Earnings fetches scheduled earnings report dates. The primary source is an
// earnings calendar page; when the calendar yields nothing, the ticker's
// press-release feed is scanned for report announcements.
type Earnings struct {
	calendarURL string
	rssURL      string
	ua          string
	cache       *Cache
	limiter     *RateLimiter
	parser      *gofeed.Parser
}

// NewEarnings creates an earnings-date source.
func NewEarnings(opts DataOptions) *Earnings {
	calendarURL := opts.EarningsURL
	if calendarURL == "" {
		calendarURL = defaultEarningsURL
	}
	rssURL := opts.RSSURL
	if rssURL == "" {
		rssURL = defaultRSSURL
	}
	return &Earnings{
		calendarURL: calendarURL,
		rssURL:      rssURL,
		ua:          opts.userAgent(),
		cache:       NewCache(opts.cacheTTL()),
		limiter:     NewRateLimiter(opts.ratePerMinute(), time.Minute),
		parser:      gofeed.NewParser(),
	}
}

// Name returns the data source name.
func (e *Earnings) Name() string { return "Earnings Calendar" }

// GetEarningsDates returns known report dates for the ticker, ascending and
// deduplicated. Calendar and feed failures surface only when both paths fail.
func (e *Earnings) GetEarningsDates(ctx context.Context, ticker string) ([]time.Time, error) {
	sym := utils.NormalizeTicker(ticker)

	cacheKey := "earnings:" + sym
	if cached, ok := e.cache.Get(cacheKey); ok {
		return cached.([]time.Time), nil
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	dates, calErr := e.scrapeCalendar(ctx, sym)
	if len(dates) == 0 {
		var feedErr error
		dates, feedErr = e.feedDates(ctx, sym)
		if feedErr != nil {
			if calErr != nil {
				return nil, fmt.Errorf("earnings %s: %w", sym, errors.Join(calErr, feedErr))
			}
			return nil, fmt.Errorf("earnings %s: %w", sym, feedErr)
		}
	}

	dates = dedupeDates(dates)
	e.cache.Set(cacheKey, dates)
	return dates, nil
}

// --- Internal helpers ---

// scrapeCalendar extracts report dates from the earnings calendar table.
func (e *Earnings) scrapeCalendar(ctx context.Context, sym string) ([]time.Time, error) {
	url := fmt.Sprintf("%s?symbol=%s", e.calendarURL, sym)
	body, _, err := doGet(ctx, url, map[string]string{
		"Accept":     "text/html",
		"User-Agent": e.ua,
	})
	if err != nil {
		return nil, fmt.Errorf("earnings calendar %s: %w", sym, err)
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse earnings HTML: %w", err)
	}

	var dates []time.Time
	doc.Find("table tbody tr").Each(func(_ int, row *goquery.Selection) {
		// The first parseable cell is the report date; column position
		// varies across page revisions.
		row.Find("td").EachWithBreak(func(_ int, cell *goquery.Selection) bool {
			if d, ok := parseDateText(cell.Text()); ok {
				dates = append(dates, d)
				return false
			}
			return true
		})
	})
	return dates, nil
}

// feedDates scans the press-release feed for earnings announcements and
// returns their publication dates.
func (e *Earnings) feedDates(ctx context.Context, sym string) ([]time.Time, error) {
	url := fmt.Sprintf("%s?s=%s&region=US&lang=en-US", e.rssURL, sym)
	feed, err := e.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, fmt.Errorf("earnings feed %s: %w", sym, err)
	}

	var dates []time.Time
	for _, item := range feed.Items {
		if item.PublishedParsed == nil {
			continue
		}
		title := strings.ToLower(item.Title)
		if !strings.Contains(title, "earnings") && !strings.Contains(title, "results") {
			continue
		}
		t := item.PublishedParsed.UTC()
		dates = append(dates, utils.DateUTC(t.Year(), t.Month(), t.Day()))
	}
	return dates, nil
}

// earningsDateLayouts are the formats calendar cells have been seen in.
var earningsDateLayouts = []string{
	utils.DateLayout,
	"Jan 2, 2006",
	"January 2, 2006",
}

// parseDateText parses a table cell into a UTC date, tolerating a trailing
// time component ("Jan 28, 2025, 4 PM EST").
func parseDateText(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, ok := tryDateLayouts(s); ok {
		return t, true
	}
	if first := strings.Index(s, ","); first >= 0 {
		if second := strings.Index(s[first+1:], ","); second >= 0 {
			return tryDateLayouts(strings.TrimSpace(s[:first+1+second]))
		}
	}
	return time.Time{}, false
}

func tryDateLayouts(s string) (time.Time, bool) {
	for _, layout := range earningsDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return utils.DateUTC(t.Year(), t.Month(), t.Day()), true
		}
	}
	return time.Time{}, false
}

// dedupeDates sorts ascending and drops repeated days.
func dedupeDates(dates []time.Time) []time.Time {
	if len(dates) == 0 {
		return dates
	}
	seen := make(map[string]struct{}, len(dates))
	out := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		key := utils.FormatDate(d)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

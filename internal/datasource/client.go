// Package datasource fetches historical daily close prices for ticker
// symbols over HTTP. The upstream serves price history as CSV
// (Date,Open,High,Low,Close,Volume); the client normalizes it into a
// time-indexed series, forward-filling small gaps the way a daily-bar
// pipeline expects.
package datasource

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"marketsignal/internal/timeseries"
)

// ErrNoData reports that the upstream returned no usable price rows for the
// requested ticker and date range.
var ErrNoData = errors.New("no price data for requested ticker and range")

const dateLayout = "2006-01-02"

// Options configures a price history client.
type Options struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// Client fetches daily close prices. It is safe for concurrent use; a shared
// rate limiter keeps the upstream happy when many tickers are fetched at once.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

func NewClient(opts Options, logger *slog.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://stooq.com"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 5
	}
	if opts.Burst <= 0 {
		opts.Burst = 2
	}
	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		limiter:    rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
		logger:     logger.With(slog.String("component", "datasource")),
	}
}

// DailyCloses fetches the daily close-price history for one ticker. Zero
// start/end times leave the range open on that side.
func (c *Client) DailyCloses(ctx context.Context, ticker string, start, end time.Time) (*timeseries.Series, error) {
	if strings.TrimSpace(ticker) == "" {
		return nil, fmt.Errorf("ticker must be a non-empty string")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqURL := c.historyURL(ticker, start, end)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", ticker, err)
	}

	c.logger.DebugContext(ctx, "fetching price history",
		slog.String("ticker", ticker),
		slog.String("url", reqURL),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", ticker, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: upstream returned status %d", ticker, resp.StatusCode)
	}

	series, err := parseHistoryCSV(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse history for %s: %w", ticker, err)
	}
	if series.Len() == 0 {
		return nil, fmt.Errorf("%s %s..%s: %w", ticker, formatDate(start), formatDate(end), ErrNoData)
	}
	return series, nil
}

// historyURL builds the CSV download URL. Bare US tickers get the ".us"
// suffix the upstream expects.
func (c *Client) historyURL(ticker string, start, end time.Time) string {
	symbol := strings.ToLower(strings.TrimSpace(ticker))
	if !strings.Contains(symbol, ".") {
		symbol += ".us"
	}

	q := url.Values{}
	q.Set("s", symbol)
	q.Set("i", "d")
	if !start.IsZero() {
		q.Set("d1", start.Format("20060102"))
	}
	if !end.IsZero() {
		q.Set("d2", end.Format("20060102"))
	}
	return c.baseURL + "/q/d/l/?" + q.Encode()
}

// parseHistoryCSV reads Date,Open,High,Low,Close,Volume rows into a close
// series. Rows with an unparseable or non-finite close reuse the previous
// close when one exists and are dropped otherwise.
func parseHistoryCSV(r io.Reader) (*timeseries.Series, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	closeCol := -1
	dateCol := -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "close":
			closeCol = i
		case "date":
			dateCol = i
		}
	}
	if dateCol < 0 || closeCol < 0 {
		return nil, fmt.Errorf("expected Date and Close columns, got %v", header)
	}

	var (
		times  []time.Time
		values []float64
		last   float64
		seen   bool
		row    int
	)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", row+2, err)
		}
		row++

		if len(record) <= closeCol || len(record) <= dateCol {
			continue
		}

		when, err := time.Parse(dateLayout, strings.TrimSpace(record[dateCol]))
		if err != nil {
			return nil, fmt.Errorf("parse date at row %d (%q): %w", row+1, record[dateCol], err)
		}

		v, err := strconv.ParseFloat(strings.TrimSpace(record[closeCol]), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			if !seen {
				continue
			}
			v = last // forward-fill; safe for daily bars
		}
		last, seen = v, true

		times = append(times, when)
		values = append(values, v)
	}

	return timeseries.New(times, values)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "open"
	}
	return t.Format(dateLayout)
}

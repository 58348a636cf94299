// Command analyzer runs batch causality analysis: each candidate ticker is
// tested for lead-lag power over the target symbol, and the per-lag p-value
// curves are printed and optionally exported to CSV.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"marketsignal/internal/config"
	"marketsignal/internal/datasource"
	"marketsignal/internal/granger"
	"marketsignal/internal/infrastructure"
	"marketsignal/internal/services"
)

const dateLayout = "2006-01-02"

type tickerReport struct {
	Ticker string
	Report *granger.Report
	Err    error
}

func main() {
	var (
		tickersFlag = flag.String("tickers", "AAPL,GOOGL,MSFT,META", "comma-separated candidate tickers")
		target      = flag.String("target", "SPY", "target (response) ticker")
		startFlag   = flag.String("start", "", "start date YYYY-MM-DD (optional)")
		endFlag     = flag.String("end", "", "end date YYYY-MM-DD (optional)")
		maxLag      = flag.Int("maxlag", 0, "maximum lag to test (0 uses the configured default)")
		alpha       = flag.Float64("alpha", 0.05, "significance threshold for the summary column")
		outPath     = flag.String("out", "", "optional CSV output path")
		bootstrap   = flag.Int("bootstrap", 0, "bootstrap replications for the best lag (0 disables)")
	)
	flag.Parse()

	if err := run(*tickersFlag, *target, *startFlag, *endFlag, *maxLag, *alpha, *outPath, *bootstrap); err != nil {
		fmt.Fprintln(os.Stderr, "analyzer error:", err)
		os.Exit(1)
	}
}

func run(tickersFlag, target, startFlag, endFlag string, maxLag int, alpha float64, outPath string, bootstrap int) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := infrastructure.NewLogger(cfg.Logging)

	start, end, err := parseRange(startFlag, endFlag)
	if err != nil {
		return err
	}

	tickers := splitTickers(tickersFlag)
	if len(tickers) == 0 {
		return fmt.Errorf("no candidate tickers given")
	}
	if maxLag == 0 {
		maxLag = cfg.Analysis.DefaultMaxLag
	}

	source := datasource.NewClient(datasource.Options{
		BaseURL:           cfg.DataSource.BaseURL,
		Timeout:           cfg.DataSource.Timeout,
		RequestsPerSecond: cfg.DataSource.RequestsPerSecond,
		Burst:             cfg.DataSource.Burst,
	}, logger)
	service := services.NewCausalityService(source, logger, cfg.Analysis)

	ctx := context.Background()
	reports := make([]tickerReport, 0, len(tickers))
	for _, ticker := range tickers {
		fmt.Printf("\nTesting %s -> %s (max lag %d)\n", ticker, target, maxLag)
		report, err := service.AnalyzeTickers(ctx, ticker, target, start, end, maxLag)
		reports = append(reports, tickerReport{Ticker: ticker, Report: report, Err: err})
		if err != nil {
			fmt.Printf("  analysis failed: %v\n", err)
			continue
		}
		printReport(ticker, target, report, alpha)

		if bootstrap > 0 {
			if err := printBootstrap(ctx, source, ticker, target, start, end, report.BestLag, bootstrap, alpha); err != nil {
				fmt.Printf("  bootstrap failed: %v\n", err)
			}
		}
	}

	if outPath != "" {
		if err := writeCSV(outPath, target, reports, alpha); err != nil {
			return fmt.Errorf("write %s: %w", outPath, err)
		}
		fmt.Printf("\nResults written to %s\n", outPath)
	}
	return nil
}

// printReport prints one ticker's per-lag curve and summary line.
func printReport(ticker, target string, report *granger.Report, alpha float64) {
	fmt.Printf("  %-6s | %-10s\n", "Lag", "P-Value")
	fmt.Println("  --------------------")
	for _, lag := range sortedLags(report) {
		marker := ""
		if lag == report.BestLag {
			marker = "  <- best"
		}
		fmt.Printf("  %-6d | %-10.6f%s\n", lag, report.PValuesByLag[lag], marker)
	}

	conclusion := "no significant lead"
	if report.MinP < alpha {
		conclusion = fmt.Sprintf("%s LEADS %s", ticker, target)
	}
	fmt.Printf("  best lag %d, min p %.6f: %s\n", report.BestLag, report.MinP, conclusion)
}

// printBootstrap re-checks the best lag with a residual bootstrap.
func printBootstrap(ctx context.Context, source services.PriceSource, ticker, target string, start, end time.Time, lag, replications int, alpha float64) error {
	seriesX, err := source.DailyCloses(ctx, ticker, start, end)
	if err != nil {
		return err
	}
	seriesY, err := source.DailyCloses(ctx, target, start, end)
	if err != nil {
		return err
	}
	pair, err := granger.Align(seriesX, seriesY, lag)
	if err != nil {
		return err
	}

	res, err := granger.BootstrapTest(ctx, pair, lag, granger.BootstrapOptions{
		Replications: replications,
		Alpha:        alpha,
	})
	if err != nil {
		return err
	}
	fmt.Printf("  bootstrap (N=%d): p %.6f, critical F %.4f, significant: %t\n",
		replications, res.BootPValue, res.CriticalF, res.Significant)
	return nil
}

// writeCSV exports all per-lag results in long format.
// Columns: Cause, Effect, Lag, PValue, BestLag, MinP, Significant.
func writeCSV(path, target string, reports []tickerReport, alpha float64) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"Cause", "Effect", "Lag", "PValue", "BestLag", "MinP", "Significant"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, tr := range reports {
		if tr.Err != nil {
			continue
		}
		for _, lag := range sortedLags(tr.Report) {
			record := []string{
				tr.Ticker,
				target,
				fmt.Sprintf("%d", lag),
				fmt.Sprintf("%f", tr.Report.PValuesByLag[lag]),
				fmt.Sprintf("%d", tr.Report.BestLag),
				fmt.Sprintf("%f", tr.Report.MinP),
				fmt.Sprintf("%t", tr.Report.MinP < alpha),
			}
			if err := writer.Write(record); err != nil {
				return err
			}
		}
	}
	return nil
}

func sortedLags(report *granger.Report) []int {
	lags := make([]int, 0, len(report.PValuesByLag))
	for lag := range report.PValuesByLag {
		lags = append(lags, lag)
	}
	sort.Ints(lags)
	return lags
}

func splitTickers(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func parseRange(startFlag, endFlag string) (start, end time.Time, err error) {
	if startFlag != "" {
		if start, err = time.Parse(dateLayout, startFlag); err != nil {
			return start, end, fmt.Errorf("parse -start: %w", err)
		}
	}
	if endFlag != "" {
		if end, err = time.Parse(dateLayout, endFlag); err != nil {
			return start, end, fmt.Errorf("parse -end: %w", err)
		}
	}
	return start, end, nil
}

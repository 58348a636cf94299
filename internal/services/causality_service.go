// Package services orchestrates price retrieval and causality analysis.
package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"marketsignal/internal/config"
	"marketsignal/internal/granger"
	"marketsignal/internal/timeseries"
)

// PriceSource supplies daily close-price history for a ticker symbol.
type PriceSource interface {
	DailyCloses(ctx context.Context, ticker string, start, end time.Time) (*timeseries.Series, error)
}

// CausalityService wires the data source to the causality engine.
type CausalityService struct {
	source   PriceSource
	logger   *slog.Logger
	defaults config.AnalysisConfig
}

func NewCausalityService(source PriceSource, logger *slog.Logger, defaults config.AnalysisConfig) *CausalityService {
	return &CausalityService{
		source:   source,
		logger:   logger.With(slog.String("component", "causality_service")),
		defaults: defaults,
	}
}

// MaxLagOrDefault resolves a request's max lag against the configured default.
func (s *CausalityService) MaxLagOrDefault(maxLag int) int {
	if maxLag == 0 {
		return s.defaults.DefaultMaxLag
	}
	return maxLag
}

// AlphaOrDefault resolves a request's alpha against the configured default.
func (s *CausalityService) AlphaOrDefault(alpha float64) float64 {
	if alpha == 0 {
		return s.defaults.Alpha
	}
	return alpha
}

// AnalyzeSeries runs the causality test directly on two numeric arrays,
// paired positionally.
func (s *CausalityService) AnalyzeSeries(ctx context.Context, x, y []float64, maxLag int) (*granger.Report, error) {
	pair, err := granger.Pair(x, y, maxLag)
	if err != nil {
		return nil, err
	}
	return granger.Test(ctx, pair, maxLag)
}

// AnalyzeTickers fetches two tickers, aligns them on their shared trading
// days, and tests whether tickerX leads tickerY.
func (s *CausalityService) AnalyzeTickers(ctx context.Context, tickerX, tickerY string, start, end time.Time, maxLag int) (*granger.Report, error) {
	analysisID := uuid.NewString()
	logger := s.logger.With(
		slog.String("analysis_id", analysisID),
		slog.String("ticker_x", tickerX),
		slog.String("ticker_y", tickerY),
		slog.Int("max_lag", maxLag),
	)
	began := time.Now()

	var seriesX, seriesY *timeseries.Series
	g, fetchCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		seriesX, err = s.source.DailyCloses(fetchCtx, tickerX, start, end)
		return err
	})
	g.Go(func() error {
		var err error
		seriesY, err = s.source.DailyCloses(fetchCtx, tickerY, start, end)
		return err
	})
	if err := g.Wait(); err != nil {
		logger.ErrorContext(ctx, "price fetch failed", slog.String("error", err.Error()))
		return nil, err
	}

	pair, err := granger.Align(seriesX, seriesY, maxLag)
	if err != nil {
		logger.WarnContext(ctx, "alignment failed", slog.String("error", err.Error()))
		return nil, err
	}

	report, err := granger.Test(ctx, pair, maxLag)
	if err != nil {
		logger.WarnContext(ctx, "causality test failed", slog.String("error", err.Error()))
		return nil, err
	}

	logger.InfoContext(ctx, "causality analysis complete",
		slog.Int("aligned_observations", pair.Len()),
		slog.Int("best_lag", report.BestLag),
		slog.Float64("min_p", report.MinP),
		slog.Duration("elapsed", time.Since(began)),
	)
	return report, nil
}

// AnalyzeMatrix fetches every ticker and scans all ordered pairs for
// lead-lag evidence on their return series.
func (s *CausalityService) AnalyzeMatrix(ctx context.Context, tickers []string, start, end time.Time, maxLag int, alpha float64) (*granger.MatrixReport, error) {
	if len(tickers) < 2 {
		return nil, &granger.InvalidParameterError{Name: "tickers", Reason: "need at least 2 tickers"}
	}

	analysisID := uuid.NewString()
	logger := s.logger.With(
		slog.String("analysis_id", analysisID),
		slog.Int("tickers", len(tickers)),
		slog.Int("max_lag", maxLag),
	)
	began := time.Now()

	prices := make(map[string]*timeseries.Series, len(tickers))
	results := make([]*timeseries.Series, len(tickers))
	g, fetchCtx := errgroup.WithContext(ctx)
	for i, ticker := range tickers {
		i, ticker := i, ticker
		g.Go(func() error {
			series, err := s.source.DailyCloses(fetchCtx, ticker, start, end)
			if err != nil {
				return err
			}
			results[i] = series
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.ErrorContext(ctx, "price fetch failed", slog.String("error", err.Error()))
		return nil, err
	}
	for i, ticker := range tickers {
		prices[ticker] = results[i]
	}

	report, err := granger.TestMatrix(ctx, tickers, prices, maxLag, alpha)
	if err != nil {
		logger.WarnContext(ctx, "matrix scan failed", slog.String("error", err.Error()))
		return nil, err
	}

	logger.InfoContext(ctx, "matrix scan complete",
		slog.Duration("elapsed", time.Since(began)),
	)
	return report, nil
}

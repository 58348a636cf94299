package http

import (
	"context"
	"time"

	"marketsignal/internal/granger"
)

// CausalityServiceInterface is the contract the handlers need from the
// causality service.
type CausalityServiceInterface interface {
	AnalyzeSeries(ctx context.Context, x, y []float64, maxLag int) (*granger.Report, error)
	AnalyzeTickers(ctx context.Context, tickerX, tickerY string, start, end time.Time, maxLag int) (*granger.Report, error)
	AnalyzeMatrix(ctx context.Context, tickers []string, start, end time.Time, maxLag int, alpha float64) (*granger.MatrixReport, error)
	MaxLagOrDefault(maxLag int) int
	AlphaOrDefault(alpha float64) float64
}

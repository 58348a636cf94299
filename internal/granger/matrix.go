package granger

import (
	"context"

	"golang.org/x/sync/errgroup"

	"marketsignal/internal/timeseries"
)

// MatrixReport holds pairwise causality evidence across N tickers.
// PValues[i][j] is the minimum p-value across lags for "j leads i";
// the diagonal is 1.0. Significant masks cells with p < Alpha, with a
// false diagonal.
type MatrixReport struct {
	Tickers     []string    `json:"tickers"`
	MaxLag      int         `json:"max_lag"`
	Alpha       float64     `json:"alpha"`
	PValues     [][]float64 `json:"p_values"`
	Significant [][]bool    `json:"significant"`
}

// TestMatrix scans every ordered ticker pair for lead-lag evidence. Prices
// are converted to simple returns before testing to stabilize the series.
//
// Unlike the pairwise Test, a cell whose pair cannot be aligned or tested
// contributes p = 1.0 instead of failing the scan; a heatmap over many pairs
// should degrade per cell rather than atomically.
func TestMatrix(ctx context.Context, tickers []string, prices map[string]*timeseries.Series, maxLag int, alpha float64) (*MatrixReport, error) {
	if maxLag < 1 {
		return nil, &InvalidParameterError{Name: "max_lag", Reason: "must be >= 1"}
	}
	if alpha <= 0 || alpha >= 1 {
		return nil, &InvalidParameterError{Name: "alpha", Reason: "must be in (0, 1)"}
	}
	if len(tickers) < 2 {
		return nil, &InvalidParameterError{Name: "tickers", Reason: "need at least 2 tickers"}
	}
	for _, t := range tickers {
		if prices[t] == nil {
			return nil, &InvalidParameterError{Name: "tickers", Reason: "missing price series for " + t}
		}
	}

	returns := make(map[string]*timeseries.Series, len(tickers))
	for _, t := range tickers {
		returns[t] = prices[t].Returns()
	}

	n := len(tickers)
	report := &MatrixReport{
		Tickers:     append([]string(nil), tickers...),
		MaxLag:      maxLag,
		Alpha:       alpha,
		PValues:     make([][]float64, n),
		Significant: make([][]bool, n),
	}
	for i := 0; i < n; i++ {
		report.PValues[i] = make([]float64, n)
		report.Significant[i] = make([]bool, n)
		for j := 0; j < n; j++ {
			report.PValues[i][j] = 1.0
		}
	}

	// Cells are independent; each goroutine writes a distinct (i, j).
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			target, cause := tickers[i], tickers[j]
			row, col := i, j
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				pair, err := Align(returns[cause], returns[target], maxLag)
				if err != nil {
					return nil // cell stays at 1.0
				}
				rep, err := Test(ctx, pair, maxLag)
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					return nil
				}
				report.PValues[row][col] = rep.MinP
				report.Significant[row][col] = rep.MinP < alpha
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return report, nil
}

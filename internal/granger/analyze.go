// Package granger tests whether one time series has statistically
// significant predictive power over another across a range of candidate
// lags. The test compares restricted (own history only) and unrestricted
// (own plus candidate history) regressions per lag via an F-test.
package granger

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Report is the terminal artifact of a pairwise analysis: the full per-lag
// p-value curve plus the lag with the strongest evidence.
type Report struct {
	PValuesByLag map[int]float64 `json:"p_values_by_lag"`
	BestLag      int             `json:"best_lag"`
	MinP         float64         `json:"min_p"`
}

// Test runs the causality test for every lag 1..maxLag and aggregates the
// results. Lags are tested concurrently; they are independent and each works
// on its own designs. A failure at any lag fails the whole analysis, since a
// single unusable lag indicates the analysis window is unreliable. The
// context is honored at the per-lag boundary.
func Test(ctx context.Context, pair *AlignedPair, maxLag int) (*Report, error) {
	if maxLag < 1 {
		return nil, &InvalidParameterError{Name: "max_lag", Reason: "must be >= 1"}
	}
	if pair == nil || pair.Len() == 0 {
		return nil, &InvalidParameterError{Name: "pair", Reason: "aligned pair is empty"}
	}
	if need := MinObservations(maxLag); pair.Len() < need {
		return nil, &InsufficientDataError{Required: need, Available: pair.Len()}
	}

	results := make([]LagResult, maxLag)

	g, ctx := errgroup.WithContext(ctx)
	for lag := 1; lag <= maxLag; lag++ {
		lag := lag
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := TestLag(pair, lag)
			if err != nil {
				return err
			}
			results[lag-1] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{
		PValuesByLag: make(map[int]float64, maxLag),
		BestLag:      1,
		MinP:         results[0].PValue,
	}
	for _, res := range results {
		report.PValuesByLag[res.Lag] = res.PValue
		// Strict inequality keeps ties on the smallest lag.
		if res.PValue < report.MinP {
			report.MinP = res.PValue
			report.BestLag = res.Lag
		}
	}
	return report, nil
}

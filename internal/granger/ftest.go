package granger

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// LagResult is the outcome of testing one lag order: the F statistic from
// comparing the restricted and unrestricted fits and its upper-tail p-value.
type LagResult struct {
	Lag        int     `json:"lag"`
	FStatistic float64 `json:"f_statistic"`
	PValue     float64 `json:"p_value"`
}

// TestLag runs the Granger F-test for a single lag order: does x's history
// improve the prediction of y beyond y's own history? It retains no state and
// is safe to call concurrently for different lags.
func TestLag(pair *AlignedPair, lag int) (LagResult, error) {
	restricted, unrestricted, err := buildDesigns(pair, lag)
	if err != nil {
		return LagResult{}, err
	}

	fitR, err := fitOLS(restricted)
	if err != nil {
		return LagResult{}, err
	}
	fitU, err := fitOLS(unrestricted)
	if err != nil {
		return LagResult{}, err
	}

	// The numerator degrees of freedom equal the number of added x-lag
	// predictors, i.e. the lag order itself.
	dfNum := float64(fitU.Predictors - fitR.Predictors)
	dfDen := float64(fitU.Observations - fitU.Predictors)

	if dfDen <= 0 {
		return LagResult{}, &DegenerateSeriesError{
			Reason: "no residual degrees of freedom in the unrestricted model",
		}
	}
	if fitU.RSS <= 0 {
		return LagResult{}, &DegenerateSeriesError{
			Reason: "unrestricted model has zero residual variance",
		}
	}

	// In theory RSS_restricted >= RSS_unrestricted, but floating point can
	// produce a tiny negative difference.
	num := fitR.RSS - fitU.RSS
	if num < 0 {
		num = 0
	}

	f := 0.0
	p := 1.0
	if num > 0 {
		f = (num / dfNum) / (fitU.RSS / dfDen)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			f = 0
		} else {
			fDist := distuv.F{D1: dfNum, D2: dfDen}
			p = fDist.Survival(f)
		}
	}

	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}

	return LagResult{Lag: lag, FStatistic: f, PValue: p}, nil
}

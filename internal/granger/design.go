package granger

import "gonum.org/v1/gonum/mat"

// design pairs a predictor matrix with its response vector. Built fresh per
// lag and discarded after the fit.
type design struct {
	X *mat.Dense
	y *mat.VecDense
}

// buildDesigns constructs the restricted and unrestricted regression designs
// for one lag order. For each usable row t = lag..n-1 the response is y[t];
// the restricted predictors are an intercept plus y[t-1..t-lag], and the
// unrestricted predictors additionally carry x[t-1..t-lag].
func buildDesigns(pair *AlignedPair, lag int) (restricted, unrestricted design, err error) {
	n := pair.Len()

	// The aligner guarantees this, but a violated invariant here would
	// otherwise surface as an opaque dimension panic inside gonum.
	if need := MinObservations(lag); n < need {
		return design{}, design{}, &InsufficientDataError{Required: need, Available: n}
	}

	rows := n - lag
	mRestricted := 1 + lag
	mUnrestricted := 1 + 2*lag

	XR := mat.NewDense(rows, mRestricted, nil)
	XU := mat.NewDense(rows, mUnrestricted, nil)
	resp := mat.NewVecDense(rows, nil)

	for t := lag; t < n; t++ {
		row := t - lag
		resp.SetVec(row, pair.Y[t])

		XR.Set(row, 0, 1.0)
		XU.Set(row, 0, 1.0)

		// Own-history lag block, shared by both designs.
		for j := 1; j <= lag; j++ {
			XR.Set(row, j, pair.Y[t-j])
			XU.Set(row, j, pair.Y[t-j])
		}
		// Candidate-predictor lag block, unrestricted only.
		for j := 1; j <= lag; j++ {
			XU.Set(row, lag+j, pair.X[t-j])
		}
	}

	restricted = design{X: XR, y: resp}
	unrestricted = design{X: XU, y: resp}
	return restricted, unrestricted, nil
}

package granger

import "gonum.org/v1/gonum/mat"

// rankTolerance is the relative singular-value cutoff used when deciding the
// numerical rank of a design matrix.
const rankTolerance = 1e-12

// FitResult reports an ordinary least-squares fit: residual sum of squares
// plus the dimensions that determine the degrees of freedom.
type FitResult struct {
	RSS          float64
	Predictors   int
	Observations int
}

// solveLS computes the least-squares coefficients for d via SVD. Explicit
// normal-equation inversion would amplify conditioning problems from
// near-collinear lagged columns, so the decomposition is the only path.
func solveLS(d design) (*mat.VecDense, error) {
	rows, cols := d.X.Dims()

	var svd mat.SVD
	if ok := svd.Factorize(d.X, mat.SVDFullU|mat.SVDFullV); !ok {
		return nil, &SingularDesignError{Rank: 0, Cols: cols}
	}

	rank := svd.Rank(rankTolerance)
	if rank < cols {
		return nil, &SingularDesignError{Rank: rank, Cols: cols}
	}

	yMat := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		yMat.Set(i, 0, d.y.AtVec(i))
	}

	var b mat.Dense
	svd.SolveTo(&b, yMat, rank)

	beta := mat.NewVecDense(cols, nil)
	for i := 0; i < cols; i++ {
		beta.SetVec(i, b.At(i, 0))
	}
	return beta, nil
}

// fitOLS fits d and reports the residual sum of squares together with the
// predictor and observation counts.
func fitOLS(d design) (FitResult, error) {
	rows, cols := d.X.Dims()

	beta, err := solveLS(d)
	if err != nil {
		return FitResult{}, err
	}

	var fitted mat.VecDense
	fitted.MulVec(d.X, beta)

	var resid mat.VecDense
	resid.SubVec(d.y, &fitted)

	return FitResult{
		RSS:          mat.Dot(&resid, &resid),
		Predictors:   cols,
		Observations: rows,
	}, nil
}

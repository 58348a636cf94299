package granger

import "fmt"

// InvalidParameterError reports a malformed caller-supplied parameter, e.g.
// a non-positive max lag or empty input series.
type InvalidParameterError struct {
	Name   string
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %s", e.Name, e.Reason)
}

// InsufficientDataError reports too few aligned observations for the
// requested analysis depth.
type InsufficientDataError struct {
	Required  int
	Available int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf(
		"insufficient aligned data: need at least %d observations, have %d",
		e.Required, e.Available,
	)
}

// DegenerateSeriesError reports an input that cannot support a meaningful
// regression, such as a constant series or a model with no residual
// degrees of freedom. Series names the offending input ("x" or "y") when
// one can be singled out.
type DegenerateSeriesError struct {
	Series string
	Reason string
}

func (e *DegenerateSeriesError) Error() string {
	if e.Series == "" {
		return fmt.Sprintf("degenerate series: %s", e.Reason)
	}
	return fmt.Sprintf("degenerate series %s: %s", e.Series, e.Reason)
}

// SingularDesignError reports a rank-deficient design matrix, typically
// caused by duplicated or near-collinear lagged columns.
type SingularDesignError struct {
	Rank int
	Cols int
}

func (e *SingularDesignError) Error() string {
	return fmt.Sprintf(
		"singular design matrix: numerical rank %d of %d columns",
		e.Rank, e.Cols,
	)
}

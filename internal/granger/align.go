package granger

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"marketsignal/internal/timeseries"
)

// AlignedPair holds two equal-length series on a shared ascending time index
// with all incomplete observations removed. It is immutable once built and is
// owned by the analysis that requested it.
type AlignedPair struct {
	X []float64
	Y []float64
}

func (p *AlignedPair) Len() int { return len(p.Y) }

// MinObservations is the smallest aligned length that keeps both the
// restricted and unrestricted regressions solvable and the F-test
// denominator degrees of freedom positive at every lag up to maxLag.
func MinObservations(maxLag int) int { return 2*maxLag + 2 }

// Align inner-joins two raw series on their time index, drops rows where
// either value is missing or non-finite, and validates the result for an
// analysis of depth maxLag.
func Align(x, y *timeseries.Series, maxLag int) (*AlignedPair, error) {
	if maxLag < 1 {
		return nil, &InvalidParameterError{Name: "max_lag", Reason: "must be >= 1"}
	}
	if x == nil || x.Len() == 0 {
		return nil, &InvalidParameterError{Name: "x", Reason: "series is empty"}
	}
	if y == nil || y.Len() == 0 {
		return nil, &InvalidParameterError{Name: "y", Reason: "series is empty"}
	}

	// Index x by timestamp, then walk y picking the shared timestamps.
	// Later duplicates within x overwrite earlier ones, matching an
	// inner join that keeps one row per timestamp.
	xByTime := make(map[int64]float64, x.Len())
	for i, t := range x.Times {
		xByTime[t.UnixNano()] = x.Values[i]
	}

	type row struct {
		when int64
		x, y float64
	}
	rows := make([]row, 0, y.Len())
	for i, t := range y.Times {
		key := t.UnixNano()
		xv, ok := xByTime[key]
		if !ok {
			continue
		}
		rows = append(rows, row{when: key, x: xv, y: y.Values[i]})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].when < rows[j].when })

	xs := make([]float64, 0, len(rows))
	ys := make([]float64, 0, len(rows))
	var prev int64
	for i, r := range rows {
		if i > 0 && r.when == prev {
			continue
		}
		prev = r.when
		if !isFinite(r.x) || !isFinite(r.y) {
			continue
		}
		xs = append(xs, r.x)
		ys = append(ys, r.y)
	}

	return newPair(xs, ys, maxLag)
}

// Pair builds an AlignedPair from two already-ordered numeric slices, pairing
// observations positionally and truncating to the shorter length. It applies
// the same cleaning and validation as Align.
func Pair(x, y []float64, maxLag int) (*AlignedPair, error) {
	if maxLag < 1 {
		return nil, &InvalidParameterError{Name: "max_lag", Reason: "must be >= 1"}
	}
	if len(x) == 0 {
		return nil, &InvalidParameterError{Name: "x", Reason: "series is empty"}
	}
	if len(y) == 0 {
		return nil, &InvalidParameterError{Name: "y", Reason: "series is empty"}
	}

	n := len(x)
	if len(y) < n {
		n = len(y)
	}

	xs := make([]float64, 0, n)
	ys := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if !isFinite(x[i]) || !isFinite(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}

	return newPair(xs, ys, maxLag)
}

func newPair(xs, ys []float64, maxLag int) (*AlignedPair, error) {
	need := MinObservations(maxLag)
	if len(ys) < need {
		return nil, &InsufficientDataError{Required: need, Available: len(ys)}
	}

	if stat.Variance(xs, nil) == 0 {
		return nil, &DegenerateSeriesError{Series: "x", Reason: "series has zero variance"}
	}
	if stat.Variance(ys, nil) == 0 {
		return nil, &DegenerateSeriesError{Series: "y", Reason: "series has zero variance"}
	}

	return &AlignedPair{X: xs, Y: ys}, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

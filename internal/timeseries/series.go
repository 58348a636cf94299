// Package timeseries holds the time-indexed numeric series type shared by the
// data source and the causality engine.
package timeseries

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

var ErrLengthMismatch = errors.New("time index has a different length than values")

// Series is an ordered sequence of observations keyed by timestamp.
type Series struct {
	Times  []time.Time
	Values []float64
}

// New builds a Series from parallel time and value slices. The observations
// are sorted by ascending timestamp.
func New(times []time.Time, values []float64) (*Series, error) {
	if len(times) != len(values) {
		return nil, fmt.Errorf(
			"time index has length %d, but values has length %d: %w",
			len(times), len(values), ErrLengthMismatch,
		)
	}

	s := &Series{
		Times:  append([]time.Time(nil), times...),
		Values: append([]float64(nil), values...),
	}
	sort.Sort(byTime{s})
	return s, nil
}

func (s *Series) Len() int { return len(s.Values) }

// Returns converts a price series into simple returns: r[t] = v[t]/v[t-1] - 1.
// The first observation is dropped. A zero previous value yields a non-finite
// return, which the aligner later discards.
func (s *Series) Returns() *Series {
	if s.Len() < 2 {
		return &Series{}
	}

	times := make([]time.Time, s.Len()-1)
	values := make([]float64, s.Len()-1)
	for i := 1; i < s.Len(); i++ {
		times[i-1] = s.Times[i]
		prev := s.Values[i-1]
		if prev == 0 {
			values[i-1] = math.NaN()
			continue
		}
		values[i-1] = s.Values[i]/prev - 1
	}
	return &Series{Times: times, Values: values}
}

type byTime struct{ s *Series }

func (b byTime) Len() int           { return b.s.Len() }
func (b byTime) Less(i, j int) bool { return b.s.Times[i].Before(b.s.Times[j]) }
func (b byTime) Swap(i, j int) {
	b.s.Times[i], b.s.Times[j] = b.s.Times[j], b.s.Times[i]
	b.s.Values[i], b.s.Values[j] = b.s.Values[j], b.s.Values[i]
}

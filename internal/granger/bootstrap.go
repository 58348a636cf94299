package granger

import (
	"context"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"
)

// BootstrapOptions configures a residual-bootstrap causality test.
type BootstrapOptions struct {
	// Number of bootstrap replications (e.g. 500-2000).
	Replications int
	// Significance level alpha (e.g. 0.05).
	Alpha float64
	// RNG seed; 0 uses a time-based seed.
	Seed int64
}

// BootstrapResult pairs the analytic lag test with a bootstrap p-value
// obtained by simulating the no-causality null model.
type BootstrapResult struct {
	Base        LagResult `json:"base"`
	BootPValue  float64   `json:"boot_p_value"`
	Alpha       float64   `json:"alpha"`
	Significant bool      `json:"significant"`
	// CriticalF is the empirical 1-alpha quantile of the bootstrap F
	// distribution, the threshold the observed F is judged against.
	CriticalF float64 `json:"critical_f"`
}

// BootstrapTest complements the analytic F-test for one lag with a residual
// bootstrap: y is re-simulated from its own fitted history (the restricted
// model, under which x has no effect), the test is re-run on each simulated
// sample, and the bootstrap p-value is the corrected share of replications
// whose F statistic reaches the observed one.
func BootstrapTest(ctx context.Context, pair *AlignedPair, lag int, opts BootstrapOptions) (*BootstrapResult, error) {
	if lag < 1 {
		return nil, &InvalidParameterError{Name: "lag", Reason: "must be >= 1"}
	}
	if opts.Replications <= 0 {
		opts.Replications = 500
	}
	if opts.Alpha <= 0 || opts.Alpha >= 1 {
		opts.Alpha = 0.05
	}

	base, err := TestLag(pair, lag)
	if err != nil {
		return nil, err
	}

	// Fit the restricted model once on the real data; its coefficients and
	// residuals drive every simulated replication.
	restricted, _, err := buildDesigns(pair, lag)
	if err != nil {
		return nil, err
	}
	beta, err := solveLS(restricted)
	if err != nil {
		return nil, err
	}

	var fitted mat.VecDense
	fitted.MulVec(restricted.X, beta)
	rows, _ := restricted.X.Dims()
	residuals := make([]float64, rows)
	for i := 0; i < rows; i++ {
		residuals[i] = restricted.y.AtVec(i) - fitted.AtVec(i)
	}

	// Per-replication seeds so workers never share an RNG.
	masterSeed := opts.Seed
	if masterSeed == 0 {
		masterSeed = time.Now().UnixNano()
	}
	masterRng := rand.New(rand.NewSource(masterSeed))
	seeds := make([]int64, opts.Replications)
	for i := range seeds {
		seeds[i] = masterRng.Int63()
	}

	numWorkers := runtime.NumCPU()
	if numWorkers > opts.Replications {
		numWorkers = opts.Replications
	}

	type replication struct {
		f   float64
		err error
	}

	jobs := make(chan int)
	resultsCh := make(chan replication, opts.Replications)

	var wg sync.WaitGroup
	wg.Add(numWorkers)

	worker := func() {
		defer wg.Done()
		for b := range jobs {
			if err := ctx.Err(); err != nil {
				resultsCh <- replication{err: err}
				continue
			}
			rng := rand.New(rand.NewSource(seeds[b]))
			yStar := simulateNull(pair.Y, beta, residuals, lag, rng)
			res, err := TestLag(&AlignedPair{X: pair.X, Y: yStar}, lag)
			resultsCh <- replication{f: res.FStatistic, err: err}
		}
	}

	for w := 0; w < numWorkers; w++ {
		go worker()
	}
	go func() {
		for b := 0; b < opts.Replications; b++ {
			jobs <- b
		}
		close(jobs)
	}()

	count := 0
	fStats := make([]float64, 0, opts.Replications)
	var repErr error
	for i := 0; i < opts.Replications; i++ {
		rep := <-resultsCh
		if rep.err != nil {
			if repErr == nil {
				repErr = rep.err
			}
			continue
		}
		fStats = append(fStats, rep.f)
		if rep.f >= base.FStatistic {
			count++
		}
	}
	wg.Wait()
	close(resultsCh)

	if repErr != nil {
		return nil, repErr
	}

	// Small-sample correction: (count+1)/(N+1).
	bootP := float64(count+1) / float64(opts.Replications+1)

	return &BootstrapResult{
		Base:        base,
		BootPValue:  bootP,
		Alpha:       opts.Alpha,
		Significant: bootP < opts.Alpha,
		CriticalF:   empiricalQuantile(fStats, 1-opts.Alpha),
	}, nil
}

// simulateNull generates a bootstrap sample of y under the restricted model:
// the first lag observations are copied from the real series, then each step
// applies the fitted own-history coefficients plus a resampled residual.
func simulateNull(y []float64, beta *mat.VecDense, residuals []float64, lag int, rng *rand.Rand) []float64 {
	n := len(y)
	yStar := make([]float64, n)
	copy(yStar, y[:lag])

	for t := lag; t < n; t++ {
		val := beta.AtVec(0)
		for j := 1; j <= lag; j++ {
			val += beta.AtVec(j) * yStar[t-j]
		}
		val += residuals[rng.Intn(len(residuals))]
		yStar[t] = val
	}
	return yStar
}

// empiricalQuantile returns the q-quantile of samples using linear
// interpolation between order statistics.
func empiricalQuantile(samples []float64, q float64) float64 {
	n := len(samples)
	if n == 0 {
		return math.NaN()
	}

	tmp := make([]float64, n)
	copy(tmp, samples)
	sort.Float64s(tmp)

	if q <= 0 {
		return tmp[0]
	}
	if q >= 1 {
		return tmp[n-1]
	}

	pos := q * float64(n-1)
	below := int(math.Floor(pos))
	above := int(math.Ceil(pos))
	if below == above {
		return tmp[below]
	}

	weight := pos - float64(below)
	return tmp[below]*(1.0-weight) + tmp[above]*weight
}

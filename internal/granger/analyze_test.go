package granger

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestReportShape(t *testing.T) {
	pair := noisePair(t, 150, 21)

	report, err := Test(context.Background(), pair, 4)
	require.NoError(t, err)

	require.Len(t, report.PValuesByLag, 4)
	for lag := 1; lag <= 4; lag++ {
		p, ok := report.PValuesByLag[lag]
		require.True(t, ok, "missing lag %d", lag)
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
	}
}

func TestTestBestLagIsArgmin(t *testing.T) {
	pair := noisePair(t, 180, 33)

	report, err := Test(context.Background(), pair, 5)
	require.NoError(t, err)

	best := report.PValuesByLag[report.BestLag]
	assert.Equal(t, report.MinP, best)
	for lag, p := range report.PValuesByLag {
		assert.GreaterOrEqual(t, p, best)
		// Ties resolve to the smallest lag.
		if p == best {
			assert.GreaterOrEqual(t, lag, report.BestLag)
		}
	}
}

func TestTestStrongLeadLag(t *testing.T) {
	// y tracks x with a one-step delay and tiny noise: near-deterministic
	// predictability, so the minimum p-value must be essentially zero.
	rng := rand.New(rand.NewSource(17))
	n := 250
	x := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = rng.NormFloat64()
		if i == 0 {
			y[i] = 0.01 * rng.NormFloat64()
		} else {
			y[i] = x[i-1] + 0.01*rng.NormFloat64()
		}
	}
	pair, err := Pair(x, y, 3)
	require.NoError(t, err)

	report, err := Test(context.Background(), pair, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, report.BestLag)
	assert.Less(t, report.MinP, 0.01)
}

func TestTestIndependentNoiseIsUnbiased(t *testing.T) {
	// Under the null, p-values should be roughly uniform on [0,1]; the mean
	// over many independent trials lands near 0.5.
	rng := rand.New(rand.NewSource(99))
	trials := 200
	sum := 0.0
	for trial := 0; trial < trials; trial++ {
		n := 200
		x := make([]float64, n)
		y := make([]float64, n)
		for i := 0; i < n; i++ {
			x[i] = rng.NormFloat64()
			y[i] = rng.NormFloat64()
		}
		pair, err := Pair(x, y, 1)
		require.NoError(t, err)

		report, err := Test(context.Background(), pair, 1)
		require.NoError(t, err)
		sum += report.PValuesByLag[1]
	}

	mean := sum / float64(trials)
	assert.Greater(t, mean, 0.3)
	assert.Less(t, mean, 0.7)
}

func TestTestShiftedRampScenario(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	noise := []float64{0.04, -0.02, 0.05, 0.01, -0.05, 0.03, -0.01, -0.04, 0.02, 0.05, -0.03, 0.01}
	// y is x shifted one step forward with small noise.
	y := make([]float64, len(x))
	for i := range x {
		y[i] = x[i] - 1 + noise[i]
	}

	pair, err := Pair(x, y, 3)
	require.NoError(t, err)

	report, err := Test(context.Background(), pair, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, report.BestLag)
	assert.Less(t, report.MinP, 0.05)
}

func TestTestIdempotent(t *testing.T) {
	pair := noisePair(t, 160, 55)

	first, err := Test(context.Background(), pair, 4)
	require.NoError(t, err)
	second, err := Test(context.Background(), pair, 4)
	require.NoError(t, err)

	assert.Equal(t, first.BestLag, second.BestLag)
	assert.InDelta(t, first.MinP, second.MinP, 1e-9)
	for lag, p := range first.PValuesByLag {
		assert.InDelta(t, p, second.PValuesByLag[lag], 1e-9)
	}
}

func TestTestInvalidMaxLag(t *testing.T) {
	pair := noisePair(t, 100, 2)

	var invalid *InvalidParameterError
	_, err := Test(context.Background(), pair, 0)
	require.ErrorAs(t, err, &invalid)
	_, err = Test(context.Background(), pair, -3)
	require.ErrorAs(t, err, &invalid)
}

func TestTestInsufficientDepth(t *testing.T) {
	// A pair valid at depth 1 cannot support a depth-10 analysis.
	pair := noisePair(t, 10, 4)

	var insufficient *InsufficientDataError
	_, err := Test(context.Background(), pair, 10)
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 22, insufficient.Required)
	assert.Equal(t, 10, insufficient.Available)
}

func TestTestFailsFastOnBadLag(t *testing.T) {
	// Duplicated series make every unrestricted design singular; the whole
	// aggregation must fail rather than return a partial report.
	rng := rand.New(rand.NewSource(8))
	y := make([]float64, 80)
	for i := range y {
		y[i] = rng.NormFloat64()
	}
	pair, err := Pair(y, y, 3)
	require.NoError(t, err)

	_, err = Test(context.Background(), pair, 3)
	var singular *SingularDesignError
	require.ErrorAs(t, err, &singular)
}

func TestTestHonorsCancellation(t *testing.T) {
	pair := noisePair(t, 200, 13)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Test(ctx, pair, 5)
	require.ErrorIs(t, err, context.Canceled)
}

package backtest

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirphl/simple-backtester/internal/series"
)

// alwaysLong marks every bar long and writes a marker column so tests can
// tell whether the input frame was touched.
type alwaysLong struct {
	calls atomic.Int32
}

func (g *alwaysLong) Name() string { return "always_long" }

func (g *alwaysLong) Apply(f *series.Frame) (*series.Frame, error) {
	g.calls.Add(1)
	sig := make([]int, f.Len())
	for i := range sig {
		sig[i] = 1
	}
	if err := f.Set("Marker", make([]float64, f.Len())); err != nil {
		return nil, err
	}
	if err := f.SetSignal(sig); err != nil {
		return nil, err
	}
	return f, nil
}

type failing struct{}

func (failing) Name() string { return "failing" }

func (failing) Apply(*series.Frame) (*series.Frame, error) {
	return nil, errors.New("boom")
}

func TestRunMany(t *testing.T) {
	rising := frameWithSignal(t, []float64{100, 101, 102, 103}, []int{0, 0, 0, 0})
	falling := frameWithSignal(t, []float64{100, 99, 98, 97}, []int{0, 0, 0, 0})
	gen := &alwaysLong{}

	jobs := []Job{
		{Label: "UP", Frame: rising, Generator: gen, Config: DefaultConfig()},
		{Label: "DOWN", Frame: falling, Generator: gen, Config: DefaultConfig()},
		{Label: "BROKEN", Frame: rising, Generator: failing{}, Config: DefaultConfig()},
		{Label: "BADCFG", Frame: rising, Generator: gen, Config: Config{}},
	}
	results, err := RunMany(context.Background(), jobs, 2)
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, "UP", results[0].Label)
	assert.Equal(t, "always_long", results[0].Strategy)
	require.NoError(t, results[0].Err)
	assert.Equal(t, "always_long", results[0].Result.Strategy)
	assert.Greater(t, results[0].Result.TotalReturnPct, 0.0)

	require.NoError(t, results[1].Err)
	assert.Less(t, results[1].Result.TotalReturnPct, 0.0)

	assert.ErrorContains(t, results[2].Err, "boom")
	assert.ErrorIs(t, results[3].Err, ErrInvalidConfig)

	// Each job works on its own clone.
	assert.False(t, rising.Has("Marker"))
	assert.False(t, falling.Has("Marker"))
	assert.Equal(t, int32(3), gen.calls.Load())

	ov := Summarize(results)
	assert.Equal(t, 4, ov.TotalRuns)
	assert.Equal(t, 2, ov.SuccessfulRuns)
	assert.Equal(t, 2, ov.FailedRuns)
	assert.Equal(t, 1, ov.ProfitableRuns)
	require.Len(t, ov.Ranking, 2)
	assert.Equal(t, "UP", ov.Ranking[0].Label)
	assert.Contains(t, ov.String(), "Runs=4, Successful=2, Failed=2")
}

func TestRunManyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := frameWithSignal(t, []float64{100, 101}, []int{0, 0})
	_, err := RunMany(ctx, []Job{{Label: "X", Frame: f, Generator: &alwaysLong{}, Config: DefaultConfig()}}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunJobValidation(t *testing.T) {
	_, err := RunJob(Job{Label: "X"})
	assert.Error(t, err)

	f := frameWithSignal(t, []float64{100, 101}, []int{0, 0})
	_, err = RunJob(Job{Label: "X", Frame: f})
	assert.Error(t, err)
}

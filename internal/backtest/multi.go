package backtest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/amirphl/simple-backtester/internal/series"
	"github.com/amirphl/simple-backtester/internal/utils"
)

// Generator adds a Signal column to a frame.
type Generator interface {
	Name() string
	Apply(f *series.Frame) (*series.Frame, error)
}

// Job is one independent simulation: a series, the generator producing its
// signal and the simulator config.
type Job struct {
	Label     string
	Frame     *series.Frame
	Generator Generator
	Config    Config
}

// JobResult pairs a job with its outcome. Err is set when the job failed;
// other jobs are not affected.
type JobResult struct {
	Label    string  `json:"label"`
	Strategy string  `json:"strategy"`
	Result   *Result `json:"result,omitempty"`
	Err      error   `json:"-"`
}

// RunJob clones the job's frame, applies the generator and simulates.
func RunJob(job Job) (*Result, error) {
	if job.Frame == nil {
		return nil, fmt.Errorf("%s: no series", job.Label)
	}
	if job.Generator == nil {
		return nil, fmt.Errorf("%s: no signal generator", job.Label)
	}
	annotated, err := job.Generator.Apply(job.Frame.Clone())
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", job.Label, job.Generator.Name(), err)
	}
	res, err := Run(annotated, job.Config)
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", job.Label, job.Generator.Name(), err)
	}
	res.Strategy = job.Generator.Name()
	return res, nil
}

// RunMany runs jobs concurrently, at most parallelism at a time (unlimited
// when parallelism <= 0). Results keep the order of jobs. A failing job is
// reported in its JobResult; only context cancellation aborts the batch.
func RunMany(ctx context.Context, jobs []Job, parallelism int) ([]JobResult, error) {
	logger := utils.GetLogger()
	results := make([]JobResult, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}

	start := time.Now()
	for i, job := range jobs {
		results[i].Label = job.Label
		if job.Generator != nil {
			results[i].Strategy = job.Generator.Name()
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := RunJob(job)
			if err != nil {
				logger.Warnf("RunMany | job %s failed: %v", job.Label, err)
				results[i].Err = err
				return nil
			}
			results[i].Result = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}

	logger.Infof("RunMany | %d jobs finished in %v", len(jobs), time.Since(start).Round(time.Millisecond))
	return results, nil
}

// Overview aggregates a batch of runs.
type Overview struct {
	TotalRuns         int     `json:"total_runs"`
	SuccessfulRuns    int     `json:"successful_runs"`
	FailedRuns        int     `json:"failed_runs"`
	ClosedTrades      int     `json:"closed_trades"`
	Wins              int     `json:"wins"`
	OverallWinRatePct float64 `json:"overall_win_rate_pct"`
	AvgReturnPct      float64 `json:"avg_return_pct"`
	AvgMaxDrawdownPct float64 `json:"avg_max_drawdown_pct"`
	ProfitableRuns    int     `json:"profitable_runs"`
	// Ranking lists successful runs by total return, best first.
	Ranking []RankedRun `json:"ranking"`
}

type RankedRun struct {
	Label          string  `json:"label"`
	Strategy       string  `json:"strategy"`
	TotalReturnPct float64 `json:"total_return_pct"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	WinRatePct     float64 `json:"win_rate_pct"`
}

// Summarize computes the batch overview.
func Summarize(results []JobResult) Overview {
	ov := Overview{TotalRuns: len(results)}
	var sumReturn, sumDrawdown float64
	for _, jr := range results {
		if jr.Err != nil || jr.Result == nil {
			ov.FailedRuns++
			continue
		}
		r := jr.Result
		ov.SuccessfulRuns++
		ov.ClosedTrades += r.Stats.ClosedTrades
		ov.Wins += r.Stats.Wins
		sumReturn += r.TotalReturnPct
		sumDrawdown += r.MaxDrawdownPct
		if r.TotalReturnPct > 0 {
			ov.ProfitableRuns++
		}
		ov.Ranking = append(ov.Ranking, RankedRun{
			Label:          jr.Label,
			Strategy:       jr.Strategy,
			TotalReturnPct: r.TotalReturnPct,
			MaxDrawdownPct: r.MaxDrawdownPct,
			WinRatePct:     r.WinRatePct,
		})
	}
	if ov.SuccessfulRuns > 0 {
		ov.AvgReturnPct = sumReturn / float64(ov.SuccessfulRuns)
		ov.AvgMaxDrawdownPct = sumDrawdown / float64(ov.SuccessfulRuns)
	}
	if ov.ClosedTrades > 0 {
		ov.OverallWinRatePct = float64(ov.Wins) / float64(ov.ClosedTrades) * 100
	}
	sort.SliceStable(ov.Ranking, func(i, j int) bool {
		return ov.Ranking[i].TotalReturnPct > ov.Ranking[j].TotalReturnPct
	})
	return ov
}

// String renders the overview the way the CLI prints it.
func (ov Overview) String() string {
	var b strings.Builder
	b.WriteString("Batch Summary\n")
	fmt.Fprintf(&b, "  Runs=%d, Successful=%d, Failed=%d, Profitable=%d\n",
		ov.TotalRuns, ov.SuccessfulRuns, ov.FailedRuns, ov.ProfitableRuns)
	fmt.Fprintf(&b, "  Closed Trades=%d, Overall WinRate=%s%%, Avg Return=%s%%, Avg MaxDrawdown=%s%%\n",
		ov.ClosedTrades, FormatFixed(ov.OverallWinRatePct, 2), FormatFixed(ov.AvgReturnPct, 2), FormatFixed(ov.AvgMaxDrawdownPct, 2))
	for i, r := range ov.Ranking {
		fmt.Fprintf(&b, "  %d. %s %s: return=%s%%, drawdown=%s%%, winrate=%s%%\n",
			i+1, r.Label, r.Strategy, FormatFixed(r.TotalReturnPct, 2), FormatFixed(r.MaxDrawdownPct, 2), FormatFixed(r.WinRatePct, 2))
	}
	return b.String()
}

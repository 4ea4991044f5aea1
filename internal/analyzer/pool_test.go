package analyzer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jobs(n int) []Job {
	out := make([]Job, n)
	for i := range out {
		out[i] = Job{Key: fmt.Sprintf("pair-%d", i), Archive1: fmt.Sprintf("a%d.zip", i), Archive2: fmt.Sprintf("b%d.zip", i)}
	}
	return out
}

func scoreOf(archive1 string) float64 {
	var i int
	_, _ = fmt.Sscanf(archive1, "a%d.zip", &i)
	return float64(i) / 10
}

func TestPool_ResultsInJobOrder(t *testing.T) {
	cmp := ComparatorFunc(func(ctx context.Context, a1, a2 string) (*Result, error) {
		// Later jobs finish first.
		time.Sleep(time.Duration(10-int(scoreOf(a1)*10)) * time.Millisecond)
		return &Result{Success: true, GlobalSimilarity: scoreOf(a1)}, nil
	})
	pool := NewPool(cmp, PoolConfig{Workers: 4, MaxAttempts: 1}, discardLogger())

	var calls atomic.Int32
	report, err := pool.RunWithProgress(context.Background(), jobs(8), func(done, total int) {
		calls.Add(1)
		assert.Equal(t, 8, total)
	})
	require.NoError(t, err)

	require.Len(t, report.Results, 8)
	for i, r := range report.Results {
		assert.Equal(t, fmt.Sprintf("pair-%d", i), r.Job.Key)
		assert.InDelta(t, float64(i)/10, r.Result.GlobalSimilarity, 1e-9)
		assert.Equal(t, 1, r.Attempts)
	}
	assert.Empty(t, report.Failures)
	assert.Equal(t, ReportSummary{Total: 8, Completed: 8, Duration: report.Summary.Duration}, report.Summary)
	assert.Equal(t, int32(8), calls.Load())
}

func TestPool_BoundsConcurrency(t *testing.T) {
	var current, peak atomic.Int32
	cmp := ComparatorFunc(func(ctx context.Context, a1, a2 string) (*Result, error) {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		current.Add(-1)
		return &Result{Success: true}, nil
	})

	report, err := NewPool(cmp, PoolConfig{Workers: 3}, discardLogger()).Run(context.Background(), jobs(12))
	require.NoError(t, err)
	assert.Equal(t, 12, report.Summary.Completed)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestPool_RetriesRetryableErrors(t *testing.T) {
	var attempts atomic.Int32
	cmp := ComparatorFunc(func(ctx context.Context, a1, a2 string) (*Result, error) {
		if attempts.Add(1) < 3 {
			return nil, fmt.Errorf("%w after 1s", ErrTimeout)
		}
		return &Result{Success: true, GlobalSimilarity: 0.5}, nil
	})
	pool := NewPool(cmp, PoolConfig{Workers: 1, MaxAttempts: 3, Backoff: time.Millisecond}, discardLogger())

	before := testutil.ToFloat64(retriesTotal)
	report, err := pool.Run(context.Background(), jobs(1))
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	assert.Equal(t, 3, report.Results[0].Attempts)
	assert.Equal(t, 2.0, testutil.ToFloat64(retriesTotal)-before)
}

func TestPool_ProcessFailureRetriedOnce(t *testing.T) {
	var attempts atomic.Int32
	cmp := ComparatorFunc(func(ctx context.Context, a1, a2 string) (*Result, error) {
		attempts.Add(1)
		return nil, fmt.Errorf("%w: exit status 1", ErrProcessFailed)
	})
	pool := NewPool(cmp, PoolConfig{Workers: 1, MaxAttempts: 5}, discardLogger())

	report, err := pool.Run(context.Background(), jobs(1))
	require.NoError(t, err)

	require.Len(t, report.Failures, 1)
	assert.ErrorIs(t, report.Failures[0].Err, ErrProcessFailed)
	assert.Equal(t, 2, report.Failures[0].Attempts)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestPool_DoesNotRetryPermanentErrors(t *testing.T) {
	var attempts atomic.Int32
	cmp := ComparatorFunc(func(ctx context.Context, a1, a2 string) (*Result, error) {
		attempts.Add(1)
		return nil, fmt.Errorf("%w: BadZipFile", ErrAnalyzerFailure)
	})
	pool := NewPool(cmp, PoolConfig{Workers: 1, MaxAttempts: 3}, discardLogger())

	before := testutil.ToFloat64(comparisonsTotal.WithLabelValues(outcomeFailure))
	report, err := pool.Run(context.Background(), jobs(2))
	require.NoError(t, err)

	assert.Empty(t, report.Results)
	require.Len(t, report.Failures, 2)
	assert.Equal(t, 2, report.Summary.Failed)
	assert.Equal(t, int32(2), attempts.Load())
	assert.Equal(t, 2.0, testutil.ToFloat64(comparisonsTotal.WithLabelValues(outcomeFailure))-before)
}

func TestPool_PerJobTimeout(t *testing.T) {
	cmp := ComparatorFunc(func(ctx context.Context, a1, a2 string) (*Result, error) {
		if a1 == "a1.zip" {
			<-ctx.Done()
			return nil, ErrTimeout
		}
		return &Result{Success: true, GlobalSimilarity: 0.3}, nil
	})
	pool := NewPool(cmp, PoolConfig{Workers: 2, JobTimeout: 20 * time.Millisecond, MaxAttempts: 2}, discardLogger())

	report, err := pool.Run(context.Background(), jobs(3))
	require.NoError(t, err)

	assert.Equal(t, 2, report.Summary.Completed)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "pair-1", report.Failures[0].Job.Key)
	assert.ErrorIs(t, report.Failures[0].Err, ErrTimeout)
	assert.Equal(t, 2, report.Failures[0].Attempts)
}

func TestPool_RecoversPanics(t *testing.T) {
	cmp := ComparatorFunc(func(ctx context.Context, a1, a2 string) (*Result, error) {
		if a1 == "a0.zip" {
			panic("comparator exploded")
		}
		return &Result{Success: true}, nil
	})
	pool := NewPool(cmp, PoolConfig{Workers: 1, MaxAttempts: 3}, discardLogger())

	report, err := pool.Run(context.Background(), jobs(2))
	require.NoError(t, err)

	require.Len(t, report.Failures, 1)
	assert.ErrorIs(t, report.Failures[0].Err, ErrPanic)
	assert.Contains(t, report.Failures[0].Err.Error(), "comparator exploded")
	assert.Equal(t, 1, report.Failures[0].Attempts)
	assert.Equal(t, 1, report.Summary.Completed)
}

func TestPool_NilResultIsFailure(t *testing.T) {
	cmp := ComparatorFunc(func(ctx context.Context, a1, a2 string) (*Result, error) {
		return nil, nil
	})
	report, err := NewPool(cmp, PoolConfig{}, discardLogger()).Run(context.Background(), jobs(1))
	require.NoError(t, err)
	require.Len(t, report.Failures, 1)
	assert.ErrorIs(t, report.Failures[0].Err, ErrMalformedOutput)
}

func TestPool_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var once sync.Once
	var started atomic.Int32
	cmp := ComparatorFunc(func(ctx context.Context, a1, a2 string) (*Result, error) {
		started.Add(1)
		once.Do(cancel)
		<-ctx.Done()
		return nil, ErrCanceled
	})
	pool := NewPool(cmp, PoolConfig{Workers: 1, MaxAttempts: 3}, discardLogger())

	report, err := pool.Run(ctx, jobs(4))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	assert.Equal(t, int32(1), started.Load())
	assert.Empty(t, report.Results)
	require.Len(t, report.Failures, 4)
	for i, f := range report.Failures {
		assert.Equal(t, fmt.Sprintf("pair-%d", i), f.Job.Key)
		assert.ErrorIs(t, f.Err, ErrCanceled)
	}
	assert.Equal(t, 0, report.Failures[3].Attempts)
	assert.Equal(t, 4, report.Summary.Canceled)
	assert.Equal(t, 0, report.Summary.Failed)
}

func TestPool_Empty(t *testing.T) {
	cmp := ComparatorFunc(func(ctx context.Context, a1, a2 string) (*Result, error) {
		t.Fatal("comparator should not run")
		return nil, nil
	})
	report, err := NewPool(cmp, PoolConfig{Workers: 4}, discardLogger()).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Summary.Total)
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0.0, ClampScore(-0.2))
	assert.Equal(t, 0.5, ClampScore(0.5))
	assert.Equal(t, 1.0, ClampScore(3))
}

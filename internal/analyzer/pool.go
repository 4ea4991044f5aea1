package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// Job is one pair of archives to compare. Key identifies the pair for the
// caller and is carried through to the report.
type Job struct {
	Key      string
	Archive1 string
	Archive2 string
}

// JobResult is a successful comparison.
type JobResult struct {
	Job      Job
	Result   *Result
	Attempts int
	Duration time.Duration
}

// JobFailure is a comparison that produced no score.
type JobFailure struct {
	Job      Job
	Err      error
	Attempts int
}

// ReportSummary counts the outcomes of a run.
type ReportSummary struct {
	Total     int
	Completed int
	Failed    int
	Canceled  int
	Duration  time.Duration
}

// Report aggregates a run. Results and Failures keep the order of the
// submitted jobs.
type Report struct {
	Results  []JobResult
	Failures []JobFailure
	Summary  ReportSummary
}

// ProgressFunc is called after each job finishes, successful or not.
type ProgressFunc func(done, total int)

// PoolConfig configures a Pool.
type PoolConfig struct {
	Workers     int
	JobTimeout  time.Duration
	MaxAttempts int
	// Backoff is multiplied by the attempt number between retries.
	Backoff time.Duration
}

// Pool runs comparisons on a bounded number of workers.
type Pool struct {
	cmp    Comparator
	config PoolConfig
	logger *slog.Logger
}

// NewPool creates a pool around a comparator.
func NewPool(cmp Comparator, config PoolConfig, logger *slog.Logger) *Pool {
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	if config.Backoff < 0 {
		config.Backoff = 0
	}
	return &Pool{
		cmp:    cmp,
		config: config,
		logger: logger.With(slog.String("component", "analyzer_pool")),
	}
}

type outcome struct {
	res      *Result
	err      error
	attempts int
	duration time.Duration
	done     bool
}

// Run compares every job and returns once all of them finished or ctx is
// done. On cancellation the partial report is returned along with ctx's
// error; jobs that never started are reported as canceled.
func (p *Pool) Run(ctx context.Context, jobs []Job) (*Report, error) {
	return p.RunWithProgress(ctx, jobs, nil)
}

// RunWithProgress is Run with a progress callback.
func (p *Pool) RunWithProgress(ctx context.Context, jobs []Job, progress ProgressFunc) (*Report, error) {
	start := time.Now()
	outcomes := make([]outcome, len(jobs))

	workers := p.config.Workers
	if workers > len(jobs) {
		workers = len(jobs)
	}
	p.logger.Info("starting comparison run",
		slog.Int("jobs", len(jobs)),
		slog.Int("workers", workers))

	indexes := make(chan int)
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		finished int
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				if ctx.Err() != nil {
					continue
				}
				outcomes[i] = p.runJob(ctx, jobs[i])
				if progress != nil {
					mu.Lock()
					finished++
					n := finished
					mu.Unlock()
					progress(n, len(jobs))
				}
			}
		}()
	}

dispatch:
	for i := range jobs {
		select {
		case indexes <- i:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(indexes)
	wg.Wait()

	report := p.aggregate(jobs, outcomes)
	report.Summary.Duration = time.Since(start)
	p.logger.Info("comparison run finished",
		slog.Int("completed", report.Summary.Completed),
		slog.Int("failed", report.Summary.Failed),
		slog.Int("canceled", report.Summary.Canceled),
		slog.Duration("duration", report.Summary.Duration))

	return report, ctx.Err()
}

func (p *Pool) aggregate(jobs []Job, outcomes []outcome) *Report {
	report := &Report{Summary: ReportSummary{Total: len(jobs)}}
	for i, o := range outcomes {
		switch {
		case !o.done:
			report.Failures = append(report.Failures, JobFailure{Job: jobs[i], Err: ErrCanceled})
			report.Summary.Canceled++
		case o.err != nil:
			report.Failures = append(report.Failures, JobFailure{Job: jobs[i], Err: o.err, Attempts: o.attempts})
			if errors.Is(o.err, ErrCanceled) {
				report.Summary.Canceled++
			} else {
				report.Summary.Failed++
			}
		default:
			report.Results = append(report.Results, JobResult{Job: jobs[i], Result: o.res, Attempts: o.attempts, Duration: o.duration})
			report.Summary.Completed++
		}
	}
	return report
}

func (p *Pool) runJob(ctx context.Context, job Job) outcome {
	log := p.logger.With(slog.String("job", job.Key))
	start := time.Now()

	var (
		res *Result
		err error
	)
	attempt := 0
	for attempt < p.config.MaxAttempts {
		attempt++
		res, err = p.attempt(ctx, job)
		if err == nil || !Retryable(err) || ctx.Err() != nil {
			break
		}
		if errors.Is(err, ErrProcessFailed) && attempt >= 2 {
			break
		}
		if attempt == p.config.MaxAttempts {
			break
		}

		retriesTotal.Inc()
		wait := time.Duration(attempt) * p.config.Backoff
		log.Warn("retrying comparison",
			slog.Int("attempt", attempt),
			slog.Duration("backoff", wait),
			slog.String("error", err.Error()))
		if sleepErr := sleep(ctx, wait); sleepErr != nil {
			err = ErrCanceled
			break
		}
	}

	comparisonsTotal.WithLabelValues(outcomeOf(err)).Inc()
	if err != nil {
		log.Error("comparison failed",
			slog.Int("attempts", attempt),
			slog.String("error", err.Error()))
	}
	return outcome{res: res, err: err, attempts: attempt, duration: time.Since(start), done: true}
}

// attempt runs one comparison under the per-job timeout. A panic in the
// comparator becomes ErrPanic.
func (p *Pool) attempt(ctx context.Context, job Job) (res *Result, err error) {
	jobCtx := ctx
	if p.config.JobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, p.config.JobTimeout)
		defer cancel()
	}

	inflightComparisons.Inc()
	start := time.Now()
	defer func() {
		inflightComparisons.Dec()
		comparisonDuration.Observe(time.Since(start).Seconds())
		if r := recover(); r != nil {
			p.logger.Error("comparison panicked",
				slog.String("job", job.Key),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			res, err = nil, fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()

	res, err = p.cmp.Compare(jobCtx, job.Archive1, job.Archive2)
	if err != nil {
		if ctx.Err() != nil && !errors.Is(err, ErrCanceled) {
			err = fmt.Errorf("%w: %v", ErrCanceled, err)
		}
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("%w: comparator returned no result", ErrMalformedOutput)
	}
	res.GlobalSimilarity = ClampScore(res.GlobalSimilarity)
	return res, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

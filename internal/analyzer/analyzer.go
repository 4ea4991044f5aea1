// Package analyzer compares deliverable archives by running an external
// comparison command, one subprocess per pair, under a supervised pool.
package analyzer

import (
	"context"
	"errors"
	"math"
)

var (
	// ErrTimeout is returned when a comparison exceeds its deadline.
	ErrTimeout = errors.New("comparison timed out")

	// ErrCanceled is returned when the caller canceled the comparison.
	ErrCanceled = errors.New("comparison canceled")

	// ErrProcessFailed is returned when the comparison command exits with a
	// non-zero status without reporting a structured failure.
	ErrProcessFailed = errors.New("comparison process failed")

	// ErrMalformedOutput is returned when the command output cannot be
	// parsed.
	ErrMalformedOutput = errors.New("malformed comparison output")

	// ErrAnalyzerFailure is returned when the command reports success=false.
	ErrAnalyzerFailure = errors.New("analyzer reported failure")

	// ErrPanic is recorded when a comparison panicked.
	ErrPanic = errors.New("comparison panicked")
)

// Summary counts files seen by a comparison.
type Summary struct {
	CommonFiles      int `json:"common_files"`
	UniqueToArchive1 int `json:"unique_to_archive1"`
	UniqueToArchive2 int `json:"unique_to_archive2"`
	Errors           int `json:"errors"`
}

// Result is the JSON document printed by the comparison command.
type Result struct {
	Success          bool    `json:"success"`
	GlobalSimilarity float64 `json:"global_similarity"`
	Summary          Summary `json:"summary"`
	IsSuspicious     bool    `json:"is_suspicious"`
	ReportPath       *string `json:"report_path"`
	Error            string  `json:"error,omitempty"`
	ErrorType        string  `json:"error_type,omitempty"`
	// Files is only filled by comparators that report per-file scores.
	Files []FileScore `json:"files,omitempty"`
}

// FileScore is the similarity of one path present in both archives.
type FileScore struct {
	Path  string  `json:"path"`
	Score float64 `json:"score"`
	Error string  `json:"error,omitempty"`
}

// Comparator compares two archives on disk.
type Comparator interface {
	Compare(ctx context.Context, archive1, archive2 string) (*Result, error)
}

// ComparatorFunc adapts a function to Comparator.
type ComparatorFunc func(ctx context.Context, archive1, archive2 string) (*Result, error)

// Compare implements Comparator.
func (f ComparatorFunc) Compare(ctx context.Context, archive1, archive2 string) (*Result, error) {
	return f(ctx, archive1, archive2)
}

// Retryable reports whether a failed comparison is worth another attempt.
func Retryable(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrProcessFailed)
}

// ClampScore bounds s to [0, 1].
func ClampScore(s float64) float64 {
	return math.Max(0, math.Min(1, s))
}

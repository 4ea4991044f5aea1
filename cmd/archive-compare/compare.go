package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/mygeslike/api/internal/analyzer"
	"github.com/mygeslike/api/internal/analyzer/builtin"
)

// errReported marks failures already written to stdout as a result
// document.
var errReported = errors.New("comparison failed")

const (
	formatJSON = "json"
	formatText = "text"
)

// Error types reported in the error_type field.
const (
	errorTypeTimeout = "timeout"
	errorTypeArchive = "archive_error"
	errorTypeUnknown = "error"
)

type compareOptions struct {
	archive1  string
	archive2  string
	format    string
	timeout   int
	workers   int
	threshold float64
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "archive-compare",
		Short:         "Compare deliverable archives for similarity",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.AddCommand(newCompareCommand())
	return root
}

func newCompareCommand() *cobra.Command {
	opts := compareOptions{}
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare two zip archives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.format != formatJSON && opts.format != formatText {
				return fmt.Errorf("unknown format %q", opts.format)
			}
			if opts.threshold <= 0 || opts.threshold > 1 {
				return fmt.Errorf("threshold must be in (0, 1], got %v", opts.threshold)
			}

			ctx := cmd.Context()
			if opts.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, time.Duration(opts.timeout)*time.Second)
				defer cancel()
			}

			res, err := builtin.New(opts.threshold).Compare(ctx, opts.archive1, opts.archive2)
			if err != nil {
				res = failure(ctx, err)
			}
			if werr := write(cmd.OutOrStdout(), opts.format, res); werr != nil {
				return werr
			}
			if err != nil {
				return errReported
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.archive1, "archive1", "", "First zip archive")
	f.StringVar(&opts.archive2, "archive2", "", "Second zip archive")
	f.StringVar(&opts.format, "format", formatJSON, "Output format: json or text")
	f.IntVar(&opts.timeout, "timeout", 0, "Seconds before the comparison is abandoned, 0 for none")
	// The builtin comparer is sequential; --workers is read and ignored.
	f.IntVar(&opts.workers, "workers", 1, "Ignored")
	f.Float64Var(&opts.threshold, "threshold", 0.7, "Score at or above which a pair is suspicious")
	_ = cmd.MarkFlagRequired("archive1")
	_ = cmd.MarkFlagRequired("archive2")
	return cmd
}

func failure(ctx context.Context, err error) *analyzer.Result {
	res := &analyzer.Result{Success: false, Error: err.Error(), ErrorType: errorTypeUnknown}
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.ErrorType = errorTypeTimeout
	case errors.Is(err, analyzer.ErrAnalyzerFailure):
		res.ErrorType = errorTypeArchive
	}
	return res
}

func write(w io.Writer, format string, res *analyzer.Result) error {
	if format == formatJSON {
		return json.NewEncoder(w).Encode(res)
	}

	if !res.Success {
		_, err := fmt.Fprintf(w, "comparison failed (%s): %s\n", res.ErrorType, res.Error)
		return err
	}
	if _, err := fmt.Fprintf(w, "similarity: %.4f\nsuspicious: %t\ncommon files: %d\nunique to archive1: %d\nunique to archive2: %d\n",
		res.GlobalSimilarity, res.IsSuspicious,
		res.Summary.CommonFiles, res.Summary.UniqueToArchive1, res.Summary.UniqueToArchive2); err != nil {
		return err
	}
	for _, f := range res.Files {
		line := fmt.Sprintf("  %-40s %.4f", f.Path, f.Score)
		if f.Error != "" {
			line += "  " + f.Error
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/mygeslike/api/internal/config"
)

var commandContext = exec.CommandContext

const (
	stderrLimit = 4 << 10
	waitDelay   = 2 * time.Second
)

// Bridge runs the comparison command once per pair:
//
//	<command> [script] compare --archive1 A --archive2 B --format json
//	    --timeout T --workers W --threshold S
//
// and parses the JSON document it prints on stdout.
type Bridge struct {
	command        string
	script         string
	fileTimeout    int
	workers        int
	threshold      float64
	maxOutputBytes int64
	logger         *slog.Logger
}

var _ Comparator = (*Bridge)(nil)

// NewBridge creates a Bridge from the analyzer configuration.
func NewBridge(cfg config.AnalyzerConfig, logger *slog.Logger) *Bridge {
	b := &Bridge{
		command:        cfg.Command,
		script:         cfg.Script,
		fileTimeout:    cfg.PerFileTimeoutSeconds,
		workers:        cfg.ScriptWorkers,
		threshold:      cfg.SuspiciousThreshold,
		maxOutputBytes: cfg.MaxOutputBytes,
		logger:         logger.With(slog.String("component", "analyzer_bridge")),
	}
	if b.fileTimeout <= 0 {
		b.fileTimeout = 30
	}
	if b.workers <= 0 {
		b.workers = 4
	}
	if b.threshold <= 0 {
		b.threshold = 0.7
	}
	if b.maxOutputBytes <= 0 {
		b.maxOutputBytes = 1 << 20
	}
	return b
}

func (b *Bridge) args(archive1, archive2 string) []string {
	var args []string
	if b.script != "" {
		args = append(args, b.script)
	}
	return append(args,
		"compare",
		"--archive1", archive1,
		"--archive2", archive2,
		"--format", "json",
		"--timeout", strconv.Itoa(b.fileTimeout),
		"--workers", strconv.Itoa(b.workers),
		"--threshold", strconv.FormatFloat(b.threshold, 'f', -1, 64),
	)
}

// Compare runs one comparison. The process is killed when ctx is done.
func (b *Bridge) Compare(ctx context.Context, archive1, archive2 string) (*Result, error) {
	if archive1 == "" || archive2 == "" {
		return nil, fmt.Errorf("%w: both archive paths are required", ErrProcessFailed)
	}

	stdout := &cappedBuffer{limit: b.maxOutputBytes}
	stderr := &cappedBuffer{limit: stderrLimit}

	cmd := commandContext(ctx, b.command, b.args(archive1, archive2)...) //nolint:gosec
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay

	start := time.Now()
	runErr := cmd.Run()
	log := b.logger.With(
		slog.String("archive1", archive1),
		slog.String("archive2", archive2),
		slog.Duration("duration", time.Since(start)))

	if ctxErr := ctx.Err(); ctxErr != nil {
		log.Warn("comparison interrupted", slog.String("reason", ctxErr.Error()))
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, time.Since(start).Round(time.Millisecond))
		}
		return nil, ErrCanceled
	}

	if stdout.overflow {
		return nil, fmt.Errorf("%w: output exceeds %d bytes", ErrMalformedOutput, b.maxOutputBytes)
	}

	res, parseErr := parseResult(stdout.Bytes())
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return nil, fmt.Errorf("%w: %v", ErrProcessFailed, runErr)
		}
		if parseErr == nil && !res.Success {
			return nil, analyzerFailure(res)
		}
		log.Warn("comparison process failed",
			slog.Int("exit_code", exitErr.ExitCode()),
			slog.String("stderr", stderr.String()))
		return nil, fmt.Errorf("%w: exit status %d: %s", ErrProcessFailed, exitErr.ExitCode(), stderr.String())
	}
	if parseErr != nil {
		return nil, parseErr
	}
	if !res.Success {
		return nil, analyzerFailure(res)
	}

	res.GlobalSimilarity = ClampScore(res.GlobalSimilarity)
	log.Debug("comparison finished", slog.Float64("score", res.GlobalSimilarity))
	return res, nil
}

func analyzerFailure(res *Result) error {
	msg := res.Error
	if msg == "" {
		msg = "no error message"
	}
	if res.ErrorType != "" {
		return fmt.Errorf("%w: %s: %s", ErrAnalyzerFailure, res.ErrorType, msg)
	}
	return fmt.Errorf("%w: %s", ErrAnalyzerFailure, msg)
}

// parseResult decodes the whole output, falling back to its last non-empty
// line for commands that print progress before the result.
func parseResult(out []byte) (*Result, error) {
	out = bytes.TrimSpace(out)
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty output", ErrMalformedOutput)
	}

	var res Result
	err := json.Unmarshal(out, &res)
	if err != nil {
		if i := bytes.LastIndexByte(out, '\n'); i >= 0 {
			err = json.Unmarshal(bytes.TrimSpace(out[i+1:]), &res)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if math.IsNaN(res.GlobalSimilarity) {
		return nil, fmt.Errorf("%w: similarity is not a number", ErrMalformedOutput)
	}
	return &res, nil
}

// cappedBuffer keeps the first limit bytes written to it and drops the rest.
type cappedBuffer struct {
	buf      bytes.Buffer
	limit    int64
	overflow bool
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	room := c.limit - int64(c.buf.Len())
	if room <= 0 {
		c.overflow = c.overflow || len(p) > 0
		return len(p), nil
	}
	if int64(len(p)) > room {
		c.buf.Write(p[:room])
		c.overflow = true
		return len(p), nil
	}
	c.buf.Write(p)
	return len(p), nil
}

func (c *cappedBuffer) Bytes() []byte { return c.buf.Bytes() }

func (c *cappedBuffer) String() string {
	s := strings.TrimSpace(c.buf.String())
	if c.overflow {
		s += " [truncated]"
	}
	return s
}

// Package builtin is an in-process archive comparator. It pairs the files
// of two zip archives by path and scores each pair from line similarity
// and token overlap.
package builtin

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/mygeslike/api/internal/analyzer"
)

const (
	ratioWeight   = 0.6
	jaccardWeight = 0.4

	// DefaultMaxFileBytes bounds the text compared per file. Larger files
	// only count when byte-identical.
	DefaultMaxFileBytes = 1 << 20
)

// Comparer compares zip archives on disk.
type Comparer struct {
	Threshold    float64
	MaxFileBytes int64
}

var _ analyzer.Comparator = (*Comparer)(nil)

// New creates a Comparer flagging scores at or above threshold.
func New(threshold float64) *Comparer {
	return &Comparer{Threshold: threshold, MaxFileBytes: DefaultMaxFileBytes}
}

type entry struct {
	file *zip.File
	size int64
}

// Compare implements analyzer.Comparator. Unreadable archives yield
// ErrAnalyzerFailure.
func (c *Comparer) Compare(ctx context.Context, archive1, archive2 string) (*analyzer.Result, error) {
	r1, err := zip.OpenReader(archive1)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", analyzer.ErrAnalyzerFailure, path.Base(archive1), err)
	}
	defer r1.Close()
	r2, err := zip.OpenReader(archive2)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", analyzer.ErrAnalyzerFailure, path.Base(archive2), err)
	}
	defer r2.Close()

	return c.compareReaders(ctx, &r1.Reader, &r2.Reader)
}

func (c *Comparer) compareReaders(ctx context.Context, r1, r2 *zip.Reader) (*analyzer.Result, error) {
	files1, files2 := index(r1), index(r2)

	var common []string
	var weighted, total float64
	res := &analyzer.Result{Success: true}

	for p, e1 := range files1 {
		e2, ok := files2[p]
		if !ok {
			res.Summary.UniqueToArchive1++
			total += weight(e1.size)
			continue
		}
		common = append(common, p)
		total += weight(max(e1.size, e2.size))
	}
	for p, e2 := range files2 {
		if _, ok := files1[p]; !ok {
			res.Summary.UniqueToArchive2++
			total += weight(e2.size)
		}
	}
	sort.Strings(common)
	res.Summary.CommonFiles = len(common)

	for _, p := range common {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e1, e2 := files1[p], files2[p]
		score, err := c.compareFiles(ctx, e1.file, e2.file)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		fs := analyzer.FileScore{Path: p, Score: score}
		if err != nil {
			res.Summary.Errors++
			fs.Error = err.Error()
			fs.Score = 0
		}
		weighted += weight(max(e1.size, e2.size)) * fs.Score
		res.Files = append(res.Files, fs)
	}

	switch {
	case len(files1) == 0 && len(files2) == 0:
		res.GlobalSimilarity = 1
	case total > 0:
		res.GlobalSimilarity = analyzer.ClampScore(weighted / total)
	}
	res.IsSuspicious = res.GlobalSimilarity >= c.Threshold
	return res, nil
}

// weight gives empty files a say in the mean.
func weight(size int64) float64 { return float64(size) + 1 }

func (c *Comparer) compareFiles(ctx context.Context, f1, f2 *zip.File) (float64, error) {
	limit := c.MaxFileBytes
	if limit <= 0 {
		limit = DefaultMaxFileBytes
	}

	if f1.CRC32 == f2.CRC32 && f1.UncompressedSize64 == f2.UncompressedSize64 {
		return 1, nil
	}
	if int64(f1.UncompressedSize64) > limit || int64(f2.UncompressedSize64) > limit {
		return 0, nil
	}

	b1, err := readFile(f1, limit)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	b2, err := readFile(f2, limit)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if bytes.Equal(b1, b2) {
		return 1, nil
	}
	if !isText(b1) || !isText(b2) {
		return 0, nil
	}
	// The line matcher is quadratic on large inputs.
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return TextSimilarity(string(b1), string(b2)), nil
}

// TextSimilarity blends the difflib line ratio with token Jaccard.
func TextSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	m := difflib.NewMatcher(difflib.SplitLines(a), difflib.SplitLines(b))
	return analyzer.ClampScore(ratioWeight*m.Ratio() + jaccardWeight*Jaccard(tokens(a), tokens(b)))
}

// Jaccard is |a ∩ b| / |a ∪ b| over token sets. Two empty sets are equal.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func tokens(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, f := range strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	}) {
		set[strings.ToLower(f)] = struct{}{}
	}
	return set
}

func isText(b []byte) bool {
	return utf8.Valid(b) && bytes.IndexByte(b, 0) < 0
}

func readFile(f *zip.File, limit int64) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", f.Name, err)
	}
	defer rc.Close()
	b, err := io.ReadAll(io.LimitReader(rc, limit))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.Name, err)
	}
	return b, nil
}

// index maps cleaned paths to files, dropping directories, OS metadata and
// a single top-level folder shared by every entry.
func index(r *zip.Reader) map[string]entry {
	out := make(map[string]entry)
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		p := strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(f.Name, "\\", "/")), "/")
		if isMetadata(p) {
			continue
		}
		out[p] = entry{file: f, size: int64(f.UncompressedSize64)}
	}
	return stripWrapper(out)
}

func stripWrapper(files map[string]entry) map[string]entry {
	root := ""
	for p := range files {
		i := strings.IndexByte(p, '/')
		if i < 0 {
			return files
		}
		if root == "" {
			root = p[:i+1]
		} else if !strings.HasPrefix(p, root) {
			return files
		}
	}
	if root == "" {
		return files
	}
	out := make(map[string]entry, len(files))
	for p, e := range files {
		out[strings.TrimPrefix(p, root)] = e
	}
	return out
}

func isMetadata(p string) bool {
	base := path.Base(p)
	return strings.HasPrefix(p, "__MACOSX/") || base == ".DS_Store" || base == "Thumbs.db"
}

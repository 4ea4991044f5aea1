package main

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mygeslike/api/internal/analyzer"
)

func writeZip(t *testing.T, name string, files map[string]string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	f, err := os.Create(p)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for n, content := range files {
		w, err := zw.Create(n)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return p
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCompareJSON(t *testing.T) {
	src := map[string]string{"main.go": "package main\n\nfunc main() {}\n"}
	a := writeZip(t, "a.zip", src)
	b := writeZip(t, "b.zip", src)

	out, err := run(t, "compare", "--archive1", a, "--archive2", b, "--format", "json",
		"--timeout", "30", "--workers", "4", "--threshold", "0.7")
	require.NoError(t, err)

	var res analyzer.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Success)
	assert.InDelta(t, 1.0, res.GlobalSimilarity, 1e-9)
	assert.True(t, res.IsSuspicious)
	assert.Equal(t, 1, res.Summary.CommonFiles)
}

func TestCompareText(t *testing.T) {
	a := writeZip(t, "a.zip", map[string]string{"a.txt": "alpha"})
	b := writeZip(t, "b.zip", map[string]string{"b.txt": "beta"})

	out, err := run(t, "compare", "--archive1", a, "--archive2", b, "--format", "text")
	require.NoError(t, err)
	assert.Contains(t, out, "similarity: 0.0000")
	assert.Contains(t, out, "suspicious: false")
	assert.Contains(t, out, "unique to archive1: 1")
}

func TestCompareUnreadableArchive(t *testing.T) {
	a := writeZip(t, "a.zip", map[string]string{"a.txt": "alpha"})
	missing := filepath.Join(t.TempDir(), "missing.zip")

	out, err := run(t, "compare", "--archive1", a, "--archive2", missing)
	assert.ErrorIs(t, err, errReported)

	var res analyzer.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.False(t, res.Success)
	assert.Equal(t, errorTypeArchive, res.ErrorType)
	assert.NotEmpty(t, res.Error)
}

func TestCompareRejectsBadFlags(t *testing.T) {
	a := writeZip(t, "a.zip", map[string]string{"a.txt": "alpha"})

	_, err := run(t, "compare", "--archive1", a, "--archive2", a, "--format", "xml")
	assert.ErrorContains(t, err, "unknown format")

	_, err = run(t, "compare", "--archive1", a, "--archive2", a, "--threshold", "1.5")
	assert.ErrorContains(t, err, "threshold")

	_, err = run(t, "compare", "--archive1", a)
	assert.Error(t, err)
}

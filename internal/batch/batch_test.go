package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mscfb "github.com/asalih/go-mscfb-scan"
	"github.com/asalih/go-mscfb-scan/internal/cfbtest"
	"github.com/asalih/go-mscfb-scan/scan"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o600))
}

func reportBytes() []byte {
	return cfbtest.Build(
		cfbtest.Storage("Embedding 1",
			cfbtest.Stream("\x01Ole10Native", []byte("hello world!")),
			cfbtest.Stream("\x01CompObj", make([]byte, 76)),
		),
	).Bytes
}

func testOptions() Options {
	return Options{
		Validation: mscfb.ValidationPermissive,
		Match:      scan.NameContains(scan.DefaultMarker),
		Workers:    2,
		Logger:     zerolog.Nop(),
	}
}

func TestFindPaths(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.rpt"), nil)
	writeFile(t, filepath.Join(dir, "b.RPT"), nil)
	writeFile(t, filepath.Join(dir, "sub", "c.rpt"), nil)
	writeFile(t, filepath.Join(dir, "notes.txt"), nil)

	t.Chdir(dir)

	t.Run("recursive", func(t *testing.T) {
		paths, err := FindPaths("-r")
		require.NoError(t, err)
		assert.Equal(t, []string{"a.rpt", "b.RPT", filepath.Join("sub", "c.rpt")}, paths)

		paths, err = FindPaths("-R")
		require.NoError(t, err)
		assert.Len(t, paths, 3)
	})

	t.Run("wildcard", func(t *testing.T) {
		paths, err := FindPaths("*.rpt")
		require.NoError(t, err)
		assert.Equal(t, []string{"a.rpt"}, paths)

		paths, err = FindPaths(filepath.Join("sub", "*"))
		require.NoError(t, err)
		assert.Equal(t, []string{filepath.Join("sub", "c.rpt")}, paths)
	})

	t.Run("wildcard without match", func(t *testing.T) {
		_, err := FindPaths("*.doc")
		assert.ErrorIs(t, err, ErrNoInput)
	})

	t.Run("single file is not checked", func(t *testing.T) {
		paths, err := FindPaths("missing.rpt")
		require.NoError(t, err)
		assert.Equal(t, []string{"missing.rpt"}, paths)
	})
}

func TestFindPaths_RecursiveEmpty(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := FindPaths(RecursiveInput)
	assert.ErrorIs(t, err, ErrNoInput)
}

func TestScanFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "report.rpt")
	writeFile(t, path, reportBytes())

	res := ScanFile(path, testOptions())

	require.False(t, res.Failed(), "%v", res.Error())
	require.Len(t, res.Records, 1)
	assert.Equal(t, "\x01Ole10Native", res.Records[0].Name)
	assert.Equal(t, uint64(12), res.Records[0].Size)
	assert.Equal(t, "/Embedding 1/\x01Ole10Native", res.Records[0].Path)
}

func TestScanFile_NotCFB(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "plain.rpt")
	writeFile(t, path, make([]byte, 1024))

	res := ScanFile(path, testOptions())

	assert.True(t, res.Failed())
	assert.ErrorIs(t, res.Err, mscfb.ErrorInvalidCFB)
	assert.ErrorIs(t, res.Error(), mscfb.ErrorInvalidCFB)
	assert.Empty(t, res.Records)
}

func TestProcess(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"c.rpt", "a.rpt", "b.rpt"} {
		path := filepath.Join(dir, name)
		writeFile(t, path, reportBytes())
		paths = append(paths, path)
	}

	var mu sync.Mutex
	handled := []string{}
	opts := testOptions()
	opts.Handle = func(res Result) error {
		mu.Lock()
		defer mu.Unlock()
		handled = append(handled, res.Path)
		return nil
	}

	results, err := Process(context.Background(), paths, opts)
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, filepath.Join(dir, "a.rpt"), results[0].Path)
	assert.Equal(t, filepath.Join(dir, "b.rpt"), results[1].Path)
	assert.Equal(t, filepath.Join(dir, "c.rpt"), results[2].Path)
	for _, res := range results {
		assert.Len(t, res.Records, 1)
	}
	assert.ElementsMatch(t, paths, handled)
}

func TestProcess_SingleWorkerKeepsOrder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"a.rpt", "b.rpt", "c.rpt"} {
		path := filepath.Join(dir, name)
		writeFile(t, path, reportBytes())
		paths = append(paths, path)
	}

	handled := []string{}
	opts := testOptions()
	opts.Workers = 1
	opts.Handle = func(res Result) error {
		handled = append(handled, res.Path)
		return nil
	}

	_, err := Process(context.Background(), paths, opts)
	require.NoError(t, err)
	assert.Equal(t, paths, handled)
}

func TestProcess_FailureStopsBatch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.rpt")
	writeFile(t, bad, []byte("not a compound file"))

	opts := testOptions()
	opts.Workers = 1

	_, err := Process(context.Background(), []string{bad}, opts)
	require.Error(t, err)
	assert.ErrorIs(t, err, mscfb.ErrorInvalidCFB)
	assert.Contains(t, err.Error(), bad)
}

func TestProcess_IgnoreErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := filepath.Join(dir, "good.rpt")
	bad := filepath.Join(dir, "bad.rpt")
	writeFile(t, good, reportBytes())
	writeFile(t, bad, []byte("not a compound file"))

	handled := []string{}
	opts := testOptions()
	opts.Workers = 1
	opts.IgnoreErrors = true
	opts.Handle = func(res Result) error {
		handled = append(handled, res.Path)
		return nil
	}

	results, err := Process(context.Background(), []string{bad, good}, opts)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, bad, results[0].Path)
	assert.True(t, results[0].Failed())
	assert.Equal(t, good, results[1].Path)
	assert.False(t, results[1].Failed())
	assert.Equal(t, []string{good}, handled, "files that could not be opened are not handled")
}

func TestProcess_HandlerError(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "a.rpt")
	writeFile(t, path, reportBytes())

	errWrite := errors.New("disk full")
	opts := testOptions()
	opts.Handle = func(Result) error { return errWrite }

	_, err := Process(context.Background(), []string{path}, opts)
	assert.ErrorIs(t, err, errWrite)
}

func TestProcess_CanceledContext(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "a.rpt")
	writeFile(t, path, reportBytes())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := Process(ctx, []string{path}, testOptions())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}

func TestExists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "a.rpt")
	writeFile(t, path, nil)

	assert.True(t, Exists(path))
	assert.False(t, Exists(dir))
	assert.False(t, Exists(filepath.Join(dir, "missing.rpt")))
}

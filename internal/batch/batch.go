// Package batch scans many compound files for embedded objects in parallel.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	mscfb "github.com/asalih/go-mscfb-scan"
	"github.com/asalih/go-mscfb-scan/scan"
)

// RecursiveInput selects every *.rpt file below the working directory.
const RecursiveInput = "-r"

const reportExt = ".rpt"

// ErrNoInput is returned by FindPaths when nothing matched.
var ErrNoInput = errors.New("no input files")

// FindPaths expands an input argument into file paths. RecursiveInput walks
// the working directory for *.rpt files, an argument containing '*' or '?' is
// a glob, anything else is a single path returned as is.
func FindPaths(input string) ([]string, error) {
	switch {
	case strings.EqualFold(input, RecursiveInput):
		return findRecursive(".")
	case strings.ContainsAny(input, "*?"):
		paths, err := filepath.Glob(input)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", input, err)
		}
		if len(paths) == 0 {
			return nil, fmt.Errorf("%w matched %s", ErrNoInput, input)
		}
		sort.Strings(paths)
		return paths, nil
	default:
		return []string{input}, nil
	}
}

func findRecursive(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), reportExt) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no *%s files found recursively in %s", ErrNoInput, reportExt, root)
	}
	sort.Strings(paths)
	return paths, nil
}

// Result is the outcome for one file.
type Result struct {
	Path    string
	Records []scan.Record
	// EntryErrors holds per-stream failures; Records still lists the rest.
	EntryErrors []error
	// Err is set when the file could not be opened or traversed.
	Err error
}

// Failed reports whether anything went wrong for this file.
func (r Result) Failed() bool {
	return r.Err != nil || len(r.EntryErrors) > 0
}

// Error combines the file failure and per-stream failures.
func (r Result) Error() error {
	if !r.Failed() {
		return nil
	}
	return fmt.Errorf("%s: %w", r.Path, errors.Join(append([]error{r.Err}, r.EntryErrors...)...))
}

// Handler receives each result from the worker that produced it.
type Handler func(Result) error

type Options struct {
	Validation   mscfb.Validation
	Match        scan.Predicate
	Workers      int
	IgnoreErrors bool
	Logger       zerolog.Logger
	// Handle is optional. With more than one worker it is called concurrently.
	Handle Handler
}

// ScanFile opens path and collects its embedded object records.
func ScanFile(path string, opts Options) Result {
	res := Result{Path: path}

	cf, err := mscfb.Open(path, mscfb.WithValidation(opts.Validation))
	if err != nil {
		res.Err = err
		return res
	}
	defer cf.Close()

	logger := opts.Logger.With().Str("file", path).Logger()
	for rec, err := range scan.ScanEmbeddedObjects(cf, opts.Match, scan.WithLogger(logger)) {
		var entryErr *scan.EntryError
		switch {
		case err == nil:
			res.Records = append(res.Records, rec)
		case errors.As(err, &entryErr):
			res.EntryErrors = append(res.EntryErrors, err)
		default:
			res.Err = err
		}
	}

	return res
}

// Process scans paths with at most opts.Workers files open at once and
// returns the results sorted by path. Unless IgnoreErrors is set the first
// failed file cancels the remaining work and its error is returned.
func Process(ctx context.Context, paths []string, opts Options) ([]Result, error) {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	results := xsync.NewMap[string, Result]()
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)

	for _, path := range paths {
		if egCtx.Err() != nil {
			break
		}
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}

			opts.Logger.Debug().Str("file", path).Msg("scanning")
			res := ScanFile(path, opts)
			results.Store(path, res)

			if res.Failed() {
				if !opts.IgnoreErrors {
					return res.Error()
				}
				opts.Logger.Warn().Err(res.Error()).Msg("ignoring failed file")
				if res.Err != nil {
					return nil
				}
			}

			if opts.Handle != nil {
				if err := opts.Handle(res); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
			}
			return nil
		})
	}

	err := eg.Wait()
	if err == nil {
		err = ctx.Err()
	}

	out := make([]Result, 0, results.Size())
	results.Range(func(_ string, res Result) bool {
		out = append(out, res)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })

	return out, err
}

// Exists reports whether path names a regular file.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

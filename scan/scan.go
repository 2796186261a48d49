// Package scan finds embedded OLE object streams in a compound file and
// reports their size and content digests.
package scan

import (
	"crypto/md5"
	"encoding/base64"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/opencontainers/go-digest"
	"github.com/rs/zerolog"

	mscfb "github.com/asalih/go-mscfb-scan"
)

// DefaultMarker is the substring that flags embedded object streams.
const DefaultMarker = "Ole"

// Container is the part of *mscfb.CompoundFile the scanner needs.
type Container interface {
	VisitEntries(fn mscfb.VisitFunc, recursive bool) error
	ReadStream(entry *mscfb.StreamEntry) ([]byte, error)
}

// Predicate selects stream names to report.
type Predicate func(name string) bool

// NameContains matches names containing marker. The match is case-sensitive
// and unanchored.
func NameContains(marker string) Predicate {
	return func(name string) bool {
		return strings.Contains(name, marker)
	}
}

// Record describes one matching stream.
type Record struct {
	Name string
	Path string
	Size uint64
	// MD5 is the base64 encoded MD5 of the content. It identifies content
	// and carries no integrity guarantee.
	MD5 string
	// Digest is the sha256 digest of the content.
	Digest digest.Digest
}

// EntryError reports a matching stream that could not be read. The scan
// continues after it.
type EntryError struct {
	Path string
	Err  error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("scan %s: %v", e.Path, e.Err)
}

func (e *EntryError) Unwrap() error {
	return e.Err
}

type options struct {
	logger zerolog.Logger
}

type Option func(*options)

// WithLogger sets the logger used for per-entry diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

var errStopped = errors.New("scan stopped by consumer")

// ScanEmbeddedObjects walks c recursively and yields a Record for every
// stream whose name satisfies match. The sequence is lazy and single-pass:
// nothing is read until it is ranged over, and breaking out of the loop stops
// the walk.
//
// A stream that cannot be read yields a Record with only Name and Path set
// and an *EntryError; the scan then continues. A failure of the walk itself
// is yielded with an empty Record and ends the sequence.
func ScanEmbeddedObjects(c Container, match Predicate, opts ...Option) iter.Seq2[Record, error] {
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if match == nil {
		match = NameContains(DefaultMarker)
	}

	return func(yield func(Record, error) bool) {
		err := c.VisitEntries(func(entry mscfb.Entry) error {
			stream, ok := entry.(*mscfb.StreamEntry)
			if !ok || !match(stream.Name) {
				return nil
			}

			record, err := digestStream(c, stream)
			if err != nil {
				o.logger.Debug().Err(err).Str("path", stream.Path).Msg("Skipping unreadable stream")
				err = &EntryError{Path: stream.Path, Err: err}
			} else {
				o.logger.Debug().
					Str("path", record.Path).
					Uint64("size", record.Size).
					Str("md5", record.MD5).
					Msg("Embedded object found")
			}

			if !yield(record, err) {
				return errStopped
			}
			return nil
		}, true)

		if err != nil && !errors.Is(err, errStopped) {
			yield(Record{}, err)
		}
	}
}

func digestStream(c Container, stream *mscfb.StreamEntry) (Record, error) {
	record := Record{
		Name: stream.Name,
		Path: stream.Path,
	}

	data, err := c.ReadStream(stream)
	if err != nil {
		return record, err
	}

	sum := md5.Sum(data)
	record.Size = uint64(len(data))
	record.MD5 = base64.StdEncoding.EncodeToString(sum[:])
	record.Digest = digest.FromBytes(data)

	return record, nil
}

// Collect drains seq, separating records from errors. Records of entries
// that failed are not included.
func Collect(seq iter.Seq2[Record, error]) ([]Record, []error) {
	records := make([]Record, 0)
	var errs []error
	for record, err := range seq {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		records = append(records, record)
	}
	return records, errs
}

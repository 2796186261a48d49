package mscfb

import (
	"errors"
	"fmt"
)

var (
	// ErrorInvalidCFB matches every FormatError and CorruptContainerError.
	ErrorInvalidCFB = errors.New("invalid cfb file")

	// ErrClosed is wrapped in an IoError when a closed CompoundFile is read.
	ErrClosed = errors.New("compound file is closed")

	// SkipStorage can be returned from a VisitFunc to skip the children of
	// the storage being visited. It is never returned by VisitEntries.
	SkipStorage = errors.New("skip this storage")
)

// FormatError reports that the input is not a recognizable compound file:
// bad signature, unsupported version or an impossible fixed layout value.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return "mscfb: format error: " + e.Reason
}

func (e *FormatError) Is(target error) bool {
	return target == ErrorInvalidCFB
}

// CorruptContainerError reports that the header parsed but the FAT, mini FAT
// or directory is inconsistent (dangling sector, cycle, size mismatch).
type CorruptContainerError struct {
	Reason string
}

func (e *CorruptContainerError) Error() string {
	return "mscfb: corrupt container: " + e.Reason
}

func (e *CorruptContainerError) Is(target error) bool {
	return target == ErrorInvalidCFB
}

// IoError wraps a failure of the underlying byte source.
type IoError struct {
	Op  string
	Err error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("mscfb: %s: %v", e.Op, e.Err)
}

func (e *IoError) Unwrap() error {
	return e.Err
}

func formatErrorf(format string, args ...interface{}) error {
	return &FormatError{Reason: fmt.Sprintf(format, args...)}
}

func corruptf(format string, args ...interface{}) error {
	return &CorruptContainerError{Reason: fmt.Sprintf(format, args...)}
}

// NotFoundError is returned by Lookup and OpenStream for a missing path, and
// when an entry cannot be read through this file. Reason is empty for a plain
// missing path.
type NotFoundError struct {
	Path   string
	Reason string
}

func (e *NotFoundError) Error() string {
	switch {
	case e.Reason == "":
	case e.Path == "":
		return "mscfb: " + e.Reason
	default:
		return "mscfb: " + e.Path + ": " + e.Reason
	}
	return "mscfb: no such entry: " + e.Path
}

// Package mscfb reads Compound File Binary containers (OLE structured
// storage): the header, FAT, DIFAT and mini FAT, the directory tree of
// storages and streams, and stream contents.
//
// A CompoundFile is not safe for concurrent use. Open one per goroutine.
package mscfb

import (
	"errors"
	"io"
	"os"
)

type CompoundFile struct {
	Header    *Header
	Allocator *Allocator
	Directory *Directory
	MiniAlloc *MiniAlloc

	reader io.ReaderAt
	closer io.Closer
	closed bool
}

type options struct {
	validation Validation
}

// Option configures Open, OpenBytes and New.
type Option func(*options)

// WithValidation selects strict or permissive checking. The default is
// ValidationPermissive.
func WithValidation(v Validation) Option {
	return func(o *options) {
		o.validation = v
	}
}

// Open opens the compound file at path. The file is closed by Close.
func Open(path string, opts ...Option) (*CompoundFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &IoError{Op: "open", Err: err}
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, &IoError{Op: "stat", Err: err}
	}

	cf, err := New(f, info.Size(), opts...)
	if err != nil {
		f.Close()
		return nil, err
	}

	cf.closer = f
	return cf, nil
}

// OpenBytes parses an in-memory compound file. buf must not be modified
// while the CompoundFile is in use.
func OpenBytes(buf []byte, opts ...Option) (*CompoundFile, error) {
	return New(bytesReaderAt(buf), int64(len(buf)), opts...)
}

type bytesReaderAt []byte

func (b bytesReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(b)) {
		return 0, io.EOF
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// New parses a compound file of the given size read through reader.
func New(reader io.ReaderAt, size int64, opts ...Option) (*CompoundFile, error) {
	o := options{validation: ValidationPermissive}
	for _, opt := range opts {
		opt(&o)
	}
	validation := o.validation

	if size < int64(HEADER_LEN) {
		return nil, formatErrorf("file is %v bytes, smaller than the %v byte header", size, HEADER_LEN)
	}

	headerBuf := make([]byte, HEADER_LEN)
	if _, err := reader.ReadAt(headerBuf, 0); err != nil && !errors.Is(err, io.EOF) {
		return nil, &IoError{Op: "read header", Err: err}
	}

	header, err := parseHeader(headerBuf, validation)
	if err != nil {
		return nil, err
	}

	sectorLen := header.Version.SectorLen()
	if size > (int64(MAX_REGULAR_SECTOR)+1)*int64(sectorLen) {
		return nil, formatErrorf("file is too large: %v bytes", size)
	}

	if size < int64(sectorLen) {
		return nil, formatErrorf("file is too small: %v bytes for %v byte sectors", size, sectorLen)
	}

	sectors := NewSectors(header.Version, size, reader)

	if header.FirstDirSector > MAX_REGULAR_SECTOR || header.FirstDirSector >= sectors.NumSectors {
		return nil, corruptf("directory start sector %v is beyond the %v sectors in the file",
			header.FirstDirSector, sectors.NumSectors)
	}

	difatSectorIds, difat, err := readDifat(header, sectors, validation)
	if err != nil {
		return nil, err
	}

	fat, err := readFat(difat, sectors, validation)
	if err != nil {
		return nil, err
	}

	allocator, err := NewAllocator(sectors, difatSectorIds, difat, fat, validation)
	if err != nil {
		return nil, err
	}

	dirEntries, err := readDirEntries(allocator, header, validation)
	if err != nil {
		return nil, err
	}

	directory, err := NewDirectory(dirEntries, header.FirstDirSector, header.MiniStreamCutoff, validation)
	if err != nil {
		return nil, err
	}

	minifat, err := readMinifat(allocator, header, validation)
	if err != nil {
		return nil, err
	}

	miniAlloc, err := NewMiniAlloc(allocator, directory.RootDirEntry(), minifat, header.FirstMinifatSector)
	if err != nil {
		return nil, err
	}

	compoundFile := CompoundFile{
		Header:    header,
		Allocator: allocator,
		Directory: directory,
		MiniAlloc: miniAlloc,

		reader: reader,
	}

	return &compoundFile, nil
}

func readDirEntries(allocator *Allocator, header *Header, validation Validation) ([]*DirEntry, error) {
	sectorIds, err := allocator.ChainIds(header.FirstDirSector)
	if err != nil {
		return nil, err
	}

	if validation.IsStrict() && header.Version == V4 && header.NumDirSectors != uint32(len(sectorIds)) {
		return nil, corruptf("incorrect number of directory sectors (header says %v, FAT says %v)",
			header.NumDirSectors, len(sectorIds))
	}

	dirEntries := make([]*DirEntry, 0, len(sectorIds)*header.Version.DirEntriesPerSector())
	for _, sectorId := range sectorIds {
		buf, err := allocator.Sectors.ReadSector(sectorId)
		if err != nil {
			return nil, err
		}

		for i := 0; i < header.Version.DirEntriesPerSector(); i++ {
			entry, err := ReadDirEntry(buf[i*DIR_ENTRY_LEN:(i+1)*DIR_ENTRY_LEN], header.Version, validation)
			if err != nil {
				return nil, err
			}

			dirEntries = append(dirEntries, entry)
		}
	}

	return dirEntries, nil
}

// Close releases the underlying file. It is safe to call more than once.
func (c *CompoundFile) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	if c.closer != nil {
		if err := c.closer.Close(); err != nil {
			return &IoError{Op: "close", Err: err}
		}
	}
	return nil
}

func (c *CompoundFile) RootEntry() *StorageEntry {
	return c.Directory.Root()
}

// VisitEntries calls fn for every entry below the root, or only for the
// root's direct children when recursive is false. Storages are visited before
// their children and siblings in stored order. An entry reached twice fails
// the walk with a CorruptContainerError.
func (c *CompoundFile) VisitEntries(fn VisitFunc, recursive bool) error {
	if c.closed {
		return &IoError{Op: "visit entries", Err: ErrClosed}
	}
	return c.Directory.Visit(fn, recursive)
}

// Lookup resolves a slash separated path such as "/ObjectPool/_1/\x01Ole".
func (c *CompoundFile) Lookup(path string) (Entry, error) {
	return c.Directory.Lookup(path)
}

// ReadStream returns a copy of the stream's content, exactly entry.Size bytes.
func (c *CompoundFile) ReadStream(entry *StreamEntry) ([]byte, error) {
	chain, err := c.streamChain(entry)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, entry.Size)
	if entry.Size == 0 {
		return buf, nil
	}

	if _, err := chain.ReadAt(buf, 0); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, corruptf("stream %q ends before its declared size %v", entry.Path, entry.Size)
		}
		return nil, err
	}

	return buf, nil
}

func (c *CompoundFile) streamChain(entry *StreamEntry) (*Chain, error) {
	if c.closed {
		return nil, &IoError{Op: "read stream", Err: ErrClosed}
	}
	if entry == nil {
		return nil, &NotFoundError{Reason: "nil stream entry"}
	}
	if c.Directory.Entry(entry.ID) != Entry(entry) {
		return nil, &NotFoundError{Path: entry.Path, Reason: "entry belongs to another file"}
	}

	if entry.Size == 0 {
		return NewChain(c.Allocator.Sectors, nil), nil
	}

	var chain *Chain
	var err error
	if entry.UsesMiniStream {
		chain, err = c.MiniAlloc.OpenMiniChain(entry.StartSector)
	} else {
		chain, err = c.Allocator.OpenChain(entry.StartSector)
	}
	if err != nil {
		return nil, err
	}

	if chain.Len() < entry.Size {
		return nil, corruptf("stream %q declares %v bytes, but its chain holds only %v",
			entry.Path, entry.Size, chain.Len())
	}

	return chain, nil
}

// OpenStream returns a reader over the stream at path.
func (c *CompoundFile) OpenStream(path string) (*Stream, error) {
	entry, err := c.Lookup(path)
	if err != nil {
		return nil, err
	}

	stream, ok := entry.(*StreamEntry)
	if !ok {
		return nil, &NotFoundError{Path: path, Reason: "not a stream"}
	}

	chain, err := c.streamChain(stream)
	if err != nil {
		return nil, err
	}

	return newStream(stream, chain), nil
}

package mscfb

import (
	"io"
)

// Stream reads one stream of a compound file. It implements io.Reader,
// io.Seeker and io.ReaderAt and is limited to the declared stream size.
type Stream struct {
	Entry *StreamEntry

	section *io.SectionReader
}

func newStream(entry *StreamEntry, chain *Chain) *Stream {
	return &Stream{
		Entry:   entry,
		section: io.NewSectionReader(chain, 0, int64(entry.Size)),
	}
}

func (s *Stream) Len() uint64 {
	return s.Entry.Size
}

func (s *Stream) Read(p []byte) (int, error) {
	return s.section.Read(p)
}

func (s *Stream) ReadAt(p []byte, off int64) (int, error) {
	return s.section.ReadAt(p, off)
}

func (s *Stream) Seek(offset int64, whence int) (int64, error) {
	return s.section.Seek(offset, whence)
}

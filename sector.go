package mscfb

import (
	"io"
)

// Sectors addresses the regular sectors of a compound file. Sector n starts
// at byte (n+1)*SectorLen; the first sector-sized block holds the header.
type Sectors struct {
	Version    Version
	NumSectors uint32

	inner io.ReaderAt
	size  int64
}

func NewSectors(v Version, bufferLength int64, reader io.ReaderAt) *Sectors {
	sectorLen := int64(v.SectorLen())
	numSectors := ((bufferLength + sectorLen - 1) / sectorLen) - 1
	if numSectors < 0 {
		numSectors = 0
	}

	return &Sectors{
		Version:    v,
		NumSectors: uint32(numSectors),
		inner:      reader,
		size:       bufferLength,
	}
}

func (s *Sectors) SectorLen() int {
	return s.Version.SectorLen()
}

// ReadSector returns a fresh copy of one full sector. A final sector cut
// short by the end of the file is zero-filled.
func (s *Sectors) ReadSector(sectorId uint32) ([]byte, error) {
	buf := make([]byte, s.SectorLen())
	if _, err := s.ReadAt(sectorId, 0, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadAt reads len(p) bytes at offset within the sector. The read must not
// cross the sector boundary.
func (s *Sectors) ReadAt(sectorId uint32, offset int64, p []byte) (int, error) {
	if sectorId >= s.NumSectors {
		return 0, corruptf("tried to read sector %v, but sector count is only %v", sectorId, s.NumSectors)
	}
	if offset < 0 || offset+int64(len(p)) > int64(s.SectorLen()) {
		return 0, corruptf("read of %v bytes at offset %v overruns sector %v", len(p), offset, sectorId)
	}

	pos := int64(sectorId+1)*int64(s.SectorLen()) + offset
	n, err := s.inner.ReadAt(p, pos)
	if err == io.EOF && pos+int64(n) >= s.size {
		for i := n; i < len(p); i++ {
			p[i] = 0
		}
		return len(p), nil
	}
	if err != nil {
		return n, &IoError{Op: "read sector", Err: err}
	}

	return n, nil
}

package mscfb

import (
	"fmt"
	"io"
)

// sectorSource is implemented by Sectors (regular sectors) and MiniAlloc
// (mini sectors inside the mini stream).
type sectorSource interface {
	SectorLen() int
	ReadAt(sectorId uint32, offset int64, p []byte) (int, error)
}

// Chain presents a resolved sector chain as one contiguous byte range. It has
// no cursor; Stream wraps it in an io.SectionReader.
type Chain struct {
	source    sectorSource
	SectorIds []uint32
}

func NewChain(source sectorSource, sectorIds []uint32) *Chain {
	return &Chain{
		source:    source,
		SectorIds: sectorIds,
	}
}

func (c *Chain) NumSectors() uint32 {
	return uint32(len(c.SectorIds))
}

func (c *Chain) Len() uint64 {
	return uint64(c.source.SectorLen()) * uint64(len(c.SectorIds))
}

func (c *Chain) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("invalid offset %v", off)
	}

	total := c.Len()
	sectorLen := uint64(c.source.SectorLen())
	pos := uint64(off)
	read := 0

	for read < len(p) {
		if pos >= total {
			return read, io.EOF
		}

		sectorId := c.SectorIds[pos/sectorLen]
		within := pos % sectorLen
		n := min(uint64(len(p)-read), sectorLen-within)

		m, err := c.source.ReadAt(sectorId, int64(within), p[read:read+int(n)])
		read += m
		pos += uint64(m)
		if err != nil {
			return read, err
		}
	}

	return read, nil
}

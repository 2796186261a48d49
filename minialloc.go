package mscfb

import (
	"encoding/binary"
	"io"
)

// MiniAlloc holds the mini FAT and the mini stream it indexes. The mini
// stream is a regular chain owned by the root entry.
type MiniAlloc struct {
	Minifat            []uint32
	MinifatStartSector uint32

	miniStream     *Chain
	miniStreamSize uint64
}

func readMinifat(alloc *Allocator, h *Header, validation Validation) ([]uint32, error) {
	if h.FirstMinifatSector == END_OF_CHAIN {
		return nil, nil
	}

	chain, err := alloc.OpenChain(h.FirstMinifatSector)
	if err != nil {
		return nil, err
	}

	if validation.IsStrict() && h.NumMinifatSectors != chain.NumSectors() {
		return nil, corruptf("incorrect number of MiniFAT sectors (header says %v, FAT says %v)",
			h.NumMinifatSectors, chain.NumSectors())
	}

	raw := make([]byte, chain.Len())
	if _, err := io.ReadFull(io.NewSectionReader(chain, 0, int64(chain.Len())), raw); err != nil {
		return nil, err
	}

	minifat := make([]uint32, len(raw)/4)
	for i := range minifat {
		minifat[i] = binary.LittleEndian.Uint32(raw[4*i:])
	}

	for len(minifat) > 0 && minifat[len(minifat)-1] == FREE_SECTOR {
		minifat = minifat[:len(minifat)-1]
	}

	return minifat, nil
}

func NewMiniAlloc(alloc *Allocator, root *DirEntry, minifat []uint32, minifatStartSector uint32) (*MiniAlloc, error) {
	miniStream := NewChain(alloc.Sectors, nil)
	if root.StreamSize > 0 {
		var err error
		miniStream, err = alloc.OpenChain(root.StartingSector)
		if err != nil {
			return nil, err
		}
		if miniStream.Len() < root.StreamSize {
			return nil, corruptf("mini stream is %v bytes, but its chain holds only %v", root.StreamSize, miniStream.Len())
		}
	}

	mini := MiniAlloc{
		Minifat:            minifat,
		MinifatStartSector: minifatStartSector,
		miniStream:         miniStream,
		miniStreamSize:     root.StreamSize,
	}

	err := mini.Validate(alloc.Validation)
	if err != nil {
		return nil, err
	}

	return &mini, nil
}

func (a *MiniAlloc) Validate(validation Validation) error {
	rootStreamMiniSectors := a.miniStreamSize / uint64(MINI_SECTOR_LEN)
	if rootStreamMiniSectors < uint64(len(a.Minifat)) {
		if validation.IsStrict() {
			return corruptf("miniFAT has %v entries, but root stream has only %v mini sectors",
				len(a.Minifat), rootStreamMiniSectors)
		}
		// Chains reaching past the mini stream still fail in ReadAt.
	}

	pointees := make(map[uint32]bool)
	for miniSectorIdx, miniSector := range a.Minifat {
		if miniSector <= MAX_REGULAR_SECTOR {
			if miniSector >= uint32(len(a.Minifat)) {
				return corruptf("miniFAT[%v] points to mini sector %v, but there are only %v mini sectors",
					miniSectorIdx, miniSector, len(a.Minifat))
			}

			if pointees[miniSector] {
				return corruptf("mini sector %v pointed to twice", miniSector)
			}

			pointees[miniSector] = true
		}
	}

	return nil
}

func (a *MiniAlloc) SectorLen() int {
	return MINI_SECTOR_LEN
}

func (a *MiniAlloc) Next(index uint32) (uint32, error) {
	if index >= uint32(len(a.Minifat)) {
		return 0, corruptf("mini sector %v is outside the miniFAT (%v entries)", index, len(a.Minifat))
	}

	nextId := a.Minifat[index]
	if nextId != END_OF_CHAIN && (nextId > MAX_REGULAR_SECTOR || nextId >= uint32(len(a.Minifat))) {
		return 0, corruptf("miniFAT entry %v has invalid next index %#x", index, nextId)
	}

	return nextId, nil
}

func (a *MiniAlloc) ChainIds(start uint32) ([]uint32, error) {
	return walkChain(start, uint32(len(a.Minifat)), a.Next)
}

func (a *MiniAlloc) OpenMiniChain(start uint32) (*Chain, error) {
	ids, err := a.ChainIds(start)
	if err != nil {
		return nil, err
	}
	return NewChain(a, ids), nil
}

// ReadAt reads within one mini sector of the mini stream.
func (a *MiniAlloc) ReadAt(sectorId uint32, offset int64, p []byte) (int, error) {
	if offset < 0 || offset+int64(len(p)) > int64(MINI_SECTOR_LEN) {
		return 0, corruptf("read of %v bytes at offset %v overruns mini sector %v", len(p), offset, sectorId)
	}

	pos := uint64(sectorId)*uint64(MINI_SECTOR_LEN) + uint64(offset)
	if pos+uint64(len(p)) > a.miniStreamSize {
		return 0, corruptf("mini sector %v lies beyond the %v byte mini stream", sectorId, a.miniStreamSize)
	}

	n, err := a.miniStream.ReadAt(p, int64(pos))
	if err == io.EOF {
		return n, corruptf("mini sector %v lies beyond the mini stream chain", sectorId)
	}
	return n, err
}

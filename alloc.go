package mscfb

import "encoding/binary"

// Allocator holds the FAT and the sectors that store it.
type Allocator struct {
	Sectors        *Sectors
	DifatSectorIds []uint32
	Difat          []uint32
	Fat            []uint32
	Validation     Validation
}

func NewAllocator(sectors *Sectors, difatSectorIds []uint32, difat []uint32, fat []uint32, validation Validation) (*Allocator, error) {
	alloc := Allocator{
		Sectors:        sectors,
		DifatSectorIds: difatSectorIds,
		Difat:          difat,
		Fat:            fat,
		Validation:     validation,
	}

	err := alloc.Validate()
	if err != nil {
		return nil, err
	}

	return &alloc, nil
}

// readDifat follows the DIFAT sector chain and returns the ids of the DIFAT
// sectors and the full list of FAT sector ids.
func readDifat(h *Header, sectors *Sectors, validation Validation) ([]uint32, []uint32, error) {
	difat := make([]uint32, len(h.InitialDifatEntries))
	copy(difat, h.InitialDifatEntries)

	seen := make(map[uint32]bool)
	difatSectorIds := make([]uint32, 0)
	current := h.FirstDifatSector
	idsPerSector := sectors.Version.IdsPerSector()

	for current != END_OF_CHAIN {
		if current > MAX_REGULAR_SECTOR {
			return nil, nil, corruptf("invalid DIFAT chain entry %#x", current)
		} else if current >= sectors.NumSectors {
			return nil, nil, corruptf("DIFAT chain includes sector index %v, but sector count is %v", current, sectors.NumSectors)
		}

		if seen[current] {
			return nil, nil, corruptf("DIFAT chain includes duplicate sector index %v", current)
		}
		seen[current] = true
		difatSectorIds = append(difatSectorIds, current)

		buf, err := sectors.ReadSector(current)
		if err != nil {
			return nil, nil, err
		}

		for i := 0; i < idsPerSector-1; i++ {
			next := binary.LittleEndian.Uint32(buf[4*i:])
			if next != FREE_SECTOR && next > MAX_REGULAR_SECTOR {
				return nil, nil, corruptf("DIFAT refers to invalid sector index %#x", next)
			}
			difat = append(difat, next)
		}

		current = binary.LittleEndian.Uint32(buf[4*(idsPerSector-1):])
		if current == FREE_SECTOR {
			current = END_OF_CHAIN
		}
	}

	if validation.IsStrict() && h.NumDifatSectors != uint32(len(difatSectorIds)) {
		return nil, nil, corruptf("incorrect DIFAT chain length (header says %v, actual is %v)",
			h.NumDifatSectors, len(difatSectorIds))
	}

	for len(difat) > 0 && difat[len(difat)-1] == FREE_SECTOR {
		difat = difat[:len(difat)-1]
	}

	if validation.IsStrict() && h.NumFatSectors != uint32(len(difat)) {
		return nil, nil, corruptf("incorrect number of FAT sectors (header says %v, DIFAT says %v)",
			h.NumFatSectors, len(difat))
	}

	return difatSectorIds, difat, nil
}

// readFat concatenates the FAT sectors listed by the DIFAT.
func readFat(difat []uint32, sectors *Sectors, validation Validation) ([]uint32, error) {
	idsPerSector := sectors.Version.IdsPerSector()
	fat := make([]uint32, 0, len(difat)*idsPerSector)

	for _, sectorId := range difat {
		if sectorId >= sectors.NumSectors {
			return nil, corruptf("FAT sector index %v out of range (sector count is %v)", sectorId, sectors.NumSectors)
		}

		buf, err := sectors.ReadSector(sectorId)
		if err != nil {
			return nil, err
		}
		for i := 0; i < idsPerSector; i++ {
			fat = append(fat, binary.LittleEndian.Uint32(buf[4*i:]))
		}
	}

	if !validation.IsStrict() {
		for len(fat) > int(sectors.NumSectors) && fat[len(fat)-1] == 0 {
			fat = fat[:len(fat)-1]
		}
	}

	for len(fat) > 0 && fat[len(fat)-1] == FREE_SECTOR {
		fat = fat[:len(fat)-1]
	}

	return fat, nil
}

func (a *Allocator) Next(index uint32) (uint32, error) {
	if index >= uint32(len(a.Fat)) {
		return 0, corruptf("sector %v is outside the FAT (%v entries)", index, len(a.Fat))
	}

	nextId := a.Fat[index]
	if nextId != END_OF_CHAIN && (nextId > MAX_REGULAR_SECTOR || nextId >= uint32(len(a.Fat))) {
		return 0, corruptf("FAT entry %v has invalid next index %#x", index, nextId)
	}

	return nextId, nil
}

// ChainIds resolves the sector chain starting at start.
func (a *Allocator) ChainIds(start uint32) ([]uint32, error) {
	return walkChain(start, uint32(len(a.Fat)), a.Next)
}

// OpenChain returns a reader over the regular sector chain starting at start.
func (a *Allocator) OpenChain(start uint32) (*Chain, error) {
	ids, err := a.ChainIds(start)
	if err != nil {
		return nil, err
	}
	return NewChain(a.Sectors, ids), nil
}

func (a *Allocator) Validate() error {
	if len(a.Fat) > int(a.Sectors.NumSectors) {
		if a.Validation.IsStrict() {
			return corruptf("FAT has %v entries, but file has %v sectors", len(a.Fat), a.Sectors.NumSectors)
		}
		a.Fat = a.Fat[:a.Sectors.NumSectors]
	}

	for _, difatSector := range a.DifatSectorIds {
		if difatSector >= uint32(len(a.Fat)) {
			return corruptf("FAT has %v entries, but DIFAT lists %v as a DIFAT sector",
				len(a.Fat), difatSector)
		}

		if a.Fat[difatSector] != DIFAT_SECTOR {
			if a.Validation.IsStrict() {
				return corruptf("DIFAT sector %v is not marked as such in the FAT", difatSector)
			}
			a.Fat[difatSector] = DIFAT_SECTOR
		}
	}

	for _, fatSector := range a.Difat {
		if fatSector >= uint32(len(a.Fat)) {
			return corruptf("FAT has %v entries, but DIFAT lists %v as a FAT sector",
				len(a.Fat), fatSector)
		}

		if a.Fat[fatSector] != FAT_SECTOR {
			if a.Validation.IsStrict() {
				return corruptf("FAT sector %v is not marked as such in the FAT", fatSector)
			}
			a.Fat[fatSector] = FAT_SECTOR
		}
	}

	pointees := make(map[uint32]bool)
	for fatIdx, next := range a.Fat {
		if next <= MAX_REGULAR_SECTOR {
			if next >= uint32(len(a.Fat)) {
				return corruptf("FAT entry %v points to sector %v, but FAT has only %v entries",
					fatIdx, next, len(a.Fat))
			}
			if pointees[next] {
				return corruptf("FAT entry %v points to sector %v, which is already pointed to by another FAT entry",
					fatIdx, next)
			}
			pointees[next] = true
		} else if next == INVALID_SECTOR && a.Validation.IsStrict() {
			return corruptf("FAT entry %v holds the reserved value %#x", fatIdx, next)
		}
	}

	return nil
}

// walkChain follows next from start until END_OF_CHAIN. It fails on a
// revisited sector and never yields more than limit ids.
func walkChain(start, limit uint32, next func(uint32) (uint32, error)) ([]uint32, error) {
	ids := make([]uint32, 0)
	seen := make(map[uint32]bool)
	current := start

	for current != END_OF_CHAIN {
		if current > MAX_REGULAR_SECTOR || current >= limit {
			return nil, corruptf("chain references sector %#x, but only %v are allocated", current, limit)
		}
		if seen[current] {
			return nil, corruptf("chain contained duplicate sector id %v", current)
		}
		seen[current] = true
		ids = append(ids, current)

		var err error
		current, err = next(current)
		if err != nil {
			return nil, err
		}
	}

	return ids, nil
}

package mscfb

import (
	"bytes"
	"encoding/binary"
)

type Header struct {
	Version            Version
	MinorVersion       uint16
	MiniStreamCutoff   uint32
	NumDirSectors      uint32
	NumFatSectors      uint32
	FirstDirSector     uint32
	FirstMinifatSector uint32
	NumMinifatSectors  uint32
	FirstDifatSector   uint32
	NumDifatSectors    uint32

	InitialDifatEntries []uint32
}

// Byte offsets of the fixed header fields.
const (
	offMinorVersion     = 24
	offMajorVersion     = 26
	offByteOrder        = 28
	offSectorShift      = 30
	offMiniSectorShift  = 32
	offNumDirSectors    = 40
	offNumFatSectors    = 44
	offFirstDirSector   = 48
	offMiniStreamCutoff = 56
	offFirstMinifat     = 60
	offNumMinifat       = 64
	offFirstDifat       = 68
	offNumDifat         = 72
	offInitialDifat     = 76
)

func parseHeader(b []byte, validation Validation) (*Header, error) {
	if len(b) < HEADER_LEN {
		return nil, formatErrorf("header is %v bytes, need %v", len(b), HEADER_LEN)
	}

	if !bytes.Equal(b[:len(MAGIC_NUMBER)], MAGIC_NUMBER) {
		return nil, formatErrorf("invalid signature % x", b[:len(MAGIC_NUMBER)])
	}

	le := binary.LittleEndian

	byteOrderMark := le.Uint16(b[offByteOrder:])
	if byteOrderMark != BYTE_ORDER_MARK {
		return nil, formatErrorf("invalid byte order mark (expected 0x%04X, found 0x%04X)", BYTE_ORDER_MARK, byteOrderMark)
	}

	version, err := VersionNumber(le.Uint16(b[offMajorVersion:]))
	if err != nil {
		return nil, err
	}

	sectorShift := le.Uint16(b[offSectorShift:])
	if sectorShift != version.SectorShift() {
		return nil, formatErrorf("incorrect sector shift for CFB version %v (expected %v, found %v)",
			version, version.SectorShift(), sectorShift)
	}

	miniSectorShift := le.Uint16(b[offMiniSectorShift:])
	if miniSectorShift != MINI_SECTOR_SHIFT {
		return nil, formatErrorf("incorrect mini sector shift (expected %v, found %v)", MINI_SECTOR_SHIFT, miniSectorShift)
	}

	h := &Header{
		Version:            version,
		MinorVersion:       le.Uint16(b[offMinorVersion:]),
		MiniStreamCutoff:   le.Uint32(b[offMiniStreamCutoff:]),
		NumDirSectors:      le.Uint32(b[offNumDirSectors:]),
		NumFatSectors:      le.Uint32(b[offNumFatSectors:]),
		FirstDirSector:     le.Uint32(b[offFirstDirSector:]),
		FirstMinifatSector: le.Uint32(b[offFirstMinifat:]),
		NumMinifatSectors:  le.Uint32(b[offNumMinifat:]),
		FirstDifatSector:   le.Uint32(b[offFirstDifat:]),
		NumDifatSectors:    le.Uint32(b[offNumDifat:]),
	}

	if h.MiniStreamCutoff != MINI_STREAM_CUTOFF {
		if validation.IsStrict() {
			return nil, formatErrorf("incorrect mini stream cutoff (expected %v, found %v)", MINI_STREAM_CUTOFF, h.MiniStreamCutoff)
		}
		h.MiniStreamCutoff = MINI_STREAM_CUTOFF
	}

	// Some CFB implementations use FREE_SECTOR to indicate END_OF_CHAIN.
	if h.FirstDifatSector == FREE_SECTOR {
		h.FirstDifatSector = END_OF_CHAIN
	}
	if h.FirstMinifatSector == FREE_SECTOR {
		h.FirstMinifatSector = END_OF_CHAIN
	}

	h.InitialDifatEntries = make([]uint32, NUM_DIFAT_ENTRIES_IN_HEADER)
	for i := range h.InitialDifatEntries {
		h.InitialDifatEntries[i] = le.Uint32(b[offInitialDifat+4*i:])
	}

	return h, nil
}

package mscfb

import "strconv"

// Version is the major version from the header. It fixes the sector size:
// 512 bytes for V3 and 4096 bytes for V4.
type Version int

const (
	V3 Version = 3
	V4 Version = 4
)

func VersionNumber(v uint16) (Version, error) {
	switch Version(v) {
	case V3, V4:
		return Version(v), nil
	default:
		return 0, formatErrorf("invalid version number: %v", v)
	}
}

func (v Version) String() string {
	return "v" + strconv.Itoa(int(v))
}

// SectorShift is log2 of the sector length: 9 for V3, 12 for V4.
func (v Version) SectorShift() uint16 {
	return uint16(v * 3)
}

func (v Version) SectorLen() int {
	return 1 << v.SectorShift()
}

// StreamLenMask masks the stream size field. V3 writers may leave garbage in
// the high 32 bits.
func (v Version) StreamLenMask() uint64 {
	if v == V3 {
		return 0xffffffff
	}
	return 0xffffffffffffffff
}

func (v Version) DirEntriesPerSector() int {
	return v.SectorLen() / DIR_ENTRY_LEN
}

// IdsPerSector is the number of 32-bit FAT, DIFAT or mini FAT slots in one
// sector.
func (v Version) IdsPerSector() int {
	return v.SectorLen() / 4
}

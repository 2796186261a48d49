package mscfb

// Fixed sizes, in bytes unless noted.
const (
	HEADER_LEN                  int = 512
	DIR_ENTRY_LEN               int = 128
	NUM_DIFAT_ENTRIES_IN_HEADER int = 109 // entries, not bytes
)

// MAGIC_NUMBER opens every compound file.
var MAGIC_NUMBER = []byte{0xd0, 0xcf, 0x11, 0xe0, 0xa1, 0xb1, 0x1a, 0xe1}

// Header values. Streams shorter than MINI_STREAM_CUTOFF live in the mini
// stream; the header may declare another cutoff but only 4096 is accepted.
const (
	BYTE_ORDER_MARK    uint16 = 0xfffe
	MINI_SECTOR_SHIFT  uint16 = 6 // 64-byte mini sectors
	MINI_SECTOR_LEN    int    = 1 << (MINI_SECTOR_SHIFT)
	MINI_STREAM_CUTOFF uint32 = 4096
)

// FAT entry values. Anything up to MAX_REGULAR_SECTOR is a sector id.
const (
	MAX_REGULAR_SECTOR uint32 = 0xfffffffa
	INVALID_SECTOR     uint32 = 0xfffffffb
	DIFAT_SECTOR       uint32 = 0xfffffffc
	FAT_SECTOR         uint32 = 0xfffffffd
	END_OF_CHAIN       uint32 = 0xfffffffe
	FREE_SECTOR        uint32 = 0xffffffff
)

// Directory entry values. Sibling and child links use stream ids up to
// MAX_REGULAR_STREAM_ID, or NO_STREAM.
const (
	ROOT_DIR_NAME                = "Root Entry"
	OBJ_TYPE_UNALLOCATED  uint8  = 0
	OBJ_TYPE_STORAGE      uint8  = 1
	OBJ_TYPE_STREAM       uint8  = 2
	OBJ_TYPE_ROOT         uint8  = 5
	COLOR_RED             uint8  = 0
	COLOR_BLACK           uint8  = 1
	ROOT_STREAM_ID        uint32 = 0
	MAX_REGULAR_STREAM_ID uint32 = 0xfffffffa
	NO_STREAM             uint32 = 0xffffffff
)

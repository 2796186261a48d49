package mscfb

import (
	"time"

	"github.com/google/uuid"
)

// Entry is a node of the directory tree. It is either a *StorageEntry or a
// *StreamEntry:
//
//	switch e := entry.(type) {
//	case *mscfb.StorageEntry:
//	case *mscfb.StreamEntry:
//	}
type Entry interface {
	Info() *EntryInfo
	isEntry()
}

// EntryInfo holds the attributes shared by storages and streams.
type EntryInfo struct {
	ID           uint32
	Name         string
	Path         string
	CLSID        uuid.UUID
	StateBits    uint32
	CreationTime time.Time
	ModifiedTime time.Time
}

func (i *EntryInfo) Info() *EntryInfo {
	return i
}

// StorageEntry is a storage or the root storage.
type StorageEntry struct {
	EntryInfo
	IsRoot bool

	children []uint32
	// brokenSiblings is set when the sibling tree below this storage
	// referenced an entry twice or an unusable id.
	brokenSiblings bool
}

func (*StorageEntry) isEntry() {}

// Children returns the ids of the direct children in stored order.
func (s *StorageEntry) Children() []uint32 {
	out := make([]uint32, len(s.children))
	copy(out, s.children)
	return out
}

// StreamEntry is a stream with a byte length and a sector chain.
type StreamEntry struct {
	EntryInfo
	Size           uint64
	StartSector    uint32
	UsesMiniStream bool
}

func (*StreamEntry) isEntry() {}

func newEntryInfo(id uint32, dirEntry *DirEntry, path string) EntryInfo {
	return EntryInfo{
		ID:           id,
		Name:         dirEntry.Name,
		Path:         path,
		CLSID:        clsidToUUID(dirEntry.CLSID),
		StateBits:    dirEntry.StateBits,
		CreationTime: filetimeToTime(dirEntry.CreationTime),
		ModifiedTime: filetimeToTime(dirEntry.ModifiedTime),
	}
}

// clsidToUUID converts a GUID stored with little-endian Data1/Data2/Data3
// into RFC 4122 byte order.
func clsidToUUID(b [16]byte) uuid.UUID {
	var u uuid.UUID
	u[0], u[1], u[2], u[3] = b[3], b[2], b[1], b[0]
	u[4], u[5] = b[5], b[4]
	u[6], u[7] = b[7], b[6]
	copy(u[8:], b[8:])
	return u
}

// Seconds between 1601-01-01 and 1970-01-01.
const filetimeEpochSeconds = 11644473600

// filetimeToTime converts a FILETIME (100ns ticks since 1601). Zero maps to
// the zero time.
func filetimeToTime(ft uint64) time.Time {
	if ft == 0 {
		return time.Time{}
	}
	secs := int64(ft/1e7) - filetimeEpochSeconds
	return time.Unix(secs, int64(ft%1e7)*100).UTC()
}

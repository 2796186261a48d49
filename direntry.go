package mscfb

import (
	"encoding/binary"

	"golang.org/x/text/encoding/unicode"
)

type DirEntry struct {
	Name           string
	ObjType        ObjectType
	Color          Color
	LeftSibling    uint32
	RightSibling   uint32
	Child          uint32
	CLSID          [16]byte
	StateBits      uint32
	CreationTime   uint64
	ModifiedTime   uint64
	StartingSector uint32
	StreamSize     uint64
}

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

func ReadDirEntry(b []byte, version Version, validation Validation) (*DirEntry, error) {
	if len(b) < DIR_ENTRY_LEN {
		return nil, corruptf("directory entry is %v bytes, need %v", len(b), DIR_ENTRY_LEN)
	}

	le := binary.LittleEndian
	dir := DirEntry{
		ObjType:        ObjectFromByte(b[66]),
		LeftSibling:    le.Uint32(b[68:]),
		RightSibling:   le.Uint32(b[72:]),
		Child:          le.Uint32(b[76:]),
		StateBits:      le.Uint32(b[96:]),
		CreationTime:   le.Uint64(b[100:]),
		ModifiedTime:   le.Uint64(b[108:]),
		StartingSector: le.Uint32(b[116:]),
		StreamSize:     le.Uint64(b[120:]) & version.StreamLenMask(),
	}
	copy(dir.CLSID[:], b[80:96])

	if dir.ObjType == ObjUnallocated {
		return &dir, nil
	}

	color, ok := ColorFromByte(b[67])
	if !ok && validation.IsStrict() {
		return nil, corruptf("invalid color byte %#x", b[67])
	}
	dir.Color = color

	nameLen := int(le.Uint16(b[64:]))
	if nameLen > 64 || nameLen%2 != 0 {
		if validation.IsStrict() {
			return nil, corruptf("invalid name length %v", nameLen)
		}
		nameLen = min(nameLen, 64) &^ 1
	}

	name, err := decodeName(b[:max(nameLen-2, 0)])
	if err != nil {
		return nil, err
	}
	dir.Name = name

	if dir.ObjType == ObjStorage && validation.IsStrict() && dir.StreamSize != 0 {
		return nil, corruptf("storage %q has non-zero stream size %v", dir.Name, dir.StreamSize)
	}

	return &dir, nil
}

// decodeName converts a UTF-16LE directory name, stopping at an embedded NUL.
func decodeName(raw []byte) (string, error) {
	for i := 0; i+1 < len(raw); i += 2 {
		if raw[i] == 0 && raw[i+1] == 0 {
			raw = raw[:i]
			break
		}
	}

	name, err := utf16le.NewDecoder().Bytes(raw)
	if err != nil {
		return "", corruptf("invalid directory entry name: %v", err)
	}
	return string(name), nil
}

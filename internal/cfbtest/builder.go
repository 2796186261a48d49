// Package cfbtest builds small compound files in memory for tests. Images
// use contiguous chains, balanced sibling trees and a mini stream for
// streams below the 4096 byte cutoff.
package cfbtest

import (
	"encoding/binary"
	"fmt"
	"sort"
	"unicode"
	"unicode/utf16"

	textunicode "golang.org/x/text/encoding/unicode"
)

const (
	endOfChain  uint32 = 0xfffffffe
	freeSector  uint32 = 0xffffffff
	fatSector   uint32 = 0xfffffffd
	difatSector uint32 = 0xfffffffc
	noStream    uint32 = 0xffffffff

	miniSectorLen      = 64
	cutoff             = 4096
	dirEntryLen        = 128
	headerDifatEntries = 109
)

// Offsets of directory entry fields, relative to the entry.
const (
	FieldNameLen = 64
	FieldType    = 66
	FieldLeft    = 68
	FieldRight   = 72
	FieldChild   = 76
	FieldStart   = 116
	FieldSize    = 120
)

// Offsets of header fields.
const (
	HeaderNumFatSectors   = 44
	HeaderFirstDirSector  = 48
	HeaderCutoff          = 56
	HeaderFirstMinifat    = 60
	HeaderFirstDifat      = 68
	HeaderNumDifatSectors = 72
)

// Node describes a storage or a stream to place in an image.
type Node struct {
	Name     string
	Storage  bool
	Data     []byte
	Children []*Node
	CLSID    [16]byte
}

func Stream(name string, data []byte) *Node {
	return &Node{Name: name, Data: data}
}

func Storage(name string, children ...*Node) *Node {
	return &Node{Name: name, Storage: true, Children: children}
}

// Image is a built compound file. FAT sectors occupy sectors 0 to
// NumFatSectors-1, followed by the DIFAT sectors.
type Image struct {
	Bytes          []byte
	SectorLen      int
	FirstDirSector uint32
	NumFatSectors  int
	DifatSectors   []uint32

	ids map[string]uint32
}

// Options tune BuildWith.
type Options struct {
	// Version is 3 (512 byte sectors, the default) or 4 (4096 byte sectors).
	Version int
	// MinFatSectors pads the FAT with unused sectors. More than 109 FAT
	// sectors puts the rest of the list in DIFAT sectors.
	MinFatSectors int
}

type entry struct {
	node  *Node
	path  string
	left  uint32
	right uint32
	child uint32
	start uint32
	size  uint64
}

// Build returns a version 3 (512 byte sector) image with the given root
// children.
func Build(children ...*Node) *Image {
	return BuildVersion(3, children...)
}

// BuildVersion builds a version 3 or version 4 (4096 byte sector) image.
func BuildVersion(version int, children ...*Node) *Image {
	return BuildWith(Options{Version: version}, children...)
}

// BuildWith builds an image with the given options.
func BuildWith(opts Options, children ...*Node) *Image {
	version := opts.Version
	if version == 0 {
		version = 3
	}
	sectorLen := 512
	if version == 4 {
		sectorLen = 4096
	}
	idsPerSector := sectorLen / 4

	root := &Node{Name: "Root Entry", Storage: true, Children: children}
	entries := []*entry{}
	ids := map[string]uint32{}

	var assign func(n *Node, path string) uint32
	assign = func(n *Node, path string) uint32 {
		id := uint32(len(entries))
		e := &entry{node: n, path: path, left: noStream, right: noStream, child: noStream, start: endOfChain}
		entries = append(entries, e)
		ids[path] = id

		if !n.Storage {
			e.size = uint64(len(n.Data))
			return id
		}

		sorted := append([]*Node(nil), n.Children...)
		sort.SliceStable(sorted, func(i, j int) bool {
			return compareNames(sorted[i].Name, sorted[j].Name) < 0
		})

		childIds := make([]uint32, len(sorted))
		for i, c := range sorted {
			childIds[i] = assign(c, joinPath(path, c.Name))
		}
		e.child = balance(entries, childIds)
		return id
	}
	assign(root, "/")

	// Mini stream placement.
	miniCount := 0
	for _, e := range entries[1:] {
		if e.node.Storage || e.size == 0 || e.size >= cutoff {
			continue
		}
		e.start = uint32(miniCount)
		miniCount += ceilDiv(int(e.size), miniSectorLen)
	}

	dirSectors := ceilDiv(len(entries), sectorLen/dirEntryLen)
	minifatSectors := ceilDiv(miniCount*4, sectorLen)
	miniStreamSectors := ceilDiv(miniCount*miniSectorLen, sectorLen)
	bigSectors := 0
	for _, e := range entries[1:] {
		if !e.node.Storage && e.size >= cutoff {
			bigSectors += ceilDiv(int(e.size), sectorLen)
		}
	}

	dataSectors := dirSectors + minifatSectors + miniStreamSectors + bigSectors
	fatSectors := max(opts.MinFatSectors, 1)
	difatSectors := 0
	for {
		difatSectors = ceilDiv(max(fatSectors-headerDifatEntries, 0), idsPerSector-1)
		if fatSectors*idsPerSector >= fatSectors+difatSectors+dataSectors {
			break
		}
		fatSectors++
	}

	total := fatSectors + difatSectors + dataSectors
	fat := make([]uint32, fatSectors*idsPerSector)
	for i := range fat {
		fat[i] = freeSector
	}
	for i := 0; i < fatSectors; i++ {
		fat[i] = fatSector
	}
	difatIds := make([]uint32, difatSectors)
	for i := range difatIds {
		difatIds[i] = uint32(fatSectors + i)
		fat[difatIds[i]] = difatSector
	}

	next := uint32(fatSectors + difatSectors)
	allocate := func(n int) uint32 {
		if n == 0 {
			return endOfChain
		}
		first := next
		for i := 0; i < n; i++ {
			if i == n-1 {
				fat[next] = endOfChain
			} else {
				fat[next] = next + 1
			}
			next++
		}
		return first
	}

	firstDir := allocate(dirSectors)
	firstMinifat := allocate(minifatSectors)
	firstMiniStream := allocate(miniStreamSectors)
	for _, e := range entries[1:] {
		if !e.node.Storage && e.size >= cutoff {
			e.start = allocate(ceilDiv(int(e.size), sectorLen))
		}
	}

	buf := make([]byte, sectorLen*(1+total))
	le := binary.LittleEndian
	offset := func(sector uint32) int { return int(sector+1) * sectorLen }

	// Header.
	copy(buf, []byte{0xd0, 0xcf, 0x11, 0xe0, 0xa1, 0xb1, 0x1a, 0xe1})
	le.PutUint16(buf[24:], 0x3e)
	le.PutUint16(buf[26:], uint16(version))
	le.PutUint16(buf[28:], 0xfffe)
	if version == 4 {
		le.PutUint16(buf[30:], 12)
		le.PutUint32(buf[40:], uint32(dirSectors))
	} else {
		le.PutUint16(buf[30:], 9)
	}
	le.PutUint16(buf[32:], 6)
	le.PutUint32(buf[HeaderNumFatSectors:], uint32(fatSectors))
	le.PutUint32(buf[HeaderFirstDirSector:], firstDir)
	le.PutUint32(buf[HeaderCutoff:], cutoff)
	le.PutUint32(buf[HeaderFirstMinifat:], firstMinifat)
	le.PutUint32(buf[64:], uint32(minifatSectors))
	le.PutUint32(buf[HeaderFirstDifat:], endOfChain)
	if difatSectors > 0 {
		le.PutUint32(buf[HeaderFirstDifat:], difatIds[0])
	}
	le.PutUint32(buf[HeaderNumDifatSectors:], uint32(difatSectors))
	for i := 0; i < headerDifatEntries; i++ {
		v := freeSector
		if i < fatSectors {
			v = uint32(i)
		}
		le.PutUint32(buf[76+4*i:], v)
	}

	// DIFAT sectors: idsPerSector-1 FAT sector ids, then the next DIFAT sector.
	for d, id := range difatIds {
		base := offset(id)
		for k := 0; k < idsPerSector-1; k++ {
			v := freeSector
			if fatIdx := headerDifatEntries + d*(idsPerSector-1) + k; fatIdx < fatSectors {
				v = uint32(fatIdx)
			}
			le.PutUint32(buf[base+4*k:], v)
		}
		nextDifat := endOfChain
		if d+1 < len(difatIds) {
			nextDifat = difatIds[d+1]
		}
		le.PutUint32(buf[base+4*(idsPerSector-1):], nextDifat)
	}

	// FAT.
	for i, v := range fat {
		le.PutUint32(buf[offset(uint32(i/idsPerSector))+4*(i%idsPerSector):], v)
	}

	// Mini FAT and mini stream.
	if miniCount > 0 {
		minifat := make([]uint32, minifatSectors*idsPerSector)
		for i := range minifat {
			minifat[i] = freeSector
		}
		miniStream := make([]byte, miniStreamSectors*sectorLen)
		for _, e := range entries[1:] {
			if e.node.Storage || e.size == 0 || e.size >= cutoff {
				continue
			}
			n := ceilDiv(int(e.size), miniSectorLen)
			for i := 0; i < n; i++ {
				if i == n-1 {
					minifat[int(e.start)+i] = endOfChain
				} else {
					minifat[int(e.start)+i] = e.start + uint32(i) + 1
				}
			}
			copy(miniStream[int(e.start)*miniSectorLen:], e.node.Data)
		}
		for i, v := range minifat {
			le.PutUint32(buf[offset(firstMinifat)+4*i:], v)
		}
		copy(buf[offset(firstMiniStream):], miniStream)

		entries[0].start = firstMiniStream
		entries[0].size = uint64(miniCount * miniSectorLen)
	}

	// Regular streams.
	for _, e := range entries[1:] {
		if !e.node.Storage && e.size >= cutoff {
			copy(buf[offset(e.start):], e.node.Data)
		}
	}

	im := &Image{
		Bytes:          buf,
		SectorLen:      sectorLen,
		FirstDirSector: firstDir,
		NumFatSectors:  fatSectors,
		DifatSectors:   difatIds,
		ids:            ids,
	}

	// Directory, including unallocated padding entries.
	for i := 0; i < dirSectors*(sectorLen/dirEntryLen); i++ {
		off := im.DirEntryOffset(uint32(i))
		if i >= len(entries) {
			le.PutUint32(buf[off+FieldLeft:], noStream)
			le.PutUint32(buf[off+FieldRight:], noStream)
			le.PutUint32(buf[off+FieldChild:], noStream)
			continue
		}
		writeEntry(buf[off:off+dirEntryLen], entries[i], i == 0)
	}

	return im
}

var utf16le = textunicode.UTF16(textunicode.LittleEndian, textunicode.IgnoreBOM)

func writeEntry(b []byte, e *entry, isRoot bool) {
	le := binary.LittleEndian

	name, err := utf16le.NewEncoder().Bytes([]byte(e.node.Name))
	if err != nil || len(name) > 62 {
		panic(fmt.Sprintf("cfbtest: bad entry name %q", e.node.Name))
	}
	copy(b, name)
	le.PutUint16(b[FieldNameLen:], uint16(len(name)+2))

	switch {
	case isRoot:
		b[FieldType] = 5
	case e.node.Storage:
		b[FieldType] = 1
	default:
		b[FieldType] = 2
	}
	b[67] = 1 // black

	le.PutUint32(b[FieldLeft:], e.left)
	le.PutUint32(b[FieldRight:], e.right)
	le.PutUint32(b[FieldChild:], e.child)
	copy(b[80:96], e.node.CLSID[:])

	start := e.start
	if e.node.Storage && !isRoot {
		start = 0
	}
	le.PutUint32(b[FieldStart:], start)
	le.PutUint64(b[FieldSize:], e.size)
}

// balance links ids (sorted) into a balanced binary tree and returns its root.
func balance(entries []*entry, ids []uint32) uint32 {
	if len(ids) == 0 {
		return noStream
	}
	mid := len(ids) / 2
	root := ids[mid]
	entries[root].left = balance(entries, ids[:mid])
	entries[root].right = balance(entries, ids[mid+1:])
	return root
}

func compareNames(a, b string) int {
	ua := utf16.Encode([]rune(a))
	ub := utf16.Encode([]rune(b))
	if len(ua) != len(ub) {
		return len(ua) - len(ub)
	}
	for i := range ua {
		x := unicode.ToUpper(rune(ua[i]))
		y := unicode.ToUpper(rune(ub[i]))
		if x != y {
			return int(x) - int(y)
		}
	}
	return 0
}

func joinPath(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// EntryID returns the directory id assigned to path ("/" is the root).
func (im *Image) EntryID(path string) uint32 {
	id, ok := im.ids[path]
	if !ok {
		panic("cfbtest: unknown path " + path)
	}
	return id
}

// DirEntryOffset returns the file offset of directory entry id.
func (im *Image) DirEntryOffset(id uint32) int {
	perSector := uint32(im.SectorLen / dirEntryLen)
	sector := im.FirstDirSector + id/perSector
	return int(sector+1)*im.SectorLen + int(id%perSector)*dirEntryLen
}

// SetDirField overwrites a 32-bit field of directory entry id.
func (im *Image) SetDirField(id uint32, field int, v uint32) {
	binary.LittleEndian.PutUint32(im.Bytes[im.DirEntryOffset(id)+field:], v)
}

// DirField reads a 32-bit field of directory entry id.
func (im *Image) DirField(id uint32, field int) uint32 {
	return binary.LittleEndian.Uint32(im.Bytes[im.DirEntryOffset(id)+field:])
}

// SectorOffset returns the file offset of sector id.
func (im *Image) SectorOffset(id uint32) int {
	return int(id+1) * im.SectorLen
}

// FatEntry reads the FAT entry of sector id.
func (im *Image) FatEntry(id uint32) uint32 {
	return binary.LittleEndian.Uint32(im.Bytes[im.fatEntryOffset(id):])
}

// SetFatEntry overwrites the FAT entry of sector id.
func (im *Image) SetFatEntry(id uint32, v uint32) {
	binary.LittleEndian.PutUint32(im.Bytes[im.fatEntryOffset(id):], v)
}

func (im *Image) fatEntryOffset(id uint32) int {
	perSector := uint32(im.SectorLen / 4)
	return im.SectorOffset(id/perSector) + int(id%perSector)*4
}

// PutUint32 overwrites four bytes at off.
func (im *Image) PutUint32(off int, v uint32) {
	binary.LittleEndian.PutUint32(im.Bytes[off:], v)
}

// Clone returns a copy whose Bytes can be modified independently.
func (im *Image) Clone() *Image {
	c := *im
	c.Bytes = append([]byte(nil), im.Bytes...)
	return &c
}

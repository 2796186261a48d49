package mscfb

import "errors"

// Directory holds the raw directory entries and the tree rebuilt from them.
// nodes is an arena indexed by stream id; ids that are not reachable from the
// root stay nil.
type Directory struct {
	DirEntries     []*DirEntry
	DirStartSector uint32

	nodes []Entry
}

func NewDirectory(dirEntries []*DirEntry, dirStartSector uint32, cutoff uint32, validation Validation) (*Directory, error) {
	dir := Directory{
		DirEntries:     dirEntries,
		DirStartSector: dirStartSector,
	}

	err := dir.Validate(validation)
	if err != nil {
		return nil, err
	}

	err = dir.buildTree(cutoff, validation)
	if err != nil {
		return nil, err
	}

	return &dir, nil
}

func (d *Directory) RootDirEntry() *DirEntry {
	return d.DirEntries[ROOT_STREAM_ID]
}

func (d *Directory) Root() *StorageEntry {
	return d.nodes[ROOT_STREAM_ID].(*StorageEntry)
}

// Entry returns the tree node for a stream id, or nil.
func (d *Directory) Entry(id uint32) Entry {
	if id >= uint32(len(d.nodes)) {
		return nil
	}
	return d.nodes[id]
}

// Len returns the number of entries reachable from the root, root included.
func (d *Directory) Len() int {
	n := 0
	for _, node := range d.nodes {
		if node != nil {
			n++
		}
	}
	return n
}

func (d *Directory) Validate(validation Validation) error {
	if len(d.DirEntries) == 0 {
		return corruptf("directory has no entries")
	}

	rootDirEntry := d.RootDirEntry()
	if rootDirEntry.ObjType != ObjRoot {
		return corruptf("root entry has object type: %v", rootDirEntry.ObjType)
	}

	if !validation.IsStrict() {
		return nil
	}

	if rootDirEntry.StreamSize%uint64(MINI_SECTOR_LEN) != 0 {
		return corruptf("root stream len is %v, but should be multiple of %v", rootDirEntry.StreamSize, MINI_SECTOR_LEN)
	}

	visited := make(map[uint32]bool)
	stack := []uint32{ROOT_STREAM_ID}

	for len(stack) > 0 {
		dirEntryId := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visited[dirEntryId] {
			return corruptf("directory has a cycle at entry %v", dirEntryId)
		}

		visited[dirEntryId] = true

		dirEntry := d.DirEntries[dirEntryId]

		if dirEntryId == ROOT_STREAM_ID {
			if dirEntry.LeftSibling != NO_STREAM || dirEntry.RightSibling != NO_STREAM {
				return corruptf("root entry has siblings")
			}
		} else if dirEntry.ObjType != ObjStorage && dirEntry.ObjType != ObjStream {
			return corruptf("non-root entry %v with object type: %v", dirEntryId, dirEntry.ObjType)
		}

		leftSibling := dirEntry.LeftSibling
		if leftSibling != NO_STREAM {
			if leftSibling >= uint32(len(d.DirEntries)) {
				return corruptf("left sibling index is %v, but directory entry count is %v",
					leftSibling, len(d.DirEntries))
			}

			entry := d.DirEntries[leftSibling]
			if CompareNames(entry.Name, dirEntry.Name) != OrderLess {
				return corruptf("name ordering, %q vs %q", entry.Name, dirEntry.Name)
			}

			stack = append(stack, leftSibling)
		}

		rightSibling := dirEntry.RightSibling
		if rightSibling != NO_STREAM {
			if rightSibling >= uint32(len(d.DirEntries)) {
				return corruptf("right sibling index is %v, but directory entry count is %v",
					rightSibling, len(d.DirEntries))
			}

			entry := d.DirEntries[rightSibling]
			if CompareNames(dirEntry.Name, entry.Name) != OrderLess {
				return corruptf("name ordering, %q vs %q", dirEntry.Name, entry.Name)
			}

			stack = append(stack, rightSibling)
		}

		child := dirEntry.Child
		if child != NO_STREAM {
			if dirEntry.ObjType == ObjStream {
				return corruptf("stream %q has a child", dirEntry.Name)
			}
			if child >= uint32(len(d.DirEntries)) {
				return corruptf("child index is %v, but directory entry count is %v",
					child, len(d.DirEntries))
			}

			stack = append(stack, child)
		}
	}

	return nil
}

// buildTree materializes the arena. Every storage is expanded once; an id
// reachable from two places stays listed in both parents so that traversal
// can report it instead of looping.
func (d *Directory) buildTree(cutoff uint32, validation Validation) error {
	d.nodes = make([]Entry, len(d.DirEntries))

	root := &StorageEntry{
		EntryInfo: newEntryInfo(ROOT_STREAM_ID, d.RootDirEntry(), "/"),
		IsRoot:    true,
	}
	d.nodes[ROOT_STREAM_ID] = root

	stack := []*StorageEntry{root}
	for len(stack) > 0 {
		storage := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		children, broken := d.siblingsInOrder(d.DirEntries[storage.ID].Child)
		if broken && validation.IsStrict() {
			return corruptf("sibling tree of %q is malformed", storage.Path)
		}
		storage.children = children
		storage.brokenSiblings = broken

		for _, id := range children {
			if d.nodes[id] != nil {
				continue
			}

			dirEntry := d.DirEntries[id]
			info := newEntryInfo(id, dirEntry, childPath(storage.Path, dirEntry.Name))

			switch dirEntry.ObjType {
			case ObjStorage:
				child := &StorageEntry{EntryInfo: info}
				d.nodes[id] = child
				stack = append(stack, child)
			case ObjStream:
				d.nodes[id] = &StreamEntry{
					EntryInfo:      info,
					Size:           dirEntry.StreamSize,
					StartSector:    dirEntry.StartingSector,
					UsesMiniStream: dirEntry.StreamSize < uint64(cutoff),
				}
			}
		}
	}

	return nil
}

// siblingsInOrder walks the red-black sibling tree rooted at start in order,
// which is the stored name order. broken reports an id that was out of range,
// not a storage or stream, or seen twice; the walk stops descending there.
func (d *Directory) siblingsInOrder(start uint32) ([]uint32, bool) {
	out := make([]uint32, 0)
	seen := make(map[uint32]bool)
	stack := make([]uint32, 0)
	broken := false
	current := start

	for current != NO_STREAM || len(stack) > 0 {
		for current != NO_STREAM {
			if !d.usableSibling(current) || seen[current] {
				broken = true
				current = NO_STREAM
				break
			}
			seen[current] = true
			stack = append(stack, current)
			current = d.DirEntries[current].LeftSibling
		}

		if len(stack) == 0 {
			break
		}

		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, id)
		current = d.DirEntries[id].RightSibling
	}

	return out, broken
}

func (d *Directory) usableSibling(id uint32) bool {
	if id > MAX_REGULAR_STREAM_ID || id >= uint32(len(d.DirEntries)) {
		return false
	}
	// The root listed as a sibling is kept so traversal reports the cycle.
	if id == ROOT_STREAM_ID {
		return true
	}
	t := d.DirEntries[id].ObjType
	return t == ObjStorage || t == ObjStream
}

func childPath(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}

// Lookup resolves a slash separated path. Names match exactly.
func (d *Directory) Lookup(path string) (Entry, error) {
	var current Entry = d.Root()

	for _, name := range NameChainFromPath(path) {
		storage, ok := current.(*StorageEntry)
		if !ok {
			return nil, &NotFoundError{Path: path}
		}

		var next Entry
		for _, id := range storage.children {
			node := d.nodes[id]
			if node != nil && node.Info().Name == name {
				next = node
				break
			}
		}
		if next == nil {
			return nil, &NotFoundError{Path: path}
		}
		current = next
	}

	return current, nil
}

// VisitFunc is called once per entry by VisitEntries.
type VisitFunc func(entry Entry) error

// Visit walks the tree depth-first in pre-order, siblings in stored order.
// The root is the starting point and is not passed to fn.
func (d *Directory) Visit(fn VisitFunc, recursive bool) error {
	root := d.Root()
	if root.brokenSiblings {
		return corruptf("sibling tree of %q is malformed", root.Path)
	}

	visited := make([]bool, len(d.nodes))
	visited[ROOT_STREAM_ID] = true
	stack := pushReversed(nil, root.children)

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visited[id] {
			return corruptf("directory entry %v is reached twice (cycle or shared child)", id)
		}
		visited[id] = true

		node := d.nodes[id]
		if node == nil {
			return corruptf("directory entry %v is not a storage or stream", id)
		}

		err := fn(node)
		if errors.Is(err, SkipStorage) {
			continue
		}
		if err != nil {
			return err
		}

		storage, ok := node.(*StorageEntry)
		if !ok || !recursive {
			continue
		}
		if storage.brokenSiblings {
			return corruptf("sibling tree of %q is malformed", storage.Path)
		}
		stack = pushReversed(stack, storage.children)
	}

	return nil
}

func pushReversed(stack []uint32, ids []uint32) []uint32 {
	for i := len(ids) - 1; i >= 0; i-- {
		stack = append(stack, ids[i])
	}
	return stack
}

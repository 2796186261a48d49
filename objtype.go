package mscfb

type ObjectType int

const (
	ObjUnallocated ObjectType = iota
	ObjStorage
	ObjStream
	ObjRoot
)

func (o ObjectType) String() string {
	switch o {
	case ObjStorage:
		return "storage"
	case ObjStream:
		return "stream"
	case ObjRoot:
		return "root"
	default:
		return "unallocated"
	}
}

// ObjectFromByte maps the on-disk type byte. Lock-bytes and property types
// are treated as unallocated.
func ObjectFromByte(b byte) ObjectType {
	switch b {
	case OBJ_TYPE_UNALLOCATED:
		return ObjUnallocated
	case OBJ_TYPE_STORAGE:
		return ObjStorage
	case OBJ_TYPE_STREAM:
		return ObjStream
	case OBJ_TYPE_ROOT:
		return ObjRoot
	default:
		return ObjUnallocated
	}
}

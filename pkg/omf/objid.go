package omf

import "fmt"

// ObjKind is the object type tag carried in the low bits of an object ID.
type ObjKind uint8

const (
	// ObjUndef is never stored on media; it marks an unrecognized tag.
	ObjUndef ObjKind = iota
	// ObjMblock tags a fixed-capacity, append-then-immutable object.
	ObjMblock
	// ObjMlog tags an append-only log object.
	ObjMlog

	objKindLast = ObjMlog
)

func (k ObjKind) String() string {
	switch k {
	case ObjMblock:
		return "mblock"
	case ObjMlog:
		return "mlog"
	default:
		return "undef"
	}
}

// ObjID identifies one object within a pool. The low byte encodes the
// object kind and the remaining bits hold a uniquifier, so a valid ID is
// never zero. The kind is decoded exactly once, where an ID crosses into
// the pool core; past that boundary callers carry the typed kind.
type ObjID uint64

const objidKindBits = 8

// MakeObjID builds an object ID from a kind tag and a non-zero uniquifier.
func MakeObjID(kind ObjKind, uniq uint64) ObjID {
	return ObjID(uniq<<objidKindBits | uint64(kind))
}

// Kind decodes the kind tag. Unrecognized tags decode as ObjUndef.
func (id ObjID) Kind() ObjKind {
	k := ObjKind(id & (1<<objidKindBits - 1))
	if k == ObjUndef || k > objKindLast {
		return ObjUndef
	}
	return k
}

// Uniquifier returns the allocation sequence number embedded in the ID.
func (id ObjID) Uniquifier() uint64 {
	return uint64(id) >> objidKindBits
}

// IsMblock reports whether the ID is a well-formed mblock identifier.
func (id ObjID) IsMblock() bool {
	return id != 0 && id.Kind() == ObjMblock
}

func (id ObjID) String() string {
	return fmt.Sprintf("0x%x", uint64(id))
}

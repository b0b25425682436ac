package mprpc

import "github.com/sbejawada/mpool-kmod/pkg/mpool"

// MPBProps mirrors an mblock property snapshot on the wire.
type MPBProps struct {
	ObjID     uint64
	Capacity  uint32
	WriteLen  uint32
	OptIOSize uint32
	Mclass    string
	Committed bool
}

// NewMPBProps converts a pool property snapshot for the wire.
func NewMPBProps(p mpool.Props) MPBProps {
	return MPBProps{
		ObjID:     uint64(p.Objid),
		Capacity:  p.Capacity,
		WriteLen:  p.WriteLen,
		OptIOSize: p.OptIOSize,
		Mclass:    p.Mclass.String(),
		Committed: p.Committed,
	}
}

// MPBAllocRequest requests a fresh mblock on the given media class.
type MPBAllocRequest struct {
	Mclass string
	Spare  bool
}

// MPBAllocResponse returns the identity of the new mblock.
type MPBAllocResponse struct {
	Props MPBProps
}

// MPBReallocRequest recovers an interrupted write sequence by object
// id. The media class must match the original allocation.
type MPBReallocRequest struct {
	ObjID  uint64
	Mclass string
}

// MPBReallocResponse returns the recovered properties; WriteLen is
// where the next append resumes.
type MPBReallocResponse struct {
	Props MPBProps
}

// MPBWriteRequest appends data to an uncommitted mblock. The append
// always lands at the current written length.
type MPBWriteRequest struct {
	ObjID uint64
	Data  []byte
}

// MPBWriteResponse reports the written length after the append.
type MPBWriteResponse struct {
	WriteLen uint32
}

// MPBReadRequest reads a range of a committed mblock.
type MPBReadRequest struct {
	ObjID  uint64
	Offset uint64
	Length uint64
}

// MPBReadResponse carries the bytes actually read; short when the
// range reaches past the written length.
type MPBReadResponse struct {
	Data []byte
}

// MPBCommitRequest seals an mblock.
type MPBCommitRequest struct {
	ObjID uint64
}

// MPBCommitResponse is empty; commit either happened or errored.
type MPBCommitResponse struct{}

// MPBAbortRequest discards an uncommitted mblock.
type MPBAbortRequest struct {
	ObjID uint64
}

// MPBAbortResponse is a response message to abort request.
type MPBAbortResponse struct{}

// MPBDeleteRequest removes an mblock in either state.
type MPBDeleteRequest struct {
	ObjID uint64
}

// MPBDeleteResponse is a response message to delete request.
type MPBDeleteResponse struct{}

// MPBPropsRequest fetches a property snapshot by object id.
type MPBPropsRequest struct {
	ObjID uint64
}

// MPBPropsResponse carries the snapshot.
type MPBPropsResponse struct {
	Props MPBProps
}

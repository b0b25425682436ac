package omf

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Object record states as stored in the object table.
const (
	RecUncommitted uint8 = iota
	RecCommitted
)

const (
	objRecVersion = 1
	objRecLen     = 1 + 8 + 1 + 1 + 4 + 4 + 4 + 8 + 8
)

// ObjRec is the durable form of one object's allocation record.
// One record is written per live object. Uncommitted records keep
// their last recorded write length so an interrupted write sequence
// can resume after restart.
type ObjRec struct {
	Objid     ObjID
	State     uint8
	Mclass    MediaClass
	Slot      uint32
	ZoneStart uint32
	ZoneCnt   uint32
	Capacity  uint64
	WriteLen  uint64
}

// Marshal encodes the record in its fixed on-media layout.
func (r *ObjRec) Marshal() []byte {
	b := make([]byte, objRecLen)
	b[0] = objRecVersion
	binary.BigEndian.PutUint64(b[1:], uint64(r.Objid))
	b[9] = r.State
	b[10] = uint8(r.Mclass)
	binary.BigEndian.PutUint32(b[11:], r.Slot)
	binary.BigEndian.PutUint32(b[15:], r.ZoneStart)
	binary.BigEndian.PutUint32(b[19:], r.ZoneCnt)
	binary.BigEndian.PutUint64(b[23:], r.Capacity)
	binary.BigEndian.PutUint64(b[31:], r.WriteLen)
	return b
}

// UnmarshalObjRec decodes a record written by Marshal.
func UnmarshalObjRec(b []byte) (*ObjRec, error) {
	if len(b) < objRecLen {
		return nil, errors.Errorf("object record too short: %d bytes", len(b))
	}
	if b[0] != objRecVersion {
		return nil, errors.Errorf("unsupported object record version %d", b[0])
	}

	return &ObjRec{
		Objid:     ObjID(binary.BigEndian.Uint64(b[1:])),
		State:     b[9],
		Mclass:    MediaClass(b[10]),
		Slot:      binary.BigEndian.Uint32(b[11:]),
		ZoneStart: binary.BigEndian.Uint32(b[15:]),
		ZoneCnt:   binary.BigEndian.Uint32(b[19:]),
		Capacity:  binary.BigEndian.Uint64(b[23:]),
		WriteLen:  binary.BigEndian.Uint64(b[31:]),
	}, nil
}

// ObjKey builds the object table key for an object ID.
func ObjKey(objid ObjID) []byte {
	k := make([]byte, 10)
	k[0] = 'o'
	k[1] = ':'
	binary.BigEndian.PutUint64(k[2:], uint64(objid))
	return k
}

// UniqKey is the object table key of the uniquifier high-water mark.
func UniqKey() []byte {
	return []byte("m:uniq")
}

// EncodeUniq and DecodeUniq convert the uniquifier high-water mark value.
func EncodeUniq(uniq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uniq)
	return b
}

// DecodeUniq decodes a value written by EncodeUniq.
func DecodeUniq(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, errors.Errorf("uniquifier record has %d bytes, want 8", len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}

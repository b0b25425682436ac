package omf

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// DevSigSize is the size of the signature block at the head of
// every pool device. Mblock data starts right after it.
const DevSigSize = 4096

const devSigMagic = "mpooldev"

// DevSig identifies a device as a member of a pool.
type DevSig struct {
	Magic    string `json:"magic"`
	Version  uint32 `json:"version"`
	PoolUUID string `json:"pool_uuid"`
	Mclass   uint8  `json:"mclass"`
}

// NewDevSig returns a signature binding a device to the pool
// with the given uuid.
func NewDevSig(poolUUID string, mclass MediaClass) DevSig {
	return DevSig{
		Magic:    devSigMagic,
		Version:  SuperblockVersion,
		PoolUUID: poolUUID,
		Mclass:   uint8(mclass),
	}
}

// Marshal encodes the signature into a DevSigSize block.
func (s DevSig) Marshal() ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode device signature")
	}
	if len(b) >= DevSigSize {
		return nil, errors.New("device signature too large")
	}

	block := make([]byte, DevSigSize)
	copy(block, b)
	return block, nil
}

// UnmarshalDevSig decodes a signature block read from a device.
func UnmarshalDevSig(block []byte) (DevSig, error) {
	var s DevSig

	if len(block) < DevSigSize {
		return s, errors.New("device signature block too short")
	}

	trimmed := bytes.TrimRight(block[:DevSigSize], "\x00")
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return s, errors.Wrap(err, "failed to decode device signature")
	}
	if s.Magic != devSigMagic {
		return s, errors.Errorf("unknown device signature magic %q", s.Magic)
	}
	return s, nil
}

package omf

import "github.com/pkg/errors"

// MediaClass names the storage tier a drive belongs to.
type MediaClass uint8

const (
	// MCStaging is the fast tier, typically flash.
	MCStaging MediaClass = iota
	// MCCapacity is the bulk tier.
	MCCapacity

	// MCInvalid marks an unset or unrecognized class.
	MCInvalid MediaClass = 0xff
)

// Valid reports whether mc names a real storage tier.
func (mc MediaClass) Valid() bool {
	return mc == MCStaging || mc == MCCapacity
}

func (mc MediaClass) String() string {
	switch mc {
	case MCStaging:
		return "staging"
	case MCCapacity:
		return "capacity"
	default:
		return "invalid"
	}
}

// ParseMediaClass converts a class name from config or the command line.
func ParseMediaClass(s string) (MediaClass, error) {
	switch s {
	case "staging":
		return MCStaging, nil
	case "capacity":
		return MCCapacity, nil
	default:
		return MCInvalid, errors.Errorf("unknown media class %q", s)
	}
}

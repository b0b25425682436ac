package omf

// Superblock describes one pool: identity, geometry parameters, and the
// member drives. It is stored as JSON at the pool root and read back on
// activation.
type Superblock struct {
	Version int    `json:"version"`
	Name    string `json:"name"`
	UUID    string `json:"uuid"`

	// Geometry, bytes. Fixed at pool create time.
	MblockCap  uint32 `json:"mblock_cap"`
	ZoneSize   uint32 `json:"zone_size"`
	OptIOSize  uint32 `json:"opt_io_size"`
	SectorSize uint32 `json:"sector_size"`

	// SparePct is the percentage of each drive reserved for spare
	// allocations.
	SparePct uint8 `json:"spare_pct"`

	Drives []DriveSpec `json:"drives"`
}

// DriveSpec is one member drive entry of the superblock.
type DriveSpec struct {
	Path   string `json:"path"`
	Mclass string `json:"media_class"`
	Size   uint64 `json:"size"`
}

// SuperblockVersion is the current superblock layout version.
const SuperblockVersion = 1

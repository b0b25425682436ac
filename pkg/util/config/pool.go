package config

// Pool holds info required to create and activate a media pool.
type Pool struct {
	// Name is the name of the pool.
	Name string

	// Dir is the directory which holds the pool superblock
	// and the object table.
	Dir string

	// CapacityDev is the path of the capacity media class device.
	CapacityDev string
	// StagingDev is the path of the staging media class device.
	// Empty means the pool runs without a staging class.
	StagingDev string

	// MblockCap is the capacity of a single mblock in bytes.
	MblockCap string
	// OptIOSize is the optimal IO size of the devices in bytes.
	OptIOSize string
	// SparePct is the percentage of zones kept as spares.
	SparePct string

	// ReadAhead is the number of bytes a read may run past the
	// written length of a committed mblock.
	ReadAhead string

	// FUA enables write-through on the pool devices.
	FUA string
}

package mprpc

// MPAPoolInfoRequest asks for the identity and geometry of the
// served pool.
type MPAPoolInfoRequest struct{}

// MPAPoolInfoResponse carries the pool superblock essentials and the
// live object counts.
type MPAPoolInfoResponse struct {
	Name string
	UUID string

	MblockCap uint32
	ZoneSize  uint32
	OptIOSize uint32
	SparePct  uint8

	Uncommitted int
	Committed   int
}

// MPAPoolUsageRequest asks for slot accounting per media class.
type MPAPoolUsageRequest struct{}

// MPAClassUsage is the slot accounting of one media class.
type MPAClassUsage struct {
	Mclass      string
	UsedSlots   uint32
	UsableSlots uint32
	SpareSlots  uint32
	MblockCap   uint64
}

// MPAPoolUsageResponse lists every configured media class.
type MPAPoolUsageResponse struct {
	Classes []MPAClassUsage
}

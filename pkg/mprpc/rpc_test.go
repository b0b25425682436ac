package mprpc

import "testing"

func TestMethodNames(t *testing.T) {
	testCases := []struct {
		method MethodName
		want   string
	}{
		{MpdAdminPoolInfo, "MPA.PoolInfo"},
		{MpdAdminPoolUsage, "MPA.PoolUsage"},
		{MpdMblockAlloc, "MPB.Alloc"},
		{MpdMblockRealloc, "MPB.Realloc"},
		{MpdMblockWrite, "MPB.Write"},
		{MpdMblockRead, "MPB.Read"},
		{MpdMblockCommit, "MPB.Commit"},
		{MpdMblockAbort, "MPB.Abort"},
		{MpdMblockDelete, "MPB.Delete"},
		{MpdMblockProps, "MPB.Props"},
		{MethodName(-1), "unknown"},
	}

	for _, c := range testCases {
		if got := c.method.String(); got != c.want {
			t.Errorf("method %d: got %q, expected %q", c.method, got, c.want)
		}
	}
}

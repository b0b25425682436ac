package mprpc

import (
	"crypto/tls"
	"net"
	"time"

	"github.com/sbejawada/mpool-kmod/pkg/security"
)

// MpdAdminPrefix is the prefix for calling mpd admin rpc methods.
const MpdAdminPrefix = "MPA"

// MpdMblockPrefix is the prefix for calling mpd mblock rpc methods.
const MpdMblockPrefix = "MPB"

// MethodName indicates what procedure will be called.
type MethodName int

const (
	// Admin methods.
	MpdAdminPoolInfo MethodName = iota
	MpdAdminPoolUsage

	// Mblock methods.
	MpdMblockAlloc
	MpdMblockRealloc
	MpdMblockWrite
	MpdMblockRead
	MpdMblockCommit
	MpdMblockAbort
	MpdMblockDelete
	MpdMblockProps
)

func (m MethodName) String() string {
	switch m {
	case MpdAdminPoolInfo:
		return MpdAdminPrefix + "." + "PoolInfo"
	case MpdAdminPoolUsage:
		return MpdAdminPrefix + "." + "PoolUsage"
	case MpdMblockAlloc:
		return MpdMblockPrefix + "." + "Alloc"
	case MpdMblockRealloc:
		return MpdMblockPrefix + "." + "Realloc"
	case MpdMblockWrite:
		return MpdMblockPrefix + "." + "Write"
	case MpdMblockRead:
		return MpdMblockPrefix + "." + "Read"
	case MpdMblockCommit:
		return MpdMblockPrefix + "." + "Commit"
	case MpdMblockAbort:
		return MpdMblockPrefix + "." + "Abort"
	case MpdMblockDelete:
		return MpdMblockPrefix + "." + "Delete"
	case MpdMblockProps:
		return MpdMblockPrefix + "." + "Props"
	default:
		return "unknown"
	}
}

// RPCType is the first byte of connection and it implies the type of the RPC.
type RPCType byte

const (
	// RPCMpd used when mpd admin and mblock connections.
	RPCMpd RPCType = 0x02
)

// Dial dials with the given rpc type connection to the address.
func Dial(addr string, rpcType RPCType, timeout time.Duration) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: timeout}

	config := security.DefaultTLSConfig()

	conn, err := tls.DialWithDialer(dialer, "tcp", addr, config)
	if err != nil {
		return nil, err
	}

	// Write RPC header.
	_, err = conn.Write([]byte{
		byte(rpcType),
	})
	if err != nil {
		conn.Close()
		return nil, err
	}
	return conn, err
}

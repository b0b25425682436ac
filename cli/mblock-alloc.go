package cli

import (
	"fmt"
	"log"
	"net/rpc"
	"time"

	"github.com/sbejawada/mpool-kmod/pkg/merr"
	"github.com/sbejawada/mpool-kmod/pkg/mprpc"
	"github.com/sbejawada/mpool-kmod/pkg/util/config"
	"github.com/spf13/cobra"
)

var (
	mblockAllocMclass string
	mblockAllocSpare  bool
)

var mblockAllocCmd = &cobra.Command{
	Use:   "alloc",
	Short: "allocate a new mblock and print its object id",
	Long:  "allocate a new mblock and print its object id",
	Run:   mblockAllocRun,
}

func mblockAllocRun(cmd *cobra.Command, args []string) {
	conn, err := mprpc.Dial(mpdCfg.ServerAddr+":"+mpdCfg.ServerPort, mprpc.RPCMpd, time.Duration(2*time.Second))
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	req := &mprpc.MPBAllocRequest{
		Mclass: mblockAllocMclass,
		Spare:  mblockAllocSpare,
	}
	res := &mprpc.MPBAllocResponse{}

	cli := rpc.NewClient(conn)
	if err := cli.Call(mprpc.MpdMblockAlloc.String(), req, res); err != nil {
		log.Fatal(merr.FromMessage(err.Error()))
	}

	fmt.Printf("0x%x\n", res.Props.ObjID)
}

func init() {
	mblockAllocCmd.Flags().StringVarP(&mpdCfg.ServerAddr, "bind", "b", config.Get("mpd.addr"), "will ask the mpd of this address")
	mblockAllocCmd.Flags().StringVarP(&mpdCfg.ServerPort, "port", "p", config.Get("mpd.port"), "will ask the mpd of this port")
	mblockAllocCmd.Flags().StringVarP(&mblockAllocMclass, "mclass", "m", "capacity", "media class to hold the mblock")
	mblockAllocCmd.Flags().BoolVarP(&mblockAllocSpare, "spare", "", false, "allocate from the spare slots")
}

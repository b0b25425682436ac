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

var mblockReallocMclass string

var mblockReallocCmd = &cobra.Command{
	Use:   "realloc",
	Short: "realloc an uncommitted mblock [object id]",
	Long:  "recover an uncommitted mblock so an interrupted write can resume",
	Args:  objidArg,
	Run:   mblockReallocRun,
}

func mblockReallocRun(cmd *cobra.Command, args []string) {
	conn, err := mprpc.Dial(mpdCfg.ServerAddr+":"+mpdCfg.ServerPort, mprpc.RPCMpd, time.Duration(2*time.Second))
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	req := &mprpc.MPBReallocRequest{
		ObjID:  parseObjID(args[0]),
		Mclass: mblockReallocMclass,
	}
	res := &mprpc.MPBReallocResponse{}

	cli := rpc.NewClient(conn)
	if err := cli.Call(mprpc.MpdMblockRealloc.String(), req, res); err != nil {
		log.Fatal(merr.FromMessage(err.Error()))
	}

	fmt.Printf("0x%x resumes at %d\n", res.Props.ObjID, res.Props.WriteLen)
}

func init() {
	mblockReallocCmd.Flags().StringVarP(&mpdCfg.ServerAddr, "bind", "b", config.Get("mpd.addr"), "will ask the mpd of this address")
	mblockReallocCmd.Flags().StringVarP(&mpdCfg.ServerPort, "port", "p", config.Get("mpd.port"), "will ask the mpd of this port")
	mblockReallocCmd.Flags().StringVarP(&mblockReallocMclass, "mclass", "m", "capacity", "media class holding the mblock")
}

package cli

import (
	"log"
	"net/rpc"
	"time"

	"github.com/sbejawada/mpool-kmod/pkg/merr"
	"github.com/sbejawada/mpool-kmod/pkg/mprpc"
	"github.com/sbejawada/mpool-kmod/pkg/util/config"
	"github.com/spf13/cobra"
)

var mblockAbortCmd = &cobra.Command{
	Use:   "abort",
	Short: "abort an uncommitted mblock [object id]",
	Long:  "discard an uncommitted mblock and everything written to it",
	Args:  objidArg,
	Run:   mblockAbortRun,
}

func mblockAbortRun(cmd *cobra.Command, args []string) {
	conn, err := mprpc.Dial(mpdCfg.ServerAddr+":"+mpdCfg.ServerPort, mprpc.RPCMpd, time.Duration(2*time.Second))
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	req := &mprpc.MPBAbortRequest{ObjID: parseObjID(args[0])}
	res := &mprpc.MPBAbortResponse{}

	cli := rpc.NewClient(conn)
	if err := cli.Call(mprpc.MpdMblockAbort.String(), req, res); err != nil {
		log.Fatal(merr.FromMessage(err.Error()))
	}
}

func init() {
	mblockAbortCmd.Flags().StringVarP(&mpdCfg.ServerAddr, "bind", "b", config.Get("mpd.addr"), "will ask the mpd of this address")
	mblockAbortCmd.Flags().StringVarP(&mpdCfg.ServerPort, "port", "p", config.Get("mpd.port"), "will ask the mpd of this port")
}

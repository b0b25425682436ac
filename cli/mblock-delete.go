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

var mblockDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "delete an mblock [object id]",
	Long:  "reclaim an mblock in either state",
	Args:  objidArg,
	Run:   mblockDeleteRun,
}

func mblockDeleteRun(cmd *cobra.Command, args []string) {
	conn, err := mprpc.Dial(mpdCfg.ServerAddr+":"+mpdCfg.ServerPort, mprpc.RPCMpd, time.Duration(2*time.Second))
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	req := &mprpc.MPBDeleteRequest{ObjID: parseObjID(args[0])}
	res := &mprpc.MPBDeleteResponse{}

	cli := rpc.NewClient(conn)
	if err := cli.Call(mprpc.MpdMblockDelete.String(), req, res); err != nil {
		log.Fatal(merr.FromMessage(err.Error()))
	}
}

func init() {
	mblockDeleteCmd.Flags().StringVarP(&mpdCfg.ServerAddr, "bind", "b", config.Get("mpd.addr"), "will ask the mpd of this address")
	mblockDeleteCmd.Flags().StringVarP(&mpdCfg.ServerPort, "port", "p", config.Get("mpd.port"), "will ask the mpd of this port")
}

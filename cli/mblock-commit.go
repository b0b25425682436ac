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

var mblockCommitCmd = &cobra.Command{
	Use:   "commit",
	Short: "commit an mblock [object id]",
	Long:  "make an mblock durable and permanently read-only",
	Args:  objidArg,
	Run:   mblockCommitRun,
}

func mblockCommitRun(cmd *cobra.Command, args []string) {
	conn, err := mprpc.Dial(mpdCfg.ServerAddr+":"+mpdCfg.ServerPort, mprpc.RPCMpd, time.Duration(2*time.Second))
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	req := &mprpc.MPBCommitRequest{ObjID: parseObjID(args[0])}
	res := &mprpc.MPBCommitResponse{}

	cli := rpc.NewClient(conn)
	if err := cli.Call(mprpc.MpdMblockCommit.String(), req, res); err != nil {
		log.Fatal(merr.FromMessage(err.Error()))
	}
}

func init() {
	mblockCommitCmd.Flags().StringVarP(&mpdCfg.ServerAddr, "bind", "b", config.Get("mpd.addr"), "will ask the mpd of this address")
	mblockCommitCmd.Flags().StringVarP(&mpdCfg.ServerPort, "port", "p", config.Get("mpd.port"), "will ask the mpd of this port")
}

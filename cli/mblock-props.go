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

var mblockPropsCmd = &cobra.Command{
	Use:   "props",
	Short: "print mblock properties [object id]",
	Long:  "print mblock properties [object id]",
	Args:  objidArg,
	Run:   mblockPropsRun,
}

func mblockPropsRun(cmd *cobra.Command, args []string) {
	conn, err := mprpc.Dial(mpdCfg.ServerAddr+":"+mpdCfg.ServerPort, mprpc.RPCMpd, time.Duration(2*time.Second))
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	req := &mprpc.MPBPropsRequest{ObjID: parseObjID(args[0])}
	res := &mprpc.MPBPropsResponse{}

	cli := rpc.NewClient(conn)
	if err := cli.Call(mprpc.MpdMblockProps.String(), req, res); err != nil {
		log.Fatal(merr.FromMessage(err.Error()))
	}

	p := res.Props
	fmt.Printf("objid      0x%x\n", p.ObjID)
	fmt.Printf("mclass     %s\n", p.Mclass)
	fmt.Printf("capacity   %d\n", p.Capacity)
	fmt.Printf("write len  %d\n", p.WriteLen)
	fmt.Printf("opt io     %d\n", p.OptIOSize)
	fmt.Printf("committed  %v\n", p.Committed)
}

func init() {
	mblockPropsCmd.Flags().StringVarP(&mpdCfg.ServerAddr, "bind", "b", config.Get("mpd.addr"), "will ask the mpd of this address")
	mblockPropsCmd.Flags().StringVarP(&mpdCfg.ServerPort, "port", "p", config.Get("mpd.port"), "will ask the mpd of this port")
}

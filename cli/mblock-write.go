package cli

import (
	"fmt"
	"io"
	"log"
	"net/rpc"
	"os"
	"time"

	"github.com/sbejawada/mpool-kmod/pkg/merr"
	"github.com/sbejawada/mpool-kmod/pkg/mprpc"
	"github.com/sbejawada/mpool-kmod/pkg/util/config"
	"github.com/spf13/cobra"
)

var mblockWriteCmd = &cobra.Command{
	Use:   "write",
	Short: "write a file into an mblock [object id] [file]",
	Long:  "stream a local file into an uncommitted mblock in optimal-write-size chunks",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 2 {
			return fmt.Errorf("requires an object id and a file path")
		}
		return objidArg(cmd, args[:1])
	},
	Run: mblockWriteRun,
}

func mblockWriteRun(cmd *cobra.Command, args []string) {
	objid := parseObjID(args[0])

	f, err := os.Open(args[1])
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	conn, err := mprpc.Dial(mpdCfg.ServerAddr+":"+mpdCfg.ServerPort, mprpc.RPCMpd, time.Duration(2*time.Second))
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()
	cli := rpc.NewClient(conn)

	props := &mprpc.MPBPropsResponse{}
	if err := cli.Call(mprpc.MpdMblockProps.String(), &mprpc.MPBPropsRequest{ObjID: objid}, props); err != nil {
		log.Fatal(merr.FromMessage(err.Error()))
	}

	// A rerun resumes where the previous stream stopped.
	if props.Props.WriteLen > 0 {
		if _, err := f.Seek(int64(props.Props.WriteLen), io.SeekStart); err != nil {
			log.Fatal(err)
		}
	}

	buf := make([]byte, props.Props.OptIOSize)
	wlen := props.Props.WriteLen
	for {
		n, err := io.ReadFull(f, buf)
		if n > 0 {
			req := &mprpc.MPBWriteRequest{ObjID: objid, Data: buf[:n]}
			res := &mprpc.MPBWriteResponse{}
			if cerr := cli.Call(mprpc.MpdMblockWrite.String(), req, res); cerr != nil {
				log.Fatal(merr.FromMessage(cerr.Error()))
			}
			wlen = res.WriteLen
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			log.Fatal(err)
		}
	}

	fmt.Printf("0x%x holds %d bytes\n", objid, wlen)
}

func init() {
	mblockWriteCmd.Flags().StringVarP(&mpdCfg.ServerAddr, "bind", "b", config.Get("mpd.addr"), "will ask the mpd of this address")
	mblockWriteCmd.Flags().StringVarP(&mpdCfg.ServerPort, "port", "p", config.Get("mpd.port"), "will ask the mpd of this port")
}

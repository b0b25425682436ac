package cli

import (
	"log"
	"net/rpc"
	"os"
	"strconv"
	"time"

	"github.com/sbejawada/mpool-kmod/pkg/merr"
	"github.com/sbejawada/mpool-kmod/pkg/mprpc"
	"github.com/sbejawada/mpool-kmod/pkg/util/config"
	"github.com/spf13/cobra"
)

// readChunk caps how much data one read rpc moves.
const readChunk = 1 << 20

var (
	mblockReadOffset string
	mblockReadLength string
	mblockReadOut    string
)

var mblockReadCmd = &cobra.Command{
	Use:   "read",
	Short: "read a committed mblock [object id]",
	Long:  "read a range of a committed mblock to stdout or a file",
	Args:  objidArg,
	Run:   mblockReadRun,
}

func mblockReadRun(cmd *cobra.Command, args []string) {
	objid := parseObjID(args[0])

	offset, err := strconv.ParseUint(mblockReadOffset, 0, 64)
	if err != nil {
		log.Fatal(err)
	}

	out := os.Stdout
	if mblockReadOut != "" {
		f, err := os.Create(mblockReadOut)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		out = f
	}

	conn, err := mprpc.Dial(mpdCfg.ServerAddr+":"+mpdCfg.ServerPort, mprpc.RPCMpd, time.Duration(2*time.Second))
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()
	cli := rpc.NewClient(conn)

	var length uint64
	if mblockReadLength != "" {
		length, err = strconv.ParseUint(mblockReadLength, 0, 64)
		if err != nil {
			log.Fatal(err)
		}
	} else {
		props := &mprpc.MPBPropsResponse{}
		if err := cli.Call(mprpc.MpdMblockProps.String(), &mprpc.MPBPropsRequest{ObjID: objid}, props); err != nil {
			log.Fatal(merr.FromMessage(err.Error()))
		}
		if offset >= uint64(props.Props.WriteLen) {
			return
		}
		length = uint64(props.Props.WriteLen) - offset
	}

	for length > 0 {
		n := length
		if n > readChunk {
			n = readChunk
		}

		req := &mprpc.MPBReadRequest{ObjID: objid, Offset: offset, Length: n}
		res := &mprpc.MPBReadResponse{}
		if err := cli.Call(mprpc.MpdMblockRead.String(), req, res); err != nil {
			log.Fatal(merr.FromMessage(err.Error()))
		}
		if len(res.Data) == 0 {
			break
		}

		if _, err := out.Write(res.Data); err != nil {
			log.Fatal(err)
		}
		offset += uint64(len(res.Data))
		length -= uint64(len(res.Data))

		// A short chunk means the written length was reached.
		if uint64(len(res.Data)) < n {
			break
		}
	}
}

func init() {
	mblockReadCmd.Flags().StringVarP(&mpdCfg.ServerAddr, "bind", "b", config.Get("mpd.addr"), "will ask the mpd of this address")
	mblockReadCmd.Flags().StringVarP(&mpdCfg.ServerPort, "port", "p", config.Get("mpd.port"), "will ask the mpd of this port")
	mblockReadCmd.Flags().StringVarP(&mblockReadOffset, "offset", "", "0", "byte offset to start reading at, page aligned")
	mblockReadCmd.Flags().StringVarP(&mblockReadLength, "length", "", "", "bytes to read, empty reads to the written length")
	mblockReadCmd.Flags().StringVarP(&mblockReadOut, "out", "o", "", "file to write to, empty writes to stdout")
}

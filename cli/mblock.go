package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var mblockCmd = &cobra.Command{
	Use:   "mblock",
	Short: "mblock control commands",
	Long:  "mblock control commands",
	Run:   mblockRun,
}

func mblockRun(cmd *cobra.Command, args []string) {
	cmd.Help()
}

// objidArg accepts exactly one object id, decimal or 0x-prefixed.
func objidArg(cmd *cobra.Command, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("requires an object id")
	}
	if len(args) > 1 {
		return fmt.Errorf("requires only one object id")
	}
	if _, err := strconv.ParseUint(args[0], 0, 64); err != nil {
		return fmt.Errorf("malformed object id %q", args[0])
	}
	return nil
}

func parseObjID(s string) uint64 {
	v, _ := strconv.ParseUint(s, 0, 64)
	return v
}

func init() {
	mblockCmd.AddCommand(mblockAllocCmd)
	mblockCmd.AddCommand(mblockReallocCmd)
	mblockCmd.AddCommand(mblockWriteCmd)
	mblockCmd.AddCommand(mblockReadCmd)
	mblockCmd.AddCommand(mblockCommitCmd)
	mblockCmd.AddCommand(mblockAbortCmd)
	mblockCmd.AddCommand(mblockDeleteCmd)
	mblockCmd.AddCommand(mblockPropsCmd)
}

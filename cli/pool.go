package cli

import (
	"github.com/spf13/cobra"
)

var poolCmd = &cobra.Command{
	Use:   "pool",
	Short: "pool control commands",
	Long:  "pool control commands",
	Run:   poolRun,
}

func poolRun(cmd *cobra.Command, args []string) {
	cmd.Help()
}

func init() {
	poolCmd.AddCommand(poolCreateCmd)
}

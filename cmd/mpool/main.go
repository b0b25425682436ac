package main

import (
	"os"

	"github.com/sbejawada/mpool-kmod/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

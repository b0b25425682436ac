package cli

import (
	"fmt"
	"log"
	"strconv"

	"github.com/sbejawada/mpool-kmod/pkg/mpool"
	"github.com/sbejawada/mpool-kmod/pkg/omf"
	"github.com/sbejawada/mpool-kmod/pkg/util/config"
	"github.com/spf13/cobra"
)

var poolCfg config.Pool

var (
	poolCreateCapSize  string
	poolCreateStagSize string
)

var poolCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "create a media pool on the given devices",
	Long:  "create a media pool on the given devices",
	Run:   poolCreateRun,
}

func poolCreateRun(cmd *cobra.Command, args []string) {
	params := mpool.CreateParams{
		Name: poolCfg.Name,
		Dir:  poolCfg.Dir,
	}

	capSize, err := parseSize(poolCreateCapSize)
	if err != nil {
		log.Fatal(err)
	}
	params.Drives = append(params.Drives, omf.DriveSpec{
		Path:   poolCfg.CapacityDev,
		Mclass: "capacity",
		Size:   capSize,
	})

	if poolCfg.StagingDev != "" {
		stagSize, err := parseSize(poolCreateStagSize)
		if err != nil {
			log.Fatal(err)
		}
		params.Drives = append(params.Drives, omf.DriveSpec{
			Path:   poolCfg.StagingDev,
			Mclass: "staging",
			Size:   stagSize,
		})
	}

	if poolCfg.MblockCap != "" {
		v, err := strconv.ParseUint(poolCfg.MblockCap, 10, 32)
		if err != nil {
			log.Fatal(err)
		}
		params.MblockCap = uint32(v)
	}
	if poolCfg.OptIOSize != "" {
		v, err := strconv.ParseUint(poolCfg.OptIOSize, 10, 32)
		if err != nil {
			log.Fatal(err)
		}
		params.OptIOSize = uint32(v)
	}
	if poolCfg.SparePct != "" {
		v, err := strconv.ParseUint(poolCfg.SparePct, 10, 8)
		if err != nil {
			log.Fatal(err)
		}
		params.SparePct = uint8(v)
	}

	if err := mpool.Create(params); err != nil {
		log.Fatal(err)
	}
}

// parseSize reads a byte count. Zero or empty keeps the native size
// of a raw block device.
func parseSize(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("device size %q: %v", s, err)
	}
	return v, nil
}

func init() {
	poolCreateCmd.Flags().StringVarP(&poolCfg.Name, "name", "n", config.Get("pool.name"), "name of the pool")
	poolCreateCmd.Flags().StringVarP(&poolCfg.Dir, "dir", "d", config.Get("pool.dir"), "directory to hold the pool superblock and object table")

	poolCreateCmd.Flags().StringVarP(&poolCfg.CapacityDev, "capacity-dev", "", config.Get("pool.capacity_dev"), "path of the capacity class device")
	poolCreateCmd.Flags().StringVarP(&poolCreateCapSize, "capacity-size", "", config.Get("pool.capacity_size"), "size of the capacity device file in bytes, 0 for raw devices")
	poolCreateCmd.Flags().StringVarP(&poolCfg.StagingDev, "staging-dev", "", config.Get("pool.staging_dev"), "path of the staging class device, empty for none")
	poolCreateCmd.Flags().StringVarP(&poolCreateStagSize, "staging-size", "", config.Get("pool.staging_size"), "size of the staging device file in bytes, 0 for raw devices")

	poolCreateCmd.Flags().StringVarP(&poolCfg.MblockCap, "mblock-cap", "", config.Get("pool.mblock_cap"), "capacity of one mblock in bytes")
	poolCreateCmd.Flags().StringVarP(&poolCfg.OptIOSize, "opt-io-size", "", config.Get("pool.opt_io_size"), "optimal write size of the devices in bytes")
	poolCreateCmd.Flags().StringVarP(&poolCfg.SparePct, "spare-pct", "", config.Get("pool.spare_pct"), "percentage of slots kept as spares")
}

package cli

import (
	"log"
	"os"

	"github.com/sbejawada/mpool-kmod/app/mpd"
	"github.com/sbejawada/mpool-kmod/pkg/util/config"
	"github.com/spf13/cobra"
)

var mpdCfg config.Mpd

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run the media pool daemon",
	Long:  "run the media pool daemon",
	Run:   serveRun,
}

func serveRun(cmd *cobra.Command, args []string) {
	if mpdCfg.WorkDir != "" {
		if err := os.Chdir(mpdCfg.WorkDir); err != nil {
			log.Fatal(err)
		}
	}

	if err := mpd.Bootstrap(mpdCfg); err != nil {
		log.Fatal(err)
	}
}

func init() {
	serveCmd.Flags().StringVarP(&mpdCfg.ServerAddr, "bind", "b", config.Get("mpd.addr"), "address to which the mpd will bind")
	serveCmd.Flags().StringVarP(&mpdCfg.ServerPort, "port", "p", config.Get("mpd.port"), "port on which the mpd will listen")

	serveCmd.Flags().StringVarP(&mpdCfg.WorkDir, "work-dir", "", config.Get("mpd.work_dir"), "working directory")

	serveCmd.Flags().StringVarP(&mpdCfg.Pool.Dir, "pool-dir", "", config.Get("pool.dir"), "directory holding the pool superblock and object table")
	serveCmd.Flags().StringVarP(&mpdCfg.Pool.ReadAhead, "pool-read-ahead", "", config.Get("pool.read_ahead"), "read probe tolerance past the written length in bytes")
	serveCmd.Flags().StringVarP(&mpdCfg.Pool.FUA, "pool-fua", "", config.Get("pool.fua"), "open the pool devices write-through")

	serveCmd.Flags().StringVarP(&mpdCfg.Security.CertsDir, "secure-certs-dir", "", config.Get("security.certs_dir"), "directory path of secure configuration files")
	serveCmd.Flags().StringVarP(&mpdCfg.Security.RootCAPem, "secure-rootca-pem", "", config.Get("security.rootca_pem"), "file name of rootCA.pem")
	serveCmd.Flags().StringVarP(&mpdCfg.Security.ServerKey, "secure-server-key", "", config.Get("security.server_key"), "file name of server key")
	serveCmd.Flags().StringVarP(&mpdCfg.Security.ServerCrt, "secure-server-crt", "", config.Get("security.server_crt"), "file name of server crt")

	serveCmd.Flags().StringVarP(&mpdCfg.LogLocation, "log", "l", config.Get("mpd.log_location"), "log location of the mpd will print out")
}

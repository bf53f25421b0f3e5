package main

import (
	"github.com/spf13/cobra"

	"shelfrank/internal/daemon"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the daemon: HTTP API, scheduled cycles, and file watching",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := daemon.New(cfg, logger)
		if err != nil {
			return err
		}
		return d.Run()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

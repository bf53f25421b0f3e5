package main

import (
	"github.com/spf13/cobra"

	"shelfrank/internal/setup"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Initialize the data directory and write a starter config",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := setup.Run(cfg.Data.Dir, cfgFile); err != nil {
			return err
		}
		printer.Success("initialized %s", cfg.Data.Dir)
		printer.Print("next steps:")
		printer.Print("  shelfrank submit <product-url>")
		printer.Print("  shelfrank cycle")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

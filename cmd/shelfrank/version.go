package main

import (
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the shelfrank version",
	Run: func(cmd *cobra.Command, args []string) {
		printer.Print("shelfrank %s", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

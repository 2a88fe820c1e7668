package cmd

import (
	"github.com/spf13/cobra"
)

var RootCmd = &cobra.Command{
	Use:   "payflo",
	Short: "split bills with friends",
	Long:  `payflo is a bill splitting backend: groups, expenses, scanned receipts and the transfers that settle them`,
}

func init() {
	RootCmd.AddCommand(settleCmd())
	RootCmd.AddCommand(serverCommand())
	RootCmd.AddCommand(migrateCommand())
}

package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "taskq",
	Short: "taskq - tasks, collections and a replenishing worker pool",
	Long: `taskq runs batches of tasks on a self-replenishing worker pool and
replays their results in submission order, reverse order or as they finish.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
}

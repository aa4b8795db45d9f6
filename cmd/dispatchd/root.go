package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dispatchd",
	Short: "dispatchd routes webhook triggers and sticky protocol sessions across a node pool",
	Long: `dispatchd runs the dispatch plane of a flow automation cluster.

A "serve" node accepts webhook calls and protocol sessions, enqueues
execution jobs, and blocks for results that any worker in the pool may
produce. A "worker" node drains the job queue and calls home with the
results.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a yaml config file (env vars win)")
}

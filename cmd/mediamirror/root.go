package main

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "mediamirror",
	Short: "Bulk-mirror remote media files to local storage",
	Long: `mediamirror downloads the media files listed in a manifest to a local
directory, riding out flaky endpoints with per-item retry/backoff, stall
detection and atomic on-disk materialization.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (default config.yaml)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(reconcileCmd)
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mediamirror/mediamirror/internal/infra/config"
	"github.com/mediamirror/mediamirror/internal/infra/logger"
	"github.com/mediamirror/mediamirror/internal/reconcile"
)

var (
	reconcileRemove bool
	reconcileOut    string
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "List or remove orphaned partial-download artifacts",
	Long: `Failed or abandoned downloads leave a *.partial artifact behind on
purpose: the pipeline never deletes data. reconcile finds those artifacts in
the download directory and, with --rm, removes them.`,
	RunE: runReconcile,
}

func init() {
	reconcileCmd.Flags().BoolVar(&reconcileRemove, "rm", false, "remove the artifacts instead of just listing them")
	reconcileCmd.Flags().StringVarP(&reconcileOut, "out", "o", "", "download directory (overrides config)")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if reconcileOut != "" {
		cfg.Download.OutDir = reconcileOut
	}

	log, err := logger.New(cfg.Log.Path, logger.ParseLevel(cfg.Log.Level), cfg.Log.IncludeStdout)
	if err != nil {
		return fmt.Errorf("could not open log file: %w", err)
	}

	report, err := reconcile.Sweep(cfg.Download.OutDir, reconcileRemove, log)
	if err != nil {
		return err
	}

	log.Info("Reconcile: %d orphaned artifact(s) found, %d removed", len(report.Orphans), report.Removed)
	return nil
}

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sedrubal/brother-printer-fwupd/models"
	"github.com/sedrubal/brother-printer-fwupd/pipeline"
	"github.com/sedrubal/brother-printer-fwupd/storage"
)

var flagDownloadOnly bool

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Run the full update pipeline for one or all discovered printers",
	Long: `Run the full update pipeline: query each printer via SNMP, ask the
Brother update service for newer firmware, download and upload it.
Without --ip every printer discovered via mDNS is updated; devices run
independently and one failure does not stop the others.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		devices, err := targetDevices(ctx)
		if err != nil {
			return err
		}

		started := time.Now()
		orch := pipeline.New(pipeline.Options{
			Config:       cfg,
			Log:          log,
			DownloadOnly: flagDownloadOnly,
		})
		outcomes := orch.Run(ctx, devices)

		if cfg.History.Path != "" {
			store, err := storage.NewHistoryStore(cfg.History.Path)
			if err != nil {
				log.Warn("Cannot open history database", "path", cfg.History.Path, "error", err)
			} else {
				defer store.Close()
				if _, err := store.RecordRun(ctx, started, outcomes); err != nil {
					log.Warn("Cannot record run history", "error", err)
				}
			}
		}

		printSummary(outcomes)

		for _, o := range outcomes {
			if o.Failed() {
				return fmt.Errorf("update failed for at least one device")
			}
		}
		return ctx.Err()
	},
}

func init() {
	updateCmd.Flags().BoolVar(&flagDownloadOnly, "download-only", false,
		"download firmware into the firmware directory but do not install it")
}

// printSummary renders the per-device report at the end of a run.
func printSummary(outcomes []models.Outcome) {
	fmt.Println()
	fmt.Println("Summary:")
	for _, o := range outcomes {
		label := o.Device.Address
		if o.Model != "" {
			label += " (" + o.Model + ")"
		}
		switch o.State {
		case models.StateUploaded:
			fmt.Printf("  %-40s uploaded: %v\n", label, o.Uploaded)
		case models.StateDownloaded:
			fmt.Printf("  %-40s downloaded: %v\n", label, o.Uploaded)
		case models.StateSkipped:
			fmt.Printf("  %-40s up to date\n", label)
		case models.StateFailed:
			fmt.Printf("  %-40s FAILED: %s\n", label, o.Reason)
		default:
			fmt.Printf("  %-40s %s\n", label, o.State)
		}
	}
}

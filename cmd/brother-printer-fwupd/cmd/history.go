package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sedrubal/brother-printer-fwupd/storage"
)

var flagHistoryLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent update runs from the history database",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		if cfg.History.Path == "" {
			return fmt.Errorf("history is disabled; set history.path in the configuration")
		}

		store, err := storage.NewHistoryStore(cfg.History.Path)
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.LastRuns(ctx, flagHistoryLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No recorded runs.")
			return nil
		}

		for _, run := range runs {
			fmt.Printf("%s  %s\n", run.Started.Local().Format("2006-01-02 15:04:05"), run.ID)
			for _, o := range run.Outcomes {
				line := fmt.Sprintf("  %-18s %-10s", o.Address, o.State)
				if o.Model != "" {
					line += " " + o.Model
				}
				if o.Uploaded != "" {
					line += " " + o.Uploaded
				}
				if o.Reason != "" && o.State == "failed" {
					line += " (" + o.Reason + ")"
				}
				fmt.Println(line)
			}
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&flagHistoryLimit, "limit", "n", 10, "number of runs to show")
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sedrubal/brother-printer-fwupd/discovery"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find printers on the local network via mDNS",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		browser := discovery.NewBrowser(cfg.Discovery, log)
		devices, err := browser.Discover(ctx)
		if err != nil {
			return err
		}
		if len(devices) == 0 {
			fmt.Println("No printers found.")
			return nil
		}

		for _, dev := range devices {
			line := fmt.Sprintf("%s port %d", dev.Address, dev.UploadPort)
			if dev.Product != "" {
				line += " - " + dev.Product
			}
			if dev.Name != "" {
				line += " (" + dev.Name + ")"
			}
			fmt.Println(line)
		}
		return nil
	},
}

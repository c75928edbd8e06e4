package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sedrubal/brother-printer-fwupd/snmpinfo"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Query printer identity and firmware versions via SNMP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		devices, err := targetDevices(ctx)
		if err != nil {
			return err
		}

		var failed bool
		for _, dev := range devices {
			info, err := snmpinfo.QueryPrinterInfo(ctx, cfg.SNMP, dev)
			if err != nil {
				log.Error("Status query failed", "address", dev.Address, "error", err)
				failed = true
				continue
			}
			fmt.Printf("%s:\n", dev.Address)
			fmt.Printf("  Model:  %s\n", info.Model)
			if info.Serial != "" {
				fmt.Printf("  Serial: %s\n", info.Serial)
			}
			if info.Spec != "" {
				fmt.Printf("  Spec:   %s\n", info.Spec)
			}
			for _, part := range info.FWParts {
				fmt.Printf("  Firmware: %s\n", part)
			}
		}
		if failed {
			return fmt.Errorf("status query failed for at least one device")
		}
		return nil
	},
}

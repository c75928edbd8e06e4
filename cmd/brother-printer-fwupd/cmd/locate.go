package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sedrubal/brother-printer-fwupd/firmware"
	"github.com/sedrubal/brother-printer-fwupd/models"
)

var locateCmd = &cobra.Command{
	Use:   "locate",
	Short: "Ask the Brother update service for the latest firmware versions",
	Long: `Ask the Brother update service for the latest available firmware
version of every firmware part of a printer, without downloading anything.

The printer identity is read via SNMP from the target device, or taken
from the --model/--serial/--spec/--fw flags to skip SNMP entirely.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		info, err := resolvePrinterInfo(ctx)
		if err != nil {
			return err
		}

		source := firmware.NewUpdateAPI(cfg.Vendor, log)
		lines, err := locateParts(ctx, source, info)
		if err != nil {
			return err
		}
		for _, line := range lines {
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	registerIdentityFlags(locateCmd)
}

// locateParts asks the update service about every firmware part of the
// printer and renders one report line per part.
func locateParts(ctx context.Context, source firmware.MetadataSource, info models.PrinterInfo) ([]string, error) {
	lines := make([]string, 0, len(info.FWParts))
	for _, part := range info.FWParts {
		meta, err := source.Locate(ctx, info, part)
		if err != nil {
			return nil, err
		}
		if meta == nil {
			lines = append(lines, fmt.Sprintf("%s: up to date (installed %s)", part.ID, part.Version))
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s -> %s (%s)", part.ID, part.Version, meta.LatestVersion, meta.URL))
	}
	return lines, nil
}

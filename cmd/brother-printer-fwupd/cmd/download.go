package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sedrubal/brother-printer-fwupd/firmware"
	"github.com/sedrubal/brother-printer-fwupd/models"
	"github.com/sedrubal/brother-printer-fwupd/snmpinfo"
)

var (
	flagModel  string
	flagSerial string
	flagSpec   string
	flagFW     []string
	flagOS     string
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Locate and download the latest firmware for a printer",
	Long: `Locate and download the latest firmware for a printer.

The printer identity is read via SNMP from the target device, or taken
from the --model/--serial/--spec/--fw flags to skip SNMP entirely.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		info, err := resolvePrinterInfo(ctx)
		if err != nil {
			return err
		}

		if flagOS != "" {
			cfg.Vendor.ReportedOS = strings.ToUpper(flagOS)
		}

		source := firmware.NewUpdateAPI(cfg.Vendor, log)
		downloader := firmware.NewDownloader(cfg.Vendor, cfg.FirmwareDir, log)
		downloader.SetProgressCallback(printProgress)

		var downloaded int
		for _, part := range info.FWParts {
			meta, err := source.Locate(ctx, info, part)
			if err != nil {
				return err
			}
			if meta == nil {
				log.Info("Firmware part is up to date", "part", part.ID)
				continue
			}
			img, err := downloader.Download(ctx, *meta)
			if err != nil {
				return err
			}
			fmt.Printf("Downloaded firmware for %s to %s\n", part.ID, img.Path)
			downloaded++
		}
		if downloaded == 0 {
			fmt.Println("All firmware parts are up to date.")
		}
		return nil
	},
}

func init() {
	registerIdentityFlags(downloadCmd)
	downloadCmd.Flags().StringVar(&flagOS, "os", "", "operating system to report to the update service (WINDOWS, MAC or LINUX)")
}

// registerIdentityFlags adds the printer identity override flags shared
// by the locate and download commands.
func registerIdentityFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagModel, "model", "", "skip SNMP by specifying the printer model")
	cmd.Flags().StringVar(&flagSerial, "serial", "", "skip SNMP by specifying the printer serial")
	cmd.Flags().StringVar(&flagSpec, "spec", "", "skip SNMP by specifying the printer spec")
	cmd.Flags().StringSliceVar(&flagFW, "fw", nil, "skip SNMP by specifying firmware parts as id@version")
}

// resolvePrinterInfo builds the printer identity either from the
// override flags or from an SNMP query against the target device.
func resolvePrinterInfo(ctx context.Context) (models.PrinterInfo, error) {
	if flagModel != "" || len(flagFW) > 0 {
		if flagModel == "" || len(flagFW) == 0 {
			return models.PrinterInfo{}, fmt.Errorf("--model and --fw must be given together to skip SNMP")
		}
		info := models.PrinterInfo{
			Model:  flagModel,
			Serial: flagSerial,
			Spec:   flagSpec,
		}
		for _, raw := range flagFW {
			part, err := models.ParseFWPart(raw)
			if err != nil {
				return models.PrinterInfo{}, err
			}
			info.FWParts = append(info.FWParts, part)
		}
		return info, nil
	}

	devices, err := targetDevices(ctx)
	if err != nil {
		return models.PrinterInfo{}, err
	}
	if len(devices) != 1 {
		return models.PrinterInfo{}, fmt.Errorf("found %d printers, pick one with --ip", len(devices))
	}
	return snmpinfo.QueryPrinterInfo(ctx, cfg.SNMP, devices[0])
}

// printProgress renders download progress on one console line.
func printProgress(percent int, bytesRead int64) {
	if percent < 0 {
		fmt.Printf("\r%d bytes", bytesRead)
		return
	}
	fmt.Printf("\r%3d %%", percent)
	if percent >= 100 {
		fmt.Println()
	}
}

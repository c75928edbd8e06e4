package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sedrubal/brother-printer-fwupd/firmware"
	"github.com/sedrubal/brother-printer-fwupd/models"
	"github.com/sedrubal/brother-printer-fwupd/snmpinfo"
)

var flagUploadModel string

var uploadCmd = &cobra.Command{
	Use:   "upload <firmware-file>",
	Short: "Upload a firmware file to a printer",
	Long: `Upload a firmware file to a printer over its PDL Datastream port.

The printer model is queried via SNMP and checked against --model when
given; a firmware file is never sent to a printer that reports a
different model. --model alone is only trusted when the SNMP query
fails.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		if flagIP == "" {
			return fmt.Errorf("--ip is required for upload")
		}
		devices, err := targetDevices(ctx)
		if err != nil {
			return err
		}
		dev := devices[0]

		path := args[0]
		stat, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("cannot read firmware file: %w", err)
		}

		var reported string
		info, queryErr := snmpinfo.QueryPrinterInfo(ctx, cfg.SNMP, dev)
		if queryErr == nil {
			reported = info.Model
		} else {
			log.Warn("Cannot query printer model via SNMP",
				"address", dev.Address, "error", queryErr)
		}
		model, err := verifyUploadModel(reported, queryErr, flagUploadModel)
		if err != nil {
			return err
		}

		img := models.FirmwareImage{
			Metadata: models.FirmwareMetadata{Model: model},
			Path:     path,
			Size:     stat.Size(),
		}

		uploader := firmware.NewUploader(cfg.Upload, log)
		if err := uploader.Upload(ctx, dev, model, img); err != nil {
			return err
		}
		fmt.Printf("Successfully uploaded %s to %s\n", path, dev.Address)
		return nil
	},
}

func init() {
	uploadCmd.Flags().StringVar(&flagUploadModel, "model", "", "printer model the firmware file belongs to")
}

// verifyUploadModel reconciles the model the printer reports over SNMP
// with the --model flag. A reachable printer wins: a flag contradicting
// the reported model refuses the upload before any bytes are sent. The
// flag stands in on its own only when the query failed.
func verifyUploadModel(reported string, queryErr error, flagModel string) (string, error) {
	if queryErr != nil {
		if flagModel == "" {
			return "", fmt.Errorf("cannot determine printer model, pass --model: %w", queryErr)
		}
		return flagModel, nil
	}
	if flagModel != "" && !strings.EqualFold(reported, flagModel) {
		return "", fmt.Errorf("%w: --model says %q but the printer reports %q",
			models.ErrModelMismatch, flagModel, reported)
	}
	return reported, nil
}

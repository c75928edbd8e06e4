// Package snmpinfo queries printer identity and installed firmware
// versions over SNMP. Brother devices expose a maintenance table whose
// entries are `NAME="value"` strings carrying the model, serial, spec
// and the FIRMID/FIRMVER pairs of every updatable firmware part.
package snmpinfo

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"

	"github.com/gosnmp/gosnmp"

	"github.com/sedrubal/brother-printer-fwupd/config"
	"github.com/sedrubal/brother-printer-fwupd/logger"
	"github.com/sedrubal/brother-printer-fwupd/models"
	"github.com/sedrubal/brother-printer-fwupd/oids"
)

// payloadRe matches the `NAME="value"` payload form of the Brother
// maintenance table.
var payloadRe = regexp.MustCompile(`^([A-Z0-9]+) ?= ?"(.*)"$`)

// QueryPrinterInfo walks the Brother maintenance table on the device and
// returns its identity together with all installed firmware parts. The
// passed Device is never modified; the result carries a copy.
func QueryPrinterInfo(ctx context.Context, cfg config.SNMPConfig, dev models.Device) (models.PrinterInfo, error) {
	info := models.PrinterInfo{Device: dev}

	client, err := NewSNMPClient(cfg, dev.Address)
	if err != nil {
		return info, fmt.Errorf("%w: %v", models.ErrDeviceUnreachable, err)
	}
	if err := client.Connect(); err != nil {
		return info, fmt.Errorf("%w: connect to %s: %v", models.ErrDeviceUnreachable, dev.Address, err)
	}
	defer client.Close()

	// Walk runs in a goroutine so cancellation interrupts the wait even
	// though gosnmp itself does not take a context.
	var payloads []string
	done := make(chan error, 1)
	go func() {
		done <- client.BulkWalk(oids.BrotherMaintenanceInfo, func(pdu gosnmp.SnmpPDU) error {
			payload := pduString(pdu)
			if payload != "" {
				payloads = append(payloads, payload)
			}
			return nil
		})
	}()

	select {
	case <-ctx.Done():
		return info, fmt.Errorf("%w: %v", models.ErrDeviceUnreachable, ctx.Err())
	case err = <-done:
	}
	if err != nil {
		if isTimeout(err) {
			return info, fmt.Errorf("%w: %s: %v", models.ErrDeviceUnreachable, dev.Address, err)
		}
		return info, fmt.Errorf("%w: walk %s: %v", models.ErrDeviceUnreachable, dev.Address, err)
	}

	if err := parsePayloads(payloads, &info); err != nil {
		return info, err
	}

	if info.Model == "" {
		return info, fmt.Errorf("%w: %s did not report a model", models.ErrUnsupportedDevice, dev.Address)
	}
	if len(info.FWParts) == 0 {
		return info, fmt.Errorf("%w: %s did not report any firmware parts", models.ErrUnsupportedDevice, dev.Address)
	}
	return info, nil
}

// parsePayloads fills info from the raw maintenance table payloads.
// FIRMID/FIRMVER arrive as separate entries and are paired in order.
func parsePayloads(payloads []string, info *models.PrinterInfo) error {
	var firmID, firmVer string
	var haveID, haveVer bool

	for _, payload := range payloads {
		match := payloadRe.FindStringSubmatch(payload)
		if match == nil {
			if logger.Global != nil {
				logger.Global.Debug("Ignoring unparsable SNMP payload", "payload", payload)
			}
			continue
		}
		name, value := match[1], match[2]

		switch name {
		case "MODEL":
			info.Model = value
		case "SERIAL":
			info.Serial = value
		case "SPEC":
			info.Spec = value
		case "FIRMID":
			firmID, haveID = value, true
		case "FIRMVER":
			firmVer, haveVer = value, true
		default:
			if logger.Global != nil {
				logger.Global.Debug("Ignoring SNMP info", "name", name, "value", value)
			}
		}

		if haveID && haveVer {
			info.FWParts = append(info.FWParts, models.FWPart{ID: firmID, Version: firmVer})
			haveID, haveVer = false, false
		}
	}

	if haveID || haveVer {
		return fmt.Errorf("%w: unpaired firmware id/version (id=%q ver=%q)",
			models.ErrUnsupportedDevice, firmID, firmVer)
	}
	return nil
}

// pduString extracts a trimmed string payload from a walked PDU.
func pduString(pdu gosnmp.SnmpPDU) string {
	switch v := pdu.Value.(type) {
	case []byte:
		return strings.TrimSpace(string(v))
	case string:
		return strings.TrimSpace(v)
	default:
		return ""
	}
}

func isTimeout(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}

// brother-printer-fwupd updates the firmware of Brother network printers:
// it discovers devices via mDNS, reads their identity over SNMP, asks the
// Brother update service for newer firmware, downloads it and streams it
// to the printer's PDL Datastream port.
package main

import "github.com/sedrubal/brother-printer-fwupd/cmd/brother-printer-fwupd/cmd"

func main() {
	cmd.Execute()
}

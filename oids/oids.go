// Package oids centralizes the SNMP OIDs used by the firmware update
// tool so callers avoid scattering raw dotted strings.
package oids

const (
	// --- System MIB (RFC 1213) ---

	// SysDescr reports a human-readable system description string.
	SysDescr = "1.3.6.1.2.1.1.1.0"
	// SysObjectID contains the authoritative enterprise OID for the device.
	SysObjectID = "1.3.6.1.2.1.1.2.0"
)

const (
	// --- Brother enterprise MIB (IANA enterprise 2435) ---

	// BrotherMaintenanceInfo is the table carrying MODEL, SERIAL, SPEC and
	// FIRMID/FIRMVER pairs as `NAME="value"` strings. Equivalent to
	// `snmpwalk -v 2c -c public <printer> 1.3.6.1.4.1.2435.2.4.3.99.3.1.6.1.2`.
	BrotherMaintenanceInfo = "1.3.6.1.4.1.2435.2.4.3.99.3.1.6.1.2"

	// BrotherEnterprise is the Brother enterprise prefix, useful to check
	// whether a device's sysObjectID really is a Brother printer.
	BrotherEnterprise = "1.3.6.1.4.1.2435"
)

// Package models holds the value types passed between pipeline stages:
// discovered devices, queried printer identity, firmware metadata and
// images, and per-device transfer outcomes.
package models

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// DefaultSNMPPort is the UDP port for SNMP queries against the printer.
const DefaultSNMPPort = 161

// DefaultPDLPort is the TCP port for PDL Datastream / jetdirect transfers.
const DefaultPDLPort = 9100

// Device describes one printer found via discovery or supplied on the
// command line. Address and UploadPort never change after creation.
type Device struct {
	Address    string `json:"address"`
	UploadPort int    `json:"upload_port"`
	// Name is the mDNS instance name when discovered, empty otherwise.
	Name string `json:"name,omitempty"`
	// Product is the advertised product string from the mDNS TXT record.
	Product string `json:"product,omitempty"`
	// Note is the advertised note from the mDNS TXT record.
	Note string `json:"note,omitempty"`
	// UUID is the advertised device UUID from the mDNS TXT record.
	UUID string `json:"uuid,omitempty"`
}

// NewDevice validates addr and returns a Device with the default upload port.
// Both literal IPs and hostnames are accepted.
func NewDevice(addr string) (Device, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return Device{}, fmt.Errorf("empty device address")
	}
	if strings.ContainsAny(addr, " /\\") {
		return Device{}, fmt.Errorf("invalid device address %q", addr)
	}
	return Device{Address: addr, UploadPort: DefaultPDLPort}, nil
}

// Endpoint returns the host:port pair for the firmware upload channel.
func (d Device) Endpoint() string {
	port := d.UploadPort
	if port == 0 {
		port = DefaultPDLPort
	}
	return net.JoinHostPort(d.Address, fmt.Sprintf("%d", port))
}

// FWPart identifies one updatable firmware fragment (MAIN, SUB1, ...)
// together with its installed version.
type FWPart struct {
	ID      string `json:"id"`
	Version string `json:"version"`
}

// String renders the part in the id@version form used on the command line.
func (p FWPart) String() string {
	return p.ID + "@" + p.Version
}

// ParseFWPart parses the id@version command line form.
func ParseFWPart(value string) (FWPart, error) {
	id, ver, ok := strings.Cut(value, "@")
	if !ok || id == "" || ver == "" {
		return FWPart{}, fmt.Errorf("invalid firmware part %q, expected id@version", value)
	}
	return FWPart{ID: id, Version: ver}, nil
}

// PrinterInfo is the identity a status query yields: the device it was
// read from plus model, serial, spec and installed firmware parts.
// Enriching never modifies the source Device.
type PrinterInfo struct {
	Device  Device   `json:"device"`
	Model   string   `json:"model"`
	Serial  string   `json:"serial,omitempty"`
	Spec    string   `json:"spec,omitempty"`
	FWParts []FWPart `json:"fw_parts"`
}

// FirmwareMetadata describes one downloadable firmware build located on
// the vendor update service.
type FirmwareMetadata struct {
	Model         string `json:"model"`
	PartID        string `json:"part_id"`
	LatestVersion string `json:"latest_version"`
	URL           string `json:"url"`
	// SHA256 is the hex digest of the image when the vendor provides one.
	SHA256 string `json:"sha256,omitempty"`
	// Size is the expected byte size, 0 when unknown.
	Size int64 `json:"size,omitempty"`
}

// FirmwareImage is a fully downloaded and verified firmware binary on
// local disk. The downloader only hands out images after the file has
// been completely written and checked.
type FirmwareImage struct {
	Metadata FirmwareMetadata `json:"metadata"`
	Path     string           `json:"path"`
	Size     int64            `json:"size"`
}

// MatchesModel reports whether the image was located for the given
// printer model. Uploads of mismatched images are refused up front.
func (img FirmwareImage) MatchesModel(model string) bool {
	return img.Metadata.Model != "" && strings.EqualFold(img.Metadata.Model, model)
}

// OutcomeState is the terminal state of one device's update pipeline.
type OutcomeState string

const (
	StateDiscovered OutcomeState = "discovered"
	StateQueried    OutcomeState = "queried"
	StateLocated    OutcomeState = "located"
	StateDownloaded OutcomeState = "downloaded"
	StateUploaded   OutcomeState = "uploaded"
	StateSkipped    OutcomeState = "skipped"
	StateFailed     OutcomeState = "failed"
)

// Terminal reports whether the state ends a device's pipeline.
// Downloaded is terminal too: download-only runs stop there on purpose.
func (s OutcomeState) Terminal() bool {
	return s == StateUploaded || s == StateSkipped || s == StateFailed || s == StateDownloaded
}

// Outcome records the terminal result for one device.
type Outcome struct {
	Device   Device       `json:"device"`
	Model    string       `json:"model,omitempty"`
	State    OutcomeState `json:"state"`
	Reason   string       `json:"reason,omitempty"`
	Err      error        `json:"-"`
	Uploaded []FWPart     `json:"uploaded,omitempty"`
	Finished time.Time    `json:"finished"`
}

// Failed reports whether the device pipeline ended in a failure.
func (o Outcome) Failed() bool {
	return o.State == StateFailed
}

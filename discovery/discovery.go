// Package discovery finds printers on the local network via mDNS/DNS-SD.
// Brother printers advertise their raw print channel as
// _pdl-datastream._tcp, so one browse of that service type yields both
// the address and the firmware upload port of every reachable device.
package discovery

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/grandcat/zeroconf"

	"github.com/sedrubal/brother-printer-fwupd/config"
	"github.com/sedrubal/brother-printer-fwupd/logger"
	"github.com/sedrubal/brother-printer-fwupd/models"
)

// Browser resolves printers within a bounded discovery window.
type Browser struct {
	cfg config.DiscoveryConfig
	log *logger.Logger

	// newResolver is swapped out by tests.
	newResolver func() (resolver, error)
}

// resolver is the subset of zeroconf.Resolver the browser uses.
type resolver interface {
	Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
}

// NewBrowser creates an mDNS browser with the given settings.
func NewBrowser(cfg config.DiscoveryConfig, log *logger.Logger) *Browser {
	return &Browser{
		cfg: cfg,
		log: log,
		newResolver: func() (resolver, error) {
			return zeroconf.NewResolver(nil)
		},
	}
}

// Discover browses for printers until the discovery window elapses or
// ctx is cancelled. It returns every distinct device seen, an empty
// slice when the window passes quietly, and an error only when no
// usable network interface is available. A malformed advertisement is
// skipped, never fatal.
func (b *Browser) Discover(ctx context.Context) ([]models.Device, error) {
	res, err := b.newResolver()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrNoUsableInterface, err)
	}

	window := b.cfg.Window()
	browseCtx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	byAddr := make(map[string]models.Device)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for entry := range entries {
			for _, dev := range entryToDevices(entry) {
				if _, seen := byAddr[dev.Address]; seen {
					continue
				}
				byAddr[dev.Address] = dev
				b.log.Info("Discovered printer",
					"address", dev.Address, "port", dev.UploadPort, "name", dev.Name)
			}
		}
	}()

	b.log.Debug("mDNS browse start", "service", b.cfg.Service, "domain", b.cfg.Domain, "window", window)
	if err := res.Browse(browseCtx, b.cfg.Service, b.cfg.Domain, entries); err != nil {
		cancel()
		<-done
		return nil, fmt.Errorf("%w: browse failed: %v", models.ErrNoUsableInterface, err)
	}

	// Browse closes the entries channel once the window context is done.
	<-done

	devices := make([]models.Device, 0, len(byAddr))
	for _, dev := range byAddr {
		devices = append(devices, dev)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Address < devices[j].Address })
	return devices, nil
}

// entryToDevices converts one service entry into devices, one per
// advertised IPv4 address. Entries without addresses are skipped.
func entryToDevices(entry *zeroconf.ServiceEntry) []models.Device {
	if entry == nil || len(entry.AddrIPv4) == 0 {
		return nil
	}
	props := parseTXT(entry.Text)

	var devices []models.Device
	for _, ip := range entry.AddrIPv4 {
		port := entry.Port
		if port <= 0 {
			port = models.DefaultPDLPort
		}
		devices = append(devices, models.Device{
			Address:    ip.String(),
			UploadPort: port,
			Name:       entry.Instance,
			Product:    props["product"],
			Note:       props["note"],
			UUID:       props["UUID"],
		})
	}
	return devices
}

// parseTXT splits mDNS TXT records of the key=value form into a map.
func parseTXT(txt []string) map[string]string {
	props := make(map[string]string, len(txt))
	for _, record := range txt {
		key, value, ok := strings.Cut(record, "=")
		if !ok || key == "" {
			continue
		}
		props[key] = value
	}
	return props
}

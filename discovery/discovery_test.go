package discovery

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"

	"github.com/sedrubal/brother-printer-fwupd/config"
	"github.com/sedrubal/brother-printer-fwupd/logger"
	"github.com/sedrubal/brother-printer-fwupd/models"
)

func testLogger() *logger.Logger {
	log := logger.New(logger.ERROR)
	log.SetConsoleOutput(false)
	return log
}

// fakeResolver emits a fixed set of service entries and closes the
// channel when the browse context ends, like the zeroconf resolver.
type fakeResolver struct {
	entries []*zeroconf.ServiceEntry
}

func (f *fakeResolver) Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	go func() {
		defer close(entries)
		for _, e := range f.entries {
			select {
			case <-ctx.Done():
				return
			case entries <- e:
			}
		}
		<-ctx.Done()
	}()
	return nil
}

func entry(instance string, ip string, port int, txt ...string) *zeroconf.ServiceEntry {
	e := &zeroconf.ServiceEntry{Port: port, Text: txt}
	e.Instance = instance
	if ip != "" {
		e.AddrIPv4 = []net.IP{net.ParseIP(ip)}
	}
	return e
}

func newTestBrowser(entries ...*zeroconf.ServiceEntry) *Browser {
	b := NewBrowser(config.DiscoveryConfig{
		Service:  "_pdl-datastream._tcp",
		Domain:   "local.",
		WindowMs: 100,
	}, testLogger())
	b.newResolver = func() (resolver, error) {
		return &fakeResolver{entries: entries}, nil
	}
	return b
}

func TestDiscoverFindsPrinters(t *testing.T) {
	t.Parallel()

	b := newTestBrowser(
		entry("Brother MFC-9332CDW", "192.0.2.7", 9100,
			"product=MFC-9332CDW", "note=Printer", "UUID=e3248000-80ce-11db-8000-3c2af4a1e0e7"),
		entry("Brother HL-L2360DW", "192.0.2.8", 9100, "product=HL-L2360DW"),
	)

	devices, err := b.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("got %d devices, want 2", len(devices))
	}

	want := models.Device{
		Address:    "192.0.2.7",
		UploadPort: 9100,
		Name:       "Brother MFC-9332CDW",
		Product:    "MFC-9332CDW",
		Note:       "Printer",
		UUID:       "e3248000-80ce-11db-8000-3c2af4a1e0e7",
	}
	if devices[0] != want {
		t.Errorf("device = %+v, want %+v", devices[0], want)
	}
}

func TestDiscoverDeduplicatesAddresses(t *testing.T) {
	t.Parallel()

	b := newTestBrowser(
		entry("printer", "192.0.2.7", 9100),
		entry("printer again", "192.0.2.7", 9100),
	)

	devices, err := b.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(devices) != 1 {
		t.Errorf("got %d devices, want 1", len(devices))
	}
}

func TestDiscoverSkipsMalformedEntries(t *testing.T) {
	t.Parallel()

	b := newTestBrowser(
		nil,                             // nil entry
		entry("no address", "", 9100),   // advertisement without an address
		entry("ok", "192.0.2.9", 0),     // missing port falls back to 9100
	)

	devices, err := b.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("got %d devices, want 1", len(devices))
	}
	if devices[0].UploadPort != models.DefaultPDLPort {
		t.Errorf("UploadPort = %d, want default", devices[0].UploadPort)
	}
}

func TestDiscoverEmptyWindow(t *testing.T) {
	t.Parallel()

	b := newTestBrowser()
	start := time.Now()
	devices, err := b.Discover(context.Background())
	if err != nil {
		t.Fatalf("empty window must not be an error, got %v", err)
	}
	if len(devices) != 0 {
		t.Errorf("got %d devices, want 0", len(devices))
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("discovery window not bounded: took %v", elapsed)
	}
}

func TestDiscoverNoUsableInterface(t *testing.T) {
	t.Parallel()

	b := newTestBrowser()
	b.newResolver = func() (resolver, error) {
		return nil, errors.New("no multicast interfaces")
	}

	_, err := b.Discover(context.Background())
	if !errors.Is(err, models.ErrNoUsableInterface) {
		t.Errorf("error = %v, want ErrNoUsableInterface", err)
	}
}

func TestParseTXT(t *testing.T) {
	t.Parallel()

	props := parseTXT([]string{"product=MFC-9332CDW", "note=", "bare", "=empty"})
	if props["product"] != "MFC-9332CDW" {
		t.Errorf("product = %q", props["product"])
	}
	if v, ok := props["note"]; !ok || v != "" {
		t.Errorf("note = %q (present %v)", v, ok)
	}
	if _, ok := props["bare"]; ok {
		t.Error("records without '=' must be skipped")
	}
}

package snmpinfo

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/gosnmp/gosnmp"

	"github.com/sedrubal/brother-printer-fwupd/config"
	"github.com/sedrubal/brother-printer-fwupd/models"
)

// fakeSNMPClient replays a fixed set of walk payloads.
type fakeSNMPClient struct {
	payloads   []string
	connectErr error
	walkErr    error
}

func (f *fakeSNMPClient) Connect() error { return f.connectErr }

func (f *fakeSNMPClient) BulkWalk(rootOid string, walkFn gosnmp.WalkFunc) error {
	if f.walkErr != nil {
		return f.walkErr
	}
	for i, payload := range f.payloads {
		pdu := gosnmp.SnmpPDU{
			Name:  fmt.Sprintf("%s.%d", rootOid, i+1),
			Type:  gosnmp.OctetString,
			Value: []byte(payload),
		}
		if err := walkFn(pdu); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeSNMPClient) Close() error { return nil }

// withFakeClient installs a fake client factory for the duration of a test.
func withFakeClient(t *testing.T, client SNMPClient) {
	t.Helper()
	orig := NewSNMPClientFunc
	NewSNMPClientFunc = func(cfg config.SNMPConfig, target string) (SNMPClient, error) {
		return client, nil
	}
	t.Cleanup(func() { NewSNMPClientFunc = orig })
}

// simulatorPayloads mirrors the maintenance table of an MFC-9332CDW.
var simulatorPayloads = []string{
	`MODEL="MFC-9332CDW"`,
	`SERIAL="E01234A5J678901"`,
	`SPEC="0403"`,
	`FIRMID="MAIN"`,
	`FIRMVER="R2311081154:E7E5"`,
	`FIRMID="SUB1"`,
	`FIRMVER="1.05"`,
	`FIRMID="SUB2"`,
	`FIRMVER="R2311081800"`,
}

func TestQueryPrinterInfo(t *testing.T) {
	withFakeClient(t, &fakeSNMPClient{payloads: simulatorPayloads})

	dev := models.Device{Address: "127.0.0.1", UploadPort: 9100}
	info, err := QueryPrinterInfo(context.Background(), config.SNMPConfig{}, dev)
	if err != nil {
		t.Fatalf("QueryPrinterInfo() error = %v", err)
	}

	if info.Model != "MFC-9332CDW" {
		t.Errorf("Model = %q, want %q", info.Model, "MFC-9332CDW")
	}
	if info.Serial != "E01234A5J678901" {
		t.Errorf("Serial = %q", info.Serial)
	}
	if info.Spec != "0403" {
		t.Errorf("Spec = %q", info.Spec)
	}
	wantParts := []models.FWPart{
		{ID: "MAIN", Version: "R2311081154:E7E5"},
		{ID: "SUB1", Version: "1.05"},
		{ID: "SUB2", Version: "R2311081800"},
	}
	if !reflect.DeepEqual(info.FWParts, wantParts) {
		t.Errorf("FWParts = %+v, want %+v", info.FWParts, wantParts)
	}
}

func TestQueryPrinterInfoDoesNotMutateDevice(t *testing.T) {
	withFakeClient(t, &fakeSNMPClient{payloads: simulatorPayloads})

	dev := models.Device{Address: "192.0.2.5", UploadPort: 9100, Name: "lp"}
	orig := dev
	info, err := QueryPrinterInfo(context.Background(), config.SNMPConfig{}, dev)
	if err != nil {
		t.Fatalf("QueryPrinterInfo() error = %v", err)
	}
	if dev != orig {
		t.Errorf("input device mutated: %+v", dev)
	}
	if info.Device != orig {
		t.Errorf("enriched copy changed address/port: %+v", info.Device)
	}
}

func TestQueryPrinterInfoIdempotent(t *testing.T) {
	withFakeClient(t, &fakeSNMPClient{payloads: simulatorPayloads})

	dev := models.Device{Address: "127.0.0.1"}
	first, err := QueryPrinterInfo(context.Background(), config.SNMPConfig{}, dev)
	if err != nil {
		t.Fatalf("first query error = %v", err)
	}
	second, err := QueryPrinterInfo(context.Background(), config.SNMPConfig{}, dev)
	if err != nil {
		t.Fatalf("second query error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated queries disagree: %+v vs %+v", first, second)
	}
}

func TestQueryPrinterInfoUnsupported(t *testing.T) {
	tests := []struct {
		name     string
		payloads []string
	}{
		{"no model", []string{`FIRMID="MAIN"`, `FIRMVER="1.0"`}},
		{"no firmware parts", []string{`MODEL="MFC-9332CDW"`}},
		{"unpaired firmware id", []string{`MODEL="MFC-9332CDW"`, `FIRMID="MAIN"`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withFakeClient(t, &fakeSNMPClient{payloads: tt.payloads})

			_, err := QueryPrinterInfo(context.Background(), config.SNMPConfig{}, models.Device{Address: "127.0.0.1"})
			if !errors.Is(err, models.ErrUnsupportedDevice) {
				t.Errorf("error = %v, want ErrUnsupportedDevice", err)
			}
		})
	}
}

func TestQueryPrinterInfoUnreachable(t *testing.T) {
	withFakeClient(t, &fakeSNMPClient{connectErr: errors.New("request timeout")})

	_, err := QueryPrinterInfo(context.Background(), config.SNMPConfig{}, models.Device{Address: "192.0.2.99"})
	if !errors.Is(err, models.ErrDeviceUnreachable) {
		t.Errorf("error = %v, want ErrDeviceUnreachable", err)
	}
}

func TestQueryPrinterInfoIgnoresUnknownKeys(t *testing.T) {
	payloads := append([]string{`PCOUNT="001234"`, `not a payload`}, simulatorPayloads...)
	withFakeClient(t, &fakeSNMPClient{payloads: payloads})

	info, err := QueryPrinterInfo(context.Background(), config.SNMPConfig{}, models.Device{Address: "127.0.0.1"})
	if err != nil {
		t.Fatalf("QueryPrinterInfo() error = %v", err)
	}
	if info.Model != "MFC-9332CDW" || len(info.FWParts) != 3 {
		t.Errorf("unexpected info: %+v", info)
	}
}

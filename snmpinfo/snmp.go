package snmpinfo

import (
	"fmt"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/sedrubal/brother-printer-fwupd/config"
)

// SNMPClient defines the interface for the SNMP operations the status
// query needs. Kept minimal so tests can substitute a fake.
type SNMPClient interface {
	Connect() error
	BulkWalk(rootOid string, walkFn gosnmp.WalkFunc) error
	Close() error
}

// gosnmpClient wraps gosnmp.GoSNMP to implement SNMPClient.
type gosnmpClient struct {
	conn *gosnmp.GoSNMP
}

// Connect establishes the SNMP connection.
func (c *gosnmpClient) Connect() error {
	return c.conn.Connect()
}

// BulkWalk performs an SNMP BULKWALK request.
func (c *gosnmpClient) BulkWalk(rootOid string, walkFn gosnmp.WalkFunc) error {
	return c.conn.BulkWalk(rootOid, walkFn)
}

// Close closes the SNMP connection.
func (c *gosnmpClient) Close() error {
	return c.conn.Conn.Close()
}

// newSNMPClientImpl is the actual implementation of NewSNMPClient.
func newSNMPClientImpl(cfg config.SNMPConfig, target string) (SNMPClient, error) {
	if target == "" {
		return nil, fmt.Errorf("target address required")
	}

	port := cfg.Port
	if port <= 0 {
		port = 161
	}
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	community := cfg.Community
	if community == "" {
		community = "public"
	}

	conn := &gosnmp.GoSNMP{
		Target:    target,
		Port:      uint16(port),
		Community: community,
		Version:   gosnmp.Version2c,
		Timeout:   timeout,
		Retries:   cfg.Retries,
	}
	return &gosnmpClient{conn: conn}, nil
}

// NewSNMPClientFunc is the function used to create SNMP clients.
// It can be replaced with a mock for testing.
var NewSNMPClientFunc = newSNMPClientImpl

// NewSNMPClient creates a new SNMP client for the specified target.
func NewSNMPClient(cfg config.SNMPConfig, target string) (SNMPClient, error) {
	return NewSNMPClientFunc(cfg, target)
}

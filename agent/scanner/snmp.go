package scanner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/egperson/network-printer-solution/common/config"
	"github.com/egperson/network-printer-solution/common/storage"
)

// OIDs read during enrichment.
const (
	oidSysName           = "1.3.6.1.2.1.1.5.0"
	oidMarkerLifeCount   = "1.3.6.1.2.1.43.10.2.1.4.1.1"
	defaultSNMPTimeoutMs = 2000
)

// SNMPClient defines the interface for SNMP operations.
type SNMPClient interface {
	Connect() error
	Get(oids []string) (*gosnmp.SnmpPacket, error)
	Close() error
}

// gosnmpClient wraps gosnmp.GoSNMP to implement SNMPClient.
type gosnmpClient struct {
	conn *gosnmp.GoSNMP
}

func (c *gosnmpClient) Connect() error {
	return c.conn.Connect()
}

func (c *gosnmpClient) Get(oids []string) (*gosnmp.SnmpPacket, error) {
	return c.conn.Get(oids)
}

func (c *gosnmpClient) Close() error {
	if c.conn.Conn == nil {
		return nil
	}
	return c.conn.Conn.Close()
}

// newSNMPClientImpl builds a v2c client for target from cfg.
func newSNMPClientImpl(ctx context.Context, cfg config.SNMPConfig, target string) (SNMPClient, error) {
	if target == "" {
		return nil, fmt.Errorf("target IP required")
	}
	timeout := cfg.TimeoutMs
	if timeout <= 0 {
		timeout = defaultSNMPTimeoutMs
	}
	community := cfg.Community
	if community == "" {
		community = "public"
	}

	conn := &gosnmp.GoSNMP{
		Context:   ctx,
		Target:    target,
		Port:      161,
		Community: community,
		Version:   gosnmp.Version2c,
		Timeout:   time.Duration(timeout) * time.Millisecond,
		Retries:   cfg.Retries,
	}
	client := &gosnmpClient{conn: conn}
	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", target, err)
	}
	return client, nil
}

// NewSNMPClientFunc is the function used to create SNMP clients.
// It can be replaced with a mock for testing.
var NewSNMPClientFunc = newSNMPClientImpl

// SNMPEnricher adds SNMP facts to devices whose panel was read.
type SNMPEnricher struct {
	cfg       config.SNMPConfig
	newClient func(ctx context.Context, cfg config.SNMPConfig, target string) (SNMPClient, error)
}

// NewSNMPEnricher returns an enricher using cfg. It uses NewSNMPClientFunc
// as its client factory.
func NewSNMPEnricher(cfg config.SNMPConfig) *SNMPEnricher {
	return &SNMPEnricher{cfg: cfg, newClient: NewSNMPClientFunc}
}

// Enrich reads sysName and, when the page had no page counter, the marker
// life count. Only ok devices with an IP are queried.
func (e *SNMPEnricher) Enrich(ctx context.Context, d *storage.Device) error {
	if d.Status != storage.StatusOK || d.IP == "" {
		return nil
	}
	client, err := e.newClient(ctx, e.cfg, d.IP)
	if err != nil {
		return err
	}
	defer client.Close()

	oids := []string{oidSysName}
	if d.Pages == nil {
		oids = append(oids, oidMarkerLifeCount)
	}
	pkt, err := client.Get(oids)
	if err != nil {
		return fmt.Errorf("snmp get %s: %w", d.IP, err)
	}

	for _, v := range pkt.Variables {
		switch strings.TrimPrefix(v.Name, ".") {
		case oidSysName:
			if name := pduString(v); name != "" {
				d.SysName = name
			}
		case oidMarkerLifeCount:
			if v.Type == gosnmp.NoSuchObject || v.Type == gosnmp.NoSuchInstance || v.Type == gosnmp.Null {
				continue
			}
			n := gosnmp.ToBigInt(v.Value).Int64()
			if n > 0 {
				d.Pages = &n
			}
		}
	}
	return nil
}

func pduString(v gosnmp.SnmpPDU) string {
	switch val := v.Value.(type) {
	case []byte:
		return strings.TrimSpace(string(val))
	case string:
		return strings.TrimSpace(val)
	}
	return ""
}

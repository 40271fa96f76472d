package scanner

import (
	"errors"
	"reflect"
	"testing"

	"github.com/egperson/network-printer-solution/common/config"
	"github.com/egperson/network-printer-solution/common/storage"
)

func boolPtr(b bool) *bool { return &b }

func ips(cands []Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.Device().ID
	}
	return out
}

func TestEnumerateOrderAndLabels(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Scan.Start, cfg.Scan.End = 1, 3
	cfg.Scan.Prefixes = []config.PrefixEntry{
		{Prefix: "10.0.1.", Label: "Floor 1"},
		{Prefix: "10.0.9.", Enabled: boolPtr(false)},
		{Prefix: "10.0.2"},
	}
	cfg.Devices = []config.StaticDevice{
		{Name: "Reception", URL: "http://10.0.1.2:8080/status", Location: "Lobby"},
		{Name: "Archive", IP: "10.0.2.3"},
	}

	cands, err := Enumerate(*cfg)
	if err != nil {
		t.Fatalf("Enumerate() error: %v", err)
	}

	want := []string{
		"http://10.0.1.2:8080/status",
		"10.0.2.3",
		"10.0.1.1",
		"10.0.1.3",
		"10.0.2.1",
		"10.0.2.2",
	}
	if got := ips(cands); !reflect.DeepEqual(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
	if cands[0].Source != storage.SourceStatic || cands[0].Location != "Lobby" {
		t.Errorf("static candidate = %+v", cands[0])
	}
	if cands[2].Source != storage.SourceScan || cands[2].Location != "Floor 1" {
		t.Errorf("scanned candidate = %+v", cands[2])
	}
}

func TestEnumerateScanDisabled(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Scan.Enabled = false
	cfg.Scan.Prefixes = []config.PrefixEntry{{Prefix: "10.0.0."}}
	cfg.Devices = []config.StaticDevice{{Name: "Only", IP: "192.168.0.10"}}

	cands, err := Enumerate(*cfg)
	if err != nil {
		t.Fatalf("Enumerate() error: %v", err)
	}
	if len(cands) != 1 || cands[0].IP != "192.168.0.10" {
		t.Errorf("expected only the static device, got %+v", cands)
	}
}

func TestEnumerateDeduplicatesStatic(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Devices = []config.StaticDevice{
		{Name: "A", IP: "10.0.0.5"},
		{Name: "A again", IP: "10.0.0.5"},
		{Name: "NoAddress"},
	}
	cands, err := Enumerate(*cfg)
	if err != nil {
		t.Fatalf("Enumerate() error: %v", err)
	}
	if len(cands) != 2 || cands[1].Device().ID != "NoAddress" {
		t.Errorf("unexpected candidates: %+v", cands)
	}
}

func TestEnumerateSingleHost(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Scan.Start, cfg.Scan.End = 7, 7
	cfg.Scan.Prefixes = []config.PrefixEntry{{Prefix: "10.0.0."}}
	cands, err := Enumerate(*cfg)
	if err != nil || len(cands) != 1 || cands[0].IP != "10.0.0.7" {
		t.Errorf("Enumerate() = %+v, %v", cands, err)
	}
}

func TestEnumerateRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   error
	}{
		{"reversed range", func(c *config.Config) { c.Scan.Start, c.Scan.End = 9, 3 }, config.ErrInvalidScanRange},
		{"empty prefix", func(c *config.Config) { c.Scan.Prefixes = []config.PrefixEntry{{Prefix: ""}} }, config.ErrInvalidPrefix},
		{"bad protocol", func(c *config.Config) { c.Scan.Protocol = "gopher" }, config.ErrInvalidProtocol},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := config.DefaultConfig()
			tt.mutate(cfg)
			if _, err := Enumerate(*cfg); !errors.Is(err, tt.want) {
				t.Errorf("Enumerate() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestMergeDiscovered(t *testing.T) {
	t.Parallel()

	cands := []Candidate{
		{Key: "10.0.0.1", IP: "10.0.0.1", Source: storage.SourceScan},
		{Key: "static-0", URL: "https://10.0.0.2/", Source: storage.SourceStatic},
	}
	got := MergeDiscovered(cands, []string{"10.0.0.2", "10.0.0.9", "10.0.0.1", "10.0.0.9", " "}, storage.SourceMDNS)
	if len(got) != 3 {
		t.Fatalf("expected 3 candidates, got %+v", got)
	}
	if got[2].IP != "10.0.0.9" || got[2].Source != storage.SourceMDNS {
		t.Errorf("discovered candidate = %+v", got[2])
	}
}

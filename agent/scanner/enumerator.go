package scanner

import (
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/egperson/network-printer-solution/common/config"
	"github.com/egperson/network-printer-solution/common/storage"
)

// Candidate is one endpoint to probe in a collection cycle.
type Candidate struct {
	Key      string
	Name     string
	IP       string
	URL      string
	Location string
	Source   string
}

// Device returns the skeleton device record for c. Probe results are
// layered on top of it.
func (c Candidate) Device() storage.Device {
	d := storage.Device{
		Name:     c.Name,
		IP:       c.IP,
		URL:      c.URL,
		Key:      c.Key,
		Location: c.Location,
		Source:   c.Source,
		Type:     storage.TypeUnknown,
	}
	d.ID = storage.CanonicalID(d)
	return d
}

// Enumerate expands cfg into the ordered candidate list: static devices
// first, then every enabled prefix in configuration order with host numbers
// ascending. A scanned address already covered by a static device is
// skipped. Configuration errors are returned before anything is probed.
func Enumerate(cfg config.Config) ([]Candidate, error) {
	if err := cfg.Scan.Validate(); err != nil {
		return nil, err
	}

	var out []Candidate
	seen := make(map[string]bool)

	for i, sd := range cfg.Devices {
		c := Candidate{
			Key:      "static-" + strconv.Itoa(i),
			Name:     strings.TrimSpace(sd.Name),
			IP:       strings.TrimSpace(sd.IP),
			URL:      strings.TrimSpace(sd.URL),
			Location: sd.Location,
			Source:   storage.SourceStatic,
		}
		id := storage.CanonicalID(c.Device())
		if seen[id] {
			continue
		}
		seen[id] = true
		if c.IP != "" {
			seen[c.IP] = true
		}
		if host := urlHost(c.URL); host != "" {
			seen[host] = true
		}
		out = append(out, c)
	}

	if !cfg.Scan.Enabled {
		return out, nil
	}

	for _, p := range cfg.Scan.Prefixes {
		if !p.IsEnabled() {
			continue
		}
		prefix := normalizePrefix(p.Prefix)
		for n := cfg.Scan.Start; n <= cfg.Scan.End; n++ {
			ip := prefix + strconv.Itoa(n)
			if seen[ip] {
				continue
			}
			seen[ip] = true
			out = append(out, Candidate{
				Key:      ip,
				IP:       ip,
				Location: p.Label,
				Source:   storage.SourceScan,
			})
		}
	}
	return out, nil
}

// MergeDiscovered appends addresses found by a discovery browser that are
// not already candidates. Input order is kept.
func MergeDiscovered(cands []Candidate, ips []string, source string) []Candidate {
	seen := make(map[string]bool, len(cands))
	for _, c := range cands {
		if c.IP != "" {
			seen[c.IP] = true
		}
		if host := urlHost(c.URL); host != "" {
			seen[host] = true
		}
	}
	for _, ip := range ips {
		ip = strings.TrimSpace(ip)
		if ip == "" || seen[ip] {
			continue
		}
		seen[ip] = true
		cands = append(cands, Candidate{Key: ip, IP: ip, Source: source})
	}
	return cands
}

// normalizePrefix accepts "10.0.0." and "10.0.0" alike.
func normalizePrefix(p string) string {
	p = strings.TrimSpace(p)
	if !strings.HasSuffix(p, ".") {
		p += "."
	}
	return p
}

func urlHost(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	host := u.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return host
}

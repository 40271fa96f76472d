// Package storage defines the records shared by the collector, the snapshot
// store and the analyzers.
package storage

import (
	"strconv"
	"strings"
	"time"
)

// Device status values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Device type values. Color and mono are only assigned when supplies were found.
const (
	TypeColor   = "color"
	TypeMono    = "mono"
	TypeUnknown = "unknown"
)

// Discovery sources.
const (
	SourceStatic = "static"
	SourceScan   = "scan"
	SourceMDNS   = "mdns"
	SourceManual = "manual"
)

// Supply is one consumable as read from a device panel.
type Supply struct {
	Name    string `json:"name"`
	Level   string `json:"level"`
	RawName string `json:"raw_name,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

// Percent parses Level. Values such as "45%", "<10 %", "7,5%"
// and "45" parse; anything outside 0..100 or non-numeric does not.
func (s Supply) Percent() (float64, bool) {
	return ParseLevel(s.Level)
}

// ParseLevel parses a raw level string into a percentage.
func ParseLevel(raw string) (float64, bool) {
	v := strings.TrimSpace(raw)
	v = strings.TrimPrefix(v, "&lt;")
	v = strings.TrimLeft(v, "<~≈ ")
	v = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(v), "%"))
	v = strings.ReplaceAll(v, ",", ".")
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 || f > 100 {
		return 0, false
	}
	return f, true
}

// Tray is a media tray row. All fields are as displayed by the device.
type Tray struct {
	Name     string `json:"name,omitempty"`
	Status   string `json:"status,omitempty"`
	Capacity string `json:"capacity,omitempty"`
	Size     string `json:"size,omitempty"`
	Type     string `json:"type,omitempty"`
}

// Device is the observed state of one printer in one collection cycle.
// Optional fields are omitted when the panel did not provide them.
type Device struct {
	ID            string    `json:"id"`
	Name          string    `json:"name,omitempty"`
	IP            string    `json:"ip,omitempty"`
	URL           string    `json:"url,omitempty"`
	Key           string    `json:"key,omitempty"`
	Status        string    `json:"status"`
	ErrorReason   string    `json:"error_reason,omitempty"`
	Type          string    `json:"type"`
	Location      string    `json:"location,omitempty"`
	Source        string    `json:"source,omitempty"`
	Supplies      []Supply  `json:"supplies,omitempty"`
	Trays         []Tray    `json:"trays,omitempty"`
	Pages         *int64    `json:"pages,omitempty"`
	Title         string    `json:"title,omitempty"`
	DeviceName    string    `json:"device_name,omitempty"`
	ReportedIP    string    `json:"reported_ip,omitempty"`
	MachineStatus string    `json:"machine_status,omitempty"`
	Strategy      string    `json:"strategy,omitempty"`
	SysName       string    `json:"sys_name,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// CanonicalID returns the cross-snapshot join key of d: the first non-empty
// of IP, URL, declared name and raw discovery key.
func CanonicalID(d Device) string {
	for _, v := range []string{d.IP, d.URL, d.Name, d.Key} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// DisplayName returns the best human-readable label for d.
func (d Device) DisplayName() string {
	for _, v := range []string{d.Name, d.DeviceName, d.Title, d.IP, d.URL, d.ID} {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// Address returns the IP if known, else the URL.
func (d Device) Address() string {
	if d.IP != "" {
		return d.IP
	}
	return d.URL
}

// AverageLevel returns the mean of the parseable supply levels of d.
func (d Device) AverageLevel() (float64, bool) {
	var sum float64
	var n int
	for _, s := range d.Supplies {
		if v, ok := s.Percent(); ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// Snapshot is the immutable result of one collection cycle. Devices keep
// enumeration order; correlate across snapshots by ID only.
type Snapshot struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Devices   []Device  `json:"devices"`
}

// Device returns the device with the given canonical id.
func (s *Snapshot) Device(id string) (Device, bool) {
	if s == nil {
		return Device{}, false
	}
	for _, d := range s.Devices {
		if d.ID == id {
			return d, true
		}
	}
	return Device{}, false
}

// Alert types.
const (
	AlertLowSupply = "low-supply"
	AlertError     = "error"
)

// Alert is an edge-triggered notification. Alerts are never updated.
type Alert struct {
	ID         string    `json:"id"`
	DeviceID   string    `json:"device_id"`
	DeviceName string    `json:"device_name,omitempty"`
	Type       string    `json:"type"`
	Severity   string    `json:"severity,omitempty"`
	Supply     string    `json:"supply,omitempty"`
	Level      *float64  `json:"level,omitempty"`
	Threshold  *float64  `json:"threshold,omitempty"`
	Message    string    `json:"message,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

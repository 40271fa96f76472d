package reports

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	model "github.com/egperson/network-printer-solution/common/storage"
)

// CSVColumns is the header of the tabular device export.
var CSVColumns = []string{"name", "address", "status", "supplies", "timestamp"}

// Formatter formats device lists for export.
type Formatter struct{}

// NewFormatter creates a new formatter.
func NewFormatter() *Formatter {
	return &Formatter{}
}

// FormatCSV formats devices as CSV with one row per device.
func (f *Formatter) FormatCSV(devices []model.Device) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, devices); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FormatJSON formats devices as a JSON array of the raw device records.
func (f *Formatter) FormatJSON(devices []model.Device, pretty bool) ([]byte, error) {
	if devices == nil {
		devices = []model.Device{}
	}
	if pretty {
		return json.MarshalIndent(devices, "", "  ")
	}
	return json.Marshal(devices)
}

// WriteCSV writes the tabular export: name, address, status, semicolon
// joined supply:level pairs and the RFC 3339 capture time.
func WriteCSV(w io.Writer, devices []model.Device) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(CSVColumns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, d := range devices {
		record := []string{
			d.DisplayName(),
			d.Address(),
			d.Status,
			formatSupplies(d.Supplies),
			formatTime(d.Timestamp),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// WriteJSON writes devices as an indented JSON array.
func WriteJSON(w io.Writer, devices []model.Device) error {
	b, err := NewFormatter().FormatJSON(devices, true)
	if err != nil {
		return fmt.Errorf("encode devices: %w", err)
	}
	_, err = w.Write(b)
	return err
}

func formatSupplies(supplies []model.Supply) string {
	parts := make([]string, 0, len(supplies))
	for _, s := range supplies {
		parts = append(parts, s.Name+":"+s.Level)
	}
	return strings.Join(parts, ";")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

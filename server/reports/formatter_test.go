package reports

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	model "github.com/egperson/network-printer-solution/common/storage"
)

func exportDevices() []model.Device {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return []model.Device{
		{
			ID: "10.0.0.1", IP: "10.0.0.1", Name: "Recepção, térreo", Status: model.StatusOK, Type: model.TypeColor,
			Supplies:  []model.Supply{{Name: "Toner Ciano", Level: "45%"}, {Name: "Toner Magenta", Level: "12%"}},
			Timestamp: ts,
		},
		{ID: "http://printer.local", URL: "http://printer.local", Status: model.StatusError, ErrorReason: "timeout", Timestamp: ts},
	}
}

func TestFormatter_FormatCSV(t *testing.T) {
	t.Parallel()

	out, err := NewFormatter().FormatCSV(exportDevices())
	if err != nil {
		t.Fatalf("FormatCSV failed: %v", err)
	}

	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("re-read csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records (header + 2 rows), got %d", len(records))
	}
	if strings.Join(records[0], ",") != "name,address,status,supplies,timestamp" {
		t.Errorf("header = %v", records[0])
	}
	want := []string{"Recepção, térreo", "10.0.0.1", "ok", "Toner Ciano:45%;Toner Magenta:12%", "2024-03-01T12:00:00Z"}
	for i := range want {
		if records[1][i] != want[i] {
			t.Errorf("row 1 col %d = %q, want %q", i, records[1][i], want[i])
		}
	}
	if records[2][0] != "http://printer.local" || records[2][1] != "http://printer.local" || records[2][3] != "" {
		t.Errorf("row 2 = %v", records[2])
	}
}

func TestFormatter_FormatCSV_Empty(t *testing.T) {
	t.Parallel()

	out, err := NewFormatter().FormatCSV(nil)
	if err != nil {
		t.Fatalf("FormatCSV failed: %v", err)
	}
	if strings.TrimSpace(string(out)) != "name,address,status,supplies,timestamp" {
		t.Errorf("empty export = %q", out)
	}
}

func TestFormatter_FormatJSON(t *testing.T) {
	t.Parallel()

	out, err := NewFormatter().FormatJSON(exportDevices(), false)
	if err != nil {
		t.Fatalf("FormatJSON failed: %v", err)
	}
	var back []model.Device
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(back) != 2 || back[1].ErrorReason != "timeout" || back[0].Supplies[1].Level != "12%" {
		t.Errorf("decoded = %+v", back)
	}

	empty, _ := NewFormatter().FormatJSON(nil, false)
	if string(empty) != "[]" {
		t.Errorf("empty JSON = %s", empty)
	}
}

func TestWriteJSON_Pretty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := WriteJSON(&buf, exportDevices()[:1]); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "\n  {") {
		t.Errorf("expected indented output, got %s", buf.String())
	}
}

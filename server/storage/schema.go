package storage

import (
	"encoding/json"
	"fmt"

	"github.com/Masterminds/semver/v3"

	model "github.com/egperson/network-printer-solution/common/storage"
)

// PayloadSchemaVersion is written with every snapshot payload. Readers
// accept any payload of the same major version.
const PayloadSchemaVersion = "1.0.0"

// schemaVersion tracks the table layout.
const schemaVersion = 1

var readableSchemas = mustConstraint("^1.0.0")

func mustConstraint(c string) *semver.Constraints {
	cons, err := semver.NewConstraint(c)
	if err != nil {
		panic(err)
	}
	return cons
}

// snapshotPayload is the JSON stored per snapshot row.
type snapshotPayload struct {
	SchemaVersion string         `json:"schema_version"`
	Devices       []model.Device `json:"devices"`
}

func encodeSnapshot(snap *model.Snapshot) (string, error) {
	devices := snap.Devices
	if devices == nil {
		devices = []model.Device{}
	}
	b, err := json.Marshal(snapshotPayload{SchemaVersion: PayloadSchemaVersion, Devices: devices})
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	return string(b), nil
}

func decodeSnapshot(payload string) ([]model.Device, error) {
	var p snapshotPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if err := checkSchema(p.SchemaVersion); err != nil {
		return nil, err
	}
	return p.Devices, nil
}

// checkSchema rejects payloads whose version is missing, malformed or of a
// different major version.
func checkSchema(v string) error {
	ver, err := semver.NewVersion(v)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrIncompatibleSchema, v)
	}
	if !readableSchemas.Check(ver) {
		return fmt.Errorf("%w: %s", ErrIncompatibleSchema, ver)
	}
	return nil
}

const schemaTemplate = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY,
	applied_at {{bigint}} NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshots (
	id {{autoinc}},
	taken_at {{bigint}} NOT NULL,
	device_count INTEGER NOT NULL,
	schema_version {{text}} NOT NULL,
	payload {{text}} NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_taken_at ON snapshots(taken_at);

CREATE TABLE IF NOT EXISTS alerts (
	seq {{autoinc}},
	alert_id {{text}} NOT NULL UNIQUE,
	device_id {{text}} NOT NULL,
	type {{text}} NOT NULL,
	severity {{text}},
	created_at {{bigint}} NOT NULL,
	payload {{text}} NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_alerts_device ON alerts(device_id);
CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON alerts(created_at);
`

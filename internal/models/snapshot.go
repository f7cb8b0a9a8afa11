package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SnapshotVersion is the current version of the persisted registry format.
const SnapshotVersion = 1

// AdUnitSnapshot is the persisted form of the registry. Units are stored in
// insertion order.
type AdUnitSnapshot struct {
	Version int      `json:"version"`
	AdUnits []AdUnit `json:"ad_units"`
}

// MarshalSnapshot encodes units as a current-version snapshot.
func MarshalSnapshot(units []AdUnit) ([]byte, error) {
	if units == nil {
		units = []AdUnit{}
	}
	return json.MarshalIndent(AdUnitSnapshot{Version: SnapshotVersion, AdUnits: units}, "", "  ")
}

// UnmarshalSnapshot decodes a persisted snapshot. A bare JSON array is the
// unversioned legacy format and is read as version 0. Versions newer than
// SnapshotVersion are rejected so an old binary never rewrites data it does
// not understand.
func UnmarshalSnapshot(data []byte) (AdUnitSnapshot, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return AdUnitSnapshot{Version: SnapshotVersion}, nil
	}

	if trimmed[0] == '[' {
		var units []AdUnit
		if err := json.Unmarshal(trimmed, &units); err != nil {
			return AdUnitSnapshot{}, fmt.Errorf("decode legacy snapshot: %w", err)
		}
		return AdUnitSnapshot{Version: 0, AdUnits: units}, nil
	}

	var snap AdUnitSnapshot
	if err := json.Unmarshal(trimmed, &snap); err != nil {
		return AdUnitSnapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version > SnapshotVersion {
		return AdUnitSnapshot{}, fmt.Errorf("unsupported snapshot version %d (max %d)", snap.Version, SnapshotVersion)
	}
	return snap, nil
}

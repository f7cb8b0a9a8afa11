package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_CarriesVersionAndOrder(t *testing.T) {
	units := []AdUnit{
		{ID: "b", Sizes: []Size{{300, 250}}, DeviceType: DeviceDesktop},
		{ID: "a", Sizes: []Size{{320, 50}}, DeviceType: DeviceMobile},
	}
	data, err := MarshalSnapshot(units)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"version": 1`)

	snap, err := UnmarshalSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, SnapshotVersion, snap.Version)
	assert.Equal(t, units, snap.AdUnits)
}

func TestSnapshot_LegacyArray(t *testing.T) {
	legacy := `[{"id":"div-1","sizes":[["300","250"]],"deviceType":"desktop"}]`

	snap, err := UnmarshalSnapshot([]byte(legacy))
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Version)
	require.Len(t, snap.AdUnits, 1)
	assert.Equal(t, Size{300, 250}, snap.AdUnits[0].Sizes[0])
}

func TestSnapshot_RejectsFutureVersion(t *testing.T) {
	_, err := UnmarshalSnapshot([]byte(`{"version":99,"ad_units":[]}`))
	assert.Error(t, err)
}

func TestSnapshot_EmptyInput(t *testing.T) {
	snap, err := UnmarshalSnapshot([]byte("  "))
	require.NoError(t, err)
	assert.Empty(t, snap.AdUnits)
}

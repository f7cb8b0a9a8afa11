package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// DeviceType classifies the device an ad unit is rendered on. It drives the
// floor price applied to bids targeting the unit.
type DeviceType string

const (
	DeviceMobile  DeviceType = "mobile"
	DeviceDesktop DeviceType = "desktop"
)

// ParseDeviceType normalizes s and reports whether it names a known device type.
func ParseDeviceType(s string) (DeviceType, bool) {
	switch DeviceType(strings.ToLower(strings.TrimSpace(s))) {
	case DeviceMobile:
		return DeviceMobile, true
	case DeviceDesktop:
		return DeviceDesktop, true
	}
	return "", false
}

// Size is a single allowed creative size. It is encoded as a two element
// array, e.g. [300,250].
type Size struct {
	Width  int
	Height int
}

// MarshalJSON encodes the size as [width,height].
func (s Size) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{s.Width, s.Height})
}

// UnmarshalJSON accepts [300,250] as well as ["300","250"], the form older
// clients send.
func (s *Size) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("size must be a [width,height] pair: %w", err)
	}
	if len(raw) != 2 {
		return fmt.Errorf("size must have exactly 2 elements, got %d", len(raw))
	}
	w, err := parseDimension(raw[0])
	if err != nil {
		return fmt.Errorf("width: %w", err)
	}
	h, err := parseDimension(raw[1])
	if err != nil {
		return fmt.Errorf("height: %w", err)
	}
	s.Width, s.Height = w, h
	return nil
}

func parseDimension(raw json.RawMessage) (int, error) {
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return 0, fmt.Errorf("not a number: %s", string(raw))
	}
	n, err := strconv.Atoi(strings.TrimSpace(str))
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", str)
	}
	return n, nil
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// AdUnit is a placement slot known to the broker. Units are immutable once
// registered; the registry hands out copies.
type AdUnit struct {
	// ID is the caller-chosen unique identifier, typically the id of the
	// page element the ad renders into (e.g. "div-1").
	ID string `json:"id"`
	// Sizes lists the creative sizes the slot accepts, in preference order.
	Sizes []Size `json:"sizes"`
	// DeviceType selects the floor price for bids on this unit.
	DeviceType DeviceType `json:"deviceType"`
}

// Validate checks that all fields are present and well formed. The returned
// error wraps ErrValidation.
func (u AdUnit) Validate() error {
	if strings.TrimSpace(u.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrValidation)
	}
	if len(u.Sizes) == 0 {
		return fmt.Errorf("%w: sizes is required", ErrValidation)
	}
	for _, s := range u.Sizes {
		if s.Width <= 0 || s.Height <= 0 {
			return fmt.Errorf("%w: invalid size %s", ErrValidation, s)
		}
	}
	if _, ok := ParseDeviceType(string(u.DeviceType)); !ok {
		return fmt.Errorf("%w: unknown deviceType %q", ErrValidation, u.DeviceType)
	}
	return nil
}

// Clone returns a deep copy so callers cannot mutate registry-owned sizes.
func (u AdUnit) Clone() AdUnit {
	sizes := make([]Size, len(u.Sizes))
	copy(sizes, u.Sizes)
	u.Sizes = sizes
	return u
}

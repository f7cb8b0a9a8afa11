package auction

import (
	"github.com/shopspring/decimal"

	"github.com/patrickwarner/adbroker/internal/models"
)

// FloorPolicy maps a device type to the minimum CPM accepted for units of
// that type. It is business policy and is supplied by configuration; a device
// type missing from the table has no floor.
type FloorPolicy map[models.DeviceType]float64

// DefaultFloorPolicy returns the stock table: $0.50 for mobile, $1.00 for desktop.
func DefaultFloorPolicy() FloorPolicy {
	return FloorPolicy{
		models.DeviceMobile:  0.50,
		models.DeviceDesktop: 1.00,
	}
}

// Floor returns the floor price for unit. ok is false when the policy has no
// entry for the unit's device type, in which case the floor is 0.
func (p FloorPolicy) Floor(unit models.AdUnit) (price float64, ok bool) {
	price, ok = p[unit.DeviceType]
	return price, ok
}

// money converts a CPM to its shortest decimal form, so 0.5 and 0.50 are
// the same amount but 0.49995 stays below 0.5. Callers pass finite values.
func money(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

// MeetsFloor reports whether a bid at price clears floor. A price equal to
// the floor clears it.
func MeetsFloor(price, floor float64) bool {
	return money(price).GreaterThanOrEqual(money(floor))
}

// outbids reports whether price a is strictly above b.
func outbids(a, b float64) bool {
	return money(a).GreaterThan(money(b))
}

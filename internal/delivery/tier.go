// Package delivery holds pure fulfillment policy: distance computation,
// tier classification, and fee lookup. It performs no I/O.
package delivery

// Tier is the fulfillment classification derived from the straight-line
// distance to the nearest pizzeria.
type Tier int

const (
	// TierReject means the address is too far to deliver to.
	TierReject Tier = iota
	// TierFreePickup offers free pickup or free delivery.
	TierFreePickup
	// TierLightDelivery carries a flat fee for a short-range courier.
	TierLightDelivery
	// TierStandardDelivery carries a flat fee for a long-range courier.
	TierStandardDelivery
)

// String returns the tier name for logs.
func (t Tier) String() string {
	switch t {
	case TierFreePickup:
		return "free_pickup"
	case TierLightDelivery:
		return "light_delivery"
	case TierStandardDelivery:
		return "standard_delivery"
	default:
		return "reject"
	}
}

// Band boundaries in kilometres, inclusive at the upper edge.
const (
	freePickupMaxKm = 0.5
	lightMaxKm      = 5
	standardMaxKm   = 20
)

// Classify maps a distance in kilometres to a fulfillment tier.
// Negative distances are a caller bug, not a user-facing case.
func Classify(km float64) Tier {
	switch {
	case km <= freePickupMaxKm:
		return TierFreePickup
	case km <= lightMaxKm:
		return TierLightDelivery
	case km <= standardMaxKm:
		return TierStandardDelivery
	default:
		return TierReject
	}
}

// Fees holds flat per-tier delivery fees in minor currency units.
type Fees struct {
	Light    int
	Standard int
}

// For returns the delivery fee for a tier. Reject and free pickup carry no fee.
func (f Fees) For(t Tier) int {
	switch t {
	case TierLightDelivery:
		return f.Light
	case TierStandardDelivery:
		return f.Standard
	default:
		return 0
	}
}

package exchange

import "errors"

var (
	// ErrOrderNotFound is returned by GetOrder/CancelOrder for unknown IDs.
	ErrOrderNotFound = errors.New("exchange: order not found")

	// ErrNoPrice is returned by the paper venue when no market price has
	// been set for the requested symbol.
	ErrNoPrice = errors.New("exchange: no price for symbol")
)

// Rounding helpers shared by backends: snap a value DOWN to a multiple of
// step. Snapping down never produces an order the venue would reject for
// exceeding available precision or balance.
func SnapDown(v, step float64) float64 {
	if step <= 0 {
		return v
	}
	n := int64(v/step + 1e-9)
	return float64(n) * step
}

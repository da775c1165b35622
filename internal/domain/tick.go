package domain

// TickBand maps a start-price threshold to the bid increment used from that
// threshold up to the next band.
type TickBand struct {
	Threshold int64
	Increment int64
}

// DefaultTickBands is the business configuration for bid increments,
// evaluated in ascending threshold order.
var DefaultTickBands = []TickBand{
	{Threshold: 0, Increment: 50},
	{Threshold: 1_000, Increment: 100},
	{Threshold: 10_000, Increment: 500},
	{Threshold: 100_000, Increment: 1_000},
	{Threshold: 1_000_000, Increment: 5_000},
}

// TickSize returns the minimum bid increment for an auction with the given
// start price: the increment of the highest band whose threshold does not
// exceed startPrice. It depends on the start price alone so the same tick is
// recomputed consistently at every bid.
func TickSize(startPrice int64) int64 {
	increment := DefaultTickBands[0].Increment
	for _, band := range DefaultTickBands {
		if startPrice < band.Threshold {
			break
		}
		increment = band.Increment
	}
	return increment
}

// MinAcceptableBid returns the lowest price a new bid may carry.
func MinAcceptableBid(startPrice, currentPrice int64) int64 {
	return currentPrice + TickSize(startPrice)
}

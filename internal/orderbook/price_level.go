package orderbook

import "ironbook/internal/mbo"

// PriceLevel is a derived view over one side of a price: the aggregate
// resting size and the count of individually queueable (non-TOB)
// orders. It is recomputed on demand and never stored.
type PriceLevel struct {
	Price int64
	Size  uint32
	Count uint32
}

// newPriceLevel summarizes the orders resting at price. A TOB order
// contributes to Size but not to Count, since it represents a
// market-wide top rather than an individually queueable order.
func newPriceLevel(price int64, orders []mbo.Msg) PriceLevel {
	pl := PriceLevel{Price: price}
	for _, o := range orders {
		pl.Size += o.Size
		if !o.Flags.IsTOB() {
			pl.Count++
		}
	}
	return pl
}

package orderbook

import "ironbook/internal/mbo"

// MarketSnapshot pairs a point-in-time clone of the whole Market with
// the effect and the raw message that produced it. The loader emits
// exactly one of these per applied message, in the exact order the
// messages were consumed.
type MarketSnapshot struct {
	Market  *Market
	Effect  MarketEffect
	Applied mbo.Msg
}

// NewMarketSnapshot clones market and pairs the clone with effect and
// applied. The clone is taken eagerly so later mutation of market never
// affects a previously returned snapshot.
func NewMarketSnapshot(market *Market, effect MarketEffect, applied mbo.Msg) MarketSnapshot {
	return MarketSnapshot{
		Market:  market.Clone(),
		Effect:  effect,
		Applied: applied,
	}
}

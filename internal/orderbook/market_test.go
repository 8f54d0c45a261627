package orderbook

import (
	"testing"

	"ironbook/internal/mbo"

	"github.com/stretchr/testify/assert"
)

// --- Setup & Helpers ----------------------------------------------------

func marketAddMsg(id uint64, side mbo.Side, price int64, size uint32, instrument uint32, publisher uint16) mbo.Msg {
	return mbo.Msg{
		OrderID: id, Side: side, Price: price, Size: size, Action: mbo.ActionAdd,
		InstrumentID: instrument, PublisherID: publisher,
	}
}

// --- S7: Aggregated BBO merges ties ----------------------------------------

func TestScenario_S7_AggregatedBBOMergesTies(t *testing.T) {
	market := NewMarket()

	_, err := market.Apply(marketAddMsg(1, SideBid, 100, 3, 55, 1))
	assert.NoError(t, err)
	_, err = market.Apply(marketAddMsg(2, SideBid, 100, 4, 55, 2))
	assert.NoError(t, err)

	bid, _ := market.AggregatedBBO(55)
	assert.Equal(t, &PriceLevel{Price: 100, Size: 7, Count: 2}, bid)
}

func TestMarket_PublisherCreatedFlag(t *testing.T) {
	market := NewMarket()

	eff, err := market.Apply(marketAddMsg(1, SideBid, 100, 3, 55, 1))
	assert.NoError(t, err)
	assert.True(t, eff.PublisherCreated)

	eff, err = market.Apply(marketAddMsg(2, SideAsk, 101, 3, 55, 1))
	assert.NoError(t, err)
	assert.False(t, eff.PublisherCreated)

	assert.Equal(t, []uint16{1}, market.Publishers(55))
}

func TestMarket_AggregatedBBO_BetterPriceWinsOutright(t *testing.T) {
	market := NewMarket()
	_, _ = market.Apply(marketAddMsg(1, SideBid, 100, 3, 55, 1))
	_, _ = market.Apply(marketAddMsg(2, SideBid, 105, 2, 55, 2))

	bid, _ := market.AggregatedBBO(55)
	assert.Equal(t, &PriceLevel{Price: 105, Size: 2, Count: 1}, bid)
}

func TestMarket_InvalidPublisherRejected(t *testing.T) {
	market := NewMarket()
	_, err := market.Apply(marketAddMsg(1, SideBid, 100, 3, 55, 0))
	assert.ErrorIs(t, err, ErrInvalidPublisher)
}

func TestMarket_CloneIsIndependent(t *testing.T) {
	market := NewMarket()
	_, _ = market.Apply(marketAddMsg(1, SideBid, 100, 3, 55, 1))

	clone := market.Clone()
	_, _ = market.Apply(marketAddMsg(2, SideBid, 99, 1, 55, 1))

	bid, _ := clone.AggregatedBBO(55)
	assert.Equal(t, &PriceLevel{Price: 100, Size: 3, Count: 1}, bid)
}

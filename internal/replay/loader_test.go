package replay

import (
	"testing"

	"ironbook/internal/mbo"
	"ironbook/internal/orderbook"
	"ironbook/internal/persist"

	"github.com/stretchr/testify/assert"
)

// --- Setup & Helpers ----------------------------------------------------

func newTestMsg(id uint64, side mbo.Side, price int64, size uint32, action mbo.Action) mbo.Msg {
	return mbo.Msg{
		OrderID: id, Side: side, Price: price, Size: size, Action: action,
		InstrumentID: 7, PublisherID: 1,
	}
}

// --- Tests ----------------------------------------------------------------

func TestLoader_RunAppliesInOrderAndBatches(t *testing.T) {
	msgs := []mbo.Msg{
		newTestMsg(1, orderbook.SideBid, 100, 10, mbo.ActionAdd),
		newTestMsg(2, orderbook.SideAsk, 101, 5, mbo.ActionAdd),
		newTestMsg(1, orderbook.SideBid, 100, 4, mbo.ActionCancel),
	}
	decoder := mbo.NewMemDecoder(msgs, map[uint32]string{7: "TEST"})
	sink := persist.NewMemSink()
	market := orderbook.NewMarket()

	loader := New(decoder, sink, market, nil, 2)
	assert.NoError(t, loader.Run())

	assert.Equal(t, msgs, loader.Messages())
	assert.Len(t, loader.Snapshots(), 3)

	stored := sink.Records()
	assert.Equal(t, msgs, stored)

	count, err := sink.Count()
	assert.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestLoader_SnapshotsCaptureExactPostApplyState(t *testing.T) {
	msgs := []mbo.Msg{
		newTestMsg(1, orderbook.SideBid, 100, 10, mbo.ActionAdd),
		newTestMsg(1, orderbook.SideBid, 100, 4, mbo.ActionCancel),
	}
	decoder := mbo.NewMemDecoder(msgs, nil)
	sink := persist.NewMemSink()
	market := orderbook.NewMarket()

	loader := New(decoder, sink, market, nil, 1000)
	assert.NoError(t, loader.Run())

	snaps := loader.Snapshots()
	assert.Len(t, snaps, 2)

	bid, _ := snaps[0].Market.AggregatedBBO(7)
	assert.Equal(t, &orderbook.PriceLevel{Price: 100, Size: 10, Count: 1}, bid)

	bid, _ = snaps[1].Market.AggregatedBBO(7)
	assert.Equal(t, &orderbook.PriceLevel{Price: 100, Size: 6, Count: 1}, bid)
}

func TestLoader_FatalApplyErrorAbortsRun(t *testing.T) {
	msgs := []mbo.Msg{
		newTestMsg(1, orderbook.SideBid, 100, 10, mbo.ActionAdd),
		newTestMsg(1, orderbook.SideBid, 100, 5, mbo.ActionAdd),
	}
	decoder := mbo.NewMemDecoder(msgs, nil)
	sink := persist.NewMemSink()
	market := orderbook.NewMarket()

	loader := New(decoder, sink, market, nil, 1000)
	err := loader.Run()
	assert.Error(t, err)
}

func TestLoader_SymbolResolutionErrorAbortsRun(t *testing.T) {
	msgs := []mbo.Msg{
		{
			OrderID: 1, Side: orderbook.SideBid, Price: 100, Size: 10,
			Action: mbo.ActionAdd, InstrumentID: 7, PublisherID: 1,
			Flags: mbo.NewFlags(true, false),
		},
	}
	// No symbol table entry for instrument 7: Symbol() fails on the
	// IsLast() message, which must abort the run rather than just log.
	decoder := mbo.NewMemDecoder(msgs, map[uint32]string{})
	sink := persist.NewMemSink()
	market := orderbook.NewMarket()

	loader := New(decoder, sink, market, nil, 1000)
	err := loader.Run()
	assert.Error(t, err)
	assert.ErrorIs(t, err, mbo.ErrUnknownSymbol)
}

func TestLoader_PreSnapshotSkipIsNotFatal(t *testing.T) {
	msgs := []mbo.Msg{
		newTestMsg(99, orderbook.SideBid, 100, 1, mbo.ActionCancel),
		newTestMsg(1, orderbook.SideBid, 100, 10, mbo.ActionAdd),
	}
	decoder := mbo.NewMemDecoder(msgs, nil)
	sink := persist.NewMemSink()
	market := orderbook.NewMarket()

	loader := New(decoder, sink, market, nil, 1000)
	assert.NoError(t, loader.Run())
	assert.Len(t, loader.Snapshots(), 2)
	assert.Equal(t, orderbook.EffectSkipped, loader.Snapshots()[0].Effect.BookEffects[0].Kind)
}

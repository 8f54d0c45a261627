package orderbook

import (
	"testing"

	"ironbook/internal/mbo"

	"github.com/stretchr/testify/assert"
)

// --- Setup & Helpers ----------------------------------------------------

func addMsg(id uint64, side mbo.Side, price int64, size uint32) mbo.Msg {
	return mbo.Msg{OrderID: id, Side: side, Price: price, Size: size, Action: mbo.ActionAdd}
}

func cancelMsg(id uint64, side mbo.Side, price int64, size uint32) mbo.Msg {
	return mbo.Msg{OrderID: id, Side: side, Price: price, Size: size, Action: mbo.ActionCancel}
}

func modifyMsg(id uint64, side mbo.Side, price int64, size uint32) mbo.Msg {
	return mbo.Msg{OrderID: id, Side: side, Price: price, Size: size, Action: mbo.ActionModify}
}

func tobAddMsg(side mbo.Side, price int64, size uint32) mbo.Msg {
	return mbo.Msg{Side: side, Price: price, Size: size, Action: mbo.ActionAdd, Flags: mbo.NewFlags(false, true)}
}

// --- Invariant helpers ----------------------------------------------------

// assertBijection checks testable property 1 & 2: every id index entry
// resolves to a Level containing that id, and vice versa.
func assertBijection(t *testing.T, b *Book) {
	t.Helper()
	seen := make(map[uint64]bool)
	b.bids.Scan(func(lv *level) bool {
		for _, o := range lv.orders {
			seen[o.OrderID] = true
			loc, ok := b.ordersByID[o.OrderID]
			assert.True(t, ok, "order %d in bid level missing from id index", o.OrderID)
			assert.Equal(t, SideBid, loc.side)
			assert.Equal(t, lv.price, loc.price)
		}
		return true
	})
	b.offers.Scan(func(lv *level) bool {
		for _, o := range lv.orders {
			seen[o.OrderID] = true
			loc, ok := b.ordersByID[o.OrderID]
			assert.True(t, ok, "order %d in ask level missing from id index", o.OrderID)
			assert.Equal(t, SideAsk, loc.side)
			assert.Equal(t, lv.price, loc.price)
		}
		return true
	})
	assert.Equal(t, len(seen), len(b.ordersByID), "id index has entries with no backing order")
}

// assertNonCrossed checks testable property 3.
func assertNonCrossed(t *testing.T, b *Book) {
	t.Helper()
	bestBid, bidOK := b.bids.Min()
	bestAsk, askOK := b.offers.Min()
	if bidOK && askOK {
		assert.Less(t, bestBid.price, bestAsk.price)
	}
}

// assertNoEmptyLevels checks testable property 4.
func assertNoEmptyLevels(t *testing.T, b *Book) {
	t.Helper()
	b.bids.Scan(func(lv *level) bool {
		assert.False(t, lv.empty())
		return true
	})
	b.offers.Scan(func(lv *level) bool {
		assert.False(t, lv.empty())
		return true
	})
}

// --- S1: Two-sided resting book ------------------------------------------

func TestScenario_S1_TwoSidedRestingBook(t *testing.T) {
	book := New()

	_, err := book.Apply(addMsg(1, SideBid, 100, 10))
	assert.NoError(t, err)
	_, err = book.Apply(addMsg(2, SideAsk, 101, 5))
	assert.NoError(t, err)

	bid, ask := book.BBO()
	assert.Equal(t, &PriceLevel{Price: 100, Size: 10, Count: 1}, bid)
	assert.Equal(t, &PriceLevel{Price: 101, Size: 5, Count: 1}, ask)
	assertNonCrossed(t, book)
	assertBijection(t, book)
}

// --- S2/S3: Partial then full cancel --------------------------------------

func TestScenario_S2_S3_PartialThenFullCancel(t *testing.T) {
	book := New()
	_, _ = book.Apply(addMsg(1, SideBid, 100, 10))
	_, _ = book.Apply(addMsg(2, SideAsk, 101, 5))

	// S2: partial cancel.
	eff, err := book.Apply(cancelMsg(1, SideBid, 100, 4))
	assert.NoError(t, err)
	assert.Equal(t, EffectCanceled, eff[0].Kind)
	assert.False(t, eff[0].FullCancel)

	bid, _ := book.BBO()
	assert.Equal(t, &PriceLevel{Price: 100, Size: 6, Count: 1}, bid)
	order := book.Order(1)
	assert.NotNil(t, order)
	assert.Equal(t, uint32(6), order.Size)

	// S3: full cancel removes the level.
	eff, err = book.Apply(cancelMsg(1, SideBid, 100, 6))
	assert.NoError(t, err)
	assert.Equal(t, EffectCanceled, eff[0].Kind)
	assert.True(t, eff[0].FullCancel)

	bid, ask := book.BBO()
	assert.Nil(t, bid)
	assert.Equal(t, &PriceLevel{Price: 101, Size: 5, Count: 1}, ask)
	assert.Nil(t, book.Order(1))
}

// --- S4: Pre-snapshot cancel ----------------------------------------------

func TestScenario_S4_PreSnapshotCancel(t *testing.T) {
	book := New()

	eff, err := book.Apply(cancelMsg(42, SideBid, 99, 1))
	assert.NoError(t, err)
	assert.Equal(t, EffectSkipped, eff[0].Kind)
	assert.Equal(t, SkipPreSnapshotCancel, eff[0].Reason)

	bid, ask := book.BBO()
	assert.Nil(t, bid)
	assert.Nil(t, ask)
}

// --- S5: Crossed-book repair ------------------------------------------------

func TestScenario_S5_CrossedBookRepair(t *testing.T) {
	book := New()
	_, _ = book.Apply(addMsg(1, SideBid, 100, 10))
	_, _ = book.Apply(addMsg(2, SideAsk, 101, 5))

	effects, err := book.Apply(addMsg(3, SideBid, 102, 7))
	assert.NoError(t, err)
	assert.Len(t, effects, 2)
	assert.Equal(t, EffectAdded, effects[0].Kind)
	assert.Equal(t, EffectCrossedResolved, effects[1].Kind)
	assert.Equal(t, int64(102), effects[1].RemovedBidPrice)
	assert.Equal(t, int64(101), effects[1].RemovedAskPrice)
	assert.ElementsMatch(t, []uint64{3, 2}, effects[1].RemovedOrderIDs)

	bid, ask := book.BBO()
	assert.Equal(t, &PriceLevel{Price: 100, Size: 10, Count: 1}, bid)
	assert.Nil(t, ask)
	assert.NotNil(t, book.Order(1))
	assert.Nil(t, book.Order(2))
	assert.Nil(t, book.Order(3))
	assertNonCrossed(t, book)
	assertBijection(t, book)
	assertNoEmptyLevels(t, book)
}

// --- S6: Modify keeps priority vs. requeues --------------------------------

func TestScenario_S6_ModifyPriority(t *testing.T) {
	book := New()
	_, _ = book.Apply(addMsg(1, SideBid, 100, 10))
	_, _ = book.Apply(addMsg(2, SideBid, 100, 5))

	pos := book.QueuePos(2)
	assert.NotNil(t, pos)
	assert.Equal(t, uint32(10), *pos)

	// Same price, smaller size: keeps priority.
	eff, err := book.Apply(modifyMsg(1, SideBid, 100, 8))
	assert.NoError(t, err)
	assert.Equal(t, EffectModified, eff[0].Kind)
	assert.True(t, eff[0].KeptPriority)

	pos = book.QueuePos(2)
	assert.NotNil(t, pos)
	assert.Equal(t, uint32(8), *pos)

	// Same price, larger size: requeues to tail.
	eff, err = book.Apply(modifyMsg(1, SideBid, 100, 20))
	assert.NoError(t, err)
	assert.Equal(t, EffectModified, eff[0].Kind)
	assert.False(t, eff[0].KeptPriority)

	pos = book.QueuePos(2)
	assert.NotNil(t, pos)
	assert.Equal(t, uint32(0), *pos)

	pos = book.QueuePos(1)
	assert.NotNil(t, pos)
	assert.Equal(t, uint32(5), *pos)

	assertBijection(t, book)
}

// --- Additional invariant coverage ------------------------------------------

func TestSnapshot_ZeroFillsMissingDepth(t *testing.T) {
	book := New()
	_, _ = book.Apply(addMsg(1, SideBid, 100, 10))

	rows := book.Snapshot(3)
	assert.Len(t, rows, 3)
	assert.Equal(t, int64(100), rows[0].BidPrice)
	assert.Equal(t, BidAskLevel{}, rows[1])
	assert.Equal(t, BidAskLevel{}, rows[2])
}

func TestClearIdempotence(t *testing.T) {
	book := New()
	_, _ = book.Apply(addMsg(1, SideBid, 100, 10))
	_, _ = book.Apply(addMsg(2, SideAsk, 101, 5))

	eff1, err := book.Apply(mbo.Msg{Action: mbo.ActionClear})
	assert.NoError(t, err)
	assert.Equal(t, EffectCleared, eff1[0].Kind)

	eff2, err := book.Apply(mbo.Msg{Action: mbo.ActionClear})
	assert.NoError(t, err)
	assert.Equal(t, EffectCleared, eff2[0].Kind)

	bid, ask := book.BBO()
	assert.Nil(t, bid)
	assert.Nil(t, ask)

	_, err = book.Apply(addMsg(1, SideBid, 100, 10))
	assert.NoError(t, err)
	bid, _ = book.BBO()
	assert.Equal(t, &PriceLevel{Price: 100, Size: 10, Count: 1}, bid)
}

func TestAddCancelRoundTrip(t *testing.T) {
	book := New()
	_, err := book.Apply(addMsg(1, SideBid, 100, 10))
	assert.NoError(t, err)

	eff, err := book.Apply(cancelMsg(1, SideBid, 100, 10))
	assert.NoError(t, err)
	assert.True(t, eff[0].FullCancel)

	bid, _ := book.BBO()
	assert.Nil(t, bid)
	assert.Nil(t, book.Order(1))
}

func TestDuplicateOrderRejected(t *testing.T) {
	book := New()
	_, err := book.Apply(addMsg(1, SideBid, 100, 10))
	assert.NoError(t, err)

	_, err = book.Apply(addMsg(1, SideBid, 100, 5))
	assert.ErrorIs(t, err, ErrDuplicateOrder)
}

func TestCancelExceedsSizeRejected(t *testing.T) {
	book := New()
	_, _ = book.Apply(addMsg(1, SideBid, 100, 10))

	_, err := book.Apply(cancelMsg(1, SideBid, 100, 11))
	assert.ErrorIs(t, err, ErrCancelExceedsSize)
}

func TestTopOfBookAdd_PureClear(t *testing.T) {
	book := New()
	_, _ = book.Apply(addMsg(1, SideBid, 100, 10))

	eff, err := book.Apply(mbo.Msg{
		Side: SideBid, Price: mbo.UndefPrice, Action: mbo.ActionAdd,
		Flags: mbo.NewFlags(false, true),
	})
	assert.NoError(t, err)
	assert.Equal(t, EffectCleared, eff[0].Kind)

	bid, _ := book.BBO()
	assert.Nil(t, bid)
}

func TestTopOfBookAdd_ReplacesSide(t *testing.T) {
	book := New()
	_, _ = book.Apply(addMsg(1, SideBid, 100, 10))
	_, _ = book.Apply(addMsg(2, SideBid, 99, 5))

	_, err := book.Apply(tobAddMsg(SideBid, 105, 50))
	assert.NoError(t, err)

	bid, _ := book.BBO()
	assert.Equal(t, &PriceLevel{Price: 105, Size: 50, Count: 0}, bid)
	// The TOB side-clear drops the replaced resting orders.
	assert.Nil(t, book.Order(1))
	assert.Nil(t, book.Order(2))
}

func TestInvalidSideRejected(t *testing.T) {
	book := New()
	_, err := book.Apply(addMsg(1, mbo.SideNone, 100, 10))
	assert.ErrorIs(t, err, ErrInvalidSide)
}

func TestCloneIsIndependent(t *testing.T) {
	book := New()
	_, _ = book.Apply(addMsg(1, SideBid, 100, 10))

	clone := book.Clone()
	_, _ = book.Apply(addMsg(2, SideBid, 99, 5))

	bid, _ := clone.BBO()
	assert.Equal(t, &PriceLevel{Price: 100, Size: 10, Count: 1}, bid)
	assert.Nil(t, clone.Order(2))
}

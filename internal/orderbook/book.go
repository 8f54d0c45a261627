// Package orderbook implements the per-book state machine and the
// per-instrument multi-publisher aggregator that together replay a
// Market-By-Order feed into a live limit order book.
package orderbook

import (
	"ironbook/internal/mbo"

	"github.com/pkg/errors"
	"github.com/tidwall/btree"
)

// Side re-exports mbo.Side so callers of this package never need to
// import internal/mbo directly for the common case.
type Side = mbo.Side

const (
	SideBid  = mbo.SideBid
	SideAsk  = mbo.SideAsk
	SideNone = mbo.SideNone
)

// idLoc is the secondary index entry for one resting order: which side
// and price its Level currently lives at.
type idLoc struct {
	side  Side
	price int64
}

// Book is the per-(instrument, publisher) order book. It owns the
// canonical bid/offer indexes and the order-id secondary index, and
// applies MBO actions one at a time, maintaining price-time priority
// within a level and repairing any crossed state an Add produces.
//
// bids is ordered highest price first, offers lowest price first, so
// Min() on either tree is always the best-of-side level.
type Book struct {
	bids       *btree.BTreeG[*level]
	offers     *btree.BTreeG[*level]
	ordersByID map[uint64]idLoc
}

// New returns an empty Book.
func New() *Book {
	return &Book{
		bids:       btree.NewBTreeG(func(a, b *level) bool { return a.price > b.price }),
		offers:     btree.NewBTreeG(func(a, b *level) bool { return a.price < b.price }),
		ordersByID: make(map[uint64]idLoc),
	}
}

// --- queries ----------------------------------------------------------

// BBO returns the best bid and best ask PriceLevel, or nil on a side
// with no resting levels.
func (b *Book) BBO() (*PriceLevel, *PriceLevel) {
	return b.BidLevel(0), b.AskLevel(0)
}

// BidLevel returns the idx-th best bid level (0 = best), or nil beyond
// depth.
func (b *Book) BidLevel(idx int) *PriceLevel {
	return levelAt(b.bids, idx)
}

// AskLevel returns the idx-th best ask level (0 = best), or nil beyond
// depth.
func (b *Book) AskLevel(idx int) *PriceLevel {
	return levelAt(b.offers, idx)
}

func levelAt(tree *btree.BTreeG[*level], idx int) *PriceLevel {
	if idx < 0 {
		return nil
	}
	var found *PriceLevel
	i := 0
	tree.Scan(func(lv *level) bool {
		if i == idx {
			pl := newPriceLevel(lv.price, lv.orders)
			found = &pl
			return false
		}
		i++
		return true
	})
	return found
}

// BidLevelByPx returns the bid level at the exact price, or nil.
func (b *Book) BidLevelByPx(price int64) *PriceLevel {
	return levelByPx(b.bids, price)
}

// AskLevelByPx returns the ask level at the exact price, or nil.
func (b *Book) AskLevelByPx(price int64) *PriceLevel {
	return levelByPx(b.offers, price)
}

func levelByPx(tree *btree.BTreeG[*level], price int64) *PriceLevel {
	lv, ok := tree.Get(&level{price: price})
	if !ok {
		return nil
	}
	pl := newPriceLevel(lv.price, lv.orders)
	return &pl
}

// Order returns the stored order record for orderID, or nil if unknown.
func (b *Book) Order(orderID uint64) *mbo.Msg {
	loc, ok := b.ordersByID[orderID]
	if !ok {
		return nil
	}
	lv := b.sideTree(loc.side)
	found, ok := lv.Get(&level{price: loc.price})
	if !ok {
		return nil
	}
	idx := found.indexOf(orderID)
	if idx < 0 {
		return nil
	}
	msg := found.orders[idx]
	return &msg
}

// QueuePos returns the sum of sizes of all orders resting strictly
// ahead of orderID at its level, or nil if orderID is unknown. This is
// a queue-depth metric, not an index.
func (b *Book) QueuePos(orderID uint64) *uint32 {
	loc, ok := b.ordersByID[orderID]
	if !ok {
		return nil
	}
	lv, ok := b.sideTree(loc.side).Get(&level{price: loc.price})
	if !ok {
		return nil
	}
	var sum uint32
	for _, o := range lv.orders {
		if o.OrderID == orderID {
			return &sum
		}
		sum += o.Size
	}
	return nil
}

// Snapshot returns n (bid, ask) level summaries; where a side has fewer
// than n levels, that side's fields are zero-filled.
func (b *Book) Snapshot(n int) []BidAskLevel {
	out := make([]BidAskLevel, n)
	for i := 0; i < n; i++ {
		if bid := b.BidLevel(i); bid != nil {
			out[i].BidPrice, out[i].BidSize, out[i].BidCount = bid.Price, bid.Size, bid.Count
		}
		if ask := b.AskLevel(i); ask != nil {
			out[i].AskPrice, out[i].AskSize, out[i].AskCount = ask.Price, ask.Size, ask.Count
		}
	}
	return out
}

// BidAskLevel is one row of a Book.Snapshot, zero-filled on a side with
// no level at that depth.
type BidAskLevel struct {
	BidPrice int64
	BidSize  uint32
	BidCount uint32
	AskPrice int64
	AskSize  uint32
	AskCount uint32
}

// --- mutator ------------------------------------------------------------

// Apply dispatches msg.Action against the book and returns the
// resulting effects. Trade, Fill, and None are observed-only and
// always return a single NoOp effect. An Add that creates a crossed
// book returns the Added effect followed by one CrossedResolved effect
// per repair iteration.
func (b *Book) Apply(msg mbo.Msg) ([]BookEffect, error) {
	switch msg.Action {
	case mbo.ActionTrade, mbo.ActionFill, mbo.ActionNone:
		return []BookEffect{noOpEffect()}, nil
	case mbo.ActionClear:
		b.clear()
		return []BookEffect{clearedEffect()}, nil
	case mbo.ActionAdd:
		return b.add(msg)
	case mbo.ActionCancel:
		eff, err := b.cancel(msg)
		if err != nil {
			return nil, err
		}
		return []BookEffect{eff}, nil
	case mbo.ActionModify:
		eff, err := b.modify(msg)
		if err != nil {
			return nil, err
		}
		return []BookEffect{eff}, nil
	default:
		return nil, errors.Wrapf(ErrInvalidAction, "action byte %q", byte(msg.Action))
	}
}

func (b *Book) clear() {
	b.bids = btree.NewBTreeG(func(a, c *level) bool { return a.price > c.price })
	b.offers = btree.NewBTreeG(func(a, c *level) bool { return a.price < c.price })
	b.ordersByID = make(map[uint64]idLoc)
}

func (b *Book) sideTree(side Side) *btree.BTreeG[*level] {
	switch side {
	case mbo.SideBid:
		return b.bids
	case mbo.SideAsk:
		return b.offers
	default:
		return nil
	}
}

// resetSideTree replaces the entire ordered index on side with a fresh
// empty tree and drops that side's entries from the order-id index,
// used by TOB Add's full side-clear semantics.
func (b *Book) resetSideTree(side Side) {
	switch side {
	case mbo.SideBid:
		b.bids = btree.NewBTreeG(treeLess(mbo.SideBid))
	case mbo.SideAsk:
		b.offers = btree.NewBTreeG(treeLess(mbo.SideAsk))
	}
	for id, loc := range b.ordersByID {
		if loc.side == side {
			delete(b.ordersByID, id)
		}
	}
}

func (b *Book) add(msg mbo.Msg) ([]BookEffect, error) {
	if msg.Side == mbo.SideNone {
		return nil, errors.Wrap(ErrInvalidSide, "Add")
	}
	price := msg.Price

	if msg.Flags.IsTOB() {
		b.resetSideTree(msg.Side)
		if price == mbo.UndefPrice {
			return []BookEffect{clearedEffect()}, nil
		}
		lv := newLevel(price)
		lv.pushBack(msg)
		b.sideTree(msg.Side).Set(lv)
		return []BookEffect{addedEffect(msg.OrderID, msg.Side, price)}, nil
	}

	if price == mbo.UndefPrice {
		return nil, errors.Wrap(ErrInvalidPrice, "non-TOB Add with UNDEF_PRICE")
	}
	if _, exists := b.ordersByID[msg.OrderID]; exists {
		return nil, errors.Wrapf(ErrDuplicateOrder, "order id %d", msg.OrderID)
	}

	tree := b.sideTree(msg.Side)
	lv, ok := tree.Get(&level{price: price})
	if !ok {
		lv = newLevel(price)
		tree.Set(lv)
	}
	lv.pushBack(msg)
	b.ordersByID[msg.OrderID] = idLoc{side: msg.Side, price: price}

	effects := []BookEffect{addedEffect(msg.OrderID, msg.Side, price)}
	effects = append(effects, b.resolveCrossed()...)
	return effects, nil
}

func treeLess(side Side) func(a, b *level) bool {
	if side == mbo.SideBid {
		return func(a, b *level) bool { return a.price > b.price }
	}
	return func(a, b *level) bool { return a.price < b.price }
}

// resolveCrossed evicts whole crossed levels until bids.max < offers.min,
// recording one CrossedResolved effect per iteration.
func (b *Book) resolveCrossed() []BookEffect {
	var effects []BookEffect
	for {
		bestBid, bidOK := b.bids.Min()
		bestAsk, askOK := b.offers.Min()
		if !bidOK || !askOK || bestBid.price < bestAsk.price {
			return effects
		}

		var removed []uint64
		for _, o := range bestBid.orders {
			delete(b.ordersByID, o.OrderID)
			removed = append(removed, o.OrderID)
		}
		for _, o := range bestAsk.orders {
			delete(b.ordersByID, o.OrderID)
			removed = append(removed, o.OrderID)
		}
		b.bids.Delete(bestBid)
		b.offers.Delete(bestAsk)

		effects = append(effects, crossedResolvedEffect(bestBid.price, bestAsk.price, removed))
	}
}

func (b *Book) cancel(msg mbo.Msg) (BookEffect, error) {
	if msg.Side == mbo.SideNone {
		return BookEffect{}, errors.Wrap(ErrInvalidSide, "Cancel")
	}
	tree := b.sideTree(msg.Side)
	lv, ok := tree.Get(&level{price: msg.Price})
	if !ok {
		return skippedEffect(SkipPreSnapshotCancel), nil
	}
	idx := lv.indexOf(msg.OrderID)
	if idx < 0 {
		return skippedEffect(SkipPreSnapshotCancel), nil
	}

	existing := &lv.orders[idx]
	if existing.Size < msg.Size {
		return BookEffect{}, errors.Wrapf(
			ErrCancelExceedsSize, "order %d: cancel %d exceeds resting size %d",
			msg.OrderID, msg.Size, existing.Size,
		)
	}
	existing.Size -= msg.Size
	full := existing.Size == 0
	if full {
		lv.removeAt(idx)
		if lv.empty() {
			tree.Delete(lv)
		}
		delete(b.ordersByID, msg.OrderID)
	}
	return canceledEffect(msg.OrderID, msg.Side, msg.Price, full), nil
}

func (b *Book) modify(msg mbo.Msg) (BookEffect, error) {
	if msg.Side == mbo.SideNone {
		return BookEffect{}, errors.Wrap(ErrInvalidSide, "Modify")
	}
	loc, ok := b.ordersByID[msg.OrderID]
	if !ok {
		return skippedEffect(SkipPreSnapshotModify), nil
	}

	prevTree := b.sideTree(loc.side)
	prevLevel, ok := prevTree.Get(&level{price: loc.price})
	if !ok {
		return BookEffect{}, errors.Wrapf(ErrInternalInconsistency, "missing level at price %d while modifying order %d", loc.price, msg.OrderID)
	}
	idx := prevLevel.indexOf(msg.OrderID)
	if idx < 0 {
		return BookEffect{}, errors.Wrapf(ErrInternalInconsistency, "order %d indexed but absent from its level", msg.OrderID)
	}

	existingSize := prevLevel.orders[idx].Size
	keepsPriority := loc.side == msg.Side && loc.price == msg.Price && existingSize >= msg.Size

	if keepsPriority {
		prevLevel.orders[idx].Size = msg.Size
		return modifiedEffect(msg.OrderID, msg.Side, true, loc.price, msg.Price), nil
	}

	prevLevel.removeAt(idx)
	if prevLevel.empty() {
		prevTree.Delete(prevLevel)
	}

	b.ordersByID[msg.OrderID] = idLoc{side: msg.Side, price: msg.Price}
	newTree := b.sideTree(msg.Side)
	newLv, ok := newTree.Get(&level{price: msg.Price})
	if !ok {
		newLv = newLevel(msg.Price)
		newTree.Set(newLv)
	}
	requeued := msg
	requeued.Size = msg.Size
	newLv.pushBack(requeued)

	return modifiedEffect(msg.OrderID, msg.Side, false, loc.price, msg.Price), nil
}

// Clone returns a deep, independent copy of the book, suitable for
// embedding in a point-in-time MarketSnapshot.
func (b *Book) Clone() *Book {
	cp := New()
	b.bids.Scan(func(lv *level) bool {
		cp.bids.Set(lv.clone())
		return true
	})
	b.offers.Scan(func(lv *level) bool {
		cp.offers.Set(lv.clone())
		return true
	})
	for id, loc := range b.ordersByID {
		cp.ordersByID[id] = loc
	}
	return cp
}

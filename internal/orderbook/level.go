package orderbook

import "ironbook/internal/mbo"

// level holds every non-TOB order resting at one price on one side, in
// FIFO insertion order. The sequence order is the canonical time
// priority: index 0 is always the order with the best queue position.
type level struct {
	price  int64
	orders []mbo.Msg
}

func newLevel(price int64) *level {
	return &level{price: price}
}

func (l *level) pushBack(msg mbo.Msg) {
	l.orders = append(l.orders, msg)
}

func (l *level) indexOf(orderID uint64) int {
	for i, o := range l.orders {
		if o.OrderID == orderID {
			return i
		}
	}
	return -1
}

func (l *level) removeAt(idx int) {
	l.orders = append(l.orders[:idx], l.orders[idx+1:]...)
}

func (l *level) empty() bool { return len(l.orders) == 0 }

// clone returns a deep copy of the level, so mutations on one snapshot
// never leak into another.
func (l *level) clone() *level {
	cp := &level{price: l.price, orders: make([]mbo.Msg, len(l.orders))}
	copy(cp.orders, l.orders)
	return cp
}

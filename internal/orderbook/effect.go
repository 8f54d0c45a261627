package orderbook

// EffectKind tags which variant a BookEffect carries.
type EffectKind int

const (
	EffectNoOp EffectKind = iota
	EffectAdded
	EffectCanceled
	EffectModified
	EffectCleared
	EffectCrossedResolved
	EffectSkipped
)

func (k EffectKind) String() string {
	switch k {
	case EffectAdded:
		return "Added"
	case EffectCanceled:
		return "Canceled"
	case EffectModified:
		return "Modified"
	case EffectCleared:
		return "Cleared"
	case EffectCrossedResolved:
		return "CrossedResolved"
	case EffectSkipped:
		return "Skipped"
	default:
		return "NoOp"
	}
}

// SkipReason distinguishes the two pre-snapshot conditions a Skipped
// effect can carry.
type SkipReason int

const (
	SkipNone SkipReason = iota
	SkipPreSnapshotCancel
	SkipPreSnapshotModify
)

func (r SkipReason) String() string {
	switch r {
	case SkipPreSnapshotCancel:
		return "PreSnapshotCancel"
	case SkipPreSnapshotModify:
		return "PreSnapshotModify"
	default:
		return "None"
	}
}

// BookEffect is a tagged variant summarizing one structural change to a
// Book. A single Book.Apply call can return more than one BookEffect:
// an Add that triggers crossed-book repair yields an Added effect
// followed by one CrossedResolved effect per repair iteration.
type BookEffect struct {
	Kind EffectKind

	// Added / the order carried by Canceled, Modified.
	OrderID uint64
	Side    Side
	Price   int64

	// Canceled.
	FullCancel bool

	// Modified.
	KeptPriority bool
	PrevPrice    int64
	NewPrice     int64

	// CrossedResolved.
	RemovedBidPrice int64
	RemovedAskPrice int64
	RemovedOrderIDs []uint64

	// Skipped.
	Reason SkipReason
}

func noOpEffect() BookEffect { return BookEffect{Kind: EffectNoOp} }

func clearedEffect() BookEffect { return BookEffect{Kind: EffectCleared} }

func skippedEffect(reason SkipReason) BookEffect {
	return BookEffect{Kind: EffectSkipped, Reason: reason}
}

func addedEffect(orderID uint64, side Side, price int64) BookEffect {
	return BookEffect{Kind: EffectAdded, OrderID: orderID, Side: side, Price: price}
}

func canceledEffect(orderID uint64, side Side, price int64, full bool) BookEffect {
	return BookEffect{Kind: EffectCanceled, OrderID: orderID, Side: side, Price: price, FullCancel: full}
}

func modifiedEffect(orderID uint64, side Side, keptPriority bool, prevPrice, newPrice int64) BookEffect {
	return BookEffect{
		Kind:         EffectModified,
		OrderID:      orderID,
		Side:         side,
		KeptPriority: keptPriority,
		PrevPrice:    prevPrice,
		NewPrice:     newPrice,
	}
}

func crossedResolvedEffect(removedBidPrice, removedAskPrice int64, removedOrderIDs []uint64) BookEffect {
	return BookEffect{
		Kind:            EffectCrossedResolved,
		RemovedBidPrice: removedBidPrice,
		RemovedAskPrice: removedAskPrice,
		RemovedOrderIDs: removedOrderIDs,
	}
}

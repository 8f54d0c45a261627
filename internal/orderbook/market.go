package orderbook

import (
	"ironbook/internal/mbo"

	"github.com/pkg/errors"
)

// pubBook pairs a publisher with its Book for one instrument. Publishers
// are kept in first-seen order in a slice rather than a map, since the
// spec's aggregation and diagnostics need stable, reproducible
// iteration order across runs.
type pubBook struct {
	publisher uint16
	book      *Book
}

// Market aggregates one Book per (instrument, publisher) pair and
// exposes a best-of-all-publishers aggregated view per instrument.
type Market struct {
	books map[uint32][]pubBook
}

// NewMarket returns an empty Market.
func NewMarket() *Market {
	return &Market{books: make(map[uint32][]pubBook)}
}

// MarketEffect wraps the BookEffects a single Apply call produced,
// tagged with whether applying msg required creating a new publisher
// book for its instrument.
type MarketEffect struct {
	PublisherCreated bool
	BookEffects      []BookEffect
}

// Apply routes msg to the Book for its (InstrumentID, PublisherID) pair,
// creating that Book on first sight of the pair, and returns the
// resulting effects.
func (m *Market) Apply(msg mbo.Msg) (MarketEffect, error) {
	if msg.PublisherID == 0 {
		return MarketEffect{}, errors.Wrap(ErrInvalidPublisher, "publisher id 0")
	}

	books := m.books[msg.InstrumentID]
	var book *Book
	created := false
	for _, pb := range books {
		if pb.publisher == msg.PublisherID {
			book = pb.book
			break
		}
	}
	if book == nil {
		book = New()
		m.books[msg.InstrumentID] = append(books, pubBook{publisher: msg.PublisherID, book: book})
		created = true
	}

	effects, err := book.Apply(msg)
	if err != nil {
		return MarketEffect{}, err
	}
	return MarketEffect{PublisherCreated: created, BookEffects: effects}, nil
}

// Book returns the Book for (instrumentID, publisherID), or nil if no
// message for that pair has been applied yet.
func (m *Market) Book(instrumentID uint32, publisherID uint16) *Book {
	for _, pb := range m.books[instrumentID] {
		if pb.publisher == publisherID {
			return pb.book
		}
	}
	return nil
}

// Publishers returns the publisher ids seen for instrumentID, in
// first-seen order.
func (m *Market) Publishers(instrumentID uint32) []uint16 {
	books := m.books[instrumentID]
	out := make([]uint16, len(books))
	for i, pb := range books {
		out[i] = pb.publisher
	}
	return out
}

// AggregatedBBO merges the best bid and best ask across every publisher
// book for instrumentID into a single cross-venue top of book. On a tie
// in price, sizes and counts are summed; otherwise the better price
// wins outright. Either return value is nil if no publisher has a
// level on that side.
func (m *Market) AggregatedBBO(instrumentID uint32) (*PriceLevel, *PriceLevel) {
	var bestBid, bestAsk *PriceLevel
	for _, pb := range m.books[instrumentID] {
		bid, ask := pb.book.BBO()
		bestBid = mergeBetter(bestBid, bid, true)
		bestAsk = mergeBetter(bestAsk, ask, false)
	}
	return bestBid, bestAsk
}

// mergeBetter folds candidate into acc, where higherWins selects bid
// (higher price better) vs ask (lower price better) comparison.
func mergeBetter(acc, candidate *PriceLevel, higherWins bool) *PriceLevel {
	if candidate == nil {
		return acc
	}
	if acc == nil {
		cp := *candidate
		return &cp
	}
	switch {
	case candidate.Price == acc.Price:
		acc.Size += candidate.Size
		acc.Count += candidate.Count
		return acc
	case higherWins && candidate.Price > acc.Price:
		cp := *candidate
		return &cp
	case !higherWins && candidate.Price < acc.Price:
		cp := *candidate
		return &cp
	default:
		return acc
	}
}

// Clone returns a deep, independent copy of the market, suitable for
// embedding in a point-in-time MarketSnapshot.
func (m *Market) Clone() *Market {
	cp := NewMarket()
	for instrumentID, books := range m.books {
		cloned := make([]pubBook, len(books))
		for i, pb := range books {
			cloned[i] = pubBook{publisher: pb.publisher, book: pb.book.Clone()}
		}
		cp.books[instrumentID] = cloned
	}
	return cp
}

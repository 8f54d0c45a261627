// Package mbo defines the wire-level Market-By-Order message shape the
// replay engine consumes. The binary feed decoder itself lives outside
// this module; this package only defines the decoded record and the
// small interface the engine needs from a decoder.
package mbo

import "time"

// Side identifies which side of the book a message concerns. The byte
// values match the tags used on the wire so they round-trip without a
// translation table.
type Side uint8

const (
	SideAsk  Side = 'A'
	SideBid  Side = 'B'
	SideNone Side = 'N'
)

func (s Side) String() string {
	switch s {
	case SideBid:
		return "Bid"
	case SideAsk:
		return "Ask"
	default:
		return "None"
	}
}

// Action identifies what kind of update a message describes.
type Action uint8

const (
	ActionAdd    Action = 'A'
	ActionCancel Action = 'C'
	ActionModify Action = 'M'
	ActionClear  Action = 'R'
	ActionTrade  Action = 'T'
	ActionFill   Action = 'F'
	ActionNone   Action = 'N'
)

func (a Action) String() string {
	switch a {
	case ActionAdd:
		return "Add"
	case ActionCancel:
		return "Cancel"
	case ActionModify:
		return "Modify"
	case ActionClear:
		return "Clear"
	case ActionTrade:
		return "Trade"
	case ActionFill:
		return "Fill"
	default:
		return "None"
	}
}

// Flags carries the subset of the wire flag byte the core cares about.
type Flags uint8

const (
	flagLast Flags = 1 << 7
	flagTOB  Flags = 1 << 6
)

// IsLast reports whether this is the last message in a logically grouped
// event (used only to gate aggregated-BBO diagnostics).
func (f Flags) IsLast() bool { return f&flagLast != 0 }

// IsTOB reports whether this message describes the current top of book
// wholesale, rather than an individual resting order.
func (f Flags) IsTOB() bool { return f&flagTOB != 0 }

// NewFlags builds a Flags value from the two booleans the core reads;
// any other wire bits are not modeled since nothing downstream needs them.
func NewFlags(isLast, isTOB bool) Flags {
	var f Flags
	if isLast {
		f |= flagLast
	}
	if isTOB {
		f |= flagTOB
	}
	return f
}

// UndefPrice is the reserved sentinel meaning "no price". On a
// top-of-book Add it signals a pure side-clear.
const UndefPrice int64 = 1<<63 - 1

// Msg is one decoded MBO record. It is immutable after decode and is
// freely cloned (copied by value) as it flows through the engine.
type Msg struct {
	OrderID      uint64
	Side         Side
	Price        int64
	Size         uint32
	Action       Action
	Flags        Flags
	InstrumentID uint32
	PublisherID  uint16
	TsRecv       time.Time
	TsEvent      time.Time
	Sequence     uint32
	TsInDelta    int32
	ChannelID    uint16
}

// Decoder yields a lazy sequence of decoded MBO records plus the symbol
// table needed to resolve an instrument to a human-readable ticker. A
// real implementation wraps a binary feed file; MemDecoder below is a
// reference implementation for tests and local runs.
type Decoder interface {
	// Next returns the next record. ok is false at clean end of input.
	Next() (msg Msg, ok bool, err error)
	// Symbol resolves an instrument id to its ticker symbol.
	Symbol(instrumentID uint32) (string, error)
}

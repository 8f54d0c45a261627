package mbo

import "github.com/pkg/errors"

// ErrUnknownSymbol is returned by MemDecoder.Symbol for an instrument id
// with no entry in the symbol table.
var ErrUnknownSymbol = errors.New("unknown instrument symbol")

// MemDecoder is a reference Decoder backed by a pre-decoded slice of
// messages and a static symbol table. It stands in for the binary DBN
// decoder in tests and in local runs without a feed file on disk.
type MemDecoder struct {
	msgs    []Msg
	symbols map[uint32]string
	pos     int
}

// NewMemDecoder builds a MemDecoder over msgs, resolving instrument ids
// through symbols.
func NewMemDecoder(msgs []Msg, symbols map[uint32]string) *MemDecoder {
	return &MemDecoder{msgs: msgs, symbols: symbols}
}

func (d *MemDecoder) Next() (Msg, bool, error) {
	if d.pos >= len(d.msgs) {
		return Msg{}, false, nil
	}
	msg := d.msgs[d.pos]
	d.pos++
	return msg, true, nil
}

func (d *MemDecoder) Symbol(instrumentID uint32) (string, error) {
	symbol, ok := d.symbols[instrumentID]
	if !ok {
		return "", errors.Wrapf(ErrUnknownSymbol, "instrument id %d", instrumentID)
	}
	return symbol, nil
}

// Package persist implements the append-only, batched persistence sink
// the replay loader writes raw MBO records through.
package persist

import "ironbook/internal/mbo"

// Sink is the contract the replay loader depends on: a transactional,
// all-or-nothing batched insert plus a diagnostic count. Implementations
// never reorder records within a batch.
type Sink interface {
	InsertBatch(records []mbo.Msg) error
	Count() (int, error)
}

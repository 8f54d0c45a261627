package orderbook

import "github.com/pkg/errors"

// Sentinel errors for the InvalidInput, StateConflict, and
// InternalInconsistency error kinds. PreSnapshot conditions are not
// errors; they surface as Skipped effects instead.
var (
	ErrInvalidAction         = errors.New("invalid action")
	ErrInvalidSide           = errors.New("invalid side")
	ErrInvalidPrice          = errors.New("invalid price")
	ErrDuplicateOrder        = errors.New("duplicate order id")
	ErrCancelExceedsSize     = errors.New("cancel size exceeds existing order size")
	ErrInternalInconsistency = errors.New("internal book inconsistency")
	ErrInvalidPublisher      = errors.New("invalid publisher")
)

// Package replay drives the order-book engine from a decoded feed,
// batching raw messages to a persistence sink and capturing an ordered
// MarketSnapshot per applied message.
package replay

import (
	"time"

	"ironbook/internal/mbo"
	"ironbook/internal/metrics"
	"ironbook/internal/orderbook"
	"ironbook/internal/persist"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// DefaultBatchSize is the compiled-in batch size used when a Loader is
// built without an explicit override.
const DefaultBatchSize = 1000

// Loader consumes a decoder's message sequence, applies each message to
// a Market, and produces an ordered sequence of snapshots alongside
// batched persistence.
type Loader struct {
	decoder   mbo.Decoder
	sink      persist.Sink
	market    *orderbook.Market
	metrics   *metrics.Registry
	batchSize int

	messages  []mbo.Msg
	snapshots []orderbook.MarketSnapshot
	batch     []mbo.Msg
}

// New builds a Loader over decoder, persisting through sink and
// applying to market. A zero batchSize falls back to DefaultBatchSize.
// reg may be nil to disable metrics.
func New(decoder mbo.Decoder, sink persist.Sink, market *orderbook.Market, reg *metrics.Registry, batchSize int) *Loader {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Loader{
		decoder:   decoder,
		sink:      sink,
		market:    market,
		metrics:   reg,
		batchSize: batchSize,
	}
}

// Messages returns every raw message consumed so far, in input order.
func (l *Loader) Messages() []mbo.Msg { return l.messages }

// Snapshots returns every MarketSnapshot produced so far, in input
// order.
func (l *Loader) Snapshots() []orderbook.MarketSnapshot { return l.snapshots }

// Run drains the decoder to completion, applying every message to the
// market and flushing batches to the sink. Decode errors, apply errors,
// and sink errors are all fatal and abort the run; Skipped effects are
// not errors and do not interrupt replay.
func (l *Loader) Run() error {
	for {
		msg, ok, err := l.decoder.Next()
		if err != nil {
			return errors.Wrap(err, "while decoding record")
		}
		if !ok {
			break
		}
		if err := l.applyOne(msg); err != nil {
			return err
		}
	}
	if err := l.flush(); err != nil {
		return err
	}

	total, err := l.sink.Count()
	if err != nil {
		return errors.Wrap(err, "querying sink for total count")
	}
	log.Info().
		Int("messagesApplied", len(l.messages)).
		Int("storedTotal", total).
		Msg("replay complete")
	return nil
}

func (l *Loader) applyOne(msg mbo.Msg) error {
	l.messages = append(l.messages, msg)
	l.batch = append(l.batch, msg)
	if len(l.batch) >= l.batchSize {
		if err := l.flush(); err != nil {
			return err
		}
	}

	start := time.Now()
	effect, err := l.market.Apply(msg)
	l.metrics.ObserveApplyDuration(time.Since(start).Seconds())
	if err != nil {
		l.metrics.ProcessingError()
		return errors.Wrapf(err, "while applying message for order %d", msg.OrderID)
	}
	l.metrics.MessageProcessed()
	for _, be := range effect.BookEffects {
		l.metrics.BookUpdate(be.Kind.String())
		if be.Kind == orderbook.EffectSkipped {
			log.Warn().
				Uint64("orderId", msg.OrderID).
				Str("reason", be.Reason.String()).
				Msg("skipped message for order not seen since replay start")
		}
	}

	l.snapshots = append(l.snapshots, orderbook.NewMarketSnapshot(l.market, effect, msg))

	if msg.Flags.IsLast() {
		if err := l.logAggregatedBBO(msg); err != nil {
			return err
		}
	}
	return nil
}

// logAggregatedBBO resolves msg's instrument symbol for the aggregated
// BBO log line. Symbol resolution is an external error: it is fatal to
// the replay, not merely a logging nicety, since an unresolvable
// instrument means the feed and the symbol map have diverged.
func (l *Loader) logAggregatedBBO(msg mbo.Msg) error {
	symbol, err := l.decoder.Symbol(msg.InstrumentID)
	if err != nil {
		return errors.Wrapf(err, "resolving symbol for instrument %d", msg.InstrumentID)
	}
	bid, ask := l.market.AggregatedBBO(msg.InstrumentID)
	log.Info().
		Str("symbol", symbol).
		Time("tsRecv", msg.TsRecv).
		Interface("bestBid", bid).
		Interface("bestAsk", ask).
		Msg("aggregated BBO")
	return nil
}

func (l *Loader) flush() error {
	if len(l.batch) == 0 {
		return nil
	}
	if err := l.sink.InsertBatch(l.batch); err != nil {
		return errors.Wrap(err, "flushing batch to persistence sink")
	}
	l.batch = l.batch[:0]
	return nil
}

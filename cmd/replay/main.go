package main

import (
	"context"
	"os/signal"
	"syscall"

	"ironbook/internal/config"
	"ironbook/internal/delivery"
	"ironbook/internal/mbo"
	"ironbook/internal/metrics"
	"ironbook/internal/orderbook"
	"ironbook/internal/persist"
	"ironbook/internal/replay"

	"github.com/rs/zerolog/log"
)

func main() {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("unable to load configuration")
	}

	reg := metrics.New()

	sink, err := persist.OpenBoltSink(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("dbPath", cfg.DBPath).Msg("unable to open persistence sink")
	}
	defer func() {
		if err := sink.Close(); err != nil {
			log.Error().Err(err).Msg("error closing persistence sink")
		}
	}()

	decoder, err := openFeedDecoder(cfg.FeedPath)
	if err != nil {
		log.Fatal().Err(err).Str("feedPath", cfg.FeedPath).Msg("unable to open feed decoder")
	}

	market := orderbook.NewMarket()
	loader := replay.New(decoder, sink, market, reg, cfg.BatchSize)

	publisher := delivery.NewPublisher()
	srv := delivery.New(cfg.BindAddress, publisher, reg)
	go srv.Run(ctx)

	log.Info().Str("feedPath", cfg.FeedPath).Msg("starting replay")
	if err := loader.Run(); err != nil {
		log.Fatal().Err(err).Msg("replay aborted")
	}
	publisher.Publish(loader.Snapshots(), loader.Messages())

	log.Info().Msg("replay complete, serving published snapshots")
	<-ctx.Done()
}

// openFeedDecoder is a placeholder wiring point for the binary DBN feed
// decoder, external to this module per its scope. Swap in a real
// decoder implementation here; MemDecoder with no records keeps the
// server bootable against an unconfigured feed.
func openFeedDecoder(path string) (mbo.Decoder, error) {
	return mbo.NewMemDecoder(nil, map[uint32]string{}), nil
}
